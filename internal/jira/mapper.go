package jira

// Field mapping between the Cloud identity schema and the Server 6.x schema.
// Cloud addresses users by accountId; Server 6.x by name/key. Responses are
// normalized to the Cloud shape, requests to the legacy shape, always on the
// raw payload before any decoding.

// normalizeUserResponse maps legacy identity fields (name, key) onto
// accountId. An absent legacy field is tolerated: nothing is substituted and
// no error is raised. emailAddress is often withheld by legacy servers and is
// defaulted to null.
func normalizeUserResponse(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	normalized := cloneMap(data)

	if id, ok := normalized["accountId"]; !ok || id == nil || id == "" {
		if name, ok := normalized["name"].(string); ok && name != "" {
			normalized["accountId"] = name
		} else if key, ok := normalized["key"].(string); ok && key != "" {
			normalized["accountId"] = key
		}
	}

	if _, ok := normalized["emailAddress"]; !ok {
		normalized["emailAddress"] = nil
	}

	return normalized
}

// normalizeUserRequest rewrites accountId to name for Server 6.x. accountId
// is removed because the legacy API rejects unknown identity fields.
func normalizeUserRequest(data map[string]any, server6x bool) map[string]any {
	if data == nil || !server6x {
		return data
	}

	normalized := cloneMap(data)
	if id, ok := normalized["accountId"]; ok {
		normalized["name"] = id
		delete(normalized, "accountId")
	}
	return normalized
}

// normalizeIssueResponse normalizes the user-valued fields of an issue
// payload (assignee, reporter, creator).
func normalizeIssueResponse(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	normalized := cloneMap(data)
	if fields, ok := normalized["fields"].(map[string]any); ok {
		fields = cloneMap(fields)
		for _, name := range []string{"assignee", "reporter", "creator"} {
			if user, ok := fields[name].(map[string]any); ok {
				fields[name] = normalizeUserResponse(user)
			}
		}
		normalized["fields"] = fields
	}
	return normalized
}

// normalizeIssueRequest rewrites assignee/reporter to the legacy schema
// before transmission.
func normalizeIssueRequest(data map[string]any, server6x bool) map[string]any {
	if data == nil || !server6x {
		return data
	}

	normalized := cloneMap(data)
	if fields, ok := normalized["fields"].(map[string]any); ok {
		fields = cloneMap(fields)
		for _, name := range []string{"assignee", "reporter"} {
			if user, ok := fields[name].(map[string]any); ok {
				fields[name] = normalizeUserRequest(user, true)
			}
		}
		normalized["fields"] = fields
	}
	return normalized
}

// normalizeCommentResponse normalizes author and updateAuthor.
func normalizeCommentResponse(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	normalized := cloneMap(data)
	for _, name := range []string{"author", "updateAuthor"} {
		if user, ok := normalized[name].(map[string]any); ok {
			normalized[name] = normalizeUserResponse(user)
		}
	}
	return normalized
}

func normalizeCommentsList(comments []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		out = append(out, normalizeCommentResponse(comment))
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	clone := make(map[string]any, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

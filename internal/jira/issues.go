package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"jira_bridge/internal/model"
)

// GetIssue fetches a single issue by key. If fields is empty Jira returns its
// default field set.
func (c *Client) GetIssue(ctx context.Context, issueKey string, fields []string) (*model.Issue, error) {
	query := url.Values{}
	if len(fields) > 0 {
		query.Set("fields", strings.Join(fields, ","))
	}

	raw := map[string]any{}
	path := "/rest/api/3/issue/" + url.PathEscape(issueKey)
	if err := c.do(ctx, http.MethodGet, path, query, nil, &raw); err != nil {
		return nil, fmt.Errorf("error getting issue %s: %w", issueKey, err)
	}
	if c.cfg.IsServer6x() {
		raw = normalizeIssueResponse(raw)
	}

	var issue model.Issue
	if err := decodeMap(raw, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// SearchIssues runs a JQL search. The configured projects filter scopes the
// query, startAt/maxResults page through results, and under server_6x the
// page size is clamped to the legacy ceiling of 50.
func (c *Client) SearchIssues(ctx context.Context, jql string, fields []string, startAt, maxResults int) (*model.SearchResult, error) {
	query := url.Values{}
	query.Set("jql", c.scopeJQL(jql))
	query.Set("startAt", strconv.Itoa(startAt))
	query.Set("maxResults", strconv.Itoa(c.clampPageSize(maxResults)))
	if len(fields) > 0 {
		query.Set("fields", strings.Join(fields, ","))
	}

	raw := map[string]any{}
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/search", query, nil, &raw); err != nil {
		return nil, fmt.Errorf("error searching issues: %w", err)
	}

	if c.cfg.IsServer6x() {
		if issues, ok := raw["issues"].([]any); ok {
			normalized := make([]any, 0, len(issues))
			for _, issue := range issues {
				if m, ok := issue.(map[string]any); ok {
					normalized = append(normalized, normalizeIssueResponse(m))
				} else {
					normalized = append(normalized, issue)
				}
			}
			raw["issues"] = normalized
		}
	}

	var result model.SearchResult
	if err := decodeMap(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateIssue creates an issue from the given fields. Under server_6x the
// identity fields are rewritten to the legacy schema before transmission.
func (c *Client) CreateIssue(ctx context.Context, fields map[string]any) (*model.Issue, error) {
	payload := normalizeIssueRequest(map[string]any{"fields": fields}, c.cfg.IsServer6x())

	var issue model.Issue
	if err := c.do(ctx, http.MethodPost, "/rest/api/3/issue", nil, payload, &issue); err != nil {
		return nil, fmt.Errorf("error creating issue: %w", err)
	}
	return &issue, nil
}

// UpdateIssue updates the fields of an existing issue.
func (c *Client) UpdateIssue(ctx context.Context, issueKey string, fields map[string]any) error {
	payload := normalizeIssueRequest(map[string]any{"fields": fields}, c.cfg.IsServer6x())

	path := "/rest/api/3/issue/" + url.PathEscape(issueKey)
	if err := c.do(ctx, http.MethodPut, path, nil, payload, nil); err != nil {
		return fmt.Errorf("error updating issue %s: %w", issueKey, err)
	}
	return nil
}

// CreateVersion creates a project version.
func (c *Client) CreateVersion(ctx context.Context, version model.Version) (*model.Version, error) {
	if version.Project == "" || version.Name == "" {
		return nil, fmt.Errorf("version project and name are required")
	}

	var created model.Version
	if err := c.do(ctx, http.MethodPost, "/rest/api/3/version", nil, version, &created); err != nil {
		return nil, fmt.Errorf("error creating version: %w", err)
	}
	return &created, nil
}

// scopeJQL narrows a query to the configured project allow-list. Queries that
// already constrain project are left alone.
func (c *Client) scopeJQL(jql string) string {
	if len(c.cfg.ProjectsFilter) == 0 || strings.Contains(strings.ToLower(jql), "project") {
		return jql
	}

	scope := fmt.Sprintf("project in (%s)", strings.Join(c.cfg.ProjectsFilter, ", "))
	if strings.TrimSpace(jql) == "" {
		return scope
	}
	return fmt.Sprintf("(%s) AND %s", jql, scope)
}

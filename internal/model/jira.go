package model

// User represents a Jira user. Cloud identifies users by accountId; Server
// 6.x by name/key. Responses are normalized so AccountID is always populated
// when the server supplied any identity field.
type User struct {
	AccountID    string `json:"accountId,omitempty"`
	Name         string `json:"name,omitempty"`
	Key          string `json:"key,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// Issue represents a Jira issue response. Fields stay schemaless so identity
// remapping can run on the raw payload before any decoding.
type Issue struct {
	ID     string         `json:"id,omitempty"`
	Key    string         `json:"key"`
	Fields map[string]any `json:"fields"`
}

// SearchResult represents the response from a Jira search
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Comment represents a single issue comment
type Comment struct {
	ID           string `json:"id"`
	Body         string `json:"body"`
	Created      string `json:"created,omitempty"`
	Updated      string `json:"updated,omitempty"`
	Author       User   `json:"author"`
	UpdateAuthor User   `json:"updateAuthor,omitempty"`
}

// Version represents a Jira project version
type Version struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Project     string `json:"project,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
	Description string `json:"description,omitempty"`
	Released    bool   `json:"released,omitempty"`
}

// SessionInfo is the body of a /rest/auth/1/session response. The cookie
// normally arrives via Set-Cookie; the body is the fallback source.
type SessionInfo struct {
	Session struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"session"`
}

package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"jira_bridge/internal/model"
)

// GetComments returns up to limit comments for an issue, oldest first.
func (c *Client) GetComments(ctx context.Context, issueKey string, limit int) ([]model.Comment, error) {
	raw := struct {
		Comments []map[string]any `json:"comments"`
	}{}

	path := "/rest/api/3/issue/" + url.PathEscape(issueKey) + "/comment"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("error getting comments for issue %s: %w", issueKey, err)
	}

	comments := raw.Comments
	if limit > 0 && len(comments) > limit {
		comments = comments[:limit]
	}
	if c.cfg.IsServer6x() {
		comments = normalizeCommentsList(comments)
	}

	out := make([]model.Comment, 0, len(comments))
	for _, m := range comments {
		var comment model.Comment
		if err := decodeMap(m, &comment); err != nil {
			return nil, err
		}
		out = append(out, comment)
	}
	return out, nil
}

// GetComment fetches a single comment by ID.
func (c *Client) GetComment(ctx context.Context, issueKey, commentID string) (*model.Comment, error) {
	raw := map[string]any{}
	path := "/rest/api/3/issue/" + url.PathEscape(issueKey) + "/comment/" + url.PathEscape(commentID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("error getting comment %s for issue %s: %w", commentID, issueKey, err)
	}
	if c.cfg.IsServer6x() {
		raw = normalizeCommentResponse(raw)
	}

	var comment model.Comment
	if err := decodeMap(raw, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// AddComment adds a comment to an issue and returns the created comment.
func (c *Client) AddComment(ctx context.Context, issueKey, body string) (*model.Comment, error) {
	raw := map[string]any{}
	path := "/rest/api/3/issue/" + url.PathEscape(issueKey) + "/comment"
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]string{"body": body}, &raw); err != nil {
		return nil, fmt.Errorf("error adding comment to issue %s: %w", issueKey, err)
	}
	if c.cfg.IsServer6x() {
		raw = normalizeCommentResponse(raw)
	}

	var comment model.Comment
	if err := decodeMap(raw, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// EditComment updates the body of an existing comment.
func (c *Client) EditComment(ctx context.Context, issueKey, commentID, body string) (*model.Comment, error) {
	raw := map[string]any{}
	path := "/rest/api/3/issue/" + url.PathEscape(issueKey) + "/comment/" + url.PathEscape(commentID)
	if err := c.do(ctx, http.MethodPut, path, nil, map[string]string{"body": body}, &raw); err != nil {
		return nil, fmt.Errorf("error editing comment %s on issue %s: %w", commentID, issueKey, err)
	}
	if c.cfg.IsServer6x() {
		raw = normalizeCommentResponse(raw)
	}

	var comment model.Comment
	if err := decodeMap(raw, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

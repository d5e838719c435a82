package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"jira_bridge/internal/config"
	"jira_bridge/internal/jira"
	"jira_bridge/internal/model"
)

// jiraTools carries the shared client into the tool handlers.
type jiraTools struct {
	client *jira.Client
	cfg    *config.Config
}

// registerJiraTools registers all Jira-related tools with the server. The
// ENABLED_TOOLS allow-list filters which tools are exposed; an empty list
// exposes everything.
func registerJiraTools(s *server.MCPServer, client *jira.Client, cfg *config.Config) error {
	h := &jiraTools{client: client, cfg: cfg}

	tools := []struct {
		tool    mcp.Tool
		handler server.ToolHandlerFunc
	}{
		{
			tool: mcp.NewTool("jira_get_issue",
				mcp.WithDescription("Get details of a specific Jira issue"),
				mcp.WithString("issue_key",
					mcp.Required(),
					mcp.Description("Jira issue key (e.g., 'PROJ-123')"),
				),
				mcp.WithString("fields",
					mcp.Description("Comma-separated fields to return in the results"),
				),
			),
			handler: h.handleGetIssue,
		},
		{
			tool: mcp.NewTool("jira_search",
				mcp.WithDescription("Search Jira issues using JQL"),
				mcp.WithString("jql",
					mcp.Required(),
					mcp.Description("JQL query string"),
				),
				mcp.WithString("fields",
					mcp.Description("Comma-separated fields to return in the results"),
				),
				mcp.WithNumber("start_at",
					mcp.Description("Index of the first result to return"),
				),
				mcp.WithNumber("max_results",
					mcp.Description("Maximum number of results to return (capped at 50 on legacy servers)"),
				),
			),
			handler: h.handleSearch,
		},
		{
			tool: mcp.NewTool("jira_get_comments",
				mcp.WithDescription("Get comments for a specific Jira issue"),
				mcp.WithString("issue_key",
					mcp.Required(),
					mcp.Description("Jira issue key (e.g., 'PROJ-123')"),
				),
				mcp.WithNumber("limit",
					mcp.Description("Maximum number of comments to return"),
				),
			),
			handler: h.handleGetComments,
		},
		{
			tool: mcp.NewTool("jira_get_comment",
				mcp.WithDescription("Get a single comment by ID"),
				mcp.WithString("issue_key",
					mcp.Required(),
					mcp.Description("Jira issue key (e.g., 'PROJ-123')"),
				),
				mcp.WithString("comment_id",
					mcp.Required(),
					mcp.Description("Comment ID"),
				),
			),
			handler: h.handleGetComment,
		},
		{
			tool: mcp.NewTool("jira_add_comment",
				mcp.WithDescription("Add a comment to a Jira issue"),
				mcp.WithString("issue_key",
					mcp.Required(),
					mcp.Description("Jira issue key (e.g., 'PROJ-123')"),
				),
				mcp.WithString("comment",
					mcp.Required(),
					mcp.Description("Comment text"),
				),
			),
			handler: h.handleAddComment,
		},
		{
			tool: mcp.NewTool("jira_edit_comment",
				mcp.WithDescription("Edit an existing comment on a Jira issue"),
				mcp.WithString("issue_key",
					mcp.Required(),
					mcp.Description("Jira issue key (e.g., 'PROJ-123')"),
				),
				mcp.WithString("comment_id",
					mcp.Required(),
					mcp.Description("ID of the comment to edit"),
				),
				mcp.WithString("comment",
					mcp.Required(),
					mcp.Description("Updated comment text"),
				),
			),
			handler: h.handleEditComment,
		},
		{
			tool: mcp.NewTool("jira_create_issue",
				mcp.WithDescription("Create a new Jira issue"),
				mcp.WithString("fields",
					mcp.Required(),
					mcp.Description(`Issue fields as JSON, e.g. {"project":{"key":"PROJ"},"summary":"...","issuetype":{"name":"Task"}}`),
				),
			),
			handler: h.handleCreateIssue,
		},
		{
			tool: mcp.NewTool("jira_update_issue",
				mcp.WithDescription("Update fields of an existing Jira issue"),
				mcp.WithString("issue_key",
					mcp.Required(),
					mcp.Description("Jira issue key (e.g., 'PROJ-123')"),
				),
				mcp.WithString("fields",
					mcp.Required(),
					mcp.Description("Fields to update as JSON"),
				),
			),
			handler: h.handleUpdateIssue,
		},
		{
			tool: mcp.NewTool("jira_create_version",
				mcp.WithDescription("Create a new version in a Jira project"),
				mcp.WithString("project",
					mcp.Required(),
					mcp.Description("Project key (e.g., 'PROJ')"),
				),
				mcp.WithString("name",
					mcp.Required(),
					mcp.Description("Name of the version"),
				),
				mcp.WithString("start_date",
					mcp.Description("Start date (YYYY-MM-DD)"),
				),
				mcp.WithString("release_date",
					mcp.Description("Release date (YYYY-MM-DD)"),
				),
				mcp.WithString("description",
					mcp.Description("Description of the version"),
				),
			),
			handler: h.handleCreateVersion,
		},
	}

	for _, t := range tools {
		if !toolEnabled(cfg, t.tool.Name) {
			continue
		}
		s.AddTool(t.tool, t.handler)
	}

	return nil
}

// toolEnabled checks a tool name against the ENABLED_TOOLS allow-list.
func toolEnabled(cfg *config.Config, name string) bool {
	if len(cfg.EnabledTools) == 0 {
		return true
	}
	for _, enabled := range cfg.EnabledTools {
		if enabled == name {
			return true
		}
	}
	return false
}

func (h *jiraTools) handleGetIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey, ok := request.GetArguments()["issue_key"].(string)
	if !ok || issueKey == "" {
		return nil, fmt.Errorf("invalid issue_key parameter")
	}

	issue, err := h.client.GetIssue(ctx, issueKey, fieldList(request))
	if err != nil {
		return nil, err
	}
	return jsonResult(issue)
}

func (h *jiraTools) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jql, ok := request.GetArguments()["jql"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid jql parameter")
	}

	startAt := 0
	if v, ok := request.GetArguments()["start_at"].(float64); ok {
		startAt = int(v)
	}
	maxResults := 50
	if v, ok := request.GetArguments()["max_results"].(float64); ok {
		maxResults = int(v)
	}

	result, err := h.client.SearchIssues(ctx, jql, fieldList(request), startAt, maxResults)
	if err != nil {
		return nil, err
	}
	return jsonResult(result)
}

func (h *jiraTools) handleGetComments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey, ok := request.GetArguments()["issue_key"].(string)
	if !ok || issueKey == "" {
		return nil, fmt.Errorf("invalid issue_key parameter")
	}

	limit := 50
	if v, ok := request.GetArguments()["limit"].(float64); ok {
		limit = int(v)
	}

	comments, err := h.client.GetComments(ctx, issueKey, limit)
	if err != nil {
		return nil, err
	}
	return jsonResult(comments)
}

func (h *jiraTools) handleGetComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey, ok := request.GetArguments()["issue_key"].(string)
	if !ok || issueKey == "" {
		return nil, fmt.Errorf("invalid issue_key parameter")
	}
	commentID, ok := request.GetArguments()["comment_id"].(string)
	if !ok || commentID == "" {
		return nil, fmt.Errorf("invalid comment_id parameter")
	}

	comment, err := h.client.GetComment(ctx, issueKey, commentID)
	if err != nil {
		return nil, err
	}
	return jsonResult(comment)
}

func (h *jiraTools) handleAddComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey, ok := request.GetArguments()["issue_key"].(string)
	if !ok || issueKey == "" {
		return nil, fmt.Errorf("invalid issue_key parameter")
	}
	body, ok := request.GetArguments()["comment"].(string)
	if !ok || body == "" {
		return nil, fmt.Errorf("invalid comment parameter")
	}

	comment, err := h.client.AddComment(ctx, issueKey, body)
	if err != nil {
		return nil, err
	}
	return jsonResult(comment)
}

func (h *jiraTools) handleEditComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey, ok := request.GetArguments()["issue_key"].(string)
	if !ok || issueKey == "" {
		return nil, fmt.Errorf("invalid issue_key parameter")
	}
	commentID, ok := request.GetArguments()["comment_id"].(string)
	if !ok || commentID == "" {
		return nil, fmt.Errorf("invalid comment_id parameter")
	}
	body, ok := request.GetArguments()["comment"].(string)
	if !ok || body == "" {
		return nil, fmt.Errorf("invalid comment parameter")
	}

	comment, err := h.client.EditComment(ctx, issueKey, commentID, body)
	if err != nil {
		return nil, err
	}
	return jsonResult(comment)
}

func (h *jiraTools) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fields, err := fieldsJSON(request)
	if err != nil {
		return nil, err
	}

	issue, err := h.client.CreateIssue(ctx, fields)
	if err != nil {
		return nil, err
	}
	return jsonResult(issue)
}

func (h *jiraTools) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueKey, ok := request.GetArguments()["issue_key"].(string)
	if !ok || issueKey == "" {
		return nil, fmt.Errorf("invalid issue_key parameter")
	}
	fields, err := fieldsJSON(request)
	if err != nil {
		return nil, err
	}

	if err := h.client.UpdateIssue(ctx, issueKey, fields); err != nil {
		return nil, err
	}
	return jsonResult(map[string]string{"key": issueKey, "status": "updated"})
}

func (h *jiraTools) handleCreateVersion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, ok := request.GetArguments()["project"].(string)
	if !ok || project == "" {
		return nil, fmt.Errorf("invalid project parameter")
	}
	name, ok := request.GetArguments()["name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("invalid name parameter")
	}

	version := model.Version{Project: project, Name: name}
	if v, ok := request.GetArguments()["start_date"].(string); ok {
		version.StartDate = v
	}
	if v, ok := request.GetArguments()["release_date"].(string); ok {
		version.ReleaseDate = v
	}
	if v, ok := request.GetArguments()["description"].(string); ok {
		version.Description = v
	}

	created, err := h.client.CreateVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	return jsonResult(created)
}

// fieldList extracts the optional comma-separated "fields" argument.
func fieldList(request mcp.CallToolRequest) []string {
	raw, ok := request.GetArguments()["fields"].(string)
	if !ok || raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// fieldsJSON decodes the "fields" argument of create/update tools, which is a
// JSON object rather than a comma list.
func fieldsJSON(request mcp.CallToolRequest) (map[string]any, error) {
	raw, ok := request.GetArguments()["fields"].(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("invalid fields parameter")
	}
	fields := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("fields parameter is not valid JSON: %v", err)
	}
	return fields, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	// convert result to json string
	jsonResult, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %v", err)
	}
	return mcp.NewToolResultText(string(jsonResult)), nil
}

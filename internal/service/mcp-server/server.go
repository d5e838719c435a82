package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"jira_bridge/internal/config"
	"jira_bridge/internal/jira"
)

// Version is reported to MCP clients during initialization.
const Version = "1.0.0"

// NewServer creates a new MCP server instance exposing the Jira tools.
func NewServer(client *jira.Client, cfg *config.Config) (*server.MCPServer, error) {
	// Create MCP server
	s := server.NewMCPServer(
		"jira bridge",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	// Add Jira tools
	if err := registerJiraTools(s, client, cfg); err != nil {
		return nil, err
	}

	return s, nil
}

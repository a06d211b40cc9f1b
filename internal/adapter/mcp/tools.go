package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mba-tools/jirald/internal/domain/card"
	"github.com/mba-tools/jirald/internal/port/tracker"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.addTools(s.createIssueTool())
}

func (s *Server) createIssueTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("create_jira_issue",
		mcplib.WithDescription(fmt.Sprintf("Create a new JIRA issue in the %s project", s.cfg.ProjectKey)),
		mcplib.WithString("summary",
			mcplib.Required(),
			mcplib.Description("Issue title/summary"),
		),
		mcplib.WithString("description",
			mcplib.Description("Issue description"),
		),
		mcplib.WithString("issue_type",
			mcplib.Description("Issue type: Task, Story, Epic, Bug, or Subtask"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleCreateIssue,
	}
}

func (s *Server) handleCreateIssue(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if s.deps.Issues == nil {
		return mcplib.NewToolResultError("tracker client not configured"), nil
	}

	args := req.GetArguments()
	summary, ok := args["summary"].(string)
	if !ok || summary == "" {
		return mcplib.NewToolResultError("summary is required"), nil
	}
	description, _ := args["description"].(string)
	issueType, _ := args["issue_type"].(string)
	if !card.IssueTypes[issueType] {
		issueType = card.DefaultIssueType
	}

	issue, err := s.deps.Issues.CreateIssue(ctx, tracker.CreateRequest{
		ProjectKey:  s.cfg.ProjectKey,
		Summary:     summary,
		IssueType:   issueType,
		Description: description,
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to create issue", err), nil
	}

	return mcplib.NewToolResultText(fmt.Sprintf("✅ Created JIRA issue %s: %s\n🔗 %s",
		issue.Key, issue.Summary, issue.URL)), nil
}

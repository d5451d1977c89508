package tools

import (
	"context"

	"github.com/HendryAvila/devflow/internal/journal"
	"github.com/HendryAvila/devflow/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// HistoryReader is the part of the journal the history tool reads.
type HistoryReader interface {
	Recent(ctx context.Context, projectID string, limit int) ([]journal.Entry, error)
}

// HistoryTool handles the devflow_history MCP tool.
type HistoryTool struct {
	journal HistoryReader
	session *session.Session
}

// NewHistoryTool creates a HistoryTool.
func NewHistoryTool(j HistoryReader, sess *session.Session) *HistoryTool {
	return &HistoryTool{journal: j, session: sess}
}

// Definition returns the MCP tool definition for registration.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("devflow_history",
		mcp.WithDescription(
			"Show the recorded history of phase calls, backups and restores, newest first. "+
				"Defaults to the active project; pass all=true for every project.",
		),
		mcp.WithString("project_id",
			mcp.Description("Project id. Defaults to the active project."),
		),
		mcp.WithBoolean("all",
			mcp.Description("Show history across all projects."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries to return (default 20)."),
		),
	)
}

// Handle processes the devflow_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("project_id", "")
	all := req.GetBool("all", false)
	if id == "" && !all {
		id = t.session.ActiveID()
		if id == "" {
			return validationResult("project_id", "is required when no project is active (or pass all=true)")
		}
	}
	if all {
		id = ""
	}

	entries, err := t.journal.Recent(ctx, id, intArg(req, "limit", journal.DefaultLimit))
	if err != nil {
		return errorResult(err)
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return jsonResult(map[string]any{"project_id": id, "entries": entries, "total": len(entries)})
}

package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/devflow/internal/session"
	"github.com/HendryAvila/devflow/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

// BackupsTool handles the devflow_backups MCP tool.
type BackupsTool struct {
	store   store.Store
	session *session.Session
}

// NewBackupsTool creates a BackupsTool.
func NewBackupsTool(st store.Store, sess *session.Session) *BackupsTool {
	return &BackupsTool{store: st, session: sess}
}

// Definition returns the MCP tool definition for registration.
func (t *BackupsTool) Definition() mcp.Tool {
	return mcp.NewTool("devflow_backups",
		mcp.WithDescription(
			"Manage project backups. Backups are taken automatically before every change "+
				"and the newest ones are kept. "+
				"list: backups newest first. create: snapshot the project now. "+
				"restore: replace the project with a backup (the latest unless a timestamp is given); "+
				"the state being replaced is itself backed up first. "+
				"Restoring is also the only way to move a project back to an earlier phase.",
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Enum("list", "create", "restore"),
		),
		mcp.WithString("project_id",
			mcp.Description("Project id. Defaults to the active project."),
		),
		mcp.WithString("timestamp",
			mcp.Description("restore: backup timestamp as returned by list. Defaults to the latest."),
		),
	)
}

// Handle processes the devflow_backups tool call.
func (t *BackupsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := req.GetString("action", "")
	id := req.GetString("project_id", "")
	if id == "" {
		id = t.session.ActiveID()
	}
	if id == "" {
		return validationResult("project_id", "is required when no project is active")
	}

	switch action {
	case "list":
		backups, err := t.store.ListBackups(ctx, id)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]any{"project_id": id, "backups": backups, "total": len(backups)})

	case "create":
		info, err := t.store.CreateBackup(ctx, id)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]any{"success": true, "backup": info})

	case "restore":
		rec, err := t.store.Restore(ctx, id, req.GetString("timestamp", ""))
		if err != nil {
			return errorResult(err)
		}
		if t.session.ActiveID() == rec.ID {
			t.session.Set(rec)
		}
		return jsonResult(map[string]any{
			"success": true,
			"message": fmt.Sprintf("Project %q restored to phase %s", rec.Name, rec.Phase),
			"project": Summarize(rec, t.session.ActiveID()),
		})

	default:
		return validationResult("action", fmt.Sprintf("invalid action %q: must be one of: list, create, restore", action))
	}
}

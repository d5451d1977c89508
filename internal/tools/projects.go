package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/devflow/internal/project"
	"github.com/HendryAvila/devflow/internal/session"
	"github.com/HendryAvila/devflow/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

// ProjectSummary is the compact view of a record used in listings.
type ProjectSummary struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Phase     project.Phase    `json:"phase"`
	UpdatedAt string           `json:"updated_at"`
	Progress  project.Progress `json:"progress"`
	Active    bool             `json:"active,omitempty"`
}

// Summarize builds a ProjectSummary. activeID marks the session's project.
func Summarize(rec *project.Record, activeID string) ProjectSummary {
	return ProjectSummary{
		ID:        rec.ID,
		Name:      rec.Name,
		Phase:     rec.Phase,
		UpdatedAt: rec.UpdatedAt,
		Progress:  rec.Progress(),
		Active:    activeID != "" && rec.ID == activeID,
	}
}

// ProjectsTool handles the devflow_projects MCP tool: listing, searching
// and switching between stored projects.
type ProjectsTool struct {
	store   store.Store
	session *session.Session
}

// NewProjectsTool creates a ProjectsTool.
func NewProjectsTool(st store.Store, sess *session.Session) *ProjectsTool {
	return &ProjectsTool{store: st, session: sess}
}

// Definition returns the MCP tool definition for registration.
func (t *ProjectsTool) Definition() mcp.Tool {
	return mcp.NewTool("devflow_projects",
		mcp.WithDescription(
			"Manage stored devflow projects. "+
				"list: every project, most recently updated first. "+
				"find: projects matching id, name and/or phase exactly. "+
				"stats: totals per phase and the most recent projects. "+
				"resume: make a stored project the active one. "+
				"delete: remove a project (a backup is kept when auto-backup is on).",
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Enum("list", "find", "stats", "resume", "delete"),
		),
		mcp.WithString("project_id",
			mcp.Description("resume/delete: project id. find: optional exact id."),
		),
		mcp.WithString("name",
			mcp.Description("find: exact project name."),
		),
		mcp.WithString("phase",
			mcp.Description("find: exact phase."),
		),
	)
}

// Handle processes the devflow_projects tool call.
func (t *ProjectsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	switch action := req.GetString("action", ""); action {
	case "list":
		all, err := t.store.ListAll(ctx)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]any{"projects": t.summaries(all), "total": len(all)})

	case "find":
		q := project.Query{
			ID:   req.GetString("project_id", ""),
			Name: req.GetString("name", ""),
		}
		if p := req.GetString("phase", ""); p != "" {
			phase, err := project.ParsePhase(p)
			if err != nil {
				return validationResult("phase", err.Error())
			}
			q.Phase = phase
		}
		found, err := t.store.Find(ctx, q)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]any{"projects": t.summaries(found), "total": len(found)})

	case "stats":
		st, err := t.store.Stats(ctx)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]any{
			"total":    st.Total,
			"by_phase": st.ByPhase,
			"recent":   t.summaries(st.Recent),
		})

	case "resume":
		id := req.GetString("project_id", "")
		if id == "" {
			return validationResult("project_id", "is required for resume")
		}
		rec, err := t.session.Resume(ctx, t.store, id)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(map[string]any{
			"success": true,
			"message": fmt.Sprintf("Project %q is now active", rec.Name),
			"project": Summarize(rec, rec.ID),
		})

	case "delete":
		id := req.GetString("project_id", "")
		if id == "" {
			return validationResult("project_id", "is required for delete")
		}
		existed, err := t.store.Delete(ctx, id)
		if err != nil {
			return errorResult(err)
		}
		if t.session.ActiveID() == id {
			t.session.Clear()
		}
		if !existed {
			return errorResult(project.ProjectNotFound(id))
		}
		return jsonResult(map[string]any{
			"success": true,
			"message": fmt.Sprintf("Project %s deleted", id),
		})

	default:
		return validationResult("action", fmt.Sprintf("invalid action %q: must be one of: list, find, stats, resume, delete", action))
	}
}

func (t *ProjectsTool) summaries(records []*project.Record) []ProjectSummary {
	activeID := t.session.ActiveID()
	out := make([]ProjectSummary, len(records))
	for i, rec := range records {
		out[i] = Summarize(rec, activeID)
	}
	return out
}

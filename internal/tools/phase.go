package tools

import (
	"context"

	"github.com/HendryAvila/devflow/internal/engine"
	"github.com/HendryAvila/devflow/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// PhaseTool handles the devflow_phase MCP tool: one call runs one phase of
// the active project.
type PhaseTool struct {
	engine  *engine.Engine
	session *session.Session
}

// NewPhaseTool creates a PhaseTool.
func NewPhaseTool(eng *engine.Engine, sess *session.Session) *PhaseTool {
	return &PhaseTool{engine: eng, session: sess}
}

// Definition returns the MCP tool definition for registration.
func (t *PhaseTool) Definition() mcp.Tool {
	return mcp.NewTool("devflow_phase",
		mcp.WithDescription(
			"Run one phase of the devflow development workflow for the active project. "+
				"Phases in order: init, requirement, confirmation, design, todo, task_complete, finish; "+
				"status reports progress without changing anything. "+
				"Pass only the fields the chosen action uses. "+
				"YOU write the content (requirements, design, tasks); the tool validates it, "+
				"saves it and writes the matching markdown document.",
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("Phase to run."),
			mcp.Enum("init", "requirement", "confirmation", "design", "todo", "task_complete", "status", "finish"),
		),
		mcp.WithString("project_name",
			mcp.Description("init: project name (letters, digits, spaces, '.', '_', '-'; max 100 chars)."),
		),
		mcp.WithString("description",
			mcp.Description("requirement: project description (max 5000 chars)."),
		),
		mcp.WithArray("requirements",
			mcp.Description("requirement: general requirements (max 50 items, each max 1000 chars)."),
			mcp.WithStringItems(),
		),
		mcp.WithArray("functional_requirements",
			mcp.Description("requirement: functional requirements."),
			mcp.WithStringItems(),
		),
		mcp.WithArray("technical_requirements",
			mcp.Description("requirement: technical requirements."),
			mcp.WithStringItems(),
		),
		mcp.WithArray("acceptance_criteria",
			mcp.Description("requirement: acceptance criteria."),
			mcp.WithStringItems(),
		),
		mcp.WithBoolean("confirmed",
			mcp.Description("confirmation: true to approve the requirements, false to revise them."),
		),
		mcp.WithString("architecture", mcp.Description("design: architecture overview.")),
		mcp.WithString("implementation", mcp.Description("design: implementation approach.")),
		mcp.WithString("system_design", mcp.Description("design: components and their interactions.")),
		mcp.WithString("data_structures", mcp.Description("design: data model.")),
		mcp.WithString("interfaces", mcp.Description("design: APIs and contracts.")),
		mcp.WithString("deployment", mcp.Description("design: deployment and operations.")),
		mcp.WithArray("tasks",
			mcp.Description("todo: the full task list; replaces any existing tasks."),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":              map[string]any{"type": "string", "description": "Unique id: letters, digits, '.', '_', '-' (max 64)"},
					"title":           map[string]any{"type": "string"},
					"description":     map[string]any{"type": "string"},
					"priority":        map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
					"estimated_hours": map[string]any{"type": "number"},
					"dependencies":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"id", "title"},
			}),
		),
		mcp.WithString("task_id",
			mcp.Description("task_complete: id of the task to mark done."),
		),
		mcp.WithBoolean("force",
			mcp.Description("finish: close the project even with pending tasks."),
		),
	)
}

// Handle processes the devflow_phase tool call.
func (t *PhaseTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := req.GetString("action", "")
	if action == "" {
		return validationResult("action", "is required")
	}

	in, err := engine.ParseInput(action, req.GetArguments())
	if err != nil {
		return errorResult(err)
	}

	res, err := t.engine.Handle(ctx, t.session, in)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

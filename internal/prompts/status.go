package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the devflow-status MCP prompt.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("devflow-status",
		mcp.WithPromptDescription(
			"Check the status of the active devflow project: "+
				"current phase, task progress and what to do next.",
		),
	)
}

// Handle processes the devflow-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "devflow Project Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `devflow_phase` with action='status' to check my project.\n\n" +
						"If no project is active, run `devflow_projects` with action='list' " +
						"and ask me which one to resume.\n\n" +
						"Then:\n" +
						"1. Show the current phase and task progress\n" +
						"2. List the pending tasks\n" +
						"3. Tell me exactly what I should do next",
				),
			},
		},
	}, nil
}

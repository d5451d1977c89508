// Package prompts implements MCP prompt handlers for the devflow workflow.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the devflow-start MCP prompt.
// It guides the AI to create a project and walk it through every phase.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("devflow-start",
		mcp.WithPromptDescription(
			"Start a new devflow project and walk it from requirements "+
				"through design and tasks to a finished project.",
		),
		mcp.WithArgument("project_name",
			mcp.ArgumentDescription("Name of your project"),
		),
		mcp.WithArgument("idea",
			mcp.ArgumentDescription("One or two sentences describing what you want to build (optional)"),
		),
	)
}

// Handle processes the devflow-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	projectName := "my-project"
	idea := ""
	if args := req.Params.Arguments; args != nil {
		if name, ok := args["project_name"]; ok && name != "" {
			projectName = name
		}
		idea = args["idea"]
	}

	ideaLine := "Ask me to describe my idea before writing requirements."
	if idea != "" {
		ideaLine = fmt.Sprintf("My idea: %s", idea)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Start devflow project: %s", projectName),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to start a new devflow project called '%s'.\n\n"+
						"%s\n\n"+
						"Please:\n"+
						"1. Run `devflow_phase` with action='init' and project_name='%s'\n"+
						"2. Write the requirements with me, then run action='requirement'\n"+
						"3. Show me the requirements and run action='confirmation' with my answer\n"+
						"4. Propose a design and run action='design'\n"+
						"5. Break the work into tasks and run action='todo'\n"+
						"6. As we finish each task, run action='task_complete'\n"+
						"7. When everything is done, run action='finish'\n\n"+
						"Use action='status' whenever you need to check where we are.",
					projectName, ideaLine, projectName,
				)),
			},
		},
	}, nil
}

package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func promptText(t *testing.T, res *mcp.GetPromptResult) string {
	t.Helper()
	if res == nil || len(res.Messages) != 1 {
		t.Fatalf("expected one message, got %+v", res)
	}
	tc, ok := res.Messages[0].Content.(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", res.Messages[0].Content)
	}
	return tc.Text
}

func TestStartPrompt_Defaults(t *testing.T) {
	p := NewStartPrompt()
	if p.Definition().Name != "devflow-start" {
		t.Errorf("Name = %q", p.Definition().Name)
	}

	res, err := p.Handle(context.Background(), mcp.GetPromptRequest{})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	text := promptText(t, res)
	if !strings.Contains(text, "project_name='my-project'") {
		t.Errorf("default name missing: %s", text)
	}
	if !strings.Contains(text, "Ask me to describe my idea") {
		t.Errorf("idea fallback missing: %s", text)
	}
}

func TestStartPrompt_UsesArguments(t *testing.T) {
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"project_name": "Shop", "idea": "sell socks"}

	res, err := NewStartPrompt().Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	text := promptText(t, res)
	for _, want := range []string{"'Shop'", "My idea: sell socks", "action='finish'"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in %s", want, text)
		}
	}
}

func TestStatusPrompt(t *testing.T) {
	res, err := NewStatusPrompt().Handle(context.Background(), mcp.GetPromptRequest{})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if text := promptText(t, res); !strings.Contains(text, "action='status'") {
		t.Errorf("status prompt = %s", text)
	}
}

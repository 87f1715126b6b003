package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/wardlow/reeve-agent/internal/llm"
	"github.com/wardlow/reeve-agent/internal/tool"
)

// cannedClient returns a fixed reply for every chat request.
type cannedClient struct {
	reply string
	err   error
}

func (c cannedClient) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return c.reply, c.err
}

func (c cannedClient) ChatStream(ctx context.Context, messages []llm.Message, cb llm.StreamCallback) (string, error) {
	return c.reply, c.err
}

func (c cannedClient) Ping(ctx context.Context) error { return c.err }

func modelPlan(t *testing.T, reply string, err error, request string) Step {
	t.Helper()
	m := NewModel(llm.NewDrafter(cannedClient{reply: reply, err: err}))
	steps, planErr := m.Plan(context.Background(), request, nil, nil)
	if planErr != nil {
		t.Fatalf("Plan: %v", planErr)
	}
	if len(steps) != 1 {
		t.Fatalf("Plan returned %d steps, want 1", len(steps))
	}
	return steps[0]
}

func TestModelPlannerAcceptsValidDecision(t *testing.T) {
	step := modelPlan(t, `{"tool": "search", "input": "fusion energy news"}`, nil, "any news on fusion?")
	if step.Tool != tool.NameSearch {
		t.Errorf("tool = %q, want search", step.Tool)
	}
	if step.Input != "fusion energy news" {
		t.Errorf("input = %v, want model-provided input", step.Input)
	}
}

func TestModelPlannerAcceptsFencedJSON(t *testing.T) {
	reply := "Sure, here is my choice:\n```json\n{\"tool\": \"calculator\", \"input\": \"2+2\"}\n```"
	step := modelPlan(t, reply, nil, "2+2")
	if step.Tool != tool.NameCalculator {
		t.Errorf("tool = %q, want calculator", step.Tool)
	}
}

func TestModelPlannerFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"unknown tool", `{"tool": "rocket_launcher", "input": "x"}`, nil},
		{"not json", "I think search would be best here.", nil},
		{"empty tool", `{"tool": "", "input": "x"}`, nil},
		{"backend down", "", errors.New("connection refused")},
	}

	const request = "original request text"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := modelPlan(t, tt.reply, tt.err, request)
			if step.Tool != tool.NameLLM {
				t.Errorf("tool = %q, want llm fallback", step.Tool)
			}
			if step.Input != request {
				t.Errorf("input = %v, want original request passed through verbatim", step.Input)
			}
		})
	}
}

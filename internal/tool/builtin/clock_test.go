package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/wardlow/reeve-agent/internal/llm"
)

func TestClockIsFinal(t *testing.T) {
	fixed := time.Date(2026, 8, 17, 15, 4, 0, 0, time.UTC)
	c := clockAt(func() time.Time { return fixed })

	res := c.Invoke(context.Background(), nil, nil)
	if !res.Success || !res.Final {
		t.Fatalf("result = %+v, want final success", res)
	}
	if res.Data != any("Monday, August 17, 2026 at 3:04 PM UTC") {
		t.Errorf("Data = %v", res.Data)
	}
}

func TestLLMNeverFails(t *testing.T) {
	// A nil drafter stands in for an unreachable backend.
	llmTool := LLM(nil)

	res := llmTool.Invoke(context.Background(), "why is the sky blue", nil)
	if !res.Success {
		t.Fatalf("llm tool reported failure: %s", res.Error)
	}
	if res.Data != any(llm.Unavailable) {
		t.Errorf("Data = %v, want the unavailable sentinel", res.Data)
	}
}

package orchestrate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wardlow/reeve-agent/internal/llm"
	"github.com/wardlow/reeve-agent/internal/planner"
	"github.com/wardlow/reeve-agent/internal/tool"
)

// scriptedClient is a fake drafting backend that records prompts and
// replies with canned text.
type scriptedClient struct {
	reply   string
	err     error
	prompts []string
}

func (c *scriptedClient) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return c.ChatStream(ctx, messages, nil)
}

func (c *scriptedClient) ChatStream(ctx context.Context, messages []llm.Message, callback llm.StreamCallback) (string, error) {
	c.prompts = append(c.prompts, messages[len(messages)-1].Content)
	if c.err != nil {
		return "", c.err
	}
	if callback != nil {
		callback(c.reply)
	}
	return c.reply, nil
}

func (c *scriptedClient) Ping(ctx context.Context) error { return c.err }

func TestExecuteStepStructuredDataIsSummarized(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(tool.NameFinance, tool.Func(func(context.Context, any, tool.Context) tool.Result {
		return tool.Result{Success: true, Data: map[string]any{"symbol": "ACME", "price": 41.5}}
	}))
	client := &scriptedClient{reply: "ACME trades at 41.5."}
	e := NewExecutor(reg, llm.NewDrafter(client), quietLogger())

	out := e.ExecuteStep(context.Background(), planner.Step{Tool: tool.NameFinance, Input: "ACME"},
		nil, StepOptions{Request: "price of ACME", Tone: "brief"})

	if !out.Success || out.Output != any("ACME trades at 41.5.") {
		t.Fatalf("outcome = %+v", out)
	}
	if len(client.prompts) != 1 {
		t.Fatalf("drafter called %d times, want 1", len(client.prompts))
	}
	prompt := client.prompts[0]
	if !strings.Contains(prompt, "ACME") || !strings.Contains(prompt, "price of ACME") {
		t.Errorf("prompt missing tool result or request:\n%s", prompt)
	}
	if !strings.Contains(prompt, "brief") {
		t.Errorf("prompt missing tone directive:\n%s", prompt)
	}
	if strings.Contains(prompt, "markdown table") {
		t.Errorf("prompt asked for a table without tabular phrasing:\n%s", prompt)
	}
}

func TestExecuteStepTabularRequest(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(tool.NameFinance, tool.Func(func(context.Context, any, tool.Context) tool.Result {
		return tool.Result{Success: true, Data: []map[string]any{{"symbol": "A"}, {"symbol": "B"}}}
	}))
	client := &scriptedClient{reply: "| symbol |\n| A |"}
	e := NewExecutor(reg, llm.NewDrafter(client), quietLogger())

	e.ExecuteStep(context.Background(), planner.Step{Tool: tool.NameFinance, Input: "top"},
		nil, StepOptions{Request: "show the top stocks in a table"})

	if len(client.prompts) != 1 || !strings.Contains(client.prompts[0], "markdown table") {
		t.Errorf("tabular phrasing did not force table rendering; prompt:\n%v", client.prompts)
	}
}

func TestExecuteStepDrafterDownFallsBackToJSON(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(tool.NameFinance, tool.Func(func(context.Context, any, tool.Context) tool.Result {
		return tool.Result{Success: true, Data: map[string]any{"price": 12}}
	}))
	client := &scriptedClient{err: errors.New("connection refused")}
	e := NewExecutor(reg, llm.NewDrafter(client), quietLogger())

	out := e.ExecuteStep(context.Background(), planner.Step{Tool: tool.NameFinance, Input: "x"},
		nil, StepOptions{Request: "x"})

	if !out.Success {
		t.Fatalf("outcome = %+v", out)
	}
	if s, _ := out.Output.(string); !strings.Contains(s, `"price"`) {
		t.Errorf("Output = %v, want JSON fallback", out.Output)
	}
}

func TestExecuteStepFailureSkipsSummarization(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(tool.NameSearch, tool.Func(func(context.Context, any, tool.Context) tool.Result {
		return tool.Result{Success: false, Error: "backend down"}
	}))
	client := &scriptedClient{reply: "should never be used"}
	e := NewExecutor(reg, llm.NewDrafter(client), quietLogger())

	out := e.ExecuteStep(context.Background(), planner.Step{Tool: tool.NameSearch, Input: "q"},
		nil, StepOptions{Request: "q"})

	if out.Success || out.Output != any("backend down") || out.Err != "backend down" {
		t.Errorf("outcome = %+v", out)
	}
	if len(client.prompts) != 0 {
		t.Errorf("drafter called on a failed step")
	}
}

func TestExecuteStepStringPassthroughStreams(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(tool.NameLLM, tool.Func(func(context.Context, any, tool.Context) tool.Result {
		return tool.Result{Success: true, Data: "direct answer"}
	}))
	e := NewExecutor(reg, nil, quietLogger())

	var chunks []string
	out := e.ExecuteStep(context.Background(), planner.Step{Tool: tool.NameLLM, Input: "q"},
		nil, StepOptions{Request: "q", ChunkSink: func(s string) { chunks = append(chunks, s) }})

	if out.Output != any("direct answer") {
		t.Errorf("Output = %v", out.Output)
	}
	if len(chunks) != 1 || chunks[0] != "direct answer" {
		t.Errorf("chunks = %v", chunks)
	}
}

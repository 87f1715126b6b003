package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wardlow/reeve-agent/internal/llm"
	"github.com/wardlow/reeve-agent/internal/memory"
	"github.com/wardlow/reeve-agent/internal/planner"
	"github.com/wardlow/reeve-agent/internal/tool"
	"github.com/wardlow/reeve-agent/internal/trace"
)

// Executor runs a single planned step against the tool registry and,
// when the tool returns structured data meant for the user, drafts a
// natural-language rendering of it.
type Executor struct {
	registry *tool.Registry
	drafter  *llm.Drafter
	logger   *slog.Logger
}

// NewExecutor creates an executor. drafter may be nil, in which case
// structured output is rendered as JSON instead of prose.
func NewExecutor(registry *tool.Registry, drafter *llm.Drafter, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{registry: registry, drafter: drafter, logger: logger}
}

// StepOptions carries per-run context into a step execution.
type StepOptions struct {
	// Request is the user's original request, used to steer drafting.
	Request string
	// History is the bounded recent conversation window.
	History []memory.Message
	// Tone is the style directive from the user's profile.
	Tone string
	// ChunkSink receives incremental drafted text; nil disables
	// streaming for this step.
	ChunkSink func(chunk string)
}

// Outcome is the classified result of one step execution.
type Outcome struct {
	Success bool
	// Output is the user-facing output: drafted prose for structured
	// results, the raw string for prose tools, the error text on
	// failure.
	Output any
	// Raw is the tool's unprocessed data, preserved for transports that
	// want the structured form alongside the prose.
	Raw any
	// Err holds the tool's error text on failure (used by retry
	// classification).
	Err    string
	Final  bool
	Cached bool
}

// ExecuteStep runs one step. An unknown tool name is a terminal failure
// for the step; the coordinator does not retry it. Tool failures carry
// the tool's error as the step output and skip summarization.
func (e *Executor) ExecuteStep(ctx context.Context, step planner.Step, traceSoFar trace.Graph, opts StepOptions) Outcome {
	t, ok := e.registry.Get(step.Tool)
	if !ok {
		err := fmt.Sprintf("tool not found: %s", step.Tool)
		e.logger.Warn("step references unknown tool", "tool", step.Tool)
		return Outcome{Success: false, Output: err, Err: err}
	}

	res := t.Invoke(ctx, step.Input, step.Context)
	if !res.Success {
		return Outcome{Success: false, Output: res.Error, Err: res.Error, Cached: res.Cached}
	}

	out := Outcome{Success: true, Raw: res.Data, Final: res.Final, Cached: res.Cached}

	switch data := res.Data.(type) {
	case nil:
		out.Output = ""
	case string:
		out.Output = data
		if opts.ChunkSink != nil && data != "" {
			opts.ChunkSink(data)
		}
	default:
		// Structured data intended for the user: draft a reading of it.
		out.Output = e.summarize(ctx, data, opts)
	}

	return out
}

// tabularPhrases force table rendering when present in the request.
var tabularPhrases = []string{"in a table", "as a table", "in table form", "tabular"}

// summarize drafts a natural-language rendering of structured tool data.
// When the drafting backend is unavailable the JSON form is returned
// instead, so the run still produces an answer.
func (e *Executor) summarize(ctx context.Context, data any, opts StepOptions) string {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		encoded = []byte(fmt.Sprintf("%v", data))
	}

	if e.drafter == nil {
		return string(encoded)
	}

	var prompt strings.Builder
	prompt.WriteString("Summarize the following tool result as a reply to the user's request.\n")

	if wantsTable(opts.Request) {
		prompt.WriteString("The user asked for a table: render the result as a markdown table.\n")
	} else {
		prompt.WriteString("Reply in plain prose.\n")
	}
	if opts.Tone != "" {
		fmt.Fprintf(&prompt, "Style directive: %s\n", opts.Tone)
	}

	history := opts.History
	if len(history) > memory.RecentWindow {
		history = history[len(history)-memory.RecentWindow:]
	}
	if len(history) > 0 {
		prompt.WriteString("\nRecent conversation:\n")
		for _, m := range history {
			fmt.Fprintf(&prompt, "%s: %s\n", m.Role, m.Content)
		}
	}

	fmt.Fprintf(&prompt, "\nRequest: %s\n\nTool result:\n%s\n", opts.Request, encoded)

	summary := e.drafter.DraftStream(ctx, prompt.String(), opts.ChunkSink)
	if summary == llm.Unavailable {
		return string(encoded)
	}
	return summary
}

func wantsTable(request string) bool {
	lower := strings.ToLower(request)
	for _, p := range tabularPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

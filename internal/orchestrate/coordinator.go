// Package orchestrate drives a request through plan → execute → audit.
//
// The coordinator owns one run at a time: its trace, its per-tool usage
// counters, and its streaming sinks. Steps execute strictly in order on
// the caller's goroutine, never concurrently, so context piping and
// trace ordering stay deterministic. Concurrent chat requests each get
// their own run state; nothing here is shared across runs except the
// injected collaborators (registry, planner, drafter, memory), which are
// themselves safe for concurrent use.
package orchestrate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wardlow/reeve-agent/internal/audit"
	"github.com/wardlow/reeve-agent/internal/events"
	"github.com/wardlow/reeve-agent/internal/memory"
	"github.com/wardlow/reeve-agent/internal/planner"
	"github.com/wardlow/reeve-agent/internal/tool"
	"github.com/wardlow/reeve-agent/internal/trace"
)

// retryDelay is the fixed wait before the single retry of a transient
// step failure. Deliberately constant: no backoff growth.
const retryDelay = time.Second

// noPlanReply is the user-visible reply when planning yields nothing.
const noPlanReply = "I could not determine how to help with that request."

// Budgets caps per-tool invocations within one run. Tools without an
// entry get DefaultBudget; the llm tool is exempt (it is the last-resort
// fallback and must always be available).
type Budgets map[string]int

// DefaultBudget applies to tools without an explicit ceiling.
const DefaultBudget = 3

// DefaultBudgets returns the standard per-tool ceilings.
func DefaultBudgets() Budgets {
	return Budgets{
		tool.NameSearch:     3,
		tool.NameCalculator: 1,
		tool.NameFinance:    2,
	}
}

func (b Budgets) limit(name string) int {
	if n, ok := b[name]; ok {
		return n
	}
	return DefaultBudget
}

// pipedOutputs maps producer tools to the context key under which their
// output is injected into later steps, letting a later step consume an
// earlier structured result without the planner having foreseen it.
var pipedOutputs = map[string]string{
	"review":        "reviews",
	"trending":      "trending",
	tool.NameSearch: "search_results",
}

// StepEvent is delivered to the step-lifecycle sink at step start and
// end.
type StepEvent struct {
	Event   string  `json:"event"` // "step_start" or "step_end"
	Step    float64 `json:"step"`
	Total   int     `json:"total"`
	Tool    string  `json:"tool"`
	Success bool    `json:"success,omitempty"` // valid for step_end only
}

// Sinks are the optional streaming hooks for one run. OnChunk is wired
// only to the final step's drafting, so intermediate steps never
// interleave partial text with the eventual answer.
type Sinks struct {
	OnStep  func(StepEvent)
	OnChunk func(chunk string)
}

// Result is the structured outcome of a run. The entry point always
// returns one; failures are reported in Success/Reply, never as a
// panic or error to the transport layer.
type Result struct {
	RunID      string      `json:"run_id"`
	Reply      string      `json:"reply"`
	Trace      trace.Graph `json:"trace"`
	Tool       string      `json:"tool"`
	Success    bool        `json:"success"`
	Confidence float64     `json:"confidence"`
	// Data is the final step's raw structured output, when any.
	Data any `json:"data,omitempty"`
}

// Coordinator drives the planner → executor loop.
type Coordinator struct {
	planner  planner.Planner
	executor *Executor
	memory   *memory.Store
	bus      *events.Bus
	logger   *slog.Logger
	budgets  Budgets

	// sleep is swappable for tests; production uses a context-aware
	// wait of retryDelay.
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a coordinator. memory and bus may be nil; budgets nil
// means DefaultBudgets.
func New(p planner.Planner, e *Executor, mem *memory.Store, bus *events.Bus, logger *slog.Logger, budgets Budgets) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if budgets == nil {
		budgets = DefaultBudgets()
	}
	return &Coordinator{
		planner:  p,
		executor: e,
		memory:   mem,
		bus:      bus,
		logger:   logger,
		budgets:  budgets,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Run executes a request without streaming.
func (c *Coordinator) Run(ctx context.Context, request, conversationID string, history []memory.Message) Result {
	return c.RunStream(ctx, request, conversationID, history, Sinks{})
}

// RunStream executes a request with optional streaming sinks. It always
// returns a structured result: any panic below is converted into a
// failed result with the panic message as the reply.
func (c *Coordinator) RunStream(ctx context.Context, request, conversationID string, history []memory.Message, sinks Sinks) (result Result) {
	runID := newRunID()
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("orchestration panic", "run_id", runID, "panic", r)
			result = Result{
				RunID:   runID,
				Reply:   fmt.Sprintf("internal error: %v", r),
				Success: false,
				Trace:   result.Trace,
			}
		}
	}()

	c.bus.Publish(events.Event{Source: events.SourceAgent, Kind: events.KindRunStart, Data: map[string]any{
		"run_id":          runID,
		"conversation_id": conversationID,
		"request_len":     len(request),
	}})

	if history == nil && c.memory != nil {
		history = c.memory.Recent(conversationID, memory.RecentWindow)
	}
	tone := ""
	if c.memory != nil {
		tone = c.memory.GetProfile(conversationID).Tone
	}

	g := trace.Graph{}

	steps, err := c.planner.Plan(ctx, request, history, g)
	if err != nil || len(steps) == 0 {
		if err != nil {
			c.logger.Error("planning failed", "run_id", runID, "error", err)
		}
		return c.finish(runID, started, Result{
			RunID:   runID,
			Reply:   noPlanReply,
			Success: false,
			Trace:   g,
		})
	}

	usage := map[string]int{}
	last := Result{RunID: runID, Success: true}

	for i, step := range steps {
		idx := float64(i + 1)

		// Budget check: count the attempt, and redirect over-budget
		// steps to an llm reasoning step over the same input rather
		// than aborting the run. The redirect is recorded as a
		// synthesized sub-step (fractional index).
		if step.Tool != tool.NameLLM {
			usage[step.Tool]++
			if usage[step.Tool] > c.budgets.limit(step.Tool) {
				c.logger.Info("tool budget exceeded, redirecting to llm",
					"run_id", runID, "tool", step.Tool, "used", usage[step.Tool])
				step = planner.Step{Tool: tool.NameLLM, Input: step.Input, Confidence: 0.4}
				idx += 0.5
			}
		}

		step = c.pipeContext(step, g)

		if sinks.OnStep != nil {
			sinks.OnStep(StepEvent{Event: "step_start", Step: idx, Total: len(steps), Tool: step.Tool})
		}
		c.bus.Publish(events.Event{Source: events.SourceAgent, Kind: events.KindStepStart, Data: map[string]any{
			"run_id": runID, "step": idx, "total": len(steps), "tool": step.Tool,
		}})

		opts := StepOptions{Request: request, History: history, Tone: tone}
		if i == len(steps)-1 {
			// Chunk streaming is reserved for the final step so
			// intermediate drafts never interleave with the answer.
			opts.ChunkSink = sinks.OnChunk
		}

		outcome := c.executeWithRetry(ctx, step, g, opts)

		entry := trace.Entry{
			Step:           idx,
			Tool:           step.Tool,
			Input:          step.Input,
			Output:         outcome.Output,
			Success:        outcome.Success,
			Contradictions: audit.DetectContradictions(g, outcome.Output),
			Final:          outcome.Final,
			Cached:         outcome.Cached,
		}
		g = append(g, entry)

		if sinks.OnStep != nil {
			sinks.OnStep(StepEvent{Event: "step_end", Step: idx, Total: len(steps), Tool: step.Tool, Success: outcome.Success})
		}
		c.bus.Publish(events.Event{Source: events.SourceAgent, Kind: events.KindStepDone, Data: map[string]any{
			"run_id": runID, "step": idx, "total": len(steps), "tool": step.Tool, "ok": outcome.Success,
		}})

		if !outcome.Success {
			// Terminal tool failure: surface the tool's error as the
			// reply and stop the run.
			return c.finish(runID, started, Result{
				RunID:      runID,
				Reply:      trace.Stringify(outcome.Output),
				Trace:      g,
				Tool:       step.Tool,
				Success:    false,
				Confidence: audit.CalculateConfidence(g),
			})
		}

		last.Reply = trace.Stringify(outcome.Output)
		last.Tool = step.Tool
		last.Data = outcome.Raw

		if outcome.Final {
			break
		}
	}

	last.Trace = g
	last.Confidence = audit.CalculateConfidence(g)
	return c.finish(runID, started, last)
}

// executeWithRetry runs a step, retrying exactly once after a fixed
// delay when the failure looks transient. The llm tool is exempt: it is
// the always-available fallback and its failures are not network
// weather. The retried attempt does not re-count against the budget.
func (c *Coordinator) executeWithRetry(ctx context.Context, step planner.Step, g trace.Graph, opts StepOptions) Outcome {
	outcome := c.executor.ExecuteStep(ctx, step, g, opts)
	if outcome.Success || step.Tool == tool.NameLLM || !IsTransient(outcome.Err) {
		return outcome
	}

	c.logger.Info("transient step failure, retrying once", "tool", step.Tool, "error", outcome.Err)
	c.sleep(ctx, retryDelay)
	return c.executor.ExecuteStep(ctx, step, g, opts)
}

// pipeContext injects outputs of known producer tools from prior
// successful steps into the next step's context under well-known keys.
// The planner's step is not mutated; a merged copy is returned.
func (c *Coordinator) pipeContext(step planner.Step, g trace.Graph) planner.Step {
	var injected tool.Context
	for _, entry := range g {
		key, ok := pipedOutputs[entry.Tool]
		if !ok || !entry.Success || entry.Output == nil {
			continue
		}
		if injected == nil {
			injected = tool.Context{}
			for k, v := range step.Context {
				injected[k] = v
			}
		}
		injected[key] = entry.Output
	}
	if injected != nil {
		step.Context = injected
	}
	return step
}

func (c *Coordinator) finish(runID string, started time.Time, result Result) Result {
	c.bus.Publish(events.Event{Source: events.SourceAgent, Kind: events.KindRunComplete, Data: map[string]any{
		"run_id":     runID,
		"tool":       result.Tool,
		"ok":         result.Success,
		"steps":      len(result.Trace),
		"confidence": result.Confidence,
		"elapsed_ms": time.Since(started).Milliseconds(),
	}})
	c.logger.Info("run complete",
		"run_id", runID,
		"tool", result.Tool,
		"ok", result.Success,
		"steps", len(result.Trace),
		"elapsed", time.Since(started),
	)
	return result
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wardlow/reeve-agent/internal/llm"
	"github.com/wardlow/reeve-agent/internal/memory"
	"github.com/wardlow/reeve-agent/internal/tool"
	"github.com/wardlow/reeve-agent/internal/trace"
)

// Model defers tool choice to the drafting backend, constrained to a
// fixed allow-list. Anything the model returns that is not strict JSON
// naming an allow-listed tool falls back to the llm step with the
// original request passed through verbatim; an unvalidated tool name is
// never propagated.
//
// Unlike the rule planner, Model is not deterministic: the same request
// may plan differently across calls.
type Model struct {
	drafter *llm.Drafter
	allowed map[string]bool
}

// AllowedTools is the fixed allow-list for model-based planning.
var AllowedTools = []string{
	tool.NameSearch,
	tool.NameCalculator,
	tool.NameFinance,
	tool.NameStockPrice,
	tool.NameWeather,
	tool.NameFile,
	tool.NameLLM,
}

// NewModel creates the model-based planner.
func NewModel(drafter *llm.Drafter) *Model {
	allowed := make(map[string]bool, len(AllowedTools))
	for _, name := range AllowedTools {
		allowed[name] = true
	}
	return &Model{drafter: drafter, allowed: allowed}
}

// planDecision is the strict JSON shape the model must return.
type planDecision struct {
	Tool  string `json:"tool"`
	Input string `json:"input"`
}

// Plan asks the model for a single tool decision and validates it.
func (m *Model) Plan(ctx context.Context, request string, history []memory.Message, traceSoFar trace.Graph) ([]Step, error) {
	fallback := []Step{{Tool: tool.NameLLM, Input: request, Confidence: 0.4}}

	prompt := fmt.Sprintf(
		"Select the single best tool for this request. Reply with ONLY a JSON object "+
			"of the form {\"tool\": \"<name>\", \"input\": \"<tool input>\"} and nothing else.\n"+
			"Valid tool names: %s\n\nRequest: %s",
		strings.Join(AllowedTools, ", "), request)

	reply := m.drafter.Draft(ctx, prompt)
	if reply == llm.Unavailable {
		return fallback, nil
	}

	decision, ok := parseDecision(reply)
	if !ok || !m.allowed[decision.Tool] {
		return fallback, nil
	}

	input := decision.Input
	if input == "" {
		input = request
	}
	return []Step{{Tool: decision.Tool, Input: input, Confidence: 0.7}}, nil
}

// parseDecision extracts and parses the first JSON object in the reply.
// Models often wrap JSON in prose or code fences; anything that does not
// yield a parseable object with a tool name fails closed.
func parseDecision(reply string) (planDecision, bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return planDecision{}, false
	}

	var d planDecision
	if err := json.Unmarshal([]byte(reply[start:end+1]), &d); err != nil {
		return planDecision{}, false
	}
	if d.Tool == "" {
		return planDecision{}, false
	}
	return d, true
}

package builtin

import (
	"context"
	"fmt"

	"github.com/wardlow/reeve-agent/internal/llm"
	"github.com/wardlow/reeve-agent/internal/tool"
)

// LLM returns the reasoning tool: a passthrough to the drafting backend.
// It never reports failure: when the backend is down the sentinel text
// becomes the answer, because this tool is the fallback of last resort.
func LLM(drafter *llm.Drafter) tool.Tool {
	return tool.Func(func(ctx context.Context, input any, tctx tool.Context) tool.Result {
		prompt := fmt.Sprintf("%v", input)
		if extra := contextAddendum(tctx); extra != "" {
			prompt += extra
		}
		return tool.Result{Success: true, Data: drafter.Draft(ctx, prompt)}
	})
}

// contextAddendum folds piped step outputs into the prompt so the
// backend can reason over earlier tool results.
func contextAddendum(tctx tool.Context) string {
	if len(tctx) == 0 {
		return ""
	}
	out := ""
	for _, key := range []string{"search_results", "reviews", "trending"} {
		if v, ok := tctx[key]; ok {
			out += fmt.Sprintf("\n\nContext (%s):\n%v", key, v)
		}
	}
	return out
}

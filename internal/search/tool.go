package search

import (
	"context"

	"github.com/wardlow/reeve-agent/internal/tool"
)

// NewTool adapts a Provider to the tool contract. maxHits caps results
// per query; zero means DefaultCount. Provider errors surface as the
// tool error text so the orchestration loop can classify them.
func NewTool(p Provider, maxHits int) tool.Tool {
	return tool.Func(func(ctx context.Context, input any, _ tool.Context) tool.Result {
		query, ok := input.(string)
		if !ok || query == "" {
			return tool.Result{Success: false, Error: "search expects a non-empty query string"}
		}

		results, err := p.Search(ctx, query, Options{Count: maxHits})
		if err != nil {
			return tool.Result{Success: false, Error: err.Error()}
		}

		return tool.Result{Success: true, Data: map[string]any{
			"query":   query,
			"results": results,
			"listing": FormatResults(results),
		}}
	})
}

// Package search provides the web search layer: a provider interface, a
// SearXNG-backed implementation, and the tool adapter the planner routes
// to.
package search

import (
	"context"
	"fmt"
	"strings"
)

// Result is a single search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Options are optional search parameters.
type Options struct {
	// Count caps how many results are returned. Zero means the provider
	// default.
	Count int `json:"count,omitempty"`
	// Language is an ISO 639-1 code ("en", "de").
	Language string `json:"language,omitempty"`
}

// Provider is the interface search backends implement.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// FormatResults renders results as a numbered plain-text list.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "No results found."
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s\n   %s", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "\n   %s", r.Snippet)
		}
	}
	return b.String()
}

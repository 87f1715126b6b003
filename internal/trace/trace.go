// Package trace defines the execution trace recorded for every
// orchestration run. The trace is the auditable account of what the agent
// actually did: which tools ran, with what input, what came back, and
// what the audit layer flagged.
package trace

import (
	"encoding/json"
	"fmt"
)

// Entry records one executed step. Entries are append-only for the
// duration of a run and owned exclusively by that run's coordinator.
type Entry struct {
	// Step is the 1-based position in the plan. Fractional values mark
	// synthesized follow-up sub-steps (e.g. 2.5 for a fallback injected
	// after planned step 2).
	Step float64 `json:"step"`

	Tool   string `json:"tool"`
	Input  any    `json:"input,omitempty"`
	Output any    `json:"output,omitempty"`

	Success bool `json:"success"`

	// Contradictions holds audit markers raised against this entry.
	Contradictions []string `json:"contradictions,omitempty"`
	// CitationMiss lists claims the audit layer could not tie to a source.
	CitationMiss []string `json:"citation_miss,omitempty"`

	// Final indicates the step short-circuited the rest of the plan.
	Final bool `json:"final,omitempty"`
	// Cached indicates the tool served the result from a cache.
	Cached bool `json:"cached,omitempty"`
}

// Graph is the ordered trace of one orchestration run.
type Graph []Entry

// Last returns the most recent entry, or nil for an empty trace.
func (g Graph) Last() *Entry {
	if len(g) == 0 {
		return nil
	}
	return &g[len(g)-1]
}

// Stringify renders an output value as a comparable string: strings pass
// through, everything else is JSON-encoded. Used by the audit layer's
// lexical comparisons.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// Package audit derives quality signals from an execution trace: a
// confidence score for the final reply and contradiction markers between
// successive outputs.
//
// The contradiction check is deliberately lexical. Two outputs that word
// the same fact differently are flagged; the marker is advisory input to
// the confidence score, not a verdict, and callers must not treat it as
// semantic analysis.
package audit

import (
	"strings"

	"github.com/wardlow/reeve-agent/internal/tool"
	"github.com/wardlow/reeve-agent/internal/trace"
)

// Confidence bounds. Scores are clamped so the agent never claims
// certainty or total ignorance.
const (
	MinConfidence = 0.10
	MaxConfidence = 0.95
)

// baseline is the starting score before adjustments.
const baseline = 0.50

// ContradictionMarker is the fixed marker recorded when successive
// outputs disagree lexically.
const ContradictionMarker = "Potential contradiction detected"

// evidenceTools are tools whose output counts as external evidence.
var evidenceTools = map[string]bool{
	tool.NameSearch:     true,
	tool.NameFinance:    true,
	tool.NameStockPrice: true,
	tool.NameWeather:    true,
	tool.NameFile:       true,
}

// CalculateConfidence scores a trace. Adjustments are additive:
// evidence-backed tool use, diversity of evidence, cached-result reuse,
// and a non-empty final output raise the score; contradictions and
// citation misses lower it. The result is always within
// [MinConfidence, MaxConfidence], even for an empty trace.
func CalculateConfidence(g trace.Graph) float64 {
	score := baseline

	evidenceUses := 0
	distinct := map[string]bool{}
	cached := false
	for _, entry := range g {
		if entry.Success && evidenceTools[entry.Tool] {
			evidenceUses++
			distinct[entry.Tool] = true
		}
		if entry.Cached {
			cached = true
		}
		score -= 0.15 * float64(len(entry.Contradictions))
		score -= 0.05 * float64(len(entry.CitationMiss))
	}

	score += 0.05 * float64(evidenceUses)
	if evidenceUses >= 2 {
		score += 0.05
	}
	if len(distinct) >= 2 {
		score += 0.05
	}
	if cached {
		score += 0.05
	}
	if last := g.Last(); last != nil && last.Success && trace.Stringify(last.Output) != "" {
		score += 0.10
	}

	return clamp(score)
}

// DetectContradictions compares newOutput against the most recent trace
// output. Outputs are compared as strings (structured values are
// JSON-encoded); a non-empty mismatch under both exact and
// case-insensitive comparison yields exactly one ContradictionMarker.
func DetectContradictions(g trace.Graph, newOutput any) []string {
	last := g.Last()
	if last == nil {
		return nil
	}

	prev := trace.Stringify(last.Output)
	next := trace.Stringify(newOutput)
	if prev == "" || next == "" {
		return nil
	}
	if prev == next || strings.EqualFold(prev, next) {
		return nil
	}
	return []string{ContradictionMarker}
}

func clamp(score float64) float64 {
	if score < MinConfidence {
		return MinConfidence
	}
	if score > MaxConfidence {
		return MaxConfidence
	}
	return score
}

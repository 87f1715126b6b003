package orchestrate

import "strings"

// transientPatterns are error-text fragments that indicate a failure
// likely to succeed on a second attempt: network hiccups, dropped
// connections, rate limiting. Matching is case-insensitive substring
// search against the tool's reported error.
var transientPatterns = []string{
	"timeout",
	"timed out",
	"etimedout",
	"connection reset",
	"econnreset",
	"connection refused",
	"econnrefused",
	"socket closed",
	"socket hang up",
	"network",
	"fetch failed",
	"rate limit",
	"too many requests",
}

// IsTransient reports whether an error message looks like a transient
// failure worth one retry.
func IsTransient(errText string) bool {
	if errText == "" {
		return false
	}
	lower := strings.ToLower(errText)
	for _, p := range transientPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

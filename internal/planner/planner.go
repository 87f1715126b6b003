// Package planner converts a natural-language request into an ordered
// sequence of tool steps.
//
// The rule planner classifies requests with an ordered table of
// (predicate, tool, extractor) entries. Precedence is a contract, not an
// implementation detail: later categories assume earlier ones did not
// match, because the categories overlap ("what's the price of AAPL" is
// both an interrogative and a finance request). The order is:
//
//  1. pure arithmetic → calculator
//  2. meta questions about the agent itself → llm
//  3. weather phrasing → weather (with implicit-location resolution)
//  4. market/finance phrasing → stock_price or finance
//  5. file-system phrasing → file
//  6. interrogative / time-sensitive phrasing → search
//  7. everything else → llm
package planner

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/wardlow/reeve-agent/internal/memory"
	"github.com/wardlow/reeve-agent/internal/tool"
	"github.com/wardlow/reeve-agent/internal/trace"
)

// Step is one planned tool invocation. Steps are immutable once handed
// to the coordinator; Confidence is advisory only.
type Step struct {
	Tool       string       `json:"tool"`
	Input      any          `json:"input"`
	Context    tool.Context `json:"context,omitempty"`
	Confidence float64      `json:"confidence"`
}

// Planner produces a plan for a request. Implementations always return a
// slice; single-step planners are adapted at the boundary (see Single),
// never special-cased downstream.
type Planner interface {
	Plan(ctx context.Context, request string, history []memory.Message, traceSoFar trace.Graph) ([]Step, error)
}

// Func adapts a function to the Planner interface.
type Func func(ctx context.Context, request string, history []memory.Message, traceSoFar trace.Graph) ([]Step, error)

// Plan implements Planner.
func (f Func) Plan(ctx context.Context, request string, history []memory.Message, traceSoFar trace.Graph) ([]Step, error) {
	return f(ctx, request, history, traceSoFar)
}

// Single adapts a legacy single-step planner function into a Planner that
// returns a one-element sequence.
func Single(fn func(ctx context.Context, request string, history []memory.Message, traceSoFar trace.Graph) (Step, error)) Planner {
	return Func(func(ctx context.Context, request string, history []memory.Message, traceSoFar trace.Graph) ([]Step, error) {
		step, err := fn(ctx, request, history, traceSoFar)
		if err != nil {
			return nil, err
		}
		return []Step{step}, nil
	})
}

// rule is one row of the classification table.
type rule struct {
	name  string
	match func(req, lower string) bool
	build func(req, lower string) Step
}

// Rules is the rule-based planner.
type Rules struct {
	table []rule
}

// NewRules creates the rule planner with the fixed precedence table.
func NewRules() *Rules {
	r := &Rules{}
	r.table = []rule{
		{name: "arithmetic", match: matchArithmetic, build: buildArithmetic},
		{name: "meta", match: matchMeta, build: buildMeta},
		{name: "weather", match: matchWeather, build: buildWeather},
		{name: "finance", match: matchFinance, build: buildFinance},
		{name: "file", match: matchFile, build: buildFile},
		{name: "search", match: matchSearch, build: buildSearch},
	}
	return r
}

// Plan classifies the request against the table in order; the first match
// wins. Requests that match nothing, including empty or whitespace-only
// requests, fall through to the llm step.
func (r *Rules) Plan(ctx context.Context, request string, history []memory.Message, traceSoFar trace.Graph) ([]Step, error) {
	req := strings.TrimSpace(request)
	lower := strings.ToLower(req)

	if req != "" {
		for _, rl := range r.table {
			if rl.match(req, lower) {
				return []Step{rl.build(req, lower)}, nil
			}
		}
	}

	return []Step{{Tool: tool.NameLLM, Input: request, Confidence: 0.4}}, nil
}

// --- arithmetic ---

var arithmeticRe = regexp.MustCompile(`^[0-9+\-*/().\s]+$`)

// arithmeticPrefixes are conversational wrappers around a bare expression
// ("what's 12*7", "calculate 2+2"). They are stripped before the
// pure-expression test so such requests still land on the calculator.
var arithmeticPrefixes = []string{"what is", "what's", "whats", "calculate", "compute", "evaluate", "solve"}

// arithmeticExpression returns the bare expression within a request, or
// "" when the request is not purely arithmetic.
func arithmeticExpression(req, lower string) string {
	expr := req
	for _, p := range arithmeticPrefixes {
		if strings.HasPrefix(lower, p) {
			expr = strings.TrimSpace(req[len(p):])
			break
		}
	}
	expr = strings.TrimRight(expr, "?!. ")
	if expr != "" && arithmeticRe.MatchString(expr) && strings.ContainsAny(expr, "0123456789") {
		return expr
	}
	return ""
}

func matchArithmetic(req, lower string) bool {
	return arithmeticExpression(req, lower) != ""
}

func buildArithmetic(req, lower string) Step {
	return Step{Tool: tool.NameCalculator, Input: arithmeticExpression(req, lower), Confidence: 0.95}
}

// --- meta (questions about the agent itself) ---

var metaPhrases = []string{
	"what can you do",
	"what do you do",
	"who are you",
	"what are you",
	"your capabilities",
	"what tools",
	"how do you work",
	"are you an ai",
}

func matchMeta(req, lower string) bool {
	for _, p := range metaPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func buildMeta(req, lower string) Step {
	return Step{Tool: tool.NameLLM, Input: req, Confidence: 0.9}
}

// --- weather ---

var weatherWords = []string{"weather", "forecast", "temperature outside", "raining", "rain today", "sunny", "snowing"}

// locationRe grabs a trailing capitalized-looking phrase after "in"/"for".
var locationRe = regexp.MustCompile(`(?i)\b(?:in|for)\s+([a-zA-Z][a-zA-Z .'-]*?)\s*[?.!]*$`)

func matchWeather(req, lower string) bool {
	for _, w := range weatherWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func buildWeather(req, lower string) Step {
	step := Step{Tool: tool.NameWeather, Confidence: 0.8, Context: tool.Context{}}

	if containsWord(lower, "here") {
		// Sentinel: an external collaborator resolves the caller's
		// location from their IP before execution.
		step.Context["resolve_location"] = "ip"
		step.Input = req
		return step
	}

	if m := locationRe.FindStringSubmatch(req); m != nil {
		city := titleCase(strings.TrimSpace(m[1]))
		step.Context["location"] = city
		step.Input = city
		return step
	}

	step.Input = req
	return step
}

// --- finance ---

// sectorKeywords maps market phrasing to canonical sector names.
var sectorKeywords = map[string]string{
	"tech":        "technology",
	"technology":  "technology",
	"software":    "technology",
	"healthcare":  "healthcare",
	"health care": "healthcare",
	"pharma":      "healthcare",
	"energy":      "energy",
	"oil":         "energy",
	"bank":        "financials",
	"banking":     "financials",
	"financial":   "financials",
	"retail":      "consumer",
	"consumer":    "consumer",
}

var financeWords = []string{
	"stock", "stocks", "share", "shares", "market", "markets",
	"ticker", "nasdaq", "dow jones", "s&p", "equity", "equities",
	"gainers", "losers",
}

var (
	topNRe   = regexp.MustCompile(`(?i)\btop\s+(\d+)\b`)
	tickerRe = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
)

func matchFinance(req, lower string) bool {
	for _, w := range financeWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	// "price"/"quote" alone only counts when a bare ticker is present.
	if strings.Contains(lower, "price") || strings.Contains(lower, "quote") {
		return extractTicker(req) != ""
	}
	return false
}

func buildFinance(req, lower string) Step {
	sector := ""
	for keyword, canonical := range sectorKeywords {
		if strings.Contains(lower, keyword) {
			sector = canonical
			break
		}
	}

	limit := 0
	if m := topNRe.FindStringSubmatch(req); m != nil {
		limit, _ = strconv.Atoi(m[1])
	}

	symbol := ""
	if strings.Contains(lower, "price") || strings.Contains(lower, "quote") {
		symbol = extractTicker(req)
	}

	// A bare symbol with no sector routes to the single-quote tool;
	// everything else is a screener-style finance request.
	if symbol != "" && sector == "" {
		return Step{
			Tool:       tool.NameStockPrice,
			Input:      symbol,
			Context:    tool.Context{"symbol": symbol},
			Confidence: 0.8,
		}
	}

	input := map[string]any{}
	if sector != "" {
		input["sector"] = sector
	}
	if limit > 0 {
		input["limit"] = limit
	}
	if symbol != "" {
		input["symbol"] = symbol
	}
	if len(input) == 0 {
		return Step{Tool: tool.NameFinance, Input: req, Confidence: 0.7}
	}
	return Step{Tool: tool.NameFinance, Input: input, Confidence: 0.75}
}

// extractTicker finds a bare 1-5 letter uppercase token that is not a
// common all-caps word.
func extractTicker(req string) string {
	for _, m := range tickerRe.FindAllString(req, -1) {
		switch m {
		case "I", "A", "OK", "USD", "EUR", "TOP", "US":
			continue
		}
		return m
	}
	return ""
}

// --- file ---

var fileOpWords = []string{"scan", "read", "write", "delete", "remove", "duplicate", "duplicates", "list"}
var fileNounWords = []string{"file", "files", "folder", "directory", "dir", "disk"}
var newsWords = []string{"news", "latest", "headline", "article"}

var (
	absPathRe   = regexp.MustCompile(`(/[\w./\-]+)`)
	namedPathRe = regexp.MustCompile(`(?i)\b(?:folder|file|directory)\s+(\S+)`)
)

func matchFile(req, lower string) bool {
	// News-like phrasing ("scan the latest headlines") is not a file
	// request even when it shares verbs with one.
	for _, w := range newsWords {
		if strings.Contains(lower, w) {
			return false
		}
	}

	hasOp := false
	for _, w := range fileOpWords {
		if containsWord(lower, w) {
			hasOp = true
			break
		}
	}
	if !hasOp {
		return false
	}
	for _, w := range fileNounWords {
		if containsWord(lower, w) {
			return true
		}
	}
	return false
}

func buildFile(req, lower string) Step {
	op := "scan"
	switch {
	case strings.Contains(lower, "duplicate"):
		op = "duplicates"
	case containsWord(lower, "read"):
		op = "read"
	case containsWord(lower, "write"):
		op = "write"
	case containsWord(lower, "delete") || containsWord(lower, "remove"):
		op = "delete"
	}

	path := "."
	if m := absPathRe.FindStringSubmatch(req); m != nil {
		path = m[1]
	} else if m := namedPathRe.FindStringSubmatch(req); m != nil {
		path = strings.Trim(m[1], `"'?.!,`)
	}

	return Step{
		Tool:       tool.NameFile,
		Input:      map[string]any{"op": op, "path": path},
		Confidence: 0.8,
	}
}

// --- search ---

var interrogatives = []string{"who", "what", "when", "where", "why", "how"}
var timeSensitiveWords = []string{"latest", "news", "find", "current", "today", "recent"}

func matchSearch(req, lower string) bool {
	words := strings.Fields(lower)
	if len(words) > 0 {
		first := strings.Trim(words[0], "'s")
		for _, q := range interrogatives {
			if first == q || strings.HasPrefix(words[0], q+"'") {
				return true
			}
		}
	}
	for _, w := range timeSensitiveWords {
		if containsWord(lower, w) {
			return true
		}
	}
	return false
}

func buildSearch(req, lower string) Step {
	return Step{Tool: tool.NameSearch, Input: req, Confidence: 0.6}
}

// --- helpers ---

func containsWord(lower, word string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		startOK := start == 0 || !isWordChar(lower[start-1])
		endOK := end == len(lower) || !isWordChar(lower[end])
		if startOK && endOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

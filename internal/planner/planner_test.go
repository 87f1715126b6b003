package planner

import (
	"context"
	"testing"

	"github.com/wardlow/reeve-agent/internal/tool"
)

func planOne(t *testing.T, request string) Step {
	t.Helper()
	steps, err := NewRules().Plan(context.Background(), request, nil, nil)
	if err != nil {
		t.Fatalf("Plan(%q): %v", request, err)
	}
	if len(steps) != 1 {
		t.Fatalf("Plan(%q) returned %d steps, want 1", request, len(steps))
	}
	return steps[0]
}

func TestPlanRouting(t *testing.T) {
	tests := []struct {
		request  string
		wantTool string
	}{
		{"2 + 2 * 3", tool.NameCalculator},
		{"(17 - 3) / 2", tool.NameCalculator},
		{"what's 12*7", tool.NameCalculator},
		{"calculate 144 / 12", tool.NameCalculator},
		{"what can you do?", tool.NameLLM},
		{"who are you", tool.NameLLM},
		{"what's the weather in paris?", tool.NameWeather},
		{"weather forecast for here", tool.NameWeather},
		{"top 5 tech stocks", tool.NameFinance},
		{"how is the market doing today", tool.NameFinance},
		{"price of AAPL", tool.NameStockPrice},
		{"quote for MSFT", tool.NameStockPrice},
		{"scan my downloads folder /home/pat/Downloads for duplicates", tool.NameFile},
		{"read file notes.txt", tool.NameFile},
		{"who won the world cup", tool.NameSearch},
		{"latest developments in fusion energy", tool.NameSearch},
		{"tell me a story about a fox", tool.NameLLM},
		{"", tool.NameLLM},
		{"   ", tool.NameLLM},
	}

	for _, tt := range tests {
		got := planOne(t, tt.request)
		if got.Tool != tt.wantTool {
			t.Errorf("Plan(%q) tool = %q, want %q", tt.request, got.Tool, tt.wantTool)
		}
	}
}

func TestArithmeticNeverRoutesElsewhere(t *testing.T) {
	// Interrogative phrasing overlaps with the search rule; arithmetic
	// precedence must win.
	step := planOne(t, "what's 12*7")
	if step.Tool != tool.NameCalculator {
		t.Fatalf("tool = %q, want calculator", step.Tool)
	}
	if step.Input != "12*7" {
		t.Errorf("input = %v, want bare expression", step.Input)
	}
}

func TestWeatherLocationExtraction(t *testing.T) {
	step := planOne(t, "what's the weather in new york?")
	if step.Tool != tool.NameWeather {
		t.Fatalf("tool = %q, want weather", step.Tool)
	}
	if loc := step.Context["location"]; loc != "New York" {
		t.Errorf("location = %v, want title-cased New York", loc)
	}
}

func TestWeatherHereSentinel(t *testing.T) {
	step := planOne(t, "is it raining here?")
	if step.Tool != tool.NameWeather {
		t.Fatalf("tool = %q, want weather", step.Tool)
	}
	if step.Context["resolve_location"] != "ip" {
		t.Errorf("context = %v, want resolve_location=ip sentinel", step.Context)
	}
}

func TestFinanceExtraction(t *testing.T) {
	step := planOne(t, "show me the top 5 tech stocks")
	input, ok := step.Input.(map[string]any)
	if !ok {
		t.Fatalf("input = %T, want map", step.Input)
	}
	if input["sector"] != "technology" {
		t.Errorf("sector = %v, want technology", input["sector"])
	}
	if input["limit"] != 5 {
		t.Errorf("limit = %v, want 5", input["limit"])
	}
}

func TestBareTickerNeedsPriceGate(t *testing.T) {
	// A bare uppercase token without price/quote phrasing is not a
	// stock request.
	step := planOne(t, "tell me about NASA")
	if step.Tool == tool.NameStockPrice {
		t.Errorf("tool = stock_price for %q, want anything else", "tell me about NASA")
	}
}

func TestFileExtraction(t *testing.T) {
	step := planOne(t, "scan /var/log for duplicate files")
	input, ok := step.Input.(map[string]any)
	if !ok {
		t.Fatalf("input = %T, want map", step.Input)
	}
	if input["op"] != "duplicates" {
		t.Errorf("op = %v, want duplicates", input["op"])
	}
	if input["path"] != "/var/log" {
		t.Errorf("path = %v, want /var/log", input["path"])
	}
}

func TestFileDefaultsToCurrentDirectory(t *testing.T) {
	step := planOne(t, "list the files")
	input := step.Input.(map[string]any)
	if input["path"] != "." {
		t.Errorf("path = %v, want .", input["path"])
	}
}

func TestNewsPhrasingDoesNotRouteToFile(t *testing.T) {
	step := planOne(t, "scan the latest news about file systems")
	if step.Tool != tool.NameSearch {
		t.Errorf("tool = %q, want search for news-like phrasing", step.Tool)
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	requests := []string{"2+2", "top 3 energy stocks", "weather in oslo", "who invented velcro"}
	for _, req := range requests {
		first := planOne(t, req)
		for i := 0; i < 5; i++ {
			again := planOne(t, req)
			if again.Tool != first.Tool {
				t.Errorf("Plan(%q) unstable: %q then %q", req, first.Tool, again.Tool)
			}
		}
	}
}

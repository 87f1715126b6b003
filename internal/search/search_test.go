package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearXNGSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "go releases" {
			t.Errorf("q = %q, want go releases", got)
		}
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("format = %q, want json", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"title":"Go <b>1.24</b> released","url":"https://go.dev/blog/go1.24","content":"The latest <em>Go</em> release."},
			{"title":"Release history","url":"https://go.dev/doc/devel/release","content":""},
			{"title":"Third","url":"https://example.com/3","content":"c"},
			{"title":"Fourth","url":"https://example.com/4","content":"d"}
		]}`))
	}))
	defer srv.Close()

	p := NewSearXNG(srv.URL)
	results, err := p.Search(context.Background(), "go releases", Options{Count: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Title != "Go 1.24 released" {
		t.Errorf("title = %q, want markup stripped", results[0].Title)
	}
	if results[0].Snippet != "The latest Go release." {
		t.Errorf("snippet = %q, want markup stripped", results[0].Snippet)
	}
	if results[1].URL != "https://go.dev/doc/devel/release" {
		t.Errorf("url = %q", results[1].URL)
	}
}

func TestSearXNGHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewSearXNG(srv.URL)
	_, err := p.Search(context.Background(), "anything", Options{})
	if err == nil {
		t.Fatal("Search succeeded on HTTP 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v, want status in message", err)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"  spaced   out  ", "spaced out"},
		{"<b>bold</b> and <em>italic</em>", "bold and italic"},
		{"before<script>alert(1)</script>after", "before after"},
		{"a &amp; b", "a & b"},
		{"<p>one</p><p>two</p>", "one two"},
	}
	for _, tt := range tests {
		if got := StripHTML(tt.in); got != tt.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatResults(t *testing.T) {
	if got := FormatResults(nil); got != "No results found." {
		t.Errorf("FormatResults(nil) = %q", got)
	}

	got := FormatResults([]Result{
		{Title: "One", URL: "http://a", Snippet: "first"},
		{Title: "Two", URL: "http://b"},
	})
	if !strings.Contains(got, "1. One") || !strings.Contains(got, "2. Two") {
		t.Errorf("FormatResults = %q, want numbered entries", got)
	}
	if !strings.Contains(got, "first") {
		t.Errorf("FormatResults = %q, want snippet included", got)
	}
}

func TestToolAdapter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"title":"T","url":"http://t","content":"s"}]}`))
	}))
	defer srv.Close()

	st := NewTool(NewSearXNG(srv.URL), 5)

	res := st.Invoke(context.Background(), "query", nil)
	if !res.Success {
		t.Fatalf("tool failed: %s", res.Error)
	}
	data := res.Data.(map[string]any)
	if data["query"] != any("query") {
		t.Errorf("query = %v", data["query"])
	}
	if results := data["results"].([]Result); len(results) != 1 || results[0].Title != "T" {
		t.Errorf("results = %v", data["results"])
	}

	if res := st.Invoke(context.Background(), 7, nil); res.Success {
		t.Error("non-string input accepted")
	}
	if res := st.Invoke(context.Background(), "", nil); res.Success {
		t.Error("empty query accepted")
	}
}

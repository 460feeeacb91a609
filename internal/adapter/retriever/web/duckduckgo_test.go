package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"deepsearch/internal/domain/search"
)

const litePage = `
<html><body>
<table>
<tr><td>1.</td><td><a rel="nofollow" href="https://example.com/a" class="result-link">First <b>Result</b></a></td></tr>
<tr><td></td><td class="result-snippet">Snippet about the <b>first</b> result.</td></tr>
<tr><td>2.</td><td><a rel="nofollow" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.org%2Fb&amp;rut=abc" class="result-link">Second</a></td></tr>
<tr><td></td><td class="result-snippet">Second snippet.</td></tr>
</table>
</body></html>`

func TestParseLitePage(t *testing.T) {
	links, snippets := parseLitePage(litePage)

	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}
	if links[0] != "https://example.com/a" {
		t.Errorf("link 0 = %s", links[0])
	}
	// 跳转包装解包为原始 URL
	if links[1] != "https://example.org/b" {
		t.Errorf("link 1 = %s, want unwrapped https://example.org/b", links[1])
	}

	if len(snippets) != 2 {
		t.Fatalf("got %d snippets, want 2", len(snippets))
	}
	if snippets[0] != "Snippet about the first result." {
		t.Errorf("snippet 0 = %q, want tags stripped", snippets[0])
	}
}

func TestUnwrapRedirect(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/page", "https://example.com/page"},
		{"https://duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fx", "https://example.com/x"},
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.org", "https://example.org"},
		{"https://duckduckgo.com/l/?other=1", "https://duckduckgo.com/l/?other=1"},
	}

	for _, tt := range tests {
		if got := unwrapRedirect(tt.in); got != tt.want {
			t.Errorf("unwrapRedirect(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil || r.FormValue("q") == "" {
			t.Errorf("missing q form value")
		}
		w.Write([]byte(litePage))
	}))
	defer srv.Close()

	d := NewDuckDuckGo(Config{Endpoint: srv.URL})
	results, err := d.Search(context.Background(), []string{"test query"}, search.SearchOptions{TopK: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d result groups, want 1", len(results))
	}

	// topK=1 截断到单条，以 URL 为 source
	r := results[0]
	if len(r.Texts) != 1 || len(r.URLs) != 1 {
		t.Fatalf("got %d texts / %d urls, want 1 each", len(r.Texts), len(r.URLs))
	}
	if r.URLs[0] != "https://example.com/a" {
		t.Fatalf("url = %s", r.URLs[0])
	}

	sources, err := r.Sources()
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if sources[0] != "https://example.com/a" {
		t.Fatalf("source = %s, want url", sources[0])
	}
}

func TestDuckDuckGoEmptyQuery(t *testing.T) {
	d := NewDuckDuckGo(Config{Endpoint: "http://unused"})
	if _, err := d.Search(context.Background(), []string{"  "}, search.SearchOptions{TopK: 5}); err == nil {
		t.Fatal("expected error for blank query")
	}
}

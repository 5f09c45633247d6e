package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTavilySearch(t *testing.T) {
	var got tavilyRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"results":[
			{"title":"A","url":"https://a","content":"first","score":0.9},
			{"title":"B","url":"https://b","content":"second","score":0.8},
			{"title":"C","url":"https://c","content":"third","score":0.7},
			{"title":"D","url":"https://d","content":"fourth","score":0.6}
		]}`))
	}))
	defer srv.Close()

	s := NewTavily("tvly-key", WithTavilyBaseURL(srv.URL+"/"))
	hits, err := s.Search(context.Background(), "go generics", DefaultMaxResults)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "A", hits[0].Title)
	assert.Equal(t, "https://a", hits[0].URL)
	assert.Equal(t, "go generics", got.Query)
	assert.Equal(t, 3, got.MaxResults)
	assert.Equal(t, "Bearer tvly-key", auth)
}

func TestTavilySearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"bad key"}`))
	}))
	defer srv.Close()

	_, err := NewTavily("x", WithTavilyBaseURL(srv.URL)).Search(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

const ddgPage = `<html><body>
<div class="result result--ad"><a class="result__a" href="https://ads">Ad</a></div>
<div class="result">
  <h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&rut=abc">The Go Programming Language</a></h2>
  <a class="result__snippet">Go is an open source programming language.</a>
</div>
<div class="result">
  <h2><a class="result__a" href="https://pkg.go.dev/">Go Packages</a></h2>
  <a class="result__snippet">Discover packages.</a>
</div>
</body></html>`

func TestDuckDuckGoSearch(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	d := NewDuckDuckGo(WithDuckDuckGoBaseURL(srv.URL + "/html/"))
	hits, err := d.Search(context.Background(), "golang", 3)
	require.NoError(t, err)
	assert.Equal(t, "golang", query)
	require.Len(t, hits, 2)
	assert.Equal(t, "The Go Programming Language", hits[0].Title)
	assert.Equal(t, "https://go.dev/", hits[0].URL)
	assert.Equal(t, "Go is an open source programming language.", hits[0].Content)
	assert.Equal(t, "https://pkg.go.dev/", hits[1].URL)

	hits, err = d.Search(context.Background(), "golang", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

type staticSearcher struct {
	hits []tools.SearchResult
	max  int
}

func (s *staticSearcher) Name() string        { return "static_search" }
func (s *staticSearcher) Description() string { return "static" }
func (s *staticSearcher) Search(_ context.Context, _ string, maxResults int) ([]tools.SearchResult, error) {
	s.max = maxResults
	return s.hits, nil
}

func TestNewToolRendersFirstHit(t *testing.T) {
	s := &staticSearcher{hits: []tools.SearchResult{
		{Title: "T", URL: "https://t", Content: "body"},
		{Title: "U", URL: "https://u", Content: "other"},
	}}
	def, err := NewTool(s, 0)
	require.NoError(t, err)
	assert.Equal(t, "static_search", def.Name)
	assert.Equal(t, tools.ResultKindSearch, def.ResultKind)

	out, err := def.Function.ExecuteWithContext(context.Background(), []byte(`{"query":"q"}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxResults, s.max)

	res, err := tools.ToResult(def.ResultKind, out)
	require.NoError(t, err)
	assert.Equal(t, "Title: T\nURL: https://t\nContent: body", res.Render())
}

func TestNewToolRejectsEmptyQuery(t *testing.T) {
	def, err := NewTool(&staticSearcher{}, 3)
	require.NoError(t, err)
	_, err = def.Function.ExecuteWithContext(context.Background(), []byte(`{"query":"  "}`))
	require.Error(t, err)
}

func TestNew(t *testing.T) {
	s, err := New(Options{APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &Tavily{}, s)

	_, err = New(Options{Provider: ProviderTavily})
	require.Error(t, err)

	s, err = New(Options{Provider: "DuckDuckGo"})
	require.NoError(t, err)
	assert.IsType(t, &DuckDuckGo{}, s)

	_, err = New(Options{Provider: "bing"})
	require.Error(t, err)
}

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultTavilyBaseURL = "https://api.tavily.com"

type Tavily struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ Searcher = (*Tavily)(nil)

type TavilyOption func(*Tavily)

// WithTavilyBaseURL is ignored when url is empty.
func WithTavilyBaseURL(url string) TavilyOption {
	return func(t *Tavily) {
		if url != "" {
			t.baseURL = strings.TrimRight(url, "/")
		}
	}
}

func WithTavilyHTTPClient(c *http.Client) TavilyOption {
	return func(t *Tavily) {
		t.client = c
	}
}

func NewTavily(apiKey string, opts ...TavilyOption) *Tavily {
	t := &Tavily{
		apiKey:  apiKey,
		baseURL: defaultTavilyBaseURL,
		client:  http.DefaultClient,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tavily) Name() string {
	return "tavily_search_results_json"
}

func (t *Tavily) Description() string {
	return "A search engine optimized for comprehensive, accurate, and trusted results. " +
		"Useful for when you need to answer questions about current events. Input should be a search query."
}

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]tools.SearchResult, error) {
	body, err := json.Marshal(tavilyRequest{
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: "basic",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "tavily search request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "could not read tavily response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("tavily returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Wrap(err, "could not parse tavily response")
	}

	ret := make([]tools.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		ret = append(ret, tools.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	if len(ret) > maxResults {
		ret = ret[:maxResults]
	}

	log.Debug().Str("query", query).Int("results", len(ret)).Msg("tavily search")
	return ret, nil
}

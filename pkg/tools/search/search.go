// Package search provides web search tools whose results are rendered by the
// executor as search results.
package search

import (
	"context"
	"strings"

	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/pkg/errors"
)

// DefaultMaxResults is the number of hits requested when nothing is configured.
const DefaultMaxResults = 3

// Searcher runs a web search and returns ranked hits.
type Searcher interface {
	Name() string
	Description() string
	Search(ctx context.Context, query string, maxResults int) ([]tools.SearchResult, error)
}

type Input struct {
	Query string `json:"query" jsonschema:"required,description=The search query."`
}

// NewTool wraps a Searcher as a tool named after the searcher.
func NewTool(s Searcher, maxResults int) (*tools.ToolDefinition, error) {
	if s == nil {
		return nil, errors.New("searcher cannot be nil")
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return tools.NewToolFromFunc(
		s.Name(),
		s.Description(),
		func(ctx context.Context, in Input) ([]tools.SearchResult, error) {
			query := strings.TrimSpace(in.Query)
			if query == "" {
				return nil, errors.New("query is required")
			}
			return s.Search(ctx, query, maxResults)
		},
		tools.WithResultKind(tools.ResultKindSearch),
		tools.WithTags("search"),
	)
}

// Provider names accepted by New.
const (
	ProviderTavily     = "tavily"
	ProviderDuckDuckGo = "duckduckgo"
)

type Options struct {
	Provider string
	APIKey   string
	BaseURL  string
}

// New returns the searcher for a configured provider. Tavily is the default
// and needs an API key.
func New(opts Options) (Searcher, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", ProviderTavily:
		if opts.APIKey == "" {
			return nil, errors.New("tavily search needs an api key")
		}
		return NewTavily(opts.APIKey, WithTavilyBaseURL(opts.BaseURL)), nil
	case ProviderDuckDuckGo, "ddg":
		return NewDuckDuckGo(WithDuckDuckGoBaseURL(opts.BaseURL)), nil
	default:
		return nil, errors.Errorf("unknown search provider %q", opts.Provider)
	}
}

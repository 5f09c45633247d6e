package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-go-golems/planexec/pkg/inference/tools"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultDuckDuckGoBaseURL = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the HTML results page. It needs no API key.
type DuckDuckGo struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

var _ Searcher = (*DuckDuckGo)(nil)

type DuckDuckGoOption func(*DuckDuckGo)

// WithDuckDuckGoBaseURL is ignored when url is empty.
func WithDuckDuckGoBaseURL(url string) DuckDuckGoOption {
	return func(d *DuckDuckGo) {
		if url != "" {
			d.baseURL = url
		}
	}
}

func WithDuckDuckGoHTTPClient(c *http.Client) DuckDuckGoOption {
	return func(d *DuckDuckGo) {
		d.client = c
	}
}

func NewDuckDuckGo(opts ...DuckDuckGoOption) *DuckDuckGo {
	d := &DuckDuckGo{
		baseURL:   defaultDuckDuckGoBaseURL,
		client:    http.DefaultClient,
		userAgent: "Mozilla/5.0 (compatible; planexec)",
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *DuckDuckGo) Name() string {
	return "duckduckgo_search"
}

func (d *DuckDuckGo) Description() string {
	return "A web search engine. Useful for when you need to answer questions about current events. " +
		"Input should be a search query."
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]tools.SearchResult, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid duckduckgo base url")
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "duckduckgo search request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("duckduckgo returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse duckduckgo results")
	}

	ret := parseResults(doc, maxResults)
	log.Debug().Str("query", query).Int("results", len(ret)).Msg("duckduckgo search")
	return ret, nil
}

func parseResults(doc *goquery.Document, maxResults int) []tools.SearchResult {
	ret := []tools.SearchResult{}
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return true
		}
		ret = append(ret, tools.SearchResult{
			Title:   title,
			URL:     resolveRedirect(href),
			Content: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
		return len(ret) < maxResults
	})
	return ret
}

// resolveRedirect unwraps "//duckduckgo.com/l/?uddg=<target>" links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

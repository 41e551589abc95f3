package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/soyeahso/agentdesk/internal/agent"
	"github.com/soyeahso/agentdesk/internal/logging"
)

// Endpoints are the upstream base URLs, overridable for tests.
type Endpoints struct {
	ExchangeRate string
	SerperSearch string
	SerperScrape string
	BraveSearch  string
	Weather      string
}

// DefaultEndpoints are the production URLs.
var DefaultEndpoints = Endpoints{
	ExchangeRate: "https://hexarate.paikama.co/api/rates/latest",
	SerperSearch: "https://google.serper.dev/search",
	SerperScrape: "https://scrape.serper.dev/",
	BraveSearch:  "https://api.search.brave.com/res/v1/web/search",
	Weather:      "https://api.weather.gov",
}

func (e Endpoints) withDefaults() Endpoints {
	d := DefaultEndpoints
	if e.ExchangeRate != "" {
		d.ExchangeRate = e.ExchangeRate
	}
	if e.SerperSearch != "" {
		d.SerperSearch = e.SerperSearch
	}
	if e.SerperScrape != "" {
		d.SerperScrape = e.SerperScrape
	}
	if e.BraveSearch != "" {
		d.BraveSearch = e.BraveSearch
	}
	if e.Weather != "" {
		d.Weather = e.Weather
	}
	return d
}

// Web bundles the HTTP-backed search and lookup tools.
type Web struct {
	client    *retryablehttp.Client
	endpoints Endpoints
	serperKey string
	braveKey  string
	log       *logging.Logger
}

// NewWeb creates the web tools.
func NewWeb(client *retryablehttp.Client, endpoints Endpoints, serperKey, braveKey string, log *logging.Logger) *Web {
	return &Web{
		client:    client,
		endpoints: endpoints.withDefaults(),
		serperKey: serperKey,
		braveKey:  braveKey,
		log:       log.Sub("tools.web"),
	}
}

// ExchangeRate returns the raw JSON rate for base→target, or "null" when
// it cannot be fetched.
func (w *Web) ExchangeRate(ctx context.Context, base, target string) string {
	u := fmt.Sprintf("%s/%s?target=%s", strings.TrimRight(w.endpoints.ExchangeRate, "/"),
		url.PathEscape(strings.ToUpper(base)), url.QueryEscape(strings.ToUpper(target)))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "null"
	}
	body, err := do(w.client, req)
	if err != nil {
		w.log.Error().Err(err).Str("base", base).Str("target", target).Msg("exchange rate lookup failed")
		return "null"
	}
	return compactJSON(body, "null")
}

func (w *Web) serperPost(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", w.serperKey)
	req.Header.Set("Content-Type", "application/json")
	return do(w.client, req)
}

// SerperSearch runs a Google search through Serper and returns its JSON,
// or "null" on any failure.
func (w *Web) SerperSearch(ctx context.Context, query string) string {
	body, err := w.serperPost(ctx, w.endpoints.SerperSearch, map[string]string{"q": query})
	if err != nil {
		w.log.Error().Err(err).Msg("error occurred")
		return "null"
	}
	return compactJSON(body, "null")
}

// Scrape fetches a page through the Serper scraper. Failures come back as
// {"ERROR": msg}.
func (w *Web) Scrape(ctx context.Context, pageURL string) string {
	body, err := w.serperPost(ctx, w.endpoints.SerperScrape, map[string]string{"url": pageURL})
	if err == nil && !json.Valid(body) {
		err = fmt.Errorf("invalid JSON in response")
	}
	if err != nil {
		w.log.Error().Err(err).Str("url", pageURL).Msg("error occurred")
		out, _ := json.Marshal(map[string]string{"ERROR": err.Error()})
		return string(out)
	}
	w.log.Info().Str("url", pageURL).Msg("scraped URL")
	return compactJSON(body, "null")
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// BraveSearch runs a Brave web search and formats the hits.
func (w *Web) BraveSearch(ctx context.Context, query string, count int) (string, error) {
	if count <= 0 {
		count = 10
	}
	count = min(count, 20)

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))
	params.Set("country", "US")
	params.Set("search_lang", "en")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, w.endpoints.BraveSearch+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("X-Subscription-Token", w.braveKey)

	body, err := do(w.client, req)
	if err != nil {
		return "", err
	}
	var resp braveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return formatBrave(resp), nil
}

func formatBrave(resp braveResponse) string {
	if len(resp.Web.Results) == 0 {
		return "No results found."
	}
	var b strings.Builder
	for i, r := range resp.Web.Results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   Source: %s\n\n", i+1, r.Title, r.Description, r.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func compactJSON(body []byte, fallback string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return fallback
	}
	return buf.String()
}

// Tools returns the web tools. Search tools whose key is missing are left
// out.
func (w *Web) Tools() []agent.Tool {
	out := []agent.Tool{
		agent.NewFuncTool("get_exchange_rate",
			"Fetches the current exchange rate between two currencies, e.g. base SGD and target JPY.",
			`{"type":"object","properties":{"base":{"type":"string","description":"The base currency"},"target":{"type":"string","description":"The target currency"}},"required":["base","target"]}`,
			func(ctx context.Context, input string) (string, error) {
				var args struct{ Base, Target string }
				if err := decode(input, &args); err != nil {
					return "", err
				}
				if args.Base == "" || args.Target == "" {
					return "", errRequired("base", "target")
				}
				return w.ExchangeRate(ctx, args.Base, args.Target), nil
			}),
		agent.NewFuncTool("scrape_search",
			"Scrape a website using the Serper API.",
			`{"type":"object","properties":{"url":{"type":"string","description":"The URL to scrape"}},"required":["url"]}`,
			func(ctx context.Context, input string) (string, error) {
				var args struct{ URL string }
				if err := decode(input, &args); err != nil {
					return "", err
				}
				if args.URL == "" {
					return "", errRequired("url")
				}
				return w.Scrape(ctx, args.URL), nil
			}),
	}
	if w.serperKey != "" {
		out = append(out, agent.NewFuncTool("serper_search_google",
			"Search Google using the Serper API. Returns the raw JSON results.",
			`{"type":"object","properties":{"query":{"type":"string","description":"The search query"}},"required":["query"]}`,
			func(ctx context.Context, input string) (string, error) {
				var args struct{ Query string }
				if err := decode(input, &args); err != nil {
					return "", err
				}
				if args.Query == "" {
					return "", errRequired("query")
				}
				return w.SerperSearch(ctx, args.Query), nil
			}))
	}
	if w.braveKey != "" {
		out = append(out, agent.NewFuncTool("brave_search",
			"Search the web using Brave Search. Returns titles, descriptions and source URLs.",
			`{"type":"object","properties":{"query":{"type":"string","description":"Search query"},"count":{"type":"integer","description":"Number of results (max 20)","default":10}},"required":["query"]}`,
			func(ctx context.Context, input string) (string, error) {
				var args struct {
					Query string
					Count int
				}
				if err := decode(input, &args); err != nil {
					return "", err
				}
				if args.Query == "" {
					return "", errRequired("query")
				}
				return w.BraveSearch(ctx, args.Query, args.Count)
			}))
	}
	return out
}

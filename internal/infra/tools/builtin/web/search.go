// Package web implements the network-facing actions. Oracle-supplied URLs
// always pass through the network guard; the search backend URL is operator
// configuration and is trusted as-is.
package web

import (
	"context"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"otto/internal/domain/ports"
	"otto/internal/infra/tools/builtin/shared"
)

const defaultSearchBaseURL = "https://html.duckduckgo.com"

type webSearch struct {
	shared.BaseTool
	client  *http.Client
	baseURL string
}

// NewWebSearch returns the web_search action backed by the DuckDuckGo HTML
// endpoint, which needs no API key.
func NewWebSearch(client *http.Client, baseURL string) ports.ToolExecutor {
	if baseURL == "" {
		baseURL = defaultSearchBaseURL
	}
	return &webSearch{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "web_search",
				Description: "Search the web and return titles, URLs and snippets.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"query":       {Type: "string", Description: "Search query"},
						"max_results": {Type: "integer", Description: "Result cap, 1-10 (default 5)"},
					},
					Required: []string{"query"},
				},
			},
			ports.ToolMetadata{Name: "web_search", Category: "web", ReadOnly: true},
		),
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (t *webSearch) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	query, err := shared.StringArg(call.Arguments, "query")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	maxResults := shared.OptionalInt(call.Arguments, "max_results", 5)
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > 10 {
		maxResults = 10
	}

	hits, err := Search(ctx, t.client, t.baseURL, query, maxResults)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if len(hits) == 0 {
		return shared.Succeed(call, fmt.Sprintf("Search: %s\n\nno results", query)), nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Search: %s\n\n%d results:\n\n", query, len(hits))
	for i, h := range hits {
		fmt.Fprintf(&out, "%d. %s\n   URL: %s\n", i+1, h.Title, h.URL)
		if h.Snippet != "" {
			fmt.Fprintf(&out, "   %s\n", h.Snippet)
		}
		out.WriteString("\n")
	}
	result := shared.Succeed(call, strings.TrimRight(out.String(), "\n"))
	result.Metadata = map[string]any{"results_count": len(hits)}
	return result, nil
}

// Hit is one search result.
type Hit struct {
	Title   string
	URL     string
	Snippet string
}

// Search queries the HTML search endpoint and parses the result list.
// research_topic shares this with the web_search action.
func Search(ctx context.Context, client *http.Client, baseURL, query string, maxResults int) ([]Hit, error) {
	if baseURL == "" {
		baseURL = defaultSearchBaseURL
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/html/?q=" + neturl.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "otto-agent/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search backend returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		anchor := s.Find("a.result__a").First()
		title := strings.TrimSpace(anchor.Text())
		href, _ := anchor.Attr("href")
		if title == "" || href == "" {
			return true
		}
		hits = append(hits, Hit{
			Title:   title,
			URL:     unwrapRedirect(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").Text()),
		})
		return len(hits) < maxResults
	})
	return hits, nil
}

// unwrapRedirect decodes DuckDuckGo's /l/?uddg= redirect wrapper.
func unwrapRedirect(href string) string {
	u, err := neturl.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

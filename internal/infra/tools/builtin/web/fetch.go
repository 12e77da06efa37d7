package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

const (
	defaultFetchCacheTTL     = 15 * time.Minute
	defaultFetchCacheEntries = 256
	maxFetchBodyBytes        = 2 * 1024 * 1024
)

type fetchWebpage struct {
	shared.BaseTool
	policy *sandbox.Policy
	client *http.Client
	cache  *expirable.LRU[string, string]
}

// FetchConfig tunes the page cache.
type FetchConfig struct {
	CacheTTL     time.Duration
	CacheEntries int
}

// NewFetchWebpage returns the fetch_webpage action. Fetched pages are
// reduced to readable text and cached so the oracle can re-read a page
// across iterations without re-downloading it.
func NewFetchWebpage(policy *sandbox.Policy, client *http.Client, cfg FetchConfig) ports.ToolExecutor {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultFetchCacheTTL
	}
	entries := cfg.CacheEntries
	if entries <= 0 {
		entries = defaultFetchCacheEntries
	}
	return &fetchWebpage{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "fetch_webpage",
				Description: "Fetch a URL and return its readable text content. HTML is reduced to title, headings, paragraphs and list items.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"url":      {Type: "string", Description: "http or https URL to fetch"},
						"selector": {Type: "string", Description: "Optional CSS selector; only matching elements are returned"},
					},
					Required: []string{"url"},
				},
			},
			ports.ToolMetadata{Name: "fetch_webpage", Category: "web", ReadOnly: true},
		),
		policy: policy,
		client: client,
		cache:  expirable.NewLRU[string, string](entries, nil, ttl),
	}
}

func (t *fetchWebpage) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	raw, err := shared.StringArg(call.Arguments, "url")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	selector := shared.OptionalString(call.Arguments, "selector", "")

	target, err := t.policy.ValidateURL(ctx, raw)
	if err != nil {
		return shared.Fail(call, err), nil
	}

	cacheKey := target.String() + "\x00" + selector
	if cached, ok := t.cache.Get(cacheKey); ok {
		result := shared.Succeed(call, cached)
		result.Metadata = map[string]any{"cached": true}
		return result, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	req.Header.Set("User-Agent", "otto-agent/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return shared.Failf(call, "fetch %s: status %d", target, resp.StatusCode), nil
	}

	body := io.LimitReader(resp.Body, maxFetchBodyBytes)
	var content string
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		content, err = extractText(body, selector)
		if err != nil {
			return shared.Fail(call, err), nil
		}
	} else {
		data, readErr := io.ReadAll(body)
		if readErr != nil {
			return shared.Fail(call, readErr), nil
		}
		content = string(data)
	}

	content, _ = t.policy.TruncateOutput(content)
	t.cache.Add(cacheKey, content)
	result := shared.Succeed(call, content)
	result.Metadata = map[string]any{"cached": false}
	return result, nil
}

// FetchReadable validates the URL, downloads the page, and reduces it to
// readable text. It bypasses the tool's cache; research_topic manages its
// own fetch lifecycle.
func FetchReadable(ctx context.Context, policy *sandbox.Policy, client *http.Client, rawURL string) (string, error) {
	target, err := policy.ValidateURL(ctx, rawURL)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "otto-agent/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxFetchBodyBytes)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		return extractText(body, "")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// extractText reduces an HTML document to its readable parts.
func extractText(r io.Reader, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, nav, footer").Remove()

	var b strings.Builder
	if selector != "" {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			appendBlock(&b, s.Text())
		})
		if b.Len() == 0 {
			return "", fmt.Errorf("selector %q matched nothing", selector)
		}
		return strings.TrimSpace(b.String()), nil
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		b.WriteString(title + "\n\n")
	}
	doc.Find("h1, h2, h3, h4, p, li, pre, td").Each(func(_ int, s *goquery.Selection) {
		appendBlock(&b, s.Text())
	})
	if b.Len() == 0 {
		appendBlock(&b, doc.Text())
	}
	return strings.TrimSpace(b.String()), nil
}

func appendBlock(b *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.WriteString(text)
	b.WriteString("\n")
}

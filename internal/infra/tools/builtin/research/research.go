// Package research implements the research_topic action: one search plus
// concurrent fetches of the top hits, folded into a single digest.
package research

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
	"otto/internal/infra/tools/builtin/web"
	"otto/internal/shared/logging"
)

const (
	defaultMaxSources   = 3
	hardMaxSources      = 5
	perSourceDigestSize = 4000
)

type researchTopic struct {
	shared.BaseTool
	policy  *sandbox.Policy
	client  *http.Client
	baseURL string
	logger  logging.Logger
}

// NewResearchTopic returns the research_topic action.
func NewResearchTopic(policy *sandbox.Policy, client *http.Client, searchBaseURL string, logger logging.Logger) ports.ToolExecutor {
	return &researchTopic{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "research_topic",
				Description: "Search the web for a topic and fetch the top sources in parallel, returning one digest with per-source excerpts.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"topic":       {Type: "string", Description: "Topic to research"},
						"max_sources": {Type: "integer", Description: "Sources to fetch, 1-5 (default 3)"},
					},
					Required: []string{"topic"},
				},
			},
			ports.ToolMetadata{Name: "research_topic", Category: "web", ReadOnly: true},
		),
		policy:  policy,
		client:  client,
		baseURL: searchBaseURL,
		logger:  logging.OrNop(logger),
	}
}

func (t *researchTopic) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	topic, err := shared.StringArg(call.Arguments, "topic")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	maxSources := shared.OptionalInt(call.Arguments, "max_sources", defaultMaxSources)
	if maxSources < 1 {
		maxSources = defaultMaxSources
	}
	if maxSources > hardMaxSources {
		maxSources = hardMaxSources
	}

	hits, err := web.Search(ctx, t.client, t.baseURL, topic, maxSources)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if len(hits) == 0 {
		return shared.Succeed(call, fmt.Sprintf("Research: %s\n\nno sources found", topic)), nil
	}

	excerpts := make([]string, len(hits))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(len(hits))
	for i, hit := range hits {
		group.Go(func() error {
			text, fetchErr := web.FetchReadable(groupCtx, t.policy, t.client, hit.URL)
			if fetchErr != nil {
				// A dead or blocked source degrades the digest, it does
				// not fail the whole research call.
				t.logger.Warn("research_topic: fetch %s: %v", hit.URL, fetchErr)
				excerpts[i] = fmt.Sprintf("(fetch failed: %v)", fetchErr)
				return nil
			}
			if len(text) > perSourceDigestSize {
				text = text[:perSourceDigestSize] + "\n... [excerpt truncated]"
			}
			excerpts[i] = text
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return shared.Fail(call, err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Research: %s\n%d sources\n", topic, len(hits))
	fetched := 0
	for i, hit := range hits {
		fmt.Fprintf(&b, "\n=== Source %d: %s ===\nURL: %s\n", i+1, hit.Title, hit.URL)
		if hit.Snippet != "" {
			fmt.Fprintf(&b, "Snippet: %s\n", hit.Snippet)
		}
		b.WriteString("\n" + excerpts[i] + "\n")
		if !strings.HasPrefix(excerpts[i], "(fetch failed") {
			fetched++
		}
	}

	out, _ := t.policy.TruncateOutput(strings.TrimSpace(b.String()))
	result := shared.Succeed(call, out)
	result.Metadata = map[string]any{"sources": len(hits), "fetched": fetched}
	return result, nil
}

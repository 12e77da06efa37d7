package research

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/shared/config"
	"otto/internal/shared/logging"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func htmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"text/html"}},
	}
}

const searchPage = `<html><body>
<div class="result"><a class="result__a" href="http://203.0.113.20/one">First Source</a>
<a class="result__snippet">about the topic</a></div>
<div class="result"><a class="result__a" href="http://203.0.113.20/missing">Dead Source</a></div>
</body></html>`

func newPolicy(t *testing.T) *sandbox.Policy {
	t.Helper()
	policy, err := sandbox.NewPolicy(config.SandboxConfig{
		AllowedRoots:   []string{t.TempDir()},
		ActionTimeout:  config.DefaultActionCeiling,
		MaxOutputBytes: config.DefaultMaxOutputBytes,
		MaxFileBytes:   config.DefaultMaxFileBytes,
	})
	require.NoError(t, err)
	return policy
}

func TestResearchTopicBuildsDigest(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.Contains(req.URL.Path, "/html/"):
			return htmlResponse(200, searchPage), nil
		case strings.HasSuffix(req.URL.Path, "/one"):
			return htmlResponse(200, "<html><body><p>deep dive content</p></body></html>"), nil
		default:
			return htmlResponse(404, ""), nil
		}
	})}

	tool := NewResearchTopic(newPolicy(t), client, "http://203.0.113.10", logging.Nop())
	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID:        "call-1",
		Arguments: map[string]any{"topic": "distributed consensus"},
	})
	require.NoError(t, err)
	require.True(t, result.Success())
	assert.Contains(t, result.Content, "Research: distributed consensus")
	assert.Contains(t, result.Content, "Source 1: First Source")
	assert.Contains(t, result.Content, "deep dive content")
	assert.Contains(t, result.Content, "Source 2: Dead Source")
	assert.Contains(t, result.Content, "fetch failed")
	assert.Equal(t, 2, result.Metadata["sources"])
	assert.Equal(t, 1, result.Metadata["fetched"])
}

func TestResearchTopicNoSources(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return htmlResponse(200, "<html><body></body></html>"), nil
	})}
	tool := NewResearchTopic(newPolicy(t), client, "http://203.0.113.10", logging.Nop())

	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID:        "call-1",
		Arguments: map[string]any{"topic": "nothing"},
	})
	require.NoError(t, err)
	require.True(t, result.Success())
	assert.Contains(t, result.Content, "no sources found")
}

func TestResearchTopicSearchFailure(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return htmlResponse(503, ""), nil
	})}
	tool := NewResearchTopic(newPolicy(t), client, "http://203.0.113.10", logging.Nop())

	result, err := tool.Execute(context.Background(), ports.ToolCall{
		ID:        "call-1",
		Arguments: map[string]any{"topic": "anything"},
	})
	require.NoError(t, err)
	assert.False(t, result.Success())
}

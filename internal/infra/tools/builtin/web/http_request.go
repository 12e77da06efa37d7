package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

type httpRequest struct {
	shared.BaseTool
	policy *sandbox.Policy
	client *http.Client
}

// NewHTTPRequest returns the http_request action for structured API calls.
func NewHTTPRequest(policy *sandbox.Policy, client *http.Client) ports.ToolExecutor {
	return &httpRequest{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "http_request",
				Description: "Send an HTTP request and return status, headers and body. Use for APIs; use fetch_webpage for pages.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"url":     {Type: "string", Description: "http or https URL"},
						"method":  {Type: "string", Description: "HTTP method", Enum: []any{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"}},
						"headers": {Type: "object", Description: "Request headers as string key/value pairs"},
						"body":    {Type: "string", Description: "Request body"},
					},
					Required: []string{"url"},
				},
			},
			ports.ToolMetadata{Name: "http_request", Category: "web"},
		),
		policy: policy,
		client: client,
	}
}

func (t *httpRequest) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	raw, err := shared.StringArg(call.Arguments, "url")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	method := strings.ToUpper(shared.OptionalString(call.Arguments, "method", http.MethodGet))
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead:
	default:
		return shared.Failf(call, "unsupported method %q", method), nil
	}

	target, err := t.policy.ValidateURL(ctx, raw)
	if err != nil {
		return shared.Fail(call, err), nil
	}

	var bodyReader io.Reader
	if body := shared.OptionalString(call.Arguments, "body", ""); body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if headers, ok := call.Arguments["headers"].(map[string]any); ok {
		for key, value := range headers {
			if s, ok := value.(string); ok && allowedHeader(key) {
				req.Header.Set(key, s)
			}
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBodyBytes))
	if err != nil {
		return shared.Fail(call, err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", resp.Proto, resp.Status)
	for _, key := range []string{"Content-Type", "Content-Length", "Location", "Retry-After"} {
		if v := resp.Header.Get(key); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", key, v)
		}
	}
	if len(data) > 0 {
		b.WriteString("\n")
		b.Write(data)
	}

	out, _ := t.policy.TruncateOutput(b.String())
	result := shared.Succeed(call, out)
	result.Metadata = map[string]any{"status_code": resp.StatusCode}
	return result, nil
}

// allowedHeader blocks hop-by-hop and identity-bearing headers the oracle
// has no business setting.
func allowedHeader(key string) bool {
	switch strings.ToLower(key) {
	case "host", "connection", "transfer-encoding", "cookie", "proxy-authorization":
		return false
	}
	return true
}

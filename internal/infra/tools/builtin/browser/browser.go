package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

const defaultNavigateTimeout = 30 * time.Second

type browserInteract struct {
	shared.BaseTool
	manager *Manager
	policy  *sandbox.Policy
}

// NewBrowserInteract returns the browser_interact action.
func NewBrowserInteract(manager *Manager, policy *sandbox.Policy) ports.ToolExecutor {
	return &browserInteract{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name: "browser_interact",
				Description: "Drive a headless browser. Operations: navigate (url), click (selector), " +
					"type (selector, text), text (optional selector, defaults to page body), " +
					"screenshot (output_path). Page state persists between calls.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"operation":   {Type: "string", Description: "What to do", Enum: []any{"navigate", "click", "type", "text", "screenshot"}},
						"url":         {Type: "string", Description: "Page to open (navigate)"},
						"selector":    {Type: "string", Description: "CSS selector for the target element"},
						"text":        {Type: "string", Description: "Text to type into the element (type)"},
						"output_path": {Type: "string", Description: "Where to write the PNG (screenshot)"},
					},
					Required: []string{"operation"},
				},
			},
			ports.ToolMetadata{Name: "browser_interact", Category: "web", ReadOnly: false},
		),
		manager: manager,
		policy:  policy,
	}
}

func (t *browserInteract) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	op, err := shared.StringArg(call.Arguments, "operation")
	if err != nil {
		return shared.Fail(call, err), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, t.policy.ClampTimeout(defaultNavigateTimeout))
	defer cancel()

	switch op {
	case "navigate":
		return t.navigate(runCtx, call)
	case "click":
		return t.click(runCtx, call)
	case "type":
		return t.typeText(runCtx, call)
	case "text":
		return t.extractText(runCtx, call)
	case "screenshot":
		return t.screenshot(runCtx, call)
	default:
		return shared.Failf(call, "unknown operation %q", op), nil
	}
}

func (t *browserInteract) navigate(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	raw, err := shared.StringArg(call.Arguments, "url")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	parsed, err := t.policy.ValidateURL(ctx, raw)
	if err != nil {
		return shared.Fail(call, err), nil
	}

	var title string
	if err := t.manager.run(ctx, chromedp.Navigate(parsed.String()), chromedp.Title(&title)); err != nil {
		return shared.Failf(call, "navigate: %v", err), nil
	}
	return shared.Succeed(call, fmt.Sprintf("opened %s\ntitle: %s", parsed.String(), title)), nil
}

func (t *browserInteract) click(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	selector, err := shared.StringArg(call.Arguments, "selector")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if err := t.manager.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return shared.Failf(call, "click %q: %v", selector, err), nil
	}
	return shared.Succeed(call, fmt.Sprintf("clicked %q", selector)), nil
}

func (t *browserInteract) typeText(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	selector, err := shared.StringArg(call.Arguments, "selector")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	text, err := shared.StringArg(call.Arguments, "text")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if err := t.manager.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery)); err != nil {
		return shared.Failf(call, "type into %q: %v", selector, err), nil
	}
	return shared.Succeed(call, fmt.Sprintf("typed %d characters into %q", len(text), selector)), nil
}

func (t *browserInteract) extractText(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	selector := shared.OptionalString(call.Arguments, "selector", "body")

	var text string
	if err := t.manager.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return shared.Failf(call, "extract text from %q: %v", selector, err), nil
	}
	out, truncated := t.policy.TruncateOutput(strings.TrimSpace(text))
	result := shared.Succeed(call, out)
	result.Metadata = map[string]any{"truncated": truncated}
	return result, nil
}

func (t *browserInteract) screenshot(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	rawPath, err := shared.StringArg(call.Arguments, "output_path")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	path, err := t.policy.ResolvePath(rawPath)
	if err != nil {
		return shared.Fail(call, err), nil
	}

	var png []byte
	if err := t.manager.run(ctx, chromedp.FullScreenshot(&png, 90)); err != nil {
		return shared.Failf(call, "screenshot: %v", err), nil
	}
	if err := t.policy.CheckWriteSize(len(png)); err != nil {
		return shared.Fail(call, err), nil
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return shared.Failf(call, "write screenshot: %v", err), nil
	}
	result := shared.Succeed(call, fmt.Sprintf("wrote %d bytes to %s", len(png), path))
	result.Metadata = map[string]any{"bytes": len(png)}
	return result, nil
}

package toolregistry

import (
	"context"
	"fmt"
	"time"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/shared/logging"
)

// Dispatcher routes validated tool calls to their executors. Every failure
// mode comes back as a failed ToolResult so the loop can feed it to the
// oracle as an observation; Dispatch itself never returns an error.
type Dispatcher struct {
	registry ports.ToolRegistry
	policy   *sandbox.Policy
	metrics  *Metrics
	logger   logging.Logger
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger overrides the component logger.
func WithLogger(logger logging.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a dispatcher over the given registry and policy.
func NewDispatcher(registry ports.ToolRegistry, policy *sandbox.Policy, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		policy:   policy,
		logger:   logging.NewComponentLogger("Dispatcher"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Dispatch validates and executes a single call under the per-action ceiling.
func (d *Dispatcher) Dispatch(ctx context.Context, call ports.ToolCall) *ports.ToolResult {
	started := time.Now()

	tool, err := d.registry.Get(call.Name)
	if err != nil {
		d.metrics.observe(call.Name, "unknown_tool", time.Since(started))
		return d.failed(call, started, err)
	}

	if err := ValidateArguments(tool.Definition(), call.Arguments); err != nil {
		d.metrics.observe(call.Name, "invalid_arguments", time.Since(started))
		return d.failed(call, started, err)
	}

	execCtx := ctx
	if d.policy != nil && d.policy.ActionTimeout() > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, d.policy.ActionTimeout())
		defer cancel()
	}

	result, err := d.execute(execCtx, tool, call)
	elapsed := time.Since(started)

	switch {
	case err != nil:
		d.logger.Warn("Tool %s failed: %v", call.Name, err)
		d.metrics.observe(call.Name, "error", elapsed)
		return d.failed(call, started, err)
	case result == nil:
		d.metrics.observe(call.Name, "error", elapsed)
		return d.failed(call, started, fmt.Errorf("tool %s returned no result", call.Name))
	}

	result.CallID = call.ID
	result.Elapsed = elapsed
	if result.Error != nil {
		d.metrics.observe(call.Name, "failed", elapsed)
	} else {
		d.metrics.observe(call.Name, "ok", elapsed)
	}
	d.logger.Debug("Tool %s finished in %s (success=%v)", call.Name, elapsed, result.Success())
	return result
}

// execute isolates the panic recovery boundary: a panicking tool becomes a
// failed result instead of taking down the run.
func (d *Dispatcher) execute(ctx context.Context, tool ports.ToolExecutor, call ports.ToolCall) (result *ports.ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Tool %s panicked: %v", call.Name, r)
			result = nil
			err = fmt.Errorf("tool %s panicked: %v", call.Name, r)
		}
	}()
	return tool.Execute(ctx, call)
}

func (d *Dispatcher) failed(call ports.ToolCall, started time.Time, err error) *ports.ToolResult {
	return &ports.ToolResult{
		CallID:  call.ID,
		Error:   err,
		Elapsed: time.Since(started),
	}
}

// Package engine runs the orchestration loop: it feeds the transcript to the
// reasoning oracle, executes the proposed actions through the dispatcher, and
// drives the phase state machine to a terminal phase.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"otto/internal/domain/ports"
	"otto/internal/domain/task"
	"otto/internal/infra/audit"
	"otto/internal/shared/config"
	"otto/internal/shared/logging"
	"otto/internal/toolregistry"
)

// nudge is appended when the oracle returns plain text with no actions.
// Text alone never terminates a run; only the control actions do.
const nudge = "No actions were proposed. Use the available tools to make progress, " +
	"or call task_complete with a summary if the objective is met, " +
	"or request_help if you are blocked."

// Engine executes one run at a time. It is safe to share across concurrent
// runs: all per-run state lives in the Run, and the shared pieces (policy,
// registry, limiter, sink) are concurrency-safe themselves.
type Engine struct {
	oracle     ports.OracleClient
	registry   ports.ToolRegistry
	dispatcher *toolregistry.Dispatcher
	sink       ports.AuditSink
	limiter    *rate.Limiter
	logger     logging.Logger
	cfg        config.RunConfig
}

// Option configures an Engine.
type Option func(*Engine)

// WithAuditSink attaches a persistence sink. Defaults to the nop sink.
func WithAuditSink(sink ports.AuditSink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New constructs an engine over the given collaborators.
func New(oracle ports.OracleClient, registry ports.ToolRegistry, dispatcher *toolregistry.Dispatcher, cfg config.RunConfig, opts ...Option) *Engine {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = config.DefaultMaxIterations
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultRunTimeout
	}
	if cfg.OracleFailureCap <= 0 {
		cfg.OracleFailureCap = config.DefaultOracleFailureCap
	}
	if cfg.ActionRate <= 0 {
		cfg.ActionRate = config.DefaultActionRate
	}
	if cfg.ActionBurst <= 0 {
		cfg.ActionBurst = config.DefaultActionBurst
	}

	e := &Engine{
		oracle:     oracle,
		registry:   registry,
		dispatcher: dispatcher,
		sink:       audit.Nop(),
		limiter:    rate.NewLimiter(rate.Limit(cfg.ActionRate), cfg.ActionBurst),
		logger:     logging.NewComponentLogger("Engine"),
		cfg:        cfg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Execute drives t to a terminal phase and always returns a summary; errors
// along the way end the run, they never escape this boundary.
func (e *Engine) Execute(ctx context.Context, t *task.Task) *task.Summary {
	maxIterations := t.MaxIterations
	if maxIterations <= 0 {
		maxIterations = e.cfg.MaxIterations
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}

	run := task.NewRun(t)
	e.setStatus(ctx, t, task.StatusInProgress, "")
	e.recordTurns(ctx, run, run.Transcript.Turns()...)

	// The run deadline wins over everything: per-action and oracle contexts
	// derive from runCtx, so whichever bound is nearer fires first.
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	runCtx, runSpan := startSpan(runCtx, traceSpanRun,
		attribute.String(traceAttrTaskID, t.ID),
		attribute.String(traceAttrRunID, run.ID),
	)

	e.logger.Info("Run %s started (task=%s, max_iterations=%d, timeout=%s)", run.ID, t.ID, maxIterations, timeout)
	started := time.Now()

	for !run.Phase.Terminal() {
		if e.checkBounds(ctx, runCtx, run, maxIterations) {
			break
		}
		run.Iteration++
		e.iterate(runCtx, t, run)
	}

	summary := e.finish(ctx, t, run, time.Since(started))
	endSpan(runSpan, nil)
	return summary
}

// checkBounds handles the boundary conditions checked between iterations:
// cooperative cancellation, the run deadline, and the iteration cap. It
// reports whether the run just went terminal.
func (e *Engine) checkBounds(parent, runCtx context.Context, run *task.Run, maxIterations int) bool {
	switch {
	case parent.Err() != nil:
		run.LastError = "run cancelled"
		e.transition(run, task.PhaseCancelled)
	case runCtx.Err() != nil:
		run.LastError = "run deadline exceeded"
		e.transition(run, task.PhaseFailed)
	case run.Iteration >= maxIterations:
		run.LastError = fmt.Sprintf("iteration cap reached (%d)", maxIterations)
		e.transition(run, task.PhaseFailed)
	default:
		return false
	}
	return true
}

// iterate performs one Acting → Observing → Reflecting pass.
func (e *Engine) iterate(runCtx context.Context, t *task.Task, run *task.Run) {
	iterCtx, span := startSpan(runCtx, traceSpanIteration,
		attribute.Int(traceAttrIteration, run.Iteration),
		attribute.String(traceAttrRunID, run.ID),
	)
	defer span.End()

	e.transition(run, task.PhaseActing)

	resp, err := e.callOracle(iterCtx, run)
	if err != nil {
		if runCtx.Err() != nil {
			// Context expiry surfaces as an oracle error; the boundary
			// check classifies it, so do not count it as an oracle failure.
			return
		}
		run.OracleFailures++
		run.LastError = err.Error()
		e.logger.Warn("Oracle call failed (%d/%d): %v", run.OracleFailures, e.cfg.OracleFailureCap, err)
		if run.OracleFailures >= e.cfg.OracleFailureCap {
			e.transition(run, task.PhaseFailed)
		}
		return
	}
	run.OracleFailures = 0

	records := actionRecords(resp.Actions)
	turn := run.Transcript.Append(task.RoleOracle, resp.Message, records)
	e.recordTurns(iterCtx, run, turn)

	e.transition(run, task.PhaseObserving)

	if len(resp.Actions) == 0 {
		nudgeTurn := run.Transcript.Append(task.RoleSystem, nudge, nil)
		e.recordTurns(iterCtx, run, nudgeTurn)
		e.transition(run, task.PhaseReflecting)
		return
	}

	for _, call := range resp.Actions {
		if e.handleControl(run, t, call) {
			return
		}
		if !e.observe(iterCtx, runCtx, run, t, call) {
			return
		}
	}
	e.transition(run, task.PhaseReflecting)
}

func (e *Engine) callOracle(ctx context.Context, run *task.Run) (*ports.OracleResponse, error) {
	oracleCtx, span := startSpan(ctx, traceSpanOracle,
		attribute.String(traceAttrModel, e.oracle.Model()),
		attribute.Int(traceAttrIteration, run.Iteration),
	)
	resp, err := e.oracle.Complete(oracleCtx, ports.OracleRequest{
		Turns: run.Transcript.Turns(),
		Tools: e.registry.List(),
	})
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("oracle returned an empty response")
	}
	return resp, nil
}

// handleControl short-circuits the control actions. Any further actions
// proposed in the same turn are discarded.
func (e *Engine) handleControl(run *task.Run, t *task.Task, call ports.ToolCall) bool {
	switch call.Name {
	case ports.ActionTaskComplete:
		t.Output = stringArg(call.Arguments, "summary")
		run.LastError = ""
		e.transition(run, task.PhaseComplete)
		return true
	case ports.ActionRequestHelp:
		t.Output = stringArg(call.Arguments, "description")
		e.transition(run, task.PhaseWaitingForHelp)
		return true
	default:
		return false
	}
}

// observe executes one proposed action and appends its result. It reports
// whether the loop should keep processing this turn's actions.
func (e *Engine) observe(iterCtx, runCtx context.Context, run *task.Run, t *task.Task, call ports.ToolCall) bool {
	if err := e.limiter.Wait(runCtx); err != nil {
		return false // boundary check classifies the expiry
	}

	call.TaskID = t.ID
	call.RunID = run.ID

	toolCtx, span := startSpan(iterCtx, traceSpanTool, attribute.String(traceAttrToolName, call.Name))
	result := e.dispatcher.Dispatch(toolCtx, call)
	endSpan(span, result.Error)

	run.ToolCalls++
	// The result turn carries the originating call so the wire codecs can
	// correlate it (tool_call_id / tool_use_id).
	turn := run.Transcript.Append(task.RoleResult, resultContent(call, result),
		[]task.ActionRecord{{ID: call.ID, Name: call.Name}})
	e.recordTurns(iterCtx, run, turn)
	if err := e.sink.RecordExecution(iterCtx, t.ID, call, result, result.Elapsed); err != nil {
		e.logger.Warn("Audit sink RecordExecution failed: %v", err)
	}

	if runCtx.Err() != nil {
		return false
	}
	return true
}

// finish maps the terminal phase onto the task status and builds the summary.
func (e *Engine) finish(ctx context.Context, t *task.Task, run *task.Run, elapsed time.Duration) *task.Summary {
	if !run.Phase.Terminal() {
		// Defensive: every exit path above is terminal, but a summary must
		// never report an in-flight phase.
		run.LastError = "run ended in non-terminal phase " + string(run.Phase)
		e.transition(run, task.PhaseFailed)
	}

	// On the Cancelled path ctx is already done; the terminal status still
	// has to reach the sink, so persistence gets its own bounded context.
	statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	e.setStatus(statusCtx, t, run.Phase.Status(), t.Output)
	e.logger.Info("Run %s finished: phase=%s iterations=%d tool_calls=%d elapsed=%s",
		run.ID, run.Phase, run.Iteration, run.ToolCalls, elapsed.Round(time.Millisecond))

	return &task.Summary{
		TaskID:     t.ID,
		RunID:      run.ID,
		Phase:      run.Phase,
		Iterations: run.Iteration,
		ToolCalls:  run.ToolCalls,
		Output:     t.Output,
		LastError:  run.LastError,
		Duration:   elapsed,
	}
}

// transition applies a state-machine edge. An illegal edge is a programming
// error; it is logged and the run forced to Failed rather than panicking.
func (e *Engine) transition(run *task.Run, next task.Phase) {
	if err := run.Transition(next); err != nil {
		e.logger.Error("Run %s: %v", run.ID, err)
		run.LastError = err.Error()
		run.Phase = task.PhaseFailed
	}
}

func (e *Engine) setStatus(ctx context.Context, t *task.Task, status task.Status, output string) {
	t.Status = status
	t.Output = output
	t.UpdatedAt = time.Now().UTC()
	if err := e.sink.UpdateTaskStatus(ctx, t.ID, status, output); err != nil {
		e.logger.Warn("Audit sink UpdateTaskStatus failed: %v", err)
	}
}

func (e *Engine) recordTurns(ctx context.Context, run *task.Run, turns ...task.Turn) {
	for _, turn := range turns {
		if err := e.sink.AppendTurn(ctx, run.TaskID, run.ID, turn); err != nil {
			e.logger.Warn("Audit sink AppendTurn failed: %v", err)
		}
	}
}

func actionRecords(calls []ports.ToolCall) []task.ActionRecord {
	if len(calls) == 0 {
		return nil
	}
	records := make([]task.ActionRecord, len(calls))
	for i, call := range calls {
		records[i] = task.ActionRecord{ID: call.ID, Name: call.Name, Arguments: call.Arguments}
	}
	return records
}

func resultContent(call ports.ToolCall, result *ports.ToolResult) string {
	if result == nil {
		return fmt.Sprintf("[%s] no result", call.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", call.Name)
	if result.Error != nil {
		fmt.Fprintf(&b, " failed: %v", result.Error)
	}
	if content := strings.TrimSpace(result.Content); content != "" {
		b.WriteString("\n")
		b.WriteString(content)
	} else if result.Error == nil {
		b.WriteString("\n(no output)")
	}
	return b.String()
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

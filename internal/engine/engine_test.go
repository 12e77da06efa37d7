package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otto/internal/domain/ports"
	"otto/internal/domain/task"
	"otto/internal/infra/audit"
	"otto/internal/infra/sandbox"
	"otto/internal/shared/config"
	"otto/internal/shared/logging"
	"otto/internal/toolregistry"
)

// scriptedOracle replays a fixed response sequence; the last entry repeats.
// Every request it receives is recorded for assertions on the transcript.
type scriptedOracle struct {
	mu        sync.Mutex
	responses []*ports.OracleResponse
	errs      []error
	requests  []ports.OracleRequest
	calls     int
}

func (o *scriptedOracle) Complete(_ context.Context, req ports.OracleRequest) (*ports.OracleResponse, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, req)
	i := o.calls
	o.calls++
	if i >= len(o.responses) {
		i = len(o.responses) - 1
	}
	if o.errs != nil && o.errs[i] != nil {
		return nil, o.errs[i]
	}
	return o.responses[i], nil
}

func (o *scriptedOracle) Model() string { return "scripted" }

func (o *scriptedOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func (o *scriptedOracle) request(i int) ports.OracleRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.requests[i]
}

type fakeTool struct {
	name    string
	execute func(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error)
}

func (f *fakeTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	return f.execute(ctx, call)
}

func (f *fakeTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{Name: f.name, Parameters: ports.ParameterSchema{Type: "object"}}
}

func (f *fakeTool) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{Name: f.name, Category: "test"}
}

func buildEngine(t *testing.T, oracle ports.OracleClient, tools []*fakeTool, cfg config.RunConfig, opts ...Option) *Engine {
	t.Helper()
	sandboxCfg := config.Defaults().Sandbox
	sandboxCfg.AllowedRoots = []string{t.TempDir()}
	policy, err := sandbox.NewPolicy(sandboxCfg)
	require.NoError(t, err)

	registry := toolregistry.NewRegistry()
	for _, tool := range tools {
		require.NoError(t, registry.Register(tool))
	}
	dispatcher := toolregistry.NewDispatcher(registry, policy, toolregistry.WithLogger(logging.Nop()))
	opts = append(opts, WithLogger(logging.Nop()))
	return New(oracle, registry, dispatcher, cfg, opts...)
}

func call(name string, args map[string]any) ports.ToolCall {
	return ports.ToolCall{ID: "call-" + name, Name: name, Arguments: args}
}

func TestImmediateTaskCompleteTerminatesInOneIteration(t *testing.T) {
	oracle := &scriptedOracle{responses: []*ports.OracleResponse{
		{Message: "done already", Actions: []ports.ToolCall{
			call("task_complete", map[string]any{"summary": "nothing to do"}),
		}},
	}}
	eng := buildEngine(t, oracle, nil, config.RunConfig{})

	summary := eng.Execute(context.Background(), task.New("noop objective", t.TempDir()))
	assert.Equal(t, task.PhaseComplete, summary.Phase)
	assert.Equal(t, 1, summary.Iterations)
	assert.Equal(t, 0, summary.ToolCalls)
	assert.Equal(t, "nothing to do", summary.Output)
	assert.Equal(t, 1, oracle.callCount())
}

func TestNeverCompletingOracleFailsAtIterationCap(t *testing.T) {
	oracle := &scriptedOracle{responses: []*ports.OracleResponse{
		{Message: "still thinking about it"},
	}}
	eng := buildEngine(t, oracle, nil, config.RunConfig{MaxIterations: 5})

	done := make(chan *task.Summary, 1)
	go func() { done <- eng.Execute(context.Background(), task.New("impossible", t.TempDir())) }()

	select {
	case summary := <-done:
		assert.Equal(t, task.PhaseFailed, summary.Phase)
		assert.Equal(t, 5, summary.Iterations)
		assert.Contains(t, summary.LastError, "iteration cap")
	case <-time.After(10 * time.Second):
		t.Fatal("run did not terminate")
	}
}

func TestConsecutiveOracleFailures(t *testing.T) {
	failure := errors.New("upstream 500")
	oracle := &scriptedOracle{
		responses: []*ports.OracleResponse{nil, nil, nil},
		errs:      []error{failure, failure, failure},
	}
	eng := buildEngine(t, oracle, nil, config.RunConfig{})

	summary := eng.Execute(context.Background(), task.New("anything", t.TempDir()))
	assert.Equal(t, task.PhaseFailed, summary.Phase)
	assert.Equal(t, 3, oracle.callCount())
	assert.Contains(t, summary.LastError, "upstream 500")
}

func TestOracleFailureCounterResetsOnSuccess(t *testing.T) {
	failure := errors.New("flaky")
	oracle := &scriptedOracle{
		responses: []*ports.OracleResponse{
			nil,
			nil,
			{Message: "recovered"},
			nil,
			nil,
			{Message: "recovered again", Actions: []ports.ToolCall{
				call("task_complete", map[string]any{"summary": "ok"}),
			}},
		},
		errs: []error{failure, failure, nil, failure, failure, nil},
	}
	eng := buildEngine(t, oracle, nil, config.RunConfig{})

	summary := eng.Execute(context.Background(), task.New("flaky oracle", t.TempDir()))
	assert.Equal(t, task.PhaseComplete, summary.Phase)
	assert.Equal(t, 6, oracle.callCount())
}

func TestRequestHelpTerminatesWaiting(t *testing.T) {
	oracle := &scriptedOracle{responses: []*ports.OracleResponse{
		{Actions: []ports.ToolCall{
			call("request_help", map[string]any{"description": "need database credentials"}),
		}},
	}}
	eng := buildEngine(t, oracle, nil, config.RunConfig{})

	tk := task.New("migrate the database", t.TempDir())
	summary := eng.Execute(context.Background(), tk)
	assert.Equal(t, task.PhaseWaitingForHelp, summary.Phase)
	assert.Equal(t, "need database credentials", summary.Output)
	assert.Equal(t, task.StatusCompleted, tk.Status)
}

func TestActionsExecuteSequentiallyInProposalOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	mk := func(name string) *fakeTool {
		return &fakeTool{name: name, execute: func(_ context.Context, c ports.ToolCall) (*ports.ToolResult, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return &ports.ToolResult{CallID: c.ID, Content: name + " ran"}, nil
		}}
	}
	oracle := &scriptedOracle{responses: []*ports.OracleResponse{
		{Actions: []ports.ToolCall{call("alpha", nil), call("beta", nil), call("gamma", nil)}},
		{Actions: []ports.ToolCall{call("task_complete", map[string]any{"summary": "done"})}},
	}}
	sink := audit.NewMemorySink()
	eng := buildEngine(t, oracle, []*fakeTool{mk("alpha"), mk("beta"), mk("gamma")}, config.RunConfig{}, WithAuditSink(sink))

	summary := eng.Execute(context.Background(), task.New("ordered work", t.TempDir()))
	require.Equal(t, task.PhaseComplete, summary.Phase)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, order)
	assert.Equal(t, 3, summary.ToolCalls)

	// Each result turn lands in the transcript before the next action runs,
	// so the recorded turns interleave strictly: result alpha, beta, gamma.
	var resultTurns []string
	for _, turn := range sink.Turns() {
		if turn.Role == task.RoleResult {
			resultTurns = append(resultTurns, turn.Content)
		}
	}
	require.Len(t, resultTurns, 3)
	assert.Contains(t, resultTurns[0], "alpha")
	assert.Contains(t, resultTurns[1], "beta")
	assert.Contains(t, resultTurns[2], "gamma")
}

func TestResultTurnCarriesOriginatingCall(t *testing.T) {
	tool := &fakeTool{name: "echo", execute: func(_ context.Context, c ports.ToolCall) (*ports.ToolResult, error) {
		return &ports.ToolResult{CallID: c.ID, Content: "echoed"}, nil
	}}
	oracle := &scriptedOracle{responses: []*ports.OracleResponse{
		{Actions: []ports.ToolCall{{ID: "call-echo-1", Name: "echo", Arguments: map[string]any{}}}},
		{Actions: []ports.ToolCall{call("task_complete", map[string]any{"summary": "done"})}},
	}}
	eng := buildEngine(t, oracle, []*fakeTool{tool}, config.RunConfig{})

	summary := eng.Execute(context.Background(), task.New("correlated results", t.TempDir()))
	require.Equal(t, task.PhaseComplete, summary.Phase)
	require.Equal(t, 2, oracle.callCount())

	// The second request replays the transcript; the result turn must name
	// the call it answers or the wire codecs cannot emit the correlation id.
	var resultTurn *task.Turn
	second := oracle.request(1)
	for i := range second.Turns {
		if second.Turns[i].Role == task.RoleResult {
			resultTurn = &second.Turns[i]
		}
	}
	require.NotNil(t, resultTurn)
	require.Len(t, resultTurn.Actions, 1)
	assert.Equal(t, "call-echo-1", resultTurn.Actions[0].ID)
	assert.Equal(t, "echo", resultTurn.Actions[0].Name)
}

func TestControlActionShortCircuitsRemainingActions(t *testing.T) {
	executed := false
	tool := &fakeTool{name: "later", execute: func(_ context.Context, c ports.ToolCall) (*ports.ToolResult, error) {
		executed = true
		return &ports.ToolResult{CallID: c.ID}, nil
	}}
	oracle := &scriptedOracle{responses: []*ports.OracleResponse{
		{Actions: []ports.ToolCall{
			call("task_complete", map[string]any{"summary": "finished"}),
			call("later", nil),
		}},
	}}
	eng := buildEngine(t, oracle, []*fakeTool{tool}, config.RunConfig{})

	summary := eng.Execute(context.Background(), task.New("short circuit", t.TempDir()))
	assert.Equal(t, task.PhaseComplete, summary.Phase)
	assert.False(t, executed, "actions after a control action must not run")
	assert.Equal(t, 0, summary.ToolCalls)
}

func TestFailedActionDoesNotAbortRun(t *testing.T) {
	tool := &fakeTool{name: "broken", execute: func(_ context.Context, c ports.ToolCall) (*ports.ToolResult, error) {
		return &ports.ToolResult{CallID: c.ID, Error: errors.New("disk full")}, nil
	}}
	oracle := &scriptedOracle{responses: []*ports.OracleResponse{
		{Actions: []ports.ToolCall{call("broken", nil)}},
		{Actions: []ports.ToolCall{call("task_complete", map[string]any{"summary": "worked around it"})}},
	}}
	sink := audit.NewMemorySink()
	eng := buildEngine(t, oracle, []*fakeTool{tool}, config.RunConfig{}, WithAuditSink(sink))

	summary := eng.Execute(context.Background(), task.New("resilient", t.TempDir()))
	assert.Equal(t, task.PhaseComplete, summary.Phase)
	assert.Equal(t, 1, summary.ToolCalls)

	// The failure is visible to the oracle as a normal observation.
	var sawFailure bool
	for _, turn := range sink.Turns() {
		if turn.Role == task.RoleResult && strings.Contains(turn.Content, "disk full") {
			sawFailure = true
		}
	}
	assert.True(t, sawFailure)
}

func TestUnknownActionIsANormalFailure(t *testing.T) {
	oracle := &scriptedOracle{responses: []*ports.OracleResponse{
		{Actions: []ports.ToolCall{call("no_such_tool", nil)}},
		{Actions: []ports.ToolCall{call("task_complete", map[string]any{"summary": "ok"})}},
	}}
	eng := buildEngine(t, oracle, nil, config.RunConfig{})

	summary := eng.Execute(context.Background(), task.New("typo tolerance", t.TempDir()))
	assert.Equal(t, task.PhaseComplete, summary.Phase)
}

func TestPlainTextResponseGetsNudged(t *testing.T) {
	oracle := &scriptedOracle{responses: []*ports.OracleResponse{
		{Message: "I think the task is complete"},
		{Actions: []ports.ToolCall{call("task_complete", map[string]any{"summary": "now for real"})}},
	}}
	sink := audit.NewMemorySink()
	eng := buildEngine(t, oracle, nil, config.RunConfig{}, WithAuditSink(sink))

	summary := eng.Execute(context.Background(), task.New("no heuristics", t.TempDir()))
	assert.Equal(t, task.PhaseComplete, summary.Phase)
	assert.Equal(t, 2, summary.Iterations, "text alone must not terminate the run")

	var nudged bool
	for _, turn := range sink.Turns() {
		if turn.Role == task.RoleSystem && strings.Contains(turn.Content, "task_complete") {
			nudged = true
		}
	}
	assert.True(t, nudged)
}

func TestCancellationObservedAtIterationBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	tool := &fakeTool{name: "slow", execute: func(toolCtx context.Context, c ports.ToolCall) (*ports.ToolResult, error) {
		close(started)
		<-toolCtx.Done()
		return &ports.ToolResult{CallID: c.ID, Error: toolCtx.Err()}, nil
	}}
	oracle := &scriptedOracle{responses: []*ports.OracleResponse{
		{Actions: []ports.ToolCall{call("slow", nil)}},
	}}
	eng := buildEngine(t, oracle, []*fakeTool{tool}, config.RunConfig{})

	done := make(chan *task.Summary, 1)
	tk := task.New("cancel me", t.TempDir())
	go func() { done <- eng.Execute(ctx, tk) }()

	<-started
	cancel()

	select {
	case summary := <-done:
		assert.Equal(t, task.PhaseCancelled, summary.Phase)
		assert.Equal(t, task.StatusCancelled, tk.Status)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not observe cancellation")
	}
}

func TestTerminalStatusPersistedAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	tool := &fakeTool{name: "slow", execute: func(toolCtx context.Context, c ports.ToolCall) (*ports.ToolResult, error) {
		close(started)
		<-toolCtx.Done()
		return &ports.ToolResult{CallID: c.ID, Error: toolCtx.Err()}, nil
	}}
	oracle := &scriptedOracle{responses: []*ports.OracleResponse{
		{Actions: []ports.ToolCall{call("slow", nil)}},
	}}
	sink := audit.NewMemorySink()
	eng := buildEngine(t, oracle, []*fakeTool{tool}, config.RunConfig{},
		WithAuditSink(ctxStrictSink{inner: sink}))

	done := make(chan *task.Summary, 1)
	go func() { done <- eng.Execute(ctx, task.New("cancel then persist", t.TempDir())) }()

	<-started
	cancel()

	select {
	case summary := <-done:
		require.Equal(t, task.PhaseCancelled, summary.Phase)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not observe cancellation")
	}

	// The terminal status lands in the sink even though the caller's
	// context was already done when the run finished.
	statuses := sink.Statuses()
	require.NotEmpty(t, statuses)
	assert.Equal(t, task.StatusCancelled, statuses[len(statuses)-1].Status)
}

// ctxStrictSink refuses writes on a done context, the way a real database
// sink does.
type ctxStrictSink struct{ inner *audit.MemorySink }

func (s ctxStrictSink) AppendTurn(ctx context.Context, taskID, runID string, turn task.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inner.AppendTurn(ctx, taskID, runID, turn)
}

func (s ctxStrictSink) RecordExecution(ctx context.Context, taskID string, call ports.ToolCall, result *ports.ToolResult, elapsed time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inner.RecordExecution(ctx, taskID, call, result, elapsed)
}

func (s ctxStrictSink) UpdateTaskStatus(ctx context.Context, taskID string, status task.Status, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inner.UpdateTaskStatus(ctx, taskID, status, output)
}

func TestRunDeadlineFails(t *testing.T) {
	oracle := &scriptedOracle{responses: []*ports.OracleResponse{
		{Message: "pondering"},
	}}
	eng := buildEngine(t, oracle, nil, config.RunConfig{MaxIterations: 100000})

	tk := task.New("slow burn", t.TempDir())
	tk.Timeout = 50 * time.Millisecond
	summary := eng.Execute(context.Background(), tk)
	assert.Equal(t, task.PhaseFailed, summary.Phase)
	assert.Contains(t, summary.LastError, "deadline")
}

func TestAuditFailuresAreSwallowed(t *testing.T) {
	oracle := &scriptedOracle{responses: []*ports.OracleResponse{
		{Actions: []ports.ToolCall{call("task_complete", map[string]any{"summary": "fine"})}},
	}}
	eng := buildEngine(t, oracle, nil, config.RunConfig{}, WithAuditSink(failingSink{}))

	summary := eng.Execute(context.Background(), task.New("audit down", t.TempDir()))
	assert.Equal(t, task.PhaseComplete, summary.Phase)
}

type failingSink struct{}

func (failingSink) AppendTurn(context.Context, string, string, task.Turn) error {
	return errors.New("sink down")
}

func (failingSink) RecordExecution(context.Context, string, ports.ToolCall, *ports.ToolResult, time.Duration) error {
	return errors.New("sink down")
}

func (failingSink) UpdateTaskStatus(context.Context, string, task.Status, string) error {
	return errors.New("sink down")
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"otto/internal/domain/ports"
	"otto/internal/domain/task"
	"otto/internal/shared/jsonx"
	"otto/internal/shared/logging"
)

const (
	tasksTable      = "tasks"
	turnsTable      = "transcript_turns"
	executionsTable = "tool_executions"
)

// Store is a Postgres-backed audit sink. Every turn and tool execution is
// appended as its own row so a run can be replayed after the fact.
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// StoreOption configures the audit store.
type StoreOption func(*Store)

// WithLogger overrides the component logger.
func WithLogger(logger logging.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Postgres-backed audit store.
func New(pool *pgxpool.Pool, opts ...StoreOption) *Store {
	store := &Store{
		pool:   pool,
		logger: logging.NewComponentLogger("AuditPostgresStore"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Connect opens a pgx pool against the given DSN and verifies connectivity.
func Connect(ctx context.Context, dsn string, opts ...StoreOption) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("audit store: empty DSN")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("audit store: parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("audit store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit store: ping: %w", err)
	}
	return New(pool, opts...), nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the audit tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("audit store not initialized")
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    objective TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    output TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`, tasksTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    task_id TEXT NOT NULL,
    run_id TEXT NOT NULL,
    seq INT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    actions JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`, turnsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    task_id TEXT NOT NULL,
    call_id TEXT NOT NULL,
    tool_name TEXT NOT NULL,
    arguments JSONB,
    content TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    elapsed_ms BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`, executionsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_transcript_turns_task ON %s (task_id, run_id, seq);`, turnsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_tool_executions_task ON %s (task_id, created_at);`, executionsTable),
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RegisterTask records the task row before its first run starts.
func (s *Store) RegisterTask(ctx context.Context, t *task.Task) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("audit store not initialized")
	}
	if t == nil {
		return fmt.Errorf("task cannot be nil")
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, objective, status, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5)
         ON CONFLICT (id) DO UPDATE SET objective = EXCLUDED.objective, updated_at = EXCLUDED.updated_at`,
		tasksTable),
		t.ID, t.Objective, string(t.Status), t.CreatedAt, time.Now())
	return err
}

// AppendTurn persists a single transcript turn.
func (s *Store) AppendTurn(ctx context.Context, taskID, runID string, turn task.Turn) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("audit store not initialized")
	}
	var actions []byte
	if len(turn.Actions) > 0 {
		data, err := jsonx.Marshal(turn.Actions)
		if err != nil {
			return fmt.Errorf("marshal turn actions: %w", err)
		}
		actions = data
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (task_id, run_id, seq, role, content, actions, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`, turnsTable),
		taskID, runID, turn.Seq, string(turn.Role), turn.Content, actions, turn.CreatedAt)
	if err != nil {
		s.logger.Warn("Failed to persist turn %d for task %s: %v", turn.Seq, taskID, err)
	}
	return err
}

// RecordExecution persists one tool call and its outcome.
func (s *Store) RecordExecution(ctx context.Context, taskID string, call ports.ToolCall, result *ports.ToolResult, elapsed time.Duration) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("audit store not initialized")
	}
	var args []byte
	if len(call.Arguments) > 0 {
		data, err := jsonx.Marshal(call.Arguments)
		if err != nil {
			return fmt.Errorf("marshal call arguments: %w", err)
		}
		args = data
	}
	content, errText := "", ""
	if result != nil {
		content = result.Content
		if result.Error != nil {
			errText = result.Error.Error()
		}
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (task_id, call_id, tool_name, arguments, content, error, elapsed_ms, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, executionsTable),
		taskID, call.ID, call.Name, args, content, errText, elapsed.Milliseconds(), time.Now())
	if err != nil {
		s.logger.Warn("Failed to persist execution of %s for task %s: %v", call.Name, taskID, err)
	}
	return err
}

// UpdateTaskStatus records the terminal (or intermediate) task status.
func (s *Store) UpdateTaskStatus(ctx context.Context, taskID string, status task.Status, output string) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("audit store not initialized")
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, status, output, created_at, updated_at)
         VALUES ($1, $2, $3, now(), now())
         ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, output = EXCLUDED.output, updated_at = now()`,
		tasksTable),
		taskID, string(status), output)
	return err
}

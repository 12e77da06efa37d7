// Package database implements the read-only SQL action over Postgres.
package database

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"otto/internal/domain/ports"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/shared"
)

const (
	defaultMaxRows = 100
	hardMaxRows    = 1000
)

type databaseQuery struct {
	shared.BaseTool
	policy *sandbox.Policy
	dsn    string

	mu   sync.Mutex
	pool *pgxpool.Pool

	// connect is swappable in tests.
	connect func(ctx context.Context, dsn string) (*pgxpool.Pool, error)
}

// NewDatabaseQuery returns the database_query action. The pool is opened
// lazily on first use so a run that never queries pays no connection cost.
func NewDatabaseQuery(policy *sandbox.Policy, dsn string) ports.ToolExecutor {
	return &databaseQuery{
		BaseTool: shared.NewBaseTool(
			ports.ToolDefinition{
				Name:        "database_query",
				Description: "Run a read-only SQL query (SELECT or WITH) against the configured Postgres database.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"query":    {Type: "string", Description: "SELECT or WITH statement"},
						"max_rows": {Type: "integer", Description: "Row cap (default 100, max 1000)"},
					},
					Required: []string{"query"},
				},
			},
			ports.ToolMetadata{Name: "database_query", Category: "data", ReadOnly: true},
		),
		policy:  policy,
		dsn:     dsn,
		connect: pgxpool.New,
	}
}

func (t *databaseQuery) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	query, err := shared.StringArg(call.Arguments, "query")
	if err != nil {
		return shared.Fail(call, err), nil
	}
	if err := t.policy.ValidateReadOnlyQuery(query); err != nil {
		return shared.Fail(call, err), nil
	}
	if t.dsn == "" {
		return shared.Failf(call, "no database configured"), nil
	}
	maxRows := shared.OptionalInt(call.Arguments, "max_rows", defaultMaxRows)
	if maxRows < 1 {
		maxRows = defaultMaxRows
	}
	if maxRows > hardMaxRows {
		maxRows = hardMaxRows
	}

	pool, err := t.getPool(ctx)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	defer rows.Close()

	out, rowCount, err := renderRows(rows, maxRows)
	if err != nil {
		return shared.Fail(call, err), nil
	}
	out, _ = t.policy.TruncateOutput(out)
	result := shared.Succeed(call, out)
	result.Metadata = map[string]any{"rows": rowCount}
	return result, nil
}

func (t *databaseQuery) getPool(ctx context.Context) (*pgxpool.Pool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pool != nil {
		return t.pool, nil
	}
	pool, err := t.connect(ctx, t.dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	t.pool = pool
	return pool, nil
}

// renderRows formats the result set as a tab-separated table with a header.
func renderRows(rows pgx.Rows, maxRows int) (string, int, error) {
	fields := rows.FieldDescriptions()
	headers := make([]string, len(fields))
	for i, field := range fields {
		headers[i] = field.Name
	}

	var b strings.Builder
	b.WriteString(strings.Join(headers, "\t") + "\n")

	count := 0
	capped := false
	for rows.Next() {
		if count >= maxRows {
			capped = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return "", count, err
		}
		cells := make([]string, len(values))
		for i, value := range values {
			if value == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = fmt.Sprintf("%v", value)
			}
		}
		b.WriteString(strings.Join(cells, "\t") + "\n")
		count++
	}
	if err := rows.Err(); err != nil {
		return "", count, err
	}
	if capped {
		fmt.Fprintf(&b, "... capped at %d rows\n", maxRows)
	}
	fmt.Fprintf(&b, "(%d rows)", count)
	return b.String(), count, nil
}

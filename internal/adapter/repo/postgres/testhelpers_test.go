package postgres_test

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

type execCall struct {
	sql  string
	args []any
}

// poolStub implements postgres.PgxPool and records Exec calls.
type poolStub struct {
	execErr error
	pingErr error
	calls   []execCall
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.calls = append(p.calls, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, p.execErr
}

func (p *poolStub) Ping(_ context.Context) error { return p.pingErr }

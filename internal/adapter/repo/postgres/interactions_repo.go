package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/career-agent-api/internal/domain"
)

// PgxPool is the subset of pgxpool the repo uses, so tests can stub it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS interactions (
	request_id         TEXT PRIMARY KEY,
	client_fingerprint TEXT NOT NULL,
	question_length    INTEGER NOT NULL,
	wants_elaboration  BOOLEAN NOT NULL,
	outcome            TEXT NOT NULL,
	answer_length      INTEGER NOT NULL,
	model              TEXT NOT NULL,
	latency_ms         BIGINT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS interactions_created_at_idx ON interactions (created_at);`

const insertSQL = `INSERT INTO interactions
	(request_id, client_fingerprint, question_length, wants_elaboration, outcome, answer_length, model, latency_ms, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (request_id) DO NOTHING`

// InteractionRepo writes one row per ask request.
type InteractionRepo struct{ Pool PgxPool }

// NewInteractionRepo constructs an InteractionRepo.
func NewInteractionRepo(p PgxPool) *InteractionRepo { return &InteractionRepo{Pool: p} }

var _ domain.InteractionRecorder = (*InteractionRepo)(nil)

// EnsureSchema creates the interactions table if missing.
func (r *InteractionRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("op=interactions.ensure_schema: %w", err)
	}
	return nil
}

// Record inserts the interaction. Replays of a request id are ignored.
func (r *InteractionRepo) Record(ctx domain.Context, in domain.Interaction) error {
	tracer := otel.Tracer("repo.interactions")
	ctx, span := tracer.Start(ctx, "interactions.Record")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "interactions"),
	)
	_, err := r.Pool.Exec(ctx, insertSQL,
		in.RequestID, in.ClientFingerprint, in.QuestionLength, in.WantsElaboration,
		string(in.Outcome), in.AnswerLength, in.Model, in.LatencyMS, in.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("op=interactions.record: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (r *InteractionRepo) Ping(ctx context.Context) error {
	return r.Pool.Ping(ctx)
}

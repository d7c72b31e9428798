package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lazyview/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS view_calls (
	id             BIGSERIAL PRIMARY KEY,
	network        TEXT        NOT NULL,
	function_id    TEXT        NOT NULL,
	type_args      TEXT[]      NOT NULL DEFAULT '{}',
	args           TEXT[]      NOT NULL DEFAULT '{}',
	ledger_version BIGINT      NOT NULL DEFAULT 0,
	return_values  JSONB,
	error          TEXT,
	executed_at    TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS view_calls_function_idx ON view_calls (network, function_id, executed_at);
`

const insertCall = `
	INSERT INTO view_calls (
		network, function_id, type_args, args, ledger_version, return_values, error, executed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// Store provides Postgres persistence for call records.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the view_calls table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// PutCallBatch inserts call records in one batch.
func (s *Store) PutCallBatch(ctx context.Context, records []model.CallRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		args, err := callArgs(rec)
		if err != nil {
			return err
		}
		batch.Queue(insertCall, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func callArgs(rec model.CallRecord) ([]any, error) {
	executedAt, err := time.Parse(time.RFC3339Nano, rec.ExecutedAt)
	if err != nil {
		return nil, fmt.Errorf("executed_at %q: %w", rec.ExecutedAt, err)
	}
	typeArgs := rec.TypeArgs
	if typeArgs == nil {
		typeArgs = []string{}
	}
	args := rec.Args
	if args == nil {
		args = []string{}
	}
	var returns, errText any
	if len(rec.ReturnValues) > 0 {
		returns = string(rec.ReturnValues)
	}
	if rec.Error != "" {
		errText = rec.Error
	}
	return []any{
		rec.Network,
		rec.Function,
		typeArgs,
		args,
		int64(rec.LedgerVersion),
		returns,
		errText,
		executedAt,
	}, nil
}

package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/arrest-news-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore keeps checkpoints in a shared Postgres database.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres connects a pool and verifies it with a ping.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, ioErr("open", eris.Wrap(err, "postgres: parse config"))
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, ioErr("open", eris.Wrap(err, "postgres: create pool"))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, ioErr("open", eris.Wrap(err, "postgres: ping"))
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS checkpoint_progress (
	batch_id   TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS checkpoint_results (
	batch_id   TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate implements Store.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return ioErr("migrate", eris.Wrap(err, "postgres: migrate"))
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, batchID string) (*model.BatchState, error) {
	var progressBlob, resultsBlob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT p.data, r.data FROM checkpoint_progress p
		 JOIN checkpoint_results r ON r.batch_id = p.batch_id
		 WHERE p.batch_id = $1`,
		batchID,
	).Scan(&progressBlob, &resultsBlob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ioErr("load", eris.Wrap(err, "postgres: load checkpoint"))
	}
	state, err := decode(progressBlob, resultsBlob)
	return state, ioErr("load", err)
}

// Save implements Store. Both blobs are written in one transaction.
func (s *PostgresStore) Save(ctx context.Context, state *model.BatchState) error {
	progressBlob, resultsBlob, err := encode(state)
	if err != nil {
		return ioErr("save", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ioErr("save", eris.Wrap(err, "postgres: begin"))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`INSERT INTO checkpoint_progress (batch_id, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (batch_id) DO UPDATE SET data = $2, updated_at = $3`,
		state.BatchID, progressBlob, now,
	); err != nil {
		return ioErr("save", eris.Wrap(err, "postgres: write progress"))
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO checkpoint_results (batch_id, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (batch_id) DO UPDATE SET data = $2, updated_at = $3`,
		state.BatchID, resultsBlob, now,
	); err != nil {
		return ioErr("save", eris.Wrap(err, "postgres: write results"))
	}
	return ioErr("save", eris.Wrap(tx.Commit(ctx), "postgres: commit checkpoint"))
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, batchID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ioErr("delete", eris.Wrap(err, "postgres: begin"))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM checkpoint_progress WHERE batch_id = $1`, batchID); err != nil {
		return ioErr("delete", eris.Wrap(err, "postgres: delete progress"))
	}
	if _, err := tx.Exec(ctx, `DELETE FROM checkpoint_results WHERE batch_id = $1`, batchID); err != nil {
		return ioErr("delete", eris.Wrap(err, "postgres: delete results"))
	}
	return ioErr("delete", eris.Wrap(tx.Commit(ctx), "postgres: commit delete"))
}

package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/arrest-news-cli/internal/model"
)

// SQLiteStore keeps checkpoints in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ioErr("open", eris.Wrap(err, "sqlite: open"))
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=FULL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, ioErr("open", eris.Wrapf(err, "sqlite: exec %s", pragma))
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS checkpoint_progress (
	batch_id   TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS checkpoint_results (
	batch_id   TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// Migrate implements Store.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return ioErr("migrate", eris.Wrap(err, "sqlite: migrate"))
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, batchID string) (*model.BatchState, error) {
	var progressBlob, resultsBlob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT p.data, r.data FROM checkpoint_progress p
		 JOIN checkpoint_results r ON r.batch_id = p.batch_id
		 WHERE p.batch_id = ?`,
		batchID,
	).Scan(&progressBlob, &resultsBlob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ioErr("load", eris.Wrap(err, "sqlite: load checkpoint"))
	}
	state, err := decode(progressBlob, resultsBlob)
	return state, ioErr("load", err)
}

// Save implements Store. Both blobs are written in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, state *model.BatchState) error {
	progressBlob, resultsBlob, err := encode(state)
	if err != nil {
		return ioErr("save", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ioErr("save", eris.Wrap(err, "sqlite: begin"))
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, q := range []struct {
		sql  string
		data []byte
	}{
		{`INSERT INTO checkpoint_progress (batch_id, data, updated_at) VALUES (?, ?, ?)
		  ON CONFLICT (batch_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`, progressBlob},
		{`INSERT INTO checkpoint_results (batch_id, data, updated_at) VALUES (?, ?, ?)
		  ON CONFLICT (batch_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`, resultsBlob},
	} {
		if _, err := tx.ExecContext(ctx, q.sql, state.BatchID, q.data, now); err != nil {
			return ioErr("save", eris.Wrap(err, "sqlite: write checkpoint"))
		}
	}
	return ioErr("save", eris.Wrap(tx.Commit(), "sqlite: commit checkpoint"))
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, batchID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ioErr("delete", eris.Wrap(err, "sqlite: begin"))
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"checkpoint_progress", "checkpoint_results"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE batch_id = ?`, batchID); err != nil {
			return ioErr("delete", eris.Wrapf(err, "sqlite: delete %s", table))
		}
	}
	return ioErr("delete", eris.Wrap(tx.Commit(), "sqlite: commit delete"))
}

package checkpoint

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/arrest-news-cli/internal/model"
)

func sampleState() *model.BatchState {
	s := model.NewBatchState("input.csv-abc", "run-1")
	s.Processed["r1"] = true
	s.Processed["r2"] = true
	s.ErrorCounts["search: boom"] = 2
	s.Results = []model.OutputRow{{
		Outcome: model.OutcomeValid,
		Record:  model.InputRecord{Row: 1, County: "Harris County", StateCode: "TX"},
		Hit:     model.SearchHit{Title: "ICE raid", URL: "https://a.example"},
	}}
	s.LinkCache = map[string]model.ClassificationRecord{
		"https://a.example": {LastLocation: "Harris County, TX", LastWindowEnd: time.Date(2019, 3, 28, 0, 0, 0, 0, time.UTC), Verdict: true},
	}
	return s
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "checkpoint.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_LoadMissing(t *testing.T) {
	st := newTestSQLiteStore(t)
	state, err := st.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSQLite_SaveLoadDelete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	want := sampleState()

	require.NoError(t, st.Save(ctx, want))

	got, err := st.Load(ctx, want.BatchID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, want.Processed, got.Processed)
	assert.Equal(t, want.ErrorCounts, got.ErrorCounts)
	require.Len(t, got.Results, 1)
	assert.Equal(t, model.OutcomeValid, got.Results[0].Outcome)
	assert.Equal(t, "https://a.example", got.Results[0].Hit.URL)
	assert.True(t, got.LinkCache["https://a.example"].Verdict)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))

	// Overwrite keeps one row per batch.
	want.Processed["r3"] = true
	require.NoError(t, st.Save(ctx, want))
	got, err = st.Load(ctx, want.BatchID)
	require.NoError(t, err)
	assert.Len(t, got.Processed, 3)

	require.NoError(t, st.Delete(ctx, want.BatchID))
	got, err = st.Load(ctx, want.BatchID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_SaveAfterCloseIsIOError(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Close())

	err := st.Save(context.Background(), sampleState())
	require.Error(t, err)
	var ioe *IOError
	assert.True(t, errors.As(err, &ioe))
	assert.Equal(t, "save", ioe.Op)
}

func TestOpen_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "cp.db")
	st, err := Open(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Save(context.Background(), sampleState()))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mongo", "x")
	assert.Error(t, err)
}

func TestBatchID_StablePerPath(t *testing.T) {
	a := BatchID("data/arrests.csv")
	assert.Equal(t, a, BatchID("data/arrests.csv"))
	assert.NotEqual(t, a, BatchID("data/other.csv"))
	assert.Contains(t, a, "arrests.csv-")
}

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_SaveWritesBothBlobsInTx(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	state := sampleState()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO checkpoint_progress`).
		WithArgs(state.BatchID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO checkpoint_results`).
		WithArgs(state.BatchID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.Save(context.Background(), state))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveRollsBackOnResultsFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	state := sampleState()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO checkpoint_progress`).
		WithArgs(state.BatchID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO checkpoint_results`).
		WithArgs(state.BatchID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Save(context.Background(), state)
	require.Error(t, err)
	var ioe *IOError
	require.True(t, errors.As(err, &ioe))
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LoadRoundTrip(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	progressBlob, resultsBlob, err := encode(sampleState())
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT p.data, r.data FROM checkpoint_progress p`).
		WithArgs("input.csv-abc").
		WillReturnRows(pgxmock.NewRows([]string{"data", "data"}).AddRow(progressBlob, resultsBlob))

	got, err := s.Load(context.Background(), "input.csv-abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-1", got.RunID)
	assert.True(t, got.Processed["r1"])
	assert.Len(t, got.Results, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LoadMissing(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`SELECT p.data, r.data FROM checkpoint_progress p`).
		WithArgs("none").
		WillReturnRows(pgxmock.NewRows([]string{"data", "data"}))

	got, err := s.Load(context.Background(), "none")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgres_Delete(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM checkpoint_progress`).WithArgs("b").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM checkpoint_results`).WithArgs("b").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, s.Delete(context.Background(), "b"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS checkpoint_progress`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

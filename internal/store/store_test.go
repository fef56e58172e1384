package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/regprobe/internal/recorder"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func sampleRun() recorder.RunRecord {
	loc := time.FixedZone("EST", -5*3600)
	start := time.Date(2025, 11, 20, 10, 0, 0, 0, loc)
	return recorder.RunRecord{
		ID:     "8d4ad0a4-0c1f-4b5e-9c55-3c1f3f0b7a10",
		Start:  start,
		End:    start.Add(time.Minute),
		Totals: recorder.Totals{Total: 2, Passed: 1, Failed: 1},
		Cases: []recorder.CaseResult{
			{ID: "c6b7c1de-1111-4f00-8000-000000000001", Name: "home", Status: recorder.StatusPassed, Start: start, End: start.Add(5 * time.Second),
				Steps: []recorder.StepResult{{Name: "open home page", Status: recorder.StatusPassed}}},
			{ID: "c6b7c1de-1111-4f00-8000-000000000002", Name: "registration", Status: recorder.StatusFailed, Start: start, End: start.Add(time.Minute),
				Error: "registration failed after 3 attempts", Screenshot: "artifacts/screenshots/registration.png"},
		},
		Metadata: recorder.Metadata{Headless: true, BaseURL: "https://parabank.example"},
	}
}

func newMockStore(t *testing.T, logger *zap.Logger) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return New(mockPool, logger), mockPool
}

func TestEnsureSchema(t *testing.T) {
	store, mockPool := newMockStore(t, zap.NewNop())

	mockPool.ExpectExec(flexibleSQLMatcher(schemaSQL)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))

	mockPool.ExpectExec(flexibleSQLMatcher(schemaSQL)).WillReturnError(errors.New("permission denied"))
	err := store.EnsureSchema(context.Background())
	assert.ErrorContains(t, err, "permission denied")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist run and cases without rollback errors", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		store, mockPool := newMockStore(t, zap.New(core))
		run := sampleRun()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(insertRunSQL)).
			WithArgs(run.ID, run.Start.UTC(), run.End.UTC(), 2, 1, 1,
				json.RawMessage(`{"headless":true,"ci":false,"base_url":"https://parabank.example"}`)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"case_results"}, caseColumns).WillReturnResult(2)
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.SaveRun(ctx, run))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, logs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("should skip the copy for a run without cases", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		run := sampleRun()
		run.Cases = nil

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(insertRunSQL)).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.SaveRun(ctx, run))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should roll back when the copy count mismatches", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(insertRunSQL)).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"case_results"}, caseColumns).WillReturnResult(1)
		mockPool.ExpectRollback()

		err := store.SaveRun(ctx, sampleRun())
		assert.ErrorContains(t, err, "mismatch in copied case count: expected 2, got 1")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should roll back when the run insert fails", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		dbErr := errors.New("duplicate key value violates unique constraint")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(insertRunSQL)).WillReturnError(dbErr)
		mockPool.ExpectRollback()

		err := store.SaveRun(ctx, sampleRun())
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should log a failed rollback", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		store, mockPool := newMockStore(t, zap.New(core))

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(insertRunSQL)).WillReturnError(errors.New("boom"))
		mockPool.ExpectRollback().WillReturnError(errors.New("connection reset"))

		assert.Error(t, store.SaveRun(ctx, sampleRun()))
		assert.Equal(t, 1, logs.FilterMessage("Failed to rollback transaction").Len())
	})

	t.Run("should surface begin failures", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectBegin().WillReturnError(errors.New("too many connections"))

		err := store.SaveRun(ctx, sampleRun())
		assert.ErrorContains(t, err, "failed to begin transaction")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRecentRuns(t *testing.T) {
	ctx := context.Background()

	t.Run("should retrieve runs newest first", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		now := time.Now().UTC()

		columns := []string{"id", "started_at", "ended_at", "total", "passed", "failed", "metadata"}
		rows := pgxmock.NewRows(columns).
			AddRow("run-2", now, now.Add(time.Minute), 2, 2, 0, []byte(`{"headless":true,"ci":true,"base_url":"https://parabank.example"}`)).
			AddRow("run-1", now.Add(-time.Hour), now.Add(-59*time.Minute), 2, 1, 1, []byte(`{}`))
		mockPool.ExpectQuery(flexibleSQLMatcher(recentRunsSQL)).WithArgs(10).WillReturnRows(rows)

		runs, err := store.RecentRuns(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-2", runs[0].ID)
		assert.Equal(t, recorder.Totals{Total: 2, Passed: 2}, runs[0].Totals)
		assert.True(t, runs[0].Metadata.CI)
		assert.True(t, runs[0].Start.Equal(now))
		assert.Equal(t, recorder.Totals{Total: 2, Passed: 1, Failed: 1}, runs[1].Totals)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should return an empty slice for no history", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(recentRunsSQL)).WithArgs(5).
			WillReturnRows(pgxmock.NewRows([]string{"id", "started_at", "ended_at", "total", "passed", "failed", "metadata"}))

		runs, err := store.RecentRuns(ctx, 5)
		require.NoError(t, err)
		assert.NotNil(t, runs)
		assert.Empty(t, runs)
	})

	t.Run("should reject a non-positive limit", func(t *testing.T) {
		store, _ := newMockStore(t, zap.NewNop())
		_, err := store.RecentRuns(ctx, 0)
		assert.Error(t, err)
	})

	t.Run("should surface query errors", func(t *testing.T) {
		store, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(recentRunsSQL)).WillReturnError(errors.New("relation \"runs\" does not exist"))

		_, err := store.RecentRuns(ctx, 3)
		assert.ErrorContains(t, err, "failed to query runs")
	})
}

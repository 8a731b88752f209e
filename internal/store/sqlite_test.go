package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bugzapp/internal/qa"
)

func TestOpenSQLite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa.sqlite")

	for i := 0; i < 3; i++ {
		s, err := OpenSQLite(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpenSQLite_Pragmas(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "qa.sqlite"))
	require.NoError(t, err)
	defer s.Close()

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

// A database created before the session and description columns existed
// must open, gain the columns, and accept writes.
func TestOpenSQLite_ReconcilesOlderSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.sqlite")

	legacy, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = legacy.Exec(`
		CREATE TABLE test_runs (
			id TEXT PRIMARY KEY,
			suite_id TEXT,
			summary TEXT NOT NULL,
			tags TEXT,
			url TEXT,
			started_at TEXT,
			created_at TEXT NOT NULL
		);
		CREATE TABLE bug_reports (
			id TEXT PRIMARY KEY,
			report TEXT NOT NULL,
			tags TEXT,
			url TEXT,
			severity TEXT,
			observed_at TEXT,
			created_at TEXT NOT NULL
		);
		INSERT INTO test_runs (id, summary, tags, url, started_at, created_at)
		VALUES ('old-run', '{"status":"pass","durationMs":0,"startedAt":"2024-01-01T00:00:00Z","endedAt":"2024-01-01T00:00:00Z","testCaseResults":[],"evidence":[]}',
		        '["legacy"]', 'https://old.example/', '2024-01-01T00:00:00.000Z', '2024-01-01T00:00:00.000Z');
	`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	for _, c := range reconciledColumns {
		var n int
		require.NoError(t, s.db.QueryRow(
			"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", c.table, c.column).Scan(&n))
		assert.Equal(t, 1, n, "%s.%s", c.table, c.column)
	}

	ctx := context.Background()
	old, err := s.SearchTestRuns(ctx, Query{Tags: []string{"legacy"}})
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, "old-run", old[0].ID)

	_, err = s.SaveTestRun(ctx, TestRunInput{
		SuiteID:          "smoke",
		SuiteDescription: "Smoke suite",
		Summary:          sampleSummary("2025-01-01T00:00:00.000Z"),
		Metadata:         Metadata{BrowserbaseSessionID: "sess-1"},
	})
	require.NoError(t, err)

	runs, err := s.SearchTestRuns(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "sess-1", runs[0].Metadata.BrowserbaseSessionID)
}

func TestSQLiteStore_SeverityPrefilter(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "qa.sqlite"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.SaveBugReport(ctx, BugReportInput{Report: sampleReport(qa.SeverityMinor, "2025-01-01T00:00:00.000Z")})
	require.NoError(t, err)
	major, err := s.SaveBugReport(ctx, BugReportInput{Report: sampleReport(qa.SeverityMajor, "2025-01-01T00:00:00.000Z")})
	require.NoError(t, err)

	got, err := s.SearchBugReports(ctx, Query{Severity: qa.SeverityMajor})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, major.ID, got[0].ID)
}

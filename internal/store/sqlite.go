package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/bugzapp/internal/qa"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Tables only (databases created before indexes existed)
// 1 - Indexes on url, severity, and date columns
const currentSchemaVersion = 1

// reconciledColumns lists columns added after the first schema. Databases
// created by older versions get them via ALTER TABLE at open.
var reconciledColumns = []struct {
	table, column, definition string
}{
	{"test_runs", "suite_description", "TEXT"},
	{"test_runs", "ended_at", "TEXT"},
	{"test_runs", "browserbase_session_id", "TEXT"},
	{"test_runs", "browserbase_session_url", "TEXT"},
	{"bug_reports", "reported_at", "TEXT"},
}

// SQLiteStore keeps records in SQLite with indexed filter columns and the
// full record serialized as JSON. Uses WAL mode for concurrent read access.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// OpenSQLite creates or opens a SQLite database at the given path.
// Applies required pragmas, reconciles columns missing from older schemas,
// and runs migrations.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func OpenSQLite(path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, qa.WrapError(qa.ErrCodeStorageIO, err, "open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, qa.WrapError(qa.ErrCodeStorageIO, err, "connect to database")
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, qa.WrapError(qa.ErrCodeStorageIO, err, "apply pragmas")
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, qa.WrapError(qa.ErrCodeStorageIO, err, "apply schema")
	}

	return &SQLiteStore{db: db, opts: buildOptions(opts)}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates missing tables, adds missing columns, and runs
// migrations. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	for _, c := range reconciledColumns {
		if err := ensureColumn(db, c.table, c.column, c.definition); err != nil {
			return err
		}
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// ensureColumn adds column to table when PRAGMA table_info does not list it.
func ensureColumn(db *sql.DB, table, column, definition string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("inspect %s: %w", table, err)
		}
		if name == column {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	rows.Close()

	if found {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes the commonly filtered columns.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_test_runs_url ON test_runs(url);
		CREATE INDEX IF NOT EXISTS idx_test_runs_started_at ON test_runs(started_at);
		CREATE INDEX IF NOT EXISTS idx_bug_reports_url ON bug_reports(url);
		CREATE INDEX IF NOT EXISTS idx_bug_reports_severity ON bug_reports(severity);
		CREATE INDEX IF NOT EXISTS idx_bug_reports_observed_at ON bug_reports(observed_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// SaveTestRun implements Storage.
func (s *SQLiteStore) SaveTestRun(ctx context.Context, input TestRunInput) (TestRunRecord, error) {
	record := TestRunRecord{
		ID:               s.opts.ids.Generate(),
		SuiteID:          input.SuiteID,
		SuiteDescription: input.SuiteDescription,
		Summary:          input.Summary,
		Metadata:         testRunMetadata(input.Summary, input.Metadata),
		CreatedAt:        qa.Normalize(s.opts.clock.Now()),
	}

	summaryJSON, err := json.Marshal(record.Summary)
	if err != nil {
		return TestRunRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "save test run: encode summary")
	}
	tagsJSON, err := marshalTags(record.Metadata.Tags)
	if err != nil {
		return TestRunRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "save test run: encode tags")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO test_runs
		(id, suite_id, suite_description, summary, tags, url, started_at, ended_at,
		 browserbase_session_id, browserbase_session_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		nullString(record.SuiteID),
		nullString(record.SuiteDescription),
		string(summaryJSON),
		tagsJSON,
		nullString(record.Metadata.URL),
		nullString(record.Metadata.StartedAt),
		nullString(record.Metadata.EndedAt),
		nullString(record.Metadata.BrowserbaseSessionID),
		nullString(record.Metadata.BrowserbaseSessionURL),
		qa.FormatTimestamp(record.CreatedAt),
	)
	if err != nil {
		return TestRunRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "save test run")
	}
	return record, nil
}

// SaveBugReport implements Storage.
func (s *SQLiteStore) SaveBugReport(ctx context.Context, input BugReportInput) (BugReportRecord, error) {
	record := BugReportRecord{
		ID:        s.opts.ids.Generate(),
		Report:    input.Report,
		Metadata:  bugReportMetadata(input.Report, input.Metadata),
		CreatedAt: qa.Normalize(s.opts.clock.Now()),
	}

	reportJSON, err := json.Marshal(record.Report)
	if err != nil {
		return BugReportRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "save bug report: encode report")
	}
	tagsJSON, err := marshalTags(record.Metadata.Tags)
	if err != nil {
		return BugReportRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "save bug report: encode tags")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bug_reports
		(id, report, tags, url, severity, observed_at, reported_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		string(reportJSON),
		tagsJSON,
		nullString(record.Metadata.URL),
		nullString(string(record.Metadata.Severity)),
		nullString(record.Metadata.ObservedAt),
		nullString(record.Metadata.ReportedAt),
		qa.FormatTimestamp(record.CreatedAt),
	)
	if err != nil {
		return BugReportRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "save bug report")
	}
	return record, nil
}

// UpdateBugReport implements Storage. The record must already exist.
func (s *SQLiteStore) UpdateBugReport(ctx context.Context, record BugReportRecord) (BugReportRecord, error) {
	record.Metadata.Tags = NormalizeTags(record.Metadata.Tags)

	reportJSON, err := json.Marshal(record.Report)
	if err != nil {
		return BugReportRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "update bug report: encode report")
	}
	tagsJSON, err := marshalTags(record.Metadata.Tags)
	if err != nil {
		return BugReportRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "update bug report: encode tags")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE bug_reports
		SET report = ?, tags = ?, url = ?, severity = ?, observed_at = ?, reported_at = ?
		WHERE id = ?
	`,
		string(reportJSON),
		tagsJSON,
		nullString(record.Metadata.URL),
		nullString(string(record.Metadata.Severity)),
		nullString(record.Metadata.ObservedAt),
		nullString(record.Metadata.ReportedAt),
		record.ID,
	)
	if err != nil {
		return BugReportRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "update bug report")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return BugReportRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "update bug report")
	}
	if n == 0 {
		return BugReportRecord{}, qa.NewError(qa.ErrCodeNotFound, "bug report %s not found", record.ID)
	}
	return record, nil
}

// SearchTestRuns implements Storage. url and date bounds are applied in SQL;
// tags are matched after the scan.
func (s *SQLiteStore) SearchTestRuns(ctx context.Context, query Query) ([]TestRunRecord, error) {
	where, args := buildWhere(query, "COALESCE(started_at, created_at)", false)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, suite_id, suite_description, summary, tags, url, started_at, ended_at,
		       browserbase_session_id, browserbase_session_url, created_at
		FROM test_runs`+where+`
		ORDER BY COALESCE(started_at, created_at) DESC, id DESC
	`, args...)
	if err != nil {
		return nil, qa.WrapError(qa.ErrCodeStorageIO, err, "search test runs")
	}
	defer rows.Close()

	records := []TestRunRecord{}
	for rows.Next() {
		record, err := scanTestRun(rows)
		if err != nil {
			return nil, err
		}
		if Matches(record.Metadata, record.CreatedAt, query) {
			records = append(records, record)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, qa.WrapError(qa.ErrCodeStorageIO, err, "search test runs")
	}
	sortTestRuns(records)
	return records, nil
}

// SearchBugReports implements Storage. url, severity, and date bounds are
// applied in SQL; tags are matched after the scan.
func (s *SQLiteStore) SearchBugReports(ctx context.Context, query Query) ([]BugReportRecord, error) {
	where, args := buildWhere(query, "COALESCE(observed_at, reported_at, created_at)", true)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report, tags, url, severity, observed_at, reported_at, created_at
		FROM bug_reports`+where+`
		ORDER BY COALESCE(observed_at, reported_at, created_at) DESC, id DESC
	`, args...)
	if err != nil {
		return nil, qa.WrapError(qa.ErrCodeStorageIO, err, "search bug reports")
	}
	defer rows.Close()

	records := []BugReportRecord{}
	for rows.Next() {
		record, err := scanBugReport(rows)
		if err != nil {
			return nil, err
		}
		if Matches(record.Metadata, record.CreatedAt, query) {
			records = append(records, record)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, qa.WrapError(qa.ErrCodeStorageIO, err, "search bug reports")
	}
	sortBugReports(records)
	return records, nil
}

// GetTestRun implements Storage.
func (s *SQLiteStore) GetTestRun(ctx context.Context, id string) (TestRunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, suite_id, suite_description, summary, tags, url, started_at, ended_at,
		       browserbase_session_id, browserbase_session_url, created_at
		FROM test_runs WHERE id = ?
	`, id)
	record, err := scanTestRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TestRunRecord{}, qa.NewError(qa.ErrCodeNotFound, "test run %s not found", id)
	}
	if err != nil {
		return TestRunRecord{}, err
	}
	return record, nil
}

// GetBugReport implements Storage.
func (s *SQLiteStore) GetBugReport(ctx context.Context, id string) (BugReportRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, report, tags, url, severity, observed_at, reported_at, created_at
		FROM bug_reports WHERE id = ?
	`, id)
	record, err := scanBugReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return BugReportRecord{}, qa.NewError(qa.ErrCodeNotFound, "bug report %s not found", id)
	}
	if err != nil {
		return BugReportRecord{}, err
	}
	return record, nil
}

// buildWhere renders the SQL prefilter. dateExpr is the effective-date
// expression for the table.
func buildWhere(q Query, dateExpr string, withSeverity bool) (string, []any) {
	var clauses []string
	var args []any

	if q.URL != "" {
		clauses = append(clauses, "url = ?")
		args = append(args, q.URL)
	}
	if withSeverity && q.Severity != "" {
		clauses = append(clauses, "severity = ?")
		args = append(args, string(q.Severity))
	}
	if !q.From.IsZero() {
		clauses = append(clauses, dateExpr+" >= ?")
		args = append(args, qa.FormatTimestamp(q.From))
	}
	if !q.To.IsZero() {
		clauses = append(clauses, dateExpr+" <= ?")
		args = append(args, qa.FormatTimestamp(q.To))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTestRun(row rowScanner) (TestRunRecord, error) {
	var (
		record                TestRunRecord
		suiteID, suiteDesc    sql.NullString
		summaryJSON           string
		tagsJSON, url         sql.NullString
		startedAt, endedAt    sql.NullString
		sessionID, sessionURL sql.NullString
		createdAt             string
	)
	err := row.Scan(&record.ID, &suiteID, &suiteDesc, &summaryJSON, &tagsJSON, &url,
		&startedAt, &endedAt, &sessionID, &sessionURL, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return TestRunRecord{}, err
	}
	if err != nil {
		return TestRunRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "scan test run")
	}

	if err := json.Unmarshal([]byte(summaryJSON), &record.Summary); err != nil {
		return TestRunRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "decode summary of %s", record.ID)
	}
	tags, err := unmarshalTags(tagsJSON)
	if err != nil {
		return TestRunRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "decode tags of %s", record.ID)
	}
	created, err := parseCreatedAt(createdAt)
	if err != nil {
		return TestRunRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "decode created_at of %s", record.ID)
	}

	record.SuiteID = suiteID.String
	record.SuiteDescription = suiteDesc.String
	record.Metadata = Metadata{
		Tags:                  tags,
		URL:                   url.String,
		StartedAt:             startedAt.String,
		EndedAt:               endedAt.String,
		BrowserbaseSessionID:  sessionID.String,
		BrowserbaseSessionURL: sessionURL.String,
	}
	record.CreatedAt = created
	return record, nil
}

func scanBugReport(row rowScanner) (BugReportRecord, error) {
	var (
		record                  BugReportRecord
		reportJSON              string
		tagsJSON, url, severity sql.NullString
		observedAt, reportedAt  sql.NullString
		createdAt               string
	)
	err := row.Scan(&record.ID, &reportJSON, &tagsJSON, &url, &severity, &observedAt, &reportedAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return BugReportRecord{}, err
	}
	if err != nil {
		return BugReportRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "scan bug report")
	}

	if err := json.Unmarshal([]byte(reportJSON), &record.Report); err != nil {
		return BugReportRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "decode report of %s", record.ID)
	}
	tags, err := unmarshalTags(tagsJSON)
	if err != nil {
		return BugReportRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "decode tags of %s", record.ID)
	}
	created, err := parseCreatedAt(createdAt)
	if err != nil {
		return BugReportRecord{}, qa.WrapError(qa.ErrCodeStorageIO, err, "decode created_at of %s", record.ID)
	}

	record.Metadata = Metadata{
		Tags:       tags,
		URL:        url.String,
		Severity:   qa.Severity(severity.String),
		ObservedAt: observedAt.String,
		ReportedAt: reportedAt.String,
	}
	record.CreatedAt = created
	return record, nil
}

func parseCreatedAt(s string) (time.Time, error) {
	t, err := qa.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, err
	}
	return qa.Normalize(t), nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalTags(s sql.NullString) ([]string, error) {
	tags := []string{}
	if !s.Valid || s.String == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(s.String), &tags); err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// nullString maps "" to SQL NULL so COALESCE falls through absent dates.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

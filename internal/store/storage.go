package store

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/roach88/bugzapp/internal/qa"
)

// Storage is the backend-agnostic persistence contract.
//
// Save operations assign a fresh id and creation timestamp; callers never
// supply them. Search results are ordered newest effective date first, then
// id descending.
type Storage interface {
	SaveTestRun(ctx context.Context, input TestRunInput) (TestRunRecord, error)
	SaveBugReport(ctx context.Context, input BugReportInput) (BugReportRecord, error)
	UpdateBugReport(ctx context.Context, record BugReportRecord) (BugReportRecord, error)
	SearchTestRuns(ctx context.Context, query Query) ([]TestRunRecord, error)
	SearchBugReports(ctx context.Context, query Query) ([]BugReportRecord, error)
	GetTestRun(ctx context.Context, id string) (TestRunRecord, error)
	GetBugReport(ctx context.Context, id string) (BugReportRecord, error)
	Close() error
}

// Metadata holds the indexed, filterable facts of a record.
// Date fields use qa.TimestampLayout.
type Metadata struct {
	Tags                  []string    `json:"tags"`
	URL                   string      `json:"url,omitempty"`
	Severity              qa.Severity `json:"severity,omitempty"`
	StartedAt             string      `json:"startedAt,omitempty"`
	EndedAt               string      `json:"endedAt,omitempty"`
	ObservedAt            string      `json:"observedAt,omitempty"`
	ReportedAt            string      `json:"reportedAt,omitempty"`
	BrowserbaseSessionID  string      `json:"browserbaseSessionId,omitempty"`
	BrowserbaseSessionURL string      `json:"browserbaseSessionUrl,omitempty"`
}

// TestRunInput is what callers hand to SaveTestRun.
type TestRunInput struct {
	SuiteID          string
	SuiteDescription string
	Summary          qa.TestRunSummary
	Metadata         Metadata
}

// BugReportInput is what callers hand to SaveBugReport.
type BugReportInput struct {
	Report   qa.BugReport
	Metadata Metadata
}

// TestRunRecord is a persisted run.
type TestRunRecord struct {
	ID               string            `json:"id"`
	SuiteID          string            `json:"suiteId,omitempty"`
	SuiteDescription string            `json:"suiteDescription,omitempty"`
	Summary          qa.TestRunSummary `json:"summary"`
	Metadata         Metadata          `json:"metadata"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// BugReportRecord is a persisted bug report.
type BugReportRecord struct {
	ID        string       `json:"id"`
	Report    qa.BugReport `json:"report"`
	Metadata  Metadata     `json:"metadata"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Query filters search results. Every non-zero field must match.
type Query struct {
	// Tags must all be present on a record.
	Tags []string

	URL      string
	Severity qa.Severity

	// From and To bound the effective date, inclusive.
	From time.Time
	To   time.Time
}

// NormalizeTags trims every tag and drops empty ones. Never returns nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// testRunMetadata derives stored metadata for a run: tags are normalized and
// the run's own timestamps are recorded.
func testRunMetadata(summary qa.TestRunSummary, in Metadata) Metadata {
	return Metadata{
		Tags:                  NormalizeTags(in.Tags),
		URL:                   in.URL,
		StartedAt:             qa.FormatTimestamp(summary.StartedAt),
		EndedAt:               qa.FormatTimestamp(summary.EndedAt),
		BrowserbaseSessionID:  in.BrowserbaseSessionID,
		BrowserbaseSessionURL: in.BrowserbaseSessionURL,
	}
}

// bugReportMetadata derives stored metadata for a report. The url falls back
// to the report's first url.
func bugReportMetadata(report qa.BugReport, in Metadata) Metadata {
	url := in.URL
	if url == "" && len(report.URLs) > 0 {
		url = report.URLs[0]
	}
	return Metadata{
		Tags:       NormalizeTags(in.Tags),
		URL:        url,
		Severity:   report.Severity,
		ObservedAt: qa.FormatTimestamp(report.Timestamps.ObservedAt),
		ReportedAt: qa.FormatTimestamp(report.Timestamps.ReportedAt),
	}
}

// EffectiveDate returns the date a record is filtered and ordered by.
func EffectiveDate(m Metadata, createdAt time.Time) string {
	for _, d := range []string{m.StartedAt, m.ObservedAt, m.ReportedAt} {
		if d != "" {
			return d
		}
	}
	return qa.FormatTimestamp(createdAt)
}

// Matches reports whether a record satisfies every supplied query field.
func Matches(m Metadata, createdAt time.Time, q Query) bool {
	for _, tag := range q.Tags {
		if !slices.Contains(m.Tags, tag) {
			return false
		}
	}
	if q.URL != "" && m.URL != q.URL {
		return false
	}
	if q.Severity != "" && m.Severity != q.Severity {
		return false
	}

	date := EffectiveDate(m, createdAt)
	if !q.From.IsZero() && date < qa.FormatTimestamp(q.From) {
		return false
	}
	if !q.To.IsZero() && date > qa.FormatTimestamp(q.To) {
		return false
	}
	return true
}

// sortNewestFirst orders records by effective date descending, then id
// descending, so both backends agree on ties.
func sortNewestFirst[T any](records []T, key func(T) (date, id string)) {
	slices.SortStableFunc(records, func(a, b T) int {
		da, ia := key(a)
		db, ib := key(b)
		if c := strings.Compare(db, da); c != 0 {
			return c
		}
		return strings.Compare(ib, ia)
	})
}

func sortTestRuns(records []TestRunRecord) {
	sortNewestFirst(records, func(r TestRunRecord) (string, string) {
		return EffectiveDate(r.Metadata, r.CreatedAt), r.ID
	})
}

func sortBugReports(records []BugReportRecord) {
	sortNewestFirst(records, func(r BugReportRecord) (string, string) {
		return EffectiveDate(r.Metadata, r.CreatedAt), r.ID
	})
}

// Option configures a backend.
type Option func(*options)

type options struct {
	clock qa.Clock
	ids   qa.IDGenerator
}

// WithClock sets the clock used for creation timestamps.
func WithClock(clock qa.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithIDGenerator sets the generator used for record ids.
func WithIDGenerator(ids qa.IDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

func buildOptions(opts []Option) options {
	o := options{clock: qa.SystemClock{}, ids: qa.UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

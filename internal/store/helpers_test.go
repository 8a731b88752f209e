package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/testutil"
)

// backends returns a fresh instance of every backend, each with its own
// deterministic clock and id sequence.
func backends(t *testing.T) map[string]Storage {
	t.Helper()
	dir := t.TempDir()

	file := NewFileStore(filepath.Join(dir, "records"),
		WithClock(testutil.NewStepClock(time.Second)),
		WithIDGenerator(testutil.NewSequenceIDs("rec")))

	db, err := OpenSQLite(filepath.Join(dir, "qa.sqlite"),
		WithClock(testutil.NewStepClock(time.Second)),
		WithIDGenerator(testutil.NewSequenceIDs("rec")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Storage{"json": file, "sqlite": db}
}

func ts(s string) time.Time {
	t, err := qa.ParseTimestamp(s)
	if err != nil {
		panic(err)
	}
	return t
}

func sampleSummary(started string) qa.TestRunSummary {
	start := ts(started)
	return qa.TestRunSummary{
		Status:     qa.StatusPass,
		DurationMs: 1500,
		StartedAt:  start,
		EndedAt:    start.Add(1500 * time.Millisecond),
		TestCaseResults: []qa.TestCaseResult{{
			TestCaseID:  "home",
			Description: "Home page loads",
			Status:      qa.StatusPass,
			DurationMs:  1500,
			StartedAt:   start,
			EndedAt:     start.Add(1500 * time.Millisecond),
			Steps: []qa.StepResult{{
				StepID:       "open",
				Description:  "Open home",
				Tool:         qa.ToolNavigate,
				Status:       qa.StatusPass,
				DurationMs:   1500,
				StartedAt:    start,
				EndedAt:      start.Add(1500 * time.Millisecond),
				Output:       map[string]any{"success": true, "title": "Home"},
				EvidenceRefs: []string{"step:open"},
			}},
			EvidenceRefs: []string{"step:open"},
		}},
		Evidence: []qa.EvidenceRecord{{
			Ref:    "step:open",
			StepID: "open",
			Data:   map[string]any{"success": true, "title": "Home"},
		}},
	}
}

func sampleReport(severity qa.Severity, observed string) qa.BugReport {
	at := ts(observed)
	return qa.BugReport{
		Title:           "Checkout button hidden",
		Severity:        severity,
		Priority:        qa.BugPriorityP1,
		Reproducibility: qa.ReproAlways,
		Component:       "UI",
		Steps:           []string{"Open checkout", "Look for the pay button"},
		Expected:        "Pay button is visible",
		Actual:          "Pay button is hidden",
		Environment:     qa.Environment{URL: "https://shop.example/checkout"},
		Timestamps:      qa.Timestamps{ObservedAt: at, ReportedAt: at.Add(2 * time.Second)},
		URLs:            []string{"https://shop.example/checkout"},
	}
}

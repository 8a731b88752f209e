package bugreport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/roach88/bugzapp/internal/evidence"
	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/runner"
	"github.com/roach88/bugzapp/internal/store"
)

// ReportFile is written into the evidence directory of every failed check.
const ReportFile = "bug-report.json"

// Target is a browser page that can be both inspected and observed.
type Target interface {
	evidence.Session
	Page
}

// ReportSaver persists bug reports. store.Storage satisfies it.
type ReportSaver interface {
	SaveBugReport(ctx context.Context, input store.BugReportInput) (store.BugReportRecord, error)
}

// CheckRequest describes one assertion check.
type CheckRequest struct {
	Title      string
	Severity   qa.Severity
	Steps      []string
	Assertions []Assertion

	Expected     string
	Actual       string
	DOMSelectors []string
	Tags         []string

	// Label prefixes the evidence directory. Defaults to "qa-assert".
	Label string
}

// CheckResult reports the outcome of Check.
type CheckResult struct {
	Success           bool      `json:"success"`
	Message           string    `json:"message"`
	Outcomes          []Outcome `json:"outcomes"`
	BugReportPath     string    `json:"bugReportPath,omitempty"`
	EvidenceDirectory string    `json:"evidenceDirectory,omitempty"`
	BugReportID       string    `json:"bugReportId,omitempty"`
}

// Asserter evaluates assertions against a live page and files a bug report
// with captured evidence when any of them fails.
type Asserter struct {
	Builder  *Builder
	Capturer evidence.Capturer
	Storage  ReportSaver
	Clock    qa.Clock
	Logger   *slog.Logger
}

// Check evaluates req against target. On failure it captures evidence,
// builds and validates a report, writes it next to the evidence, and stores
// it tagged with req.Tags and the page URL.
//
// The evidence collector is attached for the duration of the call and
// detached on every return path.
func (a *Asserter) Check(ctx context.Context, target Target, req CheckRequest) (CheckResult, error) {
	clock := a.Clock
	if clock == nil {
		clock = qa.SystemClock{}
	}
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	collector := evidence.Attach(target, clock)
	defer collector.Detach()

	outcomes, err := Evaluate(ctx, target, req.Assertions)
	if err != nil {
		return CheckResult{}, fmt.Errorf("qa assertion failed: %w", err)
	}
	failures := Failed(outcomes)
	if len(failures) == 0 {
		return CheckResult{
			Success:  true,
			Message:  fmt.Sprintf("All %d assertions passed", len(outcomes)),
			Outcomes: outcomes,
		}, nil
	}

	observedAt := qa.Normalize(clock.Now())
	label := req.Label
	if label == "" {
		label = "qa-assert"
	}
	captured, err := a.Capturer.Capture(ctx, target, collector.ConsoleLogs(), collector.NetworkErrors(), label)
	if err != nil {
		return CheckResult{}, fmt.Errorf("qa assertion failed: %w", err)
	}

	pageURL := target.URL()
	report, err := a.Builder.Build(failures, Context{
		Title:        defaultTitle(req.Title, pageURL),
		Severity:     req.Severity,
		Steps:        defaultSteps(req.Steps, pageURL, failures),
		Expected:     req.Expected,
		Actual:       req.Actual,
		Environment:  qa.Environment{URL: pageURL, Viewport: target.Viewport()},
		ObservedAt:   observedAt,
		URLs:         []string{pageURL},
		DOMSelectors: defaultSelectors(req.DOMSelectors, failures),
		Evidence:     captured.Evidence,
	})
	if err != nil {
		return CheckResult{}, fmt.Errorf("qa assertion failed: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return CheckResult{}, fmt.Errorf("qa assertion failed: encode report: %w", err)
	}
	reportPath := filepath.Join(captured.Directory, ReportFile)
	if err := store.WriteFileAtomic(reportPath, data); err != nil {
		return CheckResult{}, qa.WrapError(qa.ErrCodeStorageIO, err, "write %s", reportPath)
	}

	result := CheckResult{
		Success:           false,
		Message:           "Assertion failed. Bug report captured.",
		Outcomes:          outcomes,
		BugReportPath:     reportPath,
		EvidenceDirectory: captured.Directory,
	}

	if a.Storage != nil {
		record, err := a.Storage.SaveBugReport(ctx, store.BugReportInput{
			Report:   report,
			Metadata: store.Metadata{Tags: req.Tags, URL: pageURL},
		})
		if err != nil {
			return CheckResult{}, fmt.Errorf("qa assertion failed: %w", err)
		}
		result.BugReportID = record.ID
	}

	logger.Info("bug report captured",
		"title", report.Title,
		"severity", report.Severity,
		"evidence", captured.Directory,
		"id", result.BugReportID)
	return result, nil
}

// TargetProvider supplies the page an assert step runs against.
type TargetProvider interface {
	Target(ctx context.Context) (Target, error)
}

// Navigator is implemented by targets that can load a URL.
type Navigator interface {
	Goto(ctx context.Context, url string) error
}

// assertInput is the "assert" tool's input document.
type assertInput struct {
	URL          string            `json:"url"`
	Title        string            `json:"title"`
	Severity     qa.Severity       `json:"severity"`
	Steps        []string          `json:"steps"`
	Assertions   []json.RawMessage `json:"assertions"`
	Expected     string            `json:"expected"`
	Actual       string            `json:"actual"`
	DOMSelectors []string          `json:"domSelectors"`
	Tags         []string          `json:"tags"`
}

// Tool exposes Check as the runner tool "assert". A failed check yields a
// CheckResult with success=false, which the runner records as a failed step.
func (a *Asserter) Tool(targets TargetProvider) runner.Tool {
	return runner.ToolFunc(func(ctx context.Context, input map[string]any) (any, error) {
		raw, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("encode assert input: %w", err)
		}
		var in assertInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("decode assert input: %w", err)
		}
		if len(in.Assertions) == 0 {
			return nil, fmt.Errorf("assert input has no assertions")
		}
		assertions := make([]Assertion, 0, len(in.Assertions))
		for i, r := range in.Assertions {
			as, err := DecodeAssertion(r)
			if err != nil {
				return nil, fmt.Errorf("assertions[%d]: %w", i, err)
			}
			assertions = append(assertions, as)
		}

		target, err := targets.Target(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire page: %w", err)
		}
		if in.URL != "" {
			nav, ok := target.(Navigator)
			if !ok {
				return nil, fmt.Errorf("page cannot navigate to %s", in.URL)
			}
			if err := nav.Goto(ctx, in.URL); err != nil {
				return nil, fmt.Errorf("navigate to %s: %w", in.URL, err)
			}
		}

		return a.Check(ctx, target, CheckRequest{
			Title:        in.Title,
			Severity:     in.Severity,
			Steps:        in.Steps,
			Assertions:   assertions,
			Expected:     in.Expected,
			Actual:       in.Actual,
			DOMSelectors: in.DOMSelectors,
			Tags:         in.Tags,
		})
	})
}

func defaultTitle(title, url string) string {
	if title != "" {
		return title
	}
	return "Assertion failed on " + url
}

func defaultSteps(steps []string, url string, failures []Outcome) []string {
	if len(steps) > 0 {
		return steps
	}
	out := []string{"Open " + url}
	for _, f := range failures {
		out = append(out, "Check that "+f.Expectation)
	}
	return out
}

func defaultSelectors(selectors []string, failures []Outcome) []string {
	if len(selectors) > 0 {
		return selectors
	}
	var out []string
	seen := make(map[string]bool)
	for _, f := range failures {
		if f.Selector != "" && !seen[f.Selector] {
			seen[f.Selector] = true
			out = append(out, f.Selector)
		}
	}
	return out
}

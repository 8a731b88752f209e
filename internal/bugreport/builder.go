package bugreport

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/triage"
)

// Context carries the caller-supplied report fields. Zero-valued fields are
// filled by the Builder.
type Context struct {
	Title string

	// Severity, Priority, Reproducibility, and Component default to the
	// triage inference over the failed assertions.
	Severity        qa.Severity
	Priority        qa.BugPriority
	Reproducibility qa.Reproducibility
	Component       string

	Steps []string

	// Expected and Actual default to the "; "-joined expectations and
	// messages of the failed assertions.
	Expected string
	Actual   string

	Environment qa.Environment
	Browser     qa.Browser
	Device      qa.Device

	// ObservedAt is captured by the caller before evidence collection.
	// Defaults to the build time.
	ObservedAt time.Time

	URLs         []string
	DOMSelectors []string
	Evidence     []qa.EvidenceArtifact
}

// Builder constructs validated bug reports.
type Builder struct {
	validator *Validator
	clock     qa.Clock
}

// NewBuilder compiles the report schema. A nil clock uses the system clock.
func NewBuilder(clock qa.Clock) (*Builder, error) {
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = qa.SystemClock{}
	}
	return &Builder{validator: v, clock: clock}, nil
}

// Build assembles a report from failed assertion outcomes and c, stamps
// reportedAt, and validates the result. Returns a VALIDATION error when
// required fields are missing; no partial report is returned.
func (b *Builder) Build(failures []Outcome, c Context) (qa.BugReport, error) {
	kinds := make([]triage.Failure, len(failures))
	for i, f := range failures {
		kinds[i] = triage.Failure{Type: f.Type}
	}
	defaults := triage.InferDefaults(kinds)

	reportedAt := qa.Normalize(b.clock.Now())
	observedAt := c.ObservedAt
	if observedAt.IsZero() {
		observedAt = reportedAt
	}

	report := qa.BugReport{
		Title:           c.Title,
		Severity:        firstNonEmpty(c.Severity, defaults.Severity),
		Priority:        firstNonEmpty(c.Priority, defaults.Priority),
		Reproducibility: firstNonEmpty(c.Reproducibility, defaults.Reproducibility),
		Component:       firstNonEmpty(c.Component, defaults.Component),
		Steps:           c.Steps,
		Expected:        c.Expected,
		Actual:          c.Actual,
		Environment:     c.Environment,
		Browser:         c.Browser,
		Device:          c.Device,
		Timestamps: qa.Timestamps{
			ObservedAt: qa.Normalize(observedAt),
			ReportedAt: reportedAt,
		},
		URLs:         c.URLs,
		DOMSelectors: c.DOMSelectors,
		Evidence:     c.Evidence,
	}
	if report.Expected == "" {
		report.Expected = joinOutcomes(failures, func(o Outcome) string { return o.Expectation })
	}
	if report.Actual == "" {
		report.Actual = joinOutcomes(failures, func(o Outcome) string { return o.Message })
	}

	if err := b.validator.Validate(report); err != nil {
		return qa.BugReport{}, fmt.Errorf("build bug report: %w", err)
	}
	return report, nil
}

func joinOutcomes(outcomes []Outcome, field func(Outcome) string) string {
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if s := field(o); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}

func firstNonEmpty[T ~string](values ...T) T {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

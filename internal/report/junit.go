package report

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/roach88/bugzapp/internal/qa"
)

// DefaultSuiteName labels a JUnit suite when neither a name nor an id is known.
const DefaultSuiteName = "qa-suite"

// SuiteMeta carries the suite identity and the bug reports filed during a run.
type SuiteMeta struct {
	ID          string
	Name        string
	Description string
	BugReports  []qa.BugReport
}

func (m SuiteMeta) label() string {
	switch {
	case m.Name != "":
		return m.Name
	case m.ID != "":
		return m.ID
	default:
		return DefaultSuiteName
	}
}

type junitSuite struct {
	XMLName   xml.Name     `xml:"testsuite"`
	Name      string       `xml:"name,attr"`
	Tests     int          `xml:"tests,attr"`
	Failures  int          `xml:"failures,attr"`
	Skipped   int          `xml:"skipped,attr"`
	Errors    int          `xml:"errors,attr"`
	Time      string       `xml:"time,attr"`
	Cases     []junitCase  `xml:"testcase"`
	SystemOut *junitOutput `xml:"system-out,omitempty"`
}

type junitCase struct {
	ClassName string        `xml:"classname,attr"`
	Name      string        `xml:"name,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
	SystemOut *junitOutput  `xml:"system-out,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",cdata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr"`
}

type junitOutput struct {
	Text string `xml:",cdata"`
}

type caseOutput struct {
	Status    qa.StepStatus `json:"status"`
	StartedAt string        `json:"startedAt"`
	EndedAt   string        `json:"endedAt"`
	Evidence  []string      `json:"evidence"`
	Failures  []string      `json:"failures"`
	Blocked   []string      `json:"blocked"`
}

type suiteEvidence struct {
	Ref       string   `json:"ref"`
	StepID    string   `json:"stepId"`
	Locations []string `json:"locations"`
}

type suiteOutput struct {
	Evidence   []suiteEvidence `json:"evidence"`
	BugReports []qa.BugReport  `json:"bugReports"`
}

// RenderJUnit renders a run as a single JUnit <testsuite>. Failed cases
// count as failures, blocked cases as skipped; errors is always zero.
func RenderJUnit(summary qa.TestRunSummary, meta SuiteMeta) (string, error) {
	label := meta.label()
	className := meta.ID
	if className == "" {
		className = label
	}

	evidence := make(map[string]qa.EvidenceRecord, len(summary.Evidence))
	for _, record := range summary.Evidence {
		evidence[record.Ref] = record
	}

	suite := junitSuite{
		Name:     label,
		Tests:    len(summary.TestCaseResults),
		Failures: summary.CountCases(qa.StatusFail),
		Skipped:  summary.CountCases(qa.StatusBlocked),
		Time:     formatSeconds(summary.DurationMs),
	}

	for _, result := range summary.TestCaseResults {
		tc, err := renderCase(result, className, evidence)
		if err != nil {
			return "", err
		}
		suite.Cases = append(suite.Cases, tc)
	}

	out, err := renderSuiteOutput(summary.Evidence, meta.BugReports)
	if err != nil {
		return "", err
	}
	if out != "" {
		suite.SystemOut = &junitOutput{Text: out}
	}

	body, err := xml.MarshalIndent(suite, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal junit: %w", err)
	}
	return xml.Header + string(body) + "\n", nil
}

func renderCase(result qa.TestCaseResult, className string, evidence map[string]qa.EvidenceRecord) (junitCase, error) {
	tc := junitCase{
		ClassName: className,
		Name:      result.TestCaseID,
		Time:      formatSeconds(result.DurationMs),
	}

	switch result.Status {
	case qa.StatusFail:
		msg := "Test failed."
		if step, ok := result.FirstStepWithStatus(qa.StatusFail); ok {
			msg = failureLine(step)
		}
		tc.Failure = &junitFailure{Message: msg, Body: msg}
	case qa.StatusBlocked:
		msg := "Test blocked."
		if step, ok := result.FirstStepWithStatus(qa.StatusBlocked); ok {
			msg = blockedLine(step)
		}
		tc.Skipped = &junitSkipped{Message: msg}
	}

	out := caseOutput{
		Status:    result.Status,
		StartedAt: qa.FormatTimestamp(result.StartedAt),
		EndedAt:   qa.FormatTimestamp(result.EndedAt),
		Evidence:  []string{},
		Failures:  []string{},
		Blocked:   []string{},
	}
	for _, ref := range result.EvidenceRefs {
		record, ok := evidence[ref]
		if !ok {
			continue
		}
		locations, err := Locations(record.Data)
		if err != nil {
			return junitCase{}, fmt.Errorf("evidence %s: %w", ref, err)
		}
		out.Evidence = append(out.Evidence,
			fmt.Sprintf("Evidence %s (step %s): %s", record.Ref, record.StepID, locationText(locations)))
	}
	for _, step := range result.Steps {
		switch step.Status {
		case qa.StatusFail:
			out.Failures = append(out.Failures, failureLine(step))
		case qa.StatusBlocked:
			out.Blocked = append(out.Blocked, blockedLine(step))
		}
	}

	text, err := indentJSON(out)
	if err != nil {
		return junitCase{}, err
	}
	tc.SystemOut = &junitOutput{Text: text}
	return tc, nil
}

func renderSuiteOutput(records []qa.EvidenceRecord, reports []qa.BugReport) (string, error) {
	if len(records) == 0 && len(reports) == 0 {
		return "", nil
	}
	out := suiteOutput{
		Evidence:   make([]suiteEvidence, 0, len(records)),
		BugReports: reports,
	}
	if out.BugReports == nil {
		out.BugReports = []qa.BugReport{}
	}
	for _, record := range records {
		locations, err := Locations(record.Data)
		if err != nil {
			return "", fmt.Errorf("evidence %s: %w", record.Ref, err)
		}
		out.Evidence = append(out.Evidence, suiteEvidence{
			Ref:       record.Ref,
			StepID:    record.StepID,
			Locations: locations,
		})
	}
	return indentJSON(out)
}

func failureLine(step qa.StepResult) string {
	reason := step.Error
	if reason == "" {
		reason = "Unknown error"
	}
	return fmt.Sprintf("Step %s failed: %s", step.StepID, reason)
}

func blockedLine(step qa.StepResult) string {
	reason := step.Error
	if reason == "" {
		reason = "Blocked"
	}
	return fmt.Sprintf("Step %s blocked: %s", step.StepID, reason)
}

func locationText(locations []string) string {
	if len(locations) == 0 {
		return "No paths recorded"
	}
	return strings.Join(locations, ", ")
}

func formatSeconds(ms int64) string {
	return fmt.Sprintf("%.3f", float64(ms)/1000)
}

// indentJSON marshals v with two-space indentation and without HTML
// escaping, so URLs and selectors stay readable inside CDATA.
func indentJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

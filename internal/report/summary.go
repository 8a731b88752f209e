package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/roach88/bugzapp/internal/qa"
)

// EvidenceLink pairs an evidence record with the locations found in its data.
type EvidenceLink struct {
	Ref       string   `json:"ref"`
	StepID    string   `json:"stepId"`
	Locations []string `json:"locations"`
	Data      any      `json:"data"`
}

// Payload is the canonical machine-readable digest of a run.
type Payload struct {
	SuiteID          string            `json:"suiteId,omitempty"`
	SuiteDescription string            `json:"suiteDescription,omitempty"`
	Summary          qa.TestRunSummary `json:"summary"`
	EvidenceLinks    []EvidenceLink    `json:"evidenceLinks"`
	BugReports       []qa.BugReport    `json:"bugReports"`
}

// BuildPayload derives the evidence links for summary and bundles them with
// the suite identity and bug reports.
func BuildPayload(summary qa.TestRunSummary, meta SuiteMeta) (Payload, error) {
	p := Payload{
		SuiteID:          meta.ID,
		SuiteDescription: meta.Description,
		Summary:          summary,
		EvidenceLinks:    make([]EvidenceLink, 0, len(summary.Evidence)),
		BugReports:       meta.BugReports,
	}
	if p.BugReports == nil {
		p.BugReports = []qa.BugReport{}
	}
	for _, record := range summary.Evidence {
		locations, err := Locations(record.Data)
		if err != nil {
			return Payload{}, fmt.Errorf("evidence %s: %w", record.Ref, err)
		}
		p.EvidenceLinks = append(p.EvidenceLinks, EvidenceLink{
			Ref:       record.Ref,
			StepID:    record.StepID,
			Locations: locations,
			Data:      record.Data,
		})
	}
	return p, nil
}

// RenderJSON renders the payload as indented JSON. ParsePayload reverses it.
func RenderJSON(summary qa.TestRunSummary, meta SuiteMeta) (string, error) {
	p, err := BuildPayload(summary, meta)
	if err != nil {
		return "", err
	}
	return indentJSON(p)
}

// ParsePayload decodes a document produced by RenderJSON.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("parse run payload: %w", err)
	}
	return p, nil
}

// RenderMarkdown renders the same facts as RenderJSON for humans.
func RenderMarkdown(summary qa.TestRunSummary, meta SuiteMeta) (string, error) {
	p, err := BuildPayload(summary, meta)
	if err != nil {
		return "", err
	}

	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("# QA Run Summary")
	if p.SuiteID != "" {
		add("- Suite ID: %s", p.SuiteID)
	}
	if p.SuiteDescription != "" {
		add("- Suite Description: %s", p.SuiteDescription)
	}
	add("- Status: %s", p.Summary.Status)
	add("- Duration: %dms", p.Summary.DurationMs)
	add("- Started: %s", qa.FormatTimestamp(p.Summary.StartedAt))
	add("- Ended: %s", qa.FormatTimestamp(p.Summary.EndedAt))
	add("")

	add("## Test Cases")
	for _, tc := range p.Summary.TestCaseResults {
		lines = append(lines, caseMarkdown(tc)...)
	}

	add("")
	add("## Evidence")
	if len(p.EvidenceLinks) == 0 {
		add("- No evidence collected.")
	}
	for _, link := range p.EvidenceLinks {
		add("- %s (step %s): %s", link.Ref, link.StepID, locationText(link.Locations))
		if link.Data == nil {
			continue
		}
		body, err := indentJSON(link.Data)
		if err != nil {
			return "", err
		}
		add("")
		add("```json")
		lines = append(lines, body)
		add("```")
	}

	add("")
	add("## Bug Reports")
	if len(p.BugReports) == 0 {
		add("- No bug reports submitted.")
	}
	for i, r := range p.BugReports {
		add("### %d. %s (%s)", i+1, r.Title, r.Severity)
		add("- Observed: %s", qa.FormatTimestamp(r.Timestamps.ObservedAt))
		add("- Reported: %s", qa.FormatTimestamp(r.Timestamps.ReportedAt))
		add("- Expected: %s", r.Expected)
		add("- Actual: %s", r.Actual)
		add("- Steps: %s", strings.Join(r.Steps, " | "))
		if len(r.URLs) > 0 {
			add("- URLs: %s", strings.Join(r.URLs, ", "))
		}
		if len(r.DOMSelectors) > 0 {
			add("- Selectors: %s", strings.Join(r.DOMSelectors, ", "))
		}
		if len(r.Evidence) > 0 {
			add("- Evidence:")
			for _, a := range r.Evidence {
				line := fmt.Sprintf("  - %s: %s", a.Type, a.Path)
				if a.MimeType != "" {
					line += fmt.Sprintf(" (%s)", a.MimeType)
				}
				lines = append(lines, line)
			}
		}
		body, err := indentJSON(r)
		if err != nil {
			return "", err
		}
		add("")
		add("```json")
		lines = append(lines, body)
		add("```")
	}

	return strings.Join(lines, "\n") + "\n", nil
}

func caseMarkdown(tc qa.TestCaseResult) []string {
	lines := []string{
		fmt.Sprintf("### %s (%s)", tc.TestCaseID, tc.Status),
		fmt.Sprintf("- Description: %s", tc.Description),
		fmt.Sprintf("- Duration: %dms", tc.DurationMs),
		fmt.Sprintf("- Started: %s", qa.FormatTimestamp(tc.StartedAt)),
		fmt.Sprintf("- Ended: %s", qa.FormatTimestamp(tc.EndedAt)),
	}
	if len(tc.EvidenceRefs) > 0 {
		lines = append(lines, "- Evidence Refs: "+strings.Join(tc.EvidenceRefs, ", "))
	}
	lines = append(lines, "", "#### Steps")
	for _, step := range tc.Steps {
		lines = append(lines, fmt.Sprintf("- %s (%s) [%s] %s", step.StepID, step.Status, step.Tool, step.Description))
		if step.Error != "" {
			lines = append(lines, "  - Error: "+step.Error)
		}
		if len(step.EvidenceRefs) > 0 {
			lines = append(lines, "  - Evidence: "+strings.Join(step.EvidenceRefs, ", "))
		}
	}
	return append(lines, "")
}

// RenderHTML converts the Markdown digest to an HTML fragment.
func RenderHTML(summary qa.TestRunSummary, meta SuiteMeta) (string, error) {
	md, err := RenderMarkdown(summary, meta)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := goldmark.New().Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

package publish

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/bugzapp/internal/qa"
)

// Labels returns the distinct non-empty severity, priority and component.
func Labels(report qa.BugReport) []string {
	labels := []string{}
	for _, l := range []string{string(report.Severity), string(report.Priority), report.Component} {
		if l != "" && !slices.Contains(labels, l) {
			labels = append(labels, l)
		}
	}
	return labels
}

// MarkdownBody renders the issue body shared by every provider.
func MarkdownBody(report qa.BugReport) string {
	lines := []string{
		"**Severity:** " + string(report.Severity),
		"**Priority:** " + string(report.Priority),
		"**Component:** " + report.Component,
		"**Reproducibility:** " + string(report.Reproducibility),
		"",
		"## Steps to Reproduce",
	}
	for i, step := range report.Steps {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, step))
	}
	lines = append(lines, "", "## Expected", report.Expected, "", "## Actual", report.Actual)

	if len(report.URLs) > 0 {
		lines = append(lines, "", "## URLs")
		for _, u := range report.URLs {
			lines = append(lines, "- "+u)
		}
	}
	if len(report.Evidence) > 0 {
		lines = append(lines, "", "## Evidence")
		for _, a := range report.Evidence {
			lines = append(lines, fmt.Sprintf("- %s: %s", a.Type, a.Path))
		}
	}

	return strings.Join(lines, "\n")
}

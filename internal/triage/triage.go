// Package triage infers bug report defaults from assertion failure types.
package triage

import "github.com/roach88/bugzapp/internal/qa"

// FailureType names the kind of assertion that failed.
type FailureType string

const (
	SelectorVisible FailureType = "selector_visible"
	TextEquals      FailureType = "text_equals"
	URLMatches      FailureType = "url_matches"
	ElementCount    FailureType = "element_count"
)

// Failure is the triage view of one failed assertion.
type Failure struct {
	Type FailureType
}

// Defaults are the inferred report fields.
type Defaults struct {
	Severity        qa.Severity
	Priority        qa.BugPriority
	Reproducibility qa.Reproducibility
	Component       string
}

// Fallback is returned for an empty failure set and used for unknown types.
var Fallback = Defaults{
	Severity:        qa.SeverityMinor,
	Priority:        qa.BugPriorityP3,
	Reproducibility: qa.ReproSometimes,
	Component:       "General",
}

var byType = map[FailureType]Defaults{
	SelectorVisible: {qa.SeverityMajor, qa.BugPriorityP1, qa.ReproAlways, "UI"},
	TextEquals:      {qa.SeverityMajor, qa.BugPriorityP2, qa.ReproAlways, "Content"},
	URLMatches:      {qa.SeverityMinor, qa.BugPriorityP3, qa.ReproAlways, "Navigation"},
	ElementCount:    {qa.SeverityMajor, qa.BugPriorityP2, qa.ReproAlways, "UI"},
}

// Worst first.
var (
	severityRank = map[qa.Severity]int{
		qa.SeverityBlocker: 0, qa.SeverityCritical: 1, qa.SeverityMajor: 2, qa.SeverityMinor: 3,
	}
	priorityRank = map[qa.BugPriority]int{
		qa.BugPriorityP0: 0, qa.BugPriorityP1: 1, qa.BugPriorityP2: 2, qa.BugPriorityP3: 3,
	}
)

// For returns the fixed default tuple of a failure type.
func For(t FailureType) Defaults {
	if d, ok := byType[t]; ok {
		return d
	}
	return Fallback
}

// InferDefaults resolves severity and priority independently to the worst
// value across all failures; ties keep the first encountered. Reproducibility
// and component come from the first failure.
func InferDefaults(failures []Failure) Defaults {
	if len(failures) == 0 {
		return Fallback
	}

	first := For(failures[0].Type)
	out := first
	for _, f := range failures[1:] {
		d := For(f.Type)
		if severityRank[d.Severity] < severityRank[out.Severity] {
			out.Severity = d.Severity
		}
		if priorityRank[d.Priority] < priorityRank[out.Priority] {
			out.Priority = d.Priority
		}
	}
	out.Reproducibility = first.Reproducibility
	out.Component = first.Component
	return out
}

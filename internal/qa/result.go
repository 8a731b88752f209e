package qa

import "time"

// StepStatus is the outcome of a step, a case, or a whole run.
type StepStatus string

const (
	StatusPass    StepStatus = "pass"
	StatusFail    StepStatus = "fail"
	StatusBlocked StepStatus = "blocked"
)

// StepResult records the execution of one step.
// Blocked placeholders have zero duration and identical start/end times.
type StepResult struct {
	StepID       string     `json:"stepId"`
	Description  string     `json:"description"`
	Tool         string     `json:"tool"`
	Status       StepStatus `json:"status"`
	DurationMs   int64      `json:"durationMs"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      time.Time  `json:"endedAt"`
	Output       any        `json:"output,omitempty"`
	Error        string     `json:"error,omitempty"`
	EvidenceRefs []string   `json:"evidenceRefs"`
}

// TestCaseResult aggregates the step results of one test case.
type TestCaseResult struct {
	TestCaseID   string       `json:"testCaseId"`
	Description  string       `json:"description"`
	Status       StepStatus   `json:"status"`
	DurationMs   int64        `json:"durationMs"`
	StartedAt    time.Time    `json:"startedAt"`
	EndedAt      time.Time    `json:"endedAt"`
	Steps        []StepResult `json:"steps"`
	EvidenceRefs []string     `json:"evidenceRefs"`
}

// EvidenceRecord is inline data produced by a step.
// Ref is unique within a run and is the join key used by EvidenceRefs.
type EvidenceRecord struct {
	Ref    string `json:"ref"`
	StepID string `json:"stepId"`
	Data   any    `json:"data"`
}

// TestRunSummary is the unit of persistence for a run.
type TestRunSummary struct {
	Status          StepStatus       `json:"status"`
	DurationMs      int64            `json:"durationMs"`
	StartedAt       time.Time        `json:"startedAt"`
	EndedAt         time.Time        `json:"endedAt"`
	TestCaseResults []TestCaseResult `json:"testCaseResults"`
	Evidence        []EvidenceRecord `json:"evidence"`
}

// EvidenceRef returns the evidence key for a step's output.
func EvidenceRef(stepID string) string {
	return "step:" + stepID
}

// AggregateStatus folds statuses by precedence: fail > blocked > pass.
// An empty input aggregates to pass.
func AggregateStatus(statuses ...StepStatus) StepStatus {
	result := StatusPass
	for _, s := range statuses {
		switch s {
		case StatusFail:
			return StatusFail
		case StatusBlocked:
			result = StatusBlocked
		}
	}
	return result
}

// CollectEvidenceRefs returns the deduplicated union of the steps' refs in
// first-seen order. The result is never nil.
func CollectEvidenceRefs(steps []StepResult) []string {
	seen := make(map[string]bool)
	refs := []string{}
	for _, step := range steps {
		for _, ref := range step.EvidenceRefs {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

// FirstStepWithStatus returns the first step with the given status.
func (r TestCaseResult) FirstStepWithStatus(status StepStatus) (StepResult, bool) {
	for _, step := range r.Steps {
		if step.Status == status {
			return step, true
		}
	}
	return StepResult{}, false
}

// CountCases returns the number of case results with the given status.
func (s TestRunSummary) CountCases(status StepStatus) int {
	n := 0
	for _, r := range s.TestCaseResults {
		if r.Status == status {
			n++
		}
	}
	return n
}

package qa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []StepStatus
		want     StepStatus
	}{
		{"empty", nil, StatusPass},
		{"all pass", []StepStatus{StatusPass, StatusPass}, StatusPass},
		{"blocked beats pass", []StepStatus{StatusPass, StatusBlocked}, StatusBlocked},
		{"fail beats blocked", []StepStatus{StatusBlocked, StatusFail, StatusPass}, StatusFail},
		{"fail first", []StepStatus{StatusFail, StatusBlocked}, StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateStatus(tt.statuses...))
		})
	}
}

func TestCollectEvidenceRefs_Dedupes(t *testing.T) {
	steps := []StepResult{
		{EvidenceRefs: []string{"step:a", "step:b"}},
		{EvidenceRefs: []string{"step:b"}},
		{EvidenceRefs: []string{}},
		{EvidenceRefs: []string{"step:c", "step:a"}},
	}
	assert.Equal(t, []string{"step:a", "step:b", "step:c"}, CollectEvidenceRefs(steps))
}

func TestCollectEvidenceRefs_NeverNil(t *testing.T) {
	refs := CollectEvidenceRefs(nil)
	assert.NotNil(t, refs)
	assert.Empty(t, refs)
}

func TestSummaryCountCases(t *testing.T) {
	s := TestRunSummary{TestCaseResults: []TestCaseResult{
		{Status: StatusFail}, {Status: StatusBlocked}, {Status: StatusFail}, {Status: StatusPass},
	}}
	assert.Equal(t, 2, s.CountCases(StatusFail))
	assert.Equal(t, 1, s.CountCases(StatusBlocked))
	assert.Equal(t, 1, s.CountCases(StatusPass))
}

func TestSubmissionTransitions(t *testing.T) {
	assert.True(t, SubmissionQueued.CanTransition(SubmissionRunning))
	assert.True(t, SubmissionRunning.CanTransition(SubmissionCompleted))
	assert.True(t, SubmissionRunning.CanTransition(SubmissionFailed))
	assert.True(t, SubmissionFailed.CanTransition(SubmissionQueued))

	assert.False(t, SubmissionQueued.CanTransition(SubmissionCompleted))
	assert.False(t, SubmissionCompleted.CanTransition(SubmissionQueued))
	assert.False(t, SubmissionRunning.CanTransition(SubmissionQueued))
}

func TestWithExternalIssue_DoesNotAlias(t *testing.T) {
	base := BugReport{Title: "t", ExternalIssues: make([]ExternalIssue, 1, 4)}
	first := base.WithExternalIssue(ExternalIssue{Provider: ProviderGitHub, URL: "https://a"})
	second := base.WithExternalIssue(ExternalIssue{Provider: ProviderJira, URL: "https://b"})

	assert.Len(t, base.ExternalIssues, 1)
	assert.Equal(t, "https://a", first.ExternalIssues[1].URL)
	assert.Equal(t, "https://b", second.ExternalIssues[1].URL)
}

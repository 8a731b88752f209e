package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/store"
)

// RunStore persists finished runs. store.Storage satisfies it.
type RunStore interface {
	SaveTestRun(ctx context.Context, input store.TestRunInput) (store.TestRunRecord, error)
}

// Options configures a Runner.
type Options struct {
	// Tools resolves step tool names. Required.
	Tools *Toolbox

	// Suites resolves suite ids when a request carries no explicit cases.
	Suites *SuiteRegistry

	// Storage, when set, receives every finished run.
	Storage RunStore

	// Clock defaults to qa.SystemClock.
	Clock qa.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// StepTimeout bounds each tool call. Zero disables the bound.
	StepTimeout time.Duration
}

// Runner executes test cases against registered tools.
type Runner struct {
	tools       *Toolbox
	suites      *SuiteRegistry
	storage     RunStore
	clock       qa.Clock
	logger      *slog.Logger
	stepTimeout time.Duration
}

// New creates a Runner.
func New(opts Options) *Runner {
	r := &Runner{
		tools:       opts.Tools,
		suites:      opts.Suites,
		storage:     opts.Storage,
		clock:       opts.Clock,
		logger:      opts.Logger,
		stepTimeout: opts.StepTimeout,
	}
	if r.tools == nil {
		r.tools = NewToolbox()
	}
	if r.suites == nil {
		r.suites = NewSuiteRegistry()
	}
	if r.clock == nil {
		r.clock = qa.SystemClock{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// RunRequest selects what to run. Explicit TestCases win over SuiteID.
type RunRequest struct {
	SuiteID          string
	SuiteDescription string
	TestCases        []qa.TestCase

	// Metadata is stored with the run record (tags, url, session).
	Metadata store.Metadata
}

// Result is the outcome of Run.
type Result struct {
	Summary qa.TestRunSummary

	// RecordID is the stored run id, empty when the Runner has no storage.
	RecordID string
}

// Run executes every case of the request and aggregates the results.
//
// Returns an UnknownSuite error, without running anything, when the request
// has neither test cases nor a registered suite id. Storage failures are
// returned together with the computed summary.
func (r *Runner) Run(ctx context.Context, req RunRequest) (Result, error) {
	cases, description, err := r.resolve(req)
	if err != nil {
		return Result{}, err
	}

	r.logger.Info("run starting", "suite", req.SuiteID, "cases", len(cases))

	startedAt := r.now()
	results := make([]qa.TestCaseResult, 0, len(cases))
	evidence := []qa.EvidenceRecord{}
	refs := make(refAllocator)

	for _, tc := range cases {
		result, caseEvidence := r.runCase(ctx, tc, refs)
		results = append(results, result)
		evidence = append(evidence, caseEvidence...)
	}

	endedAt := r.now()
	statuses := make([]qa.StepStatus, len(results))
	for i, res := range results {
		statuses[i] = res.Status
	}

	summary := qa.TestRunSummary{
		Status:          qa.AggregateStatus(statuses...),
		DurationMs:      endedAt.Sub(startedAt).Milliseconds(),
		StartedAt:       startedAt,
		EndedAt:         endedAt,
		TestCaseResults: results,
		Evidence:        evidence,
	}

	r.logger.Info("run finished",
		"suite", req.SuiteID,
		"status", summary.Status,
		"duration_ms", summary.DurationMs,
		"failed", summary.CountCases(qa.StatusFail),
		"blocked", summary.CountCases(qa.StatusBlocked))

	out := Result{Summary: summary}
	if r.storage == nil {
		return out, nil
	}

	record, err := r.storage.SaveTestRun(ctx, store.TestRunInput{
		SuiteID:          req.SuiteID,
		SuiteDescription: description,
		Summary:          summary,
		Metadata:         req.Metadata,
	})
	if err != nil {
		return out, fmt.Errorf("persist run: %w", err)
	}
	out.RecordID = record.ID
	return out, nil
}

func (r *Runner) resolve(req RunRequest) ([]qa.TestCase, string, error) {
	if len(req.TestCases) > 0 {
		return req.TestCases, req.SuiteDescription, nil
	}
	if req.SuiteID == "" {
		return nil, "", qa.NewError(qa.ErrCodeUnknownSuite, "either a suite id or test cases must be provided")
	}
	suite, ok := r.suites.Get(req.SuiteID)
	if !ok {
		return nil, "", qa.NewError(qa.ErrCodeUnknownSuite, "unknown test suite: %s", req.SuiteID)
	}
	description := req.SuiteDescription
	if description == "" {
		description = suite.Description
	}
	return suite.TestCases, description, nil
}

func (r *Runner) runCase(ctx context.Context, tc qa.TestCase, refs refAllocator) (qa.TestCaseResult, []qa.EvidenceRecord) {
	startedAt := r.now()
	steps := make([]qa.StepResult, 0, len(tc.Steps))
	evidence := []qa.EvidenceRecord{}

	for i, step := range tc.Steps {
		result, record := r.runStep(ctx, step, refs)
		steps = append(steps, result)
		if record != nil {
			evidence = append(evidence, *record)
		}

		if result.Status != qa.StatusPass {
			r.logger.Debug("step did not pass",
				"case", tc.ID, "step", step.ID, "status", result.Status, "error", result.Error)
			reason := fmt.Sprintf("Blocked because step %s did not pass.", step.ID)
			for _, rest := range tc.Steps[i+1:] {
				steps = append(steps, r.blockedStep(rest, reason))
			}
			break
		}
	}

	endedAt := r.now()
	status := qa.StatusBlocked
	if len(steps) > 0 {
		statuses := make([]qa.StepStatus, len(steps))
		for i, s := range steps {
			statuses[i] = s.Status
		}
		status = qa.AggregateStatus(statuses...)
	}

	return qa.TestCaseResult{
		TestCaseID:   tc.ID,
		Description:  tc.Description,
		Status:       status,
		DurationMs:   endedAt.Sub(startedAt).Milliseconds(),
		StartedAt:    startedAt,
		EndedAt:      endedAt,
		Steps:        steps,
		EvidenceRefs: qa.CollectEvidenceRefs(steps),
	}, evidence
}

func (r *Runner) runStep(ctx context.Context, step qa.TestStep, refs refAllocator) (qa.StepResult, *qa.EvidenceRecord) {
	startedAt := r.now()

	tool, ok := r.tools.Lookup(step.Tool)
	if !ok {
		return r.finishStep(step, startedAt, qa.StatusBlocked, nil, "Unsupported tool: "+step.Tool), nil
	}

	output, err := r.execute(ctx, tool, step)
	if err != nil {
		return r.finishStep(step, startedAt, qa.StatusFail, nil, err.Error()), nil
	}

	status := qa.StatusPass
	if success, ok := successField(output); ok && !success {
		status = qa.StatusFail
	}
	result := r.finishStep(step, startedAt, status, output, "")
	if output == nil {
		return result, nil
	}

	ref := refs.allocate(step.ID)
	result.EvidenceRefs = append(result.EvidenceRefs, ref)
	return result, &qa.EvidenceRecord{Ref: ref, StepID: step.ID, Data: output}
}

// execute calls the tool, applying the step timeout and converting a panic
// into a tool error.
func (r *Runner) execute(ctx context.Context, tool Tool, step qa.TestStep) (output any, err error) {
	if r.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.stepTimeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			output = nil
			err = fmt.Errorf("tool %s panicked: %v", step.Tool, p)
		}
	}()

	input := step.Input
	if input == nil {
		input = map[string]any{}
	}
	return tool.Execute(ctx, input)
}

func (r *Runner) finishStep(step qa.TestStep, startedAt time.Time, status qa.StepStatus, output any, errMsg string) qa.StepResult {
	endedAt := r.now()
	return qa.StepResult{
		StepID:       step.ID,
		Description:  step.Description,
		Tool:         step.Tool,
		Status:       status,
		DurationMs:   endedAt.Sub(startedAt).Milliseconds(),
		StartedAt:    startedAt,
		EndedAt:      endedAt,
		Output:       output,
		Error:        errMsg,
		EvidenceRefs: []string{},
	}
}

func (r *Runner) blockedStep(step qa.TestStep, reason string) qa.StepResult {
	at := r.now()
	return qa.StepResult{
		StepID:       step.ID,
		Description:  step.Description,
		Tool:         step.Tool,
		Status:       qa.StatusBlocked,
		StartedAt:    at,
		EndedAt:      at,
		Error:        reason,
		EvidenceRefs: []string{},
	}
}

func (r *Runner) now() time.Time {
	return qa.Normalize(r.clock.Now())
}

// successField extracts a boolean "success" field from a tool output.
// Maps are inspected directly; other values are checked through their JSON
// form. ok is false when there is no boolean success field.
func successField(output any) (success, ok bool) {
	switch v := output.(type) {
	case nil:
		return false, false
	case map[string]any:
		b, isBool := v["success"].(bool)
		return b, isBool
	}

	data, err := json.Marshal(output)
	if err != nil || len(data) == 0 || data[0] != '{' {
		return false, false
	}
	var decoded struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil || decoded.Success == nil {
		return false, false
	}
	return *decoded.Success, true
}

// refAllocator hands out run-unique evidence refs. The first step with a
// given id gets "step:<id>"; later steps reusing that id (in other cases)
// get "step:<id>#2", "step:<id>#3", and so on.
type refAllocator map[string]int

func (a refAllocator) allocate(stepID string) string {
	base := qa.EvidenceRef(stepID)
	a[base]++
	if n := a[base]; n > 1 {
		return fmt.Sprintf("%s#%d", base, n)
	}
	return base
}

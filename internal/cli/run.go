package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/report"
	"github.com/roach88/bugzapp/internal/runner"
	"github.com/roach88/bugzapp/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Cases    []string
	Tags     []string
	URL      string
	JUnit    string
	JSON     string
	Markdown string
	HTML     string
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	RunID      string        `json:"run_id,omitempty"`
	SuiteID    string        `json:"suite_id"`
	Status     qa.StepStatus `json:"status"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Blocked    int           `json:"blocked"`
	BugReports int           `json:"bug_reports"`
	Files      []string      `json:"files,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <suite.yaml>",
		Short: "Run a test suite against live pages",
		Long: `Run every test case of a suite file with the built-in page tools
(navigate, observe, extract, assert) and store the run.

Failing assert steps capture evidence and file a bug report. Steps after a
failure are blocked. The act tool is not available, so act steps block.

Exit codes:
  0 - Every case passed
  1 - At least one case failed or was blocked
  2 - Command error (bad suite file, configuration, storage)

Examples:
  bugzapp run suites/shop.yaml
  bugzapp run suites/shop.yaml --case checkout --junit out/junit.xml
  bugzapp run suites/shop.yaml --tag nightly --markdown out/summary.md --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Cases, "case", nil, "only run these test case ids")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "tags stored with the run")
	cmd.Flags().StringVar(&opts.URL, "url", "", "url stored with the run")
	cmd.Flags().StringVar(&opts.JUnit, "junit", "", "write a JUnit XML report to this path")
	cmd.Flags().StringVar(&opts.JSON, "json", "", "write the JSON summary to this path")
	cmd.Flags().StringVar(&opts.Markdown, "markdown", "", "write the Markdown summary to this path")
	cmd.Flags().StringVar(&opts.HTML, "html", "", "write the HTML summary to this path")

	return cmd
}

func runSuite(opts *RunOptions, suitePath string, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	suite, err := runner.LoadSuiteFile(suitePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load suite", err)
	}
	cases, err := selectCases(suite.TestCases, opts.Cases)
	if err != nil {
		return err
	}

	st, err := a.openStorage()
	if err != nil {
		return err
	}
	defer closeStorage(st, a.logger)

	recorder := &reportRecorder{ReportSaver: st}
	tools, err := a.newToolbox(recorder)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	a.logger.Info("running suite", "suite", suite.ID, "cases", len(cases))
	result, err := a.newRunner(tools, st).Run(ctx, runner.RunRequest{
		SuiteID:          suite.ID,
		SuiteDescription: suite.Description,
		TestCases:        cases,
		Metadata:         store.Metadata{Tags: opts.Tags, URL: opts.URL},
	})
	if err != nil && result.Summary.TestCaseResults == nil {
		return WrapExitError(ExitCommandError, "run failed", err)
	}
	if err != nil {
		// The run finished but could not be stored; still report it.
		a.logger.Error("failed to store run", "error", err)
	}

	meta := report.SuiteMeta{ID: suite.ID, Description: suite.Description, BugReports: recorder.Reports()}
	files, err := writeReports(opts, result.Summary, meta)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to write reports", err)
	}
	for _, f := range files {
		a.out.VerboseLog("wrote %s", f)
	}

	summary := result.Summary
	out := RunOutput{
		RunID:      result.RecordID,
		SuiteID:    suite.ID,
		Status:     summary.Status,
		Passed:     summary.CountCases(qa.StatusPass),
		Failed:     summary.CountCases(qa.StatusFail),
		Blocked:    summary.CountCases(qa.StatusBlocked),
		BugReports: len(meta.BugReports),
		Files:      files,
	}
	if a.out.Format == "json" {
		if err := a.out.Success(out); err != nil {
			return err
		}
	} else {
		printRunText(cmd, summary, out)
	}

	if summary.Status != qa.StatusPass {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s", summary.Status))
	}
	return nil
}

func selectCases(all []qa.TestCase, ids []string) ([]qa.TestCase, error) {
	if len(ids) == 0 {
		return all, nil
	}
	var selected []qa.TestCase
	for _, tc := range all {
		if slices.Contains(ids, tc.ID) {
			selected = append(selected, tc)
		}
	}
	if len(selected) != len(ids) {
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("unknown test case in --case %s", strings.Join(ids, ",")))
	}
	return selected, nil
}

// writeReports renders the requested report files and returns their paths.
func writeReports(opts *RunOptions, summary qa.TestRunSummary, meta report.SuiteMeta) ([]string, error) {
	targets := []struct {
		path   string
		render func(qa.TestRunSummary, report.SuiteMeta) (string, error)
	}{
		{opts.JUnit, report.RenderJUnit},
		{opts.JSON, report.RenderJSON},
		{opts.Markdown, report.RenderMarkdown},
		{opts.HTML, report.RenderHTML},
	}
	var files []string
	for _, t := range targets {
		if t.path == "" {
			continue
		}
		body, err := t.render(summary, meta)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
			return nil, err
		}
		if err := store.WriteFileAtomic(t.path, []byte(body)); err != nil {
			return nil, err
		}
		files = append(files, t.path)
	}
	return files, nil
}

func printRunText(cmd *cobra.Command, summary qa.TestRunSummary, out RunOutput) {
	w := cmd.OutOrStdout()
	for _, tc := range summary.TestCaseResults {
		fmt.Fprintf(w, "%s %s (%dms)\n", statusWord(string(tc.Status)), tc.TestCaseID, tc.DurationMs)
		if step, ok := firstProblem(tc); ok {
			fmt.Fprintf(w, "          %s: %s\n", step.StepID, step.Error)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %d passed, %d failed, %d blocked\n",
		statusWord(string(out.Status)), out.Passed, out.Failed, out.Blocked)
	if out.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", out.RunID)
	}
	if out.BugReports > 0 {
		fmt.Fprintf(w, "Bug reports: %d\n", out.BugReports)
	}
	for _, f := range out.Files {
		fmt.Fprintf(w, "Wrote %s\n", f)
	}
}

func firstProblem(tc qa.TestCaseResult) (qa.StepResult, bool) {
	if step, ok := tc.FirstStepWithStatus(qa.StatusFail); ok {
		return step, true
	}
	return tc.FirstStepWithStatus(qa.StatusBlocked)
}

// signalContext derives a context cancelled on SIGINT or SIGTERM. The
// command's own context is used when set, so tests can cancel it.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

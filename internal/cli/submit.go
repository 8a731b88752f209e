package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/submission"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Wait bool
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Queue a site for discovery and smoke testing",
		Long: `Queue a URL. A worker (bugzapp serve, or --wait) discovers its pages
from the sitemap or a shallow crawl and runs smoke checks on each.

Examples:
  bugzapp submit https://shop.example.com
  bugzapp submit https://shop.example.com --wait`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Wait, "wait", false, "process the queue now and wait for the result")

	return cmd
}

func runSubmit(opts *SubmitOptions, rawURL string, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	st, err := a.openStorage()
	if err != nil {
		return err
	}
	defer closeStorage(st, a.logger)

	queue, err := a.newQueue(st, nil)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()
	if err := queue.Initialize(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to load submissions", err)
	}

	record, err := queue.Create(ctx, rawURL)
	if err != nil {
		if qa.IsValidation(err) {
			return WrapExitError(ExitCommandError, "invalid url", err)
		}
		return WrapExitError(ExitCommandError, "failed to queue submission", err)
	}

	if opts.Wait {
		if _, err := queue.ProcessPending(ctx); err != nil {
			return WrapExitError(ExitFailure, "processing interrupted", err)
		}
		if record, err = queue.Get(record.ID); err != nil {
			return WrapExitError(ExitCommandError, "failed to reload submission", err)
		}
	}

	if a.out.Format == "json" {
		if err := a.out.Success(record); err != nil {
			return err
		}
	} else {
		printSubmission(cmd.OutOrStdout(), record)
	}
	if record.Status == qa.SubmissionFailed {
		return NewExitError(ExitFailure, "submission failed: "+record.Error)
	}
	return nil
}

// NewSubmissionsCommand creates the submissions command group.
func NewSubmissionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List or retry queued submissions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List submissions, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listSubmissions(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "retry <id>",
		Short:         "Requeue a failed submission",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return retrySubmission(rootOpts, args[0], cmd)
		},
	})

	return cmd
}

// openSubmissions loads the submission queue without a runner for retry,
// which only changes state. A running `bugzapp serve` owns the file; retry
// through its API instead.
func openSubmissions(a *app, cmd *cobra.Command) (*submission.Queue, error) {
	queue := submission.New(submission.Options{
		Store:  submission.NewFileStore(a.cfg.Submission.StorePath),
		Logger: a.logger,
	})
	if err := queue.Initialize(cmd.Context()); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load submissions", err)
	}
	return queue, nil
}

func listSubmissions(opts *RootOptions, cmd *cobra.Command) error {
	a, err := newApp(opts, cmd)
	if err != nil {
		return err
	}
	records, err := submission.NewFileStore(a.cfg.Submission.StorePath).Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load submissions", err)
	}
	submission.SortNewestFirst(records)

	if a.out.Format == "json" {
		return a.out.Success(records)
	}
	w := cmd.OutOrStdout()
	for _, r := range records {
		printSubmission(w, r)
	}
	fmt.Fprintf(w, "%d submission(s)\n", len(records))
	return nil
}

func retrySubmission(opts *RootOptions, id string, cmd *cobra.Command) error {
	a, err := newApp(opts, cmd)
	if err != nil {
		return err
	}
	queue, err := openSubmissions(a, cmd)
	if err != nil {
		return err
	}

	record, err := queue.Retry(cmd.Context(), id)
	switch {
	case qa.IsNotFound(err):
		return WrapExitError(ExitCommandError, "unknown submission", err)
	case qa.IsInvalidTransition(err):
		return WrapExitError(ExitCommandError, "only failed submissions can be retried", err)
	case err != nil:
		return WrapExitError(ExitCommandError, "retry failed", err)
	}

	if a.out.Format == "json" {
		return a.out.Success(record)
	}
	printSubmission(cmd.OutOrStdout(), record)
	return nil
}

func printSubmission(w io.Writer, r qa.SubmissionRecord) {
	fmt.Fprintf(w, "%s %s  %s  %s\n", statusWord(string(r.Status)), r.ID, r.URL, qa.FormatTimestamp(r.UpdatedAt))
	if r.Discovery != nil {
		fmt.Fprintf(w, "          %d target(s) via %s\n", len(r.Targets), r.Discovery.Source)
	}
	if r.RunID != "" {
		fmt.Fprintf(w, "          run %s: %s\n", r.RunID, r.RunStatus)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "          error: %s\n", r.Error)
	}
}

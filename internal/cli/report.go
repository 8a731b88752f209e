package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/bugzapp/internal/api"
	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	As     string
	Output string
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Render a stored run",
		Long: `Render a stored test run as JSON, JUnit XML, Markdown or HTML. The
document is written as is; --format does not wrap it.

Examples:
  bugzapp report 0192f1c4-... --as markdown
  bugzapp report 0192f1c4-... --as junit --output junit.xml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderReport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", "markdown", "report format (json|junit|markdown|html)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to this file instead of stdout")

	return cmd
}

func renderReport(opts *ReportOptions, id string, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	st, err := a.openStorage()
	if err != nil {
		return err
	}
	defer closeStorage(st, a.logger)

	record, err := st.GetTestRun(cmd.Context(), id)
	if err != nil {
		if qa.IsNotFound(err) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("test run %s not found", id), err)
		}
		return WrapExitError(ExitCommandError, "failed to load test run", err)
	}

	body, _, _, err := api.RenderRun(record, opts.As)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to render report", err)
	}

	if opts.Output == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), body)
		return err
	}
	if err := store.WriteFileAtomic(opts.Output, []byte(body)); err != nil {
		return WrapExitError(ExitCommandError, "failed to write report", err)
	}
	a.out.VerboseLog("wrote %s", opts.Output)
	return nil
}

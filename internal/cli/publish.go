package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/bugzapp/internal/qa"
)

// PublishOptions holds flags for the publish command.
type PublishOptions struct {
	*RootOptions
	Provider string
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PublishOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "publish <bug-report-id>",
		Short: "Open an issue for a stored bug report",
		Long: `Publish a stored bug report to GitHub or Jira and link the created
issue back onto the report. Publishing again creates another issue.

GitHub needs QA_GITHUB_REPO and QA_GITHUB_TOKEN; Jira needs
QA_JIRA_BASE_URL, QA_JIRA_EMAIL, QA_JIRA_API_TOKEN and QA_JIRA_PROJECT_KEY.

Examples:
  bugzapp publish 0192f1c4-... --provider github
  bugzapp publish 0192f1c4-... --provider jira --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Provider, "provider", "p", string(qa.ProviderGitHub), "issue tracker (github|jira)")

	return cmd
}

func runPublish(opts *PublishOptions, id string, cmd *cobra.Command) error {
	provider := qa.IssueProvider(opts.Provider)
	if provider != qa.ProviderGitHub && provider != qa.ProviderJira {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown provider %q: want github or jira", opts.Provider))
	}

	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	st, err := a.openStorage()
	if err != nil {
		return err
	}
	defer closeStorage(st, a.logger)

	outcome := a.newPublisher().PublishStored(cmd.Context(), st, id, provider)
	if a.out.Format == "json" {
		if err := a.out.Success(outcome); err != nil {
			return err
		}
	} else if outcome.Success {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", passColor.Sprint("Published"), outcome.IssueURL)
	}

	if !outcome.Success {
		return NewExitError(ExitFailure, outcome.Message)
	}
	return nil
}

package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/roach88/bugzapp/internal/api"
	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/store"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Tags     []string
	URL      string
	Severity string
	From     string
	To       string
	Limit    int
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <runs|bugs>",
		Short: "Search stored runs or bug reports",
		Long: `Search stored test runs or bug reports, newest first.

Every filter given must match. Tags must all be present. Dates accept
YYYY-MM-DD (whole UTC day) or a timestamp and bound the effective date.

Examples:
  bugzapp search runs --tag nightly --from 2025-01-01
  bugzapp search bugs --severity critical --format json`,
		Args:          cobra.ExactArgs(1),
		ValidArgs:     []string{"runs", "bugs"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "required tag (repeatable)")
	cmd.Flags().StringVar(&opts.URL, "url", "", "exact url")
	cmd.Flags().StringVar(&opts.Severity, "severity", "", "bug severity (bugs only)")
	cmd.Flags().StringVar(&opts.From, "from", "", "earliest effective date")
	cmd.Flags().StringVar(&opts.To, "to", "", "latest effective date")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many records (0 = all)")

	return cmd
}

func (o *SearchOptions) query() (store.Query, error) {
	values := url.Values{"tag": o.Tags}
	for key, v := range map[string]string{"url": o.URL, "severity": o.Severity, "from": o.From, "to": o.To} {
		if v != "" {
			values.Set(key, v)
		}
	}
	return api.ParseQuery(values)
}

func runSearch(opts *SearchOptions, kind string, cmd *cobra.Command) error {
	if kind != "runs" && kind != "bugs" {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown record kind %q: want runs or bugs", kind))
	}
	query, err := opts.query()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
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

	if kind == "runs" {
		records, err := st.SearchTestRuns(cmd.Context(), query)
		if err != nil {
			return WrapExitError(ExitCommandError, "search failed", err)
		}
		records = limit(records, opts.Limit)
		if a.out.Format == "json" {
			return a.out.Success(records)
		}
		w := cmd.OutOrStdout()
		for _, r := range records {
			fmt.Fprintf(w, "%s %s  %s  %s\n", statusWord(string(r.Summary.Status)), r.ID,
				store.EffectiveDate(r.Metadata, r.CreatedAt), suiteLabel(r))
		}
		fmt.Fprintf(w, "%d run(s)\n", len(records))
		return nil
	}

	records, err := st.SearchBugReports(cmd.Context(), query)
	if err != nil {
		return WrapExitError(ExitCommandError, "search failed", err)
	}
	records = limit(records, opts.Limit)
	if a.out.Format == "json" {
		return a.out.Success(records)
	}
	w := cmd.OutOrStdout()
	for _, r := range records {
		fmt.Fprintf(w, "%s %s  %s  %s%s\n", severityWord(r.Report.Severity), r.ID,
			store.EffectiveDate(r.Metadata, r.CreatedAt), r.Report.Title, issueSuffix(r.Report))
	}
	fmt.Fprintf(w, "%d bug report(s)\n", len(records))
	return nil
}

func limit[T any](records []T, n int) []T {
	if n > 0 && len(records) > n {
		return records[:n]
	}
	return records
}

func suiteLabel(r store.TestRunRecord) string {
	if r.SuiteDescription != "" {
		return r.SuiteDescription
	}
	if r.SuiteID != "" {
		return r.SuiteID
	}
	return "(ad hoc)"
}

func severityWord(s qa.Severity) string {
	word := fmt.Sprintf("%-9s", s)
	switch s {
	case qa.SeverityBlocker, qa.SeverityCritical:
		return failColor.Sprint(word)
	case qa.SeverityMajor:
		return blockedColor.Sprint(word)
	}
	return dimColor.Sprint(word)
}

func issueSuffix(r qa.BugReport) string {
	if len(r.ExternalIssues) == 0 {
		return ""
	}
	return fmt.Sprintf("  [%s]", r.ExternalIssues[len(r.ExternalIssues)-1].URL)
}

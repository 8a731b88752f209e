package publish

import (
	"context"
	"fmt"

	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/store"
)

// ReportStore is the slice of store.Storage that stored publishing needs.
type ReportStore interface {
	GetBugReport(ctx context.Context, id string) (store.BugReportRecord, error)
	UpdateBugReport(ctx context.Context, record store.BugReportRecord) (store.BugReportRecord, error)
}

// Outcome is the structured result of PublishStored.
type Outcome struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Provider qa.IssueProvider `json:"provider,omitempty"`
	IssueURL string           `json:"issueUrl,omitempty"`
}

// PublishStored loads bug report id, publishes it, appends the external
// issue link and writes the record back. Failures are reported in the
// Outcome, never returned.
func (p *Publisher) PublishStored(ctx context.Context, reports ReportStore, id string, provider qa.IssueProvider) Outcome {
	record, err := reports.GetBugReport(ctx, id)
	if err != nil {
		if qa.IsNotFound(err) {
			return Outcome{Message: fmt.Sprintf("Bug report %s not found.", id)}
		}
		return Outcome{Message: fmt.Sprintf("Failed to load bug report %s: %v", id, err)}
	}

	result, err := p.Publish(ctx, provider, record.Report)
	if err != nil {
		p.logger.Warn("publish failed", "id", id, "provider", provider, "error", err)
		return Outcome{Message: err.Error(), Provider: provider}
	}

	record.Report = record.Report.WithExternalIssue(qa.ExternalIssue{
		Provider:  result.Provider,
		URL:       result.URL,
		Key:       result.Key,
		ID:        result.ID,
		CreatedAt: p.clock.Now(),
	})
	if _, err := reports.UpdateBugReport(ctx, record); err != nil {
		return Outcome{
			Message:  fmt.Sprintf("Issue created at %s but the bug report could not be updated: %v", result.URL, err),
			Provider: result.Provider,
			IssueURL: result.URL,
		}
	}

	return Outcome{
		Success:  true,
		Message:  fmt.Sprintf("Published bug report %s to %s.", id, result.Provider),
		Provider: result.Provider,
		IssueURL: result.URL,
	}
}

package report

import (
	"time"

	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/testutil"
)

func at(offset time.Duration) time.Time {
	return testutil.Epoch.Add(offset)
}

func shopMeta() SuiteMeta {
	return SuiteMeta{
		ID:          "shop-smoke",
		Description: "Shop smoke checks",
		BugReports:  []qa.BugReport{checkoutReport()},
	}
}

// shopSummary has one failing case with evidence and one blocked case.
func shopSummary() qa.TestRunSummary {
	output := map[string]any{"url": "https://shop.test/cart", "success": true}
	return qa.TestRunSummary{
		Status:     qa.StatusFail,
		DurationMs: 2500,
		StartedAt:  at(0),
		EndedAt:    at(2500 * time.Millisecond),
		TestCaseResults: []qa.TestCaseResult{
			{
				TestCaseID:   "checkout",
				Description:  "Checkout button visible",
				Status:       qa.StatusFail,
				DurationMs:   1200,
				StartedAt:    at(0),
				EndedAt:      at(1200 * time.Millisecond),
				EvidenceRefs: []string{"step:open"},
				Steps: []qa.StepResult{
					{
						StepID: "open", Description: "Open cart", Tool: qa.ToolNavigate,
						Status: qa.StatusPass, DurationMs: 400,
						StartedAt: at(0), EndedAt: at(400 * time.Millisecond),
						Output:       output,
						EvidenceRefs: []string{"step:open"},
					},
					{
						StepID: "assert-button", Description: "Check checkout button", Tool: qa.ToolAssert,
						Status: qa.StatusFail, DurationMs: 800,
						StartedAt: at(400 * time.Millisecond), EndedAt: at(1200 * time.Millisecond),
						Error:        "Assertion failed. Bug report captured.",
						EvidenceRefs: []string{},
					},
					{
						StepID: "pay", Description: "Pay", Tool: qa.ToolAct,
						Status:    qa.StatusBlocked,
						StartedAt: at(1200 * time.Millisecond), EndedAt: at(1200 * time.Millisecond),
						Error:        "Blocked because step assert-button did not pass.",
						EvidenceRefs: []string{},
					},
				},
			},
			{
				TestCaseID:   "search",
				Description:  "Search returns results",
				Status:       qa.StatusBlocked,
				StartedAt:    at(1200 * time.Millisecond),
				EndedAt:      at(1200 * time.Millisecond),
				EvidenceRefs: []string{},
				Steps: []qa.StepResult{
					{
						StepID: "query", Description: "Type a query", Tool: qa.ToolAct,
						Status:    qa.StatusBlocked,
						StartedAt: at(1200 * time.Millisecond), EndedAt: at(1200 * time.Millisecond),
						Error:        "Unsupported tool: act",
						EvidenceRefs: []string{},
					},
				},
			},
		},
		Evidence: []qa.EvidenceRecord{
			{Ref: "step:open", StepID: "open", Data: output},
		},
	}
}

func checkoutReport() qa.BugReport {
	return qa.BugReport{
		Title:           "Checkout button missing",
		Severity:        qa.SeverityMajor,
		Priority:        qa.BugPriorityP1,
		Reproducibility: qa.ReproAlways,
		Component:       "UI",
		Steps:           []string{"Open cart", "Look for checkout"},
		Expected:        "#checkout is visible",
		Actual:          "#checkout not found",
		Environment:     qa.Environment{URL: "https://shop.test/cart"},
		Browser:         qa.Browser{Name: "chromium"},
		Device:          qa.Device{Type: qa.DeviceDesktop},
		Timestamps: qa.Timestamps{
			ObservedAt: at(time.Second),
			ReportedAt: at(1100 * time.Millisecond),
		},
		URLs:         []string{"https://shop.test/cart"},
		DOMSelectors: []string{"#checkout"},
		Evidence: []qa.EvidenceArtifact{{
			Type:      qa.ArtifactScreenshot,
			Path:      "/tmp/ev/screenshot.png",
			MimeType:  "image/png",
			CreatedAt: at(time.Second),
		}},
	}
}

package bugreport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/testutil"
	"github.com/roach88/bugzapp/internal/triage"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(testutil.NewStepClock(time.Second))
	require.NoError(t, err)
	return b
}

var sampleFailures = []Outcome{
	{Type: triage.SelectorVisible, Expectation: "#buy is visible", Message: "#buy is not visible", Selector: "#buy"},
	{Type: triage.URLMatches, Expectation: "URL matches /checkout", Message: "URL is https://shop.example/cart"},
}

func validContext() Context {
	return Context{
		Title:       "Buy button missing",
		Steps:       []string{"Open the cart", "Look for the buy button"},
		Environment: qa.Environment{URL: "https://shop.example/cart"},
		ObservedAt:  testutil.Epoch.Add(-time.Minute),
		URLs:        []string{"https://shop.example/cart"},
	}
}

func TestBuild_DefaultsFromTriageAndOutcomes(t *testing.T) {
	b := newTestBuilder(t)

	report, err := b.Build(sampleFailures, validContext())
	require.NoError(t, err)

	assert.Equal(t, qa.SeverityMajor, report.Severity)
	assert.Equal(t, qa.BugPriorityP1, report.Priority)
	assert.Equal(t, qa.ReproAlways, report.Reproducibility)
	assert.Equal(t, "UI", report.Component)
	assert.Equal(t, "#buy is visible; URL matches /checkout", report.Expected)
	assert.Equal(t, "#buy is not visible; URL is https://shop.example/cart", report.Actual)
	assert.Equal(t, testutil.Epoch.Add(-time.Minute), report.Timestamps.ObservedAt)
	assert.Equal(t, testutil.Epoch, report.Timestamps.ReportedAt)
}

func TestBuild_CallerValuesWin(t *testing.T) {
	b := newTestBuilder(t)
	c := validContext()
	c.Severity = qa.SeverityBlocker
	c.Priority = qa.BugPriorityP0
	c.Component = "Checkout"
	c.Expected = "Customer can pay"
	c.Actual = "Customer cannot pay"

	report, err := b.Build(sampleFailures, c)
	require.NoError(t, err)

	assert.Equal(t, qa.SeverityBlocker, report.Severity)
	assert.Equal(t, qa.BugPriorityP0, report.Priority)
	assert.Equal(t, "Checkout", report.Component)
	assert.Equal(t, "Customer can pay", report.Expected)
	assert.Equal(t, "Customer cannot pay", report.Actual)
}

func TestBuild_ObservedAtDefaultsToReportTime(t *testing.T) {
	b := newTestBuilder(t)
	c := validContext()
	c.ObservedAt = time.Time{}

	report, err := b.Build(sampleFailures, c)
	require.NoError(t, err)
	assert.Equal(t, report.Timestamps.ReportedAt, report.Timestamps.ObservedAt)
}

func TestBuild_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Context)
		fails  []Outcome
	}{
		{"missing title", func(c *Context) { c.Title = "" }, sampleFailures},
		{"no steps", func(c *Context) { c.Steps = nil }, sampleFailures},
		{"empty step", func(c *Context) { c.Steps = []string{""} }, sampleFailures},
		{"no expected without failures", func(c *Context) { c.Actual = "something" }, nil},
		{"bad url", func(c *Context) { c.URLs = []string{"not a url"} }, sampleFailures},
		{"bad viewport", func(c *Context) { c.Environment.Viewport = &qa.Viewport{Width: 0, Height: 10} }, sampleFailures},
		{"bad device type", func(c *Context) { c.Device.Type = "fridge" }, sampleFailures},
		{"bad severity", func(c *Context) { c.Severity = "urgent" }, sampleFailures},
		{"evidence without path", func(c *Context) {
			c.Evidence = []qa.EvidenceArtifact{{Type: qa.ArtifactScreenshot, CreatedAt: testutil.Epoch}}
		}, sampleFailures},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t)
			c := validContext()
			tt.mutate(&c)

			report, err := b.Build(tt.fails, c)
			require.Error(t, err)
			assert.True(t, qa.IsValidation(err), "got %v", err)
			assert.Empty(t, report.Title)
		})
	}
}

func TestValidator_AcceptsFullReport(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	report := qa.BugReport{
		Title:           "Hero image broken",
		Severity:        qa.SeverityMinor,
		Priority:        qa.BugPriorityP3,
		Reproducibility: qa.ReproRare,
		Component:       "Content",
		Steps:           []string{"Open home"},
		Expected:        "Image renders",
		Actual:          "Broken image icon",
		Environment: qa.Environment{
			Name: "staging", URL: "https://staging.shop.example/", Viewport: &qa.Viewport{Width: 390, Height: 844},
			Locale: "en-US", Timezone: "UTC", Browser: "Chromium", OS: "Linux",
		},
		Browser:    qa.Browser{Name: "Chromium", Version: "126"},
		Device:     qa.Device{Type: qa.DeviceMobile, Model: "Pixel 8"},
		Timestamps: qa.Timestamps{ObservedAt: testutil.Epoch, ReportedAt: testutil.Epoch.Add(time.Second)},
		URLs:       []string{"https://staging.shop.example/"},
		Evidence: []qa.EvidenceArtifact{{
			Type: qa.ArtifactScreenshot, Path: "/tmp/e/screenshot.png", MimeType: "image/png",
			CreatedAt: testutil.Epoch, Metadata: map[string]any{"fullPage": true},
		}},
		ExternalIssues: []qa.ExternalIssue{{
			Provider: qa.ProviderJira, URL: "https://acme.atlassian.net/browse/QA-1", Key: "QA-1", CreatedAt: testutil.Epoch,
		}},
	}
	assert.NoError(t, v.Validate(report))
}

package qa

import "time"

// Severity of a bug. Order, worst first: blocker, critical, major, minor.
type Severity string

const (
	SeverityBlocker  Severity = "blocker"
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// BugPriority of a bug. Order, worst first: p0, p1, p2, p3.
type BugPriority string

const (
	BugPriorityP0 BugPriority = "p0"
	BugPriorityP1 BugPriority = "p1"
	BugPriorityP2 BugPriority = "p2"
	BugPriorityP3 BugPriority = "p3"
)

// Reproducibility describes how reliably a bug reproduces.
type Reproducibility string

const (
	ReproAlways    Reproducibility = "always"
	ReproSometimes Reproducibility = "sometimes"
	ReproRare      Reproducibility = "rare"
	ReproUnable    Reproducibility = "unable"
)

// ArtifactType classifies a file-backed evidence artifact.
type ArtifactType string

const (
	ArtifactScreenshot   ArtifactType = "screenshot"
	ArtifactHTML         ArtifactType = "html"
	ArtifactConsoleLog   ArtifactType = "console-log"
	ArtifactNetworkError ArtifactType = "network-error"
	ArtifactGeneric      ArtifactType = "artifact"
)

// EvidenceArtifact is durable, file-backed evidence for a failed assertion.
type EvidenceArtifact struct {
	Type      ArtifactType   `json:"type"`
	Path      string         `json:"path"`
	MimeType  string         `json:"mimeType,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Viewport is a browser viewport size in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Environment describes where a bug was observed.
type Environment struct {
	Name      string    `json:"name,omitempty"`
	URL       string    `json:"url,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Viewport  *Viewport `json:"viewport,omitempty"`
	Locale    string    `json:"locale,omitempty"`
	Timezone  string    `json:"timezone,omitempty"`
	Browser   string    `json:"browser,omitempty"`
	OS        string    `json:"os,omitempty"`
}

// Browser identifies the browser used for the observation.
type Browser struct {
	Name      string `json:"name,omitempty"`
	Version   string `json:"version,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// DeviceType is the class of device a bug was observed on.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceBot     DeviceType = "bot"
	DeviceUnknown DeviceType = "unknown"
)

// Device identifies the device used for the observation.
type Device struct {
	Type      DeviceType `json:"type,omitempty"`
	Model     string     `json:"model,omitempty"`
	OS        string     `json:"os,omitempty"`
	OSVersion string     `json:"osVersion,omitempty"`
	Viewport  *Viewport  `json:"viewport,omitempty"`
}

// Timestamps holds the single observed/reported pair of a report.
type Timestamps struct {
	ObservedAt time.Time `json:"observedAt"`
	ReportedAt time.Time `json:"reportedAt"`
}

// IssueProvider names an external issue tracker.
type IssueProvider string

const (
	ProviderGitHub IssueProvider = "github"
	ProviderJira   IssueProvider = "jira"
)

// ExternalIssue links a report to an issue created upstream.
type ExternalIssue struct {
	Provider  IssueProvider `json:"provider"`
	URL       string        `json:"url"`
	Key       string        `json:"key,omitempty"`
	ID        string        `json:"id,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// BugReport is immutable after creation except for ExternalIssues, which
// only ever grows (see WithExternalIssue).
type BugReport struct {
	Title           string             `json:"title"`
	Severity        Severity           `json:"severity"`
	Priority        BugPriority        `json:"priority"`
	Reproducibility Reproducibility    `json:"reproducibility"`
	Component       string             `json:"component"`
	Steps           []string           `json:"steps"`
	Expected        string             `json:"expected"`
	Actual          string             `json:"actual"`
	Environment     Environment        `json:"environment"`
	Browser         Browser            `json:"browser"`
	Device          Device             `json:"device"`
	Timestamps      Timestamps         `json:"timestamps"`
	URLs            []string           `json:"urls,omitempty"`
	DOMSelectors    []string           `json:"domSelectors,omitempty"`
	Evidence        []EvidenceArtifact `json:"evidence,omitempty"`
	ExternalIssues  []ExternalIssue    `json:"externalIssues,omitempty"`
}

// WithExternalIssue returns a copy of r with issue appended. The receiver's
// slice is never modified in place.
func (r BugReport) WithExternalIssue(issue ExternalIssue) BugReport {
	issues := make([]ExternalIssue, 0, len(r.ExternalIssues)+1)
	issues = append(issues, r.ExternalIssues...)
	r.ExternalIssues = append(issues, issue)
	return r
}

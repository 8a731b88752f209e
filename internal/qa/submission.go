package qa

import "time"

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	SubmissionQueued    SubmissionStatus = "queued"
	SubmissionRunning   SubmissionStatus = "running"
	SubmissionCompleted SubmissionStatus = "completed"
	SubmissionFailed    SubmissionStatus = "failed"
)

// DiscoverySource records how a submission's targets were found.
type DiscoverySource string

const (
	DiscoverySitemap DiscoverySource = "sitemap"
	DiscoveryCrawl   DiscoverySource = "crawl"
)

// DiscoveryInfo describes the discovery pass for a submission.
type DiscoveryInfo struct {
	Source  DiscoverySource `json:"source"`
	SeedURL string          `json:"seedUrl"`
}

// SubmissionRecord is a user-supplied URL queued for discovery and smoke tests.
type SubmissionRecord struct {
	ID        string           `json:"id"`
	URL       string           `json:"url"`
	Status    SubmissionStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	RunID     string           `json:"runId,omitempty"`
	RunStatus StepStatus       `json:"runStatus,omitempty"`
	Error     string           `json:"error,omitempty"`
	Targets   []string         `json:"targets,omitempty"`
	Discovery *DiscoveryInfo   `json:"discovery,omitempty"`
}

// submissionTransitions lists every legal edge of the submission state machine.
// failed -> queued is only taken by an explicit retry.
var submissionTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionQueued:  {SubmissionRunning},
	SubmissionRunning: {SubmissionCompleted, SubmissionFailed},
	SubmissionFailed:  {SubmissionQueued},
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s SubmissionStatus) CanTransition(next SubmissionStatus) bool {
	for _, allowed := range submissionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

package config

import (
	"github.com/roach88/bugzapp/internal/publish"
	"github.com/roach88/bugzapp/internal/store"
	"github.com/roach88/bugzapp/internal/submission"
	"github.com/roach88/bugzapp/internal/webtools"
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:    store.BackendJSON,
			Dir:        "qa-storage",
			SQLitePath: "qa-storage.sqlite",
		},
		Runner: RunnerConfig{
			EvidenceDir: "evidence",
			UserAgent:   webtools.DefaultUserAgent,
		},
		Submission: SubmissionConfig{
			StorePath:         submission.DefaultStorePath,
			MaxPages:          submission.DefaultMaxPages,
			MaxDepth:          submission.DefaultMaxDepth,
			RequestsPerSecond: 2,
			UserAgent:         submission.DefaultUserAgent,
		},
		Publish: publish.Config{
			GitHub: publish.GitHubConfig{APIURL: publish.DefaultGitHubAPIURL},
			Jira:   publish.JiraConfig{IssueType: publish.DefaultJiraIssueType},
		},
		Server:  ServerConfig{Addr: ":5050"},
		Logging: LoggingConfig{Level: "info"},
	}
}

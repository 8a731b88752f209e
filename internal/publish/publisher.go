// Package publish escalates bug reports to external issue trackers.
//
// Two providers are supported: GitHub issues and Jira Cloud. Credentials are
// checked before any request is made; a provider with missing settings fails
// with a configuration error and no network traffic.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/roach88/bugzapp/internal/qa"
)

// DefaultGitHubAPIURL is used when GitHubConfig.APIURL is empty.
const DefaultGitHubAPIURL = "https://api.github.com"

// DefaultJiraIssueType is used when JiraConfig.IssueType is empty.
const DefaultJiraIssueType = "Bug"

// GitHubConfig holds GitHub issue settings.
type GitHubConfig struct {
	APIURL string `yaml:"api_url"`
	Repo   string `yaml:"repo"`
	Token  string `yaml:"token"`
}

// JiraConfig holds Jira Cloud issue settings.
type JiraConfig struct {
	BaseURL    string `yaml:"base_url"`
	Email      string `yaml:"email"`
	APIToken   string `yaml:"api_token"`
	ProjectKey string `yaml:"project_key"`
	IssueType  string `yaml:"issue_type"`
}

// Config holds the settings of every provider.
type Config struct {
	GitHub GitHubConfig `yaml:"github"`
	Jira   JiraConfig   `yaml:"jira"`
}

// Result identifies the issue created upstream.
type Result struct {
	Provider qa.IssueProvider `json:"provider"`
	URL      string           `json:"url"`
	Key      string           `json:"key,omitempty"`
	ID       string           `json:"id,omitempty"`
}

// Publisher creates issues from bug reports.
type Publisher struct {
	cfg    Config
	client *http.Client
	clock  qa.Clock
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithHTTPClient sets the base HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Publisher) { p.client = c }
}

// WithClock sets the clock used to stamp external issue links.
func WithClock(c qa.Clock) Option {
	return func(p *Publisher) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// New creates a Publisher.
func New(cfg Config, opts ...Option) *Publisher {
	p := &Publisher{
		cfg:    cfg,
		client: http.DefaultClient,
		clock:  qa.SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish creates one issue for report at provider.
func (p *Publisher) Publish(ctx context.Context, provider qa.IssueProvider, report qa.BugReport) (Result, error) {
	switch provider {
	case qa.ProviderGitHub:
		return p.publishGitHub(ctx, report)
	case qa.ProviderJira:
		return p.publishJira(ctx, report)
	default:
		return Result{}, qa.NewError(qa.ErrCodeConfiguration, "unknown issue provider %q", provider)
	}
}

// postJSON sends body to url and decodes a 2xx response into out.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%d %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

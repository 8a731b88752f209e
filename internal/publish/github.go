package publish

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/roach88/bugzapp/internal/qa"
)

type githubIssueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
}

type githubIssueResponse struct {
	HTMLURL string `json:"html_url"`
	Number  int    `json:"number"`
}

func (p *Publisher) publishGitHub(ctx context.Context, report qa.BugReport) (Result, error) {
	cfg := p.cfg.GitHub
	if cfg.Repo == "" || cfg.Token == "" {
		return Result{}, qa.NewError(qa.ErrCodeConfiguration,
			"GitHub publishing requires QA_GITHUB_REPO and QA_GITHUB_TOKEN")
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultGitHubAPIURL
	}

	// oauth2.NewClient wraps the configured client's transport.
	base := context.WithValue(ctx, oauth2.HTTPClient, p.client)
	client := oauth2.NewClient(base, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))

	header := http.Header{}
	header.Set("Accept", "application/vnd.github+json")

	var resp githubIssueResponse
	err := postJSON(ctx, client, apiURL+"/repos/"+cfg.Repo+"/issues", header, githubIssueRequest{
		Title:  report.Title,
		Body:   MarkdownBody(report),
		Labels: Labels(report),
	}, &resp)
	if err != nil {
		return Result{}, qa.WrapError(qa.ErrCodePublish, err, "GitHub issue creation failed")
	}

	p.logger.Info("github issue created", "repo", cfg.Repo, "number", resp.Number)
	return Result{
		Provider: qa.ProviderGitHub,
		URL:      resp.HTMLURL,
		ID:       strconv.Itoa(resp.Number),
	}, nil
}

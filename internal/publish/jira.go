package publish

import (
	"context"
	"net/http"
	"strings"

	"github.com/roach88/bugzapp/internal/qa"
)

type jiraIssueRequest struct {
	Fields jiraFields `json:"fields"`
}

type jiraFields struct {
	Project     jiraKey  `json:"project"`
	Summary     string   `json:"summary"`
	IssueType   jiraName `json:"issuetype"`
	Description ADFNode  `json:"description"`
}

type jiraKey struct {
	Key string `json:"key"`
}

type jiraName struct {
	Name string `json:"name"`
}

type jiraIssueResponse struct {
	Key string `json:"key"`
	ID  string `json:"id"`
}

// ADFNode is a node of an Atlassian Document Format tree.
type ADFNode struct {
	Type    string    `json:"type"`
	Version int       `json:"version,omitempty"`
	Text    string    `json:"text,omitempty"`
	Content []ADFNode `json:"content,omitempty"`
}

// ADFBody converts the Markdown body into one ADF paragraph per line.
// Blank lines become empty paragraphs.
func ADFBody(report qa.BugReport) ADFNode {
	lines := strings.Split(MarkdownBody(report), "\n")
	doc := ADFNode{Type: "doc", Version: 1, Content: make([]ADFNode, 0, len(lines))}
	for _, line := range lines {
		para := ADFNode{Type: "paragraph", Content: []ADFNode{}}
		if line != "" {
			para.Content = append(para.Content, ADFNode{Type: "text", Text: line})
		}
		doc.Content = append(doc.Content, para)
	}
	return doc
}

func (p *Publisher) publishJira(ctx context.Context, report qa.BugReport) (Result, error) {
	cfg := p.cfg.Jira
	if cfg.BaseURL == "" || cfg.Email == "" || cfg.APIToken == "" || cfg.ProjectKey == "" {
		return Result{}, qa.NewError(qa.ErrCodeConfiguration,
			"Jira publishing requires QA_JIRA_BASE_URL, QA_JIRA_EMAIL, QA_JIRA_API_TOKEN, and QA_JIRA_PROJECT_KEY")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	issueType := cfg.IssueType
	if issueType == "" {
		issueType = DefaultJiraIssueType
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	client := &http.Client{
		Transport: basicAuthTransport{email: cfg.Email, token: cfg.APIToken, base: p.client.Transport},
		Timeout:   p.client.Timeout,
	}

	var resp jiraIssueResponse
	err := postJSON(ctx, client, baseURL+"/rest/api/3/issue", header, jiraIssueRequest{
		Fields: jiraFields{
			Project:     jiraKey{Key: cfg.ProjectKey},
			Summary:     report.Title,
			IssueType:   jiraName{Name: issueType},
			Description: ADFBody(report),
		},
	}, &resp)
	if err != nil {
		return Result{}, qa.WrapError(qa.ErrCodePublish, err, "Jira issue creation failed")
	}

	p.logger.Info("jira issue created", "project", cfg.ProjectKey, "key", resp.Key)
	return Result{
		Provider: qa.ProviderJira,
		URL:      baseURL + "/browse/" + resp.Key,
		Key:      resp.Key,
		ID:       resp.ID,
	}, nil
}

type basicAuthTransport struct {
	email string
	token string
	base  http.RoundTripper
}

func (t basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.email, t.token)
	return base.RoundTrip(clone)
}

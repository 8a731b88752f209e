package api

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bugzapp/internal/publish"
	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/store"
	"github.com/roach88/bugzapp/internal/submission"
	"github.com/roach88/bugzapp/internal/testutil"
)

type fixture struct {
	srv      *httptest.Server
	storage  store.Storage
	queue    *submission.Queue
	runID    string
	bugID    string
	evidence string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	storage := store.NewFileStore(filepath.Join(dir, "records"),
		store.WithClock(testutil.NewStepClock(time.Second)),
		store.WithIDGenerator(testutil.NewSequenceIDs("rec")))

	run, err := storage.SaveTestRun(ctx, store.TestRunInput{
		SuiteID: "shop-smoke",
		Summary: qa.TestRunSummary{
			Status:    qa.StatusFail,
			StartedAt: testutil.Epoch,
			EndedAt:   testutil.Epoch.Add(time.Second),
			TestCaseResults: []qa.TestCaseResult{{
				TestCaseID: "checkout", Status: qa.StatusFail,
				StartedAt: testutil.Epoch, EndedAt: testutil.Epoch.Add(time.Second),
				Steps: []qa.StepResult{{
					StepID: "open", Tool: qa.ToolNavigate, Status: qa.StatusFail,
					StartedAt: testutil.Epoch, EndedAt: testutil.Epoch.Add(time.Second),
					Error: "HTTP 500", EvidenceRefs: []string{},
				}},
				EvidenceRefs: []string{},
			}},
			Evidence: []qa.EvidenceRecord{},
		},
		Metadata: store.Metadata{Tags: []string{"smoke"}, URL: "https://shop.test/"},
	})
	require.NoError(t, err)

	bug, err := storage.SaveBugReport(ctx, store.BugReportInput{Report: qa.BugReport{
		Title:    "Checkout button missing",
		Severity: qa.SeverityMajor,
		Steps:    []string{"Open https://shop.test/cart"},
		Expected: "#checkout is visible",
		Actual:   "#checkout is not visible",
		URLs:     []string{"https://shop.test/cart"},
		Timestamps: qa.Timestamps{
			ObservedAt: testutil.Epoch,
			ReportedAt: testutil.Epoch,
		},
	}})
	require.NoError(t, err)

	queue := submission.New(submission.Options{
		Store:  submission.NewFileStore(filepath.Join(dir, "submissions.json")),
		Clock:  testutil.NewStepClock(time.Second),
		IDs:    testutil.NewSequenceIDs("sub"),
		Logger: discardLogger(),
	})
	require.NoError(t, queue.Initialize(ctx))

	tracker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"html_url":"https://github.test/acme/shop/issues/7","number":7}`)
	}))
	t.Cleanup(tracker.Close)
	publisher := publish.New(publish.Config{GitHub: publish.GitHubConfig{APIURL: tracker.URL, Repo: "acme/shop", Token: "t"}},
		publish.WithLogger(discardLogger()))

	evidenceDir := filepath.Join(dir, "evidence")
	require.NoError(t, os.MkdirAll(filepath.Join(evidenceDir, "qa-assert-1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(evidenceDir, "qa-assert-1", "console.json"), []byte("[]"), 0o644))

	metrics := submission.NewMetrics("bugzapp")
	server := New(Options{
		Storage:     storage,
		Queue:       queue,
		Publisher:   publisher,
		Metrics:     metrics.Handler(),
		EvidenceDir: evidenceDir,
		Logger:      discardLogger(),
	})
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, storage: storage, queue: queue, runID: run.ID, bugID: bug.ID, evidence: evidenceDir}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestServer_TestRuns(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/test-runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []store.TestRunRecord
	require.NoError(t, json.Unmarshal(body, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, f.runID, runs[0].ID)

	_, body = f.do(t, http.MethodGet, "/api/test-runs?status=pass", "")
	require.NoError(t, json.Unmarshal(body, &runs))
	assert.Empty(t, runs)

	_, body = f.do(t, http.MethodGet, "/api/test-runs?tag=nightly", "")
	require.NoError(t, json.Unmarshal(body, &runs))
	assert.Empty(t, runs)

	resp, _ = f.do(t, http.MethodGet, "/api/test-runs/"+f.runID, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/api/test-runs/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), `"code": "NOT_FOUND"`)

	resp, _ = f.do(t, http.MethodGet, "/api/test-runs?from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_ExportJUnit(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/test-runs/"+f.runID+"/export?format=junit", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "run-"+f.runID+".xml")

	var suite struct {
		Tests    int `xml:"tests,attr"`
		Failures int `xml:"failures,attr"`
	}
	require.NoError(t, xml.Unmarshal(body, &suite))
	assert.Equal(t, 1, suite.Tests)
	assert.Equal(t, 1, suite.Failures)

	resp, _ = f.do(t, http.MethodGet, "/api/test-runs/"+f.runID+"/export?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_BugReportsAndPublish(t *testing.T) {
	f := newFixture(t)

	_, body := f.do(t, http.MethodGet, "/api/bug-reports?severity=major", "")
	var reports []store.BugReportRecord
	require.NoError(t, json.Unmarshal(body, &reports))
	require.Len(t, reports, 1)

	_, body = f.do(t, http.MethodGet, "/api/bug-reports?severity=minor", "")
	require.NoError(t, json.Unmarshal(body, &reports))
	assert.Empty(t, reports)

	resp, body := f.do(t, http.MethodPost, "/api/bug-reports/"+f.bugID+"/publish?provider=github", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var outcome publish.Outcome
	require.NoError(t, json.Unmarshal(body, &outcome))
	assert.True(t, outcome.Success)
	assert.Equal(t, "https://github.test/acme/shop/issues/7", outcome.IssueURL)

	stored, err := f.storage.GetBugReport(context.Background(), f.bugID)
	require.NoError(t, err)
	assert.Len(t, stored.Report.ExternalIssues, 1)

	resp, _ = f.do(t, http.MethodPost, "/api/bug-reports/"+f.bugID+"/publish?provider=jira", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/bug-reports/"+f.bugID+"/publish?provider=linear", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/bug-reports/missing/publish", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Submissions(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/submissions", `{"url":"https://shop.test"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created qa.SubmissionRecord
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, qa.SubmissionQueued, created.Status)
	assert.Equal(t, 1, f.queue.Pending())

	resp, _ = f.do(t, http.MethodPost, "/api/submissions", `{"url":"ftp://shop.test"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/submissions", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = f.do(t, http.MethodGet, "/api/submissions", "")
	var list []qa.SubmissionRecord
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)

	resp, _ = f.do(t, http.MethodGet, "/api/submissions/"+created.ID, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/submissions/"+created.ID+"/retry", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/submissions/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Evidence(t *testing.T) {
	f := newFixture(t)
	inside := filepath.Join(f.evidence, "qa-assert-1", "console.json")

	resp, body := f.do(t, http.MethodGet, "/api/evidence?path="+url.QueryEscape(inside), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", string(body))

	resp, _ = f.do(t, http.MethodGet, "/api/evidence?path="+url.QueryEscape(filepath.Join(f.evidence, "..", "secret")), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/evidence", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/evidence?path="+url.QueryEscape(filepath.Join(f.evidence, "nope.png")), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "bugzapp_submission_queue_depth")
}

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery(url.Values{
		"tag":      {"p1", "ui"},
		"severity": {"major"},
		"from":     {"2025-01-15"},
		"to":       {"2025-01-15"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "ui"}, q.Tags)
	assert.Equal(t, qa.SeverityMajor, q.Severity)
	assert.Equal(t, "2025-01-15T00:00:00.000Z", qa.FormatTimestamp(q.From))
	assert.Equal(t, "2025-01-15T23:59:59.999Z", qa.FormatTimestamp(q.To))

	q, err = ParseQuery(url.Values{"from": {"2025-01-15T09:30:00Z"}})
	require.NoError(t, err)
	assert.True(t, q.From.Equal(testutil.Epoch))

	_, err = ParseQuery(url.Values{"to": {"soon"}})
	require.Error(t, err)
	assert.True(t, qa.IsValidation(err))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/store"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, store.BackendJSON, cfg.Storage.Backend)
	assert.Equal(t, "qa-storage", cfg.Storage.Dir)
	assert.Equal(t, "qa-submissions.json", cfg.Submission.StorePath)
	assert.Equal(t, 10, cfg.Submission.MaxPages)
	assert.Equal(t, 2, cfg.Submission.MaxDepth)
	assert.Equal(t, "https://api.github.com", cfg.Publish.GitHub.APIURL)
	assert.Equal(t, "Bug", cfg.Publish.Jira.IssueType)
	assert.Equal(t, ":5050", cfg.Server.Addr)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "bugzapp.yaml", `
storage:
  backend: sqlite
  sqlite_path: /tmp/qa.db
runner:
  step_timeout: 45s
submission:
  max_pages: 25
publish:
  github:
    repo: acme/shop
logging:
  level: debug
`)
	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, store.BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "/tmp/qa.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 45*time.Second, cfg.Runner.StepTimeout)
	assert.Equal(t, 25, cfg.Submission.MaxPages)
	assert.Equal(t, 2, cfg.Submission.MaxDepth)
	assert.Equal(t, "acme/shop", cfg.Publish.GitHub.Repo)
	assert.Equal(t, "https://api.github.com", cfg.Publish.GitHub.APIURL)
	assert.Equal(t, "debug", cfg.Logging.Level)

	sc := cfg.Storage.Store()
	assert.Equal(t, "/tmp/qa.db", sc.SQLitePath)
	assert.Equal(t, 25, cfg.Submission.Discovery().MaxPages)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
		require.Error(t, err)
		assert.True(t, qa.IsConfiguration(err))
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := Load(writeFile(t, "c.yaml", "storage:\n  flavour: json\n"), "")
		require.Error(t, err)
		assert.True(t, qa.IsConfiguration(err))
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := Load(writeFile(t, "c.yaml", "storage:\n  backend: postgres\n"), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.backend")
	})

	t.Run("empty file is fine", func(t *testing.T) {
		_, err := Load(writeFile(t, "c.yaml", ""), "")
		assert.NoError(t, err)
	})
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := ApplyEnv(cfg, env(map[string]string{
		"QA_STORAGE_TYPE":         "sqlite",
		"QA_STORAGE_SQLITE_PATH":  "runs.db",
		"QA_SUBMISSION_MAX_PAGES": "3",
		"QA_SUBMISSION_MAX_DEPTH": " 1 ",
		"QA_GITHUB_REPO":          "acme/shop",
		"QA_GITHUB_TOKEN":         "ghp_x",
		"QA_JIRA_BASE_URL":        "https://acme.atlassian.net",
		"QA_JIRA_PROJECT_KEY":     "QA",
		"QA_JIRA_ISSUE_TYPE":      "  ",
		"QA_UI_PORT":              "8080",
	}))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "runs.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 3, cfg.Submission.MaxPages)
	assert.Equal(t, 1, cfg.Submission.MaxDepth)
	assert.Equal(t, "acme/shop", cfg.Publish.GitHub.Repo)
	assert.Equal(t, "ghp_x", cfg.Publish.GitHub.Token)
	assert.Equal(t, "QA", cfg.Publish.Jira.ProjectKey)
	assert.Equal(t, "Bug", cfg.Publish.Jira.IssueType)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestApplyEnv_RejectsBadNumbers(t *testing.T) {
	for _, key := range []string{"QA_SUBMISSION_MAX_PAGES", "QA_SUBMISSION_MAX_DEPTH", "QA_UI_PORT"} {
		t.Run(key, func(t *testing.T) {
			err := ApplyEnv(DefaultConfig(), env(map[string]string{key: "ten"}))
			require.Error(t, err)
			assert.True(t, qa.IsConfiguration(err))
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "QA_TEST_DOTENV_REPO=acme/dotenv\nQA_TEST_DOTENV_KEEP=from-file\n")
	t.Setenv("QA_TEST_DOTENV_KEEP", "from-env")
	t.Cleanup(func() { os.Unsetenv("QA_TEST_DOTENV_REPO") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "acme/dotenv", os.Getenv("QA_TEST_DOTENV_REPO"))
	assert.Equal(t, "from-env", os.Getenv("QA_TEST_DOTENV_KEEP"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
	assert.NoError(t, LoadDotEnv(""))
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Dir = ""
	cfg.Submission.MaxPages = 0
	cfg.Submission.MaxDepth = -1
	cfg.Runner.StepTimeout = -time.Second
	cfg.Logging.Level = "verbose"

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, qa.IsConfiguration(err))
	for _, field := range []string{"storage.dir", "submission.max_pages", "submission.max_depth", "runner.step_timeout", "logging.level"} {
		assert.Contains(t, err.Error(), field)
	}
}

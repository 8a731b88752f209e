package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/roach88/bugzapp/internal/qa"
)

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return qa.WrapError(qa.ErrCodeConfiguration, err, "load %s", path)
	}
	return nil
}

// ApplyEnv overrides cfg with QA_* variables. Blank values are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return qa.WrapError(qa.ErrCodeConfiguration, err, "%s must be an integer", key)
		}
		*dst = n
		return nil
	}

	str("QA_STORAGE_TYPE", &cfg.Storage.Backend)
	str("QA_STORAGE_DIR", &cfg.Storage.Dir)
	str("QA_STORAGE_SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("QA_EVIDENCE_DIR", &cfg.Runner.EvidenceDir)
	str("QA_SUBMISSION_STORE", &cfg.Submission.StorePath)
	if err := num("QA_SUBMISSION_MAX_PAGES", &cfg.Submission.MaxPages); err != nil {
		return err
	}
	if err := num("QA_SUBMISSION_MAX_DEPTH", &cfg.Submission.MaxDepth); err != nil {
		return err
	}

	str("QA_GITHUB_API_URL", &cfg.Publish.GitHub.APIURL)
	str("QA_GITHUB_REPO", &cfg.Publish.GitHub.Repo)
	str("QA_GITHUB_TOKEN", &cfg.Publish.GitHub.Token)
	str("QA_JIRA_BASE_URL", &cfg.Publish.Jira.BaseURL)
	str("QA_JIRA_EMAIL", &cfg.Publish.Jira.Email)
	str("QA_JIRA_API_TOKEN", &cfg.Publish.Jira.APIToken)
	str("QA_JIRA_PROJECT_KEY", &cfg.Publish.Jira.ProjectKey)
	str("QA_JIRA_ISSUE_TYPE", &cfg.Publish.Jira.IssueType)

	var port string
	str("QA_UI_PORT", &port)
	if port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return qa.WrapError(qa.ErrCodeConfiguration, err, "QA_UI_PORT must be a port number")
		}
		cfg.Server.Addr = ":" + port
	}
	str("QA_LOG_LEVEL", &cfg.Logging.Level)
	return nil
}

package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEnv is an isolated workspace: a config file pointing every store at
// a temp dir and a small shop site to test against.
type testEnv struct {
	dir    string
	config string
	site   *httptest.Server
}

const shopHome = `<!doctype html>
<html><head><title>Shop</title></head>
<body>
  <nav><a href="/">Home</a> <a href="/about">About</a></nav>
  <main><h1>Welcome to the shop</h1><p>Fresh goods daily.</p>
  <a class="cta" href="/signup">Sign up</a></main>
</body></html>`

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/about" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, shopHome)
	})
	site := httptest.NewServer(mux)
	t.Cleanup(site.Close)

	config := filepath.Join(dir, "bugzapp.yaml")
	body := fmt.Sprintf(`storage:
  dir: %s
runner:
  evidence_dir: %s
submission:
  store_path: %s
  requests_per_second: 0
`, filepath.Join(dir, "records"), filepath.Join(dir, "evidence"), filepath.Join(dir, "submissions.json"))
	require.NoError(t, os.WriteFile(config, []byte(body), 0o644))

	return &testEnv{dir: dir, config: config, site: site}
}

// writeSuite writes a suite file, replacing {{site}} with the shop URL.
func (e *testEnv) writeSuite(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(body, "{{site}}", e.site.URL)), 0o644))
	return path
}

// execute runs the root command with the env's config and returns stdout.
func (e *testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.executeContext(t, context.Background(), args...)
}

func (e *testEnv) executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.config, "--env-file", filepath.Join(e.dir, "missing.env")}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

const smokeSuite = `id: shop-smoke
description: Shop smoke checks
test_cases:
  - id: home
    description: Home page renders
    steps:
      - id: open
        tool: navigate
        input:
          url: {{site}}/
      - id: headline
        tool: extract
        input:
          instruction: Read the headline
`

const failingSuite = `id: shop-checkout
description: Checkout checks
test_cases:
  - id: checkout
    description: Checkout button visible
    steps:
      - id: open
        tool: navigate
        input:
          url: {{site}}/
      - id: check
        tool: assert
        input:
          title: Checkout button missing
          assertions:
            - type: selector_visible
              selector: "#checkout"
      - id: pay
        tool: act
        input:
          instruction: Click pay
`

package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/bugzapp/internal/qa"
)

// Artifact file names inside a capture directory.
const (
	ScreenshotFile    = "screenshot.png"
	PageFile          = "page.html"
	ConsoleLogFile    = "console-logs.json"
	NetworkErrorsFile = "network-errors.json"
)

// Capture is the result of one evidence capture.
type Capture struct {
	Evidence  []qa.EvidenceArtifact
	Directory string
}

// Capturer writes evidence artifacts under BaseDir.
type Capturer struct {
	// BaseDir holds one subdirectory per capture. Defaults to "evidence".
	BaseDir string

	Clock qa.Clock
	IDs   qa.IDGenerator
}

// Capture writes exactly four artifacts (screenshot, DOM snapshot, console
// log, network errors) into a new directory named <label-slug>-<id>, so
// concurrent captures never collide. A failed capture removes its directory.
func (c Capturer) Capture(ctx context.Context, session Session, logs []ConsoleLogEntry, failures []NetworkErrorEntry, label string) (_ Capture, err error) {
	clock := c.Clock
	if clock == nil {
		clock = qa.SystemClock{}
	}
	ids := c.IDs
	if ids == nil {
		ids = qa.UUIDv7Generator{}
	}
	base := c.BaseDir
	if base == "" {
		base = "evidence"
	}

	name := ids.Generate()
	if slug := Slug(label); slug != "" {
		name = slug + "-" + name
	}
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Capture{}, qa.WrapError(qa.ErrCodeStorageIO, err, "create evidence directory")
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	createdAt := qa.Normalize(clock.Now())
	evidence := make([]qa.EvidenceArtifact, 0, 4)

	png, err := session.Screenshot(ctx, true)
	if err != nil {
		return Capture{}, fmt.Errorf("capture screenshot: %w", err)
	}
	path, err := writeArtifact(dir, ScreenshotFile, png)
	if err != nil {
		return Capture{}, err
	}
	evidence = append(evidence, qa.EvidenceArtifact{
		Type: qa.ArtifactScreenshot, Path: path, MimeType: "image/png", CreatedAt: createdAt,
	})

	html, err := session.Content(ctx)
	if err != nil {
		return Capture{}, fmt.Errorf("capture page content: %w", err)
	}
	path, err = writeArtifact(dir, PageFile, []byte(html))
	if err != nil {
		return Capture{}, err
	}
	evidence = append(evidence, qa.EvidenceArtifact{
		Type: qa.ArtifactHTML, Path: path, MimeType: "text/html", CreatedAt: createdAt,
	})

	if logs == nil {
		logs = []ConsoleLogEntry{}
	}
	path, err = writeJSONArtifact(dir, ConsoleLogFile, logs)
	if err != nil {
		return Capture{}, err
	}
	evidence = append(evidence, qa.EvidenceArtifact{
		Type: qa.ArtifactConsoleLog, Path: path, MimeType: "application/json", CreatedAt: createdAt,
	})

	if failures == nil {
		failures = []NetworkErrorEntry{}
	}
	path, err = writeJSONArtifact(dir, NetworkErrorsFile, failures)
	if err != nil {
		return Capture{}, err
	}
	evidence = append(evidence, qa.EvidenceArtifact{
		Type: qa.ArtifactNetworkError, Path: path, MimeType: "application/json", CreatedAt: createdAt,
	})

	return Capture{Evidence: evidence, Directory: dir}, nil
}

func writeArtifact(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", qa.WrapError(qa.ErrCodeStorageIO, err, "write %s", path)
	}
	return path, nil
}

func writeJSONArtifact(dir, name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	return writeArtifact(dir, name, data)
}

// Slug folds a label into a lowercase ASCII directory-name fragment:
// accents are stripped, runs of other characters become single hyphens.
func Slug(label string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, label)
	if err != nil {
		folded = label
	}

	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			hyphen = false
			continue
		}
		if b.Len() > 0 && !hyphen {
			b.WriteByte('-')
			hyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Package webtools provides the navigate, observe and extract tools over
// plain HTTP and HTML parsing, plus an HTTP page session that assertion
// steps and evidence capture can inspect.
//
// A Session fetches pages without executing scripts, so it never emits
// console messages and its screenshots are blank placeholders of the
// viewport size. Failed page loads are reported as failed requests.
package webtools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/roach88/bugzapp/internal/evidence"
	"github.com/roach88/bugzapp/internal/qa"
)

// DefaultUserAgent identifies page requests.
const DefaultUserAgent = "BugZapp/1.0 (+https://github.com/roach88/bugzapp)"

const maxPageBytes = 10 << 20

// Session is a single-tab HTTP browsing session.
//
// Thread-safety: All methods are safe for concurrent use.
type Session struct {
	client    *http.Client
	userAgent string
	viewport  qa.Viewport

	mu      sync.Mutex
	url     string
	status  int
	content []byte
	doc     *html.Node

	subMu    sync.Mutex
	nextSub  int
	console  map[int]func(evidence.ConsoleMessage)
	failures map[int]func(evidence.FailedRequest)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHTTPClient sets the client used to load pages.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) { s.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) SessionOption {
	return func(s *Session) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithViewport sets the reported viewport.
func WithViewport(v qa.Viewport) SessionOption {
	return func(s *Session) { s.viewport = v }
}

// NewSession creates a Session with no page loaded.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: DefaultUserAgent,
		viewport:  qa.Viewport{Width: 1280, Height: 720},
		console:   make(map[int]func(evidence.ConsoleMessage)),
		failures:  make(map[int]func(evidence.FailedRequest)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Goto loads target and makes it the current page. A transport failure or
// an HTTP error status is reported to failed-request subscribers; the
// former is also returned as an error.
func (s *Session) Goto(ctx context.Context, target string) error {
	if _, err := url.ParseRequestURI(target); err != nil {
		return fmt.Errorf("navigate: invalid url %q: %w", target, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		s.emitFailure(evidence.FailedRequest{URL: target, Method: http.MethodGet, Failure: err.Error()})
		return fmt.Errorf("navigate to %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		s.emitFailure(evidence.FailedRequest{URL: target, Method: http.MethodGet, Failure: err.Error()})
		return fmt.Errorf("read %s: %w", target, err)
	}
	if resp.StatusCode >= 400 {
		s.emitFailure(evidence.FailedRequest{
			URL:     target,
			Method:  http.MethodGet,
			Failure: fmt.Sprintf("HTTP %d", resp.StatusCode),
		})
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", target, err)
	}

	s.mu.Lock()
	s.url = resp.Request.URL.String()
	s.status = resp.StatusCode
	s.content = body
	s.doc = doc
	s.mu.Unlock()
	return nil
}

// Status returns the HTTP status of the current page, zero before Goto.
func (s *Session) Status() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// URL returns the current page URL after redirects.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Content returns the raw HTML of the current page.
func (s *Session) Content(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return "", errNoPage
	}
	return string(s.content), nil
}

// Viewport returns the configured viewport.
func (s *Session) Viewport() *qa.Viewport {
	v := s.viewport
	return &v
}

// Screenshot returns a blank PNG of the viewport size.
func (s *Session) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	w, h := max(s.viewport.Width, 1), max(s.viewport.Height, 1)
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(color.White.Y >> 8)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

// OnConsole implements evidence.Session. HTTP pages run no scripts, so fn
// is never called.
func (s *Session) OnConsole(fn func(evidence.ConsoleMessage)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.console[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.console, id)
	}
}

// OnRequestFailed implements evidence.Session.
func (s *Session) OnRequestFailed(fn func(evidence.FailedRequest)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.failures[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.failures, id)
	}
}

func (s *Session) emitFailure(f evidence.FailedRequest) {
	s.subMu.Lock()
	subs := make([]func(evidence.FailedRequest), 0, len(s.failures))
	for _, fn := range s.failures {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(f)
	}
}

// IsVisible reports whether an element matching selector exists and is not
// hidden by its markup.
func (s *Session) IsVisible(ctx context.Context, selector string) (bool, error) {
	nodes, err := s.query(selector)
	if err != nil {
		return false, err
	}
	for _, n := range nodes {
		if !hidden(n) {
			return true, nil
		}
	}
	return false, nil
}

// TextContent returns the text of the first element matching selector, or
// "" when none matches.
func (s *Session) TextContent(ctx context.Context, selector string) (string, error) {
	nodes, err := s.query(selector)
	if err != nil || len(nodes) == 0 {
		return "", err
	}
	return textOf(nodes[0]), nil
}

// Count returns the number of elements matching selector.
func (s *Session) Count(ctx context.Context, selector string) (int, error) {
	nodes, err := s.query(selector)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (s *Session) query(selector string) ([]*html.Node, error) {
	sel, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil {
		return nil, errNoPage
	}
	return queryAll(doc, sel), nil
}

func (s *Session) document() (*html.Node, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, "", errNoPage
	}
	return s.doc, s.url, nil
}

var errNoPage = errors.New("no page loaded")

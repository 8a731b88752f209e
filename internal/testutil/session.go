package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/bugzapp/internal/evidence"
	"github.com/roach88/bugzapp/internal/qa"
)

// FakeSession is an in-memory browser session and page.
//
// Visible, Texts, and Counts describe the DOM by selector; selectors absent
// from a map are treated as not visible, empty, and zero respectively.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeSession struct {
	mu sync.Mutex

	PageURL       string
	HTML          string
	PNG           []byte
	ViewportSize  *qa.Viewport
	Visible       map[string]bool
	Texts         map[string]string
	Counts        map[string]int
	ScreenshotErr error
	ContentErr    error
	QueryErr      error

	next        int
	consoleSubs map[int]func(evidence.ConsoleMessage)
	requestSubs map[int]func(evidence.FailedRequest)
}

// NewFakeSession creates a session positioned at url.
func NewFakeSession(url string) *FakeSession {
	return &FakeSession{
		PageURL:      url,
		HTML:         "<html><body></body></html>",
		PNG:          []byte("\x89PNG\r\n\x1a\nfake"),
		ViewportSize: &qa.Viewport{Width: 1280, Height: 720},
		Visible:      map[string]bool{},
		Texts:        map[string]string{},
		Counts:       map[string]int{},
		consoleSubs:  map[int]func(evidence.ConsoleMessage){},
		requestSubs:  map[int]func(evidence.FailedRequest){},
	}
}

// OnConsole implements evidence.Session.
func (s *FakeSession) OnConsole(fn func(evidence.ConsoleMessage)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.consoleSubs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.consoleSubs, id)
	}
}

// OnRequestFailed implements evidence.Session.
func (s *FakeSession) OnRequestFailed(fn func(evidence.FailedRequest)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.requestSubs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.requestSubs, id)
	}
}

// EmitConsole delivers msg to every console subscriber.
func (s *FakeSession) EmitConsole(msg evidence.ConsoleMessage) {
	s.mu.Lock()
	subs := make([]func(evidence.ConsoleMessage), 0, len(s.consoleSubs))
	for _, fn := range s.consoleSubs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(msg)
	}
}

// EmitRequestFailed delivers req to every failed-request subscriber.
func (s *FakeSession) EmitRequestFailed(req evidence.FailedRequest) {
	s.mu.Lock()
	subs := make([]func(evidence.FailedRequest), 0, len(s.requestSubs))
	for _, fn := range s.requestSubs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(req)
	}
}

// Subscribers returns the number of live subscriptions.
func (s *FakeSession) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.consoleSubs) + len(s.requestSubs)
}

// Screenshot implements evidence.Session.
func (s *FakeSession) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ScreenshotErr != nil {
		return nil, s.ScreenshotErr
	}
	return s.PNG, nil
}

// Content implements evidence.Session.
func (s *FakeSession) Content(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ContentErr != nil {
		return "", s.ContentErr
	}
	return s.HTML, nil
}

// URL implements evidence.Session.
func (s *FakeSession) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PageURL
}

// Viewport implements evidence.Session.
func (s *FakeSession) Viewport() *qa.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ViewportSize
}

// Goto moves the page to url.
func (s *FakeSession) Goto(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if url == "" {
		return fmt.Errorf("empty url")
	}
	s.PageURL = url
	return nil
}

// IsVisible reports whether selector is marked visible.
func (s *FakeSession) IsVisible(ctx context.Context, selector string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return false, s.QueryErr
	}
	return s.Visible[selector], nil
}

// TextContent returns the text registered for selector.
func (s *FakeSession) TextContent(ctx context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return "", s.QueryErr
	}
	return s.Texts[selector], nil
}

// Count returns the element count registered for selector.
func (s *FakeSession) Count(ctx context.Context, selector string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return 0, s.QueryErr
	}
	return s.Counts[selector], nil
}

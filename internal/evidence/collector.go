// Package evidence records browser diagnostics and writes them to disk.
//
// A Collector is a scoped subscription to a session's console and
// failed-request streams. Callers acquire it with Attach and release it with
// a deferred Detach so no subscription outlives the code that needed it.
// Capturer turns the buffered observations plus a screenshot and DOM
// snapshot into four file artifacts.
package evidence

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/bugzapp/internal/qa"
)

// SourceLocation points at the script position that emitted a console message.
type SourceLocation struct {
	URL          string `json:"url,omitempty"`
	LineNumber   int    `json:"lineNumber,omitempty"`
	ColumnNumber int    `json:"columnNumber,omitempty"`
}

// ConsoleMessage is a console event as reported by the session.
type ConsoleMessage struct {
	Type     string
	Text     string
	Location *SourceLocation
}

// FailedRequest is a network request the session reported as failed.
type FailedRequest struct {
	URL     string
	Method  string
	Failure string
}

// ConsoleLogEntry is a buffered console message stamped at capture time.
type ConsoleLogEntry struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Location  *SourceLocation `json:"location,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NetworkErrorEntry is a buffered failed request stamped at capture time.
type NetworkErrorEntry struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	Failure   string    `json:"failure,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the browser session surface evidence collection needs.
type Session interface {
	// OnConsole subscribes fn to console messages and returns its unsubscribe.
	OnConsole(fn func(ConsoleMessage)) (unsubscribe func())

	// OnRequestFailed subscribes fn to failed requests and returns its unsubscribe.
	OnRequestFailed(fn func(FailedRequest)) (unsubscribe func())

	// Screenshot returns a PNG of the page.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)

	// Content returns the current DOM serialized as HTML.
	Content(ctx context.Context) (string, error)

	URL() string
	Viewport() *qa.Viewport
}

// Collector buffers console messages and failed requests while attached.
//
// Thread-safety: All methods are safe for concurrent use; session callbacks
// may fire from any goroutine.
type Collector struct {
	clock qa.Clock

	mu       sync.Mutex
	logs     []ConsoleLogEntry
	failures []NetworkErrorEntry

	detachOnce sync.Once
	unsubs     []func()
}

// Attach subscribes a new Collector to session. The caller must Detach.
func Attach(session Session, clock qa.Clock) *Collector {
	if clock == nil {
		clock = qa.SystemClock{}
	}
	c := &Collector{
		clock:    clock,
		logs:     []ConsoleLogEntry{},
		failures: []NetworkErrorEntry{},
	}
	c.unsubs = append(c.unsubs,
		session.OnConsole(c.onConsole),
		session.OnRequestFailed(c.onRequestFailed),
	)
	return c
}

func (c *Collector) onConsole(msg ConsoleMessage) {
	entry := ConsoleLogEntry{
		Type:      msg.Type,
		Text:      msg.Text,
		Location:  msg.Location,
		Timestamp: qa.Normalize(c.clock.Now()),
	}
	if entry.Type == "" {
		entry.Type = "log"
	}
	c.mu.Lock()
	c.logs = append(c.logs, entry)
	c.mu.Unlock()
}

func (c *Collector) onRequestFailed(req FailedRequest) {
	entry := NetworkErrorEntry{
		URL:       req.URL,
		Method:    req.Method,
		Failure:   req.Failure,
		Timestamp: qa.Normalize(c.clock.Now()),
	}
	if entry.Method == "" {
		entry.Method = "GET"
	}
	c.mu.Lock()
	c.failures = append(c.failures, entry)
	c.mu.Unlock()
}

// ConsoleLogs returns a snapshot of the buffered console messages.
func (c *Collector) ConsoleLogs() []ConsoleLogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ConsoleLogEntry, len(c.logs))
	copy(out, c.logs)
	return out
}

// NetworkErrors returns a snapshot of the buffered failed requests.
func (c *Collector) NetworkErrors() []NetworkErrorEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]NetworkErrorEntry, len(c.failures))
	copy(out, c.failures)
	return out
}

// Detach unsubscribes from the session. Safe to call more than once.
func (c *Collector) Detach() {
	c.detachOnce.Do(func() {
		for _, unsub := range c.unsubs {
			if unsub != nil {
				unsub()
			}
		}
	})
}

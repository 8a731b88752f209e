package evidence_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bugzapp/internal/evidence"
	"github.com/roach88/bugzapp/internal/testutil"
)

func TestCollector_BuffersWhileAttached(t *testing.T) {
	session := testutil.NewFakeSession("https://shop.example/")
	clock := testutil.NewStepClock(time.Second)

	c := evidence.Attach(session, clock)
	defer c.Detach()

	session.EmitConsole(evidence.ConsoleMessage{Type: "error", Text: "Uncaught TypeError"})
	session.EmitConsole(evidence.ConsoleMessage{Text: "hello"})
	session.EmitRequestFailed(evidence.FailedRequest{URL: "https://cdn.example/app.js", Failure: "net::ERR_FAILED"})

	logs := c.ConsoleLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, "error", logs[0].Type)
	assert.Equal(t, "log", logs[1].Type, "missing type defaults to log")
	assert.Equal(t, testutil.Epoch, logs[0].Timestamp)
	assert.Equal(t, testutil.Epoch.Add(time.Second), logs[1].Timestamp)

	failures := c.NetworkErrors()
	require.Len(t, failures, 1)
	assert.Equal(t, "GET", failures[0].Method)
	assert.Equal(t, "net::ERR_FAILED", failures[0].Failure)
}

func TestCollector_SnapshotsAreCopies(t *testing.T) {
	session := testutil.NewFakeSession("https://shop.example/")
	c := evidence.Attach(session, nil)
	defer c.Detach()

	session.EmitConsole(evidence.ConsoleMessage{Text: "one"})
	snapshot := c.ConsoleLogs()
	session.EmitConsole(evidence.ConsoleMessage{Text: "two"})

	assert.Len(t, snapshot, 1)
	assert.Len(t, c.ConsoleLogs(), 2)
}

func TestCollector_DetachIsIdempotent(t *testing.T) {
	session := testutil.NewFakeSession("https://shop.example/")
	c := evidence.Attach(session, nil)
	assert.Equal(t, 2, session.Subscribers())

	c.Detach()
	c.Detach()
	assert.Equal(t, 0, session.Subscribers())

	session.EmitConsole(evidence.ConsoleMessage{Text: "after detach"})
	assert.Empty(t, c.ConsoleLogs())
}

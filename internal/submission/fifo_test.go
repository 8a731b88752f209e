package submission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFO_Order(t *testing.T) {
	q := newFIFO()
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(id))
	}
	assert.Equal(t, 3, q.Len())

	var got []string
	for {
		id, ok := q.TryDequeue()
		if !ok {
			break
		}
		got = append(got, id)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 0, q.Len())
}

func TestFIFO_SignalCoalesces(t *testing.T) {
	q := newFIFO()
	q.Enqueue("a")
	q.Enqueue("b")

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("expected a pending signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
}

func TestFIFO_CloseWakesWaiters(t *testing.T) {
	q := newFIFO()
	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	q.Close()
	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the waiter")
	}
	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue("late"))
}

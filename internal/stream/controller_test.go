package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/campuschat/campuschat/internal/provider"
	"github.com/campuschat/campuschat/internal/stats"
	"github.com/campuschat/campuschat/internal/testutil"
	"github.com/campuschat/campuschat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func permissiveStats(t *testing.T) *stats.MockStatsUpdater {
	t.Helper()
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()
	return su
}

// startTestController wires a controller to a mocked feed and returns the
// captured snapshot callback so tests can drive feed pushes directly.
func startTestController(t *testing.T, feed *provider.MockLiveFeed) (*Controller, func([]provider.Document)) {
	t.Helper()

	var snapshotFn provider.SnapshotFunc
	feed.On("Subscribe", mock.Anything, provider.Query{
		Collection: provider.MessagesCollection,
		Limit:      WindowLimit,
	}, mock.Anything).Run(func(args mock.Arguments) {
		snapshotFn = args.Get(2).(provider.SnapshotFunc)
	}).Return(provider.UnsubscribeFunc(func() {}), nil)

	c, err := NewController(feed, permissiveStats(t), testutil.TestLogger(t))
	require.NoError(t, err, "expected controller construction to succeed")
	require.NoError(t, c.Start(context.Background()), "expected subscribe to succeed")
	require.NotNil(t, snapshotFn, "expected the feed callback to be captured")

	return c, snapshotFn
}

func committedDocs(n, offset int) []provider.Document {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	docs := make([]provider.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, provider.Document{
			ID: fmt.Sprintf("m%03d", offset+i),
			Fields: map[string]any{
				"sender":         "Ali",
				"senderUsername": "ali",
				"type":           "text",
				"content":        fmt.Sprintf("message %d", offset+i),
				"createdAt":      base.Add(time.Duration(offset+i) * time.Second),
			},
		})
	}
	return docs
}

func TestWindowFollowsProviderOrder(t *testing.T) {
	feed := &provider.MockLiveFeed{}
	c, push := startTestController(t, feed)

	var got []types.Message
	unsub := c.Subscribe(func(window []types.Message) { got = window })
	defer unsub()

	assert.Empty(t, got, "expected empty window before the first push")

	push(committedDocs(3, 1))
	require.Len(t, got, 3, "expected the full pushed window")
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Before(got[i]), "expected ascending (createdAt, id) order at %d", i)
	}
	assert.Equal(t, "m001", got[0].Id, "expected provider order exposed unchanged")
}

func TestWindowBoundAndJumpTo(t *testing.T) {
	feed := &provider.MockLiveFeed{}
	c, push := startTestController(t, feed)

	// m1..m100 loaded, then m101 pushes m1 out of the window.
	push(committedDocs(WindowLimit, 1))
	idx, err := c.JumpTo("m001")
	require.NoError(t, err, "expected m001 to be locatable while in window")
	assert.Equal(t, 0, idx)

	push(committedDocs(WindowLimit, 2))
	window := c.Window()
	require.Len(t, window, WindowLimit, "expected window to stay bounded")
	assert.Equal(t, "m002", window[0].Id, "expected the oldest entry evicted")
	assert.Equal(t, "m101", window[WindowLimit-1].Id, "expected the newest entry at the tail")

	_, err = c.JumpTo("m001")
	assert.ErrorIs(t, err, ErrNotInWindow, "expected a distinct not-in-window report")

	_, err = c.JumpTo("never-existed")
	assert.ErrorIs(t, err, ErrNotInWindow, "expected the same report for unknown ids")
}

func TestAppendOptimisticThenCommitted(t *testing.T) {
	feed := &provider.MockLiveFeed{}
	c, push := startTestController(t, feed)
	push(committedDocs(2, 1))

	feed.On("Append", mock.Anything, provider.MessagesCollection, mock.Anything).
		Return("m003", nil).Once()

	var updates [][]types.Message
	unsub := c.Subscribe(func(window []types.Message) {
		cp := make([]types.Message, len(window))
		copy(cp, window)
		updates = append(updates, cp)
	})
	defer unsub()

	id, err := c.Append(context.Background(), types.Message{
		Sender:       "Ali",
		SenderHandle: "ali",
		Kind:         types.KindText,
		Body:         "hello",
	})
	require.NoError(t, err, "expected append to succeed")
	assert.Equal(t, "m003", id, "expected the server-assigned id back")

	// The optimistic update renders the entry pending at the tail.
	var sawPending bool
	for _, window := range updates {
		if n := len(window); n > 0 && window[n-1].Pending {
			sawPending = true
			assert.Nil(t, window[n-1].CreatedAt, "expected no timestamp before the ack")
		}
	}
	assert.True(t, sawPending, "expected an optimistic tail entry before the ack")

	// The committed copy arrives through the feed; the pending entry is
	// dropped and the window re-sorts to the server order.
	push(committedDocs(3, 1))
	window := c.Window()
	require.Len(t, window, 3, "expected no duplicate after reconciliation")
	assert.Equal(t, "m003", window[2].Id)
	assert.False(t, window[2].Pending, "expected the committed entry to replace the pending one")
}

func TestAppendCommitBeforeAck(t *testing.T) {
	feed := &provider.MockLiveFeed{}
	c, push := startTestController(t, feed)

	// The feed pushes the committed copy before Append returns, as a
	// synchronous in-process feed does.
	feed.On("Append", mock.Anything, provider.MessagesCollection, mock.Anything).
		Run(func(mock.Arguments) { push(committedDocs(1, 1)) }).
		Return("m001", nil).Once()

	_, err := c.Append(context.Background(), types.Message{Kind: types.KindText, Body: "hi"})
	require.NoError(t, err)

	window := c.Window()
	require.Len(t, window, 1, "expected the pending entry reconciled on ack")
	assert.False(t, window[0].Pending)
}

func TestAppendFailureDropsPending(t *testing.T) {
	feed := &provider.MockLiveFeed{}
	c, _ := startTestController(t, feed)

	feed.On("Append", mock.Anything, provider.MessagesCollection, mock.Anything).
		Return("", errors.New("backend unavailable")).Once()

	_, err := c.Append(context.Background(), types.Message{Kind: types.KindText, Body: "hi"})
	require.Error(t, err, "expected the failure surfaced")
	assert.Empty(t, c.Window(), "expected the optimistic entry removed, not retried")
}

func TestUnsubscribeIdempotent(t *testing.T) {
	feed := &provider.MockLiveFeed{}
	c, push := startTestController(t, feed)

	calls := 0
	unsub := c.Subscribe(func([]types.Message) { calls++ })
	require.Equal(t, 1, calls, "expected the immediate replay")

	unsub()
	unsub()

	push(committedDocs(1, 1))
	assert.Equal(t, 1, calls, "expected no callback after unsubscribe")
}

func TestUnsubscribeWaitsForInFlightDelivery(t *testing.T) {
	feed := &provider.MockLiveFeed{}
	c, push := startTestController(t, feed)

	var (
		mu      sync.Mutex
		calls   int
		started = make(chan struct{})
		release = make(chan struct{})
	)
	unsub := c.Subscribe(func([]types.Message) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		// The first call is the synchronous replay; the second is the
		// goroutine push below.
		if n == 2 {
			close(started)
			<-release
		}
	})

	go push(committedDocs(1, 1))
	<-started

	returned := make(chan struct{})
	go func() {
		unsub()
		close(returned)
	}()

	select {
	case <-returned:
		t.Fatal("unsubscribe returned while a delivery was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for unsubscribe")
	}

	push(committedDocs(2, 1))
	mu.Lock()
	final := calls
	mu.Unlock()
	assert.Equal(t, 2, final, "expected no delivery after unsubscribe returned")
}

func TestPendingTailKeepsSendOrder(t *testing.T) {
	feed := &provider.MockLiveFeed{}
	c, _ := startTestController(t, feed)

	feed.On("Append", mock.Anything, provider.MessagesCollection, mock.Anything).
		Return("s1", nil).Once()
	feed.On("Append", mock.Anything, provider.MessagesCollection, mock.Anything).
		Return("s2", nil).Once()

	_, err := c.Append(context.Background(), types.Message{Kind: types.KindText, Body: "first"})
	require.NoError(t, err)
	_, err = c.Append(context.Background(), types.Message{Kind: types.KindText, Body: "second"})
	require.NoError(t, err)

	window := c.Window()
	require.Len(t, window, 2, "expected both entries pending until a snapshot arrives")
	assert.Equal(t, "first", window[0].Body, "expected the pending tail in send order")
	assert.Equal(t, "second", window[1].Body)
}

func TestStopIdempotent(t *testing.T) {
	feed := &provider.MockLiveFeed{}

	unsubCalls := 0
	feed.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).
		Return(provider.UnsubscribeFunc(func() { unsubCalls++ }), nil)

	c, err := NewController(feed, permissiveStats(t), testutil.TestLogger(t))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	c.Stop()
	c.Stop()
	assert.Equal(t, 1, unsubCalls, "expected the feed unsubscribed exactly once")
}

package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/campuschat/campuschat/internal/clienterr"
	"github.com/campuschat/campuschat/internal/provider"
	"github.com/campuschat/campuschat/internal/stats"
	"github.com/campuschat/campuschat/internal/types"
	"github.com/teris-io/shortid"
)

// WindowLimit is the number of messages materialized client-side.
const WindowLimit = 100

// ErrNotInWindow is returned by JumpTo when the id is not part of the loaded
// window. The message may be older than the window or may not exist; the
// controller cannot tell and says so instead of guessing.
var ErrNotInWindow = errors.New("message not in loaded window")

// UpdateFunc receives the full window on every change. The slice is a copy
// owned by the receiver.
type UpdateFunc func(window []types.Message)

// Unsubscribe cancels a subscription. Idempotent; it waits out any delivery
// already in flight, so no callback runs after it returns. Must not be called
// from inside the callback itself.
type Unsubscribe func()

// subscriber serializes deliveries to one callback. The mutex is held across
// the invocation, which lets Unsubscribe block until an in-flight delivery
// finishes.
type subscriber struct {
	mu      sync.Mutex
	fn      UpdateFunc
	removed bool
}

func (s *subscriber) deliver(window []types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return
	}
	s.fn(window)
}

// Controller maintains the client-visible message window. The feed provider
// is the order authority: committed messages are exposed exactly as
// delivered, with no local re-sorting. Pending (optimistic) entries render at
// the tail until the provider acknowledges them with a timestamp.
type Controller struct {
	feed  provider.LiveFeed
	stats stats.StatsProvider
	log   *log.Logger
	sid   *shortid.Shortid

	mu        sync.Mutex
	committed []types.Message
	pending   []types.Message
	acked     map[string]string // local id -> server id
	subs      map[int]*subscriber
	nextSubID int
	unsubFeed provider.UnsubscribeFunc
}

func NewController(feed provider.LiveFeed, su stats.StatsProvider, logger *log.Logger) (*Controller, error) {
	sid, err := shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		return nil, fmt.Errorf("init shortid: %w", err)
	}

	return &Controller{
		feed:  feed,
		stats: su,
		log:   logger,
		sid:   sid,
		acked: make(map[string]string),
		subs:  make(map[int]*subscriber),
	}, nil
}

// Start subscribes to the live feed. Must be called once before Append.
func (c *Controller) Start(ctx context.Context) error {
	unsub, err := c.feed.Subscribe(ctx, provider.Query{
		Collection: provider.MessagesCollection,
		Limit:      WindowLimit,
	}, c.applySnapshot)
	if err != nil {
		return fmt.Errorf("subscribe to feed: %w", err)
	}

	c.mu.Lock()
	c.unsubFeed = unsub
	c.mu.Unlock()

	return nil
}

// Stop cancels the feed subscription. Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	unsub := c.unsubFeed
	c.unsubFeed = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Subscribe registers for window updates. The current window is delivered
// immediately.
func (c *Controller) Subscribe(fn UpdateFunc) Unsubscribe {
	sub := &subscriber{fn: fn}

	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.subs[id] = sub
	window := c.windowLocked()
	c.mu.Unlock()

	sub.deliver(window)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()

			// Block until any in-flight delivery has finished.
			sub.mu.Lock()
			sub.removed = true
			sub.mu.Unlock()
		})
	}
}

// Window returns a copy of the current window.
func (c *Controller) Window() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.windowLocked()
}

// Append sends a message through the feed. The entry renders optimistically
// at the tail of the window until the provider acknowledges it; on failure
// the optimistic entry is removed and the error surfaced, never retried.
func (c *Controller) Append(ctx context.Context, msg types.Message) (string, error) {
	localID, err := c.sid.Generate()
	if err != nil {
		return "", fmt.Errorf("generate local id: %w", err)
	}

	msg.Id = localID
	msg.Pending = true
	msg.CreatedAt = nil

	c.mu.Lock()
	c.pending = append(c.pending, msg)
	c.mu.Unlock()
	c.stats.Incr(stats.PendingMessages)
	c.publish()

	serverID, err := c.feed.Append(ctx, provider.MessagesCollection, encodeMessage(msg))
	if err != nil {
		c.log.Println("append failed:", err)
		c.dropPending(localID)
		c.stats.Incr(stats.SendFailures)
		c.publish()
		return "", fmt.Errorf("append message: %w", clienterr.NewSendFailedError(err))
	}

	c.mu.Lock()
	c.acked[localID] = serverID
	// The committed copy may already have arrived through the feed; if so
	// the pending entry is stale now.
	c.reconcileLocked()
	c.mu.Unlock()
	c.publish()
	c.stats.Incr(stats.MessagesSent)

	return serverID, nil
}

// JumpTo locates a message in the current window and returns its index as
// the scroll target.
func (c *Controller) JumpTo(id string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, msg := range c.windowLocked() {
		if msg.Id == id {
			return i, nil
		}
	}

	return 0, ErrNotInWindow
}

// applySnapshot replaces the committed window wholesale. Observers never see
// a partially applied update.
func (c *Controller) applySnapshot(docs []provider.Document) {
	msgs := make([]types.Message, 0, len(docs))
	for _, doc := range docs {
		msgs = append(msgs, decodeMessage(doc))
	}

	c.mu.Lock()
	c.committed = msgs
	c.reconcileLocked()
	c.mu.Unlock()

	c.stats.Incr(stats.SnapshotsApplied)
	c.publish()
}

// reconcileLocked drops pending entries whose committed counterpart is
// visible in the feed window. Caller holds the lock.
func (c *Controller) reconcileLocked() {
	if len(c.pending) == 0 {
		return
	}

	inWindow := make(map[string]struct{}, len(c.committed))
	for _, msg := range c.committed {
		inWindow[msg.Id] = struct{}{}
	}

	kept := c.pending[:0]
	for _, msg := range c.pending {
		serverID, acked := c.acked[msg.Id]
		if acked {
			if _, ok := inWindow[serverID]; ok {
				delete(c.acked, msg.Id)
				c.stats.Decr(stats.PendingMessages)
				continue
			}
		}
		kept = append(kept, msg)
	}
	c.pending = kept
}

func (c *Controller) dropPending(localID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.pending[:0]
	for _, msg := range c.pending {
		if msg.Id == localID {
			c.stats.Decr(stats.PendingMessages)
			continue
		}
		kept = append(kept, msg)
	}
	c.pending = kept
	delete(c.acked, localID)
}

// windowLocked builds the visible window: the committed feed order followed
// by the pending entries at the tail, in send order. Caller holds the lock.
func (c *Controller) windowLocked() []types.Message {
	window := make([]types.Message, 0, len(c.committed)+len(c.pending))
	window = append(window, c.committed...)
	window = append(window, c.pending...)
	return window
}

func (c *Controller) publish() {
	c.mu.Lock()
	subs := make([]*subscriber, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	window := c.windowLocked()
	c.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(window)
	}
}

func encodeMessage(msg types.Message) map[string]any {
	fields := map[string]any{
		"sender":         msg.Sender,
		"senderUsername": msg.SenderHandle,
		"avatar":         msg.AvatarURL,
		"color":          msg.AccentColor,
		"type":           string(msg.Kind),
		"content":        msg.Body,
	}
	if msg.ReplyTo != nil {
		fields["replyTo"] = map[string]any{
			"sender":    msg.ReplyTo.Sender,
			"content":   msg.ReplyTo.Body,
			"truncated": msg.ReplyTo.Truncated,
		}
	}
	return fields
}

func decodeMessage(doc provider.Document) types.Message {
	msg := types.Message{Id: doc.ID}
	msg.Sender, _ = doc.Fields["sender"].(string)
	msg.SenderHandle, _ = doc.Fields["senderUsername"].(string)
	msg.AvatarURL, _ = doc.Fields["avatar"].(string)
	msg.AccentColor, _ = doc.Fields["color"].(string)
	msg.Body, _ = doc.Fields["content"].(string)
	if kind, ok := doc.Fields["type"].(string); ok {
		msg.Kind = types.MessageKind(kind)
	}

	switch ts := doc.Fields["createdAt"].(type) {
	case time.Time:
		msg.CreatedAt = &ts
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			msg.CreatedAt = &parsed
		}
	}

	if reply, ok := doc.Fields["replyTo"].(map[string]any); ok {
		snap := &types.ReplySnapshot{}
		snap.Sender, _ = reply["sender"].(string)
		snap.Body, _ = reply["content"].(string)
		snap.Truncated, _ = reply["truncated"].(bool)
		msg.ReplyTo = snap
	}

	return msg
}

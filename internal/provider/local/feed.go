package local

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/campuschat/campuschat/internal/provider"
	"github.com/google/uuid"
)

// subscriber serializes deliveries to one callback; the mutex is held across
// the invocation so cancellation can wait out an in-flight delivery.
type subscriber struct {
	id    int
	query provider.Query
	fn    provider.SnapshotFunc

	mu      sync.Mutex
	removed bool
}

func (s *subscriber) deliver(window []provider.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return
	}
	s.fn(window)
}

// Feed is an in-process live feed. Append assigns the server timestamp, so
// timestamps are strictly monotone and append order equals feed order; every
// change replays each subscriber's full window.
type Feed struct {
	log    *log.Logger
	mu     sync.Mutex
	docs   map[string][]provider.Document
	subs   map[int]*subscriber
	nextID int
	lastTS time.Time
}

func NewFeed(logger *log.Logger) *Feed {
	return &Feed{
		log:  logger,
		docs: make(map[string][]provider.Document),
		subs: make(map[int]*subscriber),
	}
}

func (f *Feed) Subscribe(_ context.Context, q provider.Query, fn provider.SnapshotFunc) (provider.UnsubscribeFunc, error) {
	f.mu.Lock()
	f.nextID++
	sub := &subscriber{id: f.nextID, query: q, fn: fn}
	f.subs[sub.id] = sub
	window := f.window(q)
	f.mu.Unlock()

	// Initial replay, matching the push backend's subscribe semantics.
	sub.deliver(window)

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, sub.id)
			f.mu.Unlock()

			// Block until any in-flight delivery has finished, so no
			// callback runs after cancellation returns.
			sub.mu.Lock()
			sub.removed = true
			sub.mu.Unlock()
		})
	}, nil
}

func (f *Feed) Append(_ context.Context, collection string, fields map[string]any) (string, error) {
	f.mu.Lock()

	doc := provider.Document{ID: uuid.NewString(), Fields: copyFields(fields)}
	doc.Fields["createdAt"] = f.serverNow()
	f.docs[collection] = append(f.docs[collection], doc)

	type delivery struct {
		sub    *subscriber
		window []provider.Document
	}
	var deliveries []delivery
	for _, sub := range f.subs {
		if sub.query.Collection != collection {
			continue
		}
		deliveries = append(deliveries, delivery{sub: sub, window: f.window(sub.query)})
	}
	f.mu.Unlock()

	// Callbacks run outside the feed lock so a subscriber may append
	// reentrantly.
	for _, d := range deliveries {
		d.sub.deliver(d.window)
	}

	return doc.ID, nil
}

// serverNow returns a strictly increasing timestamp. Caller holds the lock.
func (f *Feed) serverNow() time.Time {
	now := time.Now().UTC()
	if !now.After(f.lastTS) {
		now = f.lastTS.Add(time.Millisecond)
	}
	f.lastTS = now
	return now
}

// window returns the most recent q.Limit documents in ascending order.
// Caller holds the lock.
func (f *Feed) window(q provider.Query) []provider.Document {
	all := f.docs[q.Collection]
	if q.Limit > 0 && len(all) > q.Limit {
		all = all[len(all)-q.Limit:]
	}

	out := make([]provider.Document, len(all))
	for i, doc := range all {
		out[i] = provider.Document{ID: doc.ID, Fields: copyFields(doc.Fields)}
	}
	return out
}

package provider

import (
	"context"
	"errors"
	"time"
)

// Collections used by the backend. The room feed is global; Query.Collection
// is the extension point if per-room feeds are ever introduced.
const (
	UsersCollection    = "users"
	MessagesCollection = "messages"
)

// ErrAuthRejected is returned by Authenticate when the backend rejects the
// credentials outright. A verified-but-gated account is signalled through
// Credentials.Verified instead, never through this error.
var ErrAuthRejected = errors.New("authentication rejected")

// ErrNotFound is returned by DocumentStore.Get for an absent document.
var ErrNotFound = errors.New("document not found")

type Credentials struct {
	UserID   string
	Verified bool
}

type Token struct {
	Value     string
	ExpiresAt time.Time
}

// CredentialProvider is the external authentication capability.
type CredentialProvider interface {
	Authenticate(ctx context.Context, identifier, secret string) (Credentials, error)
	Register(ctx context.Context, identifier, secret string) (Credentials, error)
	RefreshToken(ctx context.Context, force bool) (Token, error)
	Revoke(ctx context.Context) error
}

// Document is a stored record with backend-assigned id.
type Document struct {
	ID     string
	Fields map[string]any
}

// DocumentStore is the external persistent storage capability.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Put(ctx context.Context, collection, id string, fields map[string]any) error
	ListAll(ctx context.Context, collection string) ([]Document, error)
}

// Query selects the live feed window: the most recent Limit documents of
// Collection, delivered ascending by creation time.
type Query struct {
	Collection string
	Limit      int
}

// SnapshotFunc receives the full current window on every change. The slice
// must not be retained past the call.
type SnapshotFunc func(window []Document)

// UnsubscribeFunc cancels a subscription. It is idempotent and waits out any
// delivery in flight, so no callback runs after it returns. Must not be
// called from inside the callback itself.
type UnsubscribeFunc func()

// LiveFeed is the external push capability: an ordered document stream that
// replays the whole window on every change.
type LiveFeed interface {
	Subscribe(ctx context.Context, q Query, fn SnapshotFunc) (UnsubscribeFunc, error)
	Append(ctx context.Context, collection string, fields map[string]any) (string, error)
}

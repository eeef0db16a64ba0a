package types

import (
	"time"
)

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
)

// ReplyPrefixLen is the number of body characters copied into a reply snapshot.
const ReplyPrefixLen = 50

// ReplySnapshot is a value copy of the message being replied to, captured at
// send time. It never references the original message.
type ReplySnapshot struct {
	Sender    string `json:"sender"`
	Body      string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
}

// NewReplySnapshot copies sender and a bounded body prefix from the referenced
// message.
func NewReplySnapshot(m Message) *ReplySnapshot {
	s := &ReplySnapshot{Sender: m.Sender, Body: m.Body}
	if body := []rune(m.Body); len(body) > ReplyPrefixLen {
		s.Body = string(body[:ReplyPrefixLen])
		s.Truncated = true
	}
	return s
}

// Message is a single entry in the room feed. Immutable once committed; the
// id is assigned by the storage layer. CreatedAt is nil until the server
// acknowledges the write.
type Message struct {
	Id           string         `json:"id"`
	Sender       string         `json:"sender"`
	SenderHandle string         `json:"senderUsername"`
	AvatarURL    string         `json:"avatar,omitempty"`
	AccentColor  string         `json:"color,omitempty"`
	Kind         MessageKind    `json:"type"`
	Body         string         `json:"content"`
	ReplyTo      *ReplySnapshot `json:"replyTo,omitempty"`
	CreatedAt    *time.Time     `json:"createdAt,omitempty"`
	Pending      bool           `json:"-"`
}

// Committed reports whether the server has acknowledged the message and
// assigned its timestamp.
func (m Message) Committed() bool {
	return m.CreatedAt != nil
}

// Before implements the feed's total order: ascending (createdAt, id), with
// pending entries (nil createdAt) sorting after every committed one. Two
// pending entries compare by id only to keep the relation total; the visible
// window keeps the pending tail in send order.
func (m Message) Before(other Message) bool {
	switch {
	case m.CreatedAt == nil && other.CreatedAt == nil:
		return m.Id < other.Id
	case m.CreatedAt == nil:
		return false
	case other.CreatedAt == nil:
		return true
	case m.CreatedAt.Equal(*other.CreatedAt):
		return m.Id < other.Id
	default:
		return m.CreatedAt.Before(*other.CreatedAt)
	}
}

// UserEntry is the cached projection of a user document, keyed by handle.
type UserEntry struct {
	Id          string `json:"id"`
	Handle      string `json:"username"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatar,omitempty"`
	AccentColor string `json:"color,omitempty"`
	About       string `json:"about,omitempty"`
	Course      string `json:"course,omitempty"`
	Year        int    `json:"year,omitempty"`
	IsAlumni    bool   `json:"isAlumni,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

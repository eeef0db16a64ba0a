package composer

import (
	"context"
	"log"
	"strings"

	"github.com/campuschat/campuschat/internal/mention"
	"github.com/campuschat/campuschat/internal/session"
	"github.com/campuschat/campuschat/internal/stream"
	"github.com/campuschat/campuschat/internal/types"
)

// Composer owns the ephemeral draft state and dispatches outbound messages.
// Sends are gated on a valid session and are never retried automatically: a
// failed send keeps the draft intact so the user can resend.
type Composer struct {
	ctrl    *stream.Controller
	guard   *session.Guard
	engine  *mention.Engine
	log     *log.Logger
	user    types.UserEntry
	draft   string
	replyTo *types.Message
}

func NewComposer(ctrl *stream.Controller, guard *session.Guard, engine *mention.Engine, user types.UserEntry, logger *log.Logger) *Composer {
	return &Composer{
		ctrl:   ctrl,
		guard:  guard,
		engine: engine,
		log:    logger,
		user:   user,
	}
}

func (c *Composer) SetDraftText(text string) {
	c.draft = text
}

func (c *Composer) DraftText() string {
	return c.draft
}

// SetReply records the message being replied to; nil clears the reply
// context.
func (c *Composer) SetReply(msg *types.Message) {
	if msg == nil {
		c.replyTo = nil
		return
	}
	cp := *msg
	c.replyTo = &cp
}

func (c *Composer) Reply() *types.Message {
	return c.replyTo
}

// MentionQuery returns the active autocomplete query for the current draft.
func (c *Composer) MentionQuery() (string, bool) {
	return mention.ActiveQuery(c.draft)
}

// Suggestions lists the autocomplete candidates for the active query.
func (c *Composer) Suggestions() []types.UserEntry {
	query, active := c.MentionQuery()
	if !active {
		return nil
	}
	return c.engine.Autocomplete(query)
}

// InsertMention completes the active query with the selected handle.
func (c *Composer) InsertMention(handle string) {
	c.draft = mention.Insert(c.draft, handle)
}

// Send dispatches the text draft. A no-op when the trimmed draft is empty or
// no valid session exists. On success the draft and reply context are
// cleared; on failure both are preserved and the error surfaced.
func (c *Composer) Send(ctx context.Context) error {
	if strings.TrimSpace(c.draft) == "" {
		return nil
	}
	if !c.guard.IsValid(ctx) {
		c.log.Println("send skipped: no valid session")
		return nil
	}

	if _, err := c.ctrl.Append(ctx, c.buildMessage(types.KindText, c.draft)); err != nil {
		return err
	}

	c.draft = ""
	c.replyTo = nil
	return nil
}

// SendImage dispatches an image reference. The text draft and reply context
// are left untouched; the image path is independent of them.
func (c *Composer) SendImage(ctx context.Context, dataURI string) error {
	if strings.TrimSpace(dataURI) == "" {
		return nil
	}
	if !c.guard.IsValid(ctx) {
		c.log.Println("image send skipped: no valid session")
		return nil
	}

	_, err := c.ctrl.Append(ctx, c.buildMessage(types.KindImage, dataURI))
	return err
}

// buildMessage packages the outbound message, capturing the reply snapshot
// by value at send time.
func (c *Composer) buildMessage(kind types.MessageKind, body string) types.Message {
	msg := types.Message{
		Sender:       c.user.Name,
		SenderHandle: c.user.Handle,
		AvatarURL:    c.user.AvatarURL,
		AccentColor:  c.user.AccentColor,
		Kind:         kind,
		Body:         body,
	}
	if c.replyTo != nil {
		msg.ReplyTo = types.NewReplySnapshot(*c.replyTo)
	}
	return msg
}

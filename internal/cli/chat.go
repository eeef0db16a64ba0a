// Package cli implements the interactive terminal client: a viewport over
// the live message window, a composer input with mention autocomplete and a
// reply banner. All chat semantics live in the core packages; this is
// presentation glue.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/campuschat/campuschat/internal/clienterr"
	"github.com/campuschat/campuschat/internal/composer"
	"github.com/campuschat/campuschat/internal/mention"
	"github.com/campuschat/campuschat/internal/session"
	"github.com/campuschat/campuschat/internal/stream"
	"github.com/campuschat/campuschat/internal/types"
)

type windowMsg []types.Message

type sendResultMsg struct{ err error }

type sessionExpiredMsg struct{}

// ChatConfig holds display metadata and the wired core components.
type ChatConfig struct {
	RoomName string
	User     types.UserEntry

	Controller *stream.Controller
	Composer   *composer.Composer
	Guard      *session.Guard
}

type chatModel struct {
	input    textinput.Model
	viewport viewport.Model

	cfg     ChatConfig
	ctx     context.Context
	updates chan tea.Msg
	expired chan struct{}

	window      []types.Message
	suggestions []types.UserEntry
	suggestIdx  int
	replyIdx    int // index into window while picking a reply target, -1 otherwise
	errText     string

	ready  bool
	width  int
	height int
}

func newChatModel(ctx context.Context, cfg ChatConfig) *chatModel {
	ti := textinput.New()
	ti.Placeholder = fmt.Sprintf("Message #%s", cfg.RoomName)
	ti.Focus()
	ti.CharLimit = 0
	ti.Prompt = "❯ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(Accent)

	return &chatModel{
		input:    ti,
		cfg:      cfg,
		ctx:      ctx,
		updates:  make(chan tea.Msg, 64),
		expired:  make(chan struct{}, 1),
		replyIdx: -1,
	}
}

func (m *chatModel) Init() tea.Cmd {
	return m.waitForUpdate()
}

// waitForUpdate bridges the core's callbacks into the event loop. The expiry
// channel is checked first: window pushes may be dropped under load, the
// terminal quit signal never.
func (m *chatModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.expired:
			return sessionExpiredMsg{}
		default:
		}
		select {
		case <-m.expired:
			return sessionExpiredMsg{}
		case msg := <-m.updates:
			return msg
		}
	}
}

// notifyExpired records the session-expired transition. Never blocks and
// never loses the signal; extra calls are no-ops.
func (m *chatModel) notifyExpired() {
	select {
	case m.expired <- struct{}{}:
	default:
	}
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// header(1) + divider(1) + viewport + divider(1) + input(1) + status(1)
		vpHeight := msg.Height - 5
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 4
		m.refresh()
		return m, nil

	case windowMsg:
		m.window = msg
		if m.replyIdx >= len(m.window) {
			m.replyIdx = -1
		}
		m.refresh()
		m.viewport.GotoBottom()
		return m, m.waitForUpdate()

	case sendResultMsg:
		if msg.err != nil {
			m.errText = userMessage(msg.err)
		} else {
			m.errText = ""
			m.input.SetValue(m.cfg.Composer.DraftText())
		}
		m.refreshSuggestions()
		m.refresh()
		return m, nil

	case sessionExpiredMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *chatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyCtrlD:
		return m, tea.Quit

	case tea.KeyCtrlR:
		// Cycle backwards through the window to pick a reply target.
		if len(m.window) == 0 {
			return m, nil
		}
		if m.replyIdx < 0 {
			m.replyIdx = len(m.window) - 1
		} else if m.replyIdx > 0 {
			m.replyIdx--
		}
		m.refresh()
		return m, nil

	case tea.KeyEsc:
		m.replyIdx = -1
		m.cfg.Composer.SetReply(nil)
		m.errText = ""
		m.refresh()
		return m, nil

	case tea.KeyTab:
		if len(m.suggestions) > 0 {
			m.cfg.Composer.InsertMention(m.suggestions[m.suggestIdx].Handle)
			m.input.SetValue(m.cfg.Composer.DraftText())
			m.input.CursorEnd()
			m.refreshSuggestions()
			m.refresh()
		}
		return m, nil

	case tea.KeyUp, tea.KeyDown:
		if len(m.suggestions) > 0 {
			if msg.Type == tea.KeyUp && m.suggestIdx > 0 {
				m.suggestIdx--
			}
			if msg.Type == tea.KeyDown && m.suggestIdx < len(m.suggestions)-1 {
				m.suggestIdx++
			}
			m.refresh()
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyEnter:
		if m.replyIdx >= 0 {
			target := m.window[m.replyIdx]
			m.cfg.Composer.SetReply(&target)
			m.replyIdx = -1
			m.refresh()
			return m, nil
		}
		if len(m.suggestions) > 0 {
			if _, active := m.cfg.Composer.MentionQuery(); active {
				m.cfg.Composer.InsertMention(m.suggestions[m.suggestIdx].Handle)
				m.input.SetValue(m.cfg.Composer.DraftText())
				m.input.CursorEnd()
				m.refreshSuggestions()
				m.refresh()
				return m, nil
			}
		}
		return m, m.send()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.cfg.Composer.SetDraftText(m.input.Value())
	m.refreshSuggestions()
	m.refresh()
	return m, cmd
}

func (m *chatModel) send() tea.Cmd {
	draft := m.cfg.Composer.DraftText()
	if ref, ok := strings.CutPrefix(draft, "/image "); ok {
		return func() tea.Msg {
			err := m.cfg.Composer.SendImage(m.ctx, strings.TrimSpace(ref))
			if err == nil {
				m.cfg.Composer.SetDraftText("")
			}
			return sendResultMsg{err: err}
		}
	}
	return func() tea.Msg {
		return sendResultMsg{err: m.cfg.Composer.Send(m.ctx)}
	}
}

func (m *chatModel) refreshSuggestions() {
	m.suggestions = m.cfg.Composer.Suggestions()
	if m.suggestIdx >= len(m.suggestions) {
		m.suggestIdx = 0
	}
}

func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderWindow())
}

func (m *chatModel) View() string {
	if !m.ready {
		return "\n  Connecting..."
	}

	header := TitleStyle.Render(" # " + m.cfg.RoomName)
	divider := DimStyle.Render(strings.Repeat("─", m.width))

	var overlay string
	if len(m.suggestions) > 0 {
		var sb strings.Builder
		for i, entry := range m.suggestions {
			line := " @" + entry.Handle + "  " + DimStyle.Render(entry.Name)
			if i == m.suggestIdx {
				line = SelectStyle.Render(line)
			}
			sb.WriteString(line + "\n")
		}
		overlay = sb.String()
	}

	var banner string
	if reply := m.cfg.Composer.Reply(); reply != nil {
		snap := types.NewReplySnapshot(*reply)
		banner = ReplyStyle.Render(fmt.Sprintf(" Replying to %s: %s (Esc to cancel)", snap.Sender, snap.Body)) + "\n"
	}

	return header + "\n" +
		divider + "\n" +
		m.viewport.View() + "\n" +
		divider + "\n" +
		overlay + banner + " " + m.input.View() + "\n" +
		m.statusBar()
}

func (m *chatModel) renderWindow() string {
	if len(m.window) == 0 {
		return DimStyle.Render("\n  No messages yet. Start the conversation!")
	}

	var sb strings.Builder
	for i, msg := range m.window {
		line := m.renderMessage(msg)
		if i == m.replyIdx {
			line = SelectStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func (m *chatModel) renderMessage(msg types.Message) string {
	var sb strings.Builder

	sb.WriteString(" " + senderStyle(msg.AccentColor).Render(msg.Sender))
	if msg.Committed() {
		sb.WriteString(DimStyle.Render("  " + msg.CreatedAt.Local().Format("Jan 2 15:04")))
	} else {
		sb.WriteString(PendingStyle.Render("  sending..."))
	}
	sb.WriteString("\n")

	if msg.ReplyTo != nil {
		body := msg.ReplyTo.Body
		if msg.ReplyTo.Truncated {
			body += "..."
		}
		sb.WriteString(ReplyStyle.Render(fmt.Sprintf(" │ %s: %s", msg.ReplyTo.Sender, body)) + "\n")
	}

	switch msg.Kind {
	case types.KindImage:
		sb.WriteString(DimStyle.Render(" [image]"))
	default:
		sb.WriteString(" " + renderMentions(msg.Body))
	}

	return sb.String()
}

// renderMentions highlights @handle spans. Purely syntactic: unknown handles
// highlight too.
func renderMentions(body string) string {
	var sb strings.Builder
	for _, span := range mention.Parse(body) {
		if span.IsMention() {
			sb.WriteString(MentionStyle.Render(span.Literal))
		} else {
			sb.WriteString(span.Literal)
		}
	}
	return sb.String()
}

func (m *chatModel) statusBar() string {
	left := DimStyle.Render(" @" + m.cfg.User.Handle)
	if m.errText != "" {
		left = ErrStyle.Render(" " + m.errText)
	}
	right := DimStyle.Render("Ctrl+R reply · Tab mention · Ctrl+C quit ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func userMessage(err error) string {
	var ce *clienterr.ClientError
	if errors.As(err, &ce) {
		return ce.UserMessage()
	}
	return err.Error()
}

// Run starts the chat TUI and blocks until the user quits or the session
// expires.
func Run(ctx context.Context, cfg ChatConfig) error {
	m := newChatModel(ctx, cfg)

	unsub := cfg.Controller.Subscribe(func(window []types.Message) {
		cp := make([]types.Message, len(window))
		copy(cp, window)
		select {
		case m.updates <- windowMsg(cp):
		default:
			// Drop when the loop is behind; the next push replaces it anyway.
		}
	})
	defer unsub()

	cfg.Guard.OnExpire(m.notifyExpired)

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

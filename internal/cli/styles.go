package cli

import "github.com/charmbracelet/lipgloss"

var (
	Accent = lipgloss.Color("#D97706")
	Subtle = lipgloss.Color("#555555")
	Red    = lipgloss.Color("#FF4444")

	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	SenderStyle  = lipgloss.NewStyle().Bold(true)
	MentionStyle = lipgloss.NewStyle().Foreground(Accent).Bold(true)
	ReplyStyle   = lipgloss.NewStyle().Foreground(Subtle).Italic(true)
	DimStyle     = lipgloss.NewStyle().Foreground(Subtle)
	ErrStyle     = lipgloss.NewStyle().Foreground(Red)
	PendingStyle = lipgloss.NewStyle().Foreground(Subtle)
	SelectStyle  = lipgloss.NewStyle().Reverse(true)
)

// senderStyle colors a sender label with the user's accent color, falling
// back to the room accent.
func senderStyle(accent string) lipgloss.Style {
	if accent == "" {
		return SenderStyle.Foreground(Accent)
	}
	return SenderStyle.Foreground(lipgloss.Color(accent))
}

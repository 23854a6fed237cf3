package sandbox

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

// Level classifies status lines and notices.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	LevelMuted
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelMuted:
		return "muted"
	default:
		return "info"
	}
}

var (
	statusInfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	statusWarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	statusMutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Status is the one-line summary a provider shows in the host status bar.
type Status struct {
	Level Level
	Text  string
}

// Render styles the status line for a terminal.
func (s Status) Render() string {
	switch s.Level {
	case LevelWarning:
		return statusWarningStyle.Render(s.Text)
	case LevelError:
		return statusErrorStyle.Render(s.Text)
	case LevelMuted:
		return statusMutedStyle.Render(s.Text)
	default:
		return statusInfoStyle.Render(s.Text)
	}
}

func (s Status) String() string {
	return s.Text
}

// Plural returns "n word" or "n words".
func Plural(n int, word string) string {
	if n == 1 {
		return strconv.Itoa(n) + " " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}

package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/listarchive/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for section headers such as a list or thread title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// SubjectStyle renders email subjects.
var SubjectStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// SenderStyle renders sender names and addresses.
var SenderStyle = lipgloss.NewStyle().
	Foreground(ColorBlue)

// DimmedStyle is used for dates, counters and other secondary details.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// TreeStyle draws the indentation guides of a thread.
var TreeStyle = lipgloss.NewStyle().
	Foreground(ColorSubtle)

// HelpStyle is used for usage text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BorderStyle provides a standard rounded border for summaries.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder).
	Padding(0, 1)

// ErrorStyle is used for failures reported to the terminal.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// VoteStyle returns a color-coded style for a vote status.
func VoteStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch status {
	case model.VoteStatusLikeALot:
		return base.Foreground(ColorMagenta)
	case model.VoteStatusLike:
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}

// PolicyStyle returns a color-coded style for a list's archive policy.
func PolicyStyle(policy model.ArchivePolicy) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch policy {
	case model.ArchivePolicyPublic:
		return base.Foreground(ColorGreen)
	case model.ArchivePolicyPrivate:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorRed)
	}
}

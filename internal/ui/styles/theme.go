package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/shiush/internal/models"
)

// Theme is a color scheme for the board
type Theme struct {
	Name string

	Background    lipgloss.Color
	Foreground    lipgloss.Color
	ForegroundDim lipgloss.Color

	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color

	Border      lipgloss.Color
	BorderFocus lipgloss.Color
	Selection   lipgloss.Color
}

// TokyoNight is the default color theme
var TokyoNight = Theme{
	Name: "Tokyo Night",

	Background:    lipgloss.Color("#1a1b26"),
	Foreground:    lipgloss.Color("#c0caf5"),
	ForegroundDim: lipgloss.Color("#565f89"),

	Primary:   lipgloss.Color("#7aa2f7"),
	Secondary: lipgloss.Color("#bb9af7"),
	Accent:    lipgloss.Color("#7dcfff"),

	Success: lipgloss.Color("#9ece6a"),
	Warning: lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),

	Border:      lipgloss.Color("#3b4261"),
	BorderFocus: lipgloss.Color("#7aa2f7"),
	Selection:   lipgloss.Color("#33467c"),
}

// Current holds the active theme
var Current = TokyoNight

// MaxWidth caps the board at a classic terminal width
const MaxWidth = 80

// ContentWidth is the smaller of the terminal width and MaxWidth
func ContentWidth(terminalWidth int) int {
	return min(terminalWidth, MaxWidth)
}

// CenterView centers content when the terminal is wider than MaxWidth
func CenterView(content string, terminalWidth, terminalHeight int) string {
	if terminalWidth <= MaxWidth {
		return content
	}
	return lipgloss.Place(terminalWidth, terminalHeight,
		lipgloss.Center, lipgloss.Top,
		content,
	)
}

// Styles holds the pre-computed styles for the board
type Styles struct {
	Title      lipgloss.Style
	TitleMuted lipgloss.Style

	// Bucket tabs
	Tab       lipgloss.Style
	TabActive lipgloss.Style
	TabCount  lipgloss.Style

	// Task rows
	ListItem     lipgloss.Style
	ListSelected lipgloss.Style
	Done         lipgloss.Style
	Subtask      lipgloss.Style
	Origin       lipgloss.Style

	Input        lipgloss.Style
	InputFocused lipgloss.Style

	Popup         lipgloss.Style
	Button        lipgloss.Style
	ButtonPrimary lipgloss.Style

	Help      lipgloss.Style
	HelpKey   lipgloss.Style
	StatusBar lipgloss.Style
	Error     lipgloss.Style

	priorities map[models.Priority]lipgloss.Style
}

// NewStyles creates styles based on the current theme
func NewStyles() *Styles {
	t := Current

	return &Styles{
		Title: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		TitleMuted: lipgloss.NewStyle().
			Foreground(t.ForegroundDim),

		Tab: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Border(lipgloss.RoundedBorder(), true, true, false, true).
			BorderForeground(t.Border).
			Padding(0, 1),

		TabActive: lipgloss.NewStyle().
			Foreground(t.Primary).
			Border(lipgloss.RoundedBorder(), true, true, false, true).
			BorderForeground(t.BorderFocus).
			Padding(0, 1).
			Bold(true),

		TabCount: lipgloss.NewStyle().
			Foreground(t.Accent),

		ListItem: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Padding(0, 2),

		ListSelected: lipgloss.NewStyle().
			Foreground(t.Primary).
			Background(t.Selection).
			Padding(0, 2).
			Bold(true),

		Done: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Strikethrough(true),

		Subtask: lipgloss.NewStyle().
			Foreground(t.Foreground).
			PaddingLeft(6),

		Origin: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Italic(true),

		Input: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),

		InputFocused: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocus).
			Padding(0, 1),

		Popup: lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border),

		Button: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 2),

		ButtonPrimary: lipgloss.NewStyle().
			Foreground(t.Background).
			Background(t.Error).
			Padding(0, 2).
			Bold(true),

		Help: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Padding(1, 2),

		HelpKey: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		StatusBar: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Padding(0, 1),

		Error: lipgloss.NewStyle().
			Foreground(t.Error).
			Padding(0, 1),

		priorities: map[models.Priority]lipgloss.Style{
			models.PriorityMain:  lipgloss.NewStyle().Foreground(t.Error).Bold(true),
			models.PrioritySub:   lipgloss.NewStyle().Foreground(t.Warning),
			models.PriorityMinor: lipgloss.NewStyle().Foreground(t.Success),
		},
	}
}

// Priority returns the badge style for p
func (s *Styles) Priority(p models.Priority) lipgloss.Style {
	if st, ok := s.priorities[p]; ok {
		return st
	}
	return s.TitleMuted
}

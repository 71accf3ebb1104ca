package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the palette tokens the chat screen uses. Colors are ANSI-256
// codes.
type Theme struct {
	Name string

	Foreground string
	Muted      string
	Accent     string

	Own    string
	System string
	Error  string

	Header       string
	SelectedItem string
	ActivePane   string
	InactivePane string
}

// DefaultTheme is the baseline dark palette.
var DefaultTheme = Theme{
	Name:         "default",
	Foreground:   "252",
	Muted:        "245",
	Accent:       "75",
	Own:          "81",
	System:       "214",
	Error:        "203",
	Header:       "111",
	SelectedItem: "75",
	ActivePane:   "75",
	InactivePane: "240",
}

// HighContrastTheme favors legibility on low-quality terminals.
var HighContrastTheme = Theme{
	Name:         "high-contrast",
	Foreground:   "231",
	Muted:        "250",
	Accent:       "51",
	Own:          "87",
	System:       "229",
	Error:        "196",
	Header:       "117",
	SelectedItem: "51",
	ActivePane:   "231",
	InactivePane: "250",
}

// Themes lists available palettes by name.
var Themes = map[string]Theme{
	"default":       DefaultTheme,
	"high-contrast": HighContrastTheme,
}

// ThemeByName returns the named palette, falling back to the default.
func ThemeByName(name string) Theme {
	if theme, ok := Themes[name]; ok {
		return theme
	}
	return DefaultTheme
}

type styles struct {
	header   lipgloss.Style
	pane     lipgloss.Style
	chatPane lipgloss.Style
	selected lipgloss.Style
	muted    lipgloss.Style
	own      lipgloss.Style
	system   lipgloss.Style
	err      lipgloss.Style
	prompt   lipgloss.Style
}

func newStyles(t Theme) styles {
	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(t.InactivePane)).
		Foreground(lipgloss.Color(t.Foreground))
	return styles{
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Header)).
			Bold(true),
		pane:     pane,
		chatPane: pane.BorderForeground(lipgloss.Color(t.ActivePane)),
		selected: lipgloss.NewStyle().Foreground(lipgloss.Color(t.SelectedItem)).Bold(true),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		own:      lipgloss.NewStyle().Foreground(lipgloss.Color(t.Own)),
		system:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.System)),
		err:      lipgloss.NewStyle().Foreground(lipgloss.Color(t.Error)),
		prompt:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)),
	}
}

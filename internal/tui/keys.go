package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tOgg1/ostruka/internal/session"
)

// KeyMap defines the chat screen bindings. Everything not bound here is
// typed into the prompt.
type KeyMap struct {
	Submit     key.Binding
	NextPage   key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Backspace  key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next page"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup", "up"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown", "down"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Backspace: key.NewBinding(
			key.WithKeys("backspace"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.NextPage, k.ScrollUp, k.ScrollDown, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// translate maps a key press onto the input machine alphabet.
func (k KeyMap) translate(msg tea.KeyMsg) (session.Key, bool) {
	switch {
	case key.Matches(msg, k.Submit):
		return session.Key{Kind: session.KeySubmit}, true
	case key.Matches(msg, k.NextPage):
		return session.Key{Kind: session.KeyNextPage}, true
	case key.Matches(msg, k.ScrollUp):
		return session.Key{Kind: session.KeyScrollUp}, true
	case key.Matches(msg, k.ScrollDown):
		return session.Key{Kind: session.KeyScrollDown}, true
	case key.Matches(msg, k.Backspace):
		return session.Key{Kind: session.KeyBackspace}, true
	}
	switch msg.Type {
	case tea.KeyRunes:
		return session.Key{Kind: session.KeyRune, Runes: msg.Runes}, true
	case tea.KeySpace:
		return session.Key{Kind: session.KeyRune, Runes: []rune{' '}}, true
	}
	return session.Key{}, false
}

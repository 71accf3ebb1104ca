package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/tOgg1/ostruka/internal/instance"
)

const (
	sidebarWidth = 20
	rosterWidth  = 20
	minChatWidth = 10
	cursor       = "▌"
)

// View assembles the frame from several short reads of the store. The reads
// are not atomic as a group; a page switch between them shows for at most
// one tick.
func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}

	names := m.store.Names()
	current, currentName := m.store.CurrentPage()
	members, rosterState := m.store.Roster()

	header := m.renderHeader(currentName)
	footer := m.renderPrompt()
	helpLine := m.help.View(m.keys)

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer) - lipgloss.Height(helpLine)
	if bodyHeight < instance.ChromeLines {
		bodyHeight = instance.ChromeLines
	}

	showRoster := rosterState != instance.RosterAbsent && m.width >= sidebarWidth+rosterWidth+minChatWidth+6
	chatWidth := m.width - sidebarWidth - 2 - 2
	if showRoster {
		chatWidth -= rosterWidth + 2
	}
	chatWidth = max(chatWidth, minChatWidth)

	panes := []string{
		m.renderPages(names, current, bodyHeight),
		m.renderChat(chatWidth, bodyHeight),
	}
	if showRoster {
		panes = append(panes, m.renderRoster(members, bodyHeight))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, panes...)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer, helpLine)
}

func (m *Model) renderHeader(page string) string {
	status := "connected"
	if m.netDone {
		status = "disconnected"
		if m.netErr != nil {
			status = "disconnected: " + m.netErr.Error()
		}
	}
	line := fmt.Sprintf("ostruka  %s@%s  [%s]  %s", m.user, m.server, page, status)
	return m.styles.header.Render(truncate(line, m.width))
}

// renderPages draws the page list; height includes the border.
func (m *Model) renderPages(names []string, current, height int) string {
	inner := height - instance.ChromeLines
	lines := make([]string, 0, len(names))
	for i, name := range names {
		label := truncate(fmt.Sprintf("%d %s", i, name), sidebarWidth)
		if i == current {
			label = m.styles.selected.Render(label)
		}
		lines = append(lines, label)
	}
	if len(lines) > inner {
		lines = lines[:max(inner, 0)]
	}
	return m.styles.pane.Width(sidebarWidth).Height(inner).Render(strings.Join(lines, "\n"))
}

// renderChat draws the visible window of the current page; height includes
// the border, which is the chrome DisplayRange reserves.
func (m *Model) renderChat(width, height int) string {
	start, end := m.store.DisplayRange(height)
	lines := m.store.Lines(start, end)

	rendered := make([]string, len(lines))
	for i, line := range lines {
		rendered[i] = m.styleLine(truncate(line, width))
	}
	return m.styles.chatPane.Width(width).Height(height - instance.ChromeLines).Render(strings.Join(rendered, "\n"))
}

func (m *Model) renderRoster(members []string, height int) string {
	inner := height - instance.ChromeLines
	lines := []string{m.styles.muted.Render(fmt.Sprintf("online (%d)", len(members)))}
	for _, member := range members {
		lines = append(lines, truncate(member, rosterWidth))
	}
	if len(lines) > inner {
		lines = lines[:max(inner, 0)]
	}
	return m.styles.pane.Width(rosterWidth).Height(inner).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderPrompt() string {
	prompt := fmt.Sprintf("(%s)> ", m.user)
	line := m.styles.prompt.Render(prompt) + m.input.Buffer() + cursor
	if lipgloss.Width(line) > m.width {
		// Keep the tail of a long line visible.
		buf := []rune(m.input.Buffer())
		room := m.width - runewidth.StringWidth(prompt) - 1
		for len(buf) > 0 && runewidth.StringWidth(string(buf)) > room {
			buf = buf[1:]
		}
		line = m.styles.prompt.Render(prompt) + string(buf) + cursor
	}
	return line
}

func (m *Model) styleLine(line string) string {
	switch {
	case strings.HasPrefix(line, "[ERR]") || strings.HasPrefix(line, "[SERVER ERR]"):
		return m.styles.err.Render(line)
	case strings.HasPrefix(line, "[INFO]") || strings.HasPrefix(line, "[OK]"):
		return m.styles.system.Render(line)
	case strings.HasPrefix(line, "("+m.user+")>"):
		return m.styles.own.Render(line)
	default:
		return line
	}
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

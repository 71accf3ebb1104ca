package instance

import "strings"

// GroupPrefix marks page names that refer to group channels.
const GroupPrefix = "#"

// IsGroup reports whether name refers to a group channel rather than a user.
func IsGroup(name string) bool {
	return strings.HasPrefix(name, GroupPrefix)
}

// Page is a single named conversation buffer.
//
// A Page handed to Instance.Add is owned by the instance afterwards; callers
// must not keep mutating it.
type Page struct {
	Name string

	lines  []string
	scroll int // lines scrolled up from the bottom, 0 is pinned to latest
	roster Roster
}

// NewPage creates a page seeded with the given lines. Lines containing line
// breaks expand into several physical lines.
func NewPage(name string, lines ...string) *Page {
	page := &Page{Name: name}
	for _, line := range lines {
		page.appendText(line)
	}
	return page
}

// Len returns the number of physical lines in the page.
func (p *Page) Len() int {
	return len(p.lines)
}

// Scroll returns the current scroll offset.
func (p *Page) Scroll() int {
	return p.scroll
}

// Lines returns a copy of the page's lines.
func (p *Page) Lines() []string {
	return append([]string(nil), p.lines...)
}

func (p *Page) appendText(text string) {
	p.lines = append(p.lines, splitLines(text)...)
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

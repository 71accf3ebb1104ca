// Package instance holds the conversation multiplexer: an ordered set of
// pages plus the index of the page currently on screen.
//
// An Instance is shared by the input side and the network loop. Every
// exported method is one short critical section behind a single mutex, so
// callers never need their own locking and never hold the gate across I/O.
package instance

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// HomeIndex is the position of the permanent home page.
const HomeIndex = 0

var (
	ErrDuplicateName    = errors.New("page already open")
	ErrIndexOutOfRange  = errors.New("page index out of range")
	ErrPermissionDenied = errors.New("permission denied")
)

// Instance is the conversation store.
type Instance struct {
	mu      sync.Mutex
	pages   []*Page
	current int
}

// Delivery describes where RouteIncoming stored a message.
type Delivery struct {
	Index   int
	Page    string
	Created bool
	Current bool // the destination was the page on screen
}

// New creates an instance whose first page is home. A nil home yields an
// empty instance, which is only useful in tests.
func New(home *Page) *Instance {
	in := &Instance{}
	if home != nil {
		in.pages = append(in.pages, home)
	}
	return in
}

// Add appends page. It fails with ErrDuplicateName if a conversation with
// the same name is already open. The current index is left unchanged.
func (in *Instance) Add(page *Page) error {
	if page == nil {
		return errors.New("page is nil")
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.indexLocked(page.Name) >= 0 {
		return fmt.Errorf("%w: already joined %s", ErrDuplicateName, page.Name)
	}
	in.pages = append(in.pages, page)
	return nil
}

// Names returns the page names in order. With no pages it returns a single
// empty placeholder so renderers always have something to draw.
func (in *Instance) Names() []string {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.pages) == 0 {
		return []string{""}
	}
	names := make([]string, len(in.pages))
	for i, page := range in.pages {
		names[i] = page.Name
	}
	return names
}

// Len returns the number of open pages.
func (in *Instance) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.pages)
}

// Current returns the index of the page on screen.
func (in *Instance) Current() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.current
}

// CurrentName returns the name of the page on screen.
func (in *Instance) CurrentName() string {
	_, name := in.CurrentPage()
	return name
}

// CurrentPage returns the index and name of the page on screen in one read.
func (in *Instance) CurrentPage() (int, string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.pages) == 0 {
		return in.current, ""
	}
	return in.current, in.pages[in.current].Name
}

// SetCurrent selects the page at index.
func (in *Instance) SetCurrent(index int) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if err := in.checkIndexLocked(index); err != nil {
		return err
	}
	in.current = index
	return nil
}

// NextPage advances the current page cyclically.
func (in *Instance) NextPage() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.nextPageLocked()
}

// AppendLine appends text to the current page.
func (in *Instance) AppendLine(text string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.pages) == 0 {
		return
	}
	in.pages[in.current].appendText(text)
}

// AppendLineAt appends text to the page at index.
func (in *Instance) AppendLineAt(index int, text string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if err := in.checkIndexLocked(index); err != nil {
		return err
	}
	in.pages[index].appendText(text)
	return nil
}

// AddErr appends an error line to whichever page is current when it runs.
func (in *Instance) AddErr(text string) {
	in.AppendLine("[ERR]: " + text)
}

// RouteIncoming stores a message from sender addressed to target. Group
// targets land on the page named after the group, anything else on the page
// named after the sender. A missing destination page is created. Messages
// never land on the home page, even from a sender named like it.
func (in *Instance) RouteIncoming(sender, target, text string) Delivery {
	name := sender
	if IsGroup(target) {
		name = target
	}
	formatted := fmt.Sprintf("[%s]: %s", sender, text)

	in.mu.Lock()
	defer in.mu.Unlock()

	index := in.indexLocked(name)
	created := false
	if index < 0 {
		in.pages = append(in.pages, NewPage(name))
		index = len(in.pages) - 1
		created = true
	}
	in.pages[index].appendText(formatted)

	return Delivery{
		Index:   index,
		Page:    name,
		Created: created,
		Current: index == in.current,
	}
}

// RemoveCurrent closes the current page and returns its name. The home page
// cannot be closed and yields ErrPermissionDenied. After removal the current
// index points at the page that followed the removed one, wrapping to home.
func (in *Instance) RemoveCurrent() (string, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.pages) == 0 {
		return "", ErrIndexOutOfRange
	}
	if in.current == HomeIndex {
		return "", fmt.Errorf("%w: the home page %s cannot be closed", ErrPermissionDenied, in.pages[HomeIndex].Name)
	}

	removed := in.current
	name := in.pages[removed].Name
	in.nextPageLocked()
	in.pages = slices.Delete(in.pages, removed, removed+1)
	if in.current > removed {
		in.current--
	}
	return name, nil
}

// AddRosterMembers adds members to the roster of the named page. Unknown
// pages are ignored.
func (in *Instance) AddRosterMembers(page string, members []string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if index := in.indexLocked(page); index >= 0 {
		in.pages[index].roster.Add(members...)
	}
}

// RemoveRosterMembers removes members from the roster of the named page.
// Unknown pages and non-members are ignored.
func (in *Instance) RemoveRosterMembers(page string, members []string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if index := in.indexLocked(page); index >= 0 {
		in.pages[index].roster.Remove(members...)
	}
}

// Roster returns the sorted roster of the current page with its state.
func (in *Instance) Roster() ([]string, RosterState) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.pages) == 0 {
		return nil, RosterAbsent
	}
	roster := &in.pages[in.current].roster
	return roster.Members(), roster.State()
}

// ScrollUp moves the current page one line towards older messages.
func (in *Instance) ScrollUp() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.pages) == 0 {
		return
	}
	in.pages[in.current].scroll++
}

// ScrollDown moves the current page one line towards the latest message.
func (in *Instance) ScrollDown() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.pages) == 0 {
		return
	}
	if page := in.pages[in.current]; page.scroll > 0 {
		page.scroll--
	}
}

// ScrollReset pins the current page to its latest line.
func (in *Instance) ScrollReset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.pages) == 0 {
		return
	}
	in.pages[in.current].scroll = 0
}

// DisplayRange returns the range of current-page lines that fit a viewport of
// height lines, clamping the stored scroll offset first.
func (in *Instance) DisplayRange(height int) (int, int) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.pages) == 0 {
		return 0, 0
	}
	page := in.pages[in.current]
	start, end, scroll := Window(len(page.lines), height, page.scroll)
	page.scroll = scroll
	return start, end
}

// Lines returns a copy of current-page lines in [start, end). The range is
// clamped to the page, so a range computed before the current page changed
// still yields a valid, if stale, slice.
func (in *Instance) Lines(start, end int) []string {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.pages) == 0 {
		return nil
	}
	lines := in.pages[in.current].lines
	end = min(max(end, 0), len(lines))
	start = min(max(start, 0), end)
	return append([]string(nil), lines[start:end]...)
}

// Chat returns a copy of every line of the current page.
func (in *Instance) Chat() []string {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.pages) == 0 {
		return nil
	}
	return in.pages[in.current].Lines()
}

func (in *Instance) nextPageLocked() {
	if len(in.pages) > 1 {
		in.current = (in.current + 1) % len(in.pages)
	}
}

// indexLocked finds a conversation page by name. The home page is never a
// match, so a peer whose alias equals the home name gets a page of its own.
func (in *Instance) indexLocked(name string) int {
	if len(in.pages) <= HomeIndex+1 {
		return -1
	}
	index := slices.IndexFunc(in.pages[HomeIndex+1:], func(page *Page) bool {
		return page.Name == name
	})
	if index < 0 {
		return -1
	}
	return index + HomeIndex + 1
}

func (in *Instance) checkIndexLocked(index int) error {
	if index < 0 || index >= len(in.pages) {
		return fmt.Errorf("%w: %d (%d pages open)", ErrIndexOutOfRange, index, len(in.pages))
	}
	return nil
}

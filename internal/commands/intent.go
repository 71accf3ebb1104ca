// Package commands turns a submitted input line into an Intent and applies
// it to the conversation store and the outbound transport.
package commands

// Intent is the parsed meaning of one submitted line.
type Intent interface {
	intent()
}

// Quit ends the session.
type Quit struct{}

// Join opens a page for a user or #group.
type Join struct {
	Name string
}

// Close closes the current page.
type Close struct{}

// SwitchPage selects the page at Index.
type SwitchPage struct {
	Index int
}

// Unknown is a colon command that matched nothing.
type Unknown struct {
	Raw string
}

// Message is plain text for the current conversation.
type Message struct {
	Text string
}

func (Quit) intent()       {}
func (Join) intent()       {}
func (Close) intent()      {}
func (SwitchPage) intent() {}
func (Unknown) intent()    {}
func (Message) intent()    {}

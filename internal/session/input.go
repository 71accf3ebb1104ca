// Package session drives the conversation store: the input machine turns
// keystrokes into dispatched intents, the network loop applies the transport
// stream.
package session

import (
	"github.com/tOgg1/ostruka/internal/commands"
	"github.com/tOgg1/ostruka/internal/instance"
)

// KeyKind is the finite alphabet the input machine understands.
type KeyKind int

const (
	KeyRune KeyKind = iota
	KeySubmit
	KeyNextPage
	KeyScrollUp
	KeyScrollDown
	KeyBackspace
)

// Key is one keystroke. Runes is only read for KeyRune.
type Key struct {
	Kind  KeyKind
	Runes []rune
}

// InputState is the machine's state.
type InputState int

const (
	Accumulating InputState = iota
	Dispatching
)

// InputMachine accumulates a line and dispatches it on submit. It is driven
// from a single goroutine.
type InputMachine struct {
	store      *instance.Instance
	dispatcher *commands.Dispatcher
	state      InputState
	buf        []rune
}

func NewInputMachine(store *instance.Instance, dispatcher *commands.Dispatcher) *InputMachine {
	return &InputMachine{store: store, dispatcher: dispatcher}
}

// Feed consumes one key and reports whether the session should continue.
func (m *InputMachine) Feed(key Key) commands.Outcome {
	switch key.Kind {
	case KeyRune:
		m.buf = append(m.buf, key.Runes...)
	case KeyBackspace:
		if len(m.buf) > 0 {
			m.buf = m.buf[:len(m.buf)-1]
		}
	case KeyNextPage:
		m.store.NextPage()
	case KeyScrollUp:
		m.store.ScrollUp()
	case KeyScrollDown:
		m.store.ScrollDown()
	case KeySubmit:
		return m.submit()
	}
	return commands.Continue
}

func (m *InputMachine) submit() commands.Outcome {
	m.state = Dispatching
	defer func() { m.state = Accumulating }()

	line := string(m.buf)
	m.buf = m.buf[:0]
	outcome := m.dispatcher.Dispatch(commands.Parse(line))
	m.store.ScrollReset()
	return outcome
}

// Buffer returns the line typed so far.
func (m *InputMachine) Buffer() string {
	return string(m.buf)
}

// State returns the current machine state.
func (m *InputMachine) State() InputState {
	return m.state
}

package commands

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tOgg1/ostruka/internal/instance"
	"github.com/tOgg1/ostruka/internal/protocol"
)

// ErrTransportUnavailable reports that an outbound command could not be
// handed to the transport.
var ErrTransportUnavailable = errors.New("transport unavailable")

// Sender queues outbound commands. Send must not block.
type Sender interface {
	Send(cmd protocol.Command) error
}

// Outcome tells the input loop whether to keep running.
type Outcome int

const (
	Continue Outcome = iota
	Exit
)

// Dispatcher applies intents to the conversation store and the transport.
type Dispatcher struct {
	username string
	store    *instance.Instance
	tx       Sender
	logger   zerolog.Logger
}

// NewDispatcher builds a dispatcher acting as username.
func NewDispatcher(username string, store *instance.Instance, tx Sender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		username: username,
		store:    store,
		tx:       tx,
		logger:   logger,
	}
}

// Username returns the alias messages are sent as.
func (d *Dispatcher) Username() string {
	return d.username
}

// Dispatch applies intent. Failures are shown in the current page and never
// returned.
func (d *Dispatcher) Dispatch(intent Intent) Outcome {
	switch it := intent.(type) {
	case Quit:
		return Exit
	case Message:
		d.sendMessage(it.Text)
	case Join:
		d.join(it.Name)
	case Close:
		d.closeCurrent()
	case SwitchPage:
		if err := d.store.SetCurrent(it.Index); err != nil {
			d.store.AddErr(err.Error())
		}
	case Unknown:
		d.store.AddErr("Unknown command: " + it.Raw)
	default:
		d.logger.Warn().Str("intent", fmt.Sprintf("%T", intent)).Msg("unhandled intent")
	}
	return Continue
}

func (d *Dispatcher) sendMessage(text string) {
	index, target := d.store.CurrentPage()
	if index == instance.HomeIndex || text == "" {
		d.echo(text)
		return
	}
	if err := d.send(protocol.Msg(d.username, target, text)); err != nil {
		d.store.AddErr(err.Error())
		return
	}
	d.echo(text)
}

func (d *Dispatcher) join(name string) {
	if err := d.send(protocol.Join(name)); err != nil {
		d.store.AddErr(fmt.Sprintf("Join command error: %v", err))
		return
	}
	if err := d.store.Add(instance.NewPage(name, fmt.Sprintf("Joined %s!", name))); err != nil {
		d.store.AddErr(err.Error())
		return
	}
	if instance.IsGroup(name) {
		if err := d.send(protocol.ListUsrQuery(name)); err != nil {
			d.store.AddErr(fmt.Sprintf("User list error: %v", err))
		}
	}
}

func (d *Dispatcher) closeCurrent() {
	name, err := d.store.RemoveCurrent()
	if err != nil {
		d.store.AddErr(err.Error())
		return
	}
	if err := d.send(protocol.Leave(name)); err != nil {
		d.store.AddErr(fmt.Sprintf("Leave command error: %v", err))
	}
}

func (d *Dispatcher) send(cmd protocol.Command) error {
	if d.tx == nil {
		return ErrTransportUnavailable
	}
	if err := d.tx.Send(cmd); err != nil {
		d.logger.Debug().Err(err).Str("cmd", string(cmd.Cmd)).Str("target", cmd.Target).Msg("send failed")
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	return nil
}

func (d *Dispatcher) echo(text string) {
	d.store.AppendLine(fmt.Sprintf("(%s)> %s", d.username, text))
}

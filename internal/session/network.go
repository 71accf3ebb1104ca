package session

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tOgg1/ostruka/internal/instance"
	"github.com/tOgg1/ostruka/internal/notify"
	"github.com/tOgg1/ostruka/internal/protocol"
)

var ErrStreamClosed = errors.New("connection closed")

// Transport is the connection half consumed by the network loop.
type Transport interface {
	Messages() <-chan protocol.Message
	WriteCommand(ctx context.Context, cmd protocol.Command) error
	Err() error
}

// NetworkLoop applies the transport stream to the store.
type NetworkLoop struct {
	store     *instance.Instance
	transport Transport
	notifier  notify.Notifier
	logger    zerolog.Logger
}

func NewNetworkLoop(store *instance.Instance, transport Transport, notifier notify.Notifier, logger zerolog.Logger) *NetworkLoop {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &NetworkLoop{
		store:     store,
		transport: transport,
		notifier:  notifier,
		logger:    logger,
	}
}

// Run consumes the stream until it closes or ctx is done. When the stream
// closes the reason is shown in the current page and returned.
func (l *NetworkLoop) Run(ctx context.Context) error {
	messages := l.transport.Messages()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				err := l.transport.Err()
				if err == nil {
					err = ErrStreamClosed
				}
				l.store.AddErr("[✗] SERVER: " + err.Error())
				return err
			}
			l.Apply(ctx, msg)
		}
	}
}

// Apply handles one stream item.
func (l *NetworkLoop) Apply(ctx context.Context, msg protocol.Message) {
	cmd := msg.Command
	if msg.Direction == protocol.Outbound {
		if err := l.transport.WriteCommand(ctx, cmd); err != nil {
			l.logger.Warn().Err(err).Str("cmd", string(cmd.Cmd)).Str("target", cmd.Target).Msg("write failed")
			l.store.AddErr("[✗] SERVER: " + err.Error())
		}
		return
	}

	switch cmd.Cmd {
	case protocol.KindMsg:
		delivery := l.store.RouteIncoming(cmd.Sender, cmd.Target, cmd.Body)
		if !delivery.Current {
			l.notify(delivery.Page, cmd)
		}
	case protocol.KindListUsr:
		members := protocol.SplitMembers(cmd.Users)
		if cmd.Op == protocol.OpRemove {
			l.store.RemoveRosterMembers(cmd.Target, members)
		} else {
			l.store.AddRosterMembers(cmd.Target, members)
		}
	default:
		l.store.AppendLine(cmd.String())
	}
}

func (l *NetworkLoop) notify(page string, cmd protocol.Command) {
	title := notify.MessageTitle(page)
	body := cmd.String()
	go func() {
		if err := l.notifier.Notify(title, body); err != nil {
			l.logger.Debug().Err(err).Str("page", page).Msg("notification dropped")
		}
	}()
}

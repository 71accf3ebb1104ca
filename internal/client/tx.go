package client

import "github.com/tOgg1/ostruka/internal/protocol"

// Tx queues outbound commands for the network loop to write. The zero value
// rejects every send.
type Tx struct {
	outbox chan<- protocol.Command
	done   <-chan struct{}
}

// Send enqueues cmd without blocking. It fails with ErrClosed once the
// connection has ended and ErrOutboxFull when the queue has no room.
func (t Tx) Send(cmd protocol.Command) error {
	if t.outbox == nil {
		return ErrClosed
	}
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	select {
	case t.outbox <- cmd:
		return nil
	case <-t.done:
		return ErrClosed
	default:
		return ErrOutboxFull
	}
}

// Package client connects ostruka to a relay and exposes the two halves of
// the connection the core needs: an outbound Tx handle and a single ordered
// stream of messages for the network loop.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tOgg1/ostruka/internal/protocol"
)

const (
	DefaultDialTimeout = 5 * time.Second
	DefaultOutboxSize  = 64

	writeTimeout = 5 * time.Second
)

var (
	ErrClosed        = errors.New("client closed")
	ErrOutboxFull    = errors.New("outbox full")
	ErrLoginRejected = errors.New("login rejected")
)

// Options configures LogIn.
type Options struct {
	Addr     string
	User     string
	Password string

	DialTimeout time.Duration
	OutboxSize  int
	// SendRate caps outbound frames per second. Zero or less disables it.
	SendRate float64

	Logger zerolog.Logger
}

func (o Options) normalize() Options {
	o.Addr = strings.TrimSpace(o.Addr)
	o.User = strings.TrimSpace(o.User)
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = DefaultOutboxSize
	}
	return o
}

// Client is an authenticated relay connection.
type Client struct {
	user    string
	conn    net.Conn
	enc     *protocol.Encoder
	dec     *protocol.Decoder
	limiter *rate.Limiter
	logger  zerolog.Logger

	outbox   chan protocol.Command
	inbound  chan protocol.Command
	messages chan protocol.Message

	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// LogIn dials the relay and authenticates opts.User.
func LogIn(ctx context.Context, opts Options) (*Client, error) {
	opts = opts.normalize()
	if opts.Addr == "" {
		return nil, errors.New("server address required")
	}
	if opts.User == "" {
		return nil, errors.New("user required")
	}

	network, target := Endpoint(opts.Addr)
	dialer := &net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, network, target)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.Addr, err)
	}

	enc := protocol.NewEncoder(conn)
	dec := protocol.NewDecoder(conn)
	if err := handshake(conn, enc, dec, opts); err != nil {
		_ = conn.Close()
		return nil, err
	}

	c := &Client{
		user:     opts.User,
		conn:     conn,
		enc:      enc,
		dec:      dec,
		logger:   opts.Logger.With().Str("user", opts.User).Str("server", opts.Addr).Logger(),
		outbox:   make(chan protocol.Command, opts.OutboxSize),
		inbound:  make(chan protocol.Command),
		messages: make(chan protocol.Message),
		done:     make(chan struct{}),
	}
	if opts.SendRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.SendRate), 1)
	}

	go c.readLoop()
	go c.mergeLoop()

	c.logger.Info().Msg("logged in")
	return c, nil
}

// LogInAny tries each alias in order and returns the first that the relay
// accepts, together with the alias used.
func LogInAny(ctx context.Context, opts Options, aliases ...string) (*Client, string, error) {
	var errs []error
	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		attempt := opts
		attempt.User = alias
		c, err := LogIn(ctx, attempt)
		if err == nil {
			return c, alias, nil
		}
		opts.Logger.Warn().Err(err).Str("user", alias).Msg("login failed")
		errs = append(errs, fmt.Errorf("log in as %s: %w", alias, err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, "", errors.New("no user configured")
	}
	return nil, "", errors.Join(errs...)
}

func handshake(conn net.Conn, enc *protocol.Encoder, dec *protocol.Decoder, opts Options) error {
	_ = conn.SetDeadline(time.Now().Add(opts.DialTimeout))
	defer conn.SetDeadline(time.Time{})

	login := protocol.Login(opts.User, opts.Password)
	if err := enc.Encode(login); err != nil {
		return fmt.Errorf("send login: %w", err)
	}
	ack, err := dec.Decode()
	if err != nil {
		return fmt.Errorf("read login ack: %w", err)
	}
	if ack.Cmd != protocol.KindAck || ack.OK == nil || !*ack.OK {
		return fmt.Errorf("%w: %s", ErrLoginRejected, ack.Error.Error())
	}
	return nil
}

// User returns the alias this client is logged in as.
func (c *Client) User() string {
	return c.user
}

// Tx returns the outbound handle handed to the dispatcher.
func (c *Client) Tx() Tx {
	return Tx{outbox: c.outbox, done: c.done}
}

// Messages returns the ordered stream of queued outbound commands and
// inbound frames. It is closed once the connection ends.
func (c *Client) Messages() <-chan protocol.Message {
	return c.messages
}

// WriteCommand puts cmd on the wire, waiting for the send rate limiter.
func (c *Client) WriteCommand(ctx context.Context, cmd protocol.Command) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.enc.Encode(cmd); err != nil {
		return fmt.Errorf("write %s: %w", cmd.Cmd, err)
	}
	c.logger.Debug().Str("cmd", string(cmd.Cmd)).Str("target", cmd.Target).Str("req_id", cmd.ReqID).Msg("frame sent")
	return nil
}

// Err returns the reason the connection ended, or nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close ends the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		if errors.Is(err, io.EOF) {
			err = errors.New("connection closed by server")
		}
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		_ = c.conn.Close()
		if !errors.Is(err, ErrClosed) {
			c.logger.Warn().Err(err).Msg("connection ended")
		}
	})
}

func (c *Client) readLoop() {
	defer close(c.inbound)
	for {
		cmd, err := c.dec.Decode()
		if err != nil {
			c.shutdown(err)
			return
		}
		select {
		case c.inbound <- cmd:
		case <-c.done:
			return
		}
	}
}

// mergeLoop serializes outbound and inbound traffic into one stream so the
// network loop sees them in a single order.
func (c *Client) mergeLoop() {
	defer close(c.messages)
	for {
		var msg protocol.Message
		select {
		case cmd := <-c.outbox:
			msg = protocol.Message{Direction: protocol.Outbound, Command: cmd}
		case cmd, ok := <-c.inbound:
			if !ok {
				return
			}
			msg = protocol.Message{Direction: protocol.Inbound, Command: cmd}
		}
		select {
		case c.messages <- msg:
		case <-c.done:
			return
		}
	}
}

// Endpoint splits addr into a dial network and target. Paths and unix://
// addresses dial a unix socket, everything else TCP.
func Endpoint(addr string) (network string, target string) {
	switch {
	case strings.HasPrefix(addr, "unix://"):
		return "unix", strings.TrimPrefix(addr, "unix://")
	case strings.HasPrefix(addr, "tcp://"):
		return "tcp", strings.TrimPrefix(addr, "tcp://")
	case strings.Contains(addr, string(os.PathSeparator)):
		return "unix", addr
	default:
		return "tcp", addr
	}
}

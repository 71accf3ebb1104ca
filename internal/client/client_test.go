package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/ostruka/internal/protocol"
	"github.com/tOgg1/ostruka/internal/testutil"
)

// fakeRelay accepts one login per connection, rejecting users in reject,
// and hands accepted connections to the test.
type fakeRelay struct {
	ln     net.Listener
	reject map[string]bool
	conns  chan *relayConn
}

type relayConn struct {
	conn net.Conn
	enc  *protocol.Encoder
	dec  *protocol.Decoder
	user string
}

func startFakeRelay(t *testing.T, reject ...string) *fakeRelay {
	t.Helper()
	r := &fakeRelay{
		ln:     testutil.Listen(t),
		reject: map[string]bool{},
		conns:  make(chan *relayConn, 4),
	}
	for _, user := range reject {
		r.reject[user] = true
	}
	go r.serve()
	return r
}

func (r *fakeRelay) serve() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		rc := &relayConn{conn: conn, enc: protocol.NewEncoder(conn), dec: protocol.NewDecoder(conn)}
		login, err := rc.dec.Decode()
		if err != nil {
			_ = conn.Close()
			continue
		}
		if r.reject[login.Sender] {
			_ = rc.enc.Encode(protocol.Reject(login.ReqID, "auth", "bad credentials"))
			_ = conn.Close()
			continue
		}
		rc.user = login.Sender
		_ = rc.enc.Encode(protocol.Ack(login.ReqID))
		r.conns <- rc
	}
}

func (r *fakeRelay) accept(t *testing.T) *relayConn {
	t.Helper()
	select {
	case rc := <-r.conns:
		t.Cleanup(func() { _ = rc.conn.Close() })
		return rc
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func (r *fakeRelay) options(user string) Options {
	return Options{Addr: r.ln.Addr().String(), User: user, Password: "pw", Logger: zerolog.Nop()}
}

func nextMessage(t *testing.T, c *Client) protocol.Message {
	t.Helper()
	select {
	case msg, ok := <-c.Messages():
		require.True(t, ok, "message stream closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return protocol.Message{}
	}
}

func TestLogInAndExchange(t *testing.T) {
	relay := startFakeRelay(t)
	ctx := context.Background()

	c, err := LogIn(ctx, relay.options("alice"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	rc := relay.accept(t)
	require.Equal(t, "alice", rc.user)
	require.Equal(t, "alice", c.User())

	require.NoError(t, c.Tx().Send(protocol.Msg("alice", "bob", "hi")))
	out := nextMessage(t, c)
	require.Equal(t, protocol.Outbound, out.Direction)
	require.Equal(t, "hi", out.Command.Body)

	require.NoError(t, c.WriteCommand(ctx, out.Command))
	got, err := rc.dec.Decode()
	require.NoError(t, err)
	require.Equal(t, protocol.KindMsg, got.Cmd)
	require.Equal(t, "bob", got.Target)

	require.NoError(t, rc.enc.Encode(protocol.Msg("bob", "alice", "hey")))
	in := nextMessage(t, c)
	require.Equal(t, protocol.Inbound, in.Direction)
	require.Equal(t, "bob", in.Command.Sender)
	require.Equal(t, "hey", in.Command.Body)
}

func TestLogInRejected(t *testing.T) {
	relay := startFakeRelay(t, "mallory")

	_, err := LogIn(context.Background(), relay.options("mallory"))
	require.ErrorIs(t, err, ErrLoginRejected)
	require.Contains(t, err.Error(), "bad credentials")
}

func TestLogInValidatesOptions(t *testing.T) {
	_, err := LogIn(context.Background(), Options{User: "alice"})
	require.Error(t, err)

	_, err = LogIn(context.Background(), Options{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}

func TestLogInAnyFallsBackToAlternate(t *testing.T) {
	relay := startFakeRelay(t, "alice")

	c, alias, err := LogInAny(context.Background(), relay.options(""), "alice", "", "alice2")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.Equal(t, "alice2", alias)
	require.Equal(t, "alice2", relay.accept(t).user)
}

func TestLogInAnyAllRejected(t *testing.T) {
	relay := startFakeRelay(t, "a", "b")

	_, _, err := LogInAny(context.Background(), relay.options(""), "a", "b")
	require.ErrorIs(t, err, ErrLoginRejected)
	require.Contains(t, err.Error(), "log in as a")
	require.Contains(t, err.Error(), "log in as b")

	_, _, err = LogInAny(context.Background(), relay.options(""), " ")
	require.EqualError(t, err, "no user configured")
}

func TestStreamClosesWhenServerHangsUp(t *testing.T) {
	relay := startFakeRelay(t)

	c, err := LogIn(context.Background(), relay.options("alice"))
	require.NoError(t, err)
	rc := relay.accept(t)
	_ = rc.conn.Close()

	select {
	case _, ok := <-c.Messages():
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close")
	}
	require.EqualError(t, c.Err(), "connection closed by server")
	require.ErrorIs(t, c.Tx().Send(protocol.Join("#a")), ErrClosed)
	require.ErrorIs(t, c.WriteCommand(context.Background(), protocol.Join("#a")), ErrClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	relay := startFakeRelay(t)

	c, err := LogIn(context.Background(), relay.options("alice"))
	require.NoError(t, err)
	relay.accept(t)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.ErrorIs(t, c.Err(), ErrClosed)
}

func TestTxOutboxFull(t *testing.T) {
	outbox := make(chan protocol.Command, 1)
	tx := Tx{outbox: outbox, done: make(chan struct{})}

	require.NoError(t, tx.Send(protocol.Join("#a")))
	require.ErrorIs(t, tx.Send(protocol.Join("#b")), ErrOutboxFull)

	require.ErrorIs(t, Tx{}.Send(protocol.Join("#c")), ErrClosed)
}

func TestWriteCommandHonoursContextWhileRateLimited(t *testing.T) {
	relay := startFakeRelay(t)
	opts := relay.options("alice")
	opts.SendRate = 0.001

	c, err := LogIn(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	relay.accept(t)

	require.NoError(t, c.WriteCommand(context.Background(), protocol.Join("#a")))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = c.WriteCommand(ctx, protocol.Join("#b"))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrClosed))
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		addr    string
		network string
		target  string
	}{
		{addr: "localhost:9999", network: "tcp", target: "localhost:9999"},
		{addr: "tcp://10.0.0.1:80", network: "tcp", target: "10.0.0.1:80"},
		{addr: "unix:///tmp/ostruka.sock", network: "unix", target: "/tmp/ostruka.sock"},
		{addr: "/run/ostruka.sock", network: "unix", target: "/run/ostruka.sock"},
	}
	for _, tt := range tests {
		network, target := Endpoint(tt.addr)
		require.Equal(t, tt.network, network, tt.addr)
		require.Equal(t, tt.target, target, tt.addr)
	}
}

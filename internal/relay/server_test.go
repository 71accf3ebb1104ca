package relay

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tOgg1/ostruka/internal/client"
	"github.com/tOgg1/ostruka/internal/db"
	"github.com/tOgg1/ostruka/internal/protocol"
	"github.com/tOgg1/ostruka/internal/testutil"
)

func startServer(t *testing.T, auth Authenticator) (*Server, string) {
	t.Helper()
	ln := testutil.Listen(t)
	srv := New(auth, Options{Logger: zerolog.Nop()})

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()
	t.Cleanup(func() {
		require.NoError(t, srv.Close())
		require.NoError(t, <-done)
	})
	return srv, ln.Addr().String()
}

func logIn(t *testing.T, addr, user string) *client.Client {
	t.Helper()
	c, err := client.LogIn(context.Background(), client.Options{Addr: addr, User: user, Password: "pw", Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func write(t *testing.T, c *client.Client, cmd protocol.Command) {
	t.Helper()
	require.NoError(t, c.WriteCommand(context.Background(), cmd))
}

func expect(t *testing.T, c *client.Client) protocol.Command {
	t.Helper()
	for {
		select {
		case msg, ok := <-c.Messages():
			require.True(t, ok, "stream closed: %v", c.Err())
			if msg.Direction == protocol.Inbound {
				return msg.Command
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}
}

func waitMembers(t *testing.T, srv *Server, group string, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		members := srv.Members(group)
		if len(want) == 0 {
			return len(members) == 0
		}
		return len(members) == len(want) && members[0] == want[0] && members[len(members)-1] == want[len(want)-1]
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDirectMessage(t *testing.T) {
	_, addr := startServer(t, nil)
	alice := logIn(t, addr, "alice")
	bob := logIn(t, addr, "bob")

	write(t, alice, protocol.Msg("alice", "bob", "hi bob"))
	got := expect(t, bob)
	require.Equal(t, protocol.KindMsg, got.Cmd)
	require.Equal(t, "alice", got.Sender)
	require.Equal(t, "bob", got.Target)
	require.Equal(t, "hi bob", got.Body)
}

func TestSenderCannotBeSpoofed(t *testing.T) {
	_, addr := startServer(t, nil)
	alice := logIn(t, addr, "alice")
	bob := logIn(t, addr, "bob")

	write(t, alice, protocol.Msg("mallory", "bob", "trust me"))
	require.Equal(t, "alice", expect(t, bob).Sender)
}

func TestMessageToOfflineUser(t *testing.T) {
	_, addr := startServer(t, nil)
	alice := logIn(t, addr, "alice")

	write(t, alice, protocol.Msg("alice", "ghost", "anyone?"))
	got := expect(t, alice)
	require.Equal(t, protocol.KindError, got.Cmd)
	require.Equal(t, "[SERVER ERR]: ghost is not online (offline)", got.String())
}

func TestJoinUserReportsPresence(t *testing.T) {
	_, addr := startServer(t, nil)
	alice := logIn(t, addr, "alice")
	logIn(t, addr, "bob")

	write(t, alice, protocol.Join("bob"))
	require.Equal(t, "[INFO]: bob is online", expect(t, alice).String())

	write(t, alice, protocol.Join("ghost"))
	require.Equal(t, "[INFO]: ghost is offline", expect(t, alice).String())
}

func TestGroupLifecycle(t *testing.T) {
	srv, addr := startServer(t, nil)
	alice := logIn(t, addr, "alice")
	bob := logIn(t, addr, "bob")

	write(t, alice, protocol.Join("#team"))
	waitMembers(t, srv, "#team", "alice")

	write(t, bob, protocol.Join("#team"))
	got := expect(t, alice)
	require.Equal(t, protocol.KindListUsr, got.Cmd)
	require.Equal(t, protocol.OpAdd, got.Op)
	require.Equal(t, []string{"bob"}, protocol.SplitMembers(got.Users))

	write(t, bob, protocol.ListUsrQuery("#team"))
	got = expect(t, bob)
	require.Equal(t, protocol.KindListUsr, got.Cmd)
	require.Equal(t, "#team", got.Target)
	require.Equal(t, []string{"alice", "bob"}, protocol.SplitMembers(got.Users))

	write(t, bob, protocol.Msg("bob", "#team", "hello team"))
	got = expect(t, alice)
	require.Equal(t, protocol.KindMsg, got.Cmd)
	require.Equal(t, "bob", got.Sender)
	require.Equal(t, "#team", got.Target)

	write(t, alice, protocol.Leave("#team"))
	got = expect(t, bob)
	require.Equal(t, protocol.OpRemove, got.Op)
	require.Equal(t, []string{"alice"}, protocol.SplitMembers(got.Users))
	require.Equal(t, []string{"bob"}, srv.Members("#team"))
}

func TestGroupMessageRequiresMembership(t *testing.T) {
	_, addr := startServer(t, nil)
	alice := logIn(t, addr, "alice")

	write(t, alice, protocol.Msg("alice", "#team", "let me in"))
	got := expect(t, alice)
	require.Equal(t, protocol.KindError, got.Cmd)
	require.Equal(t, "not_member", got.Error.Code)
}

func TestDisconnectLeavesGroups(t *testing.T) {
	srv, addr := startServer(t, nil)
	alice := logIn(t, addr, "alice")
	bob := logIn(t, addr, "bob")

	write(t, alice, protocol.Join("#team"))
	waitMembers(t, srv, "#team", "alice")
	write(t, bob, protocol.Join("#team"))
	expect(t, alice)

	require.NoError(t, bob.Close())
	got := expect(t, alice)
	require.Equal(t, protocol.KindListUsr, got.Cmd)
	require.Equal(t, protocol.OpRemove, got.Op)
	require.Equal(t, []string{"bob"}, protocol.SplitMembers(got.Users))
	require.Eventually(t, func() bool {
		return len(srv.Online()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDuplicateLoginIsRejected(t *testing.T) {
	srv, addr := startServer(t, nil)
	logIn(t, addr, "alice")

	_, err := client.LogIn(context.Background(), client.Options{Addr: addr, User: "alice", Logger: zerolog.Nop()})
	require.ErrorIs(t, err, client.ErrLoginRejected)
	require.Contains(t, err.Error(), "already logged in")
	require.Equal(t, []string{"alice"}, srv.Online())
}

func TestInvalidUserNameIsRejected(t *testing.T) {
	_, addr := startServer(t, nil)

	_, err := client.LogIn(context.Background(), client.Options{Addr: addr, User: "#team", Logger: zerolog.Nop()})
	require.ErrorIs(t, err, client.ErrLoginRejected)
}

func TestFirstFrameMustBeLogin(t *testing.T) {
	_, addr := startServer(t, nil)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, protocol.NewEncoder(conn).Encode(protocol.Join("#team")))
	got, err := protocol.NewDecoder(conn).Decode()
	require.NoError(t, err)
	require.Equal(t, protocol.KindAck, got.Cmd)
	require.False(t, *got.OK)
	require.Equal(t, "bad_request", got.Error.Code)
}

func TestUnknownCommand(t *testing.T) {
	_, addr := startServer(t, nil)
	alice := logIn(t, addr, "alice")

	write(t, alice, protocol.Command{Cmd: "dance"})
	got := expect(t, alice)
	require.Equal(t, protocol.KindError, got.Cmd)
	require.Contains(t, got.Error.Message, "dance")
}

func TestAccountsAuthenticator(t *testing.T) {
	store, err := db.Open(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	repo := db.NewAccountRepository(store, db.WithBcryptCost(bcrypt.MinCost))
	_, err = repo.Create(context.Background(), "alice", "pw")
	require.NoError(t, err)

	_, addr := startServer(t, Accounts(repo))

	logIn(t, addr, "alice")

	_, err = client.LogIn(context.Background(), client.Options{Addr: addr, User: "bob", Password: "pw", Logger: zerolog.Nop()})
	require.ErrorIs(t, err, client.ErrLoginRejected)
	require.Contains(t, err.Error(), db.ErrInvalidCredentials.Error())
}

func TestAuthenticatorFunc(t *testing.T) {
	denied := errors.New("denied")
	auth := AuthenticatorFunc(func(_ context.Context, user, _ string) error {
		if user == "eve" {
			return denied
		}
		return nil
	})

	require.NoError(t, auth.Authenticate(context.Background(), "alice", ""))
	require.ErrorIs(t, auth.Authenticate(context.Background(), "eve", ""), denied)
	require.NoError(t, AllowAll().Authenticate(context.Background(), "anyone", ""))
}

func TestServeAfterCloseReturnsImmediately(t *testing.T) {
	srv := New(nil, Options{Logger: zerolog.Nop()})
	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close())

	require.NoError(t, srv.Serve(testutil.Listen(t)))
}

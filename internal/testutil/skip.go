package testutil

import (
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// SkipIfNoNetwork skips the test if OSTRUKA_TEST_SKIP_NETWORK is set.
// Use this for tests that listen on loopback sockets, which may not be
// available in sandboxed environments.
func SkipIfNoNetwork(t *testing.T) {
	t.Helper()
	if os.Getenv("OSTRUKA_TEST_SKIP_NETWORK") != "" {
		t.Skip("skipping network test: OSTRUKA_TEST_SKIP_NETWORK is set")
	}
}

// Listen opens a loopback TCP listener on a free port, closed when the test
// ends.
func Listen(t *testing.T) net.Listener {
	t.Helper()
	SkipIfNoNetwork(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

package testutil

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSkipIfNoNetwork(t *testing.T) {
	t.Setenv("OSTRUKA_TEST_SKIP_NETWORK", "1")
	ran := false
	t.Run("skipped", func(t *testing.T) {
		SkipIfNoNetwork(t)
		ran = true
	})
	require.False(t, ran)
}

func TestListenAcceptsLoopback(t *testing.T) {
	ln := Listen(t)

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			_ = conn.Close()
		}
		done <- err
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	_ = conn.Close()
	require.NoError(t, <-done)
}

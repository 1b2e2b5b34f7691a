package acceptor

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/al002/psmoveclient/internal/log"
)

func TestAcceptorDeliversConnections(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	newConnsC := make(chan net.Conn)
	a := New(lis, newConnsC, log.Discard())
	go a.Run()

	client, err := net.Dial("tcp", a.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	select {
	case conn := <-newConnsC:
		assert.Equal(t, client.LocalAddr().String(), conn.RemoteAddr().String())
		conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("no connection delivered")
	}

	a.Close()

	_, err = net.Dial("tcp", lis.Addr().String())
	assert.Error(t, err)
}

func TestAcceptorCloseWhileWaitingForConsumer(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	a := New(lis, make(chan net.Conn), log.Discard())
	go a.Run()

	client, err := net.Dial("tcp", a.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	closed := make(chan struct{})
	go func() {
		a.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close blocked")
	}
}

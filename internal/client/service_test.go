package client

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/al002/psmoveclient/internal/config"
	"github.com/al002/psmoveclient/internal/log"
	"github.com/al002/psmoveclient/internal/mockservice"
	"github.com/al002/psmoveclient/internal/protocol"
)

// startService runs a mock service and returns a client configuration
// pointing at it over the requested transport.
func startService(t *testing.T, transportName string) (*mockservice.Server, config.ClientConfig) {
	t.Helper()

	s := mockservice.New(log.Discard(), mockservice.Options{
		Controllers:       2,
		DataFrameInterval: 2 * time.Millisecond,
	})
	t.Cleanup(func() { s.Close() })

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := config.DefaultConfig.Client
	cfg.Host = "127.0.0.1"
	cfg.Port = lis.Addr().(*net.TCPAddr).Port
	cfg.Transport = transportName
	cfg.ConnectTimeout = time.Second
	cfg.ConnectRetries = 1
	cfg.StrictInvariants = true

	switch transportName {
	case "tcp":
		require.NoError(t, s.ServeTCP(lis))
	case "websocket":
		require.NoError(t, s.ServeWebSocket(lis, cfg.WebSocketPath))
	}

	return s, cfg
}

// updateUntil drives the client until cond holds.
func updateUntil(t *testing.T, c *Client, cond func() bool) {
	t.Helper()

	require.Eventually(t, func() bool {
		c.Update()
		return cond()
	}, 3*time.Second, time.Millisecond)
}

func TestClientAgainstService(t *testing.T) {
	for _, transportName := range []string{"tcp", "websocket"} {
		t.Run(transportName, func(t *testing.T) {
			s, cfg := startService(t, transportName)

			c, err := New(&cfg, log.Discard())
			require.NoError(t, err)
			defer c.Shutdown()

			j := &journal{}
			require.NoError(t, c.Startup(context.Background(), j.onEvent))
			c.Update()
			require.Equal(t, []string{"connected_to_service"}, j.entries)

			var controllers []protocol.ControllerInfo
			_, err = c.GetControllerList(func(result protocol.ResultCode, _ protocol.RequestID, list protocol.ControllerList, err error) {
				assert.Equal(t, protocol.ResultOK, result)
				assert.NoError(t, err)
				controllers = list.Controllers
			})
			require.NoError(t, err)
			updateUntil(t, c, func() bool { return controllers != nil })
			assert.Len(t, controllers, 2)

			view := c.AllocateControllerView(1)
			acquired := false
			_, err = c.StartControllerDataStream(view, func(result protocol.ResultCode, _ protocol.RequestID, _ *protocol.Response) {
				acquired = result == protocol.ResultOK
			})
			require.NoError(t, err)

			updateUntil(t, c, func() bool { return acquired && view.DataFrameFPS() > 0 })
			assert.True(t, view.IsTracking())
			assert.Equal(t, 1, view.ControllerID())

			var rumble protocol.ResultCode = protocol.ResultCanceled
			_, err = c.SetControllerRumble(view, 0.5, func(result protocol.ResultCode, _ protocol.RequestID, _ *protocol.Response) {
				rumble = result
			})
			require.NoError(t, err)
			updateUntil(t, c, func() bool { return rumble == protocol.ResultOK })

			// a request the service never answers is canceled when the
			// connection drops, before the disconnect is reported
			s.SetSilent(protocol.RequestResetPose, true)
			_, err = c.ResetPose(view, j.callback("reset"))
			require.NoError(t, err)
			updateUntil(t, c, func() bool { return len(s.Received()) == 4 })
			assert.Equal(t, 1, c.PendingRequests())

			s.DropConnections()
			updateUntil(t, c, func() bool { return !c.Connected() })

			assert.Equal(t, []string{
				"connected_to_service",
				"reset:canceled",
				"disconnected_from_service",
			}, j.entries)
			assert.Zero(t, c.PendingRequests())
		})
	}
}

func TestClientIgnoresDuplicateResponses(t *testing.T) {
	s, cfg := startService(t, "tcp")
	s.SetDuplicateResponses(true)

	c, err := New(&cfg, log.Discard())
	require.NoError(t, err)
	defer c.Shutdown()

	require.NoError(t, c.Startup(context.Background(), func(Event) {}))

	calls := 0
	_, err = c.GetControllerList(func(protocol.ResultCode, protocol.RequestID, protocol.ControllerList, error) {
		calls++
	})
	require.NoError(t, err)

	updateUntil(t, c, func() bool { return calls > 0 })

	// give the retransmission time to arrive
	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		c.Update()
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 1, calls)
}

func TestClientMalformedFrameDropsConnection(t *testing.T) {
	s, cfg := startService(t, "tcp")

	c, err := New(&cfg, log.Discard())
	require.NoError(t, err)
	defer c.Shutdown()

	j := &journal{}
	require.NoError(t, c.Startup(context.Background(), j.onEvent))

	_, err = c.StartControllerDataStream(c.AllocateControllerView(0), j.callback("stream"))
	require.NoError(t, err)
	s.SetSilent(protocol.RequestResetPose, true)
	_, err = c.ResetPose(c.AllocateControllerView(0), j.callback("reset"))
	require.NoError(t, err)

	updateUntil(t, c, func() bool { return len(s.Received()) == 2 })

	s.Broadcast(&protocol.Response{RequestID: 999, Result: protocol.ResultCanceled})
	updateUntil(t, c, func() bool { return !c.Connected() })

	require.Len(t, j.events, 2)
	assert.Equal(t, DisconnectedFromService, j.events[1].Type)
	assert.ErrorIs(t, j.events[1].Err, protocol.ErrMalformedFrame)
	assert.Contains(t, j.entries, "reset:canceled")
	assert.Zero(t, c.PendingRequests())
}

func TestClientStartupFailsWithoutService(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())

	cfg := config.DefaultConfig.Client
	cfg.Host = "127.0.0.1"
	cfg.Port = port
	cfg.ConnectRetries = 1

	c, err := New(&cfg, log.Discard())
	require.NoError(t, err)

	var events []EventType
	err = c.Startup(context.Background(), func(ev Event) { events = append(events, ev.Type) })
	assert.ErrorIs(t, err, ErrConnectionFailure)
	assert.Equal(t, []EventType{FailedToConnectToService}, events)
	assert.Contains(t, err.Error(), strconv.Itoa(port))
}

func TestClientCancelsRequestsWhenServiceStopsReading(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { lis.Close() })

	// the service accepts and then never reads
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		<-stop
		conn.Close()
	}()

	cfg := config.DefaultConfig.Client
	cfg.Host = "127.0.0.1"
	cfg.Port = lis.Addr().(*net.TCPAddr).Port
	cfg.ConnectRetries = 1
	cfg.WriteTimeout = 200 * time.Millisecond

	c, err := New(&cfg, log.Discard())
	require.NoError(t, err)
	defer c.Shutdown()

	j := &journal{}
	require.NoError(t, c.Startup(context.Background(), j.onEvent))
	c.Update()

	body := make([]byte, 512<<10)
	start := time.Now()
	for range 64 {
		_, err := c.SendOpaqueRequest(protocol.RequestTypeOpaqueBase+1, body, j.callback("opaque"))
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 64, c.PendingRequests())

	updateUntil(t, c, func() bool { return !c.Connected() })

	require.Len(t, j.entries, 66)
	assert.Equal(t, "connected_to_service", j.entries[0])
	for _, entry := range j.entries[1:65] {
		assert.Equal(t, "opaque:canceled", entry)
	}
	assert.Equal(t, "disconnected_from_service", j.entries[65])
	assert.ErrorIs(t, j.events[1].Err, os.ErrDeadlineExceeded)
	assert.Zero(t, c.PendingRequests())
}

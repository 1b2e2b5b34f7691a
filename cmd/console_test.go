package cmd

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/al002/psmoveclient/internal/client"
	"github.com/al002/psmoveclient/internal/config"
	"github.com/al002/psmoveclient/internal/log"
	"github.com/al002/psmoveclient/internal/mockservice"
)

func TestConsoleStreamsUntilDisconnect(t *testing.T) {
	s := mockservice.New(log.Discard(), mockservice.Options{Controllers: 1, DataFrameInterval: time.Millisecond})
	defer s.Close()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, s.ServeTCP(lis))

	clientCfg := config.DefaultConfig.Client
	clientCfg.Host = "127.0.0.1"
	clientCfg.Port = lis.Addr().(*net.TCPAddr).Port
	clientCfg.ConnectRetries = 1

	consoleCfg := config.DefaultConfig.Console
	consoleCfg.FPSReportInterval = 20 * time.Millisecond

	c, err := client.New(&clientCfg, log.Discard())
	require.NoError(t, err)

	var out bytes.Buffer
	app := newConsoleApp(c, &consoleCfg, &out, log.Discard())

	go func() {
		time.Sleep(200 * time.Millisecond)
		s.DropConnections()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.run(ctx))

	output := out.String()
	assert.Contains(t, output, "Connected to service")
	assert.Contains(t, output, "Acquired controller 0")
	assert.Contains(t, output, "DataFrame Update FPS")
	assert.Contains(t, output, "Disconnected from service")
	assert.Nil(t, app.view)
}

func TestConsoleFailsWithoutService(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())

	clientCfg := config.DefaultConfig.Client
	clientCfg.Host = "127.0.0.1"
	clientCfg.Port = port
	clientCfg.ConnectRetries = 1

	c, err := client.New(&clientCfg, log.Discard())
	require.NoError(t, err)

	consoleCfg := config.DefaultConfig.Console
	var out bytes.Buffer
	app := newConsoleApp(c, &consoleCfg, &out, log.Discard())

	err = app.run(context.Background())
	assert.ErrorIs(t, err, client.ErrConnectionFailure)
	assert.Contains(t, out.String(), "Failed to connect to service")
	assert.Contains(t, out.String(), "Failed to startup the PSMove client")
}

func TestConsoleStopsOnContextCancel(t *testing.T) {
	s := mockservice.New(log.Discard(), mockservice.Options{Controllers: 1})
	defer s.Close()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, s.ServeTCP(lis))

	clientCfg := config.DefaultConfig.Client
	clientCfg.Host = "127.0.0.1"
	clientCfg.Port = lis.Addr().(*net.TCPAddr).Port

	c, err := client.New(&clientCfg, log.Discard())
	require.NoError(t, err)

	consoleCfg := config.DefaultConfig.Console
	var out bytes.Buffer
	app := newConsoleApp(c, &consoleCfg, &out, log.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, app.run(ctx))

	assert.Contains(t, out.String(), "Connected to service")
	assert.NotContains(t, out.String(), "Disconnected from service")
	assert.False(t, c.Connected())
}

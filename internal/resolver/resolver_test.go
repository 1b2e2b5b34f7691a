package resolver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLiteral(t *testing.T) {
	ip, port, err := Resolve(context.Background(), "127.0.0.1:9512", time.Second)
	require.NoError(t, err)
	assert.True(t, ip.Equal(net.IPv4(127, 0, 0, 1)))
	assert.Equal(t, 9512, port)

	ip, port, err = Resolve(context.Background(), "[::1]:80", time.Second)
	require.NoError(t, err)
	assert.True(t, ip.Equal(net.IPv6loopback))
	assert.Equal(t, 80, port)
}

func TestResolveInvalid(t *testing.T) {
	testCases := []struct {
		name     string
		hostport string
	}{
		{name: "Missing port", hostport: "127.0.0.1"},
		{name: "Non numeric port", hostport: "127.0.0.1:http"},
		{name: "Port zero", hostport: "127.0.0.1:0"},
		{name: "Port out of range", hostport: "127.0.0.1:70000"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Resolve(context.Background(), tc.hostport, time.Second)
			assert.Error(t, err)
		})
	}

	_, _, err := Resolve(context.Background(), "127.0.0.1:0", time.Second)
	assert.ErrorIs(t, err, ErrInvalidPort)
}

func TestResolveCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Resolve(ctx, "tracking.invalid:9512", time.Second)
	assert.Error(t, err)
}

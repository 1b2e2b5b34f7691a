package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/al002/psmoveclient/internal/config"
	"github.com/al002/psmoveclient/internal/resolver"
	"github.com/al002/psmoveclient/internal/version"
)

const ClientIDHeader = "X-Client-Id"

// PermanentError marks a dial failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Dialer opens one connection to the service.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
	String() string
}

// NewDialer picks the dialer matching cfg.Transport.
func NewDialer(cfg *config.ClientConfig, clientID string) (Dialer, error) {
	address := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	switch cfg.Transport {
	case "tcp":
		return &TCPDialer{
			Address:      address,
			DNSTimeout:   cfg.DNSTimeout,
			MaxFrameSize: cfg.MaxFrameSize,
		}, nil
	case "websocket":
		return &WebSocketDialer{
			Address:      address,
			Path:         cfg.WebSocketPath,
			ClientID:     clientID,
			DNSTimeout:   cfg.DNSTimeout,
			MaxFrameSize: cfg.MaxFrameSize,
		}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

type TCPDialer struct {
	Address      string
	DNSTimeout   time.Duration
	MaxFrameSize int
}

func (d *TCPDialer) Dial(ctx context.Context) (Conn, error) {
	addr, err := resolveAddress(ctx, d.Address, d.DNSTimeout)
	if err != nil {
		return nil, err
	}

	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	return NewStreamConn(conn, d.MaxFrameSize), nil
}

func (d *TCPDialer) String() string {
	return "tcp://" + d.Address
}

type WebSocketDialer struct {
	Address      string
	Path         string
	ClientID     string
	DNSTimeout   time.Duration
	MaxFrameSize int
}

func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	addr, err := resolveAddress(ctx, d.Address, d.DNSTimeout)
	if err != nil {
		return nil, err
	}

	u := url.URL{Scheme: "ws", Host: addr, Path: d.Path}

	header := http.Header{}
	header.Set("User-Agent", version.DefaultUserAgent)
	if d.ClientID != "" {
		header.Set(ClientIDHeader, d.ClientID)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
	}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.HandshakeTimeout = time.Until(deadline)
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, &PermanentError{Err: fmt.Errorf("websocket handshake: %s: %w", resp.Status, err)}
		}
		return nil, err
	}

	return NewWebSocketConn(conn, d.MaxFrameSize), nil
}

func (d *WebSocketDialer) String() string {
	return "ws://" + d.Address + d.Path
}

func resolveAddress(ctx context.Context, address string, timeout time.Duration) (string, error) {
	ip, port, err := resolver.Resolve(ctx, address, timeout)
	if err != nil {
		var addrErr *net.AddrError
		if errors.Is(err, resolver.ErrInvalidPort) || errors.As(err, &addrErr) {
			return "", &PermanentError{Err: err}
		}
		return "", err
	}
	return net.JoinHostPort(ip.String(), strconv.Itoa(port)), nil
}

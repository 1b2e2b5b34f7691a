package resolver

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"
)

var (
	ErrNoAddress   = errors.New("host has no usable address")
	ErrInvalidPort = errors.New("invalid port number")
)

// Resolve splits hostport and looks the host up, preferring an IPv4
// address. Literal IPs are returned without a lookup.
func Resolve(ctx context.Context, hostport string, timeout time.Duration) (net.IP, int, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, 0, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, 0, err
	}

	if port <= 0 || port > 65535 {
		return nil, 0, ErrInvalidPort
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip, port, nil
	}

	ip, err := ResolveIP(ctx, timeout, host)
	if err != nil {
		return nil, 0, err
	}

	return ip, port, nil
}

func ResolveIP(ctx context.Context, timeout time.Duration, host string) (net.IP, error) {
	var cancel func()
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}

	for _, ia := range addrs {
		if ip4 := ia.IP.To4(); ip4 != nil {
			return ip4, nil
		}
	}

	if len(addrs) > 0 {
		return addrs[0].IP, nil
	}

	return nil, ErrNoAddress
}

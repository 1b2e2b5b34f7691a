package client

import (
	"time"

	"github.com/google/uuid"

	"github.com/al002/psmoveclient/internal/metrics"
	"github.com/al002/psmoveclient/internal/transport"
)

type Option func(*Client)

// WithTransport replaces the transport built from the configuration.
func WithTransport(t transport.Adapter) Option {
	return func(c *Client) {
		c.transport = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithClientID(id uuid.UUID) Option {
	return func(c *Client) {
		c.id = id
	}
}

// WithClock sets the time source used for request expiry and controller
// frame rates.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/al002/psmoveclient/internal/config"
	"github.com/al002/psmoveclient/internal/controller"
	"github.com/al002/psmoveclient/internal/log"
	"github.com/al002/psmoveclient/internal/metrics"
	"github.com/al002/psmoveclient/internal/protocol"
	"github.com/al002/psmoveclient/internal/request"
	"github.com/al002/psmoveclient/internal/transport"
)

var (
	ErrConnectionFailure = errors.New("failed to connect to service")
	ErrNotConnected      = errors.New("not connected to service")
	ErrAlreadyStarted    = errors.New("client already started")
	ErrShutdown          = errors.New("client shut down")
	ErrNilEventCallback  = errors.New("event callback is nil")
)

type state int

const (
	stateIdle state = iota
	stateConnected
	stateDisconnected
	stateShutdown
)

// Client is the entry point to the tracking service: it owns the
// connection, the request manager and the controller views.
//
// A Client is driven from a single goroutine. Startup, Update, Shutdown
// and every request method must be called from it, and all callbacks run
// on it.
type Client struct {
	id        uuid.UUID
	transport transport.Adapter
	manager   *request.Manager
	metrics   *metrics.Metrics
	now       func() time.Time

	state   state
	onEvent EventCallback
	// events raised outside Update, delivered on the next Update
	queued []Event

	views map[int]*controller.View

	log *log.Logger
}

func New(cfg *config.ClientConfig, logger *log.Logger, opts ...Option) (*Client, error) {
	c := &Client{
		id:    uuid.New(),
		now:   time.Now,
		views: make(map[int]*controller.View),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.log = logger.With("client_id", c.id.String())

	if c.transport == nil {
		dialer, err := transport.NewDialer(cfg, c.id.String())
		if err != nil {
			return nil, err
		}
		c.transport = transport.New(dialer, c.log, transport.Options{
			ConnectTimeout: cfg.ConnectTimeout,
			ConnectRetries: cfg.ConnectRetries,
			WriteTimeout:   cfg.WriteTimeout,
		})
	}

	c.manager = request.NewManager(c.transport, c.log, request.Options{
		Timeout:          cfg.RequestTimeout,
		StrictInvariants: cfg.StrictInvariants,
		Metrics:          c.metrics,
		Now:              c.now,
	})

	return c, nil
}

func (c *Client) ID() uuid.UUID {
	return c.id
}

func (c *Client) Connected() bool {
	return c.state == stateConnected
}

// Startup connects to the service. On success ConnectedToService is
// delivered by the next Update; on failure FailedToConnectToService is
// delivered right away and the returned error wraps ErrConnectionFailure.
func (c *Client) Startup(ctx context.Context, onEvent EventCallback) error {
	switch {
	case onEvent == nil:
		return ErrNilEventCallback
	case c.state == stateShutdown:
		return ErrShutdown
	case c.state == stateConnected:
		return ErrAlreadyStarted
	}

	c.onEvent = onEvent

	if err := c.transport.Connect(ctx); err != nil {
		c.state = stateDisconnected
		c.log.Error("Failed to connect to service", "err", err)

		err = fmt.Errorf("%w: %w", ErrConnectionFailure, err)
		c.emit(Event{Type: FailedToConnectToService, Err: err})
		return err
	}

	c.state = stateConnected
	c.log.Info("Connected to service")
	c.queued = append(c.queued, Event{Type: ConnectedToService})

	return nil
}

// Update delivers queued client events, then everything the transport
// received since the last call, then expires timed out requests. It never
// blocks on the network.
func (c *Client) Update() {
	if c.state == stateShutdown {
		return
	}

	queued := c.queued
	c.queued = nil
	for _, ev := range queued {
		c.emit(ev)
	}

	for _, in := range c.transport.Poll() {
		switch in.Kind {
		case transport.InboundResponse:
			c.manager.HandleResponse(in.Response)
		case transport.InboundEvent:
			c.handleServiceEvent(in.Event)
		case transport.InboundDisconnected, transport.InboundMalformed:
			c.handleConnectionLost(in.Err)
		}

		if c.state == stateShutdown {
			return
		}
	}

	c.manager.ExpireTimeouts(c.now())
}

// Shutdown cancels every pending request, closes the connection and frees
// the controller views. The client cannot be started again.
func (c *Client) Shutdown() error {
	if c.state == stateShutdown {
		return nil
	}
	c.state = stateShutdown
	c.queued = nil

	c.manager.Close()
	err := c.transport.Close()

	clear(c.views)

	c.log.Info("Client shut down")
	return err
}

// SendRequest submits req and arranges for cb to run exactly once with its
// outcome. req.ID is ignored; the assigned id is returned.
func (c *Client) SendRequest(req *protocol.Request, cb request.Callback) (protocol.RequestID, error) {
	switch c.state {
	case stateConnected:
		return c.manager.SendRequest(req, cb)
	case stateShutdown:
		return protocol.InvalidRequestID, ErrShutdown
	default:
		return protocol.InvalidRequestID, ErrNotConnected
	}
}

// PendingRequests returns the number of requests waiting for an outcome.
func (c *Client) PendingRequests() int {
	return c.manager.Pending()
}

func (c *Client) handleConnectionLost(err error) {
	if c.state != stateConnected {
		return
	}
	c.state = stateDisconnected

	c.metrics.ConnectionLost()
	c.log.Warn("Disconnected from service", "err", err, "pending", c.manager.Pending())

	// every outstanding request resolves before the owner hears about the
	// disconnect
	c.manager.HandleRequestCanceled()

	// a cancel callback may have shut the client down
	if c.state == stateShutdown {
		return
	}

	for _, v := range c.views {
		v.Reset()
	}

	c.emit(Event{Type: DisconnectedFromService, Err: err})
}

func (c *Client) handleServiceEvent(ev *protocol.Event) {
	c.metrics.EventReceived(ev.Type)

	switch ev.Type {
	case protocol.EventControllerDataFrame:
		var frame protocol.DataFrame
		if err := protocol.UnmarshalFixed(ev.Body, &frame); err != nil {
			c.log.Warn("Dropping bad data frame", "err", err)
			return
		}
		if v, ok := c.views[int(frame.ControllerID)]; ok {
			v.ApplyDataFrame(&frame, c.now())
		}
	case protocol.EventControllerListUpdated:
		c.emit(Event{Type: ControllerListUpdated, ServiceEvent: ev})
	default:
		c.emit(Event{Type: OpaqueServiceEvent, ServiceEvent: ev})
	}
}

func (c *Client) emit(ev Event) {
	c.log.Debug("Client event", "event", ev.Type)
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

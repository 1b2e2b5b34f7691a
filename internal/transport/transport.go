package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/al002/psmoveclient/internal/log"
	"github.com/al002/psmoveclient/internal/protocol"
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
)

type InboundKind int

const (
	InboundResponse InboundKind = iota
	InboundEvent
	// The connection went away. Err carries the cause.
	InboundDisconnected
	// The service sent something that could not be decoded. The connection
	// has been dropped.
	InboundMalformed
)

var inboundKindNames = [...]string{
	"response",
	"event",
	"disconnected",
	"malformed",
}

func (k InboundKind) String() string {
	return inboundKindNames[k]
}

// Inbound is one item handed from the reader goroutine to the poll loop.
type Inbound struct {
	Kind     InboundKind
	Response *protocol.Response
	Event    *protocol.Event
	Err      error
}

// Adapter is what the client drives. None of its methods wait on the
// network except Connect.
type Adapter interface {
	Connect(ctx context.Context) error
	Send(req *protocol.Request) error
	// Poll returns everything received since the last call without
	// blocking.
	Poll() []Inbound
	Close() error
}

type Options struct {
	ConnectTimeout time.Duration
	ConnectRetries uint
	// Bounds each frame write. A service that stops reading is treated as
	// gone once it expires. Defaults to 5s.
	WriteTimeout time.Duration
	// Defaults to an exponential backoff starting at 100ms.
	BackOff backoff.BackOff
}

const defaultWriteTimeout = 5 * time.Second

// session is one live connection with its reader and writer goroutines.
type session struct {
	conn     Conn
	outbound *Queue[*protocol.Request]

	done     chan struct{}
	stopOnce sync.Once
	stopErr  error

	readerC chan struct{}
	writerC chan struct{}
}

func newSession(conn Conn) *session {
	return &session{
		conn:     conn,
		outbound: NewQueue[*protocol.Request](),
		done:     make(chan struct{}),
		readerC:  make(chan struct{}),
		writerC:  make(chan struct{}),
	}
}

// stop closes the connection and tells the writer to exit. Safe to call
// from either goroutine and more than once.
func (s *session) stop() error {
	s.stopOnce.Do(func() {
		s.outbound.Close()
		close(s.done)
		s.stopErr = s.conn.Close()
	})
	return s.stopErr
}

// Transport keeps at most one connection to the service and reports its
// loss exactly once. Requests are written by a goroutine of their own, so
// Send never waits on the network.
type Transport struct {
	dialer  Dialer
	opts    Options
	inbound *Queue[Inbound]

	mu   sync.Mutex
	sess *session

	log *log.Logger
}

var _ Adapter = (*Transport)(nil)

func New(dialer Dialer, logger *log.Logger, opts Options) *Transport {
	if opts.ConnectRetries == 0 {
		opts.ConnectRetries = 1
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.BackOff == nil {
		opts.BackOff = &backoff.ExponentialBackOff{
			InitialInterval:     100 * time.Millisecond,
			RandomizationFactor: 0.5,
			Multiplier:          2,
			MaxInterval:         5 * time.Second,
		}
	}

	return &Transport{
		dialer:  dialer,
		opts:    opts,
		inbound: NewQueue[Inbound](),
		log:     logger.With("component", "transport", "service", dialer.String()),
	}
}

// Connect dials the service, retrying with backoff, and starts reading and
// writing.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	connected := t.sess != nil
	t.mu.Unlock()
	if connected {
		return ErrAlreadyConnected
	}

	t.opts.BackOff.Reset()

	conn, err := backoff.Retry(ctx,
		func() (Conn, error) {
			return t.dial(ctx)
		},
		backoff.WithBackOff(t.opts.BackOff),
		backoff.WithMaxTries(t.opts.ConnectRetries),
		backoff.WithNotify(func(err error, next time.Duration) {
			t.log.Warn("Connect attempt failed", "err", err, "retry_in", next)
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", t.dialer, err)
	}

	s := newSession(conn)

	t.mu.Lock()
	t.sess = s
	t.mu.Unlock()

	t.log.Info("Connected", "remote", conn.RemoteAddr())

	go t.readLoop(s)
	go t.writeLoop(s)

	return nil
}

func (t *Transport) dial(ctx context.Context) (Conn, error) {
	if t.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.ConnectTimeout)
		defer cancel()
	}

	conn, err := t.dialer.Dial(ctx)
	if err != nil {
		var permanent *PermanentError
		if errors.As(err, &permanent) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return conn, nil
}

// Send queues req for the writer and returns at once. It fails only when
// there is no connection; a write that fails later is reported through
// Poll as a connection loss.
func (t *Transport) Send(req *protocol.Request) error {
	t.mu.Lock()
	s := t.sess
	t.mu.Unlock()

	if s == nil || !s.outbound.Push(req) {
		return ErrNotConnected
	}
	return nil
}

func (t *Transport) Poll() []Inbound {
	return t.inbound.Drain()
}

// Close drops the connection without reporting it as lost and waits for
// the reader and writer to exit. Requests not yet written are discarded.
// The transport can be connected again afterwards.
func (t *Transport) Close() error {
	t.mu.Lock()
	s := t.sess
	t.sess = nil
	t.mu.Unlock()

	if s == nil {
		return nil
	}

	err := s.stop()
	<-s.readerC
	<-s.writerC

	t.log.Info("Connection closed")
	return err
}

func (t *Transport) readLoop(s *session) {
	defer close(s.readerC)

	for {
		data, err := s.conn.ReadFrame()
		if err != nil {
			kind := InboundDisconnected
			if errors.Is(err, protocol.ErrMalformedFrame) {
				kind = InboundMalformed
			}
			t.lost(s, kind, err)
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			t.lost(s, InboundMalformed, err)
			return
		}

		switch f := frame.(type) {
		case *protocol.Response:
			t.inbound.Push(Inbound{Kind: InboundResponse, Response: f})
		case *protocol.Event:
			t.inbound.Push(Inbound{Kind: InboundEvent, Event: f})
		default:
			t.lost(s, InboundMalformed, fmt.Errorf("%w: unexpected %s frame from service", protocol.ErrMalformedFrame, kindName(frame)))
			return
		}
	}
}

func (t *Transport) writeLoop(s *session) {
	defer close(s.writerC)

	for {
		select {
		case <-s.done:
			return
		case <-s.outbound.Ready():
		}

		for _, req := range s.outbound.Drain() {
			if err := t.write(s.conn, req); err != nil {
				t.lost(s, InboundDisconnected, fmt.Errorf("write request %d: %w", req.ID, err))
				return
			}
		}
	}
}

func (t *Transport) write(conn Conn, req *protocol.Request) error {
	if err := conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteFrame(req)
}

// lost reports the loss of s unless Close already took it away.
func (t *Transport) lost(s *session, kind InboundKind, err error) {
	t.mu.Lock()
	if t.sess != s {
		t.mu.Unlock()
		return
	}
	t.sess = nil
	t.mu.Unlock()

	_ = s.stop()

	t.log.Warn("Connection lost", "reason", kind, "err", err)
	t.inbound.Push(Inbound{Kind: kind, Err: err})
}

func kindName(f protocol.Frame) string {
	if _, ok := f.(*protocol.Request); ok {
		return "request"
	}
	return fmt.Sprintf("%T", f)
}

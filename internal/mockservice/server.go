package mockservice

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/al002/psmoveclient/internal/acceptor"
	"github.com/al002/psmoveclient/internal/log"
	"github.com/al002/psmoveclient/internal/protocol"
	"github.com/al002/psmoveclient/internal/transport"
)

var ErrClosed = errors.New("mock service closed")

type Options struct {
	Controllers       int
	DataFrameInterval time.Duration
	MaxFrameSize      int
}

// Server is a small tracking service speaking the client wire protocol.
// It serves any number of TCP listeners and WebSocket handlers at once.
type Server struct {
	opts Options

	mu          sync.Mutex
	sessions    map[*session]struct{}
	acceptors   []*acceptor.Acceptor
	httpServers []*http.Server
	controllers int
	silent      map[protocol.RequestType]bool
	duplicate   bool
	received    []protocol.Request
	closed      bool

	upgrader websocket.Upgrader
	newConnC chan net.Conn
	closeC   chan struct{}
	wg       sync.WaitGroup

	log *log.Logger
}

func New(logger *log.Logger, opts Options) *Server {
	if opts.DataFrameInterval <= 0 {
		opts.DataFrameInterval = 16 * time.Millisecond
	}
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = 1 << 20
	}

	s := &Server{
		opts:        opts,
		sessions:    make(map[*session]struct{}),
		controllers: opts.Controllers,
		silent:      make(map[protocol.RequestType]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		newConnC: make(chan net.Conn),
		closeC:   make(chan struct{}),
		log:      logger.With("component", "mockservice"),
	}

	s.wg.Add(1)
	go s.acceptLoop()

	return s
}

// ServeTCP accepts length prefixed connections on lis until Close.
func (s *Server) ServeTCP(lis net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	a := acceptor.New(lis, s.newConnC, s.log)
	s.acceptors = append(s.acceptors, a)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		a.Run()
	}()

	s.log.Info("Serving tcp", "listen", lis.Addr().String())
	return nil
}

// ServeWebSocket serves Handler at path on lis until Close.
func (s *Server) ServeWebSocket(lis net.Listener, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, s.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.httpServers = append(s.httpServers, srv)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Websocket server stopped", "err", err)
		}
	}()

	s.log.Info("Serving websocket", "listen", lis.Addr().String(), "path", path)
	return nil
}

// Handler upgrades requests to WebSocket sessions. The X-Client-Id
// header, when present, is attached to the session's log records.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("Websocket upgrade failed", "err", err)
			return
		}

		conn := transport.NewWebSocketConn(ws, s.opts.MaxFrameSize)
		sess := s.startSession(conn, r.Header.Get(transport.ClientIDHeader))
		if sess == nil {
			conn.Close()
			return
		}
		<-sess.doneC
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		select {
		case conn := <-s.newConnC:
			sc := transport.NewStreamConn(conn, s.opts.MaxFrameSize)
			if s.startSession(sc, "") == nil {
				sc.Close()
			}
		case <-s.closeC:
			return
		}
	}
}

func (s *Server) startSession(conn transport.Conn, clientID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	sess := newSession(s, conn, clientID)
	s.sessions[sess] = struct{}{}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.run()

		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
	}()

	return sess
}

// SetSilent makes the service swallow requests of type t without
// answering them.
func (s *Server) SetSilent(t protocol.RequestType, silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if silent {
		s.silent[t] = true
	} else {
		delete(s.silent, t)
	}
}

// SetDuplicateResponses makes every answer go out twice, as a
// retransmitting service would.
func (s *Server) SetDuplicateResponses(enabled bool) {
	s.mu.Lock()
	s.duplicate = enabled
	s.mu.Unlock()
}

// SetControllers changes the number of connected controllers and notifies
// every session.
func (s *Server) SetControllers(n int) {
	s.mu.Lock()
	s.controllers = n
	s.mu.Unlock()

	s.Broadcast(&protocol.Event{Type: protocol.EventControllerListUpdated})
}

// Broadcast writes f to every session as is.
func (s *Server) Broadcast(f protocol.Frame) {
	for _, sess := range s.snapshot() {
		if err := sess.conn.WriteFrame(f); err != nil {
			sess.log.Debug("Broadcast failed", "err", err)
		}
	}
}

// DropConnections closes every session without any goodbye.
func (s *Server) DropConnections() {
	for _, sess := range s.snapshot() {
		sess.close()
	}
}

// Received returns the requests seen so far, in arrival order.
func (s *Server) Received() []protocol.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Request(nil), s.received...)
}

func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	acceptors := s.acceptors
	httpServers := s.httpServers
	s.mu.Unlock()

	close(s.closeC)

	for _, a := range acceptors {
		a.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range httpServers {
		_ = srv.Shutdown(ctx)
	}

	s.DropConnections()
	s.wg.Wait()

	s.log.Info("Stopped")
	return nil
}

func (s *Server) snapshot() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// record notes req and returns the fault injection settings for it.
func (s *Server) record(req *protocol.Request) (silent, duplicate bool, controllers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, *req)
	return s.silent[req.Type], s.duplicate, s.controllers
}

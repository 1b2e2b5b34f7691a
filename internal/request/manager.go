package request

import (
	"errors"
	"math"
	"time"

	"github.com/al002/psmoveclient/internal/log"
	"github.com/al002/psmoveclient/internal/metrics"
	"github.com/al002/psmoveclient/internal/protocol"
)

var (
	ErrNilCallback    = errors.New("request callback is nil")
	ErrNilRequest     = errors.New("request is nil")
	ErrClosed         = errors.New("request manager closed")
	ErrTooManyPending = errors.New("no request id available")

	// Returned to callbacks that submit a new request while the manager is
	// canceling everything that is pending.
	ErrCanceling = errors.New("request manager is canceling pending requests")
)

// Sender hands a request to the wire. A failure is a connection problem:
// the transport reports it separately and the pending request is canceled
// when the loss is handled.
type Sender interface {
	Send(req *protocol.Request) error
}

// ResponseListener is what the transport side drives.
type ResponseListener interface {
	HandleResponse(resp *protocol.Response)
	HandleRequestCanceled()
}

var _ ResponseListener = (*Manager)(nil)

type Options struct {
	// Zero disables expiry.
	Timeout time.Duration
	// Panic on table invariant violations. Meant for debug builds and tests.
	StrictInvariants bool
	Metrics          *metrics.Metrics
	Now              func() time.Time
}

// Manager correlates requests with their responses and guarantees every
// request is resolved exactly once.
//
// Manager is not safe for concurrent use: every method, and every callback,
// runs on the goroutine that drives the client's poll loop.
type Manager struct {
	sender Sender
	table  *pendingTable
	nextID protocol.RequestID
	opts   Options

	closed    bool
	canceling bool

	log *log.Logger
}

func NewManager(sender Sender, logger *log.Logger, opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Manager{
		sender: sender,
		table:  newPendingTable(),
		opts:   opts,
		log:    logger.With("component", "request_manager"),
	}
}

// SendRequest assigns the next free id to req, records it as pending and
// passes a copy to the sender. It never blocks on the network. req.Body must
// not be modified afterwards.
func (m *Manager) SendRequest(req *protocol.Request, cb Callback) (protocol.RequestID, error) {
	switch {
	case req == nil:
		return protocol.InvalidRequestID, ErrNilRequest
	case cb == nil:
		return protocol.InvalidRequestID, ErrNilCallback
	case m.closed:
		return protocol.InvalidRequestID, ErrClosed
	case m.canceling:
		return protocol.InvalidRequestID, ErrCanceling
	}

	id, err := m.allocateID()
	if err != nil {
		return protocol.InvalidRequestID, err
	}

	now := m.opts.Now()
	rec := &record{
		id:          id,
		requestType: req.Type,
		callback:    cb,
		state:       StatePending,
		sentAt:      now,
	}
	if m.opts.Timeout > 0 {
		rec.deadline = now.Add(m.opts.Timeout)
	}

	if err := m.table.insert(rec); err != nil {
		m.invariantViolation(err, id)
		return protocol.InvalidRequestID, err
	}

	out := *req
	out.ID = id

	m.opts.Metrics.RequestSent(req.Type)
	m.opts.Metrics.Pending(m.table.len())

	if err := m.sender.Send(&out); err != nil {
		m.log.Warn(
			"Send failed, request stays pending until the connection loss is handled",
			"request_id", id,
			"type", req.Type,
			"err", err,
		)
	} else {
		m.log.Debug("Request sent", "request_id", id, "type", req.Type)
	}

	return id, nil
}

// HandleResponse resolves the request resp answers. Responses for unknown
// or already resolved ids are expected under retransmission and are
// dropped.
func (m *Manager) HandleResponse(resp *protocol.Response) {
	if resp == nil {
		return
	}

	rec := m.table.take(resp.RequestID)
	if rec == nil {
		m.opts.Metrics.ResponseUnmatched()
		m.log.Debug(
			"Unmatched response",
			"request_id", resp.RequestID,
			"result", resp.Result,
		)
		return
	}

	rec.state = StateCompleted
	m.resolve(rec, resp.Result, resp)
}

// HandleRequestCanceled resolves every pending request with ResultCanceled.
// The table is empty when it returns; callbacks run in ascending id order
// and cannot submit new requests meanwhile.
func (m *Manager) HandleRequestCanceled() {
	if m.canceling || m.table.len() == 0 {
		return
	}

	m.canceling = true
	defer func() { m.canceling = false }()

	pending := m.table.drain()
	m.log.Debug("Canceling pending requests", "count", len(pending))

	for _, rec := range pending {
		rec.state = StateCanceled
		m.resolve(rec, protocol.ResultCanceled, nil)
	}
}

// ExpireTimeouts resolves every request whose deadline passed with
// ResultTimeout and returns how many there were. Without a configured
// timeout it does nothing.
func (m *Manager) ExpireTimeouts(now time.Time) int {
	if m.opts.Timeout <= 0 || m.table.len() == 0 {
		return 0
	}

	expired := m.table.takeExpired(now)
	for _, rec := range expired {
		rec.state = StateCanceled
		m.log.Debug("Request timed out", "request_id", rec.id, "type", rec.requestType)
		m.resolve(rec, protocol.ResultTimeout, nil)
	}
	return len(expired)
}

// Close cancels whatever is still pending and rejects later submissions.
// Calling it again is a no-op.
func (m *Manager) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.HandleRequestCanceled()
}

// Pending returns the number of outstanding requests.
func (m *Manager) Pending() int {
	return m.table.len()
}

// IsPending reports whether id is outstanding.
func (m *Manager) IsPending(id protocol.RequestID) bool {
	return m.table.contains(id)
}

func (m *Manager) resolve(rec *record, result protocol.ResultCode, resp *protocol.Response) {
	m.opts.Metrics.RequestResolved(result)
	m.opts.Metrics.Pending(m.table.len())

	m.log.Debug(
		"Request resolved",
		"request_id", rec.id,
		"type", rec.requestType,
		"state", rec.state,
		"result", result,
		"elapsed", m.opts.Now().Sub(rec.sentAt),
	)

	rec.callback(result, rec.id, resp)
}

// allocateID returns the next id after the previous one that is neither
// zero nor still pending, wrapping around at the top of the range.
func (m *Manager) allocateID() (protocol.RequestID, error) {
	if uint64(m.table.len()) >= math.MaxUint32-1 {
		return protocol.InvalidRequestID, ErrTooManyPending
	}

	for {
		m.nextID++
		if m.nextID == protocol.InvalidRequestID {
			continue
		}
		if !m.table.contains(m.nextID) {
			return m.nextID, nil
		}
	}
}

func (m *Manager) invariantViolation(err error, id protocol.RequestID) {
	if m.opts.StrictInvariants {
		panic(err)
	}
	m.log.Error("Request table invariant violated", "request_id", id, "err", err)
}

package request

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/al002/psmoveclient/internal/protocol"
)

var (
	ErrDuplicateID = errors.New("request id already pending")
	ErrInvalidID   = errors.New("invalid request id")
)

type State int

const (
	StatePending State = iota
	StateCompleted
	StateCanceled
)

var stateNames = [...]string{
	"pending",
	"completed",
	"canceled",
}

func (s State) String() string {
	return stateNames[s]
}

// record is an in-flight request. The request body went to the transport;
// only what is needed to resolve the request is kept here.
type record struct {
	id          protocol.RequestID
	requestType protocol.RequestType
	callback    Callback
	state       State
	sentAt      time.Time
	// zero when the request never expires
	deadline time.Time
}

// pendingTable maps request ids to in-flight records. It owns no transport
// knowledge and is not safe for concurrent use.
type pendingTable struct {
	records map[protocol.RequestID]*record
}

func newPendingTable() *pendingTable {
	return &pendingTable{records: make(map[protocol.RequestID]*record)}
}

func (t *pendingTable) insert(r *record) error {
	if r.id == protocol.InvalidRequestID {
		return ErrInvalidID
	}
	if _, ok := t.records[r.id]; ok {
		return ErrDuplicateID
	}
	t.records[r.id] = r
	return nil
}

// take removes and returns the record for id, or nil.
func (t *pendingTable) take(id protocol.RequestID) *record {
	r, ok := t.records[id]
	if !ok {
		return nil
	}
	delete(t.records, id)
	return r
}

func (t *pendingTable) contains(id protocol.RequestID) bool {
	_, ok := t.records[id]
	return ok
}

func (t *pendingTable) len() int {
	return len(t.records)
}

// drain empties the table and returns every record by ascending id.
func (t *pendingTable) drain() []*record {
	out := make([]*record, 0, len(t.records))
	for id, r := range t.records {
		out = append(out, r)
		delete(t.records, id)
	}
	sortByID(out)
	return out
}

// takeExpired removes and returns the records whose deadline is not after
// now, by ascending id.
func (t *pendingTable) takeExpired(now time.Time) []*record {
	var out []*record
	for id, r := range t.records {
		if r.deadline.IsZero() || r.deadline.After(now) {
			continue
		}
		out = append(out, r)
		delete(t.records, id)
	}
	sortByID(out)
	return out
}

func sortByID(records []*record) {
	slices.SortFunc(records, func(a, b *record) int {
		return cmp.Compare(a.id, b.id)
	})
}

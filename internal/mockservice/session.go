package mockservice

import (
	"math"
	"sync"
	"time"

	"github.com/al002/psmoveclient/internal/log"
	"github.com/al002/psmoveclient/internal/protocol"
	"github.com/al002/psmoveclient/internal/transport"
)

type session struct {
	server *Server
	conn   transport.Conn

	mu        sync.Mutex
	streaming map[int32]uint32 // controller id -> last sequence

	closeOnce sync.Once
	closeC    chan struct{}
	doneC     chan struct{}

	log *log.Logger
}

func newSession(s *Server, conn transport.Conn, clientID string) *session {
	l := s.log.With("remote", conn.RemoteAddr().String())
	if clientID != "" {
		l = l.With("client_id", clientID)
	}

	return &session{
		server:    s,
		conn:      conn,
		streaming: make(map[int32]uint32),
		closeC:    make(chan struct{}),
		doneC:     make(chan struct{}),
		log:       l,
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.closeC)
		s.conn.Close()
	})
}

func (s *session) run() {
	defer close(s.doneC)
	defer s.close()

	s.log.Debug("Session started")

	streamDoneC := make(chan struct{})
	go func() {
		defer close(streamDoneC)
		s.streamLoop()
	}()

	for {
		data, err := s.conn.ReadFrame()
		if err != nil {
			s.log.Debug("Session ended", "err", err)
			break
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			s.log.Warn("Dropping client sending malformed frames", "err", err)
			break
		}

		req, ok := frame.(*protocol.Request)
		if !ok {
			s.log.Warn("Dropping client sending non request frames", "kind", frame.Kind())
			break
		}

		s.handle(req)
	}

	s.close()
	<-streamDoneC
}

func (s *session) handle(req *protocol.Request) {
	silent, duplicate, controllers := s.server.record(req)

	l := s.log.With("request_id", req.ID, "type", req.Type)
	if silent {
		l.Debug("Swallowing request")
		return
	}

	resp := s.answer(req, controllers)
	resp.RequestID = req.ID

	l.Debug("Answering", "result", resp.Result)

	sends := 1
	if duplicate {
		sends = 2
	}
	for range sends {
		if err := s.conn.WriteFrame(resp); err != nil {
			l.Debug("Write failed", "err", err)
			return
		}
	}
}

func (s *session) answer(req *protocol.Request, controllers int) *protocol.Response {
	switch req.Type {
	case protocol.RequestGetControllerList:
		list := protocol.ControllerList{Controllers: make([]protocol.ControllerInfo, 0, controllers)}
		for i := range controllers {
			list.Controllers = append(list.Controllers, protocol.ControllerInfo{
				ControllerID: int32(i),
				Type:         controllerType(i),
			})
		}
		body, err := list.MarshalBinary()
		if err != nil {
			return &protocol.Response{Result: protocol.ResultError}
		}
		return &protocol.Response{Result: protocol.ResultOK, Body: body}

	case protocol.RequestStartControllerDataStream, protocol.RequestStopControllerDataStream,
		protocol.RequestResetPose, protocol.RequestCycleTrackingColor:
		var body protocol.ControllerRequest
		if err := protocol.UnmarshalFixed(req.Body, &body); err != nil {
			return &protocol.Response{Result: protocol.ResultMalformedRequest}
		}
		if body.ControllerID < 0 || int(body.ControllerID) >= controllers {
			return &protocol.Response{Result: protocol.ResultError}
		}

		switch req.Type {
		case protocol.RequestStartControllerDataStream:
			s.setStreaming(body.ControllerID, true)
		case protocol.RequestStopControllerDataStream:
			s.setStreaming(body.ControllerID, false)
		}
		return &protocol.Response{Result: protocol.ResultOK}

	case protocol.RequestSetRumble:
		var body protocol.RumbleRequest
		if err := protocol.UnmarshalFixed(req.Body, &body); err != nil {
			return &protocol.Response{Result: protocol.ResultMalformedRequest}
		}
		if body.ControllerID < 0 || int(body.ControllerID) >= controllers {
			return &protocol.Response{Result: protocol.ResultError}
		}
		return &protocol.Response{Result: protocol.ResultOK}
	}

	if req.Type >= protocol.RequestTypeOpaqueBase {
		return &protocol.Response{Result: protocol.ResultOK, Body: req.Body}
	}

	return &protocol.Response{Result: protocol.ResultMalformedRequest}
}

func (s *session) setStreaming(id int32, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !on {
		delete(s.streaming, id)
		return
	}
	if _, ok := s.streaming[id]; !ok {
		s.streaming[id] = 0
	}
}

func (s *session) streamLoop() {
	ticker := time.NewTicker(s.server.opts.DataFrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, frame := range s.nextFrames() {
				body, err := protocol.MarshalFixed(frame)
				if err != nil {
					s.log.Error("Encode data frame", "err", err)
					continue
				}
				if err := s.conn.WriteFrame(&protocol.Event{Type: protocol.EventControllerDataFrame, Body: body}); err != nil {
					return
				}
			}
		case <-s.closeC:
			return
		}
	}
}

func (s *session) nextFrames() []*protocol.DataFrame {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := make([]*protocol.DataFrame, 0, len(s.streaming))
	for id, seq := range s.streaming {
		seq++
		s.streaming[id] = seq
		frames = append(frames, syntheticFrame(id, seq))
	}
	return frames
}

// syntheticFrame moves the controller on a slow circle so consumers see
// changing positions.
func syntheticFrame(id int32, seq uint32) *protocol.DataFrame {
	angle := float64(seq) * math.Pi / 90
	half := angle / 2

	return &protocol.DataFrame{
		ControllerID: id,
		Sequence:     seq,
		Type:         controllerType(int(id)),
		Tracking:     1,
		Position: protocol.Vector3{
			X: float32(20 * math.Cos(angle)),
			Y: 100,
			Z: float32(20 * math.Sin(angle)),
		},
		Orientation: protocol.Quaternion{
			W: float32(math.Cos(half)),
			Y: float32(math.Sin(half)),
		},
		Buttons: seq / 60 % 2,
		Trigger: uint8(seq),
	}
}

// Every fourth controller is a navigation controller.
func controllerType(i int) protocol.ControllerType {
	if i%4 == 3 {
		return protocol.ControllerPSNavi
	}
	return protocol.ControllerPSMove
}

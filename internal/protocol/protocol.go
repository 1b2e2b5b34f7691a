package protocol

import "fmt"

// Correlates a request with its response. Zero is never assigned.
type RequestID uint32

const InvalidRequestID RequestID = 0

type RequestType uint16

const (
	RequestGetControllerList RequestType = iota + 1
	RequestStartControllerDataStream
	RequestStopControllerDataStream
	RequestSetRumble
	RequestResetPose
	RequestCycleTrackingColor
)

// Request types at or above this value are passed through untouched by
// the client and are meant for service specific extensions.
const RequestTypeOpaqueBase RequestType = 0x8000

var requestTypeNames = [...]string{
	RequestGetControllerList:         "get_controller_list",
	RequestStartControllerDataStream: "start_controller_data_stream",
	RequestStopControllerDataStream:  "stop_controller_data_stream",
	RequestSetRumble:                 "set_rumble",
	RequestResetPose:                 "reset_pose",
	RequestCycleTrackingColor:        "cycle_tracking_color",
}

func (t RequestType) String() string {
	if t >= RequestTypeOpaqueBase {
		return fmt.Sprintf("opaque_%d", uint16(t-RequestTypeOpaqueBase))
	}
	if int(t) < len(requestTypeNames) && requestTypeNames[t] != "" {
		return requestTypeNames[t]
	}
	return fmt.Sprintf("request_type_%d", uint16(t))
}

type ResultCode uint16

// Codes a remote service may send.
const (
	ResultOK ResultCode = iota
	ResultError
	ResultMalformedRequest
	ResultUnauthorized
)

// Codes produced locally by the client. They are never valid on the wire.
const (
	ResultCanceled ResultCode = 0xff00 + iota
	ResultTimeout
)

const resultLocalBase ResultCode = 0xff00

// IsLocal reports whether c is one of the client-side codes (canceled,
// timeout) rather than a result sent by the service.
func (c ResultCode) IsLocal() bool {
	return c >= resultLocalBase
}

func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "ok"
	case ResultError:
		return "error"
	case ResultMalformedRequest:
		return "malformed_request"
	case ResultUnauthorized:
		return "unauthorized"
	case ResultCanceled:
		return "canceled"
	case ResultTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("result_%d", uint16(c))
	}
}

type EventType uint16

const (
	EventControllerListUpdated EventType = iota + 1
	EventControllerDataFrame
)

const EventTypeOpaqueBase EventType = 0x8000

func (t EventType) String() string {
	switch {
	case t == EventControllerListUpdated:
		return "controller_list_updated"
	case t == EventControllerDataFrame:
		return "controller_data_frame"
	case t >= EventTypeOpaqueBase:
		return fmt.Sprintf("opaque_%d", uint16(t-EventTypeOpaqueBase))
	default:
		return fmt.Sprintf("event_type_%d", uint16(t))
	}
}

// Request is an outgoing request. ID is assigned by the request manager
// at submission time; Body is opaque to everything but the service.
type Request struct {
	ID   RequestID
	Type RequestType
	Body []byte
}

func (r *Request) Kind() FrameKind {
	return KindRequest
}

// Response echoes the ID of the request it answers.
type Response struct {
	RequestID RequestID
	Result    ResultCode
	Body      []byte
}

func (r *Response) Kind() FrameKind {
	return KindResponse
}

// Event is an unsolicited notification. It carries no request id.
type Event struct {
	Type EventType
	Body []byte
}

func (e *Event) Kind() FrameKind {
	return KindEvent
}

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Payload bodies understood by the client façade, the controller views and
// the mock service. The request manager never looks at them.

var ErrMalformedPayload = errors.New("malformed payload")

type ControllerType uint8

const (
	ControllerPSMove ControllerType = iota
	ControllerPSNavi
)

func (t ControllerType) String() string {
	switch t {
	case ControllerPSMove:
		return "psmove"
	case ControllerPSNavi:
		return "psnavi"
	default:
		return fmt.Sprintf("controller_type_%d", uint8(t))
	}
}

type ControllerInfo struct {
	ControllerID int32
	Type         ControllerType
}

type ControllerList struct {
	Controllers []ControllerInfo
}

func (l *ControllerList) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := write(&buf, uint32(len(l.Controllers))); err != nil {
		return nil, err
	}
	if err := write(&buf, l.Controllers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (l *ControllerList) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	var count uint32
	if err := read(r, &count); err != nil {
		return fmt.Errorf("%w: controller count: %v", ErrMalformedPayload, err)
	}

	entrySize := binary.Size(ControllerInfo{})
	if int64(r.Len()) != int64(count)*int64(entrySize) {
		return fmt.Errorf("%w: %d controllers in %d bytes", ErrMalformedPayload, count, r.Len())
	}

	l.Controllers = make([]ControllerInfo, count)
	if err := read(r, l.Controllers); err != nil {
		return fmt.Errorf("%w: controllers: %v", ErrMalformedPayload, err)
	}
	return nil
}

// ControllerRequest is the body of every request that targets a single
// controller and carries no other argument.
type ControllerRequest struct {
	ControllerID int32
}

type RumbleRequest struct {
	ControllerID int32
	// 0 (off) to 1 (full)
	Rumble float32
}

type Vector3 struct {
	X, Y, Z float32
}

type Quaternion struct {
	W, X, Y, Z float32
}

// DataFrame is one sample of streamed controller state.
type DataFrame struct {
	ControllerID int32
	Sequence     uint32
	Type         ControllerType
	Tracking     uint8
	Position     Vector3
	Orientation  Quaternion
	Buttons      uint32
	Trigger      uint8
}

func (f *DataFrame) IsTracking() bool {
	return f.Tracking != 0
}

// MarshalFixed encodes a fixed size payload (ControllerRequest,
// RumbleRequest, DataFrame).
func MarshalFixed(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := write(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalFixed decodes data into v, which must point to a fixed size
// payload. The body length has to match exactly.
func UnmarshalFixed(data []byte, v any) error {
	if size := binary.Size(v); size < 0 || size != len(data) {
		return fmt.Errorf("%w: %T needs %d bytes, got %d", ErrMalformedPayload, v, size, len(data))
	}
	if err := read(bytes.NewReader(data), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func mustMarshalFixed(v any) []byte {
	b, err := MarshalFixed(v)
	if err != nil {
		panic(err)
	}
	return b
}

// NewControllerRequest builds a request whose body is a ControllerRequest.
func NewControllerRequest(t RequestType, controllerID int) *Request {
	return &Request{
		Type: t,
		Body: mustMarshalFixed(ControllerRequest{ControllerID: int32(controllerID)}),
	}
}

func NewRumbleRequest(controllerID int, rumble float32) *Request {
	if rumble < 0 {
		rumble = 0
	} else if rumble > 1 {
		rumble = 1
	}

	return &Request{
		Type: RequestSetRumble,
		Body: mustMarshalFixed(RumbleRequest{ControllerID: int32(controllerID), Rumble: rumble}),
	}
}

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

type FrameKind uint8

const (
	KindRequest FrameKind = iota + 1
	KindResponse
	KindEvent
)

// Frame is anything that travels on the connection.
type Frame interface {
	Kind() FrameKind
}

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrFrameTooLarge  = fmt.Errorf("%w: frame too large", ErrMalformedFrame)
)

type requestHeader struct {
	Kind FrameKind
	ID   RequestID
	Type RequestType
}

type responseHeader struct {
	Kind      FrameKind
	RequestID RequestID
	Result    ResultCode
}

type eventHeader struct {
	Kind FrameKind
	Type EventType
}

// Encode returns the binary form of f without any length prefix.
func Encode(f Frame) ([]byte, error) {
	var buf bytes.Buffer

	var header any
	var body []byte

	switch v := f.(type) {
	case *Request:
		header = requestHeader{Kind: KindRequest, ID: v.ID, Type: v.Type}
		body = v.Body
	case *Response:
		header = responseHeader{Kind: KindResponse, RequestID: v.RequestID, Result: v.Result}
		body = v.Body
	case *Event:
		header = eventHeader{Kind: KindEvent, Type: v.Type}
		body = v.Body
	default:
		return nil, fmt.Errorf("cannot encode frame of type %T", f)
	}

	if err := write(&buf, header); err != nil {
		return nil, err
	}
	buf.Write(body)

	return buf.Bytes(), nil
}

// Decode parses a frame produced by Encode. Every failure wraps
// ErrMalformedFrame.
func Decode(data []byte) (Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedFrame)
	}

	r := bytes.NewReader(data)

	switch kind := FrameKind(data[0]); kind {
	case KindRequest:
		var h requestHeader
		if err := read(r, &h); err != nil {
			return nil, fmt.Errorf("%w: request header: %v", ErrMalformedFrame, err)
		}
		return &Request{ID: h.ID, Type: h.Type, Body: rest(data, h)}, nil
	case KindResponse:
		var h responseHeader
		if err := read(r, &h); err != nil {
			return nil, fmt.Errorf("%w: response header: %v", ErrMalformedFrame, err)
		}
		if h.Result.IsLocal() {
			return nil, fmt.Errorf("%w: reserved result code %d", ErrMalformedFrame, h.Result)
		}
		return &Response{RequestID: h.RequestID, Result: h.Result, Body: rest(data, h)}, nil
	case KindEvent:
		var h eventHeader
		if err := read(r, &h); err != nil {
			return nil, fmt.Errorf("%w: event header: %v", ErrMalformedFrame, err)
		}
		return &Event{Type: h.Type, Body: rest(data, h)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame kind %d", ErrMalformedFrame, kind)
	}
}

// rest copies whatever follows header so the frame does not alias the
// read buffer.
func rest(data []byte, header any) []byte {
	tail := data[binary.Size(header):]
	if len(tail) == 0 {
		return nil
	}
	return append([]byte(nil), tail...)
}

// WriteFrame writes f to w prefixed by its length, in a single Write call.
func WriteFrame(w io.Writer, f Frame) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}

	out := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(out, uint32(len(data)))
	copy(out[4:], data)

	_, err = w.Write(out)
	return err
}

// ReadFrame reads one length prefixed frame from r without decoding it.
// I/O errors are returned as is; a length above maxSize returns
// ErrFrameTooLarge.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var length uint32
	if err := read(r, &length); err != nil {
		return nil, err
	}

	if maxSize > 0 && int64(length) > int64(maxSize) {
		return nil, ErrFrameTooLarge
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return data, nil
}

func write(w io.Writer, data any) error {
	return binary.Write(w, binary.BigEndian, data)
}

func read(r io.Reader, data any) error {
	return binary.Read(r, binary.BigEndian, data)
}

package transport

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/al002/psmoveclient/internal/protocol"
)

var ErrUnexpectedMessageType = fmt.Errorf("%w: not a binary websocket message", protocol.ErrMalformedFrame)

const closeWriteTimeout = time.Second

// Conn moves whole frames. ReadFrame is called from one goroutine;
// WriteFrame may be called concurrently with it.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(f protocol.Frame) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
	Close() error
}

// StreamConn frames a byte stream with a uint32 length prefix.
type StreamConn struct {
	conn    net.Conn
	r       *bufio.Reader
	maxSize int

	writeMu sync.Mutex
}

var _ Conn = (*StreamConn)(nil)

func NewStreamConn(conn net.Conn, maxSize int) *StreamConn {
	return &StreamConn{
		conn:    conn,
		r:       bufio.NewReader(conn),
		maxSize: maxSize,
	}
}

func (c *StreamConn) ReadFrame() ([]byte, error) {
	return protocol.ReadFrame(c.r, c.maxSize)
}

func (c *StreamConn) WriteFrame(f protocol.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteFrame(c.conn, f)
}

func (c *StreamConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *StreamConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *StreamConn) Close() error {
	return c.conn.Close()
}

// WebSocketConn carries one frame per binary message.
type WebSocketConn struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

var _ Conn = (*WebSocketConn)(nil)

func NewWebSocketConn(conn *websocket.Conn, maxSize int) *WebSocketConn {
	if maxSize > 0 {
		conn.SetReadLimit(int64(maxSize))
	}
	return &WebSocketConn{conn: conn}
}

func (c *WebSocketConn) ReadFrame() ([]byte, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		if errors.Is(err, websocket.ErrReadLimit) {
			return nil, protocol.ErrFrameTooLarge
		}
		return nil, err
	}

	if messageType != websocket.BinaryMessage {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedMessageType, messageType)
	}

	return data, nil
}

func (c *WebSocketConn) WriteFrame(f protocol.Frame) error {
	data, err := protocol.Encode(f)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *WebSocketConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *WebSocketConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close says goodbye when no write is in flight. A writer stuck on a peer
// that stopped reading is unblocked by closing the socket underneath it.
func (c *WebSocketConn) Close() error {
	if c.writeMu.TryLock() {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWriteTimeout),
		)
		c.writeMu.Unlock()
	}
	return c.conn.Close()
}

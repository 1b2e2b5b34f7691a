package client

import (
	"errors"

	"github.com/al002/psmoveclient/internal/controller"
	"github.com/al002/psmoveclient/internal/protocol"
	"github.com/al002/psmoveclient/internal/request"
)

var (
	ErrNilView       = errors.New("controller view is nil")
	ErrNotOpaqueType = errors.New("request type is not in the opaque range")
	ErrUnknownView   = errors.New("controller view not allocated by this client")
)

// ControllerListCallback receives the decoded controller list. err is set
// when the response body could not be decoded, in which case result is
// ResultError.
type ControllerListCallback func(result protocol.ResultCode, id protocol.RequestID, list protocol.ControllerList, err error)

func (c *Client) GetControllerList(cb ControllerListCallback) (protocol.RequestID, error) {
	if cb == nil {
		return protocol.InvalidRequestID, request.ErrNilCallback
	}

	decode := func(body []byte) (protocol.ControllerList, error) {
		var list protocol.ControllerList
		err := list.UnmarshalBinary(body)
		return list, err
	}

	return c.SendRequest(
		&protocol.Request{Type: protocol.RequestGetControllerList},
		request.Decoded[protocol.ControllerList](decode, cb),
	)
}

// AllocateControllerView returns the view of controllerID, creating it on
// first use. Data frames for the controller update it once its stream was
// started. Every allocation needs a matching FreeControllerView.
func (c *Client) AllocateControllerView(controllerID int) *controller.View {
	v, ok := c.views[controllerID]
	if !ok {
		v = controller.NewView(controllerID)
		c.views[controllerID] = v
	}
	v.Acquire()
	return v
}

func (c *Client) FreeControllerView(v *controller.View) error {
	if v == nil {
		return ErrNilView
	}
	if c.views[v.ControllerID()] != v {
		return ErrUnknownView
	}
	if v.Release() {
		delete(c.views, v.ControllerID())
	}
	return nil
}

// View returns the allocated view of controllerID, if any.
func (c *Client) View(controllerID int) (*controller.View, bool) {
	v, ok := c.views[controllerID]
	return v, ok
}

func (c *Client) StartControllerDataStream(v *controller.View, cb request.Callback) (protocol.RequestID, error) {
	return c.sendControllerRequest(protocol.RequestStartControllerDataStream, v, cb)
}

func (c *Client) StopControllerDataStream(v *controller.View, cb request.Callback) (protocol.RequestID, error) {
	return c.sendControllerRequest(protocol.RequestStopControllerDataStream, v, cb)
}

func (c *Client) ResetPose(v *controller.View, cb request.Callback) (protocol.RequestID, error) {
	return c.sendControllerRequest(protocol.RequestResetPose, v, cb)
}

func (c *Client) CycleTrackingColor(v *controller.View, cb request.Callback) (protocol.RequestID, error) {
	return c.sendControllerRequest(protocol.RequestCycleTrackingColor, v, cb)
}

// SetControllerRumble sets the rumble strength, clamped to 0..1.
func (c *Client) SetControllerRumble(v *controller.View, rumble float32, cb request.Callback) (protocol.RequestID, error) {
	if v == nil {
		return protocol.InvalidRequestID, ErrNilView
	}
	return c.SendRequest(protocol.NewRumbleRequest(v.ControllerID(), rumble), cb)
}

// SendOpaqueRequest passes body to the service untouched. The response
// body reaches cb as is.
func (c *Client) SendOpaqueRequest(t protocol.RequestType, body []byte, cb request.Callback) (protocol.RequestID, error) {
	if t < protocol.RequestTypeOpaqueBase {
		return protocol.InvalidRequestID, ErrNotOpaqueType
	}
	return c.SendRequest(&protocol.Request{Type: t, Body: body}, cb)
}

func (c *Client) sendControllerRequest(t protocol.RequestType, v *controller.View, cb request.Callback) (protocol.RequestID, error) {
	if v == nil {
		return protocol.InvalidRequestID, ErrNilView
	}
	return c.SendRequest(protocol.NewControllerRequest(t, v.ControllerID()), cb)
}

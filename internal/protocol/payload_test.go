package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerList(t *testing.T) {
	list := ControllerList{Controllers: []ControllerInfo{
		{ControllerID: 0, Type: ControllerPSMove},
		{ControllerID: 1, Type: ControllerPSNavi},
	}}

	data, err := list.MarshalBinary()
	require.NoError(t, err)

	var decoded ControllerList
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, list, decoded)
}

func TestControllerListEmpty(t *testing.T) {
	data, err := (&ControllerList{}).MarshalBinary()
	require.NoError(t, err)

	var decoded ControllerList
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Empty(t, decoded.Controllers)
}

func TestControllerListRejectsBadLength(t *testing.T) {
	data, err := (&ControllerList{Controllers: []ControllerInfo{{ControllerID: 4}}}).MarshalBinary()
	require.NoError(t, err)

	var decoded ControllerList
	assert.ErrorIs(t, decoded.UnmarshalBinary(data[:len(data)-1]), ErrMalformedPayload)
	assert.ErrorIs(t, decoded.UnmarshalBinary(nil), ErrMalformedPayload)
}

func TestDataFrameFixedEncoding(t *testing.T) {
	frame := DataFrame{
		ControllerID: 2,
		Sequence:     77,
		Type:         ControllerPSMove,
		Tracking:     1,
		Position:     Vector3{X: 1.5, Y: -2, Z: 30},
		Orientation:  Quaternion{W: 1},
		Buttons:      0x5,
		Trigger:      200,
	}

	data, err := MarshalFixed(&frame)
	require.NoError(t, err)

	var decoded DataFrame
	require.NoError(t, UnmarshalFixed(data, &decoded))
	assert.Equal(t, frame, decoded)
	assert.True(t, decoded.IsTracking())

	assert.ErrorIs(t, UnmarshalFixed(data[1:], &decoded), ErrMalformedPayload)
}

func TestNewRumbleRequestClamps(t *testing.T) {
	var body RumbleRequest

	require.NoError(t, UnmarshalFixed(NewRumbleRequest(1, 3).Body, &body))
	assert.Equal(t, float32(1), body.Rumble)
	assert.Equal(t, int32(1), body.ControllerID)

	require.NoError(t, UnmarshalFixed(NewRumbleRequest(1, -0.5).Body, &body))
	assert.Equal(t, float32(0), body.Rumble)
}

func TestNewControllerRequest(t *testing.T) {
	req := NewControllerRequest(RequestResetPose, 3)
	assert.Equal(t, RequestResetPose, req.Type)
	assert.Equal(t, InvalidRequestID, req.ID)

	var body ControllerRequest
	require.NoError(t, UnmarshalFixed(req.Body, &body))
	assert.Equal(t, int32(3), body.ControllerID)
}

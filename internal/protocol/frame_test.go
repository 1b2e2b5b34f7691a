package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrames(t *testing.T) {
	testCases := []struct {
		name  string
		frame Frame
	}{
		{
			name:  "Request",
			frame: &Request{ID: 42, Type: RequestStartControllerDataStream, Body: []byte{0, 0, 0, 1}},
		},
		{
			name:  "Request without body",
			frame: &Request{ID: 1, Type: RequestGetControllerList},
		},
		{
			name:  "Response",
			frame: &Response{RequestID: 42, Result: ResultUnauthorized, Body: []byte("nope")},
		},
		{
			name:  "Event",
			frame: &Event{Type: EventControllerDataFrame, Body: []byte{9, 8, 7}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Encode(tc.frame)
			require.NoError(t, err)
			assert.Equal(t, byte(tc.frame.Kind()), data[0])

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tc.frame, decoded)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	reserved, err := Encode(&Response{RequestID: 3, Result: ResultCanceled})
	require.NoError(t, err)

	testCases := []struct {
		name  string
		input []byte
	}{
		{name: "Empty", input: nil},
		{name: "Unknown kind", input: []byte{0x7f, 0, 0}},
		{name: "Truncated request header", input: []byte{byte(KindRequest), 0, 0, 1}},
		{name: "Truncated event header", input: []byte{byte(KindEvent), 1}},
		{name: "Reserved result code on the wire", input: reserved},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.input)
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestDecodeDoesNotAliasInput(t *testing.T) {
	data, err := Encode(&Response{RequestID: 1, Result: ResultOK, Body: []byte{1, 2, 3}})
	require.NoError(t, err)

	frame, err := Decode(data)
	require.NoError(t, err)

	data[len(data)-1] = 0xff
	assert.Equal(t, []byte{1, 2, 3}, frame.(*Response).Body)
}

func TestReadWriteFrame(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteFrame(&buf, &Request{ID: 1, Type: RequestResetPose}))
	require.NoError(t, WriteFrame(&buf, &Event{Type: EventControllerListUpdated}))

	first, err := ReadFrame(&buf, 1024)
	require.NoError(t, err)
	f, err := Decode(first)
	require.NoError(t, err)
	assert.Equal(t, &Request{ID: 1, Type: RequestResetPose}, f)

	second, err := ReadFrame(&buf, 1024)
	require.NoError(t, err)
	f, err = Decode(second)
	require.NoError(t, err)
	assert.Equal(t, &Event{Type: EventControllerListUpdated}, f)

	_, err = ReadFrame(&buf, 1024)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameLimits(t *testing.T) {
	t.Run("Too large", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(4096)))

		_, err := ReadFrame(&buf, 1024)
		assert.ErrorIs(t, err, ErrFrameTooLarge)
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})

	t.Run("Truncated body", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(10)))
		buf.Write([]byte{1, 2, 3})

		_, err := ReadFrame(&buf, 1024)
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	})
}

func TestResultCodeIsLocal(t *testing.T) {
	assert.False(t, ResultOK.IsLocal())
	assert.False(t, ResultError.IsLocal())
	assert.False(t, ResultUnauthorized.IsLocal())
	assert.True(t, ResultCanceled.IsLocal())
	assert.True(t, ResultTimeout.IsLocal())
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, "get_controller_list", RequestGetControllerList.String())
	assert.Equal(t, "opaque_3", (RequestTypeOpaqueBase + 3).String())
	assert.Equal(t, "request_type_999", RequestType(999).String())
	assert.Equal(t, "canceled", ResultCanceled.String())
	assert.Equal(t, "controller_data_frame", EventControllerDataFrame.String())
}

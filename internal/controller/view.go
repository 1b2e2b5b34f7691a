package controller

import (
	"time"

	"github.com/al002/psmoveclient/internal/protocol"
)

const (
	fpsWindow     = time.Second
	fpsMaxSamples = 120
)

// View mirrors the state of one controller as streamed by the service.
// It is updated from the client's poll loop and is not safe for
// concurrent use.
type View struct {
	controllerID int
	frame        protocol.DataFrame
	hasFrame     bool
	lastUpdate   time.Time

	// arrival times of the most recent frames, oldest first
	samples []time.Time

	refs int
}

func NewView(controllerID int) *View {
	return &View{controllerID: controllerID}
}

// ApplyDataFrame records frame as received at now. Frames older than the
// last applied one are ignored; the return value tells whether frame was
// applied.
func (v *View) ApplyDataFrame(frame *protocol.DataFrame, now time.Time) bool {
	if int(frame.ControllerID) != v.controllerID {
		return false
	}
	if v.hasFrame && int32(frame.Sequence-v.frame.Sequence) <= 0 {
		return false
	}

	v.frame = *frame
	v.hasFrame = true
	v.lastUpdate = now

	v.samples = append(v.samples, now)
	v.trim(now)

	return true
}

func (v *View) trim(now time.Time) {
	cut := 0
	for cut < len(v.samples) && now.Sub(v.samples[cut]) > fpsWindow {
		cut++
	}
	if over := len(v.samples) - cut - fpsMaxSamples; over > 0 {
		cut += over
	}
	if cut > 0 {
		v.samples = append(v.samples[:0], v.samples[cut:]...)
	}
}

// DataFrameFPS is the frame rate over the last second of received frames,
// or 0 until two frames arrived.
func (v *View) DataFrameFPS() float64 {
	if len(v.samples) < 2 {
		return 0
	}
	span := v.samples[len(v.samples)-1].Sub(v.samples[0])
	if span <= 0 {
		return 0
	}
	return float64(len(v.samples)-1) / span.Seconds()
}

func (v *View) ControllerID() int {
	return v.controllerID
}

// HasData reports whether at least one data frame was applied.
func (v *View) HasData() bool {
	return v.hasFrame
}

func (v *View) Type() protocol.ControllerType {
	return v.frame.Type
}

func (v *View) Sequence() uint32 {
	return v.frame.Sequence
}

func (v *View) IsTracking() bool {
	return v.frame.IsTracking()
}

func (v *View) Position() protocol.Vector3 {
	return v.frame.Position
}

func (v *View) Orientation() protocol.Quaternion {
	return v.frame.Orientation
}

func (v *View) Buttons() uint32 {
	return v.frame.Buttons
}

func (v *View) IsButtonDown(mask uint32) bool {
	return v.frame.Buttons&mask == mask
}

// Trigger returns the analog trigger in the 0..255 range.
func (v *View) Trigger() uint8 {
	return v.frame.Trigger
}

func (v *View) LastUpdate() time.Time {
	return v.lastUpdate
}

// Acquire and Release count the owners sharing v. Release reports whether
// the last owner let go.
func (v *View) Acquire() {
	v.refs++
}

func (v *View) Release() bool {
	if v.refs > 0 {
		v.refs--
	}
	return v.refs == 0
}

// Reset forgets streamed state, as after a disconnect.
func (v *View) Reset() {
	v.frame = protocol.DataFrame{}
	v.hasFrame = false
	v.lastUpdate = time.Time{}
	v.samples = v.samples[:0]
}

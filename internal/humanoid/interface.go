// Package humanoid turns already-chosen targets into human-paced input: it
// decides when and how (timing, trajectory, cadence), never what to click.
// The orchestrator consumes a session state machine, two plan generators, and
// a narrow executor implemented by the browser layer.
package humanoid

import (
	"context"
	"time"
)

// Point is a screen coordinate in CSS pixels.
type Point struct {
	X float64
	Y float64
}

// TrajectoryPoint is one sample of a mouse path. At is the offset from the
// start of replay; offsets are non-decreasing and the final point's
// coordinates equal the requested target exactly.
type TrajectoryPoint struct {
	X  float64
	Y  float64
	At time.Duration
}

// KeystrokeEvent is one key action in a typing plan. PreDelay is the flight
// time before the key goes down, Hold the time it stays down. A "Shift"
// event has zero hold; the orchestrator releases Shift shortly after the
// bracketed key's keyup.
type KeystrokeEvent struct {
	Key      string
	Hold     time.Duration
	PreDelay time.Duration
}

// MouseButton names the physical buttons the executor understands.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// Key names for non-character keys replayed through the executor.
const (
	KeyBackspace = "Backspace"
	KeyShift     = "Shift"
	KeyControl   = "Control"
)

// TrajectoryProvider generates a timestamped point sequence between two
// screen coordinates. One production implementation exists
// (BezierTrajectory); substitution is a plain interface swap, no registry.
type TrajectoryProvider interface {
	Generate(start, end Point) []TrajectoryPoint
}

// KeystrokeProvider generates per-character key events with realistic
// timing, typos, and Shift handling.
type KeystrokeProvider interface {
	Generate(text string) []KeystrokeEvent
}

// ActionExecutor is the consumed boundary implemented by a browser
// automation layer. Calls are issued strictly sequentially and are assumed
// to complete before the next is issued.
type ActionExecutor interface {
	MouseMove(ctx context.Context, x, y float64) error
	MouseDown(ctx context.Context, button MouseButton) error
	MouseUp(ctx context.Context, button MouseButton) error
	KeyDown(ctx context.Context, key string) error
	KeyUp(ctx context.Context, key string) error
	Scroll(ctx context.Context, deltaX, deltaY float64) error
	MousePosition() Point
	ViewportSize(ctx context.Context) (width, height int64, err error)
}

package humanoid

import (
	"fmt"
	"time"
)

// Kind discriminates the ActionRequest union.
type Kind string

const (
	KindClick  Kind = "click"
	KindType   Kind = "type"
	KindScroll Kind = "scroll"
	KindHover  Kind = "hover"
	KindWait   Kind = "wait"
)

// ActionRequest describes one low-level action for the orchestrator. The
// caller has already decided what to interact with; the request only carries
// the target and the action parameters.
type ActionRequest struct {
	Kind Kind

	// Click / Hover
	Target      Point
	Button      MouseButton
	DoubleClick bool

	// Type
	Text       string
	ClearFirst bool

	// Scroll
	DeltaX float64
	DeltaY float64

	// Wait
	MinWait time.Duration
	MaxWait time.Duration
}

// Click requests a single left click on target.
func Click(target Point) ActionRequest {
	return ActionRequest{Kind: KindClick, Target: target, Button: ButtonLeft}
}

// DoubleClick requests a double left click on target.
func DoubleClick(target Point) ActionRequest {
	return ActionRequest{Kind: KindClick, Target: target, Button: ButtonLeft, DoubleClick: true}
}

// TypeText requests typing text into the focused element.
func TypeText(text string) ActionRequest {
	return ActionRequest{Kind: KindType, Text: text}
}

// Scroll requests scrolling by the combined delta vector.
func Scroll(deltaX, deltaY float64) ActionRequest {
	return ActionRequest{Kind: KindScroll, DeltaX: deltaX, DeltaY: deltaY}
}

// Hover requests a trajectory move to target without clicking.
func Hover(target Point) ActionRequest {
	return ActionRequest{Kind: KindHover, Target: target}
}

// Wait requests an idle pause sampled from [min, max]. Zero bounds fall back
// to the orchestrator defaults.
func Wait(min, max time.Duration) ActionRequest {
	return ActionRequest{Kind: KindWait, MinWait: min, MaxWait: max}
}

func (r ActionRequest) validate() error {
	switch r.Kind {
	case KindClick, KindHover, KindScroll, KindType:
	case KindWait:
		if r.MinWait < 0 || r.MaxWait < 0 {
			return fmt.Errorf("humanoid: negative wait bounds [%v, %v]", r.MinWait, r.MaxWait)
		}
		if r.MinWait > 0 && r.MaxWait > 0 && r.MinWait > r.MaxWait {
			return fmt.Errorf("humanoid: wait min %v exceeds max %v", r.MinWait, r.MaxWait)
		}
	default:
		return fmt.Errorf("humanoid: unknown action kind %q", r.Kind)
	}
	return nil
}

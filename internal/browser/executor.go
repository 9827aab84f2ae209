package browser

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/mimic/internal/config"
	"github.com/xkilldash9x/mimic/internal/humanoid"
)

// runActions abstracts chromedp.Run so the executor can be unit-tested
// without a live browser.
type runActions func(ctx context.Context, actions ...chromedp.Action) error

// Chromium treats a second press within this window and radius as part of
// the same click sequence, which is what turns two clicks into a dblclick.
const (
	multiClickWindow = 500 * time.Millisecond
	multiClickRadius = 5.0
)

// CDPExecutor implements humanoid.ActionExecutor over the DevTools input
// domain. It tracks cursor position, the pressed-button mask, active
// keyboard modifiers, and click-count sequencing, because CDP requires the
// caller to supply all of that state explicitly on every event.
type CDPExecutor struct {
	run     runActions
	limiter *rate.Limiter
	logger  *zap.Logger

	mu           sync.Mutex
	pos          humanoid.Point
	buttons      int64
	modifiers    input.Modifier
	clickCount   int64
	lastPressAt  time.Time
	lastPressPos humanoid.Point
}

var _ humanoid.ActionExecutor = (*CDPExecutor)(nil)

// NewCDPExecutor builds an executor over a runActions sink. A zero dispatch
// rate disables throttling.
func NewCDPExecutor(run runActions, cfg config.InputConfig, logger *zap.Logger) *CDPExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.DispatchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.DispatchRate), 1)
	}
	return &CDPExecutor{
		run:     run,
		limiter: limiter,
		logger:  logger.Named("executor"),
	}
}

func (e *CDPExecutor) throttle(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

var buttonMasks = map[humanoid.MouseButton]int64{
	humanoid.ButtonLeft:   1,
	humanoid.ButtonRight:  2,
	humanoid.ButtonMiddle: 4,
}

// MouseMove dispatches a mouseMoved event and updates the tracked cursor.
func (e *CDPExecutor) MouseMove(ctx context.Context, x, y float64) error {
	if err := e.throttle(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	e.pos = humanoid.Point{X: x, Y: y}
	buttons := e.buttons
	modifiers := e.modifiers
	e.mu.Unlock()

	p := input.DispatchMouseEvent(input.MouseMoved, x, y).
		WithButtons(buttons).
		WithModifiers(modifiers)
	return e.run(ctx, p)
}

// MouseDown presses a button at the current cursor position. Consecutive
// presses inside the multi-click window escalate the click count so the
// page observes a native double-click.
func (e *CDPExecutor) MouseDown(ctx context.Context, button humanoid.MouseButton) error {
	mask, ok := buttonMasks[button]
	if !ok {
		return fmt.Errorf("browser: unknown mouse button %q", button)
	}
	if err := e.throttle(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	now := time.Now()
	if now.Sub(e.lastPressAt) <= multiClickWindow &&
		math.Hypot(e.pos.X-e.lastPressPos.X, e.pos.Y-e.lastPressPos.Y) <= multiClickRadius {
		e.clickCount++
	} else {
		e.clickCount = 1
	}
	e.lastPressAt = now
	e.lastPressPos = e.pos
	e.buttons |= mask
	pos := e.pos
	buttons := e.buttons
	modifiers := e.modifiers
	clickCount := e.clickCount
	e.mu.Unlock()

	p := input.DispatchMouseEvent(input.MousePressed, pos.X, pos.Y).
		WithButton(input.MouseButton(button)).
		WithButtons(buttons).
		WithClickCount(clickCount).
		WithModifiers(modifiers)
	return e.run(ctx, p)
}

// MouseUp releases a button at the current cursor position.
func (e *CDPExecutor) MouseUp(ctx context.Context, button humanoid.MouseButton) error {
	mask, ok := buttonMasks[button]
	if !ok {
		return fmt.Errorf("browser: unknown mouse button %q", button)
	}
	if err := e.throttle(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.buttons &^= mask
	pos := e.pos
	buttons := e.buttons
	modifiers := e.modifiers
	clickCount := e.clickCount
	e.mu.Unlock()

	p := input.DispatchMouseEvent(input.MouseReleased, pos.X, pos.Y).
		WithButton(input.MouseButton(button)).
		WithButtons(buttons).
		WithClickCount(clickCount).
		WithModifiers(modifiers)
	return e.run(ctx, p)
}

// KeyDown dispatches a keyDown event. Shift and Control update the modifier
// mask applied to all subsequent events until their matching KeyUp.
func (e *CDPExecutor) KeyDown(ctx context.Context, key string) error {
	if err := e.throttle(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.modifiers |= modifierFor(key)
	modifiers := e.modifiers
	e.mu.Unlock()

	p := input.DispatchKeyEvent(input.KeyDown).
		WithModifiers(modifiers).
		WithKey(key)
	if text := printableText(key); text != "" {
		p = p.WithText(text)
	}
	return e.run(ctx, p)
}

// KeyUp dispatches a keyUp event and clears the key's modifier bit, if any.
func (e *CDPExecutor) KeyUp(ctx context.Context, key string) error {
	if err := e.throttle(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.modifiers &^= modifierFor(key)
	modifiers := e.modifiers
	e.mu.Unlock()

	p := input.DispatchKeyEvent(input.KeyUp).
		WithModifiers(modifiers).
		WithKey(key)
	return e.run(ctx, p)
}

// Scroll dispatches a mouseWheel event at the current cursor position.
func (e *CDPExecutor) Scroll(ctx context.Context, deltaX, deltaY float64) error {
	if err := e.throttle(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	pos := e.pos
	buttons := e.buttons
	modifiers := e.modifiers
	e.mu.Unlock()

	p := input.DispatchMouseEvent(input.MouseWheel, pos.X, pos.Y).
		WithButtons(buttons).
		WithModifiers(modifiers).
		WithDeltaX(deltaX).
		WithDeltaY(deltaY)
	return e.run(ctx, p)
}

// MousePosition returns the cursor position tracked across dispatches.
func (e *CDPExecutor) MousePosition() humanoid.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

// ViewportSize reads the page's inner dimensions.
func (e *CDPExecutor) ViewportSize(ctx context.Context) (int64, int64, error) {
	var dims []int64
	err := e.run(ctx, chromedp.Evaluate("[window.innerWidth, window.innerHeight]", &dims))
	if err != nil {
		return 0, 0, fmt.Errorf("browser: failed to read viewport size: %w", err)
	}
	if len(dims) != 2 {
		return 0, 0, fmt.Errorf("browser: unexpected viewport evaluation result %v", dims)
	}
	return dims[0], dims[1], nil
}

func modifierFor(key string) input.Modifier {
	switch key {
	case humanoid.KeyShift:
		return input.ModifierShift
	case humanoid.KeyControl:
		return input.ModifierCtrl
	}
	return 0
}

// printableText returns the text a single-character key inserts, or "" for
// named keys like Backspace.
func printableText(key string) string {
	if len([]rune(key)) == 1 {
		return key
	}
	return ""
}

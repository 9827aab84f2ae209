package humanoid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mimic/internal/session"
)

// ErrAborted is the cooperative cancellation signal. It is expected,
// catchable control flow, not a defect; ResetAbort clears it.
var ErrAborted = errors.New("humanoid: execution aborted")

const (
	// How often the orchestrator re-checks the machine while it is AWAY.
	awayPollInterval = 500 * time.Millisecond
	// Safety valve: after this much continuous AWAY the machine is forced
	// back to IDLE so a caller can never hang forever.
	awayCeiling = 30 * time.Minute
	// Slice size for inter-action gaps, so the machine keeps ticking and
	// natural transitions can occur mid-sequence.
	gapTickSlice = 100 * time.Millisecond
)

type delayRange struct {
	min time.Duration
	max time.Duration
}

// Pre-action delays keyed by the state the machine is in when the action
// starts. ACTIVE reacts fastest; READING is the slowest to interrupt.
var preActionDelays = map[session.State]delayRange{
	session.StateActive:    {80 * time.Millisecond, 400 * time.Millisecond},
	session.StateIdle:      {300 * time.Millisecond, 1200 * time.Millisecond},
	session.StateReading:   {800 * time.Millisecond, 2500 * time.Millisecond},
	session.StateThinking:  {500 * time.Millisecond, 1800 * time.Millisecond},
	session.StateScrolling: {200 * time.Millisecond, 900 * time.Millisecond},
}

// Inter-action delays keyed by the ordered (previous, next) kind pair.
// Unlisted pairs use interActionDefault.
var interActionDelays = map[[2]Kind]delayRange{
	{KindClick, KindType}:   {200 * time.Millisecond, 700 * time.Millisecond},
	{KindType, KindClick}:   {300 * time.Millisecond, 1000 * time.Millisecond},
	{KindClick, KindClick}:  {250 * time.Millisecond, 900 * time.Millisecond},
	{KindScroll, KindClick}: {400 * time.Millisecond, 1200 * time.Millisecond},
	{KindClick, KindScroll}: {300 * time.Millisecond, 1100 * time.Millisecond},
	{KindType, KindType}:    {500 * time.Millisecond, 1600 * time.Millisecond},
	{KindHover, KindClick}:  {150 * time.Millisecond, 600 * time.Millisecond},
}

var interActionDefault = delayRange{300 * time.Millisecond, 1500 * time.Millisecond}

// Orchestrator sequences low-level input actions with timing that follows
// the session machine's current behavioral state. One orchestrator wraps one
// machine, one executor, and the two plan providers; it issues executor
// calls strictly sequentially from a single logical thread of control.
type Orchestrator struct {
	machine      *session.Machine
	executor     ActionExecutor
	trajectories TrajectoryProvider
	keystrokes   KeystrokeProvider
	clock        session.Clock
	rng          *rand.Rand
	logger       *zap.Logger

	aborted atomic.Bool
}

// OrchestratorConfig wires the orchestrator's collaborators. Machine and
// Executor are required; nil providers, clock, rng, and logger default to
// the production implementations.
type OrchestratorConfig struct {
	Machine      *session.Machine
	Executor     ActionExecutor
	Trajectories TrajectoryProvider
	Keystrokes   KeystrokeProvider
	Clock        session.Clock
	Rng          *rand.Rand
	Logger       *zap.Logger
}

// NewOrchestrator validates required collaborators and fills in defaults.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Machine == nil {
		return nil, errors.New("humanoid: orchestrator requires a session machine")
	}
	if cfg.Executor == nil {
		return nil, errors.New("humanoid: orchestrator requires an action executor")
	}
	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	traj := cfg.Trajectories
	if traj == nil {
		traj = NewBezierTrajectory(rng)
	}
	keys := cfg.Keystrokes
	if keys == nil {
		keys = NewStatisticalKeystrokes(rng)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = session.SystemClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		machine:      cfg.Machine,
		executor:     cfg.Executor,
		trajectories: traj,
		keystrokes:   keys,
		clock:        clock,
		rng:          rng,
		logger:       logger.Named("orchestrator"),
	}, nil
}

// Abort raises the cooperative cancel flag. Execution stops at the next
// suspension point; internal state survives.
func (o *Orchestrator) Abort() {
	o.aborted.Store(true)
}

// ResetAbort clears the cancel flag so execution can resume.
func (o *Orchestrator) ResetAbort() {
	o.aborted.Store(false)
}

// checkAbort is re-evaluated at every suspension point: before waiting for
// an actionable state, after every sleep, and inside replay loops.
func (o *Orchestrator) checkAbort(ctx context.Context) error {
	if o.aborted.Load() {
		return ErrAborted
	}
	return ctx.Err()
}

// sleep suspends via the injected clock and re-checks cancellation on wake.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if err := o.clock.Sleep(ctx, d); err != nil {
		return err
	}
	return o.checkAbort(ctx)
}

func (o *Orchestrator) sleepRange(ctx context.Context, r delayRange) error {
	return o.sleep(ctx, o.sampleRange(r))
}

func (o *Orchestrator) sampleRange(r delayRange) time.Duration {
	if r.max <= r.min {
		return r.min
	}
	return r.min + time.Duration(o.rng.Int63n(int64(r.max-r.min)+1))
}

// Execute runs a single action request end to end: wait for an actionable
// state, pace the approach by the current state, dispatch through the
// executor, and feed the resulting activity back into the machine.
// Executor-boundary errors propagate unmodified.
func (o *Orchestrator) Execute(ctx context.Context, req ActionRequest) error {
	if err := o.checkAbort(ctx); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}
	if err := o.awaitActionable(ctx); err != nil {
		return err
	}
	if err := o.preActionPause(ctx); err != nil {
		return err
	}

	switch req.Kind {
	case KindClick:
		return o.doClick(ctx, req)
	case KindType:
		return o.doType(ctx, req)
	case KindScroll:
		return o.doScroll(ctx, req)
	case KindHover:
		return o.doHover(ctx, req)
	case KindWait:
		return o.doWait(ctx, req)
	}
	// validate() rejects unknown kinds.
	return fmt.Errorf("humanoid: unhandled action kind %q", req.Kind)
}

// ExecuteSequence runs requests in order with a pair-keyed gap before each
// action after the first. The machine keeps ticking through the gaps so
// natural transitions can occur mid-sequence.
func (o *Orchestrator) ExecuteSequence(ctx context.Context, requests []ActionRequest) error {
	var prev Kind
	for i, req := range requests {
		if i > 0 {
			gap := interActionDelays[[2]Kind{prev, req.Kind}]
			if gap == (delayRange{}) {
				gap = interActionDefault
			}
			if err := o.tickingSleep(ctx, o.sampleRange(gap)); err != nil {
				return err
			}
		}
		if err := o.Execute(ctx, req); err != nil {
			return err
		}
		prev = req.Kind
	}
	return nil
}

// awaitActionable blocks until the machine is in a state that permits
// action. AWAY is polled every 500ms up to a 30 minute ceiling, after which
// the machine is forced to IDLE; any unrecognized state is also forced to
// IDLE defensively.
func (o *Orchestrator) awaitActionable(ctx context.Context) error {
	var awayFor time.Duration
	for {
		if err := o.checkAbort(ctx); err != nil {
			return err
		}
		o.machine.Tick()
		s := o.machine.State()
		switch {
		case s.Actionable():
			return nil
		case s == session.StateAway:
			if awayFor >= awayCeiling {
				o.logger.Warn("session AWAY exceeded ceiling, forcing IDLE",
					zap.Duration("away_for", awayFor))
				if err := o.machine.ForceTransition(session.StateIdle); err != nil {
					return err
				}
				return nil
			}
			if err := o.sleep(ctx, awayPollInterval); err != nil {
				return err
			}
			awayFor += awayPollInterval
		default:
			o.logger.Warn("unrecognized session state, forcing IDLE",
				zap.Stringer("state", s))
			if err := o.machine.ForceTransition(session.StateIdle); err != nil {
				return err
			}
			return nil
		}
	}
}

// preActionPause applies the state-keyed delay before the action proper.
func (o *Orchestrator) preActionPause(ctx context.Context) error {
	r, ok := preActionDelays[o.machine.State()]
	if !ok {
		r = delayRange{200 * time.Millisecond, 800 * time.Millisecond}
	}
	return o.sleepRange(ctx, r)
}

func (o *Orchestrator) doClick(ctx context.Context, req ActionRequest) error {
	if err := o.moveAlongTrajectory(ctx, req.Target); err != nil {
		return err
	}
	if err := o.sleepRange(ctx, delayRange{40 * time.Millisecond, 180 * time.Millisecond}); err != nil {
		return err
	}

	button := req.Button
	if button == "" {
		button = ButtonLeft
	}
	if err := o.pressAndRelease(ctx, button); err != nil {
		return err
	}
	if req.DoubleClick {
		if err := o.sleepRange(ctx, delayRange{40 * time.Millisecond, 100 * time.Millisecond}); err != nil {
			return err
		}
		if err := o.pressAndRelease(ctx, button); err != nil {
			return err
		}
	}

	o.machine.SetActivityType(session.ActivityBrowsing)
	return nil
}

func (o *Orchestrator) pressAndRelease(ctx context.Context, button MouseButton) error {
	if err := o.executor.MouseDown(ctx, button); err != nil {
		return err
	}
	if err := o.sleepRange(ctx, delayRange{50 * time.Millisecond, 120 * time.Millisecond}); err != nil {
		return err
	}
	return o.executor.MouseUp(ctx, button)
}

func (o *Orchestrator) doType(ctx context.Context, req ActionRequest) error {
	if req.ClearFirst {
		if err := o.clearField(ctx); err != nil {
			return err
		}
	}

	o.machine.SetActivityType(session.ActivityTyping)
	// BROWSING is restored on every exit path, including empty text and
	// mid-replay aborts.
	defer o.machine.SetActivityType(session.ActivityBrowsing)

	events := o.keystrokes.Generate(req.Text)
	shiftHeld := false
	for _, ev := range events {
		if err := o.checkAbort(ctx); err != nil {
			return err
		}
		if ev.PreDelay > 0 {
			if err := o.sleep(ctx, ev.PreDelay); err != nil {
				return err
			}
		}
		if ev.Key == KeyShift {
			if err := o.executor.KeyDown(ctx, KeyShift); err != nil {
				return err
			}
			shiftHeld = true
			continue
		}
		if err := o.executor.KeyDown(ctx, ev.Key); err != nil {
			return err
		}
		if ev.Hold > 0 {
			if err := o.sleep(ctx, ev.Hold); err != nil {
				return err
			}
		}
		if err := o.executor.KeyUp(ctx, ev.Key); err != nil {
			return err
		}
		if shiftHeld {
			// Shift lingers briefly past the bracketed key's release.
			if err := o.sleepRange(ctx, delayRange{10 * time.Millisecond, 30 * time.Millisecond}); err != nil {
				return err
			}
			if err := o.executor.KeyUp(ctx, KeyShift); err != nil {
				return err
			}
			shiftHeld = false
		}
	}
	return nil
}

// clearField performs Ctrl+A then Backspace with realistic sub-delays.
func (o *Orchestrator) clearField(ctx context.Context) error {
	if err := o.executor.KeyDown(ctx, KeyControl); err != nil {
		return err
	}
	if err := o.sleepRange(ctx, delayRange{30 * time.Millisecond, 80 * time.Millisecond}); err != nil {
		return err
	}
	if err := o.executor.KeyDown(ctx, "a"); err != nil {
		return err
	}
	if err := o.sleepRange(ctx, delayRange{40 * time.Millisecond, 90 * time.Millisecond}); err != nil {
		return err
	}
	if err := o.executor.KeyUp(ctx, "a"); err != nil {
		return err
	}
	if err := o.sleepRange(ctx, delayRange{20 * time.Millisecond, 60 * time.Millisecond}); err != nil {
		return err
	}
	if err := o.executor.KeyUp(ctx, KeyControl); err != nil {
		return err
	}
	if err := o.sleepRange(ctx, delayRange{80 * time.Millisecond, 200 * time.Millisecond}); err != nil {
		return err
	}
	if err := o.executor.KeyDown(ctx, KeyBackspace); err != nil {
		return err
	}
	if err := o.sleepRange(ctx, delayRange{50 * time.Millisecond, 110 * time.Millisecond}); err != nil {
		return err
	}
	return o.executor.KeyUp(ctx, KeyBackspace)
}

// doScroll decomposes the combined delta vector into discrete wheel clicks
// along the unit direction. The final increment consumes the exact remainder
// so the total never drifts from the request.
func (o *Orchestrator) doScroll(ctx context.Context, req ActionRequest) error {
	o.machine.SetActivityType(session.ActivityBrowsing)

	total := math.Hypot(req.DeltaX, req.DeltaY)
	if total == 0 {
		return nil
	}
	ux := req.DeltaX / total
	uy := req.DeltaY / total

	remaining := total
	for remaining > 1e-9 {
		if err := o.checkAbort(ctx); err != nil {
			return err
		}
		step := 80 + o.rng.Float64()*60
		if step >= remaining {
			step = remaining
		}
		if err := o.executor.Scroll(ctx, ux*step, uy*step); err != nil {
			return err
		}
		remaining -= step
		if remaining > 1e-9 {
			if err := o.sleepRange(ctx, delayRange{30 * time.Millisecond, 120 * time.Millisecond}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) doHover(ctx context.Context, req ActionRequest) error {
	if err := o.moveAlongTrajectory(ctx, req.Target); err != nil {
		return err
	}
	o.machine.SetActivityType(session.ActivityBrowsing)
	return nil
}

func (o *Orchestrator) doWait(ctx context.Context, req ActionRequest) error {
	r := delayRange{min: req.MinWait, max: req.MaxWait}
	if r.min == 0 && r.max == 0 {
		r = delayRange{500 * time.Millisecond, 3 * time.Second}
	}

	o.machine.SetActivityType(session.ActivityWaiting)
	err := o.sleep(ctx, o.sampleRange(r))
	o.machine.SetActivityType(session.ActivityBrowsing)
	return err
}

// moveAlongTrajectory generates a path from the executor's current cursor
// position and replays it point by point, honoring each point's timestamp.
func (o *Orchestrator) moveAlongTrajectory(ctx context.Context, target Point) error {
	start := o.executor.MousePosition()
	points := o.trajectories.Generate(start, target)

	var last time.Duration
	for _, p := range points {
		if err := o.checkAbort(ctx); err != nil {
			return err
		}
		if dt := p.At - last; dt > 0 {
			if err := o.sleep(ctx, dt); err != nil {
				return err
			}
		}
		if err := o.executor.MouseMove(ctx, p.X, p.Y); err != nil {
			return err
		}
		last = p.At
	}
	return nil
}

// tickingSleep sleeps in short slices, ticking the machine between them.
func (o *Orchestrator) tickingSleep(ctx context.Context, total time.Duration) error {
	for total > 0 {
		if err := o.checkAbort(ctx); err != nil {
			return err
		}
		slice := gapTickSlice
		if slice > total {
			slice = total
		}
		if err := o.sleep(ctx, slice); err != nil {
			return err
		}
		o.machine.Tick()
		total -= slice
	}
	return nil
}

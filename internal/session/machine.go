package session

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Listener receives every TransitionEvent the machine emits. Listeners must
// not rely on call ordering relative to other listeners.
type Listener func(TransitionEvent)

// MachineConfig collects the injectable dependencies of a Machine. Zero
// values get sensible defaults: system clock, time-seeded RNG, nop logger,
// IDLE initial state.
type MachineConfig struct {
	Profile           Profile
	Clock             Clock
	Rng               *rand.Rand
	Logger            *zap.Logger
	InitialState      State
	DurationOverrides map[State]DurationRange
}

// Machine owns the current session state, its entry timestamp, the scheduled
// dwell duration, and the activity type. It is deliberately timer-free:
// exactly one owner drives it via Tick, which makes it trivially driveable by
// a cooperative scheduler or a test harness with an injected clock.
//
// A Machine is not safe for concurrent use. One persona = one machine = one
// orchestrator, never shared.
type Machine struct {
	id        uuid.UUID
	profile   Profile
	clock     Clock
	rng       *rand.Rand
	logger    *zap.Logger
	durations *DurationModel

	state     State
	enteredAt time.Time
	scheduled time.Duration
	activity  ActivityType
	period    TimePeriod
	matrix    Matrix

	transitionCount uint64

	listeners      map[int]Listener
	nextListenerID int
}

// NewMachine validates the profile and transition contract once, builds the
// initial matrix, and schedules the first dwell. All contract violations are
// fatal here; Tick never fails.
func NewMachine(cfg MachineConfig) (*Machine, error) {
	if err := cfg.Profile.Validate(); err != nil {
		return nil, err
	}
	if !cfg.InitialState.Valid() {
		return nil, fmt.Errorf("session: invalid initial state %d", cfg.InitialState)
	}
	durations, err := NewDurationModel(cfg.DurationOverrides)
	if err != nil {
		return nil, err
	}
	if err := validateMatrix(baseMatrix()); err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Machine{
		id:        uuid.New(),
		profile:   cfg.Profile,
		clock:     clock,
		rng:       rng,
		logger:    logger.Named("session"),
		durations: durations,
		state:     cfg.InitialState,
		activity:  ActivityBrowsing,
		listeners: make(map[int]Listener),
	}

	now := m.clock.Now()
	m.enteredAt = now
	m.period = PeriodForHour(now.Hour())
	m.matrix = BuildMatrix(m.period, m.profile, m.activity)
	m.scheduled = m.durations.Sample(m.state, m.profile, m.rng)

	// The sampled matrix row for each combination is revalidated once here;
	// after this point every Tick trusts it.
	if err := validateMatrix(m.matrix); err != nil {
		return nil, err
	}

	m.logger.Debug("session machine created",
		zap.String("session_id", m.id.String()),
		zap.Stringer("state", m.state),
		zap.Stringer("period", m.period),
		zap.Duration("scheduled", m.scheduled))
	return m, nil
}

// ID returns the machine's session identifier.
func (m *Machine) ID() uuid.UUID { return m.id }

// State returns the current session state.
func (m *Machine) State() State { return m.state }

// Activity returns the last activity type fed back by the orchestrator.
func (m *Machine) Activity() ActivityType { return m.activity }

// Snapshot returns a read-only view of the machine.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		State:             m.state,
		EnteredAt:         m.enteredAt,
		ScheduledDuration: m.scheduled,
		Period:            m.period,
		Activity:          m.activity,
		TransitionCount:   m.transitionCount,
	}
}

// Tick advances the machine if the scheduled dwell has elapsed. It performs
// at most one transition per call and reports whether one occurred.
func (m *Machine) Tick() bool {
	now := m.clock.Now()
	if now.Sub(m.enteredAt) < m.scheduled {
		return false
	}

	period := PeriodForHour(now.Hour())
	if period != m.period || m.matrix == nil {
		m.period = period
		m.matrix = BuildMatrix(period, m.profile, m.activity)
	}

	next := SampleRow(m.matrix[m.state], m.rng.Float64())
	m.transitionTo(next, now, false)
	return true
}

// ForceTransition bypasses sampling entirely and moves the machine to the
// given state immediately. Used when an external signal (detected typing, a
// safety valve) demands a specific state.
func (m *Machine) ForceTransition(to State) error {
	if !to.Valid() {
		return fmt.Errorf("session: cannot force transition to unknown state %d", to)
	}
	m.transitionTo(to, m.clock.Now(), true)
	return nil
}

// SetActivityType records the orchestrator's current activity. A change
// rebuilds the matrix immediately so the very next transition reflects the
// new bias; setting the same value is a no-op.
func (m *Machine) SetActivityType(a ActivityType) {
	if a == m.activity {
		return
	}
	m.activity = a
	m.matrix = BuildMatrix(m.period, m.profile, a)
}

// OnTransition registers a listener and returns its unsubscribe function.
// Listeners should not throw; if one panics it is logged and the remaining
// listeners still run.
func (m *Machine) OnTransition(l Listener) (unsubscribe func()) {
	id := m.nextListenerID
	m.nextListenerID++
	m.listeners[id] = l
	return func() {
		delete(m.listeners, id)
	}
}

func (m *Machine) transitionTo(to State, now time.Time, forced bool) {
	ev := TransitionEvent{
		SessionID: m.id,
		From:      m.state,
		To:        to,
		Timestamp: now,
		Dwell:     now.Sub(m.enteredAt),
		Period:    m.period,
		Activity:  m.activity,
		Forced:    forced,
	}

	m.state = to
	m.enteredAt = now
	m.transitionCount++

	m.notify(ev)

	m.scheduled = m.durations.Sample(to, m.profile, m.rng)

	m.logger.Debug("session transition",
		zap.String("session_id", m.id.String()),
		zap.Stringer("from", ev.From),
		zap.Stringer("to", ev.To),
		zap.Duration("dwell", ev.Dwell),
		zap.Duration("scheduled", m.scheduled),
		zap.Bool("forced", forced))
}

// notify snapshots the listener set before iterating so a listener may
// unsubscribe (itself or others) during dispatch, and isolates each call so
// a panicking listener cannot corrupt machine state or block its siblings.
func (m *Machine) notify(ev TransitionEvent) {
	snapshot := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		snapshot = append(snapshot, l)
	}
	for _, l := range snapshot {
		m.dispatch(l, ev)
	}
}

func (m *Machine) dispatch(l Listener, ev TransitionEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("transition listener panicked",
				zap.String("session_id", m.id.String()),
				zap.Any("panic", r))
		}
	}()
	l(ev)
}

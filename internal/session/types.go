// Package session models a simulated user's behavioral state over time: a
// weighted stochastic transition graph biased by time of day, current
// activity, and a per-persona profile, driven by a pull-based state machine.
package session

import (
	"time"

	"github.com/google/uuid"
)

// State is one of six behavioral buckets describing what the simulated user
// is "doing" at a given moment.
type State int

const (
	StateIdle State = iota
	StateActive
	StateReading
	StateThinking
	StateAway
	StateScrolling
)

// StateOrder is the canonical enumeration order. Cumulative sampling walks
// states in this order, so independent reimplementations produce identical
// distributions given the same RNG stream and inputs.
var StateOrder = [...]State{
	StateIdle, StateActive, StateReading, StateThinking, StateAway, StateScrolling,
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateReading:
		return "READING"
	case StateThinking:
		return "THINKING"
	case StateAway:
		return "AWAY"
	case StateScrolling:
		return "SCROLLING"
	}
	return "UNKNOWN"
}

// Valid reports whether s is one of the six defined states.
func (s State) Valid() bool {
	return s >= StateIdle && s <= StateScrolling
}

// Actionable reports whether an orchestrator may execute a queued action
// while the session is in state s. AWAY is the only non-actionable state.
func (s State) Actionable() bool {
	return s.Valid() && s != StateAway
}

// TimePeriod is a coarse day-bucket biasing transition likelihoods to match
// daily rhythms.
type TimePeriod int

const (
	PeriodPeak TimePeriod = iota
	PeriodNormal
	PeriodLow
	PeriodDormant
)

func (p TimePeriod) String() string {
	switch p {
	case PeriodPeak:
		return "PEAK"
	case PeriodNormal:
		return "NORMAL"
	case PeriodLow:
		return "LOW"
	case PeriodDormant:
		return "DORMANT"
	}
	return "UNKNOWN"
}

// PeriodForHour maps an hour of day (0-23) to its TimePeriod. It is a pure
// function: 02-06 DORMANT, 07-09 LOW, 10-16 NORMAL, 17-22 PEAK, 23-01 LOW.
func PeriodForHour(hour int) TimePeriod {
	switch {
	case hour >= 2 && hour <= 6:
		return PeriodDormant
	case hour >= 7 && hour <= 9:
		return PeriodLow
	case hour >= 10 && hour <= 16:
		return PeriodNormal
	case hour >= 17 && hour <= 22:
		return PeriodPeak
	default: // 23, 0, 1
		return PeriodLow
	}
}

// ActivityType is a short-lived execution context fed back from the
// orchestrator into the state machine.
type ActivityType int

const (
	ActivityBrowsing ActivityType = iota
	ActivityTyping
	ActivityWaiting
)

func (a ActivityType) String() string {
	switch a {
	case ActivityBrowsing:
		return "BROWSING"
	case ActivityTyping:
		return "TYPING"
	case ActivityWaiting:
		return "WAITING"
	}
	return "UNKNOWN"
}

// TransitionEvent describes a single state transition. It is emitted to
// listeners exactly once per transition.
type TransitionEvent struct {
	SessionID uuid.UUID
	From      State
	To        State
	Timestamp time.Time
	Dwell     time.Duration
	Period    TimePeriod
	Activity  ActivityType
	Forced    bool
}

// Snapshot is a read-only view of the machine's current state.
type Snapshot struct {
	State             State
	EnteredAt         time.Time
	ScheduledDuration time.Duration
	Period            TimePeriod
	Activity          ActivityType
	TransitionCount   uint64
}

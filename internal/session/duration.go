package session

import (
	"fmt"
	"math/rand"
	"time"
)

// DurationRange bounds how long the machine dwells in a state before the
// next transition is considered.
type DurationRange struct {
	Min time.Duration `mapstructure:"min" yaml:"min"`
	Max time.Duration `mapstructure:"max" yaml:"max"`
}

func (r DurationRange) validate() error {
	if r.Min < 0 || r.Max < r.Min {
		return fmt.Errorf("session: invalid duration range [%v, %v]", r.Min, r.Max)
	}
	return nil
}

// minDwell floors every sampled dwell so a degenerate range can never spin
// the tick loop hot.
const minDwell = 50 * time.Millisecond

// DurationModel samples profile-scaled dwell durations per state.
type DurationModel struct {
	ranges map[State]DurationRange
}

func defaultDurationRanges() map[State]DurationRange {
	return map[State]DurationRange{
		StateIdle:      {Min: 2 * time.Second, Max: 15 * time.Second},
		StateActive:    {Min: 2 * time.Second, Max: 10 * time.Second},
		StateReading:   {Min: 3 * time.Second, Max: 15 * time.Second},
		StateThinking:  {Min: 1 * time.Second, Max: 5 * time.Second},
		StateAway:      {Min: 5 * time.Minute, Max: 30 * time.Minute},
		StateScrolling: {Min: 1 * time.Second, Max: 6 * time.Second},
	}
}

// NewDurationModel builds a model from the defaults plus any per-state
// overrides. Invalid ranges are fatal here, never at sampling time.
func NewDurationModel(overrides map[State]DurationRange) (*DurationModel, error) {
	ranges := defaultDurationRanges()
	for s, r := range overrides {
		if !s.Valid() {
			return nil, fmt.Errorf("session: duration override for unknown state %d", s)
		}
		if err := r.validate(); err != nil {
			return nil, err
		}
		ranges[s] = r
	}
	return &DurationModel{ranges: ranges}, nil
}

// scaleFor translates profile dials into a per-state dwell multiplier.
// Each factor spans [0.5, 1.5] so an extreme dial at most halves or
// half-again-extends the base range.
func scaleFor(s State, p Profile) float64 {
	switch s {
	case StateIdle:
		return 0.5 + p.IdleTendency
	case StateAway:
		return 0.5 + p.AfkProneness
	case StateReading:
		return 1.5 - p.ReadingSpeed
	case StateThinking:
		return 0.5 + p.Deliberation
	case StateActive:
		return 1.5 - p.ActivityLevel
	default:
		return 1.0
	}
}

// Sample draws a dwell duration for state s: uniform over the base range,
// scaled by the profile, floored at minDwell.
func (m *DurationModel) Sample(s State, p Profile, rng *rand.Rand) time.Duration {
	r, ok := m.ranges[s]
	if !ok {
		return minDwell
	}
	span := r.Max - r.Min
	d := r.Min
	if span > 0 {
		d += time.Duration(rng.Int63n(int64(span) + 1))
	}
	d = time.Duration(float64(d) * scaleFor(s, p))
	if d < minDwell {
		d = minDwell
	}
	return d
}

// Range returns the base range for a state, for introspection and tests.
func (m *DurationModel) Range(s State) (DurationRange, bool) {
	r, ok := m.ranges[s]
	return r, ok
}

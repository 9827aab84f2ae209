package session

import "fmt"

// Row maps destination states to probabilities. A valid row sums to 1.0
// (within floatTolerance) and never contains a self-transition.
type Row map[State]float64

// Matrix holds one Row per source state.
type Matrix map[State]Row

const floatTolerance = 1e-6

// baseMatrix is the hand-authored transition graph for an "average"
// NORMAL-period user. Every modifier below is multiplicative on top of these
// weights, so the base ratios carry through after renormalization.
func baseMatrix() Matrix {
	return Matrix{
		StateIdle: {
			StateActive:    0.60,
			StateAway:      0.15,
			StateScrolling: 0.25,
		},
		StateActive: {
			StateReading:   0.50,
			StateIdle:      0.15,
			StateAway:      0.10,
			StateScrolling: 0.25,
		},
		StateReading: {
			StateThinking:  0.55,
			StateActive:    0.25,
			StateIdle:      0.10,
			StateAway:      0.05,
			StateScrolling: 0.05,
		},
		StateThinking: {
			StateActive:    0.60,
			StateReading:   0.25,
			StateIdle:      0.10,
			StateScrolling: 0.05,
		},
		StateAway: {
			StateIdle: 1.0,
		},
		StateScrolling: {
			StateIdle:    0.35,
			StateActive:  0.30,
			StateReading: 0.30,
			StateAway:    0.05,
		},
	}
}

// periodWeights are multiplicative column modifiers per time of day.
// PEAK boosts ACTIVE and dampens AWAY; LOW and DORMANT boost IDLE/AWAY and
// dampen ACTIVE and READING. NORMAL is identity.
var periodWeights = map[TimePeriod]map[State]float64{
	PeriodPeak: {
		StateActive: 1.4,
		StateAway:   0.5,
		StateIdle:   0.8,
	},
	PeriodLow: {
		StateIdle:    1.3,
		StateAway:    1.6,
		StateActive:  0.7,
		StateReading: 0.85,
	},
	PeriodDormant: {
		StateIdle:    1.5,
		StateAway:    2.2,
		StateActive:  0.5,
		StateReading: 0.7,
	},
}

// activityWeights bias the graph toward the pattern the orchestrator last
// reported. TYPING keeps the ACTIVE/READING/THINKING loop hot and suppresses
// IDLE/AWAY; WAITING drifts toward SCROLLING/IDLE/AWAY. BROWSING is identity.
var activityWeights = map[ActivityType]map[State]float64{
	ActivityTyping: {
		StateActive:    1.5,
		StateReading:   1.2,
		StateThinking:  1.2,
		StateIdle:      0.5,
		StateAway:      0.3,
		StateScrolling: 0.6,
	},
	ActivityWaiting: {
		StateScrolling: 1.4,
		StateIdle:      1.3,
		StateAway:      1.3,
		StateActive:    0.7,
	},
}

func lerp(lo, hi, t float64) float64 {
	return lo + (hi-lo)*t
}

// BuildMatrix assembles the full transition matrix for one (period, profile,
// activity) combination: base weights, then period, activity, and profile
// multipliers, then per-row normalization.
func BuildMatrix(period TimePeriod, profile Profile, activity ActivityType) Matrix {
	out := baseMatrix()

	afkScale := lerp(0.3, 2.5, profile.AfkProneness)
	scrollScale := lerp(0.4, 2.0, profile.ScrollTendency)

	for from, row := range out {
		for to, w := range row {
			if pw, ok := periodWeights[period][to]; ok {
				w *= pw
			}
			if aw, ok := activityWeights[activity][to]; ok {
				w *= aw
			}
			switch to {
			case StateAway:
				w *= afkScale
			case StateScrolling:
				w *= scrollScale
			}
			row[to] = w
		}

		// Edge-specific profile biases.
		switch from {
		case StateIdle:
			if _, ok := row[StateActive]; ok {
				row[StateActive] *= lerp(0.6, 1.6, profile.ActivityLevel)
			}
		case StateReading:
			if _, ok := row[StateThinking]; ok {
				row[StateThinking] *= lerp(0.6, 1.6, profile.Deliberation)
			}
		case StateThinking:
			if _, ok := row[StateActive]; ok {
				row[StateActive] *= lerp(1.4, 0.6, profile.Deliberation)
			}
		}

		out[from] = NormalizeRow(from, row)
	}
	return out
}

// NormalizeRow rescales a row so its probabilities sum to 1. A row whose
// total collapses to zero (or below) falls back to a uniform distribution
// over all non-self states.
func NormalizeRow(from State, row Row) Row {
	total := 0.0
	for _, w := range row {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		uniform := make(Row, len(StateOrder)-1)
		p := 1.0 / float64(len(StateOrder)-1)
		for _, s := range StateOrder {
			if s != from {
				uniform[s] = p
			}
		}
		return uniform
	}
	out := make(Row, len(row))
	for to, w := range row {
		if w < 0 {
			w = 0
		}
		out[to] = w / total
	}
	return out
}

// SampleRow draws the next state from a normalized row given a uniform
// variate u in [0, 1). States are walked in StateOrder accumulating
// probability; the first state whose cumulative sum exceeds u wins. If
// floating-point error leaves the total just under 1.0, the last state with
// nonzero probability is returned. The fallback is order-dependent on
// purpose: it is part of the contract.
func SampleRow(row Row, u float64) State {
	cum := 0.0
	last := StateIdle
	haveLast := false
	for _, s := range StateOrder {
		p, ok := row[s]
		if !ok || p <= 0 {
			continue
		}
		cum += p
		last = s
		haveLast = true
		if u < cum {
			return s
		}
	}
	if haveLast {
		return last
	}
	// An empty row is a contract violation caught at construction; this is
	// unreachable for validated matrices.
	return StateIdle
}

// validateMatrix enforces the construction-time contract: every state has a
// row, rows are non-empty, weights are non-negative, rows sum to 1 within
// tolerance, and no row contains a self-transition.
func validateMatrix(m Matrix) error {
	for _, from := range StateOrder {
		row, ok := m[from]
		if !ok || len(row) == 0 {
			return fmt.Errorf("session: empty transition row for %s", from)
		}
		total := 0.0
		for to, w := range row {
			if to == from && w != 0 {
				return fmt.Errorf("session: self-transition %s->%s must be zero", from, to)
			}
			if w < 0 {
				return fmt.Errorf("session: negative weight %v on %s->%s", w, from, to)
			}
			total += w
		}
		if total < 1-floatTolerance || total > 1+floatTolerance {
			return fmt.Errorf("session: row %s sums to %v, want 1.0", from, total)
		}
	}
	return nil
}

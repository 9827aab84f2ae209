package session

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationModelDefaults(t *testing.T) {
	m, err := NewDurationModel(nil)
	require.NoError(t, err)

	r, ok := m.Range(StateAway)
	require.True(t, ok)
	assert.Equal(t, 5*time.Minute, r.Min)
	assert.Equal(t, 30*time.Minute, r.Max)
}

func TestDurationModelOverrides(t *testing.T) {
	m, err := NewDurationModel(map[State]DurationRange{
		StateIdle: {Min: time.Second, Max: time.Second},
	})
	require.NoError(t, err)

	r, _ := m.Range(StateIdle)
	assert.Equal(t, DurationRange{Min: time.Second, Max: time.Second}, r)

	// Untouched states keep their defaults.
	r, _ = m.Range(StateActive)
	assert.Equal(t, 2*time.Second, r.Min)
}

func TestDurationModelRejectsInvalid(t *testing.T) {
	_, err := NewDurationModel(map[State]DurationRange{
		StateIdle: {Min: 2 * time.Second, Max: time.Second},
	})
	require.Error(t, err)

	_, err = NewDurationModel(map[State]DurationRange{
		State(99): {Min: time.Second, Max: 2 * time.Second},
	})
	require.Error(t, err)

	_, err = NewDurationModel(map[State]DurationRange{
		StateIdle: {Min: -time.Second, Max: time.Second},
	})
	require.Error(t, err)
}

func TestDurationSampleWithinScaledBounds(t *testing.T) {
	m, err := NewDurationModel(nil)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(42))
	p := DefaultProfile()

	for _, s := range StateOrder {
		r, _ := m.Range(s)
		scale := scaleFor(s, p)
		lo := time.Duration(float64(r.Min) * scale)
		hi := time.Duration(float64(r.Max) * scale)
		for i := 0; i < 200; i++ {
			d := m.Sample(s, p, rng)
			assert.GreaterOrEqual(t, d, lo, "state %s", s)
			assert.LessOrEqual(t, d, hi, "state %s", s)
		}
	}
}

func TestDurationSampleFloor(t *testing.T) {
	m, err := NewDurationModel(map[State]DurationRange{
		StateIdle: {Min: 0, Max: 0},
	})
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))

	d := m.Sample(StateIdle, DefaultProfile(), rng)
	assert.Equal(t, minDwell, d)
}

func TestDurationProfileScaling(t *testing.T) {
	m, err := NewDurationModel(map[State]DurationRange{
		StateReading: {Min: 10 * time.Second, Max: 10 * time.Second},
	})
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))

	slow := DefaultProfile()
	slow.ReadingSpeed = 0
	fast := DefaultProfile()
	fast.ReadingSpeed = 1

	// Fixed range, so the profile scale is the only variable.
	assert.Equal(t, 15*time.Second, m.Sample(StateReading, slow, rng))
	assert.Equal(t, 5*time.Second, m.Sample(StateReading, fast, rng))
}

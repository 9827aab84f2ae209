package humanoid

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeClock advances instantly on Sleep and records every requested
// duration, so timing-heavy paths run in microseconds while the sequencing
// stays observable.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) SleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

func (c *fakeClock) TotalSlept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.sleeps {
		total += d
	}
	return total
}

// probeClock calls onSleep before delegating, letting a test observe state
// at every suspension point.
type probeClock struct {
	*fakeClock
	onSleep func()
}

func (c *probeClock) Sleep(ctx context.Context, d time.Duration) error {
	if c.onSleep != nil {
		c.onSleep()
	}
	return c.fakeClock.Sleep(ctx, d)
}

// mockExecutor records every executor call in order as a formatted op
// string. Tests assert on op ordering and aggregates rather than exact
// coordinates.
type mockExecutor struct {
	mu  sync.Mutex
	ops []string
	pos Point

	scrollX float64
	scrollY float64

	failOn string // op prefix that returns errInjected
}

var errInjected = fmt.Errorf("executor: injected failure")

func newMockExecutor() *mockExecutor {
	return &mockExecutor{}
}

func (m *mockExecutor) record(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op)
	if m.failOn != "" && len(op) >= len(m.failOn) && op[:len(m.failOn)] == m.failOn {
		return errInjected
	}
	return nil
}

func (m *mockExecutor) MouseMove(ctx context.Context, x, y float64) error {
	m.mu.Lock()
	m.pos = Point{X: x, Y: y}
	m.mu.Unlock()
	return m.record(fmt.Sprintf("move %.1f,%.1f", x, y))
}

func (m *mockExecutor) MouseDown(ctx context.Context, button MouseButton) error {
	return m.record("down " + string(button))
}

func (m *mockExecutor) MouseUp(ctx context.Context, button MouseButton) error {
	return m.record("up " + string(button))
}

func (m *mockExecutor) KeyDown(ctx context.Context, key string) error {
	return m.record("keydown " + key)
}

func (m *mockExecutor) KeyUp(ctx context.Context, key string) error {
	return m.record("keyup " + key)
}

func (m *mockExecutor) Scroll(ctx context.Context, deltaX, deltaY float64) error {
	m.mu.Lock()
	m.scrollX += deltaX
	m.scrollY += deltaY
	m.mu.Unlock()
	return m.record(fmt.Sprintf("scroll %.1f,%.1f", deltaX, deltaY))
}

func (m *mockExecutor) MousePosition() Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *mockExecutor) ViewportSize(ctx context.Context) (int64, int64, error) {
	return 1920, 1080, nil
}

func (m *mockExecutor) Ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.ops))
	copy(out, m.ops)
	return out
}

func (m *mockExecutor) opsWithPrefix(prefix string) []string {
	var out []string
	for _, op := range m.Ops() {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			out = append(out, op)
		}
	}
	return out
}

var _ ActionExecutor = (*mockExecutor)(nil)

// stubTrajectory returns a fixed two-point path so replay tests do not
// depend on the Bezier generator.
type stubTrajectory struct{}

func (stubTrajectory) Generate(start, end Point) []TrajectoryPoint {
	return []TrajectoryPoint{
		{X: start.X, Y: start.Y, At: 0},
		{X: end.X, Y: end.Y, At: 10 * time.Millisecond},
	}
}

// stubKeystrokes emits one plain event per character with fixed timings.
type stubKeystrokes struct{}

func (stubKeystrokes) Generate(text string) []KeystrokeEvent {
	events := make([]KeystrokeEvent, 0, len(text))
	for _, r := range text {
		events = append(events, KeystrokeEvent{
			Key:      string(r),
			Hold:     5 * time.Millisecond,
			PreDelay: 5 * time.Millisecond,
		})
	}
	return events
}

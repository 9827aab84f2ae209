package humanoid

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/mimic/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// pinned is a dwell long enough that no natural transition fires inside a
// single test, keeping the machine in its initial state.
var pinned = session.DurationRange{Min: 100 * time.Hour, Max: 100 * time.Hour}

func pinnedDurations() map[session.State]session.DurationRange {
	out := make(map[session.State]session.DurationRange, len(session.StateOrder))
	for _, s := range session.StateOrder {
		out[s] = pinned
	}
	return out
}

type orchestratorFixture struct {
	orch    *Orchestrator
	machine *session.Machine
	exec    *mockExecutor
	clock   *fakeClock
}

func newFixture(t *testing.T, initial session.State) *orchestratorFixture {
	t.Helper()

	clock := newFakeClock()
	machine, err := session.NewMachine(session.MachineConfig{
		Profile:           session.DefaultProfile(),
		Clock:             clock,
		Rng:               rand.New(rand.NewSource(1)),
		InitialState:      initial,
		DurationOverrides: pinnedDurations(),
	})
	require.NoError(t, err)

	exec := newMockExecutor()
	orch, err := NewOrchestrator(OrchestratorConfig{
		Machine:      machine,
		Executor:     exec,
		Trajectories: stubTrajectory{},
		Keystrokes:   stubKeystrokes{},
		Clock:        clock,
		Rng:          rand.New(rand.NewSource(2)),
	})
	require.NoError(t, err)

	return &orchestratorFixture{orch: orch, machine: machine, exec: exec, clock: clock}
}

func TestOrchestratorRequiresCollaborators(t *testing.T) {
	_, err := NewOrchestrator(OrchestratorConfig{Executor: newMockExecutor()})
	require.Error(t, err)

	fx := newFixture(t, session.StateActive)
	_, err = NewOrchestrator(OrchestratorConfig{Machine: fx.machine})
	require.Error(t, err)
}

func TestOrchestratorClickSequence(t *testing.T) {
	fx := newFixture(t, session.StateActive)

	err := fx.orch.Execute(context.Background(), Click(Point{X: 200, Y: 300}))
	require.NoError(t, err)

	ops := fx.exec.Ops()
	require.NotEmpty(t, ops)

	moves := fx.exec.opsWithPrefix("move")
	require.NotEmpty(t, moves)
	assert.Equal(t, "move 200.0,300.0", moves[len(moves)-1])

	assert.Equal(t, []string{"down left"}, fx.exec.opsWithPrefix("down"))
	assert.Equal(t, []string{"up left"}, fx.exec.opsWithPrefix("up"))

	// down strictly after the last move, up strictly after down.
	lastMove := lastIndexWithPrefix(ops, "move")
	down := lastIndexWithPrefix(ops, "down")
	up := lastIndexWithPrefix(ops, "up")
	assert.Greater(t, down, lastMove)
	assert.Greater(t, up, down)
}

func TestOrchestratorDoubleClick(t *testing.T) {
	fx := newFixture(t, session.StateActive)

	err := fx.orch.Execute(context.Background(), DoubleClick(Point{X: 10, Y: 10}))
	require.NoError(t, err)

	assert.Len(t, fx.exec.opsWithPrefix("down"), 2)
	assert.Len(t, fx.exec.opsWithPrefix("up"), 2)
}

func TestOrchestratorWaitSetsActivity(t *testing.T) {
	fx := newFixture(t, session.StateActive)

	// Sample the machine's activity at every suspension point. The wait's
	// own sleep must run under WAITING.
	var seen []session.ActivityType
	probe := &probeClock{fakeClock: fx.clock, onSleep: func() {
		seen = append(seen, fx.machine.Activity())
	}}
	orch, err := NewOrchestrator(OrchestratorConfig{
		Machine:      fx.machine,
		Executor:     fx.exec,
		Trajectories: stubTrajectory{},
		Keystrokes:   stubKeystrokes{},
		Clock:        probe,
		Rng:          rand.New(rand.NewSource(3)),
	})
	require.NoError(t, err)

	before := fx.clock.TotalSlept()
	err = orch.Execute(context.Background(), Wait(200*time.Millisecond, 200*time.Millisecond))
	require.NoError(t, err)

	assert.Contains(t, seen, session.ActivityWaiting)
	assert.Equal(t, session.ActivityBrowsing, fx.machine.Activity(),
		"BROWSING must be restored after the wait")
	assert.GreaterOrEqual(t, fx.clock.TotalSlept()-before, 200*time.Millisecond)
}

func TestOrchestratorWaitDefaultsBounds(t *testing.T) {
	fx := newFixture(t, session.StateActive)

	before := fx.clock.TotalSlept()
	err := fx.orch.Execute(context.Background(), Wait(0, 0))
	require.NoError(t, err)

	slept := fx.clock.TotalSlept() - before
	assert.GreaterOrEqual(t, slept, 500*time.Millisecond)
}

func TestOrchestratorAbortAndReset(t *testing.T) {
	fx := newFixture(t, session.StateActive)

	fx.orch.Abort()
	err := fx.orch.Execute(context.Background(), Click(Point{X: 1, Y: 1}))
	require.ErrorIs(t, err, ErrAborted)
	assert.Empty(t, fx.exec.Ops(), "no executor calls after abort")

	fx.orch.ResetAbort()
	err = fx.orch.Execute(context.Background(), Click(Point{X: 1, Y: 1}))
	require.NoError(t, err)
	assert.NotEmpty(t, fx.exec.Ops())
}

func TestOrchestratorContextCancellation(t *testing.T) {
	fx := newFixture(t, session.StateActive)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := fx.orch.Execute(ctx, Click(Point{X: 1, Y: 1}))
	require.ErrorIs(t, err, context.Canceled)
}

func TestOrchestratorSequenceOrdering(t *testing.T) {
	fx := newFixture(t, session.StateActive)

	err := fx.orch.ExecuteSequence(context.Background(), []ActionRequest{
		Click(Point{X: 400, Y: 120}),
		TypeText("hi"),
	})
	require.NoError(t, err)

	ops := fx.exec.Ops()
	mouseUp := lastIndexWithPrefix(ops, "up left")
	firstKey := firstIndexWithPrefix(ops, "keydown")
	require.GreaterOrEqual(t, mouseUp, 0)
	require.GreaterOrEqual(t, firstKey, 0)
	assert.Less(t, mouseUp, firstKey,
		"the click must fully complete before typing starts")
}

func TestOrchestratorTypeRestoresActivity(t *testing.T) {
	fx := newFixture(t, session.StateActive)

	err := fx.orch.Execute(context.Background(), TypeText(""))
	require.NoError(t, err)
	assert.Equal(t, session.ActivityBrowsing, fx.machine.Activity())

	err = fx.orch.Execute(context.Background(), TypeText("ok"))
	require.NoError(t, err)
	assert.Equal(t, session.ActivityBrowsing, fx.machine.Activity())

	downs := fx.exec.opsWithPrefix("keydown")
	ups := fx.exec.opsWithPrefix("keyup")
	assert.Equal(t, len(downs), len(ups), "every keydown pairs with a keyup")
}

func TestOrchestratorClearFirst(t *testing.T) {
	fx := newFixture(t, session.StateActive)

	err := fx.orch.Execute(context.Background(), ActionRequest{
		Kind:       KindType,
		Text:       "x",
		ClearFirst: true,
	})
	require.NoError(t, err)

	ops := fx.exec.Ops()
	ctrl := firstIndexWithPrefix(ops, "keydown Control")
	sel := firstIndexWithPrefix(ops, "keydown a")
	bksp := firstIndexWithPrefix(ops, "keydown Backspace")
	typed := firstIndexWithPrefix(ops, "keydown x")
	require.GreaterOrEqual(t, ctrl, 0)
	assert.Less(t, ctrl, sel)
	assert.Less(t, sel, bksp)
	assert.Less(t, bksp, typed)
}

func TestOrchestratorScrollDecomposition(t *testing.T) {
	fx := newFixture(t, session.StateScrolling)

	err := fx.orch.Execute(context.Background(), Scroll(0, 1000))
	require.NoError(t, err)

	scrolls := fx.exec.opsWithPrefix("scroll")
	require.Greater(t, len(scrolls), 1, "a 1000px scroll decomposes into several wheel clicks")
	assert.InDelta(t, 0, fx.exec.scrollX, 1e-6)
	assert.InDelta(t, 1000, fx.exec.scrollY, 1e-6)
}

func TestOrchestratorScrollZeroDelta(t *testing.T) {
	fx := newFixture(t, session.StateActive)

	err := fx.orch.Execute(context.Background(), Scroll(0, 0))
	require.NoError(t, err)
	assert.Empty(t, fx.exec.opsWithPrefix("scroll"))
}

func TestOrchestratorHover(t *testing.T) {
	fx := newFixture(t, session.StateActive)

	err := fx.orch.Execute(context.Background(), Hover(Point{X: 55, Y: 66}))
	require.NoError(t, err)

	moves := fx.exec.opsWithPrefix("move")
	require.NotEmpty(t, moves)
	assert.Equal(t, "move 55.0,66.0", moves[len(moves)-1])
	assert.Empty(t, fx.exec.opsWithPrefix("down"))
}

func TestOrchestratorWaitsOutAway(t *testing.T) {
	clock := newFakeClock()
	// AWAY resolves quickly; the follow-up state is AWAY's only successor,
	// IDLE, which is actionable.
	overrides := pinnedDurations()
	overrides[session.StateAway] = session.DurationRange{Min: 2 * time.Second, Max: 2 * time.Second}

	machine, err := session.NewMachine(session.MachineConfig{
		Profile:           session.DefaultProfile(),
		Clock:             clock,
		Rng:               rand.New(rand.NewSource(1)),
		InitialState:      session.StateAway,
		DurationOverrides: overrides,
	})
	require.NoError(t, err)

	exec := newMockExecutor()
	orch, err := NewOrchestrator(OrchestratorConfig{
		Machine:      machine,
		Executor:     exec,
		Trajectories: stubTrajectory{},
		Keystrokes:   stubKeystrokes{},
		Clock:        clock,
		Rng:          rand.New(rand.NewSource(2)),
	})
	require.NoError(t, err)

	err = orch.Execute(context.Background(), Click(Point{X: 5, Y: 5}))
	require.NoError(t, err)
	assert.NotEmpty(t, exec.Ops())
	assert.True(t, machine.State().Actionable())
}

func TestOrchestratorAwaySafetyValve(t *testing.T) {
	fx := newFixture(t, session.StateAway)

	// AWAY is pinned to 100h, so only the 30 minute ceiling releases the
	// wait, forcing the machine to IDLE.
	err := fx.orch.Execute(context.Background(), Click(Point{X: 5, Y: 5}))
	require.NoError(t, err)
	assert.NotEmpty(t, fx.exec.Ops())
	assert.GreaterOrEqual(t, fx.clock.TotalSlept(), 30*time.Minute)
}

func TestOrchestratorRejectsUnknownKind(t *testing.T) {
	fx := newFixture(t, session.StateActive)

	err := fx.orch.Execute(context.Background(), ActionRequest{Kind: Kind("teleport")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action kind")
}

func TestOrchestratorExecutorErrorsPropagate(t *testing.T) {
	fx := newFixture(t, session.StateActive)
	fx.exec.failOn = "down"

	err := fx.orch.Execute(context.Background(), Click(Point{X: 1, Y: 1}))
	require.ErrorIs(t, err, errInjected)
}

func lastIndexWithPrefix(ops []string, prefix string) int {
	for i := len(ops) - 1; i >= 0; i-- {
		if strings.HasPrefix(ops[i], prefix) {
			return i
		}
	}
	return -1
}

func firstIndexWithPrefix(ops []string, prefix string) int {
	for i, op := range ops {
		if strings.HasPrefix(op, prefix) {
			return i
		}
	}
	return -1
}

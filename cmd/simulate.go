package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/mimic/internal/browser"
	"github.com/xkilldash9x/mimic/internal/config"
	"github.com/xkilldash9x/mimic/internal/humanoid"
	"github.com/xkilldash9x/mimic/internal/observability"
	"github.com/xkilldash9x/mimic/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// samplePhrases feed the typing actions of a simulation run.
var samplePhrases = []string{
	"hello there",
	"looking for the docs",
	"what does this button do",
	"test query 42",
	"the quick brown fox",
}

func newSimulateCommand(cfg *config.Config) *cobra.Command {
	var (
		persona  string
		seed     int64
		duration time.Duration
		dryRun   bool
		trace    string
		url      string
	)

	simCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a behavioral simulation session.",
		Long: `Simulate drives a single persona session: the state machine advances
through its behavioral states while the orchestrator issues randomized,
human-paced actions. With --dry-run no browser is launched and actions are
recorded only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := cfg.Simulate
			sc.Duration = duration
			sc.DryRun = dryRun
			sc.TracePath = trace
			sc.URL = url
			if persona != "" {
				cfg.Session.Persona = persona
			}
			if seed != 0 {
				cfg.Session.Seed = seed
			}
			return runSimulate(cmd.Context(), cfg, sc)
		},
	}

	simCmd.Flags().StringVar(&persona, "persona", "", "persona preset (casual, focused, restless, night-owl)")
	simCmd.Flags().Int64Var(&seed, "seed", 0, "RNG seed; 0 derives one from the clock")
	simCmd.Flags().DurationVar(&duration, "duration", 2*time.Minute, "how long to run the session")
	simCmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not launch a browser; record actions only")
	simCmd.Flags().StringVar(&trace, "trace", "", "write a JSONL event trace to this file")
	simCmd.Flags().StringVar(&url, "url", "", "page to load before simulating (ignored with --dry-run)")

	return simCmd
}

func runSimulate(ctx context.Context, cfg *config.Config, sc config.SimulateConfig) error {
	logger := observability.GetLogger().Named("simulate")

	profile, err := cfg.Session.ResolveProfile()
	if err != nil {
		return err
	}
	overrides, err := cfg.Session.DurationOverrides()
	if err != nil {
		return err
	}

	seed := cfg.Session.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	logger.Info("session parameters",
		zap.String("persona", cfg.Session.Persona),
		zap.Int64("seed", seed),
		zap.Duration("duration", sc.Duration),
		zap.Bool("dry_run", sc.DryRun))

	machine, err := session.NewMachine(session.MachineConfig{
		Profile:           profile,
		Rng:               rng,
		Logger:            logger,
		DurationOverrides: overrides,
	})
	if err != nil {
		return err
	}

	var executor humanoid.ActionExecutor
	if sc.DryRun {
		executor = newDryRunExecutor(logger)
	} else {
		bs, err := browser.NewSession(ctx, cfg.Browser, logger)
		if err != nil {
			return err
		}
		defer bs.Close()
		if sc.URL != "" {
			if err := bs.Navigate(ctx, sc.URL); err != nil {
				return err
			}
		}
		executor = bs.Executor(cfg.Input)
	}

	var tracer *traceWriter
	if sc.TracePath != "" {
		tracer, err = newTraceWriter(sc.TracePath)
		if err != nil {
			return err
		}
		defer tracer.Close()
		unsubscribe := machine.OnTransition(tracer.Transition)
		defer unsubscribe()
	}

	orch, err := humanoid.NewOrchestrator(humanoid.OrchestratorConfig{
		Machine:  machine,
		Executor: executor,
		Rng:      rng,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, sc.Duration)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		<-gctx.Done()
		orch.Abort()
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return driveSession(gctx, orch, executor, machine, rng, tracer, logger)
	})

	err = g.Wait()
	if errors.Is(err, humanoid.ErrAborted) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		logger.Info("session finished",
			zap.Uint64("transitions", machine.Snapshot().TransitionCount))
		return nil
	}
	return err
}

// driveSession issues randomized actions until the context expires.
func driveSession(
	ctx context.Context,
	orch *humanoid.Orchestrator,
	executor humanoid.ActionExecutor,
	machine *session.Machine,
	rng *rand.Rand,
	tracer *traceWriter,
	logger *zap.Logger,
) error {
	width, height, err := executor.ViewportSize(ctx)
	if err != nil || width <= 0 || height <= 0 {
		width, height = 1280, 800
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := nextAction(rng, float64(width), float64(height))
		if tracer != nil {
			tracer.Action(req, machine.State())
		}
		if err := orch.Execute(ctx, req); err != nil {
			return err
		}
		logger.Debug("action complete",
			zap.String("kind", string(req.Kind)),
			zap.Stringer("state", machine.State()))
	}
}

// nextAction picks a weighted random request inside the viewport, with a
// small margin so trajectories stay on screen.
func nextAction(rng *rand.Rand, width, height float64) humanoid.ActionRequest {
	target := humanoid.Point{
		X: 20 + rng.Float64()*(width-40),
		Y: 20 + rng.Float64()*(height-40),
	}
	switch v := rng.Float64(); {
	case v < 0.25:
		return humanoid.Click(target)
	case v < 0.45:
		return humanoid.Hover(target)
	case v < 0.75:
		dy := (rng.Float64()*2 - 1) * 900
		return humanoid.Scroll(0, dy)
	case v < 0.95:
		return humanoid.Wait(time.Second, 5*time.Second)
	default:
		return humanoid.TypeText(samplePhrases[rng.Intn(len(samplePhrases))])
	}
}

// traceWriter appends one JSON object per line for transitions and actions.
type traceWriter struct {
	f   *os.File
	buf *bufio.Writer
}

type traceRecord struct {
	Type      string  `json:"type"`
	Timestamp string  `json:"ts"`
	State     string  `json:"state,omitempty"`
	From      string  `json:"from,omitempty"`
	To        string  `json:"to,omitempty"`
	DwellMs   int64   `json:"dwell_ms,omitempty"`
	Forced    bool    `json:"forced,omitempty"`
	Kind      string  `json:"kind,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
}

func newTraceWriter(path string) (*traceWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	return &traceWriter{f: f, buf: bufio.NewWriter(f)}, nil
}

func (w *traceWriter) Transition(ev session.TransitionEvent) {
	w.write(traceRecord{
		Type:      "transition",
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
		From:      ev.From.String(),
		To:        ev.To.String(),
		DwellMs:   ev.Dwell.Milliseconds(),
		Forced:    ev.Forced,
	})
}

func (w *traceWriter) Action(req humanoid.ActionRequest, state session.State) {
	w.write(traceRecord{
		Type:      "action",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		State:     state.String(),
		Kind:      string(req.Kind),
		X:         req.Target.X,
		Y:         req.Target.Y,
	})
}

func (w *traceWriter) write(rec traceRecord) {
	line, err := json.Marshal(rec)
	if err != nil {
		return
	}
	w.buf.Write(line)
	w.buf.WriteByte('\n')
}

func (w *traceWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// dryRunExecutor satisfies the executor contract without a browser. It only
// tracks the cursor so trajectory replay stays coherent.
type dryRunExecutor struct {
	logger *zap.Logger
	pos    humanoid.Point
}

var _ humanoid.ActionExecutor = (*dryRunExecutor)(nil)

func newDryRunExecutor(logger *zap.Logger) *dryRunExecutor {
	return &dryRunExecutor{logger: logger.Named("dryrun")}
}

func (d *dryRunExecutor) MouseMove(ctx context.Context, x, y float64) error {
	d.pos = humanoid.Point{X: x, Y: y}
	return nil
}

func (d *dryRunExecutor) MouseDown(ctx context.Context, button humanoid.MouseButton) error {
	d.logger.Debug("mouse down", zap.String("button", string(button)))
	return nil
}

func (d *dryRunExecutor) MouseUp(ctx context.Context, button humanoid.MouseButton) error {
	return nil
}

func (d *dryRunExecutor) KeyDown(ctx context.Context, key string) error { return nil }
func (d *dryRunExecutor) KeyUp(ctx context.Context, key string) error   { return nil }

func (d *dryRunExecutor) Scroll(ctx context.Context, deltaX, deltaY float64) error {
	return nil
}

func (d *dryRunExecutor) MousePosition() humanoid.Point { return d.pos }

func (d *dryRunExecutor) ViewportSize(ctx context.Context) (int64, int64, error) {
	return 1280, 800, nil
}

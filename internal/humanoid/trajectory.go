package humanoid

import (
	"math"
	"math/rand"
	"time"

	"github.com/aquilax/go-perlin"
)

// Sampling cadence of generated paths, roughly 125 Hz.
const trajectoryStepInterval = 8 * time.Millisecond

// BezierTrajectory is the production TrajectoryProvider: a cubic Bezier
// between start and target with perpendicular control-point displacement,
// smoothstep easing, taper-enveloped jitter, and occasional overshoot with a
// correction arc. It emits a plan; replay timing is the orchestrator's job.
type BezierTrajectory struct {
	rng    *rand.Rand
	noiseX *perlin.Perlin
	noiseY *perlin.Perlin
}

// NewBezierTrajectory creates a provider. A nil rng gets a time-based seed;
// tests inject a seeded source for deterministic paths.
func NewBezierTrajectory(rng *rand.Rand) *BezierTrajectory {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	// Standard perlin parameters; two generators so the axes drift
	// independently.
	return &BezierTrajectory{
		rng:    rng,
		noiseX: perlin.NewPerlin(2, 2, 3, rng.Int63()),
		noiseY: perlin.NewPerlin(2, 2, 3, rng.Int63()),
	}
}

// smoothstep eases the path parameter for natural acceleration and
// deceleration.
func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

func clampJitter(v float64) float64 {
	const maxJitter = 1.5
	return math.Max(-maxJitter, math.Min(maxJitter, v))
}

// fittsDuration derives the movement time from the travel distance,
// Fitts's-Law shaped and jittered +/- 15%.
func (g *BezierTrajectory) fittsDuration(distance float64) time.Duration {
	ms := 200 + 150*math.Log2(distance/20+1)
	ms *= 0.85 + g.rng.Float64()*0.30
	return time.Duration(ms * float64(time.Millisecond))
}

// Generate produces the timestamped point sequence from start to end. Moves
// under one pixel collapse to a single point at the target.
func (g *BezierTrajectory) Generate(start, end Point) []TrajectoryPoint {
	p0 := Vector2D{X: start.X, Y: start.Y}
	p3 := Vector2D{X: end.X, Y: end.Y}
	dist := p0.Dist(p3)

	if dist < 1.0 {
		return []TrajectoryPoint{{X: end.X, Y: end.Y, At: 0}}
	}

	duration := g.fittsDuration(dist)
	steps := int(duration / trajectoryStepInterval)
	if steps < 2 {
		steps = 2
	}

	dir := p3.Sub(p0).Normalize()
	perp := dir.Perp()
	side := 1.0
	if g.rng.Float64() < 0.5 {
		side = -1.0
	}
	// Control points sit a third and two thirds along the line, displaced
	// perpendicular by 5-25% of the distance on a random (shared) side.
	c1 := p0.Add(dir.Mul(dist / 3)).Add(perp.Mul(side * dist * (0.05 + 0.20*g.rng.Float64())))
	c2 := p0.Add(dir.Mul(2 * dist / 3)).Add(perp.Mul(side * dist * (0.05 + 0.20*g.rng.Float64())))

	pts := make([]TrajectoryPoint, 0, steps+12)
	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps-1)
		e := smoothstep(t)
		pos := cubicBezier(p0, c1, c2, p3, e)

		// Jitter envelope: zero at the endpoints, peak at the midpoint.
		taper := math.Sin(math.Pi * t)
		jx := clampJitter(g.noiseX.Noise1D(e*3.1)*2.5) * taper
		jy := clampJitter(g.noiseY.Noise1D(e*3.1)*2.5) * taper

		pts = append(pts, TrajectoryPoint{
			X:  pos.X + jx,
			Y:  pos.Y + jy,
			At: time.Duration(e * float64(duration)),
		})
	}

	if dist > 50 && g.rng.Float64() < 0.25 {
		pts = g.appendOvershoot(pts, dir, perp, p3)
	}

	// Hard contract: the final point lands on the target exactly.
	last := len(pts) - 1
	pts[last].X = end.X
	pts[last].Y = end.Y
	return pts
}

// appendOvershoot trims the approach tail and replaces it with a glide past
// the target followed by a short correction arc back, extending the total
// duration.
func (g *BezierTrajectory) appendOvershoot(pts []TrajectoryPoint, dir, perp Vector2D, target Vector2D) []TrajectoryPoint {
	cut := len(pts) / 10
	if cut < 2 {
		cut = 2
	}
	if len(pts)-cut < 1 {
		return pts
	}
	pts = pts[:len(pts)-cut]

	lastPt := pts[len(pts)-1]
	lastPos := Vector2D{X: lastPt.X, Y: lastPt.Y}
	at := lastPt.At

	overDist := 5 + 15*g.rng.Float64()
	overPoint := target.Add(dir.Mul(overDist))

	// Glide past the target.
	overSteps := 3 + g.rng.Intn(3)
	overDur := time.Duration(60+g.rng.Intn(60)) * time.Millisecond
	for i := 1; i <= overSteps; i++ {
		t := float64(i) / float64(overSteps)
		pos := lastPos.Add(overPoint.Sub(lastPos).Mul(smoothstep(t)))
		pts = append(pts, TrajectoryPoint{
			X:  pos.X,
			Y:  pos.Y,
			At: at + time.Duration(t*float64(overDur)),
		})
	}
	at += overDur

	// Correction arc back to the target, bowed slightly off-axis.
	corrSteps := 4 + g.rng.Intn(4)
	corrDur := time.Duration(80+g.rng.Intn(100)) * time.Millisecond
	bow := (g.rng.Float64()*2 - 1) * 2.0
	for i := 1; i <= corrSteps; i++ {
		t := float64(i) / float64(corrSteps)
		pos := overPoint.Add(target.Sub(overPoint).Mul(smoothstep(t)))
		pos = pos.Add(perp.Mul(bow * math.Sin(math.Pi*t)))
		pts = append(pts, TrajectoryPoint{
			X:  pos.X,
			Y:  pos.Y,
			At: at + time.Duration(t*float64(corrDur)),
		})
	}
	return pts
}

func cubicBezier(p0, p1, p2, p3 Vector2D, t float64) Vector2D {
	omt := 1 - t
	omt2 := omt * omt
	t2 := t * t
	return p0.Mul(omt2 * omt).
		Add(p1.Mul(3 * omt2 * t)).
		Add(p2.Mul(3 * omt * t2)).
		Add(p3.Mul(t2 * t))
}

package session

import "fmt"

// Profile is the immutable per-persona tuning for a session. Each dial is
// normalized to [0, 1] and validated once at construction; the struct is
// copied by value everywhere and never mutated afterwards.
type Profile struct {
	// IdleTendency stretches how long the persona lingers in IDLE.
	IdleTendency float64 `mapstructure:"idle_tendency" yaml:"idle_tendency"`
	// AfkProneness biases transitions into AWAY and stretches AWAY dwells.
	AfkProneness float64 `mapstructure:"afk_proneness" yaml:"afk_proneness"`
	// ReadingSpeed shortens READING dwells as it approaches 1.
	ReadingSpeed float64 `mapstructure:"reading_speed" yaml:"reading_speed"`
	// ScrollTendency biases transitions into SCROLLING.
	ScrollTendency float64 `mapstructure:"scroll_tendency" yaml:"scroll_tendency"`
	// Deliberation biases READING toward THINKING and stretches THINKING.
	Deliberation float64 `mapstructure:"deliberation" yaml:"deliberation"`
	// ActivityLevel biases IDLE toward ACTIVE and shortens ACTIVE dwells.
	ActivityLevel float64 `mapstructure:"activity_level" yaml:"activity_level"`
}

// Validate checks that every dial lies in [0, 1].
func (p Profile) Validate() error {
	dials := []struct {
		name  string
		value float64
	}{
		{"idle_tendency", p.IdleTendency},
		{"afk_proneness", p.AfkProneness},
		{"reading_speed", p.ReadingSpeed},
		{"scroll_tendency", p.ScrollTendency},
		{"deliberation", p.Deliberation},
		{"activity_level", p.ActivityLevel},
	}
	for _, d := range dials {
		if d.value < 0 || d.value > 1 {
			return fmt.Errorf("session: profile dial %s = %v out of range [0,1]", d.name, d.value)
		}
	}
	return nil
}

// DefaultProfile returns the "average user" persona: every dial at 0.5.
func DefaultProfile() Profile {
	return Profile{
		IdleTendency:   0.5,
		AfkProneness:   0.5,
		ReadingSpeed:   0.5,
		ScrollTendency: 0.5,
		Deliberation:   0.5,
		ActivityLevel:  0.5,
	}
}

// Presets maps persona names to hand-tuned profiles. The zero value of a
// missing name is not usable; callers should fall back to DefaultProfile.
var Presets = map[string]Profile{
	"casual": {
		IdleTendency:   0.6,
		AfkProneness:   0.55,
		ReadingSpeed:   0.45,
		ScrollTendency: 0.6,
		Deliberation:   0.4,
		ActivityLevel:  0.45,
	},
	"focused": {
		IdleTendency:   0.2,
		AfkProneness:   0.15,
		ReadingSpeed:   0.7,
		ScrollTendency: 0.35,
		Deliberation:   0.65,
		ActivityLevel:  0.85,
	},
	"restless": {
		IdleTendency:   0.25,
		AfkProneness:   0.35,
		ReadingSpeed:   0.6,
		ScrollTendency: 0.9,
		Deliberation:   0.2,
		ActivityLevel:  0.75,
	},
	"night-owl": {
		IdleTendency:   0.5,
		AfkProneness:   0.4,
		ReadingSpeed:   0.5,
		ScrollTendency: 0.55,
		Deliberation:   0.55,
		ActivityLevel:  0.6,
	},
}

// PresetProfile looks up a named persona, falling back to DefaultProfile for
// the empty name. Unknown names are an error so typos fail loudly.
func PresetProfile(name string) (Profile, error) {
	if name == "" {
		return DefaultProfile(), nil
	}
	p, ok := Presets[name]
	if !ok {
		return Profile{}, fmt.Errorf("session: unknown persona preset %q", name)
	}
	return p, nil
}

package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/mimic/internal/session"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "mimic", cfg.Logger.ServiceName)
	assert.Equal(t, 240.0, cfg.Input.DispatchRate)
	assert.True(t, cfg.Browser.Headless)

	p, err := cfg.Session.ResolveProfile()
	require.NoError(t, err)
	assert.Equal(t, session.DefaultProfile(), p)
}

func TestConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("session.persona", "focused")
	v.Set("session.durations.away", map[string]any{"min": "1m", "max": "2m"})

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	p, err := cfg.Session.ResolveProfile()
	require.NoError(t, err)
	assert.Equal(t, session.Presets["focused"], p)

	overrides, err := cfg.Session.DurationOverrides()
	require.NoError(t, err)
	require.Contains(t, overrides, session.StateAway)
	assert.Equal(t, time.Minute, overrides[session.StateAway].Min)
	assert.Equal(t, 2*time.Minute, overrides[session.StateAway].Max)
}

func TestConfigRejectsUnknownPersona(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("session.persona", "ghost")

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
}

func TestConfigRejectsUnknownDurationState(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("session.durations.daydreaming", map[string]any{"min": "1s", "max": "2s"})

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
}

func TestConfigRejectsNegativeDispatchRate(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("input.dispatch_rate", -1.0)

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
}

func TestExplicitProfileWinsOverPersona(t *testing.T) {
	custom := session.Profile{ActivityLevel: 0.9, ReadingSpeed: 0.3}
	s := SessionConfig{Persona: "casual", Profile: &custom}

	p, err := s.ResolveProfile()
	require.NoError(t, err)
	assert.Equal(t, custom, p)
}

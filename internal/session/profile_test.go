package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileValidate(t *testing.T) {
	assert.NoError(t, DefaultProfile().Validate())
	assert.NoError(t, Profile{}.Validate())

	bad := DefaultProfile()
	bad.ScrollTendency = 1.01
	assert.Error(t, bad.Validate())

	bad = DefaultProfile()
	bad.Deliberation = -0.1
	assert.Error(t, bad.Validate())
}

func TestPresetsAreValid(t *testing.T) {
	for name, p := range Presets {
		assert.NoError(t, p.Validate(), "preset %q", name)
	}
}

func TestPresetProfileLookup(t *testing.T) {
	p, err := PresetProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), p)

	p, err = PresetProfile("focused")
	require.NoError(t, err)
	assert.Equal(t, Presets["focused"], p)

	_, err = PresetProfile("speedrunner")
	require.Error(t, err)
}

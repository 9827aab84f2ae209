package cmd

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/mimic/internal/observability"
)

func TestNewRootCommandStructure(t *testing.T) {
	root := NewRootCommand()

	assert.Equal(t, "mimic", root.Use)
	assert.Equal(t, Version, root.Version)

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "simulate")
}

func TestSimulateDryRun(t *testing.T) {
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	tracePath := filepath.Join(t.TempDir(), "trace.jsonl")

	root := NewRootCommand()
	root.SetArgs([]string{
		"simulate",
		"--dry-run",
		"--duration", "2s",
		"--seed", "7",
		"--persona", "restless",
		"--trace", tracePath,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, root.ExecuteContext(ctx))

	f, err := os.Open(tracePath)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		assert.Contains(t, scanner.Text(), `"type":`)
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Greater(t, lines, 0, "a 2s dry run records at least one event")
}

func TestSimulateRejectsUnknownPersona(t *testing.T) {
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	root := NewRootCommand()
	root.SetArgs([]string{"simulate", "--dry-run", "--duration", "1s", "--persona", "ghost"})

	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
}

package core

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

// requireTools skips the test when a program it shells out to is missing.
func requireTools(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%s not available: %v", name, err)
		}
	}
}

func mustSpawn(t *testing.T, args ...string) *ProcessStage {
	t.Helper()
	p, err := Bash(args...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func mustRun(t *testing.T, s Stage, input []byte) Result {
	t.Helper()
	res, err := s.Run(context.Background(), input)
	require.NoError(t, err)
	return res
}

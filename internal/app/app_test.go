package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"shellpipe/internal/config"
	"shellpipe/internal/core"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.Storage.LogDir = filepath.Join(dir, "logs")
	cfg.Storage.LedgerPath = filepath.Join(dir, "ledger.jsonl")
	cfg.Storage.KeyDir = filepath.Join(dir, "keys")
	return cfg
}

func TestNewWiresRunner(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Same(t, a.Ledger, a.Runner.Ledger)
	assert.Same(t, a.Metrics, a.Runner.Metrics)
	assert.Equal(t, cfg.Runner.AgentID, a.Runner.AgentID)
	assert.Equal(t, cfg.Runner.Timeout, a.Runner.Timeout)
	assert.FileExists(t, filepath.Join(cfg.Storage.KeyDir, "ledger.pub"))
	assert.FileExists(t, cfg.Storage.LedgerPath)
}

func TestNewRunsAndRecords(t *testing.T) {
	if _, err := os.Stat("/bin/echo"); err != nil {
		t.Skip("/bin/echo not available")
	}
	a, err := New(testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	run, err := a.Runner.Run(context.Background(), &core.Definition{
		Name:   "hello",
		Stages: []core.Command{core.Cmd("/bin/echo", "hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, run.Block)
	assert.FileExists(t, run.LogPath)
	assert.NoError(t, a.Ledger.VerifyChain(a.Runner.PubKey))
}

func TestNewRejectsBadLogLevel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.Level = "loud"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewDevelopmentLogging(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.Development = true
	cfg.Logging.Level = ""

	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.True(t, a.Logger.Core().Enabled(zapcore.DebugLevel))
}

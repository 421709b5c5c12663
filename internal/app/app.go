// Package app wires configuration, logging, storage, the ledger and metrics
// into a ready-to-use pipeline runner for the commands under cmd/.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"shellpipe/internal/config"
	"shellpipe/internal/core"
	"shellpipe/internal/ledger"
	"shellpipe/internal/logging"
	"shellpipe/internal/monitoring"
	"shellpipe/internal/security"
	"shellpipe/internal/storage"
)

// App bundles the long-lived collaborators of a shellpipe process.
type App struct {
	Config  *config.Config
	Logger  *logging.Logger
	Runner  *core.Runner
	Ledger  *ledger.Ledger
	Metrics *monitoring.Metrics
}

// New builds an App from cfg. Signing keys are generated on first use.
func New(cfg *config.Config) (*App, error) {
	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pub, priv, created, err := security.EnsureKeyPair(cfg.Storage.KeyDir)
	if err != nil {
		return nil, fmt.Errorf("init signing keys: %w", err)
	}
	if created {
		logger.Info("generated ledger signing keys", zap.String("dir", cfg.Storage.KeyDir))
	}

	l, err := ledger.OpenLedger(cfg.Storage.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	metrics := monitoring.NewMetrics()

	runner := core.NewRunner(logger.Logger)
	runner.LogStorage = storage.NewLogStorage(cfg.Storage.LogDir)
	runner.Ledger = l
	runner.Metrics = metrics
	runner.PrivKey, runner.PubKey = priv, pub
	runner.AgentID = cfg.Runner.AgentID
	runner.Timeout = cfg.Runner.Timeout

	return &App{
		Config:  cfg,
		Logger:  logger,
		Runner:  runner,
		Ledger:  l,
		Metrics: metrics,
	}, nil
}

// Close flushes the logger.
func (a *App) Close() error {
	_ = a.Logger.Sync()
	return nil
}

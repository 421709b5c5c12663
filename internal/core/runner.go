package core

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shellpipe/internal/ledger"
	"shellpipe/internal/monitoring"
	"shellpipe/internal/storage"
	"shellpipe/pkg/utils"
)

// Run is the report of one executed Definition.
type Run struct {
	ID       string
	Pipeline string
	Command  string
	ExitCode int      // Result.ExitCode, or the Pipefail code when pipefail is set
	Result   Result   // final stage
	Stages   []Result // every stage, only when pipefail is set
	LogPath  string
	Block    int // ledger index, -1 when not recorded
	Started  time.Time
	Duration time.Duration
}

// Runner ties together the chain builder, log storage, the ledger and metrics.
// Only Logger is required; every other collaborator is optional.
type Runner struct {
	Logger     *zap.Logger
	LogStorage *storage.LogStorage
	Ledger     *ledger.Ledger
	Metrics    *monitoring.Metrics
	PrivKey    ed25519.PrivateKey
	PubKey     ed25519.PublicKey
	AgentID    string
	Timeout    time.Duration // used when a definition sets none
	Options    []SpawnOption
}

// NewRunner creates a runner that only logs.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Logger: logger, AgentID: "local-agent"}
}

// Run builds def, runs it to completion and records the outcome. A non-zero
// exit code is reported in the Run, not as an error. Errors are spawn
// failures, I/O failures and timeouts.
func (r *Runner) Run(ctx context.Context, def *Definition) (*Run, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	run := &Run{
		ID:       uuid.NewString(),
		Pipeline: def.Name,
		Block:    -1,
		Started:  time.Now(),
	}
	log := r.Logger.With(zap.String("run_id", run.ID), zap.String("pipeline", def.Name))

	timeout := def.Timeout
	if timeout == 0 {
		timeout = r.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stage, err := Build(def.Commands(), r.Options...)
	if err != nil {
		log.Error("pipeline failed to spawn", zap.Error(err))
		if r.Metrics != nil {
			r.Metrics.SpawnErrors.Inc()
			r.Metrics.RunsTotal.WithLabelValues(monitoring.OutcomeError).Inc()
		}
		return nil, fmt.Errorf("build pipeline %q: %w", def.Name, err)
	}
	run.Command = stage.String()
	log.Info("starting pipeline", zap.String("command", run.Command), zap.Int("stages", len(def.Stages)))

	if r.Metrics != nil {
		r.Metrics.StagesTotal.Add(float64(len(def.Stages)))
		r.Metrics.RunsInFlight.Inc()
		defer r.Metrics.RunsInFlight.Dec()
	}

	if def.Pipefail {
		run.Stages, err = RunAll(ctx, stage, def.InputBytes())
		if err == nil {
			run.Result = run.Stages[len(run.Stages)-1]
			run.ExitCode = Pipefail(run.Stages)
		}
	} else {
		run.Result, err = stage.Run(ctx, def.InputBytes())
		run.ExitCode = run.Result.ExitCode
	}
	run.Duration = time.Since(run.Started)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("pipeline timed out", zap.Duration("timeout", timeout), zap.Error(err))
		} else {
			log.Error("pipeline failed", zap.Error(err))
		}
		if r.Metrics != nil {
			r.Metrics.RecordRun(monitoring.OutcomeError, run.Duration, 0, 0)
		}
		return nil, fmt.Errorf("run pipeline %q: %w", def.Name, err)
	}

	r.record(run, log)

	if r.Metrics != nil {
		outcome := monitoring.OutcomeSuccess
		if run.ExitCode != 0 {
			outcome = monitoring.OutcomeFailure
		}
		r.Metrics.RecordRun(outcome, run.Duration, len(run.Result.Stdout), len(run.Result.Stderr))
	}

	log.Info("pipeline finished",
		zap.Int("exit_code", run.ExitCode),
		zap.Int("stdout_bytes", len(run.Result.Stdout)),
		zap.Int("stderr_bytes", len(run.Result.Stderr)),
		zap.Duration("duration", run.Duration),
	)
	return run, nil
}

// record saves the output and appends a ledger block. Both are best effort:
// failures are logged and never fail the run.
func (r *Runner) record(run *Run, log *zap.Logger) {
	rec := ledger.Record{
		RunID:      run.ID,
		Pipeline:   run.Pipeline,
		Command:    run.Command,
		ExitCode:   run.ExitCode,
		StdoutHash: utils.HashBytes(run.Result.Stdout),
		StderrHash: utils.HashBytes(run.Result.Stderr),
	}

	if r.LogStorage != nil {
		path, err := r.LogStorage.SaveLog(storage.Entry{
			RunID:    run.ID,
			Pipeline: run.Pipeline,
			Command:  run.Command,
			ExitCode: run.ExitCode,
			Stdout:   run.Result.Stdout,
			Stderr:   run.Result.Stderr,
		})
		if err != nil {
			log.Warn("failed to save log", zap.Error(err))
		} else {
			run.LogPath = path
			rec.LogPath = path
			if h, err := utils.HashFile(path); err != nil {
				log.Warn("cannot hash log", zap.Error(err))
			} else {
				rec.LogHash = h
			}
		}
	}

	if r.Ledger != nil {
		blk, err := r.Ledger.Append(rec, r.AgentID, r.PrivKey, r.PubKey)
		if err != nil {
			log.Warn("cannot append ledger block", zap.Error(err))
			return
		}
		run.Block = blk.Index
		log.Debug("ledger block appended", zap.Int("index", blk.Index), zap.String("hash", blk.Hash))
	}
}

package core

import (
	"context"
	"time"
)

// Stage is anything that can run as part of a pipeline: a single process
// or a composition of two stages.
type Stage interface {
	// Run feeds input to the stage and blocks until it has finished.
	// A nil input closes stdin without writing anything.
	Run(ctx context.Context, input []byte) (Result, error)

	// Close releases a stage that will never be run.
	Close() error

	String() string
}

// Result is the outcome of running a stage. A non-zero ExitCode is not an error.
type Result struct {
	Command  string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Success reports whether the process exited with status 0.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Text is a lossy, display-only rendering of Stdout.
func (r Result) Text() string {
	return DisplayString(r.Stdout)
}

// ErrText is a lossy, display-only rendering of Stderr.
func (r Result) ErrText() string {
	return DisplayString(r.Stderr)
}

package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPipeline is returned when a chain is built from zero commands.
	ErrEmptyPipeline = errors.New("pipeline has no commands")

	// ErrStageConsumed is returned by a second Run on the same process stage.
	// Processes cannot be restarted; build the pipeline again instead.
	ErrStageConsumed = errors.New("stage already consumed")

	// ErrInvalidDefinition wraps every parse and validation failure of a pipeline file.
	ErrInvalidDefinition = errors.New("invalid pipeline definition")
)

// SpawnError reports that a process could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// IOError reports a failure while feeding or draining a stage's pipes.
type IOError struct {
	Command string
	Op      string // "write stdin", "read stdout", "read stderr", "wait"
	Err     error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Command, e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

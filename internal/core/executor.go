package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

type stageState int

// errPipeClosed marks a drain that stopped because kill closed our end of the
// pipe, not because the child closed its end.
var errPipeClosed = errors.New("pipe closed before EOF")

const (
	stageSpawned stageState = iota
	stageRunning
	stageDone
)

// ProcessStage runs one external command. The process is started by
// NewProcessStage, before any input exists, and then sits blocked on its
// pipes until Run or Close is called.
type ProcessStage struct {
	args   []string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu    sync.Mutex
	state stageState
}

// NewProcessStage spawns c with stdin, stdout and stderr attached to pipes
// owned by the returned stage. A missing program or an OS refusal yields a
// *SpawnError.
func NewProcessStage(c Command, opts ...SpawnOption) (*ProcessStage, error) {
	if len(c.Args) == 0 {
		return nil, &SpawnError{Err: errors.New("empty command")}
	}
	args := append([]string(nil), c.Args...)
	o := newSpawnOptions(c, opts)

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = o.dir
	cmd.Env = o.environ()

	p := &ProcessStage{args: args, cmd: cmd}
	var err error
	if p.stdin, err = cmd.StdinPipe(); err != nil {
		return nil, &SpawnError{Command: p.String(), Err: err}
	}
	if p.stdout, err = cmd.StdoutPipe(); err != nil {
		return nil, &SpawnError{Command: p.String(), Err: err}
	}
	if p.stderr, err = cmd.StderrPipe(); err != nil {
		return nil, &SpawnError{Command: p.String(), Err: err}
	}
	// Start closes every pipe it created when it fails.
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: p.String(), Err: err}
	}
	return p, nil
}

// Bash spawns a single command from its tokens.
func Bash(args ...string) (*ProcessStage, error) {
	return NewProcessStage(Cmd(args...))
}

// Pid returns the OS process id of the spawned command.
func (p *ProcessStage) Pid() int {
	return p.cmd.Process.Pid
}

// Then composes p with next, p feeding next.
func (p *ProcessStage) Then(next Stage) *PipelineStage {
	return Compose(p, next)
}

// Run writes input to the process, closes its stdin, drains stdout and
// stderr to completion and waits for it to exit. Writing and draining happen
// concurrently so a child that fills its output pipe before reading all of
// its input cannot deadlock the call. When ctx is done first the process is
// killed and its pipes are released before Run returns.
func (p *ProcessStage) Run(ctx context.Context, input []byte) (Result, error) {
	if !p.transition(stageSpawned, stageRunning) {
		return Result{}, fmt.Errorf("%s: %w", p, ErrStageConsumed)
	}
	defer p.transition(stageRunning, stageDone)

	start := time.Now()
	stop := context.AfterFunc(ctx, p.kill)

	var stdout, stderr bytes.Buffer
	var g errgroup.Group
	g.Go(func() error { return p.writeInput(input) })
	g.Go(func() error { return p.drain(&stdout, p.stdout, "read stdout") })
	g.Go(func() error { return p.drain(&stderr, p.stderr, "read stderr") })

	ioErr := g.Wait()
	waitErr := p.cmd.Wait()
	if !stop() && cutShort(ioErr, p.cmd.ProcessState) {
		return Result{}, fmt.Errorf("%s: %w", p, context.Cause(ctx))
	}
	if errors.Is(ioErr, errPipeClosed) {
		ioErr = nil
	}
	if ioErr != nil {
		return Result{}, ioErr
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return Result{}, &IOError{Command: p.String(), Op: "wait", Err: waitErr}
	}

	return Result{
		Command:  p.String(),
		ExitCode: p.cmd.ProcessState.ExitCode(),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}, nil
}

// Close kills and reaps a process that was never run. It is a no-op once Run
// has been called, including while Run is still in progress.
func (p *ProcessStage) Close() error {
	if !p.transition(stageSpawned, stageDone) {
		return nil
	}
	p.kill()
	if err := p.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return &IOError{Command: p.String(), Op: "wait", Err: err}
		}
	}
	return nil
}

func (p *ProcessStage) String() string {
	return strings.Join(p.args, " ")
}

func (p *ProcessStage) transition(from, to stageState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != from {
		return false
	}
	p.state = to
	return true
}

func (p *ProcessStage) kill() {
	_ = p.cmd.Process.Kill()
	// Closing our ends unblocks the drains even if a grandchild still holds the pipes.
	_ = p.stdin.Close()
	_ = p.stdout.Close()
	_ = p.stderr.Close()
}

func (p *ProcessStage) writeInput(input []byte) error {
	if len(input) > 0 {
		if _, err := p.stdin.Write(input); err != nil && !isClosedPipe(err) {
			_ = p.stdin.Close()
			return &IOError{Command: p.String(), Op: "write stdin", Err: err}
		}
	}
	if err := p.stdin.Close(); err != nil && !isClosedPipe(err) {
		return &IOError{Command: p.String(), Op: "close stdin", Err: err}
	}
	return nil
}

func (p *ProcessStage) drain(dst *bytes.Buffer, src io.Reader, op string) error {
	_, err := io.Copy(dst, src)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrClosed):
		return errPipeClosed
	default:
		return &IOError{Command: p.String(), Op: op, Err: err}
	}
}

// cutShort reports whether a kill that fired during Run lost any of the
// outcome: output was truncated or the process died without exiting itself.
// A kill that lands after the child exited and both streams hit EOF changes
// nothing.
func cutShort(ioErr error, state *os.ProcessState) bool {
	return errors.Is(ioErr, errPipeClosed) || state == nil || !state.Exited()
}

// isClosedPipe matches a child that exited without reading all of its input.
func isClosedPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed)
}

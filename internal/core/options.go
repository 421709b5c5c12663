package core

import (
	"os"
	"sort"
)

// SpawnOption adjusts how a process stage is started. Options apply to every
// command they are passed with; a Command's own Dir and Env take precedence.
type SpawnOption func(*spawnOptions)

type spawnOptions struct {
	dir      string
	env      map[string]string
	cleanEnv bool
}

// WithDir sets the working directory.
func WithDir(dir string) SpawnOption {
	return func(o *spawnOptions) { o.dir = dir }
}

// WithEnv adds variables on top of the inherited environment.
func WithEnv(env map[string]string) SpawnOption {
	return func(o *spawnOptions) {
		if o.env == nil {
			o.env = make(map[string]string, len(env))
		}
		for k, v := range env {
			o.env[k] = v
		}
	}
}

// WithCleanEnv starts processes with only the variables given via WithEnv
// or Command.Env instead of inheriting the parent environment.
func WithCleanEnv() SpawnOption {
	return func(o *spawnOptions) { o.cleanEnv = true }
}

func newSpawnOptions(c Command, opts []SpawnOption) spawnOptions {
	var o spawnOptions
	for _, opt := range opts {
		opt(&o)
	}
	if c.Dir != "" {
		o.dir = c.Dir
	}
	if len(c.Env) > 0 {
		WithEnv(c.Env)(&o)
	}
	return o
}

// environ returns the child environment, or nil to inherit the parent's unchanged.
func (o spawnOptions) environ() []string {
	if len(o.env) == 0 && !o.cleanEnv {
		return nil
	}
	var env []string
	if !o.cleanEnv {
		env = os.Environ()
	} else {
		env = []string{}
	}
	keys := make([]string, 0, len(o.env))
	for k := range o.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	// exec keeps the last value for duplicate keys, so overrides win.
	for _, k := range keys {
		env = append(env, k+"="+o.env[k])
	}
	return env
}

package core

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Args is a program followed by its arguments. In YAML it is either a
// sequence of tokens or a single scalar split on whitespace. No quoting,
// globbing or expansion is applied.
type Args []string

// UnmarshalYAML accepts both `run: [grep, rc]` and `run: grep rc`.
func (a *Args) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*a = strings.Fields(value.Value)
		return nil
	case yaml.SequenceNode:
		var tokens []string
		if err := value.Decode(&tokens); err != nil {
			return err
		}
		*a = tokens
		return nil
	default:
		return fmt.Errorf("line %d: run must be a string or a list of strings", value.Line)
	}
}

// Command describes one process invocation.
type Command struct {
	Args Args              `yaml:"run" json:"run"`
	Dir  string            `yaml:"dir,omitempty" json:"dir,omitempty"`
	Env  map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Cmd is shorthand for a Command with no overrides.
func Cmd(args ...string) Command {
	return Command{Args: args}
}

func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Definition is a named pipeline loaded from YAML:
//
//	name: etc-rc
//	timeout: 30s
//	stages:
//	  - run: [ls, -la, /etc]
//	  - run: [grep, rc]
//	  - run: [sed, s/rc$//]
type Definition struct {
	Name     string            `yaml:"name"`
	Timeout  time.Duration     `yaml:"timeout,omitempty"`
	Pipefail bool              `yaml:"pipefail,omitempty"` // report the last non-zero stage exit code
	Input    *string           `yaml:"input,omitempty"`    // fed to the first stage
	Dir      string            `yaml:"dir,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Stages   []Command         `yaml:"stages"`
}

// Commands returns the stages with definition-level dir and env applied
// underneath each stage's own overrides.
func (d *Definition) Commands() []Command {
	cmds := make([]Command, 0, len(d.Stages))
	for _, s := range d.Stages {
		c := Command{Args: append(Args(nil), s.Args...), Dir: s.Dir}
		if c.Dir == "" {
			c.Dir = d.Dir
		}
		if len(d.Env) > 0 || len(s.Env) > 0 {
			c.Env = make(map[string]string, len(d.Env)+len(s.Env))
			for k, v := range d.Env {
				c.Env[k] = v
			}
			for k, v := range s.Env {
				c.Env[k] = v
			}
		}
		cmds = append(cmds, c)
	}
	return cmds
}

// InputBytes returns the initial input, or nil when none was given.
func (d *Definition) InputBytes() []byte {
	if d.Input == nil {
		return nil
	}
	return []byte(*d.Input)
}

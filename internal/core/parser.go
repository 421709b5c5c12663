package core

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseDefinition parses YAML content into a Definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDefinition reads a pipeline file and parses it.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = path
	}
	return def, nil
}

// Validate checks that the definition describes at least one runnable command.
func (d *Definition) Validate() error {
	if len(d.Stages) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, ErrEmptyPipeline)
	}
	var errs []error
	for i, s := range d.Stages {
		if len(s.Args) == 0 {
			errs = append(errs, fmt.Errorf("stage %d: run is empty", i+1))
		}
	}
	if d.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, errors.Join(errs...))
	}
	return nil
}

package core

import (
	"context"
	"errors"
)

// PipelineStage feeds the captured stdout of producer into consumer. Either
// side may itself be a PipelineStage, so a chain of N commands is N-1 nested
// nodes leaning left: a | b | c is ((a | b) | c).
type PipelineStage struct {
	producer Stage
	consumer Stage
}

// Compose joins producer and consumer without touching either of them.
func Compose(producer, consumer Stage) *PipelineStage {
	return &PipelineStage{producer: producer, consumer: consumer}
}

// Then composes p with next, p feeding next.
func (p *PipelineStage) Then(next Stage) *PipelineStage {
	return Compose(p, next)
}

// Producer returns the left side of the pipe.
func (p *PipelineStage) Producer() Stage { return p.producer }

// Consumer returns the right side of the pipe.
func (p *PipelineStage) Consumer() Stage { return p.consumer }

// Run runs the producer to completion, then the consumer on its output, and
// returns the consumer's result. The producer's stderr and exit code are
// dropped, as in a shell without pipefail; use RunAll to keep them.
// A producer failure closes the consumer without running it.
func (p *PipelineStage) Run(ctx context.Context, input []byte) (Result, error) {
	res, err := p.producer.Run(ctx, input)
	if err != nil {
		_ = p.consumer.Close()
		return Result{}, err
	}
	return p.consumer.Run(ctx, res.Stdout)
}

// Close releases both sides.
func (p *PipelineStage) Close() error {
	return errors.Join(p.producer.Close(), p.consumer.Close())
}

func (p *PipelineStage) String() string {
	return p.producer.String() + " | " + p.consumer.String()
}

package core

import "context"

// Order returns the leaves of a stage tree in execution order.
// Stages other than *PipelineStage are leaves.
func Order(s Stage) []Stage {
	if p, ok := s.(*PipelineStage); ok {
		return append(Order(p.producer), Order(p.consumer)...)
	}
	return []Stage{s}
}

// RunAll runs s leaf by leaf and keeps every intermediate result. The last
// result equals what s.Run returns for the same input. On error the results
// gathered so far are returned and the stages not yet run are closed.
func RunAll(ctx context.Context, s Stage, input []byte) ([]Result, error) {
	stages := Order(s)
	results := make([]Result, 0, len(stages))
	next := input
	for i, st := range stages {
		res, err := st.Run(ctx, next)
		if err != nil {
			for _, rest := range stages[i+1:] {
				_ = rest.Close()
			}
			return results, err
		}
		results = append(results, res)
		next = res.Stdout
	}
	return results, nil
}

// Pipefail returns the exit code of the last stage that failed, or 0 when
// every stage succeeded, like bash with `set -o pipefail`.
func Pipefail(results []Result) int {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].ExitCode != 0 {
			return results[i].ExitCode
		}
	}
	return 0
}

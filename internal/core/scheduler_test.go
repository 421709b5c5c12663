package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder(t *testing.T) {
	requireTools(t, "cat", "sort", "uniq")

	a, b, c := mustSpawn(t, "cat"), mustSpawn(t, "sort"), mustSpawn(t, "uniq")

	assert.Equal(t, []Stage{a}, Order(a))
	assert.Equal(t, []Stage{a, b, c}, Order(a.Then(b).Then(c)))
	assert.Equal(t, []Stage{a, b, c}, Order(Compose(a, b.Then(c))))
}

func TestRunAllKeepsEveryResult(t *testing.T) {
	requireTools(t, "sh", "sort")

	stage := Compose(
		mustSpawn(t, "sh", "-c", "cat; echo warn >&2; exit 2"),
		mustSpawn(t, "sort"),
	)

	results, err := RunAll(context.Background(), stage, []byte("b\na\n"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "b\na\n", string(results[0].Stdout))
	assert.Equal(t, "warn\n", string(results[0].Stderr))
	assert.Equal(t, 2, results[0].ExitCode)
	assert.Equal(t, "a\nb\n", string(results[1].Stdout))
	assert.Equal(t, 0, results[1].ExitCode)

	assert.Equal(t, 2, Pipefail(results))
}

func TestRunAllMatchesRun(t *testing.T) {
	requireTools(t, "sort", "uniq")

	viaRun := mustRun(t, mustSpawn(t, "sort").Then(mustSpawn(t, "uniq", "-c")), []byte(words))
	results, err := RunAll(context.Background(), mustSpawn(t, "sort").Then(mustSpawn(t, "uniq", "-c")), []byte(words))
	require.NoError(t, err)

	last := results[len(results)-1]
	assert.Equal(t, viaRun.Stdout, last.Stdout)
	assert.Equal(t, viaRun.ExitCode, last.ExitCode)
}

func TestRunAllErrorClosesRemaining(t *testing.T) {
	requireTools(t, "true", "sleep")

	first := mustSpawn(t, "true")
	mustRun(t, first, nil)
	rest := mustSpawn(t, "sleep", "30")

	results, err := RunAll(context.Background(), first.Then(rest), nil)
	assert.ErrorIs(t, err, ErrStageConsumed)
	assert.Empty(t, results)
	assert.NotNil(t, rest.cmd.ProcessState)
}

func TestPipefail(t *testing.T) {
	tests := []struct {
		name  string
		codes []int
		want  int
	}{
		{name: "none", codes: nil, want: 0},
		{name: "all ok", codes: []int{0, 0, 0}, want: 0},
		{name: "last failing wins", codes: []int{1, 3, 0}, want: 3},
		{name: "final stage", codes: []int{0, 0, 7}, want: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make([]Result, len(tt.codes))
			for i, c := range tt.codes {
				results[i].ExitCode = c
			}
			assert.Equal(t, tt.want, Pipefail(results))
		})
	}
}

package pipeline

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlan(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	target := diamond(&calls)

	pl, err := newPlan(target.node)
	require.NoError(t, err)
	require.Equal(t, 4, pl.size())
	assert.Equal(t, target.ID(), pl.order[3])

	sources, err := pl.store.Sources()
	require.NoError(t, err)
	require.Len(t, sources, 1)

	src, err := pl.node(sources[0])
	require.NoError(t, err)
	assert.Equal(t, "source", src.name)

	degree, err := pl.store.InDegree(target.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, degree)

	dependents, err := pl.store.Dependents(src.id)
	require.NoError(t, err)
	assert.Len(t, dependents, 2)

	_, props, err := pl.store.Vertex(src.id)
	require.NoError(t, err)
	assert.Equal(t, "source", props.Attributes["label"])
}

func TestSlots(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	pl, err := newPlan(diamond(&calls).node)
	require.NoError(t, err)

	tcs := map[string]struct {
		p        *Pipeline
		expected int
	}{
		"autoscaled to width": {p: &Pipeline{maxWorkers: 8, concurrency: 1}, expected: 2},
		"bounded by limit":    {p: &Pipeline{maxWorkers: 1, concurrency: 1}, expected: 1},
		"fixed":               {p: &Pipeline{workers: 3, concurrency: 1}, expected: 3},
		"bounded by nodes":    {p: &Pipeline{workers: 3, concurrency: 5}, expected: 4},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := tc.p.slots(pl)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestNodeError(t *testing.T) {
	t.Parallel()

	n := newNode("minimize", nil)
	cause := &testError{stage: "minimize"}
	err := nodeError(n, cause)

	assert.EqualError(t, err, "node minimize: stage minimize exploded")
	var target *testError
	assert.ErrorAs(t, err, &target)
}

func TestNewExecutionSeedsSources(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	nvt := countedSource("nvt", &calls, 1)
	npt := countedSource("npt", &calls, 2)
	report := Join("report", nvt, npt)

	pl, err := newPlan(report.node)
	require.NoError(t, err)

	e, err := newExecution(pl, nil)
	require.NoError(t, err)
	require.Len(t, e.ready, 2)

	first, second := <-e.ready, <-e.ready
	assert.ElementsMatch(t, []string{"nvt", "npt"}, []string{first.name, second.name})
	assert.Equal(t, 2, e.pending[report.ID()])
	assert.Zero(t, e.pending[nvt.ID()])
	assert.Zero(t, calls.Load(), "seeding runs nothing")
}

package pipeline

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructionDoesNotRun(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	src := countedSource("source", &calls, 2)
	double := Then("double", src, func(_ context.Context, i int) (int, error) {
		calls.Add(1)
		return i * 2, nil
	})
	_ = Join("join", double, double)

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, []string{src.ID()}, double.Deps())
	assert.Equal(t, "double", double.Name())

	got, err := Materialize(context.Background(), newTestPipeline(t), double)
	require.NoError(t, err)
	assert.Equal(t, 4, got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNodeIDs(t *testing.T) {
	t.Parallel()

	a := Value("minimize", 1)
	b := Value("minimize", 1)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Contains(t, a.ID(), "minimize#")

	var unset *Node[int]
	assert.Empty(t, unset.ID())
	assert.Empty(t, unset.Name())
	assert.Nil(t, unset.Deps())
}

func TestThenChain(t *testing.T) {
	t.Parallel()

	src := Value("source", 2)
	tripled := Then("triple", src, func(_ context.Context, i int) (int, error) {
		return i * 3, nil
	})
	formatted := Then("format", tripled, func(_ context.Context, i int) (string, error) {
		return strconv.Itoa(i + 1), nil
	})

	got, err := Materialize(context.Background(), newTestPipeline(t), formatted)
	require.NoError(t, err)
	assert.Equal(t, "7", got)
}

func TestThen2(t *testing.T) {
	t.Parallel()

	name := Value("name", "npt")
	steps := Value("steps", 500)
	label := Then2("label", name, steps, func(_ context.Context, n string, s int) (string, error) {
		return n + ":" + strconv.Itoa(s), nil
	})

	got, err := Materialize(context.Background(), newTestPipeline(t), label)
	require.NoError(t, err)
	assert.Equal(t, "npt:500", got)
}

func TestThen2SameInput(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	src := countedSource("source", &calls, 21)
	sum := Then2("sum", src, src, func(_ context.Context, a, b int) (int, error) {
		return a + b, nil
	})

	got, err := Materialize(context.Background(), newTestPipeline(t), sum)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestJoin(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		inputs   []*Node[int]
		expected []int
	}{
		"keeps argument order": {
			inputs:   []*Node[int]{Value("c", 3), Value("a", 1), Value("b", 2)},
			expected: []int{3, 1, 2},
		},
		"single": {
			inputs:   []*Node[int]{Value("a", 1)},
			expected: []int{1},
		},
		"empty": {
			expected: []int{},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := Materialize(context.Background(), newTestPipeline(t), Join("join", tc.inputs...))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestMissingInput(t *testing.T) {
	t.Parallel()

	var unset *Node[int]
	tcs := map[string]*Node[int]{
		"then nil input": Then("then", unset, func(_ context.Context, i int) (int, error) { return i, nil }),
		"then nil func":  Then[int, int]("then", Value("v", 1), nil),
		"then2 nil b": Then2("then2", Value("v", 1), unset, func(_ context.Context, a, b int) (int, error) {
			return a + b, nil
		}),
		"source nil func": Source[int]("source", nil),
	}

	for name, n := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Materialize(context.Background(), newTestPipeline(t), n)
			assert.ErrorIs(t, err, ErrInputMustBeSet)
		})
	}

	_, err := Materialize(context.Background(), newTestPipeline(t), Join("join", Value("v", 1), unset))
	assert.ErrorIs(t, err, ErrInputMustBeSet)
}

func TestInterfaceOutputNil(t *testing.T) {
	t.Parallel()

	src := Source("source", func(context.Context) (error, error) {
		return nil, nil
	})
	check := Then("check", src, func(_ context.Context, in error) (bool, error) {
		return in == nil, nil
	})

	got, err := Materialize(context.Background(), newTestPipeline(t), check)
	require.NoError(t, err)
	assert.True(t, got)
}

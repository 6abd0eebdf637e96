package autoscaler

import (
	"testing"

	"github.com/dominikbraun/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWidth(t *testing.T) {
	tcs := map[string]struct {
		vertices []int
		edges    [][2]int
		want     int
	}{
		"empty":   {want: 0},
		"single":  {vertices: []int{1}, want: 1},
		"chain":   {vertices: []int{1, 2, 3}, edges: [][2]int{{1, 2}, {2, 3}}, want: 1},
		"diamond": {vertices: []int{1, 2, 3, 4}, edges: [][2]int{{1, 2}, {1, 3}, {2, 4}, {3, 4}}, want: 2},
		"skewed": {
			// 5 depends on 1 directly and through 2 -> 3, so it sits at depth 3 alone.
			vertices: []int{1, 2, 3, 4, 5},
			edges:    [][2]int{{1, 2}, {2, 3}, {3, 5}, {1, 5}, {1, 4}},
			want:     2,
		},
		"independent": {vertices: []int{1, 2, 3}, want: 3},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			g := graph.New(graph.IntHash, graph.Directed(), graph.Acyclic())
			for _, v := range tc.vertices {
				require.NoError(t, g.AddVertex(v))
			}
			for _, e := range tc.edges {
				require.NoError(t, g.AddEdge(e[0], e[1]))
			}

			got, err := Width(g)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWorkers(t *testing.T) {
	g := graph.New(graph.IntHash, graph.Directed(), graph.Acyclic())
	for v := 1; v <= 4; v++ {
		require.NoError(t, g.AddVertex(v))
	}

	got, err := Workers(g, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, got)

	got, err = Workers(g, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	empty := graph.New(graph.IntHash, graph.Directed(), graph.Acyclic())
	got, err = Workers(empty, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

// Package autoscaler sizes a worker pool from the shape of a dependency graph.
package autoscaler

import (
	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
)

// Width returns the largest number of vertices that share a depth level,
// where the depth of a vertex is the length of the longest dependency chain
// leading to it. It is an upper bound on how many vertices can ever be ready
// at the same time when every vertex takes the same time.
func Width[K comparable, T any](g graph.Graph[K, T]) (int, error) {
	order, err := graph.TopologicalSort(g)
	if err != nil {
		return 0, errors.Wrap(err, "unable to sort graph")
	}

	predecessors, err := g.PredecessorMap()
	if err != nil {
		return 0, errors.Wrap(err, "unable to get predecessor map")
	}

	depth := make(map[K]int, len(order))
	levels := make(map[int]int)
	width := 0

	for _, vertex := range order {
		level := 0
		for pred := range predecessors[vertex] {
			if depth[pred]+1 > level {
				level = depth[pred] + 1
			}
		}
		depth[vertex] = level
		levels[level]++
		if levels[level] > width {
			width = levels[level]
		}
	}

	return width, nil
}

// Workers bounds Width to [1, limit]. A limit of 0 or less means no upper bound.
func Workers[K comparable, T any](g graph.Graph[K, T], limit int) (int, error) {
	width, err := Width(g)
	if err != nil {
		return 0, err
	}
	if width < 1 {
		width = 1
	}
	if limit > 0 && width > limit {
		width = limit
	}

	return width, nil
}

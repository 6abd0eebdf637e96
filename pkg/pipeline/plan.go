package pipeline

import (
	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/internal/store"
)

func nodeHash(n *node) string {
	return n.id
}

// plan is the graph of every node a target depends on, target included.
type plan struct {
	target *node
	graph  graph.Graph[string, *node]
	store  store.CustomStore[string, *node]
	order  []string
}

func newPlan(target *node) (*plan, error) {
	s := store.NewMemoryStore[string, *node]()
	g := graph.NewWithStore(nodeHash, s, graph.Directed(), graph.PreventCycles())

	visited := make(map[string]*node)
	stack := []*node{target}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[n.id]; ok {
			continue
		}
		visited[n.id] = n

		err := g.AddVertex(n, graph.VertexAttribute("label", n.name))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to add node %s", n.id)
		}
		stack = append(stack, n.deps...)
	}

	for _, n := range visited {
		for _, dep := range n.deps {
			err := g.AddEdge(dep.id, n.id)
			if errors.Is(err, graph.ErrEdgeAlreadyExists) {
				continue
			}
			if err != nil {
				return nil, errors.Wrapf(err, "unable to link %s to %s", dep.id, n.id)
			}
		}
	}

	order, err := graph.TopologicalSort(g)
	if err != nil {
		return nil, errors.Wrap(err, "unable to sort nodes")
	}

	return &plan{
		target: target,
		graph:  g,
		store:  s,
		order:  order,
	}, nil
}

func (p *plan) node(id string) (*node, error) {
	n, _, err := p.store.Vertex(id)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to get node %s", id)
	}

	return n, nil
}

func (p *plan) size() int {
	return len(p.order)
}

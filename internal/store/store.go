// Package store backs the materialization graph of a pipeline. MemoryStore satisfies graph.Store
// and answers the questions the scheduler asks while running: how many dependencies a node
// waits for, which nodes wait for it, and where a run starts.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
)

// CustomStore is a graph.Store with scheduler accessors.
type CustomStore[K comparable, T any] interface {
	graph.Store[K, T]
	InDegree(k K) (int, error)
	Dependents(k K) ([]K, error)
	Sources() ([]K, error)
}

// record is a vertex with the edges on both of its sides.
type record[K comparable, T any] struct {
	value      T
	props      graph.VertexProperties
	deps       map[K]graph.Edge[K]
	dependents map[K]graph.Edge[K]
}

// MemoryStore keeps the whole graph in memory.
type MemoryStore[K comparable, T any] struct {
	mu      sync.RWMutex
	records map[K]*record[K, T]
	edges   int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore[K comparable, T any]() CustomStore[K, T] {
	return &MemoryStore[K, T]{records: make(map[K]*record[K, T])}
}

func (s *MemoryStore[K, T]) get(k K) (*record[K, T], error) {
	r, ok := s.records[k]
	if !ok {
		return nil, graph.ErrVertexNotFound
	}

	return r, nil
}

func (s *MemoryStore[K, T]) AddVertex(k K, t T, p graph.VertexProperties) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.records[k]; dup {
		return graph.ErrVertexAlreadyExists
	}
	if p.Attributes == nil {
		p.Attributes = make(map[string]string)
	}

	s.records[k] = &record[K, T]{
		value:      t,
		props:      p,
		deps:       make(map[K]graph.Edge[K]),
		dependents: make(map[K]graph.Edge[K]),
	}

	return nil
}

func (s *MemoryStore[K, T]) Vertex(k K) (T, graph.VertexProperties, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.get(k)
	if err != nil {
		var zero T
		return zero, graph.VertexProperties{}, err
	}

	return r.value, r.props, nil
}

func (s *MemoryStore[K, T]) RemoveVertex(k K) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.get(k)
	if err != nil {
		return err
	}
	if len(r.deps)+len(r.dependents) > 0 {
		return graph.ErrVertexHasEdges
	}
	delete(s.records, k)

	return nil
}

func (s *MemoryStore[K, T]) ListVertices() ([]K, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]K, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}

	return keys, nil
}

func (s *MemoryStore[K, T]) VertexCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records), nil
}

// AddEdge records that target depends on source. Both vertices must exist.
func (s *MemoryStore[K, T]) AddEdge(source, target K, edge graph.Edge[K]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := s.get(source)
	if err != nil {
		return errors.Wrapf(err, "edge source %v", source)
	}
	to, err := s.get(target)
	if err != nil {
		return errors.Wrapf(err, "edge target %v", target)
	}

	if _, dup := from.dependents[target]; !dup {
		s.edges++
	}
	from.dependents[target] = edge
	to.deps[source] = edge

	return nil
}

func (s *MemoryStore[K, T]) UpdateEdge(source, target K, edge graph.Edge[K]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.records[source]
	if !ok {
		return graph.ErrEdgeNotFound
	}
	if _, ok := from.dependents[target]; !ok {
		return graph.ErrEdgeNotFound
	}

	from.dependents[target] = edge
	s.records[target].deps[source] = edge

	return nil
}

func (s *MemoryStore[K, T]) RemoveEdge(source, target K) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.records[source]
	if !ok {
		return nil
	}
	if _, ok := from.dependents[target]; !ok {
		return nil
	}

	delete(from.dependents, target)
	delete(s.records[target].deps, source)
	s.edges--

	return nil
}

func (s *MemoryStore[K, T]) Edge(source, target K) (graph.Edge[K], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if from, ok := s.records[source]; ok {
		if edge, ok := from.dependents[target]; ok {
			return edge, nil
		}
	}

	return graph.Edge[K]{}, graph.ErrEdgeNotFound
}

func (s *MemoryStore[K, T]) ListEdges() ([]graph.Edge[K], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := make([]graph.Edge[K], 0, s.edges)
	for _, r := range s.records {
		for _, edge := range r.dependents {
			edges = append(edges, edge)
		}
	}

	return edges, nil
}

// InDegree returns the number of dependencies of k.
func (s *MemoryStore[K, T]) InDegree(k K) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.get(k)
	if err != nil {
		return 0, err
	}

	return len(r.deps), nil
}

// Dependents returns the vertices depending on k.
func (s *MemoryStore[K, T]) Dependents(k K) ([]K, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.get(k)
	if err != nil {
		return nil, err
	}

	keys := make([]K, 0, len(r.dependents))
	for target := range r.dependents {
		keys = append(keys, target)
	}

	return keys, nil
}

// Sources returns the vertices without dependencies, ordered by their printed key.
func (s *MemoryStore[K, T]) Sources() ([]K, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []K
	for k, r := range s.records {
		if len(r.deps) == 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
	})

	return keys, nil
}

// CreatesCycle reports whether an edge from source to target would close a cycle, that is
// whether source already depends on target, directly or not. graph uses it instead of building
// a predecessor map on every added edge.
func (s *MemoryStore[K, T]) CreatesCycle(source, target K) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.get(source); err != nil {
		return false, errors.Wrapf(err, "could not get vertex with hash %v", source)
	}
	if _, err := s.get(target); err != nil {
		return false, errors.Wrapf(err, "could not get vertex with hash %v", target)
	}

	seen := map[K]bool{}
	queue := []K{source}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]

		if k == target {
			return true, nil
		}
		if seen[k] {
			continue
		}
		seen[k] = true

		for dep := range s.records[k].deps {
			queue = append(queue, dep)
		}
	}

	return false, nil
}

package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tfharrelson/md-flow/pkg/pipeline/model"
)

var nodeSeq atomic.Uint64

type nodeFn func(ctx context.Context, args []any) (any, error)

type node struct {
	id   string
	name string
	deps []*node
	fn   nodeFn
}

func newNode(name string, fn nodeFn, deps ...*node) *node {
	return &node{
		id:   fmt.Sprintf("%s#%d", name, nodeSeq.Add(1)),
		name: name,
		deps: deps,
		fn:   fn,
	}
}

func (n *node) info() *model.NodeInfo {
	deps := make([]string, len(n.deps))
	for i, dep := range n.deps {
		deps[i] = dep.id
	}

	return &model.NodeInfo{ID: n.id, Name: n.name, Deps: deps}
}

// Node is a deferred computation producing a T. The zero value and nil are not valid nodes.
type Node[T any] struct {
	node *node
}

// ID returns the process-unique identifier of the node.
func (n *Node[T]) ID() string {
	if n == nil || n.node == nil {
		return ""
	}

	return n.node.id
}

// Name returns the name given when the node was built.
func (n *Node[T]) Name() string {
	if n == nil || n.node == nil {
		return ""
	}

	return n.node.name
}

// Deps returns the IDs of the nodes n consumes.
func (n *Node[T]) Deps() []string {
	if n == nil || n.node == nil {
		return nil
	}

	return n.node.info().Deps
}

func cast[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}

	return v.(T)
}

// failed returns a node that fails with err when materialized.
func failed[T any](name string, err error) *Node[T] {
	return &Node[T]{node: newNode(name, func(context.Context, []any) (any, error) {
		return nil, err
	})}
}

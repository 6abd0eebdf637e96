package pipeline

import (
	"context"
)

// Value returns a node that materializes to v.
func Value[T any](name string, v T) *Node[T] {
	return &Node[T]{node: newNode(name, func(context.Context, []any) (any, error) {
		return v, nil
	})}
}

// Source returns a node without dependencies whose value is computed by sourceFn.
func Source[T any](name string, sourceFn func(ctx context.Context) (T, error)) *Node[T] {
	if sourceFn == nil {
		return failed[T](name, ErrInputMustBeSet)
	}

	return &Node[T]{node: newNode(name, func(ctx context.Context, _ []any) (any, error) {
		return sourceFn(ctx)
	})}
}

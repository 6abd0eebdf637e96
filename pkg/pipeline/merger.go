package pipeline

import (
	"context"
)

// Then2 returns a node computing stepFn over the values of two nodes.
func Then2[A any, B any, O any](name string, a *Node[A], b *Node[B], stepFn func(ctx context.Context, a A, b B) (O, error)) *Node[O] {
	if a == nil || a.node == nil || b == nil || b.node == nil || stepFn == nil {
		return failed[O](name, ErrInputMustBeSet)
	}

	return &Node[O]{node: newNode(name, func(ctx context.Context, args []any) (any, error) {
		return stepFn(ctx, cast[A](args[0]), cast[B](args[1]))
	}, a.node, b.node)}
}

// Join returns a node collecting the values of inputs, in argument order.
func Join[T any](name string, inputs ...*Node[T]) *Node[[]T] {
	deps := make([]*node, len(inputs))
	for i, input := range inputs {
		if input == nil || input.node == nil {
			return failed[[]T](name, ErrInputMustBeSet)
		}
		deps[i] = input.node
	}

	return &Node[[]T]{node: newNode(name, func(_ context.Context, args []any) (any, error) {
		res := make([]T, len(args))
		for i, arg := range args {
			res[i] = cast[T](arg)
		}

		return res, nil
	}, deps...)}
}

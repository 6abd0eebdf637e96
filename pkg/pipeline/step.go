package pipeline

import (
	"context"
)

// Then returns a node computing stepFn over the value of input.
func Then[I any, O any](name string, input *Node[I], stepFn func(ctx context.Context, input I) (O, error)) *Node[O] {
	if input == nil || input.node == nil || stepFn == nil {
		return failed[O](name, ErrInputMustBeSet)
	}

	return &Node[O]{node: newNode(name, func(ctx context.Context, args []any) (any, error) {
		return stepFn(ctx, cast[I](args[0]))
	}, input.node)}
}

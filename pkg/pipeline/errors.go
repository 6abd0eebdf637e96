package pipeline

import (
	"github.com/pkg/errors"
)

var (
	ErrPipelineMustBeSet = errors.New("pipeline must be set")
	ErrNodeMustBeSet     = errors.New("node must be set")
	ErrInputMustBeSet    = errors.New("input must be set")
	ErrPipelineShutdown  = errors.New("pipeline is shut down")
)

// nodeError decorates err with the node that produced it.
func nodeError(n *node, err error) error {
	return errors.Wrapf(err, "node %s", n.name)
}

// Package cluster runs simulation flows on a shared worker pool.
package cluster

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/pkg/mdflow/artifact"
	"github.com/tfharrelson/md-flow/pkg/mdflow/flow"
	"github.com/tfharrelson/md-flow/pkg/mdflow/stage"
	"github.com/tfharrelson/md-flow/pkg/pipeline"
)

var ErrClusterMustBeSet = errors.New("cluster must be set")

// Cluster materializes flows built against one Env. Flows sharing a Cluster write into the same
// working directory, so they must not run at the same time; give concurrent runs their own
// Cluster or Env.
type Cluster struct {
	env  *stage.Env
	pipe *pipeline.Pipeline
}

// New returns a cluster over env. opts configure its worker pool.
func New(env *stage.Env, opts ...pipeline.PipelineOption) (*Cluster, error) {
	if env == nil {
		return nil, stage.ErrEnvMustBeSet
	}

	pipe, err := pipeline.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create pipeline")
	}

	return &Cluster{env: env, pipe: pipe}, nil
}

// Env returns the run context flows of c are built with.
func (c *Cluster) Env() *stage.Env {
	return c.env
}

// OptimizeStructure prepares and minimizes the structure of id.
func (c *Cluster) OptimizeStructure(ctx context.Context, id string) (artifact.RunResult, error) {
	return RunCustomFlow(ctx, c, flow.StructurePrep(c.env, id))
}

// RunNPT prepares the structure of id and runs it through equilibration and production for
// steps steps.
func (c *Cluster) RunNPT(ctx context.Context, id string, steps int) (artifact.RunResult, error) {
	return RunCustomFlow(ctx, c, flow.NPTProduction(c.env, id, steps))
}

// RunFlow runs the flow registered as name.
func (c *Cluster) RunFlow(ctx context.Context, name, id string, steps int) (artifact.RunResult, error) {
	f, err := flow.Lookup(name)
	if err != nil {
		return artifact.RunResult{}, err
	}

	return RunCustomFlow(ctx, c, f(c.env, id, steps))
}

// RunCustomFlow materializes node on the pool of c.
func RunCustomFlow[T any](ctx context.Context, c *Cluster, node *pipeline.Node[T]) (T, error) {
	if c == nil {
		var zero T
		return zero, ErrClusterMustBeSet
	}

	return pipeline.Materialize(ctx, c.pipe, node)
}

// Shutdown stops every running flow and kills their tools. The cluster cannot be used afterwards.
func (c *Cluster) Shutdown() {
	c.pipe.Shutdown()
}

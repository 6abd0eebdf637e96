package cluster_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfharrelson/md-flow/internal/ctxlog"
	"github.com/tfharrelson/md-flow/internal/enginetest"
	"github.com/tfharrelson/md-flow/pkg/mdflow/artifact"
	"github.com/tfharrelson/md-flow/pkg/mdflow/cluster"
	"github.com/tfharrelson/md-flow/pkg/mdflow/engine"
	"github.com/tfharrelson/md-flow/pkg/mdflow/flow"
	"github.com/tfharrelson/md-flow/pkg/mdflow/gro"
	"github.com/tfharrelson/md-flow/pkg/mdflow/stage"
	"github.com/tfharrelson/md-flow/pkg/pipeline"
	"github.com/tfharrelson/md-flow/pkg/pipeline/measure"
)

func newCluster(t *testing.T, eng engine.Engine, opts ...pipeline.PipelineOption) *cluster.Cluster {
	t.Helper()
	env := enginetest.NewEnv(t, eng)
	c, err := cluster.New(env, append([]pipeline.PipelineOption{pipeline.PipelineLogger(ctxlog.Discard())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)

	return c
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := cluster.New(nil)
	assert.ErrorIs(t, err, stage.ErrEnvMustBeSet)

	_, err = cluster.New(enginetest.NewEnv(t, enginetest.New()), pipeline.PipelineConcurrency(0))
	assert.Error(t, err)
}

func TestOptimizeStructure(t *testing.T) {
	t.Parallel()

	c := newCluster(t, enginetest.New())
	rr, err := c.OptimizeStructure(context.Background(), enginetest.KnownID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.Env().WorkDir, "em.gro"), rr.FinalConfiguration)
	assert.NoError(t, gro.CheckSolvated(rr.FinalConfiguration, gro.MinBox))
}

func TestRunNPT(t *testing.T) {
	t.Parallel()

	msr := measure.NewDefaultMeasure()
	c := newCluster(t, enginetest.New(), pipeline.PipelineHooks(measure.PipelineMeasure(msr)))

	rr, err := c.RunNPT(context.Background(), enginetest.KnownID, 10000)
	require.NoError(t, err)
	assert.Equal(t, "prod.gro", filepath.Base(rr.FinalConfiguration))
	assert.Equal(t, 10000, rr.Source.Steps())

	steps, err := stage.CompiledSteps(context.Background(), c.Env(), rr.Source)
	require.NoError(t, err)
	assert.Equal(t, 10000, steps)

	// fetch, convert, solvate, minimize, nvt, npt, produce
	assert.Len(t, msr.AllMetrics(), 7)
}

func TestRunFlow(t *testing.T) {
	t.Parallel()

	c := newCluster(t, enginetest.New())
	rr, err := c.RunFlow(context.Background(), flow.NameStructurePrep, enginetest.KnownID, 0)
	require.NoError(t, err)
	assert.Equal(t, "em.gro", filepath.Base(rr.FinalConfiguration))

	_, err = c.RunFlow(context.Background(), "annealing", enginetest.KnownID, 0)
	assert.ErrorIs(t, err, flow.ErrUnknownFlow)
}

func TestRunCustomFlow(t *testing.T) {
	t.Parallel()

	c := newCluster(t, enginetest.New())
	env := c.Env()

	prep := flow.StructurePrep(env, enginetest.KnownID)
	energies := pipeline.Then("energy-file", prep, func(_ context.Context, rr artifact.RunResult) (string, error) {
		return filepath.Base(rr.Energy), nil
	})

	got, err := cluster.RunCustomFlow(context.Background(), c, energies)
	require.NoError(t, err)
	assert.Equal(t, "em.edr", got)

	_, err = cluster.RunCustomFlow(context.Background(), nil, energies)
	assert.ErrorIs(t, err, cluster.ErrClusterMustBeSet)
}

type blockingEngine struct {
	*enginetest.Engine
	once    sync.Once
	started chan struct{}
}

func (b *blockingEngine) Run(ctx context.Context, inv engine.Invocation) (engine.Result, error) {
	if inv.Tool == "mdrun" {
		b.once.Do(func() { close(b.started) })
		<-ctx.Done()
		return engine.Result{}, &engine.ExternalToolError{Tool: inv.Tool, ExitCode: -1, Err: ctx.Err()}
	}

	return b.Engine.Run(ctx, inv)
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	eng := &blockingEngine{Engine: enginetest.New(), started: make(chan struct{})}
	c := newCluster(t, eng)
	go func() {
		<-eng.started
		c.Shutdown()
	}()

	_, err := c.RunNPT(context.Background(), enginetest.KnownID, 100)
	assert.ErrorIs(t, err, pipeline.ErrPipelineShutdown)
	assert.Empty(t, eng.CallsTo("mdrun"))

	_, err = c.OptimizeStructure(context.Background(), enginetest.KnownID)
	assert.ErrorIs(t, err, pipeline.ErrPipelineShutdown)
}

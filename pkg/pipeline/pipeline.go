package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/internal/autoscaler"
	"github.com/tfharrelson/md-flow/internal/ctxlog"
	"github.com/tfharrelson/md-flow/pkg/pipeline/model"
)

// Pipeline is a worker pool materializing nodes. A Pipeline can serve any number of
// materializations, sequentially or concurrently.
type Pipeline struct {
	workers     int
	maxWorkers  int
	concurrency int
	logger      *slog.Logger
	hooks       []model.PipelineOption

	hookSet *hookSet
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a pipeline. By default the pool is sized from the graph of each materialization,
// bounded by the number of CPUs, and every worker runs one node at a time.
func New(opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		maxWorkers:  runtime.NumCPU(),
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.workers < 0 {
		return nil, errors.Errorf("workers must not be negative, got %d", p.workers)
	}
	if p.concurrency < 1 {
		return nil, errors.Errorf("concurrency must be at least 1, got %d", p.concurrency)
	}
	if p.logger == nil {
		p.logger = ctxlog.Discard()
	}

	for _, hook := range p.hooks {
		if hook == nil {
			return nil, errors.New("pipeline option must be set")
		}
		if err := hook.New(); err != nil {
			return nil, errors.Wrap(err, "unable to apply pipeline option")
		}
	}
	p.hookSet = &hookSet{hooks: p.hooks}
	p.ctx, p.cancel = context.WithCancel(context.Background())

	return p, nil
}

// Shutdown cancels every running materialization and rejects new ones. It is safe to call
// more than once.
func (p *Pipeline) Shutdown() {
	p.cancel()
}

// Materialize runs every node target depends on, then target itself, and returns its value.
// Nothing is returned but the error when any node fails.
func Materialize[T any](ctx context.Context, p *Pipeline, target *Node[T]) (T, error) {
	var zero T
	if p == nil {
		return zero, ErrPipelineMustBeSet
	}
	if target == nil || target.node == nil {
		return zero, ErrNodeMustBeSet
	}

	out, err := p.materialize(ctx, target.node)
	if err != nil {
		return zero, err
	}

	return cast[T](out), nil
}

func (p *Pipeline) materialize(ctx context.Context, target *node) (any, error) {
	if p.ctx.Err() != nil {
		return nil, ErrPipelineShutdown
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	logger := p.logger.With("run_id", uuid.NewString(), "target", target.id)
	runCtx = ctxlog.WithLogger(runCtx, logger)

	pl, err := newPlan(target)
	if err != nil {
		return nil, errors.Wrap(err, "unable to plan materialization")
	}

	slots, err := p.slots(pl)
	if err != nil {
		return nil, err
	}

	exec, err := newExecution(pl, p.hookSet)
	if err != nil {
		return nil, err
	}

	if err := p.hookSet.prepare(pl); err != nil {
		return nil, err
	}

	logger.Info("Materialization started.", "nodes", pl.size(), "slots", slots)
	start := time.Now()
	err = exec.run(runCtx, slots)
	finishErr := p.hookSet.finish()

	if err != nil {
		if p.ctx.Err() != nil {
			err = errors.Wrap(ErrPipelineShutdown, err.Error())
		}
		logger.Error("Materialization failed.", "duration", time.Since(start), "error", err)
		return nil, err
	}
	if finishErr != nil {
		return nil, finishErr
	}
	logger.Info("Materialization completed.", "duration", time.Since(start))

	return exec.result(target.id), nil
}

func (p *Pipeline) slots(pl *plan) (int, error) {
	workers := p.workers
	if workers == 0 {
		var err error
		workers, err = autoscaler.Workers(pl.graph, p.maxWorkers)
		if err != nil {
			return 0, errors.Wrap(err, "unable to size worker pool")
		}
	}

	slots := workers * p.concurrency
	if slots > pl.size() {
		slots = pl.size()
	}

	return slots, nil
}

// hookSet serializes the calls to pipeline options across materializations.
type hookSet struct {
	mu    sync.Mutex
	hooks []model.PipelineOption
}

func (h *hookSet) prepare(pl *plan) error {
	if len(h.hooks) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range pl.order {
		n, err := pl.node(id)
		if err != nil {
			return err
		}
		parents := parentInfos(n)
		info := n.info()
		for _, hook := range h.hooks {
			if err := hook.PrepareNode(parents, info); err != nil {
				return errors.Wrapf(err, "unable to prepare node %s", n.id)
			}
		}
	}

	return nil
}

func (h *hookSet) onNodeOutput(n *node, wait, elapsed time.Duration) error {
	if len(h.hooks) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	parents := parentInfos(n)
	info := n.info()
	for _, hook := range h.hooks {
		if err := hook.OnNodeOutput(parents, info, wait, elapsed); err != nil {
			return errors.Wrapf(err, "unable to report output of node %s", n.id)
		}
	}

	return nil
}

func (h *hookSet) finish() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, hook := range h.hooks {
		if err := hook.Finish(); err != nil {
			return errors.Wrap(err, "unable to finish pipeline option")
		}
	}

	return nil
}

func parentInfos(n *node) []*model.NodeInfo {
	parents := make([]*model.NodeInfo, len(n.deps))
	for i, dep := range n.deps {
		parents[i] = dep.info()
	}

	return parents
}

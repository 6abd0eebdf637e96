package pipeline

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/tfharrelson/md-flow/internal/ctxlog"
)

// execution runs one plan. Results live as long as the execution, so a node reachable through
// several paths runs once.
type execution struct {
	plan  *plan
	hooks *hookSet

	mu        sync.Mutex
	results   map[string]any
	pending   map[string]int
	readyAt   map[string]time.Time
	remaining int
	ready     chan *node
}

func newExecution(p *plan, hooks *hookSet) (*execution, error) {
	e := &execution{
		plan:      p,
		hooks:     hooks,
		results:   make(map[string]any, p.size()),
		pending:   make(map[string]int, p.size()),
		readyAt:   make(map[string]time.Time, p.size()),
		remaining: p.size(),
		ready:     make(chan *node, p.size()),
	}

	for _, id := range p.order {
		degree, err := p.store.InDegree(id)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to count dependencies of %s", id)
		}
		e.pending[id] = degree
	}

	sources, err := p.store.Sources()
	if err != nil {
		return nil, errors.Wrap(err, "unable to list sources")
	}

	now := time.Now()
	for _, id := range sources {
		n, err := p.node(id)
		if err != nil {
			return nil, err
		}
		e.readyAt[id] = now
		e.ready <- n
	}

	return e, nil
}

func (e *execution) run(ctx context.Context, slots int) error {
	errGrp, dCtx := errgroup.WithContext(ctx)
	for i := 0; i < slots; i++ {
		worker := i
		errGrp.Go(func() error {
			return e.work(dCtx, worker)
		})
	}

	return errGrp.Wait()
}

func (e *execution) work(ctx context.Context, worker int) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-e.ready:
			if !ok {
				return nil
			}
			if err := e.execute(ctx, worker, n); err != nil {
				return err
			}
		}
	}
}

func (e *execution) execute(ctx context.Context, worker int, n *node) error {
	logger := ctxlog.FromContext(ctx).With("node", n.id, "worker", worker)
	args := e.args(n)

	e.mu.Lock()
	wait := time.Since(e.readyAt[n.id])
	e.mu.Unlock()

	logger.Debug("Node started.", "wait", wait)
	start := time.Now()
	out, err := call(ctxlog.WithLogger(ctx, logger), n, args)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("Node failed.", "duration", elapsed, "error", err)
		return nodeError(n, err)
	}
	logger.Info("Node completed.", "duration", elapsed)

	if err := e.hooks.onNodeOutput(n, wait, elapsed); err != nil {
		return err
	}

	return e.complete(n, out)
}

func (e *execution) args(n *node) []any {
	e.mu.Lock()
	defer e.mu.Unlock()

	args := make([]any, len(n.deps))
	for i, dep := range n.deps {
		args[i] = e.results[dep.id]
	}

	return args
}

func (e *execution) complete(n *node, out any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.results[n.id] = out
	e.remaining--

	dependents, err := e.plan.store.Dependents(n.id)
	if err != nil {
		return errors.Wrapf(err, "unable to get dependents of %s", n.id)
	}

	now := time.Now()
	for _, id := range dependents {
		e.pending[id]--
		if e.pending[id] > 0 {
			continue
		}
		dependent, err := e.plan.node(id)
		if err != nil {
			return err
		}
		e.readyAt[id] = now
		e.ready <- dependent
	}

	if e.remaining == 0 {
		close(e.ready)
	}

	return nil
}

func (e *execution) result(id string) any {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.results[id]
}

func call(ctx context.Context, n *node, args []any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	return n.fn(ctx, args)
}

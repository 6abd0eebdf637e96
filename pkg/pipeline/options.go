package pipeline

import (
	"log/slog"

	"github.com/tfharrelson/md-flow/pkg/pipeline/model"
)

type PipelineOption func(p *Pipeline)

// PipelineWorkers sets the number of workers. Zero sizes the pool from the width of each
// materialized graph.
func PipelineWorkers(workers int) PipelineOption {
	return func(p *Pipeline) {
		p.workers = workers
	}
}

// PipelineMaxWorkers bounds the pool size picked when PipelineWorkers is zero.
func PipelineMaxWorkers(maxWorkers int) PipelineOption {
	return func(p *Pipeline) {
		p.maxWorkers = maxWorkers
	}
}

// PipelineConcurrency sets how many nodes each worker may run at the same time.
func PipelineConcurrency(concurrent int) PipelineOption {
	return func(p *Pipeline) {
		p.concurrency = concurrent
	}
}

// PipelineLogger sets the logger every materialization logs to.
func PipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// PipelineHooks installs options observing every materialization.
func PipelineHooks(hooks ...model.PipelineOption) PipelineOption {
	return func(p *Pipeline) {
		p.hooks = append(p.hooks, hooks...)
	}
}

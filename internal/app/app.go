// Package app wires the configuration of mdflow into a cluster and runs flows on it.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/internal/config"
	"github.com/tfharrelson/md-flow/internal/ctxlog"
	"github.com/tfharrelson/md-flow/pkg/mdflow/artifact"
	"github.com/tfharrelson/md-flow/pkg/mdflow/cluster"
	"github.com/tfharrelson/md-flow/pkg/mdflow/engine"
	"github.com/tfharrelson/md-flow/pkg/mdflow/settings"
	"github.com/tfharrelson/md-flow/pkg/mdflow/stage"
	"github.com/tfharrelson/md-flow/pkg/mdflow/structure"
	"github.com/tfharrelson/md-flow/pkg/pipeline"
	"github.com/tfharrelson/md-flow/pkg/pipeline/drawer"
	"github.com/tfharrelson/md-flow/pkg/pipeline/measure"
	"github.com/tfharrelson/md-flow/pkg/pipeline/model"
)

// TemplateDirName is the directory under the working directory receiving the bundled templates
// when no template directory is configured.
const TemplateDirName = "templates"

// App holds the cluster built from one configuration.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	cfg     *config.Config
	cluster *cluster.Cluster
	measure *measure.DefaultMeasure
}

type options struct {
	engine     engine.Engine
	structures structure.Fetcher
}

type Option func(o *options)

// WithEngine runs the tools with eng instead of the configured executable.
func WithEngine(eng engine.Engine) Option {
	return func(o *options) {
		o.engine = eng
	}
}

// WithStructures fetches structures with fetcher instead of the configured service.
func WithStructures(fetcher structure.Fetcher) Option {
	return func(o *options) {
		o.structures = fetcher
	}
}

// NewApp builds the cluster described by cfg. Logs and results are written to outW.
func NewApp(outW io.Writer, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config must be set")
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.engine == nil {
		o.engine = engine.NewCommand(engine.WithBinary(cfg.Binary))
	}
	if o.structures == nil {
		o.structures = structure.NewClient(
			structure.WithBaseURL(cfg.StructureURL),
			structure.WithRetries(cfg.LookupRetries),
			structure.WithBackoff(cfg.LookupBackoff),
		)
	}

	templateDir := cfg.TemplateDir
	if templateDir == "" {
		templateDir = filepath.Join(cfg.WorkDir, TemplateDirName)
		err := settings.InstallBundled(templateDir)
		if err != nil {
			return nil, errors.Wrap(err, "unable to install templates")
		}
		logger.Debug("Bundled templates installed.", "dir", templateDir)
	}

	resolver, err := settings.NewResolver(templateDir, cfg.ResolverOptions()...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load stage settings")
	}

	envOpts := append([]stage.EnvOption{stage.WithStructures(o.structures)}, cfg.EnvOptions()...)
	env, err := stage.NewEnv(cfg.WorkDir, o.engine, resolver, envOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to prepare working directory")
	}

	a := &App{outW: outW, logger: logger, cfg: cfg}

	var hooks []model.PipelineOption
	if cfg.DOTFile != "" {
		a.measure = measure.NewDefaultMeasure()
		hooks = append(hooks,
			measure.PipelineMeasure(a.measure),
			drawer.PipelineDrawer(drawer.NewDOTDrawer(cfg.DOTFile), a.measure),
		)
	}

	pipelineOpts := []pipeline.PipelineOption{
		pipeline.PipelineWorkers(cfg.Workers),
		pipeline.PipelineConcurrency(cfg.Concurrency),
		pipeline.PipelineLogger(logger),
		pipeline.PipelineHooks(hooks...),
	}
	if cfg.MaxWorkers > 0 {
		pipelineOpts = append(pipelineOpts, pipeline.PipelineMaxWorkers(cfg.MaxWorkers))
	}

	a.cluster, err = cluster.New(env, pipelineOpts...)
	if err != nil {
		return nil, err
	}

	logger.Debug("App configured.", "workdir", env.WorkDir, "templates", resolver.Dir(), "gmx", cfg.Binary)

	return a, nil
}

// Cluster returns the cluster of a.
func (a *App) Cluster() *cluster.Cluster {
	return a.cluster
}

// Measure returns the timings of the flows run by a, or nil when no graph file is configured.
func (a *App) Measure() *measure.DefaultMeasure {
	return a.measure
}

// Run runs the flow registered as name for the protein id and prints where its files are.
func (a *App) Run(ctx context.Context, name, id string, steps int) (artifact.RunResult, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Info("Starting flow.", "flow", name, "id", id, "steps", steps)

	start := time.Now()
	res, err := a.cluster.RunFlow(ctx, name, id, steps)
	if err != nil {
		return artifact.RunResult{}, errors.Wrapf(err, "flow %s failed", name)
	}

	a.logger.Info("Flow finished.", "flow", name, "id", id, "duration", time.Since(start),
		"final_run_duration", res.Handle.Duration)
	if a.cfg.DOTFile != "" {
		a.logger.Info("Flow graph written.", "file", a.cfg.DOTFile)
	}

	fmt.Fprintf(a.outW, "configuration: %s\n", res.FinalConfiguration)
	fmt.Fprintf(a.outW, "energy:        %s\n", res.Energy)
	fmt.Fprintf(a.outW, "trajectory:    %s\n", res.Trajectory)

	return res, nil
}

// Shutdown stops every running flow.
func (a *App) Shutdown() {
	a.cluster.Shutdown()
}

package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfharrelson/md-flow/internal/app"
	"github.com/tfharrelson/md-flow/internal/config"
	"github.com/tfharrelson/md-flow/internal/enginetest"
	"github.com/tfharrelson/md-flow/pkg/mdflow/flow"
	"github.com/tfharrelson/md-flow/pkg/mdflow/gro"
	"github.com/tfharrelson/md-flow/pkg/mdflow/settings"
	"github.com/tfharrelson/md-flow/pkg/mdflow/structure"
)

func newConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.WorkDir = filepath.Join(t.TempDir(), "work")
	cfg.LogLevel = "error"
	cfg.StructureURL = enginetest.NewStructureServer(t, enginetest.DefaultStructures()).URL + "/api"
	cfg.LookupRetries = 0
	require.NoError(t, cfg.Validate())

	return cfg
}

func newApp(t *testing.T, cfg *config.Config, opts ...app.Option) (*app.App, *bytes.Buffer) {
	t.Helper()

	out := &bytes.Buffer{}
	a, err := app.NewApp(out, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)

	return a, out
}

func TestNewAppInstallsTemplates(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	a, _ := newApp(t, cfg, app.WithEngine(enginetest.New()))

	env := a.Cluster().Env()
	assert.Equal(t, cfg.WorkDir, env.WorkDir)
	assert.Equal(t, filepath.Join(cfg.WorkDir, app.TemplateDirName), env.Settings.Dir())
	for _, name := range settings.Names() {
		path, err := env.Settings.Lookup(name)
		require.NoError(t, err, name)
		assert.FileExists(t, path)
	}
	assert.Nil(t, a.Measure())
}

func TestNewAppErrors(t *testing.T) {
	t.Parallel()

	_, err := app.NewApp(&bytes.Buffer{}, nil)
	assert.Error(t, err)

	cfg := newConfig(t)
	cfg.Concurrency = 0
	_, err = app.NewApp(&bytes.Buffer{}, cfg, app.WithEngine(enginetest.New()))
	assert.Error(t, err)

	cfg = newConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg.WorkDir = filepath.Join(blocker, "work")
	_, err = app.NewApp(&bytes.Buffer{}, cfg, app.WithEngine(enginetest.New()))
	assert.ErrorContains(t, err, "unable to install templates")
}

func TestRun(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	cfg := newConfig(t)
	cfg.DOTFile = filepath.Join(t.TempDir(), "flow.dot")
	a, out := newApp(t, cfg, app.WithEngine(eng))

	rr, err := a.Run(context.Background(), flow.NameNPT, enginetest.KnownID, 2000)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.WorkDir, "prod.gro"), rr.FinalConfiguration)
	assert.Equal(t, 2000, rr.Source.Steps())
	assert.Contains(t, out.String(), "configuration: "+rr.FinalConfiguration)
	assert.Contains(t, out.String(), "trajectory:    "+rr.Trajectory)
	assert.Len(t, eng.CallsTo("mdrun"), 4)

	em := filepath.Join(cfg.WorkDir, "em.gro")
	assert.NoError(t, gro.CheckSolvated(em, gro.MinBox))

	dot, err := os.ReadFile(cfg.DOTFile)
	require.NoError(t, err)
	assert.Contains(t, string(dot), "digraph")
	assert.Contains(t, string(dot), "solvate-neutralize")
	require.NotNil(t, a.Measure())
	assert.Len(t, a.Measure().AllMetrics(), 7)
}

func TestRunStageOverride(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	cfg := newConfig(t)
	cfg.Stages[settings.SteepestDescent] = settings.Override{Steps: 123}
	a, _ := newApp(t, cfg, app.WithEngine(eng))

	rr, err := a.Run(context.Background(), flow.NameStructurePrep, enginetest.KnownID, 0)
	require.NoError(t, err)
	assert.Equal(t, 123, rr.Source.Steps())
}

func TestRunUnknownStructure(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	a, out := newApp(t, newConfig(t), app.WithEngine(eng))

	_, err := a.Run(context.Background(), flow.NameStructurePrep, "Q00000", 0)
	require.Error(t, err)

	var notFound *structure.StructureNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Q00000", notFound.ID)
	assert.Contains(t, err.Error(), "flow structure-prep failed")
	assert.Empty(t, eng.Calls())
	assert.NotContains(t, out.String(), "configuration:")
}

func TestRunWithStructures(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	a, _ := newApp(t, newConfig(t),
		app.WithEngine(eng),
		app.WithStructures(enginetest.Structures{"P99999": enginetest.PDB}),
	)

	_, err := a.Run(context.Background(), flow.NameStructurePrep, "P99999", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"pdb2gmx", "editconf", "solvate", "grompp", "genion", "grompp", "convert-tpr", "mdrun"}, eng.Tools())
}

type slowStructures struct {
	enginetest.Structures
	delay time.Duration
}

func (s slowStructures) Fetch(ctx context.Context, id string) (string, error) {
	time.Sleep(s.delay)
	return s.Structures.Fetch(ctx, id)
}

func TestRunLogsFlowDuration(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	cfg.LogLevel = "info"
	cfg.LogFormat = "json"
	delay := 50 * time.Millisecond
	a, out := newApp(t, cfg,
		app.WithEngine(enginetest.New()),
		app.WithStructures(slowStructures{Structures: enginetest.DefaultStructures(), delay: delay}),
	)

	_, err := a.Run(context.Background(), flow.NameStructurePrep, enginetest.KnownID, 0)
	require.NoError(t, err)

	var finished map[string]any
	for _, line := range strings.Split(out.String(), "\n") {
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		if record["msg"] == "Flow finished." {
			finished = record
		}
	}
	require.NotNil(t, finished)

	duration, ok := finished["duration"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, time.Duration(duration), delay, "the fetch is part of the flow")
	assert.Contains(t, finished, "final_run_duration")
}

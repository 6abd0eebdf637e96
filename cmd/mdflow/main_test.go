package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tfharrelson/md-flow/internal/app"
	"github.com/tfharrelson/md-flow/internal/cli"
	"github.com/tfharrelson/md-flow/internal/enginetest"
	"github.com/tfharrelson/md-flow/pkg/mdflow/flow"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_Flow(t *testing.T) {
	t.Parallel()

	srv := enginetest.NewStructureServer(t, enginetest.DefaultStructures())
	workDir := filepath.Join(t.TempDir(), "work")
	args := []string{
		"-workdir", workDir,
		"-alphafold-url", srv.URL + "/api",
		"-flow", flow.NameStructurePrep,
		"-log-level", "error",
		enginetest.KnownID,
	}
	out := &bytes.Buffer{}

	err := run(context.Background(), out, args, app.WithEngine(enginetest.New()))

	require.NoError(t, err)
	require.Contains(t, out.String(), "configuration: "+filepath.Join(workDir, "em.gro"))
}

func TestRun_ConfiguredProductionSteps(t *testing.T) {
	t.Parallel()

	srv := enginetest.NewStructureServer(t, enginetest.DefaultStructures())
	configFile := filepath.Join(t.TempDir(), "mdflow.hcl")
	require.NoError(t, os.WriteFile(configFile, []byte("stage \"production\" {\n  steps = 50000\n}\n"), 0o644))
	args := []string{
		"-config", configFile,
		"-workdir", filepath.Join(t.TempDir(), "work"),
		"-alphafold-url", srv.URL + "/api",
		"-log-level", "error",
		enginetest.KnownID,
	}
	eng := enginetest.New()

	err := run(context.Background(), &bytes.Buffer{}, args, app.WithEngine(eng))

	require.NoError(t, err)
	patches := eng.CallsTo("convert-tpr")
	require.Len(t, patches, 4)
	require.Equal(t, []string{"-nsteps", "50000"}, patches[3].Args)
}

func TestRun_FlowError(t *testing.T) {
	t.Parallel()

	srv := enginetest.NewStructureServer(t, enginetest.DefaultStructures())
	args := []string{
		"-workdir", t.TempDir(),
		"-alphafold-url", srv.URL + "/api",
		"-log-level", "error",
		enginetest.KnownID,
	}
	eng := enginetest.New(enginetest.FailTool("solvate", "Fatal error: box too small"))

	err := run(context.Background(), &bytes.Buffer{}, args, app.WithEngine(eng))

	require.Error(t, err)
	require.Contains(t, err.Error(), "flow npt failed")
	require.Contains(t, err.Error(), "box too small")
}

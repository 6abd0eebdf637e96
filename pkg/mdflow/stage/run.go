package stage

import (
	"context"
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/internal/ctxlog"
	"github.com/tfharrelson/md-flow/pkg/mdflow/artifact"
	"github.com/tfharrelson/md-flow/pkg/mdflow/settings"
	"github.com/tfharrelson/md-flow/pkg/pipeline"
)

// Minimize returns a node relaxing the protein by steepest descent.
func Minimize(env *Env, protein *pipeline.Node[artifact.Protein]) *pipeline.Node[artifact.RunResult] {
	return standardRun(env, settings.SteepestDescent, protein, 0)
}

// EquilibrateTemperature returns a node equilibrating in at constant volume, the starting
// configuration restraining the protein atoms.
func EquilibrateTemperature[I artifact.Input](env *Env, in *pipeline.Node[I]) *pipeline.Node[artifact.RunResult] {
	return standardRun(env, settings.NVTEquilibration, in, 0)
}

// EquilibratePressure returns a node equilibrating in at constant pressure, the starting
// configuration restraining the protein atoms.
func EquilibratePressure[I artifact.Input](env *Env, in *pipeline.Node[I]) *pipeline.Node[artifact.RunResult] {
	return standardRun(env, settings.NPTEquilibration, in, 0)
}

// Produce returns a node running the production simulation for steps steps. Zero or less keeps
// the step count of the stage.
func Produce[I artifact.Input](env *Env, in *pipeline.Node[I], steps int) *pipeline.Node[artifact.RunResult] {
	return standardRun(env, settings.Production, in, steps)
}

// Compile returns a node compiling the run input of the stage named stageName from in. Steps
// greater than zero replace the step count of the stage.
func Compile[I artifact.Input](env *Env, stageName string, in *pipeline.Node[I], steps int) *pipeline.Node[artifact.RunConfig] {
	return pipeline.Then("compile-"+stageName, in, func(ctx context.Context, input I) (artifact.RunConfig, error) {
		if err := env.validate(); err != nil {
			return artifact.RunConfig{}, err
		}

		return compile(ctx, env, stageName, input, steps)
	})
}

// Execute returns a node running a compiled run input.
func Execute(env *Env, cfg *pipeline.Node[artifact.RunConfig]) *pipeline.Node[artifact.RunResult] {
	return pipeline.Then("execute", cfg, func(ctx context.Context, rc artifact.RunConfig) (artifact.RunResult, error) {
		if err := env.validate(); err != nil {
			return artifact.RunResult{}, err
		}

		return execute(ctx, env, rc)
	})
}

func standardRun[I artifact.Input](env *Env, stageName string, in *pipeline.Node[I], steps int) *pipeline.Node[artifact.RunResult] {
	return pipeline.Then(stageName, in, func(ctx context.Context, input I) (artifact.RunResult, error) {
		if err := env.validate(); err != nil {
			return artifact.RunResult{}, err
		}

		rc, err := compile(ctx, env, stageName, input, steps)
		if err != nil {
			return artifact.RunResult{}, err
		}

		return execute(ctx, env, rc)
	})
}

// compile resolves the coordinates of in and the settings of the stage before any tool runs.
func compile(ctx context.Context, env *Env, stageName string, in artifact.Input, steps int) (artifact.RunConfig, error) {
	conf, top, err := artifact.Coordinates(in)
	if err != nil {
		return artifact.RunConfig{}, err
	}

	st, err := env.Settings.Stage(stageName)
	if err != nil {
		return artifact.RunConfig{}, err
	}
	if steps <= 0 {
		steps = st.Steps
	}

	inv := env.invocation("grompp")
	inv.Inputs["-f"] = st.Template
	inv.Inputs["-c"] = conf
	inv.Inputs["-p"] = top
	if st.Restraints {
		inv.Inputs["-r"] = conf
	}
	if err := env.output(inv, "-o", st.Prefix+artifact.ExtRunInput); err != nil {
		return artifact.RunConfig{}, err
	}

	logger := ctxlog.FromContext(ctx).With("stage", st.Name)
	logger.Info("Compiling run input.", "restraints", st.Restraints)
	res, err := env.Engine.Run(ctx, inv)
	if err != nil {
		return artifact.RunConfig{}, err
	}

	rc, err := artifact.NewRunConfig(res)
	if err != nil {
		return artifact.RunConfig{}, err
	}

	patch := env.invocation("convert-tpr", "-nsteps", strconv.Itoa(steps))
	patch.Inputs["-s"] = rc.BinaryInput()
	if err := env.output(patch, "-o", rc.Prefix()+"_patched"+artifact.ExtRunInput); err != nil {
		return artifact.RunConfig{}, err
	}

	logger.Info("Setting step count.", "steps", steps)
	res, err = env.Engine.Run(ctx, patch)
	if err != nil {
		return artifact.RunConfig{}, err
	}

	return rc.Patched(res, steps)
}

func execute(ctx context.Context, env *Env, rc artifact.RunConfig) (artifact.RunResult, error) {
	inv := env.invocation("mdrun")
	inv.Inputs["-s"] = rc.BinaryInput()
	for flag, ext := range map[string]string{
		"-o": artifact.ExtTrajectory,
		"-e": artifact.ExtEnergy,
		"-c": artifact.ExtStructure,
	} {
		if err := env.output(inv, flag, rc.Prefix()+ext); err != nil {
			return artifact.RunResult{}, err
		}
	}

	ctxlog.FromContext(ctx).Info("Running simulation.", "run_input", rc.BinaryInput(), "steps", rc.Steps())
	res, err := env.Engine.Run(ctx, inv)
	if err != nil {
		return artifact.RunResult{}, err
	}

	return artifact.NewRunResult(rc, res)
}

var nstepsLine = regexp.MustCompile(`(?m)^\s*nsteps\s*=\s*(-?\d+)\s*$`)

// CompiledSteps reads the step count back from the run input of rc.
func CompiledSteps(ctx context.Context, env *Env, rc artifact.RunConfig) (int, error) {
	if err := env.validate(); err != nil {
		return 0, err
	}

	inv := env.invocation("dump")
	inv.Inputs["-s"] = rc.BinaryInput()
	res, err := env.Engine.Run(ctx, inv)
	if err != nil {
		return 0, err
	}

	match := nstepsLine.FindStringSubmatch(res.Stdout)
	if match == nil {
		return 0, errors.Errorf("no nsteps in dump of %s", rc.BinaryInput())
	}

	steps, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, errors.Wrapf(err, "invalid nsteps in dump of %s", rc.BinaryInput())
	}

	return steps, nil
}

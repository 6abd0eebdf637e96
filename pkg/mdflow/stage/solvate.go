package stage

import (
	"context"
	"strconv"

	"github.com/tfharrelson/md-flow/internal/ctxlog"
	"github.com/tfharrelson/md-flow/pkg/mdflow/artifact"
	"github.com/tfharrelson/md-flow/pkg/mdflow/engine"
	"github.com/tfharrelson/md-flow/pkg/mdflow/settings"
	"github.com/tfharrelson/md-flow/pkg/pipeline"
)

// Files written while solvating.
const (
	BoxedFile       = "empty_protein.gro"
	SolvatedFile    = "solvated_protein.gro"
	IonsRunInput    = "ions.tpr"
	NeutralizedFile = "neutral.gro"
)

// SolvateAndNeutralize returns a node placing the protein in a padded box, filling the box with
// solvent and replacing solvent molecules with counter-ions until the system is neutral. The
// topology of the protein is updated in place.
func SolvateAndNeutralize(env *Env, protein *pipeline.Node[artifact.Protein]) *pipeline.Node[artifact.Protein] {
	return pipeline.Then("solvate-neutralize", protein, func(ctx context.Context, p artifact.Protein) (artifact.Protein, error) {
		if err := env.validate(); err != nil {
			return artifact.Protein{}, err
		}

		ions, err := env.Settings.Lookup(settings.Ions)
		if err != nil {
			return artifact.Protein{}, err
		}

		conf, top, err := artifact.Coordinates(p)
		if err != nil {
			return artifact.Protein{}, err
		}

		logger := ctxlog.FromContext(ctx)
		var res engine.Result
		for _, step := range []struct {
			msg string
			inv func() (engine.Invocation, error)
		}{
			{"Enlarging box.", func() (engine.Invocation, error) {
				inv := env.invocation("editconf", "-c", "-d", strconv.FormatFloat(env.BoxPadding, 'f', -1, 64))
				inv.Inputs["-f"] = conf
				return inv, env.output(inv, "-o", BoxedFile)
			}},
			{"Adding solvent.", func() (engine.Invocation, error) {
				inv := env.invocation("solvate", "-cs", env.SolventModel)
				inv.Inputs["-cp"] = res.Outputs["-o"]
				inv.Outputs["-p"] = top
				return inv, env.output(inv, "-o", SolvatedFile)
			}},
			{"Compiling ion placement input.", func() (engine.Invocation, error) {
				inv := env.invocation("grompp")
				inv.Inputs["-f"] = ions
				inv.Inputs["-c"] = res.Outputs["-o"]
				inv.Inputs["-p"] = top
				return inv, env.output(inv, "-o", IonsRunInput)
			}},
			{"Placing ions.", func() (engine.Invocation, error) {
				inv := env.invocation("genion", "-neutral")
				inv.Inputs["-s"] = res.Outputs["-o"]
				inv.Outputs["-p"] = top
				inv.Stdin = env.SolventGroup + "\n"
				return inv, env.output(inv, "-o", NeutralizedFile)
			}},
		} {
			inv, err := step.inv()
			if err != nil {
				return artifact.Protein{}, err
			}

			logger.Info(step.msg, "tool", inv.Tool)
			res, err = env.Engine.Run(ctx, inv)
			if err != nil {
				return artifact.Protein{}, err
			}
		}

		return artifact.FromNeutralization(res, p)
	})
}

// output declares the output flag of inv as the working directory file name.
func (env *Env) output(inv engine.Invocation, flag, name string) error {
	path, err := env.Path(name, "")
	if err != nil {
		return err
	}
	inv.Outputs[flag] = path

	return nil
}

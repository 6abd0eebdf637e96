package stage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/internal/ctxlog"
	"github.com/tfharrelson/md-flow/pkg/mdflow/artifact"
	"github.com/tfharrelson/md-flow/pkg/pipeline"
)

// RawStructureFile is where the fetched structure is written before conversion.
const RawStructureFile = "temp_input.pdb"

// FetchStructure returns a node downloading the structure of the protein id.
func FetchStructure(env *Env, id string) *pipeline.Node[string] {
	return pipeline.Source("fetch-structure", func(ctx context.Context) (string, error) {
		if env == nil {
			return "", ErrEnvMustBeSet
		}
		if env.Structures == nil {
			return "", ErrStructuresMustBeSet
		}

		return env.Structures.Fetch(ctx, id)
	})
}

type conversionNames struct {
	configuration string
	topology      string
	restraint     string
}

type ConvertOption func(names *conversionNames)

// WithConfigurationName sets the name of the converted structure, ".gro" is appended if missing.
func WithConfigurationName(name string) ConvertOption {
	return func(names *conversionNames) {
		names.configuration = name
	}
}

// WithTopologyName sets the name of the topology, ".top" is appended if missing.
func WithTopologyName(name string) ConvertOption {
	return func(names *conversionNames) {
		names.topology = name
	}
}

// WithRestraintName sets the name of the position restraint include, ".itp" is appended if
// missing.
func WithRestraintName(name string) ConvertOption {
	return func(names *conversionNames) {
		names.restraint = name
	}
}

// ConvertToSimulationFormat returns a node converting a raw structure into a structure and
// topology with the force field and water model of env.
func ConvertToSimulationFormat(env *Env, raw *pipeline.Node[string], opts ...ConvertOption) *pipeline.Node[artifact.Protein] {
	names := conversionNames{
		configuration: "conf",
		topology:      "topol",
		restraint:     "posre",
	}
	for _, opt := range opts {
		opt(&names)
	}

	return pipeline.Then("convert", raw, func(ctx context.Context, pdb string) (artifact.Protein, error) {
		if err := env.validate(); err != nil {
			return artifact.Protein{}, err
		}

		pdbPath := filepath.Join(env.WorkDir, RawStructureFile)
		err := os.WriteFile(pdbPath, []byte(pdb), 0o644)
		if err != nil {
			return artifact.Protein{}, errors.Wrap(err, "unable to write raw structure")
		}

		inv := env.invocation("pdb2gmx", "-ff", env.ForceField, "-water", env.WaterModel)
		inv.Inputs["-f"] = pdbPath
		for flag, file := range map[string]struct{ name, ext string }{
			"-o": {names.configuration, artifact.ExtStructure},
			"-p": {names.topology, artifact.ExtTopology},
			"-i": {names.restraint, artifact.ExtRestraint},
		} {
			path, err := env.Path(file.name, file.ext)
			if err != nil {
				return artifact.Protein{}, err
			}
			inv.Outputs[flag] = path
		}

		ctxlog.FromContext(ctx).Info("Converting structure.", "force_field", env.ForceField, "water_model", env.WaterModel)
		res, err := env.Engine.Run(ctx, inv)
		if err != nil {
			return artifact.Protein{}, err
		}

		return artifact.FromConversion(res)
	})
}

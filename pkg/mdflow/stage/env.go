// Package stage builds the deferred simulation stages of the pipeline.
//
// Every function of this package only records a computation and returns its node; nothing runs
// until the node is materialized by a pipeline.Pipeline. Stage bodies find everything they need in
// the Env they are built with and write their files into its working directory under fixed,
// stage-specific names, so concurrent runs need separate working directories.
package stage

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/pkg/mdflow/artifact"
	"github.com/tfharrelson/md-flow/pkg/mdflow/engine"
	"github.com/tfharrelson/md-flow/pkg/mdflow/settings"
	"github.com/tfharrelson/md-flow/pkg/mdflow/structure"
)

var (
	ErrEnvMustBeSet        = errors.New("env must be set")
	ErrWorkDirMustBeSet    = errors.New("working directory must be set")
	ErrEngineMustBeSet     = errors.New("engine must be set")
	ErrSettingsMustBeSet   = errors.New("settings must be set")
	ErrStructuresMustBeSet = errors.New("structure fetcher must be set")
)

// Defaults of the preparation stages.
const (
	DefaultForceField   = "amber03"
	DefaultWaterModel   = "tip3p"
	DefaultBoxPadding   = 1.5
	DefaultSolventModel = "spc216"
	// DefaultSolventGroup is the index of the solvent group in the group list genion prints for a
	// protein solvated in water.
	DefaultSolventGroup = "13"
)

// Env is the run context of the stages.
type Env struct {
	WorkDir    string
	Engine     engine.Engine
	Settings   *settings.Resolver
	Structures structure.Fetcher

	ForceField   string
	WaterModel   string
	BoxPadding   float64
	SolventModel string
	SolventGroup string
}

type EnvOption func(env *Env)

func WithStructures(structures structure.Fetcher) EnvOption {
	return func(env *Env) {
		env.Structures = structures
	}
}

func WithForceField(forceField string) EnvOption {
	return func(env *Env) {
		env.ForceField = forceField
	}
}

func WithWaterModel(waterModel string) EnvOption {
	return func(env *Env) {
		env.WaterModel = waterModel
	}
}

// WithBoxPadding sets the distance between the solute and the box edge, in nm.
func WithBoxPadding(padding float64) EnvOption {
	return func(env *Env) {
		env.BoxPadding = padding
	}
}

func WithSolventModel(solventModel string) EnvOption {
	return func(env *Env) {
		env.SolventModel = solventModel
	}
}

// WithSolventGroup sets the group answered to genion when it asks which group to replace with
// ions.
func WithSolventGroup(group string) EnvOption {
	return func(env *Env) {
		env.SolventGroup = group
	}
}

// NewEnv returns an Env writing into workDir, which is created if needed.
func NewEnv(workDir string, eng engine.Engine, resolver *settings.Resolver, opts ...EnvOption) (*Env, error) {
	if workDir == "" {
		return nil, ErrWorkDirMustBeSet
	}

	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to resolve working directory %s", workDir)
	}

	env := &Env{
		WorkDir:      abs,
		Engine:       eng,
		Settings:     resolver,
		ForceField:   DefaultForceField,
		WaterModel:   DefaultWaterModel,
		BoxPadding:   DefaultBoxPadding,
		SolventModel: DefaultSolventModel,
		SolventGroup: DefaultSolventGroup,
	}
	for _, opt := range opts {
		opt(env)
	}

	if err := env.validate(); err != nil {
		return nil, err
	}
	if env.BoxPadding <= 0 {
		return nil, errors.Errorf("box padding must be positive, got %v", env.BoxPadding)
	}

	err = os.MkdirAll(env.WorkDir, 0o755)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create working directory %s", env.WorkDir)
	}

	return env, nil
}

func (env *Env) validate() error {
	switch {
	case env == nil:
		return ErrEnvMustBeSet
	case env.WorkDir == "":
		return ErrWorkDirMustBeSet
	case env.Engine == nil:
		return ErrEngineMustBeSet
	case env.Settings == nil:
		return ErrSettingsMustBeSet
	}

	return nil
}

// Path returns the absolute path of the file name in the working directory, with ext appended
// when missing.
func (env *Env) Path(name, ext string) (string, error) {
	return artifact.Resolve(env.WorkDir, name, ext)
}

func (env *Env) invocation(tool string, args ...string) engine.Invocation {
	return engine.Invocation{
		Tool:    tool,
		Args:    args,
		Inputs:  engine.Files{},
		Outputs: engine.Files{},
		Dir:     env.WorkDir,
	}
}

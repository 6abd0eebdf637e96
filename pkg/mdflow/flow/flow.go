// Package flow composes stages into the named simulation flows.
//
// A flow is a function returning the final node of its graph. Building a flow runs nothing, and
// since the result is an ordinary node it can be extended or joined with other nodes before it is
// materialized.
package flow

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/pkg/mdflow/artifact"
	"github.com/tfharrelson/md-flow/pkg/mdflow/stage"
	"github.com/tfharrelson/md-flow/pkg/pipeline"
)

// Names of the registered flows.
const (
	NameStructurePrep = "structure-prep"
	NameNPT           = "npt"
)

var ErrUnknownFlow = errors.New("unknown flow")

// StructurePrep fetches the structure of id, converts it, solvates and neutralizes it, then
// minimizes its energy.
func StructurePrep(env *stage.Env, id string) *pipeline.Node[artifact.RunResult] {
	raw := stage.FetchStructure(env, id)
	protein := stage.ConvertToSimulationFormat(env, raw)
	solvated := stage.SolvateAndNeutralize(env, protein)

	return stage.Minimize(env, solvated)
}

// Equilibrated equilibrates in, first at constant volume then at constant pressure.
func Equilibrated[I artifact.Input](env *stage.Env, in *pipeline.Node[I]) *pipeline.Node[artifact.RunResult] {
	return stage.EquilibratePressure(env, stage.EquilibrateTemperature(env, in))
}

// Production equilibrates in and runs the production simulation for steps steps.
func Production[I artifact.Input](env *stage.Env, in *pipeline.Node[I], steps int) *pipeline.Node[artifact.RunResult] {
	return stage.Produce(env, Equilibrated(env, in), steps)
}

// NPTProduction prepares the structure of id and runs it through equilibration and production.
// Zero or less steps keeps the production step count of the settings.
func NPTProduction(env *stage.Env, id string, steps int) *pipeline.Node[artifact.RunResult] {
	return Production(env, StructurePrep(env, id), steps)
}

// Flow builds the graph of a named flow for a protein.
type Flow func(env *stage.Env, id string, steps int) *pipeline.Node[artifact.RunResult]

var registry = map[string]Flow{
	NameStructurePrep: func(env *stage.Env, id string, _ int) *pipeline.Node[artifact.RunResult] {
		return StructurePrep(env, id)
	},
	NameNPT: NPTProduction,
}

// Lookup returns the flow registered as name.
func Lookup(name string) (Flow, error) {
	f, ok := registry[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFlow, "%q, known flows are %v", name, Names())
	}

	return f, nil
}

// Names returns the registered flow names in lexical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

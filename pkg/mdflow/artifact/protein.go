package artifact

import "github.com/tfharrelson/md-flow/pkg/mdflow/engine"

// Protein is a structure together with its force-field topology.
type Protein struct {
	Configuration string
	Topology      string
	// Restraint is the position restraint include written by the conversion, if any.
	Restraint string
}

func (Protein) input() {}

// FromConversion builds the protein written by a structure conversion, reading the -o, -p and -i
// outputs.
func FromConversion(res engine.Result) (Protein, error) {
	conf, err := nonEmpty(res, "-o")
	if err != nil {
		return Protein{}, err
	}
	top, err := nonEmpty(res, "-p")
	if err != nil {
		return Protein{}, err
	}
	posre, err := output(res, "-i")
	if err != nil {
		return Protein{}, err
	}

	return Protein{Configuration: conf, Topology: top, Restraint: posre}, nil
}

// FromNeutralization builds the protein written by ion placement from its -o and -p outputs.
// The restraint of prev is carried over.
func FromNeutralization(res engine.Result, prev Protein) (Protein, error) {
	conf, err := nonEmpty(res, "-o")
	if err != nil {
		return Protein{}, err
	}
	top, err := nonEmpty(res, "-p")
	if err != nil {
		return Protein{}, err
	}

	return Protein{Configuration: conf, Topology: top, Restraint: prev.Restraint}, nil
}

package artifact

import (
	"fmt"

	"github.com/pkg/errors"
)

// Input is an artifact a simulation stage can start from: a Protein, a RunConfig or a RunResult.
// The set is closed.
type Input interface {
	input()
}

// UnsupportedInputError reports an Input of a kind no stage can start from.
type UnsupportedInputError struct {
	Kind string
}

func (e *UnsupportedInputError) Error() string {
	return fmt.Sprintf("unsupported input %s", e.Kind)
}

// Coordinates returns the configuration and topology a stage starting from in runs on. A result
// continues from its final configuration with the topology of its run.
func Coordinates(in Input) (configuration, topology string, err error) {
	switch v := in.(type) {
	case Protein:
		configuration, topology = v.Configuration, v.Topology
	case RunConfig:
		configuration, topology = v.configuration, v.topology
	case RunResult:
		configuration, topology = v.FinalConfiguration, v.Source.topology
	default:
		return "", "", &UnsupportedInputError{Kind: fmt.Sprintf("%T", in)}
	}

	if configuration == "" || topology == "" {
		return "", "", errors.Errorf("%T has no configuration or topology", in)
	}

	return configuration, topology, nil
}

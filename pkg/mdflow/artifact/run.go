package artifact

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/pkg/mdflow/engine"
)

// RunConfig is a compiled run input together with the files it was compiled from.
type RunConfig struct {
	binaryInput   string
	configuration string
	topology      string
	settings      string
	restraint     string
	steps         int
	prefix        string
	compile       engine.Result
}

func (RunConfig) input() {}

// NewRunConfig builds the run configuration compiled by res, an invocation reading -f, -c, -p and
// optionally -r, and writing -o. Its step count is DefaultSteps until patched.
func NewRunConfig(res engine.Result) (RunConfig, error) {
	bin, err := nonEmpty(res, "-o")
	if err != nil {
		return RunConfig{}, err
	}

	rc := RunConfig{
		binaryInput: bin,
		steps:       DefaultSteps,
		prefix:      strings.TrimSuffix(filepath.Base(bin), ExtRunInput),
		compile:     res,
	}
	if rc.settings, err = input(res, "-f"); err != nil {
		return RunConfig{}, err
	}
	if rc.configuration, err = input(res, "-c"); err != nil {
		return RunConfig{}, err
	}
	if rc.topology, err = input(res, "-p"); err != nil {
		return RunConfig{}, err
	}
	if _, ok := res.Invocation.Inputs["-r"]; ok {
		rc.restraint, _ = input(res, "-r")
	}

	return rc, nil
}

// Patched derives the run configuration written by res, a step patch reading the binary input of
// rc with -s and writing the patched input with -o.
func (rc RunConfig) Patched(res engine.Result, steps int) (RunConfig, error) {
	src, err := input(res, "-s")
	if err != nil {
		return RunConfig{}, err
	}
	if src != rc.binaryInput {
		return RunConfig{}, errors.Errorf("patch reads %s, expected %s", src, rc.binaryInput)
	}
	if steps <= 0 {
		return RunConfig{}, errors.Errorf("steps must be positive, got %d", steps)
	}

	bin, err := nonEmpty(res, "-o")
	if err != nil {
		return RunConfig{}, err
	}

	patched := rc
	patched.binaryInput = bin
	patched.steps = steps

	return patched, nil
}

func (rc RunConfig) BinaryInput() string   { return rc.binaryInput }
func (rc RunConfig) Configuration() string { return rc.configuration }
func (rc RunConfig) Topology() string      { return rc.topology }
func (rc RunConfig) Settings() string      { return rc.settings }

// Restraint is the restraint reference given to the compiler, empty when the stage is
// unrestrained.
func (rc RunConfig) Restraint() string { return rc.restraint }
func (rc RunConfig) Steps() int        { return rc.steps }

// Prefix is the base name shared by the files of the stage, e.g. "nvt_eq".
func (rc RunConfig) Prefix() string { return rc.prefix }

// Compilation is the invocation that compiled the run input.
func (rc RunConfig) Compilation() engine.Result { return rc.compile }

// RunResult is a completed simulation stage.
type RunResult struct {
	Source             RunConfig
	FinalConfiguration string
	Energy             string
	Trajectory         string
	// Handle is the engine invocation that ran the stage.
	Handle engine.Result
}

func (RunResult) input() {}

// NewRunResult builds the result of res, a run of src reading -s and writing -o (trajectory),
// -e (energies) and -c (final configuration).
func NewRunResult(src RunConfig, res engine.Result) (RunResult, error) {
	bin, err := input(res, "-s")
	if err != nil {
		return RunResult{}, err
	}
	if bin != src.binaryInput {
		return RunResult{}, errors.Errorf("run reads %s, expected %s", bin, src.binaryInput)
	}

	rr := RunResult{Source: src, Handle: res}
	if rr.FinalConfiguration, err = nonEmpty(res, "-c"); err != nil {
		return RunResult{}, err
	}
	if rr.Energy, err = output(res, "-e"); err != nil {
		return RunResult{}, err
	}
	if rr.Trajectory, err = output(res, "-o"); err != nil {
		return RunResult{}, err
	}

	return rr, nil
}

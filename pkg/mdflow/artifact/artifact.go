// Package artifact holds the file-based values passed between simulation stages.
//
// Every artifact is built from a completed engine invocation and is never modified afterwards:
// a stage derives a new artifact instead. Constructors refuse to build an artifact whose declared
// files are missing, so a value of these types always points at files that existed when it was
// created.
package artifact

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/pkg/mdflow/engine"
)

// File extensions of the artifacts.
const (
	ExtStructure  = ".gro"
	ExtTopology   = ".top"
	ExtRestraint  = ".itp"
	ExtRunInput   = ".tpr"
	ExtTrajectory = ".trr"
	ExtEnergy     = ".edr"
	ExtPDB        = ".pdb"
)

// DefaultSteps is the step count of a run input unless a stage sets another one.
const DefaultSteps = 10000

// WithExt appends ext to name unless name already ends with it.
func WithExt(name, ext string) string {
	if strings.HasSuffix(name, ext) {
		return name
	}

	return name + ext
}

// Resolve returns the absolute path of name, with ext appended when missing, relative to dir.
// An empty dir is the process working directory.
func Resolve(dir, name, ext string) (string, error) {
	if name == "" {
		return "", errors.New("file name must be set")
	}

	path := WithExt(name, ext)
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "unable to resolve %s", path)
	}

	return abs, nil
}

// output returns the path res wrote for flag, failing like the tool itself would have when the
// file is not there.
func output(res engine.Result, flag string) (string, error) {
	path, ok := res.Output(flag)
	if !ok {
		path, ok = res.Invocation.Outputs[flag]
		if !ok {
			return "", &engine.ExternalToolError{
				Tool:    res.Invocation.Tool,
				Args:    res.Invocation.Argv(),
				Missing: []string{flag},
			}
		}
		path = res.Invocation.Path(path)
	}

	if _, err := os.Stat(path); err != nil {
		return "", &engine.ExternalToolError{
			Tool:    res.Invocation.Tool,
			Args:    res.Invocation.Argv(),
			Missing: []string{flag + " " + path},
			Err:     err,
		}
	}

	return path, nil
}

// nonEmpty is output for files the next stage parses.
func nonEmpty(res engine.Result, flag string) (string, error) {
	path, err := output(res, flag)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrapf(err, "unable to stat %s", path)
	}
	if info.Size() == 0 {
		return "", &engine.ExternalToolError{
			Tool:    res.Invocation.Tool,
			Args:    res.Invocation.Argv(),
			Missing: []string{flag + " " + path + " (empty)"},
		}
	}

	return path, nil
}

func input(res engine.Result, flag string) (string, error) {
	path, ok := res.Invocation.Inputs[flag]
	if !ok {
		return "", errors.Errorf("%s invocation has no %s input", res.Invocation.Tool, flag)
	}

	return res.Invocation.Path(path), nil
}

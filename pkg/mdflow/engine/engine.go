// Package engine runs the tools of a molecular-dynamics engine as subprocesses.
//
// An Invocation names one tool of the engine, its plain arguments, and the files it reads and
// writes keyed by command line flag. Running it either yields a Result whose declared outputs all
// exist on disk or fails with an *ExternalToolError.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Files maps command line flags, e.g. "-o", to file paths.
type Files map[string]string

// Flags returns the flags of f in lexical order.
func (f Files) Flags() []string {
	flags := make([]string, 0, len(f))
	for flag := range f {
		flags = append(flags, flag)
	}
	sort.Strings(flags)

	return flags
}

func (f Files) clone() Files {
	if f == nil {
		return nil
	}
	res := make(Files, len(f))
	for flag, path := range f {
		res[flag] = path
	}

	return res
}

// Invocation is a single call of an engine tool.
type Invocation struct {
	// Tool is the engine sub-command, e.g. "grompp".
	Tool string
	// Args are passed before the file flags.
	Args    []string
	Inputs  Files
	Outputs Files
	// Stdin is written to the standard input of the tool when not empty.
	Stdin string
	// Dir is the working directory of the tool. Relative file paths are resolved against it.
	Dir string
}

// Argv returns the command line of inv without the engine binary: the tool, its arguments, then
// input and output flags each in lexical order.
func (inv Invocation) Argv() []string {
	argv := make([]string, 0, 1+len(inv.Args)+2*(len(inv.Inputs)+len(inv.Outputs)))
	argv = append(argv, inv.Tool)
	argv = append(argv, inv.Args...)
	for _, flag := range inv.Inputs.Flags() {
		argv = append(argv, flag, inv.Inputs[flag])
	}
	for _, flag := range inv.Outputs.Flags() {
		argv = append(argv, flag, inv.Outputs[flag])
	}

	return argv
}

// Path resolves a file path of inv against its working directory.
func (inv Invocation) Path(path string) string {
	if filepath.IsAbs(path) || inv.Dir == "" {
		return path
	}

	return filepath.Join(inv.Dir, path)
}

// Result is a completed invocation.
type Result struct {
	Invocation Invocation
	// Outputs holds the resolved path of every declared output.
	Outputs  Files
	Stdout   string
	Duration time.Duration
}

// Output returns the resolved path of the output declared with flag.
func (r Result) Output(flag string) (string, bool) {
	path, ok := r.Outputs[flag]
	return path, ok
}

// Engine runs invocations.
type Engine interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// Complete checks that every output declared by inv exists and returns the matching Result.
// A missing output fails with an *ExternalToolError listing every missing flag.
func Complete(inv Invocation, stdout string, elapsed time.Duration) (Result, error) {
	outputs := make(Files, len(inv.Outputs))
	var missing []string
	for _, flag := range inv.Outputs.Flags() {
		path := inv.Path(inv.Outputs[flag])
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, flag+" "+path)
			continue
		}
		outputs[flag] = path
	}

	if len(missing) > 0 {
		return Result{}, &ExternalToolError{
			Tool:    inv.Tool,
			Args:    inv.Argv(),
			Missing: missing,
		}
	}

	inv.Args = append([]string(nil), inv.Args...)
	inv.Inputs = inv.Inputs.clone()
	inv.Outputs = inv.Outputs.clone()

	return Result{
		Invocation: inv,
		Outputs:    outputs,
		Stdout:     stdout,
		Duration:   elapsed,
	}, nil
}

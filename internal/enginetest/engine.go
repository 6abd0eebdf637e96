// Package enginetest provides in-process stand-ins for the simulation engine and the structure
// service, for tests that run whole stages without GROMACS or network access.
//
// The fake engine reproduces the file effects of each tool closely enough for the pipeline's
// own checks: converted structures have a box, solvation adds SOL residues and grows the box,
// ion placement appends NA ions, and run inputs are text files recording what they were
// compiled from.
package enginetest

import (
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/pkg/mdflow/engine"
)

// Sizes of the systems the fake engine builds.
const (
	ProteinBox       = 3.5
	SolventMolecules = 60
	Ions             = 2
)

// Engine is a fake engine.Engine. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	calls    []engine.Invocation
	failures map[string]string
	skipped  map[string]string
}

type Option func(e *Engine)

// FailTool makes every run of tool exit with status 1 and stderr.
func FailTool(tool, stderr string) Option {
	return func(e *Engine) {
		e.failures[tool] = stderr
	}
}

// SkipOutput makes tool exit successfully without writing the output declared with flag.
func SkipOutput(tool, flag string) Option {
	return func(e *Engine) {
		e.skipped[tool] = flag
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		failures: make(map[string]string),
		skipped:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Calls returns every invocation run so far, in order.
func (e *Engine) Calls() []engine.Invocation {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]engine.Invocation(nil), e.calls...)
}

// Tools returns the tool of every invocation run so far, in order.
func (e *Engine) Tools() []string {
	calls := e.Calls()
	tools := make([]string, len(calls))
	for i, call := range calls {
		tools[i] = call.Tool
	}

	return tools
}

// CallsTo returns the invocations of tool.
func (e *Engine) CallsTo(tool string) []engine.Invocation {
	var res []engine.Invocation
	for _, call := range e.Calls() {
		if call.Tool == tool {
			res = append(res, call)
		}
	}

	return res
}

type toolFn func(inv engine.Invocation) (stdout string, err error)

func (e *Engine) Run(ctx context.Context, inv engine.Invocation) (engine.Result, error) {
	if err := ctx.Err(); err != nil {
		return engine.Result{}, &engine.ExternalToolError{Tool: inv.Tool, Args: inv.Argv(), ExitCode: -1, Err: err}
	}

	e.mu.Lock()
	e.calls = append(e.calls, inv)
	stderr, failing := e.failures[inv.Tool]
	skipped := e.skipped[inv.Tool]
	e.mu.Unlock()

	fail := func(stderr string, err error) (engine.Result, error) {
		return engine.Result{}, &engine.ExternalToolError{
			Tool:     inv.Tool,
			Args:     inv.Argv(),
			ExitCode: 1,
			Stderr:   stderr,
			Err:      err,
		}
	}

	if failing {
		return fail(stderr, nil)
	}
	for _, flag := range inv.Inputs.Flags() {
		if _, err := os.Stat(inv.Path(inv.Inputs[flag])); err != nil {
			return fail("File input/output error: "+inv.Inputs[flag], nil)
		}
	}

	tool, ok := tools[inv.Tool]
	if !ok {
		return fail("Unknown command "+inv.Tool, nil)
	}

	stdout, err := tool(inv)
	if err != nil {
		return fail(err.Error(), err)
	}

	if skipped != "" {
		if path, ok := inv.Outputs[skipped]; ok {
			_ = os.Remove(inv.Path(path))
		}
	}

	return engine.Complete(inv, stdout, 0)
}

var tools = map[string]toolFn{
	"pdb2gmx":     pdb2gmx,
	"editconf":    editconf,
	"solvate":     solvate,
	"grompp":      grompp,
	"genion":      genion,
	"convert-tpr": convertTpr,
	"mdrun":       mdrun,
	"dump":        dump,
}

func in(inv engine.Invocation, flag string) (string, error) {
	path, ok := inv.Inputs[flag]
	if !ok {
		return "", errors.Errorf("%s: missing %s", inv.Tool, flag)
	}

	return inv.Path(path), nil
}

func out(inv engine.Invocation, flag string) (string, error) {
	path, ok := inv.Outputs[flag]
	if !ok {
		return "", errors.Errorf("%s: missing %s", inv.Tool, flag)
	}

	return inv.Path(path), nil
}

func arg(inv engine.Invocation, name string) (string, error) {
	for i, a := range inv.Args {
		if a == name && i+1 < len(inv.Args) {
			return inv.Args[i+1], nil
		}
	}

	return "", errors.Errorf("%s: missing %s", inv.Tool, name)
}

func appendFile(path, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "unable to open %s", path)
	}
	defer f.Close()

	_, err = f.WriteString(text)
	if err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}

	return nil
}

var atomLine = regexp.MustCompile(`^(ATOM|HETATM)`)

func pdb2gmx(inv engine.Invocation) (string, error) {
	pdb, err := in(inv, "-f")
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(pdb)
	if err != nil {
		return "", err
	}

	s := &structureFile{title: "Protein", box: [3]float64{ProteinBox, ProteinBox, ProteinBox}}
	for _, line := range strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n") {
		if atomLine.MatchString(line) {
			s.addAtom(1, "PROT", "CA", 1, 1, 1)
		}
	}
	if len(s.atoms) == 0 {
		return "", errors.New("No atoms found in input file")
	}

	ff, err := arg(inv, "-ff")
	if err != nil {
		return "", err
	}
	water, err := arg(inv, "-water")
	if err != nil {
		return "", err
	}

	conf, err := out(inv, "-o")
	if err != nil {
		return "", err
	}
	if err := s.write(conf); err != nil {
		return "", err
	}

	top, err := out(inv, "-p")
	if err != nil {
		return "", err
	}
	topology := "; force field " + ff + ", water " + water + "\n[ system ]\nProtein\n\n[ molecules ]\nProtein_chain_A     1\n"
	if err := os.WriteFile(top, []byte(topology), 0o644); err != nil {
		return "", err
	}

	posre, err := out(inv, "-i")
	if err != nil {
		return "", err
	}

	return "", os.WriteFile(posre, []byte("[ position_restraints ]\n"), 0o644)
}

func editconf(inv engine.Invocation) (string, error) {
	src, err := in(inv, "-f")
	if err != nil {
		return "", err
	}
	s, err := readStructure(src)
	if err != nil {
		return "", err
	}

	d, err := arg(inv, "-d")
	if err != nil {
		return "", err
	}
	padding, err := strconv.ParseFloat(d, 64)
	if err != nil {
		return "", errors.Wrapf(err, "invalid -d %s", d)
	}
	for i := range s.box {
		s.box[i] += 2 * padding
	}

	dst, err := out(inv, "-o")
	if err != nil {
		return "", err
	}

	return "", s.write(dst)
}

func solvate(inv engine.Invocation) (string, error) {
	if _, err := arg(inv, "-cs"); err != nil {
		return "", err
	}
	src, err := in(inv, "-cp")
	if err != nil {
		return "", err
	}
	s, err := readStructure(src)
	if err != nil {
		return "", err
	}

	for i := 0; i < SolventMolecules; i++ {
		res := 2 + i
		s.addAtom(res, "SOL", "OW", 2, 2, 2)
		s.addAtom(res, "SOL", "HW1", 2.1, 2, 2)
		s.addAtom(res, "SOL", "HW2", 2, 2.1, 2)
	}

	dst, err := out(inv, "-o")
	if err != nil {
		return "", err
	}
	if err := s.write(dst); err != nil {
		return "", err
	}

	top, err := out(inv, "-p")
	if err != nil {
		return "", err
	}

	return "", appendFile(top, "SOL              "+strconv.Itoa(SolventMolecules)+"\n")
}

var nstepsSetting = regexp.MustCompile(`(?m)^\s*nsteps\s*=\s*(\d+)`)

func grompp(inv engine.Invocation) (string, error) {
	ri := make(RunInput)
	for key, flag := range map[string]string{
		KeySettings:      "-f",
		KeyConfiguration: "-c",
		KeyTopology:      "-p",
	} {
		path, err := in(inv, flag)
		if err != nil {
			return "", err
		}
		ri[key] = path
	}
	if _, ok := inv.Inputs["-r"]; ok {
		ri[KeyRestraint], _ = in(inv, "-r")
	}

	settings, err := os.ReadFile(ri[KeySettings])
	if err != nil {
		return "", err
	}
	ri[KeySteps] = "0"
	if match := nstepsSetting.FindSubmatch(settings); match != nil {
		ri[KeySteps] = string(match[1])
	}

	dst, err := out(inv, "-o")
	if err != nil {
		return "", err
	}

	return "", ri.write(dst)
}

func genion(inv engine.Invocation) (string, error) {
	if inv.Stdin == "" {
		return "", errors.New("Select a group: end of file")
	}

	tpr, err := in(inv, "-s")
	if err != nil {
		return "", err
	}
	ri, err := ReadRunInput(tpr)
	if err != nil {
		return "", err
	}
	s, err := readStructure(ri[KeyConfiguration])
	if err != nil {
		return "", err
	}

	for i := 0; i < Ions; i++ {
		s.addAtom(2+SolventMolecules+i, "NA", "NA", 3, 3, 3)
	}

	dst, err := out(inv, "-o")
	if err != nil {
		return "", err
	}
	if err := s.write(dst); err != nil {
		return "", err
	}

	top, err := out(inv, "-p")
	if err != nil {
		return "", err
	}

	return "", appendFile(top, "NA               "+strconv.Itoa(Ions)+"\n")
}

func convertTpr(inv engine.Invocation) (string, error) {
	tpr, err := in(inv, "-s")
	if err != nil {
		return "", err
	}
	ri, err := ReadRunInput(tpr)
	if err != nil {
		return "", err
	}

	steps, err := arg(inv, "-nsteps")
	if err != nil {
		return "", err
	}
	if _, err := strconv.Atoi(steps); err != nil {
		return "", errors.Wrapf(err, "invalid -nsteps %s", steps)
	}
	ri[KeySteps] = steps

	dst, err := out(inv, "-o")
	if err != nil {
		return "", err
	}

	return "", ri.write(dst)
}

func mdrun(inv engine.Invocation) (string, error) {
	tpr, err := in(inv, "-s")
	if err != nil {
		return "", err
	}
	ri, err := ReadRunInput(tpr)
	if err != nil {
		return "", err
	}
	s, err := readStructure(ri[KeyConfiguration])
	if err != nil {
		return "", err
	}

	final, err := out(inv, "-c")
	if err != nil {
		return "", err
	}
	if err := s.write(final); err != nil {
		return "", err
	}

	for flag, content := range map[string]string{
		"-o": "trajectory of " + tpr + "\n",
		"-e": "energies of " + tpr + "\n",
	} {
		path, err := out(inv, flag)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", err
		}
	}

	return "", nil
}

func dump(inv engine.Invocation) (string, error) {
	tpr, err := in(inv, "-s")
	if err != nil {
		return "", err
	}
	ri, err := ReadRunInput(tpr)
	if err != nil {
		return "", err
	}

	return ri.dump(), nil
}

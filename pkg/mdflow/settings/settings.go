// Package settings resolves the simulation parameter templates of each stage.
package settings

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// Logical template names.
const (
	Ions             = "ions"
	SteepestDescent  = "steepest-descent"
	NVTEquilibration = "nvt-equilibration"
	NPTEquilibration = "npt-equilibration"
	Production       = "production"
)

var templateFiles = map[string]string{
	Ions:             "ions.mdp",
	SteepestDescent:  "steep.mdp",
	NVTEquilibration: "nvt_eq.mdp",
	NPTEquilibration: "npt_eq.mdp",
	Production:       "prod.mdp",
}

// Stage describes a simulation stage run with a template.
type Stage struct {
	// Name is the logical template name of the stage.
	Name string
	// Template is the absolute path of the parameter file.
	Template string
	// Prefix names the files written by the stage, e.g. "em" for em.tpr and em.gro.
	Prefix string
	// Restraints supplies the starting configuration as position restraint reference.
	Restraints bool
	// Steps is written into the compiled run input.
	Steps int
}

var defaultStages = map[string]Stage{
	SteepestDescent:  {Prefix: "em"},
	NVTEquilibration: {Prefix: "nvt_eq", Restraints: true},
	NPTEquilibration: {Prefix: "npt_eq", Restraints: true},
	Production:       {Prefix: "prod"},
}

// DefaultSteps is the step count of a stage without override.
const DefaultSteps = 10000

// Override replaces parts of a stage definition. Zero fields keep the default.
type Override struct {
	// Template is a parameter file used instead of the bundled one, relative to the template
	// directory unless absolute.
	Template   string
	Steps      int
	Restraints *bool
}

// ConfigNotFoundError reports a template that is unknown or absent from disk.
type ConfigNotFoundError struct {
	Name string
	// Path is empty when the name is unknown.
	Path string
	Err  error
}

func (e *ConfigNotFoundError) Error() string {
	if e.Path == "" {
		return "unknown config " + e.Name
	}

	return "config " + e.Name + " not found at " + e.Path
}

func (e *ConfigNotFoundError) Unwrap() error {
	return e.Err
}

// Resolver maps logical names to the templates of one directory.
type Resolver struct {
	dir       string
	overrides map[string]Override
}

type ResolverOption func(r *Resolver)

// WithOverride changes the stage named name.
func WithOverride(name string, override Override) ResolverOption {
	return func(r *Resolver) {
		r.overrides[name] = override
	}
}

// NewResolver returns a resolver for the templates in dir. Files are not checked until they are
// looked up.
func NewResolver(dir string, opts ...ResolverOption) (*Resolver, error) {
	if dir == "" {
		return nil, errors.New("template directory must be set")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to resolve template directory %s", dir)
	}

	r := &Resolver{dir: abs, overrides: make(map[string]Override)}
	for _, opt := range opts {
		opt(r)
	}

	for name, override := range r.overrides {
		if _, ok := defaultStages[name]; !ok {
			return nil, &ConfigNotFoundError{Name: name}
		}
		if override.Steps < 0 {
			return nil, errors.Errorf("stage %s: steps must not be negative, got %d", name, override.Steps)
		}
	}

	return r, nil
}

// Dir returns the template directory.
func (r *Resolver) Dir() string {
	return r.dir
}

// Lookup returns the absolute path of the template named name. The file must exist when Lookup
// is called.
func (r *Resolver) Lookup(name string) (string, error) {
	file, ok := templateFiles[name]
	if !ok {
		return "", &ConfigNotFoundError{Name: name}
	}
	if override := r.overrides[name]; override.Template != "" {
		file = override.Template
	}

	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.dir, file)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", &ConfigNotFoundError{Name: name, Path: path, Err: err}
	}
	if info.IsDir() {
		return "", &ConfigNotFoundError{Name: name, Path: path, Err: errors.New("is a directory")}
	}

	return path, nil
}

// Stage returns the definition of the stage run with the template named name, its template
// resolved.
func (r *Resolver) Stage(name string) (Stage, error) {
	st, ok := defaultStages[name]
	if !ok {
		return Stage{}, &ConfigNotFoundError{Name: name}
	}

	template, err := r.Lookup(name)
	if err != nil {
		return Stage{}, err
	}

	st.Name = name
	st.Template = template
	st.Steps = DefaultSteps

	override := r.overrides[name]
	if override.Steps > 0 {
		st.Steps = override.Steps
	}
	if override.Restraints != nil {
		st.Restraints = *override.Restraints
	}

	return st, nil
}

// Names returns the logical template names in lexical order.
func Names() []string {
	names := make([]string, 0, len(templateFiles))
	for name := range templateFiles {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// StageNames returns the names accepted by Resolver.Stage in lexical order.
func StageNames() []string {
	names := make([]string, 0, len(defaultStages))
	for name := range defaultStages {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

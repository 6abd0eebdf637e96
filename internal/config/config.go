// Package config loads the settings of the mdflow command.
//
// Values are layered: built-in defaults, then a dotenv file and MDFLOW_* environment variables,
// then an optional HCL file. The merged result is validated before it is returned.
package config

import (
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/pkg/mdflow/engine"
	"github.com/tfharrelson/md-flow/pkg/mdflow/settings"
	"github.com/tfharrelson/md-flow/pkg/mdflow/stage"
	"github.com/tfharrelson/md-flow/pkg/mdflow/structure"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MDFLOW_"

// DefaultEnvFile is the dotenv file read when no other is given. It may be absent.
const DefaultEnvFile = ".env"

// Config is the merged configuration. The config tag names the key in files and, upper-cased
// behind EnvPrefix, in the environment.
type Config struct {
	WorkDir string `config:"workdir" validate:"required"`
	// TemplateDir holds the stage parameter files. When empty the bundled templates are installed
	// under WorkDir.
	TemplateDir   string        `config:"template_dir"`
	Binary        string        `config:"gmx" validate:"required"`
	StructureURL  string        `config:"alphafold_url" validate:"required,url"`
	Workers       int           `config:"workers" validate:"gte=0"`
	MaxWorkers    int           `config:"max_workers" validate:"gte=0"`
	Concurrency   int           `config:"concurrency" validate:"gte=1"`
	LookupRetries int           `config:"lookup_retries" validate:"gte=0"`
	LookupBackoff time.Duration `config:"lookup_backoff" validate:"gte=0"`
	SolventGroup  string        `config:"solvent_group" validate:"required"`
	BoxPadding    float64       `config:"box_padding" validate:"gt=0"`
	ForceField    string        `config:"force_field" validate:"required"`
	WaterModel    string        `config:"water_model" validate:"required"`
	SolventModel  string        `config:"solvent_model" validate:"required"`
	LogLevel      string        `config:"log_level" validate:"oneof=debug info warn error"`
	LogFormat     string        `config:"log_format" validate:"oneof=text json"`
	DOTFile       string        `config:"dot_file"`

	// Stages holds per-stage overrides keyed by stage name.
	Stages map[string]settings.Override `config:"stage"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		WorkDir:       "mdflow-work",
		Binary:        engine.DefaultBinary,
		StructureURL:  structure.DefaultBaseURL,
		Concurrency:   1,
		LookupRetries: 2,
		LookupBackoff: 500 * time.Millisecond,
		SolventGroup:  stage.DefaultSolventGroup,
		BoxPadding:    stage.DefaultBoxPadding,
		ForceField:    stage.DefaultForceField,
		WaterModel:    stage.DefaultWaterModel,
		SolventModel:  stage.DefaultSolventModel,
		LogLevel:      "info",
		LogFormat:     "text",
		Stages:        make(map[string]settings.Override),
	}
}

type options struct {
	envFile  string
	file     string
	lookup   func(key string) (string, bool)
	explicit bool
}

type Option func(o *options)

// WithEnvFile reads the dotenv file path instead of DefaultEnvFile. The file must then exist.
func WithEnvFile(path string) Option {
	return func(o *options) {
		o.envFile = path
		o.explicit = true
	}
}

// WithFile applies the HCL file path last.
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// WithLookup reads environment variables through lookup instead of os.LookupEnv.
func WithLookup(lookup func(key string) (string, bool)) Option {
	return func(o *options) {
		o.lookup = lookup
	}
}

// Load merges every layer over Default and validates the result.
func Load(opts ...Option) (*Config, error) {
	o := &options{envFile: DefaultEnvFile, lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(o)
	}

	cfg := Default()

	dotenv, err := readEnvFile(o.envFile, o.explicit)
	if err != nil {
		return nil, err
	}

	lookup := func(key string) (string, bool) {
		if v, ok := o.lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	err = cfg.applyEnv(lookup)
	if err != nil {
		return nil, err
	}

	if o.file != "" {
		err = cfg.applyFile(o.file)
		if err != nil {
			return nil, err
		}
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func readEnvFile(path string, required bool) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if !required && os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "unable to read env file %s", path)
	}

	return values, nil
}

// EnvKey returns the environment variable of the key name.
func EnvKey(name string) string {
	return EnvPrefix + strings.ToUpper(name)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvKey(name)); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvKey(name))
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvKey(name))
		}
		*dst = n
		return nil
	}

	str("workdir", &c.WorkDir)
	str("template_dir", &c.TemplateDir)
	str("gmx", &c.Binary)
	str("alphafold_url", &c.StructureURL)
	str("solvent_group", &c.SolventGroup)
	str("force_field", &c.ForceField)
	str("water_model", &c.WaterModel)
	str("solvent_model", &c.SolventModel)
	str("log_level", &c.LogLevel)
	str("log_format", &c.LogFormat)
	str("dot_file", &c.DOTFile)

	for name, dst := range map[string]*int{
		"workers":        &c.Workers,
		"max_workers":    &c.MaxWorkers,
		"concurrency":    &c.Concurrency,
		"lookup_retries": &c.LookupRetries,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvKey("lookup_backoff")); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvKey("lookup_backoff"))
		}
		c.LookupBackoff = d
	}

	if v, ok := lookup(EnvKey("box_padding")); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvKey("box_padding"))
		}
		c.BoxPadding = f
	}

	return nil
}

// Validate checks c with its validate tags and rejects overrides of unknown stages.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return formatValidationErrors(fieldErrs)
		}
		return errors.Wrap(err, "invalid configuration")
	}

	known := make(map[string]bool)
	for _, name := range settings.StageNames() {
		known[name] = true
	}

	names := make([]string, 0, len(c.Stages))
	for name := range c.Stages {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !known[name] {
			return errors.Errorf("invalid configuration: unknown stage %q, want one of %s",
				name, strings.Join(settings.StageNames(), ", "))
		}
		if c.Stages[name].Steps < 0 {
			return errors.Errorf("invalid configuration: stage %s: steps must not be negative", name)
		}
	}

	return nil
}

// ResolverOptions returns the stage overrides of c, sorted by stage name.
func (c *Config) ResolverOptions() []settings.ResolverOption {
	names := make([]string, 0, len(c.Stages))
	for name := range c.Stages {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]settings.ResolverOption, 0, len(names))
	for _, name := range names {
		opts = append(opts, settings.WithOverride(name, c.Stages[name]))
	}

	return opts
}

// EnvOptions returns the stage.Env options of c.
func (c *Config) EnvOptions() []stage.EnvOption {
	return []stage.EnvOption{
		stage.WithForceField(c.ForceField),
		stage.WithWaterModel(c.WaterModel),
		stage.WithBoxPadding(c.BoxPadding),
		stage.WithSolventModel(c.SolventModel),
		stage.WithSolventGroup(c.SolventGroup),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("config")
		if name == "" {
			return fld.Name
		}
		return name
	})

	return v
}

// ValidationError lists every key that failed validation.
type ValidationError struct {
	Fields []FieldError
}

// FieldError is one key that failed a rule.
type FieldError struct {
	Key   string
	Rule  string
	Value any
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Key+": "+describeRule(f.Rule)+" (got "+strconv.Quote(toString(f.Value))+")")
	}

	return "invalid configuration: " + strings.Join(msgs, "; ")
}

func formatValidationErrors(errs validator.ValidationErrors) error {
	out := &ValidationError{}
	for _, fe := range errs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out.Fields = append(out.Fields, FieldError{Key: fe.Field(), Rule: rule, Value: fe.Value()})
	}

	return out
}

func describeRule(rule string) string {
	tag, param, _ := strings.Cut(rule, "=")
	switch tag {
	case "required":
		return "must be set"
	case "url":
		return "must be a URL"
	case "gte":
		return "must be at least " + param
	case "gt":
		return "must be greater than " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		return "failed " + rule
	}
}

func toString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case time.Duration:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return reflect.ValueOf(v).String()
	}
}

// file is the HCL shape of a configuration file. Absent attributes leave the lower layers alone.
type file struct {
	WorkDir       *string     `hcl:"workdir,optional"`
	TemplateDir   *string     `hcl:"template_dir,optional"`
	Binary        *string     `hcl:"gmx,optional"`
	StructureURL  *string     `hcl:"alphafold_url,optional"`
	Workers       *int        `hcl:"workers,optional"`
	MaxWorkers    *int        `hcl:"max_workers,optional"`
	Concurrency   *int        `hcl:"concurrency,optional"`
	LookupRetries *int        `hcl:"lookup_retries,optional"`
	LookupBackoff *string     `hcl:"lookup_backoff,optional"`
	SolventGroup  *string     `hcl:"solvent_group,optional"`
	BoxPadding    *float64    `hcl:"box_padding,optional"`
	ForceField    *string     `hcl:"force_field,optional"`
	WaterModel    *string     `hcl:"water_model,optional"`
	SolventModel  *string     `hcl:"solvent_model,optional"`
	LogLevel      *string     `hcl:"log_level,optional"`
	LogFormat     *string     `hcl:"log_format,optional"`
	DOTFile       *string     `hcl:"dot_file,optional"`
	Stages        []fileStage `hcl:"stage,block"`
}

type fileStage struct {
	Name       string  `hcl:"name,label"`
	Template   *string `hcl:"template,optional"`
	Steps      *int    `hcl:"steps,optional"`
	Restraints *bool   `hcl:"restraints,optional"`
}

func (c *Config) applyFile(path string) error {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return errors.Errorf("failed to parse config file %s: %s", path, diags.Error())
	}

	var decoded file
	diags = gohcl.DecodeBody(f.Body, nil, &decoded)
	if diags.HasErrors() {
		return errors.Errorf("failed to decode config file %s: %s", path, diags.Error())
	}

	set(&c.WorkDir, decoded.WorkDir)
	set(&c.TemplateDir, decoded.TemplateDir)
	set(&c.Binary, decoded.Binary)
	set(&c.StructureURL, decoded.StructureURL)
	set(&c.Workers, decoded.Workers)
	set(&c.MaxWorkers, decoded.MaxWorkers)
	set(&c.Concurrency, decoded.Concurrency)
	set(&c.LookupRetries, decoded.LookupRetries)
	set(&c.SolventGroup, decoded.SolventGroup)
	set(&c.BoxPadding, decoded.BoxPadding)
	set(&c.ForceField, decoded.ForceField)
	set(&c.WaterModel, decoded.WaterModel)
	set(&c.SolventModel, decoded.SolventModel)
	set(&c.LogLevel, decoded.LogLevel)
	set(&c.LogFormat, decoded.LogFormat)
	set(&c.DOTFile, decoded.DOTFile)

	if decoded.LookupBackoff != nil {
		d, err := time.ParseDuration(*decoded.LookupBackoff)
		if err != nil {
			return errors.Wrapf(err, "config file %s: invalid lookup_backoff", path)
		}
		c.LookupBackoff = d
	}

	seen := make(map[string]bool)
	for _, s := range decoded.Stages {
		if seen[s.Name] {
			return errors.Errorf("config file %s: stage %s is defined twice", path, s.Name)
		}
		seen[s.Name] = true

		override := c.Stages[s.Name]
		if s.Template != nil {
			override.Template = *s.Template
		}
		if s.Steps != nil {
			override.Steps = *s.Steps
		}
		if s.Restraints != nil {
			override.Restraints = s.Restraints
		}
		c.Stages[s.Name] = override
	}

	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Package cli parses the command line of mdflow.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/tfharrelson/md-flow/internal/config"
	"github.com/tfharrelson/md-flow/pkg/mdflow/flow"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Options is what a run of mdflow is asked to do.
type Options struct {
	Config *config.Config
	// Flow is the registered flow to run.
	Flow string
	// ID identifies the protein in the structure service.
	ID string
	// Steps is the production step count. 0 keeps the configured one.
	Steps int
	// ListFlows asks for the registered flow names instead of a run.
	ListFlows bool
}

// Parse processes command-line arguments. It returns the run options, a boolean indicating if
// the program should exit cleanly, or an ExitError. opts are applied when loading the
// configuration, before the flags that change it.
func Parse(args []string, output io.Writer, opts ...config.Option) (*Options, bool, error) {
	flagSet := flag.NewFlagSet("mdflow", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprintf(output, `
mdflow - Prepares a protein and runs it through molecular dynamics.

Usage:
  mdflow [options] [PROTEIN_ID]

Arguments:
  PROTEIN_ID
    Identifier of the protein in the structure service, e.g. P00250.

Flows:
  %s

Every option can also be set in the configuration file or as %s<KEY> in the environment.

Options:
`, strings.Join(flow.Names(), ", "), config.EnvPrefix)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to an HCL configuration file.")
	envFileFlag := flagSet.String("env-file", "", "Path to a dotenv file. Defaults to "+config.DefaultEnvFile+" when present.")
	flowFlag := flagSet.String("flow", flow.NameNPT, "Flow to run.")
	idFlag := flagSet.String("id", "", "Identifier of the protein (alternative to the argument).")
	stepsFlag := flagSet.Int("steps", 0, "Number of production steps. 0 keeps the configured production steps.")
	listFlag := flagSet.Bool("list", false, "List the registered flows and exit.")

	// Flags below override the configuration when given.
	workDirFlag := flagSet.String("workdir", "", "Directory the stages write into.")
	templateDirFlag := flagSet.String("template-dir", "", "Directory of the stage parameter templates. The bundled ones are used when empty.")
	binaryFlag := flagSet.String("gmx", "", "Simulation engine executable.")
	structureURLFlag := flagSet.String("alphafold-url", "", "Base URL of the structure service.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent workers. 0 sizes the pool from the flow.")
	maxWorkersFlag := flagSet.Int("max-workers", 0, "Upper bound of the pool sized from the flow. 0 means one per CPU.")
	concurrencyFlag := flagSet.Int("concurrency", 0, "Nodes each worker may run at the same time.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	dotFlag := flagSet.String("dot", "", "Write the executed flow as a DOT graph to this file.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if *listFlag {
		for _, name := range flow.Names() {
			fmt.Fprintln(output, name)
		}
		return nil, true, nil
	}

	id := *idFlag
	if id == "" && flagSet.NArg() > 0 {
		id = flagSet.Arg(0)
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: "expected a single protein id, got " + strings.Join(flagSet.Args(), " ")}
	}

	if id == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	if _, err := flow.Lookup(*flowFlag); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if *stepsFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid steps: must not be negative, got %d", *stepsFlag)}
	}

	if *envFileFlag != "" {
		opts = append(opts, config.WithEnvFile(*envFileFlag))
	}
	if *configFlag != "" {
		opts = append(opts, config.WithFile(*configFlag))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workdir":
			cfg.WorkDir = *workDirFlag
		case "template-dir":
			cfg.TemplateDir = *templateDirFlag
		case "gmx":
			cfg.Binary = *binaryFlag
		case "alphafold-url":
			cfg.StructureURL = *structureURLFlag
		case "workers":
			cfg.Workers = *workersFlag
		case "max-workers":
			cfg.MaxWorkers = *maxWorkersFlag
		case "concurrency":
			cfg.Concurrency = *concurrencyFlag
		case "log-format":
			cfg.LogFormat = strings.ToLower(*logFormatFlag)
		case "log-level":
			cfg.LogLevel = strings.ToLower(*logLevelFlag)
		case "dot":
			cfg.DOTFile = *dotFlag
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return &Options{
		Config: cfg,
		Flow:   *flowFlag,
		ID:     id,
		Steps:  *stepsFlag,
	}, false, nil
}

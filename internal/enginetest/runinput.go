package enginetest

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// RunInput is the content of a run input written by the fake engine: the files it was compiled
// from and its step count.
type RunInput map[string]string

// Keys of a RunInput.
const (
	KeySettings      = "settings"
	KeyConfiguration = "configuration"
	KeyTopology      = "topology"
	KeyRestraint     = "restraint"
	KeySteps         = "nsteps"
)

// ReadRunInput reads a run input written by the fake engine.
func ReadRunInput(path string) (RunInput, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	ri := make(RunInput)
	for _, line := range strings.Split(string(content), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		ri[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if ri[KeyConfiguration] == "" {
		return nil, errors.Errorf("%s is not a run input", path)
	}

	return ri, nil
}

func (ri RunInput) keys() []string {
	keys := make([]string, 0, len(ri))
	for key := range ri {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}

func (ri RunInput) write(path string) error {
	var b strings.Builder
	for _, key := range ri.keys() {
		fmt.Fprintf(&b, "%s = %s\n", key, ri[key])
	}

	err := os.WriteFile(path, []byte(b.String()), 0o644)
	if err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}

	return nil
}

// dump formats ri the way gmx dump lays out parameters.
func (ri RunInput) dump() string {
	var b strings.Builder
	for _, key := range ri.keys() {
		fmt.Fprintf(&b, "   %-30s = %s\n", key, ri[key])
	}

	return b.String()
}

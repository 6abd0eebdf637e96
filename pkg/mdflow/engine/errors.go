package engine

import (
	"fmt"
	"strings"
)

// ExternalToolError reports a tool that could not be started, exited with a non-zero status, or
// did not write one of its declared outputs.
type ExternalToolError struct {
	Tool string
	// Args is the full command line of the tool, without the engine binary.
	Args []string
	// ExitCode is -1 when the tool did not run to completion.
	ExitCode int
	Stderr   string
	// Missing lists the declared outputs absent after the tool exited, as "flag path".
	Missing []string
	Err     error
}

func (e *ExternalToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "external tool %s failed", e.Tool)
	switch {
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	case len(e.Missing) > 0:
		fmt.Fprintf(&b, ": missing declared outputs %s", strings.Join(e.Missing, ", "))
	default:
		fmt.Fprintf(&b, ": exit code %d", e.ExitCode)
	}

	if stderr := lastLine(e.Stderr); stderr != "" {
		fmt.Fprintf(&b, " (%s)", stderr)
	}

	return b.String()
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Package gro reads the parts of GROMACS structure files the pipeline checks.
//
// A structure file is a title line, an atom count line, one line per atom and a final line with
// the box vectors. The first column of an atom line is the residue number fused with the residue
// name, e.g. "  301NA".
package gro

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Residue markers written by the solvation and ion placement tools.
const (
	IonMarker     = "NA"
	SolventMarker = "SOL"
)

// TailLines is how far from the end of a file solvent is looked for.
const TailLines = 200

// MinBox is the smallest box edge of a correctly padded system, in nm.
const MinBox = 6.0

// Box holds the box edge lengths.
type Box [3]float64

// tail returns the last n lines of the file at path.
func tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	defer f.Close()

	lines := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(lines) == n {
			lines = lines[1:]
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	return lines, nil
}

// ParseBox parses a box line. Triclinic boxes carry six more numbers, which are ignored.
func ParseBox(line string) (Box, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Box{}, errors.Errorf("box line %q has %d fields", line, len(fields))
	}

	var box Box
	for i := range box {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return Box{}, errors.Wrapf(err, "invalid box edge %q", fields[i])
		}
		box[i] = v
	}

	return box, nil
}

// ReadBox returns the box of the structure file at path.
func ReadBox(path string) (Box, error) {
	lines, err := tail(path, 1)
	if err != nil {
		return Box{}, err
	}
	if len(lines) == 0 {
		return Box{}, errors.Errorf("%s is empty", path)
	}

	return ParseBox(lines[0])
}

// CheckSolvated verifies that the structure file at path is solvated and neutralized: its last
// atom is an ion, solvent appears within the last TailLines lines, and every box edge is larger
// than minBox.
func CheckSolvated(path string, minBox float64) error {
	lines, err := tail(path, TailLines)
	if err != nil {
		return err
	}
	if len(lines) < 2 {
		return errors.Errorf("%s has %d lines", path, len(lines))
	}

	lastAtom := strings.Fields(lines[len(lines)-2])
	if len(lastAtom) == 0 || !strings.Contains(lastAtom[0], IonMarker) {
		return errors.Errorf("%s: last atom %q is not an ion", path, lines[len(lines)-2])
	}

	solvated := false
	for _, line := range lines {
		if strings.Contains(line, SolventMarker) {
			solvated = true
			break
		}
	}
	if !solvated {
		return errors.Errorf("%s: no solvent in the last %d lines", path, TailLines)
	}

	box, err := ParseBox(lines[len(lines)-1])
	if err != nil {
		return errors.Wrapf(err, "%s", path)
	}
	for i, edge := range box {
		if edge <= minBox {
			return errors.Errorf("%s: box edge %d is %.3f, want more than %.3f", path, i, edge, minBox)
		}
	}

	return nil
}

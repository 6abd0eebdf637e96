package enginetest

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/pkg/mdflow/gro"
)

type structureFile struct {
	title string
	atoms []string
	box   gro.Box
}

func readStructure(path string) (*structureFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", path)
	}

	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) < 3 {
		return nil, errors.Errorf("%s is not a structure file", path)
	}

	box, err := gro.ParseBox(lines[len(lines)-1])
	if err != nil {
		return nil, err
	}

	return &structureFile{
		title: lines[0],
		atoms: append([]string(nil), lines[2:len(lines)-1]...),
		box:   box,
	}, nil
}

func (s *structureFile) addAtom(resNum int, resName, atomName string, x, y, z float64) {
	s.atoms = append(s.atoms, fmt.Sprintf("%5d%-5s%5s%5d%8.3f%8.3f%8.3f",
		resNum%100000, resName, atomName, (len(s.atoms)+1)%100000, x, y, z))
}

func (s *structureFile) write(path string) error {
	var b strings.Builder
	b.WriteString(s.title + "\n")
	fmt.Fprintf(&b, "%5d\n", len(s.atoms))
	for _, atom := range s.atoms {
		b.WriteString(atom + "\n")
	}
	fmt.Fprintf(&b, "%10.5f%10.5f%10.5f\n", s.box[0], s.box[1], s.box[2])

	err := os.WriteFile(path, []byte(b.String()), 0o644)
	if err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}

	return nil
}

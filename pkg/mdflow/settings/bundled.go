package settings

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

//go:embed templates/*.mdp
var bundled embed.FS

// Bundled returns the templates shipped with the module.
func Bundled() fs.FS {
	sub, err := fs.Sub(bundled, "templates")
	if err != nil {
		panic(err)
	}

	return sub
}

// InstallBundled writes the bundled templates into dir, creating it if needed. Existing files
// are overwritten.
func InstallBundled(dir string) error {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return errors.Wrapf(err, "unable to create template directory %s", dir)
	}

	for _, file := range templateFiles {
		content, err := fs.ReadFile(Bundled(), file)
		if err != nil {
			return errors.Wrapf(err, "unable to read bundled template %s", file)
		}

		err = os.WriteFile(filepath.Join(dir, file), content, 0o644)
		if err != nil {
			return errors.Wrapf(err, "unable to install template %s", file)
		}
	}

	return nil
}

package eval

import (
	"os"
	"path/filepath"
)

// hasProjectFile reports whether dir is a Pkl project.
func hasProjectFile(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "PklProject"))
	return err == nil
}

package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigFileName is the optional configuration file at the project root.
const ConfigFileName = "tally.yaml"

// FindRoot looks upwards for a tally root indicator: a tally.yaml file, a
// .tally directory or a .git directory. It returns the absolute path of the
// first directory holding one.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, ConfigFileName) || hasFile(dir, ".tally") || hasFile(dir, ".git") {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("root not found")
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

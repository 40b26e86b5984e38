package platform

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IsDevRun checks if the current process is running via `go run` or `go test`.
// It relies on the fact that these commands build binaries in temporary directories.
func IsDevRun() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}

	tempDir := os.TempDir()
	if strings.HasPrefix(strings.ToLower(exe), strings.ToLower(tempDir)) {
		return true
	}

	if strings.HasSuffix(exe, ".test") || strings.HasSuffix(exe, ".test.exe") {
		return true
	}

	return false
}

// IsNonInteractive reports whether no browser is expected to drive this
// process: CI, an explicit TALLY_NON_INTERACTIVE, or a dev build.
func IsNonInteractive() bool {
	for _, key := range []string{"TALLY_NON_INTERACTIVE", "CI"} {
		if v, ok := os.LookupEnv(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				if b {
					return true
				}
				continue
			}
			if v != "" {
				return true
			}
		}
	}
	return IsDevRun()
}

// ResolveDataPath determines the actual data directory based on safety rules.
// When forceTemp is set, paths outside the system temp directory are
// re-rooted under it so dev runs never touch real data.
func ResolveDataPath(userPath string, forceTemp bool) string {
	if !forceTemp {
		if userPath == "" {
			return "."
		}
		return userPath
	}

	// Paths already inside the temp directory (t.TempDir) are trusted.
	cleanUserPath := filepath.Clean(userPath)
	tempRoot := os.TempDir()
	rel, err := filepath.Rel(tempRoot, cleanUserPath)
	if err == nil && !strings.HasPrefix(rel, "..") && filepath.IsAbs(cleanUserPath) {
		return cleanUserPath
	}

	baseTemp := filepath.Join(tempRoot, "tally-dev")
	subName := "default"
	if userPath != "" && userPath != "." && userPath != "./" {
		subName = filepath.Base(cleanUserPath)
		if subName == "." || subName == ".." || subName == string(os.PathSeparator) {
			subName = "default"
		}
	}

	return filepath.Join(baseTemp, subName)
}

package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/PaesslerAG/jsonpath"

	"github.com/aretw0/tally/pkg/adapters/fs"
	"github.com/aretw0/tally/pkg/core"
	"github.com/aretw0/tally/pkg/normalize"
)

// Init prepares the data directory at path and returns the initialized
// repository. An injected repository is returned as is.
func Init(path string, opts ...Option) (core.Repository, error) {
	o := parseOptions(opts)

	if o.repository != nil {
		return o.repository, nil
	}

	repo := initFS(path, o)
	if err := repo.Initialize(context.Background()); err != nil {
		return nil, err
	}
	return repo, nil
}

// initFS resolves the data directory and builds the filesystem adapter.
func initFS(path string, o *options) *fs.Repository {
	return fs.NewRepository(fsConfig(path, o))
}

// fsConfig resolves the data directory and the file names. It does not touch
// the disk.
func fsConfig(path string, o *options) fs.Config {
	tempDir, _ := o.config["temp_dir"].(bool)
	fileName, _ := o.config["file_name"].(string)
	backupName, _ := o.config["backup_name"].(string)
	importBackupName, _ := o.config["import_backup_name"].(string)
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))

	devSafety := true
	if val, ok := o.config["dev_safety"].(bool); ok {
		devSafety = val
	}

	useTemp := tempDir || (IsDevRun() && devSafety)
	resolvedPath := ResolveDataPath(path, useTemp)

	if o.logger != nil && useTemp && resolvedPath != path {
		o.logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", path, "resolved_path", resolvedPath)
	} else if o.logger != nil && IsDevRun() && !devSafety {
		o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolvedPath)
	}

	return fs.Config{
		Dir:              resolvedPath,
		FileName:         fileName,
		BackupName:       backupName,
		ImportBackupName: importBackupName,
		Logger:           o.logger,
		ErrorHandler:     errorHandler,
	}
}

// Query evaluates a JSONPath expression against the document, e.g.
// "$.accounts[?(@.status == 'Active')].name".
func Query(doc core.Document, path string) (any, error) {
	value, err := normalize.Generic(doc)
	if err != nil {
		return nil, err
	}
	if path == "" || path == "$" {
		return value, nil
	}
	result, err := jsonpath.Get(path, value)
	if err != nil {
		return nil, fmt.Errorf("%w: query %q: %v", core.ErrValidation, path, err)
	}
	return result, nil
}

// Export renders the document in the given format: json, yaml or csv.
func Export(doc core.Document, format string) ([]byte, error) {
	ext := "." + strings.TrimPrefix(strings.ToLower(format), ".")
	s, ok := fs.DefaultSerializers()[ext]
	if !ok {
		return nil, fmt.Errorf("%w: unknown export format %q", core.ErrValidation, format)
	}
	return s.Serialize(doc)
}

// Verification reports the state of the primary and backup files.
type Verification struct {
	Path          string
	BackupPath    string
	PrimaryDigest string
	BackupDigest  string
	PrimaryErr    error
	BackupErr     error
}

// Healthy reports whether the primary file is readable JSON.
func (v Verification) Healthy() bool {
	return v.PrimaryErr == nil
}

// InSync reports whether primary and backup hold the same document.
func (v Verification) InSync() bool {
	return v.PrimaryErr == nil && v.BackupErr == nil && v.PrimaryDigest == v.BackupDigest
}

// Verify inspects the data directory without modifying it.
func Verify(path string, opts ...Option) (Verification, error) {
	o := parseOptions(opts)
	if o.repository != nil {
		return Verification{}, errors.New("verify requires the filesystem adapter")
	}

	cfg := fsConfig(path, o)
	v := Verification{Path: cfg.PrimaryPath(), BackupPath: cfg.BackupPath()}
	v.PrimaryDigest, v.PrimaryErr = digestFile(v.Path)
	v.BackupDigest, v.BackupErr = digestFile(v.BackupPath)

	if errors.Is(v.PrimaryErr, os.ErrNotExist) && errors.Is(v.BackupErr, os.ErrNotExist) {
		return v, fmt.Errorf("no data found in %s", path)
	}
	return v, nil
}

func digestFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	d, err := fs.Digest(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", core.ErrCorruptDocument, path, err)
	}
	return d, nil
}

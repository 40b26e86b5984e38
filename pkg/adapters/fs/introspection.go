package fs

import (
	"time"

	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path             string     `json:"path"`
	BackupPath       string     `json:"backup_path"`
	ImportBackupPath string     `json:"import_backup_path"`
	LastWrite        *time.Time `json:"last_write,omitempty"`
	LastDigest       string     `json:"last_digest,omitempty"`
	Recoveries       int        `json:"recoveries"`
	WatcherActive    bool       `json:"watcher_active"`
	Closed           bool       `json:"closed"`
	WritesApplied    int        `json:"writes_applied"`
	WritesFailed     int        `json:"writes_failed"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	applied, failed := r.queue.stats()

	r.mu.RLock()
	defer r.mu.RUnlock()

	return RepositoryState{
		Path:             r.Path,
		BackupPath:       r.BackupPath,
		ImportBackupPath: r.ImportBackupPath,
		LastWrite:        r.lastWrite,
		LastDigest:       r.lastDigest,
		Recoveries:       r.recoveries,
		WatcherActive:    r.watcherActive,
		Closed:           r.queue.isClosed(),
		WritesApplied:    applied,
		WritesFailed:     failed,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "repository"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)

func (r *Repository) setWatcherActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watcherActive = active
}

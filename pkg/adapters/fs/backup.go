package fs

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/tally/pkg/core"
)

// backupOnStart copies the data file to the startup backup. A primary that
// does not parse is never copied: it would overwrite the last good backup.
func (r *Repository) backupOnStart(ctx context.Context) error {
	return r.queue.Enqueue(ctx, func() error {
		data, err := os.ReadFile(r.Path)
		if err != nil {
			return fmt.Errorf("read %s: %w", r.Path, err)
		}
		if _, err := r.decode(r.Path, data); err != nil {
			return fmt.Errorf("skipping backup of unreadable data file: %w", err)
		}
		if err := writeFileAtomic(r.BackupPath, data, filePerm); err != nil {
			return err
		}
		r.logger.Debug("startup backup written", "path", r.BackupPath, "bytes", len(data))
		return nil
	})
}

// recover is called after the primary failed to load. It reads the backup
// and, when that parses, promotes its bytes to primary. A read can
// therefore rewrite the data file.
func (r *Repository) recover(ctx context.Context, primaryErr error, inQueue bool) (core.Document, error) {
	data, err := os.ReadFile(r.BackupPath)
	if err != nil {
		return core.Document{}, r.unrecoverable(primaryErr, fmt.Errorf("read %s: %v", r.BackupPath, err))
	}
	doc, err := r.decode(r.BackupPath, data)
	if err != nil {
		return core.Document{}, r.unrecoverable(primaryErr, err)
	}

	promote := func() error {
		// Another job may have repaired the primary in the meantime.
		if current, err := os.ReadFile(r.Path); err == nil {
			if _, err := r.decode(r.Path, current); err == nil {
				return nil
			}
		}
		if err := writeFileAtomic(r.Path, data, filePerm); err != nil {
			return fmt.Errorf("%w: restore %s from %s: %v", core.ErrWrite, r.Path, r.BackupPath, err)
		}
		r.recordWrite(data)
		r.mu.Lock()
		r.recoveries++
		r.mu.Unlock()
		r.logger.Warn("data file restored from backup", "path", r.Path, "backup", r.BackupPath)
		return nil
	}

	if inQueue {
		err = promote()
	} else {
		err = r.queue.Enqueue(ctx, promote)
	}
	if err != nil {
		// The backup content is still good; serve it and keep the error in the log.
		r.logger.Error("failed to promote backup", "error", err)
	}
	return doc, nil
}

func (r *Repository) unrecoverable(primaryErr, backupErr error) error {
	return fmt.Errorf("%w: primary: %v; backup: %v", core.ErrUnrecoverableStore, primaryErr, backupErr)
}

// backupBeforeImport copies the current data file to the import-safety
// backup. Must run inside the queue, right before the import is written.
func (r *Repository) backupBeforeImport() error {
	data, err := copyFileAtomic(r.Path, r.ImportBackupPath, filePerm)
	if errors.Is(err, os.ErrNotExist) {
		r.logger.Info("no data file to back up before import", "path", r.Path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: import backup %s: %v", core.ErrWrite, r.ImportBackupPath, err)
	}
	r.logger.Info("import backup written", "path", r.ImportBackupPath, "bytes", len(data))
	return nil
}

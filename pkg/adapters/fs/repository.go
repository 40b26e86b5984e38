package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/tally/pkg/core"
	"github.com/aretw0/tally/pkg/normalize"
)

// Default file names inside the data directory.
const (
	DefaultFileName         = "data.json"
	DefaultBackupName       = "data.backup.json"
	DefaultImportBackupName = "data.import-backup.json"
)

const filePerm = 0o644

// Repository implements core.Repository on top of one JSON file.
// Every mutation goes through a single write queue; reads go straight to
// disk and see the latest fully renamed file.
type Repository struct {
	Path             string
	BackupPath       string
	ImportBackupPath string

	config     Config
	logger     *slog.Logger
	queue      *writeQueue
	serializer *JSONSerializer

	mu            sync.RWMutex
	lastDigest    string
	lastWrite     *time.Time
	recoveries    int
	watcherActive bool
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Dir              string
	FileName         string // e.g. "data.json"
	BackupName       string
	ImportBackupName string
	Logger           *slog.Logger
	ErrorHandler     func(error) // receives watcher errors
}

func (c Config) withDefaults() Config {
	if c.FileName == "" {
		c.FileName = DefaultFileName
	}
	if c.BackupName == "" {
		c.BackupName = DefaultBackupName
	}
	if c.ImportBackupName == "" {
		c.ImportBackupName = DefaultImportBackupName
	}
	return c
}

// PrimaryPath is the data file the repository would use.
func (c Config) PrimaryPath() string {
	c = c.withDefaults()
	return filepath.Join(c.Dir, c.FileName)
}

// BackupPath is the startup backup the repository would use.
func (c Config) BackupPath() string {
	c = c.withDefaults()
	return filepath.Join(c.Dir, c.BackupName)
}

// NewRepository creates a new filesystem-backed repository. No I/O happens
// until Initialize.
func NewRepository(config Config) *Repository {
	config = config.withDefaults()
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	config.Logger = logger

	return &Repository{
		Path:             config.PrimaryPath(),
		BackupPath:       config.BackupPath(),
		ImportBackupPath: filepath.Join(config.Dir, config.ImportBackupName),
		config:           config,
		logger:           logger,
		queue:            newWriteQueue(logger),
		serializer:       NewJSONSerializer(),
	}
}

// Initialize creates the data directory and the document when absent, then
// takes the startup backup. A failed backup is logged, not returned.
func (r *Repository) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(r.config.Dir, 0o755); err != nil {
		return fmt.Errorf("%w: create data directory %s: %v", core.ErrWrite, r.config.Dir, err)
	}

	err := r.queue.Enqueue(ctx, func() error {
		if _, err := os.Stat(r.Path); err == nil {
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: stat %s: %v", core.ErrWrite, r.Path, err)
		}
		r.logger.Info("creating data file", "path", r.Path)
		return r.persist(core.NewDocument())
	})
	if err != nil {
		return err
	}

	if err := r.backupOnStart(ctx); err != nil {
		r.logger.Warn("startup backup failed", "path", r.BackupPath, "error", err)
	}
	return nil
}

// ReadDocument parses the data file. When it is missing or corrupt the
// backup is promoted to primary and returned instead.
func (r *Repository) ReadDocument(ctx context.Context) (core.Document, error) {
	return r.load(ctx, false)
}

// load reads the primary file, recovering from the backup on failure.
// inQueue must be true when called from a write job, so the promotion runs
// inline instead of deadlocking on the queue.
func (r *Repository) load(ctx context.Context, inQueue bool) (core.Document, error) {
	doc, err := r.readFile(r.Path)
	if err == nil {
		return doc, nil
	}

	r.logger.Warn("data file unreadable, recovering from backup", "path", r.Path, "error", err)
	return r.recover(ctx, err, inQueue)
}

// readFile reads and normalizes one document file. Any failure is reported
// as core.ErrCorruptDocument.
func (r *Repository) readFile(path string) (core.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Document{}, fmt.Errorf("%w: read %s: %v", core.ErrCorruptDocument, path, err)
	}
	return r.decode(path, data)
}

func (r *Repository) decode(path string, data []byte) (core.Document, error) {
	payload, err := r.serializer.Parse(bytes.NewReader(data))
	if err != nil {
		return core.Document{}, fmt.Errorf("%w: parse %s: %v", core.ErrCorruptDocument, path, err)
	}
	if _, ok := payload.(map[string]any); !ok {
		return core.Document{}, fmt.Errorf("%w: parse %s: top level is %T, not an object", core.ErrCorruptDocument, path, payload)
	}
	return normalize.Document(payload), nil
}

// WriteDocument replaces the whole document.
func (r *Repository) WriteDocument(ctx context.Context, doc core.Document) error {
	return r.queue.Enqueue(ctx, func() error {
		return r.persist(doc)
	})
}

// ReadStore returns one top-level store of the current document.
func (r *Repository) ReadStore(ctx context.Context, name core.StoreName) (any, error) {
	if _, _, err := core.LookupStore(string(name)); err != nil {
		return nil, err
	}
	doc, err := r.ReadDocument(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Get(name), nil
}

// WriteStore replaces one store, or merges value under key for keyed stores.
// The value is normalized before it is queued; the read-modify-write happens
// inside the queued job so concurrent saves cannot drop each other.
func (r *Repository) WriteStore(ctx context.Context, name core.StoreName, value any, key string) error {
	_, spec, err := core.LookupStore(string(name))
	if err != nil {
		return err
	}
	apply, err := prepareStore(name, spec, value, key)
	if err != nil {
		return err
	}

	return r.queue.Enqueue(ctx, func() error {
		doc, err := r.load(ctx, true)
		if err != nil {
			return err
		}
		apply(&doc)
		return r.persist(doc)
	})
}

// Import replaces the whole document after copying the current file to the
// import-safety backup.
func (r *Repository) Import(ctx context.Context, doc core.Document) error {
	return r.queue.Enqueue(ctx, func() error {
		if err := r.backupBeforeImport(); err != nil {
			return err
		}
		r.logger.Info("importing document", "path", r.Path, "accounts", len(doc.Accounts))
		return r.persist(doc)
	})
}

// Close stops accepting writes and waits for the write in flight.
func (r *Repository) Close(ctx context.Context) error {
	return r.queue.Close(ctx)
}

// persist serializes and atomically writes doc. Must run inside the queue.
func (r *Repository) persist(doc core.Document) error {
	data, err := r.serializer.Serialize(doc)
	if err != nil {
		return fmt.Errorf("%w: serialize document: %v", core.ErrWrite, err)
	}
	if err := writeFileAtomic(r.Path, data, filePerm); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrWrite, r.Path, err)
	}
	r.recordWrite(data)
	return nil
}

func (r *Repository) recordWrite(data []byte) {
	digest, err := Digest(data)
	if err != nil {
		r.logger.Debug("digest failed", "error", err)
	}
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastDigest = digest
	r.lastWrite = &now
}

func (r *Repository) isOwnWrite(data []byte) bool {
	digest, err := Digest(data)
	if err != nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return digest == r.lastDigest
}

// sequenceFields and mappingFields dispatch generic stores to their
// document field. Accounts have their own typed path.
var sequenceFields = map[core.StoreName]func(*core.Document) *[]any{
	core.StoreGoals: func(d *core.Document) *[]any { return &d.Goals },
}

var mappingFields = map[core.StoreName]func(*core.Document) *core.Mapping{
	core.StoreProfile:  func(d *core.Document) *core.Mapping { return &d.Profile },
	core.StoreTimeline: func(d *core.Document) *core.Mapping { return &d.Timeline },
	core.StoreSettings: func(d *core.Document) *core.Mapping { return &d.Settings },
}

// prepareStore validates and normalizes value for the given store and
// returns the mutation to apply to the current document.
func prepareStore(name core.StoreName, spec core.StoreSpec, value any, key string) (func(*core.Document), error) {
	if name == core.StoreAccounts {
		accounts, err := normalize.Accounts(value)
		if err != nil {
			return nil, err
		}
		return func(d *core.Document) { d.Accounts = accounts }, nil
	}

	generic, err := normalize.Generic(value)
	if err != nil {
		return nil, err
	}

	if spec.Kind == core.KindSequence {
		list, ok := generic.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a list, got %T", core.ErrValidation, name, generic)
		}
		field := sequenceFields[name]
		return func(d *core.Document) { *field(d) = list }, nil
	}

	field := mappingFields[name]
	if spec.Keyed && key != "" {
		return func(d *core.Document) {
			m := field(d)
			if *m == nil {
				*m = core.Mapping{}
			}
			(*m)[key] = generic
		}, nil
	}

	obj, ok := generic.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an object, got %T", core.ErrValidation, name, generic)
	}
	return func(d *core.Document) { *field(d) = core.Mapping(obj) }, nil
}

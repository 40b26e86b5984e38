package core

import "context"

// Repository defines the contract for the document store.
// Adhering to this interface allows the core to be independent of the
// underlying storage mechanism.
type Repository interface {
	// Initialize creates the document with empty stores if it does not
	// exist yet and takes the startup backup. It is idempotent.
	Initialize(ctx context.Context) error

	// ReadDocument returns the latest fully committed document, normalized.
	ReadDocument(ctx context.Context) (Document, error)

	// WriteDocument replaces the whole document.
	WriteDocument(ctx context.Context, doc Document) error

	// ReadStore returns one top-level store.
	ReadStore(ctx context.Context, name StoreName) (any, error)

	// WriteStore replaces a store, or merges value under key for keyed stores.
	WriteStore(ctx context.Context, name StoreName, value any, key string) error

	// Import replaces the whole document after taking an import-safety backup.
	Import(ctx context.Context, doc Document) error
}

// Closer is implemented by repositories that own background resources.
// Close stops accepting writes and waits for the write in flight.
type Closer interface {
	Close(ctx context.Context) error
}

// Watchable defines an interface for repositories that can report changes
// made to their backing files by other programs.
type Watchable interface {
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}

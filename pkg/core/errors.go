package core

import "errors"

// Common errors.
var (
	// ErrCorruptDocument means the primary file exists (or should) but cannot be parsed.
	ErrCorruptDocument = errors.New("corrupt document")
	// ErrUnrecoverableStore means neither the primary file nor its backup is usable.
	ErrUnrecoverableStore = errors.New("unrecoverable store")
	// ErrUnknownStore is returned for store names outside the recognized set.
	ErrUnknownStore = errors.New("unknown store")
	// ErrValidation means a payload could not be coerced into a usable shape.
	ErrValidation = errors.New("validation failure")
	// ErrWrite wraps I/O failures while persisting.
	ErrWrite = errors.New("write failure")
	// ErrClosed is returned once the repository stopped accepting writes.
	ErrClosed = errors.New("repository is closed")
)

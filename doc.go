// Package tally is the Composition Root for the tally daemon.
//
// tally keeps the data of a single-user personal finance web app in one JSON
// document on local disk and serves it to the browser over a loopback HTTP
// API. It connects the core store rules (Domain Layer) with the filesystem
// adapter (Persistence Layer).
//
// Features:
//
//   - **Crash-Safe Writes**: every mutation goes through one write queue and
//     lands with an atomic rename.
//   - **Backups**: a startup backup and an import-safety backup; a corrupt
//     primary is restored from the backup on read.
//   - **Normalization**: every value is sanitized and clamped before it is
//     written and after it is read.
//   - **Session Lifecycle**: the process exits on its own once the browser
//     stops sending heartbeats.
//   - **Typed Access**: generic wrappers (`OpenTypedService[T]`) for single stores.
//
// Usage:
//
//	app, err := tally.Open("./data",
//		tally.WithLogger(logger),
//		tally.WithHeartbeatTimeout(15*time.Second),
//	)
//
//	// Save a store
//	err = app.Service.SaveStore(ctx, "settings", map[string]any{"theme": "dark"}, "")
package tally

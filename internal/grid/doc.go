// Package grid implements the schema-governed data grid: a generic
// browse/edit/insert/delete view over backend tables guarded by a
// default-deny, per-column security schema.
//
// # Architecture
//
// The package is organised leaf-first:
//
//   - schema.go: TableSecuritySchema and the immutable Registry
//   - cache.go: RowCache, the mirror of the selected table's rows
//   - session.go: the Idle/Editing/Committing cell edit state machine
//   - guard.go: ActionGuard, the single-flight flag for row operations
//   - controller.go: Controller, which coordinates all of the above
//   - coerce.go: conversion of raw input text into row values
//
// The Controller talks to the backend only through store.Client and to the
// render layer only through Subscribe and its exported operations.
//
// # Security Model
//
// A table missing from the Registry is never listed, loaded or written.
// For a registered table the columns that may be written are
// Writable minus Protected. Protected columns are stripped or refused at the
// Controller boundary even when the caller bypasses the editing UI, and the
// refusal is logged and counted.
//
// # Reconciliation
//
// The cache changes only after the store confirms a write. A failed write
// leaves it untouched. Creates, form updates and deletes reload the table
// so server-assigned fields are shown.
//
// # Concurrency
//
// One row-level operation runs at a time per Controller. A second one fails
// immediately with ErrBusy; nothing is queued. Callers should create one
// Controller per open table session and never share package-level state.
package grid

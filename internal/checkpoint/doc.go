// Package checkpoint serializes a roster and project state to a named
// location and reconstructs both from it.
//
// # Layout
//
// A checkpoint location is a directory whose last path element ends with the
// sentinel token "team" (for example workspace/storage/team). It contains:
//
//   - checkpoint.json: a versioned descriptor holding the roster and state
//   - .checkpoint.lock: the flock(2) file guarding writers and readers
//
// The descriptor carries an explicit kind and format version written at save
// time and checked at recovery time, so a directory that merely has the right
// name is not mistaken for a checkpoint.
//
// # Atomicity
//
// [Checkpointer.Save] writes to a temporary file in the location and renames
// it over checkpoint.json while holding the lock. A crash mid-write leaves the
// previous checkpoint (or none) readable, never a partial one.
package checkpoint

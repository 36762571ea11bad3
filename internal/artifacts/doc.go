// Package artifacts owns the per-run workspace on disk and the append-only
// library of reference images built up while a scene is produced.
//
// Handles are workspace-relative slash paths such as frames/shot-002-first.png.
// The library only grows; readers take a Snapshot at the start of a wave and
// never observe later appends.
package artifacts

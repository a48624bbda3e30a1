// Package history records completed runs (scans, updates, saves, session
// operations, process cleanups) in a SQLite database under the log
// directory. Records are append-only; retention is handled by Prune.
package history

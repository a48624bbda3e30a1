// Package perfmon collects operation timings and system resource samples in
// bounded in-memory rings. Nothing persists; reports are on-demand snapshots.
// The monitor implements excel.Recorder so the workbook manager feeds it
// directly, and threshold crossings fan out to registered callbacks.
package perfmon

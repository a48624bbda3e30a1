// Package agent hosts the long-running binder process: the Excel bridge,
// the performance monitor, the process supervisor, the run history store,
// and the notifier, behind one operation surface consumed by the IPC
// server.
//
// COM apartments bind object access to the thread that created them, so the
// agent routes every bridge call through a single dispatch goroutine pinned
// to its OS thread. Callers submit closures and wait; there are never two
// bridge calls in flight. A flock-guarded lock file enforces one agent per
// log directory.
package agent

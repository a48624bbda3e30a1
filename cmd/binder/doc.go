// Package main hosts the binder CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC
// calls against the agent: workbook control, session snapshots, external
// link scans and updates, process cleanup, performance reports, and run
// history. It centralizes configuration resolution and socket discovery so
// subcommands can focus on user experience instead of wiring.
//
// Commands that only read workbook files (links scan, search, export) fall
// back to the excelize workspace backend when the agent is down, so link
// inspection works on any platform without a running Excel instance.
package main

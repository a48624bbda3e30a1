// Package procs supervises Excel processes: listing them, reaping zombies,
// force-closing stuck instances, and reporting health against configured
// thresholds. Process access goes through the Lister interface so the
// supervisor can be tested against a fake process table.
package procs

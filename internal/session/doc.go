// Package session snapshots the set of open workbooks to an xlsx file and
// reopens them later at their saved sheet and cell. Session files are plain
// workbooks with a single "Session" sheet, so they stay inspectable and
// editable in Excel itself.
package session

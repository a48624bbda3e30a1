// Package excel talks to workbooks through two interchangeable backends: a
// live COM bridge over a running Excel instance and a read-only workspace
// bridge over workbook files. The Manager adds name resolution, verified
// saves with bounded retries, and operation timing on top of either backend.
//
// The live bridge is single-threaded by construction: COM objects created in
// a single-threaded apartment must only be touched from the thread that
// created them, so the agent funnels every call through one dispatch
// goroutine pinned to its OS thread.
package excel

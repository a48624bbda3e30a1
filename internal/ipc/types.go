package ipc

import (
	"binder/internal/agent"
	"binder/internal/excel"
	"binder/internal/history"
	"binder/internal/links"
	"binder/internal/perfmon"
	"binder/internal/procs"
	"binder/internal/session"
)

// PingRequest checks agent liveness.
type PingRequest struct{}

// PingResponse carries the agent process id.
type PingResponse struct {
	PID int `json:"pid"`
}

// StatusRequest fetches the agent status snapshot.
type StatusRequest struct{}

// StatusResponse mirrors the agent status snapshot.
type StatusResponse struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid"`
	Platform      string `json:"platform"`
	LiveBridge    bool   `json:"live_bridge"`
	OpenWorkbooks int    `json:"open_workbooks"`
	SocketPath    string `json:"socket_path"`
	LockPath      string `json:"lock_path"`
	HistoryDBPath string `json:"history_db_path"`
}

// StopRequest stops the agent.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// WorkbooksRequest lists open workbooks.
type WorkbooksRequest struct{}

// WorkbooksResponse contains the open workbooks.
type WorkbooksResponse struct {
	Workbooks []excel.WorkbookInfo `json:"workbooks"`
}

// SaveRequest saves the named workbooks; an empty list saves all.
type SaveRequest struct {
	Names []string `json:"names"`
}

// SaveResponse reports per-workbook save outcomes.
type SaveResponse struct {
	Results []excel.SaveResult `json:"results"`
}

// CloseRequest closes the named workbooks; an empty list closes all.
type CloseRequest struct {
	Names []string `json:"names"`
	Save  bool     `json:"save"`
}

// CloseResponse reports how many workbooks closed.
type CloseResponse struct {
	Closed int `json:"closed"`
}

// ActivateRequest foregrounds a workbook, optionally selecting a
// sheet and cell.
type ActivateRequest struct {
	Name  string `json:"name"`
	Sheet string `json:"sheet"`
	Cell  string `json:"cell"`
}

// ActivateResponse acknowledges activation.
type ActivateResponse struct {
	Activated bool `json:"activated"`
}

// SessionSaveRequest snapshots the open workbooks into a session file.
type SessionSaveRequest struct {
	Name string `json:"name"`
}

// SessionSaveResponse carries the written session file path.
type SessionSaveResponse struct {
	Path string `json:"path"`
}

// SessionLoadRequest restores workbooks from a session file.
type SessionLoadRequest struct {
	Path  string `json:"path"`
	Force bool   `json:"force"`
}

// SessionLoadResponse reports the restore outcome.
type SessionLoadResponse struct {
	Result session.RestoreResult `json:"result"`
}

// SessionListRequest lists stored session files.
type SessionListRequest struct{}

// SessionListResponse contains the stored session files, newest first.
type SessionListResponse struct {
	Sessions []session.FileInfo `json:"sessions"`
}

// SessionExportRequest copies a session file to a destination.
type SessionExportRequest struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

// SessionExportResponse carries the exported file path.
type SessionExportResponse struct {
	Path string `json:"path"`
}

// LinksScanRequest scans open workbooks for external references.
type LinksScanRequest struct{}

// LinksScanResponse contains the scan result.
type LinksScanResponse struct {
	Result links.ScanResult `json:"result"`
}

// LinksUpdateRequest plans and executes a link update run.
type LinksUpdateRequest struct{}

// LinksUpdateResponse contains the run report.
type LinksUpdateResponse struct {
	Report agent.LinkUpdateReport `json:"report"`
}

// ProcsHealthRequest inspects Excel process health.
type ProcsHealthRequest struct{}

// ProcsHealthResponse contains the process health report.
type ProcsHealthResponse struct {
	Report procs.HealthReport `json:"report"`
}

// ProcsCleanupRequest reaps zombie Excel processes.
type ProcsCleanupRequest struct{}

// ProcsCleanupResponse reports the cleanup outcome.
type ProcsCleanupResponse struct {
	Result procs.CleanupResult `json:"result"`
}

// ProcsForceCloseRequest closes every Excel process.
type ProcsForceCloseRequest struct {
	Save bool `json:"save"`
}

// ProcsForceCloseResponse reports the force-close outcome.
type ProcsForceCloseResponse struct {
	Result procs.CleanupResult `json:"result"`
}

// PerfReportRequest renders the performance report.
type PerfReportRequest struct{}

// PerfReportResponse contains the performance report.
type PerfReportResponse struct {
	Report perfmon.Report `json:"report"`
}

// NotifyTestRequest triggers a notification test.
type NotifyTestRequest struct{}

// NotifyTestResponse reports notification test outcome.
type NotifyTestResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// HistoryListRequest filters run history by kind and caps the result.
type HistoryListRequest struct {
	Kind  string `json:"kind"`
	Limit int    `json:"limit"`
}

// HistoryListResponse contains history entries, newest first.
type HistoryListResponse struct {
	Runs []history.RunRecord `json:"runs"`
}

// HistoryGetRequest fetches one run record by id.
type HistoryGetRequest struct {
	RunID string `json:"run_id"`
}

// HistoryGetResponse contains the requested run record.
type HistoryGetResponse struct {
	Run history.RunRecord `json:"run"`
}

// HistoryStatsRequest fetches aggregate run counts.
type HistoryStatsRequest struct{}

// HistoryStatsResponse reports run counts by kind and status.
type HistoryStatsResponse struct {
	Summary history.Summary `json:"summary"`
}

// HistoryClearRequest removes all recorded runs.
type HistoryClearRequest struct{}

// HistoryClearResponse reports number of removed entries.
type HistoryClearResponse struct {
	Removed int64 `json:"removed"`
}

package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"binder/internal/excel"
	"binder/internal/history"
	"binder/internal/links"
	"binder/internal/logging"
	"binder/internal/notifications"
	"binder/internal/perfmon"
	"binder/internal/procs"
	"binder/internal/services"
	"binder/internal/session"
	"binder/internal/textutil"
)

// Workbooks lists the workbooks the bridge currently sees.
func (a *Agent) Workbooks(ctx context.Context) ([]excel.WorkbookInfo, error) {
	var infos []excel.WorkbookInfo
	err := a.dispatch(ctx, func(ctx context.Context, m *excel.Manager) error {
		var listErr error
		infos, listErr = m.Workbooks(ctx)
		return listErr
	})
	return infos, err
}

// SaveWorkbooks saves the named workbooks, or every open workbook when
// names is empty. Failures do not stop the pass; the returned error joins
// the individual save errors.
func (a *Agent) SaveWorkbooks(ctx context.Context, names []string) ([]excel.SaveResult, error) {
	ctx, runID := a.beginRun(ctx)
	started := time.Now()
	done := a.monitor.Track("save-run")

	var results []excel.SaveResult
	executed := false
	err := a.dispatch(ctx, func(ctx context.Context, m *excel.Manager) error {
		executed = true
		if len(names) == 0 {
			var saveErr error
			results, saveErr = m.SaveAll(ctx)
			return saveErr
		}
		var errs []error
		results = make([]excel.SaveResult, 0, len(names))
		for _, name := range names {
			result, saveErr := m.Save(ctx, name)
			results = append(results, result)
			if saveErr != nil {
				errs = append(errs, saveErr)
			}
		}
		return errors.Join(errs...)
	})
	done(err)

	if executed {
		verified := 0
		for _, result := range results {
			if result.Verified {
				verified++
			}
		}
		a.appendRun(&history.RunRecord{
			RunID:      runID,
			Kind:       history.KindSave,
			Status:     runStatus(len(results)-verified, verified, err),
			StartedAt:  started,
			FinishedAt: time.Now(),
			Workbooks:  len(results),
			Detail:     fmt.Sprintf("saved %d of %d workbook(s)", verified, len(results)),
		})
	}
	return results, err
}

// CloseWorkbooks closes the named workbooks, or every open workbook when
// names is empty, optionally saving first. Returns how many closed.
func (a *Agent) CloseWorkbooks(ctx context.Context, names []string, save bool) (int, error) {
	closed := 0
	err := a.dispatch(ctx, func(ctx context.Context, m *excel.Manager) error {
		targets := names
		if len(targets) == 0 {
			infos, listErr := m.Workbooks(ctx)
			if listErr != nil {
				return listErr
			}
			targets = make([]string, 0, len(infos))
			for _, info := range infos {
				targets = append(targets, info.Name)
			}
		}
		var errs []error
		for _, name := range targets {
			if closeErr := m.Close(ctx, name, save); closeErr != nil {
				errs = append(errs, closeErr)
				continue
			}
			closed++
		}
		return errors.Join(errs...)
	})
	return closed, err
}

// Activate brings a workbook to the foreground, optionally selecting a
// sheet and cell.
func (a *Agent) Activate(ctx context.Context, name, sheet, cell string) error {
	return a.dispatch(ctx, func(ctx context.Context, m *excel.Manager) error {
		return m.Activate(ctx, name, sheet, cell)
	})
}

// SessionSave snapshots the open workbooks into a timestamped session
// file under the session directory and returns its path.
func (a *Agent) SessionSave(ctx context.Context, name string) (string, error) {
	ctx, runID := a.beginRun(ctx)
	started := time.Now()
	done := a.monitor.Track("session-save")

	var sess *session.Session
	err := a.dispatch(ctx, func(ctx context.Context, m *excel.Manager) error {
		var capErr error
		sess, capErr = session.NewService(m, a.logger).Capture(ctx)
		return capErr
	})
	if err != nil {
		done(err)
		return "", err
	}

	base := textutil.SanitizeFileName(name)
	if base == "" {
		base = "session"
	}
	path, err := session.Write(filepath.Join(a.cfg.Paths.SessionDir, base+".xlsx"), sess)
	done(err)

	status := history.StatusOK
	if err != nil {
		status = history.StatusError
	}
	a.appendRun(&history.RunRecord{
		RunID:      runID,
		Kind:       history.KindSessionSave,
		Status:     status,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Workbooks:  len(sess.Entries),
		Detail:     fmt.Sprintf("captured %d workbook(s)", len(sess.Entries)),
		ReportPath: path,
	})
	return path, err
}

// SessionLoad restores the workbooks recorded in a session file.
func (a *Agent) SessionLoad(ctx context.Context, path string, force bool) (*session.RestoreResult, error) {
	sess, err := session.Read(path)
	if err != nil {
		return nil, err
	}

	ctx, runID := a.beginRun(ctx)
	started := time.Now()
	done := a.monitor.Track("session-restore")

	var result *session.RestoreResult
	err = a.dispatch(ctx, func(ctx context.Context, m *excel.Manager) error {
		var restoreErr error
		result, restoreErr = session.NewService(m, a.logger).Restore(ctx, sess, session.RestoreOptions{Force: force})
		return restoreErr
	})
	done(err)
	if result == nil {
		return nil, err
	}

	a.appendRun(&history.RunRecord{
		RunID:      runID,
		Kind:       history.KindSessionRestore,
		Status:     runStatus(result.Failed, result.Opened, err),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Workbooks:  result.Opened,
		Detail: fmt.Sprintf("opened %d, skipped %d, failed %d",
			result.Opened, result.Skipped, result.Failed),
		ReportPath: path,
	})
	return result, err
}

// SessionList returns the session files under the session directory,
// newest first.
func (a *Agent) SessionList(context.Context) ([]session.FileInfo, error) {
	return session.List(a.cfg.Paths.SessionDir)
}

// SessionExport copies a session file to dest with checksum verification.
func (a *Agent) SessionExport(_ context.Context, src, dest string) (string, error) {
	return session.Export(src, dest)
}

// LinksScan walks every open workbook for external references.
func (a *Agent) LinksScan(ctx context.Context) (*links.ScanResult, error) {
	ctx, runID := a.beginRun(ctx)
	done := a.monitor.Track("links-scan")

	var result *links.ScanResult
	err := a.dispatch(ctx, func(ctx context.Context, m *excel.Manager) error {
		var scanErr error
		result, scanErr = links.NewScanner(m, a.logger).Scan(ctx)
		return scanErr
	})
	done(err)
	if result == nil {
		return nil, err
	}

	status := history.StatusOK
	if len(result.Errors) > 0 {
		status = history.StatusPartial
	}
	a.appendRun(&history.RunRecord{
		RunID:      runID,
		Kind:       history.KindScan,
		Status:     status,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Workbooks:  result.Stats.TotalWorkbooks,
		LinksFound: result.Stats.TotalLinks,
		Detail:     strings.Join(result.Errors, "; "),
	})
	return result, err
}

// LinkUpdateReport bundles the outcome of one link update run.
type LinkUpdateReport struct {
	Plan        *links.UpdatePlan    `json:"plan"`
	Summary     *links.UpdateSummary `json:"summary"`
	ReportPath  string               `json:"report_path,omitempty"`
	SummaryPath string               `json:"summary_path,omitempty"`
	RunLog      []string             `json:"run_log,omitempty"`
}

// LinksUpdate plans and executes an update pass over every open workbook
// and records the run. The run log and the xlsx scan summary land in the
// report directory when their save_run_log / save_scan_summary toggles
// are set.
func (a *Agent) LinksUpdate(ctx context.Context) (*LinkUpdateReport, error) {
	ctx, runID := a.beginRun(ctx)
	done := a.monitor.Track("links-update")

	var plan *links.UpdatePlan
	var summary *links.UpdateSummary
	err := a.dispatch(ctx, func(ctx context.Context, m *excel.Manager) error {
		var runErr error
		plan, summary, runErr = links.NewUpdater(m, a.cfg, a.logger).Run(ctx)
		return runErr
	})
	done(err)
	if plan == nil || summary == nil {
		return nil, err
	}

	report := &LinkUpdateReport{Plan: plan, Summary: summary}
	runLog := links.NewRunLog()
	links.RenderRunLog(runLog, a.cfg, plan, summary)
	report.RunLog = runLog.Lines()
	if a.cfg.Links.SaveRunLog {
		if path, writeErr := runLog.Write(a.cfg.Paths.ReportDir); writeErr != nil {
			a.logger.Warn("run log write failed", logging.Error(writeErr))
		} else {
			report.ReportPath = path
		}
	}
	if a.cfg.Links.SaveScanSummary {
		if path, writeErr := links.WriteScanSummary(a.cfg.Paths.ReportDir, plan); writeErr != nil {
			a.logger.Warn("scan summary write failed", logging.Error(writeErr))
		} else {
			report.SummaryPath = path
		}
	}

	a.appendRun(&history.RunRecord{
		RunID:        runID,
		Kind:         history.KindUpdate,
		Status:       runStatus(summary.Failed, summary.Updated+summary.Skipped, err),
		StartedAt:    summary.StartedAt,
		FinishedAt:   summary.FinishedAt,
		Workbooks:    summary.Workbooks,
		LinksFound:   summary.Checked,
		LinksUpdated: summary.Updated,
		LinksSkipped: summary.Skipped,
		LinksFailed:  summary.Failed,
		ReportPath:   report.ReportPath,
	})
	a.publish(notifications.EventLinkUpdateCompleted, notifications.Payload{
		"updated": strconv.Itoa(summary.Updated),
		"skipped": strconv.Itoa(summary.Skipped),
		"failed":  strconv.Itoa(summary.Failed),
	})
	return report, err
}

// ProcsHealth inspects the Excel process table.
func (a *Agent) ProcsHealth(ctx context.Context) (*procs.HealthReport, error) {
	return a.procs.Health(ctx)
}

// ProcsCleanup reaps zombie and non-running Excel processes.
func (a *Agent) ProcsCleanup(ctx context.Context) (*procs.CleanupResult, error) {
	ctx, runID := a.beginRun(ctx)
	started := time.Now()
	done := a.monitor.Track("procs-cleanup")

	result, err := a.procs.CleanupZombies(ctx)
	done(err)
	if err != nil {
		return nil, err
	}

	a.appendRun(&history.RunRecord{
		RunID:      runID,
		Kind:       history.KindProcsCleanup,
		Status:     history.StatusOK,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Detail: fmt.Sprintf("matched %d, cleaned %d, force killed %d",
			result.Matched, len(result.Cleaned), len(result.Forced)),
	})
	if len(result.Cleaned) > 0 {
		a.publish(notifications.EventZombieCleanupExecuted, notifications.Payload{
			"cleaned": strconv.Itoa(len(result.Cleaned)),
			"forced":  strconv.Itoa(len(result.Forced)),
		})
	}
	return result, nil
}

// ProcsForceClose closes every Excel process: open workbooks are closed
// through the bridge first (saving when save is set), then remaining
// processes are terminated. A live bridge is unusable afterwards until
// the agent restarts.
func (a *Agent) ProcsForceClose(ctx context.Context, save bool) (*procs.CleanupResult, error) {
	ctx, runID := a.beginRun(ctx)
	started := time.Now()
	done := a.monitor.Track("procs-force-close")

	graceful := func(ctx context.Context) error {
		return a.dispatch(ctx, func(ctx context.Context, m *excel.Manager) error {
			infos, listErr := m.Workbooks(ctx)
			if listErr != nil {
				return listErr
			}
			var errs []error
			for _, info := range infos {
				if closeErr := m.Close(ctx, info.Name, save); closeErr != nil {
					errs = append(errs, closeErr)
				}
			}
			return errors.Join(errs...)
		})
	}

	result, err := a.procs.ForceCloseAll(ctx, graceful)
	done(err)
	if err != nil {
		return nil, err
	}

	a.appendRun(&history.RunRecord{
		RunID:      runID,
		Kind:       history.KindProcsCleanup,
		Status:     history.StatusOK,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Detail: fmt.Sprintf("force close: matched %d, closed %d, force killed %d",
			result.Matched, len(result.Cleaned), len(result.Forced)),
	})
	if len(result.Cleaned) > 0 {
		a.publish(notifications.EventForceCloseExecuted, notifications.Payload{
			"closed": strconv.Itoa(len(result.Cleaned)),
			"forced": strconv.Itoa(len(result.Forced)),
		})
		if a.live.Load() {
			a.logger.Warn("force close terminated the attached Excel instance; restart the agent before issuing workbook commands")
		}
	}
	return result, nil
}

// PerfReport renders the current performance report.
func (a *Agent) PerfReport(ctx context.Context) *perfmon.Report {
	return a.monitor.Report(ctx)
}

// NotifyTest exercises the notification path end to end.
func (a *Agent) NotifyTest(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(a.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := a.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// HistoryList returns recorded runs, newest first.
func (a *Agent) HistoryList(ctx context.Context, kind string, limit int) ([]*history.RunRecord, error) {
	k := history.Kind(strings.TrimSpace(kind))
	if k != "" && !history.KnownKind(k) {
		return nil, services.Wrap(services.ErrValidation, "agent", "history-list",
			fmt.Sprintf("unknown run kind %q", kind), nil)
	}
	return a.history.List(ctx, k, limit)
}

// HistoryGet returns one recorded run by its id.
func (a *Agent) HistoryGet(ctx context.Context, runID string) (*history.RunRecord, error) {
	record, err := a.history.Get(ctx, strings.TrimSpace(runID))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, services.Wrap(services.ErrNotFound, "agent", "history-get",
			fmt.Sprintf("no run record with id %q", runID), nil)
	}
	return record, nil
}

// HistoryStats aggregates run counts by kind and status.
func (a *Agent) HistoryStats(ctx context.Context) (history.Summary, error) {
	return a.history.Stats(ctx)
}

// HistoryClear removes all recorded runs.
func (a *Agent) HistoryClear(ctx context.Context) (int64, error) {
	return a.history.Clear(ctx)
}

// beginRun tags ctx with a fresh run id so log lines correlate with the
// history record.
func (a *Agent) beginRun(ctx context.Context) (context.Context, string) {
	runID := uuid.NewString()
	return services.WithRunID(ctx, runID), runID
}

// appendRun persists a completed run on a detached context so a canceled
// caller cannot lose the record.
func (a *Agent) appendRun(record *history.RunRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.history.Append(ctx, record); err != nil {
		a.logger.Warn("history append failed",
			logging.String("kind", string(record.Kind)),
			logging.Error(err))
	}
}

// publish sends a notification without letting delivery failures bubble
// into the operation result.
func (a *Agent) publish(event notifications.Event, payload notifications.Payload) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.notifier.Publish(ctx, event, payload); err != nil {
		a.logger.Warn("notification failed",
			logging.String("event", string(event)),
			logging.Error(err))
	}
}

// runStatus maps failure and success counts onto a history status.
func runStatus(failures, successes int, err error) history.Status {
	switch {
	case err == nil && failures == 0:
		return history.StatusOK
	case successes > 0:
		return history.StatusPartial
	default:
		return history.StatusError
	}
}

package session

import (
	"context"
	"fmt"
	"os"
	"time"

	"binder/internal/excel"
	"binder/internal/logging"
	"binder/internal/services"
)

// RestoreStatus classifies the outcome for one session entry.
type RestoreStatus string

const (
	RestoreOpened  RestoreStatus = "opened"
	RestoreSkipped RestoreStatus = "skipped"
	RestoreFailed  RestoreStatus = "failed"
)

// RestoreOutcome reports what happened to one entry during a restore.
type RestoreOutcome struct {
	Entry    Entry         `json:"entry"`
	Status   RestoreStatus `json:"status"`
	ReadOnly bool          `json:"read_only,omitempty"`
	Note     string        `json:"note,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// RestoreResult totals one restore run.
type RestoreResult struct {
	Opened     int              `json:"opened"`
	Skipped    int              `json:"skipped"`
	Failed     int              `json:"failed"`
	Outcomes   []RestoreOutcome `json:"outcomes"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Duration returns the wall-clock span of the restore.
func (r *RestoreResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RestoreOptions adjusts restore behavior.
type RestoreOptions struct {
	// Force restores even when workbooks are already open.
	Force bool
}

// Restore reopens every entry of sess. Entries whose file no longer exists
// are skipped with a warning; open failures are recorded and the run
// continues. Workbooks open with link updates disabled so stale external
// references never block the restore.
func (s *Service) Restore(ctx context.Context, sess *Session, opts RestoreOptions) (*RestoreResult, error) {
	if sess == nil || len(sess.Entries) == 0 {
		return nil, services.Wrap(services.ErrValidation, "session", "restore",
			"session has no entries", nil)
	}

	if !opts.Force {
		open, err := s.manager.Workbooks(ctx)
		if err != nil {
			return nil, err
		}
		if len(open) > 0 {
			return nil, services.Wrap(services.ErrValidation, "session", "restore",
				fmt.Sprintf("%d workbook(s) are open; close them first or restore with force", len(open)), nil)
		}
	}

	result := &RestoreResult{StartedAt: time.Now()}
	total := len(sess.Entries)
	for i, entry := range sess.Entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome := s.restoreEntry(ctx, i+1, total, entry)
		result.Outcomes = append(result.Outcomes, outcome)
		switch outcome.Status {
		case RestoreOpened:
			result.Opened++
		case RestoreSkipped:
			result.Skipped++
		case RestoreFailed:
			result.Failed++
		}
	}
	result.FinishedAt = time.Now()

	s.logger.Info("session restore finished",
		logging.Int("opened", result.Opened),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
		logging.Duration("duration", result.Duration()))
	return result, nil
}

func (s *Service) restoreEntry(ctx context.Context, seq, total int, entry Entry) RestoreOutcome {
	started := time.Now()
	outcome := RestoreOutcome{Entry: entry}

	if _, err := os.Stat(entry.FilePath); err != nil {
		outcome.Status = RestoreSkipped
		outcome.Note = "file no longer exists"
		outcome.Elapsed = time.Since(started)
		s.logger.Warn("session file missing, skipped",
			logging.String("path", entry.FilePath),
			logging.Int("seq", seq),
			logging.Int("total", total))
		return outcome
	}

	info, err := s.manager.Open(ctx, entry.FilePath, excel.OpenOptions{UpdateLinks: false})
	if err != nil {
		outcome.Status = RestoreFailed
		outcome.Note = err.Error()
		outcome.Elapsed = time.Since(started)
		s.logger.Warn("session file failed to open",
			logging.String("path", entry.FilePath),
			logging.Error(err))
		return outcome
	}
	outcome.Status = RestoreOpened
	outcome.ReadOnly = info.ReadOnly
	if info.ReadOnly {
		s.logger.Warn("session file opened read-only, changes may not be saved",
			logging.String("path", entry.FilePath))
	}

	if entry.SheetName != "" || entry.CellAddress != "" {
		if err := s.manager.Activate(ctx, info.Name, entry.SheetName, entry.CellAddress); err != nil {
			// The workbook is open; a stale sheet or cell only loses the position.
			outcome.Note = "sheet/cell select failed: " + err.Error()
			s.logger.Warn("session position not restored",
				logging.String(logging.FieldWorkbook, info.Name),
				logging.Error(err))
		}
	}

	outcome.Elapsed = time.Since(started)
	s.logger.Info("session file opened",
		logging.String("path", entry.FilePath),
		logging.Int("seq", seq),
		logging.Int("total", total),
		logging.Duration("duration", outcome.Elapsed))
	return outcome
}

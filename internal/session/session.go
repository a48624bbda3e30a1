package session

import (
	"context"
	"log/slog"
	"time"

	"binder/internal/excel"
	"binder/internal/logging"
	"binder/internal/services"
	"binder/internal/textutil"
)

// Entry is one workbook position inside a session.
type Entry struct {
	FilePath    string `json:"file_path"`
	SheetName   string `json:"sheet_name,omitempty"`
	CellAddress string `json:"cell_address,omitempty"`
}

// Session is an ordered snapshot of open workbooks.
type Session struct {
	SavedAt time.Time `json:"saved_at"`
	Entries []Entry   `json:"entries"`
}

// Service captures and restores sessions through a workbook manager.
type Service struct {
	manager *excel.Manager
	logger  *slog.Logger
}

// NewService wires a session service over manager.
func NewService(manager *excel.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{manager: manager, logger: logger}
}

// Capture snapshots every open workbook with its active sheet and cell.
// Cell addresses are stored without dollar signs.
func (s *Service) Capture(ctx context.Context) (*Session, error) {
	infos, err := s.manager.Workbooks(ctx)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, services.Wrap(services.ErrValidation, "session", "capture",
			"no workbooks open to capture", nil)
	}

	sess := &Session{SavedAt: time.Now()}
	for _, info := range infos {
		path := info.FullPath
		if path == "" {
			path = info.Name
		}
		sess.Entries = append(sess.Entries, Entry{
			FilePath:    path,
			SheetName:   info.ActiveSheet,
			CellAddress: textutil.CellDisplay(info.ActiveCell),
		})
	}
	s.logger.Info("captured session",
		logging.Int("workbooks", len(sess.Entries)))
	return sess, nil
}

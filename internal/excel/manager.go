package excel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"binder/internal/config"
	"binder/internal/fileutil"
	"binder/internal/logging"
	"binder/internal/services"
)

// Manager layers workbook name resolution, verified saves, and operation
// timing on top of a Bridge.
type Manager struct {
	bridge           Bridge
	logger           *slog.Logger
	recorder         Recorder
	retries          int
	retryDelay       time.Duration
	readOnlyFallback bool
}

// NewManager wires a manager over bridge using the excel section of cfg.
// recorder may be nil to disable operation timing.
func NewManager(bridge Bridge, cfg *config.Config, logger *slog.Logger, recorder Recorder) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		bridge:           bridge,
		logger:           logger,
		recorder:         recorder,
		retries:          cfg.Excel.SaveRetries,
		retryDelay:       time.Duration(cfg.Excel.SaveRetryDelayMS) * time.Millisecond,
		readOnlyFallback: cfg.Excel.OpenReadOnlyFallback,
	}
}

// Workbooks returns the backend's workbooks in collection order.
func (m *Manager) Workbooks(ctx context.Context) ([]WorkbookInfo, error) {
	started := time.Now()
	infos, err := m.bridge.Workbooks(ctx)
	m.record("workbooks", started, err)
	return infos, err
}

// Find resolves a workbook by name: exact match first, then case-insensitive
// (with or without extension), then substring. Ambiguous substring matches
// fail with the candidate list.
func (m *Manager) Find(ctx context.Context, name string) (WorkbookInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return WorkbookInfo{}, services.Wrap(services.ErrValidation, "excel", "find", "workbook name is empty", nil)
	}
	infos, err := m.bridge.Workbooks(ctx)
	if err != nil {
		return WorkbookInfo{}, err
	}

	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	for _, info := range infos {
		if strings.EqualFold(info.Name, name) || strings.EqualFold(stripExt(info.Name), name) {
			return info, nil
		}
	}

	lowered := strings.ToLower(name)
	var matches []WorkbookInfo
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name), lowered) {
			matches = append(matches, info)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return WorkbookInfo{}, services.Wrap(services.ErrNotFound, "excel", "find",
			fmt.Sprintf("workbook %q is not open (open: %s)", name, workbookNames(infos)), nil)
	default:
		return WorkbookInfo{}, services.Wrap(services.ErrValidation, "excel", "find",
			fmt.Sprintf("workbook %q is ambiguous (matches: %s)", name, workbookNames(matches)), nil)
	}
}

// Save saves the named workbook, retrying until the file modification time
// advances (or the backend reports the workbook saved). The attempt count and
// delay come from configuration.
func (m *Manager) Save(ctx context.Context, name string) (SaveResult, error) {
	started := time.Now()
	info, err := m.Find(ctx, name)
	if err != nil {
		m.record("save", started, err)
		return SaveResult{Name: name}, err
	}
	result, err := m.save(ctx, info)
	m.record("save", started, err)
	return result, err
}

// SaveAll saves every open workbook, continuing past failures. The returned
// error joins the individual save errors.
func (m *Manager) SaveAll(ctx context.Context) ([]SaveResult, error) {
	started := time.Now()
	infos, err := m.bridge.Workbooks(ctx)
	if err != nil {
		m.record("save-all", started, err)
		return nil, err
	}
	results := make([]SaveResult, 0, len(infos))
	var errs []error
	for _, info := range infos {
		result, saveErr := m.save(ctx, info)
		results = append(results, result)
		if saveErr != nil {
			errs = append(errs, saveErr)
		}
	}
	joined := errors.Join(errs...)
	m.record("save-all", started, joined)
	return results, joined
}

func (m *Manager) save(ctx context.Context, info WorkbookInfo) (SaveResult, error) {
	result := SaveResult{Name: info.Name, Path: info.FullPath}

	var before time.Time
	hadFile := false
	if info.FullPath != "" {
		if fi, err := os.Stat(info.FullPath); err == nil {
			before = fi.ModTime()
			hadFile = true
		}
		// A read-only file never blocks the save attempt. Excel may still
		// write elsewhere or prompt, so only warn.
		if hadFile && !fileutil.FileWritable(info.FullPath) {
			m.logger.Warn("workbook file is read-only, changes may not be saved",
				logging.String(logging.FieldWorkbook, info.Name),
				logging.String("path", info.FullPath))
		}
	}

	var lastErr error
	for attempt := 1; attempt <= m.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Attempts = attempt
		lastErr = m.bridge.SaveWorkbook(ctx, info.Name)
		time.Sleep(m.retryDelay)
		if lastErr != nil {
			m.logger.Warn("workbook save attempt failed",
				logging.String(logging.FieldWorkbook, info.Name),
				logging.Int("attempt", attempt),
				logging.Error(lastErr))
			continue
		}
		if m.saveVerified(ctx, info, before, hadFile) {
			result.Verified = true
			return result, nil
		}
		lastErr = fmt.Errorf("modification time did not advance for %q", info.FullPath)
	}
	return result, services.Wrap(services.ErrExternalTool, "excel", "save",
		fmt.Sprintf("workbook %q not saved after %d attempts", info.Name, m.retries), lastErr)
}

func (m *Manager) saveVerified(ctx context.Context, info WorkbookInfo, before time.Time, hadFile bool) bool {
	if info.FullPath != "" {
		if fi, err := os.Stat(info.FullPath); err == nil {
			if !hadFile || fi.ModTime().After(before) {
				return true
			}
		}
	}
	// Never-saved workbooks have no file to stat; trust the Saved flag.
	current, err := m.bridge.Workbooks(ctx)
	if err != nil {
		return false
	}
	for _, wb := range current {
		if wb.Name == info.Name {
			return wb.Saved
		}
	}
	return false
}

// Close closes the named workbook. With save set, the workbook is saved and
// verified first; a failed save leaves the workbook open.
func (m *Manager) Close(ctx context.Context, name string, save bool) error {
	started := time.Now()
	err := m.close(ctx, name, save)
	m.record("close", started, err)
	return err
}

func (m *Manager) close(ctx context.Context, name string, save bool) error {
	info, err := m.Find(ctx, name)
	if err != nil {
		return err
	}
	if save {
		if _, err := m.save(ctx, info); err != nil {
			return err
		}
	}
	return m.bridge.CloseWorkbook(ctx, info.Name, false)
}

// Activate brings the named workbook to the foreground, optionally selecting
// a sheet and cell.
func (m *Manager) Activate(ctx context.Context, name, sheet, cell string) error {
	started := time.Now()
	info, err := m.Find(ctx, name)
	if err == nil {
		err = m.bridge.ActivateWorkbook(ctx, info.Name, sheet, cell)
	}
	m.record("activate", started, err)
	return err
}

// Open opens the workbook at path. When the first attempt fails and the
// read-only fallback is enabled, the open is retried read-only and the result
// marked accordingly.
func (m *Manager) Open(ctx context.Context, path string, opts OpenOptions) (WorkbookInfo, error) {
	started := time.Now()
	info, err := m.open(ctx, path, opts)
	m.record("open", started, err)
	return info, err
}

func (m *Manager) open(ctx context.Context, path string, opts OpenOptions) (WorkbookInfo, error) {
	info, err := m.bridge.OpenWorkbook(ctx, path, opts)
	if err == nil || opts.ReadOnly || !m.readOnlyFallback {
		return info, err
	}
	if errors.Is(err, services.ErrUnsupported) || ctx.Err() != nil {
		return info, err
	}
	m.logger.Warn("open failed, retrying read-only",
		logging.String("path", path),
		logging.Error(err))
	opts.ReadOnly = true
	fallback, fallbackErr := m.bridge.OpenWorkbook(ctx, path, opts)
	if fallbackErr != nil {
		return WorkbookInfo{}, err
	}
	fallback.ReadOnly = true
	return fallback, nil
}

// LinkSources passes through to the bridge for the resolved workbook.
func (m *Manager) LinkSources(ctx context.Context, workbook string) ([]string, error) {
	info, err := m.Find(ctx, workbook)
	if err != nil {
		return nil, err
	}
	return m.bridge.LinkSources(ctx, info.Name)
}

// Formulas passes through to the bridge for the resolved workbook.
func (m *Manager) Formulas(ctx context.Context, workbook string, fn func(CellFormula) error) error {
	info, err := m.Find(ctx, workbook)
	if err != nil {
		return err
	}
	return m.bridge.Formulas(ctx, info.Name, fn)
}

// UpdateLink refreshes one link source on the resolved workbook.
func (m *Manager) UpdateLink(ctx context.Context, workbook, target string) error {
	started := time.Now()
	info, err := m.Find(ctx, workbook)
	if err == nil {
		err = m.bridge.UpdateLink(ctx, info.Name, target)
	}
	m.record("update-link", started, err)
	return err
}

func (m *Manager) record(name string, started time.Time, err error) {
	if m.recorder == nil {
		return
	}
	m.recorder.RecordOperation(name, time.Since(started), err)
}

func stripExt(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		return name[:idx]
	}
	return name
}

func workbookNames(infos []WorkbookInfo) string {
	if len(infos) == 0 {
		return "none"
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return strings.Join(names, ", ")
}

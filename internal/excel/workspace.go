package excel

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"binder/internal/logging"
	"binder/internal/services"
)

// workspaceBridge reads workbook files from a directory tree instead of a
// live Excel instance. It backs scans and reports on hosts without Excel and
// serves as the agent fallback when COM attach fails.
//
// Formula text comes back exactly as stored in the file. Workbooks saved by
// Excel store cross-workbook references as indexed tokens ([1]Sheet1!A1), so
// a workspace scan only sees bracketed file names in formulas that carry
// them literally; the live bridge always sees resolved names.
type workspaceBridge struct {
	root   string
	logger *slog.Logger
}

// NewWorkspaceBridge creates a read-only bridge over the workbook files under
// root.
func NewWorkspaceBridge(root string, logger *slog.Logger) (Bridge, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "excel", "workspace", "paths.workspace_dir is not set", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "excel", "workspace", fmt.Sprintf("resolve workspace root %q", root), err)
	}
	return &workspaceBridge{root: abs, logger: logger}, nil
}

func (b *workspaceBridge) Release() {}

func (b *workspaceBridge) Workbooks(ctx context.Context) ([]WorkbookInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var infos []WorkbookInfo
	err := filepath.WalkDir(b.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			return nil
		}
		if !isWorkbookFile(entry.Name()) {
			return nil
		}
		infos = append(infos, WorkbookInfo{
			Name:     entry.Name(),
			FullPath: path,
			Saved:    true,
			ReadOnly: true,
		})
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "excel", "workbooks", fmt.Sprintf("walk workspace %q", b.root), err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].FullPath < infos[j].FullPath })
	return infos, nil
}

// OpenWorkbook verifies the file parses as a workbook. The workspace cannot
// present it in Excel, so the result is marked read-only.
func (b *workspaceBridge) OpenWorkbook(ctx context.Context, path string, _ OpenOptions) (WorkbookInfo, error) {
	if err := ctx.Err(); err != nil {
		return WorkbookInfo{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return WorkbookInfo{}, services.Wrap(services.ErrValidation, "excel", "open", fmt.Sprintf("resolve path %q", path), err)
	}
	f, err := excelize.OpenFile(abs)
	if err != nil {
		return WorkbookInfo{}, services.Wrap(services.ErrExternalTool, "excel", "open", fmt.Sprintf("open workbook %q", abs), err)
	}
	if err := f.Close(); err != nil {
		b.logger.Warn("close workbook after probe", logging.Error(err))
	}
	return WorkbookInfo{
		Name:     filepath.Base(abs),
		FullPath: abs,
		Saved:    true,
		ReadOnly: true,
	}, nil
}

func (b *workspaceBridge) SaveWorkbook(ctx context.Context, name string) error {
	return b.unsupported(ctx, "save")
}

func (b *workspaceBridge) CloseWorkbook(ctx context.Context, name string, save bool) error {
	return b.unsupported(ctx, "close")
}

func (b *workspaceBridge) ActivateWorkbook(ctx context.Context, name, sheet, cell string) error {
	return b.unsupported(ctx, "activate")
}

func (b *workspaceBridge) UpdateLink(ctx context.Context, workbook, target string) error {
	return b.unsupported(ctx, "update-link")
}

// LinkSources is empty for workspace scans; external reference registries are
// not readable from the file with this backend, and the formula walk still
// yields every literally referenced target.
func (b *workspaceBridge) LinkSources(ctx context.Context, workbook string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (b *workspaceBridge) Formulas(ctx context.Context, workbook string, fn func(CellFormula) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := b.find(ctx, workbook)
	if err != nil {
		return err
	}
	f, err := excelize.OpenFile(info.FullPath)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "excel", "scan", fmt.Sprintf("open workbook %q", info.FullPath), err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			b.logger.Warn("close workbook after scan", logging.Error(err))
		}
	}()

	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			b.logger.Debug("sheet rows unavailable", logging.String("sheet", sheet), logging.Error(err))
			continue
		}
		for rowIdx, row := range rows {
			for colIdx := range row {
				cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
				if err != nil {
					continue
				}
				formula, err := f.GetCellFormula(sheet, cell)
				if err != nil || formula == "" {
					continue
				}
				if !strings.HasPrefix(formula, "=") {
					formula = "=" + formula
				}
				if err := fn(CellFormula{
					Workbook: info.Name,
					Sheet:    sheet,
					Cell:     cell,
					Formula:  formula,
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (b *workspaceBridge) find(ctx context.Context, name string) (WorkbookInfo, error) {
	infos, err := b.Workbooks(ctx)
	if err != nil {
		return WorkbookInfo{}, err
	}
	for _, info := range infos {
		if strings.EqualFold(info.Name, name) || info.FullPath == name {
			return info, nil
		}
	}
	return WorkbookInfo{}, services.Wrap(services.ErrNotFound, "excel", "workbooks", fmt.Sprintf("workbook %q not found under %q", name, b.root), nil)
}

func (b *workspaceBridge) unsupported(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return services.Wrap(services.ErrUnsupported, "excel", operation, "requires a live Excel session", nil)
}

func isWorkbookFile(name string) bool {
	if strings.HasPrefix(name, "~$") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls":
		return true
	}
	return false
}

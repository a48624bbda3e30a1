package excel

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"binder/internal/logging"
	"binder/internal/services"
)

// Excel object model constants.
const (
	xlExcelLinks       = 1
	xlCellTypeFormulas = -4123
	xlUpdateLinksAll   = 3
)

// liveBridge drives a running Excel instance over COM. The constructor pins
// the calling goroutine to its OS thread and enters a single-threaded
// apartment, so every subsequent call must come from that same goroutine.
type liveBridge struct {
	app      *ole.IDispatch
	launched bool
	logger   *slog.Logger
}

// NewLiveBridge attaches to a running Excel instance, launching a visible one
// when none is reachable. Returns ErrUnsupported off windows.
func NewLiveBridge(logger *slog.Logger) (Bridge, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if runtime.GOOS != "windows" {
		return nil, services.Wrap(services.ErrUnsupported, "excel", "attach", "live Excel automation requires windows", nil)
	}

	runtime.LockOSThread()
	ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED)

	if unknown, err := oleutil.GetActiveObject("Excel.Application"); err == nil {
		if app, err := unknown.QueryInterface(ole.IID_IDispatch); err == nil {
			logger.Info("attached to running Excel instance")
			return &liveBridge{app: app, logger: logger}, nil
		}
	}

	unknown, err := oleutil.CreateObject("Excel.Application")
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, services.Wrap(services.ErrExternalTool, "excel", "attach", "launch Excel application", err)
	}
	app, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, services.Wrap(services.ErrExternalTool, "excel", "attach", "query Excel dispatch interface", err)
	}
	if _, err := oleutil.PutProperty(app, "Visible", true); err != nil {
		app.Release()
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, services.Wrap(services.ErrExternalTool, "excel", "attach", "make Excel visible", err)
	}
	logger.Info("launched new Excel instance")
	return &liveBridge{app: app, launched: true, logger: logger}, nil
}

func (b *liveBridge) Release() {
	if b.app != nil {
		b.app.Release()
		b.app = nil
	}
	ole.CoUninitialize()
	runtime.UnlockOSThread()
}

func (b *liveBridge) Workbooks(ctx context.Context) ([]WorkbookInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	workbooks, err := b.workbooksCollection()
	if err != nil {
		return nil, err
	}
	defer workbooks.Release()

	countProp, err := oleutil.GetProperty(workbooks, "Count")
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "excel", "workbooks", "read workbook count", err)
	}
	count := int(countProp.Val)

	infos := make([]WorkbookInfo, 0, count)
	for i := 1; i <= count; i++ {
		item, err := oleutil.GetProperty(workbooks, "Item", i)
		if err != nil {
			continue
		}
		wb := item.ToIDispatch()
		info, err := workbookInfo(wb)
		wb.Release()
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (b *liveBridge) OpenWorkbook(ctx context.Context, path string, opts OpenOptions) (WorkbookInfo, error) {
	if err := ctx.Err(); err != nil {
		return WorkbookInfo{}, err
	}
	workbooks, err := b.workbooksCollection()
	if err != nil {
		return WorkbookInfo{}, err
	}
	defer workbooks.Release()

	updateLinks := 0
	if opts.UpdateLinks {
		updateLinks = xlUpdateLinksAll
	}
	result, err := oleutil.CallMethod(workbooks, "Open", path, updateLinks, opts.ReadOnly)
	if err != nil {
		return WorkbookInfo{}, services.Wrap(services.ErrExternalTool, "excel", "open", fmt.Sprintf("open workbook %q", path), err)
	}
	wb := result.ToIDispatch()
	defer wb.Release()

	info, err := workbookInfo(wb)
	if err != nil {
		return WorkbookInfo{}, services.Wrap(services.ErrExternalTool, "excel", "open", "read workbook metadata", err)
	}
	return info, nil
}

// withAlertsSuppressed disables Excel's modal alert dialogs around fn and
// restores the previous setting. Save and close confirmations would
// otherwise block the automation thread until dismissed by hand.
func (b *liveBridge) withAlertsSuppressed(fn func() error) error {
	prev, err := oleutil.GetProperty(b.app, "DisplayAlerts")
	if err == nil {
		if _, putErr := oleutil.PutProperty(b.app, "DisplayAlerts", false); putErr == nil {
			defer func() {
				if _, restoreErr := oleutil.PutProperty(b.app, "DisplayAlerts", prev.Value()); restoreErr != nil {
					b.logger.Warn("restoring Excel alert dialogs failed", logging.Error(restoreErr))
				}
			}()
		}
	}
	return fn()
}

func (b *liveBridge) SaveWorkbook(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wb, err := b.workbook(name)
	if err != nil {
		return err
	}
	defer wb.Release()

	return b.withAlertsSuppressed(func() error {
		if _, err := oleutil.CallMethod(wb, "Save"); err != nil {
			return services.Wrap(services.ErrExternalTool, "excel", "save", fmt.Sprintf("save workbook %q", name), err)
		}
		return nil
	})
}

func (b *liveBridge) CloseWorkbook(ctx context.Context, name string, save bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wb, err := b.workbook(name)
	if err != nil {
		return err
	}
	defer wb.Release()

	return b.withAlertsSuppressed(func() error {
		if _, err := oleutil.CallMethod(wb, "Close", save); err != nil {
			return services.Wrap(services.ErrExternalTool, "excel", "close", fmt.Sprintf("close workbook %q", name), err)
		}
		return nil
	})
}

func (b *liveBridge) ActivateWorkbook(ctx context.Context, name, sheet, cell string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wb, err := b.workbook(name)
	if err != nil {
		return err
	}
	defer wb.Release()

	if _, err := oleutil.CallMethod(wb, "Activate"); err != nil {
		return services.Wrap(services.ErrExternalTool, "excel", "activate", fmt.Sprintf("activate workbook %q", name), err)
	}
	if sheet != "" {
		wsProp, err := oleutil.GetProperty(wb, "Worksheets", sheet)
		if err != nil {
			return services.Wrap(services.ErrNotFound, "excel", "activate", fmt.Sprintf("sheet %q not found in %q", sheet, name), err)
		}
		ws := wsProp.ToIDispatch()
		defer ws.Release()

		if _, err := oleutil.CallMethod(ws, "Activate"); err != nil {
			return services.Wrap(services.ErrExternalTool, "excel", "activate", fmt.Sprintf("activate sheet %q", sheet), err)
		}
		if cell != "" {
			rangeProp, err := oleutil.GetProperty(ws, "Range", cell)
			if err != nil {
				return services.Wrap(services.ErrValidation, "excel", "activate", fmt.Sprintf("invalid cell address %q", cell), err)
			}
			rng := rangeProp.ToIDispatch()
			defer rng.Release()

			if _, err := oleutil.CallMethod(rng, "Select"); err != nil {
				return services.Wrap(services.ErrExternalTool, "excel", "activate", fmt.Sprintf("select cell %q", cell), err)
			}
		}
	}
	if err := restoreExcelWindow(); err != nil {
		b.logger.Warn("excel window restore failed", logging.Error(err))
	}
	return nil
}

func (b *liveBridge) UpdateLink(ctx context.Context, workbook, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wb, err := b.workbook(workbook)
	if err != nil {
		return err
	}
	defer wb.Release()

	return b.withAlertsSuppressed(func() error {
		if _, err := oleutil.CallMethod(wb, "UpdateLink", target, xlExcelLinks); err != nil {
			return services.Wrap(services.ErrExternalTool, "excel", "update-link", fmt.Sprintf("update link %q in %q", target, workbook), err)
		}
		return nil
	})
}

func (b *liveBridge) LinkSources(ctx context.Context, workbook string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wb, err := b.workbook(workbook)
	if err != nil {
		return nil, err
	}
	defer wb.Release()

	result, err := oleutil.CallMethod(wb, "LinkSources", xlExcelLinks)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "excel", "link-sources", fmt.Sprintf("list link sources for %q", workbook), err)
	}
	// LinkSources returns an empty variant when the workbook has no links.
	if result.VT == ole.VT_EMPTY || result.VT == ole.VT_NULL {
		return nil, nil
	}
	arr := result.ToArray()
	if arr == nil {
		return nil, nil
	}
	values := arr.ToValueArray()
	sources := make([]string, 0, len(values))
	for _, value := range values {
		if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
			sources = append(sources, s)
		}
	}
	return sources, nil
}

func (b *liveBridge) Formulas(ctx context.Context, workbook string, fn func(CellFormula) error) error {
	wb, err := b.workbook(workbook)
	if err != nil {
		return err
	}
	defer wb.Release()

	sheetsProp, err := oleutil.GetProperty(wb, "Worksheets")
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "excel", "scan", "access Worksheets collection", err)
	}
	sheets := sheetsProp.ToIDispatch()
	defer sheets.Release()

	countProp, err := oleutil.GetProperty(sheets, "Count")
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "excel", "scan", "read worksheet count", err)
	}
	count := int(countProp.Val)

	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, err := oleutil.GetProperty(sheets, "Item", i)
		if err != nil {
			continue
		}
		ws := item.ToIDispatch()
		err = b.sheetFormulas(ws, workbook, fn)
		ws.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *liveBridge) sheetFormulas(ws *ole.IDispatch, workbook string, fn func(CellFormula) error) error {
	nameProp, err := oleutil.GetProperty(ws, "Name")
	if err != nil {
		return nil
	}
	sheetName := nameProp.ToString()

	usedProp, err := oleutil.GetProperty(ws, "UsedRange")
	if err != nil {
		b.logger.Debug("used range unavailable", logging.String("sheet", sheetName))
		return nil
	}
	used := usedProp.ToIDispatch()
	defer used.Release()

	// SpecialCells raises when the sheet has no formula cells.
	specialProp, err := oleutil.CallMethod(used, "SpecialCells", xlCellTypeFormulas)
	if err != nil {
		return nil
	}
	special := specialProp.ToIDispatch()
	defer special.Release()

	areasProp, err := oleutil.GetProperty(special, "Areas")
	if err != nil {
		return nil
	}
	areas := areasProp.ToIDispatch()
	defer areas.Release()

	areaCountProp, err := oleutil.GetProperty(areas, "Count")
	if err != nil {
		return nil
	}
	areaCount := int(areaCountProp.Val)

	for a := 1; a <= areaCount; a++ {
		areaProp, err := oleutil.GetProperty(areas, "Item", a)
		if err != nil {
			continue
		}
		area := areaProp.ToIDispatch()
		err = emitAreaFormulas(area, workbook, sheetName, fn)
		area.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

func emitAreaFormulas(area *ole.IDispatch, workbook, sheet string, fn func(CellFormula) error) error {
	cellsProp, err := oleutil.GetProperty(area, "Cells")
	if err != nil {
		return nil
	}
	cells := cellsProp.ToIDispatch()
	defer cells.Release()

	countProp, err := oleutil.GetProperty(cells, "Count")
	if err != nil {
		return nil
	}
	count := int(countProp.Val)

	for i := 1; i <= count; i++ {
		cellProp, err := oleutil.GetProperty(cells, "Item", i)
		if err != nil {
			continue
		}
		cell := cellProp.ToIDispatch()
		formulaProp, formulaErr := oleutil.GetProperty(cell, "Formula")
		addressProp, addressErr := oleutil.GetProperty(cell, "Address")
		cell.Release()
		if formulaErr != nil || addressErr != nil {
			continue
		}
		formula := formulaProp.ToString()
		if formula == "" {
			continue
		}
		if err := fn(CellFormula{
			Workbook: workbook,
			Sheet:    sheet,
			Cell:     addressProp.ToString(),
			Formula:  formula,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (b *liveBridge) workbooksCollection() (*ole.IDispatch, error) {
	prop, err := oleutil.GetProperty(b.app, "Workbooks")
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "excel", "workbooks", "access Workbooks collection", err)
	}
	return prop.ToIDispatch(), nil
}

func (b *liveBridge) workbook(name string) (*ole.IDispatch, error) {
	workbooks, err := b.workbooksCollection()
	if err != nil {
		return nil, err
	}
	defer workbooks.Release()

	item, err := oleutil.GetProperty(workbooks, "Item", name)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "excel", "workbooks", fmt.Sprintf("workbook %q is not open", name), err)
	}
	return item.ToIDispatch(), nil
}

func workbookInfo(wb *ole.IDispatch) (WorkbookInfo, error) {
	name, err := oleutil.GetProperty(wb, "Name")
	if err != nil {
		return WorkbookInfo{}, err
	}
	fullName, err := oleutil.GetProperty(wb, "FullName")
	if err != nil {
		return WorkbookInfo{}, err
	}
	saved, err := oleutil.GetProperty(wb, "Saved")
	if err != nil {
		return WorkbookInfo{}, err
	}
	info := WorkbookInfo{
		Name:     name.ToString(),
		FullPath: fullName.ToString(),
		Saved:    saved.Val != 0,
	}
	if readOnly, err := oleutil.GetProperty(wb, "ReadOnly"); err == nil {
		info.ReadOnly = readOnly.Val != 0
	}
	if sheetProp, err := oleutil.GetProperty(wb, "ActiveSheet"); err == nil {
		sheet := sheetProp.ToIDispatch()
		if sheetName, err := oleutil.GetProperty(sheet, "Name"); err == nil {
			info.ActiveSheet = sheetName.ToString()
		}
		sheet.Release()
	}
	if appProp, err := oleutil.GetProperty(wb, "Application"); err == nil {
		app := appProp.ToIDispatch()
		if cellProp, err := oleutil.GetProperty(app, "ActiveCell"); err == nil {
			cell := cellProp.ToIDispatch()
			if addr, err := oleutil.GetProperty(cell, "Address"); err == nil {
				info.ActiveCell = addr.ToString()
			}
			cell.Release()
		}
		app.Release()
	}
	return info, nil
}

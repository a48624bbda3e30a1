package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"binder/internal/excel"
)

// FakeBridge is a scriptable in-memory excel.Bridge. Fields may be seeded
// before use; mutating methods record their calls for assertions.
type FakeBridge struct {
	mu sync.Mutex

	Infos      []excel.WorkbookInfo
	Cells      map[string][]excel.CellFormula
	Sources    map[string][]string
	SaveErrors map[string][]error

	// TouchOnSave advances the workbook file's modification time on each
	// successful save, matching what a real save does on disk.
	TouchOnSave bool
	OpenErr     error
	OpenErrOnce bool
	UpdateErr   error
	FormulasErr error
	SourcesErr  error

	Saves     []string
	Closed    []string
	Activated []string
	Updated   []string
	Opened    []string
	Released  int
}

// NewFakeBridge builds a fake bridge seeded with the given workbooks.
func NewFakeBridge(infos ...excel.WorkbookInfo) *FakeBridge {
	return &FakeBridge{
		Infos:       infos,
		Cells:       make(map[string][]excel.CellFormula),
		Sources:     make(map[string][]string),
		SaveErrors:  make(map[string][]error),
		TouchOnSave: true,
	}
}

func (b *FakeBridge) Workbooks(ctx context.Context) ([]excel.WorkbookInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]excel.WorkbookInfo, len(b.Infos))
	copy(out, b.Infos)
	return out, nil
}

func (b *FakeBridge) OpenWorkbook(ctx context.Context, path string, opts excel.OpenOptions) (excel.WorkbookInfo, error) {
	if err := ctx.Err(); err != nil {
		return excel.WorkbookInfo{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Opened = append(b.Opened, path)
	if b.OpenErr != nil {
		err := b.OpenErr
		if b.OpenErrOnce {
			b.OpenErr = nil
		}
		return excel.WorkbookInfo{}, err
	}
	info := excel.WorkbookInfo{
		Name:     filepath.Base(path),
		FullPath: path,
		Saved:    true,
		ReadOnly: opts.ReadOnly,
	}
	b.Infos = append(b.Infos, info)
	return info, nil
}

func (b *FakeBridge) SaveWorkbook(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Saves = append(b.Saves, name)
	if errs := b.SaveErrors[name]; len(errs) > 0 {
		err := errs[0]
		b.SaveErrors[name] = errs[1:]
		if err != nil {
			return err
		}
	}
	if !b.TouchOnSave {
		return nil
	}
	for _, info := range b.Infos {
		if info.Name != name || info.FullPath == "" {
			continue
		}
		if _, err := os.Stat(info.FullPath); err != nil {
			continue
		}
		future := time.Now().Add(time.Hour)
		if err := os.Chtimes(info.FullPath, future, future); err != nil {
			return fmt.Errorf("touch %s: %w", info.FullPath, err)
		}
	}
	return nil
}

func (b *FakeBridge) CloseWorkbook(ctx context.Context, name string, save bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = append(b.Closed, name)
	kept := b.Infos[:0]
	for _, info := range b.Infos {
		if info.Name != name {
			kept = append(kept, info)
		}
	}
	b.Infos = kept
	return nil
}

func (b *FakeBridge) ActivateWorkbook(ctx context.Context, name, sheet, cell string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Activated = append(b.Activated, name+"|"+sheet+"|"+cell)
	return nil
}

func (b *FakeBridge) UpdateLink(ctx context.Context, workbook, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Updated = append(b.Updated, workbook+"|"+target)
	return b.UpdateErr
}

func (b *FakeBridge) LinkSources(ctx context.Context, workbook string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SourcesErr != nil {
		return nil, b.SourcesErr
	}
	return b.Sources[workbook], nil
}

func (b *FakeBridge) Formulas(ctx context.Context, workbook string, fn func(excel.CellFormula) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	if b.FormulasErr != nil {
		b.mu.Unlock()
		return b.FormulasErr
	}
	cells := make([]excel.CellFormula, len(b.Cells[workbook]))
	copy(cells, b.Cells[workbook])
	b.mu.Unlock()
	for _, cell := range cells {
		if err := fn(cell); err != nil {
			return err
		}
	}
	return nil
}

func (b *FakeBridge) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Released++
}

// MarkUnsaved flips the Saved flag for the named workbook.
func (b *FakeBridge) MarkUnsaved(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Infos {
		if b.Infos[i].Name == name {
			b.Infos[i].Saved = false
		}
	}
}

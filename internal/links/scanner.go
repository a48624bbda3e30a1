package links

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"binder/internal/excel"
	"binder/internal/logging"
)

// Scanner walks open workbooks and collects their external references.
type Scanner struct {
	manager *excel.Manager
	logger  *slog.Logger
}

// NewScanner builds a scanner over manager.
func NewScanner(manager *excel.Manager, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{manager: manager, logger: logger}
}

// Scan collects links from every open workbook. Workbooks that fail to scan
// are recorded in the result's Errors and do not abort the pass.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	result := &ScanResult{StartedAt: time.Now()}

	infos, err := s.manager.Workbooks(ctx)
	if err != nil {
		return nil, err
	}

	workbooksWithLinks := make(map[string]struct{})
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Workbooks = append(result.Workbooks, info.Name)
		found, err := s.scanWorkbook(ctx, info)
		if err != nil {
			// Keep whatever the workbook yielded before the failure.
			s.logger.Warn("workbook scan failed",
				logging.String(logging.FieldWorkbook, info.Name),
				logging.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", info.Name, err))
		}
		if len(found) > 0 {
			workbooksWithLinks[info.Name] = struct{}{}
			result.Links = append(result.Links, found...)
		}
	}

	result.Groups = BuildGroups(result.Links)
	result.Stats = BuildStats(result.Links)
	result.Stats.TotalWorkbooks = len(infos)
	result.Stats.WorkbooksWithLinks = len(workbooksWithLinks)
	result.FinishedAt = time.Now()

	s.logger.Info("scan completed",
		logging.Int("workbooks", result.Stats.TotalWorkbooks),
		logging.Int("links", result.Stats.TotalLinks),
		logging.Int("unique_targets", result.Stats.UniqueTargets),
		logging.Duration("duration", result.Duration()))
	return result, nil
}

func (s *Scanner) scanWorkbook(ctx context.Context, info excel.WorkbookInfo) ([]Link, error) {
	var found []Link
	seen := make(map[string]struct{})

	record := func(link Link) {
		key := link.SourceSheet + "\x00" + link.SourceCell + "\x00" + link.TargetFile
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		found = append(found, link)
	}

	// Declared link sources first: full paths, no cell context.
	sources, err := s.manager.LinkSources(ctx, info.Name)
	if err != nil {
		s.logger.Debug("link sources unavailable",
			logging.String(logging.FieldWorkbook, info.Name),
			logging.Error(err))
	}
	for _, source := range sources {
		record(Link{
			SourceWorkbook: info.Name,
			TargetFile:     baseName(source),
			TargetPath:     source,
			Formula:        "LinkSource: " + source,
			Kind:           KindLinkSource,
		})
	}

	// Then formula text, one link per referenced file per cell.
	err = s.manager.Formulas(ctx, info.Name, func(cf excel.CellFormula) error {
		if !HasExternalReference(cf.Formula) {
			return nil
		}
		for _, target := range ExtractTargets(cf.Formula) {
			record(Link{
				SourceWorkbook: info.Name,
				SourceSheet:    cf.Sheet,
				SourceCell:     cf.Cell,
				TargetFile:     target,
				Formula:        cf.Formula,
				Kind:           KindFormula,
			})
		}
		return nil
	})
	if err != nil {
		return found, err
	}
	return found, nil
}

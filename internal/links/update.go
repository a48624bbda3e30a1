package links

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"binder/internal/config"
	"binder/internal/excel"
	"binder/internal/logging"
)

// Action is the planned handling for one link target.
type Action string

const (
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// SkipReason explains why a target was not updated.
type SkipReason string

const (
	SkipStale   SkipReason = "stale"
	SkipOpen    SkipReason = "open"
	SkipMissing SkipReason = "missing"
)

// Decision is the verdict for one link source within one workbook.
type Decision struct {
	Workbook   string     `json:"workbook"`
	Target     string     `json:"target"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	Action     Action     `json:"action"`
	Reason     SkipReason `json:"reason,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	Err        string     `json:"error,omitempty"`
	Updated    bool       `json:"updated,omitempty"`
}

// DaysAgo renders the age of the target for display, matching the run log
// caption.
func (d Decision) DaysAgo(now time.Time) string {
	if d.ModifiedAt == nil {
		return ""
	}
	days := int(now.Sub(*d.ModifiedAt).Hours() / 24)
	return fmt.Sprintf("(%d days ago)", days)
}

// WorkbookPlan groups the decisions for one open workbook.
type WorkbookPlan struct {
	Workbook  string     `json:"workbook"`
	Path      string     `json:"path"`
	Decisions []Decision `json:"decisions,omitempty"`
	Err       string     `json:"error,omitempty"`
}

// UpdatePlan is the outcome of the decision pass over every open workbook.
type UpdatePlan struct {
	CheckDays int            `json:"check_days"`
	Threshold time.Time      `json:"threshold"`
	StartedAt time.Time      `json:"started_at"`
	Workbooks []WorkbookPlan `json:"workbooks"`
}

// Counts returns how many targets the plan updates and skips.
func (p *UpdatePlan) Counts() (updates, skips int) {
	for _, wp := range p.Workbooks {
		for _, d := range wp.Decisions {
			switch d.Action {
			case ActionUpdate:
				updates++
			case ActionSkip:
				skips++
			}
		}
	}
	return updates, skips
}

// SummaryRows flattens the plan into scan summary rows of
// [folder, workbook, linkage]. Workbooks without link sources produce a
// single "No external links found" row.
func (p *UpdatePlan) SummaryRows() [][3]string {
	var rows [][3]string
	for _, wp := range p.Workbooks {
		folder := filepath.Dir(wp.Path)
		name := filepath.Base(wp.Path)
		if wp.Path == "" {
			folder, name = "", wp.Workbook
		}
		if len(wp.Decisions) == 0 {
			rows = append(rows, [3]string{folder, name, "No external links found"})
			continue
		}
		for _, d := range wp.Decisions {
			rows = append(rows, [3]string{folder, name, d.Target})
		}
	}
	return rows
}

// UpdateSummary totals one executed update run.
type UpdateSummary struct {
	Workbooks  int       `json:"workbooks"`
	Checked    int       `json:"checked"`
	Updated    int       `json:"updated"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns the wall-clock span of the run.
func (s *UpdateSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// CutoffMessage names the threshold an update run applies.
func CutoffMessage(checkDays int, now time.Time) string {
	threshold := now.Add(-time.Duration(checkDays) * 24 * time.Hour)
	return fmt.Sprintf("Only links modified on or after %s will be updated.",
		threshold.Format("2006-01-02 15:04:05"))
}

// Updater plans and executes link update runs over the manager's open
// workbooks.
type Updater struct {
	manager   *excel.Manager
	logger    *slog.Logger
	checkDays int
	now       func() time.Time
}

// NewUpdater builds an updater using the links section of cfg.
func NewUpdater(manager *excel.Manager, cfg *config.Config, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Updater{
		manager:   manager,
		logger:    logger,
		checkDays: cfg.Links.CheckDays,
		now:       time.Now,
	}
}

// Plan stats every declared link source of every open workbook and decides
// per target: update when the source file changed within the check window
// and is not itself open, otherwise skip with a reason. Workbooks whose
// link registry cannot be read are recorded and do not abort the pass.
func (u *Updater) Plan(ctx context.Context) (*UpdatePlan, error) {
	now := u.now()
	plan := &UpdatePlan{
		CheckDays: u.checkDays,
		Threshold: now.Add(-time.Duration(u.checkDays) * 24 * time.Hour),
		StartedAt: now,
	}

	infos, err := u.manager.Workbooks(ctx)
	if err != nil {
		return nil, err
	}

	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		wp := WorkbookPlan{Workbook: info.Name, Path: info.FullPath}
		sources, err := u.manager.LinkSources(ctx, info.Name)
		if err != nil {
			wp.Err = err.Error()
			u.logger.Warn("link sources unavailable",
				logging.String(logging.FieldWorkbook, info.Name),
				logging.Error(err))
			plan.Workbooks = append(plan.Workbooks, wp)
			continue
		}
		for _, source := range sources {
			wp.Decisions = append(wp.Decisions, u.decide(infos, info.Name, source, plan.Threshold))
		}
		plan.Workbooks = append(plan.Workbooks, wp)
	}
	return plan, nil
}

func (u *Updater) decide(open []excel.WorkbookInfo, workbook, target string, threshold time.Time) Decision {
	decision := Decision{Workbook: workbook, Target: target}

	fi, err := os.Stat(target)
	if err != nil {
		decision.Action = ActionSkip
		decision.Reason = SkipMissing
		decision.Detail = "Source file not accessible. Update skipped."
		return decision
	}
	modified := fi.ModTime()
	decision.ModifiedAt = &modified

	if modified.Before(threshold) {
		decision.Action = ActionSkip
		decision.Reason = SkipStale
		decision.Detail = fmt.Sprintf("No update needed (source file not modified within %d days).", u.checkDays)
		return decision
	}
	if targetOpen(open, target) {
		decision.Action = ActionSkip
		decision.Reason = SkipOpen
		decision.Detail = "Source file currently open. Update skipped (data refreshed in open workbook)."
		return decision
	}

	decision.Action = ActionUpdate
	decision.Detail = "Proceeding to update external link."
	return decision
}

// targetOpen reports whether the target path belongs to a currently open
// workbook. Inode identity is preferred; spelling comparison covers paths
// that no longer stat.
func targetOpen(open []excel.WorkbookInfo, target string) bool {
	targetInfo, targetErr := os.Stat(target)
	for _, wb := range open {
		if wb.FullPath == "" {
			continue
		}
		if targetErr == nil {
			if wbInfo, err := os.Stat(wb.FullPath); err == nil && os.SameFile(targetInfo, wbInfo) {
				return true
			}
		}
		if strings.EqualFold(filepath.Clean(wb.FullPath), filepath.Clean(target)) {
			return true
		}
	}
	return false
}

// Execute runs the update decisions of plan. Failures are recorded on the
// decision and counted; they do not abort the run.
func (u *Updater) Execute(ctx context.Context, plan *UpdatePlan) (*UpdateSummary, error) {
	summary := &UpdateSummary{
		Workbooks: len(plan.Workbooks),
		StartedAt: time.Now(),
	}

	for i := range plan.Workbooks {
		wp := &plan.Workbooks[i]
		for j := range wp.Decisions {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			decision := &wp.Decisions[j]
			summary.Checked++
			if decision.Action != ActionUpdate {
				summary.Skipped++
				continue
			}
			if err := u.manager.UpdateLink(ctx, decision.Workbook, decision.Target); err != nil {
				decision.Err = err.Error()
				summary.Failed++
				u.logger.Warn("link update failed",
					logging.String(logging.FieldWorkbook, decision.Workbook),
					logging.String("target", decision.Target),
					logging.Error(err))
				continue
			}
			decision.Updated = true
			summary.Updated++
			u.logger.Info("link updated",
				logging.String(logging.FieldWorkbook, decision.Workbook),
				logging.String("target", decision.Target))
		}
	}

	summary.FinishedAt = time.Now()
	u.logger.Info("link update completed",
		logging.Int("workbooks", summary.Workbooks),
		logging.Int("updated", summary.Updated),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Duration("duration", summary.Duration()))
	return summary, nil
}

// Run plans and immediately executes an update pass.
func (u *Updater) Run(ctx context.Context) (*UpdatePlan, *UpdateSummary, error) {
	plan, err := u.Plan(ctx)
	if err != nil {
		return nil, nil, err
	}
	summary, err := u.Execute(ctx, plan)
	if err != nil {
		return plan, summary, err
	}
	return plan, summary, nil
}

package procs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"binder/internal/config"
	"binder/internal/logging"
)

// StatusZombie is the gopsutil status string for a zombie process.
const StatusZombie = "zombie"

// Supervisor filters the process table down to Excel processes and applies
// cleanup and health policies from configuration.
type Supervisor struct {
	lister Lister
	logger *slog.Logger

	match           string
	memoryWarningMB int
	countWarning    int
	countCritical   int
	terminateWait   time.Duration
	forceCloseWait  time.Duration
	gracefulPause   time.Duration
	poll            time.Duration
}

// Option adjusts supervisor timing, mainly for tests.
type Option func(*Supervisor)

// WithWaits overrides the terminate and force-close wait windows.
func WithWaits(terminate, forceClose time.Duration) Option {
	return func(s *Supervisor) {
		s.terminateWait = terminate
		s.forceCloseWait = forceClose
	}
}

// WithGracefulPause overrides the pause after a graceful quit request.
func WithGracefulPause(d time.Duration) Option {
	return func(s *Supervisor) { s.gracefulPause = d }
}

// WithPollInterval overrides how often a terminated process is re-checked.
func WithPollInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.poll = d }
}

// NewSupervisor wires a supervisor over lister using the excel and procs
// sections of cfg.
func NewSupervisor(lister Lister, cfg *config.Config, logger *slog.Logger, opts ...Option) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Supervisor{
		lister:          lister,
		logger:          logger,
		match:           strings.ToLower(cfg.Excel.ProcessName),
		memoryWarningMB: cfg.Procs.MemoryWarningMB,
		countWarning:    cfg.Procs.CountWarning,
		countCritical:   cfg.Procs.CountCritical,
		terminateWait:   time.Duration(cfg.Procs.TerminateWaitSeconds) * time.Second,
		forceCloseWait:  time.Duration(cfg.Procs.ForceCloseWaitSeconds) * time.Second,
		gracefulPause:   2 * time.Second,
		poll:            50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List snapshots the matched processes. Processes whose name cannot be read
// are skipped, matching how a partially visible process table behaves.
func (s *Supervisor) List(ctx context.Context) ([]Process, error) {
	matched, err := s.matched(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Process, 0, len(matched))
	for _, m := range matched {
		snap := Process{PID: m.proc.PID(), Name: m.name}
		if statuses, err := m.proc.Status(ctx); err == nil && len(statuses) > 0 {
			snap.Status = statuses[0]
			snap.Zombie = hasStatus(statuses, StatusZombie)
		}
		if created, err := m.proc.CreateTime(ctx); err == nil {
			snap.Created = created
		}
		if mb, err := m.proc.MemoryMB(ctx); err == nil {
			snap.MemoryMB = math.Round(mb*10) / 10
		}
		out = append(out, snap)
	}
	return out, nil
}

// Running reports whether any matched process exists.
func (s *Supervisor) Running(ctx context.Context) (bool, error) {
	matched, err := s.matched(ctx)
	if err != nil {
		return false, err
	}
	return len(matched) > 0, nil
}

// CleanupResult reports which processes a cleanup touched.
type CleanupResult struct {
	Matched int     `json:"matched"`
	Cleaned []int32 `json:"cleaned,omitempty"`
	Forced  []int32 `json:"forced,omitempty"`
}

// CleanupZombies terminates matched zombie processes, escalating to kill when
// a process survives the terminate wait. Stale table entries that are no
// longer running are reaped too.
func (s *Supervisor) CleanupZombies(ctx context.Context) (*CleanupResult, error) {
	matched, err := s.matched(ctx)
	if err != nil {
		return nil, err
	}
	result := &CleanupResult{Matched: len(matched)}
	for _, m := range matched {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		statuses, err := m.proc.Status(ctx)
		if err == nil && hasStatus(statuses, StatusZombie) {
			s.reap(ctx, m, s.terminateWait, result)
			continue
		}
		if running, err := m.proc.Running(ctx); err == nil && !running {
			_ = m.proc.Terminate(ctx)
			result.Cleaned = append(result.Cleaned, m.proc.PID())
			s.logger.Info("cleaned up non-running excel process",
				logging.Int("pid", int(m.proc.PID())))
		}
	}
	s.logCleanup("zombie cleanup finished", result)
	return result, nil
}

// ForceCloseAll closes every matched process. When graceful is non-nil it
// runs first (the agent passes a bridge quit) and the supervisor pauses to
// let Excel exit on its own before terminating what remains.
func (s *Supervisor) ForceCloseAll(ctx context.Context, graceful func(context.Context) error) (*CleanupResult, error) {
	if graceful != nil {
		if err := graceful(ctx); err != nil {
			s.logger.Debug("graceful excel quit failed", logging.Error(err))
		} else if s.gracefulPause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.gracefulPause):
			}
		}
	}

	matched, err := s.matched(ctx)
	if err != nil {
		return nil, err
	}
	result := &CleanupResult{Matched: len(matched)}
	for _, m := range matched {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		s.reap(ctx, m, s.forceCloseWait, result)
	}
	s.logCleanup("force close finished", result)
	return result, nil
}

// reap terminates one process and escalates to kill after wait.
func (s *Supervisor) reap(ctx context.Context, m matchedProc, wait time.Duration, result *CleanupResult) {
	if err := m.proc.Terminate(ctx); err != nil {
		s.logger.Debug("terminate failed",
			logging.Int("pid", int(m.proc.PID())),
			logging.Error(err))
		return
	}
	if s.waitGone(ctx, m.proc, wait) {
		result.Cleaned = append(result.Cleaned, m.proc.PID())
		s.logger.Info("terminated excel process",
			logging.Int("pid", int(m.proc.PID())),
			logging.String("name", m.name))
		return
	}
	if err := m.proc.Kill(ctx); err != nil {
		s.logger.Warn("kill failed",
			logging.Int("pid", int(m.proc.PID())),
			logging.Error(err))
		return
	}
	result.Cleaned = append(result.Cleaned, m.proc.PID())
	result.Forced = append(result.Forced, m.proc.PID())
	s.logger.Warn("force killed excel process",
		logging.Int("pid", int(m.proc.PID())),
		logging.String("name", m.name))
}

func (s *Supervisor) waitGone(ctx context.Context, p Proc, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for {
		running, err := p.Running(ctx)
		if err != nil || !running {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.poll):
		}
	}
}

func (s *Supervisor) logCleanup(msg string, result *CleanupResult) {
	s.logger.Info(msg,
		logging.Int("matched", result.Matched),
		logging.Int("cleaned", len(result.Cleaned)),
		logging.Int("forced", len(result.Forced)))
}

// HealthReport summarizes the matched processes against the configured
// thresholds.
type HealthReport struct {
	Total           int       `json:"total"`
	Zombies         int       `json:"zombies"`
	HighMemory      int       `json:"high_memory"`
	Processes       []Process `json:"processes,omitempty"`
	Recommendations []string  `json:"recommendations"`
}

// Health inspects the matched processes and attaches recommendations.
func (s *Supervisor) Health(ctx context.Context) (*HealthReport, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	report := &HealthReport{Total: len(list), Processes: list}
	for _, p := range list {
		if p.Zombie {
			report.Zombies++
		}
		if p.MemoryMB > float64(s.memoryWarningMB) {
			report.HighMemory++
		}
	}

	if report.Zombies > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Found %d zombie process(es). Consider running cleanup.", report.Zombies))
	}
	if report.HighMemory > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Found %d high-memory process(es). Consider restarting Excel.", report.HighMemory))
	}
	switch {
	case report.Total > s.countCritical:
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Found %d Excel processes (critical threshold %d). Close unused instances.", report.Total, s.countCritical))
	case report.Total > s.countWarning:
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Found %d Excel processes. Consider closing unused instances.", report.Total))
	}
	if len(report.Recommendations) == 0 {
		report.Recommendations = append(report.Recommendations, "Excel processes are healthy.")
	}
	return report, nil
}

type matchedProc struct {
	proc Proc
	name string
}

func (s *Supervisor) matched(ctx context.Context) ([]matchedProc, error) {
	procs, err := s.lister.Processes(ctx)
	if err != nil {
		return nil, err
	}
	var out []matchedProc
	for _, p := range procs {
		name, err := p.Name(ctx)
		if err != nil {
			continue
		}
		if !strings.Contains(strings.ToLower(name), s.match) {
			continue
		}
		out = append(out, matchedProc{proc: p, name: name})
	}
	return out, nil
}

func hasStatus(statuses []string, want string) bool {
	for _, status := range statuses {
		if strings.EqualFold(status, want) {
			return true
		}
	}
	return false
}

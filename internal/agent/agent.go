package agent

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"binder/internal/config"
	"binder/internal/excel"
	"binder/internal/history"
	"binder/internal/logging"
	"binder/internal/notifications"
	"binder/internal/perfmon"
	"binder/internal/procs"
	"binder/internal/services"
	"binder/internal/textutil"
)

// call is one unit of bridge work executed on the dispatch goroutine.
type call struct {
	ctx  context.Context
	fn   func(context.Context, *excel.Manager) error
	done chan error
}

// BridgeFactory produces the Excel bridge the dispatch goroutine drives.
// The returned bool reports whether the bridge talks to a live Excel
// instance rather than workspace files.
type BridgeFactory func(cfg *config.Config, logger *slog.Logger) (excel.Bridge, bool, error)

// DefaultBridgeFactory attaches to live Excel, falling back to the
// read-only workspace bridge on platforms without COM automation.
func DefaultBridgeFactory(cfg *config.Config, logger *slog.Logger) (excel.Bridge, bool, error) {
	bridge, err := excel.NewLiveBridge(logger)
	if err == nil {
		return bridge, true, nil
	}
	if !errors.Is(err, services.ErrUnsupported) {
		return nil, false, err
	}
	logger.Info("live Excel automation unavailable, serving workbooks from the workspace directory",
		logging.String("workspace", cfg.Paths.WorkspaceDir))
	ws, wsErr := excel.NewWorkspaceBridge(cfg.Paths.WorkspaceDir, logger)
	return ws, false, wsErr
}

// Agent owns the binder subsystems and serializes every Excel bridge call
// through one dispatch goroutine pinned to its OS thread.
type Agent struct {
	cfg      *config.Config
	logger   *slog.Logger
	history  *history.Store
	procs    *procs.Supervisor
	monitor  *perfmon.Monitor
	notifier notifications.Service

	newBridge BridgeFactory
	lister    procs.Lister
	probe     perfmon.Probe

	lockPath string
	pidPath  string
	lock     *flock.Flock

	calls chan *call

	mu      sync.Mutex
	running atomic.Bool
	live    atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	wg      sync.WaitGroup
}

// Option adjusts agent construction, mainly for tests.
type Option func(*Agent)

// WithBridgeFactory overrides how the dispatch goroutine acquires its bridge.
func WithBridgeFactory(factory BridgeFactory) Option {
	return func(a *Agent) { a.newBridge = factory }
}

// WithNotifier substitutes the notification service.
func WithNotifier(svc notifications.Service) Option {
	return func(a *Agent) { a.notifier = svc }
}

// WithLister substitutes the process lister feeding the supervisor.
func WithLister(lister procs.Lister) Option {
	return func(a *Agent) { a.lister = lister }
}

// WithProbe substitutes the system probe feeding the performance monitor.
func WithProbe(probe perfmon.Probe) Option {
	return func(a *Agent) { a.probe = probe }
}

// New wires the agent subsystems. The Excel bridge itself is not created
// until Start, on the dispatch goroutine.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Agent, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "agent", "new", "configuration is required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := history.Open(cfg)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "agent"),
		history:   store,
		notifier:  notifications.NewService(cfg),
		newBridge: DefaultBridgeFactory,
		lister:    procs.SystemLister{},
		lockPath:  cfg.LockFilePath(),
		pidPath:   cfg.PIDFilePath(),
		calls:     make(chan *call),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.lock = flock.New(a.lockPath)
	a.procs = procs.NewSupervisor(a.lister, cfg, logger)

	monitorOpts := []perfmon.Option{perfmon.WithProcessCounter(a.excelProcessCount)}
	if a.probe != nil {
		monitorOpts = append(monitorOpts, perfmon.WithProbe(a.probe))
	}
	a.monitor = perfmon.NewMonitor(cfg, logger, monitorOpts...)
	a.monitor.OnEvent(a.onPerfEvent)

	return a, nil
}

// Start acquires the instance lock, writes the pid file, brings up the
// dispatch goroutine with its bridge, and starts the system sampler.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running.Load() {
		return services.Wrap(services.ErrValidation, "agent", "start", "agent already running", nil)
	}

	ok, err := a.lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "agent", "start", "acquire instance lock", err)
	}
	if !ok {
		return services.Wrap(services.ErrValidation, "agent", "start", "another binder agent is already running", nil)
	}

	if err := os.WriteFile(a.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		_ = a.lock.Unlock()
		return services.Wrap(services.ErrConfiguration, "agent", "start", "write pid file", err)
	}

	a.ctx, a.cancel = context.WithCancel(ctx)
	a.stopped = make(chan struct{})

	ready := make(chan error, 1)
	a.wg.Add(1)
	go a.dispatchLoop(ready)
	if err := <-ready; err != nil {
		a.cancel()
		a.wg.Wait()
		_ = os.Remove(a.pidPath)
		_ = a.lock.Unlock()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.monitor.Run(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("performance sampler stopped", logging.Error(err))
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.cleanupArtifacts(a.ctx)
	}()

	a.running.Store(true)
	a.logger.Info("binder agent started",
		logging.String("lock", a.lockPath),
		logging.String("bridge", textutil.Ternary(a.live.Load(), "live", "workspace")))
	return nil
}

// Stop cancels the sampler and dispatch loop, releases the bridge, and
// drops the lock and pid files. Safe to call when not running.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running.Load() {
		return
	}

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if err := a.lock.Unlock(); err != nil {
		a.logger.Warn("failed to release instance lock", logging.Error(err))
	}
	if err := os.Remove(a.pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.logger.Warn("failed to remove pid file", logging.Error(err))
	}
	a.running.Store(false)
	close(a.stopped)
	a.logger.Info("binder agent stopped")
}

// Done returns a channel closed once a started agent has fully stopped.
// Before Start it returns nil, which never becomes ready.
func (a *Agent) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

// Close stops the agent and releases the history store.
func (a *Agent) Close() error {
	a.Stop()
	return a.history.Close()
}

// Status is a point-in-time snapshot of the agent.
type Status struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid"`
	Platform      string `json:"platform"`
	LiveBridge    bool   `json:"live_bridge"`
	OpenWorkbooks int    `json:"open_workbooks"`
	SocketPath    string `json:"socket_path"`
	LockPath      string `json:"lock_path"`
	HistoryDBPath string `json:"history_db_path"`
}

// Status reports the agent snapshot. The open workbook count is best
// effort and stays zero when the bridge cannot be queried.
func (a *Agent) Status(ctx context.Context) Status {
	st := Status{
		Running:       a.running.Load(),
		Platform:      runtime.GOOS,
		LiveBridge:    a.live.Load(),
		SocketPath:    a.cfg.SocketPath(),
		LockPath:      a.lockPath,
		HistoryDBPath: a.history.Path(),
	}
	if !st.Running {
		return st
	}
	st.PID = os.Getpid()
	if infos, err := a.Workbooks(ctx); err == nil {
		st.OpenWorkbooks = len(infos)
	}
	return st
}

// dispatchLoop creates the bridge and executes submitted calls serially
// until the agent context is canceled. The live bridge binds to the COM
// apartment of its creating thread, so creation, use, and release all
// happen here with the thread pinned.
func (a *Agent) dispatchLoop(ready chan<- error) {
	defer a.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	bridge, live, err := a.newBridge(a.cfg, a.logger)
	if err != nil {
		ready <- err
		return
	}
	a.live.Store(live)
	manager := excel.NewManager(bridge, a.cfg, a.logger, a.monitor)
	ready <- nil

	defer bridge.Release()
	for {
		select {
		case <-a.ctx.Done():
			return
		case c := <-a.calls:
			c.done <- c.fn(c.ctx, manager)
		}
	}
}

// dispatch submits fn to the bridge goroutine and waits for it. The
// caller's context aborts the wait but not work already executing.
func (a *Agent) dispatch(ctx context.Context, fn func(context.Context, *excel.Manager) error) error {
	if !a.running.Load() {
		return services.Wrap(services.ErrValidation, "agent", "dispatch", "agent is not running", nil)
	}
	c := &call{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case a.calls <- c:
	case <-a.ctx.Done():
		return services.Wrap(services.ErrTransient, "agent", "dispatch", "agent is shutting down", a.ctx.Err())
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Agent) excelProcessCount(ctx context.Context) (int, error) {
	list, err := a.procs.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// onPerfEvent forwards critical threshold crossings to the notifier.
// Warning-level events stay local; they already land in the report.
func (a *Agent) onPerfEvent(event perfmon.Event) {
	if event.Type != perfmon.EventThresholdExceeded {
		return
	}
	critical := event.CPUPercent >= a.cfg.Monitor.CPUCriticalPercent ||
		event.MemoryPercent >= a.cfg.Monitor.MemoryCriticalPercent
	if !critical {
		return
	}
	issues := strings.Join(event.Issues, "; ")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.notifier.Publish(ctx, notifications.EventPerformanceAlert, notifications.Payload{
			"issues": issues,
		}); err != nil {
			a.logger.Warn("performance alert notification failed", logging.Error(err))
		}
	}()
}

// cleanupArtifacts prunes old run logs and history rows per the
// retention setting.
func (a *Agent) cleanupArtifacts(ctx context.Context) {
	days := a.cfg.Logging.RetentionDays
	if days <= 0 {
		return
	}
	logging.CleanupOldLogs(a.logger, days,
		logging.RetentionTarget{
			Dir:     a.cfg.Paths.LogDir,
			Pattern: "*.log",
			Exclude: []string{filepath.Join(a.cfg.Paths.LogDir, "binder.log")},
		},
		logging.RetentionTarget{Dir: a.cfg.Paths.ReportDir, Pattern: "link_update_log_*.txt"},
		logging.RetentionTarget{Dir: a.cfg.Paths.ReportDir, Pattern: "link_scan_summary_*.xlsx"},
	)
	removed, err := a.history.Prune(ctx, days)
	if err != nil {
		a.logger.Warn("history prune failed", logging.Error(err))
		return
	}
	if removed > 0 {
		a.logger.Info("history pruned",
			logging.Int64("removed", removed),
			logging.Int("retention_days", days))
	}
}

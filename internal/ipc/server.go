package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"binder/internal/agent"
	"binder/internal/history"
	"binder/internal/logging"
)

// Server exposes agent control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	agent     *agent.Agent
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, a *agent.Agent, logger *slog.Logger) (*Server, error) {
	if a == nil {
		return nil, errors.New("ipc server requires agent")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{agent: a, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Binder", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		agent:     a,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the agent if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun binder stop"))
	}
}

type service struct {
	agent  *agent.Agent
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.agent.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.Platform = status.Platform
	resp.LiveBridge = status.LiveBridge
	resp.OpenWorkbooks = status.OpenWorkbooks
	resp.SocketPath = status.SocketPath
	resp.LockPath = status.LockPath
	resp.HistoryDBPath = status.HistoryDBPath
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("agent stop requested")
	s.agent.Stop()
	resp.Stopped = true
	s.log().Info("agent stopped via IPC",
		logging.String(logging.FieldEventType, "agent_stop"))
	return nil
}

func (s *service) Workbooks(_ WorkbooksRequest, resp *WorkbooksResponse) error {
	infos, err := s.agent.Workbooks(s.ctx)
	if err != nil {
		return err
	}
	resp.Workbooks = infos
	return nil
}

// Save runs a save pass. Per-workbook failures are carried in the
// results rather than as an RPC error so the caller still sees the
// outcomes of the workbooks that did save.
func (s *service) Save(req SaveRequest, resp *SaveResponse) error {
	s.log().Debug("save requested", logging.Int("workbook_count", len(req.Names)))
	results, err := s.agent.SaveWorkbooks(s.ctx, req.Names)
	if len(results) == 0 && err != nil {
		return err
	}
	resp.Results = results
	return nil
}

func (s *service) Close(req CloseRequest, resp *CloseResponse) error {
	s.log().Debug("close requested",
		logging.Int("workbook_count", len(req.Names)),
		logging.Bool("save", req.Save))
	closed, err := s.agent.CloseWorkbooks(s.ctx, req.Names, req.Save)
	if closed == 0 && err != nil {
		return err
	}
	resp.Closed = closed
	return nil
}

func (s *service) Activate(req ActivateRequest, resp *ActivateResponse) error {
	if err := s.agent.Activate(s.ctx, req.Name, req.Sheet, req.Cell); err != nil {
		return err
	}
	resp.Activated = true
	return nil
}

func (s *service) SessionSave(req SessionSaveRequest, resp *SessionSaveResponse) error {
	path, err := s.agent.SessionSave(s.ctx, req.Name)
	if err != nil {
		return err
	}
	resp.Path = path
	s.log().Info("session saved via IPC",
		logging.String(logging.FieldEventType, "session_save"),
		logging.String("path", path))
	return nil
}

func (s *service) SessionLoad(req SessionLoadRequest, resp *SessionLoadResponse) error {
	result, err := s.agent.SessionLoad(s.ctx, req.Path, req.Force)
	if result == nil {
		return err
	}
	resp.Result = *result
	return nil
}

func (s *service) SessionList(_ SessionListRequest, resp *SessionListResponse) error {
	sessions, err := s.agent.SessionList(s.ctx)
	if err != nil {
		return err
	}
	resp.Sessions = sessions
	return nil
}

func (s *service) SessionExport(req SessionExportRequest, resp *SessionExportResponse) error {
	path, err := s.agent.SessionExport(s.ctx, req.Source, req.Dest)
	if err != nil {
		return err
	}
	resp.Path = path
	return nil
}

func (s *service) LinksScan(_ LinksScanRequest, resp *LinksScanResponse) error {
	s.log().Debug("links scan requested")
	result, err := s.agent.LinksScan(s.ctx)
	if result == nil {
		return err
	}
	resp.Result = *result
	return nil
}

func (s *service) LinksUpdate(_ LinksUpdateRequest, resp *LinksUpdateResponse) error {
	s.log().Debug("links update requested")
	report, err := s.agent.LinksUpdate(s.ctx)
	if report == nil {
		return err
	}
	resp.Report = *report
	s.log().Info("links updated via IPC",
		logging.String(logging.FieldEventType, "links_update"),
		logging.Int("updated_count", report.Summary.Updated),
		logging.Int("failed_count", report.Summary.Failed))
	return nil
}

func (s *service) ProcsHealth(_ ProcsHealthRequest, resp *ProcsHealthResponse) error {
	report, err := s.agent.ProcsHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Report = *report
	return nil
}

func (s *service) ProcsCleanup(_ ProcsCleanupRequest, resp *ProcsCleanupResponse) error {
	s.log().Debug("zombie cleanup requested")
	result, err := s.agent.ProcsCleanup(s.ctx)
	if result == nil {
		return err
	}
	resp.Result = *result
	s.log().Info("zombie cleanup via IPC",
		logging.String(logging.FieldEventType, "procs_cleanup"),
		logging.Int("cleaned_count", len(result.Cleaned)))
	return nil
}

func (s *service) ProcsForceClose(req ProcsForceCloseRequest, resp *ProcsForceCloseResponse) error {
	s.log().Debug("force close requested", logging.Bool("save", req.Save))
	result, err := s.agent.ProcsForceClose(s.ctx, req.Save)
	if result == nil {
		return err
	}
	resp.Result = *result
	s.log().Info("force close via IPC",
		logging.String(logging.FieldEventType, "procs_force_close"),
		logging.Int("cleaned_count", len(result.Cleaned)),
		logging.Int("forced_count", len(result.Forced)))
	return nil
}

func (s *service) PerfReport(_ PerfReportRequest, resp *PerfReportResponse) error {
	report := s.agent.PerfReport(s.ctx)
	if report == nil {
		return errors.New("performance report unavailable")
	}
	resp.Report = *report
	return nil
}

func (s *service) NotifyTest(_ NotifyTestRequest, resp *NotifyTestResponse) error {
	sent, message, err := s.agent.NotifyTest(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) HistoryList(req HistoryListRequest, resp *HistoryListResponse) error {
	runs, err := s.agent.HistoryList(s.ctx, req.Kind, req.Limit)
	if err != nil {
		return err
	}
	resp.Runs = make([]history.RunRecord, 0, len(runs))
	for _, run := range runs {
		if run == nil {
			continue
		}
		resp.Runs = append(resp.Runs, *run)
	}
	return nil
}

func (s *service) HistoryGet(req HistoryGetRequest, resp *HistoryGetResponse) error {
	run, err := s.agent.HistoryGet(s.ctx, req.RunID)
	if err != nil {
		return err
	}
	resp.Run = *run
	return nil
}

func (s *service) HistoryStats(_ HistoryStatsRequest, resp *HistoryStatsResponse) error {
	summary, err := s.agent.HistoryStats(s.ctx)
	if err != nil {
		return err
	}
	resp.Summary = summary
	return nil
}

func (s *service) HistoryClear(_ HistoryClearRequest, resp *HistoryClearResponse) error {
	s.log().Debug("history clear requested")
	removed, err := s.agent.HistoryClear(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("history cleared",
		logging.String(logging.FieldEventType, "history_clear"),
		logging.Int64("removed_count", removed))
	return nil
}

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
	"time"

	"log/slog"

	"ytcourier/internal/daemon"
	"ytcourier/internal/jobstore"
	"ytcourier/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
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
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Courier", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
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
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"))
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
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func summarizeJob(job *jobstore.Job) JobSummary {
	return JobSummary{
		ID:           job.ID,
		OwnerID:      job.OwnerID,
		Status:       string(job.Status),
		Title:        job.Title,
		URL:          job.URL,
		DeliveryKind: string(job.DeliveryKind),
		Phase:        job.ProgressPhase,
		Percent:      job.ProgressPercent,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.BotUsername = status.BotUsername
	resp.StoreDSN = status.StoreDSN
	resp.LockPath = status.LockFilePath
	resp.PID = status.PID
	resp.TotalJobs = status.Jobs.Total
	resp.JobStats = map[string]int{
		string(jobstore.StatusReceived):          status.Jobs.Received,
		string(jobstore.StatusResolving):         status.Jobs.Resolving,
		string(jobstore.StatusAwaitingSelection): status.Jobs.AwaitingSelection,
		string(jobstore.StatusExecuting):         status.Jobs.Executing,
		string(jobstore.StatusUploading):         status.Jobs.Uploading,
		string(jobstore.StatusCompleted):         status.Jobs.Completed,
		string(jobstore.StatusFailed):            status.Jobs.Failed,
		string(jobstore.StatusCancelled):         status.Jobs.Cancelled,
	}
	resp.Dependencies = make([]DependencyStatus, 0, len(status.Dependencies))
	for _, dep := range status.Dependencies {
		resp.Dependencies = append(resp.Dependencies, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return nil
}

func (s *service) JobsList(req JobsListRequest, resp *JobsListResponse) error {
	statuses := make([]jobstore.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		parsed, ok := jobstore.ParseStatus(raw)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	jobs, err := s.daemon.ListJobs(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Jobs = make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		resp.Jobs = append(resp.Jobs, summarizeJob(job))
	}
	return nil
}

func (s *service) JobDescribe(req JobDescribeRequest, resp *JobDescribeResponse) error {
	if req.ID == "" {
		return errors.New("job id is required")
	}
	job, err := s.daemon.GetJob(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Job = summarizeJob(job)
	return nil
}

func (s *service) JobCancel(req JobCancelRequest, resp *JobCancelResponse) error {
	if req.ID == "" {
		return errors.New("job id is required")
	}
	s.log().Debug("job cancel requested", logging.String(logging.FieldJobID, req.ID))
	flagged, err := s.daemon.CancelJob(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Cancelled = flagged
	if flagged {
		s.log().Info("job cancelled via IPC",
			logging.String(logging.FieldJobID, req.ID),
			logging.String(logging.FieldEventType, "job_cancel"))
	}
	return nil
}

func (s *service) JobsClear(_ JobsClearRequest, resp *JobsClearResponse) error {
	removed, err := s.daemon.ClearTerminalJobs(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	if removed > 0 {
		s.log().Info("finished jobs cleared via IPC",
			logging.Int64("removed", removed),
			logging.String(logging.FieldEventType, "jobs_clear"))
	}
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

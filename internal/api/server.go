package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/clipper/clipper-server/internal/catalog"
	"github.com/clipper/clipper-server/internal/identity"
	"github.com/clipper/clipper-server/internal/mirror"
	"github.com/clipper/clipper-server/internal/project"
	"github.com/clipper/clipper-server/internal/publish"
	"github.com/clipper/clipper-server/internal/transcript"
	"github.com/clipper/clipper-server/internal/worker"
)

// ProjectStore is the part of the project store the handlers use.
type ProjectStore interface {
	Create(ctx context.Context, videoURL string, clips []project.Clip, entries []transcript.Entry, userID string) (project.Project, error)
	UpdateClip(ctx context.Context, projectID string, ref project.ClipRef, patch project.Patch) (project.Clip, error)
	Delete(ctx context.Context, projectID string) error
	SwitchActive(projectID string) (project.Workspace, error)
	SetGeneratedClip(url string)
	Workspace() project.Workspace
	List() []project.Project
	Get(projectID string) (project.Project, error)
	SyncAll(ctx context.Context, userID string) (project.SyncReport, error)
}

// OutboxRunner is the retry loop control surface.
type OutboxRunner interface {
	Pause()
	Resume()
	IsPaused() bool
	IsRunning() bool
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Version        string
	Store          ProjectStore
	Worker         worker.Client
	WorkerURL      string
	Publisher      publish.Publisher
	Tokens         identity.TokenSource
	Verifier       *identity.Verifier
	Users          catalog.UserService
	Outbox         *mirror.Outbox
	Runner         OutboxRunner
	MirrorName     string
	AllowedOrigins []string
	Logger         *slog.Logger
	StartTime      time.Time
	DeviceID       string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/edukit/gradebatch/internal/service"
)

// Server exposes the export engine over HTTP: trigger runs, watch their
// progress, and browse the gradebook behind them.
type Server struct {
	svc *service.Service

	// baseCtx bounds triggered export runs so they outlive the request
	// that started them but not the daemon.
	baseCtx context.Context

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithBaseContext sets the context that background export runs inherit.
// Defaults to context.Background.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) {
		s.baseCtx = ctx
	}
}

func NewServer(svc *service.Service, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		baseCtx: context.Background(),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/export", s.handleExport)
	s.mux.HandleFunc("/api/runs/latest", s.handleLatestRun)
	s.mux.HandleFunc("/api/runs/stream", s.handleRunStream)
	s.mux.HandleFunc("/api/students", s.handleListStudents)
	s.mux.HandleFunc("/api/students/", s.handleStudentGrades)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/internal/runner"
	"github.com/funnyzak/mockflow/internal/storage"
	"github.com/funnyzak/mockflow/internal/web"
)

const shutdownTimeout = 30 * time.Second

// Server HTTP server
type Server struct {
	config  *config.Config
	logger  logger.Logger
	handler *Handler
	runner  *runner.Runner
	web     *web.Service
	httpSrv *http.Server

	baseCtx    context.Context
	cancelBase context.CancelFunc
	procWG     sync.WaitGroup

	mu    sync.Mutex
	addr  net.Addr
	ready chan struct{}
}

// New creates a new server instance around r. The admin API is mounted when
// cfg.Web.Enable is set.
func New(cfg *config.Config, log logger.Logger, r *runner.Runner, store storage.Store) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:     cfg,
		logger:     log,
		runner:     r,
		baseCtx:    baseCtx,
		cancelBase: cancel,
		ready:      make(chan struct{}),
	}

	s.handler = NewHandler(r, log, &HandlerConfig{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Locale:       cfg.Output.Locale,
	}, baseCtx, &s.procWG)

	if cfg.Web.Enable {
		s.web = web.NewService(web.Options{
			Config:  &cfg.Web,
			Runner:  r,
			Store:   store,
			Logger:  log,
			BaseURL: s.BaseURL(),
		})
	}
	return s
}

// BaseURL is the public origin of the mock server.
func (s *Server) BaseURL() string {
	if s.config.Server.BaseURL != "" {
		return s.config.Server.BaseURL
	}
	return fmt.Sprintf("http://localhost:%d", s.config.Server.Port)
}

// Router builds the HTTP routing tree: admin API first, mock endpoints for
// everything else.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	if s.web != nil {
		s.web.RegisterRoutes(router)
	}
	router.PathPrefix("/").Handler(s.handler)

	if s.config.Server.CORS {
		return withCORS(router)
	}
	return router
}

// Start serves until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Server.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.config.Server.Port, err)
	}

	s.httpSrv = &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	close(s.ready)

	adminPath := ""
	if s.web != nil {
		adminPath = s.web.AdminPath()
	}
	s.logger.Info("Starting HTTP server",
		"addr", ln.Addr().String(),
		"admin_path", adminPath,
		"cors", s.config.Server.CORS,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.shutdown()
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
		return s.shutdown()
	}
}

// Ready is closed once the server listens.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listening address, or nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	if s.httpSrv != nil {
		if err = s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("Server forced to shutdown", "error", err)
		}
	}

	// pending history writes finish before the base context goes away
	s.procWG.Wait()
	s.cancelBase()

	if s.web != nil {
		s.web.Close()
	}
	s.logger.Info("Server exited")
	return err
}

// withCORS allows any origin and answers preflight requests directly.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Expose-Headers", "X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Package web exposes the workspace, call history and simulations over a
// JSON admin API with an optional websocket feed of new calls.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/internal/runner"
	"github.com/funnyzak/mockflow/internal/storage"
	"github.com/funnyzak/mockflow/internal/workspace"
	"github.com/funnyzak/mockflow/pkg/endpoint"
)

const (
	sessionCookieName = "mockflow_session"
	defaultAdminPath  = "/_mockflow/api"
	defaultListLimit  = 20
	maxListLimit      = 500
	maxPayloadBytes   = 1 << 20
	contextSessionKey = contextKey("web_session")
	contentTypeJSON   = "application/json"
)

type contextKey string

// Options wires a Service.
type Options struct {
	Config *config.WebConfig
	Runner *runner.Runner
	Store  storage.Store
	Logger logger.Logger
	// BaseURL is the public origin of the mock server, used for snippets and
	// share links.
	BaseURL string
}

// Service bundles the admin API.
type Service struct {
	cfg       *config.WebConfig
	logger    logger.Logger
	runner    *runner.Runner
	workspace *workspace.Service
	store     storage.Store
	auth      *AuthManager
	hub       *WebsocketHub
	formats   []string
	baseURL   string

	cleanupStop chan struct{}
	cleanupWG   sync.WaitGroup
}

// NewService builds a Service and subscribes its websocket hub to the runner.
func NewService(opts Options) *Service {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.WebConfig{Enable: true}
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	svc := &Service{
		cfg:       cfg,
		logger:    log,
		runner:    opts.Runner,
		workspace: opts.Runner.Workspace(),
		store:     opts.Store,
		auth:      NewAuthManager(cfg.Auth),
		hub:       NewWebsocketHub(log),
		formats:   AllowedFormats(cfg.Export.Formats),
		baseURL:   opts.BaseURL,
	}
	opts.Runner.Subscribe(svc.hub.Listener())

	if svc.auth.Enabled() {
		svc.startSessionCleanup()
	}
	return svc
}

// AdminPath returns the normalized prefix the API is mounted under.
func (s *Service) AdminPath() string {
	if s.cfg.AdminPath == "" {
		return defaultAdminPath
	}
	return normalizePath(s.cfg.AdminPath)
}

// Hub returns the websocket hub.
func (s *Service) Hub() *WebsocketHub {
	return s.hub
}

// RegisterRoutes wires the API under the admin path.
func (s *Service) RegisterRoutes(router *mux.Router) {
	if s == nil || !s.cfg.Enable {
		return
	}

	api := router.PathPrefix(s.AdminPath()).Subrouter()
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)

	read := func(path string, h http.HandlerFunc, methods ...string) {
		api.Handle(path, s.authMiddleware(h)).Methods(methods...)
	}
	write := func(path string, h http.HandlerFunc, methods ...string) {
		api.Handle(path, s.authMiddleware(s.requireAdmin(h))).Methods(methods...)
	}

	read("/auth/me", s.handleMe, http.MethodGet)
	read("/ws", s.handleWebsocket, http.MethodGet)

	read("/endpoints", s.handleListEndpoints, http.MethodGet)
	write("/endpoints", s.handleCreateEndpoint, http.MethodPost)
	read("/endpoints/{id}", s.handleGetEndpoint, http.MethodGet)
	write("/endpoints/{id}", s.handlePatchEndpoint, http.MethodPatch)
	write("/endpoints/{id}", s.handleReplaceEndpoint, http.MethodPut)
	write("/endpoints/{id}", s.handleDeleteEndpoint, http.MethodDelete)
	write("/endpoints/{id}/move", s.handleMoveEndpoint, http.MethodPost)
	write("/endpoints/{id}/favorite", s.handleToggleFavorite, http.MethodPost)
	write("/endpoints/{id}/format", s.handleFormatBody, http.MethodPost)
	write("/endpoints/{id}/template", s.handleRequestTemplate, http.MethodPost)
	write("/endpoints/{id}/variants", s.handleAddVariant, http.MethodPost)
	write("/endpoints/{id}/variants/{vid}", s.handleUpdateVariant, http.MethodPatch)
	write("/endpoints/{id}/variants/{vid}", s.handleDeleteVariant, http.MethodDelete)
	write("/endpoints/{id}/active-variant", s.handleSelectVariant, http.MethodPut)
	write("/endpoints/{id}/ratelimit", s.handleUpdateRateLimit, http.MethodPatch)
	write("/endpoints/{id}/ratelimit/state", s.handleResetRateLimit, http.MethodDelete)
	read("/endpoints/{id}/share", s.handleShare, http.MethodGet)
	read("/endpoints/{id}/snippets/{kind}", s.handleSnippet, http.MethodGet)
	write("/endpoints/{id}/simulate", s.handleSimulate, http.MethodPost)
	write("/endpoints/{id}/live", s.handleEndpointLive, http.MethodPost)
	write("/import", s.handleImport, http.MethodPost)

	read("/folders", s.handleListFolders, http.MethodGet)
	write("/folders", s.handleCreateFolder, http.MethodPost)
	write("/folders/{id}", s.handleDeleteFolder, http.MethodDelete)

	write("/live", s.handleLive, http.MethodPost)
	read("/history", s.handleHistory, http.MethodGet)
	write("/history", s.handleClearHistory, http.MethodDelete)
	write("/history/export", s.handleExport, http.MethodGet)
	read("/analytics", s.handleAnalytics, http.MethodGet)
}

// Close releases resources.
func (s *Service) Close() {
	if s == nil {
		return
	}
	if s.cleanupStop != nil {
		close(s.cleanupStop)
		s.cleanupWG.Wait()
		s.cleanupStop = nil
	}
	s.hub.Close()
}

func (s *Service) startSessionCleanup() {
	s.cleanupStop = make(chan struct{})
	s.cleanupWG.Add(1)
	go func() {
		defer s.cleanupWG.Done()
		ticker := time.NewTicker(s.sessionCleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.auth.Cleanup()
			case <-s.cleanupStop:
				return
			}
		}
	}()
}

// sessionCleanupInterval is half the session timeout, clamped to [1m, 10m].
func (s *Service) sessionCleanupInterval() time.Duration {
	interval := s.auth.timeout / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	return interval
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &creds); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	session, err := s.auth.Login(creds.Username, creds.Password)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, err)
		return
	}

	if s.auth.Enabled() {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    session.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Expires:  session.ExpiresAt,
			Secure:   r.TLS != nil,
		})
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":    session.ID,
		"username": session.Username,
		"role":     session.Role,
		"expires":  session.ExpiresAt,
	})
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := s.extractToken(r); token != "" {
		s.auth.Logout(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"username": session.Username,
		"role":     session.Role,
		"auth":     s.auth.Enabled(),
		"live":     s.runner.LiveEnabled(),
		"formats":  s.formats,
	})
}

func (s *Service) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if _, err := s.hub.Upgrade(w, r); err != nil {
		s.logger.Error("Failed to upgrade websocket", "error", err)
	}
}

func (s *Service) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.auth.Validate(s.extractToken(r))
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, err)
			return
		}
		ctx := context.WithValue(r.Context(), contextSessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin rejects viewer sessions.
func (s *Service) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sessionFromContext(r.Context()).IsAdmin() {
			s.respondJSON(w, http.StatusForbidden, map[string]string{"error": "admin role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func sessionFromContext(ctx context.Context) *Session {
	if session, ok := ctx.Value(contextSessionKey).(*Session); ok {
		return session
	}
	return nil
}

func (s *Service) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Service) respondError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("Admin API request failed", "status", status, "error", err)
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

// fail maps domain errors to HTTP status codes.
func (s *Service) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workspace.ErrNotFound), errors.Is(err, endpoint.ErrVariantNotFound):
		s.respondError(w, http.StatusNotFound, err)
	case errors.Is(err, runner.ErrLiveDisabled):
		s.respondError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, workspace.ErrPersist), errors.Is(err, context.Canceled):
		s.respondError(w, http.StatusInternalServerError, err)
	default:
		s.respondError(w, http.StatusBadRequest, err)
	}
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// requestLocale picks the locale query parameter, then the first
// Accept-Language tag.
func requestLocale(r *http.Request) string {
	if locale := strings.TrimSpace(r.URL.Query().Get("locale")); locale != "" {
		return locale
	}
	header := r.Header.Get("Accept-Language")
	first, _, _ := strings.Cut(header, ",")
	first, _, _ = strings.Cut(first, ";")
	return strings.TrimSpace(first)
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return def
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

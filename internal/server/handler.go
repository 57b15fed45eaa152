package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/internal/runner"
	"github.com/funnyzak/mockflow/internal/simulator"
	"github.com/funnyzak/mockflow/pkg/request"
)

const (
	serverHeader = "MockFlow/1.0"

	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
	headerRetryAfter         = "Retry-After"
)

// Handler answers requests that match a workspace endpoint
type Handler struct {
	runner  *runner.Runner
	logger  logger.Logger
	config  *HandlerConfig
	baseCtx context.Context
	procWG  *sync.WaitGroup
	now     func() time.Time
}

// HandlerConfig mock handler configuration
type HandlerConfig struct {
	MaxBodyBytes int64
	// Locale of the explanations attached to recorded calls
	Locale string
}

var errRequestBodyTooLarge = errors.New("request body exceeds configured limit")

// NewHandler creates a new mock request handler
func NewHandler(
	r *runner.Runner,
	logger logger.Logger,
	config *HandlerConfig,
	baseCtx context.Context,
	procWG *sync.WaitGroup,
) *Handler {
	if config == nil {
		config = &HandlerConfig{}
	}
	return &Handler{
		runner:  r,
		logger:  logger,
		config:  config,
		baseCtx: baseCtx,
		procWG:  procWG,
		now:     time.Now,
	}
}

// ServeHTTP implements the http.Handler interface
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.runner.Workspace().Match(r.Method, r.URL.Path)
	if !ok {
		h.logger.Debug("No mock endpoint matched", "method", r.Method, "path", r.URL.Path)
		h.writeNotFound(w, r)
		return
	}

	// Read request body before sending response
	bodyBytes, err := h.readRequestBody(r)
	if err != nil {
		h.handleBodyReadError(w, err)
		return
	}

	in := request.Capture(r, bodyBytes)
	outcome := h.runner.Evaluate(r.Context(), ep, in, h.config.Locale)
	h.writeResult(w, outcome.Result)

	h.logger.Info("Mock request served",
		"endpoint", ep.Name,
		"method", in.Method,
		"path", in.Path,
		"status", outcome.Result.Status,
		"remote_addr", in.RemoteAddr,
		"content_length", in.Size,
	)

	// Record and notify asynchronously
	h.procWG.Add(1)
	go func() {
		defer h.procWG.Done()
		ctx, cancel := context.WithCancel(h.baseCtx)
		defer cancel()
		if err := h.runner.Complete(ctx, outcome); err != nil {
			h.logger.Warn("Request processing finished with errors", "error", err, "endpoint", ep.ID)
		}
	}()
}

// writeResult writes the simulated response with the rate-limit headers of
// the decision, if any.
func (h *Handler) writeResult(w http.ResponseWriter, res *simulator.Result) {
	header := w.Header()
	for key, value := range res.Headers {
		if key == "" {
			continue
		}
		header.Set(key, value)
	}
	if header.Get(simulator.HeaderContentType) == "" {
		header.Set(simulator.HeaderContentType, simulator.ContentTypeText)
	}

	if d := res.RateLimit; d != nil {
		header.Set(headerRateLimitLimit, strconv.Itoa(d.Limit))
		header.Set(headerRateLimitRemaining, strconv.Itoa(d.Remaining))
		header.Set(headerRateLimitReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
		if res.Limited() {
			wait := d.RetryAfter(h.now())
			header.Set(headerRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
	}

	header.Set("Server", serverHeader)
	w.WriteHeader(res.Status)
	if body := res.Data.Body(); len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			h.logger.Debug("Failed to write mock response", "error", err)
		}
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (h *Handler) writeNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(simulator.HeaderContentType, simulator.ContentTypeJSON)
	w.Header().Set("Server", serverHeader)
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, "{\"error\":\"Not Found\",\"message\":%q}\n",
		fmt.Sprintf("No mock endpoint for %s %s", r.Method, r.URL.Path))
}

func (h *Handler) readRequestBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()

	if h.config.MaxBodyBytes <= 0 {
		return io.ReadAll(r.Body)
	}

	limited := io.LimitReader(r.Body, h.config.MaxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > h.config.MaxBodyBytes {
		return nil, errRequestBodyTooLarge
	}
	return body, nil
}

func (h *Handler) handleBodyReadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errRequestBodyTooLarge):
		h.logger.Warn("Request body exceeds configured limit",
			"limit_bytes", h.config.MaxBodyBytes,
		)
		http.Error(w, "Payload Too Large", http.StatusRequestEntityTooLarge)
	default:
		h.logger.Error("Failed to read request body", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/funnyzak/mockflow/internal/live"
	"github.com/funnyzak/mockflow/internal/storage"
)

func (s *Service) handleSimulate(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.runner.Simulate(r.Context(), mux.Vars(r)["id"], requestLocale(r))
	if err != nil && outcome == nil {
		s.fail(w, err)
		return
	}
	if err != nil {
		s.logger.Warn("Simulation completed with errors", "error", err)
	}
	s.respondJSON(w, http.StatusOK, outcome)
}

func (s *Service) handleEndpointLive(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.runner.FetchEndpoint(r.Context(), mux.Vars(r)["id"], requestLocale(r))
	if err != nil && outcome == nil {
		s.fail(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, outcome)
}

// handleLive performs a live request to an arbitrary URL.
func (s *Service) handleLive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Method  string            `json:"method"`
		URL     string            `json:"url"`
		Headers map[string]string `json:"headers"`
		Body    string            `json:"body"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, err)
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		body.URL = live.DefaultURL
	}

	req := live.Request{Method: body.Method, URL: body.URL, Headers: http.Header{}}
	for k, v := range body.Headers {
		req.Headers.Set(k, v)
	}
	if body.Body != "" {
		req.Body = []byte(body.Body)
	}

	outcome, err := s.runner.Fetch(r.Context(), req, requestLocale(r))
	if err != nil && outcome == nil {
		s.fail(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, outcome)
}

func historyOptions(r *http.Request) storage.HistoryOptions {
	query := r.URL.Query()
	return storage.HistoryOptions{
		Search: query.Get("search"),
		Method: query.Get("method"),
		Source: query.Get("source"),
	}
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	opts := historyOptions(r)
	opts.Limit = parseIntDefault(r.URL.Query().Get("limit"), defaultListLimit)
	if opts.Limit <= 0 || opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	opts.Offset = parseIntDefault(r.URL.Query().Get("offset"), 0)

	items, total, err := s.store.ListHistory(r.Context(), opts)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	if items == nil {
		items = []*storage.HistoryEntry{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":   items,
		"total":  total,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

func (s *Service) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearHistory(r.Context()); err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	var entries []*storage.HistoryEntry
	err := s.store.IterateHistory(r.Context(), historyOptions(r), func(e *storage.HistoryEntry) bool {
		entries = append(entries, e)
		return true
	})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, storage.Summarize(entries))
}

func (s *Service) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Export.Enable {
		s.respondJSON(w, http.StatusForbidden, map[string]string{"error": "export disabled"})
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "json"
	}
	if !containsFormat(s.formats, format) {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("unsupported export format: %s", format))
		return
	}

	opts := historyOptions(r)
	iter := func(yield func(*storage.HistoryEntry) bool) error {
		return s.store.IterateHistory(r.Context(), opts, yield)
	}

	var buf bytes.Buffer
	contentType, ext, err := StreamExport(&buf, iter, format)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}

	filename := fmt.Sprintf("mockflow_history_%d.%s", time.Now().Unix(), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

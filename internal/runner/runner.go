// Package runner executes mock simulations and live fetches, then records the
// outcome in history and hands it to every subscribed listener.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/funnyzak/mockflow/internal/explain"
	"github.com/funnyzak/mockflow/internal/live"
	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/internal/simulator"
	"github.com/funnyzak/mockflow/internal/storage"
	"github.com/funnyzak/mockflow/internal/validation"
	"github.com/funnyzak/mockflow/internal/workspace"
	"github.com/funnyzak/mockflow/pkg/endpoint"
	"github.com/funnyzak/mockflow/pkg/request"
)

// ErrLiveDisabled is returned by live operations when no live client is configured.
var ErrLiveDisabled = errors.New("live fetch is disabled")

// Outcome is everything known about one call after it completed.
type Outcome struct {
	Source   string             `json:"source"`
	Endpoint *endpoint.Endpoint `json:"endpoint,omitempty"`
	URL      string             `json:"url,omitempty"`
	Method   string             `json:"method"`
	// Request is the inbound request when the call came through the mock server.
	Request     *request.Incoming     `json:"request,omitempty"`
	Result      *simulator.Result     `json:"result"`
	Violations  []string              `json:"violations,omitempty"`
	Explanation explain.Explanation   `json:"explanation"`
	Attempts    int                   `json:"attempts,omitempty"`
	Error       string                `json:"error,omitempty"`
	Entry       *storage.HistoryEntry `json:"entry,omitempty"`
}

// Label is the endpoint name for mock calls and the URL for live calls.
func (o *Outcome) Label() string {
	if o.Source == storage.SourceMock && o.Endpoint != nil {
		return o.Endpoint.Name
	}
	return o.URL
}

// Listener receives completed outcomes. Listeners run concurrently.
type Listener func(ctx context.Context, o *Outcome) error

// Options wires the collaborators of a Runner. Live may be nil.
type Options struct {
	Workspace *workspace.Service
	Engine    *simulator.Engine
	Live      *live.Client
	Store     storage.Store
	Explainer *explain.Explainer
	Logger    logger.Logger
}

// Runner 调用执行器
type Runner struct {
	workspace *workspace.Service
	engine    *simulator.Engine
	live      *live.Client
	store     storage.Store
	explainer *explain.Explainer
	log       logger.Logger

	mu        sync.RWMutex
	listeners []Listener
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Engine == nil {
		opts.Engine = simulator.New(nil, simulator.WithLogger(opts.Logger))
	}
	if opts.Explainer == nil {
		opts.Explainer = explain.New(nil, "")
	}
	return &Runner{
		workspace: opts.Workspace,
		engine:    opts.Engine,
		live:      opts.Live,
		store:     opts.Store,
		explainer: opts.Explainer,
		log:       opts.Logger,
	}
}

// Subscribe adds a listener for completed outcomes.
func (r *Runner) Subscribe(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Engine returns the simulation engine.
func (r *Runner) Engine() *simulator.Engine {
	return r.engine
}

// Workspace returns the endpoint workspace.
func (r *Runner) Workspace() *workspace.Service {
	return r.workspace
}

// LiveEnabled reports whether live fetches are available.
func (r *Runner) LiveEnabled() bool {
	return r.live != nil
}

// Simulate runs the endpoint with id and completes the outcome.
func (r *Runner) Simulate(ctx context.Context, id, locale string) (*Outcome, error) {
	ep, err := r.workspace.Endpoint(id)
	if err != nil {
		return nil, err
	}
	o := r.Evaluate(ctx, ep, nil, locale)
	if err := r.Complete(ctx, o); err != nil {
		return o, err
	}
	return o, nil
}

// Evaluate simulates ep without recording anything. in is the inbound request
// when the call came through the mock server.
func (r *Runner) Evaluate(ctx context.Context, ep *endpoint.Endpoint, in *request.Incoming, locale string) *Outcome {
	res := r.engine.Simulate(ctx, ep)
	data, parsed := res.Data.Value()
	return &Outcome{
		Source:      storage.SourceMock,
		Endpoint:    ep,
		URL:         ep.Path,
		Method:      ep.Method,
		Request:     in,
		Result:      res,
		Violations:  validation.Check(data, parsed, ep.Schema, ep.ResponseSchema),
		Explanation: r.explainer.WithLocale(locale).Mock(ep, res.Status),
	}
}

// Fetch performs a live request and completes the outcome.
func (r *Runner) Fetch(ctx context.Context, req live.Request, locale string) (*Outcome, error) {
	return r.fetch(ctx, nil, req, locale)
}

// FetchEndpoint calls the live counterpart of the endpoint with id and checks
// the answer against the endpoint schemas.
func (r *Runner) FetchEndpoint(ctx context.Context, id, locale string) (*Outcome, error) {
	if r.live == nil {
		return nil, ErrLiveDisabled
	}
	ep, err := r.workspace.Endpoint(id)
	if err != nil {
		return nil, err
	}
	url, err := r.live.EndpointURL(ep)
	if err != nil {
		return nil, err
	}
	req := live.Request{Method: ep.Method, URL: url}
	if ep.RequestBody != "" && ep.Method != endpoint.MethodGet {
		req.Body = []byte(ep.RequestBody)
	}
	return r.fetch(ctx, ep, req, locale)
}

func (r *Runner) fetch(ctx context.Context, ep *endpoint.Endpoint, req live.Request, locale string) (*Outcome, error) {
	if r.live == nil {
		return nil, ErrLiveDisabled
	}
	resp, err := r.live.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("live fetch %s: %w", req.URL, err)
	}

	o := &Outcome{
		Source:      storage.SourceLive,
		Endpoint:    ep,
		URL:         resp.URL,
		Method:      resp.Method,
		Result:      resp.Result(),
		Explanation: r.explainer.WithLocale(locale).Live(resp.URL, resp.Status, resp.Failed()),
		Attempts:    resp.Attempts,
		Error:       resp.Error,
	}
	if ep != nil && !resp.Failed() {
		data, parsed := resp.Data.Value()
		o.Violations = validation.Check(data, parsed, ep.Schema, ep.ResponseSchema)
	}

	entry := &storage.HistoryEntry{
		Endpoint: resp.URL,
		Source:   storage.SourceLive,
		Method:   resp.Method,
		Status:   resp.Status,
		Data:     resp.HistoryData(),
	}
	if ep != nil {
		entry.EndpointID = ep.ID
	}
	if err := r.finish(ctx, o, entry); err != nil {
		return o, err
	}
	return o, nil
}

// Complete records a mock outcome in history and notifies listeners.
func (r *Runner) Complete(ctx context.Context, o *Outcome) error {
	entry := &storage.HistoryEntry{
		Endpoint:   o.Endpoint.Name,
		EndpointID: o.Endpoint.ID,
		Source:     storage.SourceMock,
		Method:     o.Method,
		Status:     o.Result.Status,
		Data:       o.Result.Data,
		Latency:    o.Endpoint.Latency,
	}
	return r.finish(ctx, o, entry)
}

func (r *Runner) finish(ctx context.Context, o *Outcome, entry *storage.HistoryEntry) error {
	if r.store != nil {
		recorded, err := r.store.RecordHistory(ctx, entry)
		if err != nil {
			r.log.Error("Failed to record history", "endpoint", entry.Endpoint, "error", err)
			return fmt.Errorf("record history: %w", err)
		}
		o.Entry = recorded
	} else {
		entry.Timestamp = time.Now().UTC()
		o.Entry = entry
	}

	r.mu.RLock()
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.RUnlock()
	if len(listeners) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		l := l
		g.Go(func() error {
			return l(gctx, o)
		})
	}
	if err := g.Wait(); err != nil {
		r.log.Warn("Outcome listener failed", "source", o.Source, "label", o.Label(), "error", err)
		return fmt.Errorf("notify listeners: %w", err)
	}
	return nil
}

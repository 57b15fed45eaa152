// Package simulator resolves what a mock endpoint answers: rate limiting,
// simulated latency, variant selection and body parsing.
package simulator

import (
	"context"
	"net/http"
	"time"

	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/internal/ratelimit"
	"github.com/funnyzak/mockflow/pkg/endpoint"
	"github.com/funnyzak/mockflow/pkg/jsonvalue"
)

const (
	HeaderContentType = "Content-Type"
	ContentTypeJSON   = "application/json"
	ContentTypeText   = "text/plain"
)

// Result is the simulated response.
type Result struct {
	Status  int               `json:"status"`
	Data    Payload           `json:"data"`
	Headers map[string]string `json:"headers"`
	// VariantID is set when an active variant supplied status and body.
	VariantID string              `json:"variant_id,omitempty"`
	RateLimit *ratelimit.Decision `json:"rate_limit,omitempty"`
	// Elapsed is the wall time spent inside Simulate, latency included.
	Elapsed time.Duration `json:"elapsed_ns"`
}

// ContentType returns the Content-Type header of the result.
func (r *Result) ContentType() string {
	return r.Headers[HeaderContentType]
}

// Limited reports whether the call was rejected by the rate limiter.
func (r *Result) Limited() bool {
	return r.RateLimit != nil && !r.RateLimit.Allowed
}

// Engine simulates endpoint calls. Each engine owns its rate-limit windows.
type Engine struct {
	tracker *ratelimit.Tracker
	now     func() time.Time
	sleep   func(time.Duration)
	log     logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSleeper replaces time.Sleep for simulated latency.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithLogger sets the logger used for store failures.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an engine around tracker. A nil tracker gets in-memory windows.
func New(tracker *ratelimit.Tracker, opts ...Option) *Engine {
	if tracker == nil {
		tracker = ratelimit.NewTracker(nil)
	}
	e := &Engine{
		tracker: tracker,
		now:     time.Now,
		sleep:   time.Sleep,
		log:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tracker exposes the engine's rate-limit windows.
func (e *Engine) Tracker() *ratelimit.Tracker {
	return e.tracker
}

// Simulate computes the response of ep. It never fails: a limited call yields
// a 429 result and a body that is not JSON yields a text/plain result.
//
// The simulated latency is served in full once started; ctx only bounds the
// rate-limit store round trip.
func (e *Engine) Simulate(ctx context.Context, ep *endpoint.Endpoint) *Result {
	start := e.now()

	var decision *ratelimit.Decision
	if ep.RateLimit != nil && ep.RateLimit.Enabled {
		d, err := e.tracker.Check(ctx, ep.ID, ep.RateLimit, start)
		if err != nil {
			// store failures fail open
			e.log.Warn("rate limit check failed, allowing call", "endpoint", ep.ID, "error", err)
		} else {
			decision = &d
			if !d.Allowed {
				return &Result{
					Status:    http.StatusTooManyRequests,
					Data:      JSONPayload(TooManyRequestsBody()),
					Headers:   map[string]string{HeaderContentType: ContentTypeJSON},
					RateLimit: decision,
					Elapsed:   e.now().Sub(start),
				}
			}
		}
	}

	if ep.Latency > 0 {
		e.sleep(time.Duration(ep.Latency) * time.Millisecond)
	}

	status, body := ep.StatusCode, ep.Body
	var variantID string
	if v, ok := ep.ActiveVariant(); ok {
		status, body, variantID = v.StatusCode, v.Body, v.ID
	}

	data := ParsePayload(body)
	contentType := ep.ContentType
	if !data.IsJSON() {
		contentType = ContentTypeText
	}

	return &Result{
		Status:    status,
		Data:      data,
		Headers:   map[string]string{HeaderContentType: contentType},
		VariantID: variantID,
		RateLimit: decision,
		Elapsed:   e.now().Sub(start),
	}
}

// TooManyRequestsBody is the payload of a rate-limited call.
func TooManyRequestsBody() jsonvalue.Value {
	return jsonvalue.ObjectValue(
		jsonvalue.Member{Key: "error", Value: jsonvalue.StringValue("Too Many Requests")},
		jsonvalue.Member{Key: "message", Value: jsonvalue.StringValue("Rate limit exceeded. Please try again later.")},
	)
}

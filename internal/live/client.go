// Package live sends real HTTP requests to external APIs so their answers can
// be compared with the mock definitions.
package live

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/internal/simulator"
	"github.com/funnyzak/mockflow/pkg/endpoint"
	"github.com/funnyzak/mockflow/pkg/jsonvalue"
)

// DefaultURL is the sample live target offered to new users.
const DefaultURL = "https://jsonplaceholder.typicode.com/todos/1"

// FailureMessage is the error reported when the remote could not be reached.
const FailureMessage = "Failed to fetch external API"

var (
	// ErrClientClosed indicates the client has been shut down.
	ErrClientClosed = errors.New("live client is closed")
	// ErrNoBaseURL is returned when an endpoint URL is requested without live.base_url.
	ErrNoBaseURL = errors.New("live base url is not configured")
)

// Options 在线请求客户端配置
type Options struct {
	BaseURL               string
	Timeout               time.Duration
	Retries               int
	RetryBackoff          time.Duration
	MaxConcurrent         int
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	ResponseHeaderTimeout time.Duration
	TLSHandshakeTimeout   time.Duration
	TLSInsecureSkipVerify bool
	MaxBodyBytes          int64
	HeaderBlacklist       []string
	PathStrategy          config.PathStrategyConfig
}

// OptionsFromConfig converts the live config section.
func OptionsFromConfig(cfg config.LiveConfig) Options {
	return Options{
		BaseURL:               cfg.BaseURL,
		Timeout:               time.Duration(cfg.Timeout) * time.Second,
		Retries:               cfg.MaxRetries,
		RetryBackoff:          time.Duration(cfg.RetryBackoffMs) * time.Millisecond,
		MaxConcurrent:         cfg.MaxConcurrent,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       time.Duration(cfg.IdleConnTimeout) * time.Second,
		ResponseHeaderTimeout: time.Duration(cfg.ResponseHeaderTimeout) * time.Second,
		TLSHandshakeTimeout:   time.Duration(cfg.TLSHandshakeTimeout) * time.Second,
		TLSInsecureSkipVerify: cfg.TLSInsecureSkipVerify,
		MaxBodyBytes:          cfg.MaxBodyBytes,
		HeaderBlacklist:       cfg.HeaderBlacklist,
		PathStrategy:          cfg.PathStrategy,
	}
}

// Request describes an outbound live call. An empty method means GET.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// Response is the outcome of a live call. Transport failures are reported as
// a 500 response with Error set rather than as a Go error.
type Response struct {
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Status      int               `json:"status"`
	Data        simulator.Payload `json:"data"`
	ContentType string            `json:"content_type"`
	Duration    time.Duration     `json:"duration_ns"`
	Attempts    int               `json:"attempts"`
	Error       string            `json:"error,omitempty"`
}

// Failed reports whether the remote could not be reached at all.
func (r *Response) Failed() bool {
	return r.Error != ""
}

// OK reports a 2xx answer.
func (r *Response) OK() bool {
	return !r.Failed() && r.Status >= 200 && r.Status < 300
}

// Result converts the response into a simulator result so both kinds of calls
// share one presentation path.
func (r *Response) Result() *simulator.Result {
	return &simulator.Result{
		Status:  r.Status,
		Data:    r.Data,
		Headers: map[string]string{simulator.HeaderContentType: r.ContentType},
		Elapsed: r.Duration,
	}
}

// HistoryData is the payload recorded in call history. Failures record only
// the error message.
func (r *Response) HistoryData() simulator.Payload {
	if !r.Failed() {
		return r.Data
	}
	return simulator.JSONPayload(jsonvalue.ObjectValue(
		jsonvalue.Member{Key: "error", Value: jsonvalue.StringValue(r.Error)},
	))
}

// Client performs live requests with bounded concurrency and optional retries.
type Client struct {
	client       *http.Client
	logger       logger.Logger
	baseURL      string
	retries      int
	backoff      time.Duration
	maxBodyBytes int64
	blacklist    map[string]struct{}
	pathStrategy *PathStrategy
	workerPool   chan struct{}

	mu          sync.Mutex
	cond        *sync.Cond
	closed      bool
	activeCalls int
}

// NewClient creates a live client.
func NewClient(log logger.Logger, opts Options) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 10
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          positiveOrDefault(opts.MaxIdleConns, 100),
		MaxIdleConnsPerHost:   positiveOrDefault(opts.MaxIdleConnsPerHost, opts.MaxConcurrent),
		IdleConnTimeout:       durationOrDefault(opts.IdleConnTimeout, 90*time.Second),
		ResponseHeaderTimeout: durationOrDefault(opts.ResponseHeaderTimeout, 15*time.Second),
		TLSHandshakeTimeout:   durationOrDefault(opts.TLSHandshakeTimeout, 10*time.Second),
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.TLSInsecureSkipVerify,
		},
	}

	blacklist := make(map[string]struct{}, len(opts.HeaderBlacklist))
	for _, h := range opts.HeaderBlacklist {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			blacklist[h] = struct{}{}
		}
	}

	c := &Client{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		logger:       log,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		retries:      opts.Retries,
		backoff:      durationOrDefault(opts.RetryBackoff, time.Second),
		maxBodyBytes: opts.MaxBodyBytes,
		blacklist:    blacklist,
		pathStrategy: NewPathStrategy(opts.PathStrategy, log),
		workerPool:   make(chan struct{}, opts.MaxConcurrent),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// EndpointURL builds the live counterpart of an endpoint from live.base_url
// and the configured path strategy.
func (c *Client) EndpointURL(ep *endpoint.Endpoint) (string, error) {
	if c.baseURL == "" {
		return "", ErrNoBaseURL
	}
	resolved, rule := c.pathStrategy.Resolve(ep.Path)
	if rule != "" {
		c.logger.Debug("Live path strategy applied",
			"rule", rule,
			"original_path", ep.Path,
			"resolved_path", resolved,
		)
	}
	return c.baseURL + resolved, nil
}

// Fetch performs req. The only errors returned are ErrClientClosed and
// context cancellation while waiting for a worker slot; everything that goes
// wrong on the wire ends up in the response.
func (c *Client) Fetch(ctx context.Context, req Request) (*Response, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.activeCalls++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.activeCalls--
		if c.activeCalls == 0 {
			c.cond.Broadcast()
		}
		c.mu.Unlock()
	}()

	select {
	case c.workerPool <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.workerPool }()

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	var (
		resp    *Response
		lastErr error
	)
	attempts := 0
retry:
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.backoff
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			select {
			case <-ctx.Done():
				c.logger.Info("Live fetch cancelled by context", "url", req.URL, "attempt", attempt+1)
				if resp == nil {
					lastErr = ctx.Err()
				}
				break retry
			case <-time.After(backoff):
			}
		}

		attempts++
		r, err := c.do(ctx, method, req, attempt)
		if err != nil {
			lastErr = err
			c.logger.Warn("Live fetch attempt failed", "url", req.URL, "error", err.Error(), "attempt", attempt+1)
			continue
		}
		resp = r
		if r.Status < 500 {
			break
		}
		c.logger.Warn("Live fetch answered with server error", "url", req.URL, "status", r.Status, "attempt", attempt+1)
	}

	if resp == nil {
		msg := "unknown error"
		if lastErr != nil {
			msg = lastErr.Error()
		}
		c.logger.Error("Live fetch failed", "url", req.URL, "final_error", msg, "total_attempts", attempts)
		resp = failure(method, req.URL, msg)
	}
	resp.Attempts = attempts
	resp.Duration = time.Since(start)
	return resp, nil
}

func (c *Client) do(ctx context.Context, method string, req Request, attempt int) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	for key, values := range req.Headers {
		if !c.allowHeader(key) {
			continue
		}
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.Header.Set("X-MockFlow-Attempt", fmt.Sprintf("%d", attempt+1))

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := httpResp.Body.Close(); cerr != nil {
			c.logger.Warn("Failed to close response body", "error", cerr)
		}
	}()

	var reader io.Reader = httpResp.Body
	if c.maxBodyBytes > 0 {
		reader = io.LimitReader(httpResp.Body, c.maxBodyBytes)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}

	contentType := httpResp.Header.Get(simulator.HeaderContentType)
	if contentType == "" {
		contentType = simulator.ContentTypeJSON
	}
	return &Response{
		Method:      method,
		URL:         req.URL,
		Status:      httpResp.StatusCode,
		Data:        simulator.ParsePayload(string(data)),
		ContentType: contentType,
	}, nil
}

func (c *Client) allowHeader(key string) bool {
	_, blocked := c.blacklist[strings.ToLower(key)]
	return !blocked
}

func failure(method, url, msg string) *Response {
	return &Response{
		Method: method,
		URL:    url,
		Status: http.StatusInternalServerError,
		Data: simulator.JSONPayload(jsonvalue.ObjectValue(
			jsonvalue.Member{Key: "error", Value: jsonvalue.StringValue(FailureMessage)},
			jsonvalue.Member{Key: "details", Value: jsonvalue.StringValue(msg)},
		)),
		ContentType: simulator.ContentTypeJSON,
		Error:       msg,
	}
}

// Close waits for in-flight calls and releases idle connections.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for c.activeCalls > 0 {
		c.cond.Wait()
	}
	c.mu.Unlock()

	if transport, ok := c.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

func positiveOrDefault(value, def int) int {
	if value > 0 {
		return value
	}
	return def
}

func durationOrDefault(value, def time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return def
}

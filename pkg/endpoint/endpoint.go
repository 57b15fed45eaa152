// Package endpoint defines mock endpoint definitions and the edits a workspace
// performs on them: variants, rate-limit policy, formatting and sharing.
package endpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Supported HTTP methods.
const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
	MethodPatch  = "PATCH"
)

// Defaults applied to new and incomplete endpoints.
const (
	DefaultName        = "New Endpoint"
	DefaultMethod      = MethodGet
	DefaultPath        = "/api/v1/resource"
	DefaultStatus      = 200
	DefaultContentType = "application/json"
	DefaultBody        = "{\n  \"message\": \"Success\"\n}"

	DefaultRateLimit       = 10
	DefaultRateLimitWindow = int64(60000)
)

var (
	ErrVariantNotFound = errors.New("variant not found")
	ErrInvalidMethod   = errors.New("unsupported HTTP method")
	ErrInvalidJSON     = errors.New("invalid JSON")
)

// Endpoint is a mock API endpoint definition.
type Endpoint struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Method          string           `json:"method"`
	Path            string           `json:"path"`
	StatusCode      int              `json:"statusCode"`
	Body            string           `json:"body"`
	ContentType     string           `json:"contentType"`
	Latency         int              `json:"latency"`
	Schema          string           `json:"schema,omitempty"`
	ResponseSchema  string           `json:"responseSchema,omitempty"`
	RequestBody     string           `json:"requestBody,omitempty"`
	FolderID        string           `json:"folderId,omitempty"`
	ActiveVariantID string           `json:"activeVariantId,omitempty"`
	Variants        []Variant        `json:"variants"`
	RateLimit       *RateLimitPolicy `json:"rateLimit,omitempty"`
}

// Variant is an alternative status/body pair of an endpoint.
type Variant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// RateLimitPolicy simulates a fixed-window request quota.
type RateLimitPolicy struct {
	Enabled  bool  `json:"enabled"`
	Limit    int   `json:"limit"`
	WindowMs int64 `json:"windowMs"`
}

// RateLimitPatch is a partial update of a policy; nil fields keep their value.
type RateLimitPatch struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Limit    *int   `json:"limit,omitempty"`
	WindowMs *int64 `json:"windowMs,omitempty"`
}

// Folder groups endpoints.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewID returns a short random identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// New returns an endpoint with default values inside the given folder.
func New(folderID string) *Endpoint {
	return &Endpoint{
		ID:          NewID(),
		Name:        DefaultName,
		Method:      DefaultMethod,
		Path:        DefaultPath,
		StatusCode:  DefaultStatus,
		Body:        DefaultBody,
		ContentType: DefaultContentType,
		Latency:     0,
		FolderID:    folderID,
		Variants:    []Variant{},
	}
}

// Normalize fills fields a stored or imported definition may be missing.
func (e *Endpoint) Normalize() {
	if e.Variants == nil {
		e.Variants = []Variant{}
	}
	if e.Method == "" {
		e.Method = DefaultMethod
	}
	e.Method = strings.ToUpper(e.Method)
	if e.Path == "" {
		e.Path = DefaultPath
	}
	if e.ContentType == "" {
		e.ContentType = DefaultContentType
	}
	if e.StatusCode == 0 {
		e.StatusCode = DefaultStatus
	}
	if e.ActiveVariantID != "" && e.findVariant(e.ActiveVariantID) < 0 {
		e.ActiveVariantID = ""
	}
}

// Validate reports definition errors that would make the endpoint unservable.
func (e *Endpoint) Validate() error {
	switch e.Method {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMethod, e.Method)
	}
	if !strings.HasPrefix(e.Path, "/") {
		return fmt.Errorf("path must start with '/': %q", e.Path)
	}
	if e.StatusCode < 100 || e.StatusCode > 599 {
		return fmt.Errorf("status code must be between 100 and 599, got %d", e.StatusCode)
	}
	if e.Latency < 0 {
		return fmt.Errorf("latency cannot be negative")
	}
	for _, v := range e.Variants {
		if v.StatusCode < 100 || v.StatusCode > 599 {
			return fmt.Errorf("variant %q status code must be between 100 and 599", v.Name)
		}
	}
	if e.RateLimit != nil {
		if e.RateLimit.Limit < 0 {
			return fmt.Errorf("rate limit cannot be negative")
		}
		if e.RateLimit.WindowMs < 0 {
			return fmt.Errorf("rate limit window cannot be negative")
		}
	}
	return nil
}

// Clone returns a deep copy.
func (e *Endpoint) Clone() *Endpoint {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Variants = append([]Variant(nil), e.Variants...)
	if cp.Variants == nil {
		cp.Variants = []Variant{}
	}
	if e.RateLimit != nil {
		rl := *e.RateLimit
		cp.RateLimit = &rl
	}
	return &cp
}

// UpdateRateLimit merges patch into the current policy. Missing values start
// from disabled, 10 requests, 60000ms.
func (e *Endpoint) UpdateRateLimit(patch RateLimitPatch) RateLimitPolicy {
	next := RateLimitPolicy{
		Enabled:  false,
		Limit:    DefaultRateLimit,
		WindowMs: DefaultRateLimitWindow,
	}
	if cur := e.RateLimit; cur != nil {
		next.Enabled = cur.Enabled
		if cur.Limit != 0 {
			next.Limit = cur.Limit
		}
		if cur.WindowMs != 0 {
			next.WindowMs = cur.WindowMs
		}
	}
	if patch.Enabled != nil {
		next.Enabled = *patch.Enabled
	}
	if patch.Limit != nil {
		next.Limit = *patch.Limit
	}
	if patch.WindowMs != nil {
		next.WindowMs = *patch.WindowMs
	}
	e.RateLimit = &next
	return next
}

// FormatBody re-indents a JSON body with two spaces.
func (e *Endpoint) FormatBody() error {
	formatted, err := FormatJSON(e.Body)
	if err != nil {
		return err
	}
	e.Body = formatted
	return nil
}

// FormatJSON pretty-prints a JSON document keeping member order.
func FormatJSON(text string) (string, error) {
	src := bytes.TrimSpace([]byte(text))
	if !json.Valid(src) {
		return "", ErrInvalidJSON
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, src, "", "  "); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return buf.String(), nil
}

// RequestTemplate returns a sample request body for the endpoint's method.
func (e *Endpoint) RequestTemplate() string {
	switch e.Method {
	case MethodPost:
		return "{\n  \"name\": \"Sample Name\",\n  \"description\": \"Sample description\",\n  \"value\": 123\n}"
	case MethodPut, MethodPatch:
		return "{\n  \"id\": \"resource-id\",\n  \"name\": \"Updated Name\",\n  \"value\": 456\n}"
	default:
		return "{}"
	}
}

// Defaults returns the sample endpoints a fresh workspace starts with.
func Defaults() []*Endpoint {
	return []*Endpoint{
		{
			ID:          "default-1",
			Name:        "Get User Profile",
			Method:      MethodGet,
			Path:        "/api/v1/user/profile",
			StatusCode:  200,
			Body:        "{\n  \"id\": \"u_123\",\n  \"username\": \"ronit_dev\",\n  \"email\": \"ronit@example.com\",\n  \"avatar\": \"https://api.dicebear.com/7.x/avataaars/svg?seed=ronit\",\n  \"status\": \"online\",\n  \"stats\": {\n    \"posts\": 42,\n    \"followers\": 1200\n  }\n}",
			ContentType: DefaultContentType,
			Latency:     300,
			Variants:    []Variant{},
		},
		{
			ID:          "default-2",
			Name:        "Create Post (Error Case)",
			Method:      MethodPost,
			Path:        "/api/v1/posts",
			StatusCode:  401,
			Body:        "{\n  \"status\": \"error\",\n  \"message\": \"Authorization token missing or expired.\",\n  \"code\": \"AUTH_REQUIRED\"\n}",
			ContentType: DefaultContentType,
			Latency:     0,
			Variants:    []Variant{},
		},
		{
			ID:          "default-3",
			Name:        "System Health Check",
			Method:      MethodGet,
			Path:        "/health",
			StatusCode:  200,
			Body:        "{\n  \"status\": \"healthy\",\n  \"uptime\": \"24h 15m\",\n  \"version\": \"1.0.4-stable\"\n}",
			ContentType: DefaultContentType,
			Latency:     150,
			Variants:    []Variant{},
		},
	}
}

// Package request captures the inbound HTTP request a mock endpoint answered.
package request

import (
	"net"
	"net/http"
	"strings"
	"time"
)

// Incoming is an HTTP request received by the mock server.
type Incoming struct {
	ReceivedAt  time.Time   `json:"receivedAt"`
	Method      string      `json:"method"`
	Proto       string      `json:"proto"`
	Path        string      `json:"path"`
	Query       string      `json:"query,omitempty"`
	RemoteAddr  string      `json:"remoteAddr"`
	UserAgent   string      `json:"userAgent,omitempty"`
	Headers     http.Header `json:"headers"`
	ContentType string      `json:"contentType,omitempty"`
	Body        []byte      `json:"-"`
	IsBinary    bool        `json:"isBinary"`
	Size        int64       `json:"size"`
}

// Capture records r together with its already consumed body.
func Capture(r *http.Request, body []byte) *Incoming {
	contentType := r.Header.Get("Content-Type")
	return &Incoming{
		ReceivedAt:  time.Now(),
		Method:      r.Method,
		Proto:       r.Proto,
		Path:        r.URL.Path,
		Query:       r.URL.RawQuery,
		RemoteAddr:  ClientIP(r),
		UserAgent:   r.UserAgent(),
		Headers:     r.Header.Clone(),
		ContentType: contentType,
		Body:        body,
		IsBinary:    IsBinary(contentType, body),
		Size:        int64(len(body)),
	}
}

// BodyText returns the body as text, or "" for binary bodies.
func (in *Incoming) BodyText() string {
	if in.IsBinary {
		return ""
	}
	return string(in.Body)
}

// ClientIP returns the originating client address, honouring
// X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

var binaryPrefixes = []string{
	"image/", "video/", "audio/", "font/",
	"application/octet-stream",
	"application/zip", "application/gzip",
	"application/pdf", "application/msword",
	"application/vnd.ms-", "application/vnd.openxmlformats-",
}

// IsBinary reports whether a body should not be shown as text: either its
// content type says so or more than a tenth of its bytes are NUL.
func IsBinary(contentType string, body []byte) bool {
	contentType = strings.ToLower(contentType)
	for _, prefix := range binaryPrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	nul := 0
	for _, b := range body {
		if b == 0 {
			nul++
		}
	}
	return len(body) > 0 && nul > len(body)/10
}

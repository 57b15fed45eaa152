package request

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCapture(t *testing.T) {
	body := []byte(`{"test": "data"}`)
	req := httptest.NewRequest(http.MethodPost, "/users/42?expand=posts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("X-Forwarded-For", "192.168.1.100")
	req.RemoteAddr = "10.0.0.1:12345"

	in := Capture(req, body)

	if in.Method != http.MethodPost {
		t.Fatalf("expected POST, got %s", in.Method)
	}
	if in.Path != "/users/42" || in.Query != "expand=posts" {
		t.Fatalf("unexpected path %q query %q", in.Path, in.Query)
	}
	if in.UserAgent != "test-agent" || in.ContentType != "application/json" {
		t.Fatalf("unexpected agent %q or content type %q", in.UserAgent, in.ContentType)
	}
	if in.Size != int64(len(body)) || in.BodyText() != string(body) {
		t.Fatalf("unexpected body %q size %d", in.BodyText(), in.Size)
	}
	if in.RemoteAddr != "192.168.1.100" {
		t.Fatalf("X-Forwarded-For should win, got %s", in.RemoteAddr)
	}
	if in.ReceivedAt.IsZero() {
		t.Fatal("ReceivedAt should be set")
	}

	req.Header.Set("X-Test", "mutated")
	if in.Headers.Get("X-Test") != "" {
		t.Fatal("captured headers must not alias the request")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"forwarded single", "10.0.0.1:12345", map[string]string{"X-Forwarded-For": "192.168.1.100"}, "192.168.1.100"},
		{"forwarded chain", "10.0.0.1:12345", map[string]string{"X-Forwarded-For": " 192.168.1.100 , 10.0.0.2"}, "192.168.1.100"},
		{"real ip", "10.0.0.1:12345", map[string]string{"X-Real-IP": "192.168.1.200"}, "192.168.1.200"},
		{"remote addr", "10.0.0.1:12345", nil, "10.0.0.1"},
		{"ipv6 remote addr", "[::1]:8080", nil, "::1"},
		{"no port", "10.0.0.9", nil, "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Fatalf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsBinary(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		want        bool
	}{
		{"json", "application/json", []byte(`{"a":1}`), false},
		{"image", "image/png", []byte("x"), true},
		{"upper case type", "Application/PDF", nil, true},
		{"octet stream", "application/octet-stream", nil, true},
		{"nul heavy text", "text/plain", []byte("a\x00\x00\x00"), true},
		{"few nul bytes", "", append([]byte(strings.Repeat("a", 40)), 0), false},
		{"empty", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBinary(tt.contentType, tt.body); got != tt.want {
				t.Fatalf("IsBinary() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBodyTextHidesBinary(t *testing.T) {
	in := &Incoming{Body: []byte{0, 1, 2}, IsBinary: true}
	if in.BodyText() != "" {
		t.Fatal("binary body should not render as text")
	}
}

package printer

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/funnyzak/mockflow/internal/explain"
	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/internal/ratelimit"
	"github.com/funnyzak/mockflow/internal/runner"
	"github.com/funnyzak/mockflow/internal/simulator"
	"github.com/funnyzak/mockflow/internal/storage"
	"github.com/funnyzak/mockflow/internal/workspace"
	"github.com/funnyzak/mockflow/pkg/endpoint"
	"github.com/funnyzak/mockflow/pkg/i18n"
	"github.com/funnyzak/mockflow/pkg/request"
)

func init() {
	color.NoColor = true
}

func newConsole(t *testing.T, cfg *config.BodyViewConfig, locale string) (*ConsolePrinter, *bytes.Buffer) {
	t.Helper()
	t.Setenv("MOCKFLOW_TEST_WIDTH", "80")
	tr, err := i18n.NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}
	p := NewConsolePrinter(logger.NewNop(), cfg, tr, locale)
	buf := &bytes.Buffer{}
	p.SetOutput(buf)
	return p, buf
}

func prettyJSON() *config.BodyViewConfig {
	return &config.BodyViewConfig{
		Enable: true,
		JSON:   config.PrettyConfig{Enable: true, Pretty: true},
		XML:    config.PrettyConfig{Enable: true, Pretty: true},
		HTML:   config.PrettyConfig{Enable: true, Pretty: true},
	}
}

func mockOutcome(t *testing.T) *runner.Outcome {
	t.Helper()
	tr, _ := i18n.NewTranslator("en")
	ep := endpoint.New("")
	ep.Name = "Get Users"
	ep.Path = "/api/users"
	ep.Schema = `{"id":"number"}`
	res := &simulator.Result{
		Status:  200,
		Data:    simulator.ParsePayload(`{"id":"1","name":"Ada"}`),
		Headers: map[string]string{simulator.HeaderContentType: "application/json"},
		Elapsed: 120 * time.Millisecond,
		RateLimit: &ratelimit.Decision{
			Allowed: true, Count: 1, Limit: 5, Remaining: 4,
		},
	}
	return &runner.Outcome{
		Source:      storage.SourceMock,
		Endpoint:    ep,
		Method:      ep.Method,
		URL:         ep.Path,
		Result:      res,
		Violations:  []string{"Field 'id' type mismatch: expected number, got string"},
		Explanation: explain.New(tr, "en").Mock(ep, 200),
		Entry:       &storage.HistoryEntry{Timestamp: time.Now()},
	}
}

func TestConsolePrinterOutcome(t *testing.T) {
	p, buf := newConsole(t, prettyJSON(), "")
	if err := p.PrintOutcome(mockOutcome(t)); err != nil {
		t.Fatalf("PrintOutcome failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Call #",
		"Endpoint: Get Users",
		"Source: Mock",
		"Status: 200",
		"Rate limit: 1/5",
		"  \"name\": \"Ada\"",
		"Schema violations",
		"Field 'id' type mismatch",
		"What happened",
		"Concept: Testing your own creation.",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsolePrinterValidationPassed(t *testing.T) {
	p, buf := newConsole(t, nil, "")
	o := mockOutcome(t)
	o.Violations = nil
	_ = p.PrintOutcome(o)
	if !strings.Contains(buf.String(), "Schema check passed") {
		t.Fatalf("expected passed notice:\n%s", buf.String())
	}
}

func TestConsolePrinterInboundRequest(t *testing.T) {
	p, buf := newConsole(t, nil, "")
	req := httptest.NewRequest(http.MethodPost, "/api/users?page=2", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Trace", "abc")
	o := mockOutcome(t)
	o.Request = request.Capture(req, []byte(`{"name":"Ada"}`))

	_ = p.PrintOutcome(o)
	out := buf.String()
	if !strings.Contains(out, "POST /api/users?page=2 HTTP/1.1") {
		t.Fatalf("request line missing:\n%s", out)
	}
	if strings.Contains(out, "secret") || !strings.Contains(out, "Authorization: [REDACTED]") {
		t.Fatalf("authorization header should be redacted:\n%s", out)
	}
	if !strings.Contains(out, "X-Trace: abc") {
		t.Fatalf("headers missing:\n%s", out)
	}
}

func TestConsolePrinterLocalized(t *testing.T) {
	p, buf := newConsole(t, nil, "zh-CN")
	_ = p.PrintOutcome(mockOutcome(t))
	if !strings.Contains(buf.String(), "调用 #") {
		t.Fatalf("expected localized summary:\n%s", buf.String())
	}
}

func TestConsolePrinterEmptyBody(t *testing.T) {
	p, buf := newConsole(t, nil, "")
	o := mockOutcome(t)
	o.Result.Data = simulator.ParsePayload("")
	_ = p.PrintOutcome(o)
	if !strings.Contains(buf.String(), "[Empty Body - 0 B]") {
		t.Fatalf("expected empty body notice:\n%s", buf.String())
	}
}

func TestConsolePrinterTruncatesBody(t *testing.T) {
	cfg := &config.BodyViewConfig{MaxPreviewBytes: 10}
	p, buf := newConsole(t, cfg, "")
	o := mockOutcome(t)
	o.Result.Data = simulator.ParsePayload(strings.Repeat("x", 40))
	_ = p.PrintOutcome(o)
	out := buf.String()
	if !strings.Contains(out, "[Body truncated, showing 10 B of 40 B]") {
		t.Fatalf("expected truncate hint:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("x", 11)) {
		t.Fatal("body should be cut to the preview size")
	}
}

func TestConsolePrinterEndpointsTable(t *testing.T) {
	p, buf := newConsole(t, nil, "")
	folder := endpoint.Folder{ID: "f1", Name: "Users"}
	ep := endpoint.New(folder.ID)
	ep.ID = "ep-1"
	ep.Name = "List Users"
	ep.RateLimit = &endpoint.RateLimitPolicy{Enabled: true, Limit: 3, WindowMs: 1000}

	if err := p.PrintEndpoints([]workspace.Item{{Endpoint: ep, Favorite: true}}, []endpoint.Folder{folder}); err != nil {
		t.Fatalf("PrintEndpoints failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"List Users", "ep-1", "Users", "3 / 1000ms", "╭"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestConsolePrinterEmptyTables(t *testing.T) {
	p, buf := newConsole(t, nil, "")
	_ = p.PrintEndpoints(nil, nil)
	_ = p.PrintHistory(nil, 0)
	out := buf.String()
	if !strings.Contains(out, "No endpoints defined") || !strings.Contains(out, "No calls recorded yet") {
		t.Fatalf("expected empty notices:\n%s", out)
	}
}

func TestConsolePrinterHistoryAndAnalytics(t *testing.T) {
	p, buf := newConsole(t, nil, "")
	entries := []*storage.HistoryEntry{
		{Endpoint: "Get Users", Source: storage.SourceMock, Method: "GET", Status: 200, Latency: 50, Timestamp: time.Now()},
		{Endpoint: "https://example.com", Source: storage.SourceLive, Method: "GET", Status: 500, Timestamp: time.Now()},
	}
	_ = p.PrintHistory(entries, 7)
	_ = p.PrintAnalytics(storage.Summarize(entries))

	out := buf.String()
	for _, want := range []string{"Get Users", "https://example.com", "2 of 7 calls", "Analytics", "50%", "25ms"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("alpha beta gamma delta", 11)
	if len(lines) != 2 || lines[0] != "alpha beta" || lines[1] != "gamma delta" {
		t.Fatalf("unexpected wrap %q", lines)
	}
	if got := wrapText("", 10); len(got) != 1 {
		t.Fatalf("empty text should yield one line, got %q", got)
	}
}

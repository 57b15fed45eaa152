package explain

import (
	"strings"
	"testing"

	"github.com/funnyzak/mockflow/pkg/endpoint"
	"github.com/funnyzak/mockflow/pkg/i18n"
)

func newExplainer(t *testing.T, locale string) *Explainer {
	t.Helper()
	tr, err := i18n.NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}
	return New(tr, locale)
}

func sampleEndpoint() *endpoint.Endpoint {
	ep := endpoint.New("")
	ep.Name = "Get Users"
	ep.Path = "/api/users"
	return ep
}

func TestMockExplanation(t *testing.T) {
	e := newExplainer(t, "")
	got := e.Mock(sampleEndpoint(), 201)

	if got.Kind != KindMock {
		t.Fatalf("expected mock kind, got %s", got.Kind)
	}
	if got.Concept != "Testing your own creation." {
		t.Fatalf("unexpected concept %q", got.Concept)
	}
	if got.Scenario != `Testing the "Get Users" endpoint which is designed to handle requests for /api/users.` {
		t.Fatalf("unexpected scenario %q", got.Scenario)
	}
	if !strings.HasSuffix(got.Action, "with a 201 code.") {
		t.Fatalf("action should name the status, got %q", got.Action)
	}
}

func TestRateLimitedExplanation(t *testing.T) {
	e := newExplainer(t, "en")
	got := e.Mock(sampleEndpoint(), 429)

	if got.Kind != KindRateLimited {
		t.Fatalf("expected rate limited kind, got %s", got.Kind)
	}
	if got.Scenario != `You've sent too many requests to "Get Users" in a short period.` {
		t.Fatalf("unexpected scenario %q", got.Scenario)
	}
}

func TestLiveExplanations(t *testing.T) {
	e := newExplainer(t, "en")
	url := "https://jsonplaceholder.typicode.com/todos/1"

	tests := []struct {
		name   string
		status int
		failed bool
		want   Kind
	}{
		{name: "ok", status: 200, want: KindLiveOK},
		{name: "no content is still ok", status: 204, want: KindLiveOK},
		{name: "refused", status: 404, want: KindLiveRefused},
		{name: "redirect is not ok", status: 302, want: KindLiveRefused},
		{name: "transport failure", status: 500, failed: true, want: KindLiveFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Live(url, tt.status, tt.failed)
			if got.Kind != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got.Kind)
			}
			if !strings.Contains(got.Scenario, url) {
				t.Fatalf("scenario should mention the url, got %q", got.Scenario)
			}
		})
	}

	refused := e.Live(url, 403, false)
	if !strings.Contains(refused.Action, "(Status 403)") {
		t.Fatalf("refused action should carry the status, got %q", refused.Action)
	}
}

func TestLocalizedExplanation(t *testing.T) {
	e := newExplainer(t, "en").WithLocale("zh-CN")
	got := e.Mock(sampleEndpoint(), 200)
	if got.Concept != "测试你自己定义的接口。" {
		t.Fatalf("expected zh-CN concept, got %q", got.Concept)
	}
	if e.Locale() != "zh-CN" {
		t.Fatalf("unexpected locale %s", e.Locale())
	}
}

func TestExplainerWithoutTranslator(t *testing.T) {
	got := New(nil, "").Live("http://x", 0, true)
	if got.Concept != "explain.live_failure.concept" {
		t.Fatalf("expected key fallback, got %q", got.Concept)
	}
}

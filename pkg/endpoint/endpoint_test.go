package endpoint

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	ep := New("folder-1")

	if ep.ID == "" {
		t.Fatal("expected generated id")
	}
	if ep.Name != "New Endpoint" || ep.Method != "GET" || ep.Path != "/api/v1/resource" {
		t.Fatalf("unexpected defaults: %+v", ep)
	}
	if ep.StatusCode != 200 || ep.ContentType != "application/json" || ep.Latency != 0 {
		t.Fatalf("unexpected defaults: %+v", ep)
	}
	if ep.FolderID != "folder-1" {
		t.Fatalf("expected folder id, got %s", ep.FolderID)
	}
	if ep.Body != "{\n  \"message\": \"Success\"\n}" {
		t.Fatalf("unexpected default body %q", ep.Body)
	}
	if ep.Variants == nil {
		t.Fatal("variants should be an empty slice")
	}
	if New("").ID == ep.ID {
		t.Fatal("ids should be unique")
	}
}

func TestDefaultsAreValid(t *testing.T) {
	defaults := Defaults()
	if len(defaults) != 3 {
		t.Fatalf("expected 3 sample endpoints, got %d", len(defaults))
	}
	wantIDs := []string{"default-1", "default-2", "default-3"}
	for i, ep := range defaults {
		if ep.ID != wantIDs[i] {
			t.Fatalf("expected id %s, got %s", wantIDs[i], ep.ID)
		}
		if err := ep.Validate(); err != nil {
			t.Fatalf("default endpoint %s invalid: %v", ep.ID, err)
		}
		if !json.Valid([]byte(ep.Body)) {
			t.Fatalf("default endpoint %s has invalid JSON body", ep.ID)
		}
	}
	if defaults[1].StatusCode != 401 || defaults[0].Latency != 300 || defaults[2].Path != "/health" {
		t.Fatal("sample endpoint values changed")
	}
}

func TestVariantLifecycle(t *testing.T) {
	ep := New("")
	ep.Body = `{"a":1}`

	v1 := ep.AddVariant()
	v2 := ep.AddVariant()
	if v1.Name != "Variant 1" || v2.Name != "Variant 2" {
		t.Fatalf("unexpected variant names %s, %s", v1.Name, v2.Name)
	}
	if v1.StatusCode != 200 || v1.Body != `{"a":1}` {
		t.Fatalf("variant should copy endpoint body: %+v", v1)
	}

	status := 503
	if _, err := ep.UpdateVariant(v2.ID, VariantPatch{StatusCode: &status}); err != nil {
		t.Fatalf("UpdateVariant failed: %v", err)
	}
	if err := ep.SelectVariant(v2.ID); err != nil {
		t.Fatalf("SelectVariant failed: %v", err)
	}
	if code, body := ep.Effective(); code != 503 || body != `{"a":1}` {
		t.Fatalf("unexpected effective response %d %s", code, body)
	}

	if err := ep.DeleteVariant(v2.ID); err != nil {
		t.Fatalf("DeleteVariant failed: %v", err)
	}
	if ep.ActiveVariantID != "" {
		t.Fatalf("deleting the active variant must clear the selection, got %q", ep.ActiveVariantID)
	}
	if code, _ := ep.Effective(); code != 200 {
		t.Fatalf("expected base status after delete, got %d", code)
	}
	if len(ep.Variants) != 1 || ep.Variants[0].ID != v1.ID {
		t.Fatalf("unexpected variants after delete: %+v", ep.Variants)
	}
}

func TestDeleteInactiveVariantKeepsSelection(t *testing.T) {
	ep := New("")
	v1 := ep.AddVariant()
	v2 := ep.AddVariant()
	_ = ep.SelectVariant(v1.ID)

	if err := ep.DeleteVariant(v2.ID); err != nil {
		t.Fatalf("DeleteVariant failed: %v", err)
	}
	if ep.ActiveVariantID != v1.ID {
		t.Fatalf("selection should survive, got %q", ep.ActiveVariantID)
	}
}

func TestVariantErrors(t *testing.T) {
	ep := New("")
	if err := ep.SelectVariant("nope"); !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected ErrVariantNotFound, got %v", err)
	}
	if err := ep.DeleteVariant("nope"); !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected ErrVariantNotFound, got %v", err)
	}
	if _, err := ep.UpdateVariant("nope", VariantPatch{}); !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected ErrVariantNotFound, got %v", err)
	}
	if err := ep.SelectVariant(""); err != nil {
		t.Fatalf("clearing selection should succeed: %v", err)
	}
}

func TestDanglingSelectionFallsBack(t *testing.T) {
	ep := New("")
	ep.ActiveVariantID = "ghost"
	if _, ok := ep.ActiveVariant(); ok {
		t.Fatal("dangling selection should not resolve")
	}
	if code, body := ep.Effective(); code != ep.StatusCode || body != ep.Body {
		t.Fatal("dangling selection should use endpoint defaults")
	}
	ep.Normalize()
	if ep.ActiveVariantID != "" {
		t.Fatal("Normalize should clear dangling selection")
	}
}

func TestUpdateRateLimit(t *testing.T) {
	ep := New("")
	enabled := true
	got := ep.UpdateRateLimit(RateLimitPatch{Enabled: &enabled})
	if !got.Enabled || got.Limit != 10 || got.WindowMs != 60000 {
		t.Fatalf("unexpected policy %+v", got)
	}

	limit := 3
	got = ep.UpdateRateLimit(RateLimitPatch{Limit: &limit})
	if !got.Enabled || got.Limit != 3 || got.WindowMs != 60000 {
		t.Fatalf("unexpected policy %+v", got)
	}

	zero := 0
	ep.RateLimit.Limit = 0
	got = ep.UpdateRateLimit(RateLimitPatch{})
	if got.Limit != 10 {
		t.Fatalf("zero limit should fall back to default, got %d", got.Limit)
	}
	got = ep.UpdateRateLimit(RateLimitPatch{Limit: &zero})
	if got.Limit != 0 {
		t.Fatalf("explicit zero limit should be kept, got %d", got.Limit)
	}
}

func TestFormatBody(t *testing.T) {
	ep := New("")
	ep.Body = `{"b":1,"a":[1,2]}`
	if err := ep.FormatBody(); err != nil {
		t.Fatalf("FormatBody failed: %v", err)
	}
	want := "{\n  \"b\": 1,\n  \"a\": [\n    1,\n    2\n  ]\n}"
	if ep.Body != want {
		t.Fatalf("unexpected body:\n%s", ep.Body)
	}

	ep.Body = "not json"
	if err := ep.FormatBody(); !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("expected ErrInvalidJSON, got %v", err)
	}
	if ep.Body != "not json" {
		t.Fatal("body must stay unchanged on error")
	}
}

func TestRequestTemplate(t *testing.T) {
	tests := map[string]string{
		"POST":   "Sample Name",
		"PUT":    "resource-id",
		"PATCH":  "Updated Name",
		"GET":    "{}",
		"DELETE": "{}",
	}
	for method, want := range tests {
		ep := New("")
		ep.Method = method
		got := ep.RequestTemplate()
		if !strings.Contains(got, want) {
			t.Fatalf("%s template %q should contain %q", method, got, want)
		}
		if !json.Valid([]byte(got)) {
			t.Fatalf("%s template is not valid JSON", method)
		}
	}
}

func TestValidate(t *testing.T) {
	ep := New("")
	ep.Method = "TRACE"
	if err := ep.Validate(); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}

	ep = New("")
	ep.Path = "no-slash"
	if err := ep.Validate(); err == nil {
		t.Fatal("expected path error")
	}

	ep = New("")
	ep.StatusCode = 42
	if err := ep.Validate(); err == nil {
		t.Fatal("expected status error")
	}
}

func TestNormalize(t *testing.T) {
	ep := &Endpoint{ID: "x", Method: "post"}
	ep.Normalize()
	if ep.Method != "POST" || ep.Path != DefaultPath || ep.Variants == nil {
		t.Fatalf("unexpected normalized endpoint %+v", ep)
	}
}

func TestCloneIsDeep(t *testing.T) {
	ep := New("")
	ep.AddVariant()
	ep.UpdateRateLimit(RateLimitPatch{})

	cp := ep.Clone()
	cp.Variants[0].Name = "changed"
	cp.RateLimit.Limit = 99

	if ep.Variants[0].Name == "changed" || ep.RateLimit.Limit == 99 {
		t.Fatal("Clone must not share variants or policy")
	}
}

func TestShareRoundTrip(t *testing.T) {
	ep := Defaults()[0]
	ep.AddVariant()

	token, err := EncodeShare(ep)
	if err != nil {
		t.Fatalf("EncodeShare failed: %v", err)
	}

	imported, err := DecodeShare(token)
	if err != nil {
		t.Fatalf("DecodeShare failed: %v", err)
	}
	if imported.ID == ep.ID {
		t.Fatal("imported endpoint must get a new id")
	}
	if imported.Name != ep.Name || imported.Body != ep.Body || len(imported.Variants) != 1 {
		t.Fatalf("imported endpoint mismatch: %+v", imported)
	}

	link, err := ShareURL("http://localhost:3000/", ep)
	if err != nil {
		t.Fatalf("ShareURL failed: %v", err)
	}
	fromURL, err := DecodeShare(link)
	if err != nil {
		t.Fatalf("DecodeShare(url) failed: %v", err)
	}
	if fromURL.Path != ep.Path {
		t.Fatalf("unexpected path %s", fromURL.Path)
	}
}

func TestDecodeShareRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "%%%", "bm90IGpzb24="} {
		if _, err := DecodeShare(token); !errors.Is(err, ErrInvalidShareToken) {
			t.Fatalf("expected ErrInvalidShareToken for %q, got %v", token, err)
		}
	}
}

func TestSnippets(t *testing.T) {
	ep := Defaults()[0]

	curl, err := Snippet(SnippetCurl, "", ep)
	if err != nil {
		t.Fatalf("Snippet failed: %v", err)
	}
	if curl != `curl -X GET "http://localhost:3000/api/v1/user/profile" -H "Content-Type: application/json"` {
		t.Fatalf("unexpected curl snippet %q", curl)
	}

	fetch, _ := Snippet(SnippetFetch, "https://mock.example.com/", ep)
	if !strings.HasPrefix(fetch, "fetch('https://mock.example.com/api/v1/user/profile'") {
		t.Fatalf("unexpected fetch snippet %q", fetch)
	}

	for _, kind := range SnippetKinds() {
		code, err := Snippet(kind, "", ep)
		if err != nil || !strings.Contains(code, "/api/v1/user/profile") {
			t.Fatalf("snippet %s failed: %v %q", kind, err, code)
		}
	}

	if _, err := Snippet("python", "", ep); err == nil {
		t.Fatal("expected error for unknown snippet kind")
	}
}

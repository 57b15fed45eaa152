package web

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/internal/runner"
	"github.com/funnyzak/mockflow/internal/simulator"
	"github.com/funnyzak/mockflow/internal/storage"
	"github.com/funnyzak/mockflow/internal/workspace"
	"github.com/funnyzak/mockflow/pkg/endpoint"
)

type apiFixture struct {
	t       *testing.T
	server  *httptest.Server
	service *Service
	store   storage.Store
	base    string
	token   string
}

func newAPI(t *testing.T, cfg *config.WebConfig) *apiFixture {
	t.Helper()
	store := storage.NewMemoryStore(20)
	ws, err := workspace.Open(context.Background(), store, logger.NewNop(), true)
	if err != nil {
		t.Fatalf("workspace.Open failed: %v", err)
	}
	r := runner.New(runner.Options{
		Workspace: ws,
		Engine:    simulator.New(nil, simulator.WithSleeper(func(time.Duration) {})),
		Store:     store,
	})
	if cfg == nil {
		cfg = &config.WebConfig{Enable: true, Export: config.WebExportConfig{Enable: true, Formats: []string{"json", "csv"}}}
	}
	svc := NewService(Options{Config: cfg, Runner: r, Store: store, BaseURL: "http://mock.test"})

	router := mux.NewRouter()
	svc.RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		svc.Close()
		srv.Close()
	})
	return &apiFixture{t: t, server: srv, service: svc, store: store, base: srv.URL + svc.AdminPath()}
}

func (f *apiFixture) do(method, path, body string) (*http.Response, []byte) {
	f.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.base+path, reader)
	if err != nil {
		f.t.Fatalf("NewRequest failed: %v", err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		f.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (f *apiFixture) expect(method, path, body string, status int, out interface{}) {
	f.t.Helper()
	resp, data := f.do(method, path, body)
	if resp.StatusCode != status {
		f.t.Fatalf("%s %s: expected %d, got %d: %s", method, path, status, resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			f.t.Fatalf("%s %s: invalid JSON %s: %v", method, path, data, err)
		}
	}
}

func TestEndpointLifecycle(t *testing.T) {
	f := newAPI(t, nil)

	var list struct {
		Data  []workspace.Item `json:"data"`
		Total int              `json:"total"`
	}
	f.expect(http.MethodGet, "/endpoints", "", http.StatusOK, &list)
	if list.Total != len(endpoint.Defaults()) {
		t.Fatalf("expected seeded endpoints, got %d", list.Total)
	}

	var folder endpoint.Folder
	f.expect(http.MethodPost, "/folders", `{"name":"Orders"}`, http.StatusCreated, &folder)
	f.expect(http.MethodPost, "/folders", `{"name":"  "}`, http.StatusBadRequest, nil)

	var created endpoint.Endpoint
	f.expect(http.MethodPost, "/endpoints", `{"folderId":"`+folder.ID+`"}`, http.StatusCreated, &created)
	if created.FolderID != folder.ID || created.Name != endpoint.DefaultName {
		t.Fatalf("unexpected endpoint %+v", created)
	}

	var custom endpoint.Endpoint
	f.expect(http.MethodPost, "/endpoints", `{"name":"List Orders","method":"get","path":"/orders","statusCode":200,"body":"[]"}`, http.StatusCreated, &custom)
	if custom.Path != "/orders" || custom.Method != "GET" {
		t.Fatalf("unexpected custom endpoint %+v", custom)
	}
	f.expect(http.MethodPost, "/endpoints", `{"name":"bad","path":"nope"}`, http.StatusBadRequest, nil)

	var patched endpoint.Endpoint
	f.expect(http.MethodPatch, "/endpoints/"+created.ID, `{"name":"Create Order","method":"POST","path":"/orders"}`, http.StatusOK, &patched)
	if patched.Name != "Create Order" || patched.Method != "POST" {
		t.Fatalf("patch not applied: %+v", patched)
	}

	var fav map[string]bool
	f.expect(http.MethodPost, "/endpoints/"+created.ID+"/favorite", "", http.StatusOK, &fav)
	if !fav["favorite"] {
		t.Fatal("endpoint should be favorite")
	}
	f.expect(http.MethodGet, "/endpoints?search=order", "", http.StatusOK, &list)
	if list.Total != 2 || list.Data[0].ID != created.ID || !list.Data[0].Favorite {
		t.Fatalf("favorite should sort first: %+v", list.Data)
	}

	var moved endpoint.Endpoint
	f.expect(http.MethodPost, "/endpoints/"+created.ID+"/move", `{"folderId":""}`, http.StatusOK, &moved)
	if moved.FolderID != "" {
		t.Fatal("endpoint should be at the root")
	}

	var templated endpoint.Endpoint
	f.expect(http.MethodPost, "/endpoints/"+created.ID+"/template", "", http.StatusOK, &templated)
	if templated.RequestBody == "" {
		t.Fatal("POST endpoint should get a request template")
	}

	var formatted endpoint.Endpoint
	f.expect(http.MethodPatch, "/endpoints/"+created.ID, `{"body":"{\"a\":1}"}`, http.StatusOK, nil)
	f.expect(http.MethodPost, "/endpoints/"+created.ID+"/format", "", http.StatusOK, &formatted)
	if formatted.Body != "{\n  \"a\": 1\n}" {
		t.Fatalf("body should be formatted, got %q", formatted.Body)
	}

	f.expect(http.MethodDelete, "/endpoints/"+created.ID, "", http.StatusNoContent, nil)
	f.expect(http.MethodGet, "/endpoints/"+created.ID, "", http.StatusNotFound, nil)
}

func TestFolderDeleteCascades(t *testing.T) {
	f := newAPI(t, nil)
	var folder endpoint.Folder
	f.expect(http.MethodPost, "/folders", `{"name":"Temp"}`, http.StatusCreated, &folder)
	var ep endpoint.Endpoint
	f.expect(http.MethodPost, "/endpoints", `{"folderId":"`+folder.ID+`"}`, http.StatusCreated, &ep)

	var removed struct {
		Removed []string `json:"removed"`
	}
	f.expect(http.MethodDelete, "/folders/"+folder.ID, "", http.StatusOK, &removed)
	if len(removed.Removed) != 1 || removed.Removed[0] != ep.ID {
		t.Fatalf("unexpected removed ids %v", removed.Removed)
	}
	f.expect(http.MethodGet, "/endpoints/"+ep.ID, "", http.StatusNotFound, nil)
	f.expect(http.MethodDelete, "/folders/"+folder.ID, "", http.StatusNotFound, nil)
}

func TestVariantsAndSimulate(t *testing.T) {
	f := newAPI(t, nil)
	var ep endpoint.Endpoint
	f.expect(http.MethodPost, "/endpoints", `{"name":"Users","path":"/users","body":"{\"id\":1}","schema":"{\"id\":\"number\"}"}`, http.StatusCreated, &ep)

	var v endpoint.Variant
	f.expect(http.MethodPost, "/endpoints/"+ep.ID+"/variants", "", http.StatusCreated, &v)
	f.expect(http.MethodPatch, "/endpoints/"+ep.ID+"/variants/"+v.ID, `{"statusCode":404,"body":"{\"error\":\"nf\"}"}`, http.StatusOK, &v)
	f.expect(http.MethodPatch, "/endpoints/"+ep.ID+"/variants/missing", `{}`, http.StatusNotFound, nil)
	f.expect(http.MethodPut, "/endpoints/"+ep.ID+"/active-variant", `{"variantId":"`+v.ID+`"}`, http.StatusOK, nil)

	var outcome runner.Outcome
	f.expect(http.MethodPost, "/endpoints/"+ep.ID+"/simulate?locale=en", "", http.StatusOK, &outcome)
	if outcome.Result.Status != 404 || outcome.Result.VariantID != v.ID {
		t.Fatalf("active variant should answer, got %+v", outcome.Result)
	}
	if len(outcome.Violations) != 1 || !strings.Contains(outcome.Violations[0], "Missing field: id") {
		t.Fatalf("unexpected violations %v", outcome.Violations)
	}

	var updated endpoint.Endpoint
	f.expect(http.MethodDelete, "/endpoints/"+ep.ID+"/variants/"+v.ID, "", http.StatusOK, &updated)
	if updated.ActiveVariantID != "" {
		t.Fatal("deleting the active variant should clear the selection")
	}
}

func TestRateLimitViaAPI(t *testing.T) {
	f := newAPI(t, nil)
	var ep endpoint.Endpoint
	f.expect(http.MethodPost, "/endpoints", `{"name":"Limited","path":"/limited"}`, http.StatusCreated, &ep)

	var policy endpoint.RateLimitPolicy
	f.expect(http.MethodPatch, "/endpoints/"+ep.ID+"/ratelimit", `{"enabled":true,"limit":1}`, http.StatusOK, &policy)
	if !policy.Enabled || policy.Limit != 1 || policy.WindowMs != endpoint.DefaultRateLimitWindow {
		t.Fatalf("unexpected policy %+v", policy)
	}

	var outcome runner.Outcome
	f.expect(http.MethodPost, "/endpoints/"+ep.ID+"/simulate", "", http.StatusOK, &outcome)
	f.expect(http.MethodPost, "/endpoints/"+ep.ID+"/simulate", "", http.StatusOK, &outcome)
	if outcome.Result.Status != http.StatusTooManyRequests {
		t.Fatalf("second call should be limited, got %d", outcome.Result.Status)
	}

	f.expect(http.MethodDelete, "/endpoints/"+ep.ID+"/ratelimit/state", "", http.StatusNoContent, nil)
	f.expect(http.MethodPost, "/endpoints/"+ep.ID+"/simulate", "", http.StatusOK, &outcome)
	if outcome.Result.Status != http.StatusOK {
		t.Fatalf("reset should reopen the window, got %d", outcome.Result.Status)
	}
}

func TestShareImportAndSnippet(t *testing.T) {
	f := newAPI(t, nil)
	id := endpoint.Defaults()[0].ID

	var share map[string]string
	f.expect(http.MethodGet, "/endpoints/"+id+"/share", "", http.StatusOK, &share)
	if !strings.HasPrefix(share["url"], "http://mock.test?share=") && !strings.HasPrefix(share["url"], "http://mock.test/?share=") {
		t.Fatalf("unexpected share url %s", share["url"])
	}

	body, _ := json.Marshal(map[string]string{"token": share["url"]})
	var imported endpoint.Endpoint
	f.expect(http.MethodPost, "/import", string(body), http.StatusCreated, &imported)
	if imported.ID == id || imported.Name != endpoint.Defaults()[0].Name {
		t.Fatalf("import should copy under a new id, got %+v", imported)
	}
	f.expect(http.MethodPost, "/import", `{"token":"%%%"}`, http.StatusBadRequest, nil)

	var snippet map[string]string
	f.expect(http.MethodGet, "/endpoints/"+id+"/snippets/curl", "", http.StatusOK, &snippet)
	if !strings.Contains(snippet["code"], "http://mock.test"+endpoint.Defaults()[0].Path) {
		t.Fatalf("unexpected snippet %q", snippet["code"])
	}
	f.expect(http.MethodGet, "/endpoints/"+id+"/snippets/cobol", "", http.StatusBadRequest, nil)
}

func TestHistoryAnalyticsAndExport(t *testing.T) {
	f := newAPI(t, nil)
	id := endpoint.Defaults()[0].ID
	for i := 0; i < 3; i++ {
		f.expect(http.MethodPost, "/endpoints/"+id+"/simulate", "", http.StatusOK, nil)
	}

	var history struct {
		Data  []storage.HistoryEntry `json:"data"`
		Total int                    `json:"total"`
	}
	f.expect(http.MethodGet, "/history?limit=2", "", http.StatusOK, &history)
	if history.Total != 3 || len(history.Data) != 2 {
		t.Fatalf("unexpected history page %d/%d", len(history.Data), history.Total)
	}

	var analytics storage.Analytics
	f.expect(http.MethodGet, "/analytics", "", http.StatusOK, &analytics)
	if analytics.Total != 3 || analytics.SuccessRate != 100 {
		t.Fatalf("unexpected analytics %+v", analytics)
	}

	resp, data := f.do(http.MethodGet, "/history/export?format=csv", "")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "text/csv" {
		t.Fatalf("unexpected export response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Disposition"), "attachment; filename=mockflow_history_") {
		t.Fatalf("unexpected disposition %s", resp.Header.Get("Content-Disposition"))
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus three rows, got %d", len(rows))
	}
	f.expect(http.MethodGet, "/history/export?format=xml", "", http.StatusBadRequest, nil)

	f.expect(http.MethodDelete, "/history", "", http.StatusNoContent, nil)
	f.expect(http.MethodGet, "/history", "", http.StatusOK, &history)
	if history.Total != 0 {
		t.Fatal("history should be cleared")
	}
}

func TestExportDisabled(t *testing.T) {
	f := newAPI(t, &config.WebConfig{Enable: true})
	f.expect(http.MethodGet, "/history/export", "", http.StatusForbidden, nil)
}

func TestLiveDisabledViaAPI(t *testing.T) {
	f := newAPI(t, nil)
	f.expect(http.MethodPost, "/live", `{"url":"http://example.com"}`, http.StatusServiceUnavailable, nil)
}

func TestAuthRoles(t *testing.T) {
	cfg := &config.WebConfig{
		Enable: true,
		Auth: config.WebAuthConfig{
			Enable:         true,
			SessionTimeout: time.Hour,
			Users: []config.WebUserConfig{
				{Username: "admin", Password: "a", Role: "admin"},
				{Username: "viewer", Password: "v", Role: "viewer"},
			},
		},
		Export: config.WebExportConfig{Enable: true},
	}
	f := newAPI(t, cfg)

	f.expect(http.MethodGet, "/endpoints", "", http.StatusUnauthorized, nil)
	f.expect(http.MethodPost, "/auth/login", `{"username":"admin","password":"x"}`, http.StatusUnauthorized, nil)

	var login map[string]interface{}
	f.expect(http.MethodPost, "/auth/login", `{"username":"viewer","password":"v"}`, http.StatusOK, &login)
	f.token = login["token"].(string)
	f.expect(http.MethodGet, "/endpoints", "", http.StatusOK, nil)
	f.expect(http.MethodPost, "/folders", `{"name":"x"}`, http.StatusForbidden, nil)
	f.expect(http.MethodGet, "/history/export", "", http.StatusForbidden, nil)

	var me map[string]interface{}
	f.expect(http.MethodGet, "/auth/me", "", http.StatusOK, &me)
	if me["role"] != roleViewer || me["auth"] != true {
		t.Fatalf("unexpected me %v", me)
	}

	f.expect(http.MethodPost, "/auth/logout", "", http.StatusOK, nil)
	f.expect(http.MethodGet, "/endpoints", "", http.StatusUnauthorized, nil)

	f.token = ""
	f.expect(http.MethodPost, "/auth/login", `{"username":"admin","password":"a"}`, http.StatusOK, &login)
	f.token = login["token"].(string)
	f.expect(http.MethodPost, "/folders", `{"name":"x"}`, http.StatusCreated, nil)
}

func TestWebsocketReceivesCalls(t *testing.T) {
	f := newAPI(t, nil)
	wsURL := "ws" + strings.TrimPrefix(f.base, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.service.Hub().Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	f.expect(http.MethodPost, "/endpoints/"+endpoint.Defaults()[0].ID+"/simulate", "", http.StatusOK, nil)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event struct {
		Type string               `json:"type"`
		Data storage.HistoryEntry `json:"data"`
	}
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if event.Type != "call" || event.Data.Endpoint != endpoint.Defaults()[0].Name {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestRequestLocale(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?locale=zh-CN", nil)
	if got := requestLocale(r); got != "zh-CN" {
		t.Fatalf("query locale should win, got %q", got)
	}
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Language", "zh-CN;q=0.9, en")
	if got := requestLocale(r); got != "zh-CN" {
		t.Fatalf("unexpected header locale %q", got)
	}
}

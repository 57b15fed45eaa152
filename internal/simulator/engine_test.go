package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/funnyzak/mockflow/internal/ratelimit"
	"github.com/funnyzak/mockflow/pkg/endpoint"
)

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func newTestEngine() (*Engine, *fakeClock) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	return New(nil, WithClock(clock.Now), WithSleeper(clock.Sleep)), clock
}

func jsonEndpoint() *endpoint.Endpoint {
	ep := endpoint.New("")
	ep.ID = "ep-1"
	ep.Body = `{"id":1,"name":"Ada"}`
	ep.ContentType = "application/vnd.api+json"
	return ep
}

func TestSimulateJSONBody(t *testing.T) {
	engine, _ := newTestEngine()
	res := engine.Simulate(context.Background(), jsonEndpoint())

	if res.Status != 200 {
		t.Fatalf("expected 200, got %d", res.Status)
	}
	if res.ContentType() != "application/vnd.api+json" {
		t.Fatalf("declared content type should pass through, got %s", res.ContentType())
	}
	v, ok := res.Data.Value()
	if !ok {
		t.Fatal("expected parsed payload")
	}
	if got := v.String(); got != `{"id":1,"name":"Ada"}` {
		t.Fatalf("unexpected data %s", got)
	}
	if res.RateLimit != nil {
		t.Fatal("no decision expected without a policy")
	}
}

func TestSimulateNonJSONBodyFallsBackToText(t *testing.T) {
	engine, _ := newTestEngine()
	ep := jsonEndpoint()
	ep.Body = "hello"

	res := engine.Simulate(context.Background(), ep)
	if res.Status != 200 {
		t.Fatalf("expected 200, got %d", res.Status)
	}
	if res.Data.IsJSON() {
		t.Fatal("payload should be raw text")
	}
	if res.Data.Raw() != "hello" {
		t.Fatalf("unexpected raw body %q", res.Data.Raw())
	}
	if res.ContentType() != "text/plain" {
		t.Fatalf("expected text/plain, got %s", res.ContentType())
	}

	out, _ := json.Marshal(res.Data)
	if string(out) != `"hello"` {
		t.Fatalf("raw payload should encode as a JSON string, got %s", out)
	}
}

func TestSimulateEmptyBodyIsText(t *testing.T) {
	engine, _ := newTestEngine()
	ep := jsonEndpoint()
	ep.Body = ""

	res := engine.Simulate(context.Background(), ep)
	if res.ContentType() != "text/plain" || res.Data.Raw() != "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSimulateUsesActiveVariant(t *testing.T) {
	engine, _ := newTestEngine()
	ep := jsonEndpoint()
	v := ep.AddVariant()
	status := 404
	body := `{"error":"nf"}`
	ep.UpdateVariant(v.ID, endpoint.VariantPatch{StatusCode: &status, Body: &body})
	ep.ActiveVariantID = v.ID

	res := engine.Simulate(context.Background(), ep)
	if res.Status != 404 {
		t.Fatalf("expected variant status 404, got %d", res.Status)
	}
	if res.Data.Raw() != `{"error":"nf"}` {
		t.Fatalf("expected variant body, got %s", res.Data.Raw())
	}
	if res.VariantID != v.ID {
		t.Fatalf("expected variant id %s, got %s", v.ID, res.VariantID)
	}
}

func TestSimulateUnknownVariantUsesDefaults(t *testing.T) {
	engine, _ := newTestEngine()
	ep := jsonEndpoint()
	ep.AddVariant()
	ep.ActiveVariantID = "missing"

	res := engine.Simulate(context.Background(), ep)
	if res.Status != 200 || res.Data.Raw() != ep.Body || res.VariantID != "" {
		t.Fatalf("expected endpoint defaults, got %+v", res)
	}
}

func TestSimulateSleepsForLatency(t *testing.T) {
	engine, clock := newTestEngine()
	ep := jsonEndpoint()
	ep.Latency = 300

	res := engine.Simulate(context.Background(), ep)
	if len(clock.slept) != 1 || clock.slept[0] != 300*time.Millisecond {
		t.Fatalf("expected one 300ms sleep, got %v", clock.slept)
	}
	if res.Elapsed != 300*time.Millisecond {
		t.Fatalf("expected elapsed 300ms, got %v", res.Elapsed)
	}

	ep.Latency = 0
	engine.Simulate(context.Background(), ep)
	if len(clock.slept) != 1 {
		t.Fatal("zero latency should not sleep")
	}
}

func TestSimulateRateLimit(t *testing.T) {
	engine, clock := newTestEngine()
	ep := jsonEndpoint()
	ep.Latency = 50
	ep.RateLimit = &endpoint.RateLimitPolicy{Enabled: true, Limit: 2, WindowMs: 1000}

	for i := 0; i < 2; i++ {
		res := engine.Simulate(context.Background(), ep)
		if res.Status != 200 {
			t.Fatalf("call %d should succeed, got %d", i+1, res.Status)
		}
		if res.RateLimit == nil || !res.RateLimit.Allowed {
			t.Fatalf("call %d should carry an allowed decision", i+1)
		}
	}

	sleeps := len(clock.slept)
	res := engine.Simulate(context.Background(), ep)
	if res.Status != 429 {
		t.Fatalf("third call should be limited, got %d", res.Status)
	}
	if !res.Limited() {
		t.Fatal("Limited() should report true")
	}
	if len(clock.slept) != sleeps {
		t.Fatal("limited calls must not sleep")
	}
	if res.ContentType() != "application/json" {
		t.Fatalf("unexpected content type %s", res.ContentType())
	}
	want := `{"error":"Too Many Requests","message":"Rate limit exceeded. Please try again later."}`
	if got, _ := json.Marshal(res.Data); string(got) != want {
		t.Fatalf("unexpected 429 body %s", got)
	}

	// after the window the endpoint answers again
	clock.now = clock.now.Add(2 * time.Second)
	if res := engine.Simulate(context.Background(), ep); res.Status != 200 {
		t.Fatalf("call after window should succeed, got %d", res.Status)
	}
}

func TestSimulateDisabledPolicyBypassesTracker(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	engine := New(ratelimit.NewTracker(store), WithSleeper(func(time.Duration) {}))
	ep := jsonEndpoint()
	ep.RateLimit = &endpoint.RateLimitPolicy{Enabled: false, Limit: 0, WindowMs: 1000}

	for i := 0; i < 3; i++ {
		if res := engine.Simulate(context.Background(), ep); res.Status != 200 {
			t.Fatalf("disabled policy must not limit, got %d", res.Status)
		}
	}
	if store.Len() != 0 {
		t.Fatal("disabled policy must not create tracker state")
	}
}

type brokenStore struct{ ratelimit.MemoryStore }

func (*brokenStore) Hit(context.Context, string, time.Duration, time.Time) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("redis down")
}

func TestSimulateFailsOpenOnStoreError(t *testing.T) {
	engine := New(ratelimit.NewTracker(&brokenStore{}), WithSleeper(func(time.Duration) {}))
	ep := jsonEndpoint()
	ep.RateLimit = &endpoint.RateLimitPolicy{Enabled: true, Limit: 0, WindowMs: 1000}

	res := engine.Simulate(context.Background(), ep)
	if res.Status != 200 {
		t.Fatalf("store errors should fail open, got %d", res.Status)
	}
	if res.RateLimit != nil {
		t.Fatal("no decision expected when the store failed")
	}
}

func TestEnginesDoNotShareWindows(t *testing.T) {
	a, _ := newTestEngine()
	b, _ := newTestEngine()
	ep := jsonEndpoint()
	ep.RateLimit = &endpoint.RateLimitPolicy{Enabled: true, Limit: 1, WindowMs: 60000}

	a.Simulate(context.Background(), ep)
	if res := a.Simulate(context.Background(), ep); res.Status != 429 {
		t.Fatalf("engine a should be limited, got %d", res.Status)
	}
	if res := b.Simulate(context.Background(), ep); res.Status != 200 {
		t.Fatalf("engine b has its own windows, got %d", res.Status)
	}
}

func TestPayloadJSONRoundTrip(t *testing.T) {
	p := ParsePayload(`{"b":[1,2],"a":"x"}`)
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back Payload
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !back.IsJSON() || back.Raw() != `{"b":[1,2],"a":"x"}` {
		t.Fatalf("unexpected payload %+v", back)
	}

	raw := ParsePayload("plain")
	data, _ = json.Marshal(raw)
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.IsJSON() || back.Raw() != "plain" {
		t.Fatalf("unexpected raw payload %+v", back)
	}
}

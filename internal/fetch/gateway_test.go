package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xela07ax/threatwatch/internal/infra"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingReporter struct {
	mu        sync.Mutex
	successes int
	failures  int
}

func (r *recordingReporter) ReportSuccess() {
	r.mu.Lock()
	r.successes++
	r.mu.Unlock()
}

func (r *recordingReporter) ReportFailure(error) {
	r.mu.Lock()
	r.failures++
	r.mu.Unlock()
}

func (r *recordingReporter) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.successes, r.failures
}

type recordingObserver struct {
	mu   sync.Mutex
	errs []error
}

func (o *recordingObserver) ReportError(_ string, err error) {
	o.mu.Lock()
	o.errs = append(o.errs, err)
	o.mu.Unlock()
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.errs)
}

func newTestGateway(t *testing.T, baseURL string, cfg infra.SourceConfig) (*Gateway, *recordingReporter, *recordingObserver) {
	t.Helper()
	cfg.BaseURL = baseURL
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Minute
	}

	rep := &recordingReporter{}
	obs := &recordingObserver{}
	g, err := NewGateway(cfg, rep, obs, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return g, rep, obs
}

func TestGateway_CacheFreshness(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"total_threats": 5}`))
	}))
	defer srv.Close()

	g, _, _ := newTestGateway(t, srv.URL, infra.SourceConfig{CacheTTL: time.Minute})
	clock := newFakeClock()
	g.cache = NewCache(time.Minute, clock.Now)

	ctx := context.Background()
	params := url.Values{"hours": {"24"}}

	if _, err := g.Get(ctx, EndpointStats, params, true); err != nil {
		t.Fatalf("first get: %v", err)
	}

	clock.Advance(59 * time.Second)
	if _, err := g.Get(ctx, EndpointStats, params, true); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 network call within ttl, got %d", got)
	}

	// Ровно на границе TTL запись уже невалидна
	clock.Advance(1 * time.Second)
	if _, err := g.Get(ctx, EndpointStats, params, true); err != nil {
		t.Fatalf("third get: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected refetch at ttl boundary, got %d calls", got)
	}
}

func TestGateway_CacheBypassAndSignature(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	g, _, _ := newTestGateway(t, srv.URL, infra.SourceConfig{})
	ctx := context.Background()

	a := url.Values{}
	a.Set("page", "1")
	a.Set("per_page", "20")
	b := url.Values{}
	b.Set("per_page", "20")
	b.Set("page", "1")

	g.Get(ctx, EndpointThreats, a, true)
	g.Get(ctx, EndpointThreats, b, true) // Тот же набор параметров в другом порядке
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected parameter order to be irrelevant, got %d calls", got)
	}

	g.Get(ctx, EndpointThreats, a, false)
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected useCache=false to hit network, got %d calls", got)
	}

	g.Get(ctx, EndpointThreats, url.Values{"page": {"2"}}, true)
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected different params to miss cache, got %d calls", got)
	}

	g.ClearCache()
	g.Get(ctx, EndpointThreats, a, true)
	if got := calls.Load(); got != 4 {
		t.Fatalf("expected cleared cache to refetch, got %d calls", got)
	}
}

func TestGateway_HTTPStatusDoesNotTouchConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g, rep, obs := newTestGateway(t, srv.URL, infra.SourceConfig{})

	_, err := g.Get(context.Background(), EndpointStats, nil, true)
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if statusErr.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", statusErr.Status)
	}

	successes, failures := rep.counts()
	if successes != 0 || failures != 0 {
		t.Errorf("expected no connectivity reports, got successes=%d failures=%d", successes, failures)
	}
	if obs.count() != 1 {
		t.Errorf("expected error reported once, got %d", obs.count())
	}
}

func TestGateway_NetworkErrorReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	g, rep, obs := newTestGateway(t, base, infra.SourceConfig{})

	_, err := g.Get(context.Background(), EndpointStats, nil, true)
	if !IsNetwork(err) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if _, failures := rep.counts(); failures != 1 {
		t.Errorf("expected 1 failure report, got %d", failures)
	}
	if obs.count() != 1 {
		t.Errorf("expected error reported once, got %d", obs.count())
	}
}

func TestGateway_TimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	g, rep, _ := newTestGateway(t, srv.URL, infra.SourceConfig{Timeout: 50 * time.Millisecond})

	_, err := g.Get(context.Background(), EndpointStats, nil, true)
	if !IsNetwork(err) {
		t.Fatalf("expected NetworkError on timeout, got %v", err)
	}
	if _, failures := rep.counts(); failures != 1 {
		t.Errorf("expected timeout to be reported to connectivity, got %d", failures)
	}
}

func TestGateway_CallerCancelIsNotNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	g, rep, obs := newTestGateway(t, srv.URL, infra.SourceConfig{Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := g.Get(ctx, EndpointStats, nil, true)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, failures := rep.counts(); failures != 0 {
		t.Errorf("caller cancel must not flip connectivity, got %d failures", failures)
	}
	if obs.count() != 0 {
		t.Errorf("caller cancel must not be reported, got %d", obs.count())
	}
}

func TestGateway_InvalidJSONIsNotCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`<html>oops`))
	}))
	defer srv.Close()

	g, rep, _ := newTestGateway(t, srv.URL, infra.SourceConfig{})

	for i := 0; i < 2; i++ {
		_, err := g.Get(context.Background(), EndpointStats, nil, true)
		var decErr *DecodeError
		if !errors.As(err, &decErr) {
			t.Fatalf("expected DecodeError, got %v", err)
		}
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected invalid payload to stay out of cache, got %d calls", got)
	}
	if successes, failures := rep.counts(); successes != 0 || failures != 0 {
		t.Errorf("decode error must not touch connectivity, got %d/%d", successes, failures)
	}
}

func TestGateway_PostSendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != EndpointTestAlert {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"success","message":"Test alert sent"}`))
	}))
	defer srv.Close()

	g, rep, _ := newTestGateway(t, srv.URL, infra.SourceConfig{})

	if _, err := g.Post(context.Background(), EndpointTestAlert, map[string]string{"message": "hi"}); err != nil {
		t.Fatalf("post: %v", err)
	}
	if successes, _ := rep.counts(); successes != 1 {
		t.Errorf("expected success report, got %d", successes)
	}
}

func TestGateway_BreakerFailsFastAsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	g, rep, _ := newTestGateway(t, base, infra.SourceConfig{BreakerFailures: 2, BreakerTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := g.Get(ctx, EndpointStats, nil, false); !IsNetwork(err) {
			t.Fatalf("call %d: expected NetworkError, got %v", i, err)
		}
	}

	_, err := g.Get(ctx, EndpointStats, nil, false)
	if !IsNetwork(err) {
		t.Fatalf("expected open breaker to surface as NetworkError, got %v", err)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState cause, got %v", err)
	}
	if _, failures := rep.counts(); failures != 3 {
		t.Errorf("expected 3 failure reports, got %d", failures)
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := map[string]string{
		"/api/threats/42": "/api/threats/:id",
		"/api/threats":    "/api/threats",
		"/health":         "/health",
	}
	for in, want := range tests {
		if got := endpointLabel(in); got != want {
			t.Errorf("endpointLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

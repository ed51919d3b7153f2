package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/discovery"
	"github.com/alanyoungcy/polytrade/internal/domain"
	"github.com/alanyoungcy/polytrade/internal/server/handler"
	"github.com/alanyoungcy/polytrade/internal/server/ws"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ─── Fakes ─────────────────────────────────────────────────────────────────

type fakeSuggestions struct {
	recent  []domain.Suggestion
	scanErr error
	scanned []string
}

func (f *fakeSuggestions) Recent(_ context.Context, limit int) ([]domain.Suggestion, error) {
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeSuggestions) ScanProfile(_ context.Context, name string) (discovery.Result, error) {
	f.scanned = append(f.scanned, name)
	if f.scanErr != nil {
		return discovery.Result{}, f.scanErr
	}
	return discovery.Result{Profile: name, Fetched: 3}, nil
}

func (f *fakeSuggestions) ScanAll(ctx context.Context) ([]discovery.Result, error) {
	a, _ := f.ScanProfile(ctx, "live")
	b, _ := f.ScanProfile(ctx, "urgent")
	return []discovery.Result{a, b}, nil
}

type fakeTrades struct {
	execErr  error
	lastSize float64
	status   domain.TradeStatus
}

func (f *fakeTrades) ExecuteByID(_ context.Context, id string, size float64) (domain.Trade, error) {
	f.lastSize = size
	if f.execErr != nil {
		return domain.Trade{}, f.execErr
	}
	return domain.Trade{ID: "t-1", SuggestionID: id, Size: size, Status: domain.TradeStatusOpen}, nil
}

func (f *fakeTrades) List(_ context.Context, status domain.TradeStatus, _ int) ([]domain.Trade, error) {
	f.status = status
	return nil, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

func newTestServer(t *testing.T, sugg *fakeSuggestions, trades *fakeTrades, cfg Config, limiter domain.RateLimiter, checks map[string]handler.Pinger) *httptest.Server {
	t.Helper()
	log := testLogger()
	srv := NewServer(cfg, Handlers{
		Health:      handler.NewHealthHandler(checks, log),
		Suggestions: handler.NewSuggestionHandler(sugg, log),
		Trades:      handler.NewTradeHandler(trades, log),
	}, nil, limiter, log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string, header map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

// ─── Routes ────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeSuggestions{}, &fakeTrades{}, Config{}, nil, map[string]handler.Pinger{
		"postgres": fakePinger{},
	})
	resp, body := do(t, http.MethodGet, ts.URL+"/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	ts = newTestServer(t, &fakeSuggestions{}, &fakeTrades{}, Config{}, nil, map[string]handler.Pinger{
		"redis": fakePinger{err: errors.New("connection refused")},
	})
	resp, body = do(t, http.MethodGet, ts.URL+"/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
}

func TestListSuggestions(t *testing.T) {
	sugg := &fakeSuggestions{recent: []domain.Suggestion{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	ts := newTestServer(t, sugg, &fakeTrades{}, Config{}, nil, nil)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/suggestions?limit=2", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["count"])
}

func TestScan(t *testing.T) {
	sugg := &fakeSuggestions{}
	ts := newTestServer(t, sugg, &fakeTrades{}, Config{}, nil, nil)

	resp, body := do(t, http.MethodPost, ts.URL+"/api/scan?profile=urgent", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "urgent", body["profile"])

	resp, body = do(t, http.MethodPost, ts.URL+"/api/scan", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["results"], 2)
}

func TestScan_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", domain.ErrInvalidParams), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", domain.ErrLockHeld), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		ts := newTestServer(t, &fakeSuggestions{scanErr: tc.err}, &fakeTrades{}, Config{}, nil, nil)
		resp, body := do(t, http.MethodPost, ts.URL+"/api/scan?profile=x", "", nil)
		assert.Equal(t, tc.want, resp.StatusCode, tc.err.Error())
		if tc.want == http.StatusInternalServerError {
			assert.Equal(t, "internal server error", body["error"])
		}
	}
}

func TestExecute(t *testing.T) {
	trades := &fakeTrades{}
	ts := newTestServer(t, &fakeSuggestions{}, trades, Config{APIKey: "secret"}, nil, nil)
	url := ts.URL + "/api/suggestions/s-1/execute"

	resp, _ := do(t, http.MethodPost, url, `{"size":3}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := do(t, http.MethodPost, url, `{"size":3}`, map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "s-1", body["suggestion_id"])
	assert.Equal(t, 3.0, trades.lastSize)

	resp, _ = do(t, http.MethodPost, url, "", map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 0.0, trades.lastSize)

	resp, _ = do(t, http.MethodPost, url, `{"size":-1}`, map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExecute_ErrorMapping(t *testing.T) {
	cases := map[error]int{
		domain.ErrNotFound:            http.StatusNotFound,
		domain.ErrSuggestionExpired:   http.StatusGone,
		domain.ErrPositionExists:      http.StatusConflict,
		domain.ErrInsufficientBalance: http.StatusPaymentRequired,
		domain.ErrInvalidOrder:        http.StatusBadRequest,
	}
	for sentinel, want := range cases {
		trades := &fakeTrades{execErr: fmt.Errorf("trade_service: %w", sentinel)}
		ts := newTestServer(t, &fakeSuggestions{}, trades, Config{}, nil, nil)
		resp, _ := do(t, http.MethodPost, ts.URL+"/api/suggestions/x/execute", "", nil)
		assert.Equal(t, want, resp.StatusCode, sentinel.Error())
	}
}

func TestListTrades(t *testing.T) {
	trades := &fakeTrades{}
	ts := newTestServer(t, &fakeSuggestions{}, trades, Config{}, nil, nil)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/trades?status=open", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.TradeStatusOpen, trades.status)
	assert.Equal(t, []any{}, body["trades"])

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/trades?status=pending", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimitGuardsMutatingRoutesOnly(t *testing.T) {
	ts := newTestServer(t, &fakeSuggestions{}, &fakeTrades{}, Config{RateLimit: 1, RateWindow: time.Second}, denyLimiter{}, nil)

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/scan?profile=live", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/suggestions", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimitRunsBeforeAuth(t *testing.T) {
	ts := newTestServer(t, &fakeSuggestions{}, &fakeTrades{}, Config{APIKey: "secret", RateLimit: 1, RateWindow: 2 * time.Second}, denyLimiter{}, nil)

	resp, _ := do(t, http.MethodPost, ts.URL+"/api/scan?profile=live", "", map[string]string{"Authorization": "Bearer guess"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get("Retry-After"))
}

func TestMetricsAndCORS(t *testing.T) {
	ts := newTestServer(t, &fakeSuggestions{}, &fakeTrades{}, Config{CORSOrigins: []string{"https://ops.example"}}, nil, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	preflight := map[string]string{"Origin": "https://ops.example", "Access-Control-Request-Method": "POST"}
	resp, _ = do(t, http.MethodOptions, ts.URL+"/api/scan", "", preflight)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://ops.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Origin", resp.Header.Get("Vary"))

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/suggestions", "", map[string]string{"Origin": "https://ops.example"})
	assert.Equal(t, "Retry-After", resp.Header.Get("Access-Control-Expose-Headers"))

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/suggestions", "", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORS_EmptyListIsSameOriginOnly(t *testing.T) {
	ts := newTestServer(t, &fakeSuggestions{}, &fakeTrades{}, Config{}, nil, nil)

	preflight := map[string]string{"Origin": "https://ops.example", "Access-Control-Request-Method": "POST"}
	resp, _ := do(t, http.MethodOptions, ts.URL+"/api/scan", "", preflight)
	assert.NotEqual(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

// ─── Request log ───────────────────────────────────────────────────────────

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRequestLogRecordsRoute(t *testing.T) {
	out := &syncBuffer{}
	log := slog.New(slog.NewJSONHandler(out, nil))
	srv := NewServer(Config{}, Handlers{
		Health:      handler.NewHealthHandler(nil, log),
		Suggestions: handler.NewSuggestionHandler(&fakeSuggestions{}, log),
		Trades:      handler.NewTradeHandler(&fakeTrades{}, log),
	}, nil, nil, log)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	do(t, http.MethodGet, ts.URL+"/api/health", "", nil)
	do(t, http.MethodPost, ts.URL+"/api/scan?profile=live", "", nil)
	do(t, http.MethodPost, ts.URL+"/api/suggestions/s-9/execute", `{"size":5}`, nil)

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), `"msg":"http request"`) == 2
	}, 2*time.Second, 10*time.Millisecond)

	logged := out.String()
	assert.Contains(t, logged, `"route":"POST /api/scan"`)
	assert.Contains(t, logged, `"profile":"live"`)
	assert.Contains(t, logged, `"route":"POST /api/suggestions/{id}/execute"`)
	assert.Contains(t, logged, `"suggestion_id":"s-9"`)
	assert.NotContains(t, logged, "/api/health", "health checks log at debug")
}

// ─── WebSocket ─────────────────────────────────────────────────────────────

type chanBus struct {
	mu    sync.Mutex
	chans map[string]chan []byte
	ready chan struct{}
}

func newChanBus() *chanBus {
	return &chanBus{chans: map[string]chan []byte{}, ready: make(chan struct{}, 8)}
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	ch := b.chans[channel]
	b.mu.Unlock()
	if ch == nil {
		return errors.New("no subscriber")
	}
	ch <- payload
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 4)
	b.chans[channel] = ch
	b.ready <- struct{}{}
	return ch, nil
}

func TestHubRelaysBusMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newChanBus()
	hub := ws.NewHub(bus, testLogger(), ws.Config{Mode: "server", Profiles: []string{"urgent"}})
	go hub.Run(ctx)
	for i := 0; i < 2; i++ {
		<-bus.ready
	}

	log := testLogger()
	srv := NewServer(Config{}, Handlers{
		Health:      handler.NewHealthHandler(nil, log),
		Suggestions: handler.NewSuggestionHandler(&fakeSuggestions{}, log),
		Trades:      handler.NewTradeHandler(&fakeTrades{}, log),
	}, hub, nil, log)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	kind, first, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Contains(t, string(first), `"event":"status"`)

	require.NoError(t, bus.Publish(ctx, domain.ChannelSuggestions, []byte(`{"event":"suggestions"}`)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"suggestions"}`, string(msg))
}

func TestWebSocketRequiresAPIKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newChanBus()
	hub := ws.NewHub(bus, testLogger(), ws.Config{Mode: "server"})
	go hub.Run(ctx)

	log := testLogger()
	srv := NewServer(Config{APIKey: "secret"}, Handlers{
		Health:      handler.NewHealthHandler(nil, log),
		Suggestions: handler.NewSuggestionHandler(&fakeSuggestions{}, log),
		Trades:      handler.NewTradeHandler(&fakeTrades{}, log),
	}, hub, nil, log)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL+"?token=wrong", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=secret", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, first, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(first), `"event":"status"`)

	header := http.Header{"Authorization": []string{"Bearer secret"}}
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	conn2.Close()
}

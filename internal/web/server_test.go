package web

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgraph.relay/sgr/internal/api"
	"socialgraph.relay/sgr/internal/docs"
	"socialgraph.relay/sgr/internal/events"
	"socialgraph.relay/sgr/internal/ledger"
	"socialgraph.relay/sgr/internal/logger"
	"socialgraph.relay/sgr/internal/metrics"
	"socialgraph.relay/sgr/internal/program"
	"socialgraph.relay/sgr/internal/relay"
	"socialgraph.relay/sgr/internal/social"
	"socialgraph.relay/sgr/internal/store"
)

const origin = "http://localhost:3000"

func newTestServer(t *testing.T, cfg Config) (*Server, *logger.Ring) {
	t.Helper()
	apiService, m, ring, log := newTestAPI(t, cfg.AllowedOrigins)
	return NewServer(cfg, apiService, m, ring, log), ring
}

func newTestAPI(t *testing.T, origins []string) (*api.Service, *metrics.Metrics, *logger.Ring, zerolog.Logger) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "socialgraph.db"))
	require.NoError(t, err)

	log, ring, err := logger.New(logger.Options{Buffer: 50, Output: &bytes.Buffer{}})
	require.NoError(t, err)

	m := metrics.New()
	mem := ledger.NewMemory(program.DefaultProgramID, zerolog.Nop())
	r := relay.New(mem, relay.Config{
		Commitment:      ledger.StateFinalized,
		FinalityTimeout: time.Second,
		PollInterval:    2 * time.Millisecond,
	}, relay.WithJournal(st), relay.WithMetrics(m), relay.WithLogger(log))
	t.Cleanup(func() {
		r.Close()
		st.Close()
	})

	hub := events.NewHub(origins, m, log)
	apiService := api.NewService(api.Deps{
		Social:   social.NewService(st, r, hub, social.Options{}, log),
		Store:    st,
		Hub:      hub,
		Ledger:   mem,
		Docs:     docs.NewService(),
		Activity: ring,
		Commits:  r,
		Logger:   log,
	})
	return apiService, m, ring, log
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.0.2.10:4321"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestMetricsRecordRouteTemplates(t *testing.T) {
	s, _ := newTestServer(t, Config{AllowedOrigins: []string{origin}})

	require.Equal(t, http.StatusOK, get(s.Handler(), "/api/health").Code)
	require.Equal(t, http.StatusNotFound, get(s.Handler(), "/api/users/profile/"+solanaKey(t)).Code)

	w := get(s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `sgr_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
	assert.Contains(t, body, `route="/api/users/profile/{address}",status="404"`)
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Config{AllowedOrigins: []string{origin}, RateLimit: 1, RateBurst: 2})

	assert.Equal(t, http.StatusOK, get(s.Handler(), "/api/version").Code)
	assert.Equal(t, http.StatusOK, get(s.Handler(), "/api/version").Code)

	w := get(s.Handler(), "/api/version")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":"rate_limited"`)

	// Other clients have their own bucket.
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.RemoteAddr = "192.0.2.11:4321"
	other := httptest.NewRecorder()
	s.Handler().ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := newRateLimiter(1, 1)
	start := time.Now()

	assert.True(t, rl.allow("a", start))
	assert.False(t, rl.allow("a", start))
	assert.True(t, rl.allow("b", start.Add(5*time.Minute)))

	rl.cleanup(start.Add(11*time.Minute), 10*time.Minute)
	assert.Len(t, rl.limiters, 1)
	assert.Contains(t, rl.limiters, "b")

	// A dropped client starts over with a full bucket.
	assert.True(t, rl.allow("a", start.Add(11*time.Minute)))
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, Config{AllowedOrigins: []string{origin}})

	req := httptest.NewRequest(http.MethodOptions, "/api/send-friend-request", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/send-friend-request", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestActivityWebSocket(t *testing.T) {
	s, ring := newTestServer(t, Config{AllowedOrigins: []string{origin}})
	ring.Log("info", "first line")

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	defer s.Shutdown(context.Background())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/activity"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {origin}})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	readUntil(t, conn, "first line")

	time.Sleep(10 * time.Millisecond)
	ring.Log("warning", "second line")
	msg := readUntil(t, conn, "second line")
	assert.Equal(t, "warning", msg.Level)
}

func readUntil(t *testing.T, conn *websocket.Conn, text string) logger.Message {
	t.Helper()
	for {
		var msg logger.Message
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Text == text {
			return msg
		}
	}
}

func TestStartShutdown(t *testing.T) {
	s, _ := newTestServer(t, Config{Addr: "127.0.0.1:0", RateLimit: 100})
	defer leaktest.Check(t)()

	errc := s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	err, open := <-errc
	assert.False(t, open)
	assert.NoError(t, err)
}

func TestStartReportsListenError(t *testing.T) {
	s, _ := newTestServer(t, Config{Addr: "256.0.0.1:bad"})
	err := <-s.Start()
	require.Error(t, err)
}

func solanaKey(t *testing.T) string {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey().String()
}

func TestAdminServerIsSeparate(t *testing.T) {
	apiService, m, ring, log := newTestAPI(t, []string{origin})
	public := NewServer(Config{AllowedOrigins: []string{origin}}, apiService, m, ring, log)
	admin := NewAdminServer("127.0.0.1:0", apiService, log)

	assert.Equal(t, http.StatusNotFound, get(public.Handler(), "/admin/backups").Code)
	assert.Equal(t, http.StatusNotFound, get(public.Handler(), "/api/backups").Code)

	w := get(admin.Handler(), "/admin/backups")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusNotFound, get(admin.Handler(), "/api/health").Code)
}

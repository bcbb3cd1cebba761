// Package web assembles the HTTP server: routing, CORS, rate limiting,
// request metrics and the live activity feed around the API handlers.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"socialgraph.relay/sgr/internal/api"
	"socialgraph.relay/sgr/internal/logger"
	"socialgraph.relay/sgr/internal/metrics"
)

// Config controls the listener and the middleware chain.
type Config struct {
	Addr           string
	AllowedOrigins []string
	RateLimit      float64 // requests per second per client; 0 disables
	RateBurst      int
}

// Server is the HTTP server for the relay API.
type Server struct {
	cfg      Config
	handler  http.Handler
	http     *http.Server
	activity *logger.Ring
	limiter  *rateLimiter
	logger   zerolog.Logger
	done     chan struct{}
}

// NewServer wires the API routes, /metrics and /ws/activity.
func NewServer(cfg Config, apiService *api.Service, m *metrics.Metrics, activity *logger.Ring, log zerolog.Logger) *Server {
	if activity == nil {
		activity = logger.NewRing(1)
	}
	if m == nil {
		m = metrics.New()
	}
	s := &Server{
		cfg:      cfg,
		activity: activity,
		logger:   log.With().Str("component", "web").Logger(),
		done:     make(chan struct{}),
	}

	router := mux.NewRouter()
	router.Use(loggingMiddleware(s.logger))
	router.Use(metricsMiddleware(m))
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit) + 1
		}
		s.limiter = newRateLimiter(cfg.RateLimit, burst)
		router.Use(s.limiter.middleware)
	}

	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/ws/activity", s.handleActivityWS).Methods(http.MethodGet)
	apiService.Routes(router)

	s.handler = cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// NewAdminServer serves the operator routes on addr. It has no CORS
// handler, so browsers on other origins cannot call it.
func NewAdminServer(addr string, apiService *api.Service, log zerolog.Logger) *Server {
	s := &Server{
		cfg:      Config{Addr: addr},
		activity: logger.NewRing(1),
		logger:   log.With().Str("component", "admin").Logger(),
		done:     make(chan struct{}),
	}

	router := mux.NewRouter()
	router.Use(loggingMiddleware(s.logger))
	apiService.AdminRoutes(router)

	s.handler = router
	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on cfg.Addr and serves until Shutdown. The channel receives
// the listener error, if any, and is then closed.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		errc <- err
		close(errc)
		return errc
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("server listening")

	if s.limiter != nil {
		go s.sweepLimiters()
	}

	go func() {
		defer close(errc)
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	return errc
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) sweepLimiters() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.limiter.cleanup(now, 10*time.Minute)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleActivityWS streams log lines: first the recent history, then new
// lines as they arrive.
func (s *Server) handleActivityWS(w http.ResponseWriter, r *http.Request) {
	up := upgrader
	up.CheckOrigin = s.originAllowed
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// GetRecent returns newest first.
	initial := s.activity.GetRecent(50)
	for i := len(initial) - 1; i >= 0; i-- {
		if err := conn.WriteJSON(initial[i]); err != nil {
			return
		}
	}

	var lastLogTime time.Time
	if len(initial) > 0 {
		lastLogTime = initial[0].Timestamp
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			recent := s.activity.GetRecent(20)
			for i := len(recent) - 1; i >= 0; i-- {
				msg := recent[i]
				if !msg.Timestamp.After(lastLogTime) {
					continue
				}
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
				lastLogTime = msg.Timestamp
			}
		}
	}
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

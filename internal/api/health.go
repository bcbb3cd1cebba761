package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"socialgraph.relay/sgr/internal/types"
)

const probeTimeout = 3 * time.Second

// @Title: Get Health
// @Route: GET /api/health
// @Description: Returns relay health with store and ledger probes
// @Response: {"status": "online|degraded|offline", "version": "...", "uptime": "...", "components": {...}}
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	report := types.HealthReport{
		Version:    types.Version,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Components: map[string]types.ComponentHealth{},
	}
	report.Components["store"] = probe(func() error { return s.store.Ping(ctx) })
	if s.ledger != nil {
		report.Components["ledger"] = probe(func() error {
			_, err := s.ledger.LatestBlockhash(ctx)
			return err
		})
	}
	report.Status = report.Overall()

	status := http.StatusOK
	if report.Status == types.HealthOffline {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, report)
}

func probe(check func() error) types.ComponentHealth {
	start := time.Now()
	err := check()
	h := types.ComponentHealth{Status: types.HealthOnline, Latency: time.Since(start)}
	if err != nil {
		h.Status = types.HealthOffline
		h.Error = err.Error()
	}
	return h
}

// @Title: Latest Blockhash
// @Route: GET /api/blockhash
// @Description: A recent blockhash from the relay's ledger for clients to sign against
// @Response: {"blockhash": "..."}
func (s *Service) HandleBlockhash(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.writeError(w, http.StatusServiceUnavailable, "internal", "No ledger configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	bh, err := s.ledger.LatestBlockhash(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to fetch blockhash")
		s.writeError(w, http.StatusBadGateway, "internal", "Ledger unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"blockhash": bh.String()})
}

// @Title: Get Version
// @Route: GET /api/version
// @Description: Returns sgr version and build details
// @Response: {"version": "...", "status": "ok", "hostname": "...", "go_ver": "...", "os_arch": "..."}
func (s *Service) HandleVersion(w http.ResponseWriter, r *http.Request) {
	hostname, _ := os.Hostname()

	response := map[string]string{
		"version":    types.Version,
		"build_time": types.BuildTime,
		"status":     "ok",
		"hostname":   hostname,
		"go_ver":     runtime.Version(),
		"os_arch":    fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// @Title: Recent Activity
// @Route: GET /api/activity?limit=...
// @Description: Most recent log lines, newest first
// @Response: [{"timestamp": "...", "text": "...", "level": "info"}]
func (s *Service) HandleActivity(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if s.activity == nil {
		s.writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.activity.GetRecent(limit))
}

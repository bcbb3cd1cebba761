package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"socialgraph.relay/sgr/internal/logger"
	"socialgraph.relay/sgr/internal/types"
)

func TestHandleHealth(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	w := f.do(t, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", w.Code)
	}
	var report types.HealthReport
	decodeBody(t, w, &report)
	if report.Status != types.HealthOnline {
		t.Errorf("Expected online, got %q", report.Status)
	}
	if _, ok := report.Components["ledger"]; !ok {
		t.Error("Expected a ledger probe")
	}
}

func TestHandleHealth_StoreClosed(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	f.store.Close()
	w := f.do(t, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with the store closed, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleVersion(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	w := f.do(t, http.MethodGet, "/api/version", nil)
	var body map[string]string
	decodeBody(t, w, &body)
	if body["version"] != types.Version {
		t.Errorf("Expected version %s, got %q", types.Version, body["version"])
	}
}

func TestHandleBlockhash(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	w := f.do(t, http.MethodGet, "/api/blockhash", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["blockhash"] != f.blockhash(t).String() {
		t.Errorf("Expected the ledger's latest blockhash, got %q", body["blockhash"])
	}
}

func TestHandleActivity(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	f.register(t, "Ana")

	w := f.do(t, http.MethodGet, "/api/activity?limit=200", nil)
	var messages []logger.Message
	decodeBody(t, w, &messages)
	found := false
	for _, m := range messages {
		if strings.Contains(m.Text, "profile registered") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected the registration in the activity feed, got %d lines", len(messages))
	}
}

func TestUnknownEndpoint(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	w := f.do(t, http.MethodGet, "/api/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	svc := &Service{}
	router := mux.NewRouter()
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		svc.writeServiceError(w, r, errPlain("boom"))
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 for an untyped error, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"code":"internal"`) {
		t.Errorf("Expected internal code, got %s", w.Body.String())
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }

package api

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestHandleEvents_InvalidAddress(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	w := f.do(t, http.MethodGet, "/ws/events/not-a-key", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestHandleDocs(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	w := f.do(t, http.MethodGet, "/docs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected HTML, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "Register Profile") {
		t.Error("Expected the rendered reference")
	}

	w = f.do(t, http.MethodGet, "/docs?doc=missing.adoc", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

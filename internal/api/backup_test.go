package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"socialgraph.relay/sgr/internal/store"
)

func TestBackupRoutesAreNotPublic(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/backups"},
		{http.MethodGet, "/api/backups"},
		{http.MethodGet, "/api/backups/export"},
		{http.MethodPost, "/api/backups/restore"},
		{http.MethodPost, "/api/backups/import"},
		{http.MethodPost, "/admin/backups/import"},
		{http.MethodPost, "/admin/backups/restore"},
	} {
		if w := f.do(t, tc.method, tc.path, nil); w.Code != http.StatusNotFound {
			t.Errorf("%s %s on the public router: expected 404, got %d", tc.method, tc.path, w.Code)
		}
	}
}

func TestAdminBackupEndpoints(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	ana := f.register(t, "Ana").PublicKey().String()

	w := f.doAdmin(t, http.MethodPost, "/admin/backups", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var created store.BackupInfo
	decodeBody(t, w, &created)
	if created.Name == "" {
		t.Fatalf("Expected a backup filename, got %s", w.Body.String())
	}

	w = f.doAdmin(t, http.MethodGet, "/admin/backups", nil)
	var backups []store.BackupInfo
	decodeBody(t, w, &backups)
	if len(backups) != 1 || backups[0].Name != created.Name {
		t.Fatalf("Expected the new backup in the list, got %+v", backups)
	}

	// Ben registers after the backup, so restoring drops him.
	ben := f.register(t, "Ben").PublicKey().String()

	w = f.doAdmin(t, http.MethodPost, "/admin/backups/restore", map[string]string{"filename": created.Name})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if w = f.do(t, http.MethodGet, "/api/users/profile/"+ana, nil); w.Code != http.StatusOK {
		t.Errorf("Expected Ana after restore, got %d", w.Code)
	}
	if w = f.do(t, http.MethodGet, "/api/users/profile/"+ben, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected Ben gone after restore, got %d", w.Code)
	}

	// The relay keeps working against the restored database.
	f.register(t, "Cy")

	w = f.doAdmin(t, http.MethodPost, "/admin/backups/restore", map[string]string{"filename": "socialgraph-missing.db"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a missing backup, got %d", w.Code)
	}
	w = f.doAdmin(t, http.MethodPost, "/admin/backups/restore", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a filename, got %d", w.Code)
	}
}

func TestAdminSnapshotExportImport(t *testing.T) {
	f, cleanup := setupTest(t, 5*time.Second)
	defer cleanup()

	ana := f.register(t, "Ana").PublicKey().String()

	w := f.doAdmin(t, http.MethodGet, "/admin/backups/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	snapshot := w.Body.Bytes()
	if !bytes.HasPrefix(snapshot, []byte("SQLite format 3")) {
		t.Fatalf("Expected a SQLite file, got %d bytes", len(snapshot))
	}

	ben := f.register(t, "Ben").PublicKey().String()

	req := httptest.NewRequest(http.MethodPost, "/admin/backups/import", bytes.NewReader(snapshot))
	w = httptest.NewRecorder()
	f.admin.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if w = f.do(t, http.MethodGet, "/api/users/profile/"+ana, nil); w.Code != http.StatusOK {
		t.Errorf("Expected Ana after import, got %d", w.Code)
	}
	if w = f.do(t, http.MethodGet, "/api/users/profile/"+ben, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected Ben gone after import, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/backups/import", bytes.NewReader(bytes.Repeat([]byte("not a database "), 1024)))
	w = httptest.NewRecorder()
	f.admin.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a corrupt snapshot, got %d", w.Code)
	}
	if body := w.Body.String(); strings.Contains(body, f.store.File()) || strings.Contains(body, "/") {
		t.Errorf("Expected no file paths in the error body, got %s", body)
	}
	if w = f.do(t, http.MethodGet, "/api/users/profile/"+ana, nil); w.Code != http.StatusOK {
		t.Errorf("Expected the previous database to survive a bad import, got %d", w.Code)
	}
}

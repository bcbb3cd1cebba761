package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"socialgraph.relay/sgr/internal/store"
)

const maxSnapshotBytes = 256 << 20

// CommitGate holds back relay commits while the database is swapped.
type CommitGate interface {
	Hold(fn func() error) error
}

func (s *Service) holdCommits(fn func() error) error {
	if s.commits == nil {
		return fn()
	}
	return s.commits.Hold(fn)
}

// @Title: Create Backup
// @Route: POST /admin/backups
// @Description: Copy the database into the backup directory (admin listener only)
// @Response: {"filename": "...", "timestamp": "...", "size": ...}
func (s *Service) HandleCreateBackup(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.Backup(r.Context(), s.maxBackups)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create backup")
		s.writeError(w, http.StatusInternalServerError, "internal", "Failed to save backup")
		return
	}
	s.logger.Info().Str("backup", info.Name).Msg("admin: created backup")
	s.writeJSON(w, http.StatusOK, info)
}

// @Title: List Backups
// @Route: GET /admin/backups
// @Description: List the backup files, newest first (admin listener only)
// @Response: [{"filename": "...", "timestamp": "...", "size": ...}]
func (s *Service) HandleBackupsList(w http.ResponseWriter, r *http.Request) {
	backups, err := s.store.ListBackups()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backups")
		s.writeError(w, http.StatusInternalServerError, "internal", "Failed to read backups")
		return
	}
	if backups == nil {
		backups = []store.BackupInfo{}
	}
	s.writeJSON(w, http.StatusOK, backups)
}

// @Title: Download Snapshot
// @Route: GET /admin/backups/export
// @Description: Download a consistent SQLite snapshot of the database (admin listener only)
// @Response: application/vnd.sqlite3 file download
func (s *Service) HandleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.ExportSnapshot(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to export snapshot")
		s.writeError(w, http.StatusInternalServerError, "internal", "Failed to export snapshot")
		return
	}

	filename := fmt.Sprintf("socialgraph-%s.db", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.sqlite3")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(data); err != nil {
		s.logger.Debug().Err(err).Msg("write snapshot")
		return
	}
	s.logger.Info().Int("bytes", len(data)).Msg("admin: served snapshot")
}

// @Title: Restore Backup
// @Route: POST /admin/backups/restore
// @Description: Replace the database with a named backup while relay commits are held; the replaced contents become a new backup (admin listener only)
// @Response: {"restored": "...", "previous": {"filename": "...", ...}}
func (s *Service) HandleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Filename == "" {
		s.writeError(w, http.StatusBadRequest, "validation", "filename is required")
		return
	}

	var previous store.BackupInfo
	err := s.holdCommits(func() (err error) {
		previous, err = s.store.RestoreBackup(r.Context(), req.Filename, s.maxBackups)
		return err
	})
	if err != nil {
		s.writeSwapError(w, err, "Restore failed")
		return
	}

	s.logger.Warn().Str("restored", req.Filename).Str("previous", previous.Name).Msg("admin: database restored from backup")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"restored": req.Filename, "previous": previous})
}

// @Title: Upload Snapshot
// @Route: POST /admin/backups/import
// @Description: Replace the database with an uploaded snapshot while relay commits are held (admin listener only)
// @Response: {"previous": {"filename": "...", ...}}
func (s *Service) HandleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
	if err != nil || len(data) == 0 {
		s.writeError(w, http.StatusBadRequest, "validation", "Snapshot body is required")
		return
	}

	var previous store.BackupInfo
	err = s.holdCommits(func() (err error) {
		previous, err = s.store.ImportSnapshot(r.Context(), data, s.maxBackups)
		return err
	})
	if err != nil {
		s.writeSwapError(w, err, "Import failed")
		return
	}

	s.logger.Warn().Int("bytes", len(data)).Str("previous", previous.Name).Msg("admin: database replaced by snapshot")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"previous": previous})
}

// writeSwapError logs the detail, which carries file paths, and answers
// with a fixed message.
func (s *Service) writeSwapError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", "Backup not found")
	case errors.Is(err, store.ErrInvalidSnapshot):
		s.logger.Warn().Err(err).Msg(msg)
		s.writeError(w, http.StatusBadRequest, "invalid_snapshot", "Not a social graph database")
	default:
		s.logger.Error().Err(err).Msg(msg)
		s.writeError(w, http.StatusInternalServerError, "internal", msg)
	}
}

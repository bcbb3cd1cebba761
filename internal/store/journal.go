package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"socialgraph.relay/sgr/internal/types"
)

// RecordSubmission journals a relayed transaction as pending. Resubmitting a
// signature resets its outcome.
func (s *Store) RecordSubmission(ctx context.Context, rec types.RelayRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = now()
	}
	if rec.Status == "" {
		rec.Status = types.RelayPending
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO relay_transactions
		(signature, intent, fee_payer, status, reason, submitted_at, resolved_at)
		VALUES (?, ?, ?, ?, NULL, ?, NULL)
		ON CONFLICT(signature) DO UPDATE SET
			status = excluded.status,
			reason = NULL,
			submitted_at = excluded.submitted_at,
			resolved_at = NULL`,
		rec.Signature, string(rec.Intent), rec.FeePayer, string(rec.Status), formatTime(rec.SubmittedAt))
	if err != nil {
		return fmt.Errorf("journal submission: %w", err)
	}
	return nil
}

// RecordOutcome journals how a relayed transaction resolved.
func (s *Store) RecordOutcome(ctx context.Context, signature string, status types.RelayStatus, reason string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.db.ExecContext(ctx, `UPDATE relay_transactions SET status = ?, reason = ?, resolved_at = ?
		WHERE signature = ?`, string(status), nullString(reason), formatTime(now()), signature)
	if err != nil {
		return fmt.Errorf("journal outcome: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("relay record %s: %w", signature, ErrNotFound)
	}
	return nil
}

// GetRelayRecord returns the journal entry for signature.
func (s *Store) GetRelayRecord(ctx context.Context, signature string) (types.RelayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rec                     types.RelayRecord
		intent, status          string
		reason, submitted, done sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT signature, intent, fee_payer, status, reason, submitted_at, resolved_at
		FROM relay_transactions WHERE signature = ?`, signature).
		Scan(&rec.Signature, &intent, &rec.FeePayer, &status, &reason, &submitted, &done)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RelayRecord{}, fmt.Errorf("relay record %s: %w", signature, ErrNotFound)
		}
		return types.RelayRecord{}, fmt.Errorf("get relay record: %w", err)
	}
	rec.Intent = types.IntentKind(intent)
	rec.Status = types.RelayStatus(status)
	rec.Reason = reason.String
	rec.SubmittedAt = parseTime(submitted.String)
	rec.ResolvedAt = parseTime(done.String)
	return rec, nil
}

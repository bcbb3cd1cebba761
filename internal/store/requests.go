package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"socialgraph.relay/sgr/internal/types"
)

const requestColumns = `id, from_address, to_address, status, on_chain_request_key, created_at, resolved_at`

// CreateFriendRequest inserts a Pending request from req.From to req.To.
// Both profiles must exist (ErrNotFound) and must not already be friends
// (ErrAlreadyFriends). A Pending request for the same unordered pair is
// reported as ErrDuplicate.
func (s *Store) CreateFriendRequest(ctx context.Context, req types.FriendRequest) (types.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now()
	}
	req.Status = types.RequestPending
	req.ResolvedAt = time.Time{}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.FriendRequest{}, fmt.Errorf("begin friend request: %w", err)
	}
	defer rollback(tx)

	for _, addr := range []string{req.From, req.To} {
		exists, err := profileExists(ctx, tx, addr)
		if err != nil {
			return types.FriendRequest{}, err
		}
		if !exists {
			return types.FriendRequest{}, fmt.Errorf("profile %s: %w", addr, ErrNotFound)
		}
	}

	friends, err := areFriends(ctx, tx, req.From, req.To)
	if err != nil {
		return types.FriendRequest{}, err
	}
	if friends {
		return types.FriendRequest{}, ErrAlreadyFriends
	}

	low, high := orderedPair(req.From, req.To)
	res, err := tx.ExecContext(ctx, `INSERT INTO friend_requests
		(id, from_address, to_address, pair_low, pair_high, status, on_chain_request_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		req.ID, req.From, req.To, low, high, string(types.RequestPending), nullString(req.OnChainRequestKey), formatTime(req.CreatedAt))
	if err != nil {
		return types.FriendRequest{}, fmt.Errorf("insert friend request: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return types.FriendRequest{}, fmt.Errorf("pending request between %s and %s: %w", req.From, req.To, ErrDuplicate)
	}

	if err := tx.Commit(); err != nil {
		return types.FriendRequest{}, fmt.Errorf("commit friend request: %w", err)
	}
	req.CreatedAt = req.CreatedAt.UTC()
	return req, nil
}

// GetFriendRequest returns the request with id.
func (s *Store) GetFriendRequest(ctx context.Context, id string) (types.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getFriendRequest(ctx, s.db, id)
}

// PendingBetween returns the Pending request for the unordered pair, if any.
func (s *Store) PendingBetween(ctx context.Context, a, b string) (types.FriendRequest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	low, high := orderedPair(a, b)
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM friend_requests
		WHERE pair_low = ? AND pair_high = ? AND status = 'Pending'`, low, high)
	req, err := scanFriendRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.FriendRequest{}, false, nil
	}
	if err != nil {
		return types.FriendRequest{}, false, fmt.Errorf("lookup pending request: %w", err)
	}
	return req, true, nil
}

// AreFriends reports whether a and b are friends.
func (s *Store) AreFriends(ctx context.Context, a, b string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return areFriends(ctx, s.db, a, b)
}

// ListPendingFor returns Pending requests addressed to address, oldest first.
func (s *Store) ListPendingFor(ctx context.Context, address string) ([]types.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+requestColumns+` FROM friend_requests
		WHERE to_address = ? AND status = 'Pending'
		ORDER BY created_at, id`, address)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	requests := []types.FriendRequest{}
	for rows.Next() {
		req, err := scanFriendRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// AcceptFriendRequest moves request id from Pending to Accepted and writes
// both friend edges in one transaction. Accepting an already Accepted
// request changes nothing and reports applied=false, so a replayed commit is
// harmless. A Rejected request yields ErrAlreadyResolved.
func (s *Store) AcceptFriendRequest(ctx context.Context, id string) (req types.FriendRequest, applied bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.FriendRequest{}, false, fmt.Errorf("begin accept: %w", err)
	}
	defer rollback(tx)

	req, err = getFriendRequest(ctx, tx, id)
	if err != nil {
		return types.FriendRequest{}, false, err
	}
	switch req.Status {
	case types.RequestAccepted:
		return req, false, nil
	case types.RequestRejected:
		return req, false, fmt.Errorf("request %s: %w", id, ErrAlreadyResolved)
	}

	resolvedAt := now()
	res, err := tx.ExecContext(ctx, `UPDATE friend_requests SET status = 'Accepted', resolved_at = ?
		WHERE id = ? AND status = 'Pending'`, formatTime(resolvedAt), id)
	if err != nil {
		return types.FriendRequest{}, false, fmt.Errorf("accept request: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return types.FriendRequest{}, false, fmt.Errorf("request %s: %w", id, ErrAlreadyResolved)
	}

	ts := formatTime(resolvedAt)
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO friendships (address, friend_address, created_at)
		VALUES (?, ?, ?), (?, ?, ?)`, req.From, req.To, ts, req.To, req.From, ts); err != nil {
		return types.FriendRequest{}, false, fmt.Errorf("insert friendship: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.FriendRequest{}, false, fmt.Errorf("commit accept: %w", err)
	}

	req.Status = types.RequestAccepted
	req.ResolvedAt = resolvedAt
	return req, true, nil
}

// RejectFriendRequest moves request id from Pending to Rejected.
func (s *Store) RejectFriendRequest(ctx context.Context, id string) (types.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resolvedAt := now()
	res, err := s.db.ExecContext(ctx, `UPDATE friend_requests SET status = 'Rejected', resolved_at = ?
		WHERE id = ? AND status = 'Pending'`, formatTime(resolvedAt), id)
	if err != nil {
		return types.FriendRequest{}, fmt.Errorf("reject request: %w", err)
	}

	req, err := getFriendRequest(ctx, s.db, id)
	if err != nil {
		return types.FriendRequest{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return req, fmt.Errorf("request %s: %w", id, ErrAlreadyResolved)
	}
	return req, nil
}

func getFriendRequest(ctx context.Context, q queryer, id string) (types.FriendRequest, error) {
	row := q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM friend_requests WHERE id = ?`, id)
	req, err := scanFriendRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.FriendRequest{}, fmt.Errorf("request %s: %w", id, ErrNotFound)
		}
		return types.FriendRequest{}, fmt.Errorf("get friend request: %w", err)
	}
	return req, nil
}

func areFriends(ctx context.Context, q queryer, a, b string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM friendships WHERE address = ? AND friend_address = ?`, a, b).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup friendship: %w", err)
	}
	return true, nil
}

func scanFriendRequest(row scanner) (types.FriendRequest, error) {
	var (
		req                   types.FriendRequest
		status                string
		onChainKey            sql.NullString
		createdAt, resolvedAt sql.NullString
	)
	if err := row.Scan(&req.ID, &req.From, &req.To, &status, &onChainKey, &createdAt, &resolvedAt); err != nil {
		return types.FriendRequest{}, err
	}
	req.Status = types.RequestStatus(status)
	req.OnChainRequestKey = onChainKey.String
	req.CreatedAt = parseTime(createdAt.String)
	req.ResolvedAt = parseTime(resolvedAt.String)
	return req, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"socialgraph.relay/sgr/internal/types"
)

const profileColumns = `address, display_name, bio, avatar_uri, on_chain_account_key, has_credential_nft, created_at`

// CreateProfile inserts p keyed by its address. An existing profile for the
// address is left untouched and ErrDuplicate is returned.
func (s *Store) CreateProfile(ctx context.Context, p types.Profile) (types.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO NOTHING`,
		p.Address, p.DisplayName, p.Bio, p.AvatarURI, p.OnChainAccountKey, p.HasCredentialNFT, formatTime(p.CreatedAt))
	if err != nil {
		return types.Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return types.Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	if affected == 0 {
		return types.Profile{}, fmt.Errorf("profile %s: %w", p.Address, ErrDuplicate)
	}

	p.CreatedAt = p.CreatedAt.UTC()
	p.Friends = []string{}
	return p, nil
}

// GetProfile returns the profile for address with its friend addresses.
func (s *Store) GetProfile(ctx context.Context, address string) (types.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProfile(ctx, s.db, address)
}

// ProfileExists reports whether address has a profile.
func (s *Store) ProfileExists(ctx context.Context, address string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return profileExists(ctx, s.db, address)
}

// FriendProfiles returns the profiles of address's friends ordered by name.
func (s *Store) FriendProfiles(ctx context.Context, address string) ([]types.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listProfiles(ctx, `SELECT p.address, p.display_name, p.bio, p.avatar_uri, p.on_chain_account_key,
			p.has_credential_nft, p.created_at
		FROM friendships f JOIN profiles p ON p.address = f.friend_address
		WHERE f.address = ?
		ORDER BY p.display_name, p.address`, address)
}

// ListAvailable returns every profile other than address and its friends.
func (s *Store) ListAvailable(ctx context.Context, address string) ([]types.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exists, err := profileExists(ctx, s.db, address)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("profile %s: %w", address, ErrNotFound)
	}

	return s.listProfiles(ctx, `SELECT `+profileColumns+`
		FROM profiles p
		WHERE p.address <> ?
		AND NOT EXISTS (
			SELECT 1 FROM friendships f WHERE f.address = ? AND f.friend_address = p.address
		)
		ORDER BY p.created_at, p.address`, address, address)
}

// SetCredential sets the credential flag on address's profile.
func (s *Store) SetCredential(ctx context.Context, address string, has bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.db.ExecContext(ctx, `UPDATE profiles SET has_credential_nft = ? WHERE address = ?`, has, address)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("profile %s: %w", address, ErrNotFound)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getProfile(ctx context.Context, q queryer, address string) (types.Profile, error) {
	row := q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE address = ?`, address)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Profile{}, fmt.Errorf("profile %s: %w", address, ErrNotFound)
		}
		return types.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	p.Friends, err = friendAddresses(ctx, q, address)
	if err != nil {
		return types.Profile{}, err
	}
	return p, nil
}

func (s *Store) listProfiles(ctx context.Context, query string, args ...any) ([]types.Profile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	profiles := []types.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	rows.Close()

	for i := range profiles {
		profiles[i].Friends, err = friendAddresses(ctx, s.db, profiles[i].Address)
		if err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

func friendAddresses(ctx context.Context, q queryer, address string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT friend_address FROM friendships WHERE address = ? ORDER BY friend_address`, address)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	friends := []string{}
	for rows.Next() {
		var friend string
		if err := rows.Scan(&friend); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friends = append(friends, friend)
	}
	return friends, rows.Err()
}

func profileExists(ctx context.Context, q queryer, address string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE address = ?`, address).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup profile: %w", err)
	}
	return true, nil
}

func scanProfile(row scanner) (types.Profile, error) {
	var (
		p          types.Profile
		credential bool
		createdAt  sql.NullString
	)
	if err := row.Scan(&p.Address, &p.DisplayName, &p.Bio, &p.AvatarURI, &p.OnChainAccountKey, &credential, &createdAt); err != nil {
		return types.Profile{}, err
	}
	p.HasCredentialNFT = credential
	p.CreatedAt = parseTime(createdAt.String)
	p.Friends = []string{}
	return p, nil
}

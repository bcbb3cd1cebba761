package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"socialgraph.relay/sgr/internal/types"
)

const postSelect = `SELECT p.id, p.author, pr.display_name, p.content, p.created_at
	FROM posts p JOIN profiles pr ON pr.address = p.author`

// CreatePost stores a post by p.Author, who must have a profile.
func (s *Store) CreatePost(ctx context.Context, p types.Post) (types.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	author, err := s.getProfile(ctx, s.db, p.Author)
	if err != nil {
		return types.Post{}, err
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}

	if _, err := s.db.ExecContext(ctx, `INSERT INTO posts (id, author, content, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Author, p.Content, formatTime(p.CreatedAt)); err != nil {
		return types.Post{}, fmt.Errorf("insert post: %w", err)
	}

	p.AuthorName = author.DisplayName
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

// ListPosts returns up to limit posts, newest first.
func (s *Store) ListPosts(ctx context.Context, limit int) ([]types.Post, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.listPosts(ctx, postSelect+` ORDER BY p.created_at DESC, p.rowid DESC LIMIT ?`, limit)
}

// ListPostsByAuthor returns address's posts, newest first.
func (s *Store) ListPostsByAuthor(ctx context.Context, address string) ([]types.Post, error) {
	return s.listPosts(ctx, postSelect+` WHERE p.author = ? ORDER BY p.created_at DESC, p.rowid DESC`, address)
}

func (s *Store) listPosts(ctx context.Context, query string, args ...any) ([]types.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []types.Post{}
	for rows.Next() {
		var (
			p         types.Post
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.Author, &p.AuthorName, &p.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.CreatedAt = parseTime(createdAt)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

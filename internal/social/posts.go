package social

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"socialgraph.relay/sgr/internal/store"
	"socialgraph.relay/sgr/internal/types"
)

const maxPostLength = 1000

// CreatePost publishes content by author.
func (s *Service) CreatePost(ctx context.Context, author, content string) (types.Post, error) {
	author = strings.TrimSpace(author)
	content = strings.TrimSpace(content)
	switch {
	case author == "":
		return types.Post{}, validation("authorId is required")
	case content == "":
		return types.Post{}, validation("content is required")
	case utf8.RuneCountInString(content) > maxPostLength:
		return types.Post{}, validation("content exceeds %d characters", maxPostLength)
	}

	profile, err := s.store.GetProfile(ctx, author)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Post{}, ErrUnknownUser
		}
		return types.Post{}, wrap(ErrInternal, err)
	}
	if s.opts.RequireCredentialForPosts && !profile.HasCredentialNFT {
		return types.Post{}, withMsg(ErrForbidden, "posting requires a credential NFT")
	}

	post, err := s.store.CreatePost(ctx, types.Post{Author: author, Content: content})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Post{}, ErrUnknownUser
		}
		return types.Post{}, wrap(ErrInternal, err)
	}
	return post, nil
}

// ListPosts returns the newest posts.
func (s *Service) ListPosts(ctx context.Context, limit int) ([]types.Post, error) {
	posts, err := s.store.ListPosts(ctx, limit)
	if err != nil {
		return nil, wrap(ErrInternal, err)
	}
	return posts, nil
}

// PostsBy returns address's posts.
func (s *Service) PostsBy(ctx context.Context, address string) ([]types.Post, error) {
	posts, err := s.store.ListPostsByAuthor(ctx, address)
	if err != nil {
		return nil, wrap(ErrInternal, err)
	}
	return posts, nil
}

// GrantCredential sets or clears address's credential flag.
func (s *Service) GrantCredential(ctx context.Context, address string, has bool) error {
	if err := s.store.SetCredential(ctx, address, has); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownUser
		}
		return wrap(ErrInternal, err)
	}
	s.log.Info().Str("address", address).Bool("credential", has).Msg("credential updated")
	return nil
}

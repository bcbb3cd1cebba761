package api

import (
	"net/http"
	"strconv"
)

// @Title: Create Post
// @Route: POST /api/posts
// @Description: Publish a post; may require a credential NFT
// @Response: 201 Post object
func (s *Service) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  string `json:"content"`
		AuthorID string `json:"authorId"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	post, err := s.social.CreatePost(r.Context(), req.AuthorID, req.Content)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, post)
}

// @Title: List Posts
// @Route: GET /api/posts?limit=...
// @Description: Newest posts across all users (default 50)
// @Response: Array of Post objects
func (s *Service) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "validation", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	posts, err := s.social.ListPosts(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, posts)
}

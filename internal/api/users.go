package api

import (
	"encoding/base64"
	"net/http"

	"github.com/gorilla/mux"

	"socialgraph.relay/sgr/internal/social"
)

type submitRequest struct {
	Transaction      string `json:"transaction"`
	Name             string `json:"name"`
	Bio              string `json:"bio"`
	Avatar           string `json:"avatar"`
	ProfilePublicKey string `json:"profilePublicKey"`
	PhantomAddress   string `json:"phantomAddress"`
}

// decodeTransaction returns the raw bytes of a base64 transaction field.
// An empty field decodes to nil.
func decodeTransaction(field string) ([]byte, error) {
	if field == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(field)
	if err != nil {
		return nil, &social.Error{Kind: social.KindValidation, Code: social.ErrMalformed.Code, Msg: "transaction is not valid base64", Err: err}
	}
	return raw, nil
}

// @Title: Register Profile
// @Route: POST /api/transactions/submit
// @Description: Relay a signed create_profile transaction and create the profile once it is finalized
// @Response: 201 Profile object; 504 {"error": "...", "code": "relay_unknown", "signature": "..."} when finality was not observed
func (s *Service) HandleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !s.decode(w, r, &req) {
		return
	}
	payload, err := decodeTransaction(req.Transaction)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	profile, err := s.social.Register(r.Context(), social.RegisterInput{
		Payload:        payload,
		Name:           req.Name,
		Bio:            req.Bio,
		Avatar:         req.Avatar,
		ProfileAccount: req.ProfilePublicKey,
		Address:        req.PhantomAddress,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.logger.Info().Str("address", profile.Address).Msg("API: registered profile")
	s.writeJSON(w, http.StatusCreated, profile)
}

// @Title: Transaction Status
// @Route: GET /api/transactions/{signature}
// @Description: Relay status of a submitted transaction; unknown outcomes are reconciled against the ledger
// @Response: {"signature": "...", "status": "pending|confirmed|rejected|unknown", "intent": "...", "reason": "..."}
func (s *Service) HandleTransactionStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.social.Transaction(r.Context(), mux.Vars(r)["signature"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

// @Title: Get Profile
// @Route: GET /api/users/profile/{address}
// @Description: Profile with friends resolved to profiles
// @Response: Profile object with a "friends" array of Profile objects
func (s *Service) HandleProfile(w http.ResponseWriter, r *http.Request) {
	view, err := s.social.Profile(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// @Title: Available Users
// @Route: GET /api/users/available/{address}
// @Description: Profiles the user could send a friend request to
// @Response: Array of Profile objects
func (s *Service) HandleAvailable(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.social.Available(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profiles)
}

// @Title: Pending Requests
// @Route: GET /api/users/pending-requests/{address}
// @Description: Friend requests awaiting the user's answer
// @Response: Array of FriendRequest objects
func (s *Service) HandlePendingRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.social.Pending(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, requests)
}

// @Title: Registration State
// @Route: GET /api/users/registration/{address}
// @Description: Where the address is in the registration handshake
// @Response: {"address": "...", "state": "unregistered|awaiting_finality|registered|failed", "signature": "...", "reason": "..."}
func (s *Service) HandleRegistration(w http.ResponseWriter, r *http.Request) {
	state, err := s.social.RegistrationState(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// @Title: User Posts
// @Route: GET /api/users/posts/{address}
// @Description: Posts written by the user, newest first
// @Response: Array of Post objects
func (s *Service) HandleUserPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.social.PostsBy(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, posts)
}

package api

import (
	"net/http"

	"socialgraph.relay/sgr/internal/social"
)

// @Title: Send Friend Request
// @Route: POST /api/send-friend-request
// @Description: Create a Pending request; with a signed send_friend_request transaction it is anchored on the ledger first
// @Response: {"message": "Friend request sent", "requestId": "..."}
func (s *Service) HandleSendFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From             string `json:"from"`
		To               string `json:"to"`
		Transaction      string `json:"transaction"`
		RequestPublicKey string `json:"requestPublicKey"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	payload, err := decodeTransaction(req.Transaction)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	created, err := s.social.SendFriendRequest(r.Context(), social.SendInput{
		From:           req.From,
		To:             req.To,
		Payload:        payload,
		RequestAccount: req.RequestPublicKey,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.message(w, http.StatusOK, "Friend request sent", map[string]interface{}{"requestId": created.ID})
}

// @Title: Accept Friend Request
// @Route: POST /api/accept-friend-request
// @Description: Relay the recipient's accept_friend_request transaction and record the friendship once finalized
// @Response: {"message": "Friend request accepted"}
func (s *Service) HandleAcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestID   string `json:"requestId"`
		Transaction string `json:"transaction"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	payload, err := decodeTransaction(req.Transaction)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if _, err := s.social.AcceptFriendRequest(r.Context(), social.AcceptInput{RequestID: req.RequestID, Payload: payload}); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.message(w, http.StatusOK, "Friend request accepted", nil)
}

// @Title: Reject Friend Request
// @Route: POST /api/reject-friend-request
// @Description: Mark a Pending request Rejected
// @Response: {"message": "Friend request rejected"}
func (s *Service) HandleRejectFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestID string `json:"requestId"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if _, err := s.social.RejectFriendRequest(r.Context(), req.RequestID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.message(w, http.StatusOK, "Friend request rejected", nil)
}

package social

import (
	"context"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"socialgraph.relay/sgr/internal/events"
	"socialgraph.relay/sgr/internal/relay"
	"socialgraph.relay/sgr/internal/store"
	"socialgraph.relay/sgr/internal/types"
)

// SendInput asks From to befriend To. Payload and RequestAccount are
// optional; when present the request is anchored on the ledger first.
type SendInput struct {
	From           string
	To             string
	Payload        []byte
	RequestAccount string
}

// AcceptInput accepts RequestID with a transaction signed by its recipient.
type AcceptInput struct {
	RequestID string
	Payload   []byte
}

// SendFriendRequest creates a Pending request from in.From to in.To.
func (s *Service) SendFriendRequest(ctx context.Context, in SendInput) (types.FriendRequest, error) {
	from, to := strings.TrimSpace(in.From), strings.TrimSpace(in.To)
	if from == "" || to == "" {
		return types.FriendRequest{}, validation("from and to are required")
	}
	if from == to {
		return types.FriendRequest{}, ErrSelfRequest
	}

	for _, addr := range []string{from, to} {
		exists, err := s.store.ProfileExists(ctx, addr)
		if err != nil {
			return types.FriendRequest{}, wrap(ErrInternal, err)
		}
		if !exists {
			return types.FriendRequest{}, withMsg(ErrUnknownUser, "user not found: "+addr)
		}
	}

	if err := s.checkNoOpenRequest(ctx, from, to); err != nil {
		return types.FriendRequest{}, err
	}

	req := types.FriendRequest{ID: uuid.NewString(), From: from, To: to}

	if len(in.Payload) == 0 {
		created, err := s.createRequest(ctx, req)
		if err != nil {
			return types.FriendRequest{}, err
		}
		return created, nil
	}

	fromKey, err := parseKey("from", from)
	if err != nil {
		return types.FriendRequest{}, err
	}
	toKey, err := parseKey("to", to)
	if err != nil {
		return types.FriendRequest{}, err
	}
	account, err := parseKey("requestPublicKey", in.RequestAccount)
	if err != nil {
		return types.FriendRequest{}, err
	}
	req.OnChainRequestKey = account.String()

	intent := relay.SendFriendRequest{RequestAccount: account, From: fromKey, To: toKey}
	t, err := s.submit(ctx, in.Payload, intent, func(ctx context.Context, sig solana.Signature) error {
		created, err := s.store.CreateFriendRequest(ctx, req)
		if err != nil {
			return err
		}
		s.announceRequest(created)
		return nil
	})
	if err != nil {
		return types.FriendRequest{}, err
	}

	res, err := s.await(ctx, t)
	if err != nil {
		return types.FriendRequest{}, err
	}
	if res.CommitErr != nil {
		return types.FriendRequest{}, s.requestStoreErr(res.CommitErr)
	}

	stored, err := s.store.GetFriendRequest(ctx, req.ID)
	if err != nil {
		return types.FriendRequest{}, wrap(ErrInternal, err)
	}
	return stored, nil
}

func (s *Service) checkNoOpenRequest(ctx context.Context, from, to string) error {
	if _, pending, err := s.store.PendingBetween(ctx, from, to); err != nil {
		return wrap(ErrInternal, err)
	} else if pending {
		return ErrDuplicateRequest
	}
	friends, err := s.store.AreFriends(ctx, from, to)
	if err != nil {
		return wrap(ErrInternal, err)
	}
	if friends {
		return withMsg(ErrDuplicateRequest, "already friends")
	}
	return nil
}

func (s *Service) createRequest(ctx context.Context, req types.FriendRequest) (types.FriendRequest, error) {
	created, err := s.store.CreateFriendRequest(ctx, req)
	if err != nil {
		return types.FriendRequest{}, s.requestStoreErr(err)
	}
	s.announceRequest(created)
	return created, nil
}

func (s *Service) announceRequest(req types.FriendRequest) {
	s.log.Info().Str("request_id", req.ID).Str("from", req.From).Str("to", req.To).Msg("friend request sent")
	s.events.Publish(req.To, events.Event{Type: events.FriendRequestReceived, Data: req})
}

func (s *Service) requestStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return ErrDuplicateRequest
	case errors.Is(err, store.ErrAlreadyFriends):
		return withMsg(ErrDuplicateRequest, "already friends")
	case errors.Is(err, store.ErrNotFound):
		return ErrUnknownUser
	}
	return wrap(ErrInternal, err)
}

// AcceptFriendRequest relays the recipient's accept_friend_request
// transaction and, once confirmed, records the friendship. On a rejected or
// unknown outcome the request stays Pending and may be accepted again.
func (s *Service) AcceptFriendRequest(ctx context.Context, in AcceptInput) (types.FriendRequest, error) {
	id := strings.TrimSpace(in.RequestID)
	if id == "" {
		return types.FriendRequest{}, validation("requestId is required")
	}
	if len(in.Payload) == 0 {
		return types.FriendRequest{}, validation("transaction is required")
	}

	req, err := s.pendingRequest(ctx, id)
	if err != nil {
		return types.FriendRequest{}, err
	}

	fromKey, err := parseKey("from", req.From)
	if err != nil {
		return types.FriendRequest{}, err
	}
	toKey, err := parseKey("to", req.To)
	if err != nil {
		return types.FriendRequest{}, err
	}

	intent := relay.AcceptFriendRequest{RequestID: id, From: fromKey, To: toKey}
	t, err := s.submit(ctx, in.Payload, intent, func(ctx context.Context, sig solana.Signature) error {
		accepted, applied, err := s.store.AcceptFriendRequest(ctx, id)
		if err != nil {
			return err
		}
		if applied {
			s.log.Info().Str("request_id", id).Str("signature", sig.String()).Msg("friend request accepted")
			ev := events.Event{Type: events.FriendRequestAccepted, Data: accepted}
			s.events.Publish(accepted.From, ev)
			s.events.Publish(accepted.To, ev)
		}
		return nil
	})
	if err != nil {
		return types.FriendRequest{}, err
	}

	res, err := s.await(ctx, t)
	if err != nil {
		return types.FriendRequest{}, err
	}
	if res.CommitErr != nil {
		if errors.Is(res.CommitErr, store.ErrAlreadyResolved) {
			return types.FriendRequest{}, ErrAlreadyResolved
		}
		return types.FriendRequest{}, wrap(ErrInternal, res.CommitErr)
	}

	accepted, err := s.store.GetFriendRequest(ctx, id)
	if err != nil {
		return types.FriendRequest{}, wrap(ErrInternal, err)
	}
	return accepted, nil
}

// RejectFriendRequest marks a Pending request Rejected. No ledger
// transaction is involved.
func (s *Service) RejectFriendRequest(ctx context.Context, requestID string) (types.FriendRequest, error) {
	id := strings.TrimSpace(requestID)
	if id == "" {
		return types.FriendRequest{}, validation("requestId is required")
	}

	rejected, err := s.store.RejectFriendRequest(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return types.FriendRequest{}, ErrRequestNotFound
	case errors.Is(err, store.ErrAlreadyResolved):
		return types.FriendRequest{}, ErrAlreadyResolved
	case err != nil:
		return types.FriendRequest{}, wrap(ErrInternal, err)
	}

	s.log.Info().Str("request_id", id).Msg("friend request rejected")
	s.events.Publish(rejected.From, events.Event{Type: events.FriendRequestRejected, Data: rejected})
	return rejected, nil
}

func (s *Service) pendingRequest(ctx context.Context, id string) (types.FriendRequest, error) {
	req, err := s.store.GetFriendRequest(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.FriendRequest{}, ErrRequestNotFound
		}
		return types.FriendRequest{}, wrap(ErrInternal, err)
	}
	if req.Status != types.RequestPending {
		return types.FriendRequest{}, ErrAlreadyResolved
	}
	return req, nil
}

// Available lists profiles address could befriend.
func (s *Service) Available(ctx context.Context, address string) ([]types.Profile, error) {
	profiles, err := s.store.ListAvailable(ctx, address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, wrap(ErrInternal, err)
	}
	return profiles, nil
}

// Pending lists requests awaiting address's answer.
func (s *Service) Pending(ctx context.Context, address string) ([]types.FriendRequest, error) {
	requests, err := s.store.ListPendingFor(ctx, address)
	if err != nil {
		return nil, wrap(ErrInternal, err)
	}
	return requests, nil
}

// Profile returns address's profile with friends resolved to profiles.
func (s *Service) Profile(ctx context.Context, address string) (types.ProfileView, error) {
	p, err := s.store.GetProfile(ctx, address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.ProfileView{}, ErrUnknownUser
		}
		return types.ProfileView{}, wrap(ErrInternal, err)
	}
	friends, err := s.store.FriendProfiles(ctx, address)
	if err != nil {
		return types.ProfileView{}, wrap(ErrInternal, err)
	}
	return types.ProfileView{Profile: p, Friends: friends}, nil
}

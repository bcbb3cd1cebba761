package social

import (
	"context"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go"

	"socialgraph.relay/sgr/internal/events"
	"socialgraph.relay/sgr/internal/relay"
	"socialgraph.relay/sgr/internal/store"
	"socialgraph.relay/sgr/internal/types"
)

// RegisterInput is a signed create_profile transaction plus the profile
// fields it declares.
type RegisterInput struct {
	Payload        []byte
	Name           string
	Bio            string
	Avatar         string
	ProfileAccount string
	Address        string
}

func (in RegisterInput) validate() (owner, account solana.PublicKey, err error) {
	switch {
	case len(in.Payload) == 0:
		return owner, account, validation("transaction is required")
	case strings.TrimSpace(in.Name) == "":
		return owner, account, validation("name is required")
	case strings.TrimSpace(in.Bio) == "":
		return owner, account, validation("bio is required")
	case strings.TrimSpace(in.Avatar) == "":
		return owner, account, validation("avatar is required")
	case strings.TrimSpace(in.ProfileAccount) == "":
		return owner, account, validation("profilePublicKey is required")
	case strings.TrimSpace(in.Address) == "":
		return owner, account, validation("phantomAddress is required")
	}
	if owner, err = parseKey("phantomAddress", in.Address); err != nil {
		return owner, account, err
	}
	if account, err = parseKey("profilePublicKey", in.ProfileAccount); err != nil {
		return owner, account, err
	}
	return owner, account, nil
}

// Register relays a signed create_profile transaction and creates the
// profile once the ledger confirms it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (types.Profile, error) {
	owner, account, err := in.validate()
	if err != nil {
		return types.Profile{}, err
	}
	address := owner.String()

	exists, err := s.store.ProfileExists(ctx, address)
	if err != nil {
		return types.Profile{}, wrap(ErrInternal, err)
	}
	if exists {
		return types.Profile{}, ErrDuplicateAddress
	}

	intent := relay.RegisterProfile{
		Name:           in.Name,
		Bio:            in.Bio,
		Avatar:         in.Avatar,
		ProfileAccount: account,
		Owner:          owner,
	}
	profile := types.Profile{
		Address:           address,
		DisplayName:       in.Name,
		Bio:               in.Bio,
		AvatarURI:         in.Avatar,
		OnChainAccountKey: account.String(),
	}

	t, err := s.submit(ctx, in.Payload, intent, func(ctx context.Context, sig solana.Signature) error {
		created, err := s.store.CreateProfile(ctx, profile)
		if err != nil {
			return err
		}
		s.log.Info().Str("address", address).Str("signature", sig.String()).Msg("profile registered")
		s.events.Broadcast(events.Event{Type: events.ProfileRegistered, Data: created})
		return nil
	})
	if err != nil {
		return types.Profile{}, err
	}

	s.mu.Lock()
	s.registrations[address] = t
	s.mu.Unlock()

	res, err := s.await(ctx, t)
	if err != nil {
		return types.Profile{}, err
	}
	if res.CommitErr != nil {
		if errors.Is(res.CommitErr, store.ErrDuplicate) {
			return types.Profile{}, ErrDuplicateAddress
		}
		return types.Profile{}, wrap(ErrInternal, res.CommitErr)
	}

	created, err := s.store.GetProfile(ctx, address)
	if err != nil {
		return types.Profile{}, wrap(ErrInternal, err)
	}
	return created, nil
}

// RegistrationState reports where address is in the registration handshake.
func (s *Service) RegistrationState(ctx context.Context, address string) (types.RegistrationStatus, error) {
	status := types.RegistrationStatus{Address: address, State: types.RegistrationUnregistered}

	exists, err := s.store.ProfileExists(ctx, address)
	if err != nil {
		return status, wrap(ErrInternal, err)
	}
	if exists {
		status.State = types.RegistrationRegistered
		return status, nil
	}

	s.mu.Lock()
	t, ok := s.registrations[address]
	s.mu.Unlock()
	if !ok {
		return status, nil
	}
	status.Signature = t.Signature.String()

	res, resolved := t.Result()
	if !resolved {
		status.State = types.RegistrationAwaitingFinality
		return status, nil
	}

	if res.Outcome == relay.OutcomeUnknown {
		// The ledger may have finalized since; Status applies the commit if so.
		if latest, err := s.relay.Status(ctx, t.Signature); err == nil {
			res = latest
		}
		if exists, err := s.store.ProfileExists(ctx, address); err == nil && exists {
			status.State = types.RegistrationRegistered
			return status, nil
		}
	}

	status.State = types.RegistrationFailed
	switch {
	case res.CommitErr != nil:
		status.Reason = res.CommitErr.Error()
	case res.Reason != "":
		status.Reason = res.Reason
	default:
		status.Reason = string(res.Outcome)
	}
	return status, nil
}

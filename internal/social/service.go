// Package social implements the registration and friend-request handshakes.
// Every mutation that is anchored on the ledger is handed to the relay as a
// commit function, so the store only changes once the ledger has confirmed
// the client's transaction.
package social

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"socialgraph.relay/sgr/internal/events"
	"socialgraph.relay/sgr/internal/relay"
	"socialgraph.relay/sgr/internal/store"
	"socialgraph.relay/sgr/internal/types"
)

// Relayer submits signed transactions and reports their outcome.
type Relayer interface {
	Submit(ctx context.Context, payload []byte, intent relay.Intent, commit relay.CommitFunc) (*relay.Ticket, error)
	Status(ctx context.Context, sig solana.Signature) (relay.Result, error)
}

// Publisher delivers events to connected clients.
type Publisher interface {
	Publish(address string, ev events.Event)
	Broadcast(ev events.Event)
}

// Options toggles optional rules.
type Options struct {
	RequireCredentialForPosts bool
}

// Service coordinates the store, the relay and event delivery.
type Service struct {
	store  *store.Store
	relay  Relayer
	events Publisher
	opts   Options
	log    zerolog.Logger

	mu            sync.Mutex
	registrations map[string]*relay.Ticket
}

// NewService creates a Service. pub may be nil.
func NewService(st *store.Store, r Relayer, pub Publisher, opts Options, log zerolog.Logger) *Service {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Service{
		store:         st,
		relay:         r,
		events:        pub,
		opts:          opts,
		log:           log.With().Str("component", "social").Logger(),
		registrations: make(map[string]*relay.Ticket),
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, events.Event) {}
func (nopPublisher) Broadcast(events.Event)       {}

// submit hands payload to the relay, translating verification failures.
func (s *Service) submit(ctx context.Context, payload []byte, intent relay.Intent, commit relay.CommitFunc) (*relay.Ticket, error) {
	t, err := s.relay.Submit(ctx, payload, intent, commit)
	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, relay.ErrSignerMismatch):
		return nil, wrap(ErrSignerMismatch, err)
	case errors.Is(err, relay.ErrMalformed):
		return nil, wrap(ErrMalformed, err)
	}
	return nil, wrap(ErrInternal, err)
}

// await waits for t and maps non-confirmed outcomes to errors. The caller
// still inspects CommitErr on a confirmed result.
func (s *Service) await(ctx context.Context, t *relay.Ticket) (relay.Result, error) {
	res, err := t.Wait(ctx)
	if err != nil {
		return res, relayUnknown(t.Signature, "request ended before finality")
	}
	switch res.Outcome {
	case relay.OutcomeRejected:
		return res, relayRejected(res.Reason, res.Signature)
	case relay.OutcomeUnknown:
		return res, relayUnknown(res.Signature, res.Reason)
	}
	return res, nil
}

// TransactionStatus is the client view of a relayed transaction.
type TransactionStatus struct {
	Signature string            `json:"signature"`
	Status    types.RelayStatus `json:"status"`
	Intent    types.IntentKind  `json:"intent,omitempty"`
	Reason    string            `json:"reason,omitempty"`
}

// Transaction reports the status of a relayed transaction. Transactions
// whose outcome was unknown are reconciled against the ledger.
func (s *Service) Transaction(ctx context.Context, signature string) (TransactionStatus, error) {
	sig, err := solana.SignatureFromBase58(strings.TrimSpace(signature))
	if err != nil {
		return TransactionStatus{}, validation("invalid signature: %v", err)
	}

	res, err := s.relay.Status(ctx, sig)
	if err == nil {
		out := TransactionStatus{Signature: sig.String(), Status: relayStatus(res.Outcome), Reason: res.Reason}
		if rec, recErr := s.store.GetRelayRecord(ctx, sig.String()); recErr == nil {
			out.Intent = rec.Intent
		}
		return out, nil
	}
	if !errors.Is(err, relay.ErrNotTracked) {
		return TransactionStatus{}, wrap(ErrInternal, err)
	}

	rec, err := s.store.GetRelayRecord(ctx, sig.String())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TransactionStatus{}, ErrTransactionNotFound
		}
		return TransactionStatus{}, wrap(ErrInternal, err)
	}
	return TransactionStatus{Signature: rec.Signature, Status: rec.Status, Intent: rec.Intent, Reason: rec.Reason}, nil
}

func relayStatus(o relay.Outcome) types.RelayStatus {
	switch o {
	case relay.OutcomeConfirmed:
		return types.RelayConfirmed
	case relay.OutcomeRejected:
		return types.RelayRejected
	case relay.OutcomeUnknown:
		return types.RelayUnknown
	}
	return types.RelayPending
}

func parseKey(field, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(strings.TrimSpace(value))
	if err != nil {
		return solana.PublicKey{}, validation("%s is not a valid public key", field)
	}
	return key, nil
}

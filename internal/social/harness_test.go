package social

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"socialgraph.relay/sgr/internal/events"
	"socialgraph.relay/sgr/internal/ledger"
	"socialgraph.relay/sgr/internal/program"
	"socialgraph.relay/sgr/internal/relay"
	"socialgraph.relay/sgr/internal/store"
	"socialgraph.relay/sgr/internal/types"
)

type published struct {
	address string
	event   events.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(address string, ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{address: address, event: ev})
}

func (p *recordingPublisher) Broadcast(ev events.Event) {
	p.Publish("*", ev)
}

func (p *recordingPublisher) sent(address string, typ events.Type) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.address == address && e.event.Type == typ {
			n++
		}
	}
	return n
}

type harness struct {
	svc    *Service
	store  *store.Store
	ledger *ledger.Memory
	relay  *relay.Relay
	pub    *recordingPublisher
}

func newHarness(t *testing.T, finality time.Duration, opts Options) *harness {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "socialgraph.db"))
	require.NoError(t, err)

	mem := ledger.NewMemory(program.DefaultProgramID, zerolog.Nop())
	r := relay.New(mem, relay.Config{
		Commitment:      ledger.StateFinalized,
		FinalityTimeout: finality,
		PollInterval:    2 * time.Millisecond,
	}, relay.WithJournal(st))

	pub := &recordingPublisher{}
	h := &harness{
		svc:    NewService(st, r, pub, opts, zerolog.Nop()),
		store:  st,
		ledger: mem,
		relay:  r,
		pub:    pub,
	}
	t.Cleanup(func() {
		r.Close()
		st.Close()
	})
	return h
}

type testingT interface {
	require.TestingT
	Helper()
}

func newWallet(t testingT) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func (h *harness) blockhash(t testingT) solana.Hash {
	t.Helper()
	bh, err := h.ledger.LatestBlockhash(context.Background())
	require.NoError(t, err)
	return bh
}

func (h *harness) registerInput(t testingT, wallet solana.PrivateKey, name string) RegisterInput {
	t.Helper()
	args := program.CreateProfileArgs{Name: name, Bio: "hi, I'm " + name, Avatar: "https://example.com/avatar.png"}
	signed, err := program.SignedCreateProfile(program.DefaultProgramID, h.blockhash(t), wallet, args)
	require.NoError(t, err)
	return RegisterInput{
		Payload:        signed.Payload,
		Name:           args.Name,
		Bio:            args.Bio,
		Avatar:         args.Avatar,
		ProfileAccount: signed.Account.String(),
		Address:        wallet.PublicKey().String(),
	}
}

func (h *harness) register(t testingT, name string) solana.PrivateKey {
	t.Helper()
	wallet := newWallet(t)
	_, err := h.svc.Register(context.Background(), h.registerInput(t, wallet, name))
	require.NoError(t, err)
	return wallet
}

func (h *harness) sendInput(t testingT, from solana.PrivateKey, to solana.PublicKey) SendInput {
	t.Helper()
	signed, err := program.SignedSendFriendRequest(program.DefaultProgramID, h.blockhash(t), from, to)
	require.NoError(t, err)
	return SendInput{
		From:           from.PublicKey().String(),
		To:             to.String(),
		Payload:        signed.Payload,
		RequestAccount: signed.Account.String(),
	}
}

func (h *harness) acceptInput(t testingT, req types.FriendRequest, signer solana.PrivateKey) AcceptInput {
	t.Helper()
	signed, err := program.SignedAcceptFriendRequest(program.DefaultProgramID, h.blockhash(t), signer, solana.MustPublicKeyFromBase58(req.From), req.ID)
	require.NoError(t, err)
	return AcceptInput{RequestID: req.ID, Payload: signed.Payload}
}

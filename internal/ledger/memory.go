package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"socialgraph.relay/sgr/internal/program"
)

// Rejection reasons reported by the in-process ledger. They mirror the
// messages a Solana node returns for the same conditions.
const (
	ReasonDecode           = "failed to deserialize transaction"
	ReasonSignature        = "Transaction did not pass signature verification"
	ReasonBlockhash        = "Blockhash not found"
	ReasonAlreadyProcessed = "This transaction has already been processed"
	ReasonAccountInUse     = "account already in use"
)

// ErrTransport is returned by Memory.Send when a lost response is injected.
var ErrTransport = errors.New("connection reset by peer")

type memTx struct {
	state State
	slot  uint64
	err   string
}

// Memory is an in-process ledger. It validates transactions the way a node
// would (signature check, known blockhash, duplicate signature) and applies
// the social graph program's account rules, then walks each accepted
// transaction through processed, confirmed and finalized, one level per
// status query.
//
// Failure injection hooks let tests script rejections, stalls and lost
// responses.
type Memory struct {
	mu          sync.Mutex
	programID   solana.PublicKey
	latest      solana.Hash
	blockhashes map[solana.Hash]struct{}
	accounts    map[solana.PublicKey]string
	txs         map[solana.Signature]*memTx
	slot        uint64
	log         zerolog.Logger

	rejectNext   string
	failNext     string
	loseResponse bool
	hold         bool
}

// NewMemory creates an in-process ledger serving programID.
func NewMemory(programID solana.PublicKey, log zerolog.Logger) *Memory {
	m := &Memory{
		programID:   programID,
		blockhashes: make(map[solana.Hash]struct{}),
		accounts:    make(map[solana.PublicKey]string),
		txs:         make(map[solana.Signature]*memTx),
		log:         log.With().Str("component", "memledger").Logger(),
	}
	m.rotateLocked()
	return m
}

// RejectNext makes the next Send fail with reason.
func (m *Memory) RejectNext(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectNext = reason
}

// FailNext makes the next accepted transaction land with an execution error.
func (m *Memory) FailNext(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = reason
}

// LoseNextResponse accepts the next transaction but reports a transport
// error to the sender.
func (m *Memory) LoseNextResponse() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loseResponse = true
}

// Hold stops (true) or resumes (false) finalization of accepted transactions.
func (m *Memory) Hold(hold bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = hold
}

// ExpireBlockhashes forgets every known blockhash and issues a new one.
func (m *Memory) ExpireBlockhashes() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockhashes = make(map[solana.Hash]struct{})
	m.rotateLocked()
}

// AccountExists reports whether an account was created by a landed transaction.
func (m *Memory) AccountExists(key solana.PublicKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[key]
	return ok
}

func (m *Memory) rotateLocked() {
	var h solana.Hash
	_, _ = rand.Read(h[:])
	m.latest = h
	m.blockhashes[h] = struct{}{}
}

// LatestBlockhash implements Client.
func (m *Memory) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, nil
}

// Send implements Client.
func (m *Memory) Send(ctx context.Context, raw []byte) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil || len(tx.Signatures) == 0 {
		return solana.Signature{}, &RejectedError{Reason: ReasonDecode}
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, &RejectedError{Reason: ReasonSignature}
	}
	sig := tx.Signatures[0]

	m.mu.Lock()
	defer m.mu.Unlock()

	if reason := m.rejectNext; reason != "" {
		m.rejectNext = ""
		return solana.Signature{}, &RejectedError{Reason: reason}
	}
	if _, ok := m.txs[sig]; ok {
		return solana.Signature{}, &RejectedError{Reason: ReasonAlreadyProcessed}
	}
	if _, ok := m.blockhashes[tx.Message.RecentBlockhash]; !ok {
		return solana.Signature{}, &RejectedError{Reason: ReasonBlockhash}
	}

	created, err := m.checkAccountsLocked(tx)
	if err != nil {
		return solana.Signature{}, &RejectedError{Reason: err.Error()}
	}

	m.slot++
	entry := &memTx{state: StateProcessed, slot: m.slot}
	if reason := m.failNext; reason != "" {
		m.failNext = ""
		entry.state = StateFailed
		entry.err = reason
	} else {
		for _, key := range created {
			m.accounts[key] = sig.String()
		}
	}
	m.txs[sig] = entry
	m.log.Debug().Str("signature", sig.String()).Uint64("slot", entry.slot).Msg("transaction accepted")

	if m.loseResponse {
		m.loseResponse = false
		return solana.Signature{}, fmt.Errorf("send transaction: %w", ErrTransport)
	}
	return sig, nil
}

// checkAccountsLocked applies the program's init rules: create_profile and
// send_friend_request allocate their first account, which must not exist.
func (m *Memory) checkAccountsLocked(tx *solana.Transaction) ([]solana.PublicKey, error) {
	var created []solana.PublicKey
	for _, ix := range tx.Message.Instructions {
		programID, err := tx.ResolveProgramIDIndex(ix.ProgramIDIndex)
		if err != nil {
			return nil, err
		}
		if !programID.Equals(m.programID) {
			continue
		}
		name, err := program.InstructionName(ix.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid instruction data: %v", err)
		}
		if name != program.InstructionCreateProfile && name != program.InstructionSendFriendRequest {
			continue
		}
		if len(ix.Accounts) == 0 || int(ix.Accounts[0]) >= len(tx.Message.AccountKeys) {
			return nil, errors.New("missing init account")
		}
		key := tx.Message.AccountKeys[ix.Accounts[0]]
		if _, exists := m.accounts[key]; exists {
			return nil, fmt.Errorf("Allocate: account Address { address: %s, base: None } %s", key, ReasonAccountInUse)
		}
		created = append(created, key)
	}
	return created, nil
}

// Status implements Client. Each call advances an accepted transaction one
// confirmation level unless finalization is held.
func (m *Memory) Status(ctx context.Context, sig solana.Signature) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.txs[sig]
	if !ok {
		return Status{State: StateNotFound}, nil
	}
	if entry.state == StateFailed {
		return Status{State: StateFailed, Slot: entry.slot, Err: entry.err}, nil
	}

	current := Status{State: entry.state, Slot: entry.slot}
	if !m.hold && entry.state < StateFinalized {
		entry.state++
	}
	return current, nil
}

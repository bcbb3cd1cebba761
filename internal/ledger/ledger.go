// Package ledger submits signed transactions to the ledger network and
// reports how far each one has progressed toward finality. Two clients are
// provided: an RPC client for a Solana cluster and an in-process ledger for
// development and tests.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// State is the confirmation level the ledger reports for a signature.
// Levels are ordered; Failed is terminal and sits outside the order.
type State int

const (
	StateNotFound State = iota
	StateProcessed
	StateConfirmed
	StateFinalized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotFound:
		return "not_found"
	case StateProcessed:
		return "processed"
	case StateConfirmed:
		return "confirmed"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Reached reports whether s satisfies the requested commitment level.
func (s State) Reached(commitment State) bool {
	return s != StateFailed && s >= commitment
}

// ParseCommitment maps a configured commitment name to a State.
func ParseCommitment(name string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "processed":
		return StateProcessed, nil
	case "confirmed":
		return StateConfirmed, nil
	case "", "finalized":
		return StateFinalized, nil
	}
	return StateNotFound, fmt.Errorf("unknown commitment %q", name)
}

// Status is the ledger's view of one transaction signature.
type Status struct {
	State State
	Slot  uint64
	Err   string // Set when State is StateFailed
}

// Client is the ledger boundary used by the transaction relay.
type Client interface {
	// Send broadcasts a serialized signed transaction. A *RejectedError means
	// the ledger refused it; any other error leaves the outcome undetermined.
	Send(ctx context.Context, raw []byte) (solana.Signature, error)
	// Status reports the confirmation state of a signature.
	Status(ctx context.Context, sig solana.Signature) (Status, error)
	// LatestBlockhash returns a blockhash clients can sign against.
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// RejectedError is returned by Send when the ledger definitively refused the
// transaction (failed preflight, duplicate signature, stale blockhash).
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "ledger rejected transaction: " + e.Reason
}

// RejectionReason extracts the ledger's reason when err is a rejection.
func RejectionReason(err error) (string, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Reason, true
	}
	return "", false
}

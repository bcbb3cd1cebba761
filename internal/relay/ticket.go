package relay

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"socialgraph.relay/sgr/internal/types"
)

// Outcome is the resolution of a relayed transaction.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeUnknown   Outcome = "unknown"
)

// Result describes how a relayed transaction resolved.
type Result struct {
	Outcome   Outcome
	Signature solana.Signature
	// Reason carries the ledger's rejection text, or why the outcome is unknown.
	Reason string
	// CommitErr is the error returned by the commit function, if it ran.
	CommitErr error
}

// CommitFunc applies the store mutation for a confirmed transaction. It may
// run after the submitting request has gone away and must be idempotent.
type CommitFunc func(ctx context.Context, sig solana.Signature) error

// Ticket tracks one relayed transaction from broadcast to resolution.
type Ticket struct {
	Signature solana.Signature
	Intent    types.IntentKind

	commit   CommitFunc
	commitMu sync.Mutex
	applied  bool

	done chan struct{}

	mu         sync.Mutex
	result     Result
	resolved   bool
	resolvedAt time.Time
}

func newTicket(sig solana.Signature, kind types.IntentKind, commit CommitFunc) *Ticket {
	return &Ticket{
		Signature: sig,
		Intent:    kind,
		commit:    commit,
		done:      make(chan struct{}),
	}
}

// Done is closed once the ticket first resolves.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the ticket resolves or ctx ends. A ctx error does not
// stop the relay; the transaction keeps being tracked.
func (t *Ticket) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		res, _ := t.Result()
		return res, nil
	case <-ctx.Done():
		return Result{Outcome: OutcomePending, Signature: t.Signature}, ctx.Err()
	}
}

// Result returns the current result and whether the ticket has resolved.
func (t *Ticket) Result() (Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.resolved {
		return Result{Outcome: OutcomePending, Signature: t.Signature}, false
	}
	return t.result, true
}

// resolve records res. The first call closes Done; later calls only move an
// Unknown ticket to a definite outcome.
func (t *Ticket) resolve(res Result) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resolved && t.result.Outcome != OutcomeUnknown {
		return false
	}
	first := !t.resolved
	t.result = res
	t.resolved = true
	t.resolvedAt = time.Now()
	if first {
		close(t.done)
	}
	return true
}

// apply runs the commit function until it first succeeds. Once applied,
// later calls are no-ops.
func (t *Ticket) apply(ctx context.Context) error {
	t.commitMu.Lock()
	defer t.commitMu.Unlock()
	if t.applied {
		return nil
	}
	if t.commit != nil {
		if err := t.commit(ctx, t.Signature); err != nil {
			return err
		}
	}
	t.applied = true
	return nil
}

// needsCommit reports whether the ticket confirmed but its commit failed.
func (t *Ticket) needsCommit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolved && t.result.Outcome == OutcomeConfirmed && t.result.CommitErr != nil
}

func (t *Ticket) setCommitErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result.CommitErr = err
}

func (t *Ticket) expired(now time.Time, retention time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolved && now.Sub(t.resolvedAt) > retention
}

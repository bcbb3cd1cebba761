// Package relay broadcasts client-signed transactions to the ledger and
// waits for them to reach finality. The relay never writes the social graph
// itself: callers hand it a commit function that runs only once the ledger
// has confirmed the transaction. Broadcast and confirmation run on the
// relay's own lifecycle, so a caller giving up does not abandon a
// transaction that may still land.
package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"socialgraph.relay/sgr/internal/ledger"
	"socialgraph.relay/sgr/internal/metrics"
	"socialgraph.relay/sgr/internal/program"
	"socialgraph.relay/sgr/internal/types"
)

const (
	defaultFinalityTimeout = 60 * time.Second
	defaultPollInterval    = 2 * time.Second
	commitTimeout          = 15 * time.Second
	journalTimeout         = 5 * time.Second
	ticketRetention        = 30 * time.Minute
)

var (
	ErrClosed     = errors.New("relay closed")
	ErrNotTracked = errors.New("signature not tracked")
)

// Config controls verification and the finality wait.
type Config struct {
	ProgramID       solana.PublicKey
	Commitment      ledger.State
	FinalityTimeout time.Duration
	PollInterval    time.Duration
}

// Journal persists an audit trail of relayed transactions.
type Journal interface {
	RecordSubmission(ctx context.Context, rec types.RelayRecord) error
	RecordOutcome(ctx context.Context, signature string, status types.RelayStatus, reason string) error
}

// Option configures a Relay.
type Option func(*Relay)

// WithJournal records every submission and outcome in j.
func WithJournal(j Journal) Option {
	return func(r *Relay) { r.journal = j }
}

// WithMetrics reports outcomes and finality latency to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// WithLogger sets the relay logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Relay) { r.log = l.With().Str("component", "relay").Logger() }
}

// Relay verifies, broadcasts and tracks signed transactions.
type Relay struct {
	cfg     Config
	ledger  ledger.Client
	journal Journal
	metrics *metrics.Metrics
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	tickets map[solana.Signature]*Ticket

	// Commits hold it shared; Hold takes it exclusively.
	commitGate sync.RWMutex
}

// New creates a relay over client.
func New(client ledger.Client, cfg Config, opts ...Option) *Relay {
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = program.DefaultProgramID
	}
	if cfg.Commitment == ledger.StateNotFound {
		cfg.Commitment = ledger.StateFinalized
	}
	if cfg.FinalityTimeout <= 0 {
		cfg.FinalityTimeout = defaultFinalityTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		cfg:     cfg,
		ledger:  client,
		log:     zerolog.Nop(),
		ctx:     ctx,
		cancel:  cancel,
		tickets: make(map[solana.Signature]*Ticket),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit verifies payload against intent and starts relaying it. Errors
// wrapping ErrMalformed or ErrSignerMismatch mean nothing was broadcast.
//
// Resubmitting a payload whose signature is in flight or confirmed returns
// the existing ticket, so commit runs at most once per signature. A
// confirmed ticket whose commit failed is committed again. A payload
// whose earlier attempt was rejected or unknown is checked against the
// ledger and broadcast again.
func (r *Relay) Submit(ctx context.Context, payload []byte, intent Intent, commit CommitFunc) (*Ticket, error) {
	tx, err := r.verify(payload, intent)
	if err != nil {
		return nil, err
	}
	sig := tx.Signatures[0]

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.pruneLocked(time.Now())

	recheck := false
	if existing, ok := r.tickets[sig]; ok {
		res, resolved := existing.Result()
		if !resolved || res.Outcome == OutcomeConfirmed {
			r.mu.Unlock()
			if existing.needsCommit() {
				r.recommit(existing)
			}
			return existing, nil
		}
		recheck = true
	}

	t := newTicket(sig, intent.Kind(), commit)
	r.tickets[sig] = t
	r.wg.Add(1)
	r.mu.Unlock()

	r.journalSubmission(t, intent.Authority())
	r.log.Info().
		Str("signature", sig.String()).
		Str("intent", string(t.Intent)).
		Str("fee_payer", intent.Authority().String()).
		Msg("relaying transaction")

	go r.run(t, payload, recheck)
	return t, nil
}

// Ticket returns the tracked ticket for sig.
func (r *Relay) Ticket(sig solana.Signature) (*Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[sig]
	return t, ok
}

// Status reports the outcome for sig. An Unknown ticket is re-checked
// against the ledger and, if the transaction has since been confirmed, its
// commit function is applied. A confirmed ticket whose commit failed is
// committed again.
func (r *Relay) Status(ctx context.Context, sig solana.Signature) (Result, error) {
	t, ok := r.Ticket(sig)
	if !ok {
		st, err := r.ledger.Status(ctx, sig)
		if err != nil {
			return Result{}, err
		}
		switch {
		case st.State == ledger.StateNotFound:
			return Result{}, ErrNotTracked
		case st.State == ledger.StateFailed:
			return Result{Outcome: OutcomeRejected, Signature: sig, Reason: st.Err}, nil
		case st.State.Reached(r.cfg.Commitment):
			return Result{Outcome: OutcomeConfirmed, Signature: sig}, nil
		}
		return Result{Outcome: OutcomePending, Signature: sig}, nil
	}

	if t.needsCommit() {
		r.recommit(t)
	}
	res, resolved := t.Result()
	if !resolved || res.Outcome != OutcomeUnknown {
		return res, nil
	}

	latest, ok := r.check(ctx, sig)
	if !ok {
		return res, nil
	}
	if latest.Outcome == OutcomeConfirmed {
		latest.CommitErr = r.commit(t)
	}
	if t.resolve(latest) {
		r.journalOutcome(t, latest)
		r.log.Info().
			Str("signature", sig.String()).
			Str("outcome", string(latest.Outcome)).
			Msg("reconciled unknown transaction")
	}
	res, _ = t.Result()
	return res, nil
}

// Close stops waiting for finality. In-flight tickets resolve as Unknown.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

func (r *Relay) run(t *Ticket, payload []byte, recheck bool) {
	defer r.wg.Done()
	started := time.Now()
	r.metrics.RelayStarted()

	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.FinalityTimeout)
	res := r.broadcast(ctx, t.Signature, payload, recheck)
	cancel()

	if res.Outcome == OutcomeConfirmed {
		res.CommitErr = r.commit(t)
	}
	t.resolve(res)

	r.metrics.RelayResolved(string(t.Intent), string(res.Outcome), time.Since(started))
	r.journalOutcome(t, res)

	ev := r.log.Info()
	if res.Outcome != OutcomeConfirmed {
		ev = r.log.Warn()
	}
	ev.Str("signature", t.Signature.String()).
		Str("intent", string(t.Intent)).
		Str("outcome", string(res.Outcome)).
		Str("reason", res.Reason).
		Dur("elapsed", time.Since(started)).
		Msg("transaction resolved")
}

func (r *Relay) broadcast(ctx context.Context, sig solana.Signature, payload []byte, recheck bool) Result {
	if recheck {
		if res, ok := r.check(ctx, sig); ok {
			return res
		}
	}

	if _, err := r.ledger.Send(ctx, payload); err != nil {
		reason, rejected := ledger.RejectionReason(err)
		if rejected && !alreadyProcessed(reason) {
			return Result{Outcome: OutcomeRejected, Signature: sig, Reason: reason}
		}
		// The transaction may have landed; only the ledger can tell.
		r.log.Warn().Err(err).Str("signature", sig.String()).Msg("broadcast inconclusive, polling signature")
	}

	return r.await(ctx, sig)
}

func (r *Relay) await(ctx context.Context, sig solana.Signature) Result {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if res, ok := r.check(ctx, sig); ok {
			return res
		}
		select {
		case <-ctx.Done():
			reason := "finality not observed before timeout"
			if r.ctx.Err() != nil {
				reason = "relay shutting down"
			}
			return Result{Outcome: OutcomeUnknown, Signature: sig, Reason: reason}
		case <-ticker.C:
		}
	}
}

// check returns a definite result when the ledger has one.
func (r *Relay) check(ctx context.Context, sig solana.Signature) (Result, bool) {
	st, err := r.ledger.Status(ctx, sig)
	if err != nil {
		r.log.Debug().Err(err).Str("signature", sig.String()).Msg("status query failed")
		return Result{}, false
	}
	switch {
	case st.State == ledger.StateFailed:
		return Result{Outcome: OutcomeRejected, Signature: sig, Reason: st.Err}, true
	case st.State.Reached(r.cfg.Commitment):
		return Result{Outcome: OutcomeConfirmed, Signature: sig}, true
	}
	return Result{}, false
}

// Hold runs fn while no confirmed transaction is being committed. Commits
// that become due meanwhile wait for fn to return; ledger polling goes on.
func (r *Relay) Hold(fn func() error) error {
	r.commitGate.Lock()
	defer r.commitGate.Unlock()
	return fn()
}

func (r *Relay) commit(t *Ticket) error {
	r.commitGate.RLock()
	defer r.commitGate.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()

	err := t.apply(ctx)
	if err != nil {
		r.log.Error().Err(err).Str("signature", t.Signature.String()).Msg("commit after confirmation failed")
	}
	return err
}

// recommit retries the store mutation of a confirmed ticket.
func (r *Relay) recommit(t *Ticket) {
	err := r.commit(t)
	t.setCommitErr(err)
	if err == nil {
		r.log.Info().Str("signature", t.Signature.String()).Msg("commit applied on retry")
	}
}

func (r *Relay) pruneLocked(now time.Time) {
	for sig, t := range r.tickets {
		if t.expired(now, ticketRetention) {
			delete(r.tickets, sig)
		}
	}
}

func (r *Relay) journalSubmission(t *Ticket, feePayer solana.PublicKey) {
	if r.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	err := r.journal.RecordSubmission(ctx, types.RelayRecord{
		Signature:   t.Signature.String(),
		Intent:      t.Intent,
		FeePayer:    feePayer.String(),
		Status:      types.RelayPending,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		r.log.Warn().Err(err).Str("signature", t.Signature.String()).Msg("journal submission failed")
	}
}

func (r *Relay) journalOutcome(t *Ticket, res Result) {
	if r.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := r.journal.RecordOutcome(ctx, t.Signature.String(), relayStatus(res.Outcome), res.Reason); err != nil {
		r.log.Warn().Err(err).Str("signature", t.Signature.String()).Msg("journal outcome failed")
	}
}

func relayStatus(o Outcome) types.RelayStatus {
	switch o {
	case OutcomeConfirmed:
		return types.RelayConfirmed
	case OutcomeRejected:
		return types.RelayRejected
	case OutcomeUnknown:
		return types.RelayUnknown
	}
	return types.RelayPending
}

func alreadyProcessed(reason string) bool {
	return strings.Contains(strings.ToLower(reason), "already been processed")
}

package social

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Kind classifies an Error for transport mapping.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindForbidden     Kind = "forbidden"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindRelayRejected Kind = "relay_rejected"
	KindRelayUnknown  Kind = "relay_unknown"
	KindInternal      Kind = "internal"
)

// Error is a handshake failure. Errors compare equal under errors.Is when
// their codes match, so callers can test against the sentinels below.
type Error struct {
	Kind Kind
	// Code identifies the specific failure, e.g. "self_request".
	Code string
	Msg  string
	// Signature is set for relay outcomes so the client can poll the ledger.
	Signature string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels; errors.Is matches them by code, so copies carrying a message
// or a cause still match.
var (
	ErrValidation       = &Error{Kind: KindValidation, Code: "validation", Msg: "invalid request"}
	ErrMalformed        = &Error{Kind: KindValidation, Code: "malformed_transaction", Msg: "malformed transaction"}
	ErrSignerMismatch   = &Error{Kind: KindValidation, Code: "signer_mismatch", Msg: "transaction signer does not match the declared user"}
	ErrSelfRequest      = &Error{Kind: KindValidation, Code: "self_request", Msg: "cannot send a friend request to yourself"}
	ErrForbidden        = &Error{Kind: KindForbidden, Code: "forbidden", Msg: "credential required"}
	ErrUnknownUser      = &Error{Kind: KindNotFound, Code: "unknown_user", Msg: "user not found"}
	ErrRequestNotFound  = &Error{Kind: KindNotFound, Code: "request_not_found", Msg: "friend request not found"}
	ErrDuplicateAddress = &Error{Kind: KindConflict, Code: "duplicate_address", Msg: "user already exists"}
	ErrDuplicateRequest = &Error{Kind: KindConflict, Code: "duplicate_request", Msg: "friend request already exists"}
	ErrAlreadyResolved  = &Error{Kind: KindConflict, Code: "already_resolved", Msg: "friend request already resolved"}
	ErrRelayRejected    = &Error{Kind: KindRelayRejected, Code: "relay_rejected", Msg: "transaction rejected"}
	ErrRelayUnknown     = &Error{Kind: KindRelayUnknown, Code: "relay_unknown", Msg: "transaction outcome unknown"}
	ErrInternal         = &Error{Kind: KindInternal, Code: "internal", Msg: "internal error"}

	// ErrTransactionNotFound is returned by Transaction for a signature that
	// neither the relay nor the ledger knows.
	ErrTransactionNotFound = &Error{Kind: KindNotFound, Code: "transaction_not_found", Msg: "transaction not found"}
)

func withMsg(base *Error, msg string) *Error {
	e := *base
	e.Msg = msg
	return &e
}

func wrap(base *Error, err error) *Error {
	e := *base
	e.Err = err
	return &e
}

func validation(format string, args ...any) *Error {
	return withMsg(ErrValidation, fmt.Sprintf(format, args...))
}

func relayRejected(reason string, sig solana.Signature) *Error {
	e := withMsg(ErrRelayRejected, "Transaction failed: "+reason)
	e.Signature = sig.String()
	return e
}

func relayUnknown(sig solana.Signature, reason string) *Error {
	msg := "transaction outcome unknown, poll its signature for the final status"
	if reason != "" {
		msg += " (" + reason + ")"
	}
	e := withMsg(ErrRelayUnknown, msg)
	e.Signature = sig.String()
	return e
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

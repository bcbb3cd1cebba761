// Package types defines the core domain models for the social graph relay.
// It contains the Profile, FriendRequest and Post models and the status
// constants shared by the store, the transaction relay and the HTTP layer.
// Profiles and friend edges are mirrored off-chain only after the ledger
// transaction that anchors them has been finalized.
package types

import (
	"time"
)

// Version is the current version of sgr
const Version = "0.3.0"

// BuildTime is set at build time via -ldflags
var BuildTime = "dev"

// RequestStatus represents the lifecycle state of a friend request
type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestAccepted RequestStatus = "Accepted"
	RequestRejected RequestStatus = "Rejected"
)

// Valid reports whether s is one of the known request states.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestAccepted, RequestRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s RequestStatus) Terminal() bool {
	return s == RequestAccepted || s == RequestRejected
}

// CanTransition reports whether a request in state s may move to next.
// Only Pending -> Accepted and Pending -> Rejected are legal.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	return s == RequestPending && next.Terminal()
}

// Profile is the off-chain mirror of a registered wallet identity.
// The JSON field names follow the web client's existing contract.
type Profile struct {
	Address           string    `json:"phantomAddress"`   // Base58 wallet public key, unique and immutable
	DisplayName       string    `json:"name"`             // Display name chosen at registration
	Bio               string    `json:"bio"`              // Free-form profile text
	AvatarURI         string    `json:"avatar"`           // Avatar image URI
	OnChainAccountKey string    `json:"profilePublicKey"` // Ledger account created by create_profile
	Friends           []string  `json:"friends"`          // Addresses of accepted friends (symmetric)
	HasCredentialNFT  bool      `json:"hasCredentialNFT"` // Gate for privileged actions
	CreatedAt         time.Time `json:"createdAt"`
}

// ProfileView is a Profile with its friend list resolved to profiles.
type ProfileView struct {
	Profile
	Friends []Profile `json:"friends"`
}

// FriendRequest is a directed request between two registered users.
type FriendRequest struct {
	ID                string        `json:"id"`
	From              string        `json:"from"`
	To                string        `json:"to"`
	Status            RequestStatus `json:"status"`
	OnChainRequestKey string        `json:"onChainRequestKey,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	ResolvedAt        time.Time     `json:"resolvedAt,omitempty"`
}

// Post is a short text entry authored by a registered user.
type Post struct {
	ID         string    `json:"id"`
	Author     string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IntentKind names the social-graph mutation a relayed transaction anchors.
type IntentKind string

const (
	IntentRegisterProfile     IntentKind = "register_profile"
	IntentSendFriendRequest   IntentKind = "send_friend_request"
	IntentAcceptFriendRequest IntentKind = "accept_friend_request"
)

// RelayStatus is the journaled state of a relayed transaction.
type RelayStatus string

const (
	RelayPending   RelayStatus = "pending"
	RelayConfirmed RelayStatus = "confirmed"
	RelayRejected  RelayStatus = "rejected"
	RelayUnknown   RelayStatus = "unknown"
)

// RelayRecord is the audit entry for one relayed transaction.
type RelayRecord struct {
	Signature   string      `json:"signature"`
	Intent      IntentKind  `json:"intent"`
	FeePayer    string      `json:"feePayer"`
	Status      RelayStatus `json:"status"`
	Reason      string      `json:"reason,omitempty"`
	SubmittedAt time.Time   `json:"submittedAt"`
	ResolvedAt  time.Time   `json:"resolvedAt,omitempty"`
}

// RegistrationState is the server-visible phase of the registration handshake.
// The AwaitingSignature phase happens entirely on the client.
type RegistrationState string

const (
	RegistrationUnregistered     RegistrationState = "unregistered"
	RegistrationAwaitingFinality RegistrationState = "awaiting_finality"
	RegistrationRegistered       RegistrationState = "registered"
	RegistrationFailed           RegistrationState = "failed"
)

// RegistrationStatus reports the registration phase for an address.
type RegistrationStatus struct {
	Address   string            `json:"address"`
	State     RegistrationState `json:"state"`
	Signature string            `json:"signature,omitempty"`
	Reason    string            `json:"reason,omitempty"`
}

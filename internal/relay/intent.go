package relay

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"socialgraph.relay/sgr/internal/program"
	"socialgraph.relay/sgr/internal/types"
)

// Intent is the social-graph mutation a client declares alongside a signed
// transaction. The relay checks the transaction actually performs it.
type Intent interface {
	Kind() types.IntentKind
	// Authority is the address that must pay the fee and sign.
	Authority() solana.PublicKey
	// Match checks the program instruction against the declared fields.
	Match(ix Instruction) error
}

// Instruction is a compiled instruction resolved against its message.
type Instruction struct {
	Accounts []solana.PublicKey
	Data     []byte
	isSigner func(solana.PublicKey) bool
}

// IsSigner reports whether key signed the enclosing transaction.
func (ix Instruction) IsSigner(key solana.PublicKey) bool {
	return ix.isSigner != nil && ix.isSigner(key)
}

func (ix Instruction) account(i int, want solana.PublicKey, role string) error {
	if i >= len(ix.Accounts) {
		return fmt.Errorf("%w: missing %s account", ErrMalformed, role)
	}
	if !ix.Accounts[i].Equals(want) {
		return fmt.Errorf("%w: %s account is %s, declared %s", ErrMalformed, role, ix.Accounts[i], want)
	}
	return nil
}

// RegisterProfile anchors a new Profile through create_profile.
type RegisterProfile struct {
	Name           string
	Bio            string
	Avatar         string
	ProfileAccount solana.PublicKey
	Owner          solana.PublicKey
}

func (i RegisterProfile) Kind() types.IntentKind      { return types.IntentRegisterProfile }
func (i RegisterProfile) Authority() solana.PublicKey { return i.Owner }

func (i RegisterProfile) Match(ix Instruction) error {
	args, err := program.DecodeCreateProfile(ix.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if args.Name != i.Name || args.Bio != i.Bio || args.Avatar != i.Avatar {
		return fmt.Errorf("%w: profile fields differ from the signed instruction", ErrMalformed)
	}
	if err := ix.account(0, i.ProfileAccount, "profile"); err != nil {
		return err
	}
	if err := ix.account(1, i.Owner, "user"); err != nil {
		return err
	}
	if !ix.IsSigner(i.ProfileAccount) {
		return fmt.Errorf("%w: profile account did not sign", ErrMalformed)
	}
	return nil
}

// SendFriendRequest anchors a friend request through send_friend_request.
type SendFriendRequest struct {
	RequestAccount solana.PublicKey
	From           solana.PublicKey
	To             solana.PublicKey
}

func (i SendFriendRequest) Kind() types.IntentKind      { return types.IntentSendFriendRequest }
func (i SendFriendRequest) Authority() solana.PublicKey { return i.From }

func (i SendFriendRequest) Match(ix Instruction) error {
	if err := program.DecodeSendFriendRequest(ix.Data); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := ix.account(0, i.RequestAccount, "friend_request"); err != nil {
		return err
	}
	if err := ix.account(1, i.From, "user"); err != nil {
		return err
	}
	if err := ix.account(2, i.To, "friend"); err != nil {
		return err
	}
	if !ix.IsSigner(i.RequestAccount) {
		return fmt.Errorf("%w: request account did not sign", ErrMalformed)
	}
	return nil
}

// AcceptFriendRequest anchors an acceptance through accept_friend_request.
// Only the recipient of the request can accept it.
type AcceptFriendRequest struct {
	RequestID string
	From      solana.PublicKey
	To        solana.PublicKey
}

func (i AcceptFriendRequest) Kind() types.IntentKind      { return types.IntentAcceptFriendRequest }
func (i AcceptFriendRequest) Authority() solana.PublicKey { return i.To }

func (i AcceptFriendRequest) Match(ix Instruction) error {
	args, err := program.DecodeAcceptFriendRequest(ix.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if args.RequestID != i.RequestID {
		return fmt.Errorf("%w: request id %q differs from declared %q", ErrMalformed, args.RequestID, i.RequestID)
	}
	if err := ix.account(0, i.From, "user"); err != nil {
		return err
	}
	return ix.account(1, i.To, "friend")
}

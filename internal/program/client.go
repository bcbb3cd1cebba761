package program

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Signed is a serialized, fully signed transaction ready to relay.
type Signed struct {
	Payload   []byte
	Signature solana.Signature
	// Account is the fresh account the instruction initializes, if any.
	Account solana.PublicKey
}

// SignedCreateProfile builds and signs create_profile for owner. A fresh
// profile account keypair is generated and co-signs the transaction.
func SignedCreateProfile(programID solana.PublicKey, blockhash solana.Hash, owner solana.PrivateKey, args CreateProfileArgs) (Signed, error) {
	profile, err := solana.NewRandomPrivateKey()
	if err != nil {
		return Signed{}, fmt.Errorf("generate profile account: %w", err)
	}
	ix, err := NewCreateProfileInstruction(programID, profile.PublicKey(), owner.PublicKey(), args)
	if err != nil {
		return Signed{}, err
	}
	return sign(ix, blockhash, owner, profile.PublicKey(), owner, profile)
}

// SignedSendFriendRequest builds and signs send_friend_request from sender
// to recipient with a fresh request account.
func SignedSendFriendRequest(programID solana.PublicKey, blockhash solana.Hash, sender solana.PrivateKey, recipient solana.PublicKey) (Signed, error) {
	request, err := solana.NewRandomPrivateKey()
	if err != nil {
		return Signed{}, fmt.Errorf("generate request account: %w", err)
	}
	ix, err := NewSendFriendRequestInstruction(programID, request.PublicKey(), sender.PublicKey(), recipient)
	if err != nil {
		return Signed{}, err
	}
	return sign(ix, blockhash, sender, request.PublicKey(), sender, request)
}

// SignedAcceptFriendRequest builds and signs accept_friend_request. The
// recipient of the request signs and pays.
func SignedAcceptFriendRequest(programID solana.PublicKey, blockhash solana.Hash, recipient solana.PrivateKey, requester solana.PublicKey, requestID string) (Signed, error) {
	ix, err := NewAcceptFriendRequestInstruction(programID, requester, recipient.PublicKey(), requestID)
	if err != nil {
		return Signed{}, err
	}
	return sign(ix, blockhash, recipient, solana.PublicKey{}, recipient)
}

func sign(ix solana.Instruction, blockhash solana.Hash, payer solana.PrivateKey, account solana.PublicKey, signers ...solana.PrivateKey) (Signed, error) {
	tx, err := BuildTransaction(ix, blockhash, payer.PublicKey(), signers...)
	if err != nil {
		return Signed{}, fmt.Errorf("sign transaction: %w", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return Signed{}, fmt.Errorf("serialize transaction: %w", err)
	}
	return Signed{Payload: raw, Signature: tx.Signatures[0], Account: account}, nil
}

package program

import (
	"github.com/gagliardetto/solana-go"
)

// NewCreateProfileInstruction builds create_profile. The profile account is a
// fresh keypair that must co-sign; the owner pays the fee.
func NewCreateProfileInstruction(programID, profileAccount, owner solana.PublicKey, args CreateProfileArgs) (solana.Instruction, error) {
	data, err := encode(CreateProfileDiscriminator, args)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(profileAccount, true, true),
		solana.NewAccountMeta(owner, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}

// NewSendFriendRequestInstruction builds send_friend_request. The request
// account is a fresh keypair that must co-sign; the sender pays the fee.
func NewSendFriendRequestInstruction(programID, requestAccount, from, to solana.PublicKey) (solana.Instruction, error) {
	data, err := encode(SendFriendRequestDiscriminator, nil)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(requestAccount, true, true),
		solana.NewAccountMeta(from, true, true),
		solana.NewAccountMeta(to, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}

// NewAcceptFriendRequestInstruction builds accept_friend_request. The
// recipient of the request signs and pays the fee.
func NewAcceptFriendRequestInstruction(programID, from, to solana.PublicKey, requestID string) (solana.Instruction, error) {
	data, err := encode(AcceptFriendRequestDiscriminator, AcceptFriendRequestArgs{RequestID: requestID})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.NewAccountMeta(from, true, false),
		solana.NewAccountMeta(to, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}

// BuildTransaction assembles a transaction paid by feePayer and signs it with
// every provided key. Keys not required by the message are ignored.
func BuildTransaction(ix solana.Instruction, recentBlockhash solana.Hash, feePayer solana.PublicKey, signers ...solana.PrivateKey) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, recentBlockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, err
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

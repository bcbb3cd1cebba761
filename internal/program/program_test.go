package program

import (
	"crypto/sha256"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscriminatorsMatchAnchorSighash(t *testing.T) {
	for name, got := range map[string]bin.TypeID{
		InstructionCreateProfile:       CreateProfileDiscriminator,
		InstructionSendFriendRequest:   SendFriendRequestDiscriminator,
		InstructionAcceptFriendRequest: AcceptFriendRequestDiscriminator,
	} {
		sum := sha256.Sum256([]byte("global:" + name))
		assert.Equal(t, sum[:8], got[:], name)
	}
}

func TestCreateProfileRoundTrip(t *testing.T) {
	profile := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	args := CreateProfileArgs{Name: "Ana", Bio: "builder", Avatar: "https://example.com/ana.png"}

	ix, err := NewCreateProfileInstruction(DefaultProgramID, profile, owner, args)
	require.NoError(t, err)
	assert.True(t, ix.ProgramID().Equals(DefaultProgramID))

	accounts := ix.Accounts()
	require.Len(t, accounts, 3)
	assert.True(t, accounts[0].PublicKey.Equals(profile))
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[1].PublicKey.Equals(owner))
	assert.True(t, accounts[1].IsSigner)

	data, err := ix.Data()
	require.NoError(t, err)

	name, err := InstructionName(data)
	require.NoError(t, err)
	assert.Equal(t, InstructionCreateProfile, name)

	decoded, err := DecodeCreateProfile(data)
	require.NoError(t, err)
	assert.Equal(t, args, decoded)
}

func TestAcceptFriendRequestRoundTrip(t *testing.T) {
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()

	ix, err := NewAcceptFriendRequestInstruction(DefaultProgramID, from, to, "req-1")
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)

	args, err := DecodeAcceptFriendRequest(data)
	require.NoError(t, err)
	assert.Equal(t, "req-1", args.RequestID)

	_, err = DecodeCreateProfile(data)
	assert.ErrorIs(t, err, ErrUnknownInstruction)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	data, err := encode(SendFriendRequestDiscriminator, nil)
	require.NoError(t, err)
	require.NoError(t, DecodeSendFriendRequest(data))

	err = DecodeSendFriendRequest(append(data, 0x01))
	assert.ErrorIs(t, err, ErrTrailingData)
}

func TestInstructionNameErrors(t *testing.T) {
	_, err := InstructionName([]byte{1, 2, 3})
	assert.Error(t, err)

	_, err = InstructionName(make([]byte, 8))
	assert.ErrorIs(t, err, ErrUnknownInstruction)
}

func TestBuildTransactionSignsAllRequiredKeys(t *testing.T) {
	owner := solana.NewWallet().PrivateKey
	profile := solana.NewWallet().PrivateKey

	ix, err := NewCreateProfileInstruction(DefaultProgramID, profile.PublicKey(), owner.PublicKey(), CreateProfileArgs{Name: "a", Bio: "b", Avatar: "c"})
	require.NoError(t, err)

	tx, err := BuildTransaction(ix, solana.Hash{1}, owner.PublicKey(), owner, profile)
	require.NoError(t, err)
	require.Len(t, tx.Signatures, 2)
	assert.True(t, tx.Message.AccountKeys[0].Equals(owner.PublicKey()))
	assert.NoError(t, tx.VerifySignatures())
}

// Package program describes the on-chain social graph program: its address,
// the Anchor instruction discriminators, and the Borsh codecs for instruction
// arguments. Both the relay (decoding) and the reference client (building)
// use it so the two sides cannot drift apart.
package program

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID is the devnet deployment of the social graph program.
var DefaultProgramID = solana.MustPublicKeyFromBase58("3B3LUSr2wAHAioxNDTsecdhVsPeWy26VxoxU48HeuHyj")

// Instruction names as declared in the program IDL.
const (
	InstructionCreateProfile       = "create_profile"
	InstructionSendFriendRequest   = "send_friend_request"
	InstructionAcceptFriendRequest = "accept_friend_request"
)

var (
	CreateProfileDiscriminator       = bin.SighashTypeID(bin.SIGHASH_GLOBAL_NAMESPACE, InstructionCreateProfile)
	SendFriendRequestDiscriminator   = bin.SighashTypeID(bin.SIGHASH_GLOBAL_NAMESPACE, InstructionSendFriendRequest)
	AcceptFriendRequestDiscriminator = bin.SighashTypeID(bin.SIGHASH_GLOBAL_NAMESPACE, InstructionAcceptFriendRequest)
)

var (
	ErrUnknownInstruction = errors.New("unknown instruction discriminator")
	ErrTrailingData       = errors.New("trailing instruction data")
)

// CreateProfileArgs are the create_profile arguments.
type CreateProfileArgs struct {
	Name   string
	Bio    string
	Avatar string
}

// AcceptFriendRequestArgs are the accept_friend_request arguments.
type AcceptFriendRequestArgs struct {
	RequestID string
}

// InstructionName returns the IDL name for the discriminator that prefixes data.
func InstructionName(data []byte) (string, error) {
	if len(data) < 8 {
		return "", fmt.Errorf("instruction data too short: %d bytes", len(data))
	}
	var id bin.TypeID
	copy(id[:], data[:8])
	switch id {
	case CreateProfileDiscriminator:
		return InstructionCreateProfile, nil
	case SendFriendRequestDiscriminator:
		return InstructionSendFriendRequest, nil
	case AcceptFriendRequestDiscriminator:
		return InstructionAcceptFriendRequest, nil
	}
	return "", ErrUnknownInstruction
}

// DecodeCreateProfile parses create_profile instruction data.
func DecodeCreateProfile(data []byte) (CreateProfileArgs, error) {
	var args CreateProfileArgs
	err := decode(data, CreateProfileDiscriminator, &args)
	return args, err
}

// DecodeAcceptFriendRequest parses accept_friend_request instruction data.
func DecodeAcceptFriendRequest(data []byte) (AcceptFriendRequestArgs, error) {
	var args AcceptFriendRequestArgs
	err := decode(data, AcceptFriendRequestDiscriminator, &args)
	return args, err
}

// DecodeSendFriendRequest checks send_friend_request instruction data. The
// instruction carries no arguments.
func DecodeSendFriendRequest(data []byte) error {
	return decode(data, SendFriendRequestDiscriminator, nil)
}

func decode(data []byte, want bin.TypeID, args interface{}) error {
	dec := bin.NewBorshDecoder(data)
	got, err := dec.ReadTypeID()
	if err != nil {
		return fmt.Errorf("read discriminator: %w", err)
	}
	if got != want {
		return ErrUnknownInstruction
	}
	if args != nil {
		if err := dec.Decode(args); err != nil {
			return fmt.Errorf("decode arguments: %w", err)
		}
	}
	if dec.Remaining() > 0 {
		return ErrTrailingData
	}
	return nil
}

func encode(discriminator bin.TypeID, args interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(discriminator[:])
	if args != nil {
		if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
	}
	return buf.Bytes(), nil
}

package relay

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	// ErrMalformed means the payload is not a valid signed transaction for
	// the program, or it does not perform the declared intent.
	ErrMalformed = errors.New("malformed transaction")
	// ErrSignerMismatch means the fee payer is not the declared authority.
	ErrSignerMismatch = errors.New("signer mismatch")
)

// verify decodes payload and checks it against intent. The returned
// transaction is safe to broadcast on behalf of intent.Authority().
func (r *Relay) verify(payload []byte, intent Intent) (*solana.Transaction, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	dec := bin.NewBinDecoder(payload)
	tx, err := solana.TransactionFromDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dec.Remaining() > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, dec.Remaining())
	}

	msg := &tx.Message
	if len(msg.AccountKeys) == 0 {
		return nil, fmt.Errorf("%w: no account keys", ErrMalformed)
	}
	if len(tx.Signatures) == 0 || len(tx.Signatures) != int(msg.Header.NumRequiredSignatures) {
		return nil, fmt.Errorf("%w: expected %d signatures, got %d", ErrMalformed, msg.Header.NumRequiredSignatures, len(tx.Signatures))
	}
	if err := tx.VerifySignatures(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	ix, err := r.programInstruction(tx)
	if err != nil {
		return nil, err
	}

	authority := intent.Authority()
	if !msg.AccountKeys[0].Equals(authority) {
		return nil, fmt.Errorf("%w: fee payer %s, declared %s", ErrSignerMismatch, msg.AccountKeys[0], authority)
	}

	if err := intent.Match(ix); err != nil {
		return nil, err
	}
	return tx, nil
}

// programInstruction returns the single instruction addressed to the
// configured program.
func (r *Relay) programInstruction(tx *solana.Transaction) (Instruction, error) {
	msg := &tx.Message
	var (
		found Instruction
		count int
	)
	for _, compiled := range msg.Instructions {
		if int(compiled.ProgramIDIndex) >= len(msg.AccountKeys) {
			return Instruction{}, fmt.Errorf("%w: program index out of range", ErrMalformed)
		}
		if !msg.AccountKeys[compiled.ProgramIDIndex].Equals(r.cfg.ProgramID) {
			continue
		}

		accounts := make([]solana.PublicKey, 0, len(compiled.Accounts))
		for _, idx := range compiled.Accounts {
			if int(idx) >= len(msg.AccountKeys) {
				return Instruction{}, fmt.Errorf("%w: account index out of range", ErrMalformed)
			}
			accounts = append(accounts, msg.AccountKeys[idx])
		}
		found = Instruction{Accounts: accounts, Data: compiled.Data, isSigner: msg.IsSigner}
		count++
	}

	switch count {
	case 0:
		return Instruction{}, fmt.Errorf("%w: no instruction for program %s", ErrMalformed, r.cfg.ProgramID)
	case 1:
		return found, nil
	}
	return Instruction{}, fmt.Errorf("%w: %d instructions for program %s, expected one", ErrMalformed, count, r.cfg.ProgramID)
}

package identity

import (
	"github.com/gagliardetto/solana-go"
)

// Identity represents a wallet keypair. The base58 public key is the
// address users are known by across the social graph.
type Identity struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewIdentity creates a new Identity from a private key
func NewIdentity(privKey solana.PrivateKey) *Identity {
	return &Identity{
		privateKey: privKey,
		publicKey:  privKey.PublicKey(),
	}
}

// Sign signs the provided message with the identity's private key
func (i *Identity) Sign(message []byte) ([]byte, error) {
	sig, err := i.privateKey.Sign(message)
	if err != nil {
		return nil, err
	}
	return sig[:], nil
}

// Verify verifies a signature against a message using the identity's public key
func (i *Identity) Verify(message, signature []byte) bool {
	return solana.SignatureFromBytes(signature).Verify(i.publicKey, message)
}

// PublicKey returns the public key
func (i *Identity) PublicKey() solana.PublicKey {
	return i.publicKey
}

// PrivateKey returns the raw private key
func (i *Identity) PrivateKey() solana.PrivateKey {
	return i.privateKey
}

// Address returns the base58 public key
func (i *Identity) Address() string {
	return i.publicKey.String()
}

// Signer returns the private key when key is this identity's public key.
// It matches the getter signature expected by solana.Transaction.Sign.
func (i *Identity) Signer(key solana.PublicKey) *solana.PrivateKey {
	if key.Equals(i.publicKey) {
		return &i.privateKey
	}
	return nil
}

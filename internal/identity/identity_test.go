// Package identity tests validate key generation, loading, and signing
// behavior for the Identity abstraction. These tests ensure persistent key
// files can be created, re-loaded, signed with, and that file permissions
// match security expectations for both supported formats.
package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestIdentityLifecycle(t *testing.T) {
	for _, name := range []string{"wallet.pem", "wallet.json"} {
		t.Run(name, func(t *testing.T) {
			keyPath := filepath.Join(t.TempDir(), name)

			identity1, err := LoadOrCreateIdentity(keyPath)
			if err != nil {
				t.Fatalf("Failed to create identity: %v", err)
			}

			identity2, err := LoadOrCreateIdentity(keyPath)
			if err != nil {
				t.Fatalf("Failed to load identity: %v", err)
			}

			if identity1.Address() != identity2.Address() {
				t.Errorf("Loaded identity differs from original. Got %s, want %s",
					identity2.Address(), identity1.Address())
			}
		})
	}
}

func TestEmptyFileIsReplaced(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "empty.pem")
	if err := os.WriteFile(keyPath, nil, 0600); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	id, err := LoadOrCreateIdentity(keyPath)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity: %v", err)
	}
	if id.PublicKey().IsZero() {
		t.Fatal("expected generated key")
	}
}

func TestSignAndVerify(t *testing.T) {
	dir := t.TempDir()

	identity, err := LoadOrCreateIdentity(filepath.Join(dir, "test_key.pem"))
	if err != nil {
		t.Fatalf("Failed to create identity: %v", err)
	}

	message := []byte("Hello, social graph!")

	signature, err := identity.Sign(message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if !identity.Verify(message, signature) {
		t.Error("Failed to verify signature with own public key")
	}

	otherIdentity, err := LoadOrCreateIdentity(filepath.Join(dir, "other_key.pem"))
	if err != nil {
		t.Fatalf("Failed to create other identity: %v", err)
	}

	if otherIdentity.Verify(message, signature) {
		t.Error("Incorrectly verified signature with wrong public key")
	}
}

func TestSignerMatchesOnlyOwnKey(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if got := id.Signer(id.PublicKey()); got == nil || !got.PublicKey().Equals(id.PublicKey()) {
		t.Fatal("expected signer for own key")
	}

	other, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	if id.Signer(other.PublicKey()) != nil {
		t.Fatal("expected nil signer for foreign key")
	}
}

func TestPermissions(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "secure_test_key.json")

	if _, err := LoadOrCreateIdentity(keyPath); err != nil {
		t.Fatalf("Failed to create identity: %v", err)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("Failed to stat key file: %v", err)
	}

	if info.Mode().Perm() != 0600 {
		t.Errorf("Key file has wrong permissions. Got %v, want %v",
			info.Mode().Perm(), 0600)
	}
}

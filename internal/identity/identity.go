// Package identity handles loading, generating, and persisting wallet
// keypairs (ED25519). It provides helpers to create and load key files,
// ensure secure permissions, and build an Identity used by the reference
// client commands to sign ledger transactions locally.
package identity

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// LoadOrCreateIdentity loads an existing identity or creates a new one
// from the given key path. This is the main entry point for identity management.
//
// Two on-disk formats are understood:
//   - ".json": the Solana CLI keygen format (a JSON array of 64 bytes)
//   - anything else: PEM with PKCS8 encoding
//
// Missing or empty files are replaced by a freshly generated keypair
// written with 0600 permissions.
func LoadOrCreateIdentity(keyPath string) (*Identity, error) {
	info, err := os.Stat(keyPath)
	if os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		privKey, err := generateAndSaveKeyPair(keyPath)
		if err != nil {
			return nil, err
		}
		return NewIdentity(privKey), nil
	}
	if err != nil {
		return nil, err
	}

	privKey, err := loadKeyPair(keyPath)
	if err != nil {
		return nil, err
	}
	return NewIdentity(privKey), nil
}

// Generate returns a fresh identity that is not persisted.
func Generate() (*Identity, error) {
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	return NewIdentity(priv), nil
}

func isKeygenFile(keyPath string) bool {
	return strings.EqualFold(filepath.Ext(keyPath), ".json")
}

func generateAndSaveKeyPair(keyPath string) (solana.PrivateKey, error) {
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}

	var data []byte
	if isKeygenFile(keyPath) {
		ints := make([]int, len(priv))
		for i, b := range priv {
			ints[i] = int(b)
		}
		data, err = json.Marshal(ints)
		if err != nil {
			return nil, err
		}
	} else {
		x509Encoded, err := x509.MarshalPKCS8PrivateKey(ed25519.PrivateKey(priv))
		if err != nil {
			return nil, err
		}
		data = pem.EncodeToMemory(&pem.Block{
			Type:  "PRIVATE KEY",
			Bytes: x509Encoded,
		})
	}

	if err := os.WriteFile(keyPath, data, 0600); err != nil {
		return nil, err
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(keyPath, 0600); err != nil {
		return nil, err
	}

	return priv, nil
}

func loadKeyPair(keyPath string) (solana.PrivateKey, error) {
	if isKeygenFile(keyPath) {
		priv, err := solana.PrivateKeyFromSolanaKeygenFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("read keygen file: %w", err)
		}
		return priv, nil
	}

	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	pemBlock, _ := pem.Decode(keyData)
	if pemBlock == nil {
		return nil, errors.New("failed to decode PEM block from key file")
	}

	genericKey, err := x509.ParsePKCS8PrivateKey(pemBlock.Bytes)
	if err != nil {
		return nil, err
	}

	privKey, ok := genericKey.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("key is not an ed25519 private key")
	}

	return solana.PrivateKey(privKey), nil
}

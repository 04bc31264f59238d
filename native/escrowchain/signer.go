package escrowchain

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignerKey wraps a decrypted secp256k1 key authorized to submit
// transactions on an agent's behalf. Agents' keys are decrypted by
// the caller using HOSTED_ENCRYPTION_KEY before reaching this
// package — the encryption primitive itself is an external
// collaborator, not part of the core.
type SignerKey struct {
	priv *ecdsa.PrivateKey
}

// ParseSignerKey parses a decrypted hex-encoded secp256k1 private key.
func ParseSignerKey(hexKey string) (*SignerKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("escrowchain: decode signer key: %w", err)
	}
	priv, err := gethcrypto.ToECDSA(decoded)
	if err != nil {
		return nil, fmt.Errorf("escrowchain: invalid signer key: %w", err)
	}
	return &SignerKey{priv: priv}, nil
}

// PlatformSignerFromEnv loads the reconciler's auto-release signer
// from PLATFORM_WALLET_KEY, the one key the spec allows to be sourced
// from the environment rather than per-agent storage (spec §6).
func PlatformSignerFromEnv() (*SignerKey, error) {
	material := strings.TrimSpace(os.Getenv("PLATFORM_WALLET_KEY"))
	if material == "" {
		return nil, fmt.Errorf("escrowchain: PLATFORM_WALLET_KEY not set")
	}
	return ParseSignerKey(material)
}

// Address returns the signer's on-chain address.
func (k *SignerKey) Address() common.Address {
	if k == nil || k.priv == nil {
		return common.Address{}
	}
	return gethcrypto.PubkeyToAddress(k.priv.PublicKey)
}

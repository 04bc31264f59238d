package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// MasterKeyFromEnv loads the at-rest encryption key for agent signer
// keys from HOSTED_ENCRYPTION_KEY, expected as 64 hex characters
// (32 bytes), mirroring how escrowchain.PlatformSignerFromEnv sources
// PLATFORM_WALLET_KEY from the environment.
func MasterKeyFromEnv() ([]byte, error) {
	material := strings.TrimSpace(os.Getenv("HOSTED_ENCRYPTION_KEY"))
	if material == "" {
		return nil, fmt.Errorf("crypto: HOSTED_ENCRYPTION_KEY not set")
	}
	key, err := hex.DecodeString(material)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode HOSTED_ENCRYPTION_KEY: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("crypto: HOSTED_ENCRYPTION_KEY must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// deriveAgentKey derives a per-agent AES-256 key from HOSTED_ENCRYPTION_KEY
// plus the agent id, so a leaked EncryptedSigner blob is useless without
// both the master key and the agent it belongs to.
func deriveAgentKey(masterKey []byte, agentID string) ([]byte, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("crypto: HOSTED_ENCRYPTION_KEY must be 32 bytes, got %d", len(masterKey))
	}
	mac := hmac.New(sha256.New, masterKey)
	_, _ = mac.Write([]byte("saltdig-agent-signer-key"))
	_, _ = mac.Write([]byte{0})
	_, _ = mac.Write([]byte(agentID))
	return mac.Sum(nil), nil
}

// EncryptAgentSigner seals a raw secp256k1 private key with AES-256-GCM
// under a key derived from masterKey and agentID, authenticating agentID
// as associated data so a sealed blob cannot be moved to another agent's
// record. The returned bytes (nonce prepended to ciphertext) are what
// Agent.EncryptedSigner stores.
func EncryptAgentSigner(masterKey []byte, agentID string, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("crypto: empty signer key")
	}
	key, err := deriveAgentKey(masterKey, agentID)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: read nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, []byte(agentID))
	return append(nonce, sealed...), nil
}

// DecryptAgentSigner reverses EncryptAgentSigner, returning the raw
// private key bytes sealed in opaque.
func DecryptAgentSigner(masterKey []byte, agentID string, opaque []byte) ([]byte, error) {
	key, err := deriveAgentKey(masterKey, agentID)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	if len(opaque) < aead.NonceSize() {
		return nil, fmt.Errorf("crypto: ciphertext too short")
	}
	nonce := opaque[:aead.NonceSize()]
	body := opaque[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, body, []byte(agentID))
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt: %w", err)
	}
	return plaintext, nil
}

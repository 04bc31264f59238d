package crypto

import (
	"bytes"
	"testing"
)

func testMasterKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestDeriveAgentKey(t *testing.T) {
	t.Run("valid 32-byte master key", func(t *testing.T) {
		key, err := deriveAgentKey(testMasterKey(), "agent-1")
		if err != nil {
			t.Fatalf("deriveAgentKey() error = %v", err)
		}
		if len(key) != 32 {
			t.Errorf("derived key length = %d, want 32", len(key))
		}
	})

	t.Run("different agents produce different keys", func(t *testing.T) {
		k1, _ := deriveAgentKey(testMasterKey(), "agent-1")
		k2, _ := deriveAgentKey(testMasterKey(), "agent-2")
		if bytes.Equal(k1, k2) {
			t.Error("different agent ids should derive different keys")
		}
	})

	t.Run("invalid master key length", func(t *testing.T) {
		if _, err := deriveAgentKey(make([]byte, 16), "agent-1"); err == nil {
			t.Error("expected error for invalid key length")
		}
	})
}

func TestEncryptDecryptAgentSigner(t *testing.T) {
	masterKey := testMasterKey()
	agentID := "agent-42"
	plaintext := []byte("deadbeefcafebabe")

	t.Run("round trip", func(t *testing.T) {
		sealed, err := EncryptAgentSigner(masterKey, agentID, plaintext)
		if err != nil {
			t.Fatalf("EncryptAgentSigner() error = %v", err)
		}
		got, err := DecryptAgentSigner(masterKey, agentID, sealed)
		if err != nil {
			t.Fatalf("DecryptAgentSigner() error = %v", err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Errorf("decrypted = %x, want %x", got, plaintext)
		}
	})

	t.Run("empty plaintext rejected", func(t *testing.T) {
		if _, err := EncryptAgentSigner(masterKey, agentID, nil); err == nil {
			t.Error("expected error for empty signer key")
		}
	})

	t.Run("wrong agent id fails decryption", func(t *testing.T) {
		sealed, _ := EncryptAgentSigner(masterKey, agentID, plaintext)
		if _, err := DecryptAgentSigner(masterKey, "someone-else", sealed); err == nil {
			t.Error("expected error for mismatched agent id")
		}
	})

	t.Run("wrong master key fails decryption", func(t *testing.T) {
		sealed, _ := EncryptAgentSigner(masterKey, agentID, plaintext)
		wrongKey := testMasterKey()
		wrongKey[0] ^= 0xFF
		if _, err := DecryptAgentSigner(wrongKey, agentID, sealed); err == nil {
			t.Error("expected error for wrong master key")
		}
	})

	t.Run("tampered ciphertext rejected", func(t *testing.T) {
		sealed, _ := EncryptAgentSigner(masterKey, agentID, plaintext)
		tampered := append([]byte(nil), sealed...)
		tampered[len(tampered)-1] ^= 0xFF
		if _, err := DecryptAgentSigner(masterKey, agentID, tampered); err == nil {
			t.Error("expected error for tampered ciphertext")
		}
	})

	t.Run("ciphertext too short", func(t *testing.T) {
		if _, err := DecryptAgentSigner(masterKey, agentID, []byte("short")); err == nil {
			t.Error("expected error for too-short ciphertext")
		}
	})
}

func TestEncryptAgentSignerUniqueness(t *testing.T) {
	masterKey := testMasterKey()
	agentID := "agent-7"
	plaintext := []byte("same key material")

	ct1, _ := EncryptAgentSigner(masterKey, agentID, plaintext)
	ct2, _ := EncryptAgentSigner(masterKey, agentID, plaintext)
	if bytes.Equal(ct1, ct2) {
		t.Error("encrypting the same key twice should produce different ciphertexts")
	}

	pt1, _ := DecryptAgentSigner(masterKey, agentID, ct1)
	pt2, _ := DecryptAgentSigner(masterKey, agentID, ct2)
	if !bytes.Equal(pt1, pt2) || !bytes.Equal(pt1, plaintext) {
		t.Error("both ciphertexts should decrypt to the same plaintext")
	}
}

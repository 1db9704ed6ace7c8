package cipher

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/containervault/containervault/internal/cryptocore/domain"
)

// ChaCha20Poly1305Cipher implements AEAD using ChaCha20-Poly1305. The
// additional authenticated data round-trips through the cipherdict's aad
// field rather than being fixed at nil.
type ChaCha20Poly1305Cipher struct{}

// Encrypt accepts a 32-byte key. AAD defaults to the literal "header" when
// the caller's plaintext carries no explicit AAD (the registry never receives
// one directly; callers that need a non-default AAD use EncryptWithAAD).
func (c *ChaCha20Poly1305Cipher) Encrypt(key, plaintext []byte) (*domain.Cipherdict, error) {
	return c.EncryptWithAAD(key, plaintext, domain.DefaultAAD)
}

// EncryptWithAAD is the full-contract entry point: any bytestring round-trips
// via the cipherdict's aad field.
func (c *ChaCha20Poly1305Cipher) EncryptWithAAD(key, plaintext, aad []byte) (*domain.Cipherdict, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create chacha20-poly1305 cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, aad)
	tagStart := len(sealed) - aead.Overhead()

	return &domain.Cipherdict{
		Type:       domain.ChaCha20Poly1305,
		Ciphertext: sealed[:tagStart],
		Tag:        sealed[tagStart:],
		Nonce:      nonce,
		AAD:        aad,
	}, nil
}

// Decrypt verifies the Poly1305 tag and fails with a decryption error on mismatch.
func (c *ChaCha20Poly1305Cipher) Decrypt(cd *domain.Cipherdict, key []byte) ([]byte, error) {
	if len(cd.Nonce) != chacha20poly1305.NonceSize || len(cd.Tag) != chacha20poly1305.Overhead {
		return nil, domain.ErrMalformedCipherdict
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create chacha20-poly1305 cipher: %w", err)
	}

	aad := cd.AAD
	if aad == nil {
		aad = domain.DefaultAAD
	}

	sealed := append(append([]byte{}, cd.Ciphertext...), cd.Tag...)
	plaintext, err := aead.Open(nil, cd.Nonce, sealed, aad)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

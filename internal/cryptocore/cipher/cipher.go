// Package cipher implements the Cipher Registry: uniform encrypt/decrypt across
// the symmetric (AES-CBC, AES-EAX, ChaCha20-Poly1305) and asymmetric (RSA-OAEP)
// algorithms named in the algorithm registry.
package cipher

import (
	"github.com/containervault/containervault/internal/cryptocore/domain"
)

// SymmetricCipher encrypts/decrypts with a raw symmetric key, returning or
// consuming a Cipherdict as specified per algorithm.
type SymmetricCipher interface {
	Encrypt(key, plaintext []byte) (*domain.Cipherdict, error)
	Decrypt(cd *domain.Cipherdict, key []byte) ([]byte, error)
}

// Registry dispatches symmetric cipher calls by algorithm tag.
type Registry struct {
	ciphers map[domain.SymmetricAlgorithm]SymmetricCipher
}

// NewRegistry builds a Registry with the three mandated symmetric algorithms wired.
func NewRegistry() *Registry {
	return &Registry{
		ciphers: map[domain.SymmetricAlgorithm]SymmetricCipher{
			domain.AESCBC:           &AESCBCCipher{},
			domain.AESEAX:           &AESEAXCipher{},
			domain.ChaCha20Poly1305: &ChaCha20Poly1305Cipher{},
		},
	}
}

// Encrypt dispatches to the cipher named by algo.
func (r *Registry) Encrypt(algo domain.SymmetricAlgorithm, key, plaintext []byte) (*domain.Cipherdict, error) {
	c, ok := r.ciphers[algo]
	if !ok {
		return nil, domain.ErrUnsupportedAlgorithm
	}
	return c.Encrypt(key, plaintext)
}

// Decrypt dispatches on cd.Type.
func (r *Registry) Decrypt(cd *domain.Cipherdict, key []byte) ([]byte, error) {
	c, ok := r.ciphers[cd.Type]
	if !ok {
		return nil, domain.ErrUnsupportedAlgorithm
	}
	return c.Decrypt(cd, key)
}

// pkcs7Pad pads data to a multiple of blockSize per PKCS#7.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// pkcs7Unpad strips PKCS#7 padding, rejecting any inconsistent padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, domain.ErrInvalidPadding
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, domain.ErrInvalidPadding
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, domain.ErrInvalidPadding
		}
	}
	return data[:len(data)-padLen], nil
}

package cipher

import (
	stdcipher "crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/containervault/containervault/internal/cryptocore/domain"
)

// AESCBCCipher implements AES in CBC mode with PKCS#7 padding. Unlike the
// AEAD ciphers this scheme carries no authentication tag; the caller is
// responsible for any integrity guarantee (the container engine supplies one
// via the stratum's signatures).
type AESCBCCipher struct{}

// Encrypt accepts a 16/24/32-byte key and pads plaintext to the AES block size
// before encrypting under a freshly drawn IV.
func (c *AESCBCCipher) Encrypt(key, plaintext []byte) (*domain.Cipherdict, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, domain.ErrInvalidKeySize
	}

	block, err := stdcipher.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create aes cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, stdcipher.BlockSize)

	iv := make([]byte, stdcipher.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return &domain.Cipherdict{
		Type:       domain.AESCBC,
		IV:         iv,
		Ciphertext: ciphertext,
	}, nil
}

// Decrypt reverses Encrypt, stripping PKCS#7 padding and surfacing any
// inconsistency as a decryption error.
func (c *AESCBCCipher) Decrypt(cd *domain.Cipherdict, key []byte) ([]byte, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, domain.ErrInvalidKeySize
	}
	if len(cd.IV) != stdcipher.BlockSize || len(cd.Ciphertext) == 0 || len(cd.Ciphertext)%stdcipher.BlockSize != 0 {
		return nil, domain.ErrMalformedCipherdict
	}

	block, err := stdcipher.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create aes cipher: %w", err)
	}

	padded := make([]byte, len(cd.Ciphertext))
	cipher.NewCBCDecrypter(block, cd.IV).CryptBlocks(padded, cd.Ciphertext)

	plaintext, err := pkcs7Unpad(padded, stdcipher.BlockSize)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	return plaintext, nil
}

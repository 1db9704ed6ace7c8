package cipher

import (
	stdcipher "crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/containervault/containervault/internal/cryptocore/domain"
)

// AESEAXCipher implements the EAX authenticated-encryption mode (Bellare,
// Rogaway, Wagner) on top of stdlib AES: CTR encryption combined with three
// OMAC (CMAC-style) tags over the nonce, the (empty) header, and the
// ciphertext. Both EAX and CMAC are built directly on crypto/aes +
// crypto/cipher.
type AESEAXCipher struct{}

const eaxNonceSize = 16

// Encrypt draws a fresh nonce, CTR-encrypts plaintext under it, and combines
// the three OMAC tags into the final authentication tag.
func (c *AESEAXCipher) Encrypt(key, plaintext []byte) (*domain.Cipherdict, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, domain.ErrInvalidKeySize
	}

	block, err := stdcipher.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create aes cipher: %w", err)
	}

	nonce := make([]byte, eaxNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext, tag := eaxSealOrOpenPrep(block, nonce, nil, plaintext, false)

	return &domain.Cipherdict{
		Type:       domain.AESEAX,
		Ciphertext: ciphertext,
		Tag:        tag,
		Nonce:      nonce,
	}, nil
}

// Decrypt recomputes the EAX tag over the supplied nonce/ciphertext and
// rejects on mismatch before releasing any plaintext.
func (c *AESEAXCipher) Decrypt(cd *domain.Cipherdict, key []byte) ([]byte, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, domain.ErrInvalidKeySize
	}
	if len(cd.Nonce) == 0 || len(cd.Tag) != stdcipher.BlockSize {
		return nil, domain.ErrMalformedCipherdict
	}

	block, err := stdcipher.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create aes cipher: %w", err)
	}

	plaintext, tag := eaxSealOrOpenPrep(block, cd.Nonce, nil, cd.Ciphertext, true)
	if !constantTimeEqual(tag, cd.Tag) {
		return nil, domain.ErrDecryptionFailed
	}
	return plaintext, nil
}

// eaxSealOrOpenPrep is symmetric: CTR is its own inverse, so the same routine
// both encrypts and decrypts while recomputing the three-way OMAC tag. The
// third OMAC always covers the ciphertext: out when sealing, data when
// opening.
func eaxSealOrOpenPrep(block cipher.Block, nonce, header, data []byte, open bool) (out, tag []byte) {
	n := omac(block, 0, nonce)
	h := omac(block, 1, header)

	ctr := cipher.NewCTR(block, n)
	out = make([]byte, len(data))
	ctr.XORKeyStream(out, data)

	ciphertext := out
	if open {
		ciphertext = data
	}
	c := omac(block, 2, ciphertext)

	tag = make([]byte, stdcipher.BlockSize)
	for i := range tag {
		tag[i] = n[i] ^ h[i] ^ c[i]
	}
	return out, tag
}

// omac computes OMAC_t(message) = CMAC_K(t || message), the EAX tweakable MAC.
func omac(block cipher.Block, t byte, message []byte) []byte {
	prefix := make([]byte, stdcipher.BlockSize)
	prefix[stdcipher.BlockSize-1] = t
	return cmac(block, append(prefix, message...))
}

// cmac implements NIST SP 800-38B CMAC over an AES block cipher.
func cmac(block cipher.Block, message []byte) []byte {
	bs := stdcipher.BlockSize

	k0 := make([]byte, bs)
	block.Encrypt(k0, k0)
	k1 := doubleGF128(k0)
	k2 := doubleGF128(k1)

	var padded []byte
	complete := len(message) != 0 && len(message)%bs == 0
	if complete {
		padded = message
	} else {
		padLen := bs - len(message)%bs
		padded = make([]byte, len(message)+padLen)
		copy(padded, message)
		padded[len(message)] = 0x80
	}

	subkey := k1
	if !complete {
		subkey = k2
	}
	lastBlockStart := len(padded) - bs
	for i := 0; i < bs; i++ {
		padded[lastBlockStart+i] ^= subkey[i]
	}

	mac := make([]byte, bs)
	for off := 0; off < len(padded); off += bs {
		for i := 0; i < bs; i++ {
			mac[i] ^= padded[off+i]
		}
		block.Encrypt(mac, mac)
	}
	return mac
}

// doubleGF128 multiplies a 128-bit block by x in GF(2^128) with the CMAC
// reduction polynomial, per SP 800-38B's subkey generation.
func doubleGF128(in []byte) []byte {
	out := make([]byte, len(in))
	var carry byte
	for i := len(in) - 1; i >= 0; i-- {
		cur := in[i]
		out[i] = (cur << 1) | carry
		carry = cur >> 7
	}
	if carry != 0 {
		out[len(out)-1] ^= 0x87
	}
	return out
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

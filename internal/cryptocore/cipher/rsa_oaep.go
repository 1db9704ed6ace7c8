package cipher

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"github.com/containervault/containervault/internal/cryptocore/domain"
)

// RSAOAEPCipher implements the asymmetric wrap algorithm: RSA-OAEP with
// SHA-256 and an empty label, chunking plaintext into RSAOAEPChunkSize-byte
// pieces so it tolerates messages far larger than one RSA block (used to wrap
// symmetric data-encryption keys, which always fit in one chunk, but the
// contract is general per the algorithm registry).
type RSAOAEPCipher struct{}

// Encrypt splits plaintext into ordered chunks and OAEP-encrypts each
// independently against pub, preserving chunk order in DigestList.
func (c *RSAOAEPCipher) Encrypt(pub *rsa.PublicKey, plaintext []byte) (*domain.Cipherdict, error) {
	var chunks [][]byte
	if len(plaintext) == 0 {
		chunks = [][]byte{{}}
	}
	for start := 0; start < len(plaintext); start += domain.RSAOAEPChunkSize {
		end := start + domain.RSAOAEPChunkSize
		if end > len(plaintext) {
			end = len(plaintext)
		}
		chunks = append(chunks, plaintext[start:end])
	}

	digestList := make([][]byte, 0, len(chunks))
	for _, chunk := range chunks {
		ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, chunk, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt rsa-oaep chunk: %w", err)
		}
		digestList = append(digestList, ct)
	}

	return &domain.Cipherdict{
		Type:       domain.SymmetricAlgorithm(domain.RSAOAEP),
		DigestList: digestList,
	}, nil
}

// Decrypt OAEP-decrypts each chunk in order and concatenates the result.
func (c *RSAOAEPCipher) Decrypt(cd *domain.Cipherdict, priv *rsa.PrivateKey) ([]byte, error) {
	if len(cd.DigestList) == 0 {
		return nil, domain.ErrMalformedCipherdict
	}

	out := []byte{}
	for _, ct := range cd.DigestList {
		pt, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ct, nil)
		if err != nil {
			return nil, domain.ErrDecryptionFailed
		}
		out = append(out, pt...)
	}
	return out, nil
}

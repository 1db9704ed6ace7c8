package cipher

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/containervault/containervault/internal/cryptocore/domain"
)

func TestRegistry_RoundTrip(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	plaintexts := [][]byte{
		{},
		[]byte("abc"),
		make([]byte, 10*1024),
	}

	for _, algo := range []domain.SymmetricAlgorithm{domain.AESCBC, domain.AESEAX, domain.ChaCha20Poly1305} {
		t.Run(string(algo), func(t *testing.T) {
			r := NewRegistry()
			for _, pt := range plaintexts {
				cd, err := r.Encrypt(algo, key, pt)
				require.NoError(t, err)
				got, err := r.Decrypt(cd, key)
				require.NoError(t, err)
				assert.Equal(t, pt, got)
			}
		})
	}
}

func TestRegistry_UnsupportedAlgorithm(t *testing.T) {
	r := NewRegistry()
	_, err := r.Encrypt("NOT_AN_ALGO", make([]byte, 32), []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedAlgorithm)
}

func TestAESEAX_TagTamperFails(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	c := &AESEAXCipher{}
	cd, err := c.Encrypt(key, []byte("secret payload"))
	require.NoError(t, err)

	cd.Tag[0] ^= 0xFF
	_, err = c.Decrypt(cd, key)
	assert.ErrorIs(t, err, domain.ErrDecryptionFailed)
}

func TestChaCha20Poly1305_CustomAAD(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	c := &ChaCha20Poly1305Cipher{}
	cd, err := c.EncryptWithAAD(key, []byte("payload"), []byte("custom-aad"))
	require.NoError(t, err)
	assert.Equal(t, []byte("custom-aad"), cd.AAD)

	pt, err := c.Decrypt(cd, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), pt)
}

func TestAESCBC_InvalidKeySize(t *testing.T) {
	c := &AESCBCCipher{}
	_, err := c.Encrypt(make([]byte, 10), []byte("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidKeySize)
}

func TestPKCS7PadUnpad(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 17, 31, 32} {
		data := make([]byte, n)
		padded := pkcs7Pad(data, 16)
		assert.Equal(t, 0, len(padded)%16)
		unpadded, err := pkcs7Unpad(padded, 16)
		require.NoError(t, err)
		assert.Equal(t, data, unpadded)
	}
}

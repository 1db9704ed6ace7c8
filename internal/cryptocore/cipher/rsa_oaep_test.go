package cipher

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSAOAEP_RoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	c := &RSAOAEPCipher{}

	for _, size := range []int{0, 1, 59, 60, 61, 150, 10 * 1024} {
		plaintext := make([]byte, size)
		_, err := rand.Read(plaintext)
		require.NoError(t, err)

		cd, err := c.Encrypt(&priv.PublicKey, plaintext)
		require.NoError(t, err)

		got, err := c.Decrypt(cd, priv)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestRSAOAEP_ChunkOrderPreserved(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	c := &RSAOAEPCipher{}
	plaintext := make([]byte, 200)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}

	cd, err := c.Encrypt(&priv.PublicKey, plaintext)
	require.NoError(t, err)
	assert.Equal(t, 4, len(cd.DigestList))

	got, err := c.Decrypt(cd, priv)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

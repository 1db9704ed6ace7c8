package signature

import (
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/containervault/containervault/internal/cryptocore/domain"
)

func generateDSAKey(t *testing.T) *dsa.PrivateKey {
	t.Helper()
	var params dsa.Parameters
	require.NoError(t, dsa.GenerateParameters(&params, rand.Reader, dsa.L2048N256))
	priv := &dsa.PrivateKey{PublicKey: dsa.PublicKey{Parameters: params}}
	require.NoError(t, dsa.GenerateKey(priv, rand.Reader))
	return priv
}

func TestRegistry_RoundTrip(t *testing.T) {
	r := NewRegistry()
	message := []byte("abc")

	t.Run("DSA_DSS", func(t *testing.T) {
		priv := generateDSAKey(t)
		sig, err := r.Sign(domain.DSADSS, priv, message)
		require.NoError(t, err)
		assert.NoError(t, r.Verify(domain.DSADSS, &priv.PublicKey, message, sig))
	})

	t.Run("RSA_PSS", func(t *testing.T) {
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		sig, err := r.Sign(domain.RSAPSS, priv, message)
		require.NoError(t, err)
		assert.NoError(t, r.Verify(domain.RSAPSS, &priv.PublicKey, message, sig))
	})

	t.Run("ECC_DSS", func(t *testing.T) {
		priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		require.NoError(t, err)
		sig, err := r.Sign(domain.ECCDSS, priv, message)
		require.NoError(t, err)
		assert.NoError(t, r.Verify(domain.ECCDSS, &priv.PublicKey, message, sig))
	})
}

func TestECCDSS_Deterministic(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	s := &ECCDSSSigner{}
	hash := []byte("0123456789abcdef0123456789abcdef")
	r1, s1, err := deterministicSign(priv.Curve, priv.D, hash)
	require.NoError(t, err)
	r2, s2, err := deterministicSign(priv.Curve, priv.D, hash)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.Equal(t, s1, s2)
	_ = s
}

func TestSignatureTamperFailsVerification(t *testing.T) {
	r := NewRegistry()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	sig, err := r.Sign(domain.RSAPSS, priv, []byte("abc"))
	require.NoError(t, err)

	sig.Digest[0] ^= 0xFF
	err = r.Verify(domain.RSAPSS, &priv.PublicKey, []byte("abc"), sig)
	assert.ErrorIs(t, err, domain.ErrSignatureVerificationFailed)
}

func TestRegistry_UnsupportedAlgorithm(t *testing.T) {
	r := NewRegistry()
	_, err := r.Sign("NOT_AN_ALGO", nil, []byte("x"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedAlgorithm)
}

package signature

import (
	"crypto/dsa"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"time"

	"github.com/containervault/containervault/internal/cryptocore/domain"
)

// DSADSSSigner implements DSA_DSS: SHA-256 digest, classic (non-deterministic)
// DSS signing via crypto/dsa.
type DSADSSSigner struct{}

// encodeDSASignature packs a DSA (r, s) pair into one fixed-width blob sized
// by the modulus' Q, so Digest round-trips as one opaque byte string.
func encodeDSASignature(r, s *big.Int, qBytes int) []byte {
	out := make([]byte, 2*qBytes)
	r.FillBytes(out[:qBytes])
	s.FillBytes(out[qBytes:])
	return out
}

func decodeDSASignature(digest []byte) (r, s *big.Int, ok bool) {
	if len(digest) == 0 || len(digest)%2 != 0 {
		return nil, nil, false
	}
	half := len(digest) / 2
	return new(big.Int).SetBytes(digest[:half]), new(big.Int).SetBytes(digest[half:]), true
}

// Sign hashes message||timestamp with SHA-256 and signs the digest with the
// supplied *dsa.PrivateKey.
func (s *DSADSSSigner) Sign(privateKey any, message []byte) (*domain.Signature, error) {
	priv, ok := privateKey.(*dsa.PrivateKey)
	if !ok {
		return nil, domain.ErrUnknownKeyType
	}

	timestamp := domain.NowISO8601(time.Now())
	hash := sha256.Sum256(messageAndTimestamp(message, timestamp))

	r, sVal, err := dsa.Sign(rand.Reader, priv, hash[:])
	if err != nil {
		return nil, domain.ErrSignatureVerificationFailed
	}

	qBytes := (priv.Q.BitLen() + 7) / 8
	return &domain.Signature{
		Digest:       encodeDSASignature(r, sVal, qBytes),
		TimestampUTC: timestamp,
	}, nil
}

// Verify recomputes the hash with the returned timestamp and checks (r, s)
// against the supplied *dsa.PublicKey.
func (s *DSADSSSigner) Verify(publicKey any, message []byte, sig *domain.Signature) error {
	pub, ok := publicKey.(*dsa.PublicKey)
	if !ok {
		return domain.ErrUnknownKeyType
	}

	r, sVal, ok := decodeDSASignature(sig.Digest)
	if !ok {
		return domain.ErrSignatureVerificationFailed
	}

	hash := sha256.Sum256(messageAndTimestamp(message, sig.TimestampUTC))
	if !dsa.Verify(pub, hash[:], r, sVal) {
		return domain.ErrSignatureVerificationFailed
	}
	return nil
}

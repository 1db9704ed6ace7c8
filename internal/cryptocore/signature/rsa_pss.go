package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"time"

	"github.com/containervault/containervault/internal/cryptocore/domain"
)

// RSAPSSSigner implements RSA_PSS: SHA-256 digest, MGF1-SHA-256 mask.
type RSAPSSSigner struct{}

var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}

func (s *RSAPSSSigner) Sign(privateKey any, message []byte) (*domain.Signature, error) {
	priv, ok := privateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, domain.ErrUnknownKeyType
	}

	timestamp := domain.NowISO8601(time.Now())
	hash := sha256.Sum256(messageAndTimestamp(message, timestamp))

	digest, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, hash[:], pssOptions)
	if err != nil {
		return nil, domain.ErrSignatureVerificationFailed
	}

	return &domain.Signature{Digest: digest, TimestampUTC: timestamp}, nil
}

func (s *RSAPSSSigner) Verify(publicKey any, message []byte, sig *domain.Signature) error {
	pub, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return domain.ErrUnknownKeyType
	}

	hash := sha256.Sum256(messageAndTimestamp(message, sig.TimestampUTC))
	if err := rsa.VerifyPSS(pub, crypto.SHA256, hash[:], sig.Digest, pssOptions); err != nil {
		return domain.ErrSignatureVerificationFailed
	}
	return nil
}

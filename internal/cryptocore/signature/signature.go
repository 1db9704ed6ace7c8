// Package signature implements the Signature Registry: uniform sign/verify
// across DSA_DSS, RSA_PSS, and ECC_DSS.
package signature

import (
	"github.com/containervault/containervault/internal/cryptocore/domain"
)

// messageAndTimestamp is the byte sequence every algorithm actually hashes:
// the caller's message concatenated with the ISO-8601 timestamp folded in at
// sign time and echoed back at verify time.
func messageAndTimestamp(message []byte, timestampUTC string) []byte {
	out := make([]byte, 0, len(message)+len(timestampUTC))
	out = append(out, message...)
	out = append(out, []byte(timestampUTC)...)
	return out
}

// Signer is implemented by each concrete algorithm (DSA, RSA-PSS, ECC) with a
// private-key type specific to that algorithm; the Registry type-asserts.
type Signer interface {
	Sign(privateKey any, message []byte) (*domain.Signature, error)
	Verify(publicKey any, message []byte, sig *domain.Signature) error
}

// Registry dispatches sign/verify calls by algorithm tag.
type Registry struct {
	signers map[domain.SignatureAlgorithm]Signer
}

// NewRegistry builds a Registry with the three mandated signature algorithms wired.
func NewRegistry() *Registry {
	return &Registry{
		signers: map[domain.SignatureAlgorithm]Signer{
			domain.DSADSS: &DSADSSSigner{},
			domain.RSAPSS: &RSAPSSSigner{},
			domain.ECCDSS: &ECCDSSSigner{},
		},
	}
}

// Sign dispatches to the signer named by algo.
func (r *Registry) Sign(algo domain.SignatureAlgorithm, privateKey any, message []byte) (*domain.Signature, error) {
	s, ok := r.signers[algo]
	if !ok {
		return nil, domain.ErrUnsupportedAlgorithm
	}
	return s.Sign(privateKey, message)
}

// Verify dispatches to the signer named by algo.
func (r *Registry) Verify(algo domain.SignatureAlgorithm, publicKey any, message []byte, sig *domain.Signature) error {
	s, ok := r.signers[algo]
	if !ok {
		return domain.ErrUnsupportedAlgorithm
	}
	return s.Verify(publicKey, message, sig)
}

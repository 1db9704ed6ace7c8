package domain

import (
	"time"

	"github.com/google/uuid"
)

// KeychainUID is the 128-bit identifier selecting a set of keys across
// algorithms: the primary key into the Keystore together with an algorithm
// tag.
type KeychainUID = uuid.UUID

// NewKeychainUID mints a fresh random identifier, used by the Container
// Engine when the caller supplies none.
func NewKeychainUID() KeychainUID {
	return uuid.New()
}

// Cipherdict is the algorithm-tagged byte bag produced by one cipher invocation.
// Which fields are populated depends on Type; see the per-algorithm contracts in
// the cipher package.
type Cipherdict struct {
	Type       SymmetricAlgorithm
	AsymType   AsymmetricAlgorithm
	IV         []byte
	Ciphertext []byte
	Tag        []byte
	Nonce      []byte
	AAD        []byte
	// DigestList holds RSA-OAEP's ordered chunk ciphertexts; empty for symmetric algos.
	DigestList [][]byte
}

// Signature is the result of one Signature Registry sign() call: the raw signature
// bytes plus the ISO-8601 timestamp that was folded into the signed message.
type Signature struct {
	Digest       []byte
	TimestampUTC string
}

// Keypair is a pair of serialized asymmetric key halves. PrivateKeyPEM may be
// encrypted with a caller-supplied passphrase; PublicKeyPEM is always clear.
type Keypair struct {
	Algorithm     SignatureAlgorithmOrAsymmetric
	PublicKeyPEM  []byte
	PrivateKeyPEM []byte
	// Passphrase marks whether PrivateKeyPEM is passphrase-protected. It is never
	// itself persisted alongside the keypair.
	Passphrase bool
}

// SignatureAlgorithmOrAsymmetric lets a Keypair be tagged with either a signature
// algorithm or the asymmetric wrap algorithm, since both produce PEM-serialized
// keypairs through the same Key Generator.
type SignatureAlgorithmOrAsymmetric = string

// NowISO8601 is the timestamp format folded into signed messages.
func NowISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

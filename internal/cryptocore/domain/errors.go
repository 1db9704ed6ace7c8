package domain

import (
	"github.com/containervault/containervault/internal/errors"
)

// Cryptographic operation errors, grouped per the error-kind taxonomy:
// ConfigurationError, DecryptionError, SignatureVerificationError, ValidationError.
var (
	// ErrUnsupportedAlgorithm indicates the requested algorithm tag is not in the closed set.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates the cipher key is not the size the algorithm mandates.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrInvalidCurve indicates an unknown ECC curve name.
	ErrInvalidCurve = errors.Wrap(errors.ErrInvalidInput, "invalid curve")

	// ErrInvalidKeyLength indicates an unsupported RSA/DSA modulus length.
	ErrInvalidKeyLength = errors.Wrap(errors.ErrInvalidInput, "invalid key length")

	// ErrDecryptionFailed indicates an AEAD tag mismatch, RSA decryption failure, or
	// malformed cipherdict.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrMalformedCipherdict indicates a cipherdict is missing a field its algorithm requires.
	ErrMalformedCipherdict = errors.Wrap(errors.ErrInvalidInput, "malformed cipherdict")

	// ErrMessageTooLong indicates a message exceeds the signature algorithm's input bound.
	ErrMessageTooLong = errors.Wrap(errors.ErrInvalidInput, "message too long for signature algorithm")

	// ErrSignatureVerificationFailed indicates a signature does not verify against the
	// recomputed message+timestamp hash under the claimed public key.
	ErrSignatureVerificationFailed = errors.Wrap(errors.ErrInvalidInput, "signature verification failed")

	// ErrUnknownKeyType indicates a PEM-loaded key does not match the expected concrete type.
	ErrUnknownKeyType = errors.Wrap(errors.ErrInvalidInput, "unexpected key type")

	// ErrInvalidPassphrase indicates a passphrase-protected private key could not be
	// decrypted with any candidate passphrase.
	ErrInvalidPassphrase = errors.Wrap(errors.ErrInvalidInput, "invalid passphrase")

	// ErrInconsistentShares indicates Shamir shares of differing length or duplicate index.
	ErrInconsistentShares = errors.Wrap(errors.ErrInvalidInput, "inconsistent shamir shares")

	// ErrInvalidShareParameters indicates a Shamir split was requested with a
	// threshold/count pair outside 1 <= k < n.
	ErrInvalidShareParameters = errors.Wrap(errors.ErrInvalidInput, "invalid share parameters")

	// ErrInvalidPadding indicates PKCS#7 padding failed to strip cleanly.
	ErrInvalidPadding = errors.Wrap(errors.ErrInvalidInput, "invalid padding")
)

package domain

import (
	"github.com/containervault/containervault/internal/errors"
)

// Keystore error kinds.
var (
	// ErrKeyAlreadyExists indicates set_keypair was called for an
	// (identity, algorithm) pair that already has a bound keypair.
	ErrKeyAlreadyExists = errors.Wrap(errors.ErrConflict, "keypair already exists for identity and algorithm")

	// ErrKeyDoesNotExist indicates a Keystore lookup missed and
	// materialization was not permitted.
	ErrKeyDoesNotExist = errors.Wrap(errors.ErrNotFound, "keypair does not exist")

	// ErrInvalidPassphrase indicates none of the supplied passphrase
	// candidates decrypted a passphrase-protected private key.
	ErrInvalidPassphrase = errors.Wrap(errors.ErrInvalidInput, "invalid passphrase")
)

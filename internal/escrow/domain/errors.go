package domain

import (
	"github.com/containervault/containervault/internal/errors"
)

// Escrow error kinds.
var (
	// ErrEmptyIdentifierList indicates RequestDecryptionAuthorization was
	// called with no keypair identifiers.
	ErrEmptyIdentifierList = errors.Wrap(errors.ErrInvalidInput, "keypair identifier list must not be empty")

	// ErrKeyMustExist indicates a Read-Write escrow's FetchPublicKey was called
	// with must_exist=true against an identity with no bound key. A Read-Only
	// escrow returns the keystore's ErrKeyDoesNotExist instead.
	ErrKeyMustExist = errors.Wrap(errors.ErrNotFound, "keypair does not exist and may not be materialized")
)

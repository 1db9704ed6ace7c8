package domain

import (
	apperrors "github.com/containervault/containervault/internal/errors"
)

var (
	// ErrUnknownContainerFormat indicates container_format did not match the
	// engine's supported version.
	ErrUnknownContainerFormat = apperrors.Wrap(apperrors.ErrInvalidInput, "Unknown container format")

	// ErrInvalidEscrowDescriptor indicates a descriptor was neither the local
	// placeholder nor a well-formed {url: ...} remote descriptor.
	ErrInvalidEscrowDescriptor = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid escrow descriptor")

	// ErrSignatureVerificationFailed indicates a stratum's attached
	// signature did not verify against its ciphertext.
	ErrSignatureVerificationFailed = apperrors.Wrap(apperrors.ErrForbidden, "signature verification failed")
)

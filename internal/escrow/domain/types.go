// Package domain defines the shapes shared by the Escrow API's Read-Write,
// Read-Only, and remote-proxy implementations.
package domain

import (
	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
)

// Authorization status a single keypair identifier is classified into by
// RequestDecryptionAuthorization.
const (
	StatusAccepted          = "accepted"
	StatusMissingPrivateKey = "missing_private_key"
	StatusMissingPassphrase = "missing_passphrase"
)

// KeypairIdentifier names one (identity, algorithm) pair to check during an
// authorization request.
type KeypairIdentifier struct {
	KeychainUID cryptoDomain.KeychainUID
	Algorithm   string
}

// KeypairStatus is the classification result for one requested identifier.
type KeypairStatus struct {
	Identifier KeypairIdentifier
	Status     string
}

// AuthorizationResponse is the result of RequestDecryptionAuthorization.
type AuthorizationResponse struct {
	ResponseMessage string
	HasErrors       bool
	KeypairStatuses []KeypairStatus
}

// Package escrow implements the policy layer between the container engine
// and the keystore, in read-write and read-only variants.
package escrow

import (
	"context"

	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	escrowDomain "github.com/containervault/containervault/internal/escrow/domain"
)

// LocalEscrowPlaceholder is the sentinel descriptor value the Container
// Engine's _get_proxy_for_escrow resolves to the in-process escrow bound to
// the local keystore, instead of a remote JSON-RPC proxy.
const LocalEscrowPlaceholder = "LOCAL_ESCROW_PLACEHOLDER"

// Escrow is the capability interface exposed identically by the local
// Read-Write/Read-Only implementations and the remote JSON-RPC proxy.
type Escrow interface {
	// FetchPublicKey returns the PEM-encoded public key for (identity, algo).
	// When mustExist is false and the implementation permits materialization,
	// a missing key is lazily created (promoted from the free pool, or
	// generated synchronously) before being returned.
	FetchPublicKey(ctx context.Context, identity cryptoDomain.KeychainUID, algo string, mustExist bool) ([]byte, error)

	// GetMessageSignature signs message under the private key for
	// (identity, signatureAlgo), lazily materializing it when permitted.
	GetMessageSignature(
		ctx context.Context,
		identity cryptoDomain.KeychainUID,
		message []byte,
		signatureAlgo string,
	) (*cryptoDomain.Signature, error)

	// DecryptWithPrivateKey unwraps cd under the private key for
	// (identity, encryptionAlgo). Never materializes a missing keypair.
	DecryptWithPrivateKey(
		ctx context.Context,
		identity cryptoDomain.KeychainUID,
		encryptionAlgo string,
		cd *cryptoDomain.Cipherdict,
		passphrases [][]byte,
	) ([]byte, error)

	// RequestDecryptionAuthorization classifies each identifier's
	// availability for decryption without performing any decryption.
	RequestDecryptionAuthorization(
		ctx context.Context,
		identifiers []escrowDomain.KeypairIdentifier,
		requestMessage string,
		passphrases [][]byte,
	) (*escrowDomain.AuthorizationResponse, error)
}

// KeygenFunc generates a fresh asymmetric keypair for algo, used both by an
// escrow's synchronous materialization path and by the Free-Keys Worker.
type KeygenFunc func(algo string) (*cryptoDomain.Keypair, error)

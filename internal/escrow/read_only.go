package escrow

import (
	"context"

	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	"github.com/containervault/containervault/internal/cryptocore/keygen"
	escrowDomain "github.com/containervault/containervault/internal/escrow/domain"
)

// ReadOnlyEscrow holds only public material on behalf of a caller: it never
// materializes a missing keypair, failing fetch/sign instead.
type ReadOnlyEscrow struct {
	*core
}

// NewReadOnlyEscrow builds a Read-Only escrow over ks.
func NewReadOnlyEscrow(ks boundKeystore) *ReadOnlyEscrow {
	return &ReadOnlyEscrow{core: newCore(ks)}
}

var _ Escrow = (*ReadOnlyEscrow)(nil)

// FetchPublicKey always fails on a miss, regardless of mustExist.
func (e *ReadOnlyEscrow) FetchPublicKey(
	ctx context.Context,
	identity cryptoDomain.KeychainUID,
	algo string,
	mustExist bool,
) ([]byte, error) {
	return e.keystore.GetPublicKey(ctx, identity, algo)
}

// GetMessageSignature fails if the signing keypair is absent.
func (e *ReadOnlyEscrow) GetMessageSignature(
	ctx context.Context,
	identity cryptoDomain.KeychainUID,
	message []byte,
	signatureAlgo string,
) (*cryptoDomain.Signature, error) {
	privPEM, err := e.keystore.GetPrivateKey(ctx, identity, signatureAlgo, nil)
	if err != nil {
		return nil, err
	}

	privKey, err := keygen.LoadAsymmetricKeyFromPEM(privPEM, signatureAlgo, nil)
	if err != nil {
		return nil, err
	}

	return e.signatures.Sign(cryptoDomain.SignatureAlgorithm(signatureAlgo), privKey, message)
}

// DecryptWithPrivateKey never materializes; delegates to the shared core.
func (e *ReadOnlyEscrow) DecryptWithPrivateKey(
	ctx context.Context,
	identity cryptoDomain.KeychainUID,
	encryptionAlgo string,
	cd *cryptoDomain.Cipherdict,
	passphrases [][]byte,
) ([]byte, error) {
	return e.core.decryptWithPrivateKey(ctx, identity, encryptionAlgo, cd, passphrases)
}

// RequestDecryptionAuthorization delegates to the shared core.
func (e *ReadOnlyEscrow) RequestDecryptionAuthorization(
	ctx context.Context,
	identifiers []escrowDomain.KeypairIdentifier,
	requestMessage string,
	passphrases [][]byte,
) (*escrowDomain.AuthorizationResponse, error) {
	return e.core.requestDecryptionAuthorization(ctx, identifiers, passphrases)
}

package escrow

import (
	"context"

	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	"github.com/containervault/containervault/internal/cryptocore/keygen"
	apperrors "github.com/containervault/containervault/internal/errors"
	escrowDomain "github.com/containervault/containervault/internal/escrow/domain"
)

// ReadWriteEscrow has full access to a keystore it owns: missing keys are
// lazily materialized (promoted from the free pool, or generated
// synchronously) on fetch/sign.
type ReadWriteEscrow struct {
	*core
	keygen KeygenFunc
}

// NewReadWriteEscrow builds a Read-Write escrow over ks, using keygenFunc to
// generate fresh keypairs when the free pool is empty.
func NewReadWriteEscrow(ks boundKeystore, keygenFunc KeygenFunc) *ReadWriteEscrow {
	return &ReadWriteEscrow{
		core:   newCore(ks),
		keygen: keygenFunc,
	}
}

var _ Escrow = (*ReadWriteEscrow)(nil)

// FetchPublicKey returns the public key for (identity, algo), materializing
// one when absent and mustExist is false: first by promoting a free
// keypair, falling back to synchronous generation.
func (e *ReadWriteEscrow) FetchPublicKey(
	ctx context.Context,
	identity cryptoDomain.KeychainUID,
	algo string,
	mustExist bool,
) ([]byte, error) {
	pub, err := e.keystore.GetPublicKey(ctx, identity, algo)
	if err == nil {
		return pub, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if mustExist {
		return nil, escrowDomain.ErrKeyMustExist
	}

	attached, err := e.keystore.AttachFreeKeypairToUUID(ctx, identity, algo)
	if err != nil {
		return nil, err
	}
	if attached {
		return e.keystore.GetPublicKey(ctx, identity, algo)
	}

	kp, err := e.keygen(algo)
	if err != nil {
		return nil, err
	}
	if err := e.keystore.SetKeypair(ctx, identity, algo, kp); err != nil {
		if apperrors.Is(err, apperrors.ErrConflict) {
			// Lost a race with a concurrent materialization; use the winner's key.
			return e.keystore.GetPublicKey(ctx, identity, algo)
		}
		return nil, err
	}
	return kp.PublicKeyPEM, nil
}

// GetMessageSignature signs message under the private key for
// (identity, signatureAlgo), materializing the keypair first if absent.
func (e *ReadWriteEscrow) GetMessageSignature(
	ctx context.Context,
	identity cryptoDomain.KeychainUID,
	message []byte,
	signatureAlgo string,
) (*cryptoDomain.Signature, error) {
	if _, err := e.FetchPublicKey(ctx, identity, signatureAlgo, false); err != nil {
		return nil, err
	}

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
func (e *ReadWriteEscrow) DecryptWithPrivateKey(
	ctx context.Context,
	identity cryptoDomain.KeychainUID,
	encryptionAlgo string,
	cd *cryptoDomain.Cipherdict,
	passphrases [][]byte,
) ([]byte, error) {
	return e.core.decryptWithPrivateKey(ctx, identity, encryptionAlgo, cd, passphrases)
}

// RequestDecryptionAuthorization delegates to the shared core.
func (e *ReadWriteEscrow) RequestDecryptionAuthorization(
	ctx context.Context,
	identifiers []escrowDomain.KeypairIdentifier,
	requestMessage string,
	passphrases [][]byte,
) (*escrowDomain.AuthorizationResponse, error) {
	return e.core.requestDecryptionAuthorization(ctx, identifiers, passphrases)
}

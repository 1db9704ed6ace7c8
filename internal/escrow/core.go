package escrow

import (
	"context"
	"crypto/rsa"

	"github.com/containervault/containervault/internal/cryptocore/cipher"
	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	"github.com/containervault/containervault/internal/cryptocore/keygen"
	"github.com/containervault/containervault/internal/cryptocore/signature"
	apperrors "github.com/containervault/containervault/internal/errors"
	escrowDomain "github.com/containervault/containervault/internal/escrow/domain"
	"github.com/containervault/containervault/internal/keystore"
	keystoreDomain "github.com/containervault/containervault/internal/keystore/domain"
)

// boundKeystore is the subset of *keystore.Keystore the Escrow API needs.
// Defined as an interface so tests can stub it without a database.
type boundKeystore interface {
	SetKeypair(ctx context.Context, identity cryptoDomain.KeychainUID, algorithm string, kp *cryptoDomain.Keypair) error
	GetPublicKey(ctx context.Context, identity cryptoDomain.KeychainUID, algorithm string) ([]byte, error)
	GetPrivateKey(ctx context.Context, identity cryptoDomain.KeychainUID, algorithm string, passphrases [][]byte) ([]byte, error)
	AttachFreeKeypairToUUID(ctx context.Context, identity cryptoDomain.KeychainUID, algorithm string) (bool, error)
}

var _ boundKeystore = (*keystore.Keystore)(nil)

// core holds the machinery shared by the Read-Write and Read-Only escrow
// implementations: the decrypt path and the authorization check never
// materialize keys, so their behavior does not vary by mode.
type core struct {
	keystore   boundKeystore
	ciphers    *cipher.Registry
	signatures *signature.Registry
}

func newCore(ks boundKeystore) *core {
	return &core{
		keystore:   ks,
		ciphers:    cipher.NewRegistry(),
		signatures: signature.NewRegistry(),
	}
}

// decryptWithPrivateKey unwraps cd under the private key bound to
// (identity, encryptionAlgo). Only RSA_OAEP has a private-key decryption
// path in the registry; any other tag is unsupported.
func (c *core) decryptWithPrivateKey(
	ctx context.Context,
	identity cryptoDomain.KeychainUID,
	encryptionAlgo string,
	cd *cryptoDomain.Cipherdict,
	passphrases [][]byte,
) ([]byte, error) {
	if encryptionAlgo != string(cryptoDomain.RSAOAEP) {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}

	privPEM, err := c.keystore.GetPrivateKey(ctx, identity, encryptionAlgo, passphrases)
	if err != nil {
		return nil, err
	}

	key, err := keygen.LoadAsymmetricKeyFromPEM(privPEM, encryptionAlgo, nil)
	if err != nil {
		return nil, err
	}
	rsaPriv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, cryptoDomain.ErrUnknownKeyType
	}

	rsaCipher := &cipher.RSAOAEPCipher{}
	return rsaCipher.Decrypt(cd, rsaPriv)
}

// requestDecryptionAuthorization classifies each identifier without
// performing any decryption or materialization; identical for both escrow
// variants.
func (c *core) requestDecryptionAuthorization(
	ctx context.Context,
	identifiers []escrowDomain.KeypairIdentifier,
	passphrases [][]byte,
) (*escrowDomain.AuthorizationResponse, error) {
	if len(identifiers) == 0 {
		return nil, escrowDomain.ErrEmptyIdentifierList
	}

	statuses := make([]escrowDomain.KeypairStatus, 0, len(identifiers))
	allAccepted := true

	for _, id := range identifiers {
		_, err := c.keystore.GetPrivateKey(ctx, id.KeychainUID, id.Algorithm, passphrases)

		status := escrowDomain.StatusAccepted
		switch {
		case err == nil:
			status = escrowDomain.StatusAccepted
		case apperrors.Is(err, keystoreDomain.ErrInvalidPassphrase):
			status = escrowDomain.StatusMissingPassphrase
		default:
			status = escrowDomain.StatusMissingPrivateKey
		}

		if status != escrowDomain.StatusAccepted {
			allAccepted = false
		}

		statuses = append(statuses, escrowDomain.KeypairStatus{Identifier: id, Status: status})
	}

	responseMessage := "denied"
	if allAccepted {
		responseMessage = "accepted"
	}

	return &escrowDomain.AuthorizationResponse{
		ResponseMessage: responseMessage,
		HasErrors:       !allAccepted,
		KeypairStatuses: statuses,
	}, nil
}

package escrow

import (
	"context"
	"time"

	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	escrowDomain "github.com/containervault/containervault/internal/escrow/domain"
	"github.com/containervault/containervault/internal/metrics"
)

// escrowWithMetrics decorates Escrow with metrics instrumentation, adapted
// from secretUseCaseWithMetrics: same start/status/RecordOperation/
// RecordDuration shape, generalized to the escrow's four methods.
type escrowWithMetrics struct {
	next    Escrow
	metrics metrics.BusinessMetrics
}

// NewEscrowWithMetrics wraps an Escrow with metrics recording.
func NewEscrowWithMetrics(next Escrow, m metrics.BusinessMetrics) Escrow {
	return &escrowWithMetrics{next: next, metrics: m}
}

func (e *escrowWithMetrics) FetchPublicKey(
	ctx context.Context,
	identity cryptoDomain.KeychainUID,
	algo string,
	mustExist bool,
) ([]byte, error) {
	start := time.Now()
	pub, err := e.next.FetchPublicKey(ctx, identity, algo, mustExist)

	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordOperation(ctx, "escrow", "fetch_public_key", status)
	e.metrics.RecordDuration(ctx, "escrow", "fetch_public_key", time.Since(start), status)

	return pub, err
}

func (e *escrowWithMetrics) GetMessageSignature(
	ctx context.Context,
	identity cryptoDomain.KeychainUID,
	message []byte,
	signatureAlgo string,
) (*cryptoDomain.Signature, error) {
	start := time.Now()
	sig, err := e.next.GetMessageSignature(ctx, identity, message, signatureAlgo)

	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordOperation(ctx, "escrow", "get_message_signature", status)
	e.metrics.RecordDuration(ctx, "escrow", "get_message_signature", time.Since(start), status)

	return sig, err
}

func (e *escrowWithMetrics) DecryptWithPrivateKey(
	ctx context.Context,
	identity cryptoDomain.KeychainUID,
	encryptionAlgo string,
	cd *cryptoDomain.Cipherdict,
	passphrases [][]byte,
) ([]byte, error) {
	start := time.Now()
	plaintext, err := e.next.DecryptWithPrivateKey(ctx, identity, encryptionAlgo, cd, passphrases)

	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordOperation(ctx, "escrow", "decrypt_with_private_key", status)
	e.metrics.RecordDuration(ctx, "escrow", "decrypt_with_private_key", time.Since(start), status)

	return plaintext, err
}

func (e *escrowWithMetrics) RequestDecryptionAuthorization(
	ctx context.Context,
	identifiers []escrowDomain.KeypairIdentifier,
	requestMessage string,
	passphrases [][]byte,
) (*escrowDomain.AuthorizationResponse, error) {
	start := time.Now()
	resp, err := e.next.RequestDecryptionAuthorization(ctx, identifiers, requestMessage, passphrases)

	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordOperation(ctx, "escrow", "request_decryption_authorization", status)
	e.metrics.RecordDuration(ctx, "escrow", "request_decryption_authorization", time.Since(start), status)

	return resp, err
}

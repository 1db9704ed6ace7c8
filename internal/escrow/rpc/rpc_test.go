package rpc_test

import (
	"context"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	"github.com/containervault/containervault/internal/cryptocore/keygen"
	"github.com/containervault/containervault/internal/cryptocore/signature"
	"github.com/containervault/containervault/internal/escrow"
	escrowDomain "github.com/containervault/containervault/internal/escrow/domain"
	"github.com/containervault/containervault/internal/escrow/rpc"
)

// stubEscrow is a minimal escrow.Escrow double, just enough to exercise the
// RPC server/client boundary without dragging in the keystore's SQL
// plumbing.
type stubEscrow struct {
	keypair *cryptoDomain.Keypair
}

var _ escrow.Escrow = (*stubEscrow)(nil)

func (s *stubEscrow) FetchPublicKey(ctx context.Context, id cryptoDomain.KeychainUID, algo string, mustExist bool) ([]byte, error) {
	return s.keypair.PublicKeyPEM, nil
}

func (s *stubEscrow) GetMessageSignature(ctx context.Context, id cryptoDomain.KeychainUID, message []byte, algo string) (*cryptoDomain.Signature, error) {
	privKey, err := keygen.LoadAsymmetricKeyFromPEM(s.keypair.PrivateKeyPEM, algo, nil)
	if err != nil {
		return nil, err
	}
	return signature.NewRegistry().Sign(cryptoDomain.SignatureAlgorithm(algo), privKey, message)
}

func (s *stubEscrow) DecryptWithPrivateKey(ctx context.Context, id cryptoDomain.KeychainUID, algo string, cd *cryptoDomain.Cipherdict, passphrases [][]byte) ([]byte, error) {
	return []byte("decrypted"), nil
}

func (s *stubEscrow) RequestDecryptionAuthorization(ctx context.Context, identifiers []escrowDomain.KeypairIdentifier, requestMessage string, passphrases [][]byte) (*escrowDomain.AuthorizationResponse, error) {
	return &escrowDomain.AuthorizationResponse{ResponseMessage: "accepted"}, nil
}

func TestAddressFromDescriptor(t *testing.T) {
	addr, err := rpc.AddressFromDescriptor("http://escrow.example.com:8002/rpc")
	require.NoError(t, err)
	assert.Equal(t, "escrow.example.com:8002", addr)

	_, err = rpc.AddressFromDescriptor("not a url")
	assert.Error(t, err)
}

func TestServeAndDial_FetchPublicKey(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	kp, err := keygen.GenerateAsymmetricKeypair("RSA_OAEP", keygen.Options{KeyLength: 2048})
	require.NoError(t, err)

	srv := &stubEscrow{keypair: kp}
	go rpc.Serve(listener, srv)

	proxy, err := rpc.Dial(listener.Addr().String())
	require.NoError(t, err)
	defer proxy.Close()

	pub, err := proxy.FetchPublicKey(context.Background(), uuid.New(), "RSA_OAEP", false)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKeyPEM, pub)
}

func TestServeAndDial_RequestDecryptionAuthorization(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	srv := &stubEscrow{keypair: &cryptoDomain.Keypair{}}
	go rpc.Serve(listener, srv)

	proxy, err := rpc.Dial(listener.Addr().String())
	require.NoError(t, err)
	defer proxy.Close()

	resp, err := proxy.RequestDecryptionAuthorization(context.Background(), []escrowDomain.KeypairIdentifier{
		{KeychainUID: uuid.New(), Algorithm: "RSA_OAEP"},
	}, "please", nil)
	require.NoError(t, err)
	assert.Equal(t, "accepted", resp.ResponseMessage)
}

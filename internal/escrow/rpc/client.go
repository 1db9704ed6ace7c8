package rpc

import (
	"context"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"net/url"

	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	"github.com/containervault/containervault/internal/escrow"
	escrowDomain "github.com/containervault/containervault/internal/escrow/domain"
)

// RemoteProxy is an escrow.Escrow that forwards every call to a remote
// Server over net/rpc/jsonrpc. The container engine's escrow resolver
// constructs one of these whenever a descriptor is a {url: ...} map rather
// than the local placeholder.
type RemoteProxy struct {
	client *rpc.Client
}

var _ escrow.Escrow = (*RemoteProxy)(nil)

// Dial opens a JSON-RPC connection to address (host:port).
func Dial(address string) (*RemoteProxy, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial escrow rpc %s: %w", address, err)
	}
	return &RemoteProxy{client: jsonrpc.NewClient(conn)}, nil
}

// AddressFromDescriptor extracts a dialable host:port from an escrow
// descriptor URL such as "http://escrow.example.com:8002". Only the
// host:port is meaningful to net/rpc/jsonrpc's raw connection; any
// scheme/path is accepted and ignored.
func AddressFromDescriptor(descriptorURL string) (string, error) {
	u, err := url.Parse(descriptorURL)
	if err != nil {
		return "", fmt.Errorf("invalid escrow descriptor url %q: %w", descriptorURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid escrow descriptor url %q: missing host", descriptorURL)
	}
	return u.Host, nil
}

// Close releases the underlying connection.
func (p *RemoteProxy) Close() error {
	return p.client.Close()
}

func (p *RemoteProxy) FetchPublicKey(
	ctx context.Context,
	identity cryptoDomain.KeychainUID,
	algo string,
	mustExist bool,
) ([]byte, error) {
	args := &FetchPublicKeyArgs{KeychainUID: identity, Algo: algo, MustExist: mustExist}
	var reply FetchPublicKeyReply
	if err := p.client.Call(serviceName+".FetchPublicKey", args, &reply); err != nil {
		return nil, err
	}
	return reply.PublicKeyPEM, nil
}

func (p *RemoteProxy) GetMessageSignature(
	ctx context.Context,
	identity cryptoDomain.KeychainUID,
	message []byte,
	signatureAlgo string,
) (*cryptoDomain.Signature, error) {
	args := &GetMessageSignatureArgs{KeychainUID: identity, Message: message, SignatureAlgo: signatureAlgo}
	var reply GetMessageSignatureReply
	if err := p.client.Call(serviceName+".GetMessageSignature", args, &reply); err != nil {
		return nil, err
	}
	return &reply.Signature, nil
}

func (p *RemoteProxy) DecryptWithPrivateKey(
	ctx context.Context,
	identity cryptoDomain.KeychainUID,
	encryptionAlgo string,
	cd *cryptoDomain.Cipherdict,
	passphrases [][]byte,
) ([]byte, error) {
	args := &DecryptWithPrivateKeyArgs{
		KeychainUID:    identity,
		EncryptionAlgo: encryptionAlgo,
		Cipherdict:     *cd,
		Passphrases:    passphrases,
	}
	var reply DecryptWithPrivateKeyReply
	if err := p.client.Call(serviceName+".DecryptWithPrivateKey", args, &reply); err != nil {
		return nil, err
	}
	return reply.Plaintext, nil
}

func (p *RemoteProxy) RequestDecryptionAuthorization(
	ctx context.Context,
	identifiers []escrowDomain.KeypairIdentifier,
	requestMessage string,
	passphrases [][]byte,
) (*escrowDomain.AuthorizationResponse, error) {
	args := &RequestDecryptionAuthorizationArgs{
		Identifiers:    identifiers,
		RequestMessage: requestMessage,
		Passphrases:    passphrases,
	}
	var reply RequestDecryptionAuthorizationReply
	if err := p.client.Call(serviceName+".RequestDecryptionAuthorization", args, &reply); err != nil {
		return nil, err
	}
	return &reply.Response, nil
}

// Package rpc implements the remote escrow boundary: a JSON-RPC server
// exposing the local Escrow's four methods, and a client proxy that
// satisfies the same escrow.Escrow interface by calling them over the wire.
// Transport is net/rpc/jsonrpc; the method surface is narrow enough that
// the stdlib codec fits.
package rpc

import (
	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	escrowDomain "github.com/containervault/containervault/internal/escrow/domain"
)

// FetchPublicKeyArgs/Reply mirror escrow.Escrow.FetchPublicKey's arguments.
// Binary fields ([]byte) are base64-encoded by encoding/json automatically,
// so raw bytes survive the JSON transport intact.
type FetchPublicKeyArgs struct {
	KeychainUID cryptoDomain.KeychainUID
	Algo        string
	MustExist   bool
}

type FetchPublicKeyReply struct {
	PublicKeyPEM []byte
}

type GetMessageSignatureArgs struct {
	KeychainUID   cryptoDomain.KeychainUID
	Message       []byte
	SignatureAlgo string
}

type GetMessageSignatureReply struct {
	Signature cryptoDomain.Signature
}

type DecryptWithPrivateKeyArgs struct {
	KeychainUID    cryptoDomain.KeychainUID
	EncryptionAlgo string
	Cipherdict     cryptoDomain.Cipherdict
	Passphrases    [][]byte
}

type DecryptWithPrivateKeyReply struct {
	Plaintext []byte
}

type RequestDecryptionAuthorizationArgs struct {
	Identifiers    []escrowDomain.KeypairIdentifier
	RequestMessage string
	Passphrases    [][]byte
}

type RequestDecryptionAuthorizationReply struct {
	Response escrowDomain.AuthorizationResponse
}

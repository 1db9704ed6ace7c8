package rpc

import (
	"context"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"

	"github.com/containervault/containervault/internal/escrow"
)

// serviceName is the net/rpc registration name; RPC methods are dialed as
// "Escrow.<Method>".
const serviceName = "Escrow"

// Server exposes a local Escrow over net/rpc/jsonrpc so a remote process can
// reach it through RemoteProxy.
type Server struct {
	escrow escrow.Escrow
}

// NewServer wraps escrow e for RPC dispatch.
func NewServer(e escrow.Escrow) *Server {
	return &Server{escrow: e}
}

func (s *Server) FetchPublicKey(args *FetchPublicKeyArgs, reply *FetchPublicKeyReply) error {
	pub, err := s.escrow.FetchPublicKey(context.Background(), args.KeychainUID, args.Algo, args.MustExist)
	if err != nil {
		return err
	}
	reply.PublicKeyPEM = pub
	return nil
}

func (s *Server) GetMessageSignature(args *GetMessageSignatureArgs, reply *GetMessageSignatureReply) error {
	sig, err := s.escrow.GetMessageSignature(context.Background(), args.KeychainUID, args.Message, args.SignatureAlgo)
	if err != nil {
		return err
	}
	reply.Signature = *sig
	return nil
}

func (s *Server) DecryptWithPrivateKey(args *DecryptWithPrivateKeyArgs, reply *DecryptWithPrivateKeyReply) error {
	plaintext, err := s.escrow.DecryptWithPrivateKey(context.Background(), args.KeychainUID, args.EncryptionAlgo, &args.Cipherdict, args.Passphrases)
	if err != nil {
		return err
	}
	reply.Plaintext = plaintext
	return nil
}

func (s *Server) RequestDecryptionAuthorization(args *RequestDecryptionAuthorizationArgs, reply *RequestDecryptionAuthorizationReply) error {
	resp, err := s.escrow.RequestDecryptionAuthorization(context.Background(), args.Identifiers, args.RequestMessage, args.Passphrases)
	if err != nil {
		return err
	}
	reply.Response = *resp
	return nil
}

// Serve registers e under serviceName and accepts JSON-RPC connections on
// listener until it is closed or Accept returns an error.
func Serve(listener net.Listener, e escrow.Escrow) error {
	server := rpc.NewServer()
	if err := server.RegisterName(serviceName, NewServer(e)); err != nil {
		return err
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		go server.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

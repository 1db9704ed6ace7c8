// Package container implements the recursive onion encrypt/decrypt pipeline
// and its container document serialization.
package container

import (
	"fmt"
	"sync"

	"github.com/containervault/containervault/internal/container/domain"
	"github.com/containervault/containervault/internal/escrow"
	"github.com/containervault/containervault/internal/escrow/rpc"
)

// EscrowResolver resolves a stratum's escrow descriptor to the concrete
// Escrow implementation that answers for it.
type EscrowResolver interface {
	Resolve(descriptor domain.EscrowDescriptor) (escrow.Escrow, error)
}

// Resolver is the default EscrowResolver: the local placeholder resolves to
// an in-process escrow, a {"url": ...} descriptor dials (and caches) a
// JSON-RPC RemoteProxy, and anything else is a validation error.
type Resolver struct {
	local escrow.Escrow

	mu     sync.Mutex
	dialed map[string]*rpc.RemoteProxy
}

// NewResolver builds a Resolver whose local placeholder resolves to local.
func NewResolver(local escrow.Escrow) *Resolver {
	return &Resolver{
		local:  local,
		dialed: make(map[string]*rpc.RemoteProxy),
	}
}

var _ EscrowResolver = (*Resolver)(nil)

// Resolve implements EscrowResolver.
func (r *Resolver) Resolve(descriptor domain.EscrowDescriptor) (escrow.Escrow, error) {
	switch v := descriptor.(type) {
	case string:
		if v == escrow.LocalEscrowPlaceholder {
			return r.local, nil
		}
		return nil, domain.ErrInvalidEscrowDescriptor
	case map[string]any:
		return r.resolveRemote(v)
	case map[any]any:
		// CBOR decodes a generic (interface{}) map into map[interface{}]interface{};
		// JSON decodes the same shape into map[string]interface{}. Normalize so
		// callers feeding either serialization hit the same resolution path.
		converted := make(map[string]any, len(v))
		for k, val := range v {
			ks, ok := k.(string)
			if !ok {
				return nil, domain.ErrInvalidEscrowDescriptor
			}
			converted[ks] = val
		}
		return r.resolveRemote(converted)
	default:
		return nil, domain.ErrInvalidEscrowDescriptor
	}
}

func (r *Resolver) resolveRemote(m map[string]any) (escrow.Escrow, error) {
	addr, err := remoteAddress(m)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if proxy, ok := r.dialed[addr]; ok {
		return proxy, nil
	}

	proxy, err := rpc.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dial remote escrow %s: %w", addr, err)
	}
	r.dialed[addr] = proxy
	return proxy, nil
}

func remoteAddress(m map[string]any) (string, error) {
	urlVal, ok := m["url"]
	if !ok {
		return "", domain.ErrInvalidEscrowDescriptor
	}
	urlStr, ok := urlVal.(string)
	if !ok || urlStr == "" {
		return "", domain.ErrInvalidEscrowDescriptor
	}

	addr, err := rpc.AddressFromDescriptor(urlStr)
	if err != nil {
		return "", domain.ErrInvalidEscrowDescriptor
	}
	return addr, nil
}

// ValidateDescriptor checks that descriptor is either the local escrow
// placeholder or a well-formed {"url": ...} remote descriptor, without
// dialing anything. Used by callers that only need to vet a container's
// escrow references (the validate command) rather than resolve them.
func ValidateDescriptor(descriptor domain.EscrowDescriptor) error {
	switch v := descriptor.(type) {
	case string:
		if v == escrow.LocalEscrowPlaceholder {
			return nil
		}
		return domain.ErrInvalidEscrowDescriptor
	case map[string]any:
		_, err := remoteAddress(v)
		return err
	case map[any]any:
		converted := make(map[string]any, len(v))
		for k, val := range v {
			ks, ok := k.(string)
			if !ok {
				return domain.ErrInvalidEscrowDescriptor
			}
			converted[ks] = val
		}
		_, err := remoteAddress(converted)
		return err
	default:
		return domain.ErrInvalidEscrowDescriptor
	}
}

// Close releases any dialed remote escrow connections.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for addr, proxy := range r.dialed {
		if err := proxy.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close remote escrow %s: %w", addr, err)
		}
	}
	return firstErr
}

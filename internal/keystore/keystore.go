// Package keystore implements the persistent (identity, algorithm) ->
// Keypair mapping plus the per-algorithm free keypair pool.
package keystore

import (
	"context"
	"sync"
	"time"

	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	"github.com/containervault/containervault/internal/cryptocore/keygen"
	keystoreDomain "github.com/containervault/containervault/internal/keystore/domain"
)

// BoundRepository persists the bound half of the Keystore. SQL
// implementations live in the repository subpackage.
type BoundRepository interface {
	Create(ctx context.Context, kp *keystoreDomain.BoundKeypair) error
	Get(ctx context.Context, keychainUID cryptoDomain.KeychainUID, algorithm string) (*keystoreDomain.BoundKeypair, error)
}

// Keystore combines the SQL-backed bound store with an in-memory free
// keypair pool. The free pool is ephemeral pre-generated stock and is never
// persisted.
//
// Mutating operations (SetKeypair, AddFreeKeypair, AttachFreeKeypairToUUID)
// are serialized under one mutex per algorithm, so operations on different
// algorithms never block each other. mapMu only guards the two maps
// themselves and is never held across repository calls.
type Keystore struct {
	bound BoundRepository

	mapMu     sync.Mutex
	algoMu    map[string]*sync.Mutex
	freePools map[string][]*cryptoDomain.Keypair
}

// New builds a Keystore over the given bound repository.
func New(bound BoundRepository) *Keystore {
	return &Keystore{
		bound:     bound,
		algoMu:    make(map[string]*sync.Mutex),
		freePools: make(map[string][]*cryptoDomain.Keypair),
	}
}

// lockAlgo acquires algorithm's mutex, creating it on first use, and returns
// it for the caller to unlock.
func (k *Keystore) lockAlgo(algorithm string) *sync.Mutex {
	k.mapMu.Lock()
	mu, ok := k.algoMu[algorithm]
	if !ok {
		mu = &sync.Mutex{}
		k.algoMu[algorithm] = mu
	}
	k.mapMu.Unlock()

	mu.Lock()
	return mu
}

// SetKeypair binds kp to (keychainUID, algorithm), failing with
// ErrKeyAlreadyExists if that pair already has a bound keypair. Binding is
// serialized with the free pool operations under the algorithm's mutex so
// no observer can see a keypair in both sets.
func (k *Keystore) SetKeypair(
	ctx context.Context,
	keychainUID cryptoDomain.KeychainUID,
	algorithm string,
	kp *cryptoDomain.Keypair,
) error {
	mu := k.lockAlgo(algorithm)
	defer mu.Unlock()

	return k.bound.Create(ctx, &keystoreDomain.BoundKeypair{
		KeychainUID:   keychainUID,
		Algorithm:     algorithm,
		PublicKeyPEM:  kp.PublicKeyPEM,
		PrivateKeyPEM: kp.PrivateKeyPEM,
		Passphrase:    kp.Passphrase,
		CreatedAt:     time.Now().UTC(),
	})
}

// GetPublicKey returns the PEM-encoded public key bound to
// (keychainUID, algorithm), or ErrKeyDoesNotExist on a miss.
func (k *Keystore) GetPublicKey(
	ctx context.Context,
	keychainUID cryptoDomain.KeychainUID,
	algorithm string,
) ([]byte, error) {
	bound, err := k.bound.Get(ctx, keychainUID, algorithm)
	if err != nil {
		return nil, err
	}
	return bound.PublicKeyPEM, nil
}

// GetPrivateKey returns the PEM-encoded private key bound to
// (keychainUID, algorithm). When the key is passphrase-protected, it
// iterates through passphrases in order and returns the first candidate
// that successfully decrypts, re-encoded as unprotected PEM bytes; a
// mismatch against all candidates is ErrInvalidPassphrase.
func (k *Keystore) GetPrivateKey(
	ctx context.Context,
	keychainUID cryptoDomain.KeychainUID,
	algorithm string,
	passphrases [][]byte,
) ([]byte, error) {
	bound, err := k.bound.Get(ctx, keychainUID, algorithm)
	if err != nil {
		return nil, err
	}

	if !bound.Passphrase {
		return bound.PrivateKeyPEM, nil
	}

	for _, candidate := range passphrases {
		decrypted, err := keygen.DecryptPrivatePEM(bound.PrivateKeyPEM, algorithm, candidate)
		if err == nil {
			return decrypted, nil
		}
	}
	return nil, keystoreDomain.ErrInvalidPassphrase
}

// AddFreeKeypair pushes kp onto the unbound pool for algorithm.
func (k *Keystore) AddFreeKeypair(algorithm string, kp *cryptoDomain.Keypair) {
	mu := k.lockAlgo(algorithm)
	defer mu.Unlock()

	k.mapMu.Lock()
	k.freePools[algorithm] = append(k.freePools[algorithm], kp)
	k.mapMu.Unlock()
}

// AttachFreeKeypairToUUID atomically pops a free keypair for algorithm, if
// one exists, and binds it to keychainUID. Returns false without consuming
// anything if the pool is empty. The algorithm's mutex is held through the
// bind so two concurrent attaches never race for the same keypair.
func (k *Keystore) AttachFreeKeypairToUUID(
	ctx context.Context,
	keychainUID cryptoDomain.KeychainUID,
	algorithm string,
) (bool, error) {
	mu := k.lockAlgo(algorithm)
	defer mu.Unlock()

	k.mapMu.Lock()
	pool := k.freePools[algorithm]
	if len(pool) == 0 {
		k.mapMu.Unlock()
		return false, nil
	}
	kp := pool[0]
	k.freePools[algorithm] = pool[1:]
	k.mapMu.Unlock()

	err := k.bound.Create(ctx, &keystoreDomain.BoundKeypair{
		KeychainUID:   keychainUID,
		Algorithm:     algorithm,
		PublicKeyPEM:  kp.PublicKeyPEM,
		PrivateKeyPEM: kp.PrivateKeyPEM,
		Passphrase:    kp.Passphrase,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		// Bind failed; put the keypair back so it is not lost.
		k.mapMu.Lock()
		k.freePools[algorithm] = append([]*cryptoDomain.Keypair{kp}, k.freePools[algorithm]...)
		k.mapMu.Unlock()
		return false, err
	}
	return true, nil
}

// GetFreeKeypairsCount reports how many unbound keypairs are queued for
// algorithm.
func (k *Keystore) GetFreeKeypairsCount(algorithm string) int {
	k.mapMu.Lock()
	defer k.mapMu.Unlock()
	return len(k.freePools[algorithm])
}

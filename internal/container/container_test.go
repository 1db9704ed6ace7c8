package container_test

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/containervault/containervault/internal/container"
	containerDomain "github.com/containervault/containervault/internal/container/domain"
	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	"github.com/containervault/containervault/internal/cryptocore/keygen"
	"github.com/containervault/containervault/internal/escrow"
	"github.com/containervault/containervault/internal/escrow/rpc"
	keystoreDomain "github.com/containervault/containervault/internal/keystore/domain"
)

// fakeKeystore is an in-memory stand-in for internal/keystore.Keystore,
// sized for the container engine's end-to-end round-trip tests rather than
// dragging in a SQL-backed repository.
type fakeKeystore struct {
	mu    sync.Mutex
	bound map[string]*cryptoDomain.Keypair
	free  map[string][]*cryptoDomain.Keypair
}

func newFakeKeystore() *fakeKeystore {
	return &fakeKeystore{
		bound: make(map[string]*cryptoDomain.Keypair),
		free:  make(map[string][]*cryptoDomain.Keypair),
	}
}

func fakeKey(id cryptoDomain.KeychainUID, algo string) string {
	return id.String() + "/" + algo
}

func (f *fakeKeystore) SetKeypair(ctx context.Context, id cryptoDomain.KeychainUID, algo string, kp *cryptoDomain.Keypair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := fakeKey(id, algo)
	if _, exists := f.bound[k]; exists {
		return keystoreDomain.ErrKeyAlreadyExists
	}
	f.bound[k] = kp
	return nil
}

func (f *fakeKeystore) GetPublicKey(ctx context.Context, id cryptoDomain.KeychainUID, algo string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kp, ok := f.bound[fakeKey(id, algo)]
	if !ok {
		return nil, keystoreDomain.ErrKeyDoesNotExist
	}
	return kp.PublicKeyPEM, nil
}

func (f *fakeKeystore) GetPrivateKey(ctx context.Context, id cryptoDomain.KeychainUID, algo string, passphrases [][]byte) ([]byte, error) {
	f.mu.Lock()
	kp, ok := f.bound[fakeKey(id, algo)]
	f.mu.Unlock()
	if !ok {
		return nil, keystoreDomain.ErrKeyDoesNotExist
	}
	if !kp.Passphrase {
		return kp.PrivateKeyPEM, nil
	}
	for _, candidate := range passphrases {
		if plain, err := keygen.DecryptPrivatePEM(kp.PrivateKeyPEM, algo, candidate); err == nil {
			return plain, nil
		}
	}
	return nil, keystoreDomain.ErrInvalidPassphrase
}

func (f *fakeKeystore) AttachFreeKeypairToUUID(ctx context.Context, id cryptoDomain.KeychainUID, algo string) (bool, error) {
	f.mu.Lock()
	pool := f.free[algo]
	if len(pool) == 0 {
		f.mu.Unlock()
		return false, nil
	}
	kp := pool[0]
	f.free[algo] = pool[1:]
	f.mu.Unlock()

	return true, f.SetKeypair(ctx, id, algo, kp)
}

func testKeygen(algo string) (*cryptoDomain.Keypair, error) {
	switch algo {
	case "RSA_OAEP", "RSA_PSS":
		return keygen.GenerateAsymmetricKeypair(algo, keygen.Options{KeyLength: 2048})
	case "DSA_DSS":
		return keygen.GenerateAsymmetricKeypair(algo, keygen.Options{KeyLength: 2048})
	case "ECC_DSS":
		return keygen.GenerateAsymmetricKeypair(algo, keygen.Options{Curve: "p256"})
	default:
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
}

func newLocalEngine() (*container.Engine, *fakeKeystore) {
	ks := newFakeKeystore()
	localEscrow := escrow.NewReadWriteEscrow(ks, testKeygen)
	resolver := container.NewResolver(localEscrow)
	return container.NewEngine(resolver), ks
}

// simpleConf: one AES_CBC stratum, one RSA_OAEP key wrap, one DSA_DSS
// signature.
func simpleConf() containerDomain.EncryptionConf {
	return containerDomain.EncryptionConf{
		DataEncryptionStrata: []containerDomain.DataEncryptionStratumConf{
			{
				DataEncryptionAlgo: cryptoDomain.AESCBC,
				KeyEncryptionStrata: []containerDomain.KeyEncryptionStratumConf{
					{KeyEncryptionAlgo: cryptoDomain.RSAOAEP, KeyEscrow: escrow.LocalEscrowPlaceholder},
				},
				DataSignatures: []containerDomain.SignatureConf{
					{SignatureAlgo: cryptoDomain.DSADSS, SignatureEscrow: escrow.LocalEscrowPlaceholder},
				},
			},
		},
	}
}

// complexConf: three strata [AES_EAX, AES_CBC, CHACHA20_POLY1305]
// outermost-first; the innermost (CHACHA20_POLY1305) stratum carries two
// RSA_OAEP key wraps and two signatures.
func complexConf() containerDomain.EncryptionConf {
	return containerDomain.EncryptionConf{
		DataEncryptionStrata: []containerDomain.DataEncryptionStratumConf{
			{
				DataEncryptionAlgo: cryptoDomain.AESEAX,
				KeyEncryptionStrata: []containerDomain.KeyEncryptionStratumConf{
					{KeyEncryptionAlgo: cryptoDomain.RSAOAEP, KeyEscrow: escrow.LocalEscrowPlaceholder},
				},
				DataSignatures: []containerDomain.SignatureConf{
					{SignatureAlgo: cryptoDomain.ECCDSS, SignatureEscrow: escrow.LocalEscrowPlaceholder},
				},
			},
			{
				DataEncryptionAlgo: cryptoDomain.AESCBC,
				KeyEncryptionStrata: []containerDomain.KeyEncryptionStratumConf{
					{KeyEncryptionAlgo: cryptoDomain.RSAOAEP, KeyEscrow: escrow.LocalEscrowPlaceholder},
				},
			},
			{
				DataEncryptionAlgo: cryptoDomain.ChaCha20Poly1305,
				KeyEncryptionStrata: []containerDomain.KeyEncryptionStratumConf{
					{KeyEncryptionAlgo: cryptoDomain.RSAOAEP, KeyEscrow: escrow.LocalEscrowPlaceholder},
					{KeyEncryptionAlgo: cryptoDomain.RSAOAEP, KeyEscrow: escrow.LocalEscrowPlaceholder},
				},
				DataSignatures: []containerDomain.SignatureConf{
					{SignatureAlgo: cryptoDomain.RSAPSS, SignatureEscrow: escrow.LocalEscrowPlaceholder},
					{SignatureAlgo: cryptoDomain.ECCDSS, SignatureEscrow: escrow.LocalEscrowPlaceholder},
				},
			},
		},
	}
}

func TestEngine_RoundTrip_Simple(t *testing.T) {
	eng, _ := newLocalEngine()
	ctx := context.Background()

	c, err := eng.Encrypt(ctx, []byte("abc"), simpleConf(), nil)
	require.NoError(t, err)
	require.Len(t, c.DataEncryptionStrata, 1)
	assert.Equal(t, cryptoDomain.AESCBC, c.DataEncryptionStrata[0].DataEncryptionAlgo)
	require.Len(t, c.DataEncryptionStrata[0].DataSignatures, 1)
	assert.Equal(t, cryptoDomain.DSADSS, c.DataEncryptionStrata[0].DataSignatures[0].SignatureAlgo)

	plaintext, err := eng.Decrypt(ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), plaintext)
}

func TestEngine_RoundTrip_Complex(t *testing.T) {
	eng, _ := newLocalEngine()
	ctx := context.Background()

	c, err := eng.Encrypt(ctx, []byte("abc"), complexConf(), nil)
	require.NoError(t, err)
	require.Len(t, c.DataEncryptionStrata, 3)
	assert.Equal(t, cryptoDomain.AESEAX, c.DataEncryptionStrata[0].DataEncryptionAlgo)
	assert.Equal(t, cryptoDomain.AESCBC, c.DataEncryptionStrata[1].DataEncryptionAlgo)
	assert.Equal(t, cryptoDomain.ChaCha20Poly1305, c.DataEncryptionStrata[2].DataEncryptionAlgo)
	assert.Len(t, c.DataEncryptionStrata[2].KeyEncryptionStrata, 2)
	assert.Len(t, c.DataEncryptionStrata[2].DataSignatures, 2)

	plaintext, err := eng.Decrypt(ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), plaintext)
}

func TestEngine_RoundTrip_LargerPayload(t *testing.T) {
	eng, _ := newLocalEngine()
	ctx := context.Background()

	data := bytes.Repeat([]byte("the quick brown fox "), 500)

	c, err := eng.Encrypt(ctx, data, complexConf(), nil)
	require.NoError(t, err)

	plaintext, err := eng.Decrypt(ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, data, plaintext)
}

func TestEngine_Decrypt_UnknownContainerFormat(t *testing.T) {
	eng, _ := newLocalEngine()
	ctx := context.Background()

	c, err := eng.Encrypt(ctx, []byte("abc"), simpleConf(), nil)
	require.NoError(t, err)

	c.ContainerFormat = "WA_9.9z"
	_, err = eng.Decrypt(ctx, c, nil)
	require.ErrorIs(t, err, containerDomain.ErrUnknownContainerFormat)
}

func TestEngine_Decrypt_SignatureTamperFails(t *testing.T) {
	eng, _ := newLocalEngine()
	ctx := context.Background()

	c, err := eng.Encrypt(ctx, []byte("abc"), simpleConf(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, c.DataEncryptionStrata[0].DataSignatures[0].SignatureValue.Digest)

	tampered := make([]byte, len(c.DataEncryptionStrata[0].DataSignatures[0].SignatureValue.Digest))
	copy(tampered, c.DataEncryptionStrata[0].DataSignatures[0].SignatureValue.Digest)
	tampered[0] ^= 0xFF
	c.DataEncryptionStrata[0].DataSignatures[0].SignatureValue.Digest = tampered

	_, err = eng.Decrypt(ctx, c, nil)
	require.ErrorIs(t, err, containerDomain.ErrSignatureVerificationFailed)
}

func TestEngine_Encrypt_MintsKeychainUIDWhenAbsent(t *testing.T) {
	eng, _ := newLocalEngine()
	ctx := context.Background()

	c, err := eng.Encrypt(ctx, []byte("abc"), simpleConf(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, c.KeychainUID)
}

func TestEngine_Encrypt_UsesCallerSuppliedKeychainUID(t *testing.T) {
	eng, _ := newLocalEngine()
	ctx := context.Background()

	want := uuid.New()
	c, err := eng.Encrypt(ctx, []byte("abc"), simpleConf(), &want)
	require.NoError(t, err)
	assert.Equal(t, want, c.KeychainUID)
}

func TestEngine_Resolve_UnknownDescriptorFails(t *testing.T) {
	ks := newFakeKeystore()
	localEscrow := escrow.NewReadWriteEscrow(ks, testKeygen)
	resolver := container.NewResolver(localEscrow)

	_, err := resolver.Resolve("weird-value")
	require.ErrorIs(t, err, containerDomain.ErrInvalidEscrowDescriptor)

	_, err = resolver.Resolve(map[string]any{"urn": "not-a-url-key"})
	require.ErrorIs(t, err, containerDomain.ErrInvalidEscrowDescriptor)
}

func TestEngine_Resolve_RemoteDescriptorReturnsProxy(t *testing.T) {
	ks := newFakeKeystore()
	localEscrow := escrow.NewReadWriteEscrow(ks, testKeygen)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	go func() { _ = rpc.Serve(listener, localEscrow) }()

	resolver := container.NewResolver(localEscrow)
	defer func() { _ = resolver.Close() }()

	remote, err := resolver.Resolve(map[string]any{"url": "http://" + listener.Addr().String()})
	require.NoError(t, err)
	require.NotNil(t, remote)

	id := uuid.New()
	pub, err := remote.FetchPublicKey(context.Background(), id, "RSA_OAEP", false)
	require.NoError(t, err)
	assert.NotEmpty(t, pub)

	local, err := resolver.Resolve(escrow.LocalEscrowPlaceholder)
	require.NoError(t, err)
	samePub, err := local.FetchPublicKey(context.Background(), id, "RSA_OAEP", true)
	require.NoError(t, err)
	assert.Equal(t, pub, samePub)
}

func TestContainer_MarshalUnmarshalRoundTrip(t *testing.T) {
	eng, _ := newLocalEngine()
	ctx := context.Background()

	c, err := eng.Encrypt(ctx, []byte("abc"), complexConf(), nil)
	require.NoError(t, err)

	data, err := container.MarshalContainer(c)
	require.NoError(t, err)

	restored, err := container.UnmarshalContainer(data)
	require.NoError(t, err)
	assert.Equal(t, c.ContainerUID, restored.ContainerUID)
	assert.Equal(t, c.KeychainUID, restored.KeychainUID)
	assert.Equal(t, c.DataCiphertext, restored.DataCiphertext)

	plaintext, err := eng.Decrypt(ctx, restored, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), plaintext)
}

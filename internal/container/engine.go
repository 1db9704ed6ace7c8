package container

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/containervault/containervault/internal/container/domain"
	"github.com/containervault/containervault/internal/cryptocore/cipher"
	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	"github.com/containervault/containervault/internal/cryptocore/keygen"
	"github.com/containervault/containervault/internal/cryptocore/signature"
)

// Engine drives the recursive strata pipeline: encrypting data
// innermost-stratum-first, wrapping each stratum's data-encryption key
// through its own key-encryption sub-pipeline, and attaching signatures;
// and, in reverse, verifying signatures and unwrapping keys outermost-first
// to recover the plaintext.
type Engine struct {
	ciphers    *cipher.Registry
	signatures *signature.Registry
	resolver   EscrowResolver
}

// NewEngine builds an Engine that resolves escrow descriptors through resolver.
func NewEngine(resolver EscrowResolver) *Engine {
	return &Engine{
		ciphers:    cipher.NewRegistry(),
		signatures: signature.NewRegistry(),
		resolver:   resolver,
	}
}

// Encrypt assembles a Container from data per conf. When keychainUID is nil
// the engine mints a fresh one.
func (e *Engine) Encrypt(
	ctx context.Context,
	data []byte,
	conf domain.EncryptionConf,
	keychainUID *cryptoDomain.KeychainUID,
) (*domain.Container, error) {
	kuid := cryptoDomain.NewKeychainUID()
	if keychainUID != nil {
		kuid = *keychainUID
	}

	strata := make([]domain.Stratum, len(conf.DataEncryptionStrata))
	current := data

	// Innermost stratum is the last entry of conf.DataEncryptionStrata
	// (the document's own field order is outermost-first); process it first
	// so each successive (more outer) stratum encrypts the previous
	// stratum's ciphertext.
	for i := len(conf.DataEncryptionStrata) - 1; i >= 0; i-- {
		sc := conf.DataEncryptionStrata[i]

		keySize, ok := cryptoDomain.KeySizeForSymmetric(sc.DataEncryptionAlgo)
		if !ok {
			return nil, cryptoDomain.ErrUnsupportedAlgorithm
		}
		key := make([]byte, keySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("draw data encryption key: %w", err)
		}

		cd, err := e.ciphers.Encrypt(sc.DataEncryptionAlgo, key, current)
		if err != nil {
			return nil, err
		}

		serializedCD, err := cbor.Marshal(cd)
		if err != nil {
			return nil, fmt.Errorf("serialize cipherdict: %w", err)
		}

		keyCiphertext, keyStrata, err := e.wrapKey(ctx, kuid, key, sc.KeyEncryptionStrata)
		if err != nil {
			return nil, err
		}

		sigEntries := make([]domain.SignatureEntry, 0, len(sc.DataSignatures))
		for _, sigConf := range sc.DataSignatures {
			esc, err := e.resolver.Resolve(sigConf.SignatureEscrow)
			if err != nil {
				return nil, err
			}
			sig, err := esc.GetMessageSignature(ctx, kuid, serializedCD, string(sigConf.SignatureAlgo))
			if err != nil {
				return nil, err
			}
			sigEntries = append(sigEntries, domain.SignatureEntry{
				SignatureKeyType: sigConf.SignatureAlgo,
				SignatureAlgo:    sigConf.SignatureAlgo,
				SignatureEscrow:  sigConf.SignatureEscrow,
				SignatureValue:   *sig,
			})
		}

		strata[i] = domain.Stratum{
			DataEncryptionAlgo:  sc.DataEncryptionAlgo,
			KeyCiphertext:       keyCiphertext,
			KeyEncryptionStrata: keyStrata,
			DataSignatures:      sigEntries,
		}
		current = serializedCD
	}

	return &domain.Container{
		ContainerFormat:      domain.ContainerFormat,
		ContainerUID:         uuid.New(),
		KeychainUID:          kuid,
		DataCiphertext:       current,
		DataEncryptionStrata: strata,
	}, nil
}

// wrapKey walks confs innermost-first (index 0 wraps the raw key; each
// later entry re-wraps the previous entry's ciphertext), returning the
// final wrapped bytes and the produced KeyEncryptionStratum records.
func (e *Engine) wrapKey(
	ctx context.Context,
	kuid cryptoDomain.KeychainUID,
	key []byte,
	confs []domain.KeyEncryptionStratumConf,
) ([]byte, []domain.KeyEncryptionStratum, error) {
	current := key
	out := make([]domain.KeyEncryptionStratum, len(confs))

	for i, kc := range confs {
		esc, err := e.resolver.Resolve(kc.KeyEscrow)
		if err != nil {
			return nil, nil, err
		}

		pubPEM, err := esc.FetchPublicKey(ctx, kuid, string(kc.KeyEncryptionAlgo), false)
		if err != nil {
			return nil, nil, err
		}

		rsaPub, err := loadRSAPublicKey(pubPEM, string(kc.KeyEncryptionAlgo))
		if err != nil {
			return nil, nil, err
		}

		rsaCipher := &cipher.RSAOAEPCipher{}
		cd, err := rsaCipher.Encrypt(rsaPub, current)
		if err != nil {
			return nil, nil, err
		}

		serialized, err := cbor.Marshal(cd)
		if err != nil {
			return nil, nil, fmt.Errorf("serialize key cipherdict: %w", err)
		}

		current = serialized
		out[i] = domain.KeyEncryptionStratum{
			KeyEncryptionAlgo: kc.KeyEncryptionAlgo,
			KeyEscrow:         kc.KeyEscrow,
		}
	}

	return current, out, nil
}

// Decrypt recovers the plaintext from c, verifying every stratum's
// signatures outermost-first and unwrapping each stratum's key before
// decrypting its ciphertext. passphrases is
// threaded through to every escrow call that may need to unlock a
// passphrase-protected private key.
func (e *Engine) Decrypt(ctx context.Context, c *domain.Container, passphrases [][]byte) ([]byte, error) {
	if c.ContainerFormat != domain.ContainerFormat {
		return nil, domain.ErrUnknownContainerFormat
	}

	current := c.DataCiphertext

	for i := 0; i < len(c.DataEncryptionStrata); i++ {
		stratum := c.DataEncryptionStrata[i]

		for _, sigEntry := range stratum.DataSignatures {
			if err := e.verifySignature(ctx, c.KeychainUID, current, sigEntry); err != nil {
				return nil, err
			}
		}

		key, err := e.unwrapKey(ctx, c.KeychainUID, stratum.KeyCiphertext, stratum.KeyEncryptionStrata, passphrases)
		if err != nil {
			return nil, err
		}

		var cd cryptoDomain.Cipherdict
		if err := cbor.Unmarshal(current, &cd); err != nil {
			return nil, cryptoDomain.ErrMalformedCipherdict
		}

		plaintext, err := e.ciphers.Decrypt(&cd, key)
		if err != nil {
			return nil, err
		}

		current = plaintext
	}

	return current, nil
}

func (e *Engine) verifySignature(
	ctx context.Context,
	kuid cryptoDomain.KeychainUID,
	message []byte,
	sigEntry domain.SignatureEntry,
) error {
	esc, err := e.resolver.Resolve(sigEntry.SignatureEscrow)
	if err != nil {
		return err
	}

	pubPEM, err := esc.FetchPublicKey(ctx, kuid, string(sigEntry.SignatureKeyType), true)
	if err != nil {
		return err
	}

	pubKey, err := keygen.LoadAsymmetricKeyFromPEM(pubPEM, string(sigEntry.SignatureKeyType), nil)
	if err != nil {
		return err
	}

	sig := sigEntry.SignatureValue
	if err := e.signatures.Verify(sigEntry.SignatureAlgo, pubKey, message, &sig); err != nil {
		return domain.ErrSignatureVerificationFailed
	}
	return nil
}

// unwrapKey walks strata outermost-first (the last entry first), asking
// each sub-stratum's escrow to decrypt with its private key, until the raw
// symmetric key is recovered.
func (e *Engine) unwrapKey(
	ctx context.Context,
	kuid cryptoDomain.KeychainUID,
	keyCiphertext []byte,
	strata []domain.KeyEncryptionStratum,
	passphrases [][]byte,
) ([]byte, error) {
	current := keyCiphertext

	for i := len(strata) - 1; i >= 0; i-- {
		ks := strata[i]

		esc, err := e.resolver.Resolve(ks.KeyEscrow)
		if err != nil {
			return nil, err
		}

		var cd cryptoDomain.Cipherdict
		if err := cbor.Unmarshal(current, &cd); err != nil {
			return nil, cryptoDomain.ErrMalformedCipherdict
		}

		plaintext, err := esc.DecryptWithPrivateKey(ctx, kuid, string(ks.KeyEncryptionAlgo), &cd, passphrases)
		if err != nil {
			return nil, err
		}

		current = plaintext
	}

	return current, nil
}

func loadRSAPublicKey(pemBytes []byte, algo string) (*rsa.PublicKey, error) {
	key, err := keygen.LoadAsymmetricKeyFromPEM(pemBytes, algo, nil)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, cryptoDomain.ErrUnknownKeyType
	}
	return pub, nil
}

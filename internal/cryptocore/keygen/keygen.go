// Package keygen implements asymmetric keypair creation per algorithm, PEM
// serialization, and passphrase-protected private-key loading.
//
// Passphrase protection is an scrypt-derived key wrapping the private key's
// DER bytes in AES-256-GCM, with the salt and nonce carried as PEM block
// headers.
package keygen

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"

	"golang.org/x/crypto/scrypt"

	"github.com/containervault/containervault/internal/cryptocore/domain"
)

// scrypt work factors for passphrase-derived key wrapping.
const (
	scryptN       = 1 << 15
	scryptR       = 8
	scryptP       = 1
	scryptKeyLen  = 32
	scryptSaltLen = 32
)

const (
	pemPublicKey           = "PUBLIC KEY"
	pemPrivateKey          = "PRIVATE KEY"
	pemEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	pemDSAPublicKey        = "DSA PUBLIC KEY"
	pemDSAPrivateKey       = "DSA PRIVATE KEY"
	headerKeyType          = "Key-Type"
	headerSalt             = "Salt"
	headerNonce            = "Nonce"
	keyTypeRSA             = "RSA"
	keyTypeECDSA           = "ECDSA"
	keyTypeDSA             = "DSA"
)

// Options configures asymmetric keypair generation. Which fields apply
// depends on algo: RSA/DSA use KeyLength, ECC uses Curve; all may set
// Passphrase to protect the private PEM.
type Options struct {
	KeyLength  int
	Curve      string
	Passphrase []byte
}

// GenerateAsymmetricKeypair creates a fresh keypair for algo, validating
// Options per algorithm, and serializes both halves to PEM.
func GenerateAsymmetricKeypair(algo string, opts Options) (*domain.Keypair, error) {
	switch algo {
	case string(domain.RSAOAEP), string(domain.RSAPSS):
		return generateRSA(algo, opts)
	case string(domain.DSADSS):
		return generateDSA(algo, opts)
	case string(domain.ECCDSS):
		return generateECDSA(algo, opts)
	default:
		return nil, domain.ErrUnsupportedAlgorithm
	}
}

// LoadAsymmetricKeyFromPEM parses a PEM bytestring as the key type
// corresponding to algo, decrypting the private half with passphrase if the
// block is encrypted.
func LoadAsymmetricKeyFromPEM(pemBytes []byte, algo string, passphrase []byte) (any, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, domain.ErrUnknownKeyType
	}

	switch algo {
	case string(domain.RSAOAEP), string(domain.RSAPSS):
		return loadRSA(block, passphrase)
	case string(domain.DSADSS):
		return loadDSA(block, passphrase)
	case string(domain.ECCDSS):
		return loadECDSA(block, passphrase)
	default:
		return nil, domain.ErrUnsupportedAlgorithm
	}
}

func rsaKeyLengthOrDefault(keyLength int) (int, error) {
	if keyLength == 0 {
		return 2048, nil
	}
	switch keyLength {
	case 2048, 3072, 4096:
		return keyLength, nil
	default:
		return 0, domain.ErrInvalidKeyLength
	}
}

func generateRSA(algo string, opts Options) (*domain.Keypair, error) {
	bits, err := rsaKeyLengthOrDefault(opts.KeyLength)
	if err != nil {
		return nil, err
	}

	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate rsa key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rsa public key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rsa private key: %w", err)
	}

	return buildKeypair(algo, pubDER, privDER, keyTypeRSA, pemPublicKey, pemPrivateKey, opts.Passphrase)
}

func loadRSA(block *pem.Block, passphrase []byte) (any, error) {
	der, isPrivate, err := decodeBlock(block, passphrase, keyTypeRSA)
	if err != nil {
		return nil, err
	}
	if !isPrivate {
		pub, err := x509.ParsePKIXPublicKey(der)
		if err != nil {
			return nil, domain.ErrUnknownKeyType
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, domain.ErrUnknownKeyType
		}
		return rsaPub, nil
	}
	priv, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, domain.ErrUnknownKeyType
	}
	rsaPriv, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, domain.ErrUnknownKeyType
	}
	return rsaPriv, nil
}

func dsaParameterSizes(keyLength int) (dsa.ParameterSizes, error) {
	if keyLength == 0 {
		return dsa.L2048N256, nil
	}
	switch keyLength {
	case 2048:
		return dsa.L2048N256, nil
	case 3072:
		return dsa.L3072N256, nil
	default:
		return 0, domain.ErrInvalidKeyLength
	}
}

// dsaPrivateKeyASN1 mirrors OpenSSL's traditional "DSA PRIVATE KEY" ASN.1
// layout (SEQUENCE{version, p, q, g, y, x}), since crypto/x509's PKCS8
// marshaler does not support DSA.
type dsaPrivateKeyASN1 struct {
	Version int
	P, Q, G, Y, X *big.Int
}

// dsaPublicKeyASN1 mirrors the SubjectPublicKeyInfo shape for id-dsa
// (OID 1.2.840.10040.4.1): AlgorithmIdentifier carries (p, q, g) as
// parameters and the BIT STRING payload is the DER INTEGER y. We flatten
// this to one struct for our own (de)serialization rather than building a
// full ASN.1 AlgorithmIdentifier, since this package is the only producer
// and consumer of the format.
type dsaPublicKeyASN1 struct {
	P, Q, G, Y *big.Int
}

func generateDSA(algo string, opts Options) (*domain.Keypair, error) {
	sizes, err := dsaParameterSizes(opts.KeyLength)
	if err != nil {
		return nil, err
	}

	var params dsa.Parameters
	if err := dsa.GenerateParameters(&params, rand.Reader, sizes); err != nil {
		return nil, fmt.Errorf("failed to generate dsa parameters: %w", err)
	}

	priv := &dsa.PrivateKey{PublicKey: dsa.PublicKey{Parameters: params}}
	if err := dsa.GenerateKey(priv, rand.Reader); err != nil {
		return nil, fmt.Errorf("failed to generate dsa key: %w", err)
	}

	pubDER, err := asn1.Marshal(dsaPublicKeyASN1{P: params.P, Q: params.Q, G: params.G, Y: priv.Y})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dsa public key: %w", err)
	}
	privDER, err := asn1.Marshal(dsaPrivateKeyASN1{
		Version: 0, P: params.P, Q: params.Q, G: params.G, Y: priv.Y, X: priv.X,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dsa private key: %w", err)
	}

	return buildKeypair(algo, pubDER, privDER, keyTypeDSA, pemDSAPublicKey, pemDSAPrivateKey, opts.Passphrase)
}

func loadDSA(block *pem.Block, passphrase []byte) (any, error) {
	der, isPrivate, err := decodeBlock(block, passphrase, keyTypeDSA)
	if err != nil {
		return nil, err
	}
	if !isPrivate {
		var pub dsaPublicKeyASN1
		if _, err := asn1.Unmarshal(der, &pub); err != nil {
			return nil, domain.ErrUnknownKeyType
		}
		return &dsa.PublicKey{
			Parameters: dsa.Parameters{P: pub.P, Q: pub.Q, G: pub.G},
			Y:          pub.Y,
		}, nil
	}
	var priv dsaPrivateKeyASN1
	if _, err := asn1.Unmarshal(der, &priv); err != nil {
		return nil, domain.ErrUnknownKeyType
	}
	return &dsa.PrivateKey{
		PublicKey: dsa.PublicKey{
			Parameters: dsa.Parameters{P: priv.P, Q: priv.Q, G: priv.G},
			Y:          priv.Y,
		},
		X: priv.X,
	}, nil
}

func curveByName(name string) (elliptic.Curve, error) {
	switch name {
	case "", "p384":
		return elliptic.P384(), nil
	case "p256":
		return elliptic.P256(), nil
	case "p521":
		return elliptic.P521(), nil
	default:
		return nil, domain.ErrInvalidCurve
	}
}

func generateECDSA(algo string, opts Options) (*domain.Keypair, error) {
	curve, err := curveByName(opts.Curve)
	if err != nil {
		return nil, err
	}

	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ecdsa key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ecdsa public key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ecdsa private key: %w", err)
	}

	return buildKeypair(algo, pubDER, privDER, keyTypeECDSA, pemPublicKey, pemPrivateKey, opts.Passphrase)
}

func loadECDSA(block *pem.Block, passphrase []byte) (any, error) {
	der, isPrivate, err := decodeBlock(block, passphrase, keyTypeECDSA)
	if err != nil {
		return nil, err
	}
	if !isPrivate {
		pub, err := x509.ParsePKIXPublicKey(der)
		if err != nil {
			return nil, domain.ErrUnknownKeyType
		}
		ecdsaPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return nil, domain.ErrUnknownKeyType
		}
		return ecdsaPub, nil
	}
	priv, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, domain.ErrUnknownKeyType
	}
	ecdsaPriv, ok := priv.(*ecdsa.PrivateKey)
	if !ok {
		return nil, domain.ErrUnknownKeyType
	}
	return ecdsaPriv, nil
}

// buildKeypair PEM-encodes the public DER (always clear) and the private DER
// (encrypted with passphrase when supplied), returning the Keypair the Key
// Generator contract promises.
func buildKeypair(
	algo string,
	pubDER, privDER []byte,
	keyType, pubBlockType, privBlockType string,
	passphrase []byte,
) (*domain.Keypair, error) {
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: pubBlockType, Bytes: pubDER})

	var privPEM []byte
	var err error
	if len(passphrase) > 0 {
		privPEM, err = encryptPrivatePEM(privDER, keyType, passphrase)
	} else {
		privPEM = pem.EncodeToMemory(&pem.Block{Type: privBlockType, Bytes: privDER})
	}
	if err != nil {
		return nil, err
	}

	return &domain.Keypair{
		Algorithm:     algo,
		PublicKeyPEM:  pubPEM,
		PrivateKeyPEM: privPEM,
		Passphrase:    len(passphrase) > 0,
	}, nil
}

// encryptPrivatePEM wraps der in an AES-256-GCM envelope keyed by a
// scrypt-derived key, PEM-encoding the result with the salt/nonce/key-type
// as block headers.
func encryptPrivatePEM(der []byte, keyType string, passphrase []byte) ([]byte, error) {
	salt := make([]byte, scryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate scrypt salt: %w", err)
	}

	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive scrypt key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, der, nil)

	return pem.EncodeToMemory(&pem.Block{
		Type: pemEncryptedPrivateKey,
		Headers: map[string]string{
			headerKeyType: keyType,
			headerSalt:    hex.EncodeToString(salt),
			headerNonce:   hex.EncodeToString(nonce),
		},
		Bytes: sealed,
	}), nil
}

// DecryptPrivatePEM removes passphrase protection from a private PEM block,
// returning the equivalent unprotected PEM. Used by the Keystore to satisfy
// get_private_key's contract of returning usable key bytes once the correct
// passphrase has been located among the candidates.
func DecryptPrivatePEM(pemBytes []byte, algo string, passphrase []byte) ([]byte, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, domain.ErrUnknownKeyType
	}

	keyType, privBlockType, err := keyTypeAndBlockFor(algo)
	if err != nil {
		return nil, err
	}

	der, isPrivate, err := decodeBlock(block, passphrase, keyType)
	if err != nil {
		return nil, err
	}
	if !isPrivate {
		return nil, domain.ErrUnknownKeyType
	}

	return pem.EncodeToMemory(&pem.Block{Type: privBlockType, Bytes: der}), nil
}

func keyTypeAndBlockFor(algo string) (keyType, blockType string, err error) {
	switch algo {
	case string(domain.RSAOAEP), string(domain.RSAPSS):
		return keyTypeRSA, pemPrivateKey, nil
	case string(domain.DSADSS):
		return keyTypeDSA, pemDSAPrivateKey, nil
	case string(domain.ECCDSS):
		return keyTypeECDSA, pemPrivateKey, nil
	default:
		return "", "", domain.ErrUnsupportedAlgorithm
	}
}

// decodeBlock returns the DER payload of block, decrypting it with
// passphrase first if it is an encrypted private-key block, and reports
// whether the block held a private key.
func decodeBlock(block *pem.Block, passphrase []byte, expectedKeyType string) (der []byte, isPrivate bool, err error) {
	switch block.Type {
	case pemPublicKey, pemDSAPublicKey:
		return block.Bytes, false, nil
	case pemPrivateKey, pemDSAPrivateKey:
		return block.Bytes, true, nil
	case pemEncryptedPrivateKey:
		if block.Headers[headerKeyType] != expectedKeyType {
			return nil, false, domain.ErrUnknownKeyType
		}
		der, err := decryptPrivatePEM(block, passphrase)
		return der, true, err
	default:
		return nil, false, domain.ErrUnknownKeyType
	}
}

func decryptPrivatePEM(block *pem.Block, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, domain.ErrInvalidPassphrase
	}

	salt, err := hex.DecodeString(block.Headers[headerSalt])
	if err != nil {
		return nil, domain.ErrInvalidPassphrase
	}
	nonce, err := hex.DecodeString(block.Headers[headerNonce])
	if err != nil {
		return nil, domain.ErrInvalidPassphrase
	}

	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, domain.ErrInvalidPassphrase
	}

	aesBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, domain.ErrInvalidPassphrase
	}
	gcm, err := cipher.NewGCM(aesBlock)
	if err != nil {
		return nil, domain.ErrInvalidPassphrase
	}

	der, err := gcm.Open(nil, nonce, block.Bytes, nil)
	if err != nil {
		return nil, domain.ErrInvalidPassphrase
	}
	return der, nil
}

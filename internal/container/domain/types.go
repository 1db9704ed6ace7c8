// Package domain defines the container document shapes: the on-the-wire
// Container/Stratum/Signature records and the encryption configuration tree
// a caller supplies to describe the desired onion before any ciphertext
// exists.
package domain

import (
	"github.com/google/uuid"

	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
)

// ContainerFormat is the version tag this engine produces and accepts.
const ContainerFormat = "WA_0.1a"

// EscrowDescriptor is either the literal string
// escrow.LocalEscrowPlaceholder, or a map {"url": "..."} naming a remote
// JSON-RPC escrow. Represented loosely (not a concrete struct) because it
// round-trips through CBOR as whichever shape the caller supplied.
type EscrowDescriptor any

// KeyEncryptionStratumConf describes one layer of a key-wrapping
// sub-pipeline before any ciphertext exists: which asymmetric algorithm
// wraps the key, and which escrow holds the matching private key.
type KeyEncryptionStratumConf struct {
	KeyEncryptionAlgo cryptoDomain.AsymmetricAlgorithm `json:"key_encryption_algo"`
	KeyEscrow         EscrowDescriptor                 `json:"key_escrow"`
}

// SignatureConf describes one signature a data stratum must carry.
type SignatureConf struct {
	SignatureAlgo   cryptoDomain.SignatureAlgorithm `json:"signature_algo"`
	SignatureEscrow EscrowDescriptor                `json:"signature_escrow"`
}

// DataEncryptionStratumConf describes one layer of the onion before any
// ciphertext exists: the symmetric algorithm, the sub-pipeline that wraps
// its key, and the signatures to attach.
type DataEncryptionStratumConf struct {
	DataEncryptionAlgo  cryptoDomain.SymmetricAlgorithm `json:"data_encryption_algo"`
	KeyEncryptionStrata []KeyEncryptionStratumConf      `json:"key_encryption_strata"`
	DataSignatures      []SignatureConf                 `json:"data_signatures"`
}

// EncryptionConf is the configuration tree a caller supplies alongside raw
// data: the ordered strata to apply, outermost first (matching the
// Container's own field order).
type EncryptionConf struct {
	DataEncryptionStrata []DataEncryptionStratumConf `json:"data_encryption_strata"`
}

// KeyEncryptionStratum is one produced layer of a key-wrapping
// sub-pipeline, carrying the same descriptive fields as its Conf plus no
// ciphertext of its own: the wrapped bytes chain through the enclosing
// Stratum.KeyCiphertext, re-serialized at each layer (see engine.go).
type KeyEncryptionStratum struct {
	KeyEncryptionAlgo cryptoDomain.AsymmetricAlgorithm
	KeyEscrow         EscrowDescriptor
}

// SignatureEntry is one produced signature record attached to a data
// stratum.
type SignatureEntry struct {
	SignatureKeyType cryptoDomain.SignatureAlgorithm
	SignatureAlgo    cryptoDomain.SignatureAlgorithm
	SignatureEscrow  EscrowDescriptor
	SignatureValue   cryptoDomain.Signature
}

// Stratum is one layer of the onion: one symmetric encryption plus its
// key-wrap pipeline and signatures.
type Stratum struct {
	DataEncryptionAlgo  cryptoDomain.SymmetricAlgorithm
	KeyCiphertext       []byte
	KeyEncryptionStrata []KeyEncryptionStratum
	DataSignatures      []SignatureEntry
}

// Container is the self-describing document produced by encryption and
// consumed by decryption.
type Container struct {
	ContainerFormat      string
	ContainerUID         uuid.UUID
	KeychainUID          cryptoDomain.KeychainUID
	DataCiphertext       []byte
	DataEncryptionStrata []Stratum
}

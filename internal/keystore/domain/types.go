// Package domain defines the Keystore's bound-keypair persistence shape and
// error taxonomy.
package domain

import (
	"time"

	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
)

// BoundKeypair is a keypair bound to a specific (KeychainUID, Algorithm)
// pair, the row shape the SQL repositories persist.
type BoundKeypair struct {
	KeychainUID   cryptoDomain.KeychainUID
	Algorithm     string
	PublicKeyPEM  []byte
	PrivateKeyPEM []byte
	Passphrase    bool
	CreatedAt     time.Time
}

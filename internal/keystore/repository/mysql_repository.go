package repository

import (
	"context"
	"database/sql"

	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	apperrors "github.com/containervault/containervault/internal/errors"
	keystoreDomain "github.com/containervault/containervault/internal/keystore/domain"
)

// MySQLRepository implements bound-keypair persistence for MySQL, using
// BINARY(16) for the keychain UID (MySQL has no native UUID type) marshaled
// via uuid.MarshalBinary/UnmarshalBinary.
type MySQLRepository struct {
	db *sql.DB
}

// NewMySQLRepository creates a new MySQL bound-keypair repository.
func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

// Create inserts a new bound keypair, failing with ErrKeyAlreadyExists if the
// (keychain_uid, algorithm) pair is already present.
func (m *MySQLRepository) Create(ctx context.Context, kp *keystoreDomain.BoundKeypair) error {
	idBinary, err := kp.KeychainUID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal keychain uid")
	}

	query := `INSERT IGNORE INTO bound_keypairs
		(keychain_uid, algorithm, public_key_pem, private_key_pem, passphrase, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	result, err := m.db.ExecContext(
		ctx, query,
		idBinary, kp.Algorithm, kp.PublicKeyPEM, kp.PrivateKeyPEM, kp.Passphrase, kp.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create bound keypair")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check bound keypair insert")
	}
	if rows == 0 {
		return keystoreDomain.ErrKeyAlreadyExists
	}
	return nil
}

// Get retrieves the bound keypair for (keychainUID, algorithm), returning
// ErrKeyDoesNotExist on a miss.
func (m *MySQLRepository) Get(
	ctx context.Context,
	keychainUID cryptoDomain.KeychainUID, algorithm string,
) (*keystoreDomain.BoundKeypair, error) {
	idBinary, err := keychainUID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal keychain uid")
	}

	query := `SELECT keychain_uid, algorithm, public_key_pem, private_key_pem, passphrase, created_at
		FROM bound_keypairs WHERE keychain_uid = ? AND algorithm = ?`

	var kp keystoreDomain.BoundKeypair
	var rawID []byte
	err = m.db.QueryRowContext(ctx, query, idBinary, algorithm).Scan(
		&rawID, &kp.Algorithm, &kp.PublicKeyPEM, &kp.PrivateKeyPEM, &kp.Passphrase, &kp.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, keystoreDomain.ErrKeyDoesNotExist
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get bound keypair")
	}

	var id cryptoDomain.KeychainUID
	if err := id.UnmarshalBinary(rawID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal keychain uid")
	}
	kp.KeychainUID = id

	return &kp, nil
}

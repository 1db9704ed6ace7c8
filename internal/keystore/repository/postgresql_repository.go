// Package repository implements bound-keypair persistence for PostgreSQL
// and MySQL. Each operation is a single statement, so the repositories work
// directly against their *sql.DB; the backends differ only in placeholder
// syntax and native-UUID-vs-BINARY(16) handling.
package repository

import (
	"context"
	"database/sql"

	cryptoDomain "github.com/containervault/containervault/internal/cryptocore/domain"
	apperrors "github.com/containervault/containervault/internal/errors"
	keystoreDomain "github.com/containervault/containervault/internal/keystore/domain"
)

// PostgreSQLRepository implements bound-keypair persistence for PostgreSQL,
// using native UUID and BYTEA types.
type PostgreSQLRepository struct {
	db *sql.DB
}

// NewPostgreSQLRepository creates a new PostgreSQL bound-keypair repository.
func NewPostgreSQLRepository(db *sql.DB) *PostgreSQLRepository {
	return &PostgreSQLRepository{db: db}
}

// Create inserts a new bound keypair, failing with ErrKeyAlreadyExists if the
// (keychain_uid, algorithm) pair is already present.
func (p *PostgreSQLRepository) Create(ctx context.Context, kp *keystoreDomain.BoundKeypair) error {
	query := `INSERT INTO bound_keypairs
		(keychain_uid, algorithm, public_key_pem, private_key_pem, passphrase, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (keychain_uid, algorithm) DO NOTHING`

	result, err := p.db.ExecContext(
		ctx, query,
		kp.KeychainUID, kp.Algorithm, kp.PublicKeyPEM, kp.PrivateKeyPEM, kp.Passphrase, kp.CreatedAt,
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
func (p *PostgreSQLRepository) Get(
	ctx context.Context,
	keychainUID cryptoDomain.KeychainUID, algorithm string,
) (*keystoreDomain.BoundKeypair, error) {
	query := `SELECT keychain_uid, algorithm, public_key_pem, private_key_pem, passphrase, created_at
		FROM bound_keypairs WHERE keychain_uid = $1 AND algorithm = $2`

	var kp keystoreDomain.BoundKeypair
	err := p.db.QueryRowContext(ctx, query, keychainUID, algorithm).Scan(
		&kp.KeychainUID, &kp.Algorithm, &kp.PublicKeyPEM, &kp.PrivateKeyPEM, &kp.Passphrase, &kp.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, keystoreDomain.ErrKeyDoesNotExist
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get bound keypair")
	}
	return &kp, nil
}

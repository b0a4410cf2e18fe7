package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"brickshare/internal/compliance/models"
	"brickshare/pkg/domain"
	"brickshare/pkg/platform/sentinel"
)

// PostgresStore persists compliance state in PostgreSQL. Mutations run in
// one transaction so a failed operation leaves no partial application behind.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed compliance store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindInvestor(ctx context.Context, wallet domain.AccountID) (*models.InvestorRecord, error) {
	var r models.InvestorRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT wallet, level, verification_date, expiration_date, is_active, verification_hash, updated_at
		FROM investors WHERE wallet = $1`, wallet,
	).Scan(&r.Wallet, &r.Level, &r.VerificationDate, &r.ExpirationDate, &r.IsActive, &r.VerificationHash, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find investor: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) IsBlacklisted(ctx context.Context, wallet domain.AccountID) (bool, error) {
	var listed bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM blacklist WHERE wallet = $1)`, wallet).Scan(&listed)
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return listed, nil
}

func (s *PostgresStore) IsCountryRestricted(ctx context.Context, code string) (bool, error) {
	var restricted bool
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT restricted FROM country_restrictions WHERE code = $1), FALSE)`,
		code).Scan(&restricted)
	if err != nil {
		return false, fmt.Errorf("country restriction lookup: %w", err)
	}
	return restricted, nil
}

func (s *PostgresStore) HasRole(ctx context.Context, account domain.AccountID, role models.Role) (bool, error) {
	var granted bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM role_grants WHERE account = $1 AND role = $2)`,
		account, role).Scan(&granted)
	if err != nil {
		return false, fmt.Errorf("role lookup: %w", err)
	}
	return granted, nil
}

func (s *PostgresStore) Paused(ctx context.Context) (bool, error) {
	var paused bool
	err := s.db.QueryRowContext(ctx, `SELECT paused FROM registry_state`).Scan(&paused)
	if err != nil {
		return false, fmt.Errorf("registry state: %w", err)
	}
	return paused, nil
}

func (s *PostgresStore) Apply(ctx context.Context, mutation models.Mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin compliance mutation: %w", err)
	}
	defer tx.Rollback()

	for _, record := range mutation.Investors {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO investors (wallet, level, verification_date, expiration_date, is_active, verification_hash, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (wallet) DO UPDATE SET
				level             = EXCLUDED.level,
				verification_date = EXCLUDED.verification_date,
				expiration_date   = EXCLUDED.expiration_date,
				is_active         = EXCLUDED.is_active,
				verification_hash = EXCLUDED.verification_hash,
				updated_at        = now()`,
			record.Wallet, record.Level, record.VerificationDate, record.ExpirationDate,
			record.IsActive, record.VerificationHash,
		)
		if err != nil {
			return fmt.Errorf("upsert investor: %w", err)
		}
	}

	for _, entry := range mutation.Blacklist {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO blacklist (wallet, reason, listed_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (wallet) DO UPDATE SET reason = EXCLUDED.reason`,
			entry.Wallet, entry.Reason, entry.ListedAt,
		)
		if err != nil {
			return fmt.Errorf("blacklist wallet: %w", err)
		}
	}
	for _, wallet := range mutation.Unblacklist {
		if _, err := tx.ExecContext(ctx, `DELETE FROM blacklist WHERE wallet = $1`, wallet); err != nil {
			return fmt.Errorf("unblacklist wallet: %w", err)
		}
	}

	for code, restricted := range mutation.Countries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO country_restrictions (code, restricted)
			VALUES ($1, $2)
			ON CONFLICT (code) DO UPDATE SET restricted = EXCLUDED.restricted`,
			code, restricted,
		)
		if err != nil {
			return fmt.Errorf("update country restriction: %w", err)
		}
	}

	for _, grant := range mutation.Grants {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO role_grants (account, role)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			grant.Account, grant.Role,
		)
		if err != nil {
			return fmt.Errorf("grant role: %w", err)
		}
	}
	for _, grant := range mutation.Revocations {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM role_grants WHERE account = $1 AND role = $2`,
			grant.Account, grant.Role)
		if err != nil {
			return fmt.Errorf("revoke role: %w", err)
		}
	}

	if mutation.Paused != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE registry_state SET paused = $1`, *mutation.Paused); err != nil {
			return fmt.Errorf("update registry state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit compliance mutation: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"brickshare/internal/ledger/models"
	"brickshare/pkg/domain"
	"brickshare/pkg/platform/sentinel"
)

// PostgresStore persists ledger state in PostgreSQL. Mutations run in one
// transaction so a failed operation leaves no partial application behind.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const assetColumns = `id, total_shares, available_shares, price_per_share, metadata_uri, active, updated_at`

func scanAsset(row interface{ Scan(...any) error }) (*models.Asset, error) {
	var a models.Asset
	err := row.Scan(&a.ID, &a.TotalShares, &a.AvailableShares, &a.PricePerShare, &a.MetadataURI, &a.Active, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) FindAsset(ctx context.Context, id domain.AssetID) (*models.Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find asset %d: %w", id, err)
	}
	return asset, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context) ([]*models.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []*models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, asset)
	}
	return out, rows.Err()
}

func (s *PostgresStore) NextAssetID(ctx context.Context) (domain.AssetID, error) {
	var max uint64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM assets`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("next asset id: %w", err)
	}
	return domain.AssetID(max + 1), nil
}

func (s *PostgresStore) Holding(ctx context.Context, owner domain.AccountID, assetID domain.AssetID) (models.Holding, error) {
	var h models.Holding
	err := s.db.QueryRowContext(ctx,
		`SELECT spendable, locked FROM holdings WHERE owner = $1 AND asset_id = $2`,
		owner, assetID,
	).Scan(&h.Spendable, &h.Locked)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Holding{}, nil
	}
	if err != nil {
		return models.Holding{}, fmt.Errorf("find holding: %w", err)
	}
	return h, nil
}

func (s *PostgresStore) HoldingsByOwner(ctx context.Context, owner domain.AccountID) (map[domain.AssetID]models.Holding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_id, spendable, locked FROM holdings WHERE owner = $1`, owner)
	if err != nil {
		return nil, fmt.Errorf("holdings by owner: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.AssetID]models.Holding)
	for rows.Next() {
		var id domain.AssetID
		var h models.Holding
		if err := rows.Scan(&id, &h.Spendable, &h.Locked); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out[id] = h
	}
	return out, rows.Err()
}

func (s *PostgresStore) HoldingsByAsset(ctx context.Context, assetID domain.AssetID) (map[domain.AccountID]models.Holding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner, spendable, locked FROM holdings WHERE asset_id = $1`, assetID)
	if err != nil {
		return nil, fmt.Errorf("holdings by asset: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.AccountID]models.Holding)
	for rows.Next() {
		var owner domain.AccountID
		var h models.Holding
		if err := rows.Scan(&owner, &h.Spendable, &h.Locked); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out[owner] = h
	}
	return out, rows.Err()
}

func (s *PostgresStore) Pool(ctx context.Context) (uint64, error) {
	var balance uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM pools WHERE component = 'ledger'`).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("ledger pool: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) Apply(ctx context.Context, mutation models.Mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger mutation: %w", err)
	}
	defer tx.Rollback()

	for _, asset := range mutation.Assets {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO assets (id, total_shares, available_shares, price_per_share, metadata_uri, active, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (id) DO UPDATE SET
				available_shares = EXCLUDED.available_shares,
				price_per_share  = EXCLUDED.price_per_share,
				metadata_uri     = EXCLUDED.metadata_uri,
				active           = EXCLUDED.active,
				updated_at       = now()`,
			asset.ID, asset.TotalShares, asset.AvailableShares, asset.PricePerShare, asset.MetadataURI, asset.Active,
		)
		if err != nil {
			return fmt.Errorf("upsert asset %d: %w", asset.ID, err)
		}
	}

	for _, rec := range mutation.Holdings {
		if rec.Holding.IsZero() {
			_, err := tx.ExecContext(ctx,
				`DELETE FROM holdings WHERE owner = $1 AND asset_id = $2`,
				rec.Owner, rec.AssetID)
			if err != nil {
				return fmt.Errorf("clear holding: %w", err)
			}
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO holdings (owner, asset_id, spendable, locked)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (owner, asset_id) DO UPDATE SET
				spendable = EXCLUDED.spendable,
				locked    = EXCLUDED.locked`,
			rec.Owner, rec.AssetID, rec.Holding.Spendable, rec.Holding.Locked,
		)
		if err != nil {
			return fmt.Errorf("upsert holding: %w", err)
		}
	}

	if mutation.Pool != nil {
		_, err := tx.ExecContext(ctx,
			`UPDATE pools SET balance = $1 WHERE component = 'ledger'`, *mutation.Pool)
		if err != nil {
			return fmt.Errorf("update ledger pool: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger mutation: %w", err)
	}
	return nil
}

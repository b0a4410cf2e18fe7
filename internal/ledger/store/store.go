// Package store persists share ledger state. Implementations must apply a
// Mutation atomically: either every asset, holding, and pool write lands, or
// none do.
package store

import (
	"context"

	"brickshare/internal/ledger/models"
	"brickshare/pkg/domain"
)

// Store is the ledger persistence contract. Reads return sentinel.ErrNotFound
// (possibly wrapped) for missing assets; holdings read as zero when absent.
type Store interface {
	FindAsset(ctx context.Context, id domain.AssetID) (*models.Asset, error)
	ListAssets(ctx context.Context) ([]*models.Asset, error)
	// NextAssetID returns the id the next created asset will take.
	// Serialized execution makes read-then-apply race-free.
	NextAssetID(ctx context.Context) (domain.AssetID, error)

	Holding(ctx context.Context, owner domain.AccountID, assetID domain.AssetID) (models.Holding, error)
	HoldingsByOwner(ctx context.Context, owner domain.AccountID) (map[domain.AssetID]models.Holding, error)
	HoldingsByAsset(ctx context.Context, assetID domain.AssetID) (map[domain.AccountID]models.Holding, error)

	Pool(ctx context.Context) (uint64, error)

	Apply(ctx context.Context, mutation models.Mutation) error
}

// Package store persists compliance registry state. Implementations must
// apply a Mutation atomically.
package store

import (
	"context"

	"brickshare/internal/compliance/models"
	"brickshare/pkg/domain"
)

// Store is the compliance persistence contract. FindInvestor returns
// sentinel.ErrNotFound (possibly wrapped) for unknown wallets.
type Store interface {
	FindInvestor(ctx context.Context, wallet domain.AccountID) (*models.InvestorRecord, error)
	IsBlacklisted(ctx context.Context, wallet domain.AccountID) (bool, error)
	IsCountryRestricted(ctx context.Context, code string) (bool, error)
	HasRole(ctx context.Context, account domain.AccountID, role models.Role) (bool, error)
	Paused(ctx context.Context) (bool, error)

	Apply(ctx context.Context, mutation models.Mutation) error
}

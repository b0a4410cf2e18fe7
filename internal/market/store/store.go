// Package store persists marketplace state. Implementations must apply a
// Mutation atomically: either every listing, auction, and pool write lands,
// or none do.
package store

import (
	"context"

	"brickshare/internal/market/models"
	"brickshare/pkg/domain"
)

// Store is the marketplace persistence contract. Reads return
// sentinel.ErrNotFound (possibly wrapped) for missing records.
type Store interface {
	FindListing(ctx context.Context, id domain.ListingID) (*models.Listing, error)
	ListListings(ctx context.Context) ([]*models.Listing, error)
	ListingsBySeller(ctx context.Context, seller domain.AccountID) ([]*models.Listing, error)
	// NextListingID returns the id the next created listing will take.
	// Serialized execution makes read-then-apply race-free.
	NextListingID(ctx context.Context) (domain.ListingID, error)

	FindAuction(ctx context.Context, id domain.AuctionID) (*models.Auction, error)
	ListAuctions(ctx context.Context) ([]*models.Auction, error)
	NextAuctionID(ctx context.Context) (domain.AuctionID, error)

	Pool(ctx context.Context) (uint64, error)

	Apply(ctx context.Context, mutation models.Mutation) error
}

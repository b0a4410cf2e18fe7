package store

import (
	"context"
	"sync"

	"brickshare/internal/market/models"
	"brickshare/pkg/domain"
	"brickshare/pkg/platform/sentinel"
)

// MemoryStore keeps marketplace state in maps. It is the authoritative store
// for tests and broker-less deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	listings map[domain.ListingID]*models.Listing
	auctions map[domain.AuctionID]*models.Auction
	pool     uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: make(map[domain.ListingID]*models.Listing),
		auctions: make(map[domain.AuctionID]*models.Auction),
	}
}

func (s *MemoryStore) FindListing(_ context.Context, id domain.ListingID) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	listing, ok := s.listings[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return listing.Clone(), nil
}

func (s *MemoryStore) ListListings(_ context.Context) ([]*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Listing, 0, len(s.listings))
	for _, listing := range s.listings {
		out = append(out, listing.Clone())
	}
	return out, nil
}

func (s *MemoryStore) ListingsBySeller(_ context.Context, seller domain.AccountID) ([]*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Listing
	for _, listing := range s.listings {
		if listing.Seller == seller {
			out = append(out, listing.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) NextListingID(_ context.Context) (domain.ListingID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max domain.ListingID
	for id := range s.listings {
		if id > max {
			max = id
		}
	}
	return max + 1, nil
}

func (s *MemoryStore) FindAuction(_ context.Context, id domain.AuctionID) (*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	auction, ok := s.auctions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return auction.Clone(), nil
}

func (s *MemoryStore) ListAuctions(_ context.Context) ([]*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Auction, 0, len(s.auctions))
	for _, auction := range s.auctions {
		out = append(out, auction.Clone())
	}
	return out, nil
}

func (s *MemoryStore) NextAuctionID(_ context.Context) (domain.AuctionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max domain.AuctionID
	for id := range s.auctions {
		if id > max {
			max = id
		}
	}
	return max + 1, nil
}

func (s *MemoryStore) Pool(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool, nil
}

func (s *MemoryStore) Apply(_ context.Context, mutation models.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, listing := range mutation.Listings {
		s.listings[listing.ID] = listing.Clone()
	}
	for _, auction := range mutation.Auctions {
		s.auctions[auction.ID] = auction.Clone()
	}
	if mutation.Pool != nil {
		s.pool = *mutation.Pool
	}
	return nil
}

package store

import (
	"context"
	"sync"

	"brickshare/internal/ledger/models"
	"brickshare/pkg/domain"
	"brickshare/pkg/platform/sentinel"
)

// MemoryStore keeps ledger state in maps. It is the authoritative store for
// tests and broker-less deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	assets   map[domain.AssetID]*models.Asset
	holdings map[domain.AccountID]map[domain.AssetID]models.Holding
	pool     uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assets:   make(map[domain.AssetID]*models.Asset),
		holdings: make(map[domain.AccountID]map[domain.AssetID]models.Holding),
	}
}

func (s *MemoryStore) FindAsset(_ context.Context, id domain.AssetID) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.assets[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return asset.Clone(), nil
}

func (s *MemoryStore) ListAssets(_ context.Context) ([]*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Asset, 0, len(s.assets))
	for _, asset := range s.assets {
		out = append(out, asset.Clone())
	}
	return out, nil
}

func (s *MemoryStore) NextAssetID(_ context.Context) (domain.AssetID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max domain.AssetID
	for id := range s.assets {
		if id > max {
			max = id
		}
	}
	return max + 1, nil
}

func (s *MemoryStore) Holding(_ context.Context, owner domain.AccountID, assetID domain.AssetID) (models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.holdings[owner][assetID], nil
}

func (s *MemoryStore) HoldingsByOwner(_ context.Context, owner domain.AccountID) (map[domain.AssetID]models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.AssetID]models.Holding, len(s.holdings[owner]))
	for id, h := range s.holdings[owner] {
		out[id] = h
	}
	return out, nil
}

func (s *MemoryStore) HoldingsByAsset(_ context.Context, assetID domain.AssetID) (map[domain.AccountID]models.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.AccountID]models.Holding)
	for owner, byAsset := range s.holdings {
		if h, ok := byAsset[assetID]; ok && !h.IsZero() {
			out[owner] = h
		}
	}
	return out, nil
}

func (s *MemoryStore) Pool(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool, nil
}

func (s *MemoryStore) Apply(_ context.Context, mutation models.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, asset := range mutation.Assets {
		s.assets[asset.ID] = asset.Clone()
	}
	for _, rec := range mutation.Holdings {
		byAsset, ok := s.holdings[rec.Owner]
		if !ok {
			byAsset = make(map[domain.AssetID]models.Holding)
			s.holdings[rec.Owner] = byAsset
		}
		if rec.Holding.IsZero() {
			delete(byAsset, rec.AssetID)
			continue
		}
		byAsset[rec.AssetID] = rec.Holding
	}
	if mutation.Pool != nil {
		s.pool = *mutation.Pool
	}
	return nil
}

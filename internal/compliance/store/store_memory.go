package store

import (
	"context"
	"sync"

	"brickshare/internal/compliance/models"
	"brickshare/pkg/domain"
	"brickshare/pkg/platform/sentinel"
)

// MemoryStore keeps compliance state in maps. It is the authoritative store
// for tests and broker-less deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	investors map[domain.AccountID]*models.InvestorRecord
	blacklist map[domain.AccountID]*models.BlacklistEntry
	countries map[string]bool
	roles     map[domain.AccountID]map[models.Role]struct{}
	paused    bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		investors: make(map[domain.AccountID]*models.InvestorRecord),
		blacklist: make(map[domain.AccountID]*models.BlacklistEntry),
		countries: make(map[string]bool),
		roles:     make(map[domain.AccountID]map[models.Role]struct{}),
	}
}

func (s *MemoryStore) FindInvestor(_ context.Context, wallet domain.AccountID) (*models.InvestorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.investors[wallet]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *MemoryStore) IsBlacklisted(_ context.Context, wallet domain.AccountID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blacklist[wallet]
	return ok, nil
}

func (s *MemoryStore) IsCountryRestricted(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countries[code], nil
}

func (s *MemoryStore) HasRole(_ context.Context, account domain.AccountID, role models.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roles[account][role]
	return ok, nil
}

func (s *MemoryStore) Paused(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused, nil
}

func (s *MemoryStore) Apply(_ context.Context, mutation models.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range mutation.Investors {
		s.investors[record.Wallet] = record.Clone()
	}
	for _, entry := range mutation.Blacklist {
		c := *entry
		s.blacklist[entry.Wallet] = &c
	}
	for _, wallet := range mutation.Unblacklist {
		delete(s.blacklist, wallet)
	}
	for code, restricted := range mutation.Countries {
		if restricted {
			s.countries[code] = true
		} else {
			delete(s.countries, code)
		}
	}
	for _, grant := range mutation.Grants {
		byRole, ok := s.roles[grant.Account]
		if !ok {
			byRole = make(map[models.Role]struct{})
			s.roles[grant.Account] = byRole
		}
		byRole[grant.Role] = struct{}{}
	}
	for _, grant := range mutation.Revocations {
		delete(s.roles[grant.Account], grant.Role)
	}
	if mutation.Paused != nil {
		s.paused = *mutation.Paused
	}
	return nil
}

package store

import (
	"context"
	"sync"

	"brickshare/internal/governance/models"
	"brickshare/pkg/domain"
	"brickshare/pkg/platform/sentinel"
)

// MemoryStore keeps governance state in maps. It is the authoritative store
// for tests and broker-less deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	proposals map[domain.ProposalID]*models.Proposal
	votes     map[domain.ProposalID]map[domain.AccountID]*models.VoteRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		proposals: make(map[domain.ProposalID]*models.Proposal),
		votes:     make(map[domain.ProposalID]map[domain.AccountID]*models.VoteRecord),
	}
}

func (s *MemoryStore) FindProposal(_ context.Context, id domain.ProposalID) (*models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposal, ok := s.proposals[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return proposal.Clone(), nil
}

func (s *MemoryStore) ProposalsByAsset(_ context.Context, assetID domain.AssetID) ([]*models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Proposal
	for _, proposal := range s.proposals {
		if proposal.AssetID == assetID {
			out = append(out, proposal.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) NextProposalID(_ context.Context) (domain.ProposalID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max domain.ProposalID
	for id := range s.proposals {
		if id > max {
			max = id
		}
	}
	return max + 1, nil
}

func (s *MemoryStore) FindVote(_ context.Context, proposalID domain.ProposalID, voter domain.AccountID) (*models.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[proposalID][voter]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *vote
	return &c, nil
}

func (s *MemoryStore) Apply(_ context.Context, mutation models.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, proposal := range mutation.Proposals {
		s.proposals[proposal.ID] = proposal.Clone()
	}
	for _, vote := range mutation.Votes {
		byVoter, ok := s.votes[vote.ProposalID]
		if !ok {
			byVoter = make(map[domain.AccountID]*models.VoteRecord)
			s.votes[vote.ProposalID] = byVoter
		}
		c := *vote
		byVoter[vote.Voter] = &c
	}
	return nil
}

// Package store persists governance state. Implementations must apply a
// Mutation atomically: either every proposal and vote write lands, or none
// do.
package store

import (
	"context"

	"brickshare/internal/governance/models"
	"brickshare/pkg/domain"
)

// Store is the governance persistence contract. FindProposal returns
// sentinel.ErrNotFound (possibly wrapped) for missing proposals; FindVote
// returns it when the voter has not voted on the proposal.
type Store interface {
	FindProposal(ctx context.Context, id domain.ProposalID) (*models.Proposal, error)
	ProposalsByAsset(ctx context.Context, assetID domain.AssetID) ([]*models.Proposal, error)
	// NextProposalID returns the id the next created proposal will take.
	// Serialized execution makes read-then-apply race-free.
	NextProposalID(ctx context.Context) (domain.ProposalID, error)

	FindVote(ctx context.Context, proposalID domain.ProposalID, voter domain.AccountID) (*models.VoteRecord, error)

	Apply(ctx context.Context, mutation models.Mutation) error
}

//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"brickshare/internal/governance/models"
	"brickshare/internal/governance/store"
	ledgerModels "brickshare/internal/ledger/models"
	ledgerStore "brickshare/internal/ledger/store"
	"brickshare/pkg/platform/sentinel"
	"brickshare/pkg/testutil/containers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresGovernanceStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	st := store.NewPostgres(pg.DB)
	ctx := context.Background()

	require.NoError(t, ledgerStore.NewPostgres(pg.DB).Apply(ctx, ledgerModels.Mutation{
		Assets: []*ledgerModels.Asset{{
			ID: 1, TotalShares: 1000, AvailableShares: 1000, PricePerShare: 10,
			MetadataURI: "ipfs://meta/1", Active: true, UpdatedAt: time.Now().UTC(),
		}},
	}))

	proposal := &models.Proposal{
		ID:             1,
		AssetID:        1,
		Proposer:       "proposer",
		Title:          "Repair the roof",
		Description:    "Replace storm-damaged tiles",
		Amount:         5000,
		Type:           models.ProposalTypeMaintenance,
		VotingDeadline: time.Now().Add(7 * 24 * time.Hour).UTC(),
		Status:         models.StatusActive,
	}

	t.Run("proposal round trip", func(t *testing.T) {
		require.NoError(t, st.Apply(ctx, models.Mutation{Proposals: []*models.Proposal{proposal}}))

		got, err := st.FindProposal(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, got.Status)
		assert.Equal(t, models.ProposalTypeMaintenance, got.Type)

		byAsset, err := st.ProposalsByAsset(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, byAsset, 1)
	})

	t.Run("vote insert and lookup", func(t *testing.T) {
		_, err := st.FindVote(ctx, 1, "voter")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		proposal.YesVotes = 100
		require.NoError(t, st.Apply(ctx, models.Mutation{
			Proposals: []*models.Proposal{proposal},
			Votes: []*models.VoteRecord{{
				ProposalID: 1, Voter: "voter", Support: true, Weight: 100, VotedAt: time.Now().UTC(),
			}},
		}))

		vote, err := st.FindVote(ctx, 1, "voter")
		require.NoError(t, err)
		assert.True(t, vote.Support)
		assert.Equal(t, uint64(100), vote.Weight)

		got, err := st.FindProposal(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), got.YesVotes)
	})

	t.Run("execution fields update through upsert", func(t *testing.T) {
		proposal.Status = models.StatusApproved
		proposal.Executed = true
		require.NoError(t, st.Apply(ctx, models.Mutation{Proposals: []*models.Proposal{proposal}}))

		got, err := st.FindProposal(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, got.Status)
		assert.True(t, got.Executed)
	})
}

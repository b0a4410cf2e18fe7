package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"brickshare/internal/governance/models"
	"brickshare/internal/governance/store"
	ledgerService "brickshare/internal/ledger/service"
	ledgerStore "brickshare/internal/ledger/store"
	"brickshare/pkg/domain"
	dErrors "brickshare/pkg/domain-errors"
	"brickshare/pkg/platform/events"
	"brickshare/pkg/requestcontext"

	"github.com/stretchr/testify/suite"
)

const (
	owner    = domain.AccountID("owner")
	proposer = domain.AccountID("proposer")
	holder   = domain.AccountID("holder")
	stranger = domain.AccountID("stranger")
)

type GovernanceServiceSuite struct {
	suite.Suite
	ledger   *ledgerService.Service
	recorder *events.Recorder
	service  *Service
	assetID  domain.AssetID
	start    time.Time
}

func TestGovernanceServiceSuite(t *testing.T) {
	suite.Run(t, new(GovernanceServiceSuite))
}

func (s *GovernanceServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.recorder = events.NewRecorder()
	s.ledger = ledgerService.NewService(ledgerStore.NewMemoryStore(), s.recorder, logger, owner)
	s.service = NewService(store.NewMemoryStore(), s.ledger, s.recorder, logger, owner)
	s.start = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	// Asset of 1000 shares; proposer holds 100 (10%), holder 200 (20%).
	ctx := s.at(0)
	asset, err := s.ledger.CreateAsset(ctx, owner, 1000, 10, "ipfs://meta/1")
	s.Require().NoError(err)
	s.assetID = asset.ID
	_, err = s.ledger.PurchaseShares(ctx, proposer, s.assetID, 100, 1000)
	s.Require().NoError(err)
	_, err = s.ledger.PurchaseShares(ctx, holder, s.assetID, 200, 2000)
	s.Require().NoError(err)
}

// at returns a context whose clock is offset from the suite start time.
func (s *GovernanceServiceSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.start.Add(offset))
}

func (s *GovernanceServiceSuite) propose(ctx context.Context) *models.Proposal {
	proposal, err := s.service.CreateProposal(ctx, proposer, s.assetID,
		"Repair the roof", "Replace storm-damaged tiles", 5000, models.ProposalTypeMaintenance, 7)
	s.Require().NoError(err)
	return proposal
}

func (s *GovernanceServiceSuite) TestCreateProposal() {
	ctx := s.at(0)

	s.Run("holder above the threshold may propose", func() {
		proposal := s.propose(ctx)
		s.Equal(domain.ProposalID(1), proposal.ID)
		s.Equal(models.StatusActive, proposal.Status)
		s.Equal(s.start.Add(7*24*time.Hour), proposal.VotingDeadline)

		last := s.recorder.Last()
		s.Require().NotNil(last)
		s.Equal(events.EventProposalCreated, last.Name)
	})

	s.Run("empty title and description rejected in order", func() {
		_, err := s.service.CreateProposal(ctx, proposer, s.assetID, "", "", 0, models.ProposalTypeOther, 7)
		s.Equal("Title cannot be empty", dErrors.Reason(err))
		_, err = s.service.CreateProposal(ctx, proposer, s.assetID, "t", "", 0, models.ProposalTypeOther, 7)
		s.Equal("Description cannot be empty", dErrors.Reason(err))
	})

	s.Run("voting period bounds", func() {
		_, err := s.service.CreateProposal(ctx, proposer, s.assetID, "t", "d", 0, models.ProposalTypeOther, 2)
		s.Equal("Invalid voting period", dErrors.Reason(err))
		_, err = s.service.CreateProposal(ctx, proposer, s.assetID, "t", "d", 0, models.ProposalTypeOther, 15)
		s.Equal("Invalid voting period", dErrors.Reason(err))
		_, err = s.service.CreateProposal(ctx, proposer, s.assetID, "t", "d", 0, models.ProposalTypeOther, 3)
		s.NoError(err)
		_, err = s.service.CreateProposal(ctx, proposer, s.assetID, "t", "d", 0, models.ProposalTypeOther, 14)
		s.NoError(err)
	})

	s.Run("non-holder rejected", func() {
		_, err := s.service.CreateProposal(ctx, stranger, s.assetID, "t", "d", 0, models.ProposalTypeOther, 7)
		s.Equal("No shares owned", dErrors.Reason(err))
	})

	s.Run("holder below the threshold rejected", func() {
		// Raise the bar above the proposer's 10% stake.
		s.Require().NoError(s.service.UpdateProposalThreshold(ctx, owner, 1000))
		sub := domain.AccountID("small-holder")
		_, err := s.ledger.PurchaseShares(ctx, sub, s.assetID, 5, 50)
		s.Require().NoError(err)

		_, err = s.service.CreateProposal(ctx, sub, s.assetID, "t", "d", 0, models.ProposalTypeOther, 7)
		s.Equal("Not enough shares to create proposal", dErrors.Reason(err))
		s.Require().NoError(s.service.UpdateProposalThreshold(ctx, owner, DefaultProposalThresholdBps))
	})
}

func (s *GovernanceServiceSuite) TestCastVote() {
	proposal := s.propose(s.at(0))

	s.Run("weight is the balance at vote time", func() {
		s.Require().NoError(s.service.CastVote(s.at(time.Hour), proposer, proposal.ID, true))

		got, err := s.service.GetProposal(context.Background(), proposal.ID)
		s.Require().NoError(err)
		s.Equal(uint64(100), got.YesVotes)

		vote, err := s.service.GetVote(context.Background(), proposal.ID, proposer)
		s.Require().NoError(err)
		s.True(vote.Support)
		s.Equal(uint64(100), vote.Weight)
	})

	s.Run("second vote by the same voter rejected", func() {
		err := s.service.CastVote(s.at(2*time.Hour), proposer, proposal.ID, false)
		s.Require().Error(err)
		s.Equal("Already voted", dErrors.Reason(err))

		// Tallies unchanged.
		got, err := s.service.GetProposal(context.Background(), proposal.ID)
		s.Require().NoError(err)
		s.Equal(uint64(100), got.YesVotes)
		s.Equal(uint64(0), got.NoVotes)
	})

	s.Run("non-holder rejected", func() {
		err := s.service.CastVote(s.at(time.Hour), stranger, proposal.ID, true)
		s.Equal("No shares owned", dErrors.Reason(err))
	})

	s.Run("votes after the deadline rejected", func() {
		err := s.service.CastVote(s.at(8*24*time.Hour), holder, proposal.ID, true)
		s.Equal("Voting period has ended", dErrors.Reason(err))
	})

	s.Run("has voted reflects the record", func() {
		voted, err := s.service.HasVoted(context.Background(), proposal.ID, proposer)
		s.Require().NoError(err)
		s.True(voted)
		voted, err = s.service.HasVoted(context.Background(), proposal.ID, holder)
		s.Require().NoError(err)
		s.False(voted)
	})
}

func (s *GovernanceServiceSuite) TestExecuteProposal() {
	proposal := s.propose(s.at(0))
	s.Require().NoError(s.service.CastVote(s.at(time.Hour), proposer, proposal.ID, true))
	s.Require().NoError(s.service.CastVote(s.at(2*time.Hour), holder, proposal.ID, true))

	s.Run("execution before the deadline rejected", func() {
		_, err := s.service.ExecuteProposal(s.at(6*24*time.Hour), stranger, proposal.ID)
		s.Equal("Voting period not ended", dErrors.Reason(err))
	})

	s.Run("unanimous yes approves", func() {
		approved, err := s.service.ExecuteProposal(s.at(8*24*time.Hour), stranger, proposal.ID)
		s.Require().NoError(err)
		s.True(approved)

		got, err := s.service.GetProposal(context.Background(), proposal.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, got.Status)
		s.True(got.Executed)
		s.Equal(uint64(300), got.YesVotes)
	})

	s.Run("second execution rejected without changing tallies", func() {
		_, err := s.service.ExecuteProposal(s.at(9*24*time.Hour), stranger, proposal.ID)
		s.Require().Error(err)
		s.Equal("Proposal already executed", dErrors.Reason(err))

		got, err := s.service.GetProposal(context.Background(), proposal.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, got.Status)
		s.Equal(uint64(300), got.YesVotes)
	})
}

func (s *GovernanceServiceSuite) TestExecuteOutcomes() {
	s.Run("zero-vote proposal is rejected", func() {
		proposal := s.propose(s.at(0))
		approved, err := s.service.ExecuteProposal(s.at(8*24*time.Hour), stranger, proposal.ID)
		s.Require().NoError(err)
		s.False(approved)

		got, err := s.service.GetProposal(context.Background(), proposal.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, got.Status)
		s.True(got.Executed)
	})

	s.Run("yes share below the bar is rejected", func() {
		// proposer yes (100) vs holder no (200): 33% < 51%.
		proposal := s.propose(s.at(0))
		s.Require().NoError(s.service.CastVote(s.at(time.Hour), proposer, proposal.ID, true))
		s.Require().NoError(s.service.CastVote(s.at(time.Hour), holder, proposal.ID, false))

		approved, err := s.service.ExecuteProposal(s.at(8*24*time.Hour), stranger, proposal.ID)
		s.Require().NoError(err)
		s.False(approved)
	})

	s.Run("yes share exactly at the bar is approved", func() {
		// Lower the bar to 5000 and split 200 yes vs 200 no: exactly 50%.
		s.Require().NoError(s.service.UpdateApprovalThreshold(s.at(0), owner, 5000))
		extra := domain.AccountID("extra")
		_, err := s.ledger.PurchaseShares(s.at(0), extra, s.assetID, 200, 2000)
		s.Require().NoError(err)

		proposal := s.propose(s.at(0))
		s.Require().NoError(s.service.CastVote(s.at(time.Hour), holder, proposal.ID, true))
		s.Require().NoError(s.service.CastVote(s.at(time.Hour), extra, proposal.ID, false))

		approved, err := s.service.ExecuteProposal(s.at(8*24*time.Hour), stranger, proposal.ID)
		s.Require().NoError(err)
		s.True(approved)
	})
}

func (s *GovernanceServiceSuite) TestCancelProposal() {
	proposal := s.propose(s.at(0))

	s.Run("stranger may not cancel", func() {
		err := s.service.CancelProposal(s.at(time.Hour), stranger, proposal.ID)
		s.Equal("Not authorized", dErrors.Reason(err))
	})

	s.Run("proposer cancels", func() {
		s.Require().NoError(s.service.CancelProposal(s.at(time.Hour), proposer, proposal.ID))

		got, err := s.service.GetProposal(context.Background(), proposal.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, got.Status)
	})

	s.Run("cancelled proposal takes no votes and cannot execute", func() {
		err := s.service.CastVote(s.at(time.Hour), holder, proposal.ID, true)
		s.Equal("Proposal is not active", dErrors.Reason(err))

		_, err = s.service.ExecuteProposal(s.at(8*24*time.Hour), stranger, proposal.ID)
		s.Equal("Proposal is not active", dErrors.Reason(err))
	})

	s.Run("registry owner may cancel any active proposal", func() {
		other := s.propose(s.at(0))
		s.Require().NoError(s.service.CancelProposal(s.at(time.Hour), owner, other.ID))
	})
}

func (s *GovernanceServiceSuite) TestThresholdBounds() {
	ctx := s.at(0)

	s.Run("approval threshold boundaries", func() {
		s.Error(s.service.UpdateApprovalThreshold(ctx, owner, 4999))
		s.NoError(s.service.UpdateApprovalThreshold(ctx, owner, 5000))
		s.NoError(s.service.UpdateApprovalThreshold(ctx, owner, 7500))
		s.Error(s.service.UpdateApprovalThreshold(ctx, owner, 7501))
		s.Equal("Invalid threshold value", dErrors.Reason(s.service.UpdateApprovalThreshold(ctx, owner, 7501)))
	})

	s.Run("proposal threshold boundaries", func() {
		s.Error(s.service.UpdateProposalThreshold(ctx, owner, 0))
		s.NoError(s.service.UpdateProposalThreshold(ctx, owner, 1))
		s.NoError(s.service.UpdateProposalThreshold(ctx, owner, 1000))
		s.Error(s.service.UpdateProposalThreshold(ctx, owner, 1001))
	})

	s.Run("owner only", func() {
		err := s.service.UpdateApprovalThreshold(ctx, proposer, 5100)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *GovernanceServiceSuite) TestGetAssetProposals() {
	first := s.propose(s.at(0))
	second := s.propose(s.at(time.Hour))
	s.Require().NoError(s.service.CancelProposal(s.at(2*time.Hour), proposer, first.ID))

	proposals, err := s.service.GetAssetProposals(context.Background(), s.assetID)
	s.Require().NoError(err)
	s.Require().Len(proposals, 2)
	s.Equal(first.ID, proposals[0].ID)
	s.Equal(second.ID, proposals[1].ID)
	s.Equal(models.StatusCancelled, proposals[0].Status)
}

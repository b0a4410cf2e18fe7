// Package service implements governance: spending proposals scoped to one
// asset, share-weighted voting, and threshold-based execution.
//
// Voting weight is the voter's spendable balance read at vote time, not a
// snapshot taken at proposal creation. A holder who buys shares mid-vote
// votes with the larger weight, and one who sells after voting keeps the
// counted weight. Deliberately left as observed behavior; a snapshot scheme
// would go through the ledger's holdings history.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"brickshare/internal/governance/models"
	"brickshare/internal/governance/store"
	"brickshare/internal/platform/metrics"
	"brickshare/pkg/domain"
	dErrors "brickshare/pkg/domain-errors"
	"brickshare/pkg/platform/events"
	"brickshare/pkg/platform/sentinel"
	"brickshare/pkg/requestcontext"
)

const component = "governance"

const (
	// DefaultProposalThresholdBps is the share of total supply a proposer
	// must hold, in basis points.
	DefaultProposalThresholdBps = 100
	// DefaultApprovalThresholdBps is the yes share of cast weight required
	// to approve, in basis points.
	DefaultApprovalThresholdBps = 5100

	minVotingPeriodDays = 3
	maxVotingPeriodDays = 14
)

// ShareLedger is the slice of the ledger governance needs: weight and
// supply reads.
type ShareLedger interface {
	BalanceOf(ctx context.Context, holder domain.AccountID, assetID domain.AssetID) (uint64, error)
	TotalShares(ctx context.Context, assetID domain.AssetID) (uint64, error)
}

// Service owns all governance state transitions.
type Service struct {
	mu        sync.Mutex
	store     store.Store
	ledger    ShareLedger
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	owner     domain.AccountID

	proposalThresholdBps uint64
	approvalThresholdBps uint64
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics enables operation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService wires governance. owner is the registry owner, who may adjust
// thresholds and cancel any proposal.
func NewService(st store.Store, ledger ShareLedger, publisher events.Publisher, logger *slog.Logger, owner domain.AccountID, opts ...Option) *Service {
	s := &Service{
		store:                st,
		ledger:               ledger,
		publisher:            publisher,
		logger:               logger,
		owner:                owner,
		proposalThresholdBps: DefaultProposalThresholdBps,
		approvalThresholdBps: DefaultApprovalThresholdBps,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateProposal opens a proposal for holders of the asset. The proposer
// must hold at least proposalThresholdBps of total supply, and the voting
// period is bounded in days.
func (s *Service) CreateProposal(ctx context.Context, proposer domain.AccountID, assetID domain.AssetID, title, description string, amount uint64, proposalType models.ProposalType, votingPeriodDays uint64) (proposal *models.Proposal, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "create_proposal", err) }()

	if proposer.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "Invalid address")
	}
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "Title cannot be empty")
	}
	if description == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "Description cannot be empty")
	}
	if !proposalType.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "Invalid proposal type")
	}
	if votingPeriodDays < minVotingPeriodDays || votingPeriodDays > maxVotingPeriodDays {
		return nil, dErrors.New(dErrors.CodeValidation, "Invalid voting period")
	}

	balance, err := s.balanceOf(ctx, proposer, assetID)
	if err != nil {
		return nil, err
	}
	if balance == 0 {
		return nil, dErrors.New(dErrors.CodeInsufficient, "No shares owned")
	}
	totalShares, err := s.ledger.TotalShares(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if balance*10_000 < totalShares*s.proposalThresholdBps {
		return nil, dErrors.New(dErrors.CodeInsufficient, "Not enough shares to create proposal")
	}

	id, err := s.store.NextProposalID(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign proposal id")
	}
	now := requestcontext.Now(ctx)
	proposal = &models.Proposal{
		ID:             id,
		AssetID:        assetID,
		Proposer:       proposer,
		Title:          title,
		Description:    description,
		Amount:         amount,
		Type:           proposalType,
		VotingDeadline: now.Add(time.Duration(votingPeriodDays) * 24 * time.Hour),
		Status:         models.StatusActive,
		UpdatedAt:      now,
	}
	if err := s.apply(ctx, models.Mutation{Proposals: []*models.Proposal{proposal}}); err != nil {
		return nil, err
	}

	s.emit(ctx, events.Event{
		Name:       events.EventProposalCreated,
		Timestamp:  now,
		Actor:      proposer,
		AssetID:    assetID,
		ProposalID: id,
		Amount:     amount,
		Label:      title,
		Deadline:   proposal.VotingDeadline,
	})
	return proposal, nil
}

// CastVote adds the caller's current spendable balance to the yes or no
// tally. One vote per voter per proposal.
func (s *Service) CastVote(ctx context.Context, voter domain.AccountID, proposalID domain.ProposalID, support bool) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "cast_vote", err) }()

	if voter.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "Invalid address")
	}
	proposal, err := s.findProposal(ctx, proposalID)
	if err != nil {
		return err
	}
	if proposal.Status != models.StatusActive {
		return dErrors.New(dErrors.CodeInvalidState, "Proposal is not active")
	}
	now := requestcontext.Now(ctx)
	if now.After(proposal.VotingDeadline) {
		return dErrors.New(dErrors.CodeInvalidState, "Voting period has ended")
	}
	weight, err := s.balanceOf(ctx, voter, proposal.AssetID)
	if err != nil {
		return err
	}
	if weight == 0 {
		return dErrors.New(dErrors.CodeInsufficient, "No shares owned")
	}
	if _, err := s.store.FindVote(ctx, proposalID, voter); err == nil {
		return dErrors.New(dErrors.CodeConflict, "Already voted")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vote")
	}

	if support {
		proposal.YesVotes += weight
	} else {
		proposal.NoVotes += weight
	}
	proposal.UpdatedAt = now
	if err := s.apply(ctx, models.Mutation{
		Proposals: []*models.Proposal{proposal},
		Votes: []*models.VoteRecord{{
			ProposalID: proposalID,
			Voter:      voter,
			Support:    support,
			Weight:     weight,
			VotedAt:    now,
		}},
	}); err != nil {
		return err
	}

	s.emit(ctx, events.Event{
		Name:       events.EventVoteCast,
		Timestamp:  now,
		Actor:      voter,
		AssetID:    proposal.AssetID,
		ProposalID: proposalID,
		Support:    support,
		Weight:     weight,
	})
	return nil
}

// ExecuteProposal resolves an active proposal after its deadline: Approved
// when the yes share of cast weight meets the approval threshold, Rejected
// otherwise. A proposal nobody voted on is Rejected. Callable by anyone,
// exactly once.
func (s *Service) ExecuteProposal(ctx context.Context, caller domain.AccountID, proposalID domain.ProposalID) (approved bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "execute_proposal", err) }()

	proposal, err := s.findProposal(ctx, proposalID)
	if err != nil {
		return false, err
	}
	if proposal.Executed {
		return false, dErrors.New(dErrors.CodeInvalidState, "Proposal already executed")
	}
	if proposal.Status != models.StatusActive {
		return false, dErrors.New(dErrors.CodeInvalidState, "Proposal is not active")
	}
	now := requestcontext.Now(ctx)
	if now.Before(proposal.VotingDeadline) {
		return false, dErrors.New(dErrors.CodeInvalidState, "Voting period not ended")
	}

	total := proposal.YesVotes + proposal.NoVotes
	approved = total > 0 && proposal.YesVotes*10_000/total >= s.approvalThresholdBps
	if approved {
		proposal.Status = models.StatusApproved
	} else {
		proposal.Status = models.StatusRejected
	}
	proposal.Executed = true
	proposal.UpdatedAt = now
	if err := s.apply(ctx, models.Mutation{Proposals: []*models.Proposal{proposal}}); err != nil {
		return false, err
	}

	s.emit(ctx, events.Event{
		Name:       events.EventProposalExecuted,
		Timestamp:  now,
		Actor:      caller,
		AssetID:    proposal.AssetID,
		ProposalID: proposalID,
		Approved:   approved,
		Weight:     proposal.YesVotes,
		Value:      proposal.NoVotes,
	})
	return approved, nil
}

// CancelProposal moves an active proposal to Cancelled. Proposer or registry
// owner only.
func (s *Service) CancelProposal(ctx context.Context, caller domain.AccountID, proposalID domain.ProposalID) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "cancel_proposal", err) }()

	proposal, err := s.findProposal(ctx, proposalID)
	if err != nil {
		return err
	}
	if caller != proposal.Proposer && caller != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "Not authorized")
	}
	if proposal.Status != models.StatusActive {
		return dErrors.New(dErrors.CodeInvalidState, "Proposal is not active")
	}

	now := requestcontext.Now(ctx)
	proposal.Status = models.StatusCancelled
	proposal.UpdatedAt = now
	if err := s.apply(ctx, models.Mutation{Proposals: []*models.Proposal{proposal}}); err != nil {
		return err
	}

	s.emit(ctx, events.Event{
		Name:       events.EventProposalCancelled,
		Timestamp:  now,
		Actor:      caller,
		AssetID:    proposal.AssetID,
		ProposalID: proposalID,
	})
	return nil
}

// UpdateProposalThreshold sets the proposer holding requirement in basis
// points, valid over (0, 1000]. Registry owner only.
func (s *Service) UpdateProposalThreshold(ctx context.Context, caller domain.AccountID, bps uint64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "update_proposal_threshold", err) }()

	if caller != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "Caller is not the registry owner")
	}
	if bps == 0 || bps > 1000 {
		return dErrors.New(dErrors.CodeValidation, "Invalid threshold value")
	}
	s.proposalThresholdBps = bps

	s.emit(ctx, events.Event{
		Name:      events.EventThresholdUpdated,
		Timestamp: requestcontext.Now(ctx),
		Actor:     caller,
		Label:     "proposal",
		Value:     bps,
	})
	return nil
}

// UpdateApprovalThreshold sets the approval bar in basis points, valid over
// [5000, 7500]. Registry owner only.
func (s *Service) UpdateApprovalThreshold(ctx context.Context, caller domain.AccountID, bps uint64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "update_approval_threshold", err) }()

	if caller != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "Caller is not the registry owner")
	}
	if bps < 5000 || bps > 7500 {
		return dErrors.New(dErrors.CodeValidation, "Invalid threshold value")
	}
	s.approvalThresholdBps = bps

	s.emit(ctx, events.Event{
		Name:      events.EventThresholdUpdated,
		Timestamp: requestcontext.Now(ctx),
		Actor:     caller,
		Label:     "approval",
		Value:     bps,
	})
	return nil
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// GetProposal returns the proposal record.
func (s *Service) GetProposal(ctx context.Context, id domain.ProposalID) (*models.Proposal, error) {
	return s.findProposal(ctx, id)
}

// GetAssetProposals returns every proposal for the asset ordered by id,
// terminal ones included.
func (s *Service) GetAssetProposals(ctx context.Context, assetID domain.AssetID) ([]*models.Proposal, error) {
	proposals, err := s.store.ProposalsByAsset(ctx, assetID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list proposals")
	}
	sort.Slice(proposals, func(i, j int) bool { return proposals[i].ID < proposals[j].ID })
	return proposals, nil
}

// GetVote returns the voter's recorded vote on the proposal.
func (s *Service) GetVote(ctx context.Context, proposalID domain.ProposalID, voter domain.AccountID) (*models.VoteRecord, error) {
	vote, err := s.store.FindVote(ctx, proposalID, voter)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "Vote not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vote")
	}
	return vote, nil
}

// HasVoted reports whether the voter already voted on the proposal.
func (s *Service) HasVoted(ctx context.Context, proposalID domain.ProposalID, voter domain.AccountID) (bool, error) {
	_, err := s.store.FindVote(ctx, proposalID, voter)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vote")
	}
	return true, nil
}

// ProposalThresholdBps returns the current proposer holding requirement.
func (s *Service) ProposalThresholdBps() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proposalThresholdBps
}

// ApprovalThresholdBps returns the current approval bar.
func (s *Service) ApprovalThresholdBps() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approvalThresholdBps
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func (s *Service) findProposal(ctx context.Context, id domain.ProposalID) (*models.Proposal, error) {
	proposal, err := s.store.FindProposal(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "Proposal not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load proposal")
	}
	return proposal, nil
}

func (s *Service) balanceOf(ctx context.Context, holder domain.AccountID, assetID domain.AssetID) (uint64, error) {
	balance, err := s.ledger.BalanceOf(ctx, holder, assetID)
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *Service) apply(ctx context.Context, mutation models.Mutation) error {
	if err := s.store.Apply(ctx, mutation); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply governance mutation")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit governance event",
			"event", event.Name, "error", err)
		return
	}
	s.metrics.IncEventsEmitted()
}

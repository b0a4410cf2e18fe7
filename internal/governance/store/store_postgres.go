package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"brickshare/internal/governance/models"
	"brickshare/pkg/domain"
	"brickshare/pkg/platform/sentinel"
)

// PostgresStore persists governance state in PostgreSQL. Mutations run in
// one transaction so a failed operation leaves no partial application behind.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed governance store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const proposalColumns = `id, asset_id, proposer, title, description, amount, proposal_type, voting_deadline, yes_votes, no_votes, status, executed, updated_at`

func scanProposal(row interface{ Scan(...any) error }) (*models.Proposal, error) {
	var p models.Proposal
	err := row.Scan(&p.ID, &p.AssetID, &p.Proposer, &p.Title, &p.Description, &p.Amount,
		&p.Type, &p.VotingDeadline, &p.YesVotes, &p.NoVotes, &p.Status, &p.Executed, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) FindProposal(ctx context.Context, id domain.ProposalID) (*models.Proposal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
	proposal, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find proposal %d: %w", id, err)
	}
	return proposal, nil
}

func (s *PostgresStore) ProposalsByAsset(ctx context.Context, assetID domain.AssetID) ([]*models.Proposal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE asset_id = $1 ORDER BY id`, assetID)
	if err != nil {
		return nil, fmt.Errorf("proposals by asset: %w", err)
	}
	defer rows.Close()

	var out []*models.Proposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, proposal)
	}
	return out, rows.Err()
}

func (s *PostgresStore) NextProposalID(ctx context.Context) (domain.ProposalID, error) {
	var max uint64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM proposals`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("next proposal id: %w", err)
	}
	return domain.ProposalID(max + 1), nil
}

func (s *PostgresStore) FindVote(ctx context.Context, proposalID domain.ProposalID, voter domain.AccountID) (*models.VoteRecord, error) {
	var v models.VoteRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT proposal_id, voter, support, weight, voted_at FROM votes WHERE proposal_id = $1 AND voter = $2`,
		proposalID, voter,
	).Scan(&v.ProposalID, &v.Voter, &v.Support, &v.Weight, &v.VotedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find vote: %w", err)
	}
	return &v, nil
}

func (s *PostgresStore) Apply(ctx context.Context, mutation models.Mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin governance mutation: %w", err)
	}
	defer tx.Rollback()

	for _, proposal := range mutation.Proposals {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO proposals (id, asset_id, proposer, title, description, amount, proposal_type, voting_deadline, yes_votes, no_votes, status, executed, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
			ON CONFLICT (id) DO UPDATE SET
				yes_votes  = EXCLUDED.yes_votes,
				no_votes   = EXCLUDED.no_votes,
				status     = EXCLUDED.status,
				executed   = EXCLUDED.executed,
				updated_at = now()`,
			proposal.ID, proposal.AssetID, proposal.Proposer, proposal.Title, proposal.Description,
			proposal.Amount, proposal.Type, proposal.VotingDeadline, proposal.YesVotes, proposal.NoVotes,
			proposal.Status, proposal.Executed,
		)
		if err != nil {
			return fmt.Errorf("upsert proposal %d: %w", proposal.ID, err)
		}
	}

	for _, vote := range mutation.Votes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO votes (proposal_id, voter, support, weight, voted_at)
			VALUES ($1, $2, $3, $4, $5)`,
			vote.ProposalID, vote.Voter, vote.Support, vote.Weight, vote.VotedAt,
		)
		if err != nil {
			return fmt.Errorf("insert vote: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit governance mutation: %w", err)
	}
	return nil
}

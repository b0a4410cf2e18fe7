// Package models holds the governance records: spending proposals and their
// votes. Proposals move Active to one terminal state (Approved, Rejected or
// Cancelled) and are retained forever.
package models

import (
	"time"

	"brickshare/pkg/domain"
)

// ProposalType classifies what the requested spend is for.
type ProposalType string

const (
	ProposalTypeMaintenance ProposalType = "maintenance"
	ProposalTypeUpgrade     ProposalType = "upgrade"
	ProposalTypeSale        ProposalType = "sale"
	ProposalTypeOther       ProposalType = "other"
)

// Valid reports whether the type is one of the enumerated values.
func (t ProposalType) Valid() bool {
	switch t {
	case ProposalTypeMaintenance, ProposalTypeUpgrade, ProposalTypeSale, ProposalTypeOther:
		return true
	}
	return false
}

// ProposalStatus is the proposal lifecycle state.
type ProposalStatus string

const (
	StatusActive    ProposalStatus = "active"
	StatusApproved  ProposalStatus = "approved"
	StatusRejected  ProposalStatus = "rejected"
	StatusCancelled ProposalStatus = "cancelled"
)

// Proposal is a spending proposal scoped to one asset. YesVotes and NoVotes
// are sums of voting weight (share counts at vote time).
type Proposal struct {
	ID             domain.ProposalID
	AssetID        domain.AssetID
	Proposer       domain.AccountID
	Title          string
	Description    string
	Amount         uint64
	Type           ProposalType
	VotingDeadline time.Time
	YesVotes       uint64
	NoVotes        uint64
	Status         ProposalStatus
	Executed       bool
	UpdatedAt      time.Time
}

// Clone returns a copy safe for mutation outside the store.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// VoteRecord pins one voter's choice and weight on one proposal. Its
// existence is what blocks re-voting.
type VoteRecord struct {
	ProposalID domain.ProposalID
	Voter      domain.AccountID
	Support    bool
	Weight     uint64
	VotedAt    time.Time
}

// Mutation is one atomic governance state change.
type Mutation struct {
	Proposals []*Proposal
	Votes     []*VoteRecord
}

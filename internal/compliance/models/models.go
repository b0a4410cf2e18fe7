// Package models holds the compliance registry records: investor
// verification state, blacklist entries, country restrictions, and role
// grants.
package models

import (
	"time"

	"brickshare/pkg/domain"
)

// Level is an ordered verification tier.
type Level int

const (
	LevelNone Level = iota
	LevelBasic
	LevelAccredited
	LevelInstitutional
)

// Valid reports whether the level is inside the enumerated range. LevelNone
// is not a grantable verification tier.
func (l Level) Valid() bool {
	return l >= LevelBasic && l <= LevelInstitutional
}

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelBasic:
		return "basic"
	case LevelAccredited:
		return "accredited"
	case LevelInstitutional:
		return "institutional"
	}
	return "unknown"
}

// Role is a registry capability grant.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleVerifier Role = "verifier"
)

// InvestorRecord is one wallet's verification state. Blacklisting is tracked
// separately and is independent of IsActive.
type InvestorRecord struct {
	Wallet           domain.AccountID
	Level            Level
	VerificationDate time.Time
	ExpirationDate   time.Time
	IsActive         bool
	VerificationHash string
	UpdatedAt        time.Time
}

// Clone returns a copy safe for mutation outside the store.
func (r *InvestorRecord) Clone() *InvestorRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// VerificationDetails is the read view of an investor, joining the record
// with its blacklist status.
type VerificationDetails struct {
	Wallet           domain.AccountID
	Level            Level
	VerificationDate time.Time
	ExpirationDate   time.Time
	IsActive         bool
	Blacklisted      bool
}

// BlacklistEntry records why a wallet was blacklisted.
type BlacklistEntry struct {
	Wallet   domain.AccountID
	Reason   string
	ListedAt time.Time
}

// RoleGrant assigns one role to one account.
type RoleGrant struct {
	Account domain.AccountID
	Role    Role
}

// Mutation is one atomic compliance state change. Nil-able fields are left
// untouched when unset. Revoked grants and blacklist removals are listed
// explicitly because absence cannot express deletion.
type Mutation struct {
	Investors   []*InvestorRecord
	Blacklist   []*BlacklistEntry
	Unblacklist []domain.AccountID
	Countries   map[string]bool
	Grants      []RoleGrant
	Revocations []RoleGrant
	Paused      *bool
}

// Package models defines share ledger records. Amounts are integer share
// counts; prices and pools are in the ledger's integer currency unit.
package models

import (
	"time"

	"brickshare/pkg/domain"
)

// Asset is a tokenized property: a fixed pool of fungible shares.
type Asset struct {
	ID              domain.AssetID
	TotalShares     uint64
	AvailableShares uint64
	PricePerShare   uint64
	MetadataURI     string
	Active          bool
	UpdatedAt       time.Time
}

// Clone returns a copy safe for the caller to mutate.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Holding is one account's position in one asset. Spendable shares can be
// sold, listed, or voted with; locked shares back an active listing or
// auction and return on cancellation or settle elsewhere.
type Holding struct {
	Spendable uint64
	Locked    uint64
}

// Total is the full position including escrowed shares.
func (h Holding) Total() uint64 {
	return h.Spendable + h.Locked
}

// IsZero reports an empty position.
func (h Holding) IsZero() bool {
	return h.Spendable == 0 && h.Locked == 0
}

// HoldingRecord addresses a holding for store mutations.
type HoldingRecord struct {
	Owner   domain.AccountID
	AssetID domain.AssetID
	Holding Holding
}

// Mutation is the atomic write unit of the ledger store: every operation's
// state changes are collected into one Mutation and applied all-or-nothing.
type Mutation struct {
	Assets   []*Asset
	Holdings []HoldingRecord
	// Pool, when non-nil, replaces the ledger currency pool balance.
	Pool *uint64
}

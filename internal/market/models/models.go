// Package models holds the marketplace records: fixed-price listings and
// English auctions. Records are never deleted; terminal states (inactive,
// claimed) are retained for audit.
package models

import (
	"time"

	"brickshare/pkg/domain"
)

// FeeRateBps is the marketplace fee in basis points, applied to every
// settled trade (listing purchases and auction settlements).
const FeeRateBps = 250

// Fee returns the marketplace cut of a gross trade value.
func Fee(gross uint64) uint64 {
	return gross * FeeRateBps / 10_000
}

// Listing is a fixed-price offer of escrowed shares.
type Listing struct {
	ID            domain.ListingID
	AssetID       domain.AssetID
	Seller        domain.AccountID
	Amount        uint64
	PricePerShare uint64
	Active        bool
	UpdatedAt     time.Time
}

// Clone returns a copy safe for mutation outside the store.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// Auction is a timed English auction over escrowed shares. CurrentBid is
// zero and CurrentBidder empty until the first bid lands. The current top
// bid's payment is held by the marketplace pool until outbid or settled.
type Auction struct {
	ID            domain.AuctionID
	AssetID       domain.AssetID
	Seller        domain.AccountID
	Amount        uint64
	StartingPrice uint64
	CurrentBid    uint64
	CurrentBidder domain.AccountID
	EndTime       time.Time
	Active        bool
	Claimed       bool
	UpdatedAt     time.Time
}

// Clone returns a copy safe for mutation outside the store.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// HasBid reports whether any bid has been placed.
func (a *Auction) HasBid() bool {
	return !a.CurrentBidder.IsNil()
}

// Mutation is one atomic marketplace state change. Pool, when set, replaces
// the marketplace currency pool (accrued fees plus the held top-bid escrow).
type Mutation struct {
	Listings []*Listing
	Auctions []*Auction
	Pool     *uint64
}

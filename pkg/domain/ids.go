// Package domain holds the primitive identifier types shared by every
// component. Keeping them typed (instead of bare strings and integers)
// catches cross-component mixups at compile time.
package domain

import (
	"fmt"
	"strconv"
)

// AccountID identifies a participant wallet. The ledger never interprets it;
// it is assigned and authenticated by the collaborator layer.
type AccountID string

// IsNil returns true for the null identifier.
func (a AccountID) IsNil() bool {
	return a == ""
}

func (a AccountID) String() string {
	return string(a)
}

// AssetID identifies a tokenized property. Assigned sequentially from 1.
type AssetID uint64

// ListingID identifies a fixed-price marketplace listing.
type ListingID uint64

// AuctionID identifies a marketplace auction.
type AuctionID uint64

// ProposalID identifies a governance proposal.
type ProposalID uint64

func (id AssetID) IsNil() bool    { return id == 0 }
func (id ListingID) IsNil() bool  { return id == 0 }
func (id AuctionID) IsNil() bool  { return id == 0 }
func (id ProposalID) IsNil() bool { return id == 0 }

func (id AssetID) String() string    { return strconv.FormatUint(uint64(id), 10) }
func (id ListingID) String() string  { return strconv.FormatUint(uint64(id), 10) }
func (id AuctionID) String() string  { return strconv.FormatUint(uint64(id), 10) }
func (id ProposalID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseAssetID validates and returns an AssetID.
func ParseAssetID(s string) (AssetID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid asset id: %q", s)
	}
	return AssetID(n), nil
}

// Package events defines the operation event stream. Every successful state
// transition in the engines emits exactly one Event; failed operations emit
// nothing. Events are flat records of primitive fields so any transport or
// index can carry them.
package events

import (
	"time"

	"brickshare/pkg/domain"
)

// Name identifies the operation an event records.
type Name string

const (
	// Share ledger events
	EventAssetCreated    Name = "asset_created"
	EventSharesPurchased Name = "shares_purchased"
	EventSharesSold      Name = "shares_sold"
	EventPriceUpdated    Name = "price_updated"
	EventURIUpdated      Name = "uri_updated"
	EventAssetStatusSet  Name = "asset_status_set"
	EventFundsWithdrawn  Name = "funds_withdrawn"

	// Marketplace events
	EventListingCreated         Name = "listing_created"
	EventListingUpdated         Name = "listing_updated"
	EventListingCancelled       Name = "listing_cancelled"
	EventListingSharesPurchased Name = "listing_shares_purchased"
	EventAuctionCreated         Name = "auction_created"
	EventBidPlaced              Name = "bid_placed"
	EventAuctionEnded           Name = "auction_ended"

	// Governance events
	EventProposalCreated   Name = "proposal_created"
	EventVoteCast          Name = "vote_cast"
	EventProposalExecuted  Name = "proposal_executed"
	EventProposalCancelled Name = "proposal_cancelled"
	EventThresholdUpdated  Name = "threshold_updated"

	// Compliance events
	EventInvestorVerified          Name = "investor_verified"
	EventVerificationRevoked       Name = "verification_revoked"
	EventInvestorRejected          Name = "investor_rejected"
	EventVerificationRenewed       Name = "verification_renewed"
	EventInvestorBlacklisted       Name = "investor_blacklisted"
	EventInvestorUnblacklisted     Name = "investor_unblacklisted"
	EventCountryRestrictionUpdated Name = "country_restriction_updated"
	EventRegistryPaused            Name = "registry_paused"
	EventRegistryUnpaused          Name = "registry_unpaused"
	EventRoleGranted               Name = "role_granted"
	EventRoleRevoked               Name = "role_revoked"
)

// Event is emitted from domain logic to capture a committed state change.
// Keep it transport-agnostic so stores and sinks can fan out.
//
// Numeric fields are in shares (Amount, Weight) or the ledger's integer
// currency unit (Price, Cost, Fee, Payout, Refund, Bid). Unused fields stay
// zero and are omitted from serialized forms.
type Event struct {
	ID        string           `json:"id"`
	Name      Name             `json:"name"`
	Timestamp time.Time        `json:"timestamp"`
	Actor     domain.AccountID `json:"actor,omitempty"`
	// Subject is the counterparty wallet when one exists: the seller being
	// paid, the investor being verified, the auction winner.
	Subject domain.AccountID `json:"subject,omitempty"`

	AssetID    domain.AssetID    `json:"asset_id,omitempty"`
	ListingID  domain.ListingID  `json:"listing_id,omitempty"`
	AuctionID  domain.AuctionID  `json:"auction_id,omitempty"`
	ProposalID domain.ProposalID `json:"proposal_id,omitempty"`

	Amount uint64 `json:"amount,omitempty"`
	Price  uint64 `json:"price,omitempty"`
	Bid    uint64 `json:"bid,omitempty"`
	Cost   uint64 `json:"cost,omitempty"`
	Fee    uint64 `json:"fee,omitempty"`
	Payout uint64 `json:"payout,omitempty"`
	Refund uint64 `json:"refund,omitempty"`
	Weight uint64 `json:"weight,omitempty"`
	Value  uint64 `json:"value,omitempty"`

	Deadline time.Time `json:"deadline,omitzero"`

	Support  bool   `json:"support,omitempty"`
	Approved bool   `json:"approved,omitempty"`
	Flag     bool   `json:"flag,omitempty"`
	Label    string `json:"label,omitempty"`
	Reason   string `json:"reason,omitempty"`

	RequestID string `json:"request_id,omitempty"`
}

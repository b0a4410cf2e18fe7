// Package service implements the marketplace: fixed-price listings and
// English auctions over shares escrowed in the ledger.
//
// Shares backing an active listing or auction live in the seller's locked
// sub-balance; cancellation is a pure escrow release and settlement moves
// the locked shares to the buyer. Currency for the held top bid and accrued
// fees sits in the marketplace pool. All settlement bookkeeping is committed
// before any refund or payout is reported to the caller.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"brickshare/internal/market/models"
	"brickshare/internal/market/store"
	"brickshare/internal/platform/metrics"
	"brickshare/pkg/domain"
	dErrors "brickshare/pkg/domain-errors"
	"brickshare/pkg/platform/events"
	"brickshare/pkg/platform/sentinel"
	"brickshare/pkg/requestcontext"
)

const component = "market"

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ShareLedger

// ShareLedger is the slice of the ledger the marketplace needs: balance
// reads and the escrow primitives.
type ShareLedger interface {
	BalanceOf(ctx context.Context, holder domain.AccountID, assetID domain.AssetID) (uint64, error)
	Reserve(ctx context.Context, owner domain.AccountID, assetID domain.AssetID, amount uint64) error
	Release(ctx context.Context, owner domain.AccountID, assetID domain.AssetID, amount uint64) error
	SettleReserved(ctx context.Context, from, to domain.AccountID, assetID domain.AssetID, amount uint64) error
}

// Service owns all marketplace state transitions.
type Service struct {
	mu        sync.Mutex
	store     store.Store
	ledger    ShareLedger
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	owner     domain.AccountID
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics enables operation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService wires the marketplace. owner is the registry owner, who may
// cancel any listing on a seller's behalf.
func NewService(st store.Store, ledger ShareLedger, publisher events.Publisher, logger *slog.Logger, owner domain.AccountID, opts ...Option) *Service {
	s := &Service{
		store:     st,
		ledger:    ledger,
		publisher: publisher,
		logger:    logger,
		owner:     owner,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TradeResult reports a committed listing purchase. Refund is excess payment
// owed back to the buyer; SellerProceeds is the gross price minus the fee.
type TradeResult struct {
	ListingID      domain.ListingID
	AssetID        domain.AssetID
	Seller         domain.AccountID
	Amount         uint64
	Cost           uint64
	Fee            uint64
	SellerProceeds uint64
	Refund         uint64
}

// BidResult reports a committed bid. RefundTo/RefundAmount name the outbid
// party whose held payment must now be returned; both are zero values on the
// first bid.
type BidResult struct {
	AuctionID    domain.AuctionID
	Bid          uint64
	RefundTo     domain.AccountID
	RefundAmount uint64
}

// SettlementResult reports a settled auction. Winner is empty when no bid
// was ever placed: the shares went back to the seller and fee is zero.
type SettlementResult struct {
	AuctionID    domain.AuctionID
	AssetID      domain.AssetID
	Winner       domain.AccountID
	WinningBid   uint64
	Fee          uint64
	SellerPayout uint64
}

// -----------------------------------------------------------------------------
// Listings
// -----------------------------------------------------------------------------

// CreateListing escrows amount of the seller's shares and opens a
// fixed-price listing. Ids are assigned sequentially starting at 1.
func (s *Service) CreateListing(ctx context.Context, seller domain.AccountID, assetID domain.AssetID, amount, pricePerShare uint64) (listing *models.Listing, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "create_listing", err) }()

	if seller.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "Invalid address")
	}
	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "Amount must be greater than zero")
	}
	if pricePerShare == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "Price must be greater than zero")
	}
	if err := s.ledger.Reserve(ctx, seller, assetID, amount); err != nil {
		return nil, err
	}

	id, err := s.store.NextListingID(ctx)
	if err != nil {
		s.compensateRelease(ctx, seller, assetID, amount)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign listing id")
	}
	now := requestcontext.Now(ctx)
	listing = &models.Listing{
		ID:            id,
		AssetID:       assetID,
		Seller:        seller,
		Amount:        amount,
		PricePerShare: pricePerShare,
		Active:        true,
		UpdatedAt:     now,
	}
	if err := s.store.Apply(ctx, models.Mutation{Listings: []*models.Listing{listing}}); err != nil {
		s.compensateRelease(ctx, seller, assetID, amount)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create listing")
	}

	s.emit(ctx, events.Event{
		Name:      events.EventListingCreated,
		Timestamp: now,
		Actor:     seller,
		AssetID:   assetID,
		ListingID: id,
		Amount:    amount,
		Price:     pricePerShare,
	})
	return listing, nil
}

// UpdateListing replaces the listed amount and price, adjusting escrow by
// the amount delta. Seller only.
func (s *Service) UpdateListing(ctx context.Context, caller domain.AccountID, listingID domain.ListingID, amount, pricePerShare uint64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "update_listing", err) }()

	listing, err := s.findListing(ctx, listingID)
	if err != nil {
		return err
	}
	if caller != listing.Seller {
		return dErrors.New(dErrors.CodeUnauthorized, "Not authorized")
	}
	if !listing.Active {
		return dErrors.New(dErrors.CodeInvalidState, "Listing is not active")
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "Amount must be greater than zero")
	}
	if pricePerShare == 0 {
		return dErrors.New(dErrors.CodeValidation, "Price must be greater than zero")
	}

	switch {
	case amount > listing.Amount:
		if err := s.ledger.Reserve(ctx, listing.Seller, listing.AssetID, amount-listing.Amount); err != nil {
			return err
		}
	case amount < listing.Amount:
		if err := s.ledger.Release(ctx, listing.Seller, listing.AssetID, listing.Amount-amount); err != nil {
			return err
		}
	}

	delta := listing.Amount
	listing.Amount = amount
	listing.PricePerShare = pricePerShare
	listing.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Apply(ctx, models.Mutation{Listings: []*models.Listing{listing}}); err != nil {
		// Undo the escrow adjustment so the ledger matches the stored listing.
		if amount > delta {
			s.compensateRelease(ctx, listing.Seller, listing.AssetID, amount-delta)
		} else if amount < delta {
			s.compensateReserve(ctx, listing.Seller, listing.AssetID, delta-amount)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update listing")
	}

	s.emit(ctx, events.Event{
		Name:      events.EventListingUpdated,
		Timestamp: listing.UpdatedAt,
		Actor:     caller,
		AssetID:   listing.AssetID,
		ListingID: listingID,
		Amount:    amount,
		Price:     pricePerShare,
	})
	return nil
}

// CancelListing deactivates the listing and releases its escrow. Seller or
// registry owner.
func (s *Service) CancelListing(ctx context.Context, caller domain.AccountID, listingID domain.ListingID) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "cancel_listing", err) }()

	listing, err := s.findListing(ctx, listingID)
	if err != nil {
		return err
	}
	if caller != listing.Seller && caller != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "Not authorized")
	}
	if !listing.Active {
		return dErrors.New(dErrors.CodeInvalidState, "Listing is not active")
	}

	if err := s.ledger.Release(ctx, listing.Seller, listing.AssetID, listing.Amount); err != nil {
		return err
	}
	listing.Active = false
	listing.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Apply(ctx, models.Mutation{Listings: []*models.Listing{listing}}); err != nil {
		s.compensateReserve(ctx, listing.Seller, listing.AssetID, listing.Amount)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel listing")
	}

	s.emit(ctx, events.Event{
		Name:      events.EventListingCancelled,
		Timestamp: listing.UpdatedAt,
		Actor:     caller,
		AssetID:   listing.AssetID,
		ListingID: listingID,
		Amount:    listing.Amount,
	})
	return nil
}

// PurchaseShares buys amount shares from an active listing. The fee is
// retained in the marketplace pool; seller proceeds and any excess payment
// refund are reported in the result after state commit.
func (s *Service) PurchaseShares(ctx context.Context, buyer domain.AccountID, listingID domain.ListingID, amount, payment uint64) (res *TradeResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "purchase_shares", err) }()

	if buyer.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "Invalid address")
	}
	listing, err := s.findListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.Active {
		return nil, dErrors.New(dErrors.CodeInvalidState, "Listing is not active")
	}
	if amount == 0 || amount > listing.Amount {
		return nil, dErrors.New(dErrors.CodeValidation, "Invalid amount")
	}
	cost := amount * listing.PricePerShare
	if payment < cost {
		return nil, dErrors.New(dErrors.CodeInsufficient, "Insufficient payment")
	}
	pool, err := s.pool(ctx)
	if err != nil {
		return nil, err
	}

	fee := models.Fee(cost)
	if err := s.ledger.SettleReserved(ctx, listing.Seller, buyer, listing.AssetID, amount); err != nil {
		return nil, err
	}
	listing.Amount -= amount
	if listing.Amount == 0 {
		listing.Active = false
	}
	listing.UpdatedAt = requestcontext.Now(ctx)
	newPool := pool + fee
	if err := s.store.Apply(ctx, models.Mutation{
		Listings: []*models.Listing{listing},
		Pool:     &newPool,
	}); err != nil {
		// Shares already moved; this store fault leaves the books split.
		s.logger.ErrorContext(ctx, "listing state diverged from settled escrow",
			"listing_id", listingID, "amount", amount, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to settle listing purchase")
	}
	s.metrics.SetPool(component, newPool)

	s.emit(ctx, events.Event{
		Name:      events.EventListingSharesPurchased,
		Timestamp: listing.UpdatedAt,
		Actor:     buyer,
		Subject:   listing.Seller,
		AssetID:   listing.AssetID,
		ListingID: listingID,
		Amount:    amount,
		Price:     listing.PricePerShare,
		Cost:      cost,
		Fee:       fee,
		Payout:    cost - fee,
		Refund:    payment - cost,
	})
	return &TradeResult{
		ListingID:      listingID,
		AssetID:        listing.AssetID,
		Seller:         listing.Seller,
		Amount:         amount,
		Cost:           cost,
		Fee:            fee,
		SellerProceeds: cost - fee,
		Refund:         payment - cost,
	}, nil
}

// -----------------------------------------------------------------------------
// Auctions
// -----------------------------------------------------------------------------

// CreateAuction escrows amount of the seller's shares and opens an English
// auction ending durationHours from now.
func (s *Service) CreateAuction(ctx context.Context, seller domain.AccountID, assetID domain.AssetID, amount, startingPrice, durationHours uint64) (auction *models.Auction, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "create_auction", err) }()

	if seller.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "Invalid address")
	}
	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "Amount must be greater than zero")
	}
	if startingPrice == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "Price must be greater than zero")
	}
	if durationHours == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "Duration must be greater than zero")
	}
	if err := s.ledger.Reserve(ctx, seller, assetID, amount); err != nil {
		return nil, err
	}

	id, err := s.store.NextAuctionID(ctx)
	if err != nil {
		s.compensateRelease(ctx, seller, assetID, amount)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign auction id")
	}
	now := requestcontext.Now(ctx)
	auction = &models.Auction{
		ID:            id,
		AssetID:       assetID,
		Seller:        seller,
		Amount:        amount,
		StartingPrice: startingPrice,
		EndTime:       now.Add(time.Duration(durationHours) * time.Hour),
		Active:        true,
		UpdatedAt:     now,
	}
	if err := s.store.Apply(ctx, models.Mutation{Auctions: []*models.Auction{auction}}); err != nil {
		s.compensateRelease(ctx, seller, assetID, amount)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create auction")
	}

	s.emit(ctx, events.Event{
		Name:      events.EventAuctionCreated,
		Timestamp: now,
		Actor:     seller,
		AssetID:   assetID,
		AuctionID: id,
		Amount:    amount,
		Price:     startingPrice,
		Deadline:  auction.EndTime,
	})
	return auction, nil
}

// PlaceBid records a new top bid. The bid must strictly exceed both the
// starting price and the current bid. The previous top bidder's held payment
// becomes refundable and is named in the result.
func (s *Service) PlaceBid(ctx context.Context, bidder domain.AccountID, auctionID domain.AuctionID, bid uint64) (res *BidResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "place_bid", err) }()

	if bidder.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "Invalid address")
	}
	auction, err := s.findAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !auction.Active {
		return nil, dErrors.New(dErrors.CodeInvalidState, "Auction is not active")
	}
	now := requestcontext.Now(ctx)
	if !now.Before(auction.EndTime) {
		return nil, dErrors.New(dErrors.CodeInvalidState, "Auction has ended")
	}
	floor := auction.StartingPrice
	if auction.CurrentBid > floor {
		floor = auction.CurrentBid
	}
	if bid <= floor {
		return nil, dErrors.New(dErrors.CodeInsufficient, "Bid too low")
	}
	pool, err := s.pool(ctx)
	if err != nil {
		return nil, err
	}

	prevBidder := auction.CurrentBidder
	prevBid := auction.CurrentBid
	auction.CurrentBid = bid
	auction.CurrentBidder = bidder
	auction.UpdatedAt = now
	// The pool holds exactly one live bid per auction: take in the new
	// payment, give back the outbid one.
	newPool := pool + bid - prevBid
	if err := s.store.Apply(ctx, models.Mutation{
		Auctions: []*models.Auction{auction},
		Pool:     &newPool,
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record bid")
	}
	s.metrics.SetPool(component, newPool)

	s.emit(ctx, events.Event{
		Name:      events.EventBidPlaced,
		Timestamp: now,
		Actor:     bidder,
		Subject:   prevBidder,
		AssetID:   auction.AssetID,
		AuctionID: auctionID,
		Bid:       bid,
		Refund:    prevBid,
	})
	return &BidResult{
		AuctionID:    auctionID,
		Bid:          bid,
		RefundTo:     prevBidder,
		RefundAmount: prevBid,
	}, nil
}

// EndAuction settles an expired auction: escrowed shares go to the top
// bidder and the seller is paid the bid minus the fee, or everything returns
// to the seller when no bid was placed. Callable by anyone once expired.
func (s *Service) EndAuction(ctx context.Context, caller domain.AccountID, auctionID domain.AuctionID) (res *SettlementResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "end_auction", err) }()

	auction, err := s.findAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !auction.Active {
		return nil, dErrors.New(dErrors.CodeInvalidState, "Auction is not active")
	}
	now := requestcontext.Now(ctx)
	if now.Before(auction.EndTime) {
		return nil, dErrors.New(dErrors.CodeInvalidState, "Auction has not ended yet")
	}

	var fee, payout uint64
	if auction.HasBid() {
		fee = models.Fee(auction.CurrentBid)
		payout = auction.CurrentBid - fee
		if err := s.ledger.SettleReserved(ctx, auction.Seller, auction.CurrentBidder, auction.AssetID, auction.Amount); err != nil {
			return nil, err
		}
	} else {
		if err := s.ledger.Release(ctx, auction.Seller, auction.AssetID, auction.Amount); err != nil {
			return nil, err
		}
	}

	pool, err := s.pool(ctx)
	if err != nil {
		return nil, err
	}
	if payout > pool {
		s.logger.ErrorContext(ctx, "market pool cannot cover auction payout",
			"auction_id", auctionID, "payout", payout, "pool", pool)
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "Currency pool cannot cover payout")
	}

	auction.Active = false
	auction.Claimed = true
	auction.UpdatedAt = now
	newPool := pool - payout
	if err := s.store.Apply(ctx, models.Mutation{
		Auctions: []*models.Auction{auction},
		Pool:     &newPool,
	}); err != nil {
		s.logger.ErrorContext(ctx, "auction state diverged from settled escrow",
			"auction_id", auctionID, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to settle auction")
	}
	s.metrics.SetPool(component, newPool)

	s.emit(ctx, events.Event{
		Name:      events.EventAuctionEnded,
		Timestamp: now,
		Actor:     caller,
		Subject:   auction.CurrentBidder,
		AssetID:   auction.AssetID,
		AuctionID: auctionID,
		Amount:    auction.Amount,
		Bid:       auction.CurrentBid,
		Fee:       fee,
		Payout:    payout,
	})
	return &SettlementResult{
		AuctionID:    auctionID,
		AssetID:      auction.AssetID,
		Winner:       auction.CurrentBidder,
		WinningBid:   auction.CurrentBid,
		Fee:          fee,
		SellerPayout: payout,
	}, nil
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// GetListing returns the listing record.
func (s *Service) GetListing(ctx context.Context, id domain.ListingID) (*models.Listing, error) {
	return s.findListing(ctx, id)
}

// GetActiveListings returns all active listings ordered by id.
func (s *Service) GetActiveListings(ctx context.Context) ([]*models.Listing, error) {
	listings, err := s.store.ListListings(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list listings")
	}
	out := listings[:0]
	for _, listing := range listings {
		if listing.Active {
			out = append(out, listing)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetUserListings returns all of a seller's listings, terminal ones
// included, ordered by id.
func (s *Service) GetUserListings(ctx context.Context, seller domain.AccountID) ([]*models.Listing, error) {
	listings, err := s.store.ListingsBySeller(ctx, seller)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list seller listings")
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })
	return listings, nil
}

// GetAuction returns the auction record.
func (s *Service) GetAuction(ctx context.Context, id domain.AuctionID) (*models.Auction, error) {
	return s.findAuction(ctx, id)
}

// GetActiveAuctions returns all active auctions ordered by id.
func (s *Service) GetActiveAuctions(ctx context.Context) ([]*models.Auction, error) {
	auctions, err := s.store.ListAuctions(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list auctions")
	}
	out := auctions[:0]
	for _, auction := range auctions {
		if auction.Active {
			out = append(out, auction)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func (s *Service) findListing(ctx context.Context, id domain.ListingID) (*models.Listing, error) {
	listing, err := s.store.FindListing(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "Listing not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load listing")
	}
	return listing, nil
}

func (s *Service) findAuction(ctx context.Context, id domain.AuctionID) (*models.Auction, error) {
	auction, err := s.store.FindAuction(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "Auction not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load auction")
	}
	return auction, nil
}

func (s *Service) pool(ctx context.Context) (uint64, error) {
	pool, err := s.store.Pool(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load market pool")
	}
	return pool, nil
}

// compensateRelease undoes a Reserve after a later step failed.
func (s *Service) compensateRelease(ctx context.Context, owner domain.AccountID, assetID domain.AssetID, amount uint64) {
	if err := s.ledger.Release(ctx, owner, assetID, amount); err != nil {
		s.logger.ErrorContext(ctx, "failed to release escrow after aborted operation",
			"owner", owner, "asset_id", assetID, "amount", amount, "error", err)
	}
}

// compensateReserve undoes a Release after a later step failed.
func (s *Service) compensateReserve(ctx context.Context, owner domain.AccountID, assetID domain.AssetID, amount uint64) {
	if err := s.ledger.Reserve(ctx, owner, assetID, amount); err != nil {
		s.logger.ErrorContext(ctx, "failed to restore escrow after aborted operation",
			"owner", owner, "asset_id", assetID, "amount", amount, "error", err)
	}
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit market event",
			"event", event.Name, "error", err)
		return
	}
	s.metrics.IncEventsEmitted()
}

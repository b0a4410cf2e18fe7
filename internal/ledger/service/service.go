// Package service implements the share ledger: asset creation, primary-market
// purchase and redemption, holdings bookkeeping, and the currency pool.
//
// Every operation validates its preconditions against current state, builds
// one atomic store mutation, applies it, and emits one event. Operations are
// serialized by a single mutex; a failed operation applies nothing. All
// settlement bookkeeping is committed before any outbound transfer (refund,
// payout) is reported to the caller.
package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"brickshare/internal/ledger/models"
	"brickshare/internal/ledger/store"
	"brickshare/internal/platform/metrics"
	"brickshare/pkg/domain"
	dErrors "brickshare/pkg/domain-errors"
	"brickshare/pkg/platform/events"
	"brickshare/pkg/platform/sentinel"
	"brickshare/pkg/requestcontext"

	"errors"
)

const component = "ledger"

// Service owns all ledger state transitions.
type Service struct {
	mu        sync.Mutex
	store     store.Store
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

// NewService wires the ledger. owner is the registry owner: the only caller
// allowed to create assets, mutate asset parameters, and withdraw the pool.
func NewService(st store.Store, publisher events.Publisher, logger *slog.Logger, owner domain.AccountID, opts ...Option) *Service {
	s := &Service{
		store:     st,
		publisher: publisher,
		logger:    logger,
		owner:     owner,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PurchaseResult reports a committed primary-market purchase. Refund is the
// excess payment owed back to the buyer; it is computed after state commit.
type PurchaseResult struct {
	AssetID    domain.AssetID
	Amount     uint64
	Cost       uint64
	Refund     uint64
	NewBalance uint64
}

// SaleResult reports a committed share redemption.
type SaleResult struct {
	AssetID    domain.AssetID
	Amount     uint64
	Payout     uint64
	NewBalance uint64
}

// CreateAsset registers a new asset with a fixed share supply. Registry owner
// only. Ids are assigned sequentially starting at 1.
func (s *Service) CreateAsset(ctx context.Context, caller domain.AccountID, totalShares, pricePerShare uint64, metadataURI string) (asset *models.Asset, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "create_asset", err) }()

	if caller != s.owner {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Caller is not the registry owner")
	}
	if totalShares == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "Shares must be greater than zero")
	}
	if pricePerShare == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "Price must be greater than zero")
	}
	if metadataURI == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "URI cannot be empty")
	}

	id, err := s.store.NextAssetID(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign asset id")
	}
	now := requestcontext.Now(ctx)
	asset = &models.Asset{
		ID:              id,
		TotalShares:     totalShares,
		AvailableShares: totalShares,
		PricePerShare:   pricePerShare,
		MetadataURI:     metadataURI,
		Active:          true,
		UpdatedAt:       now,
	}
	if err := s.store.Apply(ctx, models.Mutation{Assets: []*models.Asset{asset}}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create asset")
	}

	s.emit(ctx, events.Event{
		Name:      events.EventAssetCreated,
		Timestamp: now,
		Actor:     caller,
		AssetID:   id,
		Amount:    totalShares,
		Price:     pricePerShare,
		Label:     metadataURI,
	})
	return asset, nil
}

// PurchaseShares buys amount shares from the asset's available supply. The
// exact cost is retained in the currency pool; any excess payment is returned
// to the buyer via the result.
func (s *Service) PurchaseShares(ctx context.Context, buyer domain.AccountID, assetID domain.AssetID, amount, payment uint64) (res *PurchaseResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "purchase_shares", err) }()

	if buyer.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "Invalid address")
	}
	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "Amount must be greater than zero")
	}
	asset, err := s.findAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if !asset.Active {
		return nil, dErrors.New(dErrors.CodeInvalidState, "Asset is not active")
	}
	if amount > asset.AvailableShares {
		return nil, dErrors.New(dErrors.CodeInsufficient, "Not enough shares available")
	}
	cost := amount * asset.PricePerShare
	if payment < cost {
		return nil, dErrors.New(dErrors.CodeInsufficient, "Insufficient payment")
	}

	holding, err := s.holding(ctx, buyer, assetID)
	if err != nil {
		return nil, err
	}
	pool, err := s.pool(ctx)
	if err != nil {
		return nil, err
	}

	asset.AvailableShares -= amount
	holding.Spendable += amount
	newPool := pool + cost
	if err := s.apply(ctx, models.Mutation{
		Assets:   []*models.Asset{asset},
		Holdings: []models.HoldingRecord{{Owner: buyer, AssetID: assetID, Holding: holding}},
		Pool:     &newPool,
	}); err != nil {
		return nil, err
	}
	s.metrics.SetPool(component, newPool)

	now := requestcontext.Now(ctx)
	s.emit(ctx, events.Event{
		Name:      events.EventSharesPurchased,
		Timestamp: now,
		Actor:     buyer,
		AssetID:   assetID,
		Amount:    amount,
		Price:     asset.PricePerShare,
		Cost:      cost,
		Refund:    payment - cost,
	})
	return &PurchaseResult{
		AssetID:    assetID,
		Amount:     amount,
		Cost:       cost,
		Refund:     payment - cost,
		NewBalance: holding.Spendable,
	}, nil
}

// SellShares redeems amount shares back to the available supply at the
// current price, paid from the currency pool. A pool that cannot cover the
// payout is an invariant breach, not a caller error.
func (s *Service) SellShares(ctx context.Context, seller domain.AccountID, assetID domain.AssetID, amount uint64) (res *SaleResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "sell_shares", err) }()

	if seller.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "Invalid address")
	}
	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "Amount must be greater than zero")
	}
	asset, err := s.findAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if !asset.Active {
		return nil, dErrors.New(dErrors.CodeInvalidState, "Asset is not active")
	}
	holding, err := s.holding(ctx, seller, assetID)
	if err != nil {
		return nil, err
	}
	if amount > holding.Spendable {
		return nil, dErrors.New(dErrors.CodeInsufficient, "Not enough shares owned")
	}
	pool, err := s.pool(ctx)
	if err != nil {
		return nil, err
	}
	payout := amount * asset.PricePerShare
	if payout > pool {
		// Must halt rather than silently under-pay.
		s.logger.ErrorContext(ctx, "currency pool cannot cover redemption payout",
			"asset_id", assetID, "payout", payout, "pool", pool)
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "Currency pool cannot cover payout")
	}

	asset.AvailableShares += amount
	holding.Spendable -= amount
	newPool := pool - payout
	if err := s.apply(ctx, models.Mutation{
		Assets:   []*models.Asset{asset},
		Holdings: []models.HoldingRecord{{Owner: seller, AssetID: assetID, Holding: holding}},
		Pool:     &newPool,
	}); err != nil {
		return nil, err
	}
	s.metrics.SetPool(component, newPool)

	s.emit(ctx, events.Event{
		Name:      events.EventSharesSold,
		Timestamp: requestcontext.Now(ctx),
		Actor:     seller,
		AssetID:   assetID,
		Amount:    amount,
		Price:     asset.PricePerShare,
		Payout:    payout,
	})
	return &SaleResult{
		AssetID:    assetID,
		Amount:     amount,
		Payout:     payout,
		NewBalance: holding.Spendable,
	}, nil
}

// UpdatePrice sets a new per-share price. Registry owner only.
func (s *Service) UpdatePrice(ctx context.Context, caller domain.AccountID, assetID domain.AssetID, newPrice uint64) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "update_price", err) }()

	if caller != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "Caller is not the registry owner")
	}
	if newPrice == 0 {
		return dErrors.New(dErrors.CodeValidation, "Price must be greater than zero")
	}
	asset, err := s.findAsset(ctx, assetID)
	if err != nil {
		return err
	}
	asset.PricePerShare = newPrice
	if err := s.apply(ctx, models.Mutation{Assets: []*models.Asset{asset}}); err != nil {
		return err
	}
	s.emit(ctx, events.Event{
		Name:      events.EventPriceUpdated,
		Timestamp: requestcontext.Now(ctx),
		Actor:     caller,
		AssetID:   assetID,
		Price:     newPrice,
	})
	return nil
}

// UpdateURI replaces the asset metadata URI. Registry owner only.
func (s *Service) UpdateURI(ctx context.Context, caller domain.AccountID, assetID domain.AssetID, uri string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "update_uri", err) }()

	if caller != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "Caller is not the registry owner")
	}
	if uri == "" {
		return dErrors.New(dErrors.CodeValidation, "URI cannot be empty")
	}
	asset, err := s.findAsset(ctx, assetID)
	if err != nil {
		return err
	}
	asset.MetadataURI = uri
	if err := s.apply(ctx, models.Mutation{Assets: []*models.Asset{asset}}); err != nil {
		return err
	}
	s.emit(ctx, events.Event{
		Name:      events.EventURIUpdated,
		Timestamp: requestcontext.Now(ctx),
		Actor:     caller,
		AssetID:   assetID,
		Label:     uri,
	})
	return nil
}

// SetActive gates purchase and redemption for an asset. Registry owner only.
func (s *Service) SetActive(ctx context.Context, caller domain.AccountID, assetID domain.AssetID, active bool) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "set_active", err) }()

	if caller != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "Caller is not the registry owner")
	}
	asset, err := s.findAsset(ctx, assetID)
	if err != nil {
		return err
	}
	asset.Active = active
	if err := s.apply(ctx, models.Mutation{Assets: []*models.Asset{asset}}); err != nil {
		return err
	}
	s.emit(ctx, events.Event{
		Name:      events.EventAssetStatusSet,
		Timestamp: requestcontext.Now(ctx),
		Actor:     caller,
		AssetID:   assetID,
		Flag:      active,
	})
	return nil
}

// Withdraw transfers the entire currency pool to the registry owner.
func (s *Service) Withdraw(ctx context.Context, caller domain.AccountID) (payout uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.metrics.ObserveOperation(component, "withdraw", err) }()

	if caller != s.owner {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "Caller is not the registry owner")
	}
	pool, err := s.pool(ctx)
	if err != nil {
		return 0, err
	}
	if pool == 0 {
		return 0, dErrors.New(dErrors.CodeInsufficient, "No funds to withdraw")
	}
	var zero uint64
	if err := s.apply(ctx, models.Mutation{Pool: &zero}); err != nil {
		return 0, err
	}
	s.metrics.SetPool(component, 0)

	s.emit(ctx, events.Event{
		Name:      events.EventFundsWithdrawn,
		Timestamp: requestcontext.Now(ctx),
		Actor:     caller,
		Payout:    pool,
	})
	return pool, nil
}

// -----------------------------------------------------------------------------
// Escrow primitives (marketplace only)
// -----------------------------------------------------------------------------

// Reserve moves amount shares from owner's spendable balance into escrow.
func (s *Service) Reserve(ctx context.Context, owner domain.AccountID, assetID domain.AssetID, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	holding, err := s.holding(ctx, owner, assetID)
	if err != nil {
		return err
	}
	if amount > holding.Spendable {
		return dErrors.New(dErrors.CodeInsufficient, "Insufficient shares owned")
	}
	holding.Spendable -= amount
	holding.Locked += amount
	return s.apply(ctx, models.Mutation{
		Holdings: []models.HoldingRecord{{Owner: owner, AssetID: assetID, Holding: holding}},
	})
}

// Release returns amount escrowed shares to owner's spendable balance.
// Releasing more than is locked indicates corrupted escrow bookkeeping.
func (s *Service) Release(ctx context.Context, owner domain.AccountID, assetID domain.AssetID, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	holding, err := s.holding(ctx, owner, assetID)
	if err != nil {
		return err
	}
	if amount > holding.Locked {
		return dErrors.New(dErrors.CodeInvariantViolation, "Escrow release exceeds locked balance")
	}
	holding.Locked -= amount
	holding.Spendable += amount
	return s.apply(ctx, models.Mutation{
		Holdings: []models.HoldingRecord{{Owner: owner, AssetID: assetID, Holding: holding}},
	})
}

// SettleReserved transfers amount shares from seller escrow to the buyer's
// spendable balance. Used by marketplace settlement after payment checks.
func (s *Service) SettleReserved(ctx context.Context, from, to domain.AccountID, assetID domain.AssetID, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fromHolding, err := s.holding(ctx, from, assetID)
	if err != nil {
		return err
	}
	if amount > fromHolding.Locked {
		return dErrors.New(dErrors.CodeInvariantViolation, "Escrow settlement exceeds locked balance")
	}
	toHolding, err := s.holding(ctx, to, assetID)
	if err != nil {
		return err
	}
	fromHolding.Locked -= amount
	toHolding.Spendable += amount
	return s.apply(ctx, models.Mutation{
		Holdings: []models.HoldingRecord{
			{Owner: from, AssetID: assetID, Holding: fromHolding},
			{Owner: to, AssetID: assetID, Holding: toHolding},
		},
	})
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// GetAssetDetails returns the asset record.
func (s *Service) GetAssetDetails(ctx context.Context, assetID domain.AssetID) (*models.Asset, error) {
	return s.findAsset(ctx, assetID)
}

// ListAssets returns every asset ordered by id.
func (s *Service) ListAssets(ctx context.Context) ([]*models.Asset, error) {
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assets")
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].ID < assets[j].ID })
	return assets, nil
}

// GetAssetCount returns how many assets have been created.
func (s *Service) GetAssetCount(ctx context.Context) (uint64, error) {
	next, err := s.store.NextAssetID(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count assets")
	}
	return uint64(next) - 1, nil
}

// BalanceOf returns the holder's spendable share count for the asset.
// Escrowed shares are excluded: they back an active listing or auction.
func (s *Service) BalanceOf(ctx context.Context, holder domain.AccountID, assetID domain.AssetID) (uint64, error) {
	holding, err := s.holding(ctx, holder, assetID)
	if err != nil {
		return 0, err
	}
	return holding.Spendable, nil
}

// TotalShares returns the asset's fixed supply. Used by governance for
// proposal-threshold arithmetic.
func (s *Service) TotalShares(ctx context.Context, assetID domain.AssetID) (uint64, error) {
	asset, err := s.findAsset(ctx, assetID)
	if err != nil {
		return 0, err
	}
	return asset.TotalShares, nil
}

// GetOwnedAssets returns the ids of assets in which the holder has any
// position, escrowed shares included, ordered by id.
func (s *Service) GetOwnedAssets(ctx context.Context, holder domain.AccountID) ([]domain.AssetID, error) {
	holdings, err := s.store.HoldingsByOwner(ctx, holder)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holdings")
	}
	out := make([]domain.AssetID, 0, len(holdings))
	for id, h := range holdings {
		if h.Total() > 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// CheckSupplyInvariant verifies availableShares + all holdings == totalShares
// for the asset. Exposed for tests and the daemon's startup check.
func (s *Service) CheckSupplyInvariant(ctx context.Context, assetID domain.AssetID) error {
	asset, err := s.findAsset(ctx, assetID)
	if err != nil {
		return err
	}
	holdings, err := s.store.HoldingsByAsset(ctx, assetID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holdings")
	}
	sum := asset.AvailableShares
	for _, h := range holdings {
		sum += h.Total()
	}
	if sum != asset.TotalShares {
		return dErrors.New(dErrors.CodeInvariantViolation, "Share supply is not conserved")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func (s *Service) findAsset(ctx context.Context, id domain.AssetID) (*models.Asset, error) {
	asset, err := s.store.FindAsset(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "Asset not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset")
	}
	return asset, nil
}

func (s *Service) holding(ctx context.Context, owner domain.AccountID, assetID domain.AssetID) (models.Holding, error) {
	holding, err := s.store.Holding(ctx, owner, assetID)
	if err != nil {
		return models.Holding{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holding")
	}
	return holding, nil
}

func (s *Service) pool(ctx context.Context) (uint64, error) {
	pool, err := s.store.Pool(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load currency pool")
	}
	return pool, nil
}

func (s *Service) apply(ctx context.Context, mutation models.Mutation) error {
	if err := s.store.Apply(ctx, mutation); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply ledger mutation")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		// State is already committed; a lost event is an observer problem.
		s.logger.ErrorContext(ctx, "failed to emit ledger event",
			"event", event.Name, "error", err)
		return
	}
	s.metrics.IncEventsEmitted()
}

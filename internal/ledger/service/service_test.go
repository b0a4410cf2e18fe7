package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"brickshare/internal/ledger/store"
	"brickshare/pkg/domain"
	dErrors "brickshare/pkg/domain-errors"
	"brickshare/pkg/platform/events"
	"brickshare/pkg/platform/events/mocks"
	"brickshare/pkg/requestcontext"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

const (
	owner = domain.AccountID("owner")
	alice = domain.AccountID("alice")
	bob   = domain.AccountID("bob")
)

type LedgerServiceSuite struct {
	suite.Suite
	store    *store.MemoryStore
	recorder *events.Recorder
	service  *Service
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.store = store.NewMemoryStore()
	s.recorder = events.NewRecorder()
	s.service = NewService(s.store, s.recorder, slog.New(slog.NewTextHandler(io.Discard, nil)), owner)
}

// createAsset is a fixture helper: 1000 shares at price 10.
func (s *LedgerServiceSuite) createAsset() domain.AssetID {
	asset, err := s.service.CreateAsset(context.Background(), owner, 1000, 10, "ipfs://meta/1")
	s.Require().NoError(err)
	return asset.ID
}

func (s *LedgerServiceSuite) TestCreateAsset() {
	ctx := context.Background()

	s.Run("assigns sequential ids starting at one", func() {
		first, err := s.service.CreateAsset(ctx, owner, 1000, 10, "ipfs://meta/1")
		s.Require().NoError(err)
		s.Equal(domain.AssetID(1), first.ID)

		second, err := s.service.CreateAsset(ctx, owner, 500, 20, "ipfs://meta/2")
		s.Require().NoError(err)
		s.Equal(domain.AssetID(2), second.ID)

		s.True(second.Active)
		s.Equal(uint64(500), second.AvailableShares)

		last := s.recorder.Last()
		s.Require().NotNil(last)
		s.Equal(events.EventAssetCreated, last.Name)
		s.Equal(second.ID, last.AssetID)
	})

	s.Run("non-owner is rejected", func() {
		_, err := s.service.CreateAsset(ctx, alice, 1000, 10, "ipfs://meta/x")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("zero shares rejected", func() {
		_, err := s.service.CreateAsset(ctx, owner, 0, 10, "ipfs://meta/x")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("Shares must be greater than zero", dErrors.Reason(err))
	})

	s.Run("zero price rejected", func() {
		_, err := s.service.CreateAsset(ctx, owner, 1000, 0, "ipfs://meta/x")
		s.Require().Error(err)
		s.Equal("Price must be greater than zero", dErrors.Reason(err))
	})

	s.Run("empty uri rejected", func() {
		_, err := s.service.CreateAsset(ctx, owner, 1000, 10, "")
		s.Require().Error(err)
		s.Equal("URI cannot be empty", dErrors.Reason(err))
	})
}

func (s *LedgerServiceSuite) TestPurchaseShares() {
	ctx := context.Background()
	assetID := s.createAsset()

	s.Run("exact payment is retained in the pool", func() {
		res, err := s.service.PurchaseShares(ctx, alice, assetID, 100, 1000)
		s.Require().NoError(err)
		s.Equal(uint64(1000), res.Cost)
		s.Equal(uint64(0), res.Refund)
		s.Equal(uint64(100), res.NewBalance)

		asset, err := s.service.GetAssetDetails(ctx, assetID)
		s.Require().NoError(err)
		s.Equal(uint64(900), asset.AvailableShares)

		pool, err := s.store.Pool(ctx)
		s.Require().NoError(err)
		s.Equal(uint64(1000), pool)

		last := s.recorder.Last()
		s.Require().NotNil(last)
		s.Equal(events.EventSharesPurchased, last.Name)
		s.Equal(alice, last.Actor)
		s.Equal(uint64(100), last.Amount)
	})

	s.Run("excess payment is refunded, not absorbed", func() {
		res, err := s.service.PurchaseShares(ctx, bob, assetID, 10, 150)
		s.Require().NoError(err)
		s.Equal(uint64(100), res.Cost)
		s.Equal(uint64(50), res.Refund)

		pool, err := s.store.Pool(ctx)
		s.Require().NoError(err)
		s.Equal(uint64(1100), pool)
	})

	s.Run("underpayment rejected with no state change", func() {
		before, err := s.service.GetAssetDetails(ctx, assetID)
		s.Require().NoError(err)

		_, err = s.service.PurchaseShares(ctx, alice, assetID, 10, 99)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficient))
		s.Equal("Insufficient payment", dErrors.Reason(err))

		after, err := s.service.GetAssetDetails(ctx, assetID)
		s.Require().NoError(err)
		s.Equal(before.AvailableShares, after.AvailableShares)
	})

	s.Run("over-subscription rejected", func() {
		_, err := s.service.PurchaseShares(ctx, alice, assetID, 10_000, 100_000)
		s.Require().Error(err)
		s.Equal("Not enough shares available", dErrors.Reason(err))
	})

	s.Run("inactive asset rejected", func() {
		s.Require().NoError(s.service.SetActive(ctx, owner, assetID, false))
		_, err := s.service.PurchaseShares(ctx, alice, assetID, 10, 100)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Equal("Asset is not active", dErrors.Reason(err))
		s.Require().NoError(s.service.SetActive(ctx, owner, assetID, true))
	})

	s.Run("zero amount rejected", func() {
		_, err := s.service.PurchaseShares(ctx, alice, assetID, 0, 100)
		s.Require().Error(err)
		s.Equal("Amount must be greater than zero", dErrors.Reason(err))
	})

	s.Run("unknown asset rejected", func() {
		_, err := s.service.PurchaseShares(ctx, alice, domain.AssetID(99), 10, 100)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *LedgerServiceSuite) TestSellShares() {
	ctx := context.Background()
	assetID := s.createAsset()
	_, err := s.service.PurchaseShares(ctx, alice, assetID, 100, 1000)
	s.Require().NoError(err)

	s.Run("redemption pays from the pool at current price", func() {
		res, err := s.service.SellShares(ctx, alice, assetID, 40)
		s.Require().NoError(err)
		s.Equal(uint64(400), res.Payout)
		s.Equal(uint64(60), res.NewBalance)

		asset, err := s.service.GetAssetDetails(ctx, assetID)
		s.Require().NoError(err)
		s.Equal(uint64(940), asset.AvailableShares)

		pool, err := s.store.Pool(ctx)
		s.Require().NoError(err)
		s.Equal(uint64(600), pool)
	})

	s.Run("selling more than owned rejected", func() {
		_, err := s.service.SellShares(ctx, alice, assetID, 61)
		s.Require().Error(err)
		s.Equal("Not enough shares owned", dErrors.Reason(err))
	})

	s.Run("price raise after purchase can trip the pool guard", func() {
		s.Require().NoError(s.service.UpdatePrice(ctx, owner, assetID, 1000))
		_, err := s.service.SellShares(ctx, alice, assetID, 60)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Require().NoError(s.service.UpdatePrice(ctx, owner, assetID, 10))
	})

	s.Run("supply stays conserved across the round trip", func() {
		s.Require().NoError(s.service.CheckSupplyInvariant(ctx, assetID))
	})
}

func (s *LedgerServiceSuite) TestOwnerParameterUpdates() {
	ctx := context.Background()
	assetID := s.createAsset()

	s.Run("price update applies to later purchases", func() {
		s.Require().NoError(s.service.UpdatePrice(ctx, owner, assetID, 25))
		res, err := s.service.PurchaseShares(ctx, alice, assetID, 4, 100)
		s.Require().NoError(err)
		s.Equal(uint64(100), res.Cost)
	})

	s.Run("uri update", func() {
		s.Require().NoError(s.service.UpdateURI(ctx, owner, assetID, "ipfs://meta/v2"))
		asset, err := s.service.GetAssetDetails(ctx, assetID)
		s.Require().NoError(err)
		s.Equal("ipfs://meta/v2", asset.MetadataURI)
	})

	s.Run("non-owner updates rejected", func() {
		s.True(dErrors.HasCode(s.service.UpdatePrice(ctx, alice, assetID, 30), dErrors.CodeUnauthorized))
		s.True(dErrors.HasCode(s.service.UpdateURI(ctx, alice, assetID, "x"), dErrors.CodeUnauthorized))
		s.True(dErrors.HasCode(s.service.SetActive(ctx, alice, assetID, false), dErrors.CodeUnauthorized))
	})

	s.Run("zero price rejected", func() {
		err := s.service.UpdatePrice(ctx, owner, assetID, 0)
		s.Equal("Price must be greater than zero", dErrors.Reason(err))
	})
}

func (s *LedgerServiceSuite) TestWithdraw() {
	ctx := context.Background()
	assetID := s.createAsset()

	s.Run("empty pool rejected", func() {
		_, err := s.service.Withdraw(ctx, owner)
		s.Require().Error(err)
		s.Equal("No funds to withdraw", dErrors.Reason(err))
	})

	s.Run("owner drains the whole pool", func() {
		_, err := s.service.PurchaseShares(ctx, alice, assetID, 50, 500)
		s.Require().NoError(err)

		payout, err := s.service.Withdraw(ctx, owner)
		s.Require().NoError(err)
		s.Equal(uint64(500), payout)

		pool, err := s.store.Pool(ctx)
		s.Require().NoError(err)
		s.Equal(uint64(0), pool)
	})

	s.Run("non-owner rejected", func() {
		_, err := s.service.Withdraw(ctx, alice)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *LedgerServiceSuite) TestEscrow() {
	ctx := context.Background()
	assetID := s.createAsset()
	_, err := s.service.PurchaseShares(ctx, alice, assetID, 100, 1000)
	s.Require().NoError(err)

	s.Run("reserve moves shares out of the spendable balance", func() {
		s.Require().NoError(s.service.Reserve(ctx, alice, assetID, 30))

		balance, err := s.service.BalanceOf(ctx, alice, assetID)
		s.Require().NoError(err)
		s.Equal(uint64(70), balance)

		// Escrowed shares cannot be redeemed or re-reserved.
		_, err = s.service.SellShares(ctx, alice, assetID, 71)
		s.Require().Error(err)
		s.Equal("Not enough shares owned", dErrors.Reason(err))

		err = s.service.Reserve(ctx, alice, assetID, 71)
		s.Require().Error(err)
		s.Equal("Insufficient shares owned", dErrors.Reason(err))
	})

	s.Run("settle transfers escrow to the counterparty", func() {
		s.Require().NoError(s.service.SettleReserved(ctx, alice, bob, assetID, 20))

		bobBalance, err := s.service.BalanceOf(ctx, bob, assetID)
		s.Require().NoError(err)
		s.Equal(uint64(20), bobBalance)
	})

	s.Run("release returns the remainder to the seller", func() {
		s.Require().NoError(s.service.Release(ctx, alice, assetID, 10))

		balance, err := s.service.BalanceOf(ctx, alice, assetID)
		s.Require().NoError(err)
		s.Equal(uint64(80), balance)
	})

	s.Run("over-release is an invariant breach", func() {
		err := s.service.Release(ctx, alice, assetID, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("supply is conserved with escrow outstanding", func() {
		s.Require().NoError(s.service.CheckSupplyInvariant(ctx, assetID))
	})
}

func (s *LedgerServiceSuite) TestReads() {
	ctx := context.Background()
	first := s.createAsset()
	second, err := s.service.CreateAsset(ctx, owner, 200, 5, "ipfs://meta/2")
	s.Require().NoError(err)

	_, err = s.service.PurchaseShares(ctx, alice, first, 10, 100)
	s.Require().NoError(err)
	_, err = s.service.PurchaseShares(ctx, alice, second.ID, 10, 50)
	s.Require().NoError(err)

	s.Run("owned assets ordered by id", func() {
		owned, err := s.service.GetOwnedAssets(ctx, alice)
		s.Require().NoError(err)
		s.Equal([]domain.AssetID{first, second.ID}, owned)
	})

	s.Run("fully redeemed position drops out", func() {
		_, err := s.service.SellShares(ctx, alice, second.ID, 10)
		s.Require().NoError(err)

		owned, err := s.service.GetOwnedAssets(ctx, alice)
		s.Require().NoError(err)
		s.Equal([]domain.AssetID{first}, owned)
	})

	s.Run("balance of stranger is zero", func() {
		balance, err := s.service.BalanceOf(ctx, bob, first)
		s.Require().NoError(err)
		s.Equal(uint64(0), balance)
	})

	s.Run("list assets", func() {
		assets, err := s.service.ListAssets(ctx)
		s.Require().NoError(err)
		s.Len(assets, 2)

		count, err := s.service.GetAssetCount(ctx)
		s.Require().NoError(err)
		s.Equal(uint64(2), count)
	})
}

func (s *LedgerServiceSuite) TestInjectedClock() {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), at)

	asset, err := s.service.CreateAsset(ctx, owner, 100, 1, "ipfs://meta/t")
	s.Require().NoError(err)
	s.Equal(at, asset.UpdatedAt)

	last := s.recorder.Last()
	s.Require().NotNil(last)
	s.Equal(at, last.Timestamp)
}

func (s *LedgerServiceSuite) TestEmitFailureDoesNotFailOperation() {
	ctrl := gomock.NewController(s.T())
	publisher := mocks.NewMockPublisher(ctrl)
	publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("broker down")).Times(2)

	svc := NewService(store.NewMemoryStore(), publisher,
		slog.New(slog.NewTextHandler(io.Discard, nil)), owner)

	ctx := context.Background()
	asset, err := svc.CreateAsset(ctx, owner, 100, 10, "ipfs://meta/p")
	s.Require().NoError(err)

	res, err := svc.PurchaseShares(ctx, alice, asset.ID, 10, 100)
	s.Require().NoError(err)
	s.Equal(uint64(10), res.NewBalance)
}

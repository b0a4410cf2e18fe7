//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"brickshare/internal/ledger/models"
	"brickshare/internal/ledger/store"
	"brickshare/pkg/domain"
	"brickshare/pkg/platform/sentinel"
	"brickshare/pkg/testutil/containers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresLedgerStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	st := store.NewPostgres(pg.DB)
	ctx := context.Background()

	asset := &models.Asset{
		ID:              1,
		TotalShares:     1000,
		AvailableShares: 1000,
		PricePerShare:   10,
		MetadataURI:     "ipfs://meta/1",
		Active:          true,
		UpdatedAt:       time.Now().UTC(),
	}

	t.Run("missing asset", func(t *testing.T) {
		_, err := st.FindAsset(ctx, 1)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		id, err := st.NextAssetID(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.AssetID(1), id)
	})

	t.Run("mutation applies asset, holdings and pool together", func(t *testing.T) {
		pool := uint64(500)
		err := st.Apply(ctx, models.Mutation{
			Assets: []*models.Asset{asset},
			Holdings: []models.HoldingRecord{
				{Owner: "alice", AssetID: 1, Holding: models.Holding{Spendable: 70, Locked: 30}},
			},
			Pool: &pool,
		})
		require.NoError(t, err)

		got, err := st.FindAsset(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), got.TotalShares)
		assert.Equal(t, "ipfs://meta/1", got.MetadataURI)

		holding, err := st.Holding(ctx, "alice", 1)
		require.NoError(t, err)
		assert.Equal(t, models.Holding{Spendable: 70, Locked: 30}, holding)

		balance, err := st.Pool(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(500), balance)

		id, err := st.NextAssetID(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.AssetID(2), id)
	})

	t.Run("upsert updates mutable asset fields", func(t *testing.T) {
		asset.AvailableShares = 900
		asset.PricePerShare = 12
		asset.Active = false
		require.NoError(t, st.Apply(ctx, models.Mutation{Assets: []*models.Asset{asset}}))

		got, err := st.FindAsset(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(900), got.AvailableShares)
		assert.Equal(t, uint64(12), got.PricePerShare)
		assert.False(t, got.Active)
	})

	t.Run("zero holding deletes the row", func(t *testing.T) {
		require.NoError(t, st.Apply(ctx, models.Mutation{
			Holdings: []models.HoldingRecord{{Owner: "alice", AssetID: 1}},
		}))

		byOwner, err := st.HoldingsByOwner(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, byOwner)

		holding, err := st.Holding(ctx, "alice", 1)
		require.NoError(t, err)
		assert.True(t, holding.IsZero())
	})

	t.Run("holdings by asset", func(t *testing.T) {
		require.NoError(t, st.Apply(ctx, models.Mutation{
			Holdings: []models.HoldingRecord{
				{Owner: "alice", AssetID: 1, Holding: models.Holding{Spendable: 10}},
				{Owner: "bob", AssetID: 1, Holding: models.Holding{Spendable: 20}},
			},
		}))

		byAsset, err := st.HoldingsByAsset(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, byAsset, 2)
		assert.Equal(t, uint64(20), byAsset["bob"].Spendable)
	})
}

//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"brickshare/internal/compliance/models"
	"brickshare/internal/compliance/store"
	"brickshare/pkg/domain"
	"brickshare/pkg/platform/sentinel"
	"brickshare/pkg/testutil/containers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresComplianceStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	st := store.NewPostgres(pg.DB)
	ctx := context.Background()

	t.Run("investor round trip", func(t *testing.T) {
		_, err := st.FindInvestor(ctx, "wallet-1")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		now := time.Now().UTC()
		require.NoError(t, st.Apply(ctx, models.Mutation{
			Investors: []*models.InvestorRecord{{
				Wallet:           "wallet-1",
				Level:            models.LevelAccredited,
				VerificationDate: now,
				ExpirationDate:   now.Add(365 * 24 * time.Hour),
				IsActive:         true,
				VerificationHash: "sha256:abc",
			}},
		}))

		got, err := st.FindInvestor(ctx, "wallet-1")
		require.NoError(t, err)
		assert.Equal(t, models.LevelAccredited, got.Level)
		assert.True(t, got.IsActive)
	})

	t.Run("blacklist add and remove", func(t *testing.T) {
		require.NoError(t, st.Apply(ctx, models.Mutation{
			Blacklist: []*models.BlacklistEntry{{
				Wallet: "wallet-1", Reason: "sanctions match", ListedAt: time.Now().UTC(),
			}},
		}))
		listed, err := st.IsBlacklisted(ctx, "wallet-1")
		require.NoError(t, err)
		assert.True(t, listed)

		require.NoError(t, st.Apply(ctx, models.Mutation{
			Unblacklist: []domain.AccountID{"wallet-1"},
		}))
		listed, err = st.IsBlacklisted(ctx, "wallet-1")
		require.NoError(t, err)
		assert.False(t, listed)
	})

	t.Run("country restrictions", func(t *testing.T) {
		restricted, err := st.IsCountryRestricted(ctx, "KP")
		require.NoError(t, err)
		assert.False(t, restricted)

		require.NoError(t, st.Apply(ctx, models.Mutation{Countries: map[string]bool{"KP": true}}))
		restricted, err = st.IsCountryRestricted(ctx, "KP")
		require.NoError(t, err)
		assert.True(t, restricted)
	})

	t.Run("role grants", func(t *testing.T) {
		granted, err := st.HasRole(ctx, "acct", models.RoleVerifier)
		require.NoError(t, err)
		assert.False(t, granted)

		require.NoError(t, st.Apply(ctx, models.Mutation{
			Grants: []models.RoleGrant{{Account: "acct", Role: models.RoleVerifier}},
		}))
		granted, err = st.HasRole(ctx, "acct", models.RoleVerifier)
		require.NoError(t, err)
		assert.True(t, granted)

		require.NoError(t, st.Apply(ctx, models.Mutation{
			Revocations: []models.RoleGrant{{Account: "acct", Role: models.RoleVerifier}},
		}))
		granted, err = st.HasRole(ctx, "acct", models.RoleVerifier)
		require.NoError(t, err)
		assert.False(t, granted)
	})

	t.Run("pause flag", func(t *testing.T) {
		paused, err := st.Paused(ctx)
		require.NoError(t, err)
		assert.False(t, paused)

		on := true
		require.NoError(t, st.Apply(ctx, models.Mutation{Paused: &on}))
		paused, err = st.Paused(ctx)
		require.NoError(t, err)
		assert.True(t, paused)
	})
}

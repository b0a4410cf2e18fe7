package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"brickshare/internal/market/models"
	"brickshare/pkg/domain"
	"brickshare/pkg/platform/sentinel"
)

// PostgresStore persists marketplace state in PostgreSQL. Mutations run in
// one transaction so a failed operation leaves no partial application behind.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed marketplace store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const listingColumns = `id, seller, asset_id, amount, price_per_share, active, updated_at`

func scanListing(row interface{ Scan(...any) error }) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(&l.ID, &l.Seller, &l.AssetID, &l.Amount, &l.PricePerShare, &l.Active, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

const auctionColumns = `id, seller, asset_id, amount, starting_price, current_bid, current_bidder, end_time, active, claimed, updated_at`

func scanAuction(row interface{ Scan(...any) error }) (*models.Auction, error) {
	var a models.Auction
	err := row.Scan(&a.ID, &a.Seller, &a.AssetID, &a.Amount, &a.StartingPrice,
		&a.CurrentBid, &a.CurrentBidder, &a.EndTime, &a.Active, &a.Claimed, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) FindListing(ctx context.Context, id domain.ListingID) (*models.Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	listing, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find listing %d: %w", id, err)
	}
	return listing, nil
}

func (s *PostgresStore) ListListings(ctx context.Context) ([]*models.Listing, error) {
	return s.queryListings(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY id`)
}

func (s *PostgresStore) ListingsBySeller(ctx context.Context, seller domain.AccountID) ([]*models.Listing, error) {
	return s.queryListings(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE seller = $1 ORDER BY id`, seller)
}

func (s *PostgresStore) queryListings(ctx context.Context, query string, args ...any) ([]*models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var out []*models.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, listing)
	}
	return out, rows.Err()
}

func (s *PostgresStore) NextListingID(ctx context.Context) (domain.ListingID, error) {
	var max uint64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM listings`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("next listing id: %w", err)
	}
	return domain.ListingID(max + 1), nil
}

func (s *PostgresStore) FindAuction(ctx context.Context, id domain.AuctionID) (*models.Auction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id)
	auction, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find auction %d: %w", id, err)
	}
	return auction, nil
}

func (s *PostgresStore) ListAuctions(ctx context.Context) ([]*models.Auction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+auctionColumns+` FROM auctions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	var out []*models.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		out = append(out, auction)
	}
	return out, rows.Err()
}

func (s *PostgresStore) NextAuctionID(ctx context.Context) (domain.AuctionID, error) {
	var max uint64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM auctions`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("next auction id: %w", err)
	}
	return domain.AuctionID(max + 1), nil
}

func (s *PostgresStore) Pool(ctx context.Context) (uint64, error) {
	var balance uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM pools WHERE component = 'market'`).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("market pool: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) Apply(ctx context.Context, mutation models.Mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin market mutation: %w", err)
	}
	defer tx.Rollback()

	for _, listing := range mutation.Listings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO listings (id, seller, asset_id, amount, price_per_share, active, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (id) DO UPDATE SET
				amount          = EXCLUDED.amount,
				price_per_share = EXCLUDED.price_per_share,
				active          = EXCLUDED.active,
				updated_at      = now()`,
			listing.ID, listing.Seller, listing.AssetID, listing.Amount, listing.PricePerShare, listing.Active,
		)
		if err != nil {
			return fmt.Errorf("upsert listing %d: %w", listing.ID, err)
		}
	}

	for _, auction := range mutation.Auctions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO auctions (id, seller, asset_id, amount, starting_price, current_bid, current_bidder, end_time, active, claimed, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
			ON CONFLICT (id) DO UPDATE SET
				current_bid    = EXCLUDED.current_bid,
				current_bidder = EXCLUDED.current_bidder,
				active         = EXCLUDED.active,
				claimed        = EXCLUDED.claimed,
				updated_at     = now()`,
			auction.ID, auction.Seller, auction.AssetID, auction.Amount, auction.StartingPrice,
			auction.CurrentBid, auction.CurrentBidder, auction.EndTime, auction.Active, auction.Claimed,
		)
		if err != nil {
			return fmt.Errorf("upsert auction %d: %w", auction.ID, err)
		}
	}

	if mutation.Pool != nil {
		_, err := tx.ExecContext(ctx,
			`UPDATE pools SET balance = $1 WHERE component = 'market'`, *mutation.Pool)
		if err != nil {
			return fmt.Errorf("update market pool: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit market mutation: %w", err)
	}
	return nil
}

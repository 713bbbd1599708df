package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/escrow-auction/internal/auction"
	"github.com/floroz/escrow-auction/internal/eventlog"
	"github.com/floroz/escrow-auction/internal/ledger"
)

const uniqueViolation = "23505"

// ErrConflict means the row already exists: another writer journaled the
// same listing id or record offset first, or an earlier commit landed
// without being acknowledged.
var ErrConflict = auction.ErrJournalConflict

// PostgresAuctionRepository stores listings and their records
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAuctionRepository creates a new PostgreSQL auction repository
func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

// SaveListing inserts a listing within a transaction
func (r *PostgresAuctionRepository) SaveListing(ctx context.Context, tx pgx.Tx, l auction.Listing) error {
	query := `
		INSERT INTO auctions (
			id, owner, contact, item_name, item_description, item_condition, image_ref,
			starting_bid, bid_increment, selling_price, is_private, created_at, ends_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := tx.Exec(ctx, query,
		int64(l.ID),
		l.Owner.String(),
		l.Contact,
		l.Item.Name,
		l.Item.Description,
		l.Item.Condition,
		l.Item.ImageRef,
		int64(l.StartingBid),
		int64(l.BidIncrement),
		int64(l.SellingPrice),
		l.IsPrivate,
		l.CreatedAt,
		l.EndsAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", classify(err))
	}
	return nil
}

// AppendEvent inserts a record at its offset within a transaction
func (r *PostgresAuctionRepository) AppendEvent(ctx context.Context, tx pgx.Tx, rec eventlog.Record) error {
	query := `
		INSERT INTO auction_events (auction_id, seq, kind, bidder, caller, amount, refund, status, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := tx.Exec(ctx, query,
		int64(rec.AuctionID),
		int64(rec.Offset),
		rec.Kind.String(),
		rec.Bidder.String(),
		rec.Caller.String(),
		int64(rec.Amount),
		int64(rec.Refund),
		rec.Status,
		rec.At,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction event: %w", classify(err))
	}
	return nil
}

// ListListings returns every listing ordered by id
func (r *PostgresAuctionRepository) ListListings(ctx context.Context) ([]auction.Listing, error) {
	query := `
		SELECT id, owner, contact, item_name, item_description, item_condition, image_ref,
		       starting_bid, bid_increment, selling_price, is_private, created_at, ends_at
		FROM auctions
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var listings []auction.Listing
	for rows.Next() {
		var (
			l                                  auction.Listing
			id                                 int64
			owner                              string
			startingBid, increment, sellingPrc int64
		)
		if err := rows.Scan(
			&id,
			&owner,
			&l.Contact,
			&l.Item.Name,
			&l.Item.Description,
			&l.Item.Condition,
			&l.Item.ImageRef,
			&startingBid,
			&increment,
			&sellingPrc,
			&l.IsPrivate,
			&l.CreatedAt,
			&l.EndsAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		l.ID = uint64(id)
		l.Owner = ledger.Address(owner)
		l.StartingBid = ledger.Amount(startingBid)
		l.BidIncrement = ledger.Amount(increment)
		l.SellingPrice = ledger.Amount(sellingPrc)
		l.CreatedAt = l.CreatedAt.UTC()
		l.EndsAt = l.EndsAt.UTC()
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate auctions: %w", err)
	}
	return listings, nil
}

// ListEvents returns every record ordered by auction and offset
func (r *PostgresAuctionRepository) ListEvents(ctx context.Context) ([]eventlog.Record, error) {
	return r.queryEvents(ctx, `
		SELECT auction_id, seq, kind, bidder, caller, amount, refund, status, occurred_at
		FROM auction_events
		ORDER BY auction_id ASC, seq ASC
	`)
}

// ListAuctionEvents returns the records of one auction starting at offset
func (r *PostgresAuctionRepository) ListAuctionEvents(ctx context.Context, auctionID, offset uint64) ([]eventlog.Record, error) {
	return r.queryEvents(ctx, `
		SELECT auction_id, seq, kind, bidder, caller, amount, refund, status, occurred_at
		FROM auction_events
		WHERE auction_id = $1 AND seq >= $2
		ORDER BY seq ASC
	`, int64(auctionID), int64(offset))
}

func (r *PostgresAuctionRepository) queryEvents(ctx context.Context, query string, args ...any) ([]eventlog.Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auction events: %w", err)
	}
	defer rows.Close()

	var records []eventlog.Record
	for rows.Next() {
		var (
			rec                  eventlog.Record
			auctionID, seq       int64
			kind, bidder, caller string
			amount, refund       int64
		)
		if err := rows.Scan(&auctionID, &seq, &kind, &bidder, &caller, &amount, &refund, &rec.Status, &rec.At); err != nil {
			return nil, fmt.Errorf("failed to scan auction event: %w", err)
		}
		rec.AuctionID = uint64(auctionID)
		rec.Offset = uint64(seq)
		rec.Kind = eventlog.Kind(kind)
		rec.Bidder = ledger.Address(bidder)
		rec.Caller = ledger.Address(caller)
		rec.Amount = ledger.Amount(amount)
		rec.Refund = ledger.Amount(refund)
		rec.At = rec.At.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate auction events: %w", err)
	}
	return records, nil
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/floroz/escrow-auction/internal/adapters/events"
	"github.com/floroz/escrow-auction/internal/auction"
	"github.com/floroz/escrow-auction/internal/eventlog"
	pkgdb "github.com/floroz/escrow-auction/pkg/database"
)

// Journal implements auction.Journal on Postgres. Every write stores the
// row and its outbox event in one transaction, so the relay publishes
// exactly what was journaled.
type Journal struct {
	txManager pkgdb.TransactionManager
	auctions  *PostgresAuctionRepository
	outbox    *PostgresOutboxRepository
}

var (
	_ auction.Journal       = (*Journal)(nil)
	_ auction.JournalReader = (*Journal)(nil)
)

// NewJournal creates a new Postgres journal
func NewJournal(txManager pkgdb.TransactionManager, auctions *PostgresAuctionRepository, outbox *PostgresOutboxRepository) *Journal {
	return &Journal{
		txManager: txManager,
		auctions:  auctions,
		outbox:    outbox,
	}
}

// SaveListing journals a new listing and its auction.created event
func (j *Journal) SaveListing(ctx context.Context, listing auction.Listing) error {
	payload, err := events.EncodeListing(listing)
	if err != nil {
		return err
	}

	return pkgdb.WithTx(ctx, j.txManager, func(tx pgx.Tx) error {
		if err := j.auctions.SaveListing(ctx, tx, listing); err != nil {
			return err
		}
		return j.outbox.Enqueue(ctx, tx, events.EventTypeAuctionCreated, payload, listing.CreatedAt)
	})
}

// AppendRecord journals a record and its outbox event
func (j *Journal) AppendRecord(ctx context.Context, rec eventlog.Record) error {
	payload, err := events.EncodeRecord(rec)
	if err != nil {
		return err
	}

	return pkgdb.WithTx(ctx, j.txManager, func(tx pgx.Tx) error {
		if err := j.auctions.AppendEvent(ctx, tx, rec); err != nil {
			return err
		}
		return j.outbox.Enqueue(ctx, tx, rec.Kind.String(), payload, rec.At)
	})
}

// RecordsFrom returns the journaled records of one auction from offset on
func (j *Journal) RecordsFrom(ctx context.Context, auctionID, offset uint64) ([]eventlog.Record, error) {
	records, err := j.auctions.ListAuctionEvents(ctx, auctionID, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to load records of auction %d: %w", auctionID, err)
	}
	return records, nil
}

// Load reads everything needed to restore a registry
func (j *Journal) Load(ctx context.Context) ([]auction.Listing, []eventlog.Record, error) {
	listings, err := j.auctions.ListListings(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load listings: %w", err)
	}
	records, err := j.auctions.ListEvents(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load records: %w", err)
	}
	return listings, records, nil
}

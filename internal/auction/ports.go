package auction

import (
	"context"

	"github.com/floroz/escrow-auction/internal/eventlog"
)

// Journal durably records listings and committed records. A record is
// journaled before it is applied; when the journal fails the operation fails
// and nothing changes.
type Journal interface {
	// SaveListing stores the creation parameters of a new auction
	SaveListing(ctx context.Context, listing Listing) error

	// AppendRecord stores a record at its offset within the auction
	AppendRecord(ctx context.Context, rec eventlog.Record) error
}

// JournalReader is implemented by journals that can return the tail of one
// auction. An auction that hits ErrJournalConflict reloads through it.
type JournalReader interface {
	RecordsFrom(ctx context.Context, auctionID, offset uint64) ([]eventlog.Record, error)
}

// Notifier receives records after they are committed, for live fan-out.
// Bid amounts are already hidden while the auction is sealed.
// Errors are logged and never fail the operation.
type Notifier interface {
	Notify(ctx context.Context, rec eventlog.Record) error
}

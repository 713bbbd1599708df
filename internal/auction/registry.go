package auction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/floroz/escrow-auction/internal/eventlog"
	"github.com/floroz/escrow-auction/internal/ledger"
)

// Option configures a Registry
type Option func(*deps)

// WithJournal makes every listing and record durable before it is applied.
func WithJournal(j Journal) Option {
	return func(d *deps) { d.journal = j }
}

// WithNotifier fans committed records out to live subscribers.
func WithNotifier(n Notifier) Option {
	return func(d *deps) { d.notifier = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *deps) { d.logger = logger }
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// Registry creates auctions and looks them up by id. Ids are assigned
// sequentially from zero and never reused.
type Registry struct {
	mu       sync.RWMutex
	auctions []*Auction
	deps     *deps
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	d := &deps{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return &Registry{deps: d}
}

// Create lists a new ONGOING auction. The listing is journaled before the id
// becomes visible, so a journal failure consumes no id.
func (r *Registry) Create(ctx context.Context, cmd CreateAuctionCommand) (*Auction, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.deps.now().UTC()
	listing := Listing{
		ID:           uint64(len(r.auctions)),
		Owner:        cmd.Owner,
		Contact:      cmd.Contact,
		Item:         cmd.Item,
		CreatedAt:    now,
		EndsAt:       now.Add(time.Duration(cmd.DurationHours) * time.Hour),
		StartingBid:  cmd.StartingBid,
		BidIncrement: cmd.BidIncrement,
		SellingPrice: cmd.SellingPrice,
		IsPrivate:    cmd.IsPrivate,
	}

	if r.deps.journal != nil {
		if err := r.deps.journal.SaveListing(ctx, listing); err != nil {
			return nil, fmt.Errorf("failed to save listing: %w", err)
		}
	}

	a := newAuction(listing, r.deps)
	r.auctions = append(r.auctions, a)
	return a, nil
}

// Get returns the auction with the given id
func (r *Registry) Get(id uint64) (*Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id >= uint64(len(r.auctions)) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return r.auctions[id], nil
}

// List returns every auction id in creation order.
func (r *Registry) List() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint64, len(r.auctions))
	for i := range r.auctions {
		ids[i] = uint64(i)
	}
	return ids
}

// Len returns the number of auctions created so far.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.auctions)
}

func (r *Registry) all() []*Auction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Auction, len(r.auctions))
	copy(out, r.auctions)
	return out
}

// ListByOwner returns the ids of auctions listed by owner, in creation order.
func (r *Registry) ListByOwner(owner ledger.Address) []uint64 {
	var ids []uint64
	for _, a := range r.all() {
		if a.Owner() == owner {
			ids = append(ids, a.ID())
		}
	}
	return ids
}

// OwnerActivity splits owner's auctions into ongoing and closed.
func (r *Registry) OwnerActivity(owner ledger.Address) OwnerActivity {
	var act OwnerActivity
	for _, a := range r.all() {
		if a.Owner() != owner {
			continue
		}
		if a.Status() == StatusOngoing {
			act.Ongoing = append(act.Ongoing, a.ID())
		} else {
			act.Closed = append(act.Closed, a.ID())
		}
	}
	return act
}

// BidderActivity reports the auctions bidder is still involved in.
func (r *Registry) BidderActivity(bidder ledger.Address) BidderActivity {
	var act BidderActivity
	for _, a := range r.all() {
		status, owner, held, winner := a.activity(bidder)
		if owner == bidder {
			continue
		}
		switch {
		case winner:
			act.Won = append(act.Won, a.ID())
		case held.IsZero():
		case status == StatusOngoing:
			act.Bidding = append(act.Bidding, a.ID())
		default:
			act.Lost = append(act.Lost, a.ID())
		}
	}
	return act
}

// Restore rebuilds the registry from journaled listings and records. It must
// be called on an empty registry before any other operation. Listings must
// carry ids 0..n-1; records are replayed in offset order per auction.
func (r *Registry) Restore(ctx context.Context, listings []Listing, records []eventlog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.auctions) > 0 {
		return fmt.Errorf("cannot restore into a registry holding %d auctions", len(r.auctions))
	}

	sorted := make([]Listing, len(listings))
	copy(sorted, listings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	auctions := make([]*Auction, 0, len(sorted))
	for i, l := range sorted {
		if l.ID != uint64(i) {
			return fmt.Errorf("listing ids are not contiguous: expected %d, got %d", i, l.ID)
		}
		auctions = append(auctions, newAuction(l, r.deps))
	}

	ordered := make([]eventlog.Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].AuctionID != ordered[j].AuctionID {
			return ordered[i].AuctionID < ordered[j].AuctionID
		}
		return ordered[i].Offset < ordered[j].Offset
	})

	for _, rec := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.AuctionID >= uint64(len(auctions)) {
			return fmt.Errorf("record for unknown auction %d", rec.AuctionID)
		}
		if err := auctions[rec.AuctionID].replay(rec); err != nil {
			return fmt.Errorf("failed to replay journal: %w", err)
		}
	}

	r.auctions = auctions
	r.deps.logger.Info("Registry restored", "auctions", len(auctions), "records", len(ordered))
	return nil
}

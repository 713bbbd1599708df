package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/floroz/escrow-auction/internal/eventlog"
	"github.com/floroz/escrow-auction/internal/ledger"
)

// deps are the collaborators shared by every auction of a registry.
type deps struct {
	journal  Journal
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Auction is one listed item with its own state machine and escrow.
//
// All mutations hold the write lock for the whole validate, journal, apply
// and append sequence, which mirrors a row lock held for the length of a
// transaction: concurrent calls on the same auction are applied one at a
// time and each sees the effects of the previous one.
type Auction struct {
	mu sync.RWMutex

	listing       Listing
	status        Status
	highestBid    ledger.Amount
	highestBidder ledger.Address
	purchaser     ledger.Address
	totalBids     int64

	bids   *BidLedger
	events *eventlog.Log
	deps   *deps
}

func newAuction(listing Listing, d *deps) *Auction {
	return &Auction{
		listing: listing,
		status:  StatusOngoing,
		bids:    NewBidLedger(),
		events:  eventlog.New(),
		deps:    d,
	}
}

// PlaceBid escrows amount for caller.
func (a *Auction) PlaceBid(ctx context.Context, caller ledger.Address, amount ledger.Amount) (eventlog.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.validateBid(caller, amount); err != nil {
		return eventlog.Record{}, err
	}

	return a.commit(ctx, eventlog.Record{
		Kind:   eventlog.KindBidPlaced,
		Bidder: caller,
		Amount: amount,
		Refund: a.bids.Balance(caller),
	})
}

func (a *Auction) validateBid(caller ledger.Address, amount ledger.Amount) error {
	if err := a.requireOngoing(); err != nil {
		return err
	}
	if caller.IsZero() {
		return fmt.Errorf("%w: caller address is required", ErrInvalidParameter)
	}
	if caller == a.listing.Owner {
		return ErrSelfBidForbidden
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrBidTooLow)
	}

	if a.listing.IsPrivate {
		// Single round: the one permitted bid is the only one checked
		// against the floor.
		if !a.bids.Balance(caller).IsZero() {
			return ErrAlreadyBid
		}
		floor := ledger.Max(a.listing.StartingBid, a.listing.BidIncrement)
		if amount < floor {
			return fmt.Errorf("%w: minimum bid is %d", ErrBidTooLow, floor)
		}
	} else if a.highestBid > 0 {
		threshold, err := a.highestBid.Add(a.listing.BidIncrement)
		if err != nil {
			return fmt.Errorf("%w: no bid can exceed %d plus the increment: %w", ErrBidTooLow, a.highestBid, err)
		}
		if amount <= threshold {
			return fmt.Errorf("%w: bid must exceed %d", ErrBidTooLow, threshold)
		}
	} else if amount < a.listing.StartingBid {
		return fmt.Errorf("%w: starting bid is %d", ErrBidTooLow, a.listing.StartingBid)
	}

	if !a.bids.CanDeposit(amount) {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, ledger.ErrAmountOverflow)
	}
	return nil
}

// CancelAuction closes the auction without a winner. Every held bid becomes
// withdrawable by its depositor.
func (a *Auction) CancelAuction(ctx context.Context, caller ledger.Address) (eventlog.Record, error) {
	return a.close(ctx, caller, StatusCancelled)
}

// EndAuction closes bidding. The highest bid becomes claimable by the owner;
// every other held bid becomes withdrawable.
func (a *Auction) EndAuction(ctx context.Context, caller ledger.Address) (eventlog.Record, error) {
	return a.close(ctx, caller, StatusEnded)
}

func (a *Auction) close(ctx context.Context, caller ledger.Address, status Status) (eventlog.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.requireOngoing(); err != nil {
		return eventlog.Record{}, err
	}
	if caller != a.listing.Owner {
		return eventlog.Record{}, fmt.Errorf("%w: only the owner can close the auction", ErrUnauthorized)
	}

	return a.commit(ctx, eventlog.Record{
		Kind:   eventlog.KindStatusChanged,
		Caller: caller,
		Status: status.String(),
	})
}

// BuyAuction sells the item at its selling price. The payment goes to the
// owner directly and never enters the bid ledger.
func (a *Auction) BuyAuction(ctx context.Context, caller ledger.Address, amount ledger.Amount) (eventlog.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.requireOngoing(); err != nil {
		return eventlog.Record{}, err
	}
	if a.listing.SellingPrice <= 0 {
		return eventlog.Record{}, fmt.Errorf("%w: buy-now is disabled", ErrInvalidState)
	}
	if caller.IsZero() {
		return eventlog.Record{}, fmt.Errorf("%w: caller address is required", ErrInvalidParameter)
	}
	if caller == a.listing.Owner {
		return eventlog.Record{}, ErrSelfBidForbidden
	}
	if amount < a.listing.SellingPrice {
		return eventlog.Record{}, fmt.Errorf("%w: selling price is %d", ErrInsufficientPayment, a.listing.SellingPrice)
	}

	return a.commit(ctx, eventlog.Record{
		Kind:   eventlog.KindStatusChanged,
		Caller: caller,
		Status: StatusSold.String(),
		Amount: amount,
	})
}

// WithdrawBid releases the caller's held funds once the auction is closed.
// The highest bidder of an ENDED auction cannot withdraw: that bid belongs to
// the owner.
func (a *Auction) WithdrawBid(ctx context.Context, caller ledger.Address) (Payout, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status == StatusOngoing {
		return Payout{}, fmt.Errorf("%w: auction is still ongoing", ErrInvalidState)
	}
	if a.status == StatusEnded && !a.highestBidder.IsZero() && caller == a.highestBidder {
		return Payout{}, fmt.Errorf("%w: the winning bid is reserved for the owner", ErrInvalidState)
	}

	held := a.bids.Balance(caller)
	if held.IsZero() {
		return Payout{}, ErrNothingToWithdraw
	}

	if _, err := a.commit(ctx, eventlog.Record{
		Kind:   eventlog.KindWithdrawn,
		Bidder: caller,
		Amount: held,
	}); err != nil {
		return Payout{}, err
	}

	return Payout{AuctionID: a.listing.ID, To: caller, Amount: held}, nil
}

// ClaimWinningBid releases the highest bid of an ENDED auction to its owner.
func (a *Auction) ClaimWinningBid(ctx context.Context, caller ledger.Address) (Payout, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status != StatusEnded {
		return Payout{}, fmt.Errorf("%w: auction is %s", ErrInvalidState, a.status)
	}
	if caller != a.listing.Owner {
		return Payout{}, fmt.Errorf("%w: only the owner can claim", ErrUnauthorized)
	}
	if a.highestBidder.IsZero() {
		return Payout{}, ErrNothingToClaim
	}

	held := a.bids.Balance(a.highestBidder)
	if held.IsZero() {
		return Payout{}, ErrNothingToClaim
	}

	if _, err := a.commit(ctx, eventlog.Record{
		Kind:   eventlog.KindClaimed,
		Caller: caller,
		Bidder: a.highestBidder,
		Amount: held,
	}); err != nil {
		return Payout{}, err
	}

	return Payout{AuctionID: a.listing.ID, To: caller, Amount: held}, nil
}

func (a *Auction) requireOngoing() error {
	if a.status != StatusOngoing {
		return fmt.Errorf("%w: auction is %s", ErrInvalidState, a.status)
	}
	return nil
}

// commit journals rec, applies it and appends it to the event log, in that
// order. A journal failure aborts before rec is applied; on a conflict the
// auction first catches up with what the journal already holds.
// Must be called with the write lock held.
func (a *Auction) commit(ctx context.Context, rec eventlog.Record) (eventlog.Record, error) {
	rec.AuctionID = a.listing.ID
	rec.Offset = a.events.Len()
	if rec.At.IsZero() {
		rec.At = a.deps.now()
	}

	if a.deps.journal != nil {
		if err := a.deps.journal.AppendRecord(ctx, rec); err != nil {
			if errors.Is(err, ErrJournalConflict) {
				a.catchUp(ctx)
			}
			return eventlog.Record{}, fmt.Errorf("failed to journal %s: %w", rec.Kind, err)
		}
	}

	if err := a.apply(rec); err != nil {
		return eventlog.Record{}, err
	}
	rec = a.events.Append(rec)
	a.notify(ctx, rec)

	return rec, nil
}

// catchUp applies records the journal holds beyond the in-memory log. That
// happens when a commit reached the database but its acknowledgement was
// lost. Must be called with the write lock held.
func (a *Auction) catchUp(ctx context.Context) {
	reader, ok := a.deps.journal.(JournalReader)
	if !ok {
		a.deps.logger.Error("Auction is behind its journal and cannot reload it",
			"auction_id", a.listing.ID, "offset", a.events.Len())
		return
	}

	records, err := reader.RecordsFrom(ctx, a.listing.ID, a.events.Len())
	if err != nil {
		a.deps.logger.Error("Failed to reload auction from journal",
			"auction_id", a.listing.ID, "offset", a.events.Len(), "error", err)
		return
	}

	for _, rec := range records {
		if rec.Offset != a.events.Len() {
			a.deps.logger.Error("Journal tail has a gap",
				"auction_id", a.listing.ID, "expected", a.events.Len(), "got", rec.Offset)
			return
		}
		if err := a.apply(rec); err != nil {
			a.deps.logger.Error("Failed to apply journaled record",
				"auction_id", a.listing.ID, "offset", rec.Offset, "error", err)
			return
		}
		a.notify(ctx, a.events.Append(rec))
	}
	a.deps.logger.Info("Auction reloaded from journal",
		"auction_id", a.listing.ID, "records", len(records))
}

// notify fans rec out with sealed amounts hidden.
// Must be called with the lock held.
func (a *Auction) notify(ctx context.Context, rec eventlog.Record) {
	if a.deps.notifier == nil {
		return
	}
	if err := a.deps.notifier.Notify(ctx, a.redact(rec)); err != nil {
		a.deps.logger.Warn("Failed to notify subscribers",
			"auction_id", rec.AuctionID, "offset", rec.Offset, "error", err)
	}
}

// replay applies a journaled record during recovery.
func (a *Auction) replay(rec eventlog.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if rec.Offset != a.events.Len() {
		return fmt.Errorf("auction %d: expected record at offset %d, got %d", a.listing.ID, a.events.Len(), rec.Offset)
	}
	if err := a.apply(rec); err != nil {
		return fmt.Errorf("auction %d offset %d: %w", a.listing.ID, rec.Offset, err)
	}
	a.events.Append(rec)
	return nil
}

// apply mutates state for an already validated record.
func (a *Auction) apply(rec eventlog.Record) error {
	switch rec.Kind {
	case eventlog.KindBidPlaced:
		a.bids.Deposit(rec.Bidder, rec.Amount)
		a.totalBids++
		if rec.Amount > a.highestBid {
			a.highestBid = rec.Amount
			a.highestBidder = rec.Bidder
		}
	case eventlog.KindStatusChanged:
		status, err := ParseStatus(rec.Status)
		if err != nil {
			return err
		}
		if a.status.IsTerminal() || !status.IsTerminal() {
			return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, a.status, status)
		}
		a.status = status
		if status == StatusSold {
			a.purchaser = rec.Caller
		}
	case eventlog.KindWithdrawn, eventlog.KindClaimed:
		a.bids.Release(rec.Bidder)
	default:
		return fmt.Errorf("unknown record kind %q", rec.Kind)
	}
	return nil
}

// ID returns the registry-assigned id
func (a *Auction) ID() uint64 {
	return a.listing.ID
}

// Listing returns the immutable creation parameters
func (a *Auction) Listing() Listing {
	return a.listing
}

func (a *Auction) Owner() ledger.Address { return a.listing.Owner }

func (a *Auction) Contact() string { return a.listing.Contact }

func (a *Auction) Item() Item { return a.listing.Item }

func (a *Auction) CreatedAt() time.Time { return a.listing.CreatedAt }

func (a *Auction) EndsAt() time.Time { return a.listing.EndsAt }

func (a *Auction) StartingBid() ledger.Amount { return a.listing.StartingBid }

func (a *Auction) BidIncrement() ledger.Amount { return a.listing.BidIncrement }

func (a *Auction) SellingPrice() ledger.Amount { return a.listing.SellingPrice }

func (a *Auction) IsPrivate() bool { return a.listing.IsPrivate }

// Expired reports whether endsAt has passed. Expiry is advisory: the auction
// stays ONGOING until the owner ends it.
func (a *Auction) Expired(now time.Time) bool {
	return now.After(a.listing.EndsAt)
}

func (a *Auction) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Sealed reports whether bid amounts are still hidden (private and ONGOING).
func (a *Auction) Sealed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sealed()
}

func (a *Auction) sealed() bool {
	return a.listing.IsPrivate && a.status == StatusOngoing
}

// HighestBid returns zero while the auction is sealed.
func (a *Auction) HighestBid() ledger.Amount {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.sealed() {
		return 0
	}
	return a.highestBid
}

// HighestBidder returns NoAddress while the auction is sealed or has no bids.
func (a *Auction) HighestBidder() ledger.Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.sealed() {
		return ledger.NoAddress
	}
	return a.highestBidder
}

func (a *Auction) Purchaser() ledger.Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.purchaser
}

func (a *Auction) TotalBids() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.totalBids
}

// LedgerEntry returns what addr currently holds in escrow.
func (a *Auction) LedgerEntry(addr ledger.Address) ledger.Amount {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bids.Balance(addr)
}

// Escrow returns the held total together with the cumulative deposited and
// released amounts.
func (a *Auction) Escrow() (held, deposited, released ledger.Amount) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bids.Total(), a.bids.Deposited(), a.bids.Released()
}

// Snapshot reads every field under one lock.
func (a *Auction) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Snapshot{
		Listing:       a.listing,
		Status:        a.status,
		HighestBid:    a.highestBid,
		HighestBidder: a.highestBidder,
		Purchaser:     a.purchaser,
		TotalBids:     a.totalBids,
	}
	if a.sealed() {
		s.HighestBid = 0
		s.HighestBidder = ledger.NoAddress
		s.Sealed = true
	}
	return s
}

// Events returns the auction's event log
func (a *Auction) Events() *eventlog.Log {
	return a.events
}

// RedactSealed hides amounts of bid records while the auction is sealed.
func (a *Auction) RedactSealed(rec eventlog.Record) eventlog.Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.redact(rec)
}

func (a *Auction) redact(rec eventlog.Record) eventlog.Record {
	if rec.Kind == eventlog.KindBidPlaced && a.sealed() {
		rec.Amount = 0
		rec.Refund = 0
	}
	return rec
}

// activity classifies the auction for an owner and a bidder in one read.
func (a *Auction) activity(addr ledger.Address) (status Status, owner ledger.Address, held ledger.Amount, winner bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status, a.listing.Owner, a.bids.Balance(addr), a.status == StatusEnded && a.highestBidder == addr
}

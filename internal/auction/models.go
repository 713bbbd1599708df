package auction

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/floroz/escrow-auction/internal/ledger"
)

// Status is the lifecycle state of an auction. The numeric values are the
// wire codes clients already use.
type Status int

const (
	StatusCancelled Status = iota
	StatusOngoing
	StatusEnded
	StatusSold
)

var statusNames = map[Status]string{
	StatusCancelled: "CANCELLED",
	StatusOngoing:   "ONGOING",
	StatusEnded:     "ENDED",
	StatusSold:      "SOLD",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s != StatusOngoing
}

// ParseStatus converts a status name back into a Status.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown auction status %q", name)
}

// Field limits for listings
const (
	MaxItemNameLen        = 50
	MaxItemDescriptionLen = 500
	MaxItemConditionLen   = 150
	MaxContactLen         = 100

	maxDurationHours = math.MaxInt64 / int64(time.Hour)
)

// Item is the listed good. Immutable once the auction exists.
type Item struct {
	Name        string
	Description string
	Condition   string
	ImageRef    string
}

// Listing holds the parameters an auction is created with. It never changes
// after creation and is what gets journaled for recovery.
type Listing struct {
	ID           uint64
	Owner        ledger.Address
	Contact      string
	Item         Item
	CreatedAt    time.Time
	EndsAt       time.Time
	StartingBid  ledger.Amount
	BidIncrement ledger.Amount
	SellingPrice ledger.Amount // 0 disables buy-now
	IsPrivate    bool
}

// Snapshot is a consistent read of one auction. For a private auction that
// is still ONGOING, HighestBid and HighestBidder are withheld and Sealed is set.
type Snapshot struct {
	Listing
	Status        Status
	HighestBid    ledger.Amount
	HighestBidder ledger.Address
	Purchaser     ledger.Address
	TotalBids     int64
	Sealed        bool
}

// Payout is value released from the bid ledger to an address.
type Payout struct {
	AuctionID uint64
	To        ledger.Address
	Amount    ledger.Amount
}

// CreateAuctionCommand represents the command to list a new auction
type CreateAuctionCommand struct {
	Owner         ledger.Address
	Contact       string
	DurationHours int64
	SellingPrice  ledger.Amount
	BidIncrement  ledger.Amount
	StartingBid   ledger.Amount
	IsPrivate     bool
	Item          Item
}

// Validate checks the creation arguments
func (c CreateAuctionCommand) Validate() error {
	if c.Owner.IsZero() {
		return fmt.Errorf("%w: owner address is required", ErrInvalidParameter)
	}
	if c.DurationHours <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidParameter)
	}
	if c.DurationHours > maxDurationHours {
		return fmt.Errorf("%w: duration is too long", ErrInvalidParameter)
	}
	if c.StartingBid < 0 || c.BidIncrement < 0 || c.SellingPrice < 0 {
		return fmt.Errorf("%w: amounts must not be negative", ErrInvalidParameter)
	}
	if c.Item.Name == "" {
		return fmt.Errorf("%w: item name is required", ErrInvalidParameter)
	}

	limits := []struct {
		field string
		value string
		max   int
	}{
		{"item name", c.Item.Name, MaxItemNameLen},
		{"item description", c.Item.Description, MaxItemDescriptionLen},
		{"item condition", c.Item.Condition, MaxItemConditionLen},
		{"contact", c.Contact, MaxContactLen},
	}
	for _, l := range limits {
		if utf8.RuneCountInString(l.value) > l.max {
			return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidParameter, l.field, l.max)
		}
	}
	return nil
}

// PlaceBidCommand represents the command to place a bid
type PlaceBidCommand struct {
	AuctionID uint64
	Caller    ledger.Address
	Amount    ledger.Amount
}

// BuyAuctionCommand represents the command to buy an auction at its selling price
type BuyAuctionCommand struct {
	AuctionID uint64
	Caller    ledger.Address
	Amount    ledger.Amount
}

// AuctionCommand addresses an auction on behalf of a caller. It is used by
// cancel, end, withdraw and claim.
type AuctionCommand struct {
	AuctionID uint64
	Caller    ledger.Address
}

// OwnerActivity splits an owner's auctions by whether they are still running.
type OwnerActivity struct {
	Ongoing []uint64
	Closed  []uint64
}

// BidderActivity groups the auctions an address has bid on.
//   - Bidding: ONGOING and the address holds funds
//   - Won: ENDED with the address as highest bidder
//   - Lost: closed otherwise, with funds still waiting to be withdrawn
type BidderActivity struct {
	Bidding []uint64
	Won     []uint64
	Lost    []uint64
}

package events

import (
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/floroz/escrow-auction/internal/auction"
	"github.com/floroz/escrow-auction/internal/eventlog"
	"github.com/floroz/escrow-auction/internal/ledger"
)

// EventTypeAuctionCreated is published when a listing is journaled. Records
// are published under their own kind.
const EventTypeAuctionCreated = "auction.created"

// Amounts are carried as decimal strings of smallest units so that no
// consumer ever sees them as floating point.

// EncodeListing marshals a new listing into a protobuf Struct
func EncodeListing(l auction.Listing) ([]byte, error) {
	return marshal(map[string]any{
		"auction_id":       formatUint(l.ID),
		"owner":            l.Owner.String(),
		"contact":          l.Contact,
		"item_name":        l.Item.Name,
		"item_description": l.Item.Description,
		"item_condition":   l.Item.Condition,
		"image_ref":        l.Item.ImageRef,
		"starting_bid":     formatAmount(l.StartingBid),
		"bid_increment":    formatAmount(l.BidIncrement),
		"selling_price":    formatAmount(l.SellingPrice),
		"is_private":       l.IsPrivate,
		"created_at":       formatTime(l.CreatedAt),
		"ends_at":          formatTime(l.EndsAt),
	})
}

// EncodeRecord marshals a committed record into a protobuf Struct. Bid
// amounts of sealed auctions are published as well: the broker is an
// internal consumer, not an external view.
func EncodeRecord(rec eventlog.Record) ([]byte, error) {
	fields := map[string]any{
		"auction_id":  formatUint(rec.AuctionID),
		"offset":      formatUint(rec.Offset),
		"kind":        rec.Kind.String(),
		"occurred_at": formatTime(rec.At),
	}
	if !rec.Bidder.IsZero() {
		fields["bidder"] = rec.Bidder.String()
	}
	if !rec.Caller.IsZero() {
		fields["caller"] = rec.Caller.String()
	}
	if rec.Amount != 0 {
		fields["amount"] = formatAmount(rec.Amount)
	}
	if rec.Refund != 0 {
		fields["refund"] = formatAmount(rec.Refund)
	}
	if rec.Status != "" {
		fields["status"] = rec.Status
	}
	return marshal(fields)
}

// DecodeRecord reverses EncodeRecord
func DecodeRecord(payload []byte) (eventlog.Record, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(payload, &s); err != nil {
		return eventlog.Record{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	f := s.GetFields()
	str := func(key string) string { return f[key].GetStringValue() }

	var (
		rec eventlog.Record
		err error
	)
	rec.Kind = eventlog.Kind(str("kind"))
	if !rec.Kind.IsValid() {
		return eventlog.Record{}, fmt.Errorf("unknown record kind %q", rec.Kind)
	}
	if rec.AuctionID, err = parseUint(str("auction_id")); err != nil {
		return eventlog.Record{}, err
	}
	if rec.Offset, err = parseUint(str("offset")); err != nil {
		return eventlog.Record{}, err
	}
	if rec.Amount, err = parseAmount(str("amount")); err != nil {
		return eventlog.Record{}, err
	}
	if rec.Refund, err = parseAmount(str("refund")); err != nil {
		return eventlog.Record{}, err
	}
	if rec.At, err = parseTime(str("occurred_at")); err != nil {
		return eventlog.Record{}, err
	}
	rec.Bidder = ledger.Address(str("bidder"))
	rec.Caller = ledger.Address(str("caller"))
	rec.Status = str("status")
	return rec, nil
}

func marshal(fields map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build payload: %w", err)
	}
	payload, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return payload, nil
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	return v, nil
}

func formatAmount(a ledger.Amount) string {
	return strconv.FormatInt(int64(a), 10)
}

func parseAmount(s string) (ledger.Amount, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return ledger.Amount(v), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

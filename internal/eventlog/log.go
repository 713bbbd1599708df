package eventlog

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/floroz/escrow-auction/internal/ledger"
)

// Kind represents the type of an auction event
type Kind string

const (
	KindBidPlaced     Kind = "bid.placed"
	KindStatusChanged Kind = "auction.status_changed"
	KindWithdrawn     Kind = "bid.withdrawn"
	KindClaimed       Kind = "bid.claimed"
)

// String returns the string representation of the event kind
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the event kind is known
func (k Kind) IsValid() bool {
	switch k {
	case KindBidPlaced, KindStatusChanged, KindWithdrawn, KindClaimed:
		return true
	default:
		return false
	}
}

// Record is one committed change of an auction. Fields not meaningful for a
// kind are left zero:
//
//	bid.placed             Bidder, Amount, Refund (previous deposit released to the bidder)
//	auction.status_changed Caller, Status, Amount (buy-now payment, SOLD only)
//	bid.withdrawn          Bidder, Amount
//	bid.claimed            Caller (owner), Bidder (winner), Amount
type Record struct {
	Offset    uint64         `json:"offset"`
	AuctionID uint64         `json:"auction_id"`
	Kind      Kind           `json:"kind"`
	Bidder    ledger.Address `json:"bidder,omitempty"`
	Caller    ledger.Address `json:"caller,omitempty"`
	Amount    ledger.Amount  `json:"amount,omitempty"`
	Refund    ledger.Amount  `json:"refund,omitempty"`
	Status    string         `json:"status,omitempty"`
	At        time.Time      `json:"at"`
}

// maxBatch bounds how many records a subscriber copies per wake-up.
const maxBatch = 256

// Log is an append-only, offset-addressable sequence of records.
// It is safe for one writer and any number of concurrent readers.
type Log struct {
	mu      sync.RWMutex
	records []Record
	wake    chan struct{}
}

// New creates an empty log
func New() *Log {
	return &Log{wake: make(chan struct{})}
}

// Append assigns the next offset to rec, stores it and wakes subscribers.
func (l *Log) Append(rec Record) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec.Offset = uint64(len(l.records))
	l.records = append(l.records, rec)

	close(l.wake)
	l.wake = make(chan struct{})

	return rec
}

// Len returns the offset the next record will receive.
func (l *Log) Len() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.records))
}

// Read returns up to limit records starting at from. A limit <= 0 means all.
// The returned slice is a copy; calling Read again restarts from any offset.
func (l *Log) Read(from uint64, limit int) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.copyFrom(from, limit)
}

// Records yields the records from offset from up to the latest one at the
// time each batch is read. It stops at the end instead of waiting.
func (l *Log) Records(from uint64) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		offset := from
		for {
			batch := l.Read(offset, maxBatch)
			if len(batch) == 0 {
				return
			}
			for _, rec := range batch {
				if !yield(rec) {
					return
				}
				offset = rec.Offset + 1
			}
		}
	}
}

// Subscribe streams records from offset from: first everything already
// stored, then each new record as it is appended. The channel is closed when
// ctx is done.
func (l *Log) Subscribe(ctx context.Context, from uint64) <-chan Record {
	out := make(chan Record)

	go func() {
		defer close(out)

		offset := from
		for {
			batch, wake := l.since(offset)
			for _, rec := range batch {
				select {
				case out <- rec:
					offset = rec.Offset + 1
				case <-ctx.Done():
					return
				}
			}
			if len(batch) > 0 {
				continue
			}

			select {
			case <-wake:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// since returns pending records and the channel closed by the next Append,
// read under the same lock so no append is missed in between.
func (l *Log) since(from uint64) ([]Record, <-chan struct{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.copyFrom(from, maxBatch), l.wake
}

func (l *Log) copyFrom(from uint64, limit int) []Record {
	if from >= uint64(len(l.records)) {
		return nil
	}
	end := uint64(len(l.records))
	if limit > 0 && from+uint64(limit) < end {
		end = from + uint64(limit)
	}
	out := make([]Record, end-from)
	copy(out, l.records[from:end])
	return out
}

package eventlog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/escrow-auction/internal/ledger"
)

var bidder = ledger.MustParseAddress("0x1111111111111111111111111111111111111111")

func bid(amount ledger.Amount) Record {
	return Record{AuctionID: 7, Kind: KindBidPlaced, Bidder: bidder, Amount: amount, At: time.Now()}
}

func TestKind_IsValid(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindBidPlaced, true},
		{KindStatusChanged, true},
		{KindWithdrawn, true},
		{KindClaimed, true},
		{Kind("unknown.event"), false},
		{Kind(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.IsValid())
		})
	}
}

func TestLog_AppendAssignsOffsets(t *testing.T) {
	log := New()

	first := log.Append(bid(3))
	second := log.Append(bid(6))

	assert.Equal(t, uint64(0), first.Offset)
	assert.Equal(t, uint64(1), second.Offset)
	assert.Equal(t, uint64(2), log.Len())
}

func TestLog_Read(t *testing.T) {
	log := New()
	for i := 1; i <= 5; i++ {
		log.Append(bid(ledger.Amount(i)))
	}

	all := log.Read(0, 0)
	require.Len(t, all, 5)
	assert.Equal(t, ledger.Amount(1), all[0].Amount)

	page := log.Read(2, 2)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(2), page[0].Offset)
	assert.Equal(t, uint64(3), page[1].Offset)

	assert.Empty(t, log.Read(5, 0), "reading past the end yields nothing")

	// Mutating the copy must not touch the log.
	page[0].Amount = 999
	assert.Equal(t, ledger.Amount(3), log.Read(2, 1)[0].Amount)
}

func TestLog_RecordsIsRestartable(t *testing.T) {
	log := New()
	for i := 1; i <= 3; i++ {
		log.Append(bid(ledger.Amount(i)))
	}

	collect := func(from uint64) []uint64 {
		var offsets []uint64
		for rec := range log.Records(from) {
			offsets = append(offsets, rec.Offset)
		}
		return offsets
	}

	assert.Equal(t, []uint64{0, 1, 2}, collect(0))
	assert.Equal(t, []uint64{0, 1, 2}, collect(0))
	assert.Equal(t, []uint64{1, 2}, collect(1))

	log.Append(bid(4))
	assert.Equal(t, []uint64{2, 3}, collect(2))
}

func TestLog_SubscribeReplaysThenFollows(t *testing.T) {
	log := New()
	log.Append(bid(1))
	log.Append(bid(2))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := log.Subscribe(ctx, 1)

	select {
	case rec := <-stream:
		assert.Equal(t, uint64(1), rec.Offset)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for stored record")
	}

	go log.Append(bid(3))

	select {
	case rec := <-stream:
		assert.Equal(t, uint64(2), rec.Offset)
		assert.Equal(t, ledger.Amount(3), rec.Amount)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for appended record")
	}
}

func TestLog_SubscribeClosesOnCancel(t *testing.T) {
	log := New()
	ctx, cancel := context.WithCancel(context.Background())
	stream := log.Subscribe(ctx, 0)

	cancel()

	select {
	case _, ok := <-stream:
		assert.False(t, ok, "stream should be closed after cancel")
	case <-time.After(time.Second):
		t.Fatal("stream not closed after cancel")
	}
}

func TestLog_ConcurrentSubscribersSeeSameOrder(t *testing.T) {
	log := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const subscribers = 4
	const records = 50

	var wg sync.WaitGroup
	results := make([][]uint64, subscribers)
	for i := 0; i < subscribers; i++ {
		stream := log.Subscribe(ctx, 0)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for rec := range stream {
				results[i] = append(results[i], rec.Offset)
				if len(results[i]) == records {
					return
				}
			}
		}(i)
	}

	for i := 0; i < records; i++ {
		log.Append(bid(ledger.Amount(i + 1)))
	}
	wg.Wait()

	for i := 0; i < subscribers; i++ {
		require.Len(t, results[i], records)
		for j, off := range results[i] {
			assert.Equal(t, uint64(j), off)
		}
	}
}

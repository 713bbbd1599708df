package auction_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/escrow-auction/internal/auction"
	"github.com/floroz/escrow-auction/internal/eventlog"
	"github.com/floroz/escrow-auction/internal/ledger"
)

var (
	owner  = ledger.MustParseAddress("0x1000000000000000000000000000000000000001")
	alice  = ledger.MustParseAddress("0x2000000000000000000000000000000000000002")
	bob    = ledger.MustParseAddress("0x3000000000000000000000000000000000000003")
	buyer  = ledger.MustParseAddress("0x4000000000000000000000000000000000000004")
	carol  = ledger.MustParseAddress("0x5000000000000000000000000000000000000005")
	fixedT = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newRegistry(opts ...auction.Option) *auction.Registry {
	opts = append([]auction.Option{auction.WithClock(func() time.Time { return fixedT })}, opts...)
	return auction.NewRegistry(opts...)
}

// createAuction lists an auction with startingBid=1, bidIncrement=2, sellingPrice=10
func createAuction(t *testing.T, r *auction.Registry, private bool) *auction.Auction {
	t.Helper()
	a, err := r.Create(context.Background(), auction.CreateAuctionCommand{
		Owner:         owner,
		Contact:       "owner@example.com",
		DurationHours: 24,
		SellingPrice:  10,
		BidIncrement:  2,
		StartingBid:   1,
		IsPrivate:     private,
		Item:          auction.Item{Name: "Vintage Guitar"},
	})
	require.NoError(t, err)
	return a
}

func assertConserved(t *testing.T, a *auction.Auction) {
	t.Helper()
	held, deposited, released := a.Escrow()
	assert.Equal(t, deposited-released, held, "escrow must be conserved")
}

// TestPublicBidding covers the open auction bid sequence
func TestPublicBidding(t *testing.T) {
	ctx := context.Background()
	a := createAuction(t, newRegistry(), false)

	_, err := a.PlaceBid(ctx, alice, 3)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(3), a.HighestBid())
	assert.Equal(t, alice, a.HighestBidder())

	_, err = a.PlaceBid(ctx, bob, 3)
	assert.ErrorIs(t, err, auction.ErrBidTooLow)

	_, err = a.PlaceBid(ctx, bob, 5)
	assert.ErrorIs(t, err, auction.ErrBidTooLow, "must exceed highest bid plus increment")

	_, err = a.PlaceBid(ctx, bob, 6)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(6), a.HighestBid())
	assert.Equal(t, bob, a.HighestBidder())
	assert.Equal(t, int64(2), a.TotalBids())
	assertConserved(t, a)
}

func TestPlaceBid_Validation(t *testing.T) {
	tests := []struct {
		name    string
		private bool
		setup   func(t *testing.T, a *auction.Auction)
		caller  ledger.Address
		amount  ledger.Amount
		wantErr error
	}{
		{
			name:    "owner cannot bid",
			caller:  owner,
			amount:  5,
			wantErr: auction.ErrSelfBidForbidden,
		},
		{
			name:    "owner cannot bid on private auction",
			private: true,
			caller:  owner,
			amount:  5,
			wantErr: auction.ErrSelfBidForbidden,
		},
		{
			name:    "zero amount",
			caller:  alice,
			amount:  0,
			wantErr: auction.ErrBidTooLow,
		},
		{
			name:    "negative amount",
			caller:  alice,
			amount:  -3,
			wantErr: auction.ErrBidTooLow,
		},
		{
			name:    "missing caller",
			caller:  ledger.NoAddress,
			amount:  5,
			wantErr: auction.ErrInvalidParameter,
		},
		{
			name:   "first bid equal to starting bid",
			caller: alice,
			amount: 1,
		},
		{
			name:    "private bid below increment floor",
			private: true,
			caller:  alice,
			amount:  1,
			wantErr: auction.ErrBidTooLow,
		},
		{
			name:    "private bid at floor",
			private: true,
			caller:  alice,
			amount:  2,
		},
		{
			name: "bid on cancelled auction",
			setup: func(t *testing.T, a *auction.Auction) {
				_, err := a.CancelAuction(context.Background(), owner)
				require.NoError(t, err)
			},
			caller:  alice,
			amount:  5,
			wantErr: auction.ErrInvalidState,
		},
		{
			name: "overflowing threshold",
			setup: func(t *testing.T, a *auction.Auction) {
				_, err := a.PlaceBid(context.Background(), bob, ledger.MaxAmount)
				require.NoError(t, err)
			},
			caller:  alice,
			amount:  ledger.MaxAmount,
			wantErr: auction.ErrBidTooLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := createAuction(t, newRegistry(), tt.private)
			if tt.setup != nil {
				tt.setup(t, a)
			}
			before := a.Events().Len()

			_, err := a.PlaceBid(context.Background(), tt.caller, tt.amount)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, a.Events().Len(), "failed bid must not append")
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.amount, a.LedgerEntry(tt.caller))
			}
		})
	}
}

// TestPublicRebid_RefundsPreviousDeposit checks that a rebid replaces the entry
func TestPublicRebid_RefundsPreviousDeposit(t *testing.T) {
	ctx := context.Background()
	a := createAuction(t, newRegistry(), false)

	_, err := a.PlaceBid(ctx, alice, 3)
	require.NoError(t, err)
	_, err = a.PlaceBid(ctx, bob, 6)
	require.NoError(t, err)

	rec, err := a.PlaceBid(ctx, alice, 9)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(3), rec.Refund)
	assert.Equal(t, ledger.Amount(9), a.LedgerEntry(alice))

	held, deposited, released := a.Escrow()
	assert.Equal(t, ledger.Amount(15), held)
	assert.Equal(t, ledger.Amount(18), deposited)
	assert.Equal(t, ledger.Amount(3), released)
}

// TestPrivateBidding covers the sealed single-round rules
func TestPrivateBidding(t *testing.T) {
	ctx := context.Background()
	a := createAuction(t, newRegistry(), true)

	_, err := a.PlaceBid(ctx, alice, 3)
	require.NoError(t, err)

	_, err = a.PlaceBid(ctx, alice, 4)
	assert.ErrorIs(t, err, auction.ErrAlreadyBid)

	_, err = a.PlaceBid(ctx, alice, 1)
	assert.ErrorIs(t, err, auction.ErrAlreadyBid, "single round is checked before the amount")

	_, err = a.PlaceBid(ctx, bob, 3)
	require.NoError(t, err, "equal amounts from distinct bidders are allowed")

	assert.Equal(t, int64(2), a.TotalBids())
	assert.True(t, a.Sealed())
	assert.Equal(t, ledger.Amount(0), a.HighestBid())
	assert.Equal(t, ledger.NoAddress, a.HighestBidder())

	snap := a.Snapshot()
	assert.True(t, snap.Sealed)
	assert.Equal(t, ledger.Amount(0), snap.HighestBid)

	_, err = a.EndAuction(ctx, owner)
	require.NoError(t, err)
	assert.False(t, a.Sealed())
	assert.Equal(t, ledger.Amount(3), a.HighestBid())
	assert.Equal(t, alice, a.HighestBidder(), "first bidder wins ties")
}

func TestPrivateBidding_LowerRebidRejected(t *testing.T) {
	ctx := context.Background()
	a := createAuction(t, newRegistry(), true)

	_, err := a.PlaceBid(ctx, alice, 2)
	require.NoError(t, err)
	_, err = a.PlaceBid(ctx, alice, 1)
	assert.ErrorIs(t, err, auction.ErrAlreadyBid)
	assert.Equal(t, ledger.Amount(2), a.LedgerEntry(alice))
}

func TestRedactSealed(t *testing.T) {
	ctx := context.Background()
	a := createAuction(t, newRegistry(), true)

	rec, err := a.PlaceBid(ctx, alice, 3)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(0), a.RedactSealed(rec).Amount)

	_, err = a.CancelAuction(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(3), a.RedactSealed(rec).Amount)
}

// TestCancelThenWithdraw covers the cancel and withdraw sequence
func TestCancelThenWithdraw(t *testing.T) {
	ctx := context.Background()
	a := createAuction(t, newRegistry(), false)

	_, err := a.PlaceBid(ctx, alice, 5)
	require.NoError(t, err)

	_, err = a.WithdrawBid(ctx, alice)
	assert.ErrorIs(t, err, auction.ErrInvalidState, "cannot withdraw while ongoing")

	_, err = a.CancelAuction(ctx, alice)
	assert.ErrorIs(t, err, auction.ErrUnauthorized)

	_, err = a.CancelAuction(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusCancelled, a.Status())

	payout, err := a.WithdrawBid(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, auction.Payout{AuctionID: a.ID(), To: alice, Amount: 5}, payout)
	assert.Equal(t, ledger.Amount(0), a.LedgerEntry(alice))

	_, err = a.WithdrawBid(ctx, alice)
	assert.ErrorIs(t, err, auction.ErrNothingToWithdraw)
	assertConserved(t, a)
}

// TestEndThenClaim covers the end, withdraw and claim sequence
func TestEndThenClaim(t *testing.T) {
	ctx := context.Background()
	a := createAuction(t, newRegistry(), false)

	_, err := a.PlaceBid(ctx, bob, 2)
	require.NoError(t, err)
	_, err = a.PlaceBid(ctx, alice, 5)
	require.NoError(t, err)

	_, err = a.ClaimWinningBid(ctx, owner)
	assert.ErrorIs(t, err, auction.ErrInvalidState, "cannot claim before the end")

	_, err = a.EndAuction(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusEnded, a.Status())

	_, err = a.WithdrawBid(ctx, alice)
	assert.ErrorIs(t, err, auction.ErrInvalidState)

	_, err = a.ClaimWinningBid(ctx, alice)
	assert.ErrorIs(t, err, auction.ErrUnauthorized)

	payout, err := a.ClaimWinningBid(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, auction.Payout{AuctionID: a.ID(), To: owner, Amount: 5}, payout)
	assert.Equal(t, ledger.Amount(0), a.LedgerEntry(alice))

	_, err = a.ClaimWinningBid(ctx, owner)
	assert.ErrorIs(t, err, auction.ErrNothingToClaim)

	payout, err = a.WithdrawBid(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(2), payout.Amount)

	held, deposited, released := a.Escrow()
	assert.Equal(t, ledger.Amount(0), held)
	assert.Equal(t, deposited, released)
}

func TestClaim_NoBids(t *testing.T) {
	ctx := context.Background()
	a := createAuction(t, newRegistry(), false)

	_, err := a.EndAuction(ctx, owner)
	require.NoError(t, err)

	_, err = a.ClaimWinningBid(ctx, owner)
	assert.ErrorIs(t, err, auction.ErrNothingToClaim)
}

// TestBuyNow covers buying while a bid is held
// TestWithdraw_EndedWithoutBids checks that an empty winner slot is not
// mistaken for the zero address
func TestWithdraw_EndedWithoutBids(t *testing.T) {
	ctx := context.Background()
	a := createAuction(t, newRegistry(), false)
	_, err := a.EndAuction(ctx, owner)
	require.NoError(t, err)

	_, err = a.WithdrawBid(ctx, ledger.NoAddress)
	assert.ErrorIs(t, err, auction.ErrNothingToWithdraw)
	assert.NotErrorIs(t, err, auction.ErrInvalidState)

	_, err = a.WithdrawBid(ctx, alice)
	assert.ErrorIs(t, err, auction.ErrNothingToWithdraw)
}

func TestPlaceBid_IncrementOverflow(t *testing.T) {
	ctx := context.Background()
	a, err := newRegistry().Create(ctx, auction.CreateAuctionCommand{
		Owner:         owner,
		DurationHours: 1,
		StartingBid:   1,
		BidIncrement:  ledger.MaxAmount,
		Item:          auction.Item{Name: "Vintage Guitar"},
	})
	require.NoError(t, err)

	_, err = a.PlaceBid(ctx, alice, 5)
	require.NoError(t, err)

	_, err = a.PlaceBid(ctx, bob, ledger.MaxAmount)
	assert.ErrorIs(t, err, auction.ErrBidTooLow)
	assert.ErrorIs(t, err, ledger.ErrAmountOverflow)
	assert.NotContains(t, err.Error(), "must exceed 0")
	assert.Equal(t, alice, a.HighestBidder())
	assert.Equal(t, uint64(1), a.Events().Len())
}

func TestBuyNow(t *testing.T) {
	ctx := context.Background()
	a := createAuction(t, newRegistry(), false)

	_, err := a.PlaceBid(ctx, alice, 5)
	require.NoError(t, err)

	_, err = a.BuyAuction(ctx, buyer, 1)
	assert.ErrorIs(t, err, auction.ErrInsufficientPayment)
	assert.Equal(t, auction.StatusOngoing, a.Status())

	_, err = a.BuyAuction(ctx, owner, 10)
	assert.ErrorIs(t, err, auction.ErrSelfBidForbidden)

	rec, err := a.BuyAuction(ctx, buyer, 10)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusSold.String(), rec.Status)
	assert.Equal(t, ledger.Amount(10), rec.Amount)
	assert.Equal(t, auction.StatusSold, a.Status())
	assert.Equal(t, buyer, a.Purchaser())

	payout, err := a.WithdrawBid(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, ledger.Amount(5), payout.Amount)
	assertConserved(t, a)
}

func TestBuyNow_Disabled(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()
	a, err := r.Create(ctx, auction.CreateAuctionCommand{
		Owner:         owner,
		DurationHours: 1,
		Item:          auction.Item{Name: "Lamp"},
	})
	require.NoError(t, err)

	_, err = a.BuyAuction(ctx, buyer, 100)
	assert.ErrorIs(t, err, auction.ErrInvalidState)
}

// TestTerminalStatesAreFinal checks that no mutation succeeds after a terminal transition
func TestTerminalStatesAreFinal(t *testing.T) {
	closers := map[string]func(a *auction.Auction) error{
		"cancelled": func(a *auction.Auction) error {
			_, err := a.CancelAuction(context.Background(), owner)
			return err
		},
		"ended": func(a *auction.Auction) error {
			_, err := a.EndAuction(context.Background(), owner)
			return err
		},
		"sold": func(a *auction.Auction) error {
			_, err := a.BuyAuction(context.Background(), buyer, 10)
			return err
		},
	}

	for name, closeFn := range closers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := createAuction(t, newRegistry(), false)
			require.NoError(t, closeFn(a))
			status := a.Status()

			_, err := a.PlaceBid(ctx, alice, 100)
			assert.ErrorIs(t, err, auction.ErrInvalidState)
			_, err = a.CancelAuction(ctx, owner)
			assert.ErrorIs(t, err, auction.ErrInvalidState)
			_, err = a.EndAuction(ctx, owner)
			assert.ErrorIs(t, err, auction.ErrInvalidState)
			_, err = a.BuyAuction(ctx, buyer, 10)
			assert.ErrorIs(t, err, auction.ErrInvalidState)

			assert.Equal(t, status, a.Status())
		})
	}
}

func TestEventLog_RecordsOperations(t *testing.T) {
	ctx := context.Background()
	a := createAuction(t, newRegistry(), false)

	_, err := a.PlaceBid(ctx, alice, 3)
	require.NoError(t, err)
	_, err = a.PlaceBid(ctx, bob, 6)
	require.NoError(t, err)
	_, err = a.EndAuction(ctx, owner)
	require.NoError(t, err)
	_, err = a.WithdrawBid(ctx, alice)
	require.NoError(t, err)
	_, err = a.ClaimWinningBid(ctx, owner)
	require.NoError(t, err)

	recs := a.Events().Read(0, 0)
	require.Len(t, recs, 5)

	kinds := make([]eventlog.Kind, len(recs))
	for i, rec := range recs {
		assert.Equal(t, uint64(i), rec.Offset)
		assert.Equal(t, a.ID(), rec.AuctionID)
		assert.Equal(t, fixedT, rec.At)
		kinds[i] = rec.Kind
	}
	assert.Equal(t, []eventlog.Kind{
		eventlog.KindBidPlaced,
		eventlog.KindBidPlaced,
		eventlog.KindStatusChanged,
		eventlog.KindWithdrawn,
		eventlog.KindClaimed,
	}, kinds)

	assert.Equal(t, "ENDED", recs[2].Status)
	assert.Equal(t, owner, recs[4].Caller)
	assert.Equal(t, bob, recs[4].Bidder)
	assert.Equal(t, ledger.Amount(6), recs[4].Amount)
}

// TestConcurrentBids checks that racing bidders are serialized
func TestConcurrentBids(t *testing.T) {
	ctx := context.Background()
	a := createAuction(t, newRegistry(), false)

	const bidders = 50
	var wg sync.WaitGroup
	for i := 1; i <= bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := ledger.MustParseAddress(fmt.Sprintf("0x%040x", 0x100+i))
			for amount := ledger.Amount(1); amount <= 200; amount += 3 {
				_, _ = a.PlaceBid(ctx, addr, amount+ledger.Amount(i%3))
			}
		}(i)
	}
	wg.Wait()

	var prev ledger.Amount
	for i, rec := range a.Events().Read(0, 0) {
		if i > 0 {
			threshold := prev + a.BidIncrement()
			assert.Greater(t, rec.Amount, threshold, "accepted bids must strictly exceed the previous highest plus increment")
		}
		prev = rec.Amount
	}
	assert.Equal(t, prev, a.HighestBid())
	assertConserved(t, a)
}

// TestConservation_RandomSequence drives many mixed operations and checks escrow totals
func TestConservation_RandomSequence(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()
	bidders := []ledger.Address{alice, bob, carol}

	for round := 0; round < 3; round++ {
		a := createAuction(t, r, round%2 == 1)
		amount := ledger.Amount(3)
		for i := 0; i < 12; i++ {
			_, _ = a.PlaceBid(ctx, bidders[i%len(bidders)], amount)
			amount += ledger.Amount(2 + i%4)
			assertConserved(t, a)
		}

		switch round {
		case 0:
			_, _ = a.CancelAuction(ctx, owner)
		case 1:
			_, _ = a.EndAuction(ctx, owner)
			_, _ = a.ClaimWinningBid(ctx, owner)
		case 2:
			_, _ = a.BuyAuction(ctx, buyer, 10)
		}

		for _, b := range bidders {
			_, _ = a.WithdrawBid(ctx, b)
			assertConserved(t, a)
		}

		held, deposited, released := a.Escrow()
		assert.Equal(t, ledger.Amount(0), held, "every bid is withdrawn or claimed")
		assert.Equal(t, deposited, released)
	}
}

func TestExpiredIsAdvisory(t *testing.T) {
	ctx := context.Background()
	a := createAuction(t, newRegistry(), false)

	assert.False(t, a.Expired(fixedT))
	assert.True(t, a.Expired(fixedT.Add(25*time.Hour)))

	_, err := a.PlaceBid(ctx, alice, 3)
	assert.NoError(t, err, "expiry does not close the auction")
}

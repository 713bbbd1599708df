package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"connectrpc.com/connect"

	"github.com/floroz/escrow-auction/internal/auction"
	"github.com/floroz/escrow-auction/internal/eventlog"
	"github.com/floroz/escrow-auction/internal/ledger"
	"github.com/floroz/escrow-auction/pkg/auth"
)

// AuctionHandler serves auction.v1.AuctionService
type AuctionHandler struct {
	service  *auction.AuctionService
	decimals int32
	now      func() time.Time
	logger   *slog.Logger
}

// NewAuctionHandler creates a handler that converts amounts with the given
// number of decimals.
func NewAuctionHandler(service *auction.AuctionService, decimals int32, logger *slog.Logger) *AuctionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuctionHandler{
		service:  service,
		decimals: decimals,
		now:      time.Now,
		logger:   logger,
	}
}

// CreateAuction lists a new auction owned by the caller
func (h *AuctionHandler) CreateAuction(
	ctx context.Context,
	req *connect.Request[CreateAuctionRequest],
) (*connect.Response[CreateAuctionResponse], error) {
	caller, err := callerAddress(ctx)
	if err != nil {
		return nil, err
	}

	amounts, err := h.parseAmounts(
		req.Msg.StartingBid,
		req.Msg.BidIncrement,
		req.Msg.SellingPrice,
	)
	if err != nil {
		return nil, err
	}

	snapshot, err := h.service.CreateAuction(ctx, auction.CreateAuctionCommand{
		Owner:         caller,
		Contact:       req.Msg.Contact,
		DurationHours: req.Msg.DurationHours,
		StartingBid:   amounts[0],
		BidIncrement:  amounts[1],
		SellingPrice:  amounts[2],
		IsPrivate:     req.Msg.IsPrivate,
		Item: auction.Item{
			Name:        req.Msg.Item.Name,
			Description: req.Msg.Item.Description,
			Condition:   req.Msg.Item.Condition,
			ImageRef:    req.Msg.Item.ImageRef,
		},
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&CreateAuctionResponse{Auction: h.mapAuction(snapshot)}), nil
}

// ListAuctions returns auction ids in creation order, optionally filtered by owner
func (h *AuctionHandler) ListAuctions(
	ctx context.Context,
	req *connect.Request[ListAuctionsRequest],
) (*connect.Response[ListAuctionsResponse], error) {
	ids := h.service.ListAuctions(ctx)

	if req.Msg.Owner != "" {
		owner, err := ledger.ParseAddress(req.Msg.Owner)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("owner: %w", err))
		}
		owned := h.service.Registry().ListByOwner(owner)
		if req.Msg.NotOwned {
			ids = slices.DeleteFunc(ids, func(id uint64) bool {
				_, found := slices.BinarySearch(owned, id)
				return found
			})
		} else {
			ids = owned
		}
	}

	if ids == nil {
		ids = []uint64{}
	}
	return connect.NewResponse(&ListAuctionsResponse{IDs: ids}), nil
}

// GetAuction returns one auction, redacted while sealed
func (h *AuctionHandler) GetAuction(
	ctx context.Context,
	req *connect.Request[GetAuctionRequest],
) (*connect.Response[GetAuctionResponse], error) {
	snapshot, err := h.service.GetAuction(ctx, req.Msg.AuctionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetAuctionResponse{Auction: h.mapAuction(snapshot)}), nil
}

// GetLedgerEntry returns what an address holds in an auction's escrow
func (h *AuctionHandler) GetLedgerEntry(
	ctx context.Context,
	req *connect.Request[GetLedgerEntryRequest],
) (*connect.Response[GetLedgerEntryResponse], error) {
	addr, err := ledger.ParseAddress(req.Msg.Address)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("address: %w", err))
	}

	amount, err := h.service.GetLedgerEntry(ctx, req.Msg.AuctionID, addr)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetLedgerEntryResponse{Amount: amount.Format(h.decimals)}), nil
}

// PlaceBid escrows a bid for the caller
func (h *AuctionHandler) PlaceBid(
	ctx context.Context,
	req *connect.Request[PlaceBidRequest],
) (*connect.Response[EventResponse], error) {
	caller, err := callerAddress(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := h.parseAmount(req.Msg.Amount)
	if err != nil {
		return nil, err
	}

	rec, err := h.service.PlaceBid(ctx, auction.PlaceBidCommand{
		AuctionID: req.Msg.AuctionID,
		Caller:    caller,
		Amount:    amount,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&EventResponse{Event: h.mapEvent(rec)}), nil
}

// CancelAuction closes the caller's auction without a winner
func (h *AuctionHandler) CancelAuction(
	ctx context.Context,
	req *connect.Request[AuctionRequest],
) (*connect.Response[EventResponse], error) {
	return h.transition(ctx, req.Msg, h.service.CancelAuction)
}

// EndAuction closes bidding on the caller's auction
func (h *AuctionHandler) EndAuction(
	ctx context.Context,
	req *connect.Request[AuctionRequest],
) (*connect.Response[EventResponse], error) {
	return h.transition(ctx, req.Msg, h.service.EndAuction)
}

func (h *AuctionHandler) transition(
	ctx context.Context,
	msg *AuctionRequest,
	op func(context.Context, auction.AuctionCommand) (eventlog.Record, error),
) (*connect.Response[EventResponse], error) {
	caller, err := callerAddress(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := op(ctx, auction.AuctionCommand{AuctionID: msg.AuctionID, Caller: caller})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&EventResponse{Event: h.mapEvent(rec)}), nil
}

// BuyAuction buys an item at its selling price
func (h *AuctionHandler) BuyAuction(
	ctx context.Context,
	req *connect.Request[BuyAuctionRequest],
) (*connect.Response[EventResponse], error) {
	caller, err := callerAddress(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := h.parseAmount(req.Msg.Amount)
	if err != nil {
		return nil, err
	}

	rec, err := h.service.BuyAuction(ctx, auction.BuyAuctionCommand{
		AuctionID: req.Msg.AuctionID,
		Caller:    caller,
		Amount:    amount,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&EventResponse{Event: h.mapEvent(rec)}), nil
}

// WithdrawBid pays back the caller's held funds
func (h *AuctionHandler) WithdrawBid(
	ctx context.Context,
	req *connect.Request[AuctionRequest],
) (*connect.Response[PayoutResponse], error) {
	return h.payout(ctx, req.Msg, h.service.WithdrawBid)
}

// ClaimWinningBid pays the winning bid to the caller, who must be the owner
func (h *AuctionHandler) ClaimWinningBid(
	ctx context.Context,
	req *connect.Request[AuctionRequest],
) (*connect.Response[PayoutResponse], error) {
	return h.payout(ctx, req.Msg, h.service.ClaimWinningBid)
}

func (h *AuctionHandler) payout(
	ctx context.Context,
	msg *AuctionRequest,
	op func(context.Context, auction.AuctionCommand) (auction.Payout, error),
) (*connect.Response[PayoutResponse], error) {
	caller, err := callerAddress(ctx)
	if err != nil {
		return nil, err
	}

	p, err := op(ctx, auction.AuctionCommand{AuctionID: msg.AuctionID, Caller: caller})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&PayoutResponse{Payout: Payout{
		AuctionID: p.AuctionID,
		To:        p.To.String(),
		Amount:    p.Amount.Format(h.decimals),
	}}), nil
}

// SubscribeEvents streams an auction's records from an offset. Bid amounts
// are hidden while the auction is sealed.
func (h *AuctionHandler) SubscribeEvents(
	ctx context.Context,
	req *connect.Request[SubscribeEventsRequest],
	stream *connect.ServerStream[Event],
) error {
	a, err := h.service.Registry().Get(req.Msg.AuctionID)
	if err != nil {
		return toConnectError(err)
	}

	if !req.Msg.Follow {
		for rec := range a.Events().Records(req.Msg.From) {
			if err := stream.Send(h.eventPtr(a.RedactSealed(rec))); err != nil {
				return err
			}
		}
		return nil
	}

	for rec := range a.Events().Subscribe(ctx, req.Msg.From) {
		if err := stream.Send(h.eventPtr(a.RedactSealed(rec))); err != nil {
			return err
		}
	}
	// The log never closes on its own, so reaching here means the client left
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// ListOwnerActivity splits an owner's auctions into ongoing and closed
func (h *AuctionHandler) ListOwnerActivity(
	ctx context.Context,
	req *connect.Request[ListOwnerActivityRequest],
) (*connect.Response[ListOwnerActivityResponse], error) {
	owner, err := h.subjectOrCaller(ctx, req.Msg.Owner)
	if err != nil {
		return nil, err
	}

	activity := h.service.OwnerActivity(ctx, owner)
	return connect.NewResponse(&ListOwnerActivityResponse{
		Ongoing: nonNil(activity.Ongoing),
		Closed:  nonNil(activity.Closed),
	}), nil
}

// ListBidderActivity groups the auctions a bidder is involved in
func (h *AuctionHandler) ListBidderActivity(
	ctx context.Context,
	req *connect.Request[ListBidderActivityRequest],
) (*connect.Response[ListBidderActivityResponse], error) {
	bidder, err := h.subjectOrCaller(ctx, req.Msg.Bidder)
	if err != nil {
		return nil, err
	}

	activity := h.service.BidderActivity(ctx, bidder)
	return connect.NewResponse(&ListBidderActivityResponse{
		Bidding: nonNil(activity.Bidding),
		Won:     nonNil(activity.Won),
		Lost:    nonNil(activity.Lost),
	}), nil
}

// subjectOrCaller parses addr, falling back to the authenticated caller when
// it is empty.
func (h *AuctionHandler) subjectOrCaller(ctx context.Context, addr string) (ledger.Address, error) {
	if addr == "" {
		return callerAddress(ctx)
	}
	parsed, err := ledger.ParseAddress(addr)
	if err != nil {
		return ledger.NoAddress, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return parsed, nil
}

// callerAddress returns the authenticated caller, guaranteed by the auth
// interceptor on every mutating procedure.
func callerAddress(ctx context.Context) (ledger.Address, error) {
	subject, ok := auth.GetSubject(ctx)
	if !ok {
		return ledger.NoAddress, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	addr, err := ledger.ParseAddress(subject)
	if err != nil {
		return ledger.NoAddress, connect.NewError(connect.CodeUnauthenticated, errors.New("token subject is not a valid address"))
	}
	return addr, nil
}

func (h *AuctionHandler) parseAmount(s string) (ledger.Amount, error) {
	if s == "" {
		return 0, nil
	}
	amount, err := ledger.ParseAmount(s, h.decimals)
	if err != nil {
		return 0, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return amount, nil
}

func (h *AuctionHandler) parseAmounts(values ...string) ([]ledger.Amount, error) {
	out := make([]ledger.Amount, len(values))
	for i, v := range values {
		amount, err := h.parseAmount(v)
		if err != nil {
			return nil, err
		}
		out[i] = amount
	}
	return out, nil
}

func (h *AuctionHandler) mapAuction(s auction.Snapshot) Auction {
	out := Auction{
		ID:      s.ID,
		Owner:   s.Owner.String(),
		Contact: s.Contact,
		Item: Item{
			Name:        s.Item.Name,
			Description: s.Item.Description,
			Condition:   s.Item.Condition,
			ImageRef:    s.Item.ImageRef,
		},
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
		EndsAt:        s.EndsAt.Format(time.RFC3339),
		StartingBid:   s.StartingBid.Format(h.decimals),
		BidIncrement:  s.BidIncrement.Format(h.decimals),
		SellingPrice:  s.SellingPrice.Format(h.decimals),
		IsPrivate:     s.IsPrivate,
		Status:        s.Status.String(),
		StatusCode:    int(s.Status),
		HighestBidder: s.HighestBidder.String(),
		Purchaser:     s.Purchaser.String(),
		TotalBids:     s.TotalBids,
		Sealed:        s.Sealed,
		Expired:       h.now().After(s.EndsAt),
	}
	if !s.Sealed {
		out.HighestBid = s.HighestBid.Format(h.decimals)
	}
	return out
}

func (h *AuctionHandler) mapEvent(rec eventlog.Record) Event {
	ev := Event{
		Offset:    rec.Offset,
		AuctionID: rec.AuctionID,
		Kind:      rec.Kind.String(),
		Bidder:    rec.Bidder.String(),
		Caller:    rec.Caller.String(),
		Status:    rec.Status,
		At:        rec.At.Format(time.RFC3339Nano),
	}
	if !rec.Amount.IsZero() {
		ev.Amount = rec.Amount.Format(h.decimals)
	}
	if !rec.Refund.IsZero() {
		ev.Refund = rec.Refund.Format(h.decimals)
	}
	return ev
}

func (h *AuctionHandler) eventPtr(rec eventlog.Record) *Event {
	ev := h.mapEvent(rec)
	return &ev
}

func nonNil(ids []uint64) []uint64 {
	if ids == nil {
		return []uint64{}
	}
	return ids
}

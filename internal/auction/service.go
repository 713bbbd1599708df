package auction

import (
	"context"
	"log/slog"

	"github.com/floroz/escrow-auction/internal/eventlog"
	"github.com/floroz/escrow-auction/internal/ledger"
)

// AuctionService routes commands to auctions by id and logs their outcome.
type AuctionService struct {
	registry *Registry
	logger   *slog.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(registry *Registry, logger *slog.Logger) *AuctionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuctionService{
		registry: registry,
		logger:   logger,
	}
}

// Registry exposes the underlying registry for read paths
func (s *AuctionService) Registry() *Registry {
	return s.registry
}

// CreateAuction lists a new auction
func (s *AuctionService) CreateAuction(ctx context.Context, cmd CreateAuctionCommand) (Snapshot, error) {
	a, err := s.registry.Create(ctx, cmd)
	if err != nil {
		return Snapshot{}, err
	}

	s.logger.Info("Auction created",
		"auction_id", a.ID(),
		"owner", a.Owner(),
		"private", a.IsPrivate(),
		"ends_at", a.EndsAt(),
	)
	return a.Snapshot(), nil
}

// GetAuction returns a consistent, redacted view of one auction
func (s *AuctionService) GetAuction(_ context.Context, id uint64) (Snapshot, error) {
	a, err := s.registry.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return a.Snapshot(), nil
}

// ListAuctions returns every auction id in creation order
func (s *AuctionService) ListAuctions(_ context.Context) []uint64 {
	return s.registry.List()
}

// GetLedgerEntry returns what addr holds in the auction's escrow
func (s *AuctionService) GetLedgerEntry(_ context.Context, id uint64, addr ledger.Address) (ledger.Amount, error) {
	a, err := s.registry.Get(id)
	if err != nil {
		return 0, err
	}
	return a.LedgerEntry(addr), nil
}

// PlaceBid escrows a bid on an auction
func (s *AuctionService) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (eventlog.Record, error) {
	a, err := s.registry.Get(cmd.AuctionID)
	if err != nil {
		return eventlog.Record{}, err
	}

	rec, err := a.PlaceBid(ctx, cmd.Caller, cmd.Amount)
	if err != nil {
		return eventlog.Record{}, err
	}

	s.logger.Info("Bid placed",
		"auction_id", cmd.AuctionID,
		"bidder", cmd.Caller,
		"offset", rec.Offset,
	)
	return rec, nil
}

// CancelAuction closes an auction without a winner
func (s *AuctionService) CancelAuction(ctx context.Context, cmd AuctionCommand) (eventlog.Record, error) {
	a, err := s.registry.Get(cmd.AuctionID)
	if err != nil {
		return eventlog.Record{}, err
	}

	rec, err := a.CancelAuction(ctx, cmd.Caller)
	if err != nil {
		return eventlog.Record{}, err
	}

	s.logger.Info("Auction cancelled", "auction_id", cmd.AuctionID)
	return rec, nil
}

// EndAuction closes bidding on an auction
func (s *AuctionService) EndAuction(ctx context.Context, cmd AuctionCommand) (eventlog.Record, error) {
	a, err := s.registry.Get(cmd.AuctionID)
	if err != nil {
		return eventlog.Record{}, err
	}

	rec, err := a.EndAuction(ctx, cmd.Caller)
	if err != nil {
		return eventlog.Record{}, err
	}

	s.logger.Info("Auction ended",
		"auction_id", cmd.AuctionID,
		"winner", a.HighestBidder(),
	)
	return rec, nil
}

// BuyAuction buys an item at its selling price
func (s *AuctionService) BuyAuction(ctx context.Context, cmd BuyAuctionCommand) (eventlog.Record, error) {
	a, err := s.registry.Get(cmd.AuctionID)
	if err != nil {
		return eventlog.Record{}, err
	}

	rec, err := a.BuyAuction(ctx, cmd.Caller, cmd.Amount)
	if err != nil {
		return eventlog.Record{}, err
	}

	s.logger.Info("Auction sold",
		"auction_id", cmd.AuctionID,
		"purchaser", cmd.Caller,
		"amount", cmd.Amount,
	)
	return rec, nil
}

// WithdrawBid pays back a bidder's held funds
func (s *AuctionService) WithdrawBid(ctx context.Context, cmd AuctionCommand) (Payout, error) {
	a, err := s.registry.Get(cmd.AuctionID)
	if err != nil {
		return Payout{}, err
	}

	payout, err := a.WithdrawBid(ctx, cmd.Caller)
	if err != nil {
		return Payout{}, err
	}

	s.logger.Info("Bid withdrawn",
		"auction_id", cmd.AuctionID,
		"bidder", cmd.Caller,
		"amount", payout.Amount,
	)
	return payout, nil
}

// ClaimWinningBid pays the winning bid to the owner
func (s *AuctionService) ClaimWinningBid(ctx context.Context, cmd AuctionCommand) (Payout, error) {
	a, err := s.registry.Get(cmd.AuctionID)
	if err != nil {
		return Payout{}, err
	}

	payout, err := a.ClaimWinningBid(ctx, cmd.Caller)
	if err != nil {
		return Payout{}, err
	}

	s.logger.Info("Winning bid claimed",
		"auction_id", cmd.AuctionID,
		"owner", cmd.Caller,
		"amount", payout.Amount,
	)
	return payout, nil
}

// OwnerActivity lists an owner's auctions by state
func (s *AuctionService) OwnerActivity(_ context.Context, owner ledger.Address) OwnerActivity {
	return s.registry.OwnerActivity(owner)
}

// BidderActivity lists the auctions a bidder is involved in
func (s *AuctionService) BidderActivity(_ context.Context, bidder ledger.Address) BidderActivity {
	return s.registry.BidderActivity(bidder)
}

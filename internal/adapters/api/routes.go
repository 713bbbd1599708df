package api

import (
	"net/http"

	"connectrpc.com/connect"
)

// AuctionServiceName is the fully-qualified name of the auction service
const AuctionServiceName = "auction.v1.AuctionService"

// Procedure paths of AuctionService
const (
	CreateAuctionProcedure      = "/" + AuctionServiceName + "/CreateAuction"
	ListAuctionsProcedure       = "/" + AuctionServiceName + "/ListAuctions"
	GetAuctionProcedure         = "/" + AuctionServiceName + "/GetAuction"
	GetLedgerEntryProcedure     = "/" + AuctionServiceName + "/GetLedgerEntry"
	PlaceBidProcedure           = "/" + AuctionServiceName + "/PlaceBid"
	CancelAuctionProcedure      = "/" + AuctionServiceName + "/CancelAuction"
	EndAuctionProcedure         = "/" + AuctionServiceName + "/EndAuction"
	BuyAuctionProcedure         = "/" + AuctionServiceName + "/BuyAuction"
	WithdrawBidProcedure        = "/" + AuctionServiceName + "/WithdrawBid"
	ClaimWinningBidProcedure    = "/" + AuctionServiceName + "/ClaimWinningBid"
	SubscribeEventsProcedure    = "/" + AuctionServiceName + "/SubscribeEvents"
	ListOwnerActivityProcedure  = "/" + AuctionServiceName + "/ListOwnerActivity"
	ListBidderActivityProcedure = "/" + AuctionServiceName + "/ListBidderActivity"
)

// PublicProcedures can be called without a token. The activity listings fall
// back to the caller when no address is given, so they accept a token too.
var PublicProcedures = []string{
	ListAuctionsProcedure,
	GetAuctionProcedure,
	GetLedgerEntryProcedure,
	ListOwnerActivityProcedure,
	ListBidderActivityProcedure,
}

// NewAuctionServiceHandler builds the HTTP handler of AuctionService and
// returns the path prefix to mount it on.
func NewAuctionServiceHandler(h *AuctionHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateAuctionProcedure, connect.NewUnaryHandler(CreateAuctionProcedure, h.CreateAuction, opts...))
	mux.Handle(ListAuctionsProcedure, connect.NewUnaryHandler(ListAuctionsProcedure, h.ListAuctions, opts...))
	mux.Handle(GetAuctionProcedure, connect.NewUnaryHandler(GetAuctionProcedure, h.GetAuction, opts...))
	mux.Handle(GetLedgerEntryProcedure, connect.NewUnaryHandler(GetLedgerEntryProcedure, h.GetLedgerEntry, opts...))
	mux.Handle(PlaceBidProcedure, connect.NewUnaryHandler(PlaceBidProcedure, h.PlaceBid, opts...))
	mux.Handle(CancelAuctionProcedure, connect.NewUnaryHandler(CancelAuctionProcedure, h.CancelAuction, opts...))
	mux.Handle(EndAuctionProcedure, connect.NewUnaryHandler(EndAuctionProcedure, h.EndAuction, opts...))
	mux.Handle(BuyAuctionProcedure, connect.NewUnaryHandler(BuyAuctionProcedure, h.BuyAuction, opts...))
	mux.Handle(WithdrawBidProcedure, connect.NewUnaryHandler(WithdrawBidProcedure, h.WithdrawBid, opts...))
	mux.Handle(ClaimWinningBidProcedure, connect.NewUnaryHandler(ClaimWinningBidProcedure, h.ClaimWinningBid, opts...))
	mux.Handle(SubscribeEventsProcedure, connect.NewServerStreamHandler(SubscribeEventsProcedure, h.SubscribeEvents, opts...))
	mux.Handle(ListOwnerActivityProcedure, connect.NewUnaryHandler(ListOwnerActivityProcedure, h.ListOwnerActivity, opts...))
	mux.Handle(ListBidderActivityProcedure, connect.NewUnaryHandler(ListBidderActivityProcedure, h.ListBidderActivity, opts...))

	return "/" + AuctionServiceName + "/", mux
}

// AuctionServiceClient calls AuctionService over Connect with the JSON codec
type AuctionServiceClient struct {
	CreateAuction      *connect.Client[CreateAuctionRequest, CreateAuctionResponse]
	ListAuctions       *connect.Client[ListAuctionsRequest, ListAuctionsResponse]
	GetAuction         *connect.Client[GetAuctionRequest, GetAuctionResponse]
	GetLedgerEntry     *connect.Client[GetLedgerEntryRequest, GetLedgerEntryResponse]
	PlaceBid           *connect.Client[PlaceBidRequest, EventResponse]
	CancelAuction      *connect.Client[AuctionRequest, EventResponse]
	EndAuction         *connect.Client[AuctionRequest, EventResponse]
	BuyAuction         *connect.Client[BuyAuctionRequest, EventResponse]
	WithdrawBid        *connect.Client[AuctionRequest, PayoutResponse]
	ClaimWinningBid    *connect.Client[AuctionRequest, PayoutResponse]
	SubscribeEvents    *connect.Client[SubscribeEventsRequest, Event]
	ListOwnerActivity  *connect.Client[ListOwnerActivityRequest, ListOwnerActivityResponse]
	ListBidderActivity *connect.Client[ListBidderActivityRequest, ListBidderActivityResponse]
}

// NewAuctionServiceClient creates a client for the service at baseURL
func NewAuctionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuctionServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)

	return &AuctionServiceClient{
		CreateAuction:      connect.NewClient[CreateAuctionRequest, CreateAuctionResponse](httpClient, baseURL+CreateAuctionProcedure, opts...),
		ListAuctions:       connect.NewClient[ListAuctionsRequest, ListAuctionsResponse](httpClient, baseURL+ListAuctionsProcedure, opts...),
		GetAuction:         connect.NewClient[GetAuctionRequest, GetAuctionResponse](httpClient, baseURL+GetAuctionProcedure, opts...),
		GetLedgerEntry:     connect.NewClient[GetLedgerEntryRequest, GetLedgerEntryResponse](httpClient, baseURL+GetLedgerEntryProcedure, opts...),
		PlaceBid:           connect.NewClient[PlaceBidRequest, EventResponse](httpClient, baseURL+PlaceBidProcedure, opts...),
		CancelAuction:      connect.NewClient[AuctionRequest, EventResponse](httpClient, baseURL+CancelAuctionProcedure, opts...),
		EndAuction:         connect.NewClient[AuctionRequest, EventResponse](httpClient, baseURL+EndAuctionProcedure, opts...),
		BuyAuction:         connect.NewClient[BuyAuctionRequest, EventResponse](httpClient, baseURL+BuyAuctionProcedure, opts...),
		WithdrawBid:        connect.NewClient[AuctionRequest, PayoutResponse](httpClient, baseURL+WithdrawBidProcedure, opts...),
		ClaimWinningBid:    connect.NewClient[AuctionRequest, PayoutResponse](httpClient, baseURL+ClaimWinningBidProcedure, opts...),
		SubscribeEvents:    connect.NewClient[SubscribeEventsRequest, Event](httpClient, baseURL+SubscribeEventsProcedure, opts...),
		ListOwnerActivity:  connect.NewClient[ListOwnerActivityRequest, ListOwnerActivityResponse](httpClient, baseURL+ListOwnerActivityProcedure, opts...),
		ListBidderActivity: connect.NewClient[ListBidderActivityRequest, ListBidderActivityResponse](httpClient, baseURL+ListBidderActivityProcedure, opts...),
	}
}

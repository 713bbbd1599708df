package api

// Wire messages of auction.v1.AuctionService. Amounts are decimal strings in
// major units, addresses are 0x-prefixed hex and times are RFC 3339.

type Item struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Condition   string `json:"condition,omitempty"`
	ImageRef    string `json:"image_ref,omitempty"`
}

// Auction is the external view of an auction. HighestBid and HighestBidder
// are empty while Sealed is set.
type Auction struct {
	ID            uint64 `json:"id"`
	Owner         string `json:"owner"`
	Contact       string `json:"contact,omitempty"`
	Item          Item   `json:"item"`
	CreatedAt     string `json:"created_at"`
	EndsAt        string `json:"ends_at"`
	StartingBid   string `json:"starting_bid"`
	BidIncrement  string `json:"bid_increment"`
	SellingPrice  string `json:"selling_price"`
	IsPrivate     bool   `json:"is_private"`
	Status        string `json:"status"`
	StatusCode    int    `json:"status_code"`
	HighestBid    string `json:"highest_bid,omitempty"`
	HighestBidder string `json:"highest_bidder,omitempty"`
	Purchaser     string `json:"purchaser,omitempty"`
	TotalBids     int64  `json:"total_bids"`
	Sealed        bool   `json:"sealed"`
	Expired       bool   `json:"expired"`
}

type Event struct {
	Offset    uint64 `json:"offset"`
	AuctionID uint64 `json:"auction_id"`
	Kind      string `json:"kind"`
	Bidder    string `json:"bidder,omitempty"`
	Caller    string `json:"caller,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Refund    string `json:"refund,omitempty"`
	Status    string `json:"status,omitempty"`
	At        string `json:"at"`
}

type Payout struct {
	AuctionID uint64 `json:"auction_id"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
}

type CreateAuctionRequest struct {
	Contact       string `json:"contact"`
	DurationHours int64  `json:"duration_hours"`
	SellingPrice  string `json:"selling_price"`
	BidIncrement  string `json:"bid_increment"`
	StartingBid   string `json:"starting_bid"`
	IsPrivate     bool   `json:"is_private"`
	Item          Item   `json:"item"`
}

type CreateAuctionResponse struct {
	Auction Auction `json:"auction"`
}

// ListAuctionsRequest filters by owner when Owner is set. NotOwned inverts
// the filter.
type ListAuctionsRequest struct {
	Owner    string `json:"owner,omitempty"`
	NotOwned bool   `json:"not_owned,omitempty"`
}

type ListAuctionsResponse struct {
	IDs []uint64 `json:"ids"`
}

type GetAuctionRequest struct {
	AuctionID uint64 `json:"auction_id"`
}

type GetAuctionResponse struct {
	Auction Auction `json:"auction"`
}

type GetLedgerEntryRequest struct {
	AuctionID uint64 `json:"auction_id"`
	Address   string `json:"address"`
}

type GetLedgerEntryResponse struct {
	Amount string `json:"amount"`
}

type PlaceBidRequest struct {
	AuctionID uint64 `json:"auction_id"`
	Amount    string `json:"amount"`
}

type BuyAuctionRequest struct {
	AuctionID uint64 `json:"auction_id"`
	Amount    string `json:"amount"`
}

// AuctionRequest addresses an auction on behalf of the authenticated caller
type AuctionRequest struct {
	AuctionID uint64 `json:"auction_id"`
}

type EventResponse struct {
	Event Event `json:"event"`
}

type PayoutResponse struct {
	Payout Payout `json:"payout"`
}

// SubscribeEventsRequest streams records from offset From. Without Follow
// the stream ends after the records already committed.
type SubscribeEventsRequest struct {
	AuctionID uint64 `json:"auction_id"`
	From      uint64 `json:"from"`
	Follow    bool   `json:"follow"`
}

type ListOwnerActivityRequest struct {
	Owner string `json:"owner"`
}

type ListOwnerActivityResponse struct {
	Ongoing []uint64 `json:"ongoing"`
	Closed  []uint64 `json:"closed"`
}

type ListBidderActivityRequest struct {
	Bidder string `json:"bidder"`
}

type ListBidderActivityResponse struct {
	Bidding []uint64 `json:"bidding"`
	Won     []uint64 `json:"won"`
	Lost    []uint64 `json:"lost"`
}

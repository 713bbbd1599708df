package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/floroz/escrow-auction/internal/auction"
	"github.com/floroz/escrow-auction/internal/eventlog"
)

const channelPrefix = "auction_events:"

// Channel returns the pub/sub channel of an auction: "auction_events:{id}"
func Channel(auctionID uint64) string {
	return channelPrefix + strconv.FormatUint(auctionID, 10)
}

// OffsetKey holds the latest published offset of an auction, so late
// subscribers know where the live stream currently is.
func OffsetKey(auctionID uint64) string {
	return Channel(auctionID) + ":offset"
}

// RedisNotifier implements auction.Notifier with Redis pub/sub
type RedisNotifier struct {
	client *redis.Client
}

var _ auction.Notifier = (*RedisNotifier)(nil)

// NewRedisNotifier creates a notifier on an existing client
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Notify publishes rec as JSON on its auction channel and records its offset.
// The auction hides sealed bid amounts before rec gets here.
func (n *RedisNotifier) Notify(ctx context.Context, rec eventlog.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := n.client.TxPipeline()
	pipe.Publish(ctx, Channel(rec.AuctionID), payload)
	pipe.Set(ctx, OffsetKey(rec.AuctionID), rec.Offset, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish record: %w", err)
	}
	return nil
}

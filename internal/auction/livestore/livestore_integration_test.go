//go:build integration

package livestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/floroz/gavel/internal/auction/domain"
	"github.com/floroz/gavel/internal/auction/livestore"
	"github.com/floroz/gavel/internal/money"
)

func newTestStore(t *testing.T) *livestore.Store {
	t.Helper()
	ctx := context.Background()

	container, err := redis.Run(ctx, "redis:7-alpine",
		testcontainers.WithLogger(testcontainers.TestLogger(t)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := goredis.ParseURL(connStr)
	require.NoError(t, err)
	rdb := goredis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	return livestore.New(rdb)
}

func TestLiveStore_ProjectThenAdmitThenQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	auctionID, itemID, bidderID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()
	auction := &domain.Auction{
		ID: auctionID, ItemID: itemID, StartTime: now, EndTime: now.Add(time.Hour),
		Status: domain.AuctionLive, MinIncrementPercent: 10.00,
	}
	item := &domain.Item{ID: itemID, BasePrice: money.Amount(10000)}

	require.NoError(t, store.Project(ctx, auction, item, nil, time.Minute))

	exists, err := store.Exists(ctx, auctionID)
	require.NoError(t, err)
	assert.True(t, exists)

	status, err := store.Status(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionLive, status)

	bid := &domain.Bid{ID: uuid.New(), AuctionID: auctionID, BidderID: bidderID, Amount: money.Amount(12000), CreatedAt: now}
	result, err := store.Admit(ctx, auctionID, bid, item.BasePrice, auction.MinIncrementBasisPoints())
	require.NoError(t, err)
	assert.Equal(t, livestore.AdmissionAccepted, result.Code)

	highest, err := store.CurrentHighest(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(12000), highest)

	bidder, err := store.HighestBidder(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, bidderID, bidder)

	count, err := store.BidCount(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestLiveStore_AdmitRejectsBelowBasePrice(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	auctionID, itemID := uuid.New(), uuid.New()
	now := time.Now()
	auction := &domain.Auction{ID: auctionID, ItemID: itemID, StartTime: now, EndTime: now.Add(time.Hour), Status: domain.AuctionLive, MinIncrementPercent: 10.00}
	item := &domain.Item{ID: itemID, BasePrice: money.Amount(10000)}
	require.NoError(t, store.Project(ctx, auction, item, nil, time.Minute))

	bid := &domain.Bid{ID: uuid.New(), AuctionID: auctionID, BidderID: uuid.New(), Amount: money.Amount(5000), CreatedAt: now}
	result, err := store.Admit(ctx, auctionID, bid, item.BasePrice, auction.MinIncrementBasisPoints())
	require.NoError(t, err)
	assert.Equal(t, livestore.AdmissionBelowBasePrice, result.Code)
	assert.Equal(t, money.Amount(10000), result.BasePrice)
}

func TestLiveStore_AdmitRejectsBelowIncrement(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	auctionID, itemID := uuid.New(), uuid.New()
	now := time.Now()
	auction := &domain.Auction{ID: auctionID, ItemID: itemID, StartTime: now, EndTime: now.Add(time.Hour), Status: domain.AuctionLive, MinIncrementPercent: 10.00}
	item := &domain.Item{ID: itemID, BasePrice: money.Amount(10000)}
	require.NoError(t, store.Project(ctx, auction, item, nil, time.Minute))

	first := &domain.Bid{ID: uuid.New(), AuctionID: auctionID, BidderID: uuid.New(), Amount: money.Amount(20000), CreatedAt: now}
	_, err := store.Admit(ctx, auctionID, first, item.BasePrice, auction.MinIncrementBasisPoints())
	require.NoError(t, err)

	second := &domain.Bid{ID: uuid.New(), AuctionID: auctionID, BidderID: uuid.New(), Amount: money.Amount(20500), CreatedAt: now}
	result, err := store.Admit(ctx, auctionID, second, item.BasePrice, auction.MinIncrementBasisPoints())
	require.NoError(t, err)
	assert.Equal(t, livestore.AdmissionBelowIncrement, result.Code)
	assert.Equal(t, money.Amount(20000), result.CurrentHighest)
	assert.Equal(t, money.Amount(22000), result.MinimumRequired)
}

func TestLiveStore_RemoveHeadRollsToNextBidder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	auctionID, itemID := uuid.New(), uuid.New()
	now := time.Now()
	auction := &domain.Auction{ID: auctionID, ItemID: itemID, StartTime: now, EndTime: now.Add(time.Hour), Status: domain.AuctionLive, MinIncrementPercent: 10.00}
	item := &domain.Item{ID: itemID, BasePrice: money.Amount(10000)}
	require.NoError(t, store.Project(ctx, auction, item, nil, time.Minute))

	first := &domain.Bid{ID: uuid.New(), AuctionID: auctionID, BidderID: uuid.New(), Amount: money.Amount(15000), CreatedAt: now}
	second := &domain.Bid{ID: uuid.New(), AuctionID: auctionID, BidderID: uuid.New(), Amount: money.Amount(20000), CreatedAt: now}
	_, err := store.Admit(ctx, auctionID, first, item.BasePrice, auction.MinIncrementBasisPoints())
	require.NoError(t, err)
	_, err = store.Admit(ctx, auctionID, second, item.BasePrice, auction.MinIncrementBasisPoints())
	require.NoError(t, err)

	newHead, err := store.RemoveHead(ctx, auctionID)
	require.NoError(t, err)
	require.NotNil(t, newHead)
	assert.Equal(t, first.BidderID, newHead.BidderID)

	highest, err := store.CurrentHighest(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, first.Amount, highest)

	emptyHead, err := store.RemoveHead(ctx, auctionID)
	require.NoError(t, err)
	assert.Nil(t, emptyHead)

	highest, err = store.CurrentHighest(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, money.Zero, highest)
}

func TestLiveStore_TeardownRemovesAllKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	auctionID, itemID := uuid.New(), uuid.New()
	now := time.Now()
	auction := &domain.Auction{ID: auctionID, ItemID: itemID, StartTime: now, EndTime: now.Add(time.Hour), Status: domain.AuctionLive, MinIncrementPercent: 10.00}
	item := &domain.Item{ID: itemID, BasePrice: money.Amount(10000)}
	require.NoError(t, store.Project(ctx, auction, item, nil, time.Minute))

	require.NoError(t, store.Teardown(ctx, auctionID))

	exists, err := store.Exists(ctx, auctionID)
	require.NoError(t, err)
	assert.False(t, exists)
}

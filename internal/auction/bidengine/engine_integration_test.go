//go:build integration

package bidengine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/floroz/gavel/internal/auction/bidengine"
	"github.com/floroz/gavel/internal/auction/domain"
	"github.com/floroz/gavel/internal/auction/durable"
	"github.com/floroz/gavel/internal/auction/events"
	"github.com/floroz/gavel/internal/auction/livestore"
	"github.com/floroz/gavel/internal/money"
	"github.com/floroz/gavel/internal/platform/clock"
	"github.com/floroz/gavel/internal/platform/database"
	"github.com/floroz/gavel/pkg/testhelpers"
)

// recordingBroadcaster captures every published event instead of fanning it
// out over a real websocket hub, so the test can assert a NEW_BID event was
// emitted without standing up C5.
type recordingBroadcaster struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBroadcaster) Publish(topic string, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordingBroadcaster) last() events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[len(b.published)-1]
}

func newRedisClient(t *testing.T) *goredis.Client {
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
	return rdb
}

func TestEngine_PlaceBid_FullTransactionalSuccessPath(t *testing.T) {
	ctx := context.Background()

	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	defer testDB.Close()
	pool := testDB.Pool

	rdb := newRedisClient(t)
	live := livestore.New(rdb)

	itemID, sellerID := uuid.New(), uuid.New()
	_, err := pool.Exec(ctx, `INSERT INTO items (id, seller_id, base_price) VALUES ($1, $2, $3)`,
		itemID, sellerID, int64(10000))
	require.NoError(t, err)

	auctionID := uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)
	auction := &domain.Auction{
		ID: auctionID, ItemID: itemID, StartTime: now, EndTime: now.Add(time.Hour),
		Status: domain.AuctionLive, MinIncrementPercent: 10.00, CreatedAt: now, UpdatedAt: now,
	}

	auctions := durable.NewAuctionRepository(pool)
	items := durable.NewItemRepository(pool)
	bids := durable.NewBidRepository(pool)
	outbox := durable.NewOutboxRepository(pool)
	txManager := database.NewPostgresTransactionManager(pool, 5*time.Second)

	tx, err := txManager.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, auctions.SaveAuction(ctx, tx, auction))
	require.NoError(t, tx.Commit(ctx))

	item, err := items.GetItem(ctx, itemID)
	require.NoError(t, err)
	require.NoError(t, live.Project(ctx, auction, item, nil, time.Hour))

	broadcaster := &recordingBroadcaster{}
	engine := bidengine.New(live, auctions, items, bids, outbox, txManager, broadcaster, clock.Real{})

	bidderID := uuid.New()
	placed, err := engine.PlaceBid(ctx, auctionID, bidderID, money.Amount(15000))
	require.NoError(t, err)
	assert.Equal(t, money.Amount(15000), placed.Amount)

	// Durable append landed.
	top, err := bids.TopBid(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, placed.ID, top.ID)

	savedAuction, err := auctions.GetAuction(ctx, auctionID)
	require.NoError(t, err)
	require.NotNil(t, savedAuction.CurrentHighestBid)
	assert.Equal(t, money.Amount(15000), *savedAuction.CurrentHighestBid)

	// Outbox row written in the same transaction.
	otx, err := txManager.BeginTx(ctx)
	require.NoError(t, err)
	pending, err := outbox.GetPendingEvents(ctx, otx, 10)
	require.NoError(t, err)
	_ = otx.Rollback(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, string(events.KindNewBid), pending[0].EventType)

	// Broadcast hub was notified.
	lastEvt := broadcaster.last()
	assert.Equal(t, events.KindNewBid, lastEvt.Kind)
	assert.Equal(t, auctionID, lastEvt.AuctionID)

	// Live store reflects the new highest.
	highest, err := live.CurrentHighest(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(15000), highest)

	highestBidder, err := live.HighestBidder(ctx, auctionID)
	require.NoError(t, err)
	assert.Equal(t, bidderID, highestBidder)
}

func TestEngine_PlaceBid_SelfOutbidAndSellerRejected(t *testing.T) {
	ctx := context.Background()

	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	defer testDB.Close()
	pool := testDB.Pool

	rdb := newRedisClient(t)
	live := livestore.New(rdb)

	itemID, sellerID := uuid.New(), uuid.New()
	_, err := pool.Exec(ctx, `INSERT INTO items (id, seller_id, base_price) VALUES ($1, $2, $3)`,
		itemID, sellerID, int64(10000))
	require.NoError(t, err)

	auctionID := uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)
	auction := &domain.Auction{
		ID: auctionID, ItemID: itemID, StartTime: now, EndTime: now.Add(time.Hour),
		Status: domain.AuctionLive, MinIncrementPercent: 10.00, CreatedAt: now, UpdatedAt: now,
	}

	auctions := durable.NewAuctionRepository(pool)
	items := durable.NewItemRepository(pool)
	bids := durable.NewBidRepository(pool)
	outbox := durable.NewOutboxRepository(pool)
	txManager := database.NewPostgresTransactionManager(pool, 5*time.Second)

	tx, err := txManager.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, auctions.SaveAuction(ctx, tx, auction))
	require.NoError(t, tx.Commit(ctx))

	item, err := items.GetItem(ctx, itemID)
	require.NoError(t, err)
	require.NoError(t, live.Project(ctx, auction, item, nil, time.Hour))

	broadcaster := &recordingBroadcaster{}
	engine := bidengine.New(live, auctions, items, bids, outbox, txManager, broadcaster, clock.Real{})

	bidderID := uuid.New()
	_, err = engine.PlaceBid(ctx, auctionID, bidderID, money.Amount(15000))
	require.NoError(t, err)

	_, err = engine.PlaceBid(ctx, auctionID, bidderID, money.Amount(20000))
	assert.ErrorIs(t, err, domain.ErrSelfOutbid)

	_, err = engine.PlaceBid(ctx, auctionID, sellerID, money.Amount(20000))
	assert.ErrorIs(t, err, domain.ErrSellerCannotBid)
}

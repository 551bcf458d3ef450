package bidengine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/floroz/gavel/internal/auction/domain"
	"github.com/floroz/gavel/internal/auction/events"
	"github.com/floroz/gavel/internal/auction/livestore"
	"github.com/floroz/gavel/internal/money"
)

// mockLiveStore is a testify mock of the LiveStore collaborator.
type mockLiveStore struct{ mock.Mock }

func (m *mockLiveStore) Admit(ctx context.Context, auctionID uuid.UUID, bid *domain.Bid, basePrice money.Amount, incrementBasisPoints int64) (*livestore.AdmissionResult, error) {
	args := m.Called(ctx, auctionID, bid, basePrice, incrementBasisPoints)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*livestore.AdmissionResult), args.Error(1)
}

func (m *mockLiveStore) RemoveHead(ctx context.Context, auctionID uuid.UUID) (*events.BidEnvelope, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*events.BidEnvelope), args.Error(1)
}

func (m *mockLiveStore) Status(ctx context.Context, auctionID uuid.UUID) (domain.AuctionStatus, error) {
	args := m.Called(ctx, auctionID)
	return args.Get(0).(domain.AuctionStatus), args.Error(1)
}

func (m *mockLiveStore) EndTime(ctx context.Context, auctionID uuid.UUID) (time.Time, error) {
	args := m.Called(ctx, auctionID)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *mockLiveStore) HighestBidder(ctx context.Context, auctionID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, auctionID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockLiveStore) CurrentHighest(ctx context.Context, auctionID uuid.UUID) (money.Amount, error) {
	args := m.Called(ctx, auctionID)
	return args.Get(0).(money.Amount), args.Error(1)
}

func (m *mockLiveStore) RecentBids(ctx context.Context, auctionID uuid.UUID, n int64) ([]events.BidEnvelope, error) {
	args := m.Called(ctx, auctionID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]events.BidEnvelope), args.Error(1)
}

func (m *mockLiveStore) BidCount(ctx context.Context, auctionID uuid.UUID) (int64, error) {
	args := m.Called(ctx, auctionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLiveStore) MinimumNextBid(ctx context.Context, auctionID uuid.UUID, incrementBasisPoints int64) (money.Amount, error) {
	args := m.Called(ctx, auctionID, incrementBasisPoints)
	return args.Get(0).(money.Amount), args.Error(1)
}

// mockAuctionStore is a testify mock of domain.AuctionStore.
type mockAuctionStore struct{ mock.Mock }

func (m *mockAuctionStore) GetAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Auction), args.Error(1)
}

func (m *mockAuctionStore) GetAuctionForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Auction, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Auction), args.Error(1)
}

func (m *mockAuctionStore) ListByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.Auction, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Auction), args.Error(1)
}

func (m *mockAuctionStore) SaveAuction(ctx context.Context, tx pgx.Tx, a *domain.Auction) error {
	args := m.Called(ctx, tx, a)
	return args.Error(0)
}

// mockItemStore is a testify mock of domain.ItemStore.
type mockItemStore struct{ mock.Mock }

func (m *mockItemStore) GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Item), args.Error(1)
}

// mockBidStore is a testify mock of domain.BidStore.
type mockBidStore struct{ mock.Mock }

func (m *mockBidStore) AppendBid(ctx context.Context, tx pgx.Tx, b *domain.Bid) error {
	args := m.Called(ctx, tx, b)
	return args.Error(0)
}

func (m *mockBidStore) ListBidsDescByTime(ctx context.Context, auctionID uuid.UUID, limit int) ([]*domain.Bid, error) {
	args := m.Called(ctx, auctionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Bid), args.Error(1)
}

func (m *mockBidStore) TopBid(ctx context.Context, auctionID uuid.UUID) (*domain.Bid, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bid), args.Error(1)
}

// mockOutbox is a testify mock of events.OutboxRepository.
type mockOutbox struct{ mock.Mock }

func (m *mockOutbox) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

func (m *mockOutbox) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*events.OutboxEvent, error) {
	args := m.Called(ctx, tx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*events.OutboxEvent), args.Error(1)
}

func (m *mockOutbox) UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status events.OutboxStatus) error {
	args := m.Called(ctx, tx, id, status)
	return args.Error(0)
}

// mockTxManager is a testify mock of database.TransactionManager.
type mockTxManager struct{ mock.Mock }

func (m *mockTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

// mockBroadcaster is a testify mock of the Broadcaster collaborator.
type mockBroadcaster struct{ mock.Mock }

func (m *mockBroadcaster) Publish(topic string, event events.Event) {
	m.Called(topic, event)
}

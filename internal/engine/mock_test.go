package engine

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/assist-by/hedger/internal/domain"
	"github.com/assist-by/hedger/internal/ledger"
	"github.com/assist-by/hedger/internal/position"
)

type MockExchange struct {
	mock.Mock
}

func (m *MockExchange) GetPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockExchange) GetServerTime(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockExchange) GetKlines(ctx context.Context, symbol string, interval domain.TimeInterval, limit int) (domain.CandleList, error) {
	args := m.Called(ctx, symbol, interval, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.CandleList), args.Error(1)
}

func (m *MockExchange) GetBalance(ctx context.Context, asset string) (*domain.Balance, error) {
	args := m.Called(ctx, asset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Balance), args.Error(1)
}

func (m *MockExchange) GetCommissionRate(ctx context.Context, symbol string) (*domain.CommissionRate, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CommissionRate), args.Error(1)
}

func (m *MockExchange) PlaceOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderResponse), args.Error(1)
}

func (m *MockExchange) PlaceBatchOrders(ctx context.Context, orders []domain.OrderRequest) ([]domain.BatchResult, error) {
	args := m.Called(ctx, orders)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BatchResult), args.Error(1)
}

func (m *MockExchange) QueryOrder(ctx context.Context, symbol string, orderID int64) (*domain.OrderResponse, error) {
	args := m.Called(ctx, symbol, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderResponse), args.Error(1)
}

func (m *MockExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) (*domain.OrderResponse, error) {
	args := m.Called(ctx, symbol, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderResponse), args.Error(1)
}

func (m *MockExchange) SetMarginType(ctx context.Context, symbol string, marginType domain.MarginType) error {
	return m.Called(ctx, symbol, marginType).Error(0)
}

func (m *MockExchange) GetPositionMode(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockExchange) SetPositionMode(ctx context.Context, hedgeMode bool) error {
	return m.Called(ctx, hedgeMode).Error(0)
}

func (m *MockExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return m.Called(ctx, symbol, leverage).Error(0)
}

func (m *MockExchange) SyncTime(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// memStore는 스냅샷을 JSON으로 보관하는 메모리 저장소입니다
type memStore struct {
	snapshots map[string][]byte
	closed    []position.ClosedPair
	balances  []ledger.BalanceSnapshot
	recordErr error
	saveErr   error
}

func newMemStore() *memStore {
	return &memStore{snapshots: make(map[string][]byte)}
}

func (s *memStore) RecordClosedPair(_ context.Context, pair position.ClosedPair) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	for _, c := range s.closed {
		if c.Symbol == pair.Symbol && c.Long.ID == pair.Long.ID && c.Long.EntryTime.Equal(pair.Long.EntryTime) {
			return nil
		}
	}
	s.closed = append(s.closed, pair)
	return nil
}

func (s *memStore) AppendBalanceSnapshot(_ context.Context, snap ledger.BalanceSnapshot) error {
	s.balances = append(s.balances, snap)
	return nil
}

func (s *memStore) SaveAccountSnapshot(_ context.Context, acct *position.Account) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	data, err := position.Snapshot(acct)
	if err != nil {
		return err
	}
	s.snapshots[acct.Symbol()] = data
	return nil
}

func (s *memStore) LoadAccountSnapshot(_ context.Context, symbol string) (*position.Account, error) {
	data, ok := s.snapshots[symbol]
	if !ok {
		return nil, ledger.ErrNoSnapshot
	}
	return position.Restore(data)
}

func (s *memStore) HasAccountSnapshot(_ context.Context, symbol string) (bool, error) {
	_, ok := s.snapshots[symbol]
	return ok, nil
}

func (s *memStore) TradeSummary(_ context.Context, symbol string) (ledger.Summary, error) {
	var sum ledger.Summary
	for _, pair := range s.closed {
		if pair.Symbol != symbol {
			continue
		}
		sum.ClosedPairs++
		sum.Legs += 2
		sum.RealizedPnL += pair.PnL()
		for _, leg := range []position.Position{pair.Long, pair.Short} {
			if leg.ExitReason == position.ExitForcedMarket {
				sum.ForcedExits++
			}
		}
	}
	return sum, nil
}

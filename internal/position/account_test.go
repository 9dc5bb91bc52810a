package position

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/hedger/internal/domain"
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordClosedPair(ctx context.Context, pair ClosedPair) error {
	args := m.Called(ctx, pair)
	return args.Error(0)
}

var testNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func newTestAccount(t *testing.T, maxOpen int) *Account {
	t.Helper()
	acct, err := NewAccount(Params{
		Symbol:            "BTCUSDT",
		QuantityPrecision: 3,
		PricePrecision:    2,
		Capital:           1000,
		Leverage:          100,
		FeeRate:           0.0004,
		StopLossPct:       0.007,
		TakeProfitPct:     0.03,
		MaxOpenPositions:  maxOpen,
		NextTimestamp:     testNow.Add(time.Hour),
	})
	require.NoError(t, err)
	return acct
}

func openScenarioPair(t *testing.T, acct *Account, slot int) PositionPair {
	t.Helper()
	pair, err := acct.Open(slot, OpenRequest{
		Long:  Fill{Price: 50000, Qty: 0.01},
		Short: Fill{Price: 50000, Qty: 0.01},
		Time:  testNow,
	})
	require.NoError(t, err)
	return pair
}

func TestNewAccountValidation(t *testing.T) {
	base := Params{
		Symbol: "BTCUSDT", Capital: 100, Leverage: 10, FeeRate: 0.0004,
		StopLossPct: 0.01, TakeProfitPct: 0.02, MaxOpenPositions: 2,
	}

	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"빈 심볼", func(p *Params) { p.Symbol = "" }},
		{"레버리지 0", func(p *Params) { p.Leverage = 0 }},
		{"슬롯 0", func(p *Params) { p.MaxOpenPositions = 0 }},
		{"슬롯 상한 초과", func(p *Params) { p.MaxOpenPositions = MaxPairsCeiling + 1 }},
		{"음수 자본", func(p *Params) { p.Capital = -1 }},
		{"손절 비율 0", func(p *Params) { p.StopLossPct = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			_, err := NewAccount(p)
			assert.Error(t, err)
		})
	}

	acct, err := NewAccount(base)
	require.NoError(t, err)
	assert.Equal(t, 2, acct.MaxOpenPositions())
	assert.Empty(t, acct.OccupiedSlots())
}

func TestOpenDebitsMarginAndFees(t *testing.T) {
	acct := newTestAccount(t, 4)
	pair := openScenarioPair(t, acct, 0)

	assert.Equal(t, 49650.0, pair.Long.StopLossPrice)
	assert.Equal(t, 50350.0, pair.Short.StopLossPrice)
	assert.Equal(t, 51500.0, pair.Long.TakeProfitPrice)
	assert.Equal(t, 48500.0, pair.Short.TakeProfitPrice)
	assert.False(t, pair.Long.Actualised)
	assert.False(t, pair.Short.Actualised)
	assert.Equal(t, int64(1), pair.ID())
	assert.Equal(t, StagePristine, pair.Stage())

	// 다리당 0.01*50000/100 + 0.0004*0.01*50000 = 5.2
	assert.InDelta(t, 1000-2*5.2, acct.Capital(), 1e-9)
	assert.Equal(t, 1, acct.OpenPositions())
	assert.Equal(t, []int{0}, acct.OccupiedSlots())
	require.NoError(t, acct.CheckInvariants())
}

func TestOpenErrors(t *testing.T) {
	t.Run("사용 중인 슬롯", func(t *testing.T) {
		acct := newTestAccount(t, 2)
		openScenarioPair(t, acct, 0)
		_, err := acct.Open(0, OpenRequest{Long: Fill{50000, 0.01}, Short: Fill{50000, 0.01}, Time: testNow})
		assert.ErrorIs(t, err, ErrCapacityExceeded)
		assert.Equal(t, 1, acct.OpenPositions())
	})

	t.Run("범위 밖 슬롯", func(t *testing.T) {
		acct := newTestAccount(t, 2)
		_, err := acct.Open(2, OpenRequest{Long: Fill{50000, 0.01}, Short: Fill{50000, 0.01}})
		assert.ErrorIs(t, err, ErrSlotOutOfRange)
	})

	t.Run("정밀도 기준 0 수량", func(t *testing.T) {
		acct := newTestAccount(t, 2)
		_, err := acct.Open(0, OpenRequest{Long: Fill{50000, 0.0004}, Short: Fill{50000, 0.01}})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
		assert.Equal(t, 0, acct.OpenPositions())
		assert.Equal(t, 1000.0, acct.Capital())
	})

	t.Run("자본 부족", func(t *testing.T) {
		acct := newTestAccount(t, 2)
		_, err := acct.Open(0, OpenRequest{Long: Fill{50000, 1}, Short: Fill{50000, 1}})
		assert.ErrorIs(t, err, ErrInsufficientCapital)
		assert.Equal(t, int64(0), acct.TradeSequenceID())
	})
}

func TestActualiseReleasesCapital(t *testing.T) {
	acct := newTestAccount(t, 4)
	openScenarioPair(t, acct, 0)
	before := acct.Capital()

	require.NoError(t, acct.Actualise(0, Long, 49650, testNow.Add(time.Hour)))

	pair, ok := acct.Pair(0)
	require.True(t, ok)
	assert.True(t, pair.Long.Actualised)
	assert.False(t, pair.Short.Actualised)
	assert.Equal(t, ExitStopLoss, pair.Long.ExitReason)
	assert.True(t, pair.Short.IsOpen())
	assert.Equal(t, StageOneSided, pair.Stage())

	survivor, ok := pair.Survivor()
	require.True(t, ok)
	assert.Equal(t, Short, survivor)

	// qty*exit - (L-1)/L*qty*entry - f*qty*exit
	want := 0.01*49650 - 99.0/100.0*0.01*50000 - 0.0004*0.01*49650
	assert.InDelta(t, before+want, acct.Capital(), 1e-9)

	err := acct.Actualise(0, Short, 50350, testNow)
	assert.ErrorIs(t, err, ErrWrongStage)
}

func TestReleaseAmountShortLeg(t *testing.T) {
	acct := newTestAccount(t, 4)
	p := Position{Side: Short, EntryPrice: 50000, ExitPrice: 50350, Qty: 0.01, Leverage: 100}

	// 숏은 가격 상승 시 손실
	want := 0.01*50000/100 - (50350-50000)*0.01 - 0.0004*0.01*50350
	assert.InDelta(t, want, acct.ReleaseAmount(p), 1e-9)

	p.Side = Long
	assert.InDelta(t, 0.01*50350-0.99*0.01*50000-0.0004*0.01*50350, acct.ReleaseAmount(p), 1e-9)
}

func TestTightenStopAndClose(t *testing.T) {
	acct := newTestAccount(t, 4)
	openScenarioPair(t, acct, 0)
	require.NoError(t, acct.Actualise(0, Long, 49650, testNow.Add(time.Hour)))

	err := acct.TightenStop(0, Long, 49000, nil)
	assert.ErrorIs(t, err, ErrWrongStage)

	newStop := &OrderRef{OrderID: 7, Type: domain.StopMarket, StopPrice: 49610.28}
	require.NoError(t, acct.TightenStop(0, Short, 49610.28, newStop))
	pair, _ := acct.Pair(0)
	assert.Equal(t, 49610.28, pair.Short.StopLossPrice)
	assert.Equal(t, int64(7), acct.Brackets(0).Short.StopLoss.OrderID)

	_, err = acct.Close(context.Background(), 0, nil)
	assert.ErrorIs(t, err, ErrWrongStage, "남은 다리가 열려 있으면 닫을 수 없습니다")

	require.NoError(t, acct.Settle(0, Short, 49610.28, testNow.Add(2*time.Hour), ExitStopLoss))
	assert.ErrorIs(t, acct.Settle(0, Short, 49600, testNow, ExitStopLoss), ErrWrongStage)

	capitalBefore := acct.Capital()
	rec := &MockRecorder{}
	rec.On("RecordClosedPair", mock.Anything, mock.MatchedBy(func(cp ClosedPair) bool {
		return cp.Slot == 0 && cp.Long.Released && cp.Short.Released && len(cp.Orders) == 1
	})).Return(nil).Once()

	closed, err := acct.Close(context.Background(), 0, rec)
	require.NoError(t, err)
	rec.AssertExpectations(t)

	shortRelease := 0.01*50000/100 + (50000-49610.28)*0.01 - 0.0004*0.01*49610.28
	assert.InDelta(t, capitalBefore+shortRelease, acct.Capital(), 1e-9)
	assert.Equal(t, testNow.Add(2*time.Hour), closed.ClosedAt)
	assert.Equal(t, 0, acct.OpenPositions())
	assert.Len(t, acct.ClosedLongs(), 1)
	assert.Len(t, acct.ClosedShorts(), 1)
	brackets := acct.Brackets(0)
	assert.Empty(t, brackets.Orders())
	require.NoError(t, acct.CheckInvariants())

	// 수수료를 제외하면 두 다리 손익은 거의 상쇄됩니다
	assert.InDelta(t, 1000, acct.Capital(), 1.0)
}

func TestCloseRecorderFailureKeepsState(t *testing.T) {
	acct := newTestAccount(t, 4)
	openScenarioPair(t, acct, 0)
	require.NoError(t, acct.Actualise(0, Long, 49650, testNow))
	require.NoError(t, acct.Settle(0, Short, 49600, testNow, ExitForcedMarket))
	capital := acct.Capital()

	rec := &MockRecorder{}
	rec.On("RecordClosedPair", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := acct.Close(context.Background(), 0, rec)
	require.Error(t, err)
	assert.Equal(t, capital, acct.Capital())
	assert.Equal(t, 1, acct.OpenPositions())

	pair, ok := acct.Pair(0)
	require.True(t, ok)
	assert.Equal(t, ExitForcedMarket, pair.Short.ExitReason)
	assert.False(t, pair.Short.Released)
}

func TestSetBracketRetiresReplacedOrders(t *testing.T) {
	acct := newTestAccount(t, 2)
	_, err := acct.Open(0, OpenRequest{
		Long:  Fill{50000, 0.01},
		Short: Fill{50000, 0.01},
		Brackets: BracketSet{
			Long:  LegBrackets{Entry: &OrderRef{OrderID: 1}, StopLoss: &OrderRef{OrderID: 3}, TakeProfit: &OrderRef{OrderID: 5}},
			Short: LegBrackets{Entry: &OrderRef{OrderID: 2}, StopLoss: &OrderRef{OrderID: 4}, TakeProfit: &OrderRef{OrderID: 6}},
		},
	})
	require.NoError(t, err)

	cancelled := &OrderRef{OrderID: 5, Status: domain.StatusCanceled}
	require.NoError(t, acct.SetBracket(0, Long, TakeProfitOrder, cancelled))
	require.NoError(t, acct.SetBracket(0, Short, StopLossOrder, &OrderRef{OrderID: 9}))

	b := acct.Brackets(0)
	assert.Equal(t, domain.StatusCanceled, b.Long.TakeProfit.Status)
	require.Len(t, b.Retired, 1)
	assert.Equal(t, int64(4), b.Retired[0].OrderID)
	assert.Len(t, b.Orders(), 7)

	assert.ErrorIs(t, acct.SetBracket(1, Long, StopLossOrder, nil), ErrSlotEmpty)
}

func TestFreeSlotAndCapacity(t *testing.T) {
	acct := newTestAccount(t, 2)
	slot, err := acct.FreeSlot()
	require.NoError(t, err)
	assert.Equal(t, 0, slot)

	openScenarioPair(t, acct, 0)
	openScenarioPair(t, acct, 1)

	_, err = acct.FreeSlot()
	assert.ErrorIs(t, err, ErrNoCapacity)
	_, err = acct.LegQuantity(50000)
	assert.ErrorIs(t, err, ErrNoCapacity)
	assert.Equal(t, int64(2), acct.TradeSequenceID())
}

func TestCheckInvariantsDetectsCounterDrift(t *testing.T) {
	acct := newTestAccount(t, 2)
	openScenarioPair(t, acct, 0)
	acct.nOpenPositions = 2

	assert.ErrorIs(t, acct.CheckInvariants(), ErrInconsistentState)

	acct.nOpenPositions = 1
	acct.capital = -0.5
	assert.ErrorIs(t, acct.CheckInvariants(), ErrInconsistentState)
}

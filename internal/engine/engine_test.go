package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/hedger/internal/domain"
	"github.com/assist-by/hedger/internal/exchange"
	"github.com/assist-by/hedger/internal/metrics"
	"github.com/assist-by/hedger/internal/position"
)

const symbol = "BTCUSDT"

var barTime = time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReversionMaxAttempts = 3
	cfg.FillMaxAttempts = 2
	cfg.ConfigMaxAttempts = 2
	cfg.Retry = RetryConfig{MaxRetries: 2, Factor: 2}
	return cfg
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestEngine(t *testing.T, ex *MockExchange, store *memStore, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithSleep(noSleep)}, opts...)
	e, err := New(ex, store, testConfig(), opts...)
	require.NoError(t, err)
	return e
}

// newAccount는 자본 1000, 레버리지 100, 수수료 0.04%, 손절 0.7%, 익절 3% 계정입니다
func newAccount(t *testing.T, maxOpen int, real bool) *position.Account {
	t.Helper()
	acct, err := position.NewAccount(position.Params{
		Symbol:            symbol,
		QuantityPrecision: 3,
		PricePrecision:    2,
		Capital:           1000,
		Leverage:          100,
		FeeRate:           0.0004,
		StopLossPct:       0.007,
		TakeProfitPct:     0.03,
		MaxOpenPositions:  maxOpen,
		RealMode:          real,
		NextTimestamp:     barTime,
	})
	require.NoError(t, err)
	return acct
}

func openPair(t *testing.T, acct *position.Account, slot int, brackets position.BracketSet) {
	t.Helper()
	_, err := acct.Open(slot, position.OpenRequest{
		Long:     position.Fill{Price: 50000, Qty: 0.01},
		Short:    position.Fill{Price: 50000, Qty: 0.01},
		Time:     barTime.Add(-time.Hour),
		Brackets: brackets,
	})
	require.NoError(t, err)
}

func candles(closes ...float64) domain.CandleList {
	out := make(domain.CandleList, len(closes))
	for i, c := range closes {
		open := barTime.Add(-time.Duration(len(closes)-i) * time.Hour)
		out[i] = domain.Candle{OpenTime: open, CloseTime: open.Add(time.Hour - time.Millisecond), Close: c, Symbol: symbol}
	}
	// 아직 진행 중인 봉은 판정에서 제외되어야 합니다
	return append(out, domain.Candle{OpenTime: barTime, Close: 1, Symbol: symbol})
}

func flatCandles() domain.CandleList {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 50000
	}
	return candles(closes...)
}

// crossoverCandles는 하락 추세 뒤 마지막 봉에서 급등해 빠른 EMA가 느린 EMA를 상향 돌파합니다
func crossoverCandles() domain.CandleList {
	closes := make([]float64, 0, 30)
	for c := 130.0; c >= 102; c-- {
		closes = append(closes, c)
	}
	return candles(append(closes, 200)...)
}

func expectMarket(ex *MockExchange, now time.Time, price float64, klines domain.CandleList) {
	ex.On("GetServerTime", mock.Anything).Return(now, nil)
	ex.On("GetPrice", mock.Anything, symbol).Return(price, nil)
	ex.On("GetKlines", mock.Anything, symbol, domain.Interval1h, 30).Return(klines, nil)
}

func TestTickSimFirstTriggerTightensSurvivor(t *testing.T) {
	ex := new(MockExchange)
	store := newMemStore()
	m := metrics.New()
	e := newTestEngine(t, ex, store, WithMetrics(m))

	acct := newAccount(t, 2, false)
	openPair(t, acct, 0, position.BracketSet{})
	assert.InDelta(t, 989.6, acct.Capital(), 1e-9)

	expectMarket(ex, barTime, 49600, flatCandles())

	report, err := e.Tick(context.Background(), acct)
	require.NoError(t, err)

	require.Len(t, report.Transitions, 1)
	tr := report.Transitions[0]
	assert.Equal(t, TransitionFirstTrigger, tr.Kind)
	assert.Equal(t, position.Long, tr.Side)
	assert.Equal(t, 49650.0, tr.ExitPrice)
	assert.Equal(t, 49610.28, tr.NewStop)

	pair, ok := acct.Pair(0)
	require.True(t, ok)
	assert.True(t, pair.Long.Actualised)
	assert.Equal(t, 49650.0, pair.Long.ExitPrice)
	assert.Equal(t, barTime, pair.Long.ExitTime)
	assert.Equal(t, 49610.28, pair.Short.StopLossPrice)
	assert.True(t, pair.Short.IsOpen())
	assert.Equal(t, position.StageOneSided, pair.Stage())

	// 989.6 + 0.01*49650 - 0.99*0.01*50000 - 0.0004*0.01*49650
	assert.InDelta(t, 990.9014, acct.Capital(), 1e-9)
	assert.Equal(t, EntryNoSignal, report.Entry.Result)
	assert.Equal(t, barTime.Add(time.Hour), acct.NextTimestamp())
	assert.Len(t, store.balances, 1)
	assert.InDelta(t, acct.Capital(), store.balances[0].Available, 1e-9)

	n, err := testutil.GatherAndCount(m.Registry(), "hedger_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTickSimFinalCloseViaTarget(t *testing.T) {
	ex := new(MockExchange)
	store := newMemStore()
	e := newTestEngine(t, ex, store)

	acct := newAccount(t, 2, false)
	openPair(t, acct, 0, position.BracketSet{})
	require.NoError(t, acct.Actualise(0, position.Long, 49650, barTime.Add(-time.Hour)))
	require.NoError(t, acct.TightenStop(0, position.Short, 49610.28, nil))

	expectMarket(ex, barTime, 48000, flatCandles())

	report, err := e.Tick(context.Background(), acct)
	require.NoError(t, err)

	require.Len(t, report.Transitions, 1)
	assert.Equal(t, TransitionFinalTarget, report.Transitions[0].Kind)
	assert.Equal(t, position.Short, report.Transitions[0].Side)
	assert.Equal(t, 48500.0, report.Transitions[0].ExitPrice)

	_, ok := acct.Pair(0)
	assert.False(t, ok)
	assert.Equal(t, 0, acct.OpenPositions())
	// 990.9014 + 0.01*50000/100 + 0.01*(50000-48500) - 0.0004*0.01*48500
	assert.InDelta(t, 1010.7074, acct.Capital(), 1e-9)

	require.Len(t, store.closed, 1)
	closed := store.closed[0]
	assert.Equal(t, position.ExitStopLoss, closed.Long.ExitReason)
	assert.Equal(t, position.ExitTakeProfit, closed.Short.ExitReason)
	assert.Equal(t, barTime, closed.Short.ExitTime)
	assert.Len(t, acct.ClosedLongs(), 1)
	assert.Len(t, acct.ClosedShorts(), 1)
}

func TestTickSimForcedExitAfterReversionExhausted(t *testing.T) {
	ex := new(MockExchange)
	store := newMemStore()
	e := newTestEngine(t, ex, store)

	acct := newAccount(t, 2, false)
	openPair(t, acct, 0, position.BracketSet{})

	// 롱 손절(49650)은 발동하지만 숏의 새 손절(49610.28) 위에 머무는 가격
	expectMarket(ex, barTime, 49630, flatCandles())

	report, err := e.Tick(context.Background(), acct)
	require.NoError(t, err)

	require.Len(t, report.Transitions, 2)
	assert.Equal(t, TransitionFirstTrigger, report.Transitions[0].Kind)
	assert.Zero(t, report.Transitions[0].NewStop)
	assert.Equal(t, TransitionForcedExit, report.Transitions[1].Kind)
	assert.Equal(t, position.Short, report.Transitions[1].Side)
	assert.Equal(t, 49630.0, report.Transitions[1].ExitPrice)

	// 첫 판정은 틱 시작 가격을 쓰고 이후 시도마다 가격을 다시 조회합니다
	ex.AssertNumberOfCalls(t, "GetPrice", 3)

	assert.Equal(t, 0, acct.OpenPositions())
	require.Len(t, store.closed, 1)
	assert.Equal(t, position.ExitForcedMarket, store.closed[0].Short.ExitReason)
	assert.NoError(t, acct.CheckInvariants())
}

func TestTickSimOpensPairOnCrossover(t *testing.T) {
	ex := new(MockExchange)
	store := newMemStore()
	e := newTestEngine(t, ex, store)

	acct := newAccount(t, 2, false)
	expectMarket(ex, barTime, 50000, crossoverCandles())

	report, err := e.Tick(context.Background(), acct)
	require.NoError(t, err)

	assert.Equal(t, EntryOpened, report.Entry.Result)
	assert.Equal(t, 0, report.Entry.Slot)
	pair, ok := acct.Pair(0)
	require.True(t, ok)
	// 예산 1000/2/2 = 250, 단위당 50000*(1/100+0.0004) = 520
	assert.Equal(t, 0.48, pair.Long.Qty)
	assert.Equal(t, 0.48, pair.Short.Qty)
	assert.Equal(t, 49650.0, pair.Long.StopLossPrice)
	assert.Equal(t, 50350.0, pair.Short.StopLossPrice)
	assert.Equal(t, 51500.0, pair.Long.TakeProfitPrice)
	assert.Equal(t, 48500.0, pair.Short.TakeProfitPrice)
	assert.Equal(t, barTime, pair.Long.EntryTime)
	assert.InDelta(t, 1000-2*(0.48*50000/100+0.0004*0.48*50000), acct.Capital(), 1e-9)
}

func TestTickRejectsEntryWithoutCapacity(t *testing.T) {
	ex := new(MockExchange)
	store := newMemStore()
	e := newTestEngine(t, ex, store)

	acct := newAccount(t, 2, false)
	openPair(t, acct, 0, position.BracketSet{})
	openPair(t, acct, 1, position.BracketSet{})
	capital := acct.Capital()

	expectMarket(ex, barTime, 50000, crossoverCandles())

	report, err := e.Tick(context.Background(), acct)
	require.NoError(t, err)

	assert.Equal(t, EntryNoCapacity, report.Entry.Result)
	assert.ErrorIs(t, report.Entry.Err, position.ErrNoCapacity)
	code, ok := CodeOf(report.Entry.Err)
	require.True(t, ok)
	assert.Equal(t, CodeNoCapacity, code)
	assert.Empty(t, report.Transitions)
	assert.Equal(t, capital, acct.Capital())
	assert.Equal(t, 2, acct.OpenPositions())
}

func TestTickTooEarly(t *testing.T) {
	ex := new(MockExchange)
	store := newMemStore()
	e := newTestEngine(t, ex, store)

	acct := newAccount(t, 2, false)
	ex.On("GetServerTime", mock.Anything).Return(barTime.Add(-10*time.Minute), nil)

	_, err := e.Tick(context.Background(), acct)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooEarly)
	code, _ := CodeOf(err)
	assert.Equal(t, CodeTooEarly, code)

	assert.Equal(t, barTime, acct.NextTimestamp())
	ex.AssertNotCalled(t, "GetPrice", mock.Anything, mock.Anything)
	assert.Empty(t, store.balances)
}

func TestTickWaitsForBarBoundary(t *testing.T) {
	ex := new(MockExchange)
	store := newMemStore()

	var waits []time.Duration
	e := newTestEngine(t, ex, store, WithSleep(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}))

	acct := newAccount(t, 2, false)
	ex.On("GetServerTime", mock.Anything).Return(barTime.Add(-30*time.Second), nil).Once()
	expectMarket(ex, barTime.Add(2*time.Second), 50000, flatCandles())

	report, err := e.Tick(context.Background(), acct)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{35 * time.Second}, waits)
	assert.Equal(t, barTime, report.BarTime)
	assert.Equal(t, barTime.Add(2*time.Second), report.ServerTime)
}

func TestTickRetryExhaustionWrapsTransport(t *testing.T) {
	ex := new(MockExchange)
	store := newMemStore()
	e := newTestEngine(t, ex, store)

	acct := newAccount(t, 2, false)
	ex.On("GetServerTime", mock.Anything).Return(barTime, nil)
	ex.On("GetPrice", mock.Anything, symbol).Return(0.0, errors.New("connection reset by peer"))

	_, err := e.Tick(context.Background(), acct)
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrTransport)
	code, _ := CodeOf(err)
	assert.Equal(t, CodePrice, code)

	// 최초 호출 1회 + 재시도 2회
	ex.AssertNumberOfCalls(t, "GetPrice", 3)
	assert.Equal(t, barTime, acct.NextTimestamp())
}

func TestRunOnceSnapshotRoundTripKeepsDecision(t *testing.T) {
	build := func() *position.Account {
		acct := newAccount(t, 2, false)
		openPair(t, acct, 0, position.BracketSet{})
		require.NoError(t, acct.Actualise(0, position.Long, 49650, barTime.Add(-time.Hour)))
		require.NoError(t, acct.TightenStop(0, position.Short, 49610.28, nil))
		return acct
	}

	direct := new(MockExchange)
	expectMarket(direct, barTime, 49700, flatCandles())
	want, err := newTestEngine(t, direct, newMemStore()).Tick(context.Background(), build())
	require.NoError(t, err)

	stored := new(MockExchange)
	expectMarket(stored, barTime, 49700, flatCandles())
	store := newMemStore()
	require.NoError(t, store.SaveAccountSnapshot(context.Background(), build()))

	got, err := newTestEngine(t, stored, store).RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, got.Transitions, 1)
	assert.Equal(t, TransitionFinalStop, got.Transitions[0].Kind)
	assert.Equal(t, want.Transitions, got.Transitions)
	assert.InDelta(t, want.Capital, got.Capital, 1e-9)

	reloaded, err := store.LoadAccountSnapshot(context.Background(), symbol)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.OpenPositions())
	assert.Equal(t, barTime.Add(time.Hour), reloaded.NextTimestamp())
}

func TestRunOnceWithoutSnapshot(t *testing.T) {
	e := newTestEngine(t, new(MockExchange), newMemStore())
	_, err := e.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestRunOnceDoesNotPersistFailedTick(t *testing.T) {
	ex := new(MockExchange)
	store := newMemStore()
	e := newTestEngine(t, ex, store)

	acct := newAccount(t, 2, false)
	openPair(t, acct, 0, position.BracketSet{})
	require.NoError(t, store.SaveAccountSnapshot(context.Background(), acct))
	before := store.snapshots[symbol]

	// 롱 손절 후 숏 강제 청산 단계에서 장부 기록이 실패
	expectMarket(ex, barTime, 49630, flatCandles())
	store.recordErr = errors.New("disk full")

	_, err := e.RunOnce(context.Background())
	require.Error(t, err)
	code, _ := CodeOf(err)
	assert.Equal(t, CodeLedger, code)
	assert.Equal(t, before, store.snapshots[symbol])
}

func TestExecuteIgnoresTooEarly(t *testing.T) {
	ex := new(MockExchange)
	store := newMemStore()
	e := newTestEngine(t, ex, store)

	require.NoError(t, store.SaveAccountSnapshot(context.Background(), newAccount(t, 2, false)))
	ex.On("GetServerTime", mock.Anything).Return(barTime.Add(-time.Hour), nil)

	assert.NoError(t, e.Execute(context.Background()))
}

// realBrackets는 실거래 모드 쌍의 진입/손절/익절 주문 참조입니다
func realBrackets() position.BracketSet {
	ref := func(id int64, typ domain.OrderType, ps domain.PositionSide, status domain.OrderStatus) *position.OrderRef {
		return &position.OrderRef{OrderID: id, Symbol: symbol, Type: typ, PositionSide: ps, Status: status}
	}
	return position.BracketSet{
		Long: position.LegBrackets{
			Entry:      ref(1, domain.Market, domain.LongPosition, domain.StatusFilled),
			StopLoss:   ref(11, domain.StopMarket, domain.LongPosition, domain.StatusNew),
			TakeProfit: ref(12, domain.TakeProfitMarket, domain.LongPosition, domain.StatusNew),
		},
		Short: position.LegBrackets{
			Entry:      ref(2, domain.Market, domain.ShortPosition, domain.StatusFilled),
			StopLoss:   ref(13, domain.StopMarket, domain.ShortPosition, domain.StatusNew),
			TakeProfit: ref(14, domain.TakeProfitMarket, domain.ShortPosition, domain.StatusNew),
		},
	}
}

func expectRealChecks(ex *MockExchange) {
	ex.On("GetPositionMode", mock.Anything).Return(true, nil)
	ex.On("SetMarginType", mock.Anything, symbol, domain.MarginCrossed).Return(nil)
	ex.On("GetBalance", mock.Anything, "USDT").Return(&domain.Balance{Asset: "USDT", Balance: 1000, Available: 990}, nil)
}

func TestTickRealFirstTriggerCancelIsIdempotent(t *testing.T) {
	ex := new(MockExchange)
	store := newMemStore()
	e := newTestEngine(t, ex, store)

	acct := newAccount(t, 2, true)
	openPair(t, acct, 0, realBrackets())

	expectRealChecks(ex)
	expectMarket(ex, barTime, 49600, flatCandles())

	ex.On("QueryOrder", mock.Anything, symbol, int64(11)).
		Return(&domain.OrderResponse{OrderID: 11, Symbol: symbol, Status: domain.StatusFilled, AvgPrice: 49648, Type: domain.StopMarket, PositionSide: domain.LongPosition}, nil)
	// 익절 주문은 이미 거래소에서 사라졌고 취소 대신 조회로 종료 상태를 확인합니다
	ex.On("CancelOrder", mock.Anything, symbol, int64(12)).
		Return(nil, &common.APIError{Code: exchange.CodeUnknownOrder, Message: "Unknown order sent."})
	ex.On("QueryOrder", mock.Anything, symbol, int64(12)).
		Return(&domain.OrderResponse{OrderID: 12, Symbol: symbol, Status: domain.StatusCanceled}, nil)
	ex.On("CancelOrder", mock.Anything, symbol, int64(13)).
		Return(&domain.OrderResponse{OrderID: 13, Symbol: symbol, Status: domain.StatusCanceled}, nil)
	ex.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r domain.OrderRequest) bool {
		return r.Type == domain.StopMarket && r.PositionSide == domain.ShortPosition &&
			r.Side == domain.Buy && r.StopPrice == 49608.28 && r.Quantity == 0.01
	})).Return(&domain.OrderResponse{OrderID: 21, Symbol: symbol, Status: domain.StatusNew, Type: domain.StopMarket, StopPrice: 49608.28}, nil)

	report, err := e.Tick(context.Background(), acct)
	require.NoError(t, err)

	require.Len(t, report.Transitions, 1)
	assert.Equal(t, 49648.0, report.Transitions[0].ExitPrice)
	assert.Equal(t, 49608.28, report.Transitions[0].NewStop)

	pair, _ := acct.Pair(0)
	assert.Equal(t, 49648.0, pair.Long.ExitPrice)
	assert.Equal(t, 49608.28, pair.Short.StopLossPrice)

	brackets := acct.Brackets(0)
	assert.Equal(t, domain.StatusCanceled, brackets.Long.TakeProfit.Status)
	assert.Equal(t, int64(21), brackets.Short.StopLoss.OrderID)
	require.Len(t, brackets.Retired, 1)
	assert.Equal(t, int64(13), brackets.Retired[0].OrderID)
	assert.Equal(t, domain.StatusCanceled, brackets.Retired[0].Status)

	// 알 수 없는 주문 에러는 재시도하지 않습니다
	ex.AssertNumberOfCalls(t, "CancelOrder", 2)
	ex.AssertNotCalled(t, "QueryOrder", mock.Anything, symbol, int64(13))
	require.Len(t, store.balances, 1)
	assert.Equal(t, 990.0, store.balances[0].Available)
}

func TestTickRealBracketFailureFlattensEntry(t *testing.T) {
	ex := new(MockExchange)
	store := newMemStore()
	e := newTestEngine(t, ex, store)

	acct := newAccount(t, 2, true)
	expectRealChecks(ex)
	expectMarket(ex, barTime, 50000, crossoverCandles())

	filled := func(id int64, ps domain.PositionSide) *domain.OrderResponse {
		return &domain.OrderResponse{OrderID: id, Symbol: symbol, Status: domain.StatusFilled, AvgPrice: 50000,
			ExecutedQuantity: 0.48, OrigQuantity: 0.48, Type: domain.Market, PositionSide: ps}
	}
	pending := func(id int64) *domain.OrderResponse {
		return &domain.OrderResponse{OrderID: id, Symbol: symbol, Status: domain.StatusNew}
	}

	ex.On("PlaceBatchOrders", mock.Anything, mock.MatchedBy(func(reqs []domain.OrderRequest) bool {
		return len(reqs) == 2
	})).Return([]domain.BatchResult{
		{Order: filled(1, domain.LongPosition)},
		{Order: filled(2, domain.ShortPosition)},
	}, nil)
	ex.On("PlaceBatchOrders", mock.Anything, mock.MatchedBy(func(reqs []domain.OrderRequest) bool {
		return len(reqs) == 4 && reqs[0].StopPrice == 49650 && reqs[1].StopPrice == 51500 &&
			reqs[2].StopPrice == 50350 && reqs[3].StopPrice == 48500
	})).Return([]domain.BatchResult{
		{Order: pending(11)},
		{Order: pending(12)},
		{Order: pending(13)},
		{Err: &common.APIError{Code: exchange.CodeWouldImmediately, Message: "Order would immediately trigger."}},
	}, nil)
	for _, id := range []int64{11, 12, 13} {
		ex.On("CancelOrder", mock.Anything, symbol, id).
			Return(&domain.OrderResponse{OrderID: id, Symbol: symbol, Status: domain.StatusCanceled}, nil)
	}
	ex.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(r domain.OrderRequest) bool {
		return r.Type == domain.Market && r.Quantity == 0.48
	})).Return(&domain.OrderResponse{OrderID: 31, Symbol: symbol, Status: domain.StatusFilled, AvgPrice: 49990}, nil)

	report, err := e.Tick(context.Background(), acct)
	require.NoError(t, err)

	assert.Equal(t, EntryFailed, report.Entry.Result)
	assert.ErrorIs(t, report.Entry.Err, position.ErrInconsistentState)
	code, _ := CodeOf(report.Entry.Err)
	assert.Equal(t, CodeBracketOrder, code)

	assert.Equal(t, 0, acct.OpenPositions())
	assert.Equal(t, 1000.0, acct.Capital())
	ex.AssertNumberOfCalls(t, "CancelOrder", 3)
	ex.AssertNumberOfCalls(t, "PlaceOrder", 2)
}

func TestInitializeSimulated(t *testing.T) {
	ex := new(MockExchange)
	store := newMemStore()
	e := newTestEngine(t, ex, store)

	ex.On("SyncTime", mock.Anything).Return(nil)
	ex.On("GetCommissionRate", mock.Anything, symbol).Return(&domain.CommissionRate{Symbol: symbol, Maker: 0.0002, Taker: 0.0005}, nil)
	ex.On("GetBalance", mock.Anything, "USDT").Return(&domain.Balance{Asset: "USDT", Available: 1000}, nil)
	ex.On("GetPrice", mock.Anything, symbol).Return(50000.0, nil)
	ex.On("GetServerTime", mock.Anything).Return(barTime.Add(-40*time.Minute), nil)

	acct, err := e.Initialize(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, acct.Capital())
	assert.Equal(t, 0.0005, acct.FeeRate())
	// 쌍당 최소 2*(5+50000*0.001) = 110, floor(1000/110) = 9, min(5, 9) - 1
	assert.Equal(t, 4, acct.MaxOpenPositions())
	assert.Equal(t, barTime, acct.NextTimestamp())
	assert.False(t, acct.RealMode())
	assert.Len(t, store.balances, 1)

	ok, _ := store.HasAccountSnapshot(context.Background(), symbol)
	assert.True(t, ok)

	_, err = e.Initialize(context.Background(), false)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	ex.AssertNotCalled(t, "SetLeverage", mock.Anything, mock.Anything, mock.Anything)
}

func TestStatus(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(t, new(MockExchange), store)

	_, err := e.Status(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)

	acct := newAccount(t, 2, false)
	openPair(t, acct, 1, position.BracketSet{})
	require.NoError(t, store.SaveAccountSnapshot(context.Background(), acct))

	status, err := e.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Account.OpenPositions())
	assert.Equal(t, []int{1}, status.Account.OccupiedSlots())
	assert.Zero(t, status.Summary.ClosedPairs)
}

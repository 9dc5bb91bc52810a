package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/assist-by/hedger/internal/analysis/indicator"
	"github.com/assist-by/hedger/internal/domain"
	"github.com/assist-by/hedger/internal/exchange"
	"github.com/assist-by/hedger/internal/ledger"
	"github.com/assist-by/hedger/internal/metrics"
	"github.com/assist-by/hedger/internal/notification"
	"github.com/assist-by/hedger/internal/position"
)

// Store는 엔진이 사용하는 장부 저장소입니다
type Store interface {
	position.Recorder
	AppendBalanceSnapshot(ctx context.Context, snap ledger.BalanceSnapshot) error
	SaveAccountSnapshot(ctx context.Context, acct *position.Account) error
	LoadAccountSnapshot(ctx context.Context, symbol string) (*position.Account, error)
	HasAccountSnapshot(ctx context.Context, symbol string) (bool, error)
	TradeSummary(ctx context.Context, symbol string) (ledger.Summary, error)
}

// Engine은 한 종목의 헤지 쌍 생명주기를 틱 단위로 정산합니다.
// Account는 틱마다 인자로 받으며 엔진은 상태를 보관하지 않습니다.
type Engine struct {
	exchange exchange.Exchange
	store    Store
	notifier notification.Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cfg      Config

	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

// Option은 엔진 옵션입니다
type Option func(*Engine)

// WithNotifier는 알림 전송기를 설정합니다
func WithNotifier(n notification.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithMetrics는 지표 수집기를 설정합니다
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger는 로거를 설정합니다
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSleep은 대기 함수를 교체합니다
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// New는 새 엔진을 생성합니다
func New(ex exchange.Exchange, store Store, cfg Config, opts ...Option) (*Engine, error) {
	if ex == nil || store == nil {
		return nil, fmt.Errorf("거래소와 저장소는 필수입니다")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("엔진 설정 오류: %w", err)
	}

	e := &Engine{
		exchange: ex,
		store:    store,
		notifier: notification.Nop{},
		logger:   zap.NewNop(),
		cfg:      cfg,
		sleep:    sleepContext,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// TransitionKind는 슬롯 상태 전이의 종류입니다
type TransitionKind string

const (
	TransitionFirstTrigger TransitionKind = "first_trigger"
	TransitionFinalStop    TransitionKind = "final_stop"
	TransitionFinalTarget  TransitionKind = "final_target"
	TransitionForcedExit   TransitionKind = "forced_exit"
)

// Transition은 틱 동안 일어난 한 번의 상태 전이입니다
type Transition struct {
	Slot      int
	TradeID   int64
	Side      position.Side
	Kind      TransitionKind
	ExitPrice float64
	NewStop   float64 // first_trigger에서 남은 다리에 걸린 손절가
}

// EntryResult는 진입 판단 결과입니다
type EntryResult string

const (
	EntryNotDue     EntryResult = "not_due"
	EntryNoSignal   EntryResult = "no_signal"
	EntryNoCapacity EntryResult = "no_capacity"
	EntrySkipped    EntryResult = "skipped"
	EntryFailed     EntryResult = "failed"
	EntryOpened     EntryResult = "opened"
)

// EntryReport는 진입 판단 상세입니다
type EntryReport struct {
	Result EntryResult
	Cross  indicator.Cross
	Slot   int
	Err    error
}

// Report는 한 틱의 결과 요약입니다
type Report struct {
	TickID        string
	ServerTime    time.Time
	BarTime       time.Time
	Price         float64
	Transitions   []Transition
	Entry         EntryReport
	Capital       float64
	OpenPairs     int
	NextTimestamp time.Time
}

// tick은 한 번의 틱 실행 동안 공유되는 상태입니다
type tick struct {
	acct   *position.Account
	log    *zap.Logger
	now    time.Time // 거래소 서버 시간
	at     time.Time // 이번 틱이 처리하는 봉 경계
	price  float64
	report *Report
}

func (t *tick) real() bool { return t.acct.RealMode() }

// Tick은 계정에 대해 한 번의 정산 주기를 실행합니다.
// 에러가 반환되면 계정은 중간 상태일 수 있으므로 저장하지 않아야 합니다.
func (e *Engine) Tick(ctx context.Context, acct *position.Account) (*Report, error) {
	if acct == nil {
		return nil, ErrNotInitialized
	}

	id := e.newID()
	t := &tick{
		acct:   acct,
		log:    e.logger.With(zap.String("tick_id", id), zap.String("symbol", acct.Symbol())),
		report: &Report{TickID: id, Entry: EntryReport{Slot: -1}},
	}
	t.log.Info("틱 시작",
		zap.Bool("real_mode", acct.RealMode()),
		zap.Int("open_pairs", acct.OpenPositions()),
		zap.Time("next_timestamp", acct.NextTimestamp()))

	if acct.RealMode() {
		if err := e.verifyExchange(ctx, t); err != nil {
			return e.failTick(t, err)
		}
	}

	if err := e.awaitSchedule(ctx, t); err != nil {
		return e.failTick(t, err)
	}

	price, err := e.fetchPrice(ctx, t)
	if err != nil {
		return e.failTick(t, newTickError(CodePrice, -1, "get_price", err))
	}
	t.price = price
	t.report.Price = price

	if err := e.reconcile(ctx, t); err != nil {
		return e.failTick(t, err)
	}

	if err := e.evaluateEntry(ctx, t); err != nil {
		return e.failTick(t, err)
	}

	acct.AdvanceNextTimestamp(e.cfg.Interval.Duration())

	if err := acct.CheckInvariants(); err != nil {
		return e.failTick(t, newTickError(CodeInvariant, -1, "check_invariants", err))
	}

	e.recordBalance(ctx, t)

	t.report.Capital = acct.Capital()
	t.report.OpenPairs = acct.OpenPositions()
	t.report.NextTimestamp = acct.NextTimestamp()

	e.metrics.ObserveTick("ok")
	e.metrics.SetAccount(acct.Capital(), acct.OpenPositions())
	t.log.Info("틱 완료",
		zap.Float64("capital", acct.Capital()),
		zap.Int("open_pairs", acct.OpenPositions()),
		zap.Int("transitions", len(t.report.Transitions)),
		zap.String("entry", string(t.report.Entry.Result)),
		zap.Time("next_timestamp", acct.NextTimestamp()))
	return t.report, nil
}

func (e *Engine) failTick(t *tick, err error) (*Report, error) {
	code, _ := CodeOf(err)
	if errors.Is(err, ErrTooEarly) {
		e.metrics.ObserveTick("too_early")
		t.log.Info("틱 중단: 다음 봉까지 시간이 남았습니다", zap.String("code", string(code)), zap.Error(err))
		return t.report, err
	}

	e.metrics.ObserveTick("error")
	t.log.Error("틱 실패", zap.String("code", string(code)), zap.Error(err))
	if nerr := e.notifier.SendError(err); nerr != nil {
		t.log.Warn("에러 알림 전송 실패", zap.Error(nerr))
	}
	return t.report, err
}

func (e *Engine) fetchPrice(ctx context.Context, t *tick) (float64, error) {
	var price float64
	err := e.withRetry(ctx, t.log, "get_price", func() error {
		var err error
		price, err = e.exchange.GetPrice(ctx, t.acct.Symbol())
		return err
	})
	if err != nil {
		return 0, err
	}
	if price <= 0 {
		return 0, fmt.Errorf("%w: %f", position.ErrInvalidPrice, price)
	}
	return price, nil
}

// recordBalance는 틱 종료 시점의 잔고 기록을 남깁니다. 실패는 틱을 중단시키지 않습니다
func (e *Engine) recordBalance(ctx context.Context, t *tick) {
	snap := ledger.BalanceSnapshot{
		Asset:      e.cfg.QuoteAsset,
		Capital:    t.acct.Capital(),
		OpenPairs:  t.acct.OpenPositions(),
		UpdateTime: t.now,
	}

	if t.real() {
		var bal *domain.Balance
		err := e.withRetry(ctx, t.log, "get_balance", func() error {
			var err error
			bal, err = e.exchange.GetBalance(ctx, e.cfg.QuoteAsset)
			return err
		})
		if err != nil {
			t.log.Warn("잔고 조회 실패", zap.String("code", string(CodeBalance)), zap.Error(err))
			return
		}
		snap.AccountAlias = bal.AccountAlias
		snap.Balance = bal.Balance
		snap.CrossWalletBalance = bal.CrossWalletBalance
		snap.CrossUnPnl = bal.CrossUnPnl
		snap.Available = bal.Available
		snap.MaxWithdrawAmount = bal.MaxWithdrawAmount
		if !bal.UpdateTime.IsZero() {
			snap.UpdateTime = bal.UpdateTime
		}
	} else {
		snap.Balance = t.acct.Capital()
		snap.CrossWalletBalance = t.acct.Capital()
		snap.Available = t.acct.Capital()
	}

	if err := e.store.AppendBalanceSnapshot(ctx, snap); err != nil {
		t.log.Warn("잔고 기록 실패", zap.String("code", string(CodeBalanceSnapshot)), zap.Error(err))
	}
}

func (e *Engine) notifyTrade(t *tick, info notification.TradeInfo) {
	info.Symbol = t.acct.Symbol()
	info.Capital = t.acct.Capital()
	info.Leverage = t.acct.Leverage()
	if err := e.notifier.SendTradeInfo(info); err != nil {
		t.log.Warn("거래 알림 전송 실패", zap.Error(err))
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/assist-by/hedger/internal/domain"
	"github.com/assist-by/hedger/internal/ledger"
	"github.com/assist-by/hedger/internal/position"
)

// simulatedFeeRate는 모의 모드에서 수수료율 조회가 실패했을 때 쓰는 테이커 수수료율입니다
const simulatedFeeRate = 0.0004

// RunOnce는 저장된 계정을 불러와 틱을 한 번 실행하고, 성공한 경우에만 계정을 저장합니다
func (e *Engine) RunOnce(ctx context.Context) (*Report, error) {
	acct, err := e.store.LoadAccountSnapshot(ctx, e.cfg.Symbol)
	if errors.Is(err, ledger.ErrNoSnapshot) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, newTickError(CodeSnapshotLoad, -1, "load_snapshot", err)
	}

	report, err := e.Tick(ctx, acct)
	if err != nil {
		return report, err
	}

	if err := e.store.SaveAccountSnapshot(ctx, acct); err != nil {
		serr := newTickError(CodeSnapshotSave, -1, "save_snapshot", err)
		e.logger.Error("계정 저장 실패", zap.String("code", string(CodeSnapshotSave)), zap.Error(err))
		if nerr := e.notifier.SendError(serr); nerr != nil {
			e.logger.Warn("에러 알림 전송 실패", zap.Error(nerr))
		}
		return report, serr
	}
	return report, nil
}

// Execute는 스케줄러가 호출하는 작업입니다. 너무 이른 호출은 실패로 보지 않습니다
func (e *Engine) Execute(ctx context.Context) error {
	_, err := e.RunOnce(ctx)
	if errors.Is(err, ErrTooEarly) {
		return nil
	}
	return err
}

// Initialize는 거래소 설정을 맞추고 수수료율, 자본, 슬롯 수를 정해 첫 계정 스냅샷을 저장합니다.
// 이미 스냅샷이 있으면 force가 아닌 한 ErrAlreadyInitialized를 반환합니다.
func (e *Engine) Initialize(ctx context.Context, force bool) (*position.Account, error) {
	cfg := e.cfg
	t := &tick{
		log:    e.logger.With(zap.String("symbol", cfg.Symbol), zap.String("op", "initialize")),
		report: &Report{},
	}

	exists, err := e.store.HasAccountSnapshot(ctx, cfg.Symbol)
	if err != nil {
		return nil, newTickError(CodeSnapshotLoad, -1, "has_snapshot", err)
	}
	if exists && !force {
		return nil, ErrAlreadyInitialized
	}

	if err := e.withRetry(ctx, t.log, "sync_time", func() error {
		return e.exchange.SyncTime(ctx)
	}); err != nil {
		return nil, newTickError(CodeTimeSync, -1, "sync_time", err)
	}

	if cfg.Account.RealMode {
		if err := e.ensureHedgeMode(ctx, t); err != nil {
			return nil, err
		}
		if err := e.ensureCrossMargin(ctx, t, cfg.Symbol); err != nil {
			return nil, err
		}
		if err := e.ensureLeverage(ctx, t, cfg.Symbol, cfg.Account.Leverage); err != nil {
			return nil, err
		}
	}

	feeRate, err := e.takerFee(ctx, t)
	if err != nil {
		return nil, err
	}
	capital, err := e.initialCapital(ctx, t)
	if err != nil {
		return nil, err
	}

	var price float64
	if err := e.withRetry(ctx, t.log, "get_price", func() error {
		var err error
		price, err = e.exchange.GetPrice(ctx, cfg.Symbol)
		return err
	}); err != nil {
		return nil, newTickError(CodePrice, -1, "get_price", err)
	}
	maxOpen, err := position.Capacity(capital, price, cfg.Account.QuantityPrecision)
	if err != nil {
		return nil, fmt.Errorf("슬롯 수 계산 실패: %w", err)
	}

	now, err := e.serverTime(ctx, t)
	if err != nil {
		return nil, err
	}

	acct, err := position.NewAccount(position.Params{
		Symbol:            cfg.Symbol,
		QuantityPrecision: cfg.Account.QuantityPrecision,
		PricePrecision:    cfg.Account.PricePrecision,
		Capital:           capital,
		Leverage:          cfg.Account.Leverage,
		FeeRate:           feeRate,
		StopLossPct:       cfg.Account.StopLossPct,
		TakeProfitPct:     cfg.Account.TakeProfitPct,
		MaxOpenPositions:  maxOpen,
		RealMode:          cfg.Account.RealMode,
		NextTimestamp:     cfg.Interval.NextBoundary(now),
	})
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveAccountSnapshot(ctx, acct); err != nil {
		return nil, newTickError(CodeSnapshotSave, -1, "save_snapshot", err)
	}

	t.acct = acct
	t.now = now
	e.recordBalance(ctx, t)
	e.metrics.SetAccount(acct.Capital(), acct.OpenPositions())

	t.log.Info("계정 초기화 완료",
		zap.Bool("real_mode", acct.RealMode()),
		zap.Float64("capital", capital),
		zap.Float64("fee_rate", feeRate),
		zap.Int("max_open_positions", maxOpen),
		zap.Time("next_timestamp", acct.NextTimestamp()))
	if err := e.notifier.SendInfo(fmt.Sprintf("%s 계정 초기화: 자본 %.4f %s, 슬롯 %d개, 다음 봉 %s",
		cfg.Symbol, capital, cfg.QuoteAsset, maxOpen, acct.NextTimestamp().Format("2006-01-02 15:04 UTC"))); err != nil {
		t.log.Warn("정보 알림 전송 실패", zap.Error(err))
	}
	return acct, nil
}

func (e *Engine) takerFee(ctx context.Context, t *tick) (float64, error) {
	var rate *domain.CommissionRate
	err := e.withRetry(ctx, t.log, "get_commission_rate", func() error {
		var err error
		rate, err = e.exchange.GetCommissionRate(ctx, e.cfg.Symbol)
		return err
	})
	if err == nil {
		return rate.Taker, nil
	}
	if e.cfg.Account.RealMode {
		return 0, newTickError(CodeCommission, -1, "get_commission_rate", err)
	}
	t.log.Warn("수수료율 조회 실패, 기본 수수료율 사용",
		zap.String("code", string(CodeCommission)),
		zap.Float64("fee_rate", simulatedFeeRate),
		zap.Error(err))
	return simulatedFeeRate, nil
}

// initialCapital은 설정된 자본이 있으면 그 값을, 없으면 가용 잔고를 반환합니다
func (e *Engine) initialCapital(ctx context.Context, t *tick) (float64, error) {
	var bal *domain.Balance
	err := e.withRetry(ctx, t.log, "get_balance", func() error {
		var err error
		bal, err = e.exchange.GetBalance(ctx, e.cfg.QuoteAsset)
		return err
	})

	configured := e.cfg.Account.Capital
	switch {
	case err == nil && configured > 0:
		if e.cfg.Account.RealMode && configured > bal.Available {
			return 0, newTickError(CodeBalance, -1, "get_balance",
				fmt.Errorf("%w: 설정 자본 %.4f, 가용 잔고 %.4f", position.ErrInsufficientCapital, configured, bal.Available))
		}
		return configured, nil
	case err == nil:
		return bal.Available, nil
	case !e.cfg.Account.RealMode && configured > 0:
		t.log.Warn("잔고 조회 실패, 설정 자본 사용", zap.String("code", string(CodeBalance)), zap.Error(err))
		return configured, nil
	default:
		return 0, newTickError(CodeBalance, -1, "get_balance", err)
	}
}

// StatusReport는 저장된 계정과 거래 장부 집계입니다
type StatusReport struct {
	Account *position.Account
	Summary ledger.Summary
}

// Status는 마지막으로 저장된 계정 상태를 반환합니다
func (e *Engine) Status(ctx context.Context) (*StatusReport, error) {
	acct, err := e.store.LoadAccountSnapshot(ctx, e.cfg.Symbol)
	if errors.Is(err, ledger.ErrNoSnapshot) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, newTickError(CodeSnapshotLoad, -1, "load_snapshot", err)
	}
	summary, err := e.store.TradeSummary(ctx, e.cfg.Symbol)
	if err != nil {
		return nil, newTickError(CodeLedger, -1, "trade_summary", err)
	}
	return &StatusReport{Account: acct, Summary: summary}, nil
}

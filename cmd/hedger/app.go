package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/assist-by/hedger/internal/config"
	"github.com/assist-by/hedger/internal/engine"
	"github.com/assist-by/hedger/internal/exchange/binance"
	"github.com/assist-by/hedger/internal/ledger"
	"github.com/assist-by/hedger/internal/logger"
	"github.com/assist-by/hedger/internal/metrics"
	"github.com/assist-by/hedger/internal/notification"
	"github.com/assist-by/hedger/internal/notification/discord"
)

// app은 명령 실행에 필요한 구성 요소 묶음입니다
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *ledger.Store
	metrics  *metrics.Metrics
	notifier notification.Notifier
	engine   *engine.Engine
}

func newApp(cfg *config.Config) (*app, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogDevelopment)
	if err != nil {
		return nil, fmt.Errorf("로거 생성 실패: %w", err)
	}

	store, err := ledger.Open(cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("장부 저장소 열기 실패: %w", err)
	}

	client := binance.NewClient(
		cfg.Binance.APIKey,
		cfg.Binance.SecretKey,
		binance.WithTimeout(10*time.Second),
		binance.WithTestnet(cfg.Binance.UseTestnet),
		binance.WithPrecision(cfg.Trading.QuantityPrecision, cfg.Trading.PricePrecision),
	)

	var notifier notification.Notifier = notification.Nop{}
	if cfg.NotificationsEnabled() {
		notifier = discord.NewClient(
			cfg.Discord.TradeWebhook,
			cfg.Discord.ErrorWebhook,
			cfg.Discord.InfoWebhook,
			discord.WithTimeout(10*time.Second),
		)
	}

	m := metrics.New()
	eng, err := engine.New(client, store, engineConfig(cfg),
		engine.WithLogger(log),
		engine.WithNotifier(notifier),
		engine.WithMetrics(m),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		metrics:  m,
		notifier: notifier,
		engine:   eng,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("장부 저장소 닫기 실패", zap.Error(err))
	}
	_ = a.log.Sync()
}

// engineConfig는 환경 설정을 엔진 설정으로 옮깁니다
func engineConfig(cfg *config.Config) engine.Config {
	ec := engine.DefaultConfig()
	ec.Symbol = cfg.Symbol()
	ec.QuoteAsset = cfg.Trading.QuoteAsset
	ec.Interval = cfg.Interval()
	ec.FastPeriod = cfg.Trading.FastPeriod
	ec.SlowPeriod = cfg.Trading.SlowPeriod

	ec.EarlyAbort = cfg.Engine.EarlyAbort
	ec.EntryTolerance = cfg.Engine.EntryTolerance
	ec.WaitMaxAttempts = cfg.Engine.WaitMaxAttempts
	ec.ReversionMaxAttempts = cfg.Engine.ReversionMaxAttempts
	ec.ReversionInterval = cfg.Engine.ReversionInterval
	ec.ConfigMaxAttempts = cfg.Engine.ConfigMaxAttempts
	ec.Retry.MaxRetries = cfg.Engine.RetryMax
	ec.Retry.BaseDelay = cfg.Engine.RetryBaseDelay
	ec.Retry.MaxDelay = cfg.Engine.RetryMaxDelay

	ec.Account = engine.AccountConfig{
		QuantityPrecision: cfg.Trading.QuantityPrecision,
		PricePrecision:    cfg.Trading.PricePrecision,
		Capital:           cfg.Trading.Capital,
		Leverage:          cfg.Trading.Leverage,
		StopLossPct:       cfg.Trading.StopLossPct,
		TakeProfitPct:     cfg.Trading.TakeProfitPct,
		RealMode:          cfg.Trading.RealMode,
	}
	return ec
}

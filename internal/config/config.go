package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/assist-by/hedger/internal/domain"
)

type Config struct {
	// 바이낸스 API 설정
	Binance struct {
		APIKey     string `envconfig:"BINANCE_API_KEY"`
		SecretKey  string `envconfig:"BINANCE_SECRET_KEY"`
		UseTestnet bool   `envconfig:"BINANCE_USE_TESTNET" default:"false"`
	}

	// 거래 설정
	Trading struct {
		BaseAsset         string  `envconfig:"TRADING_BASE_ASSET" default:"BTC"`
		QuoteAsset        string  `envconfig:"TRADING_QUOTE_ASSET" default:"USDT"`
		QuantityPrecision int     `envconfig:"TRADING_QUANTITY_PRECISION" default:"3"`
		PricePrecision    int     `envconfig:"TRADING_PRICE_PRECISION" default:"2"`
		Interval          string  `envconfig:"TRADING_INTERVAL" default:"1h"`
		Capital           float64 `envconfig:"TRADING_CAPITAL" default:"0"`
		Leverage          int     `envconfig:"TRADING_LEVERAGE" default:"100"`
		StopLossPct       float64 `envconfig:"TRADING_STOP_LOSS_PCT" default:"0.007"`
		TakeProfitPct     float64 `envconfig:"TRADING_TAKE_PROFIT_PCT" default:"0.03"`
		RealMode          bool    `envconfig:"TRADING_REAL_MODE" default:"false"`
		FastPeriod        int     `envconfig:"TRADING_FAST_PERIOD" default:"4"`
		SlowPeriod        int     `envconfig:"TRADING_SLOW_PERIOD" default:"10"`
	}

	// 엔진 설정
	Engine struct {
		EarlyAbort           time.Duration `envconfig:"ENGINE_EARLY_ABORT" default:"180s"`
		EntryTolerance       time.Duration `envconfig:"ENGINE_ENTRY_TOLERANCE" default:"60s"`
		WaitMaxAttempts      int           `envconfig:"ENGINE_WAIT_MAX_ATTEMPTS" default:"10"`
		ReversionMaxAttempts int           `envconfig:"ENGINE_REVERSION_MAX_ATTEMPTS" default:"10"`
		ReversionInterval    time.Duration `envconfig:"ENGINE_REVERSION_INTERVAL" default:"30s"`
		RetryMax             int           `envconfig:"ENGINE_RETRY_MAX" default:"3"`
		RetryBaseDelay       time.Duration `envconfig:"ENGINE_RETRY_BASE_DELAY" default:"1s"`
		RetryMaxDelay        time.Duration `envconfig:"ENGINE_RETRY_MAX_DELAY" default:"10s"`
		ConfigMaxAttempts    int           `envconfig:"ENGINE_CONFIG_MAX_ATTEMPTS" default:"10"`
	}

	// 저장소 설정
	Storage struct {
		DSN string `envconfig:"STORAGE_DSN" default:"hedger.db"`
	}

	// 디스코드 웹훅 설정 (비어 있으면 알림 비활성화)
	Discord struct {
		TradeWebhook string `envconfig:"DISCORD_TRADE_WEBHOOK"`
		ErrorWebhook string `envconfig:"DISCORD_ERROR_WEBHOOK"`
		InfoWebhook  string `envconfig:"DISCORD_INFO_WEBHOOK"`
	}

	// 애플리케이션 설정
	App struct {
		LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
		LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
		MetricsAddr    string `envconfig:"METRICS_ADDR" default:":9100"`
	}
}

// Symbol은 거래 심볼(예: BTCUSDT)을 반환합니다
func (c *Config) Symbol() string {
	return strings.ToUpper(c.Trading.BaseAsset + c.Trading.QuoteAsset)
}

// Interval은 봉 간격을 반환합니다. ValidateConfig를 통과한 설정에서만 호출해야 합니다
func (c *Config) Interval() domain.TimeInterval {
	interval, _ := domain.ParseInterval(c.Trading.Interval)
	return interval
}

// NotificationsEnabled는 웹훅이 하나라도 설정되었는지 확인합니다
func (c *Config) NotificationsEnabled() bool {
	return c.Discord.TradeWebhook != "" || c.Discord.ErrorWebhook != "" || c.Discord.InfoWebhook != ""
}

// ValidateConfig는 설정이 유효한지 확인합니다.
func ValidateConfig(cfg *Config) error {
	if cfg.Trading.RealMode && (cfg.Binance.APIKey == "" || cfg.Binance.SecretKey == "") {
		return fmt.Errorf("실거래 모드에는 BINANCE_API_KEY와 BINANCE_SECRET_KEY가 필요합니다")
	}

	if cfg.Trading.BaseAsset == "" || cfg.Trading.QuoteAsset == "" {
		return fmt.Errorf("거래 자산이 비어 있습니다")
	}

	if _, err := domain.ParseInterval(cfg.Trading.Interval); err != nil {
		return fmt.Errorf("TRADING_INTERVAL: %w", err)
	}

	if cfg.Trading.Leverage < 1 || cfg.Trading.Leverage > 125 {
		return fmt.Errorf("레버리지는 1 이상 125 이하이어야 합니다")
	}

	if cfg.Trading.QuantityPrecision < 0 || cfg.Trading.QuantityPrecision > 8 ||
		cfg.Trading.PricePrecision < 0 || cfg.Trading.PricePrecision > 8 {
		return fmt.Errorf("정밀도는 0 이상 8 이하이어야 합니다")
	}

	if cfg.Trading.Capital < 0 {
		return fmt.Errorf("TRADING_CAPITAL은 0 이상이어야 합니다")
	}

	if cfg.Trading.StopLossPct <= 0 || cfg.Trading.StopLossPct >= 1 {
		return fmt.Errorf("손절 비율은 0과 1 사이여야 합니다")
	}

	if cfg.Trading.TakeProfitPct <= 0 {
		return fmt.Errorf("익절 비율은 0보다 커야 합니다")
	}

	if cfg.Trading.FastPeriod < 1 || cfg.Trading.FastPeriod >= cfg.Trading.SlowPeriod {
		return fmt.Errorf("단기 EMA 기간은 1 이상이고 장기 기간보다 작아야 합니다")
	}

	if cfg.Engine.WaitMaxAttempts < 1 || cfg.Engine.ReversionMaxAttempts < 1 || cfg.Engine.ConfigMaxAttempts < 1 {
		return fmt.Errorf("엔진 시도 횟수는 1 이상이어야 합니다")
	}

	if cfg.Engine.RetryMax < 0 || cfg.Engine.RetryBaseDelay <= 0 || cfg.Engine.RetryMaxDelay < cfg.Engine.RetryBaseDelay {
		return fmt.Errorf("재시도 설정이 올바르지 않습니다")
	}

	if cfg.Storage.DSN == "" {
		return fmt.Errorf("STORAGE_DSN이 비어 있습니다")
	}

	return nil
}

// LoadConfig는 환경변수에서 설정을 로드합니다.
// .env 파일은 있으면 읽고, 없으면 환경변수만 사용합니다.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env 파일 로드 실패: %w", err)
	}

	var cfg Config
	// 환경변수를 구조체로 파싱
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("환경변수 처리 실패: %w", err)
	}

	// 설정값 검증
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("설정값 검증 실패: %w", err)
	}

	return &cfg, nil
}

package engine

import (
	"fmt"
	"time"

	"github.com/assist-by/hedger/internal/domain"
)

// RetryConfig는 재시도 설정을 정의합니다
type RetryConfig struct {
	MaxRetries int           // 최대 재시도 횟수
	BaseDelay  time.Duration // 기본 대기 시간
	MaxDelay   time.Duration // 최대 대기 시간
	Factor     float64       // 대기 시간 증가 계수
}

// AccountConfig는 초기화 시 계정에 고정되는 거래 설정입니다
type AccountConfig struct {
	QuantityPrecision int
	PricePrecision    int
	Capital           float64 // 0이면 가용 잔고 전체
	Leverage          int
	StopLossPct       float64
	TakeProfitPct     float64
	RealMode          bool
}

// Config는 엔진 동작 설정입니다
type Config struct {
	Symbol     string
	QuoteAsset string
	Interval   domain.TimeInterval

	FastPeriod int
	SlowPeriod int

	EarlyAbort      time.Duration // 다음 봉까지 이보다 많이 남았으면 틱을 중단
	EntryTolerance  time.Duration // 다음 봉 이전이라도 진입 평가를 허용하는 구간
	WaitMaxAttempts int
	WaitSlack       time.Duration // 봉 경계 대기 시 추가로 기다리는 시간

	ReversionMaxAttempts int
	ReversionInterval    time.Duration

	FillMaxAttempts  int
	FillPollInterval time.Duration

	ConfigMaxAttempts   int
	ConfigRetryInterval time.Duration

	Retry   RetryConfig
	Account AccountConfig
}

// DefaultConfig는 BTCUSDT 1시간 봉 기준 기본 설정을 반환합니다
func DefaultConfig() Config {
	return Config{
		Symbol:               "BTCUSDT",
		QuoteAsset:           "USDT",
		Interval:             domain.Interval1h,
		FastPeriod:           4,
		SlowPeriod:           10,
		EarlyAbort:           180 * time.Second,
		EntryTolerance:       60 * time.Second,
		WaitMaxAttempts:      10,
		WaitSlack:            5 * time.Second,
		ReversionMaxAttempts: 10,
		ReversionInterval:    30 * time.Second,
		FillMaxAttempts:      5,
		FillPollInterval:     time.Second,
		ConfigMaxAttempts:    10,
		ConfigRetryInterval:  time.Second,
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   10 * time.Second,
			Factor:     2.0,
		},
		Account: AccountConfig{
			QuantityPrecision: 3,
			PricePrecision:    2,
			Leverage:          100,
			StopLossPct:       0.007,
			TakeProfitPct:     0.03,
		},
	}
}

func (c Config) validate() error {
	switch {
	case c.Symbol == "":
		return fmt.Errorf("심볼이 비어 있습니다")
	case c.Interval.Duration() <= 0:
		return fmt.Errorf("지원하지 않는 봉 간격: %s", c.Interval)
	case c.FastPeriod < 1 || c.FastPeriod >= c.SlowPeriod:
		return fmt.Errorf("EMA 기간이 올바르지 않습니다: %d/%d", c.FastPeriod, c.SlowPeriod)
	case c.WaitMaxAttempts < 1 || c.ReversionMaxAttempts < 1 || c.FillMaxAttempts < 1 || c.ConfigMaxAttempts < 1:
		return fmt.Errorf("시도 횟수는 1 이상이어야 합니다")
	case c.Retry.MaxRetries < 0:
		return fmt.Errorf("재시도 횟수는 0 이상이어야 합니다")
	}
	return nil
}

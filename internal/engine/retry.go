package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/assist-by/hedger/internal/exchange"
)

// withRetry는 재시도 가능한 거래소 에러에 대해 지수 백오프로 fn을 다시 호출합니다.
// 재시도 한도를 넘기면 exchange.ErrTransport로 감싼 에러를 반환합니다.
func (e *Engine) withRetry(ctx context.Context, log *zap.Logger, op string, fn func() error) error {
	delay := e.cfg.Retry.BaseDelay

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}

		if !exchange.IsRetryableError(err) {
			log.Debug("재시도 불필요한 실패", zap.String("op", op), zap.Error(err))
			return err
		}

		if attempt >= e.cfg.Retry.MaxRetries {
			return exchange.WrapTransport(op, err)
		}

		log.Warn("거래소 호출 실패, 재시도",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", e.cfg.Retry.MaxRetries),
			zap.Error(err))

		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
		delay = nextDelay(delay, e.cfg.Retry)
	}
}

func nextDelay(delay time.Duration, cfg RetryConfig) time.Duration {
	factor := cfg.Factor
	if factor < 1 {
		factor = 1
	}
	next := time.Duration(float64(delay) * factor)
	if cfg.MaxDelay > 0 && next > cfg.MaxDelay {
		next = cfg.MaxDelay
	}
	return next
}

// sleepContext는 d만큼 기다리거나 컨텍스트가 끝나면 즉시 반환합니다
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

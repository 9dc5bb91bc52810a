package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/assist-by/hedger/internal/domain"
)

func (e *Engine) serverTime(ctx context.Context, t *tick) (time.Time, error) {
	var now time.Time
	err := e.withRetry(ctx, t.log, "get_server_time", func() error {
		var err error
		now, err = e.exchange.GetServerTime(ctx)
		return err
	})
	if err != nil {
		return time.Time{}, newTickError(CodeServerTime, -1, "get_server_time", err)
	}
	return now.UTC(), nil
}

// awaitSchedule은 서버 시간이 nextTimestamp에 도달할 때까지 기다립니다.
// 조기 중단 구간보다 일찍 호출되면 ErrTooEarly를 반환하고,
// 대기 횟수를 모두 써도 도달하지 못하면 경고만 남기고 진행합니다.
func (e *Engine) awaitSchedule(ctx context.Context, t *tick) error {
	next := t.acct.NextTimestamp()
	now, err := e.serverTime(ctx, t)
	if err != nil {
		return err
	}

	if now.Add(e.cfg.EarlyAbort).Before(next) {
		return newTickError(CodeTooEarly, -1, "await_schedule",
			fmt.Errorf("%w: 서버 시간 %s, 다음 봉 %s", ErrTooEarly, now.Format(time.RFC3339), next.Format(time.RFC3339)))
	}

	for attempt := 0; now.Before(next) && attempt < e.cfg.WaitMaxAttempts; attempt++ {
		wait := next.Sub(now) + e.cfg.WaitSlack
		t.log.Debug("다음 봉 대기", zap.Duration("wait", wait), zap.Int("attempt", attempt+1))
		if err := e.sleep(ctx, wait); err != nil {
			return err
		}
		if now, err = e.serverTime(ctx, t); err != nil {
			return err
		}
	}
	if now.Before(next) {
		t.log.Warn("다음 봉 대기 횟수 소진",
			zap.String("code", string(CodeWaitExhausted)),
			zap.Time("server_time", now),
			zap.Time("next_timestamp", next))
	}

	t.now = now
	t.at = next
	t.report.ServerTime = now
	t.report.BarTime = next
	return nil
}

// verifyExchange는 실거래 모드에서 헤지 포지션 모드와 교차 마진을 확인하고 필요하면 다시 설정합니다
func (e *Engine) verifyExchange(ctx context.Context, t *tick) error {
	if err := e.ensureHedgeMode(ctx, t); err != nil {
		return err
	}
	return e.ensureCrossMargin(ctx, t, t.acct.Symbol())
}

func (e *Engine) ensureHedgeMode(ctx context.Context, t *tick) error {
	var lastErr error
	for attempt := 0; attempt < e.cfg.ConfigMaxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, e.cfg.ConfigRetryInterval); err != nil {
				return err
			}
		}

		hedge, err := e.exchange.GetPositionMode(ctx)
		if err == nil && hedge {
			return nil
		}
		if err == nil {
			t.log.Warn("헤지 모드가 아닙니다, 전환 시도", zap.Int("attempt", attempt+1))
			err = e.exchange.SetPositionMode(ctx, true)
		}
		if err != nil {
			lastErr = err
			t.log.Warn("포지션 모드 확인 실패", zap.Int("attempt", attempt+1), zap.Error(err))
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("헤지 모드로 전환되지 않았습니다")
	}
	return newTickError(CodePositionMode, -1, "ensure_hedge_mode", lastErr)
}

// ensureCrossMargin은 교차 마진 설정을 요청합니다. 이미 교차 마진이면 거래소가 변경 없음으로 응답합니다
func (e *Engine) ensureCrossMargin(ctx context.Context, t *tick, symbol string) error {
	return e.configure(ctx, t, CodeMarginType, "ensure_cross_margin", func() error {
		return e.exchange.SetMarginType(ctx, symbol, domain.MarginCrossed)
	})
}

func (e *Engine) ensureLeverage(ctx context.Context, t *tick, symbol string, leverage int) error {
	return e.configure(ctx, t, CodeLeverage, "set_leverage", func() error {
		return e.exchange.SetLeverage(ctx, symbol, leverage)
	})
}

// configure는 거래소 설정 호출을 정해진 횟수만큼 시도합니다
func (e *Engine) configure(ctx context.Context, t *tick, code Code, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < e.cfg.ConfigMaxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, e.cfg.ConfigRetryInterval); err != nil {
				return err
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		t.log.Warn("거래소 설정 실패", zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return newTickError(code, -1, op, lastErr)
}

package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/assist-by/hedger/internal/domain"
	"github.com/assist-by/hedger/internal/position"
)

func (e *Engine) queryOrder(ctx context.Context, t *tick, orderID int64) (*domain.OrderResponse, error) {
	var resp *domain.OrderResponse
	err := e.withRetry(ctx, t.log, "query_order", func() error {
		var err error
		resp, err = e.exchange.QueryOrder(ctx, t.acct.Symbol(), orderID)
		return err
	})
	return resp, err
}

// cancelOrder는 주문을 취소합니다. 취소가 실패하면 주문 상태를 조회해
// 이미 종료된 주문(취소/체결/만료)이면 그 상태를 결과로 돌려줍니다.
func (e *Engine) cancelOrder(ctx context.Context, t *tick, orderID int64) (*domain.OrderResponse, error) {
	var resp *domain.OrderResponse
	err := e.withRetry(ctx, t.log, "cancel_order", func() error {
		var err error
		resp, err = e.exchange.CancelOrder(ctx, t.acct.Symbol(), orderID)
		return err
	})
	if err == nil {
		return resp, nil
	}

	q, qerr := e.queryOrder(ctx, t, orderID)
	if qerr == nil && q.Status.IsTerminal() {
		t.log.Info("이미 종료된 주문입니다",
			zap.Int64("order_id", orderID),
			zap.String("status", string(q.Status)),
			zap.NamedError("cancel_error", err))
		return q, nil
	}
	return nil, err
}

// cancelBracket은 다리의 브래킷 주문을 취소하고 참조를 최종 상태로 갱신합니다.
// 모의 모드이거나 이미 종료된 주문이면 아무것도 하지 않고 nil을 반환합니다.
func (e *Engine) cancelBracket(ctx context.Context, t *tick, slot int, side position.Side, kind position.BracketKind) (*domain.OrderResponse, error) {
	if !t.real() {
		return nil, nil
	}

	brackets := t.acct.Brackets(slot)
	ref := brackets.Leg(side).Get(kind)
	if ref == nil {
		return nil, newTickError(CodeMissingBracket, slot, "cancel_"+kind.String(),
			fmt.Errorf("%w: %s %s 주문 참조가 없습니다", position.ErrInconsistentState, side, kind))
	}
	if ref.Status.IsTerminal() {
		return nil, nil
	}

	resp, err := e.cancelOrder(ctx, t, ref.OrderID)
	if err != nil {
		return nil, newTickError(CodeCancelBracket, slot, "cancel_"+kind.String(), err)
	}
	if err := t.acct.SetBracket(slot, side, kind, position.RefFromResponse(resp)); err != nil {
		return nil, newTickError(CodeTransition, slot, "set_bracket", err)
	}
	t.log.Debug("브래킷 주문 취소",
		zap.Int("slot", slot),
		zap.String("side", side.String()),
		zap.String("kind", kind.String()),
		zap.Int64("order_id", ref.OrderID),
		zap.String("status", string(resp.Status)))
	return resp, nil
}

// awaitFill은 시장가 주문이 체결될 때까지 주문 상태를 조회합니다
func (e *Engine) awaitFill(ctx context.Context, t *tick, resp *domain.OrderResponse) (*domain.OrderResponse, error) {
	if resp.IsFilled() && resp.AvgPrice > 0 {
		return resp, nil
	}

	current := resp
	for attempt := 0; attempt < e.cfg.FillMaxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, e.cfg.FillPollInterval); err != nil {
				return nil, err
			}
		}
		q, err := e.queryOrder(ctx, t, resp.OrderID)
		if err != nil {
			return nil, err
		}
		if q.IsFilled() {
			return q, nil
		}
		current = q
	}
	return nil, fmt.Errorf("주문 %d 체결 대기 시간 초과 (상태: %s)", resp.OrderID, current.Status)
}

// marketOrder는 시장가 주문을 한 번만 내고 체결 결과를 돌려줍니다.
// 중복 체결을 막기 위해 주문 제출 자체는 재시도하지 않습니다.
func (e *Engine) marketOrder(ctx context.Context, t *tick, side domain.OrderSide, ps domain.PositionSide, qty float64) (*domain.OrderResponse, error) {
	resp, err := e.exchange.PlaceOrder(ctx, domain.OrderRequest{
		Symbol:       t.acct.Symbol(),
		Side:         side,
		PositionSide: ps,
		Type:         domain.Market,
		Quantity:     qty,
	})
	if err != nil {
		return nil, err
	}
	return e.awaitFill(ctx, t, resp)
}

// closeAtMarket은 다리를 시장가로 청산합니다
func (e *Engine) closeAtMarket(ctx context.Context, t *tick, side position.Side, qty float64) (*domain.OrderResponse, error) {
	return e.marketOrder(ctx, t, side.ExitOrderSide(), side.PositionSide(), qty)
}

// stopOrder는 다리의 청산 방향 STOP_MARKET/TAKE_PROFIT_MARKET 주문 요청을 만듭니다
func stopOrder(symbol string, side position.Side, kind position.BracketKind, qty, trigger float64) domain.OrderRequest {
	return domain.OrderRequest{
		Symbol:       symbol,
		Side:         side.ExitOrderSide(),
		PositionSide: side.PositionSide(),
		Type:         kind.OrderType(),
		Quantity:     qty,
		StopPrice:    trigger,
	}
}

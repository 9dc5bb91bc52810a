package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/assist-by/hedger/internal/domain"
	"github.com/assist-by/hedger/internal/exchange"
	"github.com/assist-by/hedger/internal/notification"
	"github.com/assist-by/hedger/internal/position"
)

// tightenedStop은 먼저 손절된 다리의 청산가 X에 대해 남은 다리 s의 새 손절가를 계산합니다.
// S = X*(1 + sign(s)*2f) 이며, 남은 다리가 S에서 청산되면 두 다리의 청산 수수료가 상쇄됩니다.
func tightenedStop(acct *position.Account, survivor position.Side, exit float64) float64 {
	stop := exit * (1 + survivor.Sign()*2*acct.FeeRate())
	return domain.AdjustPrice(stop, acct.PricePrecision())
}

// firstTrigger는 손상되지 않은 쌍에서 한 다리의 손절이 먼저 발동했을 때의 전이입니다.
// 발동한 다리를 확정하고 익절 주문을 취소한 뒤, 남은 다리의 손절을 수수료 중립 가격으로 옮깁니다.
func (e *Engine) firstTrigger(ctx context.Context, t *tick, slot int, side position.Side, fill bracketFill) error {
	acct := t.acct
	survivor := side.Opposite()
	log := t.log.With(
		zap.Int("slot", slot),
		zap.String("side", side.String()),
		zap.String("transition", string(TransitionFirstTrigger)))

	if fill.order != nil {
		if err := acct.SetBracket(slot, side, position.StopLossOrder, position.RefFromResponse(fill.order)); err != nil {
			return newTickError(CodeTransition, slot, "set_bracket", err)
		}
	}
	if err := acct.Actualise(slot, side, fill.price, t.at); err != nil {
		return newTickError(CodeTransition, slot, "actualise", err)
	}
	if _, err := e.cancelBracket(ctx, t, slot, side, position.TakeProfitOrder); err != nil {
		return err
	}

	pair, _ := acct.Pair(slot)
	idx := t.record(Transition{
		Slot:      slot,
		TradeID:   pair.ID(),
		Side:      side,
		Kind:      TransitionFirstTrigger,
		ExitPrice: fill.price,
	})
	e.metrics.ObserveTransition(string(TransitionFirstTrigger), side.String())
	log.Info("손절 발동", zap.Float64("exit_price", fill.price), zap.Float64("capital", acct.Capital()))

	stop := tightenedStop(acct, survivor, fill.price)
	placed, err := e.protectSurvivor(ctx, t, slot, survivor, stop)
	if err != nil {
		return err
	}
	if placed {
		t.report.Transitions[idx].NewStop = stop
	}

	leg := pair.Leg(side)
	e.notifyTrade(t, notification.TradeInfo{
		Event:      notification.EventFirstTrigger,
		Slot:       slot,
		TradeID:    pair.ID(),
		Side:       side.String(),
		Quantity:   leg.Qty,
		EntryPrice: leg.EntryPrice,
		ExitPrice:  fill.price,
		StopLoss:   t.report.Transitions[idx].NewStop,
		Reason:     string(position.ExitStopLoss),
	})
	return nil
}

// protectSurvivor는 남은 다리에 새 손절을 겁니다. 가격이 이미 새 손절가를 지났으면
// 복귀를 기다리며 재시도하고, 시도 횟수를 모두 쓰면 시장가로 강제 청산합니다.
// 새 손절이 걸렸으면 true를 반환합니다.
func (e *Engine) protectSurvivor(ctx context.Context, t *tick, slot int, survivor position.Side, stop float64) (bool, error) {
	log := t.log.With(zap.Int("slot", slot), zap.String("side", survivor.String()), zap.Float64("new_stop", stop))

	var price float64
	for attempt := 0; attempt < e.cfg.ReversionMaxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, e.cfg.ReversionInterval); err != nil {
				return false, err
			}
		}

		var err error
		if price, err = e.currentPrice(ctx, t, attempt); err != nil {
			return false, newTickError(CodePrice, slot, "get_price", err)
		}
		if survivor.StopBreached(price, stop) {
			log.Debug("가격이 새 손절가를 지나 있어 복귀 대기",
				zap.Float64("price", price), zap.Int("attempt", attempt+1))
			continue
		}

		done, closed, err := e.placeTightenedStop(ctx, t, slot, survivor, stop)
		if err != nil || closed {
			return false, err
		}
		if done {
			log.Info("남은 다리 손절 조정", zap.Float64("price", price))
			return true, nil
		}
	}

	log.Warn("가격 복귀 대기 소진, 시장가 청산", zap.Float64("price", price))
	return false, e.forcedExit(ctx, t, slot, survivor, price)
}

// placeTightenedStop은 남은 다리의 기존 손절을 취소하고 새 손절을 겁니다.
// 반환값: 새 손절 적용 여부, 기존 손절이 이미 체결되어 쌍이 청산되었는지 여부
func (e *Engine) placeTightenedStop(ctx context.Context, t *tick, slot int, survivor position.Side, stop float64) (bool, bool, error) {
	acct := t.acct
	if !t.real() {
		if err := acct.TightenStop(slot, survivor, stop, nil); err != nil {
			return false, false, newTickError(CodeTransition, slot, "tighten_stop", err)
		}
		return true, false, nil
	}

	old, err := e.cancelBracket(ctx, t, slot, survivor, position.StopLossOrder)
	if err != nil {
		return false, false, err
	}
	if old.IsFilled() {
		// 기존 손절이 이미 체결됨
		fill := bracketFill{price: old.AvgPrice, order: old}
		if fill.price <= 0 {
			pair, _ := acct.Pair(slot)
			fill.price = pair.Leg(survivor).StopLossPrice
		}
		return false, true, e.finalClose(ctx, t, slot, survivor, position.StopLossOrder, fill)
	}

	pair, _ := acct.Pair(slot)
	req := stopOrder(acct.Symbol(), survivor, position.StopLossOrder, pair.Leg(survivor).Qty, stop)
	resp, err := e.exchange.PlaceOrder(ctx, req)
	if errors.Is(err, exchange.ErrWouldTrigger) {
		t.log.Warn("새 손절이 즉시 발동하는 가격입니다",
			zap.Int("slot", slot), zap.Float64("new_stop", stop))
		return false, false, nil
	}
	if err != nil {
		return false, false, newTickError(CodeTightenStop, slot, "place_stop", err)
	}

	if err := acct.TightenStop(slot, survivor, stop, position.RefFromResponse(resp)); err != nil {
		return false, false, newTickError(CodeTransition, slot, "tighten_stop", err)
	}
	return true, false, nil
}

// forcedExit는 남은 다리를 시장가로 청산하고 슬롯을 비웁니다
func (e *Engine) forcedExit(ctx context.Context, t *tick, slot int, survivor position.Side, price float64) error {
	acct := t.acct
	exit := price

	if t.real() {
		for _, kind := range []position.BracketKind{position.TakeProfitOrder, position.StopLossOrder} {
			resp, err := e.cancelBracket(ctx, t, slot, survivor, kind)
			if err != nil {
				return err
			}
			if resp.IsFilled() {
				fill := bracketFill{price: resp.AvgPrice, order: resp}
				if fill.price <= 0 {
					pair, _ := acct.Pair(slot)
					fill.price = pair.Leg(survivor).Level(kind)
				}
				return e.finalClose(ctx, t, slot, survivor, kind, fill)
			}
		}

		pair, _ := acct.Pair(slot)
		resp, err := e.closeAtMarket(ctx, t, survivor, pair.Leg(survivor).Qty)
		if err != nil {
			return newTickError(CodeForcedExit, slot, "close_at_market", err)
		}
		if resp.AvgPrice > 0 {
			exit = resp.AvgPrice
		}
		if err := acct.SetBracket(slot, survivor, position.StopLossOrder, position.RefFromResponse(resp)); err != nil {
			return newTickError(CodeTransition, slot, "set_bracket", err)
		}
	}

	if err := acct.Settle(slot, survivor, exit, t.at, position.ExitForcedMarket); err != nil {
		return newTickError(CodeTransition, slot, "settle", err)
	}
	return e.closeSlot(ctx, t, slot, survivor, TransitionForcedExit, exit)
}

// finalClose는 한쪽이 이미 손절된 쌍에서 남은 다리의 손절 또는 익절이 발동했을 때의 전이입니다
func (e *Engine) finalClose(ctx context.Context, t *tick, slot int, survivor position.Side, kind position.BracketKind, fill bracketFill) error {
	acct := t.acct
	if fill.order != nil {
		if err := acct.SetBracket(slot, survivor, kind, position.RefFromResponse(fill.order)); err != nil {
			return newTickError(CodeTransition, slot, "set_bracket", err)
		}
	}
	if _, err := e.cancelBracket(ctx, t, slot, survivor, kind.Sibling()); err != nil {
		return err
	}

	reason, transition := position.ExitStopLoss, TransitionFinalStop
	if kind == position.TakeProfitOrder {
		reason, transition = position.ExitTakeProfit, TransitionFinalTarget
	}
	if err := acct.Settle(slot, survivor, fill.price, t.at, reason); err != nil {
		return newTickError(CodeTransition, slot, "settle", err)
	}
	return e.closeSlot(ctx, t, slot, survivor, transition, fill.price)
}

// closeSlot은 청산이 끝난 쌍을 장부에 기록하고 슬롯을 비운 뒤 보고서와 알림을 남깁니다
func (e *Engine) closeSlot(ctx context.Context, t *tick, slot int, side position.Side, kind TransitionKind, exit float64) error {
	closed, err := t.acct.Close(ctx, slot, e.store)
	if err != nil {
		return newTickError(CodeLedger, slot, "close", err)
	}

	t.record(Transition{
		Slot:      slot,
		TradeID:   closed.Long.ID,
		Side:      side,
		Kind:      kind,
		ExitPrice: exit,
	})
	e.metrics.ObserveTransition(string(kind), side.String())
	t.log.Info("쌍 청산",
		zap.Int("slot", slot),
		zap.String("side", side.String()),
		zap.String("transition", string(kind)),
		zap.Float64("exit_price", exit),
		zap.Float64("pnl", closed.PnL()),
		zap.Float64("capital", t.acct.Capital()))

	event := notification.EventFinalClose
	if kind == TransitionForcedExit {
		event = notification.EventForcedExit
	}
	leg := closed.Long
	if side == position.Short {
		leg = closed.Short
	}
	e.notifyTrade(t, notification.TradeInfo{
		Event:      event,
		Slot:       slot,
		TradeID:    closed.Long.ID,
		Side:       side.String(),
		Quantity:   leg.Qty,
		EntryPrice: leg.EntryPrice,
		ExitPrice:  exit,
		Reason:     string(leg.ExitReason),
	})
	return nil
}

func (e *Engine) currentPrice(ctx context.Context, t *tick, attempt int) (float64, error) {
	if attempt == 0 && !t.real() {
		return t.price, nil
	}
	return e.fetchPrice(ctx, t)
}

func (t *tick) record(tr Transition) int {
	t.report.Transitions = append(t.report.Transitions, tr)
	return len(t.report.Transitions) - 1
}

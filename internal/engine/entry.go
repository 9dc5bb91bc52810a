package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/assist-by/hedger/internal/analysis/indicator"
	"github.com/assist-by/hedger/internal/domain"
	"github.com/assist-by/hedger/internal/notification"
	"github.com/assist-by/hedger/internal/position"
)

// skippableEntryErrors는 진입만 건너뛰고 틱은 계속 진행하는 에러입니다
var skippableEntryErrors = []error{
	position.ErrNoCapacity,
	position.ErrCapacityExceeded,
	position.ErrInvalidQuantity,
	position.ErrInsufficientCapital,
}

const opFlatten = "flatten"

func isSkippableEntry(err error) bool {
	for _, target := range skippableEntryErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// evaluateEntry는 봉 경계에서 EMA 교차를 확인하고 빈 슬롯에 새 헤지 쌍을 엽니다.
// 진입 실패는 보고서에 남기고 틱을 계속 진행하며, 실거래 정리 실패만 틱을 중단시킵니다.
func (e *Engine) evaluateEntry(ctx context.Context, t *tick) error {
	acct := t.acct
	if t.now.Before(t.at.Add(-e.cfg.EntryTolerance)) {
		e.setEntry(t, EntryReport{Result: EntryNotDue, Slot: -1})
		return nil
	}

	signal, err := e.detectSignal(ctx, t)
	if err != nil {
		e.skipEntry(t, EntryFailed, indicator.NoCross, -1, newTickError(CodeSignal, -1, "detect_cross", err))
		return nil
	}
	t.log.Debug("EMA 교차 판정",
		zap.String("cross", signal.Cross.String()),
		zap.Float64("fast", signal.LastFast),
		zap.Float64("slow", signal.LastSlow))

	if signal.Cross == indicator.NoCross {
		e.setEntry(t, EntryReport{Result: EntryNoSignal, Slot: -1})
		return nil
	}
	cross := signal.Cross

	if acct.OpenPositions() >= acct.MaxOpenPositions() {
		e.skipEntry(t, EntryNoCapacity, cross, -1, newTickError(CodeNoCapacity, -1, "open",
			fmt.Errorf("%w: %d/%d", position.ErrNoCapacity, acct.OpenPositions(), acct.MaxOpenPositions())))
		return nil
	}
	slot, err := acct.FreeSlot()
	if err != nil {
		e.skipEntry(t, EntryNoCapacity, cross, -1, newTickError(CodeNoCapacity, -1, "free_slot", err))
		return nil
	}
	qty, err := acct.LegQuantity(t.price)
	if err != nil {
		result := EntryFailed
		if isSkippableEntry(err) {
			result = EntrySkipped
		}
		e.skipEntry(t, result, cross, slot, newTickError(CodeSizing, slot, "leg_quantity", err))
		return nil
	}

	var pair position.PositionPair
	if t.real() {
		pair, err = e.openReal(ctx, t, slot, qty)
	} else {
		pair, err = acct.Open(slot, position.OpenRequest{
			Long:  position.Fill{Price: t.price, Qty: qty},
			Short: position.Fill{Price: t.price, Qty: qty},
			Time:  t.at,
		})
		if err != nil {
			err = newTickError(CodeOpen, slot, "open", err)
		}
	}
	if err != nil {
		if isFlattenFailure(err) {
			return err
		}
		result := EntryFailed
		if !t.real() && isSkippableEntry(err) {
			result = EntrySkipped
		}
		e.skipEntry(t, result, cross, slot, err)
		return nil
	}

	e.setEntry(t, EntryReport{Result: EntryOpened, Cross: cross, Slot: slot})
	t.log.Info("헤지 쌍 진입",
		zap.Int("slot", slot),
		zap.Int64("trade_id", pair.ID()),
		zap.String("cross", cross.String()),
		zap.Float64("long_entry", pair.Long.EntryPrice),
		zap.Float64("short_entry", pair.Short.EntryPrice),
		zap.Float64("qty", pair.Long.Qty),
		zap.Float64("capital", acct.Capital()))

	for _, side := range position.Sides {
		leg := pair.Leg(side)
		e.notifyTrade(t, notification.TradeInfo{
			Event:      notification.EventPairOpened,
			Slot:       slot,
			TradeID:    pair.ID(),
			Side:       side.String(),
			Quantity:   leg.Qty,
			EntryPrice: leg.EntryPrice,
			StopLoss:   leg.StopLossPrice,
			TakeProfit: leg.TakeProfitPrice,
		})
	}
	return nil
}

// detectSignal은 진행 중인 봉을 제외한 최근 캔들로 EMA 교차를 판정합니다
func (e *Engine) detectSignal(ctx context.Context, t *tick) (indicator.CrossResult, error) {
	var candles domain.CandleList
	err := e.withRetry(ctx, t.log, "get_klines", func() error {
		var err error
		candles, err = e.exchange.GetKlines(ctx, t.acct.Symbol(), e.cfg.Interval, 3*e.cfg.SlowPeriod)
		return err
	})
	if err != nil {
		return indicator.CrossResult{}, err
	}

	closed := candles.OpenedBefore(t.at)
	return indicator.DetectCross(indicator.FromCandles(closed), indicator.CrossOption{
		FastPeriod: e.cfg.FastPeriod,
		SlowPeriod: e.cfg.SlowPeriod,
	})
}

// openReal은 시장가 진입 두 건과 브래킷 네 건을 일괄 주문으로 내고 계정에 기록합니다.
// 중간에 실패하면 이미 체결된 다리를 시장가로 정리합니다.
func (e *Engine) openReal(ctx context.Context, t *tick, slot int, qty float64) (position.PositionPair, error) {
	acct := t.acct
	log := t.log.With(zap.Int("slot", slot))
	var u entryUnit

	entries := make([]domain.OrderRequest, 0, len(position.Sides))
	for _, side := range position.Sides {
		entries = append(entries, domain.OrderRequest{
			Symbol:       acct.Symbol(),
			Side:         side.EntryOrderSide(),
			PositionSide: side.PositionSide(),
			Type:         domain.Market,
			Quantity:     qty,
		})
	}
	results, err := e.exchange.PlaceBatchOrders(ctx, entries)
	if err != nil {
		return position.PositionPair{}, newTickError(CodeEntryOrder, slot, "place_entries", err)
	}

	var entryErr error
	for i, side := range position.Sides {
		if i >= len(results) || results[i].Err != nil {
			if i < len(results) {
				entryErr = errors.Join(entryErr, fmt.Errorf("%s 진입 주문 실패: %w", side, results[i].Err))
			} else {
				entryErr = errors.Join(entryErr, fmt.Errorf("%s 진입 주문 응답 없음", side))
			}
			continue
		}
		u.placed[side] = results[i].Order
		filled, err := e.awaitFill(ctx, t, results[i].Order)
		if err != nil {
			entryErr = errors.Join(entryErr, fmt.Errorf("%s 진입 체결 확인 실패: %w", side, err))
			continue
		}
		u.filled[side] = filled
	}
	if entryErr != nil {
		return position.PositionPair{}, e.abortEntry(ctx, t, slot, &u, CodeEntryOrder, "place_entries", entryErr)
	}

	brackets := make([]domain.OrderRequest, 0, 4)
	kinds := []position.BracketKind{position.StopLossOrder, position.TakeProfitOrder}
	for _, side := range position.Sides {
		avg, legQty := u.fillOf(side, qty)
		for _, kind := range kinds {
			brackets = append(brackets, stopOrder(acct.Symbol(), side, kind, legQty, bracketLevel(acct, side, kind, avg)))
		}
	}
	results, err = e.exchange.PlaceBatchOrders(ctx, brackets)
	if err != nil {
		return position.PositionPair{}, e.abortEntry(ctx, t, slot, &u, CodeBracketOrder, "place_brackets", err)
	}

	var set position.BracketSet
	var bracketErr error
	for i, req := range brackets {
		side, kind := position.Sides[i/len(kinds)], kinds[i%len(kinds)]
		if i >= len(results) || results[i].Err != nil {
			if i < len(results) {
				bracketErr = errors.Join(bracketErr, fmt.Errorf("%s %s 주문 실패 (트리거 %.2f): %w", side, kind, req.StopPrice, results[i].Err))
			} else {
				bracketErr = errors.Join(bracketErr, fmt.Errorf("%s %s 주문 응답 없음", side, kind))
			}
			continue
		}
		u.brackets = append(u.brackets, results[i].Order)
		leg := set.Leg(side)
		if kind == position.StopLossOrder {
			leg.StopLoss = position.RefFromResponse(results[i].Order)
		} else {
			leg.TakeProfit = position.RefFromResponse(results[i].Order)
		}
	}
	if bracketErr != nil {
		return position.PositionPair{}, e.abortEntry(ctx, t, slot, &u, CodeBracketOrder, "place_brackets",
			fmt.Errorf("%w: %w", position.ErrInconsistentState, bracketErr))
	}

	req := position.OpenRequest{Time: t.at}
	for _, side := range position.Sides {
		set.Leg(side).Entry = position.RefFromResponse(u.filled[side])
		avg, legQty := u.fillOf(side, qty)
		if side == position.Long {
			req.Long = position.Fill{Price: avg, Qty: legQty}
		} else {
			req.Short = position.Fill{Price: avg, Qty: legQty}
		}
	}
	req.Brackets = set

	pair, err := acct.Open(slot, req)
	if err != nil {
		log.Error("체결된 쌍을 계정에 기록하지 못했습니다", zap.Error(err))
		return position.PositionPair{}, e.abortEntry(ctx, t, slot, &u, CodeOpen, "open", err)
	}
	return pair, nil
}

// entryUnit은 진입 중 거래소에 나간 주문들입니다
type entryUnit struct {
	placed   [2]*domain.OrderResponse
	filled   [2]*domain.OrderResponse
	brackets []*domain.OrderResponse
}

// fillOf는 다리의 체결 평균가와 체결 수량을 반환합니다
func (u *entryUnit) fillOf(side position.Side, qty float64) (float64, float64) {
	f := u.filled[side]
	legQty := qty
	if f.ExecutedQuantity > 0 {
		legQty = f.ExecutedQuantity
	}
	return f.AvgPrice, legQty
}

func bracketLevel(acct *position.Account, side position.Side, kind position.BracketKind, entry float64) float64 {
	if kind == position.StopLossOrder {
		return domain.AdjustPrice(side.StopLevel(entry, acct.StopLossPct()), acct.PricePrecision())
	}
	return domain.AdjustPrice(side.TargetLevel(entry, acct.TakeProfitPct()), acct.PricePrecision())
}

// abortEntry는 실패한 진입을 정리합니다. 정리가 성공하면 진입 실패 에러를,
// 정리마저 실패하면 틱을 중단시키는 에러를 반환합니다.
func (e *Engine) abortEntry(ctx context.Context, t *tick, slot int, u *entryUnit, code Code, op string, cause error) error {
	t.log.Warn("진입 실패, 체결된 다리 정리",
		zap.Int("slot", slot),
		zap.String("code", string(code)),
		zap.Error(cause))

	if err := e.flatten(ctx, t, u); err != nil {
		return newTickError(CodeBracketOrder, slot, opFlatten,
			fmt.Errorf("%w: 진입 정리 실패: %w (원인: %w)", position.ErrInconsistentState, err, cause))
	}
	return newTickError(code, slot, op, cause)
}

// flatten은 걸려 있는 브래킷을 취소하고 체결된 진입 다리를 시장가로 청산합니다
func (e *Engine) flatten(ctx context.Context, t *tick, u *entryUnit) error {
	var errs error
	for _, b := range u.brackets {
		if b == nil || b.Status.IsTerminal() {
			continue
		}
		if _, err := e.cancelOrder(ctx, t, b.OrderID); err != nil {
			errs = errors.Join(errs, fmt.Errorf("브래킷 %d 취소 실패: %w", b.OrderID, err))
		}
	}

	for _, side := range position.Sides {
		filled := u.filled[side]
		if filled == nil {
			placed := u.placed[side]
			if placed == nil {
				continue
			}
			// 체결 확인이 안 된 진입 주문은 취소 후 상태를 다시 본다
			resp, err := e.cancelOrder(ctx, t, placed.OrderID)
			if err != nil {
				errs = errors.Join(errs, fmt.Errorf("%s 진입 주문 %d 취소 실패: %w", side, placed.OrderID, err))
				continue
			}
			if resp.ExecutedQuantity <= 0 {
				continue
			}
			filled = resp
		}

		qty := filled.ExecutedQuantity
		if qty <= 0 {
			qty = filled.OrigQuantity
		}
		if _, err := e.closeAtMarket(ctx, t, side, qty); err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s 다리 시장가 정리 실패: %w", side, err))
		}
	}
	return errs
}

// isFlattenFailure는 실패한 진입의 정리마저 실패해 거래소에 추적되지 않는 포지션이 남았는지 확인합니다
func isFlattenFailure(err error) bool {
	var te *TickError
	return errors.As(err, &te) && te.Op == opFlatten
}

func (e *Engine) setEntry(t *tick, r EntryReport) {
	t.report.Entry = r
	e.metrics.ObserveEntry(string(r.Result))
}

func (e *Engine) skipEntry(t *tick, result EntryResult, cross indicator.Cross, slot int, err error) {
	e.setEntry(t, EntryReport{Result: result, Cross: cross, Slot: slot, Err: err})
	code, _ := CodeOf(err)
	t.log.Warn("진입 건너뜀",
		zap.String("code", string(code)),
		zap.String("result", string(result)),
		zap.String("cross", cross.String()),
		zap.Int("slot", slot),
		zap.Error(err))
}

package engine

import (
	"context"
	"fmt"

	"github.com/assist-by/hedger/internal/domain"
	"github.com/assist-by/hedger/internal/position"
)

// bracketFill은 발동한 브래킷 주문의 청산 가격과 거래소 응답입니다
type bracketFill struct {
	price float64
	order *domain.OrderResponse // 모의 모드에서는 nil
}

// reconcile은 열린 슬롯을 번호 순으로 훑으며 슬롯마다 최대 한 번의 전이를 적용합니다.
//
//	Pristine: 롱 손절 -> 숏 손절 순으로 first-trigger
//	OneSided: 남은 다리의 손절 -> 익절 순으로 final-close
func (e *Engine) reconcile(ctx context.Context, t *tick) error {
	for _, slot := range t.acct.OccupiedSlots() {
		if err := e.reconcileSlot(ctx, t, slot); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) reconcileSlot(ctx context.Context, t *tick, slot int) error {
	pair, ok := t.acct.Pair(slot)
	if !ok {
		return nil
	}

	switch pair.Stage() {
	case position.StagePristine:
		for _, side := range position.Sides {
			fill, hit, err := e.bracketHit(ctx, t, slot, side, position.StopLossOrder)
			if err != nil {
				return err
			}
			if hit {
				return e.firstTrigger(ctx, t, slot, side, fill)
			}
		}

	case position.StageOneSided:
		survivor, _ := pair.Survivor()
		for _, kind := range []position.BracketKind{position.StopLossOrder, position.TakeProfitOrder} {
			fill, hit, err := e.bracketHit(ctx, t, slot, survivor, kind)
			if err != nil {
				return err
			}
			if hit {
				return e.finalClose(ctx, t, slot, survivor, kind, fill)
			}
		}

	default:
		return newTickError(CodeInvariant, slot, "reconcile",
			fmt.Errorf("%w: 청산이 끝난 쌍이 슬롯에 남아 있습니다", position.ErrInconsistentState))
	}
	return nil
}

// bracketHit은 다리의 브래킷이 발동했는지 판정합니다.
// 실거래 모드는 주문 상태가 FILLED인지, 모의 모드는 틱 시작 가격이 저장된 트리거를 지났는지 봅니다.
func (e *Engine) bracketHit(ctx context.Context, t *tick, slot int, side position.Side, kind position.BracketKind) (bracketFill, bool, error) {
	pair, _ := t.acct.Pair(slot)
	level := pair.Leg(side).Level(kind)

	if !t.real() {
		var hit bool
		if kind == position.StopLossOrder {
			hit = side.StopBreached(t.price, level)
		} else {
			hit = side.TargetBreached(t.price, level)
		}
		return bracketFill{price: level}, hit, nil
	}

	brackets := t.acct.Brackets(slot)
	ref := brackets.Leg(side).Get(kind)
	if ref == nil {
		return bracketFill{}, false, newTickError(CodeMissingBracket, slot, "query_"+kind.String(),
			fmt.Errorf("%w: %s %s 주문 참조가 없습니다", position.ErrInconsistentState, side, kind))
	}

	resp, err := e.queryOrder(ctx, t, ref.OrderID)
	if err != nil {
		return bracketFill{}, false, newTickError(CodeQueryBracket, slot, "query_"+kind.String(), err)
	}
	if !resp.IsFilled() {
		return bracketFill{}, false, nil
	}

	price := resp.AvgPrice
	if price <= 0 {
		price = level
	}
	return bracketFill{price: price, order: resp}, true, nil
}

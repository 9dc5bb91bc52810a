package position

import (
	"time"

	"github.com/assist-by/hedger/internal/domain"
)

// ExitReason은 다리의 청산 가격을 결정한 사건입니다
type ExitReason string

const (
	ExitNone         ExitReason = ""
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitTakeProfit   ExitReason = "TAKE_PROFIT"
	ExitForcedMarket ExitReason = "FORCED_MARKET" // 가격 복귀 대기 소진 후 시장가 청산
)

// Position은 헤지 쌍의 한쪽 다리입니다
type Position struct {
	Side            Side       `json:"side"`
	ID              int64      `json:"id"`
	EntryTime       time.Time  `json:"entryTime"`
	ExitTime        time.Time  `json:"exitTime"`
	EntryPrice      float64    `json:"entryPrice"`
	ExitPrice       float64    `json:"exitPrice"`
	Qty             float64    `json:"qty"`
	Leverage        int        `json:"leverage"`
	StopLossPrice   float64    `json:"stopLossPrice"`
	TakeProfitPrice float64    `json:"takeProfitPrice"`
	Actualised      bool       `json:"actualised"`
	ExitReason      ExitReason `json:"exitReason,omitempty"`
	Released        bool       `json:"released"` // 증거금과 손익이 capital에 반영됨
}

// IsOpen은 청산 가격이 아직 정해지지 않았는지 확인합니다
func (p Position) IsOpen() bool {
	return p.ExitTime.IsZero()
}

// Level은 브래킷 종류별 트리거 가격을 반환합니다
func (p Position) Level(kind BracketKind) float64 {
	switch kind {
	case StopLossOrder:
		return p.StopLossPrice
	case TakeProfitOrder:
		return p.TakeProfitPrice
	default:
		return p.EntryPrice
	}
}

// RealizedPnL은 진입/청산 수수료를 제외한 실현 손익입니다
func (p Position) RealizedPnL(feeRate float64) float64 {
	if p.IsOpen() {
		return 0
	}
	gross := p.Side.Sign() * (p.ExitPrice - p.EntryPrice) * p.Qty
	fees := feeRate * p.Qty * (p.EntryPrice + p.ExitPrice)
	return gross - fees
}

// Stage는 헤지 쌍의 진행 단계입니다
type Stage int

const (
	StagePristine Stage = iota // 어느 쪽도 손절되지 않음
	StageOneSided              // 한쪽이 손절되고 반대쪽이 남아 있음
	StageClosed                // 양쪽 모두 청산 가격이 정해짐
)

func (s Stage) String() string {
	switch s {
	case StageOneSided:
		return "one-sided"
	case StageClosed:
		return "closed"
	default:
		return "pristine"
	}
}

// PositionPair는 함께 진입한 롱/숏 다리입니다
type PositionPair struct {
	Long  Position `json:"long"`
	Short Position `json:"short"`
}

// Leg는 방향에 해당하는 다리를 반환합니다
func (pp *PositionPair) Leg(side Side) *Position {
	if side == Short {
		return &pp.Short
	}
	return &pp.Long
}

// ID는 쌍의 거래 일련번호입니다
func (pp *PositionPair) ID() int64 {
	return pp.Long.ID
}

// Stage는 다리 상태로부터 진행 단계를 계산합니다
func (pp *PositionPair) Stage() Stage {
	if !pp.Long.IsOpen() && !pp.Short.IsOpen() {
		return StageClosed
	}
	if pp.Long.Actualised || pp.Short.Actualised {
		return StageOneSided
	}
	return StagePristine
}

// Survivor는 한쪽이 손절된 쌍에서 남은 다리의 방향을 반환합니다
func (pp *PositionPair) Survivor() (Side, bool) {
	if pp.Stage() != StageOneSided {
		return Long, false
	}
	if pp.Long.Actualised {
		return Short, true
	}
	return Long, true
}

// OrderRef는 거래소 주문에 대한 참조입니다
type OrderRef struct {
	OrderID       int64               `json:"orderId"`
	ClientOrderID string              `json:"clientOrderId"`
	Symbol        string              `json:"symbol"`
	Type          domain.OrderType    `json:"type"`
	Side          domain.OrderSide    `json:"side"`
	PositionSide  domain.PositionSide `json:"positionSide"`
	Status        domain.OrderStatus  `json:"status"`
	StopPrice     float64             `json:"stopPrice"`
	AvgPrice      float64             `json:"avgPrice"`
	OrigQty       float64             `json:"origQty"`
	ExecutedQty   float64             `json:"executedQty"`
	UpdateTime    time.Time           `json:"updateTime"`
}

// RefFromResponse는 거래소 주문 응답을 참조로 변환합니다
func RefFromResponse(resp *domain.OrderResponse) *OrderRef {
	if resp == nil {
		return nil
	}
	return &OrderRef{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Type:          resp.Type,
		Side:          resp.Side,
		PositionSide:  resp.PositionSide,
		Status:        resp.Status,
		StopPrice:     resp.StopPrice,
		AvgPrice:      resp.AvgPrice,
		OrigQty:       resp.OrigQuantity,
		ExecutedQty:   resp.ExecutedQuantity,
		UpdateTime:    resp.UpdateTime,
	}
}

// LegBrackets는 한쪽 다리의 진입/손절/익절 주문 참조입니다
type LegBrackets struct {
	Entry      *OrderRef `json:"entry"`
	StopLoss   *OrderRef `json:"stopLoss"`
	TakeProfit *OrderRef `json:"takeProfit"`
}

// Get은 종류별 주문 참조를 반환합니다
func (l *LegBrackets) Get(kind BracketKind) *OrderRef {
	switch kind {
	case StopLossOrder:
		return l.StopLoss
	case TakeProfitOrder:
		return l.TakeProfit
	default:
		return l.Entry
	}
}

func (l *LegBrackets) set(kind BracketKind, ref *OrderRef) {
	switch kind {
	case StopLossOrder:
		l.StopLoss = ref
	case TakeProfitOrder:
		l.TakeProfit = ref
	default:
		l.Entry = ref
	}
}

// BracketSet은 슬롯의 주문 참조 묶음입니다. 교체되거나 취소된 참조는 Retired에 보관됩니다
type BracketSet struct {
	Long    LegBrackets `json:"long"`
	Short   LegBrackets `json:"short"`
	Retired []OrderRef  `json:"retired,omitempty"`
}

// Leg는 방향에 해당하는 주문 참조를 반환합니다
func (b *BracketSet) Leg(side Side) *LegBrackets {
	if side == Short {
		return &b.Short
	}
	return &b.Long
}

// Orders는 장부에 기록할 전체 주문 참조를 반환합니다
func (b *BracketSet) Orders() []OrderRef {
	orders := make([]OrderRef, 0, 6+len(b.Retired))
	for _, side := range Sides {
		leg := b.Leg(side)
		for _, ref := range []*OrderRef{leg.Entry, leg.StopLoss, leg.TakeProfit} {
			if ref != nil {
				orders = append(orders, *ref)
			}
		}
	}
	return append(orders, b.Retired...)
}

func (b BracketSet) clone() BracketSet {
	out := BracketSet{}
	for _, side := range Sides {
		src, dst := b.Leg(side), out.Leg(side)
		for _, kind := range []BracketKind{EntryOrder, StopLossOrder, TakeProfitOrder} {
			if ref := src.Get(kind); ref != nil {
				cp := *ref
				dst.set(kind, &cp)
			}
		}
	}
	if len(b.Retired) > 0 {
		out.Retired = append([]OrderRef(nil), b.Retired...)
	}
	return out
}

// ClosedPair는 슬롯에서 비워진 쌍과 그 주문 기록입니다
type ClosedPair struct {
	Slot     int        `json:"slot"`
	Symbol   string     `json:"symbol"`
	Long     Position   `json:"long"`
	Short    Position   `json:"short"`
	Orders   []OrderRef `json:"orders"`
	FeeRate  float64    `json:"feeRate"`
	ClosedAt time.Time  `json:"closedAt"`
}

// PnL은 두 다리의 실현 손익 합계입니다
func (c ClosedPair) PnL() float64 {
	return c.Long.RealizedPnL(c.FeeRate) + c.Short.RealizedPnL(c.FeeRate)
}

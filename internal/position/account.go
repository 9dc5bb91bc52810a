package position

import (
	"context"
	"fmt"
	"time"

	"github.com/assist-by/hedger/internal/domain"
)

// Recorder는 청산된 쌍을 장부에 기록합니다
type Recorder interface {
	RecordClosedPair(ctx context.Context, pair ClosedPair) error
}

// Params는 계정 생성 인자입니다
type Params struct {
	Symbol            string
	QuantityPrecision int
	PricePrecision    int
	Capital           float64
	Leverage          int
	FeeRate           float64
	StopLossPct       float64
	TakeProfitPct     float64
	MaxOpenPositions  int
	RealMode          bool
	NextTimestamp     time.Time
}

func (p Params) validate() error {
	switch {
	case p.Symbol == "":
		return fmt.Errorf("심볼이 비어 있습니다")
	case p.Leverage < 1:
		return fmt.Errorf("레버리지는 1 이상이어야 합니다: %d", p.Leverage)
	case p.MaxOpenPositions < 1 || p.MaxOpenPositions > MaxPairsCeiling:
		return fmt.Errorf("최대 슬롯 수는 1~%d 사이여야 합니다: %d", MaxPairsCeiling, p.MaxOpenPositions)
	case p.Capital < 0:
		return fmt.Errorf("%w: %.2f", ErrInsufficientCapital, p.Capital)
	case p.FeeRate < 0 || p.FeeRate >= 1:
		return fmt.Errorf("수수료율이 올바르지 않습니다: %f", p.FeeRate)
	case p.StopLossPct <= 0 || p.StopLossPct >= 1:
		return fmt.Errorf("손절 비율이 올바르지 않습니다: %f", p.StopLossPct)
	case p.TakeProfitPct <= 0:
		return fmt.Errorf("익절 비율이 올바르지 않습니다: %f", p.TakeProfitPct)
	}
	return nil
}

// Fill은 한 다리의 체결 결과입니다
type Fill struct {
	Price float64
	Qty   float64
}

// OpenRequest는 새 헤지 쌍 진입 정보입니다
type OpenRequest struct {
	Long     Fill
	Short    Fill
	Time     time.Time
	Brackets BracketSet // 실거래 모드에서 체결된 진입/손절/익절 주문
}

// Account는 한 종목의 자본 장부와 슬롯 테이블입니다.
// 슬롯과 주문 참조는 Account의 메서드로만 변경됩니다.
type Account struct {
	symbol            string
	quantityPrecision int
	pricePrecision    int

	capital       float64
	leverage      int
	feeRate       float64
	stopLossPct   float64
	takeProfitPct float64

	maxOpenPositions int
	nOpenPositions   int
	realMode         bool
	nextTimestamp    time.Time
	tradeSequenceID  int64

	slots     []*PositionPair
	contracts []BracketSet

	closedLongs  []Position
	closedShorts []Position
}

// NewAccount는 빈 슬롯 테이블을 가진 계정을 생성합니다
func NewAccount(p Params) (*Account, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("계정 생성 실패: %w", err)
	}
	return &Account{
		symbol:            p.Symbol,
		quantityPrecision: p.QuantityPrecision,
		pricePrecision:    p.PricePrecision,
		capital:           p.Capital,
		leverage:          p.Leverage,
		feeRate:           p.FeeRate,
		stopLossPct:       p.StopLossPct,
		takeProfitPct:     p.TakeProfitPct,
		maxOpenPositions:  p.MaxOpenPositions,
		realMode:          p.RealMode,
		nextTimestamp:     p.NextTimestamp.UTC(),
		slots:             make([]*PositionPair, p.MaxOpenPositions),
		contracts:         make([]BracketSet, p.MaxOpenPositions),
	}, nil
}

func (a *Account) Symbol() string { return a.symbol }
func (a *Account) QuantityPrecision() int { return a.quantityPrecision }
func (a *Account) PricePrecision() int { return a.pricePrecision }
func (a *Account) Capital() float64 { return a.capital }
func (a *Account) Leverage() int { return a.leverage }
func (a *Account) FeeRate() float64 { return a.feeRate }
func (a *Account) StopLossPct() float64 { return a.stopLossPct }
func (a *Account) TakeProfitPct() float64 { return a.takeProfitPct }
func (a *Account) MaxOpenPositions() int { return a.maxOpenPositions }
func (a *Account) OpenPositions() int { return a.nOpenPositions }
func (a *Account) RealMode() bool { return a.realMode }
func (a *Account) NextTimestamp() time.Time { return a.nextTimestamp }
func (a *Account) TradeSequenceID() int64 { return a.tradeSequenceID }

// AdvanceNextTimestamp는 다음 진입 평가 시각을 한 봉 뒤로 옮깁니다
func (a *Account) AdvanceNextTimestamp(interval time.Duration) {
	a.nextTimestamp = a.nextTimestamp.Add(interval)
}

// Pair는 슬롯의 헤지 쌍 복사본을 반환합니다
func (a *Account) Pair(slot int) (PositionPair, bool) {
	if slot < 0 || slot >= len(a.slots) || a.slots[slot] == nil {
		return PositionPair{}, false
	}
	return *a.slots[slot], true
}

// Brackets는 슬롯의 주문 참조 복사본을 반환합니다
func (a *Account) Brackets(slot int) BracketSet {
	if slot < 0 || slot >= len(a.contracts) {
		return BracketSet{}
	}
	return a.contracts[slot].clone()
}

// OccupiedSlots는 헤지 쌍이 있는 슬롯 번호를 오름차순으로 반환합니다
func (a *Account) OccupiedSlots() []int {
	occupied := make([]int, 0, a.nOpenPositions)
	for i, pair := range a.slots {
		if pair != nil {
			occupied = append(occupied, i)
		}
	}
	return occupied
}

// FreeSlot은 가장 낮은 번호의 빈 슬롯을 반환합니다
func (a *Account) FreeSlot() (int, error) {
	for i, pair := range a.slots {
		if pair == nil {
			return i, nil
		}
	}
	return -1, ErrNoCapacity
}

// ClosedLongs는 청산된 롱 다리 기록을 반환합니다
func (a *Account) ClosedLongs() []Position {
	return append([]Position(nil), a.closedLongs...)
}

// ClosedShorts는 청산된 숏 다리 기록을 반환합니다
func (a *Account) ClosedShorts() []Position {
	return append([]Position(nil), a.closedShorts...)
}

// MarginDebit은 한 다리 진입 시 차감되는 증거금과 진입 수수료입니다
func (a *Account) MarginDebit(f Fill) float64 {
	notional := f.Qty * f.Price
	return notional/float64(a.leverage) + a.feeRate*notional
}

// ReleaseAmount는 청산된 다리가 capital에 돌려주는 금액입니다.
// 증거금 qty*entry/L 에 방향 손익을 더하고 청산 수수료를 뺍니다.
// 롱에서는 qty*exit - (L-1)/L*qty*entry - f*qty*exit 와 같고,
// 숏에서는 qty*entry/L - (exit-entry)*qty - f*qty*exit 입니다.
func (a *Account) ReleaseAmount(p Position) float64 {
	margin := p.Qty * p.EntryPrice / float64(p.Leverage)
	pnl := p.Side.Sign() * (p.ExitPrice - p.EntryPrice) * p.Qty
	return margin + pnl - a.feeRate*p.Qty*p.ExitPrice
}

// LegQuantity는 현재 자본과 슬롯 상황에서 한 다리의 진입 수량을 계산합니다
func (a *Account) LegQuantity(price float64) (float64, error) {
	return CalculateLegQuantity(price, SizingConfig{
		Capital:           a.capital,
		MaxOpenPositions:  a.maxOpenPositions,
		OpenPositions:     a.nOpenPositions,
		Leverage:          a.leverage,
		FeeRate:           a.feeRate,
		QuantityPrecision: a.quantityPrecision,
	})
}

// Open은 빈 슬롯에 새 헤지 쌍을 기록하고 증거금과 수수료를 차감합니다
func (a *Account) Open(slot int, req OpenRequest) (PositionPair, error) {
	const op = "open"
	if slot < 0 || slot >= len(a.slots) {
		return PositionPair{}, NewSlotError(slot, op, ErrSlotOutOfRange)
	}
	if a.slots[slot] != nil || a.nOpenPositions >= a.maxOpenPositions {
		return PositionPair{}, NewSlotError(slot, op, ErrCapacityExceeded)
	}

	fills := map[Side]Fill{Long: req.Long, Short: req.Short}
	debit := 0.0
	for _, side := range Sides {
		f := fills[side]
		if f.Price <= 0 {
			return PositionPair{}, NewSlotError(slot, op, fmt.Errorf("%w: %s %f", ErrInvalidPrice, side, f.Price))
		}
		f.Qty = domain.AdjustQuantity(f.Qty, a.quantityPrecision)
		if f.Qty <= 0 {
			return PositionPair{}, NewSlotError(slot, op, fmt.Errorf("%w: %s", ErrInvalidQuantity, side))
		}
		fills[side] = f
		debit += a.MarginDebit(f)
	}
	if debit > a.capital {
		return PositionPair{}, NewSlotError(slot, op,
			fmt.Errorf("%w: 필요 %.4f, 가용 %.4f", ErrInsufficientCapital, debit, a.capital))
	}

	a.tradeSequenceID++
	pair := &PositionPair{}
	for _, side := range Sides {
		f := fills[side]
		*pair.Leg(side) = Position{
			Side:            side,
			ID:              a.tradeSequenceID,
			EntryTime:       req.Time.UTC(),
			EntryPrice:      f.Price,
			Qty:             f.Qty,
			Leverage:        a.leverage,
			StopLossPrice:   domain.AdjustPrice(side.StopLevel(f.Price, a.stopLossPct), a.pricePrecision),
			TakeProfitPrice: domain.AdjustPrice(side.TargetLevel(f.Price, a.takeProfitPct), a.pricePrecision),
		}
	}

	a.slots[slot] = pair
	a.contracts[slot] = req.Brackets.clone()
	a.capital -= debit
	a.nOpenPositions++
	return *pair, nil
}

// SetBracket은 다리의 주문 참조를 교체합니다. 이전 참조는 Retired로 옮겨집니다
func (a *Account) SetBracket(slot int, side Side, kind BracketKind, ref *OrderRef) error {
	if _, err := a.pairAt(slot, "set_bracket"); err != nil {
		return err
	}
	leg := a.contracts[slot].Leg(side)
	if old := leg.Get(kind); old != nil {
		if ref == nil || old.OrderID != ref.OrderID {
			a.contracts[slot].Retired = append(a.contracts[slot].Retired, *old)
		}
	}
	if ref != nil {
		cp := *ref
		ref = &cp
	}
	leg.set(kind, ref)
	return nil
}

// Actualise는 손절이 먼저 발동한 다리의 청산 가격을 확정하고 자본을 돌려받습니다
func (a *Account) Actualise(slot int, side Side, exitPrice float64, at time.Time) error {
	const op = "actualise"
	pair, err := a.pairAt(slot, op)
	if err != nil {
		return err
	}
	if pair.Stage() != StagePristine {
		return NewSlotError(slot, op, fmt.Errorf("%w: %s 단계", ErrWrongStage, pair.Stage()))
	}
	if exitPrice <= 0 {
		return NewSlotError(slot, op, fmt.Errorf("%w: %f", ErrInvalidPrice, exitPrice))
	}

	leg := pair.Leg(side)
	leg.ExitPrice = exitPrice
	leg.ExitTime = at.UTC()
	leg.ExitReason = ExitStopLoss
	leg.Actualised = true
	leg.Released = true
	a.capital += a.ReleaseAmount(*leg)
	return nil
}

// TightenStop은 남은 다리의 손절가와 손절 주문 참조를 갱신합니다
func (a *Account) TightenStop(slot int, side Side, stop float64, ref *OrderRef) error {
	const op = "tighten_stop"
	pair, err := a.pairAt(slot, op)
	if err != nil {
		return err
	}
	survivor, ok := pair.Survivor()
	if !ok || survivor != side {
		return NewSlotError(slot, op, fmt.Errorf("%w: %s는 남은 다리가 아닙니다", ErrWrongStage, side))
	}
	if stop <= 0 {
		return NewSlotError(slot, op, fmt.Errorf("%w: %f", ErrInvalidPrice, stop))
	}

	pair.Leg(side).StopLossPrice = stop
	if ref != nil || a.contracts[slot].Leg(side).StopLoss != nil {
		return a.SetBracket(slot, side, StopLossOrder, ref)
	}
	return nil
}

// Settle은 남은 다리의 청산 가격을 확정합니다. 자본 반영은 Close에서 이루어집니다
func (a *Account) Settle(slot int, side Side, exitPrice float64, at time.Time, reason ExitReason) error {
	const op = "settle"
	pair, err := a.pairAt(slot, op)
	if err != nil {
		return err
	}
	survivor, ok := pair.Survivor()
	if !ok || survivor != side {
		return NewSlotError(slot, op, fmt.Errorf("%w: %s는 남은 다리가 아닙니다", ErrWrongStage, side))
	}
	leg := pair.Leg(side)
	if !leg.IsOpen() {
		return NewSlotError(slot, op, ErrExitAlreadyFixed)
	}
	if exitPrice <= 0 {
		return NewSlotError(slot, op, fmt.Errorf("%w: %f", ErrInvalidPrice, exitPrice))
	}

	leg.ExitPrice = exitPrice
	leg.ExitTime = at.UTC()
	leg.ExitReason = reason
	return nil
}

// Close는 양쪽 청산 가격이 정해진 쌍을 장부에 기록하고 슬롯을 비웁니다.
// 장부 기록이 실패하면 계정 상태는 바뀌지 않습니다.
func (a *Account) Close(ctx context.Context, slot int, rec Recorder) (ClosedPair, error) {
	const op = "close"
	pair, err := a.pairAt(slot, op)
	if err != nil {
		return ClosedPair{}, err
	}
	if pair.Stage() != StageClosed {
		return ClosedPair{}, NewSlotError(slot, op, fmt.Errorf("%w: %s 단계", ErrWrongStage, pair.Stage()))
	}

	closed := ClosedPair{
		Slot:    slot,
		Symbol:  a.symbol,
		Long:    pair.Long,
		Short:   pair.Short,
		Orders:  a.contracts[slot].Orders(),
		FeeRate: a.feeRate,
	}
	release := 0.0
	for _, side := range Sides {
		leg := closed.leg(side)
		if !leg.Released {
			release += a.ReleaseAmount(*leg)
			leg.Released = true
		}
		if leg.ExitTime.After(closed.ClosedAt) {
			closed.ClosedAt = leg.ExitTime
		}
	}

	if rec != nil {
		if err := rec.RecordClosedPair(ctx, closed); err != nil {
			return ClosedPair{}, NewSlotError(slot, op, fmt.Errorf("장부 기록 실패: %w", err))
		}
	}

	a.capital += release
	a.closedLongs = append(a.closedLongs, closed.Long)
	a.closedShorts = append(a.closedShorts, closed.Short)
	a.slots[slot] = nil
	a.contracts[slot] = BracketSet{}
	a.nOpenPositions--
	return closed, nil
}

// CheckInvariants는 슬롯 수, 자본, 다리 상태의 일관성을 검사합니다
func (a *Account) CheckInvariants() error {
	if len(a.slots) != a.maxOpenPositions || len(a.contracts) != a.maxOpenPositions {
		return fmt.Errorf("%w: 슬롯 테이블 크기 %d/%d, 최대 %d",
			ErrInconsistentState, len(a.slots), len(a.contracts), a.maxOpenPositions)
	}
	if n := len(a.OccupiedSlots()); n != a.nOpenPositions {
		return fmt.Errorf("%w: 열린 쌍 %d개, 카운터 %d", ErrInconsistentState, n, a.nOpenPositions)
	}
	if a.capital < 0 {
		return fmt.Errorf("%w: 음수 자본 %.4f", ErrInconsistentState, a.capital)
	}
	for _, slot := range a.OccupiedSlots() {
		pair := a.slots[slot]
		if pair.Long.Actualised && pair.Short.Actualised {
			return fmt.Errorf("%w: 슬롯 %d의 두 다리가 모두 손절 발동 상태입니다", ErrInconsistentState, slot)
		}
		for _, side := range Sides {
			leg := pair.Leg(side)
			if leg.Actualised && leg.IsOpen() {
				return fmt.Errorf("%w: 슬롯 %d %s 다리의 청산 가격이 없습니다", ErrInconsistentState, slot, side)
			}
		}
	}
	return nil
}

func (a *Account) pairAt(slot int, op string) (*PositionPair, error) {
	if slot < 0 || slot >= len(a.slots) {
		return nil, NewSlotError(slot, op, ErrSlotOutOfRange)
	}
	if a.slots[slot] == nil {
		return nil, NewSlotError(slot, op, ErrSlotEmpty)
	}
	return a.slots[slot], nil
}

func (c *ClosedPair) leg(side Side) *Position {
	if side == Short {
		return &c.Short
	}
	return &c.Long
}

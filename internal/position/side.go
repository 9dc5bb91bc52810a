package position

import (
	"fmt"

	"github.com/assist-by/hedger/internal/domain"
)

// Side는 헤지 쌍의 한쪽 다리(롱/숏)를 나타냅니다
type Side int

const (
	Long Side = iota
	Short
)

// Sides는 평가 우선순위 순서(롱 먼저)의 전체 방향 목록입니다
var Sides = [2]Side{Long, Short}

func (s Side) String() string {
	if s == Short {
		return "SHORT"
	}
	return "LONG"
}

// Sign은 롱이면 +1, 숏이면 -1을 반환합니다
func (s Side) Sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}

// Opposite는 반대쪽 다리를 반환합니다
func (s Side) Opposite() Side {
	if s == Short {
		return Long
	}
	return Short
}

// PositionSide는 헤지 모드 주문의 positionSide 값을 반환합니다
func (s Side) PositionSide() domain.PositionSide {
	if s == Short {
		return domain.ShortPosition
	}
	return domain.LongPosition
}

// EntryOrderSide는 포지션 진입을 위한 주문 사이드를 반환합니다
func (s Side) EntryOrderSide() domain.OrderSide {
	if s == Short {
		return domain.Sell
	}
	return domain.Buy
}

// ExitOrderSide는 포지션 청산을 위한 주문 사이드를 반환합니다
func (s Side) ExitOrderSide() domain.OrderSide {
	if s == Short {
		return domain.Buy
	}
	return domain.Sell
}

// StopLevel은 진입가 기준 손절가입니다. 롱은 아래, 숏은 위
func (s Side) StopLevel(entry, pct float64) float64 {
	return entry * (1 - s.Sign()*pct)
}

// TargetLevel은 진입가 기준 익절가입니다. 롱은 위, 숏은 아래
func (s Side) TargetLevel(entry, pct float64) float64 {
	return entry * (1 + s.Sign()*pct)
}

// StopBreached는 가격이 손절 트리거를 지났는지 확인합니다
func (s Side) StopBreached(price, level float64) bool {
	return s.Sign()*(price-level) <= 0
}

// TargetBreached는 가격이 익절 트리거를 지났는지 확인합니다
func (s Side) TargetBreached(price, level float64) bool {
	return s.Sign()*(price-level) >= 0
}

// SideOf는 positionSide 값을 Side로 변환합니다
func SideOf(ps domain.PositionSide) (Side, error) {
	switch ps {
	case domain.LongPosition:
		return Long, nil
	case domain.ShortPosition:
		return Short, nil
	default:
		return Long, fmt.Errorf("알 수 없는 포지션 방향: %q", ps)
	}
}

// MarshalText는 Side를 "LONG"/"SHORT"로 직렬화합니다
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText는 "LONG"/"SHORT" 문자열을 Side로 복원합니다
func (s *Side) UnmarshalText(text []byte) error {
	side, err := SideOf(domain.PositionSide(text))
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// BracketKind는 다리별 주문 종류입니다
type BracketKind int

const (
	EntryOrder BracketKind = iota
	StopLossOrder
	TakeProfitOrder
)

func (k BracketKind) String() string {
	switch k {
	case StopLossOrder:
		return "stop_loss"
	case TakeProfitOrder:
		return "take_profit"
	default:
		return "entry"
	}
}

// OrderType은 주문 종류에 맞는 거래소 주문 유형을 반환합니다
func (k BracketKind) OrderType() domain.OrderType {
	switch k {
	case StopLossOrder:
		return domain.StopMarket
	case TakeProfitOrder:
		return domain.TakeProfitMarket
	default:
		return domain.Market
	}
}

// Sibling은 같은 다리의 반대 브래킷 주문 종류입니다
func (k BracketKind) Sibling() BracketKind {
	if k == TakeProfitOrder {
		return StopLossOrder
	}
	return TakeProfitOrder
}

package position

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	// MaxPairsCeiling은 동시에 열 수 있는 헤지 쌍의 상한입니다
	MaxPairsCeiling = 5

	// minNotionalPerPosition은 포지션당 최소 명목가치(USDT)입니다
	minNotionalPerPosition = 5.0
)

// Capacity는 가용 잔고로 운용할 수 있는 최대 헤지 쌍 수를 계산합니다.
// 포지션당 최소 금액은 5 USDT에 수량 최소 단위 하나의 가치를 더한 값이며,
// 롱/숏 두 다리 분을 나눈 뒤 상한(5)으로 자르고 안전 여유로 한 슬롯을 뺍니다.
func Capacity(available, price float64, quantityPrecision int) (int, error) {
	if price <= 0 {
		return 0, fmt.Errorf("%w: %f", ErrInvalidPrice, price)
	}

	step := math.Pow10(-quantityPrecision)
	perPosition := minNotionalPerPosition + price*step
	pairs := int(math.Floor(available / (2 * perPosition)))

	maxOpen := min(MaxPairsCeiling, pairs) - 1
	if maxOpen < 1 {
		return 0, fmt.Errorf("%w: 가용 %.2f, 쌍당 최소 %.2f", ErrInsufficientCapital, available, 2*perPosition)
	}
	return maxOpen, nil
}

// SizingConfig는 다리 수량 계산에 필요한 설정을 정의합니다
type SizingConfig struct {
	Capital           float64 // 가용 자본 (USDT)
	MaxOpenPositions  int     // 최대 헤지 쌍 수
	OpenPositions     int     // 현재 열린 헤지 쌍 수
	Leverage          int     // 레버리지
	FeeRate           float64 // 체결 수수료율
	QuantityPrecision int     // 수량 소수점 자릿수
}

// CalculateLegQuantity는 한 다리의 수량을 계산합니다.
// 남은 슬롯 수로 자본을 나눈 금액의 절반이 다리 예산이며,
// 증거금(qty*P/L)과 진입 수수료(f*qty*P)의 합이 예산을 넘지 않도록 정밀도에 맞춰 내림합니다.
func CalculateLegQuantity(price float64, cfg SizingConfig) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("%w: %f", ErrInvalidPrice, price)
	}
	free := cfg.MaxOpenPositions - cfg.OpenPositions
	if free <= 0 {
		return 0, ErrNoCapacity
	}
	if cfg.Leverage < 1 {
		return 0, fmt.Errorf("레버리지는 1 이상이어야 합니다: %d", cfg.Leverage)
	}

	budget := decimal.NewFromFloat(cfg.Capital).
		Div(decimal.NewFromInt(int64(free))).
		Div(decimal.NewFromInt(2))
	perUnit := decimal.NewFromFloat(price).Mul(
		decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(cfg.Leverage))).
			Add(decimal.NewFromFloat(cfg.FeeRate)),
	)

	qty, _ := budget.Div(perUnit).Truncate(int32(cfg.QuantityPrecision)).Float64()
	if qty <= 0 {
		return 0, fmt.Errorf("%w: 예산 %s, 가격 %.2f", ErrInvalidQuantity, budget.StringFixed(2), price)
	}
	return qty, nil
}

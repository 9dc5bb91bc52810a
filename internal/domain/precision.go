package domain

import "github.com/shopspring/decimal"

// AdjustQuantity는 수량을 거래소 수량 정밀도에 맞게 내림합니다
func AdjustQuantity(quantity float64, precision int) float64 {
	if quantity <= 0 {
		return 0
	}
	q, _ := decimal.NewFromFloat(quantity).Truncate(int32(precision)).Float64()
	return q
}

// AdjustPrice는 가격을 거래소 가격 정밀도에 맞게 반올림합니다
func AdjustPrice(price float64, precision int) float64 {
	p, _ := decimal.NewFromFloat(price).Round(int32(precision)).Float64()
	return p
}

// FormatDecimal은 주문 요청에 쓰이는 고정 소수점 문자열을 만듭니다
func FormatDecimal(v float64, precision int) string {
	return decimal.NewFromFloat(v).StringFixed(int32(precision))
}

// ParseDecimal은 거래소가 돌려준 숫자 문자열을 float64로 변환합니다. 빈 문자열은 0입니다
func ParseDecimal(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

package indicator

import (
	"fmt"
	"math"
)

// EMAOption은 EMA 계산에 필요한 옵션을 정의합니다
type EMAOption struct {
	Period int // 기간
}

// ValidateEMAOption은 EMA 옵션을 검증합니다
func ValidateEMAOption(opt EMAOption) error {
	if opt.Period < 1 {
		return &ValidationError{
			Field: "Period",
			Err:   fmt.Errorf("기간은 1 이상이어야 합니다: %d", opt.Period),
		}
	}
	return nil
}

// EMA는 지수이동평균을 계산합니다.
// 첫 종가를 시작값으로 두고 alpha = 2/(period+1)로 누적하며,
// period개가 모이기 전의 값은 NaN입니다 (pandas ewm(adjust=False, min_periods=period)와 동일).
func EMA(prices []PriceData, opt EMAOption) ([]Result, error) {
	if err := ValidateEMAOption(opt); err != nil {
		return nil, err
	}

	if len(prices) < opt.Period {
		return nil, &ValidationError{
			Field: "prices",
			Err:   fmt.Errorf("가격 데이터가 부족합니다. 필요: %d, 현재: %d", opt.Period, len(prices)),
		}
	}

	alpha := 2.0 / float64(opt.Period+1)
	results := make([]Result, len(prices))

	ema := prices[0].Close
	for i, p := range prices {
		if i > 0 {
			ema = alpha*p.Close + (1-alpha)*ema
		}
		value := ema
		if i < opt.Period-1 {
			value = math.NaN()
		}
		results[i] = Result{Value: value, Timestamp: p.Time}
	}

	return results, nil
}

package indicator

import (
	"fmt"
	"time"

	"github.com/assist-by/hedger/internal/domain"
)

// PriceData는 지표 계산에 필요한 가격 정보를 정의합니다
type PriceData struct {
	Time  time.Time // 타임스탬프
	Close float64   // 종가
}

// Result는 지표 계산 결과를 정의합니다
type Result struct {
	Value     float64   // 지표값 (계산 구간 이전은 NaN)
	Timestamp time.Time // 계산 시점
}

// ValidationError는 입력값 검증 에러를 정의합니다
type ValidationError struct {
	Field string
	Err   error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("유효하지 않은 %s: %v", e.Field, e.Err)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// FromCandles는 캔들 데이터를 지표 계산용 PriceData로 변환합니다
func FromCandles(candles domain.CandleList) []PriceData {
	prices := make([]PriceData, len(candles))
	for i, c := range candles {
		prices[i] = PriceData{Time: c.OpenTime, Close: c.Close}
	}
	return prices
}

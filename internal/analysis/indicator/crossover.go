package indicator

import "fmt"

// Cross는 빠른 이동평균과 느린 이동평균의 교차 방향입니다
type Cross int

const (
	NoCross   Cross = iota
	CrossOver       // 빠른 선이 느린 선을 상향 돌파
	CrossUnder      // 빠른 선이 느린 선을 하향 돌파
)

func (c Cross) String() string {
	switch c {
	case CrossOver:
		return "crossover"
	case CrossUnder:
		return "crossunder"
	default:
		return "none"
	}
}

// CrossOption은 교차 판정에 쓰이는 두 EMA 기간입니다
type CrossOption struct {
	FastPeriod int
	SlowPeriod int
}

// CrossResult는 마지막 두 봉에서의 EMA 값과 교차 판정 결과입니다
type CrossResult struct {
	Cross    Cross
	PrevFast float64
	PrevSlow float64
	LastFast float64
	LastSlow float64
}

// DetectCross는 마지막 두 봉의 EMA로 교차 여부를 판정합니다.
// 직전 봉에서 fast < slow 이고 현재 봉에서 fast >= slow 이면 CrossOver,
// 반대 조건이면 CrossUnder 입니다. NaN이 섞이면 교차가 아닙니다.
func DetectCross(prices []PriceData, opt CrossOption) (CrossResult, error) {
	if opt.FastPeriod >= opt.SlowPeriod {
		return CrossResult{}, &ValidationError{
			Field: "FastPeriod",
			Err:   fmt.Errorf("빠른 기간(%d)은 느린 기간(%d)보다 작아야 합니다", opt.FastPeriod, opt.SlowPeriod),
		}
	}
	if len(prices) < 2 {
		return CrossResult{}, &ValidationError{
			Field: "prices",
			Err:   fmt.Errorf("교차 판정에는 최소 2개의 봉이 필요합니다"),
		}
	}

	fast, err := EMA(prices, EMAOption{Period: opt.FastPeriod})
	if err != nil {
		return CrossResult{}, fmt.Errorf("빠른 EMA 계산 실패: %w", err)
	}
	slow, err := EMA(prices, EMAOption{Period: opt.SlowPeriod})
	if err != nil {
		return CrossResult{}, fmt.Errorf("느린 EMA 계산 실패: %w", err)
	}

	n := len(prices)
	res := CrossResult{
		PrevFast: fast[n-2].Value,
		PrevSlow: slow[n-2].Value,
		LastFast: fast[n-1].Value,
		LastSlow: slow[n-1].Value,
	}
	res.Cross = checkCross(res.PrevFast, res.PrevSlow, res.LastFast, res.LastSlow)
	return res, nil
}

func checkCross(prevFast, prevSlow, lastFast, lastSlow float64) Cross {
	if prevFast < prevSlow && lastFast >= lastSlow {
		return CrossOver
	}
	if prevFast > prevSlow && lastFast <= lastSlow {
		return CrossUnder
	}
	return NoCross
}

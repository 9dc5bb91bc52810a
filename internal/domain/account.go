package domain

import "time"

// Balance는 선물 지갑의 자산별 잔고를 표현합니다
type Balance struct {
	AccountAlias       string    // 계정 별칭
	Asset              string    // 자산 심볼 (예: USDT)
	Balance            float64   // 지갑 잔고
	CrossWalletBalance float64   // 교차 마진 지갑 잔고
	CrossUnPnl         float64   // 교차 포지션 미실현 손익
	Available          float64   // 사용 가능한 잔고
	MaxWithdrawAmount  float64   // 최대 출금 가능 금액
	UpdateTime         time.Time // 갱신 시간
}

// CommissionRate는 심볼별 수수료율입니다
type CommissionRate struct {
	Symbol string
	Maker  float64
	Taker  float64
}

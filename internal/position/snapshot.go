package position

import (
	"encoding/json"
	"fmt"
	"time"
)

// accountState는 Account의 직렬화 형태입니다
type accountState struct {
	Symbol            string          `json:"symbol"`
	QuantityPrecision int             `json:"quantityPrecision"`
	PricePrecision    int             `json:"pricePrecision"`
	Capital           float64         `json:"capital"`
	Leverage          int             `json:"leverage"`
	FeeRate           float64         `json:"feeRate"`
	StopLossPct       float64         `json:"stopLossPct"`
	TakeProfitPct     float64         `json:"takeProfitPct"`
	MaxOpenPositions  int             `json:"maxOpenPositions"`
	NOpenPositions    int             `json:"nOpenPositions"`
	RealMode          bool            `json:"realMode"`
	NextTimestamp     time.Time       `json:"nextTimestamp"`
	TradeSequenceID   int64           `json:"tradeSequenceId"`
	Slots             []*PositionPair `json:"slots"`
	Contracts         []BracketSet    `json:"contracts"`
	ClosedLongs       []Position      `json:"closedLongs"`
	ClosedShorts      []Position      `json:"closedShorts"`
}

// MarshalJSON은 Account 스냅샷을 JSON으로 직렬화합니다
func (a *Account) MarshalJSON() ([]byte, error) {
	return json.Marshal(accountState{
		Symbol:            a.symbol,
		QuantityPrecision: a.quantityPrecision,
		PricePrecision:    a.pricePrecision,
		Capital:           a.capital,
		Leverage:          a.leverage,
		FeeRate:           a.feeRate,
		StopLossPct:       a.stopLossPct,
		TakeProfitPct:     a.takeProfitPct,
		MaxOpenPositions:  a.maxOpenPositions,
		NOpenPositions:    a.nOpenPositions,
		RealMode:          a.realMode,
		NextTimestamp:     a.nextTimestamp,
		TradeSequenceID:   a.tradeSequenceID,
		Slots:             a.slots,
		Contracts:         a.contracts,
		ClosedLongs:       a.closedLongs,
		ClosedShorts:      a.closedShorts,
	})
}

// UnmarshalJSON은 스냅샷에서 Account를 복원하고 일관성을 검사합니다
func (a *Account) UnmarshalJSON(data []byte) error {
	var s accountState
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	restored := Account{
		symbol:            s.Symbol,
		quantityPrecision: s.QuantityPrecision,
		pricePrecision:    s.PricePrecision,
		capital:           s.Capital,
		leverage:          s.Leverage,
		feeRate:           s.FeeRate,
		stopLossPct:       s.StopLossPct,
		takeProfitPct:     s.TakeProfitPct,
		maxOpenPositions:  s.MaxOpenPositions,
		nOpenPositions:    s.NOpenPositions,
		realMode:          s.RealMode,
		nextTimestamp:     s.NextTimestamp.UTC(),
		tradeSequenceID:   s.TradeSequenceID,
		slots:             s.Slots,
		contracts:         s.Contracts,
		closedLongs:       s.ClosedLongs,
		closedShorts:      s.ClosedShorts,
	}
	if restored.contracts == nil && restored.maxOpenPositions > 0 {
		restored.contracts = make([]BracketSet, restored.maxOpenPositions)
	}
	if err := restored.CheckInvariants(); err != nil {
		return fmt.Errorf("스냅샷 복원 실패: %w", err)
	}

	*a = restored
	return nil
}

// Snapshot은 Account를 JSON 바이트로 직렬화합니다
func Snapshot(a *Account) ([]byte, error) {
	return json.Marshal(a)
}

// Restore는 JSON 스냅샷에서 Account를 복원합니다
func Restore(data []byte) (*Account, error) {
	a := &Account{}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, err
	}
	return a, nil
}

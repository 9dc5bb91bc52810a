package ledger

import (
	"time"

	"gorm.io/datatypes"

	"github.com/assist-by/hedger/internal/position"
)

// OrderRecord는 주문 장부의 한 행입니다.
// (symbol, trade_id, order_id)가 같은 행은 한 번만 기록됩니다.
type OrderRecord struct {
	ID            uint   `gorm:"primaryKey"`
	Slot          int    `gorm:"index"`
	TradeID       int64  `gorm:"index;uniqueIndex:idx_order_record,priority:2"`
	OrderID       int64  `gorm:"index;uniqueIndex:idx_order_record,priority:3"`
	ClientOrderID string `gorm:"size:64"`
	Symbol        string `gorm:"size:32;uniqueIndex:idx_order_record,priority:1"`
	Type          string `gorm:"size:32"`
	Side          string `gorm:"size:8"`
	PositionSide  string `gorm:"size:8"`
	Status        string `gorm:"size:32"`
	StopPrice     float64
	AvgPrice      float64
	OrigQty       float64
	ExecutedQty   float64
	UpdateTime    time.Time
	CreatedAt     time.Time
}

func (OrderRecord) TableName() string { return "order_records" }

// TradeRecord는 거래 장부의 한 행(한 다리)입니다.
// 다리는 (symbol, trade_id, side, entry_time)으로 식별되며, entry_time은
// init --force로 거래 번호가 다시 시작된 계정의 다리를 구분합니다.
type TradeRecord struct {
	ID         uint      `gorm:"primaryKey"`
	TradeID    int64     `gorm:"index;uniqueIndex:idx_trade_leg,priority:2"`
	Slot       int       `gorm:"index"`
	Symbol     string    `gorm:"size:32;uniqueIndex:idx_trade_leg,priority:1"`
	Side       string    `gorm:"size:8;uniqueIndex:idx_trade_leg,priority:3"`
	EntryTime  time.Time `gorm:"uniqueIndex:idx_trade_leg,priority:4"`
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Qty        float64
	Leverage   int
	StopLoss   float64
	TakeProfit float64
	Actualised bool
	ExitReason string  `gorm:"size:32"`
	PnL        float64 `gorm:"column:pnl"`
	CreatedAt  time.Time
}

func (TradeRecord) TableName() string { return "trade_records" }

// BalanceSnapshot은 틱마다 남기는 잔고 기록입니다
type BalanceSnapshot struct {
	ID                 uint   `gorm:"primaryKey"`
	AccountAlias       string `gorm:"size:64"`
	Asset              string `gorm:"size:16"`
	Balance            float64
	CrossWalletBalance float64
	CrossUnPnl         float64
	Available          float64
	MaxWithdrawAmount  float64
	Capital            float64
	OpenPairs          int
	UpdateTime         time.Time
	CreatedAt          time.Time
}

func (BalanceSnapshot) TableName() string { return "balance_snapshots" }

// AccountSnapshot은 직렬화된 Account 상태입니다
type AccountSnapshot struct {
	ID        uint   `gorm:"primaryKey"`
	Symbol    string `gorm:"size:32;index"`
	Payload   datatypes.JSON
	CreatedAt time.Time
}

func (AccountSnapshot) TableName() string { return "account_snapshots" }

func orderRecordFrom(slot int, tradeID int64, ref position.OrderRef) OrderRecord {
	return OrderRecord{
		Slot:          slot,
		TradeID:       tradeID,
		OrderID:       ref.OrderID,
		ClientOrderID: ref.ClientOrderID,
		Symbol:        ref.Symbol,
		Type:          string(ref.Type),
		Side:          string(ref.Side),
		PositionSide:  string(ref.PositionSide),
		Status:        string(ref.Status),
		StopPrice:     ref.StopPrice,
		AvgPrice:      ref.AvgPrice,
		OrigQty:       ref.OrigQty,
		ExecutedQty:   ref.ExecutedQty,
		UpdateTime:    ref.UpdateTime.UTC(),
	}
}

func tradeRecordFrom(slot int, symbol string, feeRate float64, p position.Position) TradeRecord {
	return TradeRecord{
		TradeID:    p.ID,
		Slot:       slot,
		Symbol:     symbol,
		Side:       p.Side.String(),
		EntryTime:  p.EntryTime.UTC(),
		ExitTime:   p.ExitTime.UTC(),
		EntryPrice: p.EntryPrice,
		ExitPrice:  p.ExitPrice,
		Qty:        p.Qty,
		Leverage:   p.Leverage,
		StopLoss:   p.StopLossPrice,
		TakeProfit: p.TakeProfitPrice,
		Actualised: p.Actualised,
		ExitReason: string(p.ExitReason),
		PnL:        p.RealizedPnL(feeRate),
	}
}

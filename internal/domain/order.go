package domain

import "time"

// OrderRequest는 주문 요청 정보를 표현합니다
type OrderRequest struct {
	Symbol        string       // 심볼 (예: BTCUSDT)
	Side          OrderSide    // 매수/매도
	PositionSide  PositionSide // 롱/숏 포지션
	Type          OrderType    // MARKET, STOP_MARKET, TAKE_PROFIT_MARKET
	Quantity      float64      // 수량
	StopPrice     float64      // 트리거 가격 (STOP_MARKET, TAKE_PROFIT_MARKET)
	ClientOrderID string       // 클라이언트 측 주문 ID
}

// OrderResponse는 주문 응답을 표현합니다
type OrderResponse struct {
	OrderID          int64        // 주문 ID
	Symbol           string       // 심볼
	Status           OrderStatus  // 주문 상태
	ClientOrderID    string       // 클라이언트 측 주문 ID
	AvgPrice         float64      // 평균 체결 가격
	StopPrice        float64      // 트리거 가격
	OrigQuantity     float64      // 원래 주문 수량
	ExecutedQuantity float64      // 체결된 수량
	Side             OrderSide    // 매수/매도
	PositionSide     PositionSide // 롱/숏 포지션
	Type             OrderType    // 주문 유형
	UpdateTime       time.Time    // 마지막 갱신 시간
}

// IsFilled는 주문이 완전히 체결되었는지 확인합니다
func (o *OrderResponse) IsFilled() bool {
	return o != nil && o.Status == StatusFilled
}

// BatchResult는 일괄 주문의 개별 결과입니다. Order와 Err 중 하나만 채워집니다
type BatchResult struct {
	Order *OrderResponse
	Err   error
}

// MaxBatchOrders는 한 번의 일괄 주문에 담을 수 있는 최대 주문 수입니다
const MaxBatchOrders = 5

package binance

import (
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/assist-by/hedger/internal/domain"
)

// orderFields는 futures 응답 타입들이 공통으로 가진 필드입니다
type orderFields struct {
	orderID       int64
	symbol        string
	clientOrderID string
	status        futures.OrderStatusType
	avgPrice      string
	stopPrice     string
	origQty       string
	executedQty   string
	side          futures.SideType
	positionSide  futures.PositionSideType
	orderType     futures.OrderType
	updateTime    int64
}

func (f orderFields) toDomain() (*domain.OrderResponse, error) {
	nums := [4]float64{}
	for i, raw := range [4]string{f.avgPrice, f.stopPrice, f.origQty, f.executedQty} {
		v, err := domain.ParseDecimal(raw)
		if err != nil {
			return nil, fmt.Errorf("주문 응답 파싱 실패 (ID: %d): %w", f.orderID, err)
		}
		nums[i] = v
	}

	resp := &domain.OrderResponse{
		OrderID:          f.orderID,
		Symbol:           f.symbol,
		Status:           domain.OrderStatus(f.status),
		ClientOrderID:    f.clientOrderID,
		AvgPrice:         nums[0],
		StopPrice:        nums[1],
		OrigQuantity:     nums[2],
		ExecutedQuantity: nums[3],
		Side:             domain.OrderSide(f.side),
		PositionSide:     domain.PositionSide(f.positionSide),
		Type:             domain.OrderType(f.orderType),
	}
	if f.updateTime > 0 {
		resp.UpdateTime = time.UnixMilli(f.updateTime).UTC()
	}
	return resp, nil
}

func fromOrder(o *futures.Order) (*domain.OrderResponse, error) {
	if o == nil {
		return nil, fmt.Errorf("빈 주문 응답")
	}
	return orderFields{
		orderID:       o.OrderID,
		symbol:        o.Symbol,
		clientOrderID: o.ClientOrderID,
		status:        o.Status,
		avgPrice:      o.AvgPrice,
		stopPrice:     o.StopPrice,
		origQty:       o.OrigQuantity,
		executedQty:   o.ExecutedQuantity,
		side:          o.Side,
		positionSide:  o.PositionSide,
		orderType:     o.Type,
		updateTime:    o.UpdateTime,
	}.toDomain()
}

func fromCreateResponse(r *futures.CreateOrderResponse) (*domain.OrderResponse, error) {
	if r == nil {
		return nil, fmt.Errorf("빈 주문 생성 응답")
	}
	return orderFields{
		orderID:       r.OrderID,
		symbol:        r.Symbol,
		clientOrderID: r.ClientOrderID,
		status:        r.Status,
		stopPrice:     r.StopPrice,
		origQty:       r.OrigQuantity,
		executedQty:   r.ExecutedQuantity,
		side:          r.Side,
		positionSide:  r.PositionSide,
		orderType:     r.Type,
		updateTime:    r.UpdateTime,
	}.toDomain()
}

func fromCancelResponse(r *futures.CancelOrderResponse) (*domain.OrderResponse, error) {
	if r == nil {
		return nil, fmt.Errorf("빈 주문 취소 응답")
	}
	return orderFields{
		orderID:       r.OrderID,
		symbol:        r.Symbol,
		clientOrderID: r.ClientOrderID,
		status:        r.Status,
		stopPrice:     r.StopPrice,
		origQty:       r.OrigQuantity,
		executedQty:   r.ExecutedQuantity,
		side:          r.Side,
		positionSide:  r.PositionSide,
		orderType:     r.Type,
		updateTime:    r.UpdateTime,
	}.toDomain()
}

// matchBatchResults는 일괄 주문 응답을 요청 순서에 맞춰 정렬합니다.
// 성공한 주문은 clientOrderId로 찾고, 찾지 못한 요청에는 에러를 순서대로 배정합니다.
func matchBatchResults(reqs []domain.OrderRequest, orders []*futures.Order, errs []error) ([]domain.BatchResult, error) {
	byClientID := make(map[string]*futures.Order, len(orders))
	for _, o := range orders {
		if o != nil {
			byClientID[o.ClientOrderID] = o
		}
	}

	pending := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			pending = append(pending, err)
		}
	}

	results := make([]domain.BatchResult, len(reqs))
	for i, req := range reqs {
		if o, ok := byClientID[req.ClientOrderID]; ok {
			resp, err := fromOrder(o)
			if err != nil {
				return nil, err
			}
			results[i] = domain.BatchResult{Order: resp}
			continue
		}
		if len(pending) > 0 {
			results[i] = domain.BatchResult{Err: pending[0]}
			pending = pending[1:]
			continue
		}
		results[i] = domain.BatchResult{Err: fmt.Errorf("일괄 주문 응답에 %s 주문이 없습니다", req.ClientOrderID)}
	}
	return results, nil
}

func toCandle(symbol string, interval domain.TimeInterval, k *futures.Kline) (domain.Candle, error) {
	vals := [5]float64{}
	for i, raw := range [5]string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := domain.ParseDecimal(raw)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("캔들 파싱 실패: %w", err)
		}
		vals[i] = v
	}
	return domain.Candle{
		OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
		CloseTime: time.UnixMilli(k.CloseTime).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
		Symbol:    symbol,
		Interval:  interval,
	}, nil
}

func toBalance(b *futures.Balance) (*domain.Balance, error) {
	vals := [5]float64{}
	for i, raw := range [5]string{b.Balance, b.CrossWalletBalance, b.CrossUnPnl, b.AvailableBalance, b.MaxWithdrawAmount} {
		v, err := domain.ParseDecimal(raw)
		if err != nil {
			return nil, fmt.Errorf("잔고 파싱 실패: %w", err)
		}
		vals[i] = v
	}
	return &domain.Balance{
		AccountAlias:       b.AccountAlias,
		Asset:              b.Asset,
		Balance:            vals[0],
		CrossWalletBalance: vals[1],
		CrossUnPnl:         vals[2],
		Available:          vals[3],
		MaxWithdrawAmount:  vals[4],
		UpdateTime:         time.UnixMilli(b.UpdateTime).UTC(),
	}, nil
}

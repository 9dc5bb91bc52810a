// internal/exchange/binance/client.go
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"

	"github.com/assist-by/hedger/internal/domain"
	"github.com/assist-by/hedger/internal/exchange"
)

const (
	mainnetURL = "https://fapi.binance.com"
	testnetURL = "https://testnet.binancefuture.com"
)

// Client는 바이낸스 USDT-M 선물 API 클라이언트를 구현합니다
type Client struct {
	futures           *futures.Client
	quantityPrecision int
	pricePrecision    int
}

var _ exchange.Exchange = (*Client)(nil)

// ClientOption은 클라이언트 생성 옵션을 정의합니다
type ClientOption func(*Client)

// WithTimeout은 HTTP 클라이언트의 타임아웃을 설정합니다
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.futures.HTTPClient = &http.Client{Timeout: timeout}
	}
}

// WithBaseURL은 기본 URL을 설정합니다
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.futures.BaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTestnet은 테스트넷 사용 여부를 설정합니다
func WithTestnet(useTestnet bool) ClientOption {
	return func(c *Client) {
		if useTestnet {
			c.futures.BaseURL = testnetURL
		} else {
			c.futures.BaseURL = mainnetURL
		}
	}
}

// WithPrecision은 주문 수량/가격 문자열의 소수점 자릿수를 설정합니다
func WithPrecision(quantity, price int) ClientOption {
	return func(c *Client) {
		c.quantityPrecision = quantity
		c.pricePrecision = price
	}
}

// NewClient는 새로운 바이낸스 선물 클라이언트를 생성합니다
func NewClient(apiKey, secretKey string, opts ...ClientOption) *Client {
	fc := futures.NewClient(apiKey, secretKey)
	fc.BaseURL = mainnetURL
	fc.HTTPClient = &http.Client{Timeout: 10 * time.Second}

	c := &Client{
		futures:           fc,
		quantityPrecision: 3,
		pricePrecision:    2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPrice는 심볼의 최신 체결가를 조회합니다
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := c.futures.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("가격 조회 실패: %w", err)
	}
	for _, p := range prices {
		if p != nil && p.Symbol == symbol {
			return domain.ParseDecimal(p.Price)
		}
	}
	return 0, fmt.Errorf("가격 정보가 없습니다: %s", symbol)
}

// GetServerTime은 서버 시간을 조회합니다
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	ms, err := c.futures.NewServerTimeService().Do(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("서버 시간 조회 실패: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// SyncTime은 서버 시간과 로컬 시간의 차이를 서명 요청에 반영합니다
func (c *Client) SyncTime(ctx context.Context) error {
	if _, err := c.futures.NewSetServerTimeService().Do(ctx); err != nil {
		return fmt.Errorf("서버 시간 동기화 실패: %w", err)
	}
	return nil
}

// GetKlines는 캔들 데이터를 조회합니다
func (c *Client) GetKlines(ctx context.Context, symbol string, interval domain.TimeInterval, limit int) (domain.CandleList, error) {
	klines, err := c.futures.NewKlinesService().
		Symbol(symbol).
		Interval(string(interval)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("캔들 데이터 조회 실패: %w", err)
	}

	candles := make(domain.CandleList, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			continue
		}
		candle, err := toCandle(symbol, interval, k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// GetBalance는 자산의 선물 지갑 잔고를 조회합니다
func (c *Client) GetBalance(ctx context.Context, asset string) (*domain.Balance, error) {
	balances, err := c.futures.NewGetBalanceService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("잔고 조회 실패: %w", err)
	}
	for _, b := range balances {
		if b != nil && b.Asset == asset {
			return toBalance(b)
		}
	}
	return nil, fmt.Errorf("%s 잔고 정보가 없습니다", asset)
}

// GetCommissionRate는 심볼의 메이커/테이커 수수료율을 조회합니다
func (c *Client) GetCommissionRate(ctx context.Context, symbol string) (*domain.CommissionRate, error) {
	rate, err := c.futures.NewCommissionRateService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("수수료율 조회 실패: %w", err)
	}
	maker, err := domain.ParseDecimal(rate.MakerCommissionRate)
	if err != nil {
		return nil, fmt.Errorf("메이커 수수료율 파싱 실패: %w", err)
	}
	taker, err := domain.ParseDecimal(rate.TakerCommissionRate)
	if err != nil {
		return nil, fmt.Errorf("테이커 수수료율 파싱 실패: %w", err)
	}
	return &domain.CommissionRate{Symbol: rate.Symbol, Maker: maker, Taker: taker}, nil
}

// PlaceOrder는 단일 주문을 생성합니다
func (c *Client) PlaceOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error) {
	if order.ClientOrderID == "" {
		order.ClientOrderID = uuid.NewString()
	}
	resp, err := c.createOrderService(order).Do(ctx)
	if err != nil {
		if exchange.HasCode(err, exchange.CodeWouldImmediately) {
			return nil, fmt.Errorf("주문 생성 실패: %w: %w", exchange.ErrWouldTrigger, err)
		}
		return nil, fmt.Errorf("주문 생성 실패: %w", err)
	}
	return fromCreateResponse(resp)
}

// PlaceBatchOrders는 최대 5개의 주문을 한 번의 요청으로 생성합니다
func (c *Client) PlaceBatchOrders(ctx context.Context, orders []domain.OrderRequest) ([]domain.BatchResult, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	if len(orders) > domain.MaxBatchOrders {
		return nil, exchange.ErrBatchTooLarge
	}

	services := make([]*futures.CreateOrderService, len(orders))
	for i := range orders {
		if orders[i].ClientOrderID == "" {
			orders[i].ClientOrderID = uuid.NewString()
		}
		services[i] = c.createOrderService(orders[i])
	}

	resp, err := c.futures.NewCreateBatchOrdersService().OrderList(services).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("일괄 주문 생성 실패: %w", err)
	}
	return matchBatchResults(orders, resp.Orders, resp.Errors)
}

// QueryOrder는 주문 상태를 조회합니다
func (c *Client) QueryOrder(ctx context.Context, symbol string, orderID int64) (*domain.OrderResponse, error) {
	order, err := c.futures.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("주문 조회 실패 (ID: %d): %w", orderID, err)
	}
	return fromOrder(order)
}

// CancelOrder는 주문을 취소합니다
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (*domain.OrderResponse, error) {
	resp, err := c.futures.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("주문 취소 실패 (ID: %d): %w", orderID, err)
	}
	return fromCancelResponse(resp)
}

// SetMarginType은 심볼의 마진 모드를 설정합니다. 이미 같은 모드면 성공으로 처리합니다
func (c *Client) SetMarginType(ctx context.Context, symbol string, marginType domain.MarginType) error {
	err := c.futures.NewChangeMarginTypeService().
		Symbol(symbol).
		MarginType(futures.MarginType(marginType)).
		Do(ctx)
	if err != nil && !exchange.HasCode(err, exchange.CodeMarginTypeNoChange) {
		return fmt.Errorf("마진 모드 설정 실패: %w", err)
	}
	return nil
}

// GetPositionMode는 헤지 모드 사용 여부를 조회합니다
func (c *Client) GetPositionMode(ctx context.Context) (bool, error) {
	mode, err := c.futures.NewGetPositionModeService().Do(ctx)
	if err != nil {
		return false, fmt.Errorf("포지션 모드 조회 실패: %w", err)
	}
	return mode.DualSidePosition, nil
}

// SetPositionMode는 포지션 모드를 설정합니다. 이미 같은 모드면 성공으로 처리합니다
func (c *Client) SetPositionMode(ctx context.Context, hedgeMode bool) error {
	err := c.futures.NewChangePositionModeService().DualSide(hedgeMode).Do(ctx)
	if err != nil && !exchange.HasCode(err, exchange.CodePositionModeNoChange) {
		return fmt.Errorf("포지션 모드 설정 실패: %w", err)
	}
	return nil
}

// SetLeverage는 레버리지를 설정합니다
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if _, err := c.futures.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx); err != nil {
		return fmt.Errorf("레버리지 설정 실패: %w", err)
	}
	return nil
}

func (c *Client) createOrderService(order domain.OrderRequest) *futures.CreateOrderService {
	svc := c.futures.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(futures.SideType(order.Side)).
		PositionSide(futures.PositionSideType(order.PositionSide)).
		Type(futures.OrderType(order.Type)).
		Quantity(domain.FormatDecimal(order.Quantity, c.quantityPrecision)).
		NewClientOrderID(order.ClientOrderID)

	if order.Type == domain.StopMarket || order.Type == domain.TakeProfitMarket {
		svc = svc.StopPrice(domain.FormatDecimal(order.StopPrice, c.pricePrecision))
	}
	return svc
}

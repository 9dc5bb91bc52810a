package exchange

import (
	"context"
	"time"

	"github.com/assist-by/hedger/internal/domain"
)

// Exchange는 거래소와의 상호작용을 위한 인터페이스입니다.
type Exchange interface {
	// 시장 데이터 조회
	GetPrice(ctx context.Context, symbol string) (float64, error)
	GetServerTime(ctx context.Context) (time.Time, error)
	GetKlines(ctx context.Context, symbol string, interval domain.TimeInterval, limit int) (domain.CandleList, error)

	// 계정 데이터 조회
	GetBalance(ctx context.Context, asset string) (*domain.Balance, error)
	GetCommissionRate(ctx context.Context, symbol string) (*domain.CommissionRate, error)

	// 거래 기능
	PlaceOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error)
	PlaceBatchOrders(ctx context.Context, orders []domain.OrderRequest) ([]domain.BatchResult, error)
	QueryOrder(ctx context.Context, symbol string, orderID int64) (*domain.OrderResponse, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) (*domain.OrderResponse, error)

	// 설정 기능
	SetMarginType(ctx context.Context, symbol string, marginType domain.MarginType) error
	GetPositionMode(ctx context.Context) (hedgeMode bool, err error)
	SetPositionMode(ctx context.Context, hedgeMode bool) error
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// 시간 동기화
	SyncTime(ctx context.Context) error
}

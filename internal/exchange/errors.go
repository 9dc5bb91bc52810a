package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/adshao/go-binance/v2/common"
)

// 바이낸스 API 에러 코드
const (
	CodeDisconnected         = -1001
	CodeTooManyRequests      = -1003
	CodeTimeout              = -1007
	CodeInvalidTimestamp     = -1021
	CodeWouldImmediately     = -2021 // 스탑 주문이 즉시 트리거됨
	CodeUnknownOrder         = -2011
	CodeMarginTypeNoChange   = -4046
	CodePositionModeNoChange = -4059
)

var (
	// ErrTransport는 재시도 후에도 거래소 호출이 실패했음을 나타냅니다
	ErrTransport = errors.New("거래소 통신 실패")

	// ErrWouldTrigger는 스탑 주문 가격이 이미 지나쳐 즉시 체결될 상황임을 나타냅니다
	ErrWouldTrigger = errors.New("주문이 즉시 트리거됩니다")

	// ErrBatchTooLarge는 일괄 주문 수가 한도를 넘었음을 나타냅니다
	ErrBatchTooLarge = errors.New("일괄 주문은 최대 5개까지 가능합니다")
)

// APICode는 에러에 담긴 바이낸스 에러 코드를 반환합니다
func APICode(err error) (int64, bool) {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	return 0, false
}

// HasCode는 에러가 주어진 바이낸스 에러 코드인지 확인합니다
func HasCode(err error, code int64) bool {
	c, ok := APICode(err)
	return ok && c == code
}

// IsRetryableError는 재시도할 가치가 있는 에러인지 판단합니다
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrWouldTrigger) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if code, ok := APICode(err); ok {
		switch code {
		case CodeDisconnected, CodeTooManyRequests, CodeTimeout, CodeInvalidTimestamp:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// 분류되지 않은 에러는 일시적인 것으로 간주합니다
	return true
}

// WrapTransport는 재시도 한도를 넘긴 에러를 ErrTransport로 감쌉니다
func WrapTransport(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}

package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrTooEarly는 다음 봉까지 너무 많이 남은 시점에 틱이 호출되었음을 나타냅니다
	ErrTooEarly = errors.New("틱이 너무 일찍 호출되었습니다")

	// ErrAlreadyInitialized는 이미 계정 스냅샷이 있는데 초기화를 시도했음을 나타냅니다
	ErrAlreadyInitialized = errors.New("이미 초기화된 계정입니다")

	// ErrNotInitialized는 저장된 계정이 없어 틱을 실행할 수 없음을 나타냅니다
	ErrNotInitialized = errors.New("초기화되지 않은 계정입니다")
)

// Code는 실패 지점별로 고정된 에러 코드입니다
type Code string

const (
	// 1xx: 시간 조건
	CodeTooEarly      Code = "HG-101"
	CodeServerTime    Code = "HG-102"
	CodeWaitExhausted Code = "HG-103"

	// 2xx: 슬롯 정산
	CodePrice          Code = "HG-200"
	CodeQueryBracket   Code = "HG-201"
	CodeCancelBracket  Code = "HG-202"
	CodeTightenStop    Code = "HG-203"
	CodeForcedExit     Code = "HG-204"
	CodeTransition     Code = "HG-205"
	CodeInvariant      Code = "HG-206"
	CodeMissingBracket Code = "HG-207"

	// 3xx: 진입
	CodeSignal       Code = "HG-301"
	CodeNoCapacity   Code = "HG-302"
	CodeSizing       Code = "HG-303"
	CodeEntryOrder   Code = "HG-304"
	CodeBracketOrder Code = "HG-305"
	CodeOpen         Code = "HG-306"

	// 4xx: 저장
	CodeLedger          Code = "HG-401"
	CodeSnapshotLoad    Code = "HG-402"
	CodeSnapshotSave    Code = "HG-403"
	CodeBalanceSnapshot Code = "HG-404"

	// 5xx: 거래소 설정
	CodePositionMode Code = "HG-501"
	CodeMarginType   Code = "HG-502"
	CodeLeverage     Code = "HG-503"
	CodeCommission   Code = "HG-504"
	CodeBalance      Code = "HG-505"
	CodeTimeSync     Code = "HG-506"
)

// TickError는 틱 실패 지점과 원인을 담는 에러입니다
type TickError struct {
	Code Code
	Slot int // 슬롯과 무관한 실패는 -1
	Op   string
	Err  error
}

func (e *TickError) Error() string {
	if e.Slot >= 0 {
		return fmt.Sprintf("[%s] 슬롯 %d %s: %v", e.Code, e.Slot, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Op, e.Err)
}

func (e *TickError) Unwrap() error {
	return e.Err
}

func newTickError(code Code, slot int, op string, err error) *TickError {
	return &TickError{Code: code, Slot: slot, Op: op, Err: err}
}

// CodeOf는 에러에 담긴 TickError 코드를 반환합니다
func CodeOf(err error) (Code, bool) {
	var te *TickError
	if errors.As(err, &te) {
		return te.Code, true
	}
	return "", false
}

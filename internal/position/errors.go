package position

import (
	"errors"
	"fmt"
)

// Error 타입들은 계정/슬롯 관리 중 발생할 수 있는 에러를 정의합니다
var (
	ErrCapacityExceeded    = errors.New("비어 있는 슬롯이 아닙니다")
	ErrNoCapacity          = errors.New("비어 있는 슬롯이 없습니다")
	ErrInvalidQuantity     = errors.New("수량이 정밀도 기준 0입니다")
	ErrInvalidPrice        = errors.New("체결 가격이 올바르지 않습니다")
	ErrInsufficientCapital = errors.New("가용 자본이 부족합니다")
	ErrInconsistentState   = errors.New("계정 상태가 일관되지 않습니다")
	ErrSlotOutOfRange      = errors.New("슬롯 번호가 범위를 벗어났습니다")
	ErrSlotEmpty           = errors.New("슬롯에 포지션이 없습니다")
	ErrExitAlreadyFixed    = errors.New("이미 청산 가격이 정해진 다리입니다")
	ErrWrongStage          = errors.New("현재 단계에서 허용되지 않는 전이입니다")
)

// SlotError는 슬롯 단위 작업의 에러를 확장한 구조체입니다
type SlotError struct {
	Slot int
	Op   string
	Err  error
}

// Error는 error 인터페이스를 구현합니다
func (e *SlotError) Error() string {
	if e.Slot >= 0 {
		return fmt.Sprintf("슬롯 에러 [슬롯: %d, 작업: %s]: %v", e.Slot, e.Op, e.Err)
	}
	return fmt.Sprintf("슬롯 에러 [작업: %s]: %v", e.Op, e.Err)
}

// Unwrap은 내부 에러를 반환합니다 (errors.Is/As 지원을 위함)
func (e *SlotError) Unwrap() error {
	return e.Err
}

// NewSlotError는 새로운 SlotError를 생성합니다
func NewSlotError(slot int, op string, err error) *SlotError {
	return &SlotError{
		Slot: slot,
		Op:   op,
		Err:  err,
	}
}

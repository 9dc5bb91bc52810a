package notification

const (
	ColorSuccess = 0x00FF00 // 녹색
	ColorError   = 0xFF0000 // 빨간색
	ColorInfo    = 0x0000FF // 파란색
	ColorWarning = 0xFFA500 // 주황색
)

// Event는 헤지 쌍 생명주기 알림 종류입니다
type Event string

const (
	EventPairOpened   Event = "PAIR_OPENED"
	EventFirstTrigger Event = "FIRST_TRIGGER"
	EventFinalClose   Event = "FINAL_CLOSE"
	EventForcedExit   Event = "FORCED_EXIT"
)

// Notifier는 알림 전송 인터페이스를 정의합니다
type Notifier interface {
	// SendError는 에러 알림을 전송합니다
	SendError(err error) error

	// SendInfo는 일반 정보 알림을 전송합니다
	SendInfo(message string) error

	// SendTradeInfo는 헤지 쌍 상태 변화를 전송합니다
	SendTradeInfo(info TradeInfo) error
}

// TradeInfo는 한 다리의 상태 변화 정보를 정의합니다
type TradeInfo struct {
	Event      Event
	Symbol     string  // 심볼 (예: BTCUSDT)
	Slot       int     // 슬롯 번호
	TradeID    int64   // 쌍 일련번호
	Side       string  // "LONG" or "SHORT"
	Quantity   float64 // 수량 (코인)
	EntryPrice float64 // 진입가
	ExitPrice  float64 // 청산가 (진입 알림에서는 0)
	StopLoss   float64 // 손절가
	TakeProfit float64 // 익절가
	Capital    float64 // 전이 후 가용 자본
	Leverage   int     // 사용 레버리지
	Reason     string  // 청산 사유
}

// GetColorForEvent는 알림 종류에 따른 색상을 반환합니다
func GetColorForEvent(event Event) int {
	switch event {
	case EventPairOpened:
		return ColorSuccess
	case EventFirstTrigger:
		return ColorWarning
	case EventForcedExit:
		return ColorError
	default:
		return ColorInfo
	}
}

// Nop은 아무것도 전송하지 않는 Notifier입니다
type Nop struct{}

func (Nop) SendError(error) error { return nil }
func (Nop) SendInfo(string) error { return nil }
func (Nop) SendTradeInfo(TradeInfo) error { return nil }

package discord

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/assist-by/hedger/internal/notification"
)

const footer = "Assist by Hedger 🤖"

// Client는 Discord 웹훅 클라이언트입니다
type Client struct {
	tradeWebhook string
	errorWebhook string
	infoWebhook  string
	client       *http.Client
}

var _ notification.Notifier = (*Client)(nil)

// ClientOption은 클라이언트 옵션을 정의합니다
type ClientOption func(*Client)

// WithTimeout은 HTTP 요청 타임아웃을 설정합니다
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// WithHTTPClient는 HTTP 클라이언트를 교체합니다
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient는 새로운 Discord 클라이언트를 생성합니다.
// 비어 있는 웹훅 주소로 가는 알림은 전송하지 않습니다.
func NewClient(tradeWebhook, errorWebhook, infoWebhook string, opts ...ClientOption) *Client {
	c := &Client{
		tradeWebhook: tradeWebhook,
		errorWebhook: errorWebhook,
		infoWebhook:  infoWebhook,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendError는 에러 알림을 전송합니다
func (c *Client) SendError(err error) error {
	embed := NewEmbed().
		SetTitle("에러 발생").
		SetDescription(fmt.Sprintf("```%v```", err)).
		SetColor(ColorError).
		SetFooter(footer).
		SetTimestamp(time.Now())

	return c.sendToWebhook(c.errorWebhook, WebhookMessage{Embeds: []Embed{*embed}})
}

// SendInfo는 일반 정보 알림을 전송합니다
func (c *Client) SendInfo(message string) error {
	embed := NewEmbed().
		SetDescription(message).
		SetColor(ColorInfo).
		SetFooter(footer).
		SetTimestamp(time.Now())

	return c.sendToWebhook(c.infoWebhook, WebhookMessage{Embeds: []Embed{*embed}})
}

// SendTradeInfo는 헤지 쌍 상태 변화를 전송합니다
func (c *Client) SendTradeInfo(info notification.TradeInfo) error {
	embed := NewEmbed().
		SetTitle(fmt.Sprintf("%s %s: %s #%d", eventEmoji(info.Event), info.Event, info.Symbol, info.TradeID)).
		SetColor(notification.GetColorForEvent(info.Event)).
		SetFooter(footer).
		SetTimestamp(time.Now())

	embed.AddField("슬롯", fmt.Sprintf("%d", info.Slot), true).
		AddField("다리", info.Side, true).
		AddField("수량", fmt.Sprintf("%.8f", info.Quantity), true)

	switch info.Event {
	case notification.EventPairOpened:
		embed.SetDescription(fmt.Sprintf(
			"**진입가**: $%.2f\n**손절가**: $%.2f\n**목표가**: $%.2f\n**레버리지**: %dx",
			info.EntryPrice, info.StopLoss, info.TakeProfit, info.Leverage,
		))
	default:
		embed.SetDescription(fmt.Sprintf(
			"**진입가**: $%.2f\n**청산가**: $%.2f\n**사유**: %s",
			info.EntryPrice, info.ExitPrice, info.Reason,
		))
		if info.StopLoss > 0 {
			embed.AddField("남은 다리 손절가", fmt.Sprintf("$%.2f", info.StopLoss), true)
		}
	}
	embed.AddField("가용 자본", fmt.Sprintf("%.4f USDT", info.Capital), false)

	return c.sendToWebhook(c.tradeWebhook, WebhookMessage{Embeds: []Embed{*embed}})
}

func (c *Client) sendToWebhook(webhookURL string, msg WebhookMessage) error {
	if webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("메시지 마샬링 실패: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("요청 생성 실패: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("웹훅 전송 실패: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("웹훅 응답 오류: status %d", resp.StatusCode)
	}
	return nil
}

func eventEmoji(event notification.Event) string {
	switch event {
	case notification.EventPairOpened:
		return "🚀"
	case notification.EventFirstTrigger:
		return "⚠️"
	case notification.EventForcedExit:
		return "🔻"
	default:
		return "✅"
	}
}

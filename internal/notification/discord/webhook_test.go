package discord

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/hedger/internal/notification"
)

type webhookRecorder struct {
	mu       sync.Mutex
	paths    []string
	messages []WebhookMessage
}

func newWebhookServer(t *testing.T, status int) (*httptest.Server, *webhookRecorder) {
	t.Helper()
	rec := &webhookRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg WebhookMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		rec.mu.Lock()
		rec.paths = append(rec.paths, r.URL.Path)
		rec.messages = append(rec.messages, msg)
		rec.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestSendTradeInfo(t *testing.T) {
	srv, rec := newWebhookServer(t, http.StatusNoContent)
	client := NewClient(srv.URL+"/trade", srv.URL+"/error", srv.URL+"/info", WithTimeout(time.Second))

	err := client.SendTradeInfo(notification.TradeInfo{
		Event:      notification.EventFirstTrigger,
		Symbol:     "BTCUSDT",
		Slot:       1,
		TradeID:    3,
		Side:       "LONG",
		Quantity:   0.01,
		EntryPrice: 50000,
		ExitPrice:  49650,
		StopLoss:   49610.28,
		Capital:    994.5,
		Reason:     "STOP_LOSS",
	})
	require.NoError(t, err)

	require.Len(t, rec.messages, 1)
	assert.Equal(t, "/trade", rec.paths[0])
	embed := rec.messages[0].Embeds[0]
	assert.Contains(t, embed.Title, "FIRST_TRIGGER")
	assert.Contains(t, embed.Title, "#3")
	assert.Contains(t, embed.Description, "$49650.00")
	assert.Equal(t, notification.ColorWarning, embed.Color)
}

func TestSendErrorAndInfoRouting(t *testing.T) {
	srv, rec := newWebhookServer(t, http.StatusOK)
	client := NewClient("", srv.URL+"/error", srv.URL+"/info")

	require.NoError(t, client.SendError(errors.New("HG-201 cancel failed")))
	require.NoError(t, client.SendInfo("초기화 완료"))
	// 웹훅이 비어 있으면 전송하지 않습니다
	require.NoError(t, client.SendTradeInfo(notification.TradeInfo{Event: notification.EventPairOpened}))

	assert.Equal(t, []string{"/error", "/info"}, rec.paths)
	assert.Contains(t, rec.messages[0].Embeds[0].Description, "HG-201")
}

func TestSendReportsHTTPFailure(t *testing.T) {
	srv, _ := newWebhookServer(t, http.StatusTooManyRequests)
	client := NewClient(srv.URL, srv.URL, srv.URL)

	err := client.SendInfo("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestEmbedTruncatesLongValues(t *testing.T) {
	long := strings.Repeat("가", maxFieldValueLen+10)
	embed := NewEmbed().AddField("x", long, false)
	assert.Equal(t, maxFieldValueLen, len([]rune(embed.Fields[0].Value)))
}

func TestEmbedBuilder(t *testing.T) {
	at := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	embed := NewEmbed().
		SetTitle("쌍 청산").
		SetDescription(strings.Repeat("a", maxDescriptionLen+1)).
		SetColor(ColorInfo).
		SetFooter("hedger").
		SetTimestamp(at)

	assert.Equal(t, "쌍 청산", embed.Title)
	assert.Equal(t, maxDescriptionLen, len([]rune(embed.Description)))
	assert.True(t, strings.HasSuffix(embed.Description, "…"))
	assert.Equal(t, ColorInfo, embed.Color)
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "hedger", embed.Footer.Text)
	assert.Equal(t, "2024-01-01T11:00:00Z", embed.Timestamp)

	// 제한 이내 값은 그대로 둡니다
	assert.Equal(t, "짧은 값", truncate("짧은 값", maxFieldValueLen))
}

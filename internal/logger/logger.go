package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "hedger"

// New는 서비스 이름이 붙은 zap 로거를 생성합니다.
// development가 true이면 콘솔 형식, 아니면 JSON 형식으로 출력합니다.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("로그 레벨 파싱 실패: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("로거 생성 실패: %w", err)
	}
	return log.With(zap.String("service", serviceName)), nil
}

// Nop은 출력하지 않는 로거를 반환합니다
func Nop() *zap.Logger {
	return zap.NewNop()
}

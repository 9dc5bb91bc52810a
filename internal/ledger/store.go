package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/assist-by/hedger/internal/position"
)

// ErrNoSnapshot은 저장된 계정 스냅샷이 없음을 나타냅니다
var ErrNoSnapshot = errors.New("저장된 계정 스냅샷이 없습니다")

// Store는 주문/거래/잔고 장부와 계정 스냅샷을 sqlite에 보관합니다
type Store struct {
	db *gorm.DB
}

var _ position.Recorder = (*Store)(nil)

// Open은 경로의 sqlite 파일을 열고 테이블을 마이그레이션합니다
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("데이터베이스 경로가 비어 있습니다")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("데이터베이스 디렉터리 생성 실패: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("데이터베이스 열기 실패: %w", err)
	}
	return NewFromDB(db)
}

// NewFromDB는 열린 gorm 연결로 Store를 만듭니다
func NewFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db가 nil입니다")
	}
	models := []interface{}{
		&OrderRecord{},
		&TradeRecord{},
		&BalanceSnapshot{},
		&AccountSnapshot{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("마이그레이션 실패: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return &Store{db: db}, nil
}

// Close는 연결을 닫습니다
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AppendOrderRecords는 주문 장부에 행을 추가합니다. 이미 기록된 주문은 건너뜁니다.
func (s *Store) AppendOrderRecords(ctx context.Context, slot int, tradeID int64, refs ...position.OrderRef) error {
	if len(refs) == 0 {
		return nil
	}
	rows := make([]OrderRecord, len(refs))
	for i, ref := range refs {
		rows[i] = orderRecordFrom(slot, tradeID, ref)
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("주문 장부 기록 실패: %w", err)
	}
	return nil
}

// AppendTradeRecords는 거래 장부에 다리별 행을 추가합니다. 이미 기록된 다리는 건너뜁니다.
func (s *Store) AppendTradeRecords(ctx context.Context, slot int, symbol string, feeRate float64, legs ...position.Position) error {
	if len(legs) == 0 {
		return nil
	}
	rows := make([]TradeRecord, len(legs))
	for i, leg := range legs {
		rows[i] = tradeRecordFrom(slot, symbol, feeRate, leg)
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("거래 장부 기록 실패: %w", err)
	}
	return nil
}

// RecordClosedPair는 청산된 쌍의 주문과 두 다리를 한 트랜잭션으로 기록합니다.
// 저장되지 않은 틱이 다시 실행되어 같은 쌍을 또 청산해도 행은 늘지 않습니다.
func (s *Store) RecordClosedPair(ctx context.Context, pair position.ClosedPair) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txStore := &Store{db: tx}
		if err := txStore.AppendOrderRecords(ctx, pair.Slot, pair.Long.ID, pair.Orders...); err != nil {
			return err
		}
		return txStore.AppendTradeRecords(ctx, pair.Slot, pair.Symbol, pair.FeeRate, pair.Long, pair.Short)
	})
}

// AppendBalanceSnapshot은 잔고 기록을 추가합니다
func (s *Store) AppendBalanceSnapshot(ctx context.Context, snap BalanceSnapshot) error {
	snap.ID = 0
	if err := s.db.WithContext(ctx).Create(&snap).Error; err != nil {
		return fmt.Errorf("잔고 기록 실패: %w", err)
	}
	return nil
}

// SaveAccountSnapshot은 계정 상태를 새 스냅샷 행으로 저장합니다
func (s *Store) SaveAccountSnapshot(ctx context.Context, acct *position.Account) error {
	payload, err := position.Snapshot(acct)
	if err != nil {
		return fmt.Errorf("계정 직렬화 실패: %w", err)
	}
	row := AccountSnapshot{Symbol: acct.Symbol(), Payload: datatypes.JSON(payload)}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("계정 스냅샷 저장 실패: %w", err)
	}
	return nil
}

// LoadAccountSnapshot은 가장 최근 계정 스냅샷을 복원합니다
func (s *Store) LoadAccountSnapshot(ctx context.Context, symbol string) (*position.Account, error) {
	var row AccountSnapshot
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("계정 스냅샷 조회 실패: %w", err)
	}

	acct, err := position.Restore(row.Payload)
	if err != nil {
		return nil, fmt.Errorf("계정 스냅샷 복원 실패 (ID: %d): %w", row.ID, err)
	}
	return acct, nil
}

// HasAccountSnapshot은 심볼의 스냅샷 존재 여부를 확인합니다
func (s *Store) HasAccountSnapshot(ctx context.Context, symbol string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&AccountSnapshot{}).Where("symbol = ?", symbol).Count(&count).Error; err != nil {
		return false, fmt.Errorf("계정 스냅샷 조회 실패: %w", err)
	}
	return count > 0, nil
}

// Summary는 거래 장부 집계입니다
type Summary struct {
	ClosedPairs int64
	Legs        int64
	RealizedPnL float64
	ForcedExits int64
}

// TradeSummary는 심볼의 거래 장부를 집계합니다
func (s *Store) TradeSummary(ctx context.Context, symbol string) (Summary, error) {
	var out struct {
		Legs  int64   `gorm:"column:legs"`
		Pairs int64   `gorm:"column:pairs"`
		PnL   float64 `gorm:"column:pnl"`
	}
	err := s.db.WithContext(ctx).Model(&TradeRecord{}).
		Select("COUNT(*) AS legs, COALESCE(SUM(CASE WHEN side = ? THEN 1 ELSE 0 END), 0) AS pairs, COALESCE(SUM(pnl), 0) AS pnl",
			position.Long.String()).
		Where("symbol = ?", symbol).
		Scan(&out).Error
	if err != nil {
		return Summary{}, fmt.Errorf("거래 장부 집계 실패: %w", err)
	}

	var forced int64
	err = s.db.WithContext(ctx).Model(&TradeRecord{}).
		Where("symbol = ? AND exit_reason = ?", symbol, string(position.ExitForcedMarket)).
		Count(&forced).Error
	if err != nil {
		return Summary{}, fmt.Errorf("강제 청산 집계 실패: %w", err)
	}

	return Summary{ClosedPairs: out.Pairs, Legs: out.Legs, RealizedPnL: out.PnL, ForcedExits: forced}, nil
}

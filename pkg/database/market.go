package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"EquityReach/pkg/model"
)

// MarketDataDB 日别市场数据访问
type MarketDataDB struct {
	db *gorm.DB
}

// Upsert 按 (stock_id, trade_date) 插入或覆盖市场数据
func (m *MarketDataDB) Upsert(data *model.StockMarketData) error {
	err := m.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stock_id"}, {Name: "trade_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"market_cap", "trading_value", "shares_outstanding", "updated_at",
		}),
	}).Create(data).Error

	if err != nil {
		return fmt.Errorf("保存市场数据失败: %w", err)
	}
	return nil
}

// UpsertBatch 单个事务内批量插入或覆盖市场数据（分块提交用）
func (m *MarketDataDB) UpsertBatch(rows []*model.StockMarketData) error {
	if len(rows) == 0 {
		return nil
	}
	err := m.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stock_id"}, {Name: "trade_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"market_cap", "trading_value", "shares_outstanding", "updated_at",
		}),
	}).Create(&rows).Error

	if err != nil {
		return fmt.Errorf("批量保存市场数据失败: %w", err)
	}
	return nil
}

// LatestInWindow 查询 [minDate, targetDate] 区间内市值有效的最近一条记录
// 用于把会计期间末日匹配到最近的市值快照，查不到返回 nil
func (m *MarketDataDB) LatestInWindow(stockID uint, targetDate, minDate time.Time) (*model.StockMarketData, error) {
	var data model.StockMarketData
	err := m.db.Where(
		"stock_id = ? AND trade_date <= ? AND trade_date >= ? AND market_cap IS NOT NULL AND market_cap > 0",
		stockID, targetDate, minDate,
	).Order("trade_date DESC").First(&data).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询市值快照失败: %w", err)
	}
	return &data, nil
}

// GetByDate 查询某只股票某一天的市场数据
func (m *MarketDataDB) GetByDate(stockID uint, date time.Time) (*model.StockMarketData, error) {
	var data model.StockMarketData
	err := m.db.Where("stock_id = ? AND trade_date = ?", stockID, date).First(&data).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询市场数据失败: %w", err)
	}
	return &data, nil
}

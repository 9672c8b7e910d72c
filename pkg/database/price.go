package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"EquityReach/pkg/model"
)

// PriceDB 日线行情数据访问
type PriceDB struct {
	db *gorm.DB
}

// Upsert 按 (stock_id, trade_date) 插入或覆盖行情，后写覆盖先写
func (p *PriceDB) Upsert(price *model.StockPrice) error {
	err := p.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stock_id"}, {Name: "trade_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"open", "high", "low", "close", "volume", "adjusted_close", "updated_at",
		}),
	}).Create(price).Error

	if err != nil {
		return fmt.Errorf("保存行情数据失败: %w", err)
	}
	return nil
}

// UpsertBatch 单个事务内批量插入或覆盖行情（分块提交用）
func (p *PriceDB) UpsertBatch(prices []*model.StockPrice) error {
	if len(prices) == 0 {
		return nil
	}
	err := p.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stock_id"}, {Name: "trade_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"open", "high", "low", "close", "volume", "adjusted_close", "updated_at",
		}),
	}).Create(&prices).Error

	if err != nil {
		return fmt.Errorf("批量保存行情数据失败: %w", err)
	}
	return nil
}

// LastTradeDate 查询某只股票最后一条已落库的交易日（增量采集水位线）
// 没有任何记录时返回 nil
func (p *PriceDB) LastTradeDate(stockID uint) (*time.Time, error) {
	var price model.StockPrice
	err := p.db.Where("stock_id = ?", stockID).
		Order("trade_date DESC").
		First(&price).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询最后交易日失败: %w", err)
	}
	return &price.TradeDate, nil
}

// GetRange 查询某只股票指定区间的行情
func (p *PriceDB) GetRange(stockID uint, start, end time.Time) ([]*model.StockPrice, error) {
	var prices []*model.StockPrice
	err := p.db.Where("stock_id = ? AND trade_date >= ? AND trade_date <= ?", stockID, start, end).
		Order("trade_date").
		Find(&prices).Error

	if err != nil {
		return nil, fmt.Errorf("查询行情区间失败: %w", err)
	}
	return prices, nil
}

package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"EquityReach/pkg/model"
)

// StockDB 股票信息数据访问
type StockDB struct {
	db *gorm.DB
}

// Upsert 按 ticker 插入或更新股票信息
// 首次出现时创建，重复采集时就地更新，不做删除
func (s *StockDB) Upsert(stock *model.Stock) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "market", "sector", "industry", "updated_at"}),
	}).Create(stock).Error

	if err != nil {
		return fmt.Errorf("保存股票信息失败: %w", err)
	}
	return nil
}

// GetByTicker 按代码查询股票
func (s *StockDB) GetByTicker(ticker string) (*model.Stock, error) {
	var stock model.Stock
	err := s.db.First(&stock, "ticker = ?", ticker).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStockNotFound
		}
		return nil, fmt.Errorf("获取股票信息失败: %w", err)
	}
	return &stock, nil
}

// GetByMarket 查询指定市场的全部股票
func (s *StockDB) GetByMarket(market string, limit int) ([]*model.Stock, error) {
	var stocks []*model.Stock
	query := s.db.Where("country = ?", model.CountryKR)
	if market != "" {
		query = query.Where("market = ?", market)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Order("ticker").Find(&stocks).Error; err != nil {
		return nil, fmt.Errorf("查询市场股票失败: %w", err)
	}
	return stocks, nil
}

// GetByTickers 按代码列表查询股票
func (s *StockDB) GetByTickers(tickers []string) ([]*model.Stock, error) {
	var stocks []*model.Stock
	if err := s.db.Where("ticker IN ?", tickers).Find(&stocks).Error; err != nil {
		return nil, fmt.Errorf("查询股票列表失败: %w", err)
	}
	return stocks, nil
}

// GetWithStatements 查询拥有至少一份财务报表的股票
func (s *StockDB) GetWithStatements(market string, limit int) ([]*model.Stock, error) {
	var stocks []*model.Stock
	query := s.db.Where("country = ?", model.CountryKR).
		Where("id IN (SELECT DISTINCT stock_id FROM financial_statements)")
	if market != "" {
		query = query.Where("market = ?", market)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Order("ticker").Find(&stocks).Error; err != nil {
		return nil, fmt.Errorf("查询有报表的股票失败: %w", err)
	}
	return stocks, nil
}

// Count 统计股票数量
func (s *StockDB) Count(market string) (int64, error) {
	var count int64
	query := s.db.Model(&model.Stock{})
	if market != "" {
		query = query.Where("market = ?", market)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计股票数量失败: %w", err)
	}
	return count, nil
}

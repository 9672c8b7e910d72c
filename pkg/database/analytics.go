package database

import (
	"fmt"

	"gorm.io/gorm"

	"EquityReach/pkg/model"
)

// AnalyticsDB 质量检查与筛选所需的只读联合查询
type AnalyticsDB struct {
	db *gorm.DB
}

// latestJoinedSQL 最新年报比率 ⋈ 最新市值的联合查询
// 最新比率 = report_type='annual' 中 fiscal_date 最大的一行
const latestJoinedSQL = `
SELECT s.ticker, s.name, s.market, s.sector, fr.fiscal_date,
       fr.roe, fr.roa, fr.operating_margin, fr.net_margin, fr.debt_ratio,
       fr.per, fr.pbr, fr.psr, md.market_cap
FROM stocks s
JOIN financial_ratios fr
  ON fr.stock_id = s.id AND fr.report_type = 'annual'
JOIN (
  SELECT stock_id, MAX(fiscal_date) AS latest_date
  FROM financial_ratios
  WHERE report_type = 'annual'
  GROUP BY stock_id
) lr ON lr.stock_id = fr.stock_id AND lr.latest_date = fr.fiscal_date
LEFT JOIN (
  SELECT stock_id, MAX(trade_date) AS latest_date
  FROM stock_market_data
  GROUP BY stock_id
) lm ON lm.stock_id = s.id
LEFT JOIN stock_market_data md
  ON md.stock_id = lm.stock_id AND md.trade_date = lm.latest_date
WHERE s.country = ?`

// LatestJoinedRows 查询每只股票的最新年报比率并左连接最新市值
func (a *AnalyticsDB) LatestJoinedRows(market string) ([]model.ScreenRow, error) {
	sql := latestJoinedSQL
	args := []interface{}{model.CountryKR}
	if market != "" {
		sql += " AND s.market = ?"
		args = append(args, market)
	}

	var rows []model.ScreenRow
	if err := a.db.Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询比率联合视图失败: %w", err)
	}
	return rows, nil
}

// StocksWithoutStatements 查询没有任何财务报表的股票
func (a *AnalyticsDB) StocksWithoutStatements(market string, limit int) ([]*model.Stock, error) {
	var stocks []*model.Stock
	query := a.db.Model(&model.Stock{}).
		Joins("LEFT JOIN financial_statements fs ON fs.stock_id = stocks.id").
		Where("fs.id IS NULL")
	if market != "" {
		query = query.Where("stocks.market = ?", market)
	}

	if err := query.Limit(limit).Find(&stocks).Error; err != nil {
		return nil, fmt.Errorf("查询缺失报表股票失败: %w", err)
	}
	return stocks, nil
}

// StocksWithoutMarketCap 查询有报表但没有有效市值的股票
func (a *AnalyticsDB) StocksWithoutMarketCap(market string, limit int) ([]*model.Stock, error) {
	var stocks []*model.Stock
	query := a.db.Model(&model.Stock{}).
		Where("stocks.id IN (SELECT DISTINCT stock_id FROM financial_statements)").
		Where("stocks.id NOT IN (SELECT DISTINCT stock_id FROM stock_market_data WHERE market_cap IS NOT NULL AND market_cap > 0)")
	if market != "" {
		query = query.Where("stocks.market = ?", market)
	}

	if err := query.Limit(limit).Find(&stocks).Error; err != nil {
		return nil, fmt.Errorf("查询缺失市值股票失败: %w", err)
	}
	return stocks, nil
}

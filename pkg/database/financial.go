package database

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"EquityReach/pkg/model"
)

// FinancialDB 财务报表与比率数据访问
type FinancialDB struct {
	db *gorm.DB
}

// UpsertStatement 按 (stock_id, fiscal_year, report_type) 插入或覆盖报表
func (f *FinancialDB) UpsertStatement(statement *model.FinancialStatement) error {
	err := f.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stock_id"}, {Name: "fiscal_year"}, {Name: "report_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"report_date", "revenue", "operating_income", "net_income", "ebitda",
			"total_assets", "total_liabilities", "total_equity",
			"operating_cash_flow", "investing_cash_flow", "financing_cash_flow",
			"updated_at",
		}),
	}).Create(statement).Error

	if err != nil {
		return fmt.Errorf("保存财务报表失败: %w", err)
	}
	return nil
}

// GetStatement 查询某只股票某个会计期间的报表，查不到返回 nil
func (f *FinancialDB) GetStatement(stockID uint, fiscalYear int, reportType string) (*model.FinancialStatement, error) {
	var statement model.FinancialStatement
	err := f.db.Where(
		"stock_id = ? AND fiscal_year = ? AND report_type = ?",
		stockID, fiscalYear, reportType,
	).First(&statement).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询财务报表失败: %w", err)
	}
	return &statement, nil
}

// GetStatementsByStock 查询某只股票的全部报表，fiscalYear 为 0 表示不限年度
func (f *FinancialDB) GetStatementsByStock(stockID uint, fiscalYear int) ([]*model.FinancialStatement, error) {
	var statements []*model.FinancialStatement
	query := f.db.Where("stock_id = ?", stockID)
	if fiscalYear > 0 {
		query = query.Where("fiscal_year = ?", fiscalYear)
	}

	if err := query.Order("fiscal_year, report_type").Find(&statements).Error; err != nil {
		return nil, fmt.Errorf("查询财务报表列表失败: %w", err)
	}
	return statements, nil
}

// LatestFiscalYear 查询某只股票年报的最新年度（增量采集水位线），没有返回 0
func (f *FinancialDB) LatestFiscalYear(stockID uint) (int, error) {
	var year *int
	err := f.db.Model(&model.FinancialStatement{}).
		Where("stock_id = ? AND report_type = ?", stockID, model.ReportAnnual).
		Select("MAX(fiscal_year)").
		Scan(&year).Error

	if err != nil {
		return 0, fmt.Errorf("查询最新报表年度失败: %w", err)
	}
	if year == nil {
		return 0, nil
	}
	return *year, nil
}

// UpsertRatio 按 (stock_id, fiscal_date, report_type) 插入或覆盖比率
// 比率只由重算产生，同键重算是覆盖而不是新增
func (f *FinancialDB) UpsertRatio(ratio *model.FinancialRatio) error {
	err := f.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "stock_id"}, {Name: "fiscal_date"}, {Name: "report_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"roe", "roa", "operating_margin", "net_margin", "debt_ratio",
			"per", "pbr", "psr", "updated_at",
		}),
	}).Create(ratio).Error

	if err != nil {
		return fmt.Errorf("保存财务比率失败: %w", err)
	}
	return nil
}

// GetRatio 查询某只股票某个会计期间的比率，查不到返回 nil
func (f *FinancialDB) GetRatio(stockID uint, fiscalDate string, reportType string) (*model.FinancialRatio, error) {
	var ratio model.FinancialRatio
	err := f.db.Where(
		"stock_id = ? AND fiscal_date = ? AND report_type = ?",
		stockID, fiscalDate, reportType,
	).First(&ratio).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询财务比率失败: %w", err)
	}
	return &ratio, nil
}

// StockIDsWithStatements 查询拥有至少一份报表的股票 ID 列表
func (f *FinancialDB) StockIDsWithStatements(market string) ([]uint, error) {
	return f.distinctStockIDs("financial_statements", market, "")
}

// StockIDsWithRatios 查询拥有至少一条比率的股票 ID 列表
func (f *FinancialDB) StockIDsWithRatios(market string) ([]uint, error) {
	return f.distinctStockIDs("financial_ratios", market, "")
}

// StockIDsWithMarketCap 查询拥有有效市值数据的股票 ID 列表
func (f *FinancialDB) StockIDsWithMarketCap(market string) ([]uint, error) {
	return f.distinctStockIDs("stock_market_data", market, "t.market_cap IS NOT NULL AND t.market_cap > 0")
}

// distinctStockIDs 按事实表统计去重后的股票 ID
func (f *FinancialDB) distinctStockIDs(table, market, extra string) ([]uint, error) {
	var ids []uint
	query := f.db.Table(table+" AS t").
		Distinct("t.stock_id").
		Joins("JOIN stocks s ON s.id = t.stock_id")
	if market != "" {
		query = query.Where("s.market = ?", market)
	}
	if extra != "" {
		query = query.Where(extra)
	}

	if err := query.Pluck("t.stock_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("统计事实覆盖失败: %w", err)
	}
	return ids, nil
}

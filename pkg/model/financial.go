package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 报告类型：年报或单季度（非累计）
const (
	ReportAnnual = "annual"
	ReportQ1     = "Q1"
	ReportQ2     = "Q2"
	ReportQ3     = "Q3"
)

// FinancialStatement 财务报表数据，(stock_id, fiscal_year, report_type) 唯一
// 十个科目相互独立，缺失存 NULL（零是有效值，与未知不同）
type FinancialStatement struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StockID    uint      `gorm:"not null;uniqueIndex:idx_fs_stock_period" json:"stock_id"`
	Stock      *Stock    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	FiscalYear int       `gorm:"not null;uniqueIndex:idx_fs_stock_period" json:"fiscal_year"`
	ReportType string    `gorm:"size:20;not null;uniqueIndex:idx_fs_stock_period" json:"report_type"`
	ReportDate time.Time `gorm:"type:date;not null;index" json:"report_date"`

	// 损益表
	Revenue         *decimal.Decimal `gorm:"type:decimal(20,2)" json:"revenue,omitempty"`
	OperatingIncome *decimal.Decimal `gorm:"type:decimal(20,2)" json:"operating_income,omitempty"`
	NetIncome       *decimal.Decimal `gorm:"type:decimal(20,2)" json:"net_income,omitempty"`
	EBITDA          *decimal.Decimal `gorm:"type:decimal(20,2)" json:"ebitda,omitempty"`

	// 资产负债表
	TotalAssets      *decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_assets,omitempty"`
	TotalLiabilities *decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_liabilities,omitempty"`
	TotalEquity      *decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_equity,omitempty"`

	// 现金流量表
	OperatingCashFlow *decimal.Decimal `gorm:"type:decimal(20,2)" json:"operating_cash_flow,omitempty"`
	InvestingCashFlow *decimal.Decimal `gorm:"type:decimal(20,2)" json:"investing_cash_flow,omitempty"`
	FinancingCashFlow *decimal.Decimal `gorm:"type:decimal(20,2)" json:"financing_cash_flow,omitempty"`

	Currency  string    `gorm:"size:10;default:KRW" json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (FinancialStatement) TableName() string {
	return "financial_statements"
}

// FinancialRatio 财务比率，(stock_id, fiscal_date, report_type) 唯一
// 由报表与市值派生，只会被重算覆盖，不允许手工编辑
type FinancialRatio struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StockID    uint      `gorm:"not null;uniqueIndex:idx_ratio_stock_period" json:"stock_id"`
	Stock      *Stock    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	FiscalDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_ratio_stock_period;index" json:"fiscal_date"`
	ReportType string    `gorm:"size:20;not null;uniqueIndex:idx_ratio_stock_period" json:"report_type"`

	// 盈利能力
	ROE             *decimal.Decimal `gorm:"column:roe;type:decimal(10,4)" json:"roe,omitempty"`
	ROA             *decimal.Decimal `gorm:"column:roa;type:decimal(10,4)" json:"roa,omitempty"`
	OperatingMargin *decimal.Decimal `gorm:"type:decimal(10,4)" json:"operating_margin,omitempty"`
	NetMargin       *decimal.Decimal `gorm:"type:decimal(10,4)" json:"net_margin,omitempty"`

	// 稳定性
	DebtRatio *decimal.Decimal `gorm:"type:decimal(10,4)" json:"debt_ratio,omitempty"`

	// 估值
	PER *decimal.Decimal `gorm:"column:per;type:decimal(10,4)" json:"per,omitempty"`
	PBR *decimal.Decimal `gorm:"column:pbr;type:decimal(10,4)" json:"pbr,omitempty"`
	PSR *decimal.Decimal `gorm:"column:psr;type:decimal(10,4)" json:"psr,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (FinancialRatio) TableName() string {
	return "financial_ratios"
}

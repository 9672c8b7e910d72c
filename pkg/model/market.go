package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockMarketData 日别市场数据（市值、成交额、流通股数）
// 约定：零值不入库，无数据一律存 NULL
type StockMarketData struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	StockID           uint             `gorm:"not null;uniqueIndex:idx_market_stock_date" json:"stock_id"`
	Stock             *Stock           `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	TradeDate         time.Time        `gorm:"type:date;not null;uniqueIndex:idx_market_stock_date;index" json:"trade_date"`
	MarketCap         *decimal.Decimal `gorm:"type:decimal(20,2)" json:"market_cap,omitempty"`
	TradingValue      *decimal.Decimal `gorm:"type:decimal(20,2)" json:"trading_value,omitempty"`
	SharesOutstanding *int64           `json:"shares_outstanding,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// TableName 指定表名
func (StockMarketData) TableName() string {
	return "stock_market_data"
}

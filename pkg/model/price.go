package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockPrice 日线行情数据，(stock_id, trade_date) 唯一
type StockPrice struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	StockID       uint             `gorm:"not null;uniqueIndex:idx_price_stock_date" json:"stock_id"`
	Stock         *Stock           `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	TradeDate     time.Time        `gorm:"type:date;not null;uniqueIndex:idx_price_stock_date;index" json:"trade_date"`
	Open          *decimal.Decimal `gorm:"type:decimal(20,4)" json:"open,omitempty"`
	High          *decimal.Decimal `gorm:"type:decimal(20,4)" json:"high,omitempty"`
	Low           *decimal.Decimal `gorm:"type:decimal(20,4)" json:"low,omitempty"`
	Close         decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"close"`
	Volume        *int64           `json:"volume,omitempty"`
	AdjustedClose *decimal.Decimal `gorm:"type:decimal(20,4)" json:"adjusted_close,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// TableName 指定表名
func (StockPrice) TableName() string {
	return "stock_prices"
}

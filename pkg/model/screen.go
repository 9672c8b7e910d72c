package model

import (
	"time"
)

// ScreenRow 最新年报比率与最新市值左连接后的一行
// 数值字段为空表示该比率在库里就是 NULL
type ScreenRow struct {
	Ticker          string    `gorm:"column:ticker" json:"ticker"`
	Name            string    `gorm:"column:name" json:"name"`
	Market          string    `gorm:"column:market" json:"market"`
	Sector          *string   `gorm:"column:sector" json:"sector,omitempty"`
	FiscalDate      time.Time `gorm:"column:fiscal_date" json:"fiscal_date"`
	ROE             *float64  `gorm:"column:roe" json:"roe,omitempty"`
	ROA             *float64  `gorm:"column:roa" json:"roa,omitempty"`
	OperatingMargin *float64  `gorm:"column:operating_margin" json:"operating_margin,omitempty"`
	NetMargin       *float64  `gorm:"column:net_margin" json:"net_margin,omitempty"`
	DebtRatio       *float64  `gorm:"column:debt_ratio" json:"debt_ratio,omitempty"`
	PER             *float64  `gorm:"column:per" json:"per,omitempty"`
	PBR             *float64  `gorm:"column:pbr" json:"pbr,omitempty"`
	PSR             *float64  `gorm:"column:psr" json:"psr,omitempty"`
	MarketCap       *float64  `gorm:"column:market_cap" json:"market_cap,omitempty"`
}

package model

import (
	"time"
)

// 市场代码
const (
	MarketKOSPI  = "KOSPI"
	MarketKOSDAQ = "KOSDAQ"
	MarketKONEX  = "KONEX"
)

// CountryKR 韩国市场国家代码
const CountryKR = "KR"

// Stock 股票基本信息
type Stock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Ticker    string    `gorm:"size:20;uniqueIndex;not null" json:"ticker"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Market    string    `gorm:"size:20;not null;index" json:"market"`
	Sector    *string   `gorm:"size:100" json:"sector,omitempty"`
	Industry  *string   `gorm:"size:100" json:"industry,omitempty"`
	Country   string    `gorm:"size:10;not null;index" json:"country"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Stock) TableName() string {
	return "stocks"
}

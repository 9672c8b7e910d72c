package provider

import (
	"errors"
	"time"
)

// ErrProviderUnavailable 数据源网络或服务异常
var ErrProviderUnavailable = errors.New("数据源不可用")

// ErrCorpCodeNotFound 未在 DART 全量名录中找到公司唯一编号
var ErrCorpCodeNotFound = errors.New("未找到公司唯一编号")

// Listing 上市股票条目
type Listing struct {
	Ticker string
	Name   string
	Sector *string
}

// DailyBar 单日行情
type DailyBar struct {
	Date   time.Time
	Open   *float64
	High   *float64
	Low    *float64
	Close  float64
	Volume *int64
}

// SnapshotRow 单只股票某日的市场快照
// 市值与成交额同时为零/缺失时表示当日休市，不是数据点
type SnapshotRow struct {
	Ticker            string
	MarketCap         *float64
	TradingValue      *float64
	SharesOutstanding *int64
}

// RawAccountRow 财务报表原始科目行
type RawAccountRow struct {
	Category    string // 报表分类：IS, BS, CF
	AccountName string
	Amount      string // 带千分位的金额字符串
}

// ListingSource 上市名单数据源
type ListingSource interface {
	FetchListing(market string) ([]Listing, error)
}

// PriceSource 日线行情数据源
// 无数据的区间返回空切片，不算错误
type PriceSource interface {
	FetchDailyBars(ticker string, start, end time.Time) ([]DailyBar, error)
}

// SnapshotSource 市场快照数据源
type SnapshotSource interface {
	FetchMarketSnapshot(market string, date time.Time) ([]SnapshotRow, error)
}

// StatementSource 财务报表数据源
// ResolveCorpCode 是全量名录查询，实现方必须缓存结果
type StatementSource interface {
	ResolveCorpCode(ticker string) (string, error)
	FetchStatement(corpCode string, fiscalYear int, reportType string) ([]RawAccountRow, error)
}

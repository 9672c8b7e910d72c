package model

import (
	"time"
)

// CollectMode 采集模式
type CollectMode string

const (
	ModeIncremental CollectMode = "incremental" // 增量：从最后一条已落库的日期之后开始
	ModeFull        CollectMode = "full"        // 全量：固定回溯窗口
)

// CollectionError 单只股票的采集失败记录
type CollectionError struct {
	Ticker  string `json:"ticker"`
	Message string `json:"message"`
}

// CollectionResult 批量采集结果
// 单只股票失败不会中断批次，只会记入 Errors
type CollectionResult struct {
	RunID            string            `json:"run_id"`
	Market           string            `json:"market"`
	Mode             CollectMode       `json:"mode"`
	StocksProcessed  int               `json:"stocks_processed"`
	StocksSucceeded  int               `json:"stocks_succeeded"`
	StocksFailed     int               `json:"stocks_failed"`
	ListingsSaved    int               `json:"listings_saved"`
	PricesSaved      int               `json:"prices_saved"`
	SnapshotsSaved   int               `json:"snapshots_saved"`
	HolidaysDetected int               `json:"holidays_detected"`
	Errors           []CollectionError `json:"errors"`
	StartTime        time.Time         `json:"start_time"`
	EndTime          time.Time         `json:"end_time"`
	DurationSeconds  float64           `json:"duration_seconds"`
}

// StatementBatchResult 财务报表批量采集结果
type StatementBatchResult struct {
	RunID               string            `json:"run_id"`
	StartYear           int               `json:"start_year"`
	EndYear             int               `json:"end_year"`
	StocksProcessed     int               `json:"stocks_processed"`
	StocksSucceeded     int               `json:"stocks_succeeded"`
	StocksFailed        int               `json:"stocks_failed"`
	StocksSkipped       int               `json:"stocks_skipped"`
	StatementsCollected int               `json:"statements_collected"`
	StatementsSkipped   int               `json:"statements_skipped"`
	Errors              []CollectionError `json:"errors"`
	StartTime           time.Time         `json:"start_time"`
	EndTime             time.Time         `json:"end_time"`
	DurationSeconds     float64           `json:"duration_seconds"`
}

// RatioDetail 单个会计期间的比率计算明细
type RatioDetail struct {
	Period          string   `json:"period"`
	FiscalDate      string   `json:"fiscal_date"`
	ROE             *float64 `json:"roe,omitempty"`
	ROA             *float64 `json:"roa,omitempty"`
	OperatingMargin *float64 `json:"operating_margin,omitempty"`
	NetMargin       *float64 `json:"net_margin,omitempty"`
	DebtRatio       *float64 `json:"debt_ratio,omitempty"`
	PER             *float64 `json:"per,omitempty"`
	PBR             *float64 `json:"pbr,omitempty"`
	PSR             *float64 `json:"psr,omitempty"`
}

// RatioResult 单只股票的比率计算结果
type RatioResult struct {
	Ticker           string        `json:"ticker"`
	Name             string        `json:"name"`
	TotalStatements  int           `json:"total_statements"`
	RatiosCalculated int           `json:"ratios_calculated"`
	RatiosSaved      int           `json:"ratios_saved"`
	RatiosFailed     int           `json:"ratios_failed"`
	Details          []RatioDetail `json:"details"`
}

// RatioBatchResult 批量比率计算结果
type RatioBatchResult struct {
	TotalStocks           int               `json:"total_stocks"`
	StocksProcessed       int               `json:"stocks_processed"`
	StocksSucceeded       int               `json:"stocks_succeeded"`
	StocksFailed          int               `json:"stocks_failed"`
	TotalRatiosCalculated int               `json:"total_ratios_calculated"`
	TotalRatiosSaved      int               `json:"total_ratios_saved"`
	Errors                []CollectionError `json:"errors"`
}

package quality

import (
	"fmt"
	"time"

	"EquityReach/pkg/model"
)

// 比率合理区间（闭区间），越界视为异常值
type valueBound struct {
	min float64
	max float64
}

var ratioBounds = map[string]valueBound{
	"roe":              {-100, 100},
	"roa":              {-100, 100},
	"operating_margin": {-100, 100},
	"net_margin":       {-100, 100},
	"debt_ratio":       {0, 1000},
	"per":              {-100, 1000},
	"pbr":              {-10, 100},
	"psr":              {-10, 100},
}

// nullMajorityThreshold 单只股票空比率过半的判定阈值（6 个核心字段中 ≥4 个为空）
const nullMajorityThreshold = 4

// 综合评分权重：覆盖率 0.5、异常率 0.3、缺失率 0.2
const (
	weightCoverage = 0.5
	weightAnomaly  = 0.3
	weightMissing  = 0.2
)

// anomalyCheckLimit 异常扫描最多检查的行数
const anomalyCheckLimit = 100

// Anomaly 单条数据异常
type Anomaly struct {
	Ticker string   `json:"ticker"`
	Name   string   `json:"name"`
	Field  string   `json:"field"`
	Value  *float64 `json:"value,omitempty"`
	Reason string   `json:"reason"`
}

// AnomalyCounts 三类异常的条目数
// 极端值和空值过半按股票计数，负估值按字段计数
type AnomalyCounts struct {
	ExtremeValues  int `json:"extreme_values"`
	NegativeValues int `json:"negative_values"`
	HighNullRatio  int `json:"high_null_ratio"`
}

func (c AnomalyCounts) total() int {
	return c.ExtremeValues + c.NegativeValues + c.HighNullRatio
}

// OverlapReport 报表数据与市值数据的交集与差集
type OverlapReport struct {
	FSAndMC int `json:"fs_and_mc"`
	FSOnly  int `json:"fs_only"`
	MCOnly  int `json:"mc_only"`
}

// CalculationStatus 比率计算进度
// ready = 报表和市值都齐的股票，pending = 齐了但还没算出比率的
type CalculationStatus struct {
	Ready      int `json:"ready"`
	Calculated int `json:"calculated"`
	Pending    int `json:"pending"`
}

// CoverageReport 数据覆盖统计
type CoverageReport struct {
	TotalStocks       int64             `json:"total_stocks"`
	WithStatements    int               `json:"with_statements"`
	WithRatios        int               `json:"with_ratios"`
	WithMarketCap     int               `json:"with_market_cap"`
	StatementCoverage float64           `json:"statement_coverage"`
	RatioCoverage     float64           `json:"ratio_coverage"`
	MarketCapCoverage float64           `json:"market_cap_coverage"`
	Overlap           OverlapReport     `json:"data_overlap"`
	Calculation       CalculationStatus `json:"calculation_status"`
}

// MissingReport 缺失数据清单（抽样，不是全量）
type MissingReport struct {
	WithoutStatements []string `json:"without_statements"`
	WithoutMarketCap  []string `json:"without_market_cap"`
}

// Report 数据质量报告
type Report struct {
	Market       string         `json:"market,omitempty"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Coverage     CoverageReport `json:"coverage"`
	Missing      MissingReport  `json:"missing"`
	RowsChecked  int            `json:"rows_checked"`
	Anomalies    []Anomaly      `json:"anomalies"`
	AnomalyCount AnomalyCounts  `json:"anomaly_counts"`
	AnomalyRate  float64        `json:"anomaly_rate"`
	MissingRate  float64        `json:"missing_rate"`
	Score        float64        `json:"score"`
	Grade        string         `json:"grade"`
}

// missingSampleLimit 缺失清单抽样条数
const missingSampleLimit = 50

// StockCounter 股票总量统计
type StockCounter interface {
	Count(market string) (int64, error)
}

// FactStore 事实表覆盖统计
type FactStore interface {
	StockIDsWithStatements(market string) ([]uint, error)
	StockIDsWithRatios(market string) ([]uint, error)
	StockIDsWithMarketCap(market string) ([]uint, error)
}

// AnalyticsStore 最新比率行与缺失清单读取
type AnalyticsStore interface {
	LatestJoinedRows(market string) ([]model.ScreenRow, error)
	StocksWithoutStatements(market string, limit int) ([]*model.Stock, error)
	StocksWithoutMarketCap(market string, limit int) ([]*model.Stock, error)
}

// Checker 数据质量检查器
// 只读检查，绝不修改数据；评分 = 覆盖率 50% + 无异常率 30% + 无缺失率 20%
type Checker struct {
	stocks    StockCounter
	facts     FactStore
	analytics AnalyticsStore
}

// NewChecker 创建质量检查器
func NewChecker(stocks StockCounter, facts FactStore, analytics AnalyticsStore) *Checker {
	return &Checker{stocks: stocks, facts: facts, analytics: analytics}
}

// GenerateReport 生成指定市场的数据质量报告，market 为空时覆盖全库
func (c *Checker) GenerateReport(market string) (*Report, error) {
	coverage, err := c.checkCoverage(market)
	if err != nil {
		return nil, err
	}

	missing, err := c.checkMissing(market)
	if err != nil {
		return nil, err
	}

	rows, err := c.analytics.LatestJoinedRows(market)
	if err != nil {
		return nil, fmt.Errorf("查询最新比率失败: %w", err)
	}
	if len(rows) > anomalyCheckLimit {
		rows = rows[:anomalyCheckLimit]
	}

	anomalies := make([]Anomaly, 0)
	var counts AnomalyCounts
	for _, row := range rows {
		found, rowCounts := checkRow(row)
		anomalies = append(anomalies, found...)
		counts.ExtremeValues += rowCounts.ExtremeValues
		counts.NegativeValues += rowCounts.NegativeValues
		counts.HighNullRatio += rowCounts.HighNullRatio
	}

	report := &Report{
		Market:       market,
		GeneratedAt:  time.Now(),
		Coverage:     *coverage,
		Missing:      *missing,
		RowsChecked:  len(rows),
		Anomalies:    anomalies,
		AnomalyCount: counts,
	}

	// 异常率 = 三类异常条目总数 / 受检行数；一行可贡献多条
	anomalyScore := 100.0
	if len(rows) > 0 {
		report.AnomalyRate = float64(counts.total()) / float64(len(rows)) * 100
		anomalyScore = clampScore(100 - report.AnomalyRate)
	}

	// 缺失率 = (缺报表 + 缺市值) / 股票总数
	missingScore := 100.0
	if coverage.TotalStocks > 0 {
		totalMissing := len(missing.WithoutStatements) + len(missing.WithoutMarketCap)
		report.MissingRate = float64(totalMissing) / float64(coverage.TotalStocks) * 100
		missingScore = clampScore(100 - report.MissingRate)
	}

	report.Score = clampScore(
		weightCoverage*coverage.RatioCoverage +
			weightAnomaly*anomalyScore +
			weightMissing*missingScore)
	report.Grade = gradeFor(report.Score)

	return report, nil
}

// checkCoverage 统计报表、比率、市值三类事实的覆盖率
func (c *Checker) checkCoverage(market string) (*CoverageReport, error) {
	total, err := c.stocks.Count(market)
	if err != nil {
		return nil, fmt.Errorf("统计股票总数失败: %w", err)
	}

	withStatements, err := c.facts.StockIDsWithStatements(market)
	if err != nil {
		return nil, err
	}
	withRatios, err := c.facts.StockIDsWithRatios(market)
	if err != nil {
		return nil, err
	}
	withMarketCap, err := c.facts.StockIDsWithMarketCap(market)
	if err != nil {
		return nil, err
	}

	coverage := &CoverageReport{
		TotalStocks:    total,
		WithStatements: len(withStatements),
		WithRatios:     len(withRatios),
		WithMarketCap:  len(withMarketCap),
	}
	if total > 0 {
		coverage.StatementCoverage = float64(len(withStatements)) / float64(total) * 100
		coverage.RatioCoverage = float64(len(withRatios)) / float64(total) * 100
		coverage.MarketCapCoverage = float64(len(withMarketCap)) / float64(total) * 100
	}

	// 交并差定位哪些股票具备计算条件、哪些被单边数据卡住
	fsSet := toIDSet(withStatements)
	mcSet := toIDSet(withMarketCap)
	ratioSet := toIDSet(withRatios)

	for id := range fsSet {
		if mcSet[id] {
			coverage.Overlap.FSAndMC++
			if !ratioSet[id] {
				coverage.Calculation.Pending++
			}
		} else {
			coverage.Overlap.FSOnly++
		}
	}
	for id := range mcSet {
		if !fsSet[id] {
			coverage.Overlap.MCOnly++
		}
	}
	coverage.Calculation.Ready = coverage.Overlap.FSAndMC
	coverage.Calculation.Calculated = len(ratioSet)

	return coverage, nil
}

func toIDSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// checkMissing 抽样列出缺财报、有财报但缺市值的股票
func (c *Checker) checkMissing(market string) (*MissingReport, error) {
	withoutStatements, err := c.analytics.StocksWithoutStatements(market, missingSampleLimit)
	if err != nil {
		return nil, fmt.Errorf("查询缺财报股票失败: %w", err)
	}
	withoutMarketCap, err := c.analytics.StocksWithoutMarketCap(market, missingSampleLimit)
	if err != nil {
		return nil, fmt.Errorf("查询缺市值股票失败: %w", err)
	}

	missing := &MissingReport{
		WithoutStatements: make([]string, 0, len(withoutStatements)),
		WithoutMarketCap:  make([]string, 0, len(withoutMarketCap)),
	}
	for _, stock := range withoutStatements {
		missing.WithoutStatements = append(missing.WithoutStatements, stock.Ticker)
	}
	for _, stock := range withoutMarketCap {
		missing.WithoutMarketCap = append(missing.WithoutMarketCap, stock.Ticker)
	}
	return missing, nil
}

// checkRow 检查单只股票最新比率的异常
// 极端值不论涉及几个字段都只算一条，负估值每个字段算一条
func checkRow(row model.ScreenRow) ([]Anomaly, AnomalyCounts) {
	anomalies := make([]Anomaly, 0)
	var counts AnomalyCounts

	fields := []struct {
		name  string
		value *float64
	}{
		{"roe", row.ROE},
		{"roa", row.ROA},
		{"operating_margin", row.OperatingMargin},
		{"net_margin", row.NetMargin},
		{"debt_ratio", row.DebtRatio},
		{"per", row.PER},
		{"pbr", row.PBR},
		{"psr", row.PSR},
	}

	extreme := false
	for _, field := range fields {
		if field.value == nil {
			continue
		}
		bound := ratioBounds[field.name]
		if *field.value < bound.min || *field.value > bound.max {
			extreme = true
			anomalies = append(anomalies, Anomaly{
				Ticker: row.Ticker,
				Name:   row.Name,
				Field:  field.name,
				Value:  field.value,
				Reason: fmt.Sprintf("超出合理区间 [%.0f, %.0f]", bound.min, bound.max),
			})
		}
	}
	if extreme {
		counts.ExtremeValues++
	}

	// 估值比率为负说明基本面数据可疑
	for _, field := range []struct {
		name  string
		value *float64
	}{
		{"per", row.PER}, {"pbr", row.PBR}, {"psr", row.PSR},
	} {
		if field.value != nil && *field.value < 0 {
			counts.NegativeValues++
			anomalies = append(anomalies, Anomaly{
				Ticker: row.Ticker,
				Name:   row.Name,
				Field:  field.name,
				Value:  field.value,
				Reason: "估值比率为负",
			})
		}
	}

	// 核心比率过半为空，说明这条比率记录基本没用
	nullCount := 0
	for _, value := range []*float64{
		row.ROE, row.ROA, row.OperatingMargin, row.NetMargin, row.PER, row.PBR,
	} {
		if value == nil {
			nullCount++
		}
	}
	if nullCount >= nullMajorityThreshold {
		counts.HighNullRatio++
		anomalies = append(anomalies, Anomaly{
			Ticker: row.Ticker,
			Name:   row.Name,
			Field:  "ratios",
			Reason: fmt.Sprintf("核心比率 %d/6 为空", nullCount),
		})
	}

	return anomalies, counts
}

// gradeFor 按分数定级：90/80/70/60 分界
func gradeFor(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// clampScore 把评分限制在 [0, 100]
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

package screener

import (
	"fmt"
	"sort"

	"EquityReach/pkg/model"
)

// 预设筛选阈值
const (
	undervaluedMaxPER = 10.0
	undervaluedMaxPBR = 1.0
	qualityMinROE     = 15.0
	qualityMaxDebt    = 100.0
	growthMinROE      = 10.0
	growthMaxPER      = 30.0
)

// defaultLimit 默认返回条数
const defaultLimit = 50

// Filter 自定义筛选条件
// 每个上下界都可选；条件涉及的比率为空时该股票不满足条件
type Filter struct {
	Market string `json:"market,omitempty"`
	Sector string `json:"sector,omitempty"`

	MinROE             *float64 `json:"min_roe,omitempty"`
	MaxROE             *float64 `json:"max_roe,omitempty"`
	MinROA             *float64 `json:"min_roa,omitempty"`
	MaxROA             *float64 `json:"max_roa,omitempty"`
	MinOperatingMargin *float64 `json:"min_operating_margin,omitempty"`
	MaxOperatingMargin *float64 `json:"max_operating_margin,omitempty"`
	MinNetMargin       *float64 `json:"min_net_margin,omitempty"`
	MaxNetMargin       *float64 `json:"max_net_margin,omitempty"`
	MinDebtRatio       *float64 `json:"min_debt_ratio,omitempty"`
	MaxDebtRatio       *float64 `json:"max_debt_ratio,omitempty"`
	MinPER             *float64 `json:"min_per,omitempty"`
	MaxPER             *float64 `json:"max_per,omitempty"`
	MinPBR             *float64 `json:"min_pbr,omitempty"`
	MaxPBR             *float64 `json:"max_pbr,omitempty"`
	MinPSR             *float64 `json:"min_psr,omitempty"`
	MaxPSR             *float64 `json:"max_psr,omitempty"`

	SortBy   string `json:"sort_by,omitempty"` // roe/roa/operating_margin/net_margin/debt_ratio/per/pbr/psr/market_cap
	SortDesc bool   `json:"sort_desc,omitempty"`
	Limit    int    `json:"limit,omitempty"`

	// 预设用：要求估值比率严格为正，排除库里可能存在的负 PER/PBR
	positivePER bool
	positivePBR bool
}

// Result 筛选结果单行，比率来自最新年报
type Result struct {
	Ticker          string   `json:"ticker"`
	Name            string   `json:"name"`
	Market          string   `json:"market"`
	Sector          *string  `json:"sector,omitempty"`
	FiscalDate      string   `json:"fiscal_date"`
	ROE             *float64 `json:"roe,omitempty"`
	ROA             *float64 `json:"roa,omitempty"`
	OperatingMargin *float64 `json:"operating_margin,omitempty"`
	NetMargin       *float64 `json:"net_margin,omitempty"`
	DebtRatio       *float64 `json:"debt_ratio,omitempty"`
	PER             *float64 `json:"per,omitempty"`
	PBR             *float64 `json:"pbr,omitempty"`
	PSR             *float64 `json:"psr,omitempty"`
	MarketCap       *float64 `json:"market_cap,omitempty"` // 单位亿韩元
}

// SectorGroup 行业对比分组
type SectorGroup struct {
	Sector     string   `json:"sector"`
	StockCount int      `json:"stock_count"`
	AvgROE     *float64 `json:"avg_roe,omitempty"`
	AvgPER     *float64 `json:"avg_per,omitempty"`
	AvgPBR     *float64 `json:"avg_pbr,omitempty"`
	Top        []Result `json:"top"`
}

// RowStore 最新比率行读取
type RowStore interface {
	LatestJoinedRows(market string) ([]model.ScreenRow, error)
}

// Screener 股票筛选器
// 数据库只负责取出最新比率联合视图，过滤与排序在内存中完成
type Screener struct {
	rows RowStore
}

// NewScreener 创建筛选器
func NewScreener(rows RowStore) *Screener {
	return &Screener{rows: rows}
}

// Undervalued 低估值预设：0 < PER ≤ 10 且 0 < PBR ≤ 1，按 PER+PBR 之和升序
func (s *Screener) Undervalued(market string, limit int) ([]Result, error) {
	maxPER, maxPBR := undervaluedMaxPER, undervaluedMaxPBR
	return s.screen(Filter{
		Market:      market,
		MaxPER:      &maxPER,
		MaxPBR:      &maxPBR,
		Limit:       limit,
		positivePER: true,
		positivePBR: true,
	}, []sortKey{{sortPERPlusPBR, false}})
}

// Quality 绩优预设：ROE ≥ 15 且负债率 ≤ 100，按 ROE 降序
func (s *Screener) Quality(market string, limit int) ([]Result, error) {
	minROE, maxDebt := qualityMinROE, qualityMaxDebt
	return s.screen(Filter{
		Market:       market,
		MinROE:       &minROE,
		MaxDebtRatio: &maxDebt,
		Limit:        limit,
	}, []sortKey{{"roe", true}})
}

// Growth 成长预设：ROE ≥ 10 且 0 < PER ≤ 30，按 ROE/PER 比值降序
// 比值越高说明成长相对估值越便宜
func (s *Screener) Growth(market string, limit int) ([]Result, error) {
	minROE, maxPER := growthMinROE, growthMaxPER
	return s.screen(Filter{
		Market:      market,
		MinROE:      &minROE,
		MaxPER:      &maxPER,
		Limit:       limit,
		positivePER: true,
	}, []sortKey{{sortROEOverPER, true}})
}

// Screen 自定义条件筛选
func (s *Screener) Screen(filter Filter) ([]Result, error) {
	keys := []sortKey{{"roe", true}}
	if filter.SortBy != "" {
		if !validSortField(filter.SortBy) {
			return nil, fmt.Errorf("不支持的排序字段: %s", filter.SortBy)
		}
		keys = []sortKey{{filter.SortBy, filter.SortDesc}}
	}
	return s.screen(filter, keys)
}

// CompareBySector 行业对比：每个行业的均值与 ROE 前 topN 只股票
// 没有行业归属的股票不参与对比
func (s *Screener) CompareBySector(market string, topN int) ([]SectorGroup, error) {
	if topN <= 0 {
		topN = 5
	}

	rows, err := s.rows.LatestJoinedRows(market)
	if err != nil {
		return nil, fmt.Errorf("查询最新比率失败: %w", err)
	}

	bySector := make(map[string][]model.ScreenRow)
	for _, row := range rows {
		if row.Sector == nil || *row.Sector == "" {
			continue
		}
		bySector[*row.Sector] = append(bySector[*row.Sector], row)
	}

	groups := make([]SectorGroup, 0, len(bySector))
	for sector, sectorRows := range bySector {
		group := SectorGroup{
			Sector:     sector,
			StockCount: len(sectorRows),
			AvgROE:     average(sectorRows, "roe"),
			AvgPER:     average(sectorRows, "per"),
			AvgPBR:     average(sectorRows, "pbr"),
		}

		sortRows(sectorRows, []sortKey{{"roe", true}})
		count := topN
		if count > len(sectorRows) {
			count = len(sectorRows)
		}
		group.Top = make([]Result, 0, count)
		for _, row := range sectorRows[:count] {
			group.Top = append(group.Top, toResult(row))
		}
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Sector < groups[j].Sector })
	return groups, nil
}

// screen 取最新比率行后过滤、排序、截断
func (s *Screener) screen(filter Filter, keys []sortKey) ([]Result, error) {
	rows, err := s.rows.LatestJoinedRows(filter.Market)
	if err != nil {
		return nil, fmt.Errorf("查询最新比率失败: %w", err)
	}

	matched := make([]model.ScreenRow, 0, len(rows))
	for _, row := range rows {
		if matches(row, filter) {
			matched = append(matched, row)
		}
	}

	sortRows(matched, keys)

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > len(matched) {
		limit = len(matched)
	}

	results := make([]Result, 0, limit)
	for _, row := range matched[:limit] {
		results = append(results, toResult(row))
	}
	return results, nil
}

// matches 判定单行是否满足全部条件
func matches(row model.ScreenRow, filter Filter) bool {
	if filter.Sector != "" {
		if row.Sector == nil || *row.Sector != filter.Sector {
			return false
		}
	}
	if filter.positivePER && (row.PER == nil || *row.PER <= 0) {
		return false
	}
	if filter.positivePBR && (row.PBR == nil || *row.PBR <= 0) {
		return false
	}
	checks := []struct {
		value    *float64
		min, max *float64
	}{
		{row.ROE, filter.MinROE, filter.MaxROE},
		{row.ROA, filter.MinROA, filter.MaxROA},
		{row.OperatingMargin, filter.MinOperatingMargin, filter.MaxOperatingMargin},
		{row.NetMargin, filter.MinNetMargin, filter.MaxNetMargin},
		{row.DebtRatio, filter.MinDebtRatio, filter.MaxDebtRatio},
		{row.PER, filter.MinPER, filter.MaxPER},
		{row.PBR, filter.MinPBR, filter.MaxPBR},
		{row.PSR, filter.MinPSR, filter.MaxPSR},
	}
	for _, check := range checks {
		if !within(check.value, check.min, check.max) {
			return false
		}
	}
	return true
}

// within 区间判定：条件生效但值为空时不满足
func within(value, min, max *float64) bool {
	if min == nil && max == nil {
		return true
	}
	if value == nil {
		return false
	}
	if min != nil && *value < *min {
		return false
	}
	if max != nil && *value > *max {
		return false
	}
	return true
}

type sortKey struct {
	field string
	desc  bool
}

// 预设专用的组合排序键，不对自定义排序开放
const (
	sortPERPlusPBR = "per_plus_pbr"
	sortROEOverPER = "roe_over_per"
)

// sortRows 多键排序，空值一律排在最后
func sortRows(rows []model.ScreenRow, keys []sortKey) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range keys {
			a := fieldValue(rows[i], key.field)
			b := fieldValue(rows[j], key.field)
			switch {
			case a == nil && b == nil:
				continue
			case a == nil:
				return false
			case b == nil:
				return true
			case *a == *b:
				continue
			case key.desc:
				return *a > *b
			default:
				return *a < *b
			}
		}
		return false
	})
}

// fieldValue 按字段名取值
func fieldValue(row model.ScreenRow, field string) *float64 {
	switch field {
	case "roe":
		return row.ROE
	case "roa":
		return row.ROA
	case "operating_margin":
		return row.OperatingMargin
	case "net_margin":
		return row.NetMargin
	case "debt_ratio":
		return row.DebtRatio
	case "per":
		return row.PER
	case "pbr":
		return row.PBR
	case "psr":
		return row.PSR
	case "market_cap":
		return row.MarketCap
	case sortPERPlusPBR:
		if row.PER == nil || row.PBR == nil {
			return nil
		}
		sum := *row.PER + *row.PBR
		return &sum
	case sortROEOverPER:
		if row.ROE == nil || row.PER == nil || *row.PER == 0 {
			return nil
		}
		ratio := *row.ROE / *row.PER
		return &ratio
	default:
		return nil
	}
}

// validSortField 排序字段白名单
func validSortField(field string) bool {
	switch field {
	case "roe", "roa", "operating_margin", "net_margin",
		"debt_ratio", "per", "pbr", "psr", "market_cap":
		return true
	default:
		return false
	}
}

// average 单字段均值，全部为空时返回 nil
func average(rows []model.ScreenRow, field string) *float64 {
	sum, count := 0.0, 0
	for _, row := range rows {
		if value := fieldValue(row, field); value != nil {
			sum += *value
			count++
		}
	}
	if count == 0 {
		return nil
	}
	avg := sum / float64(count)
	return &avg
}

// toResult 结果转换，市值换算成亿韩元
func toResult(row model.ScreenRow) Result {
	result := Result{
		Ticker:          row.Ticker,
		Name:            row.Name,
		Market:          row.Market,
		Sector:          row.Sector,
		FiscalDate:      row.FiscalDate.Format("2006-01-02"),
		ROE:             row.ROE,
		ROA:             row.ROA,
		OperatingMargin: row.OperatingMargin,
		NetMargin:       row.NetMargin,
		DebtRatio:       row.DebtRatio,
		PER:             row.PER,
		PBR:             row.PBR,
		PSR:             row.PSR,
	}
	if row.MarketCap != nil {
		eokwon := *row.MarketCap / 1e8
		result.MarketCap = &eokwon
	}
	return result
}

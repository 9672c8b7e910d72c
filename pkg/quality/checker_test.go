package quality

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EquityReach/pkg/model"
)

type fakeCounter struct {
	count int64
}

func (f fakeCounter) Count(market string) (int64, error) {
	return f.count, nil
}

type fakeFacts struct {
	statements []uint
	ratios     []uint
	caps       []uint
}

func (f fakeFacts) StockIDsWithStatements(market string) ([]uint, error) { return f.statements, nil }
func (f fakeFacts) StockIDsWithRatios(market string) ([]uint, error)     { return f.ratios, nil }
func (f fakeFacts) StockIDsWithMarketCap(market string) ([]uint, error)  { return f.caps, nil }

type fakeRows struct {
	rows              []model.ScreenRow
	missingStatements []*model.Stock
	missingCaps       []*model.Stock
}

func (f fakeRows) LatestJoinedRows(market string) ([]model.ScreenRow, error) {
	return f.rows, nil
}

func (f fakeRows) StocksWithoutStatements(market string, limit int) ([]*model.Stock, error) {
	return f.missingStatements, nil
}

func (f fakeRows) StocksWithoutMarketCap(market string, limit int) ([]*model.Stock, error) {
	return f.missingCaps, nil
}

func fv(value float64) *float64 { return &value }

func ids(n int) []uint {
	out := make([]uint, n)
	for i := range out {
		out[i] = uint(i + 1)
	}
	return out
}

func cleanRow(ticker string) model.ScreenRow {
	return model.ScreenRow{
		Ticker: ticker, Name: ticker,
		ROE: fv(10), ROA: fv(5), OperatingMargin: fv(12), NetMargin: fv(8),
		DebtRatio: fv(80), PER: fv(12), PBR: fv(1.2), PSR: fv(2),
	}
}

func TestGenerateReportFullCoverage(t *testing.T) {
	rows := make([]model.ScreenRow, 0, 10)
	for i := 0; i < 10; i++ {
		rows = append(rows, cleanRow("00000"+string(rune('0'+i))))
	}
	checker := NewChecker(
		fakeCounter{count: 10},
		fakeFacts{statements: ids(10), ratios: ids(10), caps: ids(10)},
		fakeRows{rows: rows},
	)

	report, err := checker.GenerateReport("")
	require.NoError(t, err)

	assert.InDelta(t, 100.0, report.Coverage.StatementCoverage, 1e-9)
	assert.InDelta(t, 100.0, report.Coverage.RatioCoverage, 1e-9)
	assert.Equal(t, 10, report.Coverage.Overlap.FSAndMC)
	assert.Equal(t, 0, report.Coverage.Overlap.FSOnly)
	assert.Equal(t, 10, report.Coverage.Calculation.Ready)
	assert.Equal(t, 0, report.Coverage.Calculation.Pending)
	assert.InDelta(t, 0.0, report.AnomalyRate, 1e-9)
	assert.InDelta(t, 0.0, report.MissingRate, 1e-9)
	assert.InDelta(t, 100.0, report.Score, 1e-9)
	assert.Equal(t, "A", report.Grade)
	assert.Empty(t, report.Anomalies)
}

func TestCheckCoverageOverlapAndStatus(t *testing.T) {
	// 报表 {1,2,3}，市值 {2,3,4}，比率 {2}
	checker := NewChecker(
		fakeCounter{count: 5},
		fakeFacts{statements: []uint{1, 2, 3}, caps: []uint{2, 3, 4}, ratios: []uint{2}},
		fakeRows{},
	)

	report, err := checker.GenerateReport("")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Coverage.Overlap.FSAndMC)
	assert.Equal(t, 1, report.Coverage.Overlap.FSOnly)
	assert.Equal(t, 1, report.Coverage.Overlap.MCOnly)
	assert.Equal(t, 2, report.Coverage.Calculation.Ready)
	assert.Equal(t, 1, report.Coverage.Calculation.Calculated)
	// 3 号报表市值齐全但还没算出比率
	assert.Equal(t, 1, report.Coverage.Calculation.Pending)
}

func TestGenerateReportScoreWeights(t *testing.T) {
	// 比率覆盖 80%；受检两行，其中一行同时有极端值和负估值，
	// 异常按条目数计，一只股票可以贡献两条
	abnormal := cleanRow("000002")
	abnormal.ROE = fv(150)
	abnormal.PBR = fv(-5)

	checker := NewChecker(
		fakeCounter{count: 10},
		fakeFacts{statements: ids(9), ratios: ids(8), caps: ids(8)},
		fakeRows{
			rows: []model.ScreenRow{cleanRow("000001"), abnormal},
			missingStatements: []*model.Stock{{Ticker: "000010"}},
			missingCaps: []*model.Stock{
				{Ticker: "000008"}, {Ticker: "000009"},
			},
		},
	)

	report, err := checker.GenerateReport("")
	require.NoError(t, err)

	assert.Equal(t, 1, report.AnomalyCount.ExtremeValues)
	assert.Equal(t, 1, report.AnomalyCount.NegativeValues)
	// 2 条异常 / 2 行受检
	assert.InDelta(t, 100.0, report.AnomalyRate, 1e-9)
	// (1 缺报表 + 2 缺市值) / 10 只股票
	assert.InDelta(t, 30.0, report.MissingRate, 1e-9)
	// 0.5*80 + 0.3*0 + 0.2*70 = 54
	assert.InDelta(t, 54.0, report.Score, 1e-9)
	assert.Equal(t, "F", report.Grade)
}

func TestGenerateReportAnomalyScanCapped(t *testing.T) {
	// 第 100 行之后的异常不参与统计
	rows := make([]model.ScreenRow, 0, 150)
	for i := 0; i < 150; i++ {
		row := cleanRow(fmt.Sprintf("%06d", i+1))
		if i >= 100 {
			row.ROE = fv(500)
		}
		rows = append(rows, row)
	}

	checker := NewChecker(
		fakeCounter{count: 150},
		fakeFacts{statements: ids(150), ratios: ids(150), caps: ids(150)},
		fakeRows{rows: rows},
	)

	report, err := checker.GenerateReport("")
	require.NoError(t, err)

	assert.Equal(t, 100, report.RowsChecked)
	assert.InDelta(t, 0.0, report.AnomalyRate, 1e-9)
	assert.Empty(t, report.Anomalies)
}

func TestCheckRowOutOfRange(t *testing.T) {
	row := cleanRow("000001")
	row.ROE = fv(150)
	row.DebtRatio = fv(1500)
	row.PER = fv(2000)

	anomalies, counts := checkRow(row)

	fields := make([]string, 0, len(anomalies))
	for _, anomaly := range anomalies {
		fields = append(fields, anomaly.Field)
	}
	assert.Contains(t, fields, "roe")
	assert.Contains(t, fields, "debt_ratio")
	assert.Contains(t, fields, "per")
	assert.Len(t, anomalies, 3)
	// 多个字段越界只算一条极端值异常
	assert.Equal(t, 1, counts.ExtremeValues)
	assert.Equal(t, 0, counts.NegativeValues)
}

func TestCheckRowNegativeValuation(t *testing.T) {
	// PBR -5 在合理区间内，但估值为负仍然可疑
	row := cleanRow("000001")
	row.PBR = fv(-5)

	anomalies, counts := checkRow(row)

	require.Len(t, anomalies, 1)
	assert.Equal(t, "pbr", anomalies[0].Field)
	assert.Equal(t, "估值比率为负", anomalies[0].Reason)
	assert.Equal(t, 1, counts.NegativeValues)
	assert.Equal(t, 0, counts.ExtremeValues)
}

func TestCheckRowNullMajority(t *testing.T) {
	// 6 个核心比率中 4 个为空
	row := model.ScreenRow{
		Ticker: "000001", Name: "000001",
		ROE: fv(10), ROA: fv(5),
	}

	anomalies, counts := checkRow(row)

	require.Len(t, anomalies, 1)
	assert.Equal(t, "ratios", anomalies[0].Field)
	assert.Equal(t, 1, counts.HighNullRatio)
}

func TestCheckRowThreeNullsIsFine(t *testing.T) {
	row := model.ScreenRow{
		Ticker: "000001", Name: "000001",
		ROE: fv(10), ROA: fv(5), OperatingMargin: fv(12),
	}

	anomalies, counts := checkRow(row)
	assert.Empty(t, anomalies)
	assert.Equal(t, 0, counts.HighNullRatio)
}

func TestGradeBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		grade string
	}{
		{95, "A"},
		{90, "A"},
		{89.99, "B"},
		{80, "B"},
		{75, "C"},
		{70, "C"},
		{65, "D"},
		{60, "D"},
		{59.99, "F"},
		{0, "F"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.grade, gradeFor(tc.score), "score=%v", tc.score)
	}
}

func TestGenerateReportMissingLists(t *testing.T) {
	checker := NewChecker(
		fakeCounter{count: 3},
		fakeFacts{statements: ids(2), ratios: ids(2), caps: ids(1)},
		fakeRows{
			rows:              []model.ScreenRow{cleanRow("000001")},
			missingStatements: []*model.Stock{{Ticker: "000003"}},
			missingCaps:       []*model.Stock{{Ticker: "000002"}},
		},
	)

	report, err := checker.GenerateReport("")
	require.NoError(t, err)

	assert.Equal(t, []string{"000003"}, report.Missing.WithoutStatements)
	assert.Equal(t, []string{"000002"}, report.Missing.WithoutMarketCap)
}

func TestGenerateReportEmptyDatabase(t *testing.T) {
	checker := NewChecker(fakeCounter{count: 0}, fakeFacts{}, fakeRows{})

	report, err := checker.GenerateReport("")
	require.NoError(t, err)

	assert.Equal(t, int64(0), report.Coverage.TotalStocks)
	assert.Equal(t, 0, report.RowsChecked)
	assert.Equal(t, "F", report.Grade)
}

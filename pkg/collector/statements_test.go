package collector

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EquityReach/pkg/model"
	"EquityReach/pkg/provider"
)

type fakeStatementStocks struct {
	byTicker map[string]*model.Stock
}

func (f *fakeStatementStocks) GetByTicker(ticker string) (*model.Stock, error) {
	stock, ok := f.byTicker[ticker]
	if !ok {
		return nil, fmt.Errorf("股票不存在: %s", ticker)
	}
	return stock, nil
}

func (f *fakeStatementStocks) GetByMarket(market string, limit int) ([]*model.Stock, error) {
	stocks := make([]*model.Stock, 0, len(f.byTicker))
	for _, stock := range f.byTicker {
		stocks = append(stocks, stock)
	}
	return stocks, nil
}

type statementKey struct {
	stockID    uint
	fiscalYear int
	reportType string
}

type fakeStatementStore struct {
	statements map[statementKey]*model.FinancialStatement
}

func newFakeStatementStore() *fakeStatementStore {
	return &fakeStatementStore{statements: make(map[statementKey]*model.FinancialStatement)}
}

func (f *fakeStatementStore) UpsertStatement(statement *model.FinancialStatement) error {
	key := statementKey{statement.StockID, statement.FiscalYear, statement.ReportType}
	f.statements[key] = statement
	return nil
}

func (f *fakeStatementStore) GetStatement(stockID uint, fiscalYear int, reportType string) (*model.FinancialStatement, error) {
	return f.statements[statementKey{stockID, fiscalYear, reportType}], nil
}

func (f *fakeStatementStore) LatestFiscalYear(stockID uint) (int, error) {
	latest := 0
	for key := range f.statements {
		if key.stockID == stockID && key.reportType == model.ReportAnnual && key.fiscalYear > latest {
			latest = key.fiscalYear
		}
	}
	return latest, nil
}

type statementCall struct {
	corpCode   string
	fiscalYear int
	reportType string
}

type fakeStatementSource struct {
	corpCodes map[string]string
	rows      map[string][]provider.RawAccountRow // corpCode-year-type -> 原始科目行
	calls     []statementCall
}

func (f *fakeStatementSource) ResolveCorpCode(ticker string) (string, error) {
	code, ok := f.corpCodes[ticker]
	if !ok {
		return "", provider.ErrCorpCodeNotFound
	}
	return code, nil
}

func (f *fakeStatementSource) FetchStatement(corpCode string, fiscalYear int, reportType string) ([]provider.RawAccountRow, error) {
	f.calls = append(f.calls, statementCall{corpCode, fiscalYear, reportType})
	return f.rows[fmt.Sprintf("%s-%d-%s", corpCode, fiscalYear, reportType)], nil
}

func incomeRows() []provider.RawAccountRow {
	return []provider.RawAccountRow{
		{Category: "IS", AccountName: "영업수익", Amount: "1,000"},
		{Category: "IS", AccountName: "영업이익", Amount: "200"},
		{Category: "BS", AccountName: "자본총계", Amount: "3,000"},
	}
}

func newTestStatementCollector(stocks *fakeStatementStocks, store *fakeStatementStore, source *fakeStatementSource) *StatementCollector {
	c := NewStatementCollector(stocks, store, source, NoDelay{})
	c.Now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestCollectStatementsSavesNormalizedStatement(t *testing.T) {
	stocks := &fakeStatementStocks{byTicker: map[string]*model.Stock{
		"005930": {ID: 1, Ticker: "005930"},
	}}
	store := newFakeStatementStore()
	source := &fakeStatementSource{
		corpCodes: map[string]string{"005930": "00126380"},
		rows: map[string][]provider.RawAccountRow{
			"00126380-2023-annual": incomeRows(),
		},
	}
	c := newTestStatementCollector(stocks, store, source)

	result, err := c.CollectStatements(StatementOptions{
		Tickers:   []string{"005930"},
		StartYear: 2023,
		EndYear:   2023,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.StocksSucceeded)
	assert.Equal(t, 1, result.StatementsCollected)

	saved := store.statements[statementKey{1, 2023, model.ReportAnnual}]
	require.NotNil(t, saved)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), saved.ReportDate)
	assert.Equal(t, "KRW", saved.Currency)
	require.NotNil(t, saved.Revenue)
	assert.Equal(t, "1000", saved.Revenue.String())
	require.NotNil(t, saved.TotalEquity)
	assert.Equal(t, "3000", saved.TotalEquity.String())
	assert.Nil(t, saved.NetIncome)
}

func TestCollectStatementsIncrementalStartsAfterLatest(t *testing.T) {
	stocks := &fakeStatementStocks{byTicker: map[string]*model.Stock{
		"005930": {ID: 1, Ticker: "005930"},
	}}
	store := newFakeStatementStore()
	store.statements[statementKey{1, 2021, model.ReportAnnual}] = &model.FinancialStatement{
		StockID: 1, FiscalYear: 2021, ReportType: model.ReportAnnual,
	}
	source := &fakeStatementSource{
		corpCodes: map[string]string{"005930": "00126380"},
		rows: map[string][]provider.RawAccountRow{
			"00126380-2022-annual": incomeRows(),
			"00126380-2023-annual": incomeRows(),
		},
	}
	c := newTestStatementCollector(stocks, store, source)

	result, err := c.CollectStatements(StatementOptions{
		Tickers:     []string{"005930"},
		StartYear:   2020,
		EndYear:     2023,
		Incremental: true,
	})
	require.NoError(t, err)

	// 已有 2021 年报，增量只补 2022 和 2023
	require.Len(t, source.calls, 2)
	assert.Equal(t, 2022, source.calls[0].fiscalYear)
	assert.Equal(t, 2023, source.calls[1].fiscalYear)
	assert.Equal(t, 2, result.StatementsCollected)
}

func TestCollectStatementsIncrementalUpToDate(t *testing.T) {
	stocks := &fakeStatementStocks{byTicker: map[string]*model.Stock{
		"005930": {ID: 1, Ticker: "005930"},
	}}
	store := newFakeStatementStore()
	store.statements[statementKey{1, 2023, model.ReportAnnual}] = &model.FinancialStatement{
		StockID: 1, FiscalYear: 2023, ReportType: model.ReportAnnual,
	}
	source := &fakeStatementSource{corpCodes: map[string]string{"005930": "00126380"}}
	c := newTestStatementCollector(stocks, store, source)

	result, err := c.CollectStatements(StatementOptions{
		Tickers:     []string{"005930"},
		StartYear:   2023,
		EndYear:     2023,
		Incremental: true,
	})
	require.NoError(t, err)

	// 水位线之后没有可采年度，整只跳过且不发请求
	assert.Empty(t, source.calls)
	assert.Equal(t, 1, result.StocksSkipped)
	assert.Equal(t, 0, result.StocksFailed)
}

func TestCollectStatementsSkipExisting(t *testing.T) {
	stocks := &fakeStatementStocks{byTicker: map[string]*model.Stock{
		"005930": {ID: 1, Ticker: "005930"},
	}}
	store := newFakeStatementStore()
	store.statements[statementKey{1, 2022, model.ReportAnnual}] = &model.FinancialStatement{
		StockID: 1, FiscalYear: 2022, ReportType: model.ReportAnnual,
	}
	source := &fakeStatementSource{
		corpCodes: map[string]string{"005930": "00126380"},
		rows: map[string][]provider.RawAccountRow{
			"00126380-2023-annual": incomeRows(),
		},
	}
	c := newTestStatementCollector(stocks, store, source)

	result, err := c.CollectStatements(StatementOptions{
		Tickers:      []string{"005930"},
		StartYear:    2022,
		EndYear:      2023,
		SkipExisting: true,
	})
	require.NoError(t, err)

	// 已落库的 2022 不再请求数据源
	require.Len(t, source.calls, 1)
	assert.Equal(t, 2023, source.calls[0].fiscalYear)
	assert.Equal(t, 1, result.StatementsCollected)
	assert.Equal(t, 1, result.StatementsSkipped)
}

func TestCollectStatementsCorpCodeNotFound(t *testing.T) {
	stocks := &fakeStatementStocks{byTicker: map[string]*model.Stock{
		"999999": {ID: 9, Ticker: "999999"},
	}}
	source := &fakeStatementSource{corpCodes: map[string]string{}}
	c := newTestStatementCollector(stocks, newFakeStatementStore(), source)

	result, err := c.CollectStatements(StatementOptions{
		Tickers:   []string{"999999"},
		StartYear: 2023,
		EndYear:   2023,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.StocksFailed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "999999", result.Errors[0].Ticker)
}

func TestCollectStatementsNoDisclosure(t *testing.T) {
	stocks := &fakeStatementStocks{byTicker: map[string]*model.Stock{
		"005930": {ID: 1, Ticker: "005930"},
	}}
	store := newFakeStatementStore()
	source := &fakeStatementSource{corpCodes: map[string]string{"005930": "00126380"}}
	c := newTestStatementCollector(stocks, store, source)

	result, err := c.CollectStatements(StatementOptions{
		Tickers:   []string{"005930"},
		StartYear: 2023,
		EndYear:   2023,
	})
	require.NoError(t, err)

	// 数据源无披露不算失败，也不落库
	assert.Equal(t, 0, result.StocksFailed)
	assert.Equal(t, 0, result.StatementsCollected)
	assert.Empty(t, store.statements)
}

func TestCollectStatementsQuarterlyReportDates(t *testing.T) {
	stocks := &fakeStatementStocks{byTicker: map[string]*model.Stock{
		"005930": {ID: 1, Ticker: "005930"},
	}}
	store := newFakeStatementStore()
	source := &fakeStatementSource{
		corpCodes: map[string]string{"005930": "00126380"},
		rows: map[string][]provider.RawAccountRow{
			"00126380-2023-Q1": incomeRows(),
			"00126380-2023-Q3": incomeRows(),
		},
	}
	c := newTestStatementCollector(stocks, store, source)

	_, err := c.CollectStatements(StatementOptions{
		Tickers:     []string{"005930"},
		StartYear:   2023,
		EndYear:     2023,
		ReportTypes: []string{model.ReportQ1, model.ReportQ3},
	})
	require.NoError(t, err)

	q1 := store.statements[statementKey{1, 2023, model.ReportQ1}]
	require.NotNil(t, q1)
	assert.Equal(t, time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC), q1.ReportDate)

	q3 := store.statements[statementKey{1, 2023, model.ReportQ3}]
	require.NotNil(t, q3)
	assert.Equal(t, time.Date(2023, 9, 30, 0, 0, 0, 0, time.UTC), q3.ReportDate)
}

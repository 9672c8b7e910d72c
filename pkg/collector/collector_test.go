package collector

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EquityReach/pkg/model"
	"EquityReach/pkg/provider"
)

type fakeStocks struct {
	byTicker map[string]*model.Stock
	nextID   uint
}

func newFakeStocks(stocks ...*model.Stock) *fakeStocks {
	f := &fakeStocks{byTicker: make(map[string]*model.Stock)}
	for _, stock := range stocks {
		f.byTicker[stock.Ticker] = stock
		if stock.ID > f.nextID {
			f.nextID = stock.ID
		}
	}
	return f
}

func (f *fakeStocks) Upsert(stock *model.Stock) error {
	if existing, ok := f.byTicker[stock.Ticker]; ok {
		existing.Name = stock.Name
		existing.Market = stock.Market
		existing.Sector = stock.Sector
		return nil
	}
	f.nextID++
	stock.ID = f.nextID
	f.byTicker[stock.Ticker] = stock
	return nil
}

func (f *fakeStocks) GetByMarket(market string, limit int) ([]*model.Stock, error) {
	stocks := make([]*model.Stock, 0, len(f.byTicker))
	for _, stock := range f.byTicker {
		if market == "" || stock.Market == market {
			stocks = append(stocks, stock)
		}
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].Ticker < stocks[j].Ticker })
	if limit > 0 && limit < len(stocks) {
		stocks = stocks[:limit]
	}
	return stocks, nil
}

type fakePrices struct {
	last    map[uint]time.Time
	saved   []*model.StockPrice
	batches int
}

func (f *fakePrices) UpsertBatch(prices []*model.StockPrice) error {
	f.saved = append(f.saved, prices...)
	f.batches++
	return nil
}

func (f *fakePrices) LastTradeDate(stockID uint) (*time.Time, error) {
	if last, ok := f.last[stockID]; ok {
		return &last, nil
	}
	return nil, nil
}

type fakeMarkets struct {
	saved   []*model.StockMarketData
	batches int
}

func (f *fakeMarkets) UpsertBatch(rows []*model.StockMarketData) error {
	f.saved = append(f.saved, rows...)
	f.batches++
	return nil
}

type fetchRange struct {
	start time.Time
	end   time.Time
}

type fakeSources struct {
	listings    []provider.Listing
	listingErr  error
	bars        map[string][]provider.DailyBar
	barErr      map[string]error
	ranges      map[string]fetchRange
	snapshot    []provider.SnapshotRow
	snapshotErr error
}

func (f *fakeSources) FetchListing(market string) ([]provider.Listing, error) {
	if f.listingErr != nil {
		return nil, f.listingErr
	}
	return f.listings, nil
}

func (f *fakeSources) FetchDailyBars(ticker string, start, end time.Time) ([]provider.DailyBar, error) {
	if f.ranges == nil {
		f.ranges = make(map[string]fetchRange)
	}
	f.ranges[ticker] = fetchRange{start: start, end: end}
	if err, ok := f.barErr[ticker]; ok {
		return nil, err
	}
	return f.bars[ticker], nil
}

func (f *fakeSources) FetchMarketSnapshot(market string, date time.Time) ([]provider.SnapshotRow, error) {
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	return f.snapshot, nil
}

func newTestCollector(stocks *fakeStocks, prices *fakePrices, markets *fakeMarkets, sources *fakeSources, batchSize int) *BatchCollector {
	c := NewBatchCollector(stocks, prices, markets,
		Sources{Listings: sources, Bars: sources, Snapshots: sources},
		NoDelay{},
		Settings{CommitBatchSize: batchSize, FullWindowDays: 365},
	)
	// 固定“今天”为 2024-01-15
	c.Now = func() time.Time { return time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC) }
	return c
}

func bar(date time.Time, close float64) provider.DailyBar {
	return provider.DailyBar{Date: date, Close: close}
}

func fptr(value float64) *float64 { return &value }

func iptr(value int64) *int64 { return &value }

func TestCollectPricesIncrementalWindow(t *testing.T) {
	stocks := newFakeStocks(&model.Stock{ID: 1, Ticker: "005930", Market: model.MarketKOSPI, Country: model.CountryKR})
	prices := &fakePrices{last: map[uint]time.Time{
		1: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}}
	sources := &fakeSources{
		listings: []provider.Listing{{Ticker: "005930", Name: "삼성전자"}},
		bars: map[string][]provider.DailyBar{
			"005930": {
				bar(time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), 71000),
				bar(time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), 72000),
				bar(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 73000),
			},
		},
	}
	c := newTestCollector(stocks, prices, &fakeMarkets{}, sources, 100)

	result, err := c.CollectPrices(Options{Market: model.MarketKOSPI, Mode: model.ModeIncremental})
	require.NoError(t, err)

	// 请求区间从最后落库日的次日开始，到今天为止
	fetched := sources.ranges["005930"]
	assert.Equal(t, time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), fetched.start)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), fetched.end)

	assert.Equal(t, 1, result.StocksProcessed)
	assert.Equal(t, 1, result.StocksSucceeded)
	assert.Equal(t, 3, result.PricesSaved)
	assert.Len(t, prices.saved, 3)
	assert.NotEmpty(t, result.RunID)
}

func TestCollectPricesFirstCollectionUsesFullWindow(t *testing.T) {
	stocks := newFakeStocks(&model.Stock{ID: 1, Ticker: "000660", Market: model.MarketKOSPI, Country: model.CountryKR})
	prices := &fakePrices{}
	sources := &fakeSources{
		listings: []provider.Listing{{Ticker: "000660", Name: "SK하이닉스"}},
	}
	c := newTestCollector(stocks, prices, &fakeMarkets{}, sources, 100)

	_, err := c.CollectPrices(Options{Market: model.MarketKOSPI, Mode: model.ModeIncremental})
	require.NoError(t, err)

	// 没有任何历史时退回全量窗口
	fetched := sources.ranges["000660"]
	assert.Equal(t, time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), fetched.start)
}

func TestCollectPricesAlreadyUpToDate(t *testing.T) {
	stocks := newFakeStocks(&model.Stock{ID: 1, Ticker: "005930", Market: model.MarketKOSPI, Country: model.CountryKR})
	prices := &fakePrices{last: map[uint]time.Time{
		1: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}}
	sources := &fakeSources{
		listings: []provider.Listing{{Ticker: "005930", Name: "삼성전자"}},
	}
	c := newTestCollector(stocks, prices, &fakeMarkets{}, sources, 100)

	result, err := c.CollectPrices(Options{Market: model.MarketKOSPI, Mode: model.ModeIncremental})
	require.NoError(t, err)

	// 水位线已是今天，不发请求
	assert.Empty(t, sources.ranges)
	assert.Equal(t, 1, result.StocksSucceeded)
	assert.Equal(t, 0, result.PricesSaved)
}

func TestCollectPricesIsolatesFailures(t *testing.T) {
	allStocks := make([]*model.Stock, 0, 5)
	listings := make([]provider.Listing, 0, 5)
	bars := make(map[string][]provider.DailyBar)
	tickers := []string{"000001", "000002", "000003", "000004", "000005"}
	for i, ticker := range tickers {
		allStocks = append(allStocks, &model.Stock{
			ID: uint(i + 1), Ticker: ticker, Market: model.MarketKOSPI, Country: model.CountryKR,
		})
		listings = append(listings, provider.Listing{Ticker: ticker, Name: ticker})
		bars[ticker] = []provider.DailyBar{bar(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 1000)}
	}
	stocks := newFakeStocks(allStocks...)
	sources := &fakeSources{
		listings: listings,
		bars:     bars,
		barErr:   map[string]error{"000003": provider.ErrProviderUnavailable},
	}
	c := newTestCollector(stocks, &fakePrices{}, &fakeMarkets{}, sources, 100)

	result, err := c.CollectPrices(Options{Market: model.MarketKOSPI, Mode: model.ModeIncremental})
	require.NoError(t, err)

	// 单只失败不中断批次
	assert.Equal(t, 5, result.StocksProcessed)
	assert.Equal(t, 4, result.StocksSucceeded)
	assert.Equal(t, 1, result.StocksFailed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "000003", result.Errors[0].Ticker)
}

func TestCollectPricesListingFailureIsFatal(t *testing.T) {
	sources := &fakeSources{listingErr: provider.ErrProviderUnavailable}
	c := newTestCollector(newFakeStocks(), &fakePrices{}, &fakeMarkets{}, sources, 100)

	_, err := c.CollectPrices(Options{Market: model.MarketKOSPI, Mode: model.ModeIncremental})
	assert.ErrorIs(t, err, provider.ErrProviderUnavailable)
}

func TestCollectPricesChunkedCommits(t *testing.T) {
	stocks := newFakeStocks(&model.Stock{ID: 1, Ticker: "005930", Market: model.MarketKOSPI, Country: model.CountryKR})
	dailyBars := make([]provider.DailyBar, 0, 250)
	for i := 0; i < 250; i++ {
		dailyBars = append(dailyBars, bar(time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i), 1000))
	}
	sources := &fakeSources{
		listings: []provider.Listing{{Ticker: "005930", Name: "삼성전자"}},
		bars:     map[string][]provider.DailyBar{"005930": dailyBars},
	}
	prices := &fakePrices{}
	c := newTestCollector(stocks, prices, &fakeMarkets{}, sources, 100)

	result, err := c.CollectPrices(Options{Market: model.MarketKOSPI, Mode: model.ModeFull})
	require.NoError(t, err)

	// 全量模式固定回溯窗口，无视水位线
	assert.Equal(t, time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), sources.ranges["005930"].start)
	assert.Equal(t, 250, result.PricesSaved)
	assert.Equal(t, 3, prices.batches) // 100 + 100 + 50
}

func TestCollectSnapshotsHoliday(t *testing.T) {
	stocks := newFakeStocks(&model.Stock{ID: 1, Ticker: "005930", Market: model.MarketKOSPI, Country: model.CountryKR})
	markets := &fakeMarkets{}
	sources := &fakeSources{snapshot: []provider.SnapshotRow{
		{Ticker: "005930", MarketCap: fptr(0), TradingValue: fptr(0)},
		{Ticker: "000660", MarketCap: nil, TradingValue: nil},
	}}
	c := newTestCollector(stocks, &fakePrices{}, markets, sources, 100)

	result, err := c.CollectSnapshots(model.MarketKOSPI, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// 全部行市值与成交额都为零/缺失 -> 休市日，整日跳过
	assert.Equal(t, 1, result.HolidaysDetected)
	assert.Equal(t, 0, result.SnapshotsSaved)
	assert.Empty(t, markets.saved)
}

func TestCollectSnapshotsIlliquidStock(t *testing.T) {
	stocks := newFakeStocks(
		&model.Stock{ID: 1, Ticker: "005930", Market: model.MarketKOSPI, Country: model.CountryKR},
		&model.Stock{ID: 2, Ticker: "000660", Market: model.MarketKOSPI, Country: model.CountryKR},
		&model.Stock{ID: 3, Ticker: "000001", Market: model.MarketKOSPI, Country: model.CountryKR},
	)
	markets := &fakeMarkets{}
	sources := &fakeSources{snapshot: []provider.SnapshotRow{
		// 正常成交
		{Ticker: "005930", MarketCap: fptr(4e14), TradingValue: fptr(5e11), SharesOutstanding: iptr(5969782550)},
		// 市值有效但当日零成交：保留行，成交额存 NULL
		{Ticker: "000660", MarketCap: fptr(9e13), TradingValue: fptr(0)},
		// 两者都无效：不是数据点
		{Ticker: "000001", MarketCap: fptr(0), TradingValue: fptr(0)},
		// 名单之外的代码
		{Ticker: "999999", MarketCap: fptr(1e12), TradingValue: fptr(1e9)},
	}}
	c := newTestCollector(stocks, &fakePrices{}, markets, sources, 100)

	result, err := c.CollectSnapshots(model.MarketKOSPI, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 0, result.HolidaysDetected)
	assert.Equal(t, 2, result.SnapshotsSaved)
	require.Len(t, markets.saved, 2)

	assert.Equal(t, uint(1), markets.saved[0].StockID)
	assert.NotNil(t, markets.saved[0].MarketCap)
	assert.NotNil(t, markets.saved[0].TradingValue)

	assert.Equal(t, uint(2), markets.saved[1].StockID)
	assert.NotNil(t, markets.saved[1].MarketCap)
	assert.Nil(t, markets.saved[1].TradingValue)
}

func TestCollectSnapshotsProviderError(t *testing.T) {
	sources := &fakeSources{snapshotErr: errors.New("网关超时")}
	c := newTestCollector(newFakeStocks(), &fakePrices{}, &fakeMarkets{}, sources, 100)

	_, err := c.CollectSnapshots(model.MarketKOSPI, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

package collector

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"EquityReach/pkg/model"
	"EquityReach/pkg/provider"
)

// StockStore 股票信息存取
type StockStore interface {
	Upsert(stock *model.Stock) error
	GetByMarket(market string, limit int) ([]*model.Stock, error)
}

// PriceStore 日线行情存取
type PriceStore interface {
	UpsertBatch(prices []*model.StockPrice) error
	LastTradeDate(stockID uint) (*time.Time, error)
}

// MarketStore 日别市场数据存取
type MarketStore interface {
	UpsertBatch(rows []*model.StockMarketData) error
}

// Sources 行情类数据源集合
type Sources struct {
	Listings  provider.ListingSource
	Bars      provider.PriceSource
	Snapshots provider.SnapshotSource
}

// Settings 采集器运行参数
type Settings struct {
	CommitBatchSize int // 单个事务提交的最大行数，默认 100
	FullWindowDays  int // 全量模式与首次采集的回溯窗口，默认 365
}

// Options 单次批量采集的选项
type Options struct {
	Market    string
	Mode      model.CollectMode
	MaxStocks int // 0 表示不限制，联调时用来截断批次
}

// BatchCollector 行情批量采集器
// 名单、日线、快照都走它；单只股票失败只记入 Errors，不中断批次
type BatchCollector struct {
	stocks   StockStore
	prices   PriceStore
	markets  MarketStore
	sources  Sources
	delayer  Delayer
	settings Settings

	// Now 可注入时钟，测试时固定“今天”
	Now func() time.Time
}

// NewBatchCollector 创建行情采集器
func NewBatchCollector(stocks StockStore, prices PriceStore, markets MarketStore, sources Sources, delayer Delayer, settings Settings) *BatchCollector {
	if settings.CommitBatchSize <= 0 {
		settings.CommitBatchSize = 100
	}
	if settings.FullWindowDays <= 0 {
		settings.FullWindowDays = 365
	}
	if delayer == nil {
		delayer = NoDelay{}
	}
	return &BatchCollector{
		stocks:   stocks,
		prices:   prices,
		markets:  markets,
		sources:  sources,
		delayer:  delayer,
		settings: settings,
		Now:      time.Now,
	}
}

// CollectListings 采集并落库上市名单，返回保存数量
// 名单拉取失败属于配置级错误，直接终止整个批次
func (c *BatchCollector) CollectListings(market string) (int, error) {
	listings, err := c.sources.Listings.FetchListing(market)
	if err != nil {
		return 0, fmt.Errorf("拉取 %s 上市名单失败: %w", market, err)
	}

	saved := 0
	for _, item := range listings {
		stock := &model.Stock{
			Ticker:  item.Ticker,
			Name:    item.Name,
			Market:  market,
			Sector:  item.Sector,
			Country: model.CountryKR,
		}
		if err := c.stocks.Upsert(stock); err != nil {
			log.Printf("保存股票 %s 失败: %v", item.Ticker, err)
			continue
		}
		saved++
		if saved%c.settings.CommitBatchSize == 0 {
			log.Printf("上市名单进度: %d/%d", saved, len(listings))
		}
	}

	log.Printf("%s 上市名单采集完成，保存 %d 只", market, saved)
	return saved, nil
}

// CollectPrices 批量采集日线行情，先刷新名单再逐只采集
func (c *BatchCollector) CollectPrices(options Options) (*model.CollectionResult, error) {
	result := c.newResult(options.Market, options.Mode)

	listingsSaved, err := c.CollectListings(options.Market)
	if err != nil {
		c.finish(result)
		return result, err
	}
	result.ListingsSaved = listingsSaved

	stocks, err := c.stocks.GetByMarket(options.Market, options.MaxStocks)
	if err != nil {
		c.finish(result)
		return result, fmt.Errorf("查询市场股票失败: %w", err)
	}

	log.Printf("[%s] 开始采集 %s 行情，模式 %s，共 %d 只", result.RunID, options.Market, options.Mode, len(stocks))

	for idx, stock := range stocks {
		result.StocksProcessed++

		saved, err := c.collectStockPrices(stock, options.Mode)
		if err != nil {
			result.StocksFailed++
			result.Errors = append(result.Errors, model.CollectionError{
				Ticker:  stock.Ticker,
				Message: err.Error(),
			})
			log.Printf("[%d/%d] %s 行情采集失败: %v", idx+1, len(stocks), stock.Ticker, err)
		} else {
			result.StocksSucceeded++
			result.PricesSaved += saved
		}

		if idx < len(stocks)-1 {
			c.delayer.Wait()
		}
	}

	c.finish(result)
	log.Printf("[%s] 行情采集完成: 处理 %d, 成功 %d, 失败 %d, 保存 %d 条",
		result.RunID, result.StocksProcessed, result.StocksSucceeded, result.StocksFailed, result.PricesSaved)
	return result, nil
}

// collectStockPrices 采集单只股票的日线
// 增量模式从最后落库日的次日开始，没有任何历史时退回全量窗口；
// 水位线已是今天时直接返回，不发请求
func (c *BatchCollector) collectStockPrices(stock *model.Stock, mode model.CollectMode) (int, error) {
	today := truncateDate(c.Now())
	start := today.AddDate(0, 0, -c.settings.FullWindowDays)

	if mode == model.ModeIncremental {
		last, err := c.prices.LastTradeDate(stock.ID)
		if err != nil {
			return 0, err
		}
		if last != nil {
			start = truncateDate(*last).AddDate(0, 0, 1)
		}
	}

	if start.After(today) {
		return 0, nil
	}

	bars, err := c.sources.Bars.FetchDailyBars(stock.Ticker, start, today)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		// 区间内没有交易日，不算失败
		return 0, nil
	}

	prices := make([]*model.StockPrice, 0, len(bars))
	for _, bar := range bars {
		prices = append(prices, &model.StockPrice{
			StockID:   stock.ID,
			TradeDate: truncateDate(bar.Date),
			Open:      toDecimalPtr(bar.Open),
			High:      toDecimalPtr(bar.High),
			Low:       toDecimalPtr(bar.Low),
			Close:     decimal.NewFromFloat(bar.Close),
			Volume:    bar.Volume,
		})
	}

	saved := 0
	for offset := 0; offset < len(prices); offset += c.settings.CommitBatchSize {
		end := offset + c.settings.CommitBatchSize
		if end > len(prices) {
			end = len(prices)
		}
		if err := c.prices.UpsertBatch(prices[offset:end]); err != nil {
			return saved, err
		}
		saved += end - offset
	}
	return saved, nil
}

// CollectSnapshots 采集某一天的全市场快照（市值、成交额、流通股数）
// 全部行的市值与成交额都为零/缺失时判定为休市日，整日跳过且只记一条日志
func (c *BatchCollector) CollectSnapshots(market string, date time.Time) (*model.CollectionResult, error) {
	result := c.newResult(market, model.ModeIncremental)
	day := truncateDate(date)

	rows, err := c.sources.Snapshots.FetchMarketSnapshot(market, day)
	if err != nil {
		c.finish(result)
		return result, fmt.Errorf("拉取 %s 市场快照失败: %w", market, err)
	}
	if len(rows) == 0 {
		c.finish(result)
		return result, nil
	}

	if isHoliday(rows) {
		result.HolidaysDetected++
		log.Printf("[%s] %s %s 为休市日，跳过", result.RunID, market, day.Format("2006-01-02"))
		c.finish(result)
		return result, nil
	}

	stocks, err := c.stocks.GetByMarket(market, 0)
	if err != nil {
		c.finish(result)
		return result, fmt.Errorf("查询市场股票失败: %w", err)
	}
	byTicker := make(map[string]*model.Stock, len(stocks))
	for _, stock := range stocks {
		byTicker[stock.Ticker] = stock
	}

	batch := make([]*model.StockMarketData, 0, c.settings.CommitBatchSize)
	for _, row := range rows {
		result.StocksProcessed++

		stock, ok := byTicker[row.Ticker]
		if !ok {
			// 名单之外的代码（ETF、已退市等）
			continue
		}

		marketCap := positiveDecimal(row.MarketCap)
		tradingValue := positiveDecimal(row.TradingValue)
		if marketCap == nil && tradingValue == nil {
			// 两者都无效的行不是数据点
			continue
		}

		batch = append(batch, &model.StockMarketData{
			StockID:           stock.ID,
			TradeDate:         day,
			MarketCap:         marketCap,
			TradingValue:      tradingValue, // 市值有效但零成交的个股存 NULL
			SharesOutstanding: positiveInt(row.SharesOutstanding),
		})
		result.StocksSucceeded++

		if len(batch) >= c.settings.CommitBatchSize {
			if err := c.markets.UpsertBatch(batch); err != nil {
				c.finish(result)
				return result, fmt.Errorf("保存市场快照失败: %w", err)
			}
			result.SnapshotsSaved += len(batch)
			batch = make([]*model.StockMarketData, 0, c.settings.CommitBatchSize)
		}
	}

	if len(batch) > 0 {
		if err := c.markets.UpsertBatch(batch); err != nil {
			c.finish(result)
			return result, fmt.Errorf("保存市场快照失败: %w", err)
		}
		result.SnapshotsSaved += len(batch)
	}

	c.finish(result)
	log.Printf("[%s] %s %s 快照采集完成，保存 %d 条",
		result.RunID, market, day.Format("2006-01-02"), result.SnapshotsSaved)
	return result, nil
}

// newResult 初始化批次结果
func (c *BatchCollector) newResult(market string, mode model.CollectMode) *model.CollectionResult {
	return &model.CollectionResult{
		RunID:     uuid.New().String(),
		Market:    market,
		Mode:      mode,
		Errors:    make([]model.CollectionError, 0),
		StartTime: c.Now(),
	}
}

// finish 收尾统计耗时
func (c *BatchCollector) finish(result *model.CollectionResult) {
	result.EndTime = c.Now()
	result.DurationSeconds = result.EndTime.Sub(result.StartTime).Seconds()
}

// isHoliday 判定整个快照是否休市：所有行的市值与成交额都为零/缺失
func isHoliday(rows []provider.SnapshotRow) bool {
	for _, row := range rows {
		if (row.MarketCap != nil && *row.MarketCap != 0) ||
			(row.TradingValue != nil && *row.TradingValue != 0) {
			return false
		}
	}
	return true
}

// truncateDate 去掉时分秒，统一用 UTC 日期
func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// toDecimalPtr 可空 float64 转可空 decimal
func toDecimalPtr(value *float64) *decimal.Decimal {
	if value == nil {
		return nil
	}
	d := decimal.NewFromFloat(*value)
	return &d
}

// positiveDecimal 只有正值才落库，零和缺失一律存 NULL
func positiveDecimal(value *float64) *decimal.Decimal {
	if value == nil || *value <= 0 {
		return nil
	}
	d := decimal.NewFromFloat(*value)
	return &d
}

// positiveInt 只有正值才落库
func positiveInt(value *int64) *int64 {
	if value == nil || *value <= 0 {
		return nil
	}
	return value
}

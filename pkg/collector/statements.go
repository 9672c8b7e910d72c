package collector

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"EquityReach/pkg/model"
	"EquityReach/pkg/normalizer"
	"EquityReach/pkg/provider"
	"EquityReach/pkg/ratio"
)

// StatementStockStore 报表采集需要的股票查询
type StatementStockStore interface {
	GetByTicker(ticker string) (*model.Stock, error)
	GetByMarket(market string, limit int) ([]*model.Stock, error)
}

// StatementStore 报表存取
type StatementStore interface {
	UpsertStatement(statement *model.FinancialStatement) error
	GetStatement(stockID uint, fiscalYear int, reportType string) (*model.FinancialStatement, error)
	LatestFiscalYear(stockID uint) (int, error)
}

// StatementOptions 报表批量采集选项
type StatementOptions struct {
	Market       string
	Tickers      []string // 为空时取市场内全部股票
	StartYear    int
	EndYear      int
	ReportTypes  []string // 为空时只采年报
	Incremental  bool     // 从已落库的最新年报年度之后开始
	SkipExisting bool     // 已落库的期间不再请求数据源
	MaxStocks    int
}

// StatementCollector 财务报表批量采集器
// 逐只股票解析公司编号、拉取原始科目、归一化后落库
type StatementCollector struct {
	stocks     StatementStockStore
	financials StatementStore
	source     provider.StatementSource
	delayer    Delayer

	Now func() time.Time
}

// NewStatementCollector 创建报表采集器
func NewStatementCollector(stocks StatementStockStore, financials StatementStore, source provider.StatementSource, delayer Delayer) *StatementCollector {
	if delayer == nil {
		delayer = NoDelay{}
	}
	return &StatementCollector{
		stocks:     stocks,
		financials: financials,
		source:     source,
		delayer:    delayer,
		Now:        time.Now,
	}
}

// CollectStatements 批量采集财务报表
// 单只股票失败只记入 Errors；公司编号缺失（未在名录中）也按失败处理
func (c *StatementCollector) CollectStatements(options StatementOptions) (*model.StatementBatchResult, error) {
	if options.EndYear <= 0 {
		options.EndYear = c.Now().Year() - 1
	}
	if options.StartYear <= 0 {
		options.StartYear = options.EndYear
	}
	if len(options.ReportTypes) == 0 {
		options.ReportTypes = []string{model.ReportAnnual}
	}

	result := &model.StatementBatchResult{
		RunID:     uuid.New().String(),
		StartYear: options.StartYear,
		EndYear:   options.EndYear,
		Errors:    make([]model.CollectionError, 0),
		StartTime: c.Now(),
	}

	stocks, err := c.resolveTargets(options)
	if err != nil {
		c.finish(result)
		return result, err
	}

	log.Printf("[%s] 开始采集财务报表 %d-%d，共 %d 只",
		result.RunID, options.StartYear, options.EndYear, len(stocks))

	for idx, stock := range stocks {
		result.StocksProcessed++

		collected, skipped, err := c.collectStock(stock, options, result)
		switch {
		case err != nil:
			result.StocksFailed++
			result.Errors = append(result.Errors, model.CollectionError{
				Ticker:  stock.Ticker,
				Message: err.Error(),
			})
			log.Printf("[%d/%d] %s 报表采集失败: %v", idx+1, len(stocks), stock.Ticker, err)
		case collected == 0 && skipped > 0:
			result.StocksSkipped++
		default:
			result.StocksSucceeded++
		}

		if idx < len(stocks)-1 {
			c.delayer.Wait()
		}
	}

	c.finish(result)
	log.Printf("[%s] 报表采集完成: 处理 %d, 成功 %d, 跳过 %d, 失败 %d, 新增报表 %d",
		result.RunID, result.StocksProcessed, result.StocksSucceeded,
		result.StocksSkipped, result.StocksFailed, result.StatementsCollected)
	return result, nil
}

// resolveTargets 确定待采集股票列表
func (c *StatementCollector) resolveTargets(options StatementOptions) ([]*model.Stock, error) {
	if len(options.Tickers) > 0 {
		stocks := make([]*model.Stock, 0, len(options.Tickers))
		for _, ticker := range options.Tickers {
			stock, err := c.stocks.GetByTicker(ticker)
			if err != nil {
				return nil, fmt.Errorf("查询股票 %s 失败: %w", ticker, err)
			}
			stocks = append(stocks, stock)
		}
		return stocks, nil
	}

	stocks, err := c.stocks.GetByMarket(options.Market, options.MaxStocks)
	if err != nil {
		return nil, fmt.Errorf("查询市场股票失败: %w", err)
	}
	return stocks, nil
}

// collectStock 采集单只股票的报表，返回 (新增数, 跳过数)
func (c *StatementCollector) collectStock(stock *model.Stock, options StatementOptions, result *model.StatementBatchResult) (int, int, error) {
	startYear := options.StartYear

	// 增量：从已落库的最新年报年度之后开始
	if options.Incremental {
		latest, err := c.financials.LatestFiscalYear(stock.ID)
		if err != nil {
			return 0, 0, err
		}
		if latest > 0 && latest+1 > startYear {
			startYear = latest + 1
		}
		if startYear > options.EndYear {
			result.StatementsSkipped++
			return 0, 1, nil
		}
	}

	collected, skipped := 0, 0
	for year := startYear; year <= options.EndYear; year++ {
		for _, reportType := range options.ReportTypes {
			if options.SkipExisting {
				existing, err := c.financials.GetStatement(stock.ID, year, reportType)
				if err != nil {
					return collected, skipped, err
				}
				if existing != nil {
					skipped++
					result.StatementsSkipped++
					continue
				}
			}

			saved, err := c.collectPeriod(stock, year, reportType)
			if err != nil {
				return collected, skipped, err
			}
			if saved {
				collected++
				result.StatementsCollected++
			}
			c.delayer.Wait()
		}
	}
	return collected, skipped, nil
}

// collectPeriod 采集单个会计期间并落库，数据源无数据时返回 false
func (c *StatementCollector) collectPeriod(stock *model.Stock, fiscalYear int, reportType string) (bool, error) {
	corpCode, err := c.source.ResolveCorpCode(stock.Ticker)
	if err != nil {
		if errors.Is(err, provider.ErrCorpCodeNotFound) {
			return false, fmt.Errorf("股票 %s 不在公司名录中: %w", stock.Ticker, err)
		}
		return false, err
	}

	rows, err := c.source.FetchStatement(corpCode, fiscalYear, reportType)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		// 期间内没有披露，不算失败
		return false, nil
	}

	statement := &model.FinancialStatement{
		StockID:    stock.ID,
		FiscalYear: fiscalYear,
		ReportType: reportType,
		ReportDate: ratio.PeriodEndDate(fiscalYear, reportType),
		Currency:   "KRW",
	}
	normalizer.Normalize(rows).Apply(statement)

	if err := c.financials.UpsertStatement(statement); err != nil {
		return false, err
	}
	return true, nil
}

// finish 收尾统计耗时
func (c *StatementCollector) finish(result *model.StatementBatchResult) {
	result.EndTime = c.Now()
	result.DurationSeconds = result.EndTime.Sub(result.StartTime).Seconds()
}

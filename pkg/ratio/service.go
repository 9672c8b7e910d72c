package ratio

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"EquityReach/pkg/model"
)

// StockStore 股票信息读取
type StockStore interface {
	GetByTicker(ticker string) (*model.Stock, error)
	GetWithStatements(market string, limit int) ([]*model.Stock, error)
}

// FinancialStore 财务报表与比率存取
type FinancialStore interface {
	GetStatementsByStock(stockID uint, fiscalYear int) ([]*model.FinancialStatement, error)
	UpsertRatio(ratio *model.FinancialRatio) error
}

// MarketStore 市值快照读取
type MarketStore interface {
	LatestInWindow(stockID uint, targetDate, minDate time.Time) (*model.StockMarketData, error)
}

// Service 比率计算服务
// 从报表与最近的市值快照派生八个比率并幂等落库
type Service struct {
	stocks       StockStore
	financials   FinancialStore
	markets      MarketStore
	lookbackDays int
}

// NewService 创建比率计算服务，lookbackDays 为市值回看窗口（默认 90 天）
func NewService(stocks StockStore, financials FinancialStore, markets MarketStore, lookbackDays int) *Service {
	if lookbackDays <= 0 {
		lookbackDays = 90
	}
	return &Service{
		stocks:       stocks,
		financials:   financials,
		markets:      markets,
		lookbackDays: lookbackDays,
	}
}

// ComputeForStatement 对单张报表计算全部比率
// 八个比率相互独立，单个输入缺失只会让对应比率为空；
// 回看窗口内没有市值时估值比率为空，盈利与稳定性比率照常计算
func (s *Service) ComputeForStatement(statement *model.FinancialStatement) (*model.FinancialRatio, error) {
	fiscalDate := PeriodEndDate(statement.FiscalYear, statement.ReportType)
	minDate := fiscalDate.AddDate(0, 0, -s.lookbackDays)

	snapshot, err := s.markets.LatestInWindow(statement.StockID, fiscalDate, minDate)
	if err != nil {
		return nil, err
	}

	var marketCap *float64
	if snapshot != nil && snapshot.MarketCap != nil {
		value := snapshot.MarketCap.InexactFloat64()
		marketCap = &value
	}

	revenue := toFloat(statement.Revenue)
	operatingIncome := toFloat(statement.OperatingIncome)
	netIncome := toFloat(statement.NetIncome)
	totalAssets := toFloat(statement.TotalAssets)
	totalLiabilities := toFloat(statement.TotalLiabilities)
	totalEquity := toFloat(statement.TotalEquity)

	ratio := &model.FinancialRatio{
		StockID:    statement.StockID,
		FiscalDate: fiscalDate,
		ReportType: statement.ReportType,
	}

	// 盈利能力
	if netIncome != nil && totalEquity != nil {
		ratio.ROE = toDecimal(CalculateROE(*netIncome, *totalEquity))
	}
	if netIncome != nil && totalAssets != nil {
		ratio.ROA = toDecimal(CalculateROA(*netIncome, *totalAssets))
	}
	if operatingIncome != nil && revenue != nil {
		ratio.OperatingMargin = toDecimal(CalculateOperatingMargin(*operatingIncome, *revenue))
	}
	if netIncome != nil && revenue != nil {
		ratio.NetMargin = toDecimal(CalculateNetMargin(*netIncome, *revenue))
	}

	// 稳定性
	if totalLiabilities != nil && totalEquity != nil {
		ratio.DebtRatio = toDecimal(CalculateDebtRatio(*totalLiabilities, *totalEquity))
	}

	// 估值（需要市值）
	if marketCap != nil {
		if netIncome != nil {
			ratio.PER = toDecimal(CalculatePER(*marketCap, *netIncome))
		}
		if totalEquity != nil {
			ratio.PBR = toDecimal(CalculatePBR(*marketCap, *totalEquity))
		}
		if revenue != nil {
			ratio.PSR = toDecimal(CalculatePSR(*marketCap, *revenue))
		}
	}

	return ratio, nil
}

// CalculateAndSaveForStock 计算并保存某只股票的全部比率
// fiscalYear 为 0 表示全部年度
func (s *Service) CalculateAndSaveForStock(ticker string, fiscalYear int) (*model.RatioResult, error) {
	stock, err := s.stocks.GetByTicker(ticker)
	if err != nil {
		return nil, err
	}

	statements, err := s.financials.GetStatementsByStock(stock.ID, fiscalYear)
	if err != nil {
		return nil, err
	}
	if len(statements) == 0 {
		return nil, fmt.Errorf("股票 %s 没有财务报表", ticker)
	}

	result := &model.RatioResult{
		Ticker:          ticker,
		Name:            stock.Name,
		TotalStatements: len(statements),
	}

	for _, statement := range statements {
		period := fmt.Sprintf("%d", statement.FiscalYear)
		if statement.ReportType != model.ReportAnnual {
			period = fmt.Sprintf("%d%s", statement.FiscalYear, statement.ReportType)
		}

		ratio, err := s.ComputeForStatement(statement)
		if err != nil {
			result.RatiosFailed++
			log.Printf("计算 %s %s 比率失败: %v", ticker, period, err)
			continue
		}
		result.RatiosCalculated++

		// 同键重算是覆盖，不会产生重复行
		if err := s.financials.UpsertRatio(ratio); err != nil {
			result.RatiosFailed++
			log.Printf("保存 %s %s 比率失败: %v", ticker, period, err)
			continue
		}
		result.RatiosSaved++

		result.Details = append(result.Details, model.RatioDetail{
			Period:          period,
			FiscalDate:      ratio.FiscalDate.Format("2006-01-02"),
			ROE:             fromDecimal(ratio.ROE),
			ROA:             fromDecimal(ratio.ROA),
			OperatingMargin: fromDecimal(ratio.OperatingMargin),
			NetMargin:       fromDecimal(ratio.NetMargin),
			DebtRatio:       fromDecimal(ratio.DebtRatio),
			PER:             fromDecimal(ratio.PER),
			PBR:             fromDecimal(ratio.PBR),
			PSR:             fromDecimal(ratio.PSR),
		})
	}

	return result, nil
}

// CalculateBatch 批量计算有报表的股票比率，单只失败不中断批次
func (s *Service) CalculateBatch(market string, limit int) (*model.RatioBatchResult, error) {
	stocks, err := s.stocks.GetWithStatements(market, limit)
	if err != nil {
		return nil, fmt.Errorf("查询待计算股票失败: %w", err)
	}

	result := &model.RatioBatchResult{
		TotalStocks: len(stocks),
		Errors:      make([]model.CollectionError, 0),
	}

	log.Printf("开始批量计算比率，共 %d 只股票", len(stocks))

	for idx, stock := range stocks {
		result.StocksProcessed++

		stockResult, err := s.CalculateAndSaveForStock(stock.Ticker, 0)
		if err != nil {
			result.StocksFailed++
			result.Errors = append(result.Errors, model.CollectionError{
				Ticker:  stock.Ticker,
				Message: err.Error(),
			})
			log.Printf("[%d/%d] %s 比率计算失败: %v", idx+1, len(stocks), stock.Ticker, err)
			continue
		}

		result.StocksSucceeded++
		result.TotalRatiosCalculated += stockResult.RatiosCalculated
		result.TotalRatiosSaved += stockResult.RatiosSaved
	}

	log.Printf("批量计算完成: 处理 %d, 成功 %d, 失败 %d, 保存比率 %d",
		result.StocksProcessed, result.StocksSucceeded, result.StocksFailed, result.TotalRatiosSaved)

	return result, nil
}

// toFloat 把可空 decimal 转成可空 float64
func toFloat(value *decimal.Decimal) *float64 {
	if value == nil {
		return nil
	}
	f := value.InexactFloat64()
	return &f
}

// toDecimal 把计算结果按 4 位小数落库
func toDecimal(value *float64) *decimal.Decimal {
	if value == nil {
		return nil
	}
	d := decimal.NewFromFloat(*value).Round(4)
	return &d
}

// fromDecimal 把落库值转回 float64 用于结果明细
func fromDecimal(value *decimal.Decimal) *float64 {
	if value == nil {
		return nil
	}
	f := value.InexactFloat64()
	return &f
}

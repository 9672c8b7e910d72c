package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"EquityReach/pkg/collector"
	"EquityReach/pkg/database"
	"EquityReach/pkg/messaging"
	"EquityReach/pkg/model"
	"EquityReach/pkg/quality"
	"EquityReach/pkg/screener"
)

// MarketCollector 行情与快照采集入口
type MarketCollector interface {
	CollectPrices(options collector.Options) (*model.CollectionResult, error)
	CollectSnapshots(market string, date time.Time) (*model.CollectionResult, error)
}

// StatementCollector 财务报表采集入口
type StatementCollector interface {
	CollectStatements(options collector.StatementOptions) (*model.StatementBatchResult, error)
}

// RatioService 比率计算入口
type RatioService interface {
	CalculateAndSaveForStock(ticker string, fiscalYear int) (*model.RatioResult, error)
	CalculateBatch(market string, limit int) (*model.RatioBatchResult, error)
}

// QualityChecker 数据质量报告入口
type QualityChecker interface {
	GenerateReport(market string) (*quality.Report, error)
}

// StockScreener 股票筛选入口
type StockScreener interface {
	Undervalued(market string, limit int) ([]screener.Result, error)
	Quality(market string, limit int) ([]screener.Result, error)
	Growth(market string, limit int) ([]screener.Result, error)
	Screen(filter screener.Filter) ([]screener.Result, error)
	CompareBySector(market string, topN int) ([]screener.SectorGroup, error)
}

// StockReader 股票信息读取
type StockReader interface {
	GetByTicker(ticker string) (*model.Stock, error)
}

// Publisher 批次结果广播，可为 nil
type Publisher interface {
	PublishCollectionResult(subject string, result *model.CollectionResult) error
	PublishStatementResult(result *model.StatementBatchResult) error
	PublishRatioResult(result *model.RatioBatchResult) error
}

// Handlers API处理程序
type Handlers struct {
	markets    MarketCollector
	statements StatementCollector
	ratios     RatioService
	checker    QualityChecker
	screener   StockScreener
	stocks     StockReader
	publisher  Publisher
}

// NewHandlers 创建新的API处理程序
func NewHandlers(
	markets MarketCollector,
	statements StatementCollector,
	ratios RatioService,
	checker QualityChecker,
	stockScreener StockScreener,
	stocks StockReader,
	publisher Publisher,
) *Handlers {
	return &Handlers{
		markets:    markets,
		statements: statements,
		ratios:     ratios,
		checker:    checker,
		screener:   stockScreener,
		stocks:     stocks,
		publisher:  publisher,
	}
}

// HealthCheck 健康检查处理程序
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ReadinessCheck 就绪检查处理程序
func (h *Handlers) ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// CollectRequest 行情采集请求
type CollectRequest struct {
	Market    string `json:"market" binding:"required"`
	Mode      string `json:"mode"` // incremental / full，默认 incremental
	MaxStocks int    `json:"max_stocks"`
}

// CollectPrices 触发行情批量采集
func (h *Handlers) CollectPrices(c *gin.Context) {
	var req CollectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "无效的请求参数: " + err.Error(),
		})
		return
	}
	if !validMarket(req.Market) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "不支持的市场: " + req.Market,
		})
		return
	}

	mode := model.ModeIncremental
	if req.Mode == string(model.ModeFull) {
		mode = model.ModeFull
	}

	result, err := h.markets.CollectPrices(collector.Options{
		Market:    req.Market,
		Mode:      mode,
		MaxStocks: req.MaxStocks,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "采集行情失败: " + err.Error(),
			"result": result,
		})
		return
	}

	h.publishCollection(messaging.SubjectPricesCollected, result)
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// SnapshotRequest 市场快照采集请求
type SnapshotRequest struct {
	Market string `json:"market" binding:"required"`
	Date   string `json:"date"` // YYYY-MM-DD，默认当天
}

// CollectSnapshots 触发市场快照采集
func (h *Handlers) CollectSnapshots(c *gin.Context) {
	var req SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "无效的请求参数: " + err.Error(),
		})
		return
	}
	if !validMarket(req.Market) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "不支持的市场: " + req.Market,
		})
		return
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "无效的日期格式，应为 YYYY-MM-DD",
			})
			return
		}
		date = parsed
	}

	result, err := h.markets.CollectSnapshots(req.Market, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "采集市场快照失败: " + err.Error(),
			"result": result,
		})
		return
	}

	h.publishCollection(messaging.SubjectSnapshotsCollected, result)
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// StatementRequest 报表采集请求
type StatementRequest struct {
	Market       string   `json:"market"`
	Tickers      []string `json:"tickers"`
	StartYear    int      `json:"start_year"`
	EndYear      int      `json:"end_year"`
	ReportTypes  []string `json:"report_types"`
	Incremental  bool     `json:"incremental"`
	SkipExisting bool     `json:"skip_existing"`
	MaxStocks    int      `json:"max_stocks"`
}

// CollectStatements 触发财务报表批量采集
func (h *Handlers) CollectStatements(c *gin.Context) {
	var req StatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "无效的请求参数: " + err.Error(),
		})
		return
	}
	if req.Market == "" && len(req.Tickers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "market 与 tickers 至少提供一个",
		})
		return
	}

	result, err := h.statements.CollectStatements(collector.StatementOptions{
		Market:       req.Market,
		Tickers:      req.Tickers,
		StartYear:    req.StartYear,
		EndYear:      req.EndYear,
		ReportTypes:  req.ReportTypes,
		Incremental:  req.Incremental,
		SkipExisting: req.SkipExisting,
		MaxStocks:    req.MaxStocks,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "采集财务报表失败: " + err.Error(),
			"result": result,
		})
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishStatementResult(result); err != nil {
			log.Printf("广播报表采集结果失败: %v", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// RatioRequest 比率计算请求：指定 ticker 时算单只，否则按市场批量
type RatioRequest struct {
	Ticker     string `json:"ticker"`
	FiscalYear int    `json:"fiscal_year"`
	Market     string `json:"market"`
	Limit      int    `json:"limit"`
}

// CalculateRatios 触发比率计算
func (h *Handlers) CalculateRatios(c *gin.Context) {
	var req RatioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "无效的请求参数: " + err.Error(),
		})
		return
	}

	if req.Ticker != "" {
		result, err := h.ratios.CalculateAndSaveForStock(req.Ticker, req.FiscalYear)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, database.ErrStockNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{
				"error": "计算比率失败: " + err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": result})
		return
	}

	result, err := h.ratios.CalculateBatch(req.Market, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "批量计算比率失败: " + err.Error(),
		})
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishRatioResult(result); err != nil {
			log.Printf("广播比率计算结果失败: %v", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// QualityReport 生成数据质量报告
func (h *Handlers) QualityReport(c *gin.Context) {
	market := c.Query("market")
	if market != "" && !validMarket(market) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "不支持的市场: " + market,
		})
		return
	}

	report, err := h.checker.GenerateReport(market)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "生成质量报告失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

// ScreenUndervalued 低估值预设筛选
func (h *Handlers) ScreenUndervalued(c *gin.Context) {
	h.screenPreset(c, h.screener.Undervalued)
}

// ScreenQuality 绩优预设筛选
func (h *Handlers) ScreenQuality(c *gin.Context) {
	h.screenPreset(c, h.screener.Quality)
}

// ScreenGrowth 成长预设筛选
func (h *Handlers) ScreenGrowth(c *gin.Context) {
	h.screenPreset(c, h.screener.Growth)
}

// screenPreset 预设筛选的公共参数处理
func (h *Handlers) screenPreset(c *gin.Context, screen func(string, int) ([]screener.Result, error)) {
	market := c.Query("market")
	if market != "" && !validMarket(market) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "不支持的市场: " + market,
		})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	results, err := screen(market, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "筛选失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(results),
		"data":  results,
	})
}

// ScreenCustom 自定义条件筛选
func (h *Handlers) ScreenCustom(c *gin.Context) {
	var filter screener.Filter
	if err := c.ShouldBindJSON(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "无效的请求参数: " + err.Error(),
		})
		return
	}
	if filter.Market != "" && !validMarket(filter.Market) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "不支持的市场: " + filter.Market,
		})
		return
	}

	results, err := h.screener.Screen(filter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "筛选失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(results),
		"data":  results,
	})
}

// CompareSectors 行业对比
func (h *Handlers) CompareSectors(c *gin.Context) {
	market := c.Query("market")
	if market != "" && !validMarket(market) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "不支持的市场: " + market,
		})
		return
	}
	topN, _ := strconv.Atoi(c.DefaultQuery("top", "5"))

	groups, err := h.screener.CompareBySector(market, topN)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "行业对比失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(groups),
		"data":  groups,
	})
}

// GetStock 查询单只股票信息
func (h *Handlers) GetStock(c *gin.Context) {
	ticker := c.Param("ticker")

	stock, err := h.stocks.GetByTicker(ticker)
	if err != nil {
		if errors.Is(err, database.ErrStockNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "股票不存在: " + ticker,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "查询股票失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stock})
}

// publishCollection 广播采集结果，未启用消息时跳过
func (h *Handlers) publishCollection(subject string, result *model.CollectionResult) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishCollectionResult(subject, result); err != nil {
		log.Printf("广播采集结果失败: %v", err)
	}
}

// validMarket 市场代码白名单
func validMarket(market string) bool {
	switch market {
	case model.MarketKOSPI, model.MarketKOSDAQ, model.MarketKONEX:
		return true
	default:
		return false
	}
}

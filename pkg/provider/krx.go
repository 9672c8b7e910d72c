package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// KRXAdapter 韩国交易所数据网关适配器
// 通过 HTTP 网关提供上市名单、日线行情和市值快照
type KRXAdapter struct {
	baseURL    string
	httpClient *http.Client
}

// NewKRXAdapter 创建 KRX 适配器
func NewKRXAdapter(baseURL string, timeout time.Duration) *KRXAdapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &KRXAdapter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// listingRow 网关返回的上市名单行
type listingRow struct {
	Ticker string  `json:"ticker"`
	Name   string  `json:"name"`
	Sector *string `json:"sector"`
}

// ohlcvRow 网关返回的日线行
type ohlcvRow struct {
	Date   string   `json:"date"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  float64  `json:"close"`
	Volume *int64   `json:"volume"`
}

// capRow 网关返回的市值快照行
type capRow struct {
	Ticker            string   `json:"ticker"`
	MarketCap         *float64 `json:"market_cap"`
	TradingValue      *float64 `json:"trading_value"`
	SharesOutstanding *int64   `json:"shares_outstanding"`
}

// FetchListing 获取市场全部上市股票
func (k *KRXAdapter) FetchListing(market string) ([]Listing, error) {
	params := url.Values{}
	params.Set("market", market)

	var rows []listingRow
	if err := k.getJSON("/api/public/stock_listing", params, &rows); err != nil {
		return nil, err
	}

	result := make([]Listing, 0, len(rows))
	for _, row := range rows {
		result = append(result, Listing{
			Ticker: row.Ticker,
			Name:   row.Name,
			Sector: row.Sector,
		})
	}
	return result, nil
}

// FetchDailyBars 获取指定区间的日线行情
// 区间内没有交易日时返回空切片
func (k *KRXAdapter) FetchDailyBars(ticker string, start, end time.Time) ([]DailyBar, error) {
	params := url.Values{}
	params.Set("ticker", ticker)
	params.Set("start", start.Format("2006-01-02"))
	params.Set("end", end.Format("2006-01-02"))

	var rows []ohlcvRow
	if err := k.getJSON("/api/public/stock_ohlcv", params, &rows); err != nil {
		return nil, err
	}

	result := make([]DailyBar, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			// 单行日期异常跳过，不中断整个响应
			continue
		}
		result = append(result, DailyBar{
			Date:   date,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}
	return result, nil
}

// FetchMarketSnapshot 获取市场某日的全量市值快照
func (k *KRXAdapter) FetchMarketSnapshot(market string, date time.Time) ([]SnapshotRow, error) {
	params := url.Values{}
	params.Set("market", market)
	params.Set("date", date.Format("20060102"))

	var rows []capRow
	if err := k.getJSON("/api/public/market_cap", params, &rows); err != nil {
		return nil, err
	}

	result := make([]SnapshotRow, 0, len(rows))
	for _, row := range rows {
		result = append(result, SnapshotRow{
			Ticker:            row.Ticker,
			MarketCap:         row.MarketCap,
			TradingValue:      row.TradingValue,
			SharesOutstanding: row.SharesOutstanding,
		})
	}
	return result, nil
}

// getJSON 带重试的 GET 请求
func (k *KRXAdapter) getJSON(path string, params url.Values, out interface{}) error {
	apiURL := fmt.Sprintf("%s%s?%s", k.baseURL, path, params.Encode())

	var resp *http.Response
	var err error
	for retries := 0; retries < 3; retries++ {
		resp, err = k.httpClient.Get(apiURL)
		if err == nil {
			break
		}
		// 退避后重试，避免瞬时故障直接判定失败
		time.Sleep(time.Duration(retries+1) * time.Second)
	}
	if err != nil {
		return fmt.Errorf("%w: 请求 %s 失败: %v", ErrProviderUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s 返回状态码 %d", ErrProviderUnavailable, path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: 读取响应失败: %v", ErrProviderUnavailable, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: 解析响应失败: %v", ErrProviderUnavailable, err)
	}
	return nil
}

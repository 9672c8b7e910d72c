package provider

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"EquityReach/pkg/model"
)

// DART 报告代码
// 年报 11011，一季报 11013，半年报 11012，三季报 11014
var dartReportCodes = map[string]string{
	model.ReportAnnual: "11011",
	model.ReportQ1:     "11013",
	model.ReportQ2:     "11012",
	model.ReportQ3:     "11014",
}

// DartAdapter 韩国电子公示系统（DART）适配器
// DART 使用公司唯一编号而不是股票代码，首次调用时下载全量名录并缓存
type DartAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	corpCodes map[string]string // ticker -> corp_code
}

// NewDartAdapter 创建 DART 适配器
func NewDartAdapter(apiKey, baseURL string, timeout time.Duration) *DartAdapter {
	if baseURL == "" {
		baseURL = "https://opendart.fss.or.kr/api"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DartAdapter{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// corpCodeResult 名录 XML 结构
type corpCodeResult struct {
	XMLName xml.Name       `xml:"result"`
	Items   []corpCodeItem `xml:"list"`
}

type corpCodeItem struct {
	CorpCode  string `xml:"corp_code"`
	CorpName  string `xml:"corp_name"`
	StockCode string `xml:"stock_code"`
}

// ResolveCorpCode 把股票代码解析成 DART 公司唯一编号
// 名录是全量下载，只拉取一次后常驻内存
func (d *DartAdapter) ResolveCorpCode(ticker string) (string, error) {
	d.mu.RLock()
	if d.corpCodes != nil {
		code, ok := d.corpCodes[ticker]
		d.mu.RUnlock()
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrCorpCodeNotFound, ticker)
		}
		return code, nil
	}
	d.mu.RUnlock()

	if err := d.loadCorpCodes(); err != nil {
		return "", err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	code, ok := d.corpCodes[ticker]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrCorpCodeNotFound, ticker)
	}
	return code, nil
}

// loadCorpCodes 下载并解析全量公司名录（ZIP 内嵌 XML）
func (d *DartAdapter) loadCorpCodes() error {
	params := url.Values{}
	params.Set("crtfc_key", d.apiKey)
	apiURL := fmt.Sprintf("%s/corpCode.xml?%s", d.baseURL, params.Encode())

	resp, err := d.httpClient.Get(apiURL)
	if err != nil {
		return fmt.Errorf("%w: 下载公司名录失败: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: 公司名录返回状态码 %d", ErrProviderUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: 读取名录响应失败: %v", ErrProviderUnavailable, err)
	}

	zipReader, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return fmt.Errorf("%w: 解压名录失败: %v", ErrProviderUnavailable, err)
	}

	var xmlData []byte
	for _, file := range zipReader.File {
		if file.Name == "CORPCODE.xml" {
			rc, err := file.Open()
			if err != nil {
				return fmt.Errorf("%w: 打开名录文件失败: %v", ErrProviderUnavailable, err)
			}
			xmlData, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return fmt.Errorf("%w: 读取名录文件失败: %v", ErrProviderUnavailable, err)
			}
			break
		}
	}
	if xmlData == nil {
		return fmt.Errorf("%w: 名录压缩包中没有 CORPCODE.xml", ErrProviderUnavailable)
	}

	var result corpCodeResult
	if err := xml.Unmarshal(xmlData, &result); err != nil {
		return fmt.Errorf("%w: 解析名录 XML 失败: %v", ErrProviderUnavailable, err)
	}

	codes := make(map[string]string, len(result.Items))
	for _, item := range result.Items {
		if item.StockCode != "" && item.StockCode != " " {
			codes[item.StockCode] = item.CorpCode
		}
	}

	d.mu.Lock()
	d.corpCodes = codes
	d.mu.Unlock()
	return nil
}

// statementResponse 报表接口响应
type statementResponse struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	List    []statementRawItem `json:"list"`
}

type statementRawItem struct {
	SjDiv        string `json:"sj_div"`        // 报表分类
	AccountName  string `json:"account_nm"`    // 科目名
	ThstrmAmount string `json:"thstrm_amount"` // 当期金额
}

// FetchStatement 获取某公司某年度某报告类型的报表科目行
// DART 状态码 013 表示该期间尚未公示，按无数据处理
func (d *DartAdapter) FetchStatement(corpCode string, fiscalYear int, reportType string) ([]RawAccountRow, error) {
	reportCode, ok := dartReportCodes[reportType]
	if !ok {
		reportCode = dartReportCodes[model.ReportAnnual]
	}

	params := url.Values{}
	params.Set("crtfc_key", d.apiKey)
	params.Set("corp_code", corpCode)
	params.Set("bsns_year", fmt.Sprintf("%d", fiscalYear))
	params.Set("reprt_code", reportCode)
	params.Set("fs_div", "CFS") // 合并财务报表
	apiURL := fmt.Sprintf("%s/fnlttSinglAcntAll.json?%s", d.baseURL, params.Encode())

	resp, err := d.httpClient.Get(apiURL)
	if err != nil {
		return nil, fmt.Errorf("%w: 请求报表失败: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: 报表接口返回状态码 %d", ErrProviderUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取报表响应失败: %v", ErrProviderUnavailable, err)
	}

	var response statementResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: 解析报表响应失败: %v", ErrProviderUnavailable, err)
	}

	// 013: 没有可提供的数据
	if response.Status == "013" {
		return nil, nil
	}
	if response.Status != "000" {
		return nil, fmt.Errorf("%w: DART 返回错误 %s: %s", ErrProviderUnavailable, response.Status, response.Message)
	}

	rows := make([]RawAccountRow, 0, len(response.List))
	for _, item := range response.List {
		rows = append(rows, RawAccountRow{
			Category:    item.SjDiv,
			AccountName: item.AccountName,
			Amount:      item.ThstrmAmount,
		})
	}
	return rows, nil
}

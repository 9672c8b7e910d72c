package ratio

import (
	"time"

	"EquityReach/pkg/model"
)

// 估值比率抑制区间（闭区间，越界的结果数学上成立但没有实际意义）
const (
	PERMin = -1000.0
	PERMax = 10000.0
	PBRMin = -100.0
	PBRMax = 1000.0
	PSRMin = -100.0
	PSRMax = 1000.0
)

// CalculateROE ROE = 当期净利润 / 所有者权益 × 100
// 权益小于等于零时无定义
func CalculateROE(netIncome, totalEquity float64) *float64 {
	if totalEquity <= 0 {
		return nil
	}
	value := netIncome / totalEquity * 100
	return &value
}

// CalculateROA ROA = 当期净利润 / 资产总额 × 100
func CalculateROA(netIncome, totalAssets float64) *float64 {
	if totalAssets <= 0 {
		return nil
	}
	value := netIncome / totalAssets * 100
	return &value
}

// CalculateOperatingMargin 营业利润率 = 营业利润 / 营业收入 × 100
func CalculateOperatingMargin(operatingIncome, revenue float64) *float64 {
	if revenue <= 0 {
		return nil
	}
	value := operatingIncome / revenue * 100
	return &value
}

// CalculateNetMargin 净利率 = 当期净利润 / 营业收入 × 100
func CalculateNetMargin(netIncome, revenue float64) *float64 {
	if revenue <= 0 {
		return nil
	}
	value := netIncome / revenue * 100
	return &value
}

// CalculateDebtRatio 负债率 = 负债总额 / 所有者权益 × 100
func CalculateDebtRatio(totalLiabilities, totalEquity float64) *float64 {
	if totalEquity <= 0 {
		return nil
	}
	value := totalLiabilities / totalEquity * 100
	return &value
}

// CalculatePER PER = 市值 / 当期净利润
// 净利润小于等于零时无定义，结果落在 [-1000, 10000] 之外时抑制为空
func CalculatePER(marketCap, netIncome float64) *float64 {
	if netIncome <= 0 {
		return nil
	}
	value := marketCap / netIncome
	if value < PERMin || value > PERMax {
		return nil
	}
	return &value
}

// CalculatePBR PBR = 市值 / 所有者权益，抑制区间 [-100, 1000]
func CalculatePBR(marketCap, totalEquity float64) *float64 {
	if totalEquity <= 0 {
		return nil
	}
	value := marketCap / totalEquity
	if value < PBRMin || value > PBRMax {
		return nil
	}
	return &value
}

// CalculatePSR PSR = 市值 / 营业收入，抑制区间 [-100, 1000]
func CalculatePSR(marketCap, revenue float64) *float64 {
	if revenue <= 0 {
		return nil
	}
	value := marketCap / revenue
	if value < PSRMin || value > PSRMax {
		return nil
	}
	return &value
}

// PeriodEndDate 由 (年度, 报告类型) 推算会计期间末日
// 年报 12-31，一季报 3-31，半年报 6-30，三季报 9-30
func PeriodEndDate(fiscalYear int, reportType string) time.Time {
	switch reportType {
	case model.ReportQ1:
		return time.Date(fiscalYear, 3, 31, 0, 0, 0, 0, time.UTC)
	case model.ReportQ2:
		return time.Date(fiscalYear, 6, 30, 0, 0, 0, 0, time.UTC)
	case model.ReportQ3:
		return time.Date(fiscalYear, 9, 30, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(fiscalYear, 12, 31, 0, 0, 0, 0, time.UTC)
	}
}

package normalizer

import (
	"strings"

	"github.com/shopspring/decimal"

	"EquityReach/pkg/model"
	"EquityReach/pkg/provider"
)

// 报表分类
const (
	CategoryIncome   = "IS" // 损益表
	CategoryBalance  = "BS" // 资产负债表
	CategoryCashFlow = "CF" // 现金流量表
)

// Statement 归一化后的报表：十个科目相互独立，缺失保持 nil
// 零是有效金额，与未知不同，绝不用零填充缺失
type Statement struct {
	Revenue           *decimal.Decimal
	OperatingIncome   *decimal.Decimal
	NetIncome         *decimal.Decimal
	EBITDA            *decimal.Decimal
	TotalAssets       *decimal.Decimal
	TotalLiabilities  *decimal.Decimal
	TotalEquity       *decimal.Decimal
	OperatingCashFlow *decimal.Decimal
	InvestingCashFlow *decimal.Decimal
	FinancingCashFlow *decimal.Decimal
}

type mappingKey struct {
	category string
	account  string
}

type fieldSelector func(*Statement) **decimal.Decimal

// exactMapping 精确映射表：(报表分类, 科目名) -> 目标字段
var exactMapping = map[mappingKey]fieldSelector{
	// 损益表
	{CategoryIncome, "영업수익"}: func(s *Statement) **decimal.Decimal { return &s.Revenue },
	{CategoryIncome, "매출액"}:  func(s *Statement) **decimal.Decimal { return &s.Revenue },
	{CategoryIncome, "영업이익"}: func(s *Statement) **decimal.Decimal { return &s.OperatingIncome },
	{CategoryIncome, "지배기업의 소유주에게 귀속되는 당기순이익(손실)"}: func(s *Statement) **decimal.Decimal { return &s.NetIncome },

	// 资产负债表
	{CategoryBalance, "자산총계"}: func(s *Statement) **decimal.Decimal { return &s.TotalAssets },
	{CategoryBalance, "부채총계"}: func(s *Statement) **decimal.Decimal { return &s.TotalLiabilities },
	{CategoryBalance, "자본총계"}: func(s *Statement) **decimal.Decimal { return &s.TotalEquity },

	// 现金流量表
	{CategoryCashFlow, "영업활동현금흐름"}: func(s *Statement) **decimal.Decimal { return &s.OperatingCashFlow },
	{CategoryCashFlow, "투자활동현금흐름"}: func(s *Statement) **decimal.Decimal { return &s.InvestingCashFlow },
	{CategoryCashFlow, "재무활동현금흐름"}: func(s *Statement) **decimal.Decimal { return &s.FinancingCashFlow },
}

type keywordRule struct {
	keyword string
	field   fieldSelector
}

// incomeKeywordRules 关键词回退规则，只在损益表分类内生效，按顺序评估
var incomeKeywordRules = []keywordRule{
	{"영업수익", func(s *Statement) **decimal.Decimal { return &s.Revenue }},
	{"영업이익", func(s *Statement) **decimal.Decimal { return &s.OperatingIncome }},
	{"당기순이익", func(s *Statement) **decimal.Decimal { return &s.NetIncome }},
}

// Normalize 把数据源的原始科目行归一化成固定字段集
// 先精确匹配，再做同分类内的关键词回退；同一字段先到先得，
// 后续重复行直接忽略（数据源会重复发行，这是有意为之）；
// 映射表之外的行静默丢弃
func Normalize(rows []provider.RawAccountRow) Statement {
	var statement Statement

	for _, row := range rows {
		category := strings.TrimSpace(row.Category)
		account := strings.TrimSpace(row.AccountName)

		// 1次：精确匹配
		if selector, ok := exactMapping[mappingKey{category, account}]; ok {
			assign(&statement, selector, row.Amount)
			continue
		}

		// 2次：关键词回退，限定在同一报表分类内，避免跨分类误配
		if category == CategoryIncome {
			for _, rule := range incomeKeywordRules {
				if strings.Contains(account, rule.keyword) && *rule.field(&statement) == nil {
					assign(&statement, rule.field, row.Amount)
					break
				}
			}
		}
	}

	return statement
}

// assign 解析金额并赋值，目标字段已有值时忽略
// 解析失败只丢弃该行，绝不中断整张报表
func assign(statement *Statement, selector fieldSelector, amount string) {
	target := selector(statement)
	if *target != nil {
		return
	}
	if parsed := ParseAmount(amount); parsed != nil {
		*target = parsed
	}
}

// ParseAmount 把带千分位的金额字符串解析成 decimal
// 解析失败返回 nil，由调用方把字段保持为 NULL
func ParseAmount(raw string) *decimal.Decimal {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" || cleaned == "-" {
		return nil
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	return &value
}

// Apply 把归一化结果写入报表实体
func (s Statement) Apply(target *model.FinancialStatement) {
	target.Revenue = s.Revenue
	target.OperatingIncome = s.OperatingIncome
	target.NetIncome = s.NetIncome
	target.EBITDA = s.EBITDA
	target.TotalAssets = s.TotalAssets
	target.TotalLiabilities = s.TotalLiabilities
	target.TotalEquity = s.TotalEquity
	target.OperatingCashFlow = s.OperatingCashFlow
	target.InvestingCashFlow = s.InvestingCashFlow
	target.FinancingCashFlow = s.FinancingCashFlow
}

// FieldCount 已归一化出的字段数量
func (s Statement) FieldCount() int {
	count := 0
	for _, field := range []*decimal.Decimal{
		s.Revenue, s.OperatingIncome, s.NetIncome, s.EBITDA,
		s.TotalAssets, s.TotalLiabilities, s.TotalEquity,
		s.OperatingCashFlow, s.InvestingCashFlow, s.FinancingCashFlow,
	} {
		if field != nil {
			count++
		}
	}
	return count
}

package normalizer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EquityReach/pkg/model"
	"EquityReach/pkg/provider"
)

func amount(value string) decimal.Decimal {
	d, _ := decimal.NewFromString(value)
	return d
}

func TestNormalizeExactMatch(t *testing.T) {
	rows := []provider.RawAccountRow{
		{Category: CategoryIncome, AccountName: "영업수익", Amount: "1,000,000"},
		{Category: CategoryIncome, AccountName: "영업이익", Amount: "200,000"},
		{Category: CategoryIncome, AccountName: "지배기업의 소유주에게 귀속되는 당기순이익(손실)", Amount: "150,000"},
		{Category: CategoryBalance, AccountName: "자산총계", Amount: "5,000,000"},
		{Category: CategoryBalance, AccountName: "부채총계", Amount: "2,000,000"},
		{Category: CategoryBalance, AccountName: "자본총계", Amount: "3,000,000"},
		{Category: CategoryCashFlow, AccountName: "영업활동현금흐름", Amount: "180,000"},
		{Category: CategoryCashFlow, AccountName: "투자활동현금흐름", Amount: "-90,000"},
		{Category: CategoryCashFlow, AccountName: "재무활동현금흐름", Amount: "-30,000"},
	}

	statement := Normalize(rows)

	require.NotNil(t, statement.Revenue)
	assert.True(t, statement.Revenue.Equal(amount("1000000")))
	require.NotNil(t, statement.OperatingIncome)
	assert.True(t, statement.OperatingIncome.Equal(amount("200000")))
	require.NotNil(t, statement.NetIncome)
	assert.True(t, statement.NetIncome.Equal(amount("150000")))
	require.NotNil(t, statement.TotalAssets)
	assert.True(t, statement.TotalAssets.Equal(amount("5000000")))
	require.NotNil(t, statement.InvestingCashFlow)
	assert.True(t, statement.InvestingCashFlow.Equal(amount("-90000")))
	assert.Equal(t, 9, statement.FieldCount())
	assert.Nil(t, statement.EBITDA)
}

func TestNormalizeKeywordFallback(t *testing.T) {
	// 科目名带修饰时走关键词回退
	rows := []provider.RawAccountRow{
		{Category: CategoryIncome, AccountName: "연결영업수익(매출)", Amount: "500"},
		{Category: CategoryIncome, AccountName: "연결영업이익(손실)", Amount: "100"},
		{Category: CategoryIncome, AccountName: "연결당기순이익(손실)", Amount: "80"},
	}

	statement := Normalize(rows)

	require.NotNil(t, statement.Revenue)
	assert.True(t, statement.Revenue.Equal(amount("500")))
	require.NotNil(t, statement.OperatingIncome)
	assert.True(t, statement.OperatingIncome.Equal(amount("100")))
	require.NotNil(t, statement.NetIncome)
	assert.True(t, statement.NetIncome.Equal(amount("80")))
}

func TestNormalizeKeywordOnlyInIncomeCategory(t *testing.T) {
	// 关键词回退限定在损益表分类内，资产负债表里的同名科目不参与
	rows := []provider.RawAccountRow{
		{Category: CategoryBalance, AccountName: "영업이익잉여금", Amount: "999"},
	}

	statement := Normalize(rows)
	assert.Nil(t, statement.OperatingIncome)
	assert.Equal(t, 0, statement.FieldCount())
}

func TestNormalizeFirstMatchWins(t *testing.T) {
	// 数据源重复发行同一科目时，先到的行生效
	rows := []provider.RawAccountRow{
		{Category: CategoryIncome, AccountName: "영업수익", Amount: "100"},
		{Category: CategoryIncome, AccountName: "영업수익", Amount: "999"},
		{Category: CategoryIncome, AccountName: "매출액", Amount: "888"},
	}

	statement := Normalize(rows)

	require.NotNil(t, statement.Revenue)
	assert.True(t, statement.Revenue.Equal(amount("100")))
}

func TestNormalizeExactBeforeKeyword(t *testing.T) {
	// 精确匹配先于关键词回退，回退行不能抢占已赋值的字段
	rows := []provider.RawAccountRow{
		{Category: CategoryIncome, AccountName: "영업수익", Amount: "100"},
		{Category: CategoryIncome, AccountName: "기타영업수익", Amount: "5"},
	}

	statement := Normalize(rows)

	require.NotNil(t, statement.Revenue)
	assert.True(t, statement.Revenue.Equal(amount("100")))
}

func TestNormalizeUnparsableAmountLeavesNil(t *testing.T) {
	rows := []provider.RawAccountRow{
		{Category: CategoryIncome, AccountName: "영업수익", Amount: "-"},
		{Category: CategoryBalance, AccountName: "자산총계", Amount: ""},
		{Category: CategoryBalance, AccountName: "부채총계", Amount: "abc"},
	}

	statement := Normalize(rows)

	assert.Nil(t, statement.Revenue)
	assert.Nil(t, statement.TotalAssets)
	assert.Nil(t, statement.TotalLiabilities)
}

func TestNormalizeZeroIsValidAmount(t *testing.T) {
	// 零是有效金额，不等于缺失
	rows := []provider.RawAccountRow{
		{Category: CategoryIncome, AccountName: "영업이익", Amount: "0"},
	}

	statement := Normalize(rows)

	require.NotNil(t, statement.OperatingIncome)
	assert.True(t, statement.OperatingIncome.IsZero())
}

func TestNormalizeUnknownRowsDropped(t *testing.T) {
	rows := []provider.RawAccountRow{
		{Category: CategoryIncome, AccountName: "판매비와관리비", Amount: "77"},
		{Category: "XX", AccountName: "영업수익", Amount: "88"},
	}

	statement := Normalize(rows)
	assert.Equal(t, 0, statement.FieldCount())
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw      string
		expected string
		ok       bool
	}{
		{"1,234,567", "1234567", true},
		{"-45,000", "-45000", true},
		{" 100 ", "100", true},
		{"0", "0", true},
		{"", "", false},
		{"-", "", false},
		{"n/a", "", false},
	}

	for _, tc := range cases {
		parsed := ParseAmount(tc.raw)
		if tc.ok {
			require.NotNil(t, parsed, "raw=%q", tc.raw)
			assert.True(t, parsed.Equal(amount(tc.expected)), "raw=%q", tc.raw)
		} else {
			assert.Nil(t, parsed, "raw=%q", tc.raw)
		}
	}
}

func TestApplyWritesAllFields(t *testing.T) {
	revenue := amount("100")
	statement := Statement{Revenue: &revenue}

	var entity model.FinancialStatement
	statement.Apply(&entity)

	require.NotNil(t, entity.Revenue)
	assert.True(t, entity.Revenue.Equal(revenue))
	assert.Nil(t, entity.NetIncome)
}

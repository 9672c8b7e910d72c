package ratio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EquityReach/pkg/model"
)

func TestCalculateROE(t *testing.T) {
	value := CalculateROE(150, 1000)
	require.NotNil(t, value)
	assert.InDelta(t, 15.0, *value, 1e-9)

	// 亏损企业 ROE 为负
	value = CalculateROE(-50, 1000)
	require.NotNil(t, value)
	assert.InDelta(t, -5.0, *value, 1e-9)

	// 权益为零或为负时无定义
	assert.Nil(t, CalculateROE(100, 0))
	assert.Nil(t, CalculateROE(100, -200))
}

func TestCalculateROA(t *testing.T) {
	value := CalculateROA(150, 5000)
	require.NotNil(t, value)
	assert.InDelta(t, 3.0, *value, 1e-9)

	assert.Nil(t, CalculateROA(150, 0))
}

func TestCalculateMargins(t *testing.T) {
	operating := CalculateOperatingMargin(200, 1000)
	require.NotNil(t, operating)
	assert.InDelta(t, 20.0, *operating, 1e-9)

	net := CalculateNetMargin(150, 1000)
	require.NotNil(t, net)
	assert.InDelta(t, 15.0, *net, 1e-9)

	assert.Nil(t, CalculateOperatingMargin(200, 0))
	assert.Nil(t, CalculateNetMargin(150, -1))
}

func TestCalculateDebtRatio(t *testing.T) {
	value := CalculateDebtRatio(2000, 1000)
	require.NotNil(t, value)
	assert.InDelta(t, 200.0, *value, 1e-9)

	assert.Nil(t, CalculateDebtRatio(2000, 0))
}

func TestCalculatePER(t *testing.T) {
	value := CalculatePER(1500, 150)
	require.NotNil(t, value)
	assert.InDelta(t, 10.0, *value, 1e-9)

	// 净利润为零或亏损时无定义
	assert.Nil(t, CalculatePER(1500, 0))
	assert.Nil(t, CalculatePER(1500, -150))
}

func TestCalculatePERSuppression(t *testing.T) {
	// 上界是闭区间：恰好 10000 保留
	value := CalculatePER(10000, 1)
	require.NotNil(t, value)
	assert.InDelta(t, 10000.0, *value, 1e-9)

	// 越过上界抑制为空
	assert.Nil(t, CalculatePER(10000.01, 1))
}

func TestCalculatePBR(t *testing.T) {
	value := CalculatePBR(3000, 1000)
	require.NotNil(t, value)
	assert.InDelta(t, 3.0, *value, 1e-9)

	assert.Nil(t, CalculatePBR(3000, 0))

	// 抑制区间 [-100, 1000]
	edge := CalculatePBR(1000, 1)
	require.NotNil(t, edge)
	assert.InDelta(t, 1000.0, *edge, 1e-9)
	assert.Nil(t, CalculatePBR(1001, 1))
}

func TestCalculatePSR(t *testing.T) {
	value := CalculatePSR(2000, 1000)
	require.NotNil(t, value)
	assert.InDelta(t, 2.0, *value, 1e-9)

	assert.Nil(t, CalculatePSR(2000, 0))
	assert.Nil(t, CalculatePSR(1001, 1))
}

func TestPeriodEndDate(t *testing.T) {
	cases := []struct {
		reportType string
		expected   time.Time
	}{
		{model.ReportAnnual, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
		{model.ReportQ1, time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)},
		{model.ReportQ2, time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)},
		{model.ReportQ3, time.Date(2023, 9, 30, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, PeriodEndDate(2023, tc.reportType), tc.reportType)
	}
}

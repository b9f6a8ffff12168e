package payroll

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDefaultRatesDeriveMultipliers(t *testing.T) {
	table := DefaultRateTable()

	rate, ok := table.Rate("applicator")
	require.True(t, ok)
	assert.True(t, d("25.00").Equal(rate.Hourly))
	assert.True(t, d("30.00").Equal(rate.Overtime))
	assert.True(t, d("30.00").Equal(rate.Travel))
	assert.True(t, d("35.00").Equal(rate.TravelOvertime))

	assert.Equal(t, []string{"applicator", "assistant", "lead_applicator", "supervisor"}, table.Roles())
	assert.Equal(t, "BRL", table.Currency())
}

func TestCalculateEightNormalHours(t *testing.T) {
	calc := NewCalculator(nil)

	for _, role := range calc.Rates().Roles() {
		t.Run(role, func(t *testing.T) {
			rate, _ := calc.Rates().Rate(role)
			b, err := calc.Calculate(role, Hours{Normal: d("8")})
			require.NoError(t, err)
			assert.True(t, rate.Hourly.Mul(d("8")).Equal(b.Total), "total %s", b.Total)
			assert.True(t, b.OvertimePay.IsZero())
		})
	}
}

func TestCalculateAllBuckets(t *testing.T) {
	calc := NewCalculator(nil)

	b, err := calc.Calculate("applicator", Hours{
		Normal:         d("6"),
		Overtime:       d("1.33"),
		TravelNormal:   d("2"),
		TravelOvertime: d("0.5"),
	})
	require.NoError(t, err)

	assert.True(t, d("150.00").Equal(b.NormalPay))
	assert.True(t, d("39.90").Equal(b.OvertimePay))
	assert.True(t, d("60.00").Equal(b.TravelNormalPay))
	assert.True(t, d("17.50").Equal(b.TravelOvertimePay))
	assert.True(t, d("267.40").Equal(b.Total))
}

func TestCalculateRoundsEachLineToCents(t *testing.T) {
	calc := NewCalculator(NewRateTable("BRL", map[string]decimal.Decimal{"helper": d("17.33")}, DefaultMultipliers()))

	b, err := calc.Calculate("helper", Hours{Normal: d("0.33"), Overtime: d("0.33")})
	require.NoError(t, err)

	// 17.33*0.33=5.7189, 20.796*0.33=6.86268
	assert.True(t, d("5.72").Equal(b.NormalPay))
	assert.True(t, d("6.86").Equal(b.OvertimePay))
	assert.True(t, d("12.58").Equal(b.Total))
}

func TestCalculateUnknownRole(t *testing.T) {
	calc := NewCalculator(nil)

	b, err := calc.Calculate("astronaut", Hours{Normal: d("8"), Overtime: d("2")})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.PayrollUnknownRole)

	var roleErr *errors.UnknownRoleError
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, "astronaut", roleErr.Role)
	assert.True(t, b.Total.IsZero())
	assert.True(t, b.NormalPay.IsZero())
}

func TestParseRateTable(t *testing.T) {
	table, err := ParseRateTable([]byte(`
currency: BRL
multipliers:
  travel_overtime: "1.50"
roles:
  applicator: "30.00"
  polisher: "22.50"
`))
	require.NoError(t, err)

	rate, ok := table.Rate("polisher")
	require.True(t, ok)
	assert.True(t, d("27.00").Equal(rate.Overtime))
	assert.True(t, d("33.75").Equal(rate.TravelOvertime))

	_, ok = table.Rate("supervisor")
	assert.False(t, ok)
}

func TestParseRateTableRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no roles", "currency: BRL\n"},
		{"bad rate", "roles:\n  applicator: abc\n"},
		{"negative rate", "roles:\n  applicator: \"-1\"\n"},
		{"unknown multiplier", "multipliers:\n  weekend: \"2\"\nroles:\n  applicator: \"10\"\n"},
		{"zero multiplier", "multipliers:\n  overtime: \"0\"\nroles:\n  applicator: \"10\"\n"},
		{"malformed", "roles: [1, 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRateTable([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRateTable(t *testing.T) {
	table, err := LoadRateTable("")
	require.NoError(t, err)
	_, ok := table.Rate("applicator")
	assert.True(t, ok)

	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("currency: USD\nroles:\n  installer: \"12\"\n"), 0o600))

	table, err = LoadRateTable(path)
	require.NoError(t, err)
	assert.Equal(t, "USD", table.Currency())
	assert.Equal(t, []string{"installer"}, table.Roles())

	_, err = LoadRateTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

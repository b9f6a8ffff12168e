package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
)

// Hours 四个工时桶
type Hours struct {
	Normal         decimal.Decimal `json:"normal"`
	Overtime       decimal.Decimal `json:"overtime"`
	TravelNormal   decimal.Decimal `json:"travel_normal"`
	TravelOvertime decimal.Decimal `json:"travel_overtime"`
}

// Breakdown 每行四舍五入到分，Total 为各行之和
type Breakdown struct {
	NormalPay         decimal.Decimal `json:"normal_pay"`
	OvertimePay       decimal.Decimal `json:"overtime_pay"`
	TravelNormalPay   decimal.Decimal `json:"travel_normal_pay"`
	TravelOvertimePay decimal.Decimal `json:"travel_overtime_pay"`
	Total             decimal.Decimal `json:"total"`
}

// Zero 全零结果
func Zero() Breakdown {
	return Breakdown{
		NormalPay:         decimal.Zero,
		OvertimePay:       decimal.Zero,
		TravelNormalPay:   decimal.Zero,
		TravelOvertimePay: decimal.Zero,
		Total:             decimal.Zero,
	}
}

// Calculator 纯函数，不访问任何外部状态
type Calculator struct {
	rates *RateTable
}

func NewCalculator(rates *RateTable) *Calculator {
	if rates == nil {
		rates = DefaultRateTable()
	}
	return &Calculator{rates: rates}
}

func (c *Calculator) Rates() *RateTable {
	return c.rates
}

// Calculate 未知岗位返回全零结果与 UnknownRoleError，调用方应记录后继续
func (c *Calculator) Calculate(role string, h Hours) (Breakdown, error) {
	rate, ok := c.rates.Rate(role)
	if !ok {
		return Zero(), &errors.UnknownRoleError{Role: role}
	}

	b := Breakdown{
		NormalPay:         h.Normal.Mul(rate.Hourly).Round(2),
		OvertimePay:       h.Overtime.Mul(rate.Overtime).Round(2),
		TravelNormalPay:   h.TravelNormal.Mul(rate.Travel).Round(2),
		TravelOvertimePay: h.TravelOvertime.Mul(rate.TravelOvertime).Round(2),
	}
	b.Total = b.NormalPay.Add(b.OvertimePay).Add(b.TravelNormalPay).Add(b.TravelOvertimePay)
	return b, nil
}

package payroll

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// 默认倍率
var (
	DefaultOvertimeMultiplier       = decimal.RequireFromString("1.20")
	DefaultTravelMultiplier         = decimal.RequireFromString("1.20")
	DefaultTravelOvertimeMultiplier = decimal.RequireFromString("1.40")
)

// 内置岗位时薪（BRL）
var defaultHourly = map[string]string{
	"applicator":      "25.00",
	"assistant":       "18.00",
	"lead_applicator": "32.00",
	"supervisor":      "40.00",
}

// Rate 某岗位的四档费率，构建费率表时一次性算好
type Rate struct {
	Hourly         decimal.Decimal `json:"hourly"`
	Overtime       decimal.Decimal `json:"overtime"`
	Travel         decimal.Decimal `json:"travel"`
	TravelOvertime decimal.Decimal `json:"travel_overtime"`
}

// Multipliers 加班与差旅倍率
type Multipliers struct {
	Overtime       decimal.Decimal
	Travel         decimal.Decimal
	TravelOvertime decimal.Decimal
}

func DefaultMultipliers() Multipliers {
	return Multipliers{
		Overtime:       DefaultOvertimeMultiplier,
		Travel:         DefaultTravelMultiplier,
		TravelOvertime: DefaultTravelOvertimeMultiplier,
	}
}

// RateTable 岗位 -> 费率，构建后只读
type RateTable struct {
	rates    map[string]Rate
	currency string
}

// NewRateTable 由时薪派生其余三档费率
func NewRateTable(currency string, hourly map[string]decimal.Decimal, m Multipliers) *RateTable {
	t := &RateTable{rates: make(map[string]Rate, len(hourly)), currency: currency}
	for role, h := range hourly {
		t.rates[role] = Rate{
			Hourly:         h,
			Overtime:       h.Mul(m.Overtime),
			Travel:         h.Mul(m.Travel),
			TravelOvertime: h.Mul(m.TravelOvertime),
		}
	}
	return t
}

func DefaultRateTable() *RateTable {
	hourly := make(map[string]decimal.Decimal, len(defaultHourly))
	for role, v := range defaultHourly {
		hourly[role] = decimal.RequireFromString(v)
	}
	return NewRateTable("BRL", hourly, DefaultMultipliers())
}

func (t *RateTable) Rate(role string) (Rate, bool) {
	r, ok := t.rates[role]
	return r, ok
}

func (t *RateTable) Currency() string {
	return t.currency
}

// Roles 按字母序返回所有岗位
func (t *RateTable) Roles() []string {
	roles := make([]string, 0, len(t.rates))
	for role := range t.rates {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

type rateFile struct {
	Currency    string            `yaml:"currency"`
	Multipliers map[string]string `yaml:"multipliers"`
	Roles       map[string]string `yaml:"roles"`
}

// ParseRateTable 解析 YAML 费率表，未给出的倍率使用默认值
//
//	currency: BRL
//	multipliers:
//	  overtime: "1.20"
//	roles:
//	  applicator: "25.00"
func ParseRateTable(data []byte) (*RateTable, error) {
	var f rateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rate table: %w", err)
	}
	if len(f.Roles) == 0 {
		return nil, fmt.Errorf("rate table has no roles")
	}

	m := DefaultMultipliers()
	for name, raw := range f.Multipliers {
		v, err := decimal.NewFromString(raw)
		if err != nil || !v.IsPositive() {
			return nil, fmt.Errorf("invalid %s multiplier %q", name, raw)
		}
		switch name {
		case "overtime":
			m.Overtime = v
		case "travel":
			m.Travel = v
		case "travel_overtime":
			m.TravelOvertime = v
		default:
			return nil, fmt.Errorf("unknown multiplier %q", name)
		}
	}

	hourly := make(map[string]decimal.Decimal, len(f.Roles))
	for role, raw := range f.Roles {
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			return nil, fmt.Errorf("invalid hourly rate %q for role %s", raw, role)
		}
		hourly[role] = v
	}

	currency := f.Currency
	if currency == "" {
		currency = "BRL"
	}
	return NewRateTable(currency, hourly, m), nil
}

// LoadRateTable path 为空时返回内置费率表
func LoadRateTable(path string) (*RateTable, error) {
	if path == "" {
		return DefaultRateTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate table: %w", err)
	}
	return ParseRateTable(data)
}

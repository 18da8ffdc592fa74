package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact two-decimal amount. Every operation rounds half-to-even
// at scale 2; balances and report totals are never computed in floats.
const MoneyScale = 2

var (
	ErrorInvalidMoney  = errors.New("invalid money value")
	ErrorMoneyOverflow = errors.New("money value out of range")
)

// amounts above 10^12 are rejected on input
var moneyLimit = decimal.New(1, 12)

type Money struct {
	d decimal.Decimal
}

func ZeroMoney() Money {
	return Money{decimal.Zero}
}

func NewMoney(d decimal.Decimal) Money {
	return Money{d.RoundBank(MoneyScale)}
}

func MoneyFromInt(n int64) Money {
	return Money{decimal.NewFromInt(n)}
}

// MoneyFromString accepts both the pt-BR form (1.234,56) and the plain
// decimal form (1234.56). A leading "R$" is tolerated.
func MoneyFromString(s string) (Money, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, "R$")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Money{}, ErrorInvalidMoney
	}
	if comma := strings.IndexByte(raw, ','); comma >= 0 {
		// the comma is the decimal separator; a dot after it is the
		// English form (1,234.56), which would silently misparse
		if strings.Count(raw, ",") > 1 || strings.IndexByte(raw[comma:], '.') >= 0 {
			return Money{}, ErrorInvalidMoney
		}
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
	} else if strings.Count(raw, ".") > 1 {
		// dotted thousands without a decimal comma, e.g. 1.234.567
		raw = strings.ReplaceAll(raw, ".", "")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Money{}, ErrorInvalidMoney
	}
	if d.Abs().GreaterThan(moneyLimit) {
		return Money{}, ErrorMoneyOverflow
	}
	return Money{d.RoundBank(MoneyScale)}, nil
}

// MustMoney is a fixture helper; it panics on a malformed literal.
func MustMoney(s string) Money {
	m, err := MoneyFromString(s)
	if err != nil {
		panic(fmt.Sprintf("MustMoney(%q): %v", s, err))
	}
	return m
}

func (m Money) Add(o Money) Money {
	return Money{m.d.Add(o.d).RoundBank(MoneyScale)}
}

func (m Money) Sub(o Money) Money {
	return Money{m.d.Sub(o.d).RoundBank(MoneyScale)}
}

func (m Money) Neg() Money {
	return Money{m.d.Neg()}
}

func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// String returns the plain decimal form with two places, e.g. "1234.56".
func (m Money) String() string {
	return m.d.StringFixedBank(MoneyScale)
}

// FormatBRL renders the display form, e.g. "R$ 1.234,56".
func (m Money) FormatBRL() string {
	neg := m.d.IsNegative()
	fixed := m.d.Abs().StringFixedBank(MoneyScale)
	parts := strings.SplitN(fixed, ".", 2)
	intPart := parts[0]

	var grouped strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		grouped.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if grouped.Len() > 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteString(intPart[i : i+3])
	}

	out := "R$ " + grouped.String() + "," + parts[1]
	if neg {
		out = "-" + out
	}
	return out
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*m = ZeroMoney()
		return nil
	}
	parsed, err := MoneyFromString(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements the driver.Valuer interface
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

func (m *Money) Scan(value interface{}) error {
	if value == nil {
		*m = ZeroMoney()
		return nil
	}
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	*m = Money{d.RoundBank(MoneyScale)}
	return nil
}

package money

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places carried by every monetary value.
const Scale = 2

// Money is a fixed-point decimal amount with two decimal places. The zero
// value is 0.00 and is ready to use. All arithmetic is exact; binary floats
// never enter the computation.
type Money struct {
	d decimal.Decimal
}

// Zero returns 0.00.
func Zero() Money {
	return Money{}
}

// Parse converts a decimal string into Money. Inputs with more than two
// decimal places are rejected rather than rounded, so a caller can never
// silently lose precision at the boundary.
func Parse(raw string) (Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Money{}, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Money{}, fmt.Errorf("malformed amount %q", raw)
	}
	if d.Exponent() < -Scale {
		return Money{}, fmt.Errorf("amount %q exceeds scale %d", raw, Scale)
	}
	return Money{d: d}, nil
}

// MustParse is Parse for constants in tests and fixtures; it panics on error.
func MustParse(raw string) Money {
	m, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

func (m Money) Sub(other Money) Money {
	return Money{d: m.d.Sub(other.d)}
}

func (m Money) Neg() Money {
	return Money{d: m.d.Neg()}
}

func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

func (m Money) Equal(other Money) bool {
	return m.d.Equal(other.d)
}

// Sum adds a list of amounts; an empty list sums to 0.00.
func Sum(values []Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v.d)
	}
	return Money{d: total}
}

// String renders the amount as a decimal string with exactly two decimal
// places, rounding half away from zero if an upstream source ever produced
// a finer-grained value.
func (m Money) String() string {
	return m.d.Round(Scale).StringFixed(Scale)
}

// MarshalJSON emits the amount as a JSON string, never a float.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer so Money maps onto NUMERIC columns.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns read back as text, bytes
// or (from some drivers) float64.
func (m *Money) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = Money{}
		return nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		*m = Money{d: d.Round(Scale)}
		return nil
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		*m = Money{d: d.Round(Scale)}
		return nil
	case float64:
		*m = Money{d: decimal.NewFromFloat(v).Round(Scale)}
		return nil
	case int64:
		*m = Money{d: decimal.NewFromInt(v)}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Money", src)
	}
}

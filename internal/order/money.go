package order

import (
	"bytes"

	"github.com/shopspring/decimal"
)

// Money is a non-negative monetary amount. It encodes as a bare JSON number
// and decodes from either a number or a quoted string.
type Money struct {
	decimal.Decimal
}

// NewMoney parses a decimal string such as "10.50".
func NewMoney(value string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, err
	}
	return Money{d}, nil
}

// MoneyFromFloat converts f to Money.
func MoneyFromFloat(f float64) Money {
	return Money{decimal.NewFromFloat(f)}
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null decodes as zero.
func (m *Money) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		m.Decimal = decimal.Zero
		return nil
	}
	return m.Decimal.UnmarshalJSON(data)
}

// Display formats m with two decimal places.
func (m Money) Display() string {
	return m.Decimal.StringFixed(2)
}

// Equal reports whether m and other hold the same amount.
func (m Money) Equal(other Money) bool {
	return m.Decimal.Equal(other.Decimal)
}

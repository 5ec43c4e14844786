package domain

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// Money is an amount in a currency as returned by the storefront API. Amount is kept
// as a decimal string and only parsed for multiplication, summing and formatting.
type Money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

func (m Money) decimal() (decimal.Decimal, error) {
	amount := strings.TrimSpace(m.Amount)
	if amount == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse amount %q", m.Amount)
	}
	return d, nil
}

// Times multiplies the amount by a quantity.
func (m Money) Times(quantity int) (Money, error) {
	d, err := m.decimal()
	if err != nil {
		return Money{}, err
	}
	return Money{
		Amount:       d.Mul(decimal.NewFromInt(int64(quantity))).StringFixed(2),
		CurrencyCode: m.CurrencyCode,
	}, nil
}

// Format renders the amount with two decimals, e.g. "EUR 10.00".
func (m Money) Format() string {
	d, err := m.decimal()
	if err != nil {
		return m.CurrencyCode + " " + m.Amount
	}
	if m.CurrencyCode == "" {
		return d.StringFixed(2)
	}
	return m.CurrencyCode + " " + d.StringFixed(2)
}

// Equal compares amounts numerically and currencies exactly.
func (m Money) Equal(other Money) bool {
	if m.CurrencyCode != other.CurrencyCode {
		return false
	}
	a, errA := m.decimal()
	b, errB := other.decimal()
	if errA != nil || errB != nil {
		return m.Amount == other.Amount
	}
	return a.Equal(b)
}

// SumLines totals quantity x unit price over lines. An empty slice totals to zero in
// fallbackCurrency; lines in more than one currency return ErrMixedCurrency.
func SumLines(lines []CartLine, fallbackCurrency string) (Money, error) {
	total := decimal.Zero
	currency := ""
	for _, line := range lines {
		if currency == "" {
			currency = line.UnitPrice.CurrencyCode
		} else if line.UnitPrice.CurrencyCode != currency {
			return Money{}, errors.Wrapf(ErrMixedCurrency, "%s and %s", currency, line.UnitPrice.CurrencyCode)
		}
		unit, err := line.UnitPrice.decimal()
		if err != nil {
			return Money{}, errors.Wrapf(err, "line %s", line.VariantID)
		}
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	if currency == "" {
		currency = fallbackCurrency
	}
	return Money{Amount: total.StringFixed(2), CurrencyCode: currency}, nil
}

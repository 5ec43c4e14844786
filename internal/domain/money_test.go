package domain

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyTimes(t *testing.T) {
	got, err := Money{Amount: "10.5", CurrencyCode: "EUR"}.Times(3)
	require.NoError(t, err)
	assert.Equal(t, Money{Amount: "31.50", CurrencyCode: "EUR"}, got)

	_, err = Money{Amount: "ten", CurrencyCode: "EUR"}.Times(1)
	require.Error(t, err)
}

func TestMoneyFormat(t *testing.T) {
	assert.Equal(t, "EUR 10.00", Money{Amount: "10", CurrencyCode: "EUR"}.Format())
	assert.Equal(t, "0.00", Money{}.Format())
}

func TestMoneyEqual(t *testing.T) {
	assert.True(t, Money{Amount: "10.0", CurrencyCode: "EUR"}.Equal(Money{Amount: "10.00", CurrencyCode: "EUR"}))
	assert.False(t, Money{Amount: "10.0", CurrencyCode: "EUR"}.Equal(Money{Amount: "10.0", CurrencyCode: "USD"}))
}

func TestSumLines(t *testing.T) {
	lines := []CartLine{
		{VariantID: "a", Quantity: 2, UnitPrice: Money{Amount: "10.00", CurrencyCode: "EUR"}},
		{VariantID: "b", Quantity: 1, UnitPrice: Money{Amount: "0.99", CurrencyCode: "EUR"}},
	}
	total, err := SumLines(lines, "USD")
	require.NoError(t, err)
	assert.Equal(t, Money{Amount: "20.99", CurrencyCode: "EUR"}, total)

	empty, err := SumLines(nil, "USD")
	require.NoError(t, err)
	assert.Equal(t, Money{Amount: "0.00", CurrencyCode: "USD"}, empty)
}

func TestSumLinesMixedCurrency(t *testing.T) {
	lines := []CartLine{
		{VariantID: "a", Quantity: 1, UnitPrice: Money{Amount: "1", CurrencyCode: "EUR"}},
		{VariantID: "b", Quantity: 1, UnitPrice: Money{Amount: "1", CurrencyCode: "USD"}},
	}
	_, err := SumLines(lines, "")
	require.True(t, errors.Is(err, ErrMixedCurrency), "got %v", err)
}

func TestValidationErrorIs(t *testing.T) {
	err := error(NewValidationError(map[string]string{"details": "too short", "consent": "required"}))
	require.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "validation failed: consent: required; details: too short", err.Error())

	var verr *ValidationError
	require.True(t, errors.As(errors.Wrap(err, "submit"), &verr))
	assert.Len(t, verr.Fields, 2)
}

func TestCloneLinesDropsNonPositive(t *testing.T) {
	in := []CartLine{
		{VariantID: "a", Quantity: 1, SelectedOptions: []SelectedOption{{Name: "Size", Value: "M"}}},
		{VariantID: "b", Quantity: 0},
	}
	out := CloneLines(in)
	require.Len(t, out, 1)
	out[0].SelectedOptions[0].Value = "L"
	assert.Equal(t, "M", in[0].SelectedOptions[0].Value)
	assert.Equal(t, 1, TotalQuantity(out))
	assert.Equal(t, -1, IndexOfVariant(out, "b"))
}

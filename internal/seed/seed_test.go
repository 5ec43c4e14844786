package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/commerce/memory"
)

func TestApplyIsIdempotent(t *testing.T) {
	backend := memory.New("http://localhost/checkout", nil)
	n := Apply(backend, "EUR")
	Apply(backend, "EUR")

	all, err := backend.ListProducts(context.Background(), 100, "")
	require.NoError(t, err)
	assert.Len(t, all, n)

	p, err := backend.ProductByHandle(context.Background(), "defi-mastery")
	require.NoError(t, err)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "49.00", p.Variants[0].Price.Amount)
	assert.Equal(t, "EUR", p.Variants[0].Price.CurrencyCode)
	assert.Contains(t, p.Description, "Protocol comparisons")
}

func TestCatalogVariantsAreAddable(t *testing.T) {
	backend := memory.New("http://localhost/checkout", nil)
	Apply(backend, "EUR")

	for _, p := range Catalog("EUR") {
		cart, err := backend.CreateOrUpdateCartLine(context.Background(), "", p.Variants[0].ID, 1)
		require.NoError(t, err, p.Handle)
		assert.Equal(t, p.Title, cart.Lines[0].Product.Title)
	}
}

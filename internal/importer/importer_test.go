package importer

import (
	"context"
	"strings"
	"testing"

	"storefront/internal/domain"
)

type stubWriter struct {
	items []domain.Product
}

func (s *stubWriter) UpsertProduct(p domain.Product) {
	s.items = append(s.items, p)
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `handle,title,description,variant.id,variant.title,price,currency,available,image.url,category
solana-course,Solana Course,Build on Solana,,,149,,,https://example.com/sol1.png,course
,,,,,,,,https://example.com/sol2.png,
,,,gid://memory/ProductVariant/solana-course-live,Live cohort,99.5,,false,,
merch-tee,Tee,,,,25,USD,,,`

	w := &stubWriter{}
	imp := NewCSVImporter(strings.NewReader(csvData), w, "EUR")

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 2 || len(w.items) != 2 {
		t.Fatalf("expected 2 products imported, got %d (%d saved)", count, len(w.items))
	}

	sol := w.items[0]
	if sol.Handle != "solana-course" || len(sol.Images) != 2 || len(sol.Variants) != 2 {
		t.Fatalf("unexpected product data: %+v", sol)
	}
	if sol.Variants[0].ID != "gid://memory/ProductVariant/solana-course" || sol.Variants[0].Price != (domain.Money{Amount: "149.00", CurrencyCode: "EUR"}) {
		t.Fatalf("unexpected default variant: %+v", sol.Variants[0])
	}
	if sol.Variants[1].AvailableForSale || sol.Variants[1].Title != "Live cohort" {
		t.Fatalf("unexpected second variant: %+v", sol.Variants[1])
	}
	if sol.PriceRange.Amount != "99.50" {
		t.Fatalf("expected price range from cheapest variant, got %+v", sol.PriceRange)
	}
	if w.items[1].Variants[0].Price.CurrencyCode != "USD" {
		t.Fatalf("expected explicit currency to win, got %+v", w.items[1].Variants[0].Price)
	}
}

func TestCSVImporter_RejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"missing handle column": "title,price\nA,1",
		"no price":              "handle,title,price\na,A,",
		"no title":              "handle,title,price\na,,5",
		"orphan continuation":   "handle,title,price,image.url\n,,,https://example.com/x.png",
		"mixed currencies":      "handle,title,price,currency,variant.id\na,A,5,EUR,\n,,6,USD,v2",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			w := &stubWriter{}
			if _, err := NewCSVImporter(strings.NewReader(data), w, "EUR").Run(context.Background()); err == nil {
				t.Fatalf("expected error, imported %+v", w.items)
			}
		})
	}
}

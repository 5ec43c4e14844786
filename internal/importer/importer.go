// Package importer loads storefront catalog CSV files into the in-process commerce
// backend.
package importer

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type ProductWriter interface {
	UpsertProduct(p domain.Product)
}

// CSVImporter reads catalog CSV files and upserts products by handle.
//
// A row with a handle starts a product. Following rows without a handle add a variant
// (variant.id set) or an image (image.url set) to that product.
type CSVImporter struct {
	reader   *csv.Reader
	writer   ProductWriter
	currency string
}

// NewCSVImporter reads from r. currency prices rows that leave it blank.
func NewCSVImporter(r io.Reader, writer ProductWriter, currency string) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:   csvr,
		writer:   writer,
		currency: strings.TrimSpace(currency),
	}
}

type csvRow struct {
	Handle       string
	Title        string
	Desc         string
	VariantID    string
	VariantTitle string
	Price        string
	Currency     string
	Available    bool
	ImageURL     string
	Category     string
}

// Run parses every row and upserts the products it describes. It returns how many
// products were written.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, errors.Wrap(err, "read headers")
	}
	index := headerIndex(headers)
	if _, ok := index["handle"]; !ok {
		return 0, errors.New("missing handle column")
	}

	var (
		current  *domain.Product
		imported int
		line     = 1
	)
	flush := func() error {
		if current == nil {
			return nil
		}
		if err := validate(current); err != nil {
			return err
		}
		i.writer.UpsertProduct(*current)
		imported++
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, errors.Wrapf(err, "read row %d", line)
		}

		row := parseRow(record, index)
		if row == nil {
			continue
		}

		if row.Handle != "" {
			if err := flush(); err != nil {
				return imported, err
			}
			p := i.product(row)
			current = &p
			continue
		}
		if current == nil {
			return imported, errors.Newf("row %d: continuation row before any product", line)
		}
		if row.VariantID != "" {
			v, err := i.variant(row)
			if err != nil {
				return imported, errors.Wrapf(err, "row %d", line)
			}
			current.Variants = append(current.Variants, v)
		}
		if row.ImageURL != "" {
			current.Images = append(current.Images, domain.Image{URL: row.ImageURL, AltText: current.Title})
		}
	}

	if err := flush(); err != nil {
		return imported, err
	}
	return imported, nil
}

func (i *CSVImporter) product(row *csvRow) domain.Product {
	p := domain.Product{
		ID:          "gid://memory/Product/" + row.Handle,
		Title:       row.Title,
		Handle:      row.Handle,
		Description: row.Desc,
	}
	if row.Category != "" {
		p.Options = []domain.ProductOption{{Name: "Type", Values: []string{row.Category}}}
	}
	if row.ImageURL != "" {
		p.Images = []domain.Image{{URL: row.ImageURL, AltText: row.Title}}
	}
	if row.VariantID == "" {
		row.VariantID = "gid://memory/ProductVariant/" + row.Handle
	}
	if v, err := i.variant(row); err == nil {
		p.Variants = []domain.Variant{v}
	}
	return p
}

func (i *CSVImporter) variant(row *csvRow) (domain.Variant, error) {
	amount, err := decimal.NewFromString(row.Price)
	if err != nil || amount.IsNegative() {
		return domain.Variant{}, errors.Newf("invalid price %q for variant %s", row.Price, row.VariantID)
	}
	currency := row.Currency
	if currency == "" {
		currency = i.currency
	}
	title := row.VariantTitle
	if title == "" {
		title = "Default Title"
	}
	return domain.Variant{
		ID:               row.VariantID,
		Title:            title,
		Price:            domain.Money{Amount: amount.StringFixed(2), CurrencyCode: currency},
		AvailableForSale: row.Available,
	}, nil
}

// validate checks a finished product and fills its price range from the cheapest
// variant.
func validate(p *domain.Product) error {
	if p.Title == "" {
		return errors.Newf("product %q: title is required", p.Handle)
	}
	if len(p.Variants) == 0 {
		return errors.Newf("product %q: at least one priced variant is required", p.Handle)
	}
	cheapest := p.Variants[0].Price
	for _, v := range p.Variants[1:] {
		if v.Price.CurrencyCode != cheapest.CurrencyCode {
			return errors.Wrapf(domain.ErrMixedCurrency, "product %q", p.Handle)
		}
		if decimal.RequireFromString(v.Price.Amount).LessThan(decimal.RequireFromString(cheapest.Amount)) {
			cheapest = v.Price
		}
	}
	if cheapest.CurrencyCode == "" {
		return errors.Newf("product %q: currency is required", p.Handle)
	}
	p.PriceRange = cheapest
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	row := &csvRow{
		Handle:       pick(record, index, "handle"),
		Title:        pick(record, index, "title"),
		Desc:         pick(record, index, "description"),
		VariantID:    pick(record, index, "variant.id"),
		VariantTitle: pick(record, index, "variant.title"),
		Price:        pick(record, index, "price"),
		Currency:     strings.ToUpper(pick(record, index, "currency")),
		ImageURL:     pick(record, index, "image.url"),
		Category:     pick(record, index, "category"),
		Available:    true,
	}
	if raw := pick(record, index, "available"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			row.Available = v
		}
	}
	if row.Handle == "" && row.VariantID == "" && row.ImageURL == "" {
		return nil
	}
	return row
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

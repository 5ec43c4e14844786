package domain

type Image struct {
	URL     string `json:"url"`
	AltText string `json:"altText,omitempty"`
}

type Variant struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Price            Money            `json:"price"`
	AvailableForSale bool             `json:"availableForSale"`
	SelectedOptions  []SelectedOption `json:"selectedOptions"`
}

type ProductOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Product mirrors the storefront product shape used by listing and detail pages.
type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Handle      string          `json:"handle"`
	Description string          `json:"description,omitempty"`
	PriceRange  Money           `json:"minPrice"`
	Images      []Image         `json:"images"`
	Variants    []Variant       `json:"variants"`
	Options     []ProductOption `json:"options,omitempty"`
}

// Ref builds the snapshot stored on cart lines.
func (p Product) Ref() ProductRef {
	ref := ProductRef{ID: p.ID, Title: p.Title, Handle: p.Handle}
	if len(p.Images) > 0 {
		ref.ImageURL = p.Images[0].URL
	}
	return ref
}

// VariantByID returns the variant with the given id.
func (p Product) VariantByID(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// LineFor builds a cart line for one of the product's variants.
func (p Product) LineFor(v Variant, quantity int) CartLine {
	return CartLine{
		VariantID:       v.ID,
		Product:         p.Ref(),
		VariantTitle:    v.Title,
		SelectedOptions: append([]SelectedOption(nil), v.SelectedOptions...),
		UnitPrice:       v.Price,
		Quantity:        quantity,
	}
}

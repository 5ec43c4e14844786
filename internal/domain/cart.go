package domain

// ProductRef is the display snapshot of a product held by a cart line. It is captured
// when the line is added and not re-fetched.
type ProductRef struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Handle   string `json:"handle"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CartLine is one product variant in a cart. Lines are keyed by VariantID.
type CartLine struct {
	VariantID       string           `json:"variantId"`
	Product         ProductRef       `json:"product"`
	VariantTitle    string           `json:"variantTitle,omitempty"`
	SelectedOptions []SelectedOption `json:"selectedOptions"`
	UnitPrice       Money            `json:"price"`
	Quantity        int              `json:"quantity"`
}

// Clone returns a deep copy of the line.
func (l CartLine) Clone() CartLine {
	out := l
	if l.SelectedOptions != nil {
		out.SelectedOptions = append([]SelectedOption(nil), l.SelectedOptions...)
	}
	return out
}

// CloneLines deep-copies lines, dropping any line with a non-positive quantity.
func CloneLines(lines []CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		out = append(out, l.Clone())
	}
	return out
}

// TotalQuantity sums line quantities.
func TotalQuantity(lines []CartLine) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

// IndexOfVariant returns the position of the line for variantID, or -1.
func IndexOfVariant(lines []CartLine, variantID string) int {
	for i, l := range lines {
		if l.VariantID == variantID {
			return i
		}
	}
	return -1
}

// CartState is the persisted form of a client's cart.
type CartState struct {
	Lines           []CartLine `json:"lines"`
	RemoteSessionID string     `json:"remoteSessionId,omitempty"`
}

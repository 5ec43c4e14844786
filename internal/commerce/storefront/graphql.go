package storefront

import (
	"storefront/internal/commerce"
	"storefront/internal/domain"
)

const productFields = `
fragment ProductFields on Product {
  id
  title
  handle
  description
  priceRange { minVariantPrice { amount currencyCode } }
  images(first: 5) { edges { node { url altText } } }
  options { name values }
  variants(first: 25) {
    edges { node { id title availableForSale price { amount currencyCode } selectedOptions { name value } } }
  }
}`

const cartFields = `
fragment CartFields on Cart {
  id
  checkoutUrl
  lines(first: 100) {
    edges {
      node {
        id
        quantity
        merchandise {
          ... on ProductVariant {
            id
            title
            price { amount currencyCode }
            selectedOptions { name value }
            product { id title handle featuredImage { url altText } }
          }
        }
      }
    }
  }
}`

const (
	productsQuery = `query Products($first: Int!, $query: String) {
  products(first: $first, query: $query) { edges { node { ...ProductFields } } }
}` + productFields

	productByHandleQuery = `query ProductByHandle($handle: String!) {
  product(handle: $handle) { ...ProductFields }
}` + productFields

	cartQuery = `query Cart($id: ID!) {
  cart(id: $id) { ...CartFields }
}` + cartFields

	cartCreateMutation = `mutation CartCreate($lines: [CartLineInput!]) {
  cartCreate(input: { lines: $lines }) { cart { ...CartFields } userErrors { field message } }
}` + cartFields

	cartLinesAddMutation = `mutation CartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) { cart { ...CartFields } userErrors { field message } }
}` + cartFields

	cartLinesUpdateMutation = `mutation CartLinesUpdate($cartId: ID!, $lines: [CartLineUpdateInput!]!) {
  cartLinesUpdate(cartId: $cartId, lines: $lines) { cart { ...CartFields } userErrors { field message } }
}` + cartFields

	cartLinesRemoveMutation = `mutation CartLinesRemove($cartId: ID!, $lineIds: [ID!]!) {
  cartLinesRemove(cartId: $cartId, lineIds: $lineIds) { cart { ...CartFields } userErrors { field message } }
}` + cartFields
)

type moneyV2 struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

func (m moneyV2) toDomain() domain.Money {
	return domain.Money{Amount: m.Amount, CurrencyCode: m.CurrencyCode}
}

type imageNode struct {
	URL     string `json:"url"`
	AltText string `json:"altText"`
}

type variantNode struct {
	ID               string                  `json:"id"`
	Title            string                  `json:"title"`
	AvailableForSale bool                    `json:"availableForSale"`
	Price            moneyV2                 `json:"price"`
	SelectedOptions  []domain.SelectedOption `json:"selectedOptions"`
}

type productNode struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Handle      string `json:"handle"`
	Description string `json:"description"`
	PriceRange  struct {
		MinVariantPrice moneyV2 `json:"minVariantPrice"`
	} `json:"priceRange"`
	Images struct {
		Edges []struct {
			Node imageNode `json:"node"`
		} `json:"edges"`
	} `json:"images"`
	Options  []domain.ProductOption `json:"options"`
	Variants struct {
		Edges []struct {
			Node variantNode `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

func (n productNode) toDomain() domain.Product {
	p := domain.Product{
		ID:          n.ID,
		Title:       n.Title,
		Handle:      n.Handle,
		Description: n.Description,
		PriceRange:  n.PriceRange.MinVariantPrice.toDomain(),
		Options:     n.Options,
	}
	for _, e := range n.Images.Edges {
		p.Images = append(p.Images, domain.Image{URL: e.Node.URL, AltText: e.Node.AltText})
	}
	for _, e := range n.Variants.Edges {
		v := e.Node
		p.Variants = append(p.Variants, domain.Variant{
			ID:               v.ID,
			Title:            v.Title,
			Price:            v.Price.toDomain(),
			AvailableForSale: v.AvailableForSale,
			SelectedOptions:  v.SelectedOptions,
		})
	}
	return p
}

type cartLineNode struct {
	ID          string `json:"id"`
	Quantity    int    `json:"quantity"`
	Merchandise struct {
		ID              string                  `json:"id"`
		Title           string                  `json:"title"`
		Price           moneyV2                 `json:"price"`
		SelectedOptions []domain.SelectedOption `json:"selectedOptions"`
		Product         struct {
			ID            string     `json:"id"`
			Title         string     `json:"title"`
			Handle        string     `json:"handle"`
			FeaturedImage *imageNode `json:"featuredImage"`
		} `json:"product"`
	} `json:"merchandise"`
}

type cartNode struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkoutUrl"`
	Lines       struct {
		Edges []struct {
			Node cartLineNode `json:"node"`
		} `json:"edges"`
	} `json:"lines"`
}

type cartPayload struct {
	Cart       *cartNode `json:"cart"`
	UserErrors []struct {
		Field   []string `json:"field"`
		Message string   `json:"message"`
	} `json:"userErrors"`
}

func (n *cartNode) line(variantID string) (cartLineNode, bool) {
	for _, e := range n.Lines.Edges {
		if e.Node.Merchandise.ID == variantID {
			return e.Node, true
		}
	}
	return cartLineNode{}, false
}

func (n *cartNode) toCommerce() *commerce.Cart {
	cart := &commerce.Cart{SessionID: n.ID, CheckoutURL: n.CheckoutURL}
	for _, e := range n.Lines.Edges {
		ln := e.Node
		if ln.Quantity <= 0 || ln.Merchandise.ID == "" {
			continue
		}
		ref := domain.ProductRef{
			ID:     ln.Merchandise.Product.ID,
			Title:  ln.Merchandise.Product.Title,
			Handle: ln.Merchandise.Product.Handle,
		}
		if img := ln.Merchandise.Product.FeaturedImage; img != nil {
			ref.ImageURL = img.URL
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			VariantID:       ln.Merchandise.ID,
			Product:         ref,
			VariantTitle:    ln.Merchandise.Title,
			SelectedOptions: ln.Merchandise.SelectedOptions,
			UnitPrice:       ln.Merchandise.Price.toDomain(),
			Quantity:        ln.Quantity,
		})
	}
	return cart
}

// Package seed loads the static storefront catalog into the in-process commerce backend.
package seed

import (
	"strings"

	"storefront/internal/domain"
)

type productSeed struct {
	Handle      string
	Title       string
	Description string
	Price       string
	Category    string
	Features    []string
}

var products = []productSeed{
	{
		Handle:      "crypto-fundamentals",
		Title:       "Crypto Fundamentals",
		Description: "Master the basics of cryptocurrency, blockchain technology, and decentralized finance. Perfect for beginners.",
		Price:       "99.00",
		Category:    "course",
		Features:    []string{"10+ hours of video content", "Lifetime access", "Private Discord community", "Certificate of completion"},
	},
	{
		Handle:      "advanced-trading",
		Title:       "Advanced Trading Strategies",
		Description: "Learn professional trading techniques, technical analysis, and risk management from industry experts.",
		Price:       "199.00",
		Category:    "course",
		Features:    []string{"20+ hours of advanced content", "Live trading sessions", "1-on-1 mentorship calls", "Trading signals for 6 months"},
	},
	{
		Handle:      "vibe-coding-bootcamp",
		Title:       "Vibe Coding Bootcamp",
		Description: "Build profitable web apps and automate your income streams with modern coding skills.",
		Price:       "249.00",
		Category:    "course",
		Features:    []string{"30+ hours of project-based learning", "Build 5 real-world projects", "Code review sessions", "Job placement support"},
	},
	{
		Handle:      "defi-mastery",
		Title:       "DeFi Mastery Guide",
		Description: "A comprehensive PDF guide to decentralized finance protocols and yield farming strategies.",
		Price:       "49.00",
		Category:    "guide",
		Features:    []string{"100+ pages of insights", "Step-by-step tutorials", "Protocol comparisons", "Risk assessment frameworks"},
	},
	{
		Handle:      "nft-playbook",
		Title:       "NFT Playbook",
		Description: "Everything you need to know about creating, buying, and profiting from NFTs.",
		Price:       "39.00",
		Category:    "guide",
		Features:    []string{"NFT creation tutorials", "Marketplace strategies", "Valuation techniques", "Community building tips"},
	},
	{
		Handle:      "complete-crypto-pack",
		Title:       "Complete Crypto Pack",
		Description: "Get all crypto courses and guides in one discounted bundle. Best value for serious learners.",
		Price:       "349.00",
		Category:    "bundle",
		Features:    []string{"All crypto courses included", "All PDF guides included", "Priority support", "Exclusive bonus content"},
	},
	{
		Handle:      "all-access",
		Title:       "All-Access Membership",
		Description: "Unlimited access to all content, live sessions, and exclusive member perks. Billed monthly.",
		Price:       "29.00",
		Category:    "membership",
		Features:    []string{"Access to all courses", "Weekly live sessions", "Exclusive Discord channels", "Early access to new content"},
	},
}

// Catalog returns the static products priced in currency.
func Catalog(currency string) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		price := domain.Money{Amount: p.Price, CurrencyCode: currency}
		description := p.Description
		if len(p.Features) > 0 {
			description += "\n\n- " + strings.Join(p.Features, "\n- ")
		}
		out = append(out, domain.Product{
			ID:          "gid://memory/Product/" + p.Handle,
			Title:       p.Title,
			Handle:      p.Handle,
			Description: description,
			PriceRange:  price,
			Images:      []domain.Image{{URL: "/images/products/" + p.Handle + ".png", AltText: p.Title}},
			Options:     []domain.ProductOption{{Name: "Type", Values: []string{p.Category}}},
			Variants: []domain.Variant{{
				ID:               "gid://memory/ProductVariant/" + p.Handle,
				Title:            "Default Title",
				Price:            price,
				AvailableForSale: true,
				SelectedOptions:  []domain.SelectedOption{{Name: "Type", Value: p.Category}},
			}},
		})
	}
	return out
}

type upserter interface {
	UpsertProduct(p domain.Product)
}

// Apply loads the catalog into dst. Re-applying replaces products by handle.
func Apply(dst upserter, currency string) int {
	catalog := Catalog(currency)
	for _, p := range catalog {
		dst.UpsertProduct(p)
	}
	return len(catalog)
}

// Package checkout mints the deposit checkout URL a lead is redirected to.
package checkout

import (
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"

	"storefront/internal/domain"
)

// Minter returns a checkout URL for a stored lead. Minting twice for the same lead must
// be safe.
type Minter interface {
	Mint(ctx context.Context, lead domain.Lead) (string, error)
}

// Local sends the lead straight to the storefront's success page. It is used when no
// payment provider is configured.
type Local struct {
	successURL string
}

func NewLocal(baseURL, successPath string) *Local {
	if successPath == "" {
		successPath = "/checkout/success"
	}
	return &Local{successURL: joinURL(baseURL, successPath)}
}

func (l *Local) Mint(_ context.Context, lead domain.Lead) (string, error) {
	if strings.TrimSpace(lead.ID) == "" {
		return "", errors.New("checkout: lead id is required")
	}
	return withQuery(l.successURL, "lead", lead.ID), nil
}

func joinURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func withQuery(raw, key, value string) string {
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + key + "=" + url.QueryEscape(value)
}

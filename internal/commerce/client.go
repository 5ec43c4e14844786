// Package commerce defines the contract of the hosted product and cart backend.
package commerce

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"storefront/internal/domain"
)

var (
	// ErrNotFound is returned for unknown product handles and for cart sessions the
	// backend no longer knows (expired or checked out).
	ErrNotFound = domain.ErrNotFound
	// ErrUserError marks a request the backend rejected as invalid.
	ErrUserError = errors.New("commerce: request rejected")
)

// Cart is the backend's authoritative view of a cart session.
type Cart struct {
	SessionID   string
	Lines       []domain.CartLine
	CheckoutURL string
}

// Client is the product and cart API consumed by the cart engine and product service.
// Cart operations are idempotent per (sessionID, variantID): setting the same quantity
// twice converges to the same remote state.
type Client interface {
	ListProducts(ctx context.Context, first int, query string) ([]domain.Product, error)
	ProductByHandle(ctx context.Context, handle string) (*domain.Product, error)
	// CreateOrUpdateCartLine sets the absolute quantity of variantID. An empty sessionID
	// creates a new session.
	CreateOrUpdateCartLine(ctx context.Context, sessionID, variantID string, quantity int) (*Cart, error)
	RemoveCartLine(ctx context.Context, sessionID, variantID string) (*Cart, error)
	GetCart(ctx context.Context, sessionID string) (*Cart, error)
}

// UserErrors collects validation messages returned by the backend.
type UserErrors struct {
	Messages []string
}

func (e *UserErrors) Error() string {
	return "commerce: " + strings.Join(e.Messages, "; ")
}

func (e *UserErrors) Is(target error) bool {
	return target == ErrUserError
}

const DefaultPageSize = 20

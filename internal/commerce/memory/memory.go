// Package memory is an in-process commerce backend serving a static catalog. It backs
// local development and tests when no storefront domain is configured.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/commerce"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

type session struct {
	lines []domain.CartLine
}

// Backend implements commerce.Client against an in-memory catalog and carts.
type Backend struct {
	checkoutBase string
	logger       *zap.Logger

	mu       sync.RWMutex
	products []domain.Product
	sessions map[string]*session
	failErr  error
}

var _ commerce.Client = (*Backend)(nil)

// New returns a backend with no products. Checkout URLs are checkoutBase + "/" + session id.
func New(checkoutBase string, logger *zap.Logger) *Backend {
	return &Backend{
		checkoutBase: strings.TrimRight(checkoutBase, "/"),
		logger:       logging.OrNop(logger).Named("commerce_memory"),
		sessions:     make(map[string]*session),
	}
}

// UpsertProduct adds a product or replaces the one with the same handle.
func (b *Backend) UpsertProduct(p domain.Product) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.products {
		if b.products[i].Handle == p.Handle {
			b.products[i] = p
			return
		}
	}
	b.products = append(b.products, p)
}

// Fail makes every cart operation return err until Fail(nil) is called.
func (b *Backend) Fail(err error) {
	b.mu.Lock()
	b.failErr = err
	b.mu.Unlock()
}

// CompleteCheckout ends a session the way a finished checkout does on a hosted backend:
// later lookups of the session report commerce.ErrNotFound.
func (b *Backend) CompleteCheckout(sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[sessionID]; !ok {
		return errors.Wrapf(commerce.ErrNotFound, "cart %s", sessionID)
	}
	delete(b.sessions, sessionID)
	b.logger.Info("checkout completed", zap.String("session_id", sessionID))
	return nil
}

func (b *Backend) ListProducts(_ context.Context, first int, query string) ([]domain.Product, error) {
	if first <= 0 {
		first = commerce.DefaultPageSize
	}
	q := strings.ToLower(strings.TrimSpace(query))

	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Product, 0, first)
	for _, p := range b.products {
		if len(out) == first {
			break
		}
		if q != "" && !matches(p, q) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func matches(p domain.Product, q string) bool {
	return strings.Contains(strings.ToLower(p.Title), q) ||
		strings.Contains(strings.ToLower(p.Handle), q) ||
		strings.Contains(strings.ToLower(p.Description), q)
}

func (b *Backend) ProductByHandle(_ context.Context, handle string) (*domain.Product, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.products {
		if p.Handle == handle {
			out := p
			out.Variants = append([]domain.Variant(nil), p.Variants...)
			return &out, nil
		}
	}
	return nil, errors.Wrapf(commerce.ErrNotFound, "product %q", handle)
}

func (b *Backend) CreateOrUpdateCartLine(_ context.Context, sessionID, variantID string, quantity int) (*commerce.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failErr != nil {
		return nil, b.failErr
	}
	if quantity <= 0 && sessionID == "" {
		return nil, errors.Wrapf(domain.ErrInvalidQuantity, "variant %s", variantID)
	}

	if sessionID == "" {
		line, err := b.lineFor(variantID, quantity)
		if err != nil {
			return nil, err
		}
		sessionID = "gid://memory/Cart/" + uuid.NewString()
		s := &session{lines: []domain.CartLine{line}}
		b.sessions[sessionID] = s
		b.logger.Debug("session created", zap.String("session_id", sessionID))
		return b.view(sessionID, s), nil
	}

	s, ok := b.sessions[sessionID]
	if !ok {
		return nil, errors.Wrapf(commerce.ErrNotFound, "cart %s", sessionID)
	}

	idx := domain.IndexOfVariant(s.lines, variantID)
	switch {
	case quantity <= 0:
		if idx >= 0 {
			s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
		}
	case idx >= 0:
		s.lines[idx].Quantity = quantity
	default:
		line, err := b.lineFor(variantID, quantity)
		if err != nil {
			return nil, err
		}
		s.lines = append(s.lines, line)
	}
	return b.view(sessionID, s), nil
}

func (b *Backend) RemoveCartLine(_ context.Context, sessionID, variantID string) (*commerce.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failErr != nil {
		return nil, b.failErr
	}
	s, ok := b.sessions[sessionID]
	if !ok {
		return nil, errors.Wrapf(commerce.ErrNotFound, "cart %s", sessionID)
	}
	if idx := domain.IndexOfVariant(s.lines, variantID); idx >= 0 {
		s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	}
	return b.view(sessionID, s), nil
}

func (b *Backend) GetCart(_ context.Context, sessionID string) (*commerce.Cart, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.failErr != nil {
		return nil, b.failErr
	}
	s, ok := b.sessions[sessionID]
	if !ok {
		return nil, errors.Wrapf(commerce.ErrNotFound, "cart %s", sessionID)
	}
	return b.view(sessionID, s), nil
}

// lineFor resolves a variant against the catalog. Caller holds b.mu.
func (b *Backend) lineFor(variantID string, quantity int) (domain.CartLine, error) {
	for _, p := range b.products {
		v, ok := p.VariantByID(variantID)
		if !ok {
			continue
		}
		if !v.AvailableForSale {
			return domain.CartLine{}, errors.WithStack(&commerce.UserErrors{
				Messages: []string{"variant " + variantID + " is not available for sale"},
			})
		}
		return p.LineFor(v, quantity), nil
	}
	return domain.CartLine{}, errors.WithStack(&commerce.UserErrors{
		Messages: []string{"the merchandise with id " + variantID + " does not exist"},
	})
}

func (b *Backend) view(sessionID string, s *session) *commerce.Cart {
	cart := &commerce.Cart{SessionID: sessionID, Lines: domain.CloneLines(s.lines)}
	if len(s.lines) > 0 {
		cart.CheckoutURL = b.checkoutBase + "/" + strings.TrimPrefix(sessionID, "gid://memory/Cart/")
	}
	return cart
}

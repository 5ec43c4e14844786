// Package cart exposes the per-client cart engines as action-based operations.
package cart

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"storefront/internal/cartsync"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

type registry interface {
	Get(ctx context.Context, clientID string) (*cartsync.Engine, error)
}

type catalog interface {
	ProductByHandle(ctx context.Context, handle string) (*domain.Product, error)
}

// checkoutCompleter is implemented by backends that can end a checkout session
// themselves, such as the in-process commerce backend.
type checkoutCompleter interface {
	CompleteCheckout(sessionID string) error
}

type Service struct {
	carts     registry
	catalog   catalog
	completer checkoutCompleter
	logger    *zap.Logger
}

func New(carts registry, catalog catalog, logger *zap.Logger) *Service {
	s := &Service{
		carts:   carts,
		catalog: catalog,
		logger:  logging.OrNop(logger).Named("cart_service"),
	}
	if c, ok := catalog.(checkoutCompleter); ok {
		s.completer = c
	}
	return s
}

type UpdateInput struct {
	Actions []UpdateAction `json:"actions"`
}

type UpdateAction struct {
	Action        string `json:"action"`
	ProductHandle string `json:"productHandle,omitempty"`
	VariantID     string `json:"variantId,omitempty"`
	Quantity      int    `json:"quantity,omitempty"`
}

// View returns the cart of clientID, reconciling it with the backend first when sync is
// set. A failed reconciliation is reported on the view, not as an error.
func (s *Service) View(ctx context.Context, clientID string, sync bool) (*cartsync.View, error) {
	engine, err := s.engine(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if sync {
		if err := tolerate(engine.Sync(ctx)); err != nil {
			return nil, err
		}
	}
	return view(engine), nil
}

func (s *Service) Sync(ctx context.Context, clientID string) (*cartsync.View, error) {
	return s.View(ctx, clientID, true)
}

// Update applies actions in order and stops at the first rejected one. Actions before it
// stay applied, and the returned view shows them next to the error.
func (s *Service) Update(ctx context.Context, clientID string, in UpdateInput) (*cartsync.View, error) {
	if len(in.Actions) == 0 {
		return nil, domain.NewValidationError(map[string]string{"actions": "is required"})
	}
	engine, err := s.engine(ctx, clientID)
	if err != nil {
		return nil, err
	}
	for i, action := range in.Actions {
		if err := s.apply(ctx, engine, action); err != nil {
			return view(engine), errors.Wrapf(err, "action %d (%s)", i, action.Action)
		}
	}
	return view(engine), nil
}

func (s *Service) apply(ctx context.Context, engine *cartsync.Engine, action UpdateAction) error {
	variantID := strings.TrimSpace(action.VariantID)
	switch strings.ToLower(strings.TrimSpace(action.Action)) {
	case "addlineitem":
		line, err := s.resolve(ctx, action.ProductHandle, variantID, action.Quantity)
		if err != nil {
			return err
		}
		return tolerate(engine.AddItem(ctx, line))
	case "changelineitemquantity":
		if variantID == "" {
			return domain.NewValidationError(map[string]string{"variantId": "is required"})
		}
		return tolerate(engine.UpdateQuantity(ctx, variantID, action.Quantity))
	case "removelineitem":
		if variantID == "" {
			return domain.NewValidationError(map[string]string{"variantId": "is required"})
		}
		return tolerate(engine.RemoveItem(ctx, variantID))
	default:
		return domain.NewValidationError(map[string]string{"action": "unsupported action " + action.Action})
	}
}

func (s *Service) AddLine(ctx context.Context, clientID, productHandle, variantID string, quantity int) (*cartsync.View, error) {
	return s.Update(ctx, clientID, UpdateInput{Actions: []UpdateAction{{
		Action:        "addLineItem",
		ProductHandle: productHandle,
		VariantID:     variantID,
		Quantity:      quantity,
	}}})
}

func (s *Service) SetQuantity(ctx context.Context, clientID, variantID string, quantity int) (*cartsync.View, error) {
	return s.Update(ctx, clientID, UpdateInput{Actions: []UpdateAction{{
		Action:    "changeLineItemQuantity",
		VariantID: variantID,
		Quantity:  quantity,
	}}})
}

func (s *Service) RemoveLine(ctx context.Context, clientID, variantID string) (*cartsync.View, error) {
	return s.Update(ctx, clientID, UpdateInput{Actions: []UpdateAction{{
		Action:    "removeLineItem",
		VariantID: variantID,
	}}})
}

func (s *Service) Clear(ctx context.Context, clientID string) (*cartsync.View, error) {
	engine, err := s.engine(ctx, clientID)
	if err != nil {
		return nil, err
	}
	engine.Clear(ctx)
	return view(engine), nil
}

// CheckoutURL returns the backend checkout URL of the cart, or
// domain.ErrCheckoutUnavailable while the cart has no confirmed session.
func (s *Service) CheckoutURL(ctx context.Context, clientID string) (string, error) {
	engine, err := s.engine(ctx, clientID)
	if err != nil {
		return "", err
	}
	url := engine.CheckoutURL()
	if url == "" {
		return "", domain.ErrCheckoutUnavailable
	}
	return url, nil
}

// CompleteCheckout ends the cart after a checkout went through. When the backend can
// complete sessions itself the session is closed there first.
func (s *Service) CompleteCheckout(ctx context.Context, clientID string) (*cartsync.View, error) {
	engine, err := s.engine(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if session := engine.Snapshot().SessionID; session != "" && s.completer != nil {
		if err := s.completer.CompleteCheckout(session); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, errors.Wrapf(err, "complete checkout %s", session)
		}
	}
	engine.CompleteCheckout(ctx)
	return view(engine), nil
}

func (s *Service) engine(ctx context.Context, clientID string) (*cartsync.Engine, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, domain.NewValidationError(map[string]string{"clientId": "is required"})
	}
	engine, err := s.carts.Get(ctx, clientID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return engine, nil
}

// resolve builds the line for a product variant. An empty variantID picks the first
// variant of the product.
func (s *Service) resolve(ctx context.Context, handle, variantID string, quantity int) (domain.CartLine, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return domain.CartLine{}, domain.NewValidationError(map[string]string{"productHandle": "is required"})
	}
	if quantity <= 0 {
		return domain.CartLine{}, errors.Wrapf(domain.ErrInvalidQuantity, "quantity %d", quantity)
	}
	product, err := s.catalog.ProductByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.CartLine{}, errors.Wrapf(err, "product %s", handle)
		}
		return domain.CartLine{}, errors.Mark(errors.Wrapf(err, "product %s", handle), domain.ErrNetwork)
	}
	var variant domain.Variant
	switch {
	case variantID != "":
		v, ok := product.VariantByID(variantID)
		if !ok {
			return domain.CartLine{}, errors.Wrapf(domain.ErrNotFound, "variant %s of %s", variantID, handle)
		}
		variant = v
	case len(product.Variants) > 0:
		variant = product.Variants[0]
	default:
		return domain.CartLine{}, errors.Wrapf(domain.ErrNotFound, "product %s has no variants", handle)
	}
	if !variant.AvailableForSale {
		return domain.CartLine{}, domain.NewValidationError(map[string]string{"variantId": "is not available for sale"})
	}
	return product.LineFor(variant, quantity), nil
}

// tolerate drops backend failures: the engine keeps the optimistic state and the view
// reports the error.
func tolerate(err error) error {
	if err != nil && errors.Is(err, domain.ErrNetwork) {
		return nil
	}
	return err
}

func view(engine *cartsync.Engine) *cartsync.View {
	v := engine.Snapshot()
	return &v
}

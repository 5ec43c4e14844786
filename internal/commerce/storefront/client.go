// Package storefront talks to a Shopify-style Storefront GraphQL API.
package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	graphql "github.com/hasura/go-graphql-client"
	"go.uber.org/zap"

	"storefront/internal/commerce"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

const (
	defaultAPIVersion = "2025-07"
	defaultTimeout    = 10 * time.Second
	tokenHeader       = "X-Shopify-Storefront-Access-Token"
)

type Config struct {
	// Domain is the shop host, e.g. "shop.example.com". A value with an http(s) scheme is
	// used as the base URL verbatim.
	Domain      string
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client implements commerce.Client over the Storefront GraphQL endpoint.
type Client struct {
	gql    *graphql.Client
	logger *zap.Logger
}

var _ commerce.Client = (*Client)(nil)

func New(cfg Config, logger *zap.Logger) (*Client, error) {
	domainName := strings.TrimRight(strings.TrimSpace(cfg.Domain), "/")
	if domainName == "" {
		return nil, errors.New("storefront: domain is required")
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("storefront: access token is required")
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = defaultAPIVersion
	}
	base := domainName
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	token := cfg.AccessToken
	gql := graphql.NewClient(base+"/api/"+version+"/graphql.json", httpClient).
		WithRequestModifier(func(r *http.Request) {
			r.Header.Set(tokenHeader, token)
		})
	return &Client{
		gql:    gql,
		logger: logging.OrNop(logger).Named("storefront"),
	}, nil
}

func (c *Client) ListProducts(ctx context.Context, first int, query string) ([]domain.Product, error) {
	if first <= 0 {
		first = commerce.DefaultPageSize
	}
	vars := map[string]any{"first": first}
	if q := strings.TrimSpace(query); q != "" {
		vars["query"] = q
	}
	var out struct {
		Products struct {
			Edges []struct {
				Node productNode `json:"node"`
			} `json:"edges"`
		} `json:"products"`
	}
	if err := c.do(ctx, "products", productsQuery, vars, &out); err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(out.Products.Edges))
	for _, edge := range out.Products.Edges {
		products = append(products, edge.Node.toDomain())
	}
	return products, nil
}

func (c *Client) ProductByHandle(ctx context.Context, handle string) (*domain.Product, error) {
	var out struct {
		Product *productNode `json:"product"`
	}
	if err := c.do(ctx, "productByHandle", productByHandleQuery, map[string]any{"handle": handle}, &out); err != nil {
		return nil, err
	}
	if out.Product == nil {
		return nil, errors.Wrapf(commerce.ErrNotFound, "product %q", handle)
	}
	p := out.Product.toDomain()
	return &p, nil
}

func (c *Client) GetCart(ctx context.Context, sessionID string) (*commerce.Cart, error) {
	node, err := c.fetchCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return node.toCommerce(), nil
}

func (c *Client) CreateOrUpdateCartLine(ctx context.Context, sessionID, variantID string, quantity int) (*commerce.Cart, error) {
	if quantity <= 0 {
		if sessionID == "" {
			return nil, errors.Wrapf(domain.ErrInvalidQuantity, "variant %s", variantID)
		}
		return c.RemoveCartLine(ctx, sessionID, variantID)
	}
	if sessionID == "" {
		lines := []map[string]any{{"merchandiseId": variantID, "quantity": quantity}}
		return c.mutateCart(ctx, "cartCreate", cartCreateMutation, map[string]any{"lines": lines})
	}

	current, err := c.fetchCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	line, ok := current.line(variantID)
	switch {
	case !ok:
		lines := []map[string]any{{"merchandiseId": variantID, "quantity": quantity}}
		return c.mutateCart(ctx, "cartLinesAdd", cartLinesAddMutation, map[string]any{"cartId": sessionID, "lines": lines})
	case line.Quantity == quantity:
		return current.toCommerce(), nil
	default:
		lines := []map[string]any{{"id": line.ID, "quantity": quantity}}
		return c.mutateCart(ctx, "cartLinesUpdate", cartLinesUpdateMutation, map[string]any{"cartId": sessionID, "lines": lines})
	}
}

func (c *Client) RemoveCartLine(ctx context.Context, sessionID, variantID string) (*commerce.Cart, error) {
	current, err := c.fetchCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	line, ok := current.line(variantID)
	if !ok {
		return current.toCommerce(), nil
	}
	vars := map[string]any{"cartId": sessionID, "lineIds": []string{line.ID}}
	return c.mutateCart(ctx, "cartLinesRemove", cartLinesRemoveMutation, vars)
}

func (c *Client) fetchCart(ctx context.Context, sessionID string) (*cartNode, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.Wrap(commerce.ErrNotFound, "cart session is empty")
	}
	var out struct {
		Cart *cartNode `json:"cart"`
	}
	if err := c.do(ctx, "cart", cartQuery, map[string]any{"id": sessionID}, &out); err != nil {
		return nil, err
	}
	if out.Cart == nil {
		return nil, errors.Wrapf(commerce.ErrNotFound, "cart %s", sessionID)
	}
	return out.Cart, nil
}

// mutateCart runs a cart mutation whose payload is {cart, userErrors} under field.
func (c *Client) mutateCart(ctx context.Context, field, mutation string, vars map[string]any) (*commerce.Cart, error) {
	var out map[string]cartPayload
	if err := c.do(ctx, field, mutation, vars, &out); err != nil {
		return nil, err
	}
	payload := out[field]
	if len(payload.UserErrors) > 0 {
		msgs := make([]string, 0, len(payload.UserErrors))
		for _, ue := range payload.UserErrors {
			msgs = append(msgs, ue.Message)
		}
		return nil, errors.WithStack(&commerce.UserErrors{Messages: msgs})
	}
	if payload.Cart == nil {
		return nil, errors.Wrapf(commerce.ErrNotFound, "%s returned no cart", field)
	}
	return payload.Cart.toCommerce(), nil
}

// do runs one query and decodes its data into out. The library reports transport
// failures, non-2xx statuses and GraphQL errors alike.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	start := time.Now()
	data, err := c.gql.ExecRaw(ctx, query, vars)
	if err != nil {
		c.logger.Warn("storefront request failed", zap.String("op", op), zap.Error(err))
		return errors.Wrapf(err, "storefront %s", op)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrapf(err, "storefront %s: decode data", op)
		}
	}
	c.logger.Debug("storefront request", zap.String("op", op), zap.Duration("took", time.Since(start)))
	return nil
}

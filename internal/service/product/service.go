package product

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"storefront/internal/domain"
)

const maxPageSize = 100

type catalog interface {
	ListProducts(ctx context.Context, first int, query string) ([]domain.Product, error)
	ProductByHandle(ctx context.Context, handle string) (*domain.Product, error)
}

type Service struct {
	catalog catalog
}

func New(catalog catalog) *Service {
	return &Service{catalog: catalog}
}

// List returns up to first products matching query. first is clamped to [1, 100].
func (s *Service) List(ctx context.Context, first int, query string) ([]domain.Product, error) {
	if first > maxPageSize {
		first = maxPageSize
	}
	products, err := s.catalog.ListProducts(ctx, first, strings.TrimSpace(query))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "list products"), domain.ErrNetwork)
	}
	return products, nil
}

// Get returns the product for handle, or domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, handle string) (*domain.Product, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, domain.ErrNotFound
	}
	p, err := s.catalog.ProductByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, errors.Mark(errors.Wrapf(err, "product %s", handle), domain.ErrNetwork)
	}
	return p, nil
}

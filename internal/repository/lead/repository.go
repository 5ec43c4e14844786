package lead

import (
	"context"

	"storefront/internal/domain"
)

// Repository stores submitted leads. Implementations assign ID and CreatedAt on Create
// and never mutate a stored lead afterwards.
type Repository interface {
	Create(ctx context.Context, lead domain.Lead) (*domain.Lead, error)
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	List(ctx context.Context) ([]domain.Lead, error)
}

const idPrefix = "lead_"

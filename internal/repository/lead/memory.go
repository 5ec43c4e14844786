package lead

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

type memoryRepo struct {
	mu     sync.RWMutex
	byID   map[string]int
	leads  []domain.Lead
	now    func() time.Time
	logger *zap.Logger
}

// NewMemory returns a process-lifetime store. Leads are kept in creation order.
func NewMemory(logger *zap.Logger) Repository {
	return newMemory(logger, time.Now)
}

func newMemory(logger *zap.Logger, now func() time.Time) *memoryRepo {
	return &memoryRepo{
		byID:   make(map[string]int),
		now:    now,
		logger: logging.OrNop(logger).Named("lead_repo"),
	}
}

func (r *memoryRepo) Create(_ context.Context, lead domain.Lead) (*domain.Lead, error) {
	lead.ID = idPrefix + ulid.Make().String()
	lead.CreatedAt = r.now().UTC()

	r.mu.Lock()
	r.byID[lead.ID] = len(r.leads)
	r.leads = append(r.leads, lead)
	r.mu.Unlock()

	r.logger.Debug("lead created", zap.String("lead_id", lead.ID), zap.String("service", lead.Service))
	return &lead, nil
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	lead := r.leads[idx]
	return &lead, nil
}

func (r *memoryRepo) List(_ context.Context) ([]domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Lead, len(r.leads))
	copy(out, r.leads)
	return out, nil
}

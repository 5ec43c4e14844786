package cartstate

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

type memoryRepo struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	logger *zap.Logger
}

func NewMemory(logger *zap.Logger) Repository {
	return &memoryRepo{blobs: make(map[string][]byte), logger: logging.OrNop(logger).Named("cartstate")}
}

func (r *memoryRepo) Load(_ context.Context, clientID string) (domain.CartState, error) {
	r.mu.RLock()
	blob := r.blobs[clientID]
	r.mu.RUnlock()

	state, ok := Decode(blob)
	if !ok {
		r.logger.Warn("discarding malformed cart state", zap.String("client_id", clientID))
	}
	return state, nil
}

func (r *memoryRepo) Save(_ context.Context, clientID string, state domain.CartState) error {
	blob, err := Encode(state)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.blobs[clientID] = blob
	r.mu.Unlock()
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, clientID string) error {
	r.mu.Lock()
	delete(r.blobs, clientID)
	r.mu.Unlock()
	return nil
}

// putRaw stores an arbitrary blob; tests use it to simulate corrupt local state.
func (r *memoryRepo) putRaw(clientID string, blob []byte) {
	r.mu.Lock()
	r.blobs[clientID] = blob
	r.mu.Unlock()
}

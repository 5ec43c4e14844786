package cartstate

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("cartstate")}
}

func (r *postgresRepo) Load(ctx context.Context, clientID string) (domain.CartState, error) {
	var blob []byte
	err := r.pool.QueryRow(ctx, `SELECT state FROM cart_states WHERE client_id = $1`, clientID).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CartState{}, nil
		}
		r.logger.Error("load cart state", zap.String("client_id", clientID), zap.Error(err))
		return domain.CartState{}, errors.Wrapf(err, "load cart state %s", clientID)
	}
	state, ok := Decode(blob)
	if !ok {
		r.logger.Warn("discarding malformed cart state", zap.String("client_id", clientID))
	}
	return state, nil
}

func (r *postgresRepo) Save(ctx context.Context, clientID string, state domain.CartState) error {
	blob, err := Encode(state)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO cart_states (client_id, state, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (client_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
`
	if _, err := r.pool.Exec(ctx, q, clientID, blob); err != nil {
		r.logger.Error("save cart state", zap.String("client_id", clientID), zap.Error(err))
		return errors.Wrapf(err, "save cart state %s", clientID)
	}
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, clientID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_states WHERE client_id = $1`, clientID); err != nil {
		return errors.Wrapf(err, "delete cart state %s", clientID)
	}
	return nil
}

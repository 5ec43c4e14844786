package lead

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("lead_repo")}
}

const leadColumns = `id, service, details, contact_method, contact_value, COALESCE(budget_range, ''), COALESCE(deadline, ''), consent, COALESCE(ip, ''), created_at`

func (r *postgresRepo) Create(ctx context.Context, lead domain.Lead) (*domain.Lead, error) {
	const q = `
INSERT INTO leads (id, service, details, contact_method, contact_value, budget_range, deadline, consent, ip)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, NULLIF($9, ''))
RETURNING created_at
`
	lead.ID = idPrefix + ulid.Make().String()
	err := r.pool.QueryRow(ctx, q,
		lead.ID,
		lead.Service,
		lead.Details,
		lead.ContactMethod,
		lead.ContactValue,
		lead.BudgetRange,
		lead.Deadline,
		lead.Consent,
		lead.IP,
	).Scan(&lead.CreatedAt)
	if err != nil {
		r.logger.Error("create lead", zap.String("service", lead.Service), zap.Error(err))
		return nil, errors.Wrap(err, "insert lead")
	}
	lead.CreatedAt = lead.CreatedAt.UTC()
	r.logger.Info("lead created", zap.String("lead_id", lead.ID), zap.String("service", lead.Service))
	return &lead, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	q := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	lead, err := scanLead(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get lead", zap.String("lead_id", id), zap.Error(err))
		return nil, errors.Wrapf(err, "get lead %s", id)
	}
	return lead, nil
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Lead, error) {
	q := `SELECT ` + leadColumns + ` FROM leads ORDER BY seq`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "list leads")
	}
	defer rows.Close()

	var result []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan lead")
		}
		result = append(result, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list leads rows")
	}
	r.logger.Debug("leads listed", zap.Int("count", len(result)))
	return result, nil
}

func scanLead(row pgx.Row) (*domain.Lead, error) {
	var l domain.Lead
	if err := row.Scan(&l.ID, &l.Service, &l.Details, &l.ContactMethod, &l.ContactValue,
		&l.BudgetRange, &l.Deadline, &l.Consent, &l.IP, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

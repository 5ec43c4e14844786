// Package lead runs the contact brief submission flow.
package lead

import (
	"context"
	"html"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

type leadRepo interface {
	Create(ctx context.Context, lead domain.Lead) (*domain.Lead, error)
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	List(ctx context.Context) ([]domain.Lead, error)
}

type rateLimiter interface {
	Allow(key string) bool
}

type minter interface {
	Mint(ctx context.Context, lead domain.Lead) (string, error)
}

type Service struct {
	repo     leadRepo
	limiter  rateLimiter
	minter   minter
	validate *validator.Validate
	policy   *bluemonday.Policy
	logger   *zap.Logger
}

func New(repo leadRepo, limiter rateLimiter, minter minter, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		limiter:  limiter,
		minter:   minter,
		validate: newValidator(),
		policy:   bluemonday.StrictPolicy(),
		logger:   logging.OrNop(logger).Named("lead_service"),
	}
}

// SubmitInput is the brief form. Website is a honeypot that people never fill in.
type SubmitInput struct {
	Service       string `json:"service" validate:"required,max=100"`
	Details       string `json:"details" validate:"required,min=20,max=5000"`
	ContactMethod string `json:"contactMethod" validate:"required,oneof=telegram discord whatsapp instagram email"`
	ContactValue  string `json:"contactValue" validate:"required,min=3,max=200"`
	BudgetRange   string `json:"budgetRange" validate:"omitempty,oneof=<1k 1k-3k 3k-10k 10k+"`
	Deadline      string `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	Consent       bool   `json:"consent" validate:"required"`
	Website       string `json:"website"`
}

// Result carries the stored lead and, when minting succeeded, its checkout URL.
type Result struct {
	Lead        *domain.Lead
	CheckoutURL string
}

// Submit checks the honeypot, validates the form, applies the rate limit for identity,
// stores the lead and mints its checkout URL. Spam, validation and rate limit failures
// have no side effects. A minting failure returns the stored lead together with an
// error marked domain.ErrCheckoutUnavailable; Checkout can retry it.
func (s *Service) Submit(ctx context.Context, in SubmitInput, identity string) (*Result, error) {
	if strings.TrimSpace(in.Website) != "" {
		s.logger.Info("honeypot triggered", zap.String("ip", identity))
		return nil, domain.ErrSpamDetected
	}

	in = s.clean(in)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	if !s.limiter.Allow(identity) {
		s.logger.Info("lead rate limited", zap.String("ip", identity))
		return nil, domain.ErrRateLimited
	}

	created, err := s.repo.Create(ctx, domain.Lead{
		Service:       in.Service,
		Details:       in.Details,
		ContactMethod: in.ContactMethod,
		ContactValue:  in.ContactValue,
		BudgetRange:   in.BudgetRange,
		Deadline:      in.Deadline,
		Consent:       in.Consent,
		IP:            identity,
	})
	if err != nil {
		return nil, errors.Wrap(err, "store lead")
	}
	s.logger.Info("lead submitted", zap.String("lead_id", created.ID), zap.String("service", created.Service))

	url, err := s.minter.Mint(ctx, *created)
	if err != nil {
		s.logger.Warn("mint checkout url", zap.String("lead_id", created.ID), zap.Error(err))
		return &Result{Lead: created}, errors.Mark(errors.Wrap(err, "mint checkout url"), domain.ErrCheckoutUnavailable)
	}
	return &Result{Lead: created, CheckoutURL: url}, nil
}

// Checkout mints a checkout URL for an existing lead.
func (s *Service) Checkout(ctx context.Context, leadID string) (string, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return "", err
	}
	url, err := s.minter.Mint(ctx, *lead)
	if err != nil {
		s.logger.Warn("mint checkout url", zap.String("lead_id", leadID), zap.Error(err))
		return "", errors.Mark(errors.Wrap(err, "mint checkout url"), domain.ErrCheckoutUnavailable)
	}
	return url, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Lead, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Lead, error) {
	return s.repo.List(ctx)
}

// clean trims fields and strips markup from free text.
func (s *Service) clean(in SubmitInput) SubmitInput {
	in.Service = strings.TrimSpace(in.Service)
	in.Details = s.plain(in.Details)
	in.ContactMethod = strings.ToLower(strings.TrimSpace(in.ContactMethod))
	in.ContactValue = s.plain(in.ContactValue)
	in.BudgetRange = strings.TrimSpace(in.BudgetRange)
	in.Deadline = strings.TrimSpace(in.Deadline)
	return in
}

const maxUnescapeRounds = 4

// plain strips markup and decodes entities until the text is stable, so entity-encoded
// tags are stripped too. Text that never settles is kept in its escaped form.
func (s *Service) plain(v string) string {
	for i := 0; i < maxUnescapeRounds; i++ {
		next := html.UnescapeString(s.policy.Sanitize(v))
		if next == v {
			return strings.TrimSpace(v)
		}
		v = next
	}
	return strings.TrimSpace(s.policy.Sanitize(v))
}

// Package anonymous issues the stable per-browser client ids that key carts.
package anonymous

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var ErrInvalidClientID = errors.New("invalid client id")

type Service struct {
	ttl time.Duration
}

// New returns a Service whose ids are meant to live ttl in the browser. A non-positive
// ttl selects one year.
func New(ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 365 * 24 * time.Hour
	}
	return &Service{ttl: ttl}
}

func (s *Service) Issue() string {
	return uuid.NewString()
}

// Validate returns the canonical form of raw.
func (s *Service) Validate(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "client id %q", raw), ErrInvalidClientID)
	}
	if id == uuid.Nil {
		return "", errors.Wrap(ErrInvalidClientID, "nil uuid")
	}
	return id.String(), nil
}

// Resolve validates raw, issuing a fresh id when it is missing or malformed.
func (s *Service) Resolve(raw string) (id string, issued bool) {
	if id, err := s.Validate(raw); err == nil {
		return id, false
	}
	return s.Issue(), true
}

func (s *Service) TTLSeconds() int {
	return int(s.ttl.Seconds())
}

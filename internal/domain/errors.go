package domain

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input; see ValidationError for field details.
	ErrValidation = errors.New("validation failed")
	// ErrSpamDetected is returned when a honeypot field was filled in.
	ErrSpamDetected = errors.New("spam detected")
	// ErrRateLimited is returned when a client identity exceeded its submission budget.
	ErrRateLimited = errors.New("rate limit exceeded, please try again later")
	// ErrNetwork marks failures talking to the commerce backend.
	ErrNetwork = errors.New("commerce backend unavailable")
	// ErrCheckoutUnavailable is returned when no checkout URL can be produced.
	ErrCheckoutUnavailable = errors.New("checkout unavailable")
	// ErrMixedCurrency is returned when a cart would hold more than one currency.
	ErrMixedCurrency = errors.New("cart cannot mix currencies")
	// ErrInvalidQuantity is returned for line quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// ValidationError carries per-field messages for a rejected submission.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

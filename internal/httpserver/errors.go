package httpserver

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"storefront/internal/cartsync"
	"storefront/internal/domain"
)

type errorDetail struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
	// Cart is the state left behind by a partly applied cart update.
	Cart *cartsync.View `json:"cart,omitempty"`
}

// statusFor maps domain errors to HTTP statuses and the message shown to callers.
// Unknown errors are 500 with a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, domain.ErrValidation.Error()
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, domain.ErrInvalidQuantity.Error()
	case errors.Is(err, domain.ErrMixedCurrency):
		return http.StatusBadRequest, domain.ErrMixedCurrency.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrNotFound.Error()
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, domain.ErrRateLimited.Error()
	case errors.Is(err, domain.ErrCheckoutUnavailable):
		return http.StatusConflict, domain.ErrCheckoutUnavailable.Error()
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway, domain.ErrNetwork.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// abortWithError writes the JSON error body for err and records err on the context for
// the request logger.
func abortWithError(c *gin.Context, err error) {
	abortWithCart(c, err, nil)
}

// abortWithCart is abortWithError that also returns the cart as it stands.
func abortWithCart(c *gin.Context, err error, cart *cartsync.View) {
	status, msg := statusFor(err)
	body := errorBody{Error: errorDetail{Message: msg}, Cart: cart}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body.Error.Fields = verr.Fields
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error, msg string) {
	if err == nil {
		err = errors.New(msg)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: errorDetail{Message: msg}})
}

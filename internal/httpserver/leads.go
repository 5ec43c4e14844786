package httpserver

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
	leadsvc "storefront/internal/service/lead"
)

type leadHandler struct {
	svc    leadService
	logger *zap.Logger
}

type submitResponse struct {
	LeadID      string `json:"leadId"`
	CheckoutURL string `json:"checkoutUrl,omitempty"`
}

// leadSummary is what the public success page may show about a lead.
type leadSummary struct {
	ID        string    `json:"id"`
	Service   string    `json:"service"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *leadHandler) options(c *gin.Context) {
	c.JSON(http.StatusOK, leadsvc.Options())
}

func (h *leadHandler) submit(c *gin.Context) {
	var in leadsvc.SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err, "invalid body")
		return
	}
	res, err := h.svc.Submit(c.Request.Context(), in, c.ClientIP())
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, submitResponse{LeadID: res.Lead.ID, CheckoutURL: res.CheckoutURL})
	case errors.Is(err, domain.ErrSpamDetected):
		// Bots get an acknowledgement that carries nothing.
		c.JSON(http.StatusAccepted, gin.H{})
	case errors.Is(err, domain.ErrCheckoutUnavailable) && res != nil && res.Lead != nil:
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  errorDetail{Message: domain.ErrCheckoutUnavailable.Error()},
			"leadId": res.Lead.ID,
		})
	default:
		abortWithError(c, err)
	}
}

func (h *leadHandler) checkout(c *gin.Context) {
	url, err := h.svc.Checkout(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"checkoutUrl": url})
	case errors.Is(err, domain.ErrCheckoutUnavailable):
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadGateway, errorBody{Error: errorDetail{Message: domain.ErrCheckoutUnavailable.Error()}})
	default:
		abortWithError(c, err)
	}
}

func (h *leadHandler) get(c *gin.Context) {
	lead, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, leadSummary{ID: lead.ID, Service: lead.Service, CreatedAt: lead.CreatedAt})
}

func (h *leadHandler) list(c *gin.Context) {
	leads, err := h.svc.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	if leads == nil {
		leads = []domain.Lead{}
	}
	h.logger.Info("admin listed leads", zap.String("admin", c.GetString(gin.AuthUserKey)), zap.Int("count", len(leads)))
	c.JSON(http.StatusOK, gin.H{"leads": leads, "count": len(leads)})
}

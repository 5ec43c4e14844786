package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	cartsvc "storefront/internal/service/cart"
)

type cartHandler struct {
	svc cartService
}

type addLineRequest struct {
	ProductHandle string `json:"productHandle"`
	VariantID     string `json:"variantId"`
	Quantity      int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// view returns the cart. ?sync=true reconciles with the backend first, which is what
// the drawer does when it opens or the tab becomes visible again.
func (h *cartHandler) view(c *gin.Context) {
	sync, _ := strconv.ParseBool(c.DefaultQuery("sync", "false"))
	v, err := h.svc.View(c.Request.Context(), clientID(c), sync)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *cartHandler) sync(c *gin.Context) {
	v, err := h.svc.Sync(c.Request.Context(), clientID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *cartHandler) update(c *gin.Context) {
	var in cartsvc.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err, "invalid body")
		return
	}
	v, err := h.svc.Update(c.Request.Context(), clientID(c), in)
	if err != nil {
		abortWithCart(c, err, v)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *cartHandler) addLine(c *gin.Context) {
	req := addLineRequest{Quantity: 1}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "invalid body")
		return
	}
	v, err := h.svc.AddLine(c.Request.Context(), clientID(c), req.ProductHandle, req.VariantID, req.Quantity)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *cartHandler) setQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "invalid body")
		return
	}
	v, err := h.svc.SetQuantity(c.Request.Context(), clientID(c), variantParam(c), req.Quantity)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *cartHandler) removeLine(c *gin.Context) {
	v, err := h.svc.RemoveLine(c.Request.Context(), clientID(c), variantParam(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *cartHandler) clear(c *gin.Context) {
	v, err := h.svc.Clear(c.Request.Context(), clientID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *cartHandler) checkout(c *gin.Context) {
	url, err := h.svc.CheckoutURL(c.Request.Context(), clientID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkoutUrl": url})
}

func (h *cartHandler) completeCheckout(c *gin.Context) {
	v, err := h.svc.CompleteCheckout(c.Request.Context(), clientID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// variantParam reads the catch-all variant id. Storefront ids are URIs and keep their
// slashes.
func variantParam(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("variantId"), "/")
}

package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/commerce"
)

type productHandler struct {
	svc productService
}

func (h *productHandler) list(c *gin.Context) {
	first := commerce.DefaultPageSize
	if raw := c.Query("first"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, err, "first must be a positive integer")
			return
		}
		first = n
	}
	products, err := h.svc.List(c.Request.Context(), first, c.Query("query"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (h *productHandler) get(c *gin.Context) {
	product, err := h.svc.Get(c.Request.Context(), c.Param("handle"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

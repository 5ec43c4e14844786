package httpserver

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/cartsync"
	"storefront/internal/domain"
	cartsvc "storefront/internal/service/cart"
	leadsvc "storefront/internal/service/lead"
)

type productService interface {
	List(ctx context.Context, first int, query string) ([]domain.Product, error)
	Get(ctx context.Context, handle string) (*domain.Product, error)
}

type cartService interface {
	View(ctx context.Context, clientID string, sync bool) (*cartsync.View, error)
	Sync(ctx context.Context, clientID string) (*cartsync.View, error)
	Update(ctx context.Context, clientID string, in cartsvc.UpdateInput) (*cartsync.View, error)
	AddLine(ctx context.Context, clientID, productHandle, variantID string, quantity int) (*cartsync.View, error)
	SetQuantity(ctx context.Context, clientID, variantID string, quantity int) (*cartsync.View, error)
	RemoveLine(ctx context.Context, clientID, variantID string) (*cartsync.View, error)
	Clear(ctx context.Context, clientID string) (*cartsync.View, error)
	CheckoutURL(ctx context.Context, clientID string) (string, error)
	CompleteCheckout(ctx context.Context, clientID string) (*cartsync.View, error)
}

type leadService interface {
	Submit(ctx context.Context, in leadsvc.SubmitInput, identity string) (*leadsvc.Result, error)
	Checkout(ctx context.Context, leadID string) (string, error)
	Get(ctx context.Context, id string) (*domain.Lead, error)
	List(ctx context.Context) ([]domain.Lead, error)
}

type clientIDService interface {
	Resolve(raw string) (id string, issued bool)
	TTLSeconds() int
}

// Deps carries the services behind the routes. DB is optional. Without TrustedProxies
// the client IP is the connection's remote address.
type Deps struct {
	DB             pinger
	ProductSvc     productService
	CartSvc        cartService
	LeadSvc        leadService
	ClientIDs      clientIDService
	CORS           CORSConfig
	Admin          AdminConfig
	TrustedProxies []string
}

type CORSConfig struct {
	AllowOrigins []string
	MaxAge       time.Duration
}

// AdminConfig guards /admin. An empty PasswordHash leaves the admin routes unregistered.
type AdminConfig struct {
	Username     string
	PasswordHash string
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if deps.ProductSvc == nil || deps.CartSvc == nil || deps.LeadSvc == nil || deps.ClientIDs == nil {
		return nil, errors.New("httpserver: product, cart, lead and client id services are required")
	}

	router := gin.New()
	if err := router.SetTrustedProxies(nonBlank(deps.TrustedProxies)); err != nil {
		return nil, errors.Wrap(err, "httpserver: trusted proxies")
	}
	router.Use(recovery(logger), requestLogger(logger))
	if origins := nonBlank(deps.CORS.AllowOrigins); len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", clientIDHeader},
			ExposeHeaders:    []string{clientIDHeader},
			AllowCredentials: true,
			MaxAge:           deps.CORS.MaxAge,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.DB))

	products := &productHandler{svc: deps.ProductSvc}
	router.GET("/products", products.list)
	router.GET("/products/:handle", products.get)

	carts := &cartHandler{svc: deps.CartSvc}
	cart := router.Group("/cart", clientIDMiddleware(deps.ClientIDs))
	cart.GET("", carts.view)
	cart.POST("", carts.update)
	cart.DELETE("", carts.clear)
	cart.POST("/sync", carts.sync)
	cart.POST("/lines", carts.addLine)
	cart.PUT("/lines/*variantId", carts.setQuantity)
	cart.DELETE("/lines/*variantId", carts.removeLine)
	cart.GET("/checkout", carts.checkout)
	cart.POST("/checkout/complete", carts.completeCheckout)

	leads := &leadHandler{svc: deps.LeadSvc, logger: logger}
	router.GET("/leads/options", leads.options)
	router.POST("/leads", leads.submit)
	router.GET("/leads/:id", leads.get)
	router.POST("/leads/:id/checkout", leads.checkout)

	if strings.TrimSpace(deps.Admin.PasswordHash) != "" {
		admin := router.Group("/admin", basicAuth(deps.Admin, logger))
		admin.GET("/leads", leads.list)
	} else {
		logger.Info("admin routes disabled, no password hash configured")
	}

	return router, nil
}

// nonBlank drops blank entries from a comma separated env list.
func nonBlank(in []string) []string {
	var out []string
	for _, o := range in {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/cartsync"
	"storefront/internal/checkout"
	"storefront/internal/commerce/memory"
	"storefront/internal/domain"
	"storefront/internal/ratelimit"
	leadrepo "storefront/internal/repository/lead"
	"storefront/internal/seed"
	"storefront/internal/service/anonymous"
	cartsvc "storefront/internal/service/cart"
	leadsvc "storefront/internal/service/lead"
	productsvc "storefront/internal/service/product"
)

const defiVariant = "gid://memory/ProductVariant/defi-mastery"

type failingMinter struct{}

func (failingMinter) Mint(context.Context, domain.Lead) (string, error) {
	return "", errors.New("stripe: api unavailable")
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type harness struct {
	router  *gin.Engine
	backend *memory.Backend
}

func newHarness(t *testing.T, mutate func(*Deps)) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := memory.New("http://shop.test/checkout", nil)
	seed.Apply(backend, "EUR")
	reg, err := cartsync.NewRegistry(backend, 64, cartsync.Options{Currency: "EUR"})
	require.NoError(t, err)

	deps := Deps{
		ProductSvc: productsvc.New(backend),
		CartSvc:    cartsvc.New(reg, backend, nil),
		LeadSvc: leadsvc.New(
			leadrepo.NewMemory(nil),
			ratelimit.New(3, time.Hour, nil),
			checkout.NewLocal("http://shop.test", "/checkout/success"),
			nil,
		),
		ClientIDs: anonymous.New(0),
	}
	if mutate != nil {
		mutate(&deps)
	}
	router, err := buildRouter(zapNop(), deps)
	require.NoError(t, err)
	return &harness{router: router, backend: backend}
}

func (h *harness) do(method, path string, body string, header http.Header) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestBuildRouterRequiresServices(t *testing.T) {
	_, err := buildRouter(zapNop(), Deps{})
	require.Error(t, err)
}

func TestHealthAndReadiness(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "", nil).Code)

	rec := h.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "memory", decode(t, rec)["storage"])

	down := newHarness(t, func(d *Deps) { d.DB = stubPinger{err: errors.New("refused")} })
	assert.Equal(t, http.StatusServiceUnavailable, down.do(http.MethodGet, "/readyz", "", nil).Code)
}

func TestClientIDIsIssuedAndReused(t *testing.T) {
	h := newHarness(t, nil)

	first := h.do(http.MethodPost, "/cart/lines", `{"productHandle":"defi-mastery","quantity":2}`, nil)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	id := first.Header().Get(clientIDHeader)
	require.NotEmpty(t, id)
	assert.Contains(t, first.Header().Get("Set-Cookie"), clientIDCookie+"="+id)

	again := h.do(http.MethodGet, "/cart", "", http.Header{clientIDHeader: {id}})
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, id, again.Header().Get(clientIDHeader))
	assert.Empty(t, again.Header().Get("Set-Cookie"))
	assert.EqualValues(t, 2, decode(t, again)["totalItems"])

	byCookie := h.do(http.MethodGet, "/cart", "", http.Header{"Cookie": {clientIDCookie + "=" + id}})
	assert.EqualValues(t, 2, decode(t, byCookie)["totalItems"])

	stranger := h.do(http.MethodGet, "/cart", "", nil)
	assert.NotEqual(t, id, stranger.Header().Get(clientIDHeader))
	assert.EqualValues(t, 0, decode(t, stranger)["totalItems"])
}

func TestCartLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	who := http.Header{clientIDHeader: {anonymous.New(0).Issue()}}
	linePath := "/cart/lines/" + url.PathEscape(defiVariant)

	rec := h.do(http.MethodGet, "/cart/checkout", "", who)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, "/cart/lines", `{"productHandle":"defi-mastery"}`, who)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode(t, rec)
	assert.EqualValues(t, 1, view["totalItems"])
	assert.Equal(t, map[string]interface{}{"amount": "49.00", "currencyCode": "EUR"}, view["totalPrice"])

	rec = h.do(http.MethodPut, linePath, `{"quantity":5}`, who)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 5, decode(t, rec)["totalItems"])

	rec = h.do(http.MethodGet, "/cart/checkout", "", who)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["checkoutUrl"], "http://shop.test/checkout/")

	rec = h.do(http.MethodDelete, linePath, "", who)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["totalItems"])

	rec = h.do(http.MethodPost, "/cart", `{"actions":[{"action":"addLineItem","productHandle":"nft-playbook","quantity":1}]}`, who)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decode(t, rec)["totalItems"])

	rec = h.do(http.MethodDelete, "/cart", "", who)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["totalItems"])
}

func TestCartErrors(t *testing.T) {
	h := newHarness(t, nil)
	who := http.Header{clientIDHeader: {anonymous.New(0).Issue()}}

	rec := h.do(http.MethodPost, "/cart", `{"actions":[{"action":"addDiscountCode"}]}`, who)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode(t, rec)["error"].(map[string]interface{})["fields"]
	assert.Contains(t, fields, "action")

	rec = h.do(http.MethodPost, "/cart/lines", `{"productHandle":"unknown"}`, who)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPost, "/cart/lines", `{"productHandle":"defi-mastery","quantity":-1}`, who)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPut, "/cart/lines/"+url.PathEscape(defiVariant), `{"quantity":2}`, who)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPost, "/cart/lines", `not json`, who)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/cart", `{"actions":[{"action":"addLineItem","productHandle":"nft-playbook","quantity":2},{"action":"addLineItem","productHandle":"unknown"}]}`, who)
	require.Equal(t, http.StatusNotFound, rec.Code)
	cart := decode(t, rec)["cart"].(map[string]interface{})
	assert.EqualValues(t, 2, cart["totalItems"])
}

func TestCartSurvivesBackendOutage(t *testing.T) {
	h := newHarness(t, nil)
	who := http.Header{clientIDHeader: {anonymous.New(0).Issue()}}
	h.backend.Fail(errors.New("connection refused"))

	rec := h.do(http.MethodPost, "/cart/lines", `{"productHandle":"defi-mastery"}`, who)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode(t, rec)
	assert.EqualValues(t, 1, view["totalItems"])
	assert.Contains(t, view["error"], "connection refused")
}

func TestCompleteCheckoutClearsCart(t *testing.T) {
	h := newHarness(t, nil)
	who := http.Header{clientIDHeader: {anonymous.New(0).Issue()}}
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/cart/lines", `{"productHandle":"all-access"}`, who).Code)

	rec := h.do(http.MethodPost, "/cart/checkout/complete", "", who)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["totalItems"])

	rec = h.do(http.MethodGet, "/cart?sync=true", "", who)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["totalItems"])
}

func TestProducts(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/products?first=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["count"])

	rec = h.do(http.MethodGet, "/products?query=playbook", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = h.do(http.MethodGet, "/products/nft-playbook", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NFT Playbook", decode(t, rec)["title"])

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/products/nope", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/products?first=zero", "", nil).Code)
}

const validLead = `{"service":"custom-web-app","details":"A dashboard that tracks my course sales.","contactMethod":"email","contactValue":"me@example.com","consent":true}`

func TestSubmitLead(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/leads", validLead, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	leadID := body["leadId"].(string)
	assert.True(t, strings.HasPrefix(leadID, "lead_"))
	assert.Equal(t, "http://shop.test/checkout/success?lead="+leadID, body["checkoutUrl"])

	rec = h.do(http.MethodGet, "/leads/"+leadID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode(t, rec)
	assert.Equal(t, "custom-web-app", summary["service"])
	assert.NotContains(t, summary, "contactValue")

	rec = h.do(http.MethodPost, "/leads/"+leadID+"/checkout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/leads/lead_missing", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/leads/lead_missing/checkout", "", nil).Code)
}

func TestSubmitLeadRejections(t *testing.T) {
	h := newHarness(t, nil)

	spam := strings.Replace(validLead, `"consent":true`, `"consent":true,"website":"http://spam.example"`, 1)
	rec := h.do(http.MethodPost, "/leads", spam, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, decode(t, rec))

	rec = h.do(http.MethodPost, "/leads", `{"service":"custom-web-app","details":"short","contactMethod":"fax","consent":false}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode(t, rec)["error"].(map[string]interface{})["fields"].(map[string]interface{})
	assert.Contains(t, fields, "details")
	assert.Contains(t, fields, "contactMethod")
	assert.Contains(t, fields, "consent")

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/leads", validLead, nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, h.do(http.MethodPost, "/leads", validLead, nil).Code)
}

func TestLeadRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	h := newHarness(t, nil)
	for i := 1; i <= 3; i++ {
		spoofed := http.Header{"X-Forwarded-For": {fmt.Sprintf("1.1.1.%d", i)}}
		require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/leads", validLead, spoofed).Code)
	}
	spoofed := http.Header{"X-Forwarded-For": {"1.1.1.4"}}
	assert.Equal(t, http.StatusTooManyRequests, h.do(http.MethodPost, "/leads", validLead, spoofed).Code)
}

func TestLeadRateLimitHonorsTrustedProxy(t *testing.T) {
	// httptest requests come from 192.0.2.1.
	h := newHarness(t, func(d *Deps) { d.TrustedProxies = []string{"192.0.2.0/24"} })
	for i := 0; i < 3; i++ {
		behind := http.Header{"X-Forwarded-For": {"203.0.113.7"}}
		require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/leads", validLead, behind).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests,
		h.do(http.MethodPost, "/leads", validLead, http.Header{"X-Forwarded-For": {"203.0.113.7"}}).Code)
	assert.Equal(t, http.StatusCreated,
		h.do(http.MethodPost, "/leads", validLead, http.Header{"X-Forwarded-For": {"203.0.113.8"}}).Code)
}

func TestBuildRouterRejectsBadTrustedProxy(t *testing.T) {
	backend := memory.New("http://shop.test/checkout", nil)
	reg, err := cartsync.NewRegistry(backend, 8, cartsync.Options{})
	require.NoError(t, err)

	_, err = buildRouter(zapNop(), Deps{
		ProductSvc:     productsvc.New(backend),
		CartSvc:        cartsvc.New(reg, backend, nil),
		LeadSvc:        leadsvc.New(leadrepo.NewMemory(nil), ratelimit.New(3, time.Hour, nil), checkout.NewLocal("", "/"), nil),
		ClientIDs:      anonymous.New(0),
		TrustedProxies: []string{"not-an-ip"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trusted proxies")
}

func TestSubmitLeadCheckoutFailureKeepsLead(t *testing.T) {
	repo := leadrepo.NewMemory(nil)
	h := newHarness(t, func(d *Deps) {
		d.LeadSvc = leadsvc.New(repo, ratelimit.New(3, time.Hour, nil), failingMinter{}, nil)
	})

	rec := h.do(http.MethodPost, "/leads", validLead, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	leadID := decode(t, rec)["leadId"].(string)

	stored, err := repo.GetByID(context.Background(), leadID)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", stored.ContactValue)

	assert.Equal(t, http.StatusBadGateway, h.do(http.MethodPost, "/leads/"+leadID+"/checkout", "", nil).Code)
}

func TestLeadOptions(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/leads/options", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["contactMethods"], "telegram")
}

func TestAdminLeads(t *testing.T) {
	closed := newHarness(t, nil)
	assert.Equal(t, http.StatusNotFound, closed.do(http.MethodGet, "/admin/leads", "", nil).Code)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	h := newHarness(t, func(d *Deps) {
		d.Admin = AdminConfig{Username: "admin", PasswordHash: string(hash)}
	})
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/leads", validLead, nil).Code)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/admin/leads", "", nil).Code)

	wrong := httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	wrong.SetBasicAuth("admin", "guess")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, wrong)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	right := httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	right.SetBasicAuth("admin", "s3cret")
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, right)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["count"])
	assert.Equal(t, "me@example.com", body["leads"].([]interface{})[0].(map[string]interface{})["contactValue"])
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.CORS = CORSConfig{AllowOrigins: []string{"https://shop.example"}, MaxAge: time.Hour}
	})
	req := httptest.NewRequest(http.MethodOptions, "/cart", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/safar/hive-store/internal/catalog"
	"github.com/safar/hive-store/internal/checkout"
	"github.com/safar/hive-store/internal/events"
	"github.com/safar/hive-store/internal/logging"
	"github.com/safar/hive-store/internal/metrics"
	"github.com/safar/hive-store/internal/models"
	"github.com/safar/hive-store/internal/seed"
	"github.com/safar/hive-store/internal/stats"
	"github.com/safar/hive-store/internal/store"
	"github.com/safar/hive-store/internal/store/memory"
	"github.com/safar/hive-store/internal/verification"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingSender struct {
	codes map[string]string
}

func (c *capturingSender) SendCode(ctx context.Context, phone, code string) error {
	c.codes[phone] = code
	return nil
}

type testServer struct {
	handler http.Handler
	store   *memory.Store
	sender  *capturingSender
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st := memory.New()
	log := logging.Discard()
	require.NoError(t, seed.Run(context.Background(), st, log))

	m := metrics.NewRegistry()
	sender := &capturingSender{codes: make(map[string]string)}

	h := New(Deps{
		Catalog:      catalog.NewService(st, m, log),
		Checkout:     checkout.NewService(st, events.NewLogPublisher(log), m, log),
		Stats:        stats.NewService(st),
		Verification: verification.NewService(st, sender, m, log),
		Orders:       st,
		Metrics:      m,
		Log:          log,
	})

	return &testServer{handler: h.Router(), store: st, sender: sender}
}

type caller struct {
	userID string
	role   string
}

var (
	anonymous = caller{}
	buyer     = caller{userID: "buyer-1", role: models.RoleUser}
	admin     = caller{userID: "admin-1", role: models.RoleAdmin}
)

func (ts *testServer) do(t *testing.T, as caller, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as.userID != "" {
		req.Header.Set(HeaderUserID, as.userID)
	}
	if as.role != "" {
		req.Header.Set(HeaderUserRole, as.role)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, anonymous, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListAndGetProducts(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, anonymous, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	products := decode[[]catalog.ProductView](t, rec)
	require.Len(t, products, 5)
	assert.Equal(t, "1", products[0].ID)

	rec = ts.do(t, anonymous, http.MethodGet, "/api/products/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AITCHBEE Hoodie", decode[catalog.ProductView](t, rec).Name)

	rec = ts.do(t, anonymous, http.MethodGet, "/api/products/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", errorMessage(t, rec))
}

func TestProductPriceIsJSONNumber(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, anonymous, http.MethodGet, "/api/products/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	raw := decode[map[string]any](t, rec)
	assert.IsType(t, float64(0), raw["price"])
	assert.Contains(t, rec.Body.String(), `"price":49.99`)
}

func TestRateProduct(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, anonymous, http.MethodPost, "/api/products/1/rate", `{"rating":5}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, buyer, http.MethodPost, "/api/products/1/rate", `{"rating":4.6}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[catalog.ProductView](t, rec)
	assert.Equal(t, 1, view.RatingCount)
	require.NotNil(t, view.UserRating)
	assert.Equal(t, 5, *view.UserRating)

	rec = ts.do(t, anonymous, http.MethodGet, "/api/products/1", "")
	assert.Nil(t, decode[catalog.ProductView](t, rec).UserRating)

	rec = ts.do(t, buyer, http.MethodGet, "/api/products/1", "")
	assert.Equal(t, 5, *decode[catalog.ProductView](t, rec).UserRating)

	rec = ts.do(t, buyer, http.MethodPost, "/api/products/nope/rate", `{"rating":3}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaceOrder(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, buyer, http.MethodPost, "/api/orders", `{"items":[{"productId":"1","quantity":2},{"productId":"3"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	order := decode[models.Order](t, rec)
	assert.Equal(t, "buyer-1", order.UserID)
	assert.Equal(t, "buyer@test.com", order.UserEmail)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 1, order.Items[1].Quantity)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("134.97")), order.Total.String())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, field := range []string{"id", "userId", "userEmail", "userPhone", "items", "total", "date"} {
		assert.Contains(t, raw, field)
	}
	assert.IsType(t, float64(0), raw["total"])
	assert.InDelta(t, 134.97, raw["total"], 1e-9)
	line := raw["items"].([]any)[0].(map[string]any)
	assert.IsType(t, float64(0), line["price"])

	p, err := ts.store.GetProduct(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 48, p.Stock)
}

func TestPlaceOrderRejections(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		as      caller
		body    string
		status  int
		message string
	}{
		{"anonymous", anonymous, `{"items":[{"productId":"1"}]}`, http.StatusUnauthorized, "Unauthorized"},
		{"bad json", buyer, `{"items":`, http.StatusBadRequest, "Invalid request body"},
		{"empty cart", buyer, `{"items":[]}`, http.StatusBadRequest, "Items required"},
		{"unknown product", buyer, `{"items":[{"productId":"1","quantity":2},{"productId":"pX","quantity":1}]}`, http.StatusBadRequest, "product pX not found"},
		{"insufficient stock", buyer, `{"items":[{"productId":"2","quantity":31}]}`, http.StatusBadRequest, "insufficient stock for AITCHBEE Hoodie: available 30, requested 31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.as, http.MethodPost, "/api/orders", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, errorMessage(t, rec))
		})
	}

	p, err := ts.store.GetProduct(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 50, p.Stock)

	orders, err := ts.store.ListOrders(context.Background(), store.OldestFirst)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestVerificationFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, anonymous, http.MethodPost, "/api/auth/send-verification", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Phone number required", errorMessage(t, rec))

	rec = ts.do(t, anonymous, http.MethodPost, "/api/auth/send-verification", `{"phone":"+21650000000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	code := ts.sender.codes["+21650000000"]
	require.Len(t, code, 6)

	rec = ts.do(t, anonymous, http.MethodPost, "/api/auth/verify-phone", `{"phone":"+21650000000"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Phone and code required", errorMessage(t, rec))

	rec = ts.do(t, anonymous, http.MethodPost, "/api/auth/verify-phone", `{"phone":"+21650000000","code":"`+code+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]bool](t, rec)["verified"])

	rec = ts.do(t, anonymous, http.MethodPost, "/api/auth/verify-phone", `{"phone":"+21650000000","code":"`+code+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid code", errorMessage(t, rec))
}

func TestAdminRequiresAdminRole(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/admin/stats", "/api/admin/orders", "/api/admin/products"} {
		rec := ts.do(t, anonymous, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = ts.do(t, buyer, http.MethodGet, path, "")
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Equal(t, "Admin only", errorMessage(t, rec))
	}
}

func TestAdminStatsAndOrders(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{
		`{"items":[{"productId":"1","quantity":1}]}`,
		`{"items":[{"productId":"5","quantity":2}]}`,
		`{"items":[{"productId":"3","quantity":1}]}`,
	} {
		rec := ts.do(t, buyer, http.MethodPost, "/api/orders", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do(t, admin, http.MethodGet, "/api/admin/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[stats.Stats](t, rec)
	assert.Equal(t, 3, s.TotalOrders)
	assert.True(t, s.TotalRevenue.Equal(decimal.RequireFromString("144.96")), s.TotalRevenue.String())
	assert.Equal(t, 5, s.ProductsCount)

	var monthTotal int
	for _, n := range s.OrdersByMonth {
		monthTotal += n
	}
	assert.Equal(t, 3, monthTotal)

	rec = ts.do(t, admin, http.MethodGet, "/api/admin/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decode[[]models.Order](t, rec)
	require.Len(t, orders, 3)
	assert.Equal(t, "3", orders[0].Items[0].ProductID)
	assert.Equal(t, "1", orders[2].Items[0].ProductID)

	rec = ts.do(t, admin, http.MethodGet, "/api/admin/orders?page=2&page_size=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[OffsetPage[models.Order]](t, rec)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "1", page.Items[0].Items[0].ProductID)

	rec = ts.do(t, admin, http.MethodGet, "/api/admin/orders?page=9223372036854775807", "")
	require.Equal(t, http.StatusOK, rec.Code)
	far := decode[OffsetPage[models.Order]](t, rec)
	assert.Empty(t, far.Items)
	assert.Equal(t, 3, far.Total)
}

func TestAdminProductWrites(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, admin, http.MethodPut, "/api/admin/products/1/stock", `{"stock":7.9}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, decode[models.Product](t, rec).Stock)

	rec = ts.do(t, admin, http.MethodPut, "/api/admin/products/1/stock", `{"stock":-4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[models.Product](t, rec).Stock)

	rec = ts.do(t, admin, http.MethodPut, "/api/admin/products/nope/stock", `{"stock":4}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, admin, http.MethodPost, "/api/admin/products", `{"name":"Beanie"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Name and price required", errorMessage(t, rec))

	rec = ts.do(t, admin, http.MethodPost, "/api/admin/products", `{"name":"Beanie","price":19.5,"colors":["Black"],"stock":12}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Product](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.DefaultCategory, created.Category)
	assert.Equal(t, models.DefaultImage, created.Image)
	assert.True(t, created.Price.Equal(decimal.RequireFromString("19.50")))

	rec = ts.do(t, admin, http.MethodPost, "/api/admin/products", `{"name":"Broken","price":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(errorMessage(t, rec), "price"))

	rec = ts.do(t, admin, http.MethodGet, "/api/admin/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]catalog.ProductView](t, rec), 6)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, buyer, http.MethodPost, "/api/orders", `{"items":[{"productId":"1"}]}`)

	rec := ts.do(t, anonymous, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hive_orders_placed_total 1")
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	p := paginate(items, 1, 2)
	assert.Equal(t, []int{1, 2}, p.Items)
	assert.Equal(t, 3, p.TotalPages)

	p = paginate(items, 9, 2)
	assert.Equal(t, []int{}, p.Items)
	assert.Equal(t, 5, p.Total)

	p = paginate(items, math.MaxInt, 2)
	assert.Equal(t, []int{}, p.Items)
	assert.Equal(t, math.MaxInt, p.Page)

	p = paginate([]int{}, 1, 20)
	assert.Equal(t, []int{}, p.Items)
	assert.Zero(t, p.TotalPages)
}

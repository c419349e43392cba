package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dquispe/tienda/internal/bus"
	"github.com/dquispe/tienda/internal/catalog"
	"github.com/dquispe/tienda/internal/checkout"
	"github.com/dquispe/tienda/internal/domain"
	"github.com/dquispe/tienda/internal/orders"
	"github.com/dquispe/tienda/internal/store"
)

type testEnv struct {
	server *httptest.Server
	store  *store.MemoryStore
	bus    *bus.MemoryBus
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMemoryStore()
	b := bus.NewMemoryBus()
	cat := catalog.NewService(st, b)
	ord := orders.NewService(st, cat, b)
	co := checkout.NewService(cat, ord)

	srv := httptest.NewServer(NewRouter(RouterConfig{
		Catalog:  cat,
		Checkout: co,
		Orders:   ord,
		Bus:      b,
	}))
	t.Cleanup(func() {
		srv.Close()
		b.Close()
	})

	return &testEnv{server: srv, store: st, bus: b}
}

// do issues a request with the identity headers the gateway would forward.
func (e *testEnv) do(t *testing.T, method, path string, body any, userID, role string) *http.Response {
	t.Helper()

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, buf)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func seedCatalog(t *testing.T, e *testEnv, name string, price, stock int64) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: name, Category: "abarrotes", Price: price, Stock: stock}
	require.NoError(t, e.store.CreateProduct(context.Background(), p))
	return p
}

func TestRouter_ListProductsIsPublic(t *testing.T) {
	e := setupEnv(t)
	seedCatalog(t, e, "arroz 1kg", 450, 20)
	seedCatalog(t, e, "aceite 900ml", 1100, 3)

	resp := e.do(t, http.MethodGet, "/api/v1/products", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	products := decodeBody[[]ProductDTO](t, resp)
	require.Len(t, products, 2)

	byName := map[string]ProductDTO{}
	for _, p := range products {
		byName[p.Name] = p
	}
	assert.False(t, byName["arroz 1kg"].LowStock)
	assert.True(t, byName["aceite 900ml"].LowStock)
}

func TestRouter_AdminProductLifecycle(t *testing.T) {
	e := setupEnv(t)

	create := ProductDTO{Name: "leche evaporada", Category: "lacteos", Price: 380, Stock: 12}

	// Customers cannot write the catalog.
	resp := e.do(t, http.MethodPost, "/api/v1/admin/products", create, "ana", "customer")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/v1/admin/products", create, "root", "admin")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[ProductDTO](t, resp)
	require.NotZero(t, created.ID)

	created.Price = 400
	resp = e.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/products/%d", created.ID), created, "root", "admin")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[ProductDTO](t, resp)
	assert.Equal(t, int64(400), updated.Price)

	resp = e.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/products/%d", created.ID), nil, "root", "admin")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/v1/products", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[[]ProductDTO](t, resp))
}

func TestRouter_AdminCreateRejectsInvalidProduct(t *testing.T) {
	e := setupEnv(t)

	resp := e.do(t, http.MethodPost, "/api/v1/admin/products",
		ProductDTO{Name: "", Price: 100, Stock: 1}, "root", "admin")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "validation_error", body.Code)
}

func TestRouter_CartRequiresIdentity(t *testing.T) {
	e := setupEnv(t)

	resp := e.do(t, http.MethodGet, "/api/v1/cart", nil, "", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_CartFlowAndCheckout(t *testing.T) {
	e := setupEnv(t)
	p := seedCatalog(t, e, "atun en lata", 650, 10)

	resp := e.do(t, http.MethodPost, "/api/v1/cart/items",
		addItemRequest{ProductID: p.ID, Quantity: 2}, "ana", "customer")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	cartBody := decodeBody[CartDTO](t, resp)
	require.Len(t, cartBody.Items, 1)
	assert.Equal(t, int64(1300), cartBody.Subtotal)

	resp = e.do(t, http.MethodPut, "/api/v1/cart/delivery",
		setDeliveryRequest{Mode: domain.DeliveryModeDelivery, Address: "Av. Grau 742"}, "ana", "customer")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cartBody = decodeBody[CartDTO](t, resp)
	assert.Equal(t, int64(1300+domain.DeliverySurcharge), cartBody.Total)

	resp = e.do(t, http.MethodPost, "/api/v1/checkout",
		checkoutRequest{PaymentMethod: domain.PaymentMethodCash}, "ana", "customer")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	placed := decodeBody[CheckoutResponseDTO](t, resp)
	order := placed.Order
	assert.Equal(t, "ana", order.CustomerID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, int64(1300+domain.DeliverySurcharge), order.Total)
	assert.False(t, placed.PriceChanged)
	assert.Equal(t, order.Total, placed.CartTotal)

	// Stock was decremented and the cart discarded.
	got, err := e.store.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.Stock)

	resp = e.do(t, http.MethodGet, "/api/v1/cart", nil, "ana", "customer")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[CartDTO](t, resp).Items)
}

func TestRouter_CheckoutFlagsRepricedTotal(t *testing.T) {
	e := setupEnv(t)
	p := seedCatalog(t, e, "queso fresco", 1200, 10)

	resp := e.do(t, http.MethodPost, "/api/v1/cart/items",
		addItemRequest{ProductID: p.ID, Quantity: 1}, "ana", "customer")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int64(1200), decodeBody[CartDTO](t, resp).Total)

	// The price moves while the item sits in the cart.
	update := toProductDTO(p)
	update.Price = 1400
	resp = e.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/products/%d", p.ID), update, "root", "admin")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/v1/checkout",
		checkoutRequest{PaymentMethod: domain.PaymentMethodCash}, "ana", "customer")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	placed := decodeBody[CheckoutResponseDTO](t, resp)
	assert.Equal(t, int64(1400), placed.Order.Total, "order charges the submission-time price")
	assert.True(t, placed.PriceChanged)
	assert.Equal(t, int64(1200), placed.CartTotal, "response reports the total the cart displayed")
}

func TestRouter_CheckoutReportsShortfalls(t *testing.T) {
	e := setupEnv(t)
	p := seedCatalog(t, e, "gaseosa 3l", 900, 1)

	resp := e.do(t, http.MethodPost, "/api/v1/cart/items",
		addItemRequest{ProductID: p.ID, Quantity: 5}, "ana", "customer")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/v1/checkout",
		checkoutRequest{PaymentMethod: domain.PaymentMethodCash}, "ana", "customer")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "out_of_stock", body.Code)
	require.NotNil(t, body.Details)

	// Nothing was reserved by the failed checkout.
	got, err := e.store.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Stock)
}

func TestRouter_OrderVisibility(t *testing.T) {
	e := setupEnv(t)
	p := seedCatalog(t, e, "fideos 500g", 320, 10)
	orderID := placeOrder(t, e, p.ID, "ana")

	// The owner sees it.
	resp := e.do(t, http.MethodGet, "/api/v1/orders/"+orderID, nil, "ana", "customer")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Another customer gets not-found rather than forbidden, the order's
	// existence is not disclosed.
	resp = e.do(t, http.MethodGet, "/api/v1/orders/"+orderID, nil, "beto", "customer")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Admins see everything.
	resp = e.do(t, http.MethodGet, "/api/v1/admin/orders", nil, "root", "admin")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, decodeBody[[]OrderDTO](t, resp), 1)
}

func TestRouter_AdminTransitionsOrder(t *testing.T) {
	e := setupEnv(t)
	p := seedCatalog(t, e, "azucar 1kg", 420, 10)
	orderID := placeOrder(t, e, p.ID, "ana")

	resp := e.do(t, http.MethodPut, "/api/v1/admin/orders/"+orderID+"/status",
		transitionRequest{Status: domain.OrderStatusPaid}, "root", "admin")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.OrderStatusPaid, decodeBody[OrderDTO](t, resp).Status)

	// Skipping back to pending is not a legal move.
	resp = e.do(t, http.MethodPut, "/api/v1/admin/orders/"+orderID+"/status",
		transitionRequest{Status: domain.OrderStatusPending}, "root", "admin")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Customers cannot reach the admin subtree at all.
	resp = e.do(t, http.MethodPut, "/api/v1/admin/orders/"+orderID+"/status",
		transitionRequest{Status: domain.OrderStatusFulfilled}, "ana", "customer")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRouter_AdminDeletesOrder(t *testing.T) {
	e := setupEnv(t)
	p := seedCatalog(t, e, "cafe 250g", 1550, 10)
	orderID := placeOrder(t, e, p.ID, "ana")

	resp := e.do(t, http.MethodDelete, "/api/v1/admin/orders/"+orderID, nil, "root", "admin")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/v1/orders/"+orderID, nil, "ana", "customer")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_AdminStats(t *testing.T) {
	e := setupEnv(t)
	seedCatalog(t, e, "sal 1kg", 150, 2)
	p := seedCatalog(t, e, "harina 1kg", 480, 20)
	placeOrder(t, e, p.ID, "ana")

	resp := e.do(t, http.MethodGet, "/api/v1/admin/stats", nil, "root", "admin")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stats := decodeBody[orders.Stats](t, resp)
	assert.Equal(t, 1, stats.PendingOrders)
	assert.Equal(t, 1, stats.LowStockItems)
	assert.Zero(t, stats.TotalSales)
}

func placeOrder(t *testing.T, e *testEnv, productID int64, userID string) string {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/api/v1/cart/items",
		addItemRequest{ProductID: productID, Quantity: 1}, userID, "customer")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/v1/checkout",
		checkoutRequest{PaymentMethod: domain.PaymentMethodCash}, userID, "customer")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[CheckoutResponseDTO](t, resp).Order.ID
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/chat"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/idgen"
	"github.com/safar/storefront/internal/payment"
	"github.com/safar/storefront/internal/service"
	"github.com/safar/storefront/internal/store/filestore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	mu      sync.Mutex
	seq     int
	amounts map[string]decimal.Decimal
}

func (p *stubProvider) CreateOrder(ctx context.Context, req payment.PaymentRequest) (*payment.PaymentOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	ref := fmt.Sprintf("PAY-%d", p.seq)
	p.amounts[ref] = req.Amount
	return &payment.PaymentOrder{Ref: ref, ApprovalLink: "https://pay.example/approve?token=" + ref}, nil
}

func (p *stubProvider) Capture(ctx context.Context, ref string) (*payment.CaptureResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &payment.CaptureResult{CaptureID: "CAP-" + ref, Status: payment.StatusCompleted, Amount: p.amounts[ref]}, nil
}

func (p *stubProvider) Status(ctx context.Context, ref string) (*payment.StatusResult, error) {
	return &payment.StatusResult{Status: payment.StatusCreated}, nil
}

type echoCompleter struct{}

func (echoCompleter) Complete(ctx context.Context, messages []chat.Message) (string, error) {
	return "echo: " + messages[len(messages)-1].Content, nil
}

type testServer struct {
	handler    http.Handler
	adminToken string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ids, err := idgen.NewSnowflake(1)
	require.NoError(t, err)
	fs, err := filestore.Open(t.TempDir(), ids)
	require.NoError(t, err)

	logger := zap.NewNop()
	tokens := auth.NewTokens("test-secret", time.Hour)
	accounts := service.NewAccounts(fs.Clients(), tokens, logger)
	require.NoError(t, accounts.EnsureAdmin(context.Background(), "admin@example.com", "AdminPass1"))

	srv := NewServer(Deps{
		Catalog:   service.NewCatalog(fs.Products(), fs.Categories()),
		Accounts:  accounts,
		Cart:      service.NewCart(fs.Cart(), fs.Products()),
		Checkout:  service.NewCheckout(fs.Orders(), fs.Products(), fs.Cart(), &stubProvider{amounts: map[string]decimal.Decimal{}}, events.NopPublisher{}, logger),
		Assistant: service.NewAssistant(fs.Products(), echoCompleter{}, logger),
		Tokens:    tokens,
		Clients:   fs.Clients(),
		Logger:    logger,
	})

	ts := &testServer{handler: srv.Handler()}
	ts.adminToken = ts.login(t, "admin@example.com", "AdminPass1").Token
	return ts
}

type response struct {
	status int
	body   struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	raw string
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var res response
	res.status = rec.Code
	res.raw = rec.Body.String()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res.body), res.raw)
	return res
}

func decodeData[T any](t *testing.T, res response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(res.body.Data, &v), res.raw)
	return v
}

func (ts *testServer) login(t *testing.T, email, password string) service.LoginResult {
	t.Helper()
	res := ts.do(t, http.MethodPost, "/api/clients/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, res.status, res.raw)
	return decodeData[service.LoginResult](t, res)
}

func (ts *testServer) registerAndLogin(t *testing.T, email string) service.LoginResult {
	t.Helper()
	res := ts.do(t, http.MethodPost, "/api/clients/register", "", map[string]string{"email": email, "password": "Secret123"})
	require.Equal(t, http.StatusCreated, res.status, res.raw)
	return ts.login(t, email, "Secret123")
}

func (ts *testServer) createProduct(t *testing.T, name string, price int64, stock int) string {
	t.Helper()
	res := ts.do(t, http.MethodPost, "/api/admin/products", ts.adminToken, map[string]any{
		"name": name, "price": price, "stock": stock,
	})
	require.Equal(t, http.StatusCreated, res.status, res.raw)
	return decodeData[struct {
		ID string `json:"id"`
	}](t, res).ID
}

func TestRegisterAndLoginScenario(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, http.MethodPost, "/api/clients/register", "", map[string]string{"email": "a@b.com", "password": "Secret123"})
	require.Equal(t, http.StatusCreated, res.status, res.raw)
	assert.True(t, res.body.Success)
	assert.NotContains(t, res.raw, "passwordHash")
	assert.NotContains(t, res.raw, "$2a$")
	registered := decodeData[struct {
		ID string `json:"id"`
	}](t, res)
	require.NotEmpty(t, registered.ID)

	res = ts.do(t, http.MethodPost, "/api/clients/login", "", map[string]string{"email": "a@b.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.False(t, res.body.Success)
	assert.Equal(t, "UNAUTHENTICATED", res.body.Error)

	session := ts.login(t, "a@b.com", "Secret123")
	assert.Equal(t, registered.ID, session.User.ID)
	assert.Equal(t, service.RedirectUser, session.Redirect)

	claims, err := auth.NewTokens("test-secret", time.Hour).Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, claims.UserID)

	res = ts.do(t, http.MethodPost, "/api/clients/register", "", map[string]string{"email": "A@B.com", "password": "Secret123"})
	assert.Equal(t, http.StatusConflict, res.status)
}

func TestCartScenario(t *testing.T) {
	ts := newTestServer(t)
	productID := ts.createProduct(t, "X", 100, 5)
	user := ts.registerAndLogin(t, "buyer@example.com")

	type cartView struct {
		Items []struct {
			Quantity int   `json:"quantity"`
			Subtotal int64 `json:"subtotal"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	add := func(qty int) {
		res := ts.do(t, http.MethodPost, "/api/cart/add", user.Token, map[string]any{
			"userId": user.User.ID, "productId": productID, "quantity": qty,
		})
		require.Equal(t, http.StatusOK, res.status, res.raw)
	}
	getCart := func() cartView {
		res := ts.do(t, http.MethodGet, "/api/cart/"+user.User.ID, user.Token, nil)
		require.Equal(t, http.StatusOK, res.status, res.raw)
		return decodeData[cartView](t, res)
	}

	add(2)
	view := getCart()
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Equal(t, int64(200), view.Items[0].Subtotal)

	add(-1)
	view = getCart()
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)
	assert.Equal(t, int64(100), view.Items[0].Subtotal)

	add(-1)
	view = getCart()
	assert.Empty(t, view.Items)

	res := ts.do(t, http.MethodPost, "/api/cart/add", user.Token, map[string]any{
		"userId": user.User.ID, "productId": productID, "quantity": 6,
	})
	assert.Equal(t, http.StatusConflict, res.status)
}

func TestCartBelongsToOwner(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.registerAndLogin(t, "alice@example.com")
	bob := ts.registerAndLogin(t, "bob@example.com")

	res := ts.do(t, http.MethodGet, "/api/cart/"+alice.User.ID, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = ts.do(t, http.MethodGet, "/api/cart/"+alice.User.ID, ts.adminToken, nil)
	assert.Equal(t, http.StatusOK, res.status)

	res = ts.do(t, http.MethodGet, "/api/cart/"+alice.User.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.False(t, res.body.Success)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ts := newTestServer(t)
	user := ts.registerAndLogin(t, "user@example.com")

	body := map[string]any{"name": "X", "price": 100, "stock": 5}
	res := ts.do(t, http.MethodPost, "/api/admin/products", user.Token, body)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = ts.do(t, http.MethodPost, "/api/admin/products", "", body)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = ts.do(t, http.MethodPost, "/api/admin/products", ts.adminToken, map[string]any{"name": "X", "price": 0, "stock": 5})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "VALIDATION", res.body.Error)
	assert.Contains(t, res.body.Message, "price")

	res = ts.do(t, http.MethodPost, "/api/admin/products", ts.adminToken, map[string]any{"name": "X", "price": 10})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "stock is required", res.body.Message)
}

func TestProductEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createProduct(t, "Coffee", 2500, 10)

	res := ts.do(t, http.MethodGet, "/api/products/"+id, "", nil)
	require.Equal(t, http.StatusOK, res.status)

	res = ts.do(t, http.MethodPut, "/api/admin/products/"+id, ts.adminToken, map[string]any{"famous": true})
	require.Equal(t, http.StatusOK, res.status, res.raw)

	res = ts.do(t, http.MethodGet, "/api/products/famous", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, decodeData[[]json.RawMessage](t, res), 1)

	res = ts.do(t, http.MethodGet, "/api/products?q=coff", "", nil)
	assert.Len(t, decodeData[[]json.RawMessage](t, res), 1)

	res = ts.do(t, http.MethodDelete, "/api/admin/products/"+id, ts.adminToken, nil)
	require.Equal(t, http.StatusOK, res.status)

	res = ts.do(t, http.MethodGet, "/api/products/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, "NOT_FOUND", res.body.Error)
}

func TestCheckoutScenario(t *testing.T) {
	ts := newTestServer(t)
	productID := ts.createProduct(t, "Coffee", 1000, 5)
	user := ts.registerAndLogin(t, "buyer@example.com")

	res := ts.do(t, http.MethodPost, "/api/cart/add", user.Token, map[string]any{
		"userId": user.User.ID, "productId": productID, "quantity": 2,
	})
	require.Equal(t, http.StatusOK, res.status, res.raw)

	res = ts.do(t, http.MethodPost, "/api/orders/create", user.Token, map[string]any{
		"items":     []map[string]any{{"productId": productID, "quantity": 2}},
		"direccion": "Av. Siempre Viva 742",
		"region":    "RM",
		"comuna":    "Providencia",
		"total":     1,
	})
	require.Equal(t, http.StatusCreated, res.status, res.raw)
	created := decodeData[service.CreatedOrder](t, res)
	assert.Equal(t, int64(2000), created.Total)
	assert.NotEmpty(t, created.ApprovalLink)

	for i := 0; i < 2; i++ {
		res = ts.do(t, http.MethodPost, "/api/orders/capture", user.Token, map[string]string{"orderId": created.OrderID})
		require.Equal(t, http.StatusOK, res.status, res.raw)
		out := decodeData[service.CaptureOutcome](t, res)
		assert.Equal(t, "paid", string(out.Status))
		assert.True(t, out.PaidAmount.Equal(decimal.RequireFromString("2.11")))
	}

	res = ts.do(t, http.MethodGet, "/api/products/"+productID, "", nil)
	product := decodeData[struct {
		Stock int `json:"stock"`
	}](t, res)
	assert.Equal(t, 3, product.Stock)

	res = ts.do(t, http.MethodGet, "/api/orders", user.Token, nil)
	require.Equal(t, http.StatusOK, res.status)
	page := decodeData[struct {
		Items []json.RawMessage `json:"items"`
	}](t, res)
	assert.Len(t, page.Items, 1)

	other := ts.registerAndLogin(t, "other@example.com")
	res = ts.do(t, http.MethodGet, "/api/orders/"+created.OrderID, other.Token, nil)
	assert.Equal(t, http.StatusForbidden, res.status)
}

func TestCreateOrderRequiresDelivery(t *testing.T) {
	ts := newTestServer(t)
	user := ts.registerAndLogin(t, "buyer@example.com")

	res := ts.do(t, http.MethodPost, "/api/orders/create", user.Token, map[string]any{"region": "RM", "comuna": "Providencia"})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "direccion is required", res.body.Message)
}

func TestChatEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.createProduct(t, "Coffee", 1000, 3)

	res := ts.do(t, http.MethodPost, "/api/chat", "", map[string]string{"message": "Is coffee in stock?"})
	require.Equal(t, http.StatusOK, res.status, res.raw)
	assert.Equal(t, "Coffee: 3 units in stock.", decodeData[map[string]string](t, res)["reply"])

	res = ts.do(t, http.MethodPost, "/api/chat", "", map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "echo: hello", decodeData[map[string]string](t, res)["reply"])
}

func TestHealthAndUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.True(t, res.body.Success)

	res = ts.do(t, http.MethodGet, "/api/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.False(t, res.body.Success)
}

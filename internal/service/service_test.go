package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/safar/storefront/internal/apperr"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/idgen"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/payment"
	"github.com/safar/storefront/internal/store/filestore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	mu         sync.Mutex
	createErr  error
	captureErr error
	statuses   map[string]*payment.StatusResult
	amounts    map[string]decimal.Decimal
	requests   []payment.PaymentRequest
	captures   int
	seq        int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		statuses: map[string]*payment.StatusResult{},
		amounts:  map[string]decimal.Decimal{},
	}
}

func (f *fakeProvider) CreateOrder(ctx context.Context, req payment.PaymentRequest) (*payment.PaymentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	ref := fmt.Sprintf("PAY-%d", f.seq)
	f.requests = append(f.requests, req)
	f.amounts[ref] = req.Amount
	return &payment.PaymentOrder{Ref: ref, ApprovalLink: "https://pay.example/approve?token=" + ref}, nil
}

func (f *fakeProvider) Capture(ctx context.Context, ref string) (*payment.CaptureResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return &payment.CaptureResult{
		CaptureID: "CAP-" + ref,
		Status:    payment.StatusCompleted,
		Amount:    f.amounts[ref],
	}, nil
}

func (f *fakeProvider) Status(ctx context.Context, ref string) (*payment.StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.statuses[ref]; ok {
		return st, nil
	}
	return &payment.StatusResult{Status: payment.StatusCreated}, nil
}

func (f *fakeProvider) captureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}

type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	events []events.OrderPaid
}

func (p *recordingPublisher) PublishOrderPaid(ctx context.Context, ev events.OrderPaid) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type testEnv struct {
	store     *filestore.Store
	catalog   *Catalog
	accounts  *Accounts
	cart      *Cart
	checkout  *Checkout
	provider  *fakeProvider
	publisher *recordingPublisher
	tokens    *auth.Tokens
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ids, err := idgen.NewSnowflake(1)
	require.NoError(t, err)
	fs, err := filestore.Open(t.TempDir(), ids)
	require.NoError(t, err)

	logger := zap.NewNop()
	provider := newFakeProvider()
	publisher := &recordingPublisher{}
	tokens := auth.NewTokens("test-secret", time.Hour)

	return &testEnv{
		store:     fs,
		catalog:   NewCatalog(fs.Products(), fs.Categories()),
		accounts:  NewAccounts(fs.Clients(), tokens, logger),
		cart:      NewCart(fs.Cart(), fs.Products()),
		checkout:  NewCheckout(fs.Orders(), fs.Products(), fs.Cart(), provider, publisher, logger),
		provider:  provider,
		publisher: publisher,
		tokens:    tokens,
	}
}

func (e *testEnv) product(t *testing.T, name string, price int64, stock int) *models.Product {
	t.Helper()
	p, err := e.catalog.Create(context.Background(), models.ProductInput{
		Name: name, Price: price, Stock: stock, Category: "General",
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) client(t *testing.T, email string) *models.Client {
	t.Helper()
	c, err := e.accounts.Register(context.Background(), RegisterInput{
		Name: "Test " + email, Email: email, Password: "Secret123",
	})
	require.NoError(t, err)
	return c
}

var testDelivery = models.Delivery{Address: "Av. Siempre Viva 742", Region: "RM", Commune: "Providencia"}

func assertCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperr.CodeOf(err), "error: %v", err)
}

package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline-backend/internal/businesses"
	"github.com/ledgerline/ledgerline-backend/internal/invoices"
	"github.com/ledgerline/ledgerline-backend/internal/ledger"
	"github.com/ledgerline/ledgerline-backend/internal/products"
	pkgAuth "github.com/ledgerline/ledgerline-backend/pkg/auth"
	"github.com/ledgerline/ledgerline-backend/pkg/config"
	"github.com/ledgerline/ledgerline-backend/pkg/db"
	"github.com/ledgerline/ledgerline-backend/pkg/db/dbtest"
	"github.com/ledgerline/ledgerline-backend/pkg/db/models"
	"github.com/ledgerline/ledgerline-backend/pkg/enums"
	"github.com/ledgerline/ledgerline-backend/pkg/logger"
	"github.com/ledgerline/ledgerline-backend/pkg/metrics"
	"github.com/ledgerline/ledgerline-backend/pkg/money"
	"github.com/ledgerline/ledgerline-backend/pkg/redis"
)

type testServer struct {
	conn     *gorm.DB
	handler  http.Handler
	cfg      *config.Config
	products *products.Repository
	business *models.Business
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{
		App: config.AppConfig{Env: config.AppEnvDev, RequestTimeout: 5 * time.Second},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "ledgerline-test", ExpirationMinutes: 10},
		Invoicing: config.InvoicingConfig{
			NumberStrategy:    config.NumberStrategyTimestamp,
			PurchaseRateLimit: 100,
		},
	}

	conn := dbtest.OpenSQLite(t)
	client := db.NewFromGorm(conn)

	mr := miniredis.RunT(t)
	redisClient := redis.NewFromRedis(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = redisClient.Close() })

	reg := prometheus.NewRegistry()
	productRepo := products.NewRepository(conn)
	stock, err := ledger.NewService(productRepo, logger.Nop(), metrics.NewLedgerMetrics(reg))
	require.NoError(t, err)
	productSvc, err := products.NewService(productRepo)
	require.NoError(t, err)

	bizRepo := businesses.NewRepository(conn)
	business, err := bizRepo.Create(ctx, "Corner Shop")
	require.NoError(t, err)

	invoiceSvc, err := invoices.NewService(
		client,
		invoices.NewRepository(conn),
		bizRepo,
		stock,
		invoices.NewTimestampNumbers(nil),
		logger.Nop(),
		metrics.NewInvoiceMetrics(reg),
	)
	require.NoError(t, err)

	handler := NewRouter(cfg, logger.Nop(), client, redisClient, redisClient, reg, metrics.NewHTTPMetrics(reg), productSvc, invoiceSvc)
	return &testServer{conn: conn, handler: handler, cfg: cfg, products: productRepo, business: business}
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, role enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(s.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    uuid.NewString(),
	})
	require.NoError(t, err)
	return token
}

func (s *testServer) seedProduct(t *testing.T, price int64, qty int) uuid.UUID {
	t.Helper()
	p, err := s.products.CreateProduct(context.Background(), &models.Product{
		BusinessID:     s.business.ID,
		Name:           "Widget",
		PriceCents:     money.Cents(price),
		QuantityOnHand: qty,
	})
	require.NoError(t, err)
	return p.ID
}

func (s *testServer) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := s.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.QuantityOnHand
}

func (s *testServer) do(method, path, token, idempotencyKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func purchaseBody(businessID uuid.UUID, lines ...[2]any) string {
	items := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		items = append(items, map[string]any{"product_id": l[0].(uuid.UUID).String(), "quantity": l[1]})
	}
	raw, _ := json.Marshal(map[string]any{"business_id": businessID.String(), "items": items})
	return string(raw)
}

type invoiceEnvelope struct {
	Data invoices.InvoiceDTO `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health/live", "", "", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health/ready", "", "", "").Code)

	rec := s.do(http.MethodGet, "/metrics", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_request_duration_seconds")
}

func TestPurchaseRequiresCustomerToken(t *testing.T) {
	s := newTestServer(t)
	a := s.seedProduct(t, 1000, 5)
	body := purchaseBody(s.business.ID, [2]any{a, 1})

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/v1/invoices", "", "k", body).Code)
	admin := s.token(t, uuid.New(), enums.RoleAdmin)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/invoices", admin, "k", body).Code)
	assert.Equal(t, 5, s.stock(t, a))
}

func TestPurchaseRequiresIdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	a := s.seedProduct(t, 1000, 5)
	customer := s.token(t, uuid.New(), enums.RoleCustomer)

	rec := s.do(http.MethodPost, "/api/v1/invoices", customer, "", purchaseBody(s.business.ID, [2]any{a, 1}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 5, s.stock(t, a))
}

func TestPurchaseAndReadBack(t *testing.T) {
	s := newTestServer(t)
	a := s.seedProduct(t, 1000, 5)
	customerID := uuid.New()
	customer := s.token(t, customerID, enums.RoleCustomer)

	rec := s.do(http.MethodPost, "/api/v1/invoices", customer, "order-1", purchaseBody(s.business.ID, [2]any{a, 2}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created invoiceEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, customerID, created.Data.CustomerID)
	assert.Equal(t, "20.00", created.Data.Total)
	require.Len(t, created.Data.LineItems, 1)
	assert.Equal(t, "10.00", created.Data.LineItems[0].UnitPrice)
	assert.Equal(t, 3, s.stock(t, a))

	path := "/api/v1/invoices/" + created.Data.ID.String()
	first := s.do(http.MethodGet, path, customer, "", "")
	second := s.do(http.MethodGet, path, customer, "", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	stranger := s.token(t, uuid.New(), enums.RoleCustomer)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, path, stranger, "", "").Code)
	manager := s.token(t, uuid.New(), enums.RoleManager)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, path, manager, "", "").Code)
}

func TestPurchaseRetryDoesNotDecrementTwice(t *testing.T) {
	s := newTestServer(t)
	a := s.seedProduct(t, 250, 5)
	customer := s.token(t, uuid.New(), enums.RoleCustomer)
	body := purchaseBody(s.business.ID, [2]any{a, 2})

	first := s.do(http.MethodPost, "/api/v1/invoices", customer, "retry-me", body)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := s.do(http.MethodPost, "/api/v1/invoices", customer, "retry-me", body)
	require.Equal(t, http.StatusCreated, second.Code)

	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 3, s.stock(t, a))
}

func TestPurchaseAbortReportsFailingLine(t *testing.T) {
	s := newTestServer(t)
	a := s.seedProduct(t, 1000, 5)
	b := s.seedProduct(t, 500, 0)
	customer := s.token(t, uuid.New(), enums.RoleCustomer)

	rec := s.do(http.MethodPost, "/api/v1/invoices", customer, "abort-1", purchaseBody(s.business.ID, [2]any{a, 2}, [2]any{b, 3}))
	require.Equal(t, http.StatusConflict, rec.Code)

	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)
	assert.Equal(t, b.String(), env.Error.Details["product_id"])
	assert.Equal(t, float64(1), env.Error.Details["index"])
	assert.Equal(t, 3, s.stock(t, a))
}

func TestPurchaseRejectsNonPositiveQuantity(t *testing.T) {
	s := newTestServer(t)
	a := s.seedProduct(t, 1000, 5)
	customer := s.token(t, uuid.New(), enums.RoleCustomer)

	rec := s.do(http.MethodPost, "/api/v1/invoices", customer, "zero", purchaseBody(s.business.ID, [2]any{a, 0}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Equal(t, 5, s.stock(t, a))
}

func TestProductStockRoute(t *testing.T) {
	s := newTestServer(t)
	a := s.seedProduct(t, 1299, 7)
	token := s.token(t, uuid.New(), enums.RoleCustomer)

	rec := s.do(http.MethodGet, "/api/v1/products/"+a.String()+"/stock", token, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data products.StockDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, 7, env.Data.QuantityOnHand)
	assert.Equal(t, "12.99", env.Data.Price)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/products/"+uuid.NewString()+"/stock", token, "", "").Code)
}

func TestListInvoicesRoute(t *testing.T) {
	s := newTestServer(t)
	a := s.seedProduct(t, 100, 10)
	customerID := uuid.New()
	customer := s.token(t, customerID, enums.RoleCustomer)

	for _, key := range []string{"list-1", "list-2"} {
		rec := s.do(http.MethodPost, "/api/v1/invoices", customer, key, purchaseBody(s.business.ID, [2]any{a, 1}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	var page struct {
		Data invoices.InvoicePageDTO `json:"data"`
	}
	rec := s.do(http.MethodGet, "/api/v1/invoices?limit=1", customer, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Data.Items, 1)
	require.NotEmpty(t, page.Data.NextCursor)

	rec = s.do(http.MethodGet, "/api/v1/invoices?limit=1&cursor="+page.Data.NextCursor, customer, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page.Data = invoices.InvoicePageDTO{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Data.Items, 1)
	assert.Empty(t, page.Data.NextCursor)

	stranger := s.token(t, uuid.New(), enums.RoleCustomer)
	rec = s.do(http.MethodGet, "/api/v1/invoices", stranger, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Empty(t, page.Data.Items)

	rec = s.do(http.MethodGet, "/api/v1/invoices?cursor=%25%25", customer, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchaseCommitFailureIsNotReRunOnRetry(t *testing.T) {
	s := newTestServer(t)
	a := s.seedProduct(t, 500, 10)
	customer := s.token(t, uuid.New(), enums.RoleCustomer)
	body := purchaseBody(s.business.ID, [2]any{a, 2})

	require.NoError(t, s.conn.Exec(`CREATE TRIGGER refuse_invoices BEFORE INSERT ON invoices
BEGIN SELECT RAISE(ABORT, 'invoice writes disabled'); END`).Error)

	first := s.do(http.MethodPost, "/api/v1/invoices", customer, "commit-fails", body)
	require.Equal(t, http.StatusServiceUnavailable, first.Code, first.Body.String())
	assert.Equal(t, 8, s.stock(t, a))

	var failed errorEnvelope
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &failed))
	assert.Equal(t, "DEPENDENCY_ERROR", failed.Error.Code)
	assert.Contains(t, failed.Error.Details, "reserved_product_ids")
	assert.Contains(t, first.Body.String(), `"retryable":false`)

	second := s.do(http.MethodPost, "/api/v1/invoices", customer, "commit-fails", body)
	require.Equal(t, http.StatusServiceUnavailable, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 8, s.stock(t, a))

	require.NoError(t, s.conn.Exec(`DROP TRIGGER refuse_invoices`).Error)

	third := s.do(http.MethodPost, "/api/v1/invoices", customer, "commit-fails", body)
	require.Equal(t, http.StatusServiceUnavailable, third.Code)
	assert.Equal(t, 8, s.stock(t, a))

	fresh := s.do(http.MethodPost, "/api/v1/invoices", customer, "commit-fails-2", body)
	require.Equal(t, http.StatusCreated, fresh.Code, fresh.Body.String())
	assert.Equal(t, 6, s.stock(t, a))
}

func TestPurchaseRejectsOversizedBody(t *testing.T) {
	s := newTestServer(t)
	a := s.seedProduct(t, 500, 10)
	customer := s.token(t, uuid.New(), enums.RoleCustomer)
	body := purchaseBody(s.business.ID, [2]any{a, 1}) + strings.Repeat(" ", 2<<20)

	rec := s.do(http.MethodPost, "/api/v1/invoices", customer, "big-body", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 10, s.stock(t, a))
}

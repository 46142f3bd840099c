package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/metrics"
	"github.com/vladislavdragonenkov/flashcart/internal/pricing"
	"github.com/vladislavdragonenkov/flashcart/internal/service/cart"
	"github.com/vladislavdragonenkov/flashcart/internal/service/catalog"
	"github.com/vladislavdragonenkov/flashcart/internal/service/checkout"
	grpcsvc "github.com/vladislavdragonenkov/flashcart/internal/service/grpc"
	"github.com/vladislavdragonenkov/flashcart/internal/service/httpapi"
	"github.com/vladislavdragonenkov/flashcart/internal/service/idempotency"
	"github.com/vladislavdragonenkov/flashcart/internal/service/orders"
	"github.com/vladislavdragonenkov/flashcart/internal/service/payment"
	"github.com/vladislavdragonenkov/flashcart/internal/storage/memory"
)

const limitedProduct = "p-limited"

type backend struct {
	store    *memory.Store
	checkout *checkout.Service
	orders   *orders.Service
	guard    *idempotency.Guard
}

func newBackend(t *testing.T, stock int) *backend {
	t.Helper()
	store := memory.NewStore()
	store.AddProduct(domain.Product{
		ID: limitedProduct, Name: "Flash Sale Speaker", CategorySlug: "electronics", CategoryName: "Electronics",
		Price: domain.MustMoney("49.00"), Stock: stock, CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	engine := pricing.NewEngine(pricing.DefaultPolicy())
	return &backend{
		store:    store,
		checkout: checkout.NewService(store, payment.NewSimulator(nil, "test_decline"), engine, nil, nil),
		orders:   orders.NewService(store.Orders(), store, domain.PolicyPermissive, nil, nil),
		guard:    idempotency.NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil),
	}
}

func (b *backend) stock(productID string) int {
	n, _ := b.store.Stock(productID)
	return n
}

func (b *backend) httpServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine := pricing.NewEngine(pricing.DefaultPolicy())
	h := httpapi.NewHandler(httpapi.Services{
		Checkout: b.checkout,
		Orders:   b.orders,
		Cart:     cart.NewService(b.store, b.store.Carts(), engine, nil),
		Catalog:  catalog.NewService(b.store.Catalog(), nil),
		Guard:    b.guard,
	}, nil, httpapi.WithMetrics(metrics.NewHTTPMetrics(prometheus.NewRegistry())))
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func contentionConfig(total, stock int) config {
	return config{
		transport:     transportHTTP,
		mode:          modeContention,
		total:         total,
		concurrency:   10,
		timeout:       5 * time.Second,
		products:      []string{limitedProduct},
		quantity:      1,
		paymentMethod: "card",
		expectStock:   stock,
	}
}

func TestContentionOverHTTPNeverOversells(t *testing.T) {
	b := newBackend(t, 5)
	srv := b.httpServer(t)
	cfg := contentionConfig(30, 5)

	r := runLoad(context.Background(), cfg, newHTTPCheckoutClient(srv.URL, srv.Client()))

	assert.EqualValues(t, 30, r.Total)
	assert.EqualValues(t, 5, r.Succeeded)
	assert.EqualValues(t, 25, r.Outcomes[string(outcomeOutOfStock)])
	assert.Zero(t, r.Failed)
	require.NoError(t, verify(cfg, r))
	assert.Equal(t, 0, b.stock(limitedProduct))
}

func TestContentionOverGRPCNeverOversells(t *testing.T) {
	b := newBackend(t, 3)

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	grpcsvc.RegisterOrderServiceServer(server, grpcsvc.NewOrderService(b.checkout, b.orders, b.guard, nil))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	client := &grpcCheckoutClient{conn: conn, client: grpcsvc.NewOrderServiceClient(conn)}
	defer client.Close()

	cfg := contentionConfig(12, 3)
	cfg.transport = transportGRPC
	r := runLoad(context.Background(), cfg, client)

	assert.EqualValues(t, 3, r.Succeeded)
	assert.EqualValues(t, 9, r.Outcomes[string(outcomeOutOfStock)])
	require.NoError(t, verify(cfg, r))
}

func TestPaymentDeclinesAreRejectionsNotFailures(t *testing.T) {
	b := newBackend(t, 10)
	srv := b.httpServer(t)
	cfg := contentionConfig(4, 10)
	cfg.paymentMethod = "test_decline"

	r := runLoad(context.Background(), cfg, newHTTPCheckoutClient(srv.URL, srv.Client()))

	assert.EqualValues(t, 4, r.Rejected)
	assert.EqualValues(t, 4, r.Outcomes[string(outcomePaymentDeclined)])
	assert.Equal(t, 10, b.stock(limitedProduct))
}

func TestVerify(t *testing.T) {
	cfg := contentionConfig(10, 2)
	require.NoError(t, verify(cfg, report{Succeeded: 2, Rejected: 8}))
	assert.ErrorIs(t, verify(cfg, report{Succeeded: 3}), errOversold)
	assert.Error(t, verify(cfg, report{Succeeded: 1, Failed: 1}))

	cfg.mode = modeSpread
	require.NoError(t, verify(cfg, report{Succeeded: 10}))
}

func TestConfigValidate(t *testing.T) {
	base := contentionConfig(1, 0)
	require.NoError(t, base.validate())

	cases := map[string]func(*config){
		"unsupported mode":      func(c *config) { c.mode = "burst" },
		"unsupported transport": func(c *config) { c.transport = "ws" },
		"total must be > 0":     func(c *config) { c.total = 0 },
		"concurrency":           func(c *config) { c.concurrency = 0 },
		"timeout":               func(c *config) { c.timeout = 0 },
		"quantity":              func(c *config) { c.quantity = 0 },
		"at least one product":  func(c *config) { c.products = nil },
		"expect-stock":          func(c *config) { c.expectStock = -1 },
	}
	for want, mutate := range cases {
		cfg := base
		mutate(&cfg)
		err := cfg.validate()
		require.Error(t, err, want)
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseProducts(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseProducts(" a, ,b ", modeSpread))
	assert.Equal(t, []string{flashSaleProductID}, parseProducts("", modeContention))
	assert.Len(t, parseProducts("", modeSpread), 12)
}

func TestGRPCOutcome(t *testing.T) {
	assert.Equal(t, outcomeOK, grpcOutcome(nil))
	assert.Equal(t, outcomeOutOfStock, grpcOutcome(status.Error(codes.FailedPrecondition, "insufficient stock")))
	assert.Equal(t, outcomePaymentDeclined, grpcOutcome(status.Error(codes.Aborted, "payment declined")))
	assert.Equal(t, outcome("grpc_unavailable"), grpcOutcome(status.Error(codes.Unavailable, "down")))
	assert.Equal(t, outcome("grpc_aborted"), grpcOutcome(status.Error(codes.Aborted, "request in progress")))
}

type scriptedClient struct {
	outcomes []outcome
	calls    int
}

func (s *scriptedClient) Checkout(context.Context, buyer, string, domain.CheckoutRequest) outcome {
	o := s.outcomes[s.calls%len(s.outcomes)]
	s.calls++
	return o
}

func (s *scriptedClient) Close() error { return nil }

func TestRootCmdWritesReport(t *testing.T) {
	client := &scriptedClient{outcomes: []outcome{outcomeOK}}
	dial := func(cfg config) (checkoutClient, error) {
		assert.Equal(t, []string{flashSaleProductID}, cfg.products)
		return client, nil
	}
	dir := t.TempDir()
	t.Chdir(dir)

	cmd := newRootCmd(dial)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--total=3", "--concurrency=1", "--output=report.json"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "succeeded=3")
	raw, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var r report
	require.NoError(t, json.Unmarshal(raw, &r))
	assert.EqualValues(t, 3, r.Succeeded)
}

func TestRootCmdFailsOnUnexpectedErrors(t *testing.T) {
	client := &scriptedClient{outcomes: []outcome{outcomeOK, "grpc_internal"}}
	cmd := newRootCmd(func(config) (checkoutClient, error) { return client, nil })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--total=4", "--concurrency=1", "--mode=spread"})
	require.Error(t, cmd.Execute())

	cmd = newRootCmd(func(config) (checkoutClient, error) { return nil, errors.New("dial failed") })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	require.ErrorContains(t, cmd.Execute(), "dial failed")
}

func TestCollectorReport(t *testing.T) {
	col := newCollector()
	col.record(outcomeOK, 10*time.Millisecond)
	col.record(outcomeOutOfStock, 20*time.Millisecond)
	col.record("http_500", 30*time.Millisecond)

	r := col.buildReport(contentionConfig(3, 0), time.Now(), time.Second)
	assert.EqualValues(t, 3, r.Total)
	assert.EqualValues(t, 1, r.Succeeded)
	assert.EqualValues(t, 1, r.Rejected)
	assert.EqualValues(t, 1, r.Failed)
	assert.InDelta(t, 1.0/3.0, r.ErrorRate, 1e-9)
	assert.InDelta(t, 3.0, r.RPS, 1e-9)
	assert.InDelta(t, 20.0, r.LatencyMs.P50, 1e-9)

	var out bytes.Buffer
	printReport(&out, r)
	assert.Contains(t, out.String(), "out_of_stock: 1")
}

func TestPercentileAndRatio(t *testing.T) {
	assert.Zero(t, percentile(nil, 50))
	assert.Equal(t, 5.0, percentile([]float64{5}, 99))
	assert.InDelta(t, 1.5, percentile([]float64{1, 2}, 50), 1e-9)
	assert.Zero(t, ratio(1, 0))
	assert.Equal(t, latencySummary{}, buildLatencySummary(nil))
}

func TestWriteJSONReportRejectsUnsafePaths(t *testing.T) {
	assert.Error(t, writeJSONReport(".", report{}))
	assert.Error(t, writeJSONReport("../report.json", report{}))
}

package grpcsvc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/pricing"
	"github.com/vladislavdragonenkov/flashcart/internal/service/checkout"
	grpcsvc "github.com/vladislavdragonenkov/flashcart/internal/service/grpc"
	"github.com/vladislavdragonenkov/flashcart/internal/service/idempotency"
	"github.com/vladislavdragonenkov/flashcart/internal/service/orders"
	"github.com/vladislavdragonenkov/flashcart/internal/service/payment"
	"github.com/vladislavdragonenkov/flashcart/internal/storage/memory"
)

const bufSize = 1024 * 1024

type testEnv struct {
	store  *memory.Store
	client *grpcsvc.OrderServiceClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.AddProduct(domain.Product{ID: "p-1", Name: "Wireless Mouse", Price: domain.MustMoney("25.00"), Stock: 10, CreatedAt: base})
	store.AddProduct(domain.Product{ID: "p-2", Name: "Desk Lamp", Price: domain.MustMoney("20.00"), Stock: 1, CreatedAt: base})

	checkoutSvc := checkout.NewService(store, payment.NewSimulator(nil), pricing.NewEngine(pricing.DefaultPolicy()), nil, nil)
	ordersSvc := orders.NewService(store.Orders(), store, domain.PolicyStrict, nil, nil)
	guard := idempotency.NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil)

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	grpcsvc.RegisterOrderServiceServer(server, grpcsvc.NewOrderService(checkoutSvc, ordersSvc, guard, nil))
	go func() {
		_ = server.Serve(listener)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return listener.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})

	return &testEnv{store: store, client: grpcsvc.NewOrderServiceClient(conn)}
}

func asUser(userID, role string, extra ...string) context.Context {
	pairs := append([]string{grpcsvc.MetadataUserID, userID, grpcsvc.MetadataUserRole, role}, extra...)
	return metadata.AppendToOutgoingContext(context.Background(), pairs...)
}

func checkoutRequest(items ...domain.LineItem) *grpcsvc.CheckoutRequest {
	return &grpcsvc.CheckoutRequest{
		ShippingAddress: domain.ShippingAddress{FullName: "Jane Doe", Address: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701"},
		Items:           items,
	}
}

func requireCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok, "expected grpc status, got %v", err)
	require.Equal(t, want, st.Code(), st.Message())
}

func TestCheckoutAndRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := asUser("u-1", "")

	created, err := env.client.Checkout(ctx, checkoutRequest(
		domain.LineItem{ProductID: "p-1", Quantity: 1},
		domain.LineItem{ProductID: "p-2", Quantity: 1},
	))
	require.NoError(t, err)
	assert.Equal(t, "54.59", created.Order.Total.StringFixed(2))
	assert.Equal(t, domain.OrderStatusPending, created.Order.Status)

	got, err := env.client.GetOrder(ctx, &grpcsvc.GetOrderRequest{OrderID: created.Order.OrderID})
	require.NoError(t, err)
	assert.Equal(t, created.Order.OrderID, got.Order.OrderID)
	assert.Len(t, got.Order.Items, 2)

	list, err := env.client.ListOrders(ctx, &grpcsvc.ListOrdersRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 1)

	_, err = env.client.GetOrder(asUser("u-2", ""), &grpcsvc.GetOrderRequest{OrderID: created.Order.OrderID})
	requireCode(t, err, codes.PermissionDenied)
}

func TestCheckout_ErrorCodes(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.Checkout(context.Background(), checkoutRequest(domain.LineItem{ProductID: "p-1", Quantity: 1}))
	requireCode(t, err, codes.Unauthenticated)

	_, err = env.client.Checkout(asUser("u-1", ""), checkoutRequest())
	requireCode(t, err, codes.InvalidArgument)

	_, err = env.client.Checkout(asUser("u-1", ""), checkoutRequest(domain.LineItem{ProductID: "p-2", Quantity: 5}))
	requireCode(t, err, codes.FailedPrecondition)

	_, err = env.client.Checkout(asUser("u-1", ""), checkoutRequest(domain.LineItem{ProductID: "missing", Quantity: 1}))
	requireCode(t, err, codes.NotFound)
}

func TestCheckout_IdempotencyKeyReplaysResponse(t *testing.T) {
	env := newTestEnv(t)
	ctx := asUser("u-1", "", grpcsvc.MetadataIdempotencyKey, "grpc-key-1")
	req := checkoutRequest(domain.LineItem{ProductID: "p-1", Quantity: 2})

	first, err := env.client.Checkout(ctx, req)
	require.NoError(t, err)
	second, err := env.client.Checkout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.Order.OrderID, second.Order.OrderID)

	stock, _ := env.store.Stock("p-1")
	assert.Equal(t, 8, stock)

	_, err = env.client.Checkout(ctx, checkoutRequest(domain.LineItem{ProductID: "p-1", Quantity: 1}))
	requireCode(t, err, codes.AlreadyExists)
}

func TestCheckout_StoredFailureIsReplayed(t *testing.T) {
	env := newTestEnv(t)
	ctx := asUser("u-1", "", grpcsvc.MetadataIdempotencyKey, "grpc-key-2")
	req := checkoutRequest(domain.LineItem{ProductID: "p-2", Quantity: 3})

	_, err := env.client.Checkout(ctx, req)
	requireCode(t, err, codes.FailedPrecondition)

	_, err = env.client.Checkout(ctx, req)
	requireCode(t, err, codes.FailedPrecondition)
}

func TestUpdateOrderStatus(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.client.Checkout(asUser("u-1", ""), checkoutRequest(domain.LineItem{ProductID: "p-1", Quantity: 1}))
	require.NoError(t, err)
	orderID := created.Order.OrderID

	_, err = env.client.UpdateOrderStatus(asUser("u-1", ""), &grpcsvc.UpdateOrderStatusRequest{OrderID: orderID, Status: "shipped"})
	requireCode(t, err, codes.PermissionDenied)

	admin := asUser("admin-1", "admin")
	resp, err := env.client.UpdateOrderStatus(admin, &grpcsvc.UpdateOrderStatusRequest{OrderID: orderID, Status: "shipped"})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, resp.PreviousStatus)
	assert.Equal(t, domain.OrderStatusShipped, resp.NewStatus)

	// Строгая политика не пускает назад.
	_, err = env.client.UpdateOrderStatus(admin, &grpcsvc.UpdateOrderStatusRequest{OrderID: orderID, Status: "confirmed"})
	requireCode(t, err, codes.InvalidArgument)

	view, err := env.client.GetOrderStatus(asUser("u-1", ""), &grpcsvc.GetOrderStatusRequest{OrderID: orderID})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, view.CurrentStatus)
	require.Len(t, view.StatusHistory, 2)
	assert.Equal(t, domain.DefaultStatusNote(domain.OrderStatusPending, domain.OrderStatusShipped), view.StatusHistory[1].Note)
}

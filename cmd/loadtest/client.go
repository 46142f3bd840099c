package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	grpcsvc "github.com/vladislavdragonenkov/flashcart/internal/service/grpc"
	"github.com/vladislavdragonenkov/flashcart/internal/service/httpapi"
)

// outcome - нормализованный результат одного оформления заказа.
type outcome string

const (
	outcomeOK              outcome = "ok"
	outcomeOutOfStock      outcome = "out_of_stock"
	outcomePaymentDeclined outcome = "payment_declined"
)

// expected - бизнес-отказ, а не сбой сервиса.
func (o outcome) expected() bool {
	return o == outcomeOutOfStock || o == outcomePaymentDeclined
}

type buyer struct {
	userID string
	email  string
	name   string
}

// checkoutClient отправляет один запрос оформления заказа.
type checkoutClient interface {
	Checkout(ctx context.Context, who buyer, idempotencyKey string, req domain.CheckoutRequest) outcome
	Close() error
}

type httpCheckoutClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPCheckoutClient(baseURL string, client *http.Client) *httpCheckoutClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpCheckoutClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (c *httpCheckoutClient) Checkout(ctx context.Context, who buyer, key string, req domain.CheckoutRequest) outcome {
	body, err := json.Marshal(req)
	if err != nil {
		return outcome("encode_error")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return outcome("request_error")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(httpapi.HeaderUserID, who.userID)
	httpReq.Header.Set(httpapi.HeaderUserEmail, who.email)
	httpReq.Header.Set(httpapi.HeaderUserName, who.name)
	httpReq.Header.Set(httpapi.HeaderIdempotencyKey, key)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return outcome("transport_error")
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode == http.StatusCreated {
		return outcomeOK
	}
	var failure struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &failure); err == nil && failure.Error.Kind != "" {
		return outcome(failure.Error.Kind)
	}
	return outcome(fmt.Sprintf("http_%d", resp.StatusCode))
}

func (c *httpCheckoutClient) Close() error { return nil }

type grpcCheckoutClient struct {
	conn   *grpc.ClientConn
	client *grpcsvc.OrderServiceClient
}

func newGRPCCheckoutClient(addr string) (*grpcCheckoutClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("create grpc client connection: %w", err)
	}
	return &grpcCheckoutClient{conn: conn, client: grpcsvc.NewOrderServiceClient(conn)}, nil
}

func (c *grpcCheckoutClient) Checkout(ctx context.Context, who buyer, key string, req domain.CheckoutRequest) outcome {
	ctx = metadata.AppendToOutgoingContext(ctx,
		grpcsvc.MetadataUserID, who.userID,
		grpcsvc.MetadataUserEmail, who.email,
		grpcsvc.MetadataUserName, who.name,
		grpcsvc.MetadataIdempotencyKey, key,
	)
	_, err := c.client.Checkout(ctx, &grpcsvc.CheckoutRequest{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Items:           req.Items,
	})
	return grpcOutcome(err)
}

func (c *grpcCheckoutClient) Close() error { return c.conn.Close() }

func grpcOutcome(err error) outcome {
	switch code := status.Code(err); code {
	case codes.OK:
		return outcomeOK
	case codes.FailedPrecondition:
		return outcomeOutOfStock
	case codes.Aborted:
		if strings.Contains(status.Convert(err).Message(), "payment") {
			return outcomePaymentDeclined
		}
		return outcome("grpc_" + strings.ToLower(code.String()))
	default:
		return outcome("grpc_" + strings.ToLower(code.String()))
	}
}

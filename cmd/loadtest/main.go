// loadtest нагружает оформление заказов и проверяет, что товар не продаётся сверх остатка.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/storage/seed"
)

type loadMode string

const (
	// modeSpread раскладывает заказы по всем товарам по кругу.
	modeSpread loadMode = "spread"
	// modeContention отправляет все заказы на один товар.
	modeContention loadMode = "contention"
)

type transport string

const (
	transportHTTP transport = "http"
	transportGRPC transport = "grpc"
)

// flashSaleProductID - товар демонстрационного каталога с минимальным остатком.
var flashSaleProductID = seed.Products(time.Time{})[6].ID

var errOversold = errors.New("more orders succeeded than stock allows")

type config struct {
	httpURL       string
	grpcAddr      string
	transport     transport
	mode          loadMode
	total         int
	concurrency   int
	timeout       time.Duration
	products      []string
	quantity      int
	paymentMethod string
	expectStock   int
	outputPath    string
}

func (c config) validate() error {
	switch {
	case c.mode != modeSpread && c.mode != modeContention:
		return fmt.Errorf("unsupported mode: %s (use spread|contention)", c.mode)
	case c.transport != transportHTTP && c.transport != transportGRPC:
		return fmt.Errorf("unsupported transport: %s (use http|grpc)", c.transport)
	case c.total <= 0:
		return errors.New("total must be > 0")
	case c.concurrency <= 0:
		return errors.New("concurrency must be > 0")
	case c.timeout <= 0:
		return errors.New("timeout must be > 0")
	case c.quantity <= 0:
		return errors.New("quantity must be > 0")
	case len(c.products) == 0:
		return errors.New("at least one product is required")
	case c.expectStock < 0:
		return errors.New("expect-stock must be >= 0")
	}
	return nil
}

func main() {
	if err := newRootCmd(dialClient).Execute(); err != nil {
		os.Exit(1)
	}
}

type dialer func(cfg config) (checkoutClient, error)

func dialClient(cfg config) (checkoutClient, error) {
	if cfg.transport == transportGRPC {
		return newGRPCCheckoutClient(cfg.grpcAddr)
	}
	return newHTTPCheckoutClient(cfg.httpURL, nil), nil
}

func newRootCmd(dial dialer) *cobra.Command {
	var (
		cfg          config
		modeRaw      string
		transportRaw string
		productsRaw  string
	)

	cmd := &cobra.Command{
		Use:          "loadtest",
		Short:        "Конкурентная нагрузка на оформление заказов",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.mode = loadMode(strings.TrimSpace(modeRaw))
			cfg.transport = transport(strings.TrimSpace(transportRaw))
			cfg.products = parseProducts(productsRaw, cfg.mode)
			if err := cfg.validate(); err != nil {
				return err
			}

			client, err := dial(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			result := runLoad(cmd.Context(), cfg, client)
			printReport(cmd.OutOrStdout(), result)
			if cfg.outputPath != "" {
				if err := writeJSONReport(cfg.outputPath, result); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}
			return verify(cfg, result)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.httpURL, "http-url", "http://localhost:8080", "checkout-service HTTP base URL")
	flags.StringVar(&cfg.grpcAddr, "grpc-addr", "localhost:50051", "checkout-service gRPC address")
	flags.StringVar(&transportRaw, "transport", string(transportHTTP), "transport: http | grpc")
	flags.StringVar(&modeRaw, "mode", string(modeContention), "load mode: spread | contention")
	flags.IntVar(&cfg.total, "total", 200, "total checkout attempts")
	flags.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent buyers")
	flags.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	flags.StringVar(&productsRaw, "products", "", "comma-separated product ids (default: seeded catalog)")
	flags.IntVar(&cfg.quantity, "quantity", 1, "units per order")
	flags.StringVar(&cfg.paymentMethod, "payment-method", domain.DefaultPaymentMethod, "payment method sent with every order")
	flags.IntVar(&cfg.expectStock, "expect-stock", 0, "fail if more than this many units were sold in contention mode (0 disables)")
	flags.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	return cmd
}

func parseProducts(raw string, mode loadMode) []string {
	var out []string
	for _, chunk := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(chunk); id != "" {
			out = append(out, id)
		}
	}
	if len(out) > 0 {
		return out
	}
	if mode == modeContention {
		return []string{flashSaleProductID}
	}
	for _, p := range seed.Products(time.Time{}) {
		out = append(out, p.ID)
	}
	return out
}

// runLoad запускает total попыток оформления в concurrency горутин.
func runLoad(ctx context.Context, cfg config, client checkoutClient) report {
	runID := uuid.NewString()
	col := newCollector()
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				who := buyer{
					userID: fmt.Sprintf("load-%s-%d", runID, i),
					email:  fmt.Sprintf("load+%d@flashcart.dev", i),
					name:   "Load Test",
				}
				reqCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
				start := time.Now()
				o := client.Checkout(reqCtx, who, fmt.Sprintf("lt-%s-%d", runID, i), newCheckoutRequest(cfg, i))
				col.record(o, time.Since(start))
				cancel()
			}
		}()
	}

	startedAt := time.Now()
dispatch:
	for i := 0; i < cfg.total; i++ {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return col.buildReport(cfg, startedAt, time.Since(startedAt))
}

func newCheckoutRequest(cfg config, index int) domain.CheckoutRequest {
	productID := cfg.products[index%len(cfg.products)]
	return domain.CheckoutRequest{
		ShippingAddress: domain.ShippingAddress{
			FullName: "Load Test",
			Address:  fmt.Sprintf("%d Benchmark Ave", index+1),
			City:     "Springfield",
			State:    "IL",
			ZipCode:  "62701",
		},
		PaymentMethod: cfg.paymentMethod,
		Items:         []domain.LineItem{{ProductID: productID, Quantity: cfg.quantity}},
	}
}

// verify возвращает ошибку при сбоях сервиса или перепродаже в режиме contention.
func verify(cfg config, r report) error {
	if cfg.mode == modeContention && cfg.expectStock > 0 {
		if sold := r.Succeeded * int64(cfg.quantity); sold > int64(cfg.expectStock) {
			return fmt.Errorf("%w: sold %d, stock %d", errOversold, sold, cfg.expectStock)
		}
	}
	if r.Failed > 0 {
		return fmt.Errorf("%d checkout attempts failed unexpectedly", r.Failed)
	}
	return nil
}

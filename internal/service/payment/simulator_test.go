package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

func TestSimulatorAuthorize(t *testing.T) {
	sim := NewSimulator(nil, "Declined_Card")

	tests := []struct {
		name    string
		method  string
		want    domain.PaymentStatus
		wantErr error
	}{
		{name: "default method", method: "", want: domain.PaymentStatusAuthorized},
		{name: "card", method: "card", want: domain.PaymentStatusAuthorized},
		{name: "declined list is case insensitive", method: " DECLINED_card ", want: domain.PaymentStatusDeclined, wantErr: domain.ErrPaymentDeclined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := sim.Authorize(context.Background(), domain.PaymentRequest{
				UserID: "u-1",
				Method: tt.method,
				Amount: domain.MustMoney("10.00"),
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if status != tt.want {
				t.Fatalf("unexpected status: %s", status)
			}
		})
	}

	if sim.Calls() != len(tests) {
		t.Fatalf("unexpected calls: %d", sim.Calls())
	}
}

func TestSimulatorRejectsNegativeAmount(t *testing.T) {
	sim := NewSimulator(nil)
	_, err := sim.Authorize(context.Background(), domain.PaymentRequest{Amount: domain.MustMoney("-1")})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSimulatorHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewSimulator(nil).Authorize(ctx, domain.PaymentRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParseDeclineList(t *testing.T) {
	got := ParseDeclineList(" test_decline, ,crypto ")
	if len(got) != 2 || got[0] != "test_decline" || got[1] != "crypto" {
		t.Fatalf("unexpected list: %v", got)
	}
	if ParseDeclineList("") != nil {
		t.Fatal("expected nil for empty input")
	}
}

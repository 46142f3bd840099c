package idempotency

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/storage/memory"
)

func TestGuard_ReplaysStoredResponse(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil)
	ctx := context.Background()

	calls := 0
	handler := func(context.Context) Response {
		calls++
		return Response{Status: http.StatusCreated, Body: []byte(`{"orderId":"ORD-1-AAAAAA"}`)}
	}

	first, replayed, err := guard.Execute(ctx, "key-1", "hash-a", handler)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := guard.Execute(ctx, "key-1", "hash-a", handler)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestGuard_ReplaysFailures(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil)
	ctx := context.Background()

	calls := 0
	handler := func(context.Context) Response {
		calls++
		return Response{Status: http.StatusConflict, Body: []byte(`{"error":{"kind":"out_of_stock"}}`)}
	}

	_, _, err := guard.Execute(ctx, "key-1", "hash-a", handler)
	require.NoError(t, err)
	resp, replayed, err := guard.Execute(ctx, "key-1", "hash-a", handler)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, http.StatusConflict, resp.Status)
	assert.Equal(t, 1, calls)
}

func TestGuard_ServerErrorReleasesKey(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	guard := NewGuard(repo, time.Hour, nil)
	ctx := context.Background()

	calls := 0
	handler := func(context.Context) Response {
		calls++
		if calls == 1 {
			return Response{Status: http.StatusInternalServerError, Body: []byte(`{"error":{"kind":"internal"}}`)}
		}
		return Response{Status: http.StatusCreated, Body: []byte(`{"orderId":"ORD-1-AAAAAA"}`)}
	}

	first, replayed, err := guard.Execute(ctx, "key-1", "hash-a", handler)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, http.StatusInternalServerError, first.Status)

	_, err = repo.Get(ctx, "key-1")
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)

	second, replayed, err := guard.Execute(ctx, "key-1", "hash-a", handler)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, http.StatusCreated, second.Status)
	assert.Equal(t, 2, calls)

	third, replayed, err := guard.Execute(ctx, "key-1", "hash-a", handler)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, second, third)
	assert.Equal(t, 2, calls)
}

func TestGuard_HashMismatch(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil)
	ctx := context.Background()
	handler := func(context.Context) Response { return Response{Status: http.StatusCreated} }

	_, _, err := guard.Execute(ctx, "key-1", "hash-a", handler)
	require.NoError(t, err)

	_, _, err = guard.Execute(ctx, "key-1", "hash-b", handler)
	assert.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
}

func TestGuard_InProgress(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	guard := NewGuard(repo, time.Hour, nil)
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, "key-1", "hash-a", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, _, err = guard.Execute(ctx, "key-1", "hash-a", func(context.Context) Response {
		t.Fatal("handler must not run")
		return Response{}
	})
	assert.ErrorIs(t, err, ErrRequestInProgress)
}

func TestGuard_WithoutKeyRunsHandler(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository(), 0, nil)

	calls := 0
	for i := 0; i < 2; i++ {
		_, replayed, err := guard.Execute(context.Background(), "  ", "hash", func(context.Context) Response {
			calls++
			return Response{Status: http.StatusCreated}
		})
		require.NoError(t, err)
		assert.False(t, replayed)
	}
	assert.Equal(t, 2, calls)
}

func TestValidateKey(t *testing.T) {
	assert.ErrorIs(t, ValidateKey(""), domain.ErrIdempotencyKeyRequired)
	assert.ErrorIs(t, ValidateKey(strings.Repeat("k", MaxKeyLength+1)), domain.ErrValidation)
	assert.NoError(t, ValidateKey("checkout-42"))
}

func TestResponseFailed(t *testing.T) {
	assert.True(t, Response{Status: http.StatusInternalServerError}.Failed())
	assert.False(t, Response{Status: http.StatusPaymentRequired}.Failed())
}

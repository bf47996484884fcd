package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/service/order/domain"
)

func TestCreateOrder_ReservesStockAndPublishesCreated(t *testing.T) {
	f := newFixture(t, 5)

	dto, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{UserID: "u-1", ProductID: "p-1", Quantity: 2})
	require.NoError(t, err)

	assert.Equal(t, "PENDING", dto.Status)
	assert.Equal(t, "20.00", dto.Total)
	assert.Equal(t, t0, dto.CreatedAt)
	assert.Equal(t, 3, f.stock(t))

	created, completed, expired := f.pub.counts()
	assert.Equal(t, 1, created)
	assert.Zero(t, completed+expired)
	assert.Equal(t, dto.ID, f.pub.created[0].ID)
	assert.Equal(t, domain.StatusPending, f.pub.created[0].Status)
}

func TestCreateOrder_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		stock   int
		req     CreateOrderRequest
		wantErr error
	}{
		{"insufficient stock", 5, CreateOrderRequest{UserID: "u-1", ProductID: "p-1", Quantity: 6}, domain.ErrInsufficientStock},
		{"out of stock", 0, CreateOrderRequest{UserID: "u-1", ProductID: "p-1", Quantity: 1}, domain.ErrOutOfStock},
		{"zero quantity", 5, CreateOrderRequest{UserID: "u-1", ProductID: "p-1", Quantity: 0}, domain.ErrInvalidQuantity},
		{"negative quantity", 5, CreateOrderRequest{UserID: "u-1", ProductID: "p-1", Quantity: -3}, domain.ErrInvalidQuantity},
		{"unknown user", 5, CreateOrderRequest{UserID: "ghost", ProductID: "p-1", Quantity: 1}, domain.ErrNotFound},
		{"unknown product", 5, CreateOrderRequest{UserID: "u-1", ProductID: "nope", Quantity: 1}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.stock)

			_, err := f.svc.CreateOrder(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, tt.stock, f.stock(t), "stock must be unchanged")
			orders, err := f.svc.ListOrdersByUser(context.Background(), "u-1")
			require.NoError(t, err)
			assert.Empty(t, orders)
			created, _, _ := f.pub.counts()
			assert.Zero(t, created)
		})
	}
}

func TestCreateOrder_PublishFailureKeepsOrder(t *testing.T) {
	f := newFixture(t, 5)
	f.pub.fail[domain.EventOrderCreated] = true

	dto, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{UserID: "u-1", ProductID: "p-1", Quantity: 1})
	require.ErrorIs(t, err, domain.ErrPublishFailure)
	require.NotNil(t, dto)

	assert.Equal(t, domain.StatusPending, f.order(t, dto.ID).Status)
	assert.Equal(t, 4, f.stock(t))
}

func TestUpdateOrder_QuantityReconcilesStockAndTotal(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	dto, err := f.svc.CreateOrder(ctx, CreateOrderRequest{UserID: "u-1", ProductID: "p-1", Quantity: 2})
	require.NoError(t, err)

	qty := 4
	updated, err := f.svc.UpdateOrder(ctx, dto.ID, UpdateOrderRequest{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)
	assert.Equal(t, "40.00", updated.Total)
	assert.Equal(t, 1, f.stock(t))

	qty = 1
	_, err = f.svc.UpdateOrder(ctx, dto.ID, UpdateOrderRequest{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 4, f.stock(t))
}

func TestUpdateOrder_QuantityBeyondStockRollsBack(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	dto, err := f.svc.CreateOrder(ctx, CreateOrderRequest{UserID: "u-1", ProductID: "p-1", Quantity: 2})
	require.NoError(t, err)

	qty := 6
	_, err = f.svc.UpdateOrder(ctx, dto.ID, UpdateOrderRequest{Quantity: &qty})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, 3, f.stock(t))
	o := f.order(t, dto.ID)
	assert.Equal(t, 2, o.Quantity)
	assert.Equal(t, "20.00", o.Total.StringFixed(2))
}

func TestUpdateOrder_StatusOverride(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	f.seedOrder(t, "o-1", domain.StatusPending, t0)

	status := "PROCESSING"
	dto, err := f.svc.UpdateOrder(ctx, "o-1", UpdateOrderRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "PROCESSING", dto.Status)

	_, completed, expired := f.pub.counts()
	assert.Zero(t, completed+expired, "administrative override publishes nothing")
}

func TestUpdateOrder_Errors(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	f.seedOrder(t, "done", domain.StatusCompleted, t0)
	f.seedOrder(t, "open", domain.StatusPending, t0)

	qty := 2
	_, err := f.svc.UpdateOrder(ctx, "done", UpdateOrderRequest{Quantity: &qty})
	require.ErrorIs(t, err, domain.ErrInvalidState)

	bogus := "SHIPPED"
	_, err = f.svc.UpdateOrder(ctx, "open", UpdateOrderRequest{Status: &bogus})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.UpdateOrder(ctx, "missing", UpdateOrderRequest{Quantity: &qty})
	require.ErrorIs(t, err, domain.ErrNotFound)

	zero := 0
	_, err = f.svc.UpdateOrder(ctx, "open", UpdateOrderRequest{Quantity: &zero})
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestDeleteOrder_DoesNotRestoreStock(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	dto, err := f.svc.CreateOrder(ctx, CreateOrderRequest{UserID: "u-1", ProductID: "p-1", Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteOrder(ctx, dto.ID))
	_, err = f.svc.GetOrder(ctx, dto.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 3, f.stock(t))

	require.ErrorIs(t, f.svc.DeleteOrder(ctx, dto.ID), domain.ErrNotFound)
}

func TestListOrdersByStatus(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	f.seedOrder(t, "a", domain.StatusPending, t0)
	f.seedOrder(t, "b", domain.StatusProcessing, t0)
	f.seedOrder(t, "c", domain.StatusPending, t0.Add(1))

	pending, err := f.svc.ListOrdersByStatus(ctx, "PENDING")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].ID)
	assert.Equal(t, "c", pending[1].ID)

	_, err = f.svc.ListOrdersByStatus(ctx, "pending-ish")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

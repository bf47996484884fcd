package interfaces

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/infrastructure/memory"
)

var testTracer = noop.NewTracerProvider().Tracer("test")

type countingPublisher struct {
	mu        sync.Mutex
	created   []string
	completed []string
	expired   []string
}

func (p *countingPublisher) PublishCreated(_ context.Context, o *domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, o.ID)
	return nil
}

func (p *countingPublisher) PublishCompleted(_ context.Context, o *domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, o.ID)
	return nil
}

func (p *countingPublisher) PublishExpired(_ context.Context, o *domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expired = append(p.expired, o.ID)
	return nil
}

func (p *countingPublisher) completedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.completed...)
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Users().Save(ctx, &domain.User{ID: "u-1", Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, store.Products().Save(ctx, &domain.Product{
		ID: "p-1", Name: "Keyboard", Price: decimal.RequireFromString("12.50"), Stock: 10,
	}))
	return store
}

func newService(store *memory.Store, pub *countingPublisher) *application.OrderApplicationService {
	repos := domain.Repositories{Orders: store.Orders(), Products: store.Products(), Users: store.Users()}
	return application.NewOrderApplicationService(repos, store, pub, testTracer)
}

func seedOrder(t *testing.T, store *memory.Store, id string, status domain.Status) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.Orders().Save(context.Background(), &domain.Order{
		ID: id, UserID: "u-1", ProductID: "p-1", Quantity: 1,
		Total: decimal.RequireFromString("12.50"), Status: status, CreatedAt: now, UpdatedAt: now,
	}))
}

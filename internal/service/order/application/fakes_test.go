package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/infrastructure/memory"
)

var (
	t0         = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	errBroker  = errors.New("broker unavailable")
	testTracer = noop.NewTracerProvider().Tracer("test")
)

// recordingPublisher 记录发布的订单快照，可以按事件类型注入失败
type recordingPublisher struct {
	mu        sync.Mutex
	created   []domain.Order
	completed []domain.Order
	expired   []domain.Order
	fail      map[domain.EventType]bool
}

func (p *recordingPublisher) record(t domain.EventType, dst *[]domain.Order, o *domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[t] {
		return errors.Wrap(domain.ErrPublishFailure, errBroker.Error())
	}
	*dst = append(*dst, *o)
	return nil
}

func (p *recordingPublisher) PublishCreated(_ context.Context, o *domain.Order) error {
	return p.record(domain.EventOrderCreated, &p.created, o)
}

func (p *recordingPublisher) PublishCompleted(_ context.Context, o *domain.Order) error {
	return p.record(domain.EventOrderCompleted, &p.completed, o)
}

func (p *recordingPublisher) PublishExpired(_ context.Context, o *domain.Order) error {
	return p.record(domain.EventOrderExpired, &p.expired, o)
}

func (p *recordingPublisher) counts() (created, completed, expired int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.created), len(p.completed), len(p.expired)
}

type fixture struct {
	store *memory.Store
	pub   *recordingPublisher
	svc   *OrderApplicationService
}

func newFixture(t *testing.T, stock int) *fixture {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Users().Save(ctx, &domain.User{ID: "u-1", Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, store.Products().Save(ctx, &domain.Product{
		ID: "p-1", Name: "Keyboard", Price: decimal.RequireFromString("10.00"), Stock: stock,
	}))

	pub := &recordingPublisher{fail: map[domain.EventType]bool{}}
	svc := NewOrderApplicationService(repositories(store), store, pub, testTracer)
	svc.now = func() time.Time { return t0 }
	return &fixture{store: store, pub: pub, svc: svc}
}

func repositories(store *memory.Store) domain.Repositories {
	return domain.Repositories{Orders: store.Orders(), Products: store.Products(), Users: store.Users()}
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	p, err := f.store.Products().FindByID(context.Background(), "p-1")
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) order(t *testing.T, id string) *domain.Order {
	t.Helper()
	o, err := f.store.Orders().FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

// seedOrder 直接写入一个指定状态的订单
func (f *fixture) seedOrder(t *testing.T, id string, status domain.Status, createdAt time.Time) {
	t.Helper()
	require.NoError(t, f.store.Orders().Save(context.Background(), &domain.Order{
		ID: id, UserID: "u-1", ProductID: "p-1", Quantity: 1,
		Total: decimal.RequireFromString("10.00"), Status: status,
		CreatedAt: createdAt, UpdatedAt: createdAt,
	}))
}

package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"orderflow/internal/pkg/mq"
	"orderflow/internal/pkg/mq/mqtest"
	"orderflow/internal/service/notification/application"
	"orderflow/internal/service/notification/domain"
	"orderflow/internal/service/notification/domain/port"
	"orderflow/internal/service/notification/infrastructure/adapter"
	"orderflow/internal/service/notification/infrastructure/memory"
	orderdomain "orderflow/internal/service/order/domain"
	ordermemory "orderflow/internal/service/order/infrastructure/memory"
)

// flakyEmail 前 failures 次发送失败
type flakyEmail struct {
	failures int32
	calls    int32
	sent     int32
}

func (e *flakyEmail) Send(context.Context, string, string, string) error {
	if atomic.AddInt32(&e.calls, 1) <= e.failures {
		return errors.New("smtp timeout")
	}
	atomic.AddInt32(&e.sent, 1)
	return nil
}

func newDispatcher(t *testing.T) *application.NotificationDispatcher {
	t.Helper()
	return newDispatcherWithEmail(t, adapter.NewSimulatedEmailSender(0))
}

func newDispatcherWithEmail(t *testing.T, email port.EmailSender) *application.NotificationDispatcher {
	t.Helper()
	ctx := context.Background()
	orders := ordermemory.NewStore()
	require.NoError(t, orders.Users().Save(ctx, &orderdomain.User{ID: "u-1", Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, orders.Orders().Save(ctx, &orderdomain.Order{
		ID: "o-1", UserID: "u-1", ProductID: "p-1", Quantity: 1,
		Total: decimal.RequireFromString("10.00"), Status: orderdomain.StatusCompleted, CreatedAt: time.Now(),
	}))
	return application.NewNotificationDispatcher(
		memory.NewNotificationRepository(),
		adapter.NewOrderDirectoryAdapter(orders.Orders(), orders.Users()),
		email,
		noop.NewTracerProvider().Tracer("test"),
	)
}

func msg(key, orderID string, offset int64) kafka.Message {
	return kafka.Message{
		Topic:  "order-events",
		Key:    []byte(key),
		Value:  []byte(`{"eventId":"e-` + orderID + `","orderId":"` + orderID + `","userId":"u-1","total":"10.00"}`),
		Offset: offset,
	}
}

func TestNotificationConsumerAdapter_DispatchesAndDeadLetters(t *testing.T) {
	d := newDispatcher(t)
	reader := mqtest.NewFakeReader("order-events", "notification-dispatcher",
		msg(domain.RoutingKeyCompleted, "o-1", 1),
		msg("order-created", "o-1", 2),
		msg(domain.RoutingKeyExpired, "missing", 3),
	)
	dlt := &mqtest.FakeWriter{}
	a := NewNotificationConsumerAdapter([]mq.MessageReader{reader}, d,
		mq.NewFailureHandler(dlt, mq.DeadLetterTopic("order-events", "notification-dispatcher"), "notification-dispatcher"),
		mq.ConsumerOptions{MaxAttempts: 3, InitialBackoff: time.Millisecond},
	)

	require.NoError(t, a.Start(context.Background()))
	select {
	case <-reader.Drained():
	case <-time.After(5 * time.Second):
		t.Fatal("reader not drained")
	}
	a.Stop(context.Background())

	assert.Len(t, reader.Commits(), 3)
	written := dlt.Written()
	require.Len(t, written, 1)
	assert.Equal(t, "3", mq.GetHeader(written[0].Headers, mq.HeaderOriginalOffset))
	assert.Equal(t, "1", mq.GetHeader(written[0].Headers, mq.HeaderAttempts))

	list, err := d.ListByUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].EmailSent)
}

func TestNotificationConsumerAdapter_RedeliveryAfterEmailFailureSendsOnce(t *testing.T) {
	email := &flakyEmail{failures: 1}
	d := newDispatcherWithEmail(t, email)
	reader := mqtest.NewFakeReader("order-events", "notification-dispatcher", msg(domain.RoutingKeyCompleted, "o-1", 1))
	dlt := &mqtest.FakeWriter{}
	a := NewNotificationConsumerAdapter([]mq.MessageReader{reader}, d,
		mq.NewFailureHandler(dlt, "dlt", "notification-dispatcher"),
		mq.ConsumerOptions{MaxAttempts: 3, InitialBackoff: time.Millisecond},
	)

	require.NoError(t, a.Start(context.Background()))
	select {
	case <-reader.Drained():
	case <-time.After(5 * time.Second):
		t.Fatal("reader not drained")
	}
	a.Stop(context.Background())

	assert.Empty(t, dlt.Written())
	assert.EqualValues(t, 2, atomic.LoadInt32(&email.calls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&email.sent))

	list, err := d.ListByUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].EmailSent)
}

func TestNotificationHandler_List(t *testing.T) {
	d := newDispatcher(t)
	require.NoError(t, d.HandleMessage(context.Background(), domain.RoutingKeyCompleted, msg(domain.RoutingKeyCompleted, "o-1", 1).Value))

	mux := http.NewServeMux()
	NewNotificationHandler(d, nil).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/notifications?userId=u-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []application.NotificationDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "COMPLETED", list[0].Type)

	resp2, err := http.Get(srv.URL + "/notifications")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

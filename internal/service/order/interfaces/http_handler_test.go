package interfaces

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
)

func newTestServer(t *testing.T) (*httptest.Server, *countingPublisher) {
	t.Helper()
	store := seededStore(t)
	seedOrder(t, store, "done", domain.StatusCompleted)
	pub := &countingPublisher{}

	mux := http.NewServeMux()
	NewOrderHandler(newService(store, pub)).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, pub
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestOrderHandler_CreateGetUpdateDelete(t *testing.T) {
	srv, pub := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/orders", `{"userId":"u-1","productId":"p-1","quantity":2}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created application.OrderDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "25.00", created.Total)
	assert.Equal(t, "PENDING", created.Status)
	assert.Len(t, pub.created, 1)

	resp = do(t, http.MethodGet, srv.URL+"/orders/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPut, srv.URL+"/orders/"+created.ID, `{"quantity":4}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated application.OrderDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, "50.00", updated.Total)

	resp = do(t, http.MethodGet, srv.URL+"/orders?userId=u-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []application.OrderDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 2)

	resp = do(t, http.MethodDelete, srv.URL+"/orders/"+created.ID, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodGet, srv.URL+"/orders/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOrderHandler_ErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"insufficient stock", http.MethodPost, "/orders", `{"userId":"u-1","productId":"p-1","quantity":11}`, http.StatusConflict},
		{"zero quantity", http.MethodPost, "/orders", `{"userId":"u-1","productId":"p-1","quantity":0}`, http.StatusBadRequest},
		{"unknown product", http.MethodPost, "/orders", `{"userId":"u-1","productId":"x","quantity":1}`, http.StatusNotFound},
		{"bad json", http.MethodPost, "/orders", `{`, http.StatusBadRequest},
		{"terminal order", http.MethodPut, "/orders/done", `{"quantity":3}`, http.StatusConflict},
		{"invalid status", http.MethodGet, "/orders?status=LOST", "", http.StatusBadRequest},
		{"missing filter", http.MethodGet, "/orders", "", http.StatusBadRequest},
		{"missing order", http.MethodDelete, "/orders/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestOrderHandler_Healthz(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/healthz", "").StatusCode)
}

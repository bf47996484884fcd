// internal/service/notification/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"orderflow/internal/pkg/metrics"
	"orderflow/internal/service/notification/application"
)

// NotificationHandler 封装了 notification 服务的 HTTP 处理器
type NotificationHandler struct {
	dispatcher *application.NotificationDispatcher
	ws         http.HandlerFunc
}

// NewNotificationHandler 的 ws 为 websocket 升级处理器，为 nil 时不注册 /ws
func NewNotificationHandler(dispatcher *application.NotificationDispatcher, ws http.HandlerFunc) *NotificationHandler {
	return &NotificationHandler{dispatcher: dispatcher, ws: ws}
}

func (h *NotificationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", metrics.Handler())
	h.RegisterAPIRoutes(mux)
}

// RegisterAPIRoutes 只注册业务路由，供与订单服务合并部署时使用
func (h *NotificationHandler) RegisterAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /notifications", h.listNotifications)
	if h.ws != nil {
		mux.HandleFunc("GET /ws", h.ws)
	}
}

func (h *NotificationHandler) listNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId query parameter is required", http.StatusBadRequest)
		return
	}
	list, err := h.dispatcher.ListByUser(ctx, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

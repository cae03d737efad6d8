package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/example/curvedesk/internal/idempotency"
	"github.com/example/curvedesk/internal/order/domain"
	"github.com/example/curvedesk/internal/order/service"
)

const idempotencyHeader = "Idempotency-Key"

const replayMessage = "Order already exists (idempotent)"

var replaysTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "order_replays_total",
	Help: "Total number of order submissions answered from a recorded response.",
})

// HTTP exposes the order endpoints behind the idempotency gate.
type HTTP struct {
	svc    *service.Service
	keys   *idempotency.Store
	logger *zap.Logger
}

// NewHTTP constructs a handler.
func NewHTTP(svc *service.Service, keys *idempotency.Store, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{svc: svc, keys: keys, logger: logger}
}

// Router builds the chi router for the order endpoints, mounted under
// /api/orders.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	return r
}

type orderResponse struct {
	Success bool         `json:"success"`
	Data    domain.Order `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type paginationInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type listOrdersResponse struct {
	Success    bool           `json:"success"`
	Data       []domain.Order `json:"data"`
	Pagination paginationInfo `json:"pagination"`
}

// createOrder gates the submission on the idempotency key, then runs the
// two-phase contract: compute (status, body), record it against the key,
// then serialize. Transient 5xx outcomes are never recorded so a legitimate
// retry can still succeed.
func (h *HTTP) createOrder(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing Idempotency-Key header"})
		return
	}

	if rec, ok := h.keys.Get(key); ok {
		h.replay(w, rec)
		return
	}

	status, body := h.process(r)
	raw, err := json.Marshal(body)
	if err != nil {
		h.logger.Error("marshal order response", zap.Error(err))
		http.Error(w, `{"success":false,"error":"Internal server error"}`, http.StatusInternalServerError)
		return
	}

	if status < http.StatusInternalServerError {
		h.keys.Put(key, status, raw)
	}
	writeRaw(w, status, raw)
}

// process produces the definitive response for a first-seen key.
func (h *HTTP) process(r *http.Request) (int, any) {
	var req service.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return http.StatusBadRequest, errorResponse{Error: "Invalid request body"}
	}

	order, err := h.svc.CreateOrder(r.Context(), req)
	if err != nil {
		var verrs domain.ValidationErrors
		if errors.As(err, &verrs) {
			return http.StatusBadRequest, errorResponse{Error: verrs.Error()}
		}
		h.logger.Error("create order failed", zap.Error(err))
		return http.StatusInternalServerError, errorResponse{Error: "Internal server error"}
	}

	return http.StatusCreated, orderResponse{Success: true, Data: order}
}

// replay serves the recorded response. A recorded 201 is replayed as 200
// with the idempotent marker added; everything else is replayed verbatim.
func (h *HTTP) replay(w http.ResponseWriter, rec idempotency.Record) {
	replaysTotal.Inc()

	if rec.Status != http.StatusCreated {
		writeRaw(w, rec.Status, rec.Body)
		return
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body, &body); err != nil {
		writeRaw(w, rec.Status, rec.Body)
		return
	}
	body["message"] = replayMessage
	raw, err := json.Marshal(body)
	if err != nil {
		writeRaw(w, rec.Status, rec.Body)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

func (h *HTTP) listOrders(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(r, "page", 1)
	if !ok || page < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "page must be a positive integer"})
		return
	}
	limit, ok := queryInt(r, "limit", 10)
	if !ok || limit < 1 || limit > 100 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 100"})
		return
	}

	result, err := h.svc.ListOrders(r.Context(), page, limit)
	if err != nil {
		h.logger.Error("list orders failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	if result.Orders == nil {
		result.Orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{
		Success: true,
		Data:    result.Orders,
		Pagination: paginationInfo{
			Page:       result.Page,
			Limit:      result.Limit,
			Total:      result.Total,
			TotalPages: result.TotalPages,
		},
	})
}

func queryInt(r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

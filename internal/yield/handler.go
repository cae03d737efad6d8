package yield

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HTTP exposes the yield-curve endpoint.
type HTTP struct {
	svc    *Service
	logger *zap.Logger
}

// NewHTTP constructs the handler.
func NewHTTP(svc *Service, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{svc: svc, logger: logger}
}

// Router builds the chi router, mounted under /api/yield-curve.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.curve)
	return r
}

func (h *HTTP) curve(w http.ResponseWriter, r *http.Request) {
	curve, err := h.svc.Curve(r.Context())
	if err != nil {
		h.logger.Error("yield curve unavailable", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{"success": false, "error": "Yield data unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": curve})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package insights

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/healix-ai/backend/pkg/common/logger"
	"github.com/healix-ai/backend/pkg/common/models"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/insights/condition-prevalence", h.handlePrevalence).Methods(http.MethodGet)
	router.HandleFunc("/insights/avg-bmi-by-location", h.handleAverage).Methods(http.MethodGet)
	router.HandleFunc("/insights/bp-distribution", h.handleDistribution).Methods(http.MethodGet)
}

func (h *HTTPHandler) handlePrevalence(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := h.service.ConditionPrevalence(r.Context(), q.Get("condition_name"), q.Get("group_by"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *HTTPHandler) handleAverage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := h.service.AverageBy(r.Context(), q.Get("attribute"), q.Get("group_by"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *HTTPHandler) handleDistribution(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.BPDistribution(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrConditionRequired):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Condition name is required."})
	case errors.Is(err, ErrInvalidDimension), errors.Is(err, ErrInvalidAttribute):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	default:
		logger.Log.WithError(err).Error("Report query failed")
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

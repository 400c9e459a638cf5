package serving

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/healix-ai/backend/pkg/common/logger"
	"github.com/healix-ai/backend/pkg/common/models"
	"github.com/healix-ai/backend/pkg/serving/predictor"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/predict-condition", h.handlePredict).Methods(http.MethodPost)
}

func (h *HTTPHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req models.PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}

	resp, err := h.service.Predict(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, ErrMissingFields):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Missing required patient data fields."})
	case errors.Is(err, predictor.ErrBundleNotLoaded):
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Pre-trained model not found."})
	default:
		logger.Log.WithError(err).Error("Prediction failed")
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

package records

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

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
	router.HandleFunc("/patients", h.handleListPatients).Methods(http.MethodGet)
	router.HandleFunc("/patients", h.handleCreatePatient).Methods(http.MethodPost)
	router.HandleFunc("/patients/{id}", h.handleGetPatient).Methods(http.MethodGet)
	router.HandleFunc("/patients/{id}", h.handleUpdatePatient).Methods(http.MethodPut)
	router.HandleFunc("/patients/{id}", h.handleDeletePatient).Methods(http.MethodDelete)

	router.HandleFunc("/conditions", h.handleListConditions).Methods(http.MethodGet)
	router.HandleFunc("/conditions", h.handleCreateCondition).Methods(http.MethodPost)
	router.HandleFunc("/conditions/{id:[0-9]+}", h.handleGetCondition).Methods(http.MethodGet)
	router.HandleFunc("/conditions/{id:[0-9]+}", h.handleDeleteCondition).Methods(http.MethodDelete)

	router.HandleFunc("/observations", h.handleListObservations).Methods(http.MethodGet)
	router.HandleFunc("/observations", h.handleCreateObservation).Methods(http.MethodPost)
	router.HandleFunc("/observations/{id:[0-9]+}", h.handleGetObservation).Methods(http.MethodGet)
	router.HandleFunc("/observations/{id:[0-9]+}", h.handleDeleteObservation).Methods(http.MethodDelete)
}

func (h *HTTPHandler) handleListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.service.ListPatients(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to list patients")
		return
	}
	writeJSON(w, http.StatusOK, patients)
}

func (h *HTTPHandler) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var p Patient
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.service.CreatePatient(r.Context(), &p); err != nil {
		h.writeError(w, err, "failed to create patient")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *HTTPHandler) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPatient(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err, "failed to fetch patient")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *HTTPHandler) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	var p Patient
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.service.UpdatePatient(r.Context(), mux.Vars(r)["id"], &p); err != nil {
		h.writeError(w, err, "failed to update patient")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *HTTPHandler) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePatient(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err, "failed to delete patient")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleListConditions(w http.ResponseWriter, r *http.Request) {
	conditions, err := h.service.ListConditions(r.Context(), r.URL.Query().Get("patient"))
	if err != nil {
		h.writeError(w, err, "failed to list conditions")
		return
	}
	writeJSON(w, http.StatusOK, conditions)
}

func (h *HTTPHandler) handleCreateCondition(w http.ResponseWriter, r *http.Request) {
	var c Condition
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}
	c.ID = 0
	if err := h.service.CreateCondition(r.Context(), &c); err != nil {
		h.writeError(w, err, "failed to create condition")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *HTTPHandler) handleGetCondition(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCondition(r.Context(), pathID(r))
	if err != nil {
		h.writeError(w, err, "failed to fetch condition")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *HTTPHandler) handleDeleteCondition(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCondition(r.Context(), pathID(r)); err != nil {
		h.writeError(w, err, "failed to delete condition")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleListObservations(w http.ResponseWriter, r *http.Request) {
	observations, err := h.service.ListObservations(r.Context(), r.URL.Query().Get("patient"))
	if err != nil {
		h.writeError(w, err, "failed to list observations")
		return
	}
	writeJSON(w, http.StatusOK, observations)
}

func (h *HTTPHandler) handleCreateObservation(w http.ResponseWriter, r *http.Request) {
	var o Observation
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}
	o.ID = 0
	if err := h.service.CreateObservation(r.Context(), &o); err != nil {
		h.writeError(w, err, "failed to create observation")
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *HTTPHandler) handleGetObservation(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetObservation(r.Context(), pathID(r))
	if err != nil {
		h.writeError(w, err, "failed to fetch observation")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *HTTPHandler) handleDeleteObservation(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteObservation(r.Context(), pathID(r)); err != nil {
		h.writeError(w, err, "failed to delete observation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error, msg string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, verr.Fields)
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Not found."})
	case errors.Is(err, ErrPatientNotFound), errors.Is(err, ErrDuplicatePatient):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	default:
		logger.Log.WithError(err).Error(msg)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
	}
}

// pathID is only called on routes constrained to digits.
func pathID(r *http.Request) uint {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	return uint(id)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

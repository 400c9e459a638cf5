package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/healix-ai/backend/pkg/common/logger"
	"github.com/healix-ai/backend/pkg/common/models"
)

const defaultMaxUpload = 32 << 20

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	if maxBody <= 0 {
		maxBody = defaultMaxUpload
	}
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/upload/runs/{id}", h.handleRun).Methods(http.MethodGet)
	router.HandleFunc("/upload/{kind}", h.handleUpload).Methods(http.MethodPost)
}

type uploadResponse struct {
	models.IngestResponse
	Errors []*RowError `json:"errors,omitempty"`
}

func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
		return
	}
	var policy FailurePolicy
	if raw := r.URL.Query().Get("policy"); raw != "" {
		if policy, err = ParsePolicy(raw); err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
			return
		}
	}

	if r.ContentLength > h.maxBody {
		h.writeTooLarge(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeTooLarge(w)
			return
		}
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "No file uploaded."})
		return
	}
	defer file.Close()

	table, err := ReadTable(header.Filename, file)
	if err != nil {
		logger.Log.WithError(err).WithField("filename", header.Filename).Warn("Unreadable upload")
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	report, err := h.service.Ingest(r.Context(), Request{
		Kind:     kind,
		Filename: header.Filename,
		Table:    table,
		Policy:   policy,
	})
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		IngestResponse: models.IngestResponse{
			Status:    kind.SuccessMessage(),
			RunID:     report.RunID,
			Kind:      string(report.Kind),
			Processed: report.Processed,
			Committed: report.Committed,
			Skipped:   report.Skipped,
		},
		Errors: report.Errors,
	})
}

func (h *HTTPHandler) writeTooLarge(w http.ResponseWriter) {
	writeJSON(w, http.StatusRequestEntityTooLarge, models.ErrorResponse{
		Error: fmt.Sprintf("Upload exceeds the %d byte limit.", h.maxBody),
	})
}

func (h *HTTPHandler) writeIngestError(w http.ResponseWriter, err error) {
	var missing *MissingPatientError
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrNoFile):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "No file uploaded."})
	case errors.As(err, &missing):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: missing.Error()})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, verr.Fields)
	default:
		logger.Log.WithError(err).Error("Ingestion failed")
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
	}
}

func (h *HTTPHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Run(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "ingestion run not found"})
			return
		}
		logger.Log.WithError(err).Error("Failed to fetch ingestion run")
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

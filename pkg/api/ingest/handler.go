// Package ingest exposes the ingestion pipeline over HTTP.
package ingest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"portfolio_ingest/pkg/core/diag"
	apperrors "portfolio_ingest/pkg/core/errors"
	"portfolio_ingest/pkg/core/logger"
	"portfolio_ingest/pkg/core/pipeline"
)

const defaultMaxUpload = 32 << 20

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Handler serves upload and lookup endpoints.
type Handler struct {
	svc       *pipeline.IngestionService
	log       logger.Logger
	maxUpload int64
	diagLimit int
}

// NewHandler creates a handler. maxUpload <= 0 selects 32MB.
func NewHandler(svc *pipeline.IngestionService, log logger.Logger, maxUpload int64, diagLimit int) *Handler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{svc: svc, log: log, maxUpload: maxUpload, diagLimit: diagLimit}
}

// RegisterRoutes mounts the handler on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HealthCheck)
	r.Post("/api/ingest", h.Upload)
	r.Get("/api/ingest/{runId}", h.GetResult)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// Upload ingests the multipart "file" field. diagnostics=true attaches
// field-level warnings to the response.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "File too large or malformed upload",
			Details: err.Error(),
		})
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "No file uploaded",
		})
		return
	}
	defer file.Close()

	diagnostics, _ := strconv.ParseBool(r.FormValue("diagnostics"))

	ctx := r.Context()
	var (
		resp interface{}
		perr error
	)
	if diagnostics {
		resp, perr = h.svc.ProcessWithDiagnostics(ctx, header.Filename, file, diag.NewCollector(h.diagLimit))
	} else {
		resp, perr = h.svc.Process(ctx, header.Filename, file)
	}
	if perr != nil {
		h.writeError(w, perr)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetResult returns a persisted run.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")

	data, err := h.svc.Lookup(r.Context(), runID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	body := ErrorResponse{Code: string(apperrors.CodeOf(err)), Message: err.Error()}
	if se, ok := apperrors.As(err); ok {
		body.Message = se.Message
		body.Details = se.Details
	}
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed", map[string]interface{}{"code": body.Code})
	}
	writeJSON(w, status, body)
}

// StatusFor maps an ingestion error to an HTTP status.
func StatusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeUnsupportedFormat, apperrors.ErrCodeStructureDetection:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeParseFailed:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

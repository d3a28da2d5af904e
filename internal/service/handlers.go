package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pharmextract/backend/internal/extraction"
	"github.com/pharmextract/backend/internal/sanitize"
)

const (
	headerModelID  = "X-Model-ID"
	headerUseCache = "X-Use-Cache"
	headerSampleID = "X-Sample-ID"

	// predictTimeout bounds one request end to end, covering lease waits
	// on top of the invoker's own model-call timeout.
	predictTimeout = 45 * time.Second
)

// Handler exposes the structuring service over HTTP.
type Handler struct {
	svc *StructureService
}

// NewHandler wraps a structuring service in an HTTP handler.
func NewHandler(svc *StructureService) *Handler {
	return &Handler{svc: svc}
}

// Register installs the service routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/predict", h.handlePredict)
	mux.HandleFunc("/cache/stats", h.handleCacheStats)
	mux.HandleFunc("/health", h.handleHealth)
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "Use POST with the report text as the request body", 0)
		return
	}

	reqID := uuid.New().String()[:8]

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "Could not read request body", 0)
		return
	}

	modelID := strings.TrimSpace(r.Header.Get(headerModelID))
	if modelID != "" && !extraction.IsSupportedModel(modelID) {
		log.Printf("predict [req %s]: unsupported model %q", reqID, modelID)
		writeError(w, http.StatusBadRequest, "Unsupported model",
			"Model "+modelID+" is not available. Omit "+headerModelID+" to use the default.", 0)
		return
	}

	useCache := true
	if v := r.Header.Get(headerUseCache); v != "" {
		useCache = parseBoolHeader(v)
	}

	ctx, cancel := context.WithTimeout(r.Context(), predictTimeout)
	defer cancel()

	resp, err := h.svc.Predict(ctx, PredictRequest{
		RawText:   string(body),
		ModelID:   modelID,
		SampleID:  strings.TrimSpace(r.Header.Get(headerSampleID)),
		UseCache:  useCache,
		RequestID: reqID,
	})
	if err != nil {
		h.writePredictError(w, reqID, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writePredictError(w http.ResponseWriter, reqID string, err error) {
	var verr *sanitize.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Kind, verr.Message, verr.MaxLength)
		return
	}

	var xerr *extraction.ExtractionError
	if errors.As(err, &xerr) {
		log.Printf("predict [req %s]: extraction failed: %v", reqID, err)
		// Upstream details stay in the log; clients get a stable envelope.
		writeError(w, http.StatusBadGateway, "Extraction failed",
			"The structuring model could not process this report. Please try again.", 0)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		log.Printf("predict [req %s]: timed out: %v", reqID, err)
		writeError(w, http.StatusGatewayTimeout, "Request timed out",
			"Structuring took too long. Please try again.", 0)
		return
	}

	log.Printf("predict [req %s]: internal error: %v", reqID, err)
	writeError(w, http.StatusInternalServerError, "Internal error",
		"An unexpected error occurred", 0)
}

func (h *Handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "Use GET", 0)
		return
	}

	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		log.Printf("cache stats: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error", "Could not read cache statistics", 0)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"model":  h.svc.DefaultModelID(),
	})
}

// parseBoolHeader treats anything except explicit negatives as true.
func parseBoolHeader(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0", "no", "off":
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string, maxLength int) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message, MaxLength: maxLength})
}

package barcode

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/optica-pos/internal/common"
	"github.com/noah-isme/optica-pos/internal/obs"
)

// MaxBatch caps how many codes one request may issue.
const MaxBatch = 50

// Handler exposes barcode issuance and validation endpoints.
type Handler struct {
	registry *Registry
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Registry *Registry
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{registry: cfg.Registry}
}

// Report describes the outcome of validating a code.
type Report struct {
	Code               string    `json:"code"`
	Valid              bool      `json:"valid"`
	ExpectedCheckDigit *int      `json:"expectedCheckDigit,omitempty"`
	Segments           *Segments `json:"segments,omitempty"`
	Reserved           bool      `json:"reserved"`
}

type checkDigitRequest struct {
	Digits string `json:"digits" validate:"required,len=12,numeric"`
}

// Issue handles POST /api/v1/barcodes?count=n.
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "barcode registry not configured", nil)
		return
	}
	count := common.QueryInt(r, "count", 1)
	if count < 1 || count > MaxBatch {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("count must be between 1 and %d", MaxBatch), map[string]string{"field": "count"})
		return
	}
	codes, err := h.registry.IssueN(r.Context(), count)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, codes)
}

// Inspect handles GET /api/v1/barcodes/{code}.
func (h *Handler) Inspect(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	report := Report{Code: code, Valid: Validate(code)}
	obs.ObserveBarcodeValidation(report.Valid)

	if seg, ok := Split(code); ok {
		report.Segments = &seg
		if d, err := CheckDigit(code[:Length-1]); err == nil {
			report.ExpectedCheckDigit = &d
		}
	}
	if report.Valid && h.registry != nil {
		reserved, err := h.registry.Reserved(r.Context(), code)
		if err != nil {
			writeError(w, err)
			return
		}
		report.Reserved = reserved
	}
	common.Data(w, http.StatusOK, report)
}

// ComputeCheckDigit handles POST /api/v1/barcodes/check-digit.
func (h *Handler) ComputeCheckDigit(w http.ResponseWriter, r *http.Request) {
	var req checkDigitRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	code, err := Complete(req.Digits)
	if err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), map[string]string{"field": "digits"})
		return
	}
	d := int(code[Length-1] - '0')
	common.Data(w, http.StatusOK, map[string]any{"code": code, "checkDigit": d})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrExhausted):
		common.JSONError(w, http.StatusServiceUnavailable, "BARCODE_EXHAUSTED", "could not find a free code, retry later", nil)
	case errors.Is(err, ErrUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "BARCODE_STORE_UNAVAILABLE", "barcode reservations are temporarily unavailable", nil)
	default:
		common.WriteError(w, err)
	}
}

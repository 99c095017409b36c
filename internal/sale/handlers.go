package sale

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/optica-pos/internal/common"
	"github.com/noah-isme/optica-pos/internal/pricing"
)

// Handler exposes sale workflow endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// PaymentView renders a Payment.
type PaymentView struct {
	Amount    string        `json:"amount"`
	Method    PaymentMethod `json:"method"`
	Reference string        `json:"reference,omitempty"`
	CardType  string        `json:"cardType,omitempty"`
	PaidAt    time.Time     `json:"paidAt"`
}

func newPaymentView(p Payment) PaymentView {
	return PaymentView{
		Amount:    pricing.Display(p.Amount),
		Method:    p.Method,
		Reference: p.Reference,
		CardType:  p.CardType,
		PaidAt:    p.PaidAt,
	}
}

// View is the client representation of a Sale with amounts rounded to cents.
type View struct {
	ID            uuid.UUID          `json:"id"`
	Branch        string             `json:"branch"`
	Customer      Customer           `json:"customer"`
	Lines         []pricing.LineView `json:"lines"`
	Totals        pricing.TotalsView `json:"totals"`
	Bases         pricing.BasesView  `json:"bases"`
	Payments      []PaymentView      `json:"payments"`
	PaymentStatus PaymentStatus      `json:"paymentStatus"`
	PickupStatus  PickupStatus       `json:"pickupStatus"`
	DeliveryDate  *string            `json:"deliveryDate,omitempty"`
	Voided        bool               `json:"voided"`
	VoidReason    string             `json:"voidReason,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// NewView renders s.
func NewView(s *Sale) View {
	v := View{
		ID:            s.ID,
		Branch:        s.Branch,
		Customer:      s.Customer,
		Lines:         make([]pricing.LineView, 0, len(s.Lines)),
		Totals:        pricing.NewTotalsView(s.Totals),
		Bases:         pricing.NewBasesView(s.Bases),
		Payments:      make([]PaymentView, 0, len(s.Payments)),
		PaymentStatus: s.PaymentStatus,
		PickupStatus:  s.PickupStatus,
		Voided:        s.Voided,
		VoidReason:    s.VoidReason,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	for _, l := range s.Lines {
		v.Lines = append(v.Lines, pricing.NewLineView(l))
	}
	for _, p := range s.Payments {
		v.Payments = append(v.Payments, newPaymentView(p))
	}
	if s.DeliveryDate != nil {
		d := s.DeliveryDate.Format(time.DateOnly)
		v.DeliveryDate = &d
	}
	return v
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// Create handles POST /api/v1/sales.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	sale, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, NewView(sale))
}

// List handles GET /api/v1/sales.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	q := r.URL.Query()
	filter := ListFilter{
		Branch:        strings.TrimSpace(q.Get("branch")),
		PaymentStatus: PaymentStatus(strings.ToUpper(strings.TrimSpace(q.Get("payment_status")))),
		PickupStatus:  PickupStatus(strings.ToUpper(strings.TrimSpace(q.Get("pickup_status")))),
		Page:          page,
		PerPage:       perPage,
	}
	sales, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make([]View, 0, len(sales))
	for i := range sales {
		views = append(views, NewView(&sales[i]))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       views,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// Get handles GET /api/v1/sales/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewView(sale))
}

// History handles GET /api/v1/sales/{id}/events.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	history, err := h.service.History(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, history)
}

// RegisterPayment handles POST /api/v1/sales/{id}/payments.
func (h *Handler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	var in PaymentInput
	if err := common.DecodeJSON(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	sale, err := h.service.RegisterPayment(r.Context(), id, in)
	h.respond(w, sale, err)
}

// SendToLab handles POST /api/v1/sales/{id}/lab.
func (h *Handler) SendToLab(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if id, ok := h.saleID(w, r); ok {
		sale, err := h.service.SendToLab(r.Context(), id)
		h.respond(w, sale, err)
	}
}

// MarkReady handles POST /api/v1/sales/{id}/ready.
func (h *Handler) MarkReady(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if id, ok := h.saleID(w, r); ok {
		sale, err := h.service.MarkReady(r.Context(), id)
		h.respond(w, sale, err)
	}
}

// MarkDelivered handles POST /api/v1/sales/{id}/deliver.
func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if id, ok := h.saleID(w, r); ok {
		sale, err := h.service.MarkDelivered(r.Context(), id)
		h.respond(w, sale, err)
	}
}

// Void handles POST /api/v1/sales/{id}/void.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	var req voidRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	sale, err := h.service.Void(r.Context(), id, req.Reason)
	h.respond(w, sale, err)
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "sale service not configured", nil)
		return false
	}
	return true
}

func (h *Handler) saleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid sale id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respond(w http.ResponseWriter, sale *Sale, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewView(sale))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "sale not found", nil)
	case errors.Is(err, ErrAlreadyVoided):
		common.JSONError(w, http.StatusConflict, "SALE_VOIDED", err.Error(), nil)
	case errors.Is(err, ErrDelivered):
		common.JSONError(w, http.StatusConflict, "SALE_DELIVERED", err.Error(), nil)
	case errors.Is(err, ErrBalanceDue):
		common.JSONError(w, http.StatusConflict, "BALANCE_DUE", err.Error(), nil)
	case errors.Is(err, ErrBadTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, ErrNothingToPrice):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), map[string]string{"field": "lines"})
	default:
		common.WriteError(w, err)
	}
}

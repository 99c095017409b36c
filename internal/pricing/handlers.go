package pricing

import (
	"net/http"
	"strings"

	"github.com/noah-isme/optica-pos/internal/common"
	"github.com/noah-isme/optica-pos/internal/obs"
)

// Handler exposes stateless pricing endpoints used by the point of sale.
type Handler struct {
	pricer   *Pricer
	currency string
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Pricer   *Pricer
	Currency string
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	pricer := cfg.Pricer
	if pricer == nil {
		pricer = Default()
	}
	currency := strings.TrimSpace(cfg.Currency)
	if currency == "" {
		currency = "PEN"
	}
	return &Handler{pricer: pricer, currency: currency}
}

// LineRequest is one (item, quantity, discount) triple to price.
type LineRequest struct {
	UnitPrice       Money       `json:"unitPrice"`
	TaxCategory     TaxCategory `json:"taxCategory" validate:"required"`
	Quantity        int         `json:"quantity"`
	DiscountPercent Money       `json:"discountPercent"`
	Stock           *int        `json:"stock,omitempty"`
}

type linesRequest struct {
	Lines []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

type cartRequest struct {
	Lines   []LineRequest `json:"lines" validate:"required,min=1,dive"`
	Advance Money         `json:"advance"`
}

// LineView is a priced line rendered with two decimal places.
type LineView struct {
	TaxCategory     TaxCategory `json:"taxCategory"`
	Quantity        int         `json:"quantity"`
	UnitPrice       string      `json:"unitPrice"`
	DiscountPercent string      `json:"discountPercent"`
	Subtotal        string      `json:"subtotal"`
	DiscountAmount  string      `json:"discountAmount"`
	NetOfDiscount   string      `json:"netOfDiscount"`
	TaxAmount       string      `json:"taxAmount"`
	LineTotal       string      `json:"lineTotal"`
}

// TotalsView renders CartTotals.
type TotalsView struct {
	Subtotal         string `json:"subtotal"`
	Discount         string `json:"discount"`
	Tax              string `json:"tax"`
	Total            string `json:"total"`
	Advance          string `json:"advance"`
	RemainingBalance string `json:"remainingBalance"`
}

// BasesView renders Bases.
type BasesView struct {
	Taxed      string `json:"taxed"`
	Exempt     string `json:"exempt"`
	Unaffected string `json:"unaffected"`
	Export     string `json:"export"`
}

// NewLineView renders l for clients.
func NewLineView(l LineItem) LineView {
	return LineView{
		TaxCategory:     l.Item.TaxCategory,
		Quantity:        l.Quantity,
		UnitPrice:       Display(l.Item.UnitPrice),
		DiscountPercent: l.DiscountPercent.String(),
		Subtotal:        Display(l.Subtotal),
		DiscountAmount:  Display(l.DiscountAmount),
		NetOfDiscount:   Display(l.NetOfDiscount()),
		TaxAmount:       Display(l.TaxAmount),
		LineTotal:       Display(l.LineTotal),
	}
}

// NewTotalsView renders t for clients.
func NewTotalsView(t CartTotals) TotalsView {
	return TotalsView{
		Subtotal:         Display(t.Subtotal),
		Discount:         Display(t.Discount),
		Tax:              Display(t.Tax),
		Total:            Display(t.Total),
		Advance:          Display(t.Advance),
		RemainingBalance: Display(t.RemainingBalance),
	}
}

// NewBasesView renders b for clients.
func NewBasesView(b Bases) BasesView {
	return BasesView{
		Taxed:      Display(b.Taxed),
		Exempt:     Display(b.Exempt),
		Unaffected: Display(b.Unaffected),
		Export:     Display(b.Export),
	}
}

// PriceLines validates and prices every request line, reporting the first
// failure with its index in the field name.
func (p *Pricer) PriceLines(reqs []LineRequest) ([]LineItem, error) {
	lines := make([]LineItem, 0, len(reqs))
	for i, req := range reqs {
		if req.Stock != nil {
			if err := CheckQuantity(req.Quantity, *req.Stock); err != nil {
				obs.ObservePricedLine(string(req.TaxCategory), "rejected")
				return nil, indexed(i, err)
			}
		}
		item := CatalogItem{UnitPrice: req.UnitPrice, TaxCategory: req.TaxCategory}
		if req.Stock != nil {
			item.Stock = *req.Stock
		}
		line, err := p.ComputeLine(item, req.Quantity, req.DiscountPercent)
		if err != nil {
			obs.ObservePricedLine(string(req.TaxCategory), "rejected")
			return nil, indexed(i, err)
		}
		obs.ObservePricedLine(string(req.TaxCategory), "ok")
		lines = append(lines, line)
	}
	return lines, nil
}

// Lines handles POST /api/v1/pricing/lines.
func (h *Handler) Lines(w http.ResponseWriter, r *http.Request) {
	var req linesRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	lines, err := h.pricer.PriceLines(req.Lines)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	views := make([]LineView, 0, len(lines))
	for _, l := range lines {
		views = append(views, NewLineView(l))
	}
	common.Data(w, http.StatusOK, views)
}

// Cart handles POST /api/v1/pricing/cart.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	lines, err := h.pricer.PriceLines(req.Lines)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	totals := Aggregate(lines, req.Advance)
	if err := CheckAdvance(req.Advance, totals.Total); err != nil {
		common.WriteError(w, err)
		return
	}
	views := make([]LineView, 0, len(lines))
	for _, l := range lines {
		views = append(views, NewLineView(l))
	}
	common.Data(w, http.StatusOK, map[string]any{
		"currency": h.currency,
		"igvRate":  h.pricer.Rate().String(),
		"lines":    views,
		"totals":   NewTotalsView(totals),
		"bases":    NewBasesView(ByCategory(lines)),
	})
}

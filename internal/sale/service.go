package sale

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/optica-pos/internal/events"
	"github.com/noah-isme/optica-pos/internal/obs"
	"github.com/noah-isme/optica-pos/internal/pricing"
)

// DefaultLabTurnaround is how long the laboratory is given to finish lenses.
const DefaultLabTurnaround = 5 * 24 * time.Hour

// Store persists sales.
type Store interface {
	Create(ctx context.Context, s *Sale) error
	Get(ctx context.Context, id uuid.UUID) (*Sale, error)
	Update(ctx context.Context, s *Sale) error
	List(ctx context.Context, f ListFilter) ([]Sale, int64, error)
}

// Locker serialises mutations of the same sale.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ListFilter narrows List results. Empty fields match everything.
type ListFilter struct {
	Branch        string
	PaymentStatus PaymentStatus
	PickupStatus  PickupStatus
	Page          int
	PerPage       int
}

func (f ListFilter) offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}

// CreateInput is the cart a sale is opened from.
type CreateInput struct {
	Branch    string                `json:"branch" validate:"required"`
	Customer  Customer              `json:"customer"`
	Lines     []pricing.LineRequest `json:"lines" validate:"required,min=1,dive"`
	Advance   pricing.Money         `json:"advance"`
	Method    PaymentMethod         `json:"method,omitempty"`
	Reference string                `json:"reference,omitempty"`
	CardType  string                `json:"cardType,omitempty"`
}

// PaymentInput is a payment against an open sale.
type PaymentInput struct {
	Amount    pricing.Money `json:"amount"`
	Method    PaymentMethod `json:"method" validate:"required"`
	Reference string        `json:"reference,omitempty"`
	CardType  string        `json:"cardType,omitempty"`
}

// ServiceConfig configures the Service dependencies.
type ServiceConfig struct {
	Store         Store
	Pricer        *pricing.Pricer
	Locker        Locker
	LockTTL       time.Duration
	LabTurnaround time.Duration
	Events        *events.Bus
	Logger        zerolog.Logger
	Now           func() time.Time
}

// Service runs the sale workflow.
type Service struct {
	store         Store
	pricer        *pricing.Pricer
	locker        Locker
	lockTTL       time.Duration
	labTurnaround time.Duration
	events        *events.Bus
	log           zerolog.Logger
	now           func() time.Time
}

// NewService constructs a Service. Without a Locker, mutations are serialised
// within the process only.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("sale: store is required")
	}
	svc := &Service{
		store:         cfg.Store,
		pricer:        cfg.Pricer,
		locker:        cfg.Locker,
		lockTTL:       cfg.LockTTL,
		labTurnaround: cfg.LabTurnaround,
		events:        cfg.Events,
		log:           cfg.Logger,
		now:           cfg.Now,
	}
	if svc.pricer == nil {
		svc.pricer = pricing.Default()
	}
	if svc.locker == nil {
		svc.locker = &localLocker{}
	}
	if svc.lockTTL <= 0 {
		svc.lockTTL = 10 * time.Second
	}
	if svc.labTurnaround <= 0 {
		svc.labTurnaround = DefaultLabTurnaround
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// Create prices the cart, records any advance as the first payment and stores the sale.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Sale, error) {
	sale, err := s.build(in)
	obs.ObserveSaleTransition("create", err)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, sale); err != nil {
		return nil, err
	}
	s.log.Info().Str("sale_id", sale.ID.String()).Str("branch", sale.Branch).
		Str("total", pricing.Display(sale.Totals.Total)).Str("payment_status", string(sale.PaymentStatus)).
		Msg("sale created")
	s.emit(ctx, events.TopicSaleCreated, sale)
	return sale, nil
}

func (s *Service) build(in CreateInput) (*Sale, error) {
	if strings.TrimSpace(in.Branch) == "" {
		return nil, fieldError("branch", "required")
	}
	if len(in.Lines) == 0 {
		return nil, ErrNothingToPrice
	}
	if err := in.Customer.Validate(); err != nil {
		return nil, err
	}
	lines, err := s.pricer.PriceLines(in.Lines)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sale := &Sale{
		ID:           uuid.New(),
		Branch:       strings.TrimSpace(in.Branch),
		Customer:     in.Customer,
		Lines:        lines,
		Payments:     []Payment{},
		PickupStatus: PickupPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	sale.Totals.Advance = decimal.Zero
	sale.recalculate()
	if err := pricing.CheckAdvance(in.Advance, sale.Totals.Total); err != nil {
		return nil, err
	}
	if in.Advance.IsPositive() {
		payment := Payment{Amount: in.Advance, Method: in.Method, Reference: in.Reference, CardType: in.CardType}
		if err := sale.ApplyPayment(payment, now); err != nil {
			return nil, err
		}
	}
	return sale, nil
}

// Get loads a sale by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return s.store.Get(ctx, id)
}

// List returns a page of sales and the total count matching f.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Sale, int64, error) {
	if f.PerPage <= 0 {
		f.PerPage = 20
	}
	if f.Page < 1 {
		f.Page = 1
	}
	return s.store.List(ctx, f)
}

// RegisterPayment applies a payment to the sale balance.
func (s *Service) RegisterPayment(ctx context.Context, id uuid.UUID, in PaymentInput) (*Sale, error) {
	return s.mutate(ctx, events.TopicPaymentRegistered, id, func(sale *Sale, now time.Time) error {
		return sale.ApplyPayment(Payment{
			Amount:    in.Amount,
			Method:    in.Method,
			Reference: in.Reference,
			CardType:  in.CardType,
		}, now)
	})
}

// SendToLab moves the order to the laboratory.
func (s *Service) SendToLab(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return s.mutate(ctx, events.TopicSaleSentToLab, id, func(sale *Sale, now time.Time) error {
		return sale.SendToLab(now, s.labTurnaround)
	})
}

// MarkReady flags the order as ready for pickup.
func (s *Service) MarkReady(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return s.mutate(ctx, events.TopicSaleReady, id, func(sale *Sale, now time.Time) error {
		return sale.MarkReady(now)
	})
}

// MarkDelivered records the hand-over to the customer.
func (s *Service) MarkDelivered(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return s.mutate(ctx, events.TopicSaleDelivered, id, func(sale *Sale, now time.Time) error {
		return sale.MarkDelivered(now)
	})
}

// Void cancels the sale.
func (s *Service) Void(ctx context.Context, id uuid.UUID, reason string) (*Sale, error) {
	return s.mutate(ctx, events.TopicSaleVoided, id, func(sale *Sale, now time.Time) error {
		return sale.Void(reason, now)
	})
}

// History returns the recorded workflow events of a sale, oldest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]events.Event, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.events.History(ctx, id)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []events.Event{}
	}
	return history, nil
}

var actionByTopic = map[string]string{
	events.TopicPaymentRegistered: "payment",
	events.TopicSaleSentToLab:     "lab",
	events.TopicSaleReady:         "ready",
	events.TopicSaleDelivered:     "deliver",
	events.TopicSaleVoided:        "void",
}

func (s *Service) mutate(ctx context.Context, topic string, id uuid.UUID, fn func(*Sale, time.Time) error) (*Sale, error) {
	action := actionByTopic[topic]
	var out *Sale
	err := s.locker.WithLock(ctx, "sale:"+id.String(), s.lockTTL, func(ctx context.Context) error {
		sale, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(sale, s.now().UTC()); err != nil {
			return err
		}
		if err := s.store.Update(ctx, sale); err != nil {
			return err
		}
		out = sale
		return nil
	})
	obs.ObserveSaleTransition(action, err)
	if err != nil {
		s.log.Warn().Err(err).Str("sale_id", id.String()).Str("action", action).Msg("sale transition rejected")
		return nil, err
	}
	s.log.Info().Str("sale_id", id.String()).Str("action", action).
		Str("payment_status", string(out.PaymentStatus)).Str("pickup_status", string(out.PickupStatus)).
		Msg("sale updated")
	s.emit(ctx, topic, out)
	return out, nil
}

type eventPayload struct {
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	PickupStatus  PickupStatus  `json:"pickupStatus"`
	Total         string        `json:"total"`
	Balance       string        `json:"balance"`
	Payment       *PaymentView  `json:"payment,omitempty"`
	VoidReason    string        `json:"voidReason,omitempty"`
}

// emit records the transition. The sale is already stored, so a failure is
// only logged.
func (s *Service) emit(ctx context.Context, topic string, sale *Sale) {
	if s.events == nil {
		return
	}
	payload := eventPayload{
		PaymentStatus: sale.PaymentStatus,
		PickupStatus:  sale.PickupStatus,
		Total:         pricing.Display(sale.Totals.Total),
		Balance:       pricing.Display(sale.Balance()),
		VoidReason:    sale.VoidReason,
	}
	if topic == events.TopicPaymentRegistered && len(sale.Payments) > 0 {
		last := newPaymentView(sale.Payments[len(sale.Payments)-1])
		payload.Payment = &last
	}
	if _, err := s.events.Emit(ctx, topic, sale.ID, payload); err != nil {
		s.log.Warn().Err(err).Str("sale_id", sale.ID.String()).Str("topic", topic).Msg("record sale event")
	}
}

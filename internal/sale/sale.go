// Package sale holds the optical sale lifecycle: pricing a cart into a sale,
// taking payments against its balance, and tracking the lens order from the
// laboratory to the customer's hands.
package sale

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/optica-pos/internal/pricing"
)

// PaymentStatus is derived from the sale balance; it is never set directly.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentVoided  PaymentStatus = "VOIDED"
)

// PickupStatus tracks the physical order.
type PickupStatus string

const (
	PickupPending    PickupStatus = "PENDING"
	PickupLaboratory PickupStatus = "LABORATORY"
	PickupReady      PickupStatus = "READY"
	PickupDelivered  PickupStatus = "DELIVERED"
	PickupVoided     PickupStatus = "VOIDED"
)

// PaymentMethod is how a payment was tendered.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodCard     PaymentMethod = "CARD"
	MethodTransfer PaymentMethod = "TRANSFER"
	MethodYape     PaymentMethod = "YAPE"
	MethodPlin     PaymentMethod = "PLIN"
	MethodMixed    PaymentMethod = "MIXED"
)

// Valid reports whether m is an accepted tender.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodTransfer, MethodYape, MethodPlin, MethodMixed:
		return true
	}
	return false
}

// DocumentType identifies the customer's identity document.
type DocumentType string

const (
	DocNone DocumentType = ""
	DocDNI  DocumentType = "DNI"
	DocRUC  DocumentType = "RUC"
	DocCE   DocumentType = "CE"
)

var (
	ErrNotFound       = errors.New("sale not found")
	ErrAlreadyVoided  = errors.New("sale already voided")
	ErrDelivered      = errors.New("sale already delivered")
	ErrBalanceDue     = errors.New("sale has an outstanding balance")
	ErrBadTransition  = errors.New("pickup transition not allowed")
	ErrNothingToPrice = errors.New("sale has no lines")
)

var (
	rucPattern = regexp.MustCompile(`^\d{11}$`)
	dniPattern = regexp.MustCompile(`^\d{8}$`)
)

// Customer is the buyer recorded on the sale.
type Customer struct {
	Name           string       `json:"name"`
	DocumentType   DocumentType `json:"documentType"`
	DocumentNumber string       `json:"documentNumber"`
	Address        string       `json:"address,omitempty"`
	Phone          string       `json:"phone,omitempty"`
}

// Validate enforces document format rules. RUC holders are businesses and
// must carry a fiscal address.
func (c Customer) Validate() error {
	switch c.DocumentType {
	case DocNone, DocCE:
	case DocDNI:
		if c.DocumentNumber != "" && !dniPattern.MatchString(c.DocumentNumber) {
			return fieldError("customer.documentNumber", "DNI must have 8 digits")
		}
	case DocRUC:
		if c.DocumentNumber != "" && !rucPattern.MatchString(c.DocumentNumber) {
			return fieldError("customer.documentNumber", "RUC must have 11 digits")
		}
		if strings.TrimSpace(c.Address) == "" {
			return fieldError("customer.address", "required for RUC customers")
		}
	default:
		return fieldError("customer.documentType", fmt.Sprintf("unknown document type %q", c.DocumentType))
	}
	return nil
}

// Payment is one tender applied to the sale balance.
type Payment struct {
	Amount    pricing.Money `json:"amount"`
	Method    PaymentMethod `json:"method"`
	Reference string        `json:"reference,omitempty"`
	CardType  string        `json:"cardType,omitempty"`
	PaidAt    time.Time     `json:"paidAt"`
}

// Sale is the persisted aggregate.
type Sale struct {
	ID            uuid.UUID          `json:"id"`
	Branch        string             `json:"branch"`
	Customer      Customer           `json:"customer"`
	Lines         []pricing.LineItem `json:"lines"`
	Totals        pricing.CartTotals `json:"totals"`
	Bases         pricing.Bases      `json:"bases"`
	Payments      []Payment          `json:"payments"`
	PaymentStatus PaymentStatus      `json:"paymentStatus"`
	PickupStatus  PickupStatus       `json:"pickupStatus"`
	DeliveryDate  *time.Time         `json:"deliveryDate,omitempty"`
	Voided        bool               `json:"voided"`
	VoidReason    string             `json:"voidReason,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// Balance is the outstanding amount, never negative.
func (s *Sale) Balance() pricing.Money {
	return s.Totals.RemainingBalance
}

// recalculate refreshes totals, bases and payment status from lines and advance.
func (s *Sale) recalculate() {
	advance := s.Totals.Advance
	s.Totals = pricing.Aggregate(s.Lines, advance)
	if s.Totals.RemainingBalance.IsNegative() {
		s.Totals.RemainingBalance = decimal.Zero
	}
	s.Bases = pricing.ByCategory(s.Lines)
	s.PaymentStatus = derivePaymentStatus(s)
}

func derivePaymentStatus(s *Sale) PaymentStatus {
	switch {
	case s.Voided:
		return PaymentVoided
	case s.Totals.RemainingBalance.IsZero() && s.Totals.Total.IsPositive():
		return PaymentPaid
	case s.Totals.Advance.IsPositive() && s.Totals.RemainingBalance.IsPositive():
		return PaymentPartial
	default:
		return PaymentPending
	}
}

// ApplyPayment adds p to the advance. The amount must be positive and no
// larger than the balance; the card type is kept only for card payments.
func (s *Sale) ApplyPayment(p Payment, now time.Time) error {
	if s.Voided {
		return ErrAlreadyVoided
	}
	if err := pricing.CheckAmount("amount", p.Amount); err != nil {
		return err
	}
	if !p.Amount.IsPositive() {
		return fieldError("amount", "must be greater than zero")
	}
	if p.Amount.GreaterThan(s.Balance()) {
		return fieldError("amount", fmt.Sprintf("exceeds outstanding balance %s", pricing.Display(s.Balance())))
	}
	if !p.Method.Valid() {
		return fieldError("method", fmt.Sprintf("unknown payment method %q", p.Method))
	}
	if p.Method != MethodCard {
		p.CardType = ""
	}
	if p.Method == MethodCash {
		p.Reference = ""
	}
	p.PaidAt = now
	s.Payments = append(s.Payments, p)
	s.Totals.Advance = s.Totals.Advance.Add(p.Amount)
	s.recalculate()
	s.UpdatedAt = now
	return nil
}

// SendToLab moves a pending order to the laboratory and sets the promised
// delivery date.
func (s *Sale) SendToLab(now time.Time, turnaround time.Duration) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.PickupStatus != PickupPending {
		return transitionError(s.PickupStatus, PickupLaboratory)
	}
	due := now.Add(turnaround)
	s.PickupStatus = PickupLaboratory
	s.DeliveryDate = &due
	s.UpdatedAt = now
	return nil
}

// MarkReady flags the order as ready for pickup. Orders without lab work can
// skip the laboratory step.
func (s *Sale) MarkReady(now time.Time) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.PickupStatus != PickupPending && s.PickupStatus != PickupLaboratory {
		return transitionError(s.PickupStatus, PickupReady)
	}
	s.PickupStatus = PickupReady
	s.UpdatedAt = now
	return nil
}

// MarkDelivered hands the order over. The balance must be settled.
func (s *Sale) MarkDelivered(now time.Time) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.PickupStatus != PickupReady {
		return transitionError(s.PickupStatus, PickupDelivered)
	}
	if s.Balance().IsPositive() {
		return fmt.Errorf("%w: %s pending", ErrBalanceDue, pricing.Display(s.Balance()))
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	s.PickupStatus = PickupDelivered
	s.DeliveryDate = &today
	s.UpdatedAt = now
	return nil
}

// Void cancels the sale and zeroes every amount.
func (s *Sale) Void(reason string, now time.Time) error {
	if s.Voided {
		return ErrAlreadyVoided
	}
	if s.PickupStatus == PickupDelivered {
		return ErrDelivered
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fieldError("reason", "required")
	}
	s.Voided = true
	s.VoidReason = reason
	s.PickupStatus = PickupVoided
	s.PaymentStatus = PaymentVoided
	s.Totals = pricing.CartTotals{
		Subtotal:         decimal.Zero,
		Discount:         decimal.Zero,
		Tax:              decimal.Zero,
		Total:            decimal.Zero,
		Advance:          decimal.Zero,
		RemainingBalance: decimal.Zero,
	}
	s.Bases = pricing.ByCategory(nil)
	s.UpdatedAt = now
	return nil
}

func (s *Sale) checkOpen() error {
	if s.Voided {
		return ErrAlreadyVoided
	}
	if s.PickupStatus == PickupDelivered {
		return ErrDelivered
	}
	return nil
}

func transitionError(from, to PickupStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrBadTransition, from, to)
}

func fieldError(field, reason string) error {
	return &pricing.ValidationError{Field: field, Reason: reason}
}

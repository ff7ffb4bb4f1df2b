package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/guregu/null.v4"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
	"vpms_console/internal/gateway"
	"vpms_console/internal/logger"
	"vpms_console/internal/payment"
)

// checkoutIdle is how long a stalled checkout stays open after a failed step.
const checkoutIdle = 15 * time.Minute

// BillingService creates invoices and runs their checkouts. At most one
// checkout is open per invoice.
type BillingService struct {
	api    *gateway.Client
	bus    *bus.Bus
	settle time.Duration
	idle   time.Duration
	logger *zap.Logger

	mu        sync.Mutex
	checkouts map[int64]*payment.Checkout
}

func NewBillingService(api *gateway.Client, b *bus.Bus, settle time.Duration, l *zap.Logger) *BillingService {
	return &BillingService{
		api:       api,
		bus:       b,
		settle:    settle,
		idle:      checkoutIdle,
		logger:    logger.Named(l, "billing"),
		checkouts: make(map[int64]*payment.Checkout),
	}
}

// StartPayment opens (or returns the open) checkout for an invoice.
func (s *BillingService) StartPayment(ctx context.Context, invoiceID int64) (*payment.Checkout, error) {
	if c, ok := s.Checkout(invoiceID); ok {
		return c, nil
	}
	inv, err := s.api.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("load invoice %d: %w", invoiceID, err)
	}
	if inv == nil {
		return nil, fmt.Errorf("load invoice %d: empty response", invoiceID)
	}
	return s.open(*inv)
}

func (s *BillingService) open(inv domain.Invoice) (*payment.Checkout, error) {
	if inv.Status.Terminal() {
		return nil, conflict("Invoice is already " + string(inv.Status))
	}

	s.mu.Lock()
	if c, ok := s.checkouts[inv.InvoiceID]; ok {
		s.mu.Unlock()
		return c, nil
	}
	c := payment.NewCheckout(inv, s.api, s.bus, s.settle, s.logger)
	if err := c.Begin(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.checkouts[inv.InvoiceID] = c
	s.mu.Unlock()

	go func() {
		<-c.Done()
		s.mu.Lock()
		if s.checkouts[inv.InvoiceID] == c {
			delete(s.checkouts, inv.InvoiceID)
		}
		s.mu.Unlock()
	}()
	return c, nil
}

func (s *BillingService) Checkout(invoiceID int64) (*payment.Checkout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.checkouts[invoiceID]
	return c, ok
}

// Pay drives a checkout from method selection to the pay call in one step.
// The checkout completes on its own once the settle delay elapses.
func (s *BillingService) Pay(ctx context.Context, invoiceID int64, method domain.PaymentMethod, upiID string) (*payment.Checkout, error) {
	if !method.Valid() {
		return nil, invalid("paymentMethod", "Please select a payment method")
	}
	c, err := s.StartPayment(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return c, s.drive(ctx, c, method, upiID)
}

func (s *BillingService) drive(ctx context.Context, c *payment.Checkout, method domain.PaymentMethod, upiID string) (err error) {
	defer func() {
		if err != nil {
			s.expireWhenIdle(c)
		}
	}()
	if err := c.SelectMethod(method); err != nil {
		return err
	}
	if method == domain.PaymentUPI {
		if err := c.SubmitUPI(upiID); err != nil {
			return invalid("upiId", err.Error())
		}
	}
	return c.Confirm(ctx)
}

// expireWhenIdle closes a checkout nobody returns to after a failed step.
// A retry moves the checkout on, so the older timer finds it busy and leaves
// it alone.
func (s *BillingService) expireWhenIdle(c *payment.Checkout) {
	time.AfterFunc(s.idle, func() {
		if c.ExpireIdle(s.idle) {
			s.logger.Info("stalled checkout closed", zap.Int64("invoice_id", c.Snapshot().InvoiceID))
		}
	})
}

func (s *BillingService) CancelCheckout(invoiceID int64) error {
	c, ok := s.Checkout(invoiceID)
	if !ok {
		return nil
	}
	return c.Cancel()
}

// Cancel voids an unpaid invoice.
func (s *BillingService) Cancel(ctx context.Context, invoiceID int64) (*domain.Invoice, error) {
	inv, err := s.api.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("load invoice %d: %w", invoiceID, err)
	}
	if inv != nil && inv.Status != domain.InvoiceUnpaid {
		return nil, conflict("Only unpaid invoices can be cancelled")
	}
	if c, ok := s.Checkout(invoiceID); ok && c.State() == payment.StateSettling {
		return nil, conflict("A payment for this invoice is in progress")
	}
	_ = s.CancelCheckout(invoiceID)

	cancelled, err := s.api.CancelInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("cancel invoice %d: %w", invoiceID, err)
	}
	s.bus.Publish(ctx, domain.ChannelPaymentCompleted, invoiceID)
	return cancelled, nil
}

// CreateForReservation bills a reservation. The API prices it.
func (s *BillingService) CreateForReservation(ctx context.Context, r domain.Reservation, method domain.PaymentMethod) (*domain.Invoice, error) {
	return s.create(ctx, domain.CreateInvoiceDTO{
		UserID:        r.UserID,
		ReservationID: null.IntFrom(r.ReservationID),
		Type:          r.Type,
		PaymentMethod: method,
	})
}

// CreateForLog bills a completed vehicle log.
func (s *BillingService) CreateForLog(ctx context.Context, l domain.VehicleLog, method domain.PaymentMethod) (*domain.Invoice, error) {
	return s.create(ctx, domain.CreateInvoiceDTO{
		UserID:        l.UserID,
		LogID:         null.IntFrom(l.LogID),
		Type:          l.SlotType,
		PaymentMethod: method,
	})
}

func (s *BillingService) create(ctx context.Context, dto domain.CreateInvoiceDTO) (*domain.Invoice, error) {
	if err := validateStruct(dto); err != nil {
		return nil, err
	}
	inv, err := s.api.CreateInvoice(ctx, dto)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	if inv == nil || inv.InvoiceID == 0 {
		return nil, fmt.Errorf("create invoice: response carried no invoice id")
	}
	if inv.Status == "" {
		inv.Status = domain.InvoiceUnpaid
	}
	s.logger.Info("invoice created", zap.Int64("invoice_id", inv.InvoiceID), zap.Float64("amount", inv.Amount))
	return inv, nil
}

// PayNew opens a checkout for a freshly created invoice and pays it.
func (s *BillingService) PayNew(ctx context.Context, inv domain.Invoice, method domain.PaymentMethod, upiID string) (*payment.Checkout, error) {
	c, err := s.open(inv)
	if err != nil {
		return nil, err
	}
	return c, s.drive(ctx, c, method, upiID)
}

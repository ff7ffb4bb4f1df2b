// Package payment simulates the checkout flow: pick a method, optionally
// enter a UPI id, confirm, then wait out a settle delay before announcing
// the payment.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
	"vpms_console/internal/gateway"
	"vpms_console/internal/logger"
)

type State string

const (
	StateNone                 State = "NONE"
	StateAwaitingMethod       State = "AWAITING_METHOD"
	StateAwaitingUPIID        State = "AWAITING_UPI_ID"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateSettling             State = "SETTLING"
	StateComplete             State = "COMPLETE"
	StateFailed               State = "FAILED"
	StateCancelled            State = "CANCELLED"
)

var (
	ErrInvalidTransition = errors.New("invalid payment transition")
	ErrUPIRequired       = errors.New("please enter a valid UPI ID")
	ErrInvoiceClosed     = errors.New("invoice is already paid or cancelled")
)

// Payer settles an invoice with the API.
type Payer interface {
	PayInvoice(ctx context.Context, id int64, method domain.PaymentMethod) (*domain.Invoice, error)
}

type Receipt struct {
	InvoiceID     int64                `json:"invoiceId"`
	ReservationID int64                `json:"reservationId,omitempty"`
	Amount        float64              `json:"amount"`
	Method        domain.PaymentMethod `json:"paymentMethod"`
	UPIID         string               `json:"upiId,omitempty"`
	PaidAt        time.Time            `json:"paidAt"`
}

// Snapshot is the checkout as a view renders it.
type Snapshot struct {
	InvoiceID int64                `json:"invoiceId"`
	Amount    float64              `json:"amount"`
	State     State                `json:"state"`
	Method    domain.PaymentMethod `json:"paymentMethod,omitempty"`
	Error     string               `json:"error,omitempty"`
	Receipt   *Receipt             `json:"receipt,omitempty"`
}

type Checkout struct {
	payer  Payer
	bus    *bus.Bus
	settle time.Duration
	logger *zap.Logger

	mu         sync.Mutex
	invoice    domain.Invoice
	state      State
	method     domain.PaymentMethod
	upiID      string
	lastErr    error
	receipt    *Receipt
	timer      *time.Timer
	touched    time.Time
	onComplete []func(context.Context, Receipt)
	done       chan struct{}
}

func NewCheckout(inv domain.Invoice, payer Payer, b *bus.Bus, settle time.Duration, l *zap.Logger) *Checkout {
	return &Checkout{
		payer:   payer,
		bus:     b,
		settle:  settle,
		logger:  logger.Named(l, "payment").With(zap.Int64("invoice_id", inv.InvoiceID)),
		invoice: inv,
		state:   StateNone,
		touched: time.Now(),
		done:    make(chan struct{}),
	}
}

// OnComplete registers a hook that runs when the settle delay elapses,
// before payment-completed is published.
func (c *Checkout) OnComplete(fn func(context.Context, Receipt)) {
	c.mu.Lock()
	c.onComplete = append(c.onComplete, fn)
	c.mu.Unlock()
}

func (c *Checkout) transition(from []State, to State) error {
	for _, s := range from {
		if c.state == s {
			c.state = to
			c.touched = time.Now()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.state, to)
}

// Begin opens the method picker.
func (c *Checkout) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invoice.Status.Terminal() {
		return ErrInvoiceClosed
	}
	return c.transition([]State{StateNone}, StateAwaitingMethod)
}

// SelectMethod picks how to pay. Retrying after a failure starts here too.
func (c *Checkout) SelectMethod(m domain.PaymentMethod) error {
	if !m.Valid() {
		return fmt.Errorf("unknown payment method %q", m)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	next := StateAwaitingConfirmation
	if m == domain.PaymentUPI {
		next = StateAwaitingUPIID
	}
	if err := c.transition([]State{StateAwaitingMethod, StateFailed}, next); err != nil {
		return err
	}
	c.method = m
	c.upiID = ""
	c.lastErr = nil
	return nil
}

func (c *Checkout) SubmitUPI(id string) error {
	id = strings.TrimSpace(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaitingUPIID {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.state, StateAwaitingConfirmation)
	}
	if id == "" {
		return ErrUPIRequired
	}
	c.upiID = id
	c.state = StateAwaitingConfirmation
	c.touched = time.Now()
	return nil
}

// Confirm issues the pay call. On success the settle delay is armed and the
// checkout completes when it elapses; on failure the checkout is FAILED and
// may be retried with SelectMethod.
func (c *Checkout) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if err := c.transition([]State{StateAwaitingConfirmation}, StateSettling); err != nil {
		c.mu.Unlock()
		return err
	}
	inv, method, upi := c.invoice, c.method, c.upiID
	c.mu.Unlock()

	paid, err := c.payer.PayInvoice(ctx, inv.InvoiceID, method)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateFailed
		c.touched = time.Now()
		c.lastErr = err
		c.logger.Warn("payment failed", zap.String("method", string(method)), zap.Error(err))
		return fmt.Errorf("pay invoice %d: %w", inv.InvoiceID, err)
	}

	amount := inv.Amount
	if paid != nil && paid.Amount > 0 {
		amount = paid.Amount
	}
	c.receipt = &Receipt{
		InvoiceID:     inv.InvoiceID,
		ReservationID: inv.ReservationID.Int64,
		Amount:        amount,
		Method:        method,
		UPIID:         upi,
		PaidAt:        time.Now(),
	}
	settleCtx := context.WithoutCancel(ctx)
	c.timer = time.AfterFunc(c.settle, func() { c.complete(settleCtx) })
	return nil
}

func (c *Checkout) complete(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateSettling {
		c.mu.Unlock()
		return
	}
	c.state = StateComplete
	receipt := *c.receipt
	hooks := append([]func(context.Context, Receipt){}, c.onComplete...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(ctx, receipt)
	}
	c.logger.Info("payment completed", zap.Float64("amount", receipt.Amount), zap.String("method", string(receipt.Method)))
	c.bus.Publish(ctx, domain.ChannelPaymentCompleted, receipt)
	close(c.done)
}

// Cancel aborts the checkout. Once the pay call is out it is too late.
func (c *Checkout) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.transition([]State{StateNone, StateAwaitingMethod, StateAwaitingUPIID, StateAwaitingConfirmation, StateFailed}, StateCancelled)
	if err != nil {
		return err
	}
	close(c.done)
	return nil
}

// ExpireIdle cancels the checkout if it has not moved for ttl and is still
// waiting on the operator. It reports whether it cancelled.
func (c *Checkout) ExpireIdle(ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.touched) < ttl {
		return false
	}
	if err := c.transition([]State{StateAwaitingMethod, StateAwaitingUPIID, StateAwaitingConfirmation, StateFailed}, StateCancelled); err != nil {
		return false
	}
	close(c.done)
	return true
}

// Done is closed once the checkout is COMPLETE or CANCELLED.
func (c *Checkout) Done() <-chan struct{} {
	return c.done
}

func (c *Checkout) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Checkout) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		InvoiceID: c.invoice.InvoiceID,
		Amount:    c.invoice.Amount,
		State:     c.state,
		Method:    c.method,
	}
	if c.lastErr != nil {
		s.Error = gateway.Message(c.lastErr, "Payment failed. Please try again.")
	}
	if c.receipt != nil {
		r := *c.receipt
		s.Receipt = &r
	}
	return s
}

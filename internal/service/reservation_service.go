package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
	"vpms_console/internal/gateway"
	"vpms_console/internal/logger"
	"vpms_console/internal/payment"
	"vpms_console/internal/session"
)

type ReservationService struct {
	api     *gateway.Client
	store   *session.Store
	billing *BillingService
	bus     *bus.Bus
	logger  *zap.Logger
}

func NewReservationService(api *gateway.Client, store *session.Store, billing *BillingService, b *bus.Bus, l *zap.Logger) *ReservationService {
	return &ReservationService{
		api:     api,
		store:   store,
		billing: billing,
		bus:     b,
		logger:  logger.Named(l, "reservations"),
	}
}

// ReserveRequest is the booking form plus the payment choice.
type ReserveRequest struct {
	domain.ReservationDTO
	PaymentMethod domain.PaymentMethod `json:"paymentMethod" validate:"required,oneof=CASH UPI CARD"`
	UPIID         string               `json:"upiId"`
}

type ReserveResult struct {
	Reservation *domain.Reservation `json:"reservation"`
	Invoice     *domain.Invoice     `json:"invoice"`
	Quote       domain.Quote        `json:"quote"`
	Checkout    *payment.Checkout   `json:"-"`
}

func (s *ReservationService) checkWindow(dto domain.ReservationDTO) error {
	if !dto.StartTime.Valid || !dto.EndTime.Valid {
		return invalid("startTime", "Please select start and end times")
	}
	if !dto.EndTime.After(dto.StartTime.Time) {
		return invalid("endTime", "End time must be after start time")
	}
	return nil
}

// Quote prices a booking window for a slot.
func (s *ReservationService) Quote(ctx context.Context, dto domain.ReservationDTO) (domain.Quote, error) {
	if err := s.checkWindow(dto); err != nil {
		return domain.Quote{}, err
	}
	t := dto.Type
	if t == "" {
		slot, err := s.api.GetSlot(ctx, dto.SlotID)
		if err != nil {
			return domain.Quote{}, fmt.Errorf("load slot %d: %w", dto.SlotID, err)
		}
		if slot != nil {
			t = slot.Type
		}
	}
	return domain.QuoteWindow(t, dto.StartTime.Time, dto.EndTime.Time), nil
}

// ReserveAndPay books a slot, bills the booking and pays the invoice. The
// checkout completes in the background after the settle delay.
func (s *ReservationService) ReserveAndPay(ctx context.Context, req ReserveRequest) (*ReserveResult, error) {
	user := s.store.User()
	if user == nil {
		return nil, session.ErrNotAuthenticated
	}
	if req.UserID == 0 || user.Role == domain.RoleCustomer {
		req.UserID = user.ID
	}
	req.VehicleNumber = strings.ToUpper(strings.TrimSpace(req.VehicleNumber))
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := s.checkWindow(req.ReservationDTO); err != nil {
		return nil, err
	}
	if req.PaymentMethod == domain.PaymentUPI && strings.TrimSpace(req.UPIID) == "" {
		return nil, invalid("upiId", payment.ErrUPIRequired.Error())
	}

	slot, err := s.bookable(ctx, req.SlotID)
	if err != nil {
		return nil, err
	}
	req.Type = slot.Type
	quote := domain.QuoteWindow(slot.Type, req.StartTime.Time, req.EndTime.Time)

	created, err := s.api.CreateReservation(ctx, req.ReservationDTO)
	if err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	if created == nil || created.ReservationID == 0 {
		return nil, fmt.Errorf("create reservation: response carried no reservation id")
	}
	if created.Type == "" {
		created.Type = slot.Type
	}
	if created.UserID == 0 {
		created.UserID = req.UserID
	}
	s.bus.Publish(ctx, domain.ChannelReservationChanged, created.ReservationID)

	inv, err := s.billing.CreateForReservation(ctx, *created, req.PaymentMethod)
	if err != nil {
		// an unbilled booking would hold the slot for free
		s.release(ctx, created)
		return &ReserveResult{Reservation: created, Quote: quote}, err
	}
	if inv.Amount == 0 {
		inv.Amount = quote.Amount
	}
	checkout, err := s.billing.PayNew(ctx, *inv, req.PaymentMethod, req.UPIID)
	if err != nil {
		return &ReserveResult{Reservation: created, Invoice: inv, Quote: quote, Checkout: checkout}, err
	}

	s.logger.Info("reservation booked",
		zap.Int64("reservation_id", created.ReservationID),
		zap.Int64("slot_id", created.SlotID),
		zap.Float64("amount", quote.Amount))
	return &ReserveResult{Reservation: created, Invoice: inv, Quote: quote, Checkout: checkout}, nil
}

// release cancels a booking whose invoice could not be created. A pay call
// that fails later leaves the booking in place: its checkout stays FAILED and
// can be retried from the invoices view.
func (s *ReservationService) release(ctx context.Context, r *domain.Reservation) {
	ctx = context.WithoutCancel(ctx)
	if err := s.api.CancelReservation(ctx, r.ReservationID); err != nil {
		s.logger.Error("could not release unbilled reservation",
			zap.Int64("reservation_id", r.ReservationID), zap.Error(err))
		return
	}
	r.Status = domain.ReservationCancelled
	s.logger.Warn("released unbilled reservation", zap.Int64("reservation_id", r.ReservationID))
	s.bus.Publish(ctx, domain.ChannelReservationChanged, r.ReservationID)
}

// bookable loads the slot and checks the resolver still calls it AVAILABLE.
func (s *ReservationService) bookable(ctx context.Context, slotID int64) (*domain.ParkingSlot, error) {
	var (
		slots        []domain.ParkingSlot
		reservations []domain.Reservation
		logs         []domain.VehicleLog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { slots, err = s.api.ListSlots(gctx); return })
	g.Go(func() (err error) { reservations, err = s.api.ListReservations(gctx); return })
	g.Go(func() (err error) { logs, err = s.api.ListLogs(gctx); return })
	if err := g.Wait(); err != nil {
		// customers may not be allowed to list every reservation or log
		if !gateway.IsStatus(err, 403) {
			return nil, fmt.Errorf("check slot availability: %w", err)
		}
		slot, err := s.api.GetSlot(ctx, slotID)
		if err != nil {
			return nil, fmt.Errorf("load slot %d: %w", slotID, err)
		}
		if slot == nil || slot.Occupied {
			return nil, conflict("Slot is not available")
		}
		return slot, nil
	}

	for _, slot := range slots {
		if slot.SlotID != slotID {
			continue
		}
		if !domain.IsSlotAvailable(slot, domain.ActiveReservations(reservations), domain.ActiveLogs(logs)) {
			return nil, conflict("Slot is not available")
		}
		return &slot, nil
	}
	return nil, invalid("slotId", "Please select a slot")
}

func (s *ReservationService) load(ctx context.Context, id int64) (*domain.Reservation, error) {
	r, err := s.api.GetReservation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load reservation %d: %w", id, err)
	}
	if r == nil {
		return nil, fmt.Errorf("load reservation %d: empty response", id)
	}
	return r, nil
}

func (s *ReservationService) Update(ctx context.Context, id int64, dto domain.ReservationDTO) (*domain.Reservation, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, conflict("Completed or cancelled reservations cannot be edited")
	}
	if dto.UserID == 0 {
		dto.UserID = current.UserID
	}
	if dto.SlotID == 0 {
		dto.SlotID = current.SlotID
	}
	if dto.VehicleNumber == "" {
		dto.VehicleNumber = current.VehicleNumber
	}
	if !dto.StartTime.Valid {
		dto.StartTime = current.StartTime
	}
	if !dto.EndTime.Valid {
		dto.EndTime = current.EndTime
	}
	if err := validateStruct(dto); err != nil {
		return nil, err
	}
	if err := s.checkWindow(dto); err != nil {
		return nil, err
	}

	updated, err := s.api.UpdateReservation(ctx, id, dto)
	if err != nil {
		return nil, fmt.Errorf("update reservation %d: %w", id, err)
	}
	s.bus.Publish(ctx, domain.ChannelReservationChanged, id)
	return updated, nil
}

func (s *ReservationService) UpdateStatus(ctx context.Context, id int64, status domain.ReservationStatus) (*domain.Reservation, error) {
	if !status.Valid() {
		return nil, invalid("status", "Unknown reservation status")
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, conflict("Reservation is already " + string(current.Status))
	}
	updated, err := s.api.UpdateReservationStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("update reservation %d status: %w", id, err)
	}
	s.bus.Publish(ctx, domain.ChannelReservationChanged, id)
	return updated, nil
}

// Cancel withdraws an ACTIVE reservation.
func (s *ReservationService) Cancel(ctx context.Context, id int64) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !current.Active() {
		return conflict("Only active reservations can be cancelled")
	}
	if user := s.store.User(); user != nil && user.Role == domain.RoleCustomer && current.UserID != user.ID {
		return conflict("You can only cancel your own reservations")
	}
	if err := s.api.CancelReservation(ctx, id); err != nil {
		return fmt.Errorf("cancel reservation %d: %w", id, err)
	}
	s.bus.Publish(ctx, domain.ChannelReservationChanged, id)
	return nil
}

// TriggerCompletion completes every reservation whose window has ended.
func (s *ReservationService) TriggerCompletion(ctx context.Context) (string, error) {
	msg, err := s.api.TriggerCompletion(ctx)
	if err != nil {
		return "", fmt.Errorf("trigger completion: %w", err)
	}
	s.bus.Publish(ctx, domain.ChannelReservationChanged, nil)
	if msg == "" {
		msg = "Auto-completion triggered successfully"
	}
	return msg, nil
}

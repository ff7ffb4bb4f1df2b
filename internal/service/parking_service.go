package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
	"vpms_console/internal/gateway"
	"vpms_console/internal/logger"
	"vpms_console/internal/payment"
)

// ParkingService manages slots and the vehicle entry/exit desk.
type ParkingService struct {
	api     *gateway.Client
	billing *BillingService
	bus     *bus.Bus
	logger  *zap.Logger
	now     func() time.Time
}

func NewParkingService(api *gateway.Client, billing *BillingService, b *bus.Bus, l *zap.Logger) *ParkingService {
	return &ParkingService{
		api:     api,
		billing: billing,
		bus:     b,
		logger:  logger.Named(l, "parking"),
		now:     time.Now,
	}
}

// --- ParkingSlot ---

func (s *ParkingService) CreateSlot(ctx context.Context, dto domain.SlotDTO) (*domain.ParkingSlot, error) {
	dto.Location = strings.TrimSpace(dto.Location)
	if err := validateStruct(dto); err != nil {
		return nil, err
	}
	slot, err := s.api.CreateSlot(ctx, dto)
	if err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}
	s.bus.Publish(ctx, domain.ChannelSlotChanged, slot)
	return slot, nil
}

func (s *ParkingService) UpdateSlot(ctx context.Context, id int64, dto domain.SlotDTO) (*domain.ParkingSlot, error) {
	dto.Location = strings.TrimSpace(dto.Location)
	if err := validateStruct(dto); err != nil {
		return nil, err
	}
	slot, err := s.api.UpdateSlot(ctx, id, dto)
	if err != nil {
		return nil, fmt.Errorf("update slot %d: %w", id, err)
	}
	s.bus.Publish(ctx, domain.ChannelSlotChanged, id)
	return slot, nil
}

// ToggleOccupancy flips the slot's occupied flag.
func (s *ParkingService) ToggleOccupancy(ctx context.Context, id int64) (*domain.ParkingSlot, error) {
	current, err := s.api.GetSlot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load slot %d: %w", id, err)
	}
	if current == nil {
		return nil, fmt.Errorf("load slot %d: empty response", id)
	}
	return s.SetOccupancy(ctx, id, !current.Occupied)
}

func (s *ParkingService) SetOccupancy(ctx context.Context, id int64, occupied bool) (*domain.ParkingSlot, error) {
	slot, err := s.api.UpdateOccupancy(ctx, id, occupied)
	if err != nil {
		return nil, fmt.Errorf("update slot %d occupancy: %w", id, err)
	}
	s.logger.Info("slot occupancy changed", zap.Int64("slot_id", id), zap.Bool("occupied", occupied))
	s.bus.Publish(ctx, domain.ChannelSlotChanged, id)
	return slot, nil
}

func (s *ParkingService) DeleteSlot(ctx context.Context, id int64) error {
	if err := s.api.DeleteSlot(ctx, id); err != nil {
		return fmt.Errorf("delete slot %d: %w", id, err)
	}
	s.bus.Publish(ctx, domain.ChannelSlotChanged, id)
	return nil
}

// --- VehicleLog ---

func (s *ParkingService) LookupUser(ctx context.Context, email string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, invalid("userEmail", "Please enter an email address to lookup user.")
	}
	u, err := s.api.UserByEmail(ctx, email)
	if err != nil || u == nil || u.ID == 0 {
		return nil, invalid("userEmail", "User not found. Please check the email address.")
	}
	return u, nil
}

// RecordEntry parks a vehicle in a slot the resolver considers free.
func (s *ParkingService) RecordEntry(ctx context.Context, dto domain.VehicleEntryDTO) (*domain.VehicleLog, error) {
	dto.VehicleNumber = strings.ToUpper(strings.TrimSpace(dto.VehicleNumber))
	if err := validateStruct(dto); err != nil {
		return nil, invalid("vehicleNumber", "Please fill in all required fields.")
	}

	var (
		slots        []domain.ParkingSlot
		reservations []domain.Reservation
		logs         []domain.VehicleLog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { slots, err = s.api.ListSlots(gctx); return })
	g.Go(func() (err error) { reservations, err = s.api.ListReservations(gctx); return })
	g.Go(func() (err error) { logs, err = s.api.ListLogs(gctx); return })
	g.Go(func() error {
		u, err := s.api.GetUser(gctx, dto.UserID)
		if err != nil {
			if gateway.IsStatus(err, 404) {
				return invalid("userId", "Invalid User ID. Please use the lookup feature to find a valid user.")
			}
			return err
		}
		if u == nil {
			return invalid("userId", "Invalid User ID. Please use the lookup feature to find a valid user.")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var target *domain.ParkingSlot
	for i := range slots {
		if slots[i].SlotID == dto.SlotID {
			target = &slots[i]
			break
		}
	}
	if target == nil {
		return nil, invalid("slotId", "Please select a slot")
	}
	if !domain.IsSlotAvailable(*target, domain.ActiveReservations(reservations), domain.ActiveLogs(logs)) {
		return nil, conflict("Slot is not available")
	}

	entry, err := s.api.RecordEntry(ctx, dto)
	if err != nil {
		return nil, fmt.Errorf("record entry: %w", err)
	}
	s.logger.Info("vehicle entered", zap.String("vehicle", dto.VehicleNumber), zap.Int64("slot_id", dto.SlotID))
	s.bus.Publish(ctx, domain.ChannelVehicleLogChanged, entry)
	return entry, nil
}

// ExitResult is a closed log with its price.
type ExitResult struct {
	Log   *domain.VehicleLog `json:"log"`
	Quote domain.Quote       `json:"quote"`
}

// RecordExit closes an active log and prices the stay.
func (s *ParkingService) RecordExit(ctx context.Context, logID int64) (*ExitResult, error) {
	current, err := s.api.GetLog(ctx, logID)
	if err != nil {
		return nil, fmt.Errorf("load log %d: %w", logID, err)
	}
	if current != nil && !current.Active() {
		return nil, conflict("Vehicle has already exited")
	}

	closed, err := s.api.RecordExit(ctx, logID)
	if err != nil {
		return nil, fmt.Errorf("record exit: %w", err)
	}
	if closed == nil {
		closed = current
	}
	if current != nil {
		if closed.SlotType == "" {
			closed.SlotType = current.SlotType
		}
		if !closed.EntryTime.Valid {
			closed.EntryTime = current.EntryTime
		}
	}
	if !closed.ExitTime.Valid {
		closed.ExitTime = domain.NewLocalTime(s.now())
	}
	quote := domain.QuoteMinutes(closed.SlotType, closed.ParkedMinutes(s.now()))

	s.bus.Publish(ctx, domain.ChannelVehicleLogChanged, closed)
	return &ExitResult{Log: closed, Quote: quote}, nil
}

// SettleExit bills a closed log and pays the invoice.
func (s *ParkingService) SettleExit(ctx context.Context, log domain.VehicleLog, method domain.PaymentMethod, upiID string) (*payment.Checkout, *domain.Invoice, error) {
	if log.Active() {
		return nil, nil, conflict("Record the exit before billing")
	}
	if !method.Valid() {
		return nil, nil, invalid("paymentMethod", "Please select a payment method")
	}
	inv, err := s.billing.CreateForLog(ctx, log, method)
	if err != nil {
		return nil, nil, err
	}
	if inv.Amount == 0 {
		inv.Amount = domain.QuoteMinutes(log.SlotType, log.ParkedMinutes(s.now())).Amount
	}
	checkout, err := s.billing.PayNew(ctx, *inv, method, upiID)
	if err != nil {
		return checkout, inv, err
	}
	s.bus.Publish(ctx, domain.ChannelVehicleLogChanged, log.LogID)
	return checkout, inv, nil
}

// SettleExitByID loads a closed log and settles it.
func (s *ParkingService) SettleExitByID(ctx context.Context, logID int64, method domain.PaymentMethod, upiID string) (*payment.Checkout, *domain.Invoice, error) {
	l, err := s.api.GetLog(ctx, logID)
	if err != nil {
		return nil, nil, fmt.Errorf("load log %d: %w", logID, err)
	}
	if l == nil {
		return nil, nil, fmt.Errorf("load log %d: empty response", logID)
	}
	return s.SettleExit(ctx, *l, method, upiID)
}

func (s *ParkingService) UpdateLog(ctx context.Context, id int64, dto domain.VehicleLogUpdateDTO) (*domain.VehicleLog, error) {
	dto.VehicleNumber = strings.ToUpper(strings.TrimSpace(dto.VehicleNumber))
	if dto.EntryTime.Valid && dto.ExitTime.Valid && !dto.ExitTime.After(dto.EntryTime.Time) {
		return nil, invalid("exitTime", "Exit time must be after entry time")
	}
	updated, err := s.api.UpdateLog(ctx, id, dto)
	if err != nil {
		return nil, fmt.Errorf("update log %d: %w", id, err)
	}
	s.bus.Publish(ctx, domain.ChannelVehicleLogChanged, id)
	return updated, nil
}

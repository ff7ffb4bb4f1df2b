package view

import (
	"context"
	"fmt"
	"time"

	"vpms_console/internal/domain"
)

// Data is the read side the views draw from, normally the entity cache.
type Data interface {
	Slots(ctx context.Context) ([]domain.ParkingSlot, error)
	AvailableSlots(ctx context.Context, t domain.SlotType) ([]domain.ParkingSlot, error)
	Reservations(ctx context.Context) ([]domain.Reservation, error)
	UserReservations(ctx context.Context, userID int64) ([]domain.Reservation, error)
	Logs(ctx context.Context) ([]domain.VehicleLog, error)
	UserLogs(ctx context.Context, userID int64) ([]domain.VehicleLog, error)
	Invoices(ctx context.Context) ([]domain.Invoice, error)
	UserInvoices(ctx context.Context, userID int64) ([]domain.Invoice, error)
	Users(ctx context.Context) ([]domain.User, error)
}

type ProfileSource interface {
	Profile(ctx context.Context) (*domain.User, error)
}

type Intervals struct {
	Default time.Duration
	Fast    time.Duration
}

// Params narrows what a view shows. The zero value shows everything.
type Params struct {
	SlotType domain.SlotType `json:"type,omitempty"`
}

func (p Params) Validate() error {
	if p.SlotType != "" && !p.SlotType.Valid() {
		return fmt.Errorf("%w: slot type %q", ErrInvalidParams, p.SlotType)
	}
	return nil
}

// Factory builds views for the signed-in user.
type Factory struct {
	data      Data
	profile   ProfileSource
	intervals Intervals
}

func NewFactory(data Data, profile ProfileSource, intervals Intervals) *Factory {
	return &Factory{data: data, profile: profile, intervals: intervals}
}

func (f *Factory) New(name domain.ViewName, user domain.User, p Params) (View, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	v, err := f.build(name, user, p)
	if err != nil {
		return nil, err
	}
	v.params = p
	return v, nil
}

func (f *Factory) build(name domain.ViewName, user domain.User, p Params) (*view, error) {
	d := f.data
	every := f.intervals.Default
	switch name {
	case domain.ViewDashboard:
		return newView(name, every, []domain.Channel{
			domain.ChannelPaymentCompleted, domain.ChannelRefreshAll, domain.ChannelReservationChanged,
		}, dashboardLoader(d, user)), nil
	case domain.ViewProfile:
		return newView(name, 0, []domain.Channel{domain.ChannelUserChanged}, func(ctx context.Context) (any, error) {
			u, err := f.profile.Profile(ctx)
			if err != nil {
				return nil, err
			}
			return ProfileData{User: u}, nil
		}), nil
	case domain.ViewSlotMap:
		return newView(name, every, []domain.Channel{
			domain.ChannelReservationChanged, domain.ChannelVehicleLogChanged, domain.ChannelSlotChanged, domain.ChannelPaymentCompleted,
		}, slotMapLoader(d)), nil
	case domain.ViewSlots:
		return newView(name, every, []domain.Channel{
			domain.ChannelSlotChanged, domain.ChannelReservationChanged,
		}, slotsLoader(d)), nil
	case domain.ViewUsers:
		return newView(name, every, []domain.Channel{domain.ChannelUserChanged}, usersLoader(d)), nil
	case domain.ViewVehicleEntry:
		return newView(name, every, []domain.Channel{
			domain.ChannelVehicleLogChanged, domain.ChannelSlotChanged, domain.ChannelReservationChanged,
		}, vehicleEntryLoader(d)), nil
	case domain.ViewVehicleLogs:
		return newView(name, every, []domain.Channel{domain.ChannelVehicleLogChanged}, vehicleLogsLoader(d)), nil
	case domain.ViewReservations:
		return newView(name, every, []domain.Channel{domain.ChannelReservationChanged}, reservationsLoader(d)), nil
	case domain.ViewBilling:
		return newView(name, every, []domain.Channel{
			domain.ChannelPaymentCompleted, domain.ChannelRefreshAll,
		}, billingLoader(d)), nil
	case domain.ViewAvailableSlots:
		return newView(name, f.intervals.Fast, []domain.Channel{
			domain.ChannelReservationChanged, domain.ChannelPaymentCompleted,
		}, availableSlotsLoader(d, p.SlotType)), nil
	case domain.ViewMyReservations:
		return newView(name, every, []domain.Channel{
			domain.ChannelReservationChanged, domain.ChannelPaymentCompleted,
		}, myReservationsLoader(d, user.ID)), nil
	case domain.ViewMyVehicles:
		return newView(name, every, []domain.Channel{domain.ChannelVehicleLogChanged}, myVehiclesLoader(d, user.ID)), nil
	case domain.ViewMyBills:
		return newView(name, every, []domain.Channel{domain.ChannelPaymentCompleted}, myBillsLoader(d, user.ID)), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownView, name)
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
	"vpms_console/internal/gateway"
	"vpms_console/internal/session"
)

// Services bundles every action the console can perform.
type Services struct {
	Auth         *AuthService
	Parking      *ParkingService
	Reservations *ReservationService
	Billing      *BillingService
	Users        *UserService
	bus          *bus.Bus
}

func New(api *gateway.Client, store *session.Store, b *bus.Bus, settle time.Duration, l *zap.Logger) *Services {
	billing := NewBillingService(api, b, settle, l)
	return &Services{
		Auth:         NewAuthService(store, api, b, l),
		Parking:      NewParkingService(api, billing, b, l),
		Reservations: NewReservationService(api, store, billing, b, l),
		Billing:      billing,
		Users:        NewUserService(api, store, b),
		bus:          b,
	}
}

// RefreshAll tells every subscribed view to refetch.
func (s *Services) RefreshAll(ctx context.Context) {
	s.bus.Publish(ctx, domain.ChannelRefreshAll, nil)
}

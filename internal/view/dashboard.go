package view

import (
	"context"

	"golang.org/x/sync/errgroup"

	"vpms_console/internal/domain"
)

// DashboardData carries the role-specific overview. Sections a role does not
// see are left nil.
type DashboardData struct {
	Role         domain.Role              `json:"role"`
	Slots        *domain.SlotSummary      `json:"slots,omitempty"`
	Users        *domain.RoleCount        `json:"users,omitempty"`
	Logs         *domain.VehicleLogStats  `json:"logs,omitempty"`
	Reservations *domain.ReservationStats `json:"reservations,omitempty"`
	Billing      *domain.BillingSummary   `json:"billing,omitempty"`
	RecentLogs   []domain.VehicleLog      `json:"recentLogs,omitempty"`

	AvailableSlots     int                  `json:"availableSlots,omitempty"`
	ActiveReservations []domain.Reservation `json:"activeReservations,omitempty"`
	ParkedVehicles     []domain.VehicleLog  `json:"parkedVehicles,omitempty"`
}

func dashboardLoader(d Data, user domain.User) loadFunc {
	switch user.Role {
	case domain.RoleAdmin:
		return adminDashboard(d)
	case domain.RoleStaff:
		return staffDashboard(d)
	default:
		return customerDashboard(d, user.ID)
	}
}

func recent(logs []domain.VehicleLog) []domain.VehicleLog {
	logs = newestLogsFirst(logs)
	if len(logs) > recentRows {
		logs = logs[:recentRows]
	}
	return logs
}

func adminDashboard(d Data) loadFunc {
	return func(ctx context.Context) (any, error) {
		var (
			in       slotInputs
			users    []domain.User
			invoices []domain.Invoice
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { in, err = fetchSlotInputs(gctx, d); return })
		g.Go(func() (err error) { users, err = d.Users(gctx); return })
		g.Go(func() (err error) { invoices, err = d.Invoices(gctx); return })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		slots := domain.SummarizeSlots(domain.ResolveAll(in.slots, in.reservations, in.logs))
		counts := domain.CountRoles(users)
		logs := domain.SummarizeLogs(in.logs)
		reservations := domain.SummarizeReservations(in.reservations)
		billing := domain.SummarizeInvoices(invoices)
		return DashboardData{
			Role:         domain.RoleAdmin,
			Slots:        &slots,
			Users:        &counts,
			Logs:         &logs,
			Reservations: &reservations,
			Billing:      &billing,
			RecentLogs:   recent(in.logs),
		}, nil
	}
}

func staffDashboard(d Data) loadFunc {
	return func(ctx context.Context) (any, error) {
		var (
			in       slotInputs
			users    []domain.User
			invoices []domain.Invoice
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { in, err = fetchSlotInputs(gctx, d); return })
		g.Go(func() (err error) { users, err = d.Users(gctx); return })
		g.Go(func() (err error) { invoices, err = d.Invoices(gctx); return })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		slots := domain.SummarizeSlots(domain.ResolveAll(in.slots, in.reservations, in.logs))
		counts := domain.CountRoles(users)
		logs := domain.SummarizeLogs(in.logs)
		billing := domain.SummarizeInvoices(invoices)
		return DashboardData{
			Role:           domain.RoleStaff,
			Slots:          &slots,
			Users:          &counts,
			Logs:           &logs,
			Billing:        &billing,
			RecentLogs:     recent(in.logs),
			ParkedVehicles: domain.ActiveLogs(in.logs),
		}, nil
	}
}

func customerDashboard(d Data, userID int64) loadFunc {
	return func(ctx context.Context) (any, error) {
		var (
			in       slotInputs
			mine     []domain.Reservation
			invoices []domain.Invoice
			myLogs   []domain.VehicleLog
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { in, err = fetchSlotInputs(gctx, d); return })
		g.Go(func() (err error) { mine, err = d.UserReservations(gctx, userID); return })
		g.Go(func() (err error) { invoices, err = d.UserInvoices(gctx, userID); return })
		g.Go(func() (err error) { myLogs, err = d.UserLogs(gctx, userID); return })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		reservations := domain.SummarizeReservations(mine)
		billing := domain.SummarizeInvoices(invoices)
		return DashboardData{
			Role:               domain.RoleCustomer,
			Reservations:       &reservations,
			Billing:            &billing,
			RecentLogs:         recent(myLogs),
			AvailableSlots:     len(domain.AvailableSlots(in.slots, in.reservations, in.logs, "")),
			ActiveReservations: domain.ActiveReservations(mine),
			ParkedVehicles:     domain.ActiveLogs(myLogs),
		}, nil
	}
}

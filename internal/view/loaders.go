package view

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"vpms_console/internal/domain"
)

const recentRows = 5

type ProfileData struct {
	User *domain.User `json:"user"`
}

type SlotMapData struct {
	Slots   []domain.SlotWithStatus `json:"slots"`
	Summary domain.SlotSummary      `json:"summary"`
}

type UsersData struct {
	Users  []domain.User    `json:"users"`
	Counts domain.RoleCount `json:"counts"`
}

type LogRow struct {
	domain.VehicleLog
	UserName string `json:"userName,omitempty"`
}

type VehicleEntryData struct {
	Available []domain.ParkingSlot `json:"availableSlots"`
	Parked    []LogRow             `json:"parked"`
	Users     []domain.User        `json:"users"`
}

type VehicleLogsData struct {
	Logs  []LogRow               `json:"logs"`
	Stats domain.VehicleLogStats `json:"stats"`
}

type ReservationRow struct {
	domain.Reservation
	UserName     string `json:"userName,omitempty"`
	SlotLocation string `json:"slotLocation,omitempty"`
}

type ReservationsData struct {
	Reservations []ReservationRow        `json:"reservations"`
	Stats        domain.ReservationStats `json:"stats"`
}

type InvoiceRow struct {
	domain.Invoice
	UserName string `json:"userName,omitempty"`
}

type BillingData struct {
	Invoices []InvoiceRow          `json:"invoices"`
	Summary  domain.BillingSummary `json:"summary"`
}

type AvailableSlotsData struct {
	Type        domain.SlotType      `json:"type,omitempty"`
	Slots       []domain.ParkingSlot `json:"slots"`
	TwoWheeler  int                  `json:"twoWheeler"`
	FourWheeler int                  `json:"fourWheeler"`
}

type MyReservationRow struct {
	domain.Reservation
	Invoice *domain.Invoice `json:"invoice,omitempty"`
}

type MyReservationsData struct {
	Reservations []MyReservationRow      `json:"reservations"`
	Stats        domain.ReservationStats `json:"stats"`
}

type MyVehiclesData struct {
	Logs   []domain.VehicleLog    `json:"logs"`
	Parked []domain.VehicleLog    `json:"parked"`
	Stats  domain.VehicleLogStats `json:"stats"`
}

type MyBillsData struct {
	Invoices []domain.Invoice      `json:"invoices"`
	Summary  domain.BillingSummary `json:"summary"`
}

// slotInputs is everything the status resolver needs.
type slotInputs struct {
	slots        []domain.ParkingSlot
	reservations []domain.Reservation
	logs         []domain.VehicleLog
}

func fetchSlotInputs(ctx context.Context, d Data) (slotInputs, error) {
	var in slotInputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { in.slots, err = d.Slots(gctx); return })
	g.Go(func() (err error) { in.reservations, err = d.Reservations(gctx); return })
	g.Go(func() (err error) { in.logs, err = d.Logs(gctx); return })
	return in, g.Wait()
}

func slotMapLoader(d Data) loadFunc {
	return func(ctx context.Context) (any, error) {
		in, err := fetchSlotInputs(ctx, d)
		if err != nil {
			return nil, err
		}
		resolved := domain.ResolveAll(in.slots, in.reservations, in.logs)
		return SlotMapData{Slots: resolved, Summary: domain.SummarizeSlots(resolved)}, nil
	}
}

func slotsLoader(d Data) loadFunc {
	return func(ctx context.Context) (any, error) {
		var (
			slots        []domain.ParkingSlot
			reservations []domain.Reservation
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { slots, err = d.Slots(gctx); return })
		g.Go(func() (err error) { reservations, err = d.Reservations(gctx); return })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		resolved := domain.ResolveAll(slots, reservations, nil)
		return SlotMapData{Slots: resolved, Summary: domain.SummarizeSlots(resolved)}, nil
	}
}

func usersLoader(d Data) loadFunc {
	return func(ctx context.Context) (any, error) {
		users, err := d.Users(ctx)
		if err != nil {
			return nil, err
		}
		return UsersData{Users: users, Counts: domain.CountRoles(users)}, nil
	}
}

func logRows(logs []domain.VehicleLog, names map[int64]string) []LogRow {
	rows := make([]LogRow, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, LogRow{VehicleLog: l, UserName: names[l.UserID]})
	}
	return rows
}

func vehicleEntryLoader(d Data) loadFunc {
	return func(ctx context.Context) (any, error) {
		var (
			in    slotInputs
			users []domain.User
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { in, err = fetchSlotInputs(gctx, d); return })
		g.Go(func() (err error) { users, err = d.Users(gctx); return })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return VehicleEntryData{
			Available: domain.AvailableSlots(in.slots, in.reservations, in.logs, ""),
			Parked:    logRows(domain.ActiveLogs(in.logs), domain.UserNames(users)),
			Users:     users,
		}, nil
	}
}

func vehicleLogsLoader(d Data) loadFunc {
	return func(ctx context.Context) (any, error) {
		var (
			logs  []domain.VehicleLog
			users []domain.User
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { logs, err = d.Logs(gctx); return })
		g.Go(func() (err error) { users, err = d.Users(gctx); return })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return VehicleLogsData{Logs: logRows(newestLogsFirst(logs), domain.UserNames(users)), Stats: domain.SummarizeLogs(logs)}, nil
	}
}

func reservationsLoader(d Data) loadFunc {
	return func(ctx context.Context) (any, error) {
		var (
			reservations []domain.Reservation
			users        []domain.User
			slots        []domain.ParkingSlot
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { reservations, err = d.Reservations(gctx); return })
		g.Go(func() (err error) { users, err = d.Users(gctx); return })
		g.Go(func() (err error) { slots, err = d.Slots(gctx); return })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		names := domain.UserNames(users)
		locations := make(map[int64]string, len(slots))
		for _, s := range slots {
			locations[s.SlotID] = s.Location
		}
		rows := make([]ReservationRow, 0, len(reservations))
		for _, r := range reservations {
			rows = append(rows, ReservationRow{Reservation: r, UserName: names[r.UserID], SlotLocation: locations[r.SlotID]})
		}
		return ReservationsData{Reservations: rows, Stats: domain.SummarizeReservations(reservations)}, nil
	}
}

func billingLoader(d Data) loadFunc {
	return func(ctx context.Context) (any, error) {
		var (
			invoices []domain.Invoice
			users    []domain.User
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { invoices, err = d.Invoices(gctx); return })
		g.Go(func() (err error) { users, err = d.Users(gctx); return })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		names := domain.UserNames(users)
		rows := make([]InvoiceRow, 0, len(invoices))
		for _, inv := range invoices {
			rows = append(rows, InvoiceRow{Invoice: inv, UserName: names[inv.UserID]})
		}
		return BillingData{Invoices: rows, Summary: domain.SummarizeInvoices(invoices)}, nil
	}
}

// availableSlotsLoader lists bookable slots, only of type t when set. The
// API's free list knows nothing of logs or reservations, so the resolver
// still has the last word. The counts follow the filtered list.
func availableSlotsLoader(d Data, t domain.SlotType) loadFunc {
	return func(ctx context.Context) (any, error) {
		var in slotInputs
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { in.slots, err = d.AvailableSlots(gctx, t); return })
		g.Go(func() (err error) { in.reservations, err = d.Reservations(gctx); return })
		g.Go(func() (err error) { in.logs, err = d.Logs(gctx); return })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		free := domain.AvailableSlots(in.slots, in.reservations, in.logs, t)
		out := AvailableSlotsData{Type: t, Slots: free}
		for _, s := range free {
			if s.Type == domain.SlotType2W {
				out.TwoWheeler++
			} else {
				out.FourWheeler++
			}
		}
		return out, nil
	}
}

func myReservationsLoader(d Data, userID int64) loadFunc {
	return func(ctx context.Context) (any, error) {
		var (
			reservations []domain.Reservation
			invoices     []domain.Invoice
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { reservations, err = d.UserReservations(gctx, userID); return })
		g.Go(func() (err error) { invoices, err = d.UserInvoices(gctx, userID); return })
		if err := g.Wait(); err != nil {
			return nil, err
		}
		byRes := domain.InvoicesByReservation(invoices)
		rows := make([]MyReservationRow, 0, len(reservations))
		for _, r := range reservations {
			row := MyReservationRow{Reservation: r}
			if inv, ok := byRes[r.ReservationID]; ok {
				row.Invoice = &inv
			}
			rows = append(rows, row)
		}
		return MyReservationsData{Reservations: rows, Stats: domain.SummarizeReservations(reservations)}, nil
	}
}

func myVehiclesLoader(d Data, userID int64) loadFunc {
	return func(ctx context.Context) (any, error) {
		logs, err := d.UserLogs(ctx, userID)
		if err != nil {
			return nil, err
		}
		return MyVehiclesData{Logs: newestLogsFirst(logs), Parked: domain.ActiveLogs(logs), Stats: domain.SummarizeLogs(logs)}, nil
	}
}

func myBillsLoader(d Data, userID int64) loadFunc {
	return func(ctx context.Context) (any, error) {
		invoices, err := d.UserInvoices(ctx, userID)
		if err != nil {
			return nil, err
		}
		return MyBillsData{Invoices: invoices, Summary: domain.SummarizeInvoices(invoices)}, nil
	}
}

func newestLogsFirst(logs []domain.VehicleLog) []domain.VehicleLog {
	out := append([]domain.VehicleLog(nil), logs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EntryTime.After(out[j].EntryTime.Time)
	})
	return out
}

package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gopkg.in/guregu/null.v4"

	"vpms_console/internal/bus"
	"vpms_console/internal/domain"
	"vpms_console/internal/gateway"
)

type stubData struct {
	mu           sync.Mutex
	slots        []domain.ParkingSlot
	reservations []domain.Reservation
	logs         []domain.VehicleLog
	invoices     []domain.Invoice
	users        []domain.User
	err          error
	calls        int
}

func (s *stubData) hit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *stubData) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *stubData) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubData) Slots(context.Context) ([]domain.ParkingSlot, error) { return s.slots, s.hit() }
func (s *stubData) AvailableSlots(_ context.Context, t domain.SlotType) ([]domain.ParkingSlot, error) {
	var out []domain.ParkingSlot
	for _, sl := range s.slots {
		if !sl.Occupied && (t == "" || sl.Type == t) {
			out = append(out, sl)
		}
	}
	return out, s.hit()
}
func (s *stubData) Reservations(context.Context) ([]domain.Reservation, error) {
	return s.reservations, s.hit()
}
func (s *stubData) Logs(context.Context) ([]domain.VehicleLog, error) { return s.logs, s.hit() }
func (s *stubData) Invoices(context.Context) ([]domain.Invoice, error) {
	return s.invoices, s.hit()
}
func (s *stubData) Users(context.Context) ([]domain.User, error) { return s.users, s.hit() }

func (s *stubData) UserReservations(_ context.Context, id int64) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, r := range s.reservations {
		if r.UserID == id {
			out = append(out, r)
		}
	}
	return out, s.hit()
}

func (s *stubData) UserLogs(_ context.Context, id int64) ([]domain.VehicleLog, error) {
	var out []domain.VehicleLog
	for _, l := range s.logs {
		if l.UserID == id {
			out = append(out, l)
		}
	}
	return out, s.hit()
}

func (s *stubData) UserInvoices(_ context.Context, id int64) ([]domain.Invoice, error) {
	var out []domain.Invoice
	for _, inv := range s.invoices {
		if inv.UserID == id {
			out = append(out, inv)
		}
	}
	return out, s.hit()
}

type stubProfile struct{ user domain.User }

func (p stubProfile) Profile(context.Context) (*domain.User, error) {
	u := p.user
	return &u, nil
}

func seeded() *stubData {
	return &stubData{
		slots: []domain.ParkingSlot{
			{SlotID: 1, Location: "A1", Type: domain.SlotType2W},
			{SlotID: 2, Location: "A2", Type: domain.SlotType2W, Occupied: true},
			{SlotID: 3, Location: "B1", Type: domain.SlotType4W},
			{SlotID: 4, Location: "B2", Type: domain.SlotType4W},
		},
		reservations: []domain.Reservation{
			{ReservationID: 10, UserID: 3, SlotID: 3, Status: domain.ReservationActive},
			{ReservationID: 11, UserID: 4, SlotID: 4, Status: domain.ReservationCancelled},
		},
		logs: []domain.VehicleLog{
			{LogID: 20, UserID: 3, SlotID: 1, EntryTime: domain.NewLocalTime(time.Now().Add(-time.Hour))},
		},
		invoices: []domain.Invoice{
			{InvoiceID: 30, UserID: 3, ReservationID: null.IntFrom(10), Amount: 60, Status: domain.InvoicePaid},
			{InvoiceID: 31, UserID: 4, Amount: 20, Status: domain.InvoiceUnpaid},
		},
		users: []domain.User{
			{ID: 1, Name: "Admin", Role: domain.RoleAdmin},
			{ID: 3, Name: "Cara", Role: domain.RoleCustomer},
			{ID: 4, Name: "Dev", Role: domain.RoleCustomer},
		},
	}
}

var customer = domain.User{ID: 3, Name: "Cara", Role: domain.RoleCustomer}

func newFactory(d Data) *Factory {
	return NewFactory(d, stubProfile{user: customer}, Intervals{Default: 30 * time.Second, Fast: 15 * time.Second})
}

func build(t *testing.T, f *Factory, name domain.ViewName, u domain.User) View {
	t.Helper()
	v, err := f.New(name, u, Params{})
	if err != nil {
		t.Fatalf("New(%s): %v", name, err)
	}
	return v
}

func TestSlotMapResolvesStatuses(t *testing.T) {
	v := build(t, newFactory(seeded()), domain.ViewSlotMap, customer)
	if !v.Snapshot().Loading {
		t.Fatal("fresh view should be loading")
	}
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	data := v.Snapshot().Data.(SlotMapData)
	want := map[int64]domain.SlotStatus{1: domain.SlotOccupied, 2: domain.SlotOccupied, 3: domain.SlotReserved, 4: domain.SlotAvailable}
	for _, s := range data.Slots {
		if s.Status != want[s.SlotID] {
			t.Errorf("slot %d = %s, want %s", s.SlotID, s.Status, want[s.SlotID])
		}
	}
	if data.Summary.Available != 1 || data.Summary.Occupied != 2 {
		t.Errorf("summary = %+v", data.Summary)
	}
}

func TestAvailableSlotsFilterByType(t *testing.T) {
	d := seeded()
	d.slots = append(d.slots, domain.ParkingSlot{SlotID: 5, Location: "A3", Type: domain.SlotType2W})
	f := newFactory(d)

	all := build(t, f, domain.ViewAvailableSlots, customer)
	if err := all.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := all.Snapshot().Data.(AvailableSlotsData)
	if len(got.Slots) != 2 || got.TwoWheeler != 1 || got.FourWheeler != 1 || got.Type != "" {
		t.Errorf("unfiltered = %+v", got)
	}

	twoW, err := f.New(domain.ViewAvailableSlots, customer, Params{SlotType: domain.SlotType2W})
	if err != nil {
		t.Fatal(err)
	}
	if err := twoW.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	got = twoW.Snapshot().Data.(AvailableSlotsData)
	if len(got.Slots) != 1 || got.Slots[0].SlotID != 5 || got.FourWheeler != 0 || got.Type != domain.SlotType2W {
		t.Errorf("2W only = %+v", got)
	}

	if _, err := f.New(domain.ViewAvailableSlots, customer, Params{SlotType: "3W"}); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("bad type err = %v", err)
	}
}

func TestForbiddenDegradesToAccessDenied(t *testing.T) {
	d := seeded()
	v := build(t, newFactory(d), domain.ViewUsers, customer)
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	d.setErr(&gateway.APIError{Status: 403, Message: "Access denied"})
	if err := v.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	snap := v.Snapshot()
	if !snap.AccessDenied || snap.Data != nil || snap.Error != accessDeniedMessage {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestFailureKeepsLastData(t *testing.T) {
	d := seeded()
	v := build(t, newFactory(d), domain.ViewMyBills, customer)
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	d.setErr(&gateway.APIError{Status: 500, Message: "boom"})
	_ = v.Refresh(context.Background())

	snap := v.Snapshot()
	if snap.Error != "boom" || snap.AccessDenied {
		t.Errorf("snapshot = %+v", snap)
	}
	bills := snap.Data.(MyBillsData)
	if len(bills.Invoices) != 1 || bills.Summary.Revenue != 60 {
		t.Errorf("data = %+v", bills)
	}
}

func TestResultDroppedAfterCancel(t *testing.T) {
	v := newView("late", 0, nil, func(context.Context) (any, error) { return "late", nil })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := v.Refresh(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if snap := v.Snapshot(); snap.Data != nil || !snap.Loading {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestMyReservationsJoinInvoices(t *testing.T) {
	v := build(t, newFactory(seeded()), domain.ViewMyReservations, customer)
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	data := v.Snapshot().Data.(MyReservationsData)
	if len(data.Reservations) != 1 {
		t.Fatalf("rows = %+v", data.Reservations)
	}
	if inv := data.Reservations[0].Invoice; inv == nil || inv.InvoiceID != 30 {
		t.Errorf("invoice = %+v", inv)
	}
}

func TestDashboardByRole(t *testing.T) {
	f := newFactory(seeded())

	admin := build(t, f, domain.ViewDashboard, domain.User{ID: 1, Role: domain.RoleAdmin})
	if err := admin.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	a := admin.Snapshot().Data.(DashboardData)
	if a.Users == nil || a.Users.Customers != 2 || a.Billing.Outstanding != 20 {
		t.Errorf("admin dashboard = %+v", a)
	}

	cust := build(t, f, domain.ViewDashboard, customer)
	if err := cust.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	c := cust.Snapshot().Data.(DashboardData)
	if c.Users != nil || c.AvailableSlots != 1 || len(c.ActiveReservations) != 1 || len(c.ParkedVehicles) != 1 {
		t.Errorf("customer dashboard = %+v", c)
	}
}

func TestFactoryIntervals(t *testing.T) {
	f := newFactory(seeded())
	cases := map[domain.ViewName]time.Duration{
		domain.ViewAvailableSlots: 15 * time.Second,
		domain.ViewProfile:        0,
		domain.ViewBilling:        30 * time.Second,
	}
	for name, want := range cases {
		if got := build(t, f, name, customer).Interval(); got != want {
			t.Errorf("%s interval = %v, want %v", name, got, want)
		}
	}
	if _, err := f.New(domain.ViewLogin, customer, Params{}); !errors.Is(err, ErrUnknownView) {
		t.Errorf("login view err = %v", err)
	}
}

func TestMountedViewFollowsBus(t *testing.T) {
	d := seeded()
	b := bus.New(zap.NewNop())
	v := build(t, newFactory(d), domain.ViewMyVehicles, customer)

	m := Mount(context.Background(), v, b, zap.NewNop())
	waitFor(t, func() bool { return d.count() == 1 })

	b.Publish(context.Background(), domain.ChannelVehicleLogChanged, nil)
	waitFor(t, func() bool { return d.count() == 2 })

	b.Publish(context.Background(), domain.ChannelPaymentCompleted, nil)
	m.Unmount()
	m.Unmount()
	if n := b.Subscribers(domain.ChannelVehicleLogChanged); n != 0 {
		t.Errorf("%d subscribers left", n)
	}
	b.Publish(context.Background(), domain.ChannelVehicleLogChanged, nil)
	time.Sleep(20 * time.Millisecond)
	if n := d.count(); n != 2 {
		t.Errorf("fetches = %d after unmount, want 2", n)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
